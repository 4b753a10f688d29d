package graph

import (
	"context"
	"fmt"

	"github.com/adampassword/neorest/pkg/rest"
)

// relCore is the state shared between a Rel and its reversed view. Flipping
// direction never copies properties: both views alias the same core.
type relCore struct {
	binding
	g       *Graph
	relType string
	props   *PropertySet

	staleProps bool
}

// Rel is the relationship kernel of a path step: a type plus properties,
// carrying a direction relative to the path it sits in. A forward Rel renders
// as -[:TYPE]->, its reversed view as <-[:TYPE]-.
type Rel struct {
	core     *relCore
	reversed bool
}

// NewRel creates an unbound forward relationship kernel.
func NewRel(relType string) *Rel {
	return &Rel{core: &relCore{
		relType: relType,
		props:   &PropertySet{values: make(map[string]any)},
	}}
}

// NewRev creates an unbound reversed relationship kernel.
func NewRev(relType string) *Rel {
	r := NewRel(relType)
	r.reversed = true
	return r
}

// CastRel converts accepted notations to a relationship kernel:
//
//	CastRel(rel)            -> the kernel
//	CastRel(relationship)   -> the relationship's kernel
//	CastRel("KNOWS")        -> -[:KNOWS]->
func CastRel(v any) (*Rel, error) {
	switch arg := v.(type) {
	case *Rel:
		return arg, nil
	case *Relationship:
		return arg.rel, nil
	case string:
		return NewRel(arg), nil
	default:
		return nil, fmt.Errorf("%w %T to rel", ErrInvalidCast, v)
	}
}

// Type returns the relationship type.
func (r *Rel) Type() string { return r.core.relType }

// SetType renames an unbound kernel. Bound relationship types are immutable
// server-side.
func (r *Rel) SetType(relType string) error {
	if r.core.Bound() {
		return fmt.Errorf("cannot retype a bound relationship: %w", ErrServerCapability)
	}
	r.core.relType = relType
	return nil
}

// Reversed returns the opposite-direction view over the same core. Property
// changes through either view are visible through both.
func (r *Rel) Reversed() *Rel {
	return &Rel{core: r.core, reversed: !r.reversed}
}

// IsReversed reports whether this view points against path direction.
func (r *Rel) IsReversed() bool { return r.reversed }

// Props gives direct access to the local property set without triggering a
// refresh.
func (r *Rel) Props() *PropertySet { return r.core.props }

// Properties returns the kernel's properties, pulling first if stale.
func (r *Rel) Properties(ctx context.Context) (map[string]any, error) {
	if r.core.Bound() && r.core.staleProps {
		if err := r.Pull(ctx); err != nil {
			return nil, err
		}
	}
	return r.core.props.Map(), nil
}

// SetProperty assigns a property locally and, when bound, pushes the full
// property set.
func (r *Rel) SetProperty(ctx context.Context, key string, value any) error {
	if err := r.core.props.Set(key, value); err != nil {
		return err
	}
	if r.core.Bound() {
		return r.core.props.Push(ctx)
	}
	return nil
}

// Bound reports whether the kernel is attached to a remote relationship.
func (r *Rel) Bound() bool { return r.core.Bound() }

// Resource returns the bound relationship resource, or ErrUnbound.
func (r *Rel) Resource() (*rest.Resource, error) { return r.core.Resource() }

// URI returns the bound relationship URI, or "".
func (r *Rel) URI() string { return r.core.URI() }

// Graph returns the graph owning this relationship, or ErrUnbound.
func (r *Rel) Graph() (*Graph, error) {
	if r.core.g == nil {
		return nil, ErrUnbound
	}
	return r.core.g, nil
}

// ID returns the relationship's canonical integer ID.
func (r *Rel) ID() (int64, error) {
	res, err := r.core.Resource()
	if err != nil {
		return 0, err
	}
	return entityID(res)
}

// Bind attaches the kernel to a remote relationship URI.
func (r *Rel) Bind(uri string, metadata map[string]any) error {
	var meta any
	if metadata != nil {
		meta = metadata
	}
	res, err := rest.NewResourceIn(rest.Default, uri, meta)
	if err != nil {
		return err
	}
	r.core.bindResource(res)

	propsURI, _ := stringEntry(metadata, "properties")
	if propsURI == "" {
		propsURI = uri + "/properties"
	}
	propsRes, err := rest.NewResource(propsURI)
	if err != nil {
		return err
	}
	r.core.props.bindResource(propsRes)

	if t, ok := stringEntry(metadata, "type"); ok {
		r.core.relType = t
	}
	if base, err := graphBaseURI(res.URI(), "relationship"); err == nil {
		if g, err := New(base); err == nil {
			r.core.g = g
		}
	}
	return nil
}

// Unbind detaches the kernel and its property sub-resource.
func (r *Rel) Unbind() {
	r.core.binding.Unbind()
	r.core.props.Unbind()
	r.core.g = nil
	r.core.staleProps = false
}

// Pull refreshes the type and properties from the server.
func (r *Rel) Pull(ctx context.Context) error {
	res, err := r.core.Resource()
	if err != nil {
		return err
	}
	rs, err := res.Get(ctx)
	if err != nil {
		return err
	}
	payload, ok := rs.Content.(map[string]any)
	if !ok {
		return fmt.Errorf("relationship %s: unexpected payload", res.URI())
	}
	if t, ok := payload["type"].(string); ok {
		r.core.relType = t
	}
	if data, ok := payload["data"].(map[string]any); ok {
		r.core.props.values = copyValues(data)
	}
	r.core.staleProps = false
	return nil
}

// Push writes local properties to the server.
func (r *Rel) Push(ctx context.Context) error {
	return r.core.props.Push(ctx)
}

// Exists reports whether the relationship is still present server-side.
func (r *Rel) Exists(ctx context.Context) (bool, error) {
	res, err := r.core.Resource()
	if err != nil {
		return false, err
	}
	if _, err := res.Get(ctx); err != nil {
		if rest.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Equal reports kernel equality. Direction matters: a Rel and its reversed
// view are not equal even though they share state.
func (r *Rel) Equal(other *Rel) bool {
	if other == nil {
		return false
	}
	if r.reversed != other.reversed {
		return false
	}
	if r.core == other.core {
		return true
	}
	if r.core.Bound() && other.core.Bound() {
		return r.core.sameResource(&other.core.binding)
	}
	if r.core.Bound() || other.core.Bound() {
		return false
	}
	return r.core.relType == other.core.relType && r.core.props.Equal(other.core.props)
}

func (r *Rel) String() string {
	w := &cypherWriter{}
	w.writeRel(r, "")
	return w.String()
}

func copyValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		nv, err := normalizeProperty(v)
		if err != nil {
			continue
		}
		out[k] = nv
	}
	return out
}
