package graph

import (
	"context"
	"fmt"

	"github.com/adampassword/neorest/pkg/rest"
)

// Relationship is a single typed edge between two node positions. It is a
// one-step path normalized to read forward: constructing one from a reversed
// kernel swaps the end nodes instead of keeping the reversal.
type Relationship struct {
	path *Path
	rel  *Rel
}

// NewRelationship builds a relationship from a start node, a rel-like value
// (a type string, a Rel, or a Rev) and an end node.
func NewRelationship(start any, rel any, end any) (*Relationship, error) {
	kernel, err := CastRel(rel)
	if err != nil {
		return nil, err
	}
	var p *Path
	if kernel.IsReversed() {
		p, err = NewPath(end, kernel.Reversed(), start)
	} else {
		p, err = NewPath(start, kernel, end)
	}
	if err != nil {
		return nil, err
	}
	return &Relationship{path: p, rel: p.rels[0]}, nil
}

func newRelationship(start NodeRef, rel *Rel, end NodeRef) *Relationship {
	return &Relationship{
		path: &Path{nodes: []NodeRef{start, end}, rels: []*Rel{rel}},
		rel:  rel,
	}
}

// CastRelationship converts accepted notations to a relationship:
//
//	CastRelationship(relationship)       -> the relationship
//	CastRelationship([3]any{a, t, b})    -> a-[:t]->b
//	CastRelationship([4]any{a, t, b, p}) -> a-[:t p]->b
func CastRelationship(v any) (*Relationship, error) {
	switch arg := v.(type) {
	case *Relationship:
		return arg, nil
	case [3]any:
		return NewRelationship(arg[0], arg[1], arg[2])
	case [4]any:
		r, err := NewRelationship(arg[0], arg[1], arg[2])
		if err != nil {
			return nil, err
		}
		props, ok := arg[3].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w %T to relationship properties", ErrInvalidCast, arg[3])
		}
		if err := r.rel.Props().Replace(props); err != nil {
			return nil, err
		}
		return r, nil
	case []any:
		switch len(arg) {
		case 3:
			return CastRelationship([3]any{arg[0], arg[1], arg[2]})
		case 4:
			return CastRelationship([4]any{arg[0], arg[1], arg[2], arg[3]})
		}
		return nil, fmt.Errorf("%w %d-element sequence to relationship", ErrInvalidCast, len(arg))
	default:
		return nil, fmt.Errorf("%w %T to relationship", ErrInvalidCast, v)
	}
}

// Rel returns the underlying relationship kernel.
func (r *Relationship) Rel() *Rel { return r.rel }

// Type returns the relationship type.
func (r *Relationship) Type() string { return r.rel.Type() }

// StartNode returns the node the relationship leaves.
func (r *Relationship) StartNode() NodeRef { return r.path.StartNode() }

// EndNode returns the node the relationship enters.
func (r *Relationship) EndNode() NodeRef { return r.path.EndNode() }

// Path returns the relationship viewed as a one-step path.
func (r *Relationship) Path() *Path { return r.path }

// Props gives direct access to the kernel's local property set.
func (r *Relationship) Props() *PropertySet { return r.rel.Props() }

// Properties returns the kernel's properties, pulling first if stale.
func (r *Relationship) Properties(ctx context.Context) (map[string]any, error) {
	return r.rel.Properties(ctx)
}

// SetProperty assigns a property, pushing when bound.
func (r *Relationship) SetProperty(ctx context.Context, key string, value any) error {
	return r.rel.SetProperty(ctx, key, value)
}

// Bound reports whether the relationship is attached to a remote resource.
func (r *Relationship) Bound() bool { return r.rel.Bound() }

// Resource returns the bound relationship resource, or ErrUnbound.
func (r *Relationship) Resource() (*rest.Resource, error) { return r.rel.Resource() }

// URI returns the bound relationship URI, or "".
func (r *Relationship) URI() string { return r.rel.URI() }

// Graph returns the graph owning this relationship, or ErrUnbound.
func (r *Relationship) Graph() (*Graph, error) { return r.rel.Graph() }

// ID returns the relationship's canonical integer ID.
func (r *Relationship) ID() (int64, error) { return r.rel.ID() }

// Bind attaches the relationship to a remote relationship URI.
func (r *Relationship) Bind(uri string, metadata map[string]any) error {
	return r.rel.Bind(uri, metadata)
}

// Unbind detaches the relationship.
func (r *Relationship) Unbind() { r.rel.Unbind() }

// Pull refreshes the relationship's type and properties from the server.
func (r *Relationship) Pull(ctx context.Context) error { return r.rel.Pull(ctx) }

// Push writes local properties to the server.
func (r *Relationship) Push(ctx context.Context) error { return r.rel.Push(ctx) }

// Exists reports whether the relationship is still present server-side.
func (r *Relationship) Exists(ctx context.Context) (bool, error) { return r.rel.Exists(ctx) }

// Equal reports relationship equality: bound relationships compare by
// resource identity, unbound ones structurally including both end nodes.
func (r *Relationship) Equal(other *Relationship) bool {
	if other == nil {
		return false
	}
	if r.Bound() && other.Bound() {
		return r.rel.core.sameResource(&other.rel.core.binding)
	}
	if r.Bound() || other.Bound() {
		return false
	}
	return r.path.Equal(other.path)
}

func (r *Relationship) String() string {
	w := &cypherWriter{}
	name := ""
	if r.Bound() {
		if id, err := r.ID(); err == nil {
			name = fmt.Sprintf("R%d", id)
		}
	}
	w.writeRelationship(r, name)
	return w.String()
}
