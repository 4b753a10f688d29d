package graph

import (
	"context"
	"fmt"

	"github.com/adampassword/neorest/pkg/rest"
)

// NodeRef is anything that can stand in the node position of a path: a Node,
// a NodePointer referencing a not-yet-created batch entity, or nil for an
// unspecified node.
type NodeRef interface {
	nodeRef()
}

// NodePointer is a placeholder referencing a node by its zero-based position
// within an in-flight batch of not-yet-created entities. It resolves to a
// concrete node only once the batch commits.
type NodePointer struct {
	Address int
}

func (*NodePointer) nodeRef() {}

// Equal reports whether two pointers reference the same batch position.
func (p *NodePointer) Equal(other *NodePointer) bool {
	return other != nil && p.Address == other.Address
}

func (p *NodePointer) String() string {
	return fmt.Sprintf("{%d}", p.Address)
}

// Node is a graph node: a property set plus a label set, optionally bound to
// a remote node resource.
//
//	alice := graph.NewNode("Person")
//	alice.Props().Set("name", "Alice")
//
// Bound nodes refresh lazily: labels and properties are marked stale after
// hydration from a payload that did not embed them, and the accessors pull
// from the server on first use.
type Node struct {
	binding
	g      *Graph
	props  *PropertySet
	labels *LabelSet

	staleProps  bool
	staleLabels bool
	// legacy marks nodes bound to servers without label support.
	legacy bool
}

func (*Node) nodeRef() {}

// NewNode creates an unbound node carrying the given labels.
func NewNode(labels ...string) *Node {
	return &Node{
		props:  &PropertySet{values: make(map[string]any)},
		labels: NewLabelSet(labels...),
	}
}

// CastNode converts accepted notations to a node reference:
//
//	CastNode(nil)                  -> nil reference
//	CastNode(node)                 -> the node
//	CastNode(pointer)              -> the pointer
//	CastNode(3)                    -> NodePointer{3}
//	CastNode("Person")             -> (:Person)
//	CastNode(map[string]any{...})  -> ({...})
func CastNode(v any) (NodeRef, error) {
	switch arg := v.(type) {
	case nil:
		return nil, nil
	case *Node:
		return arg, nil
	case *NodePointer:
		return arg, nil
	case int:
		return &NodePointer{Address: arg}, nil
	case int64:
		return &NodePointer{Address: int(arg)}, nil
	case string:
		return NewNode(arg), nil
	case map[string]any:
		n := NewNode()
		if err := n.props.Replace(arg); err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w %T to node", ErrInvalidCast, v)
	}
}

// Graph returns the graph owning this node, or ErrUnbound.
func (n *Node) Graph() (*Graph, error) {
	if n.g == nil {
		return nil, ErrUnbound
	}
	return n.g, nil
}

// ID returns the node's canonical integer ID, derived from its resource URI.
func (n *Node) ID() (int64, error) {
	res, err := n.Resource()
	if err != nil {
		return 0, err
	}
	return entityID(res)
}

// Props gives direct access to the local property set without triggering a
// refresh. Use Properties to honor staleness.
func (n *Node) Props() *PropertySet { return n.props }

// LabelSet gives direct access to the local label set without triggering a
// refresh.
func (n *Node) LabelSet() *LabelSet { return n.labels }

// Properties returns the node's properties, pulling from the server first if
// the bound node is stale.
func (n *Node) Properties(ctx context.Context) (map[string]any, error) {
	if n.Bound() && n.staleProps {
		if err := n.Pull(ctx); err != nil {
			return nil, err
		}
	}
	return n.props.Map(), nil
}

// Labels returns the node's labels, pulling from the server first if the
// bound node is stale.
func (n *Node) Labels(ctx context.Context) ([]string, error) {
	if n.legacy {
		return nil, fmt.Errorf("node labels: %w", ErrServerCapability)
	}
	if n.Bound() && n.staleLabels {
		if err := n.Pull(ctx); err != nil {
			return nil, err
		}
	}
	return n.labels.Values(), nil
}

// SetProperty assigns a property locally and, when the node is bound, pushes
// the full property set to the server.
func (n *Node) SetProperty(ctx context.Context, key string, value any) error {
	if err := n.props.Set(key, value); err != nil {
		return err
	}
	if n.Bound() {
		return n.props.Push(ctx)
	}
	return nil
}

// Bind attaches the node to a remote node URI, optionally seeded with the
// node's hypermedia payload. Sub-resources for properties and labels are
// derived from the payload when present.
func (n *Node) Bind(uri string, metadata map[string]any) error {
	var meta any
	if metadata != nil {
		meta = metadata
	}
	res, err := rest.NewResourceIn(rest.Default, uri, meta)
	if err != nil {
		return err
	}
	n.bindResource(res)

	propsURI, _ := stringEntry(metadata, "properties")
	if propsURI == "" {
		propsURI = uri + "/properties"
	}
	propsRes, err := rest.NewResource(propsURI)
	if err != nil {
		return err
	}
	n.props.bindResource(propsRes)

	labelsURI, _ := stringEntry(metadata, "labels")
	_, hasPropsLink := metadata["properties"]
	_, hasDataSection := metadata["data"]
	if labelsURI == "" && (hasPropsLink || hasDataSection) {
		// Only a full hypermedia document proves the server omits label
		// links (pre-2.0). A bare self reference carries no such signal.
		n.legacy = true
	} else {
		if labelsURI == "" {
			labelsURI = uri + "/labels"
		}
		labelsRes, err := rest.NewResource(labelsURI)
		if err != nil {
			return err
		}
		n.labels.bindResource(labelsRes)
	}

	if base, err := graphBaseURI(res.URI(), "node"); err == nil {
		if g, err := New(base); err == nil {
			n.g = g
		}
	}
	return nil
}

// Unbind detaches the node and its sub-resources.
func (n *Node) Unbind() {
	n.binding.Unbind()
	n.props.Unbind()
	n.labels.Unbind()
	n.g = nil
	n.staleProps = false
	n.staleLabels = false
}

// Pull refreshes properties and labels from the server in one query.
func (n *Node) Pull(ctx context.Context) error {
	g, err := n.Graph()
	if err != nil {
		return err
	}
	id, err := n.ID()
	if err != nil {
		return err
	}
	results, err := NewQuery(g, "START a=node({a}) RETURN a,labels(a)").
		Execute(ctx, map[string]any{"a": id})
	if err != nil {
		return err
	}
	if len(results.Records) == 0 {
		return fmt.Errorf("node %d: %w", id, rest.ErrNotFound)
	}
	values := results.Records[0].Values()
	if pulled, ok := values[0].(*Node); ok && pulled != n {
		n.props.values = pulled.props.Map()
	}
	n.labels.Clear()
	if labels, ok := values[1].([]any); ok {
		for _, label := range labels {
			if text, ok := label.(string); ok {
				n.labels.Add(text)
			}
		}
	}
	n.staleProps = false
	n.staleLabels = false
	return nil
}

// Push writes local properties and labels to the server.
func (n *Node) Push(ctx context.Context) error {
	if err := n.props.Push(ctx); err != nil {
		return err
	}
	if n.legacy {
		return nil
	}
	return n.labels.Push(ctx)
}

// Exists reports whether the node is still present server-side.
func (n *Node) Exists(ctx context.Context) (bool, error) {
	res, err := n.Resource()
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

// Equal reports node equality: bound nodes compare by resource identity;
// unbound nodes compare structurally by labels and properties; a bound and
// an unbound node are never equal.
func (n *Node) Equal(other *Node) bool {
	if other == nil {
		return false
	}
	if n.Bound() && other.Bound() {
		return n.sameResource(&other.binding)
	}
	if n.Bound() || other.Bound() {
		return false
	}
	return n.labels.Equal(other.labels) && n.props.Equal(other.props)
}

// Match iterates relationships attached to this node, in either direction.
func (n *Node) Match(ctx context.Context, relType any, other *Node, limit int) (*RelationshipStream, error) {
	g, err := n.Graph()
	if err != nil {
		return nil, err
	}
	return g.Match(ctx, MatchSpec{Start: n, Type: relType, End: other, Bidirectional: true, Limit: limit})
}

// MatchOutgoing iterates relationships where this node is the start node.
func (n *Node) MatchOutgoing(ctx context.Context, relType any, end *Node, limit int) (*RelationshipStream, error) {
	g, err := n.Graph()
	if err != nil {
		return nil, err
	}
	return g.Match(ctx, MatchSpec{Start: n, Type: relType, End: end, Limit: limit})
}

// MatchIncoming iterates relationships where this node is the end node.
func (n *Node) MatchIncoming(ctx context.Context, relType any, start *Node, limit int) (*RelationshipStream, error) {
	g, err := n.Graph()
	if err != nil {
		return nil, err
	}
	return g.Match(ctx, MatchSpec{Start: start, Type: relType, End: n, Limit: limit})
}

// Isolate deletes all relationships connected to this node.
func (n *Node) Isolate(ctx context.Context) error {
	g, err := n.Graph()
	if err != nil {
		return err
	}
	id, err := n.ID()
	if err != nil {
		return err
	}
	return NewQuery(g, "START a=node({a}) MATCH (a)-[r]-(b) DELETE r").
		Run(ctx, map[string]any{"a": id})
}

// DeleteRelated deletes this node along with all related nodes and
// relationships.
func (n *Node) DeleteRelated(ctx context.Context) error {
	g, err := n.Graph()
	if err != nil {
		return err
	}
	id, err := n.ID()
	if err != nil {
		return err
	}
	return NewQuery(g, "START a=node({a}) MATCH (a)-[rels*0..]-(z) "+
		"FOREACH(r IN rels| DELETE r) DELETE a, z").
		Run(ctx, map[string]any{"a": id})
}

func (n *Node) String() string {
	w := &cypherWriter{}
	name := ""
	if n.Bound() {
		if id, err := n.ID(); err == nil {
			name = fmt.Sprintf("N%d", id)
		}
	}
	w.writeNode(n, name)
	return w.String()
}

// JoinNodes attempts to unify two node references into one: identical
// references join trivially, two pointers join when their batch addresses
// match, two bound nodes join when their resource identities match, and nil
// joins with anything. All other combinations fail with an UnjoinableError.
func JoinNodes(n, m NodeRef) (NodeRef, error) {
	if isNilRef(n) {
		return m, nil
	}
	if isNilRef(m) || n == m {
		return n, nil
	}
	np, nIsPtr := n.(*NodePointer)
	mp, mIsPtr := m.(*NodePointer)
	if nIsPtr && mIsPtr {
		if np.Equal(mp) {
			return n, nil
		}
		return nil, &UnjoinableError{Position: -1, Reason: fmt.Sprintf("pointers %v and %v differ", np, mp)}
	}
	nn, nIsNode := n.(*Node)
	mn, mIsNode := m.(*Node)
	if nIsNode && mIsNode && nn.Bound() && mn.Bound() {
		if nn.sameResource(&mn.binding) {
			return n, nil
		}
		return nil, &UnjoinableError{Position: -1, Reason: fmt.Sprintf("nodes %s and %s identify different resources", nn.URI(), mn.URI())}
	}
	return nil, &UnjoinableError{Position: -1, Reason: "nodes are not equivalent"}
}

func isNilRef(r NodeRef) bool {
	switch v := r.(type) {
	case nil:
		return true
	case *Node:
		return v == nil
	case *NodePointer:
		return v == nil
	default:
		return false
	}
}

func stringEntry(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}
