package graph

import (
	"context"
	"fmt"
	"strings"
)

// Path is an alternating chain of nodes and relationship kernels. A path with
// n relationships always spans n+1 node positions; unspecified positions hold
// a nil reference.
//
//	abc, _ := graph.NewPath(alice, "KNOWS", bob, graph.NewRev("KNOWS"), carol)
//
// renders as ({name:"Alice"})-[:KNOWS]->({name:"Bob"})<-[:KNOWS]-({name:"Carol"}).
type Path struct {
	nodes []NodeRef
	rels  []*Rel

	relationships []*Relationship
	metadata      map[string]any
}

// NewPath assembles a path from an alternating sequence of node-like and
// rel-like values. Paths and relationships may appear in node positions and
// are spliced in, reversing when only their far end joins; adjacent node
// positions are unified, and an UnjoinableError reports the position of the
// first value that cannot be joined.
func NewPath(entities ...any) (*Path, error) {
	var (
		nodes []NodeRef
		rels  []*Rel
	)

	atNodePosition := func() bool { return len(nodes) == len(rels) }

	joinNode := func(index int, node NodeRef) error {
		if atNodePosition() {
			nodes = append(nodes, node)
			return nil
		}
		joined, err := JoinNodes(nodes[len(nodes)-1], node)
		if err != nil {
			return positionedUnjoinable(err, index)
		}
		nodes[len(nodes)-1] = joined
		return nil
	}

	joinRel := func(index int, rel *Rel) error {
		if atNodePosition() {
			return &UnjoinableError{Position: index, Reason: "rel in node position"}
		}
		rels = append(rels, rel)
		return nil
	}

	joinPath := func(index int, path *Path) error {
		if atNodePosition() {
			nodes = append(nodes, path.nodes...)
			rels = append(rels, path.rels...)
			return nil
		}
		last := len(nodes) - 1
		if joined, err := JoinNodes(nodes[last], path.StartNode()); err == nil {
			nodes[last] = joined
			nodes = append(nodes, path.nodes[1:]...)
			rels = append(rels, path.rels...)
			return nil
		}
		joined, err := JoinNodes(nodes[last], path.EndNode())
		if err != nil {
			return positionedUnjoinable(err, index)
		}
		nodes[last] = joined
		for i := len(path.nodes) - 2; i >= 0; i-- {
			nodes = append(nodes, path.nodes[i])
		}
		for i := len(path.rels) - 1; i >= 0; i-- {
			rels = append(rels, path.rels[i].Reversed())
		}
		return nil
	}

	for i, entity := range entities {
		switch arg := entity.(type) {
		case *Path:
			if err := joinPath(i, arg); err != nil {
				return nil, err
			}
		case *Relationship:
			if err := joinPath(i, arg.path); err != nil {
				return nil, err
			}
		case *Rel:
			if err := joinRel(i, arg); err != nil {
				return nil, err
			}
		case *Node, *NodePointer, nil:
			ref, _ := CastNode(arg)
			if err := joinNode(i, ref); err != nil {
				return nil, err
			}
		default:
			if atNodePosition() {
				ref, err := CastNode(arg)
				if err != nil {
					return nil, err
				}
				if err := joinNode(i, ref); err != nil {
					return nil, err
				}
			} else {
				rel, err := CastRel(arg)
				if err != nil {
					return nil, err
				}
				if err := joinRel(i, rel); err != nil {
					return nil, err
				}
			}
		}
	}
	// The chain always closes on a node position.
	if err := joinNode(len(entities), nil); err != nil {
		return nil, err
	}

	return &Path{nodes: nodes, rels: rels}, nil
}

func positionedUnjoinable(err error, index int) error {
	if und, ok := err.(*UnjoinableError); ok {
		return &UnjoinableError{Position: index, Reason: und.Reason}
	}
	return err
}

// Order is the number of node positions in the path.
func (p *Path) Order() int { return len(p.nodes) }

// Size is the number of relationships in the path.
func (p *Path) Size() int { return len(p.rels) }

// StartNode returns the first node position.
func (p *Path) StartNode() NodeRef { return p.nodes[0] }

// EndNode returns the last node position.
func (p *Path) EndNode() NodeRef { return p.nodes[len(p.nodes)-1] }

// Nodes returns the node positions in order.
func (p *Path) Nodes() []NodeRef {
	out := make([]NodeRef, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// Rels returns the relationship kernels in order.
func (p *Path) Rels() []*Rel {
	out := make([]*Rel, len(p.rels))
	copy(out, p.rels)
	return out
}

// Relationships materializes each step as a start-to-end Relationship,
// unreversing kernels so every returned relationship reads forward.
func (p *Path) Relationships() []*Relationship {
	if p.relationships == nil {
		p.relationships = make([]*Relationship, len(p.rels))
		for i, rel := range p.rels {
			start, end := p.nodes[i], p.nodes[i+1]
			if rel.IsReversed() {
				start, end = end, start
				rel = rel.Reversed()
			}
			p.relationships[i] = newRelationship(start, rel, end)
		}
	}
	return p.relationships
}

// Segment returns the single-relationship sub-path at the given index.
// Negative indexes count from the end.
func (p *Path) Segment(index int) (*Path, error) {
	i := index
	if i < 0 {
		i += len(p.rels)
	}
	if i < 0 || i >= len(p.rels) {
		return nil, fmt.Errorf("path segment index %d out of range", index)
	}
	return &Path{
		nodes: []NodeRef{p.nodes[i], p.nodes[i+1]},
		rels:  []*Rel{p.rels[i]},
	}, nil
}

// Slice returns the sub-path covering relationships [from, to).
func (p *Path) Slice(from, to int) (*Path, error) {
	if from < 0 || to > len(p.rels) || from > to {
		return nil, fmt.Errorf("path slice [%d:%d] out of range", from, to)
	}
	nodes := make([]NodeRef, to-from+1)
	copy(nodes, p.nodes[from:to+1])
	rels := make([]*Rel, to-from)
	copy(rels, p.rels[from:to])
	return &Path{nodes: nodes, rels: rels}, nil
}

// Equal reports positional equality of nodes and rels.
func (p *Path) Equal(other *Path) bool {
	if other == nil || len(p.nodes) != len(other.nodes) || len(p.rels) != len(other.rels) {
		return false
	}
	for i := range p.nodes {
		if !refEqual(p.nodes[i], other.nodes[i]) {
			return false
		}
	}
	for i := range p.rels {
		if !p.rels[i].Equal(other.rels[i]) {
			return false
		}
	}
	return true
}

func refEqual(a, b NodeRef) bool {
	if isNilRef(a) || isNilRef(b) {
		return isNilRef(a) && isNilRef(b)
	}
	if an, ok := a.(*Node); ok {
		bn, ok := b.(*Node)
		return ok && an.Equal(bn)
	}
	if ap, ok := a.(*NodePointer); ok {
		bp, ok := b.(*NodePointer)
		return ok && ap.Equal(bp)
	}
	return false
}

func (p *Path) String() string {
	w := &cypherWriter{}
	w.writePath(p)
	return w.String()
}

// createQuery builds the Cypher statement materializing this path. Bound
// nodes are anchored by ID through START, unbound nodes inline their
// properties, and nil positions stay free for the server to fill.
func (p *Path) createQuery(unique bool) (string, map[string]any, error) {
	var (
		starts  []string
		pattern []string
		params  = map[string]any{}
	)

	appendNode := func(i int, ref NodeRef) error {
		switch node := ref.(type) {
		case nil:
			pattern = append(pattern, fmt.Sprintf("(n%d)", i))
		case *Node:
			if node == nil {
				pattern = append(pattern, fmt.Sprintf("(n%d)", i))
			} else if node.Bound() {
				id, err := node.ID()
				if err != nil {
					return err
				}
				pattern = append(pattern, fmt.Sprintf("(n%d)", i))
				starts = append(starts, fmt.Sprintf("n%d=node({i%d})", i, i))
				params[fmt.Sprintf("i%d", i)] = id
			} else {
				pattern = append(pattern, fmt.Sprintf("(n%d {p%d})", i, i))
				params[fmt.Sprintf("p%d", i)] = node.Props().Map()
			}
		case *NodePointer:
			return fmt.Errorf("cannot create path containing batch pointer %v", node)
		default:
			return fmt.Errorf("%w %T in path", ErrInvalidCast, ref)
		}
		return nil
	}

	appendRel := func(i int, rel *Rel) {
		left, right := "-", "->"
		if rel.IsReversed() {
			left, right = "<-", "-"
		}
		if rel.Props().Len() > 0 {
			pattern = append(pattern, fmt.Sprintf("%s[r%d:`%s` {q%d}]%s", left, i, escapeBackticks(rel.Type()), i, right))
			params[fmt.Sprintf("q%d", i)] = rel.Props().Map()
		} else {
			pattern = append(pattern, fmt.Sprintf("%s[r%d:`%s`]%s", left, i, escapeBackticks(rel.Type()), right))
		}
	}

	if err := appendNode(0, p.nodes[0]); err != nil {
		return "", nil, err
	}
	for i, rel := range p.rels {
		appendRel(i, rel)
		if err := appendNode(i+1, p.nodes[i+1]); err != nil {
			return "", nil, err
		}
	}

	query := ""
	if len(starts) > 0 {
		query = "START " + strings.Join(starts, ",") + " "
	}
	verb := "CREATE"
	if unique {
		verb = "CREATE UNIQUE"
	}
	query += verb + " p=" + strings.Join(pattern, "") + " RETURN p"
	return query, params, nil
}

func (p *Path) create(ctx context.Context, g *Graph, unique bool) (*Path, error) {
	query, params, err := p.createQuery(unique)
	if err != nil {
		return nil, err
	}
	results, err := NewQuery(g, query).Execute(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(results.Records) == 0 {
		return nil, fmt.Errorf("path create returned no rows")
	}
	created, ok := results.Records[0].Values()[0].(*Path)
	if !ok {
		return nil, fmt.Errorf("path create returned %T", results.Records[0].Values()[0])
	}
	return created, nil
}
