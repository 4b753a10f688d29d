package graph

import (
	"context"
	"fmt"
	"strings"
)

// MatchSpec selects relationships by end points, type and direction. Nil end
// points match any node; a nil Type matches any type, a string matches one
// type and a []string matches any of several.
type MatchSpec struct {
	Start         *Node
	Type          any
	End           *Node
	Bidirectional bool
	// Limit caps the number of matches; zero means unlimited.
	Limit int
}

// Match streams relationships matching the spec. End point nodes must be
// bound. The returned stream must be drained or closed.
func (g *Graph) Match(ctx context.Context, spec MatchSpec) (*RelationshipStream, error) {
	var (
		query  string
		params = map[string]any{}
	)
	switch {
	case spec.Start == nil && spec.End == nil:
		query = "START a=node(*)"
	case spec.End == nil:
		id, err := spec.Start.ID()
		if err != nil {
			return nil, fmt.Errorf("match start node: %w", err)
		}
		query = "START a=node({A})"
		params["A"] = id
	case spec.Start == nil:
		id, err := spec.End.ID()
		if err != nil {
			return nil, fmt.Errorf("match end node: %w", err)
		}
		query = "START b=node({B})"
		params["B"] = id
	default:
		startID, err := spec.Start.ID()
		if err != nil {
			return nil, fmt.Errorf("match start node: %w", err)
		}
		endID, err := spec.End.ID()
		if err != nil {
			return nil, fmt.Errorf("match end node: %w", err)
		}
		query = "START a=node({A}),b=node({B})"
		params["A"] = startID
		params["B"] = endID
	}

	relClause, err := g.relTypeClause(ctx, spec.Type)
	if err != nil {
		return nil, err
	}
	if spec.Bidirectional {
		query += " MATCH (a)-[r" + relClause + "]-(b) RETURN r"
	} else {
		query += " MATCH (a)-[r" + relClause + "]->(b) RETURN r"
	}
	if spec.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", spec.Limit)
	}

	stream, err := NewQuery(g, query).Stream(ctx, params)
	if err != nil {
		return nil, err
	}
	return &RelationshipStream{stream: stream}, nil
}

// MatchOne returns the first relationship matching the spec, or nil when
// nothing matches.
func (g *Graph) MatchOne(ctx context.Context, spec MatchSpec) (*Relationship, error) {
	spec.Limit = 1
	stream, err := g.Match(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	if !stream.Next() {
		return nil, stream.Err()
	}
	return stream.Relationship(), nil
}

// relTypeClause renders the relationship type filter. Multiple types need
// different separators before and after server version 2: vintage servers
// take :`A`|`B`, newer ones :`A`|:`B`.
func (g *Graph) relTypeClause(ctx context.Context, relType any) (string, error) {
	switch t := relType.(type) {
	case nil:
		return "", nil
	case string:
		return ":`" + escapeBackticks(t) + "`", nil
	case []string:
		if len(t) == 0 {
			return "", nil
		}
		major, err := g.majorVersion(ctx)
		if err != nil {
			return "", err
		}
		separator := "|"
		if major >= 2 {
			separator = "|:"
		}
		quoted := make([]string, len(t))
		for i, name := range t {
			quoted[i] = "`" + escapeBackticks(name) + "`"
		}
		return ":" + strings.Join(quoted, separator), nil
	default:
		return "", fmt.Errorf("%w %T to relationship type", ErrInvalidCast, relType)
	}
}

// RelationshipStream iterates relationships produced by a match.
type RelationshipStream struct {
	stream *ResultStream
	rel    *Relationship
	err    error
}

// Next advances to the next matching relationship.
func (s *RelationshipStream) Next() bool {
	if s.err != nil {
		return false
	}
	if !s.stream.Next() {
		s.err = s.stream.Err()
		return false
	}
	rel, ok := s.stream.Record().Value(0).(*Relationship)
	if !ok {
		s.err = fmt.Errorf("match returned %T, not a relationship", s.stream.Record().Value(0))
		s.stream.Close()
		return false
	}
	s.rel = rel
	return true
}

// Relationship returns the match Next advanced to.
func (s *RelationshipStream) Relationship() *Relationship { return s.rel }

// Err returns the first error encountered while matching.
func (s *RelationshipStream) Err() error { return s.err }

// Close releases the stream early.
func (s *RelationshipStream) Close() error { return s.stream.Close() }
