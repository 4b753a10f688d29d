package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adampassword/neorest/pkg/graph"
)

// matchFixture seeds Alice-KNOWS->Bob, Alice-LIKES->Carol, Carol-KNOWS->Alice.
type matchFixture struct {
	alice, bob, carol *graph.Node
}

func seedMatchFixture(t *testing.T) (*graph.Graph, matchFixture) {
	t.Helper()
	g, srv := openTestGraph(t)
	ctx := context.Background()
	a := srv.SeedNode(map[string]any{"name": "Alice"})
	b := srv.SeedNode(map[string]any{"name": "Bob"})
	c := srv.SeedNode(map[string]any{"name": "Carol"})
	srv.SeedRel(a, "KNOWS", b, nil)
	srv.SeedRel(a, "LIKES", c, nil)
	srv.SeedRel(c, "KNOWS", a, nil)

	alice, err := g.NodeByID(ctx, a)
	require.NoError(t, err)
	bob, err := g.NodeByID(ctx, b)
	require.NoError(t, err)
	carol, err := g.NodeByID(ctx, c)
	require.NoError(t, err)
	return g, matchFixture{alice: alice, bob: bob, carol: carol}
}

func drainMatch(t *testing.T, stream *graph.RelationshipStream) []*graph.Relationship {
	t.Helper()
	var rels []*graph.Relationship
	for stream.Next() {
		rels = append(rels, stream.Relationship())
	}
	require.NoError(t, stream.Err())
	return rels
}

func TestMatchAll(t *testing.T) {
	g, _ := seedMatchFixture(t)
	stream, err := g.Match(context.Background(), graph.MatchSpec{})
	require.NoError(t, err)
	assert.Len(t, drainMatch(t, stream), 3)
}

func TestMatchOutgoingFromNode(t *testing.T) {
	g, fx := seedMatchFixture(t)
	stream, err := g.Match(context.Background(), graph.MatchSpec{Start: fx.alice})
	require.NoError(t, err)
	rels := drainMatch(t, stream)
	assert.Len(t, rels, 2, "only rels leaving Alice")
}

func TestMatchByType(t *testing.T) {
	g, fx := seedMatchFixture(t)
	stream, err := g.Match(context.Background(), graph.MatchSpec{Start: fx.alice, Type: "KNOWS"})
	require.NoError(t, err)
	rels := drainMatch(t, stream)
	require.Len(t, rels, 1)
	assert.Equal(t, "KNOWS", rels[0].Type())
}

func TestMatchByTypeList(t *testing.T) {
	g, fx := seedMatchFixture(t)
	stream, err := g.Match(context.Background(), graph.MatchSpec{
		Start: fx.alice,
		Type:  []string{"KNOWS", "LIKES"},
	})
	require.NoError(t, err)
	assert.Len(t, drainMatch(t, stream), 2)
}

func TestMatchBidirectional(t *testing.T) {
	g, fx := seedMatchFixture(t)
	stream, err := g.Match(context.Background(), graph.MatchSpec{
		Start:         fx.alice,
		Type:          "KNOWS",
		Bidirectional: true,
	})
	require.NoError(t, err)
	assert.Len(t, drainMatch(t, stream), 2, "both directions count")
}

func TestMatchBetween(t *testing.T) {
	g, fx := seedMatchFixture(t)
	stream, err := g.Match(context.Background(), graph.MatchSpec{Start: fx.alice, End: fx.bob})
	require.NoError(t, err)
	rels := drainMatch(t, stream)
	require.Len(t, rels, 1)
	assert.Equal(t, "KNOWS", rels[0].Type())
}

func TestMatchIncoming(t *testing.T) {
	g, fx := seedMatchFixture(t)
	stream, err := g.Match(context.Background(), graph.MatchSpec{End: fx.alice})
	require.NoError(t, err)
	rels := drainMatch(t, stream)
	require.Len(t, rels, 1)
	assert.Equal(t, "KNOWS", rels[0].Type())
}

func TestMatchLimit(t *testing.T) {
	g, _ := seedMatchFixture(t)
	stream, err := g.Match(context.Background(), graph.MatchSpec{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, drainMatch(t, stream), 2)
}

func TestMatchOne(t *testing.T) {
	g, fx := seedMatchFixture(t)
	rel, err := g.MatchOne(context.Background(), graph.MatchSpec{Start: fx.alice, Type: "LIKES"})
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, "LIKES", rel.Type())

	rel, err = g.MatchOne(context.Background(), graph.MatchSpec{Start: fx.bob, Type: "HATES"})
	require.NoError(t, err)
	assert.Nil(t, rel, "no match yields nil, not an error")
}

func TestMatchUnboundStart(t *testing.T) {
	g, _ := seedMatchFixture(t)
	_, err := g.Match(context.Background(), graph.MatchSpec{Start: graph.NewNode()})
	assert.Error(t, err)
}

func TestNodeMatchHelpers(t *testing.T) {
	_, fx := seedMatchFixture(t)
	ctx := context.Background()

	stream, err := fx.alice.MatchOutgoing(ctx, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, drainMatch(t, stream), 2)

	stream, err = fx.alice.MatchIncoming(ctx, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, drainMatch(t, stream), 1)

	stream, err = fx.alice.Match(ctx, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, drainMatch(t, stream), 3)
}
