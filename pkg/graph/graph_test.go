package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adampassword/neorest/pkg/graph"
	"github.com/adampassword/neorest/pkg/neotest"
	"github.com/adampassword/neorest/pkg/rest"
)

func openTestGraph(t *testing.T, opts ...neotest.Option) (*graph.Graph, *neotest.Server) {
	t.Helper()
	srv := neotest.NewServer(opts...)
	t.Cleanup(srv.Close)
	g, err := graph.Open(context.Background(), srv.URI())
	require.NoError(t, err)
	return g, srv
}

func TestOpenDiscoversGraphURI(t *testing.T) {
	g, srv := openTestGraph(t)
	assert.Equal(t, srv.GraphURI(), g.URI())

	version, err := g.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", version)

	ok, err := g.SupportsCypherTransactions(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLegacyServerCapabilities(t *testing.T) {
	g, _ := openTestGraph(t, neotest.Legacy())

	version, err := g.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.9.4", version)

	ok, err := g.SupportsCypherTransactions(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.NodeLabels(context.Background())
	assert.ErrorIs(t, err, graph.ErrServerCapability)
}

func TestGraphOrderAndSize(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()

	order, err := g.Order(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), order)

	a := srv.SeedNode(map[string]any{"name": "Alice"})
	b := srv.SeedNode(map[string]any{"name": "Bob"})
	srv.SeedRel(a, "KNOWS", b, nil)

	order, err = g.Order(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), order)

	size, err := g.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestNodeByID(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	id := srv.SeedNode(map[string]any{"name": "Alice"}, "Person")

	node, err := g.NodeByID(ctx, id)
	require.NoError(t, err)
	gotID, err := node.ID()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	props, err := node.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", props["name"])

	labels, err := node.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Person"}, labels)

	_, err = g.NodeByID(ctx, 9999)
	assert.True(t, rest.IsNotFound(err))
}

func TestNodeByIDIdentity(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	id := srv.SeedNode(map[string]any{"name": "Alice"})

	first, err := g.NodeByID(ctx, id)
	require.NoError(t, err)
	second, err := g.NodeByID(ctx, id)
	require.NoError(t, err)
	assert.Same(t, first, second, "one instance per bound node")
}

func TestRelationshipByID(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	a := srv.SeedNode(nil)
	b := srv.SeedNode(nil)
	id := srv.SeedRel(a, "KNOWS", b, map[string]any{"since": 1999})

	rel, err := g.RelationshipByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "KNOWS", rel.Type())
	props, err := rel.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1999), props["since"])

	start, ok := rel.StartNode().(*graph.Node)
	require.True(t, ok)
	startID, err := start.ID()
	require.NoError(t, err)
	assert.Equal(t, a, startID)
}

func TestRelationshipEndpointsStayLabelCapable(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	a := srv.SeedNode(map[string]any{"name": "Alice"}, "Person")
	b := srv.SeedNode(nil)
	id := srv.SeedRel(a, "KNOWS", b, nil)

	// Endpoint refs carry only a self URI; hydrating the relationship first
	// must not downgrade the cached nodes to label-incapable.
	rel, err := g.RelationshipByID(ctx, id)
	require.NoError(t, err)
	start, ok := rel.StartNode().(*graph.Node)
	require.True(t, ok)

	labels, err := start.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Person"}, labels)

	alice, err := g.NodeByID(ctx, a)
	require.NoError(t, err)
	assert.Same(t, start, alice, "the cache keeps one instance per node")
	labels, err = alice.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Person"}, labels)
}

func TestGraphCreate(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()

	created, err := g.Create(ctx,
		map[string]any{"name": "Alice"},
		map[string]any{"name": "Bob"},
		[]any{0, "KNOWS", 1, map[string]any{"since": 2006}},
	)
	require.NoError(t, err)
	require.Len(t, created, 3)

	alice, ok := created[0].(*graph.Node)
	require.True(t, ok)
	assert.True(t, alice.Bound())
	name, _ := alice.Props().Get("name")
	assert.Equal(t, "Alice", name)

	rel, ok := created[2].(*graph.Relationship)
	require.True(t, ok)
	assert.Equal(t, "KNOWS", rel.Type())
	since, _ := rel.Props().Get("since")
	assert.Equal(t, float64(2006), since)

	assert.Equal(t, int64(2), srv.NodeCount())
	assert.Equal(t, int64(1), srv.RelCount())
}

func TestGraphCreateNodeWithLabels(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()

	node := graph.NewNode("Person")
	require.NoError(t, node.Props().Set("name", "Alice"))
	created, err := g.Create(ctx, node)
	require.NoError(t, err)
	require.Len(t, created, 1)

	bound := created[0].(*graph.Node)
	id, err := bound.ID()
	require.NoError(t, err)
	labels, ok := srv.NodeLabelsOf(id)
	require.True(t, ok)
	assert.Equal(t, []string{"Person"}, labels)
	assert.Equal(t, []string{"Person"}, bound.LabelSet().Values())
}

func TestGraphDelete(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()

	created, err := g.Create(ctx,
		map[string]any{},
		map[string]any{},
		[]any{0, "KNOWS", 1},
	)
	require.NoError(t, err)

	// Relationships go first so the nodes are orphaned by deletion time.
	require.NoError(t, g.Delete(ctx, created[2], created[0], created[1]))
	assert.Equal(t, int64(0), srv.NodeCount())
	assert.Equal(t, int64(0), srv.RelCount())
}

func TestDeleteAttachedNodeConflicts(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	a := srv.SeedNode(nil)
	b := srv.SeedNode(nil)
	srv.SeedRel(a, "KNOWS", b, nil)

	node, err := g.NodeByID(ctx, a)
	require.NoError(t, err)
	err = g.Delete(ctx, node)
	require.Error(t, err)
	assert.Equal(t, int64(2), srv.NodeCount())
}

func TestGraphGetProperties(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	a := srv.SeedNode(map[string]any{"name": "Alice"})
	b := srv.SeedNode(nil)

	nodeA, err := g.NodeByID(ctx, a)
	require.NoError(t, err)
	nodeB, err := g.NodeByID(ctx, b)
	require.NoError(t, err)

	props, err := g.GetProperties(ctx, nodeA, nodeB)
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, "Alice", props[0]["name"])
	assert.Empty(t, props[1])
}

func TestGraphFind(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	srv.SeedNode(map[string]any{"name": "Alice"}, "Person")
	srv.SeedNode(map[string]any{"name": "Bob"}, "Person")
	srv.SeedNode(map[string]any{"name": "Carol"}, "Animal")

	people, err := g.Find(ctx, "Person", "", nil)
	require.NoError(t, err)
	assert.Len(t, people, 2)

	alices, err := g.Find(ctx, "Person", "name", "Alice")
	require.NoError(t, err)
	require.Len(t, alices, 1)
	name, _ := alices[0].Props().Get("name")
	assert.Equal(t, "Alice", name)

	none, err := g.Find(ctx, "Ghost", "", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGraphVocabulary(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	a := srv.SeedNode(nil, "Person")
	b := srv.SeedNode(nil, "Animal")
	srv.SeedRel(a, "KNOWS", b, nil)
	srv.SeedRel(b, "LIKES", a, nil)

	labels, err := g.NodeLabels(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Person", "Animal"}, labels)

	types, err := g.RelationshipTypes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"KNOWS", "LIKES"}, types)
}

func TestGraphClear(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	a := srv.SeedNode(nil)
	b := srv.SeedNode(nil)
	srv.SeedRel(a, "KNOWS", b, nil)

	require.NoError(t, g.Clear(ctx))
	assert.Equal(t, int64(0), srv.NodeCount())
	assert.Equal(t, int64(0), srv.RelCount())
}

func TestCreatePath(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()

	p, err := g.CreatePath(ctx,
		map[string]any{"name": "Alice"},
		"KNOWS",
		map[string]any{"name": "Bob"},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Order())
	assert.Equal(t, 1, p.Size())
	assert.Equal(t, int64(2), srv.NodeCount())
	assert.Equal(t, int64(1), srv.RelCount())

	start, ok := p.StartNode().(*graph.Node)
	require.True(t, ok)
	assert.True(t, start.Bound())
}

func TestCreatePathAnchorsBoundNodes(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	id := srv.SeedNode(map[string]any{"name": "Alice"})
	alice, err := g.NodeByID(ctx, id)
	require.NoError(t, err)

	p, err := g.CreatePath(ctx, alice, "KNOWS", map[string]any{"name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), srv.NodeCount(), "the anchored node is reused")

	start, ok := p.StartNode().(*graph.Node)
	require.True(t, ok)
	startID, err := start.ID()
	require.NoError(t, err)
	assert.Equal(t, id, startID)
}

func TestMergePath(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()

	p, err := g.MergePath(ctx, map[string]any{"name": "Alice"}, "KNOWS", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Size())
	assert.Equal(t, int64(2), srv.NodeCount())
}

func TestNodeSetPropertyPushes(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	id := srv.SeedNode(map[string]any{"name": "Alice"})

	node, err := g.NodeByID(ctx, id)
	require.NoError(t, err)
	require.NoError(t, node.SetProperty(ctx, "age", 33))

	props, ok := srv.NodePropsOf(id)
	require.True(t, ok)
	assert.Equal(t, "Alice", props["name"])
	assert.Equal(t, float64(33), props["age"])
}

func TestNodeExists(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	id := srv.SeedNode(nil)

	node, err := g.NodeByID(ctx, id)
	require.NoError(t, err)
	ok, err := node.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, g.Delete(ctx, node))
	ok, err = node.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNodeIsolateAndDeleteRelated(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	a := srv.SeedNode(nil)
	b := srv.SeedNode(nil)
	c := srv.SeedNode(nil)
	srv.SeedRel(a, "KNOWS", b, nil)
	srv.SeedRel(c, "KNOWS", a, nil)

	node, err := g.NodeByID(ctx, a)
	require.NoError(t, err)
	require.NoError(t, node.Isolate(ctx))
	assert.Equal(t, int64(0), srv.RelCount())
	assert.Equal(t, int64(3), srv.NodeCount())

	srv.SeedRel(a, "KNOWS", b, nil)
	require.NoError(t, node.DeleteRelated(ctx))
	assert.Equal(t, int64(1), srv.NodeCount(), "only the disconnected node survives")
}

func TestNodePushLabels(t *testing.T) {
	g, srv := openTestGraph(t)
	ctx := context.Background()
	id := srv.SeedNode(nil, "Person")

	node, err := g.NodeByID(ctx, id)
	require.NoError(t, err)
	_, err = node.Labels(ctx)
	require.NoError(t, err)

	node.LabelSet().Add("Admin")
	require.NoError(t, node.Push(ctx))

	labels, ok := srv.NodeLabelsOf(id)
	require.True(t, ok)
	assert.Equal(t, []string{"Admin", "Person"}, labels)
}

func TestSchemaRoundTrip(t *testing.T) {
	g, _ := openTestGraph(t)
	ctx := context.Background()
	schema := g.Schema()

	keys, err := schema.IndexedPropertyKeys(ctx, "Person")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, schema.CreateIndex(ctx, "Person", "name"))
	keys, err = schema.IndexedPropertyKeys(ctx, "Person")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, keys)

	// Creating the same index twice conflicts.
	assert.Error(t, schema.CreateIndex(ctx, "Person", "name"))

	require.NoError(t, schema.DropIndex(ctx, "Person", "name"))
	err = schema.DropIndex(ctx, "Person", "name")
	assert.Error(t, err)

	require.NoError(t, schema.AddUniqueConstraint(ctx, "Person", "email"))
	constraints, err := schema.UniqueConstraints(ctx, "Person")
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, constraints)

	// An index clashing with an existing constraint conflicts.
	assert.Error(t, schema.CreateIndex(ctx, "Person", "email"))

	require.NoError(t, schema.RemoveUniqueConstraint(ctx, "Person", "email"))

	_, err = schema.IndexedPropertyKeys(ctx, "")
	assert.ErrorIs(t, err, graph.ErrEmptySchemaArg)
}
