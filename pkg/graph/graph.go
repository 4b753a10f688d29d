package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/adampassword/neorest/pkg/rest"
)

// DefaultURI locates the graph database on a local default server.
const DefaultURI = rest.DefaultURI + "db/data/"

var (
	graphsMu sync.Mutex
	graphs   = map[string]*Graph{}
)

// Graph is a handle on one graph database. Instances are singletons per
// normalized URI, each carrying weak identity caches so that hydrating the
// same remote node or relationship twice yields the same local instance.
type Graph struct {
	res *rest.Resource

	nodeCache *entityCache[Node]
	relCache  *entityCache[Relationship]

	schemaOnce sync.Once
	schema     *Schema
}

// New returns the graph handle for the given graph database URI, typically
// ending in /db/data/. The handle is shared across calls with the same URI
// and construction performs no I/O.
func New(uri string) (*Graph, error) {
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	res, err := rest.NewResource(uri)
	if err != nil {
		return nil, err
	}
	graphsMu.Lock()
	defer graphsMu.Unlock()
	if g, ok := graphs[res.URI()]; ok {
		return g, nil
	}
	g := &Graph{
		res:       res,
		nodeCache: newEntityCache[Node](),
		relCache:  newEntityCache[Relationship](),
	}
	graphs[res.URI()] = g
	return g, nil
}

// Open discovers the graph database behind a server's service root URI.
func Open(ctx context.Context, rootURI string) (*Graph, error) {
	root, err := rest.Root(rootURI)
	if err != nil {
		return nil, err
	}
	graphURI, err := root.GraphURI(ctx)
	if err != nil {
		return nil, err
	}
	return New(graphURI)
}

// Resource returns the graph's own REST resource.
func (g *Graph) Resource() *rest.Resource { return g.res }

// URI returns the graph database URI.
func (g *Graph) URI() string { return g.res.URI() }

// Metadata returns the graph's discovery document, fetching it on first use.
func (g *Graph) Metadata(ctx context.Context) (map[string]any, error) {
	return g.res.MetadataMap(ctx)
}

func (g *Graph) metadataURI(ctx context.Context, key string) (string, error) {
	meta, err := g.Metadata(ctx)
	if err != nil {
		return "", err
	}
	uri, ok := meta[key].(string)
	if !ok {
		return "", fmt.Errorf("graph %s: no %q endpoint advertised", g.URI(), key)
	}
	return uri, nil
}

// Version returns the server's product version string.
func (g *Graph) Version(ctx context.Context) (string, error) {
	meta, err := g.Metadata(ctx)
	if err != nil {
		return "", err
	}
	version, ok := meta["neo4j_version"].(string)
	if !ok {
		return "", fmt.Errorf("graph %s: no version advertised", g.URI())
	}
	return version, nil
}

func (g *Graph) majorVersion(ctx context.Context) (int, error) {
	version, err := g.Version(ctx)
	if err != nil {
		return 0, err
	}
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("graph %s: unparseable version %q", g.URI(), version)
	}
	return major, nil
}

// SupportsCypherTransactions reports whether the server advertises the
// transactional Cypher endpoint.
func (g *Graph) SupportsCypherTransactions(ctx context.Context) (bool, error) {
	meta, err := g.Metadata(ctx)
	if err != nil {
		return false, err
	}
	_, ok := meta["transaction"]
	return ok, nil
}

// relativeURI strips the graph base from an entity URI, failing for URIs
// belonging to a different graph.
func (g *Graph) relativeURI(uri string) (string, error) {
	base := g.URI()
	if !strings.HasPrefix(uri, base) {
		return "", fmt.Errorf("%s does not belong to graph %s", uri, base)
	}
	return uri[len(base):], nil
}

// Order returns the number of nodes in the graph.
func (g *Graph) Order(ctx context.Context) (int64, error) {
	value, err := NewQuery(g, "START n=node(*) RETURN count(n)").ExecuteOne(ctx, nil)
	if err != nil {
		return 0, err
	}
	return asInt64(value)
}

// Size returns the number of relationships in the graph.
func (g *Graph) Size(ctx context.Context) (int64, error) {
	value, err := NewQuery(g, "START r=rel(*) RETURN count(r)").ExecuteOne(ctx, nil)
	if err != nil {
		return 0, err
	}
	return asInt64(value)
}

// NodeByID fetches a node by its integer ID.
func (g *Graph) NodeByID(ctx context.Context, id int64) (*Node, error) {
	res, err := g.res.Resolve("node/" + strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	rs, err := res.Get(ctx)
	if err != nil {
		return nil, err
	}
	hydrated, err := g.Hydrate(rs.Content)
	if err != nil {
		return nil, err
	}
	node, ok := hydrated.(*Node)
	if !ok {
		return nil, fmt.Errorf("node %d: hydrated to %T", id, hydrated)
	}
	return node, nil
}

// RelationshipByID fetches a relationship by its integer ID.
func (g *Graph) RelationshipByID(ctx context.Context, id int64) (*Relationship, error) {
	res, err := g.res.Resolve("relationship/" + strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	rs, err := res.Get(ctx)
	if err != nil {
		return nil, err
	}
	hydrated, err := g.Hydrate(rs.Content)
	if err != nil {
		return nil, err
	}
	rel, ok := hydrated.(*Relationship)
	if !ok {
		return nil, fmt.Errorf("relationship %d: hydrated to %T", id, hydrated)
	}
	return rel, nil
}

// NodeLabels returns the set of node labels defined in the graph. Servers
// without label support yield ErrServerCapability.
func (g *Graph) NodeLabels(ctx context.Context) ([]string, error) {
	res, err := g.res.Resolve("labels")
	if err != nil {
		return nil, err
	}
	rs, err := res.Get(ctx)
	if err != nil {
		if rest.IsNotFound(err) {
			return nil, fmt.Errorf("node labels: %w", ErrServerCapability)
		}
		return nil, err
	}
	return stringList(rs.Content)
}

// RelationshipTypes returns the set of relationship types defined in the
// graph.
func (g *Graph) RelationshipTypes(ctx context.Context) ([]string, error) {
	uri, err := g.metadataURI(ctx, "relationship_types")
	if err != nil {
		return nil, err
	}
	res, err := rest.NewResource(uri)
	if err != nil {
		return nil, err
	}
	rs, err := res.Get(ctx)
	if err != nil {
		return nil, err
	}
	return stringList(rs.Content)
}

// Find returns the nodes carrying the given label, optionally filtered to
// those whose property key equals value. Unknown labels yield no nodes.
func (g *Graph) Find(ctx context.Context, label, propertyKey string, propertyValue any) ([]*Node, error) {
	ref := "label/" + url.PathEscape(label) + "/nodes"
	if propertyKey != "" {
		encoded, err := json.Marshal(propertyValue)
		if err != nil {
			return nil, fmt.Errorf("find %s: encode value: %w", label, err)
		}
		ref += "?" + url.QueryEscape(propertyKey) + "=" + url.QueryEscape(string(encoded))
	}
	res, err := g.res.Resolve(ref)
	if err != nil {
		return nil, err
	}
	rs, err := res.Get(ctx)
	if err != nil {
		if rest.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	items, ok := rs.Content.([]any)
	if !ok {
		return nil, fmt.Errorf("find %s: unexpected payload", label)
	}
	nodes := make([]*Node, 0, len(items))
	for _, item := range items {
		hydrated, err := g.Hydrate(item)
		if err != nil {
			return nil, err
		}
		node, ok := hydrated.(*Node)
		if !ok {
			return nil, fmt.Errorf("find %s: hydrated to %T", label, hydrated)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Create builds multiple nodes and relationships in a single batch. Entities
// may use any accepted notation: maps or Nodes for nodes, sequences or
// Relationships for relationships, with integer references addressing other
// entities in the same batch:
//
//	created, _ := g.Create(ctx,
//		map[string]any{"name": "Alice"},
//		map[string]any{"name": "Bob"},
//		[]any{0, "KNOWS", 1, map[string]any{"since": 2006}},
//	)
//
// The result holds the created entities in input order.
func (g *Graph) Create(ctx context.Context, entities ...any) ([]any, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	batch := NewWriteBatch(g)
	for _, entity := range entities {
		if err := batch.Create(entity); err != nil {
			return nil, err
		}
	}
	return batch.Submit(ctx)
}

// Delete removes multiple nodes and relationships in a single batch.
func (g *Graph) Delete(ctx context.Context, entities ...any) error {
	if len(entities) == 0 {
		return nil
	}
	batch := NewWriteBatch(g)
	for _, entity := range entities {
		if entity == nil {
			continue
		}
		if err := batch.Delete(entity); err != nil {
			return err
		}
	}
	return batch.Run(ctx)
}

// GetProperties fetches properties for multiple entities in a single batch,
// returned in input order.
func (g *Graph) GetProperties(ctx context.Context, entities ...any) ([]map[string]any, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	batch := NewWriteBatch(g)
	for _, entity := range entities {
		if err := batch.GetProperties(entity); err != nil {
			return nil, err
		}
	}
	results, err := batch.submit(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(results))
	for i, result := range results {
		props, _ := result.(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		out[i] = props
	}
	return out, nil
}

// CreatePath materializes the given path with CREATE, anchoring bound nodes
// by ID and creating everything else.
func (g *Graph) CreatePath(ctx context.Context, entities ...any) (*Path, error) {
	p, err := NewPath(entities...)
	if err != nil {
		return nil, err
	}
	return p.create(ctx, g, false)
}

// MergePath materializes the given path with CREATE UNIQUE, reusing existing
// segments where they already exist.
func (g *Graph) MergePath(ctx context.Context, entities ...any) (*Path, error) {
	p, err := NewPath(entities...)
	if err != nil {
		return nil, err
	}
	return p.create(ctx, g, true)
}

// Clear removes all nodes and relationships from the graph. This cannot be
// undone.
func (g *Graph) Clear(ctx context.Context) error {
	batch := NewWriteBatch(g)
	batch.AppendCypher("START r=rel(*) DELETE r", nil)
	batch.AppendCypher("START n=node(*) DELETE n", nil)
	return batch.Run(ctx)
}

// Schema returns the schema management surface for this graph.
func (g *Graph) Schema() *Schema {
	g.schemaOnce.Do(func() {
		g.schema = newSchema(g.res)
	})
	return g.schema
}

func asInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("%w %T to integer", ErrInvalidCast, value)
	}
}

func stringList(content any) ([]string, error) {
	items, ok := content.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list payload, got %T", content)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
