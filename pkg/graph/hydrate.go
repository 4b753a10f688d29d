package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adampassword/neorest/pkg/rest"
)

// Hydrate inflates a decoded JSON payload into domain values. Object payloads
// carrying a "self" URI become nodes or relationships routed through the
// graph's identity caches, objects carrying "nodes" and "relationships"
// become paths, batch exception payloads become errors, and collections
// hydrate element-wise. Anything else passes through unchanged.
func (g *Graph) Hydrate(data any) (any, error) {
	switch payload := data.(type) {
	case map[string]any:
		if self, ok := payload["self"].(string); ok {
			return g.hydrateEntity(self, payload)
		}
		if _, ok := payload["nodes"]; ok {
			if _, ok := payload["relationships"]; ok {
				return g.hydratePath(payload)
			}
		}
		if _, ok := payload["exception"]; ok {
			if _, ok := payload["stacktrace"]; ok {
				return nil, newBatchError(rest.ParseServerException(payload))
			}
		}
		// Plain maps are ambiguous over this wire format and stay as maps.
		return payload, nil
	case []any:
		out := make([]any, len(payload))
		for i, item := range payload {
			hydrated, err := g.Hydrate(item)
			if err != nil {
				return nil, err
			}
			out[i] = hydrated
		}
		return out, nil
	default:
		return data, nil
	}
}

func (g *Graph) hydrateEntity(self string, payload map[string]any) (any, error) {
	rel, err := g.relativeURI(self)
	if err != nil {
		return nil, err
	}
	if rel == "" {
		return g, nil
	}
	tag, remainder, _ := strings.Cut(rel, "/")
	switch tag {
	case "node":
		id, err := parseEntityID(remainder)
		if err != nil {
			return nil, fmt.Errorf("hydrate %s: %w", self, err)
		}
		return g.hydrateNode(id, self, payload)
	case "relationship":
		id, err := parseEntityID(remainder)
		if err != nil {
			return nil, fmt.Errorf("hydrate %s: %w", self, err)
		}
		return g.hydrateRelationship(id, payload)
	default:
		return nil, fmt.Errorf("cannot hydrate entity of kind %q", tag)
	}
}

// hydrateNode routes through the node cache: hits refresh their local state
// from the payload, misses bind a fresh instance and cache it. Payloads
// without a "data" section mark properties stale; labels never travel on
// this payload so they always come back stale.
func (g *Graph) hydrateNode(id int64, self string, payload map[string]any) (*Node, error) {
	data, hasData := payload["data"].(map[string]any)

	if cached, ok := g.nodeCache.get(id); ok {
		if hasData {
			cached.props.values = copyValues(data)
			cached.staleProps = false
		} else {
			cached.staleProps = true
		}
		if labelsURI, ok := stringEntry(payload, "labels"); ok {
			// A labels link in a later, fuller payload overrides any legacy
			// verdict reached from a thinner one.
			cached.legacy = false
			if !cached.labels.Bound() {
				labelsRes, err := rest.NewResource(labelsURI)
				if err != nil {
					return nil, err
				}
				cached.labels.bindResource(labelsRes)
			}
		} else if _, full := payload["properties"]; full {
			cached.legacy = true
		}
		cached.staleLabels = true
		return cached, nil
	}

	node := NewNode()
	if hasData {
		node.props.values = copyValues(data)
	}
	if err := node.Bind(self, payload); err != nil {
		return nil, err
	}
	node.staleProps = !hasData
	node.staleLabels = true
	stored, _ := g.nodeCache.getOrStore(id, node)
	return stored, nil
}

// hydrateRel inflates a relationship kernel without touching the identity
// cache; path hydration calls it per step.
func hydrateRel(payload map[string]any) (*Rel, error) {
	self, ok := payload["self"].(string)
	if !ok {
		return nil, fmt.Errorf("relationship payload has no self URI")
	}
	rel := NewRel("")
	if t, ok := payload["type"].(string); ok {
		rel.core.relType = t
	}
	data, hasData := payload["data"].(map[string]any)
	if hasData {
		rel.core.props.values = copyValues(data)
	}
	if err := rel.Bind(self, payload); err != nil {
		return nil, err
	}
	rel.core.staleProps = !hasData
	return rel, nil
}

func (g *Graph) hydrateRelationship(id int64, payload map[string]any) (*Relationship, error) {
	rel, err := hydrateRel(payload)
	if err != nil {
		return nil, err
	}
	start, err := g.hydrateRef(payload, "start")
	if err != nil {
		return nil, err
	}
	end, err := g.hydrateRef(payload, "end")
	if err != nil {
		return nil, err
	}

	if cached, ok := g.relCache.get(id); ok {
		if !rel.core.staleProps {
			cached.rel.core.props.values = rel.core.props.Map()
			cached.rel.core.staleProps = false
		} else {
			cached.rel.core.staleProps = true
		}
		return cached, nil
	}
	stored, _ := g.relCache.getOrStore(id, newRelationship(start, rel, end))
	return stored, nil
}

func (g *Graph) hydrateRef(payload map[string]any, key string) (NodeRef, error) {
	uri, ok := payload[key].(string)
	if !ok {
		return nil, nil
	}
	rel, err := g.relativeURI(uri)
	if err != nil {
		return nil, err
	}
	_, idPart, _ := strings.Cut(rel, "/")
	id, err := parseEntityID(idPart)
	if err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", uri, err)
	}
	return g.hydrateNode(id, uri, map[string]any{"self": uri})
}

// hydratePath round-robins node and relationship URIs into a path. The wire
// format does not carry per-step directions, so every step hydrates forward.
func (g *Graph) hydratePath(payload map[string]any) (*Path, error) {
	nodeURIs, err := uriList(payload, "nodes")
	if err != nil {
		return nil, err
	}
	relURIs, err := uriList(payload, "relationships")
	if err != nil {
		return nil, err
	}
	if len(nodeURIs) != len(relURIs)+1 {
		return nil, fmt.Errorf("path payload has %d nodes for %d relationships", len(nodeURIs), len(relURIs))
	}
	nodes := make([]NodeRef, len(nodeURIs))
	for i, uri := range nodeURIs {
		hydrated, err := g.Hydrate(map[string]any{"self": uri})
		if err != nil {
			return nil, err
		}
		node, ok := hydrated.(*Node)
		if !ok {
			return nil, fmt.Errorf("path node hydrated to %T", hydrated)
		}
		nodes[i] = node
	}
	rels := make([]*Rel, len(relURIs))
	for i, uri := range relURIs {
		rel, err := hydrateRel(map[string]any{"self": uri})
		if err != nil {
			return nil, err
		}
		rels[i] = rel
	}
	p := &Path{nodes: nodes, rels: rels, metadata: payload}
	return p, nil
}

func parseEntityID(s string) (int64, error) {
	s = strings.TrimRight(s, "/")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("no entity identifier in %q", s)
	}
	return id, nil
}

func uriList(payload map[string]any, key string) ([]string, error) {
	items, ok := payload[key].([]any)
	if !ok {
		return nil, fmt.Errorf("path payload has no %q list", key)
	}
	uris := make([]string, len(items))
	for i, item := range items {
		uri, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("path %s entry %d is %T, not a URI", key, i, item)
		}
		uris[i] = uri
	}
	return uris, nil
}
