package neotest

import (
	"fmt"
	"sort"
)

// payloads renders 2.0-era REST hypermedia documents for stored entities.
type payloads struct {
	base   string // graph base URI with trailing slash
	legacy bool
}

func (p payloads) nodeURI(id int64) string {
	return fmt.Sprintf("%snode/%d", p.base, id)
}

func (p payloads) relURI(id int64) string {
	return fmt.Sprintf("%srelationship/%d", p.base, id)
}

func (p payloads) node(node *nodeRecord) map[string]any {
	self := p.nodeURI(node.ID)
	payload := map[string]any{
		"self":                   self,
		"properties":             self + "/properties",
		"property":               self + "/properties/{key}",
		"create_relationship":    self + "/relationships",
		"all_relationships":      self + "/relationships/all",
		"outgoing_relationships": self + "/relationships/out",
		"incoming_relationships": self + "/relationships/in",
		"data":                   copyProps(node.Props),
	}
	if !p.legacy {
		payload["labels"] = self + "/labels"
	}
	return payload
}

func (p payloads) rel(rel *relRecord) map[string]any {
	self := p.relURI(rel.ID)
	return map[string]any{
		"self":       self,
		"properties": self + "/properties",
		"property":   self + "/properties/{key}",
		"type":       rel.Type,
		"start":      p.nodeURI(rel.Start),
		"end":        p.nodeURI(rel.End),
		"data":       copyProps(rel.Props),
	}
}

// path renders a path payload from an ordered node ID chain and the
// relationship IDs between consecutive positions.
func (p payloads) path(nodeIDs, relIDs []int64) map[string]any {
	nodes := make([]any, len(nodeIDs))
	for i, id := range nodeIDs {
		nodes[i] = p.nodeURI(id)
	}
	rels := make([]any, len(relIDs))
	for i, id := range relIDs {
		rels[i] = p.relURI(id)
	}
	return map[string]any{
		"start":         nodes[0],
		"end":           nodes[len(nodes)-1],
		"length":        len(relIDs),
		"nodes":         nodes,
		"relationships": rels,
	}
}

func (p payloads) labels(node *nodeRecord) []any {
	names := make([]string, 0, len(node.Labels))
	for label := range node.Labels {
		names = append(names, label)
	}
	sort.Strings(names)
	out := make([]any, len(names))
	for i, label := range names {
		out[i] = label
	}
	return out
}

// exception renders the legacy error body carried by 4xx/5xx responses.
func exception(name, message string) map[string]any {
	return map[string]any{
		"exception":  name,
		"fullname":   "org.neo4j.server.rest.repr." + name,
		"message":    message,
		"stacktrace": []any{"org.neo4j.server.rest.repr." + name + ".translate(Fake.java:1)"},
	}
}
