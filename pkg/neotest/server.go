// Package neotest runs an in-memory fake of a 2.0-era Neo4j REST server for
// exercising client code without a real database.
//
//	srv := neotest.NewServer()
//	defer srv.Close()
//	g, _ := graph.Open(ctx, srv.URI())
//
// The fake covers the hypermedia discovery documents, node and relationship
// CRUD with their properties and labels sub-resources, label and type
// listings, schema indexes and constraints, the /batch endpoint, the legacy
// /cypher endpoint and the transactional endpoint. Cypher support is limited
// to the statement shapes the client library generates.
package neotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Server is a fake Neo4j REST server bound to an ephemeral port.
type Server struct {
	http  *httptest.Server
	store *store
	pay   payloads

	version string
	legacy  bool

	txMu    sync.Mutex
	openTxs map[string]struct{}
}

// Option adjusts fake server behavior.
type Option func(*Server)

// WithVersion overrides the advertised server version.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// Legacy makes the server behave like a pre-2.0 release: no label support
// and no transactional endpoint.
func Legacy() Option {
	return func(s *Server) {
		s.version = "1.9.4"
		s.legacy = true
	}
}

// NewServer starts a fake server. Callers own it and must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		store:   newStore(),
		version: "2.0.0",
		openTxs: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.http = httptest.NewServer(http.HandlerFunc(s.route))
	s.pay = payloads{base: s.http.URL + "/db/data/", legacy: s.legacy}
	return s
}

// Close shuts the server down.
func (s *Server) Close() { s.http.Close() }

// URI returns the service root URI, with trailing slash.
func (s *Server) URI() string { return s.http.URL + "/" }

// GraphURI returns the graph database URI, with trailing slash.
func (s *Server) GraphURI() string { return s.pay.base }

// NodeCount reports the number of stored nodes.
func (s *Server) NodeCount() int64 { return s.store.order() }

// RelCount reports the number of stored relationships.
func (s *Server) RelCount() int64 { return s.store.size() }

// SeedNode stores a node directly, bypassing the HTTP surface.
func (s *Server) SeedNode(props map[string]any, labels ...string) int64 {
	node := s.store.createNode(props)
	s.store.setNodeLabels(node.ID, labels)
	return node.ID
}

// SeedRel stores a relationship directly, bypassing the HTTP surface.
func (s *Server) SeedRel(start int64, relType string, end int64, props map[string]any) int64 {
	rel, err := s.store.createRel(start, end, relType, props)
	if err != nil {
		panic(fmt.Sprintf("neotest: seed relationship: %v", err))
	}
	return rel.ID
}

// NodePropsOf returns a stored node's properties for assertions.
func (s *Server) NodePropsOf(id int64) (map[string]any, bool) {
	node, err := s.store.node(id)
	if err != nil {
		return nil, false
	}
	return copyProps(node.Props), true
}

// NodeLabelsOf returns a stored node's labels for assertions.
func (s *Server) NodeLabelsOf(id int64) ([]string, bool) {
	node, err := s.store.node(id)
	if err != nil {
		return nil, false
	}
	return sortedKeys(node.Labels), true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeLegacyError answers in the pre-transactional error format: a status
// code plus an exception body.
func (s *Server) writeLegacyError(w http.ResponseWriter, status int, name, message string) {
	s.writeJSON(w, status, exception(name, message))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	if path == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"data":       s.pay.base,
			"management": s.http.URL + "/db/manage/",
		})
		return
	}
	if !strings.HasPrefix(path, "/db/data") {
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "unknown endpoint "+path)
		return
	}
	parts := splitPath(strings.TrimPrefix(path, "/db/data"))

	switch {
	case len(parts) == 0:
		s.writeJSON(w, http.StatusOK, s.metadata())
	case parts[0] == "node":
		s.handleNode(w, r, parts[1:])
	case parts[0] == "relationship" && len(parts) == 2 && parts[1] == "types":
		s.writeJSON(w, http.StatusOK, s.store.relTypes())
	case parts[0] == "relationship":
		s.handleRelationship(w, r, parts[1:])
	case parts[0] == "labels":
		s.handleLabelList(w)
	case parts[0] == "label" && len(parts) == 3 && parts[2] == "nodes":
		s.handleLabelNodes(w, r, parts[1])
	case parts[0] == "schema":
		s.handleSchema(w, r, parts[1:])
	case parts[0] == "cypher":
		s.handleCypher(w, r)
	case parts[0] == "batch":
		s.handleBatch(w, r)
	case parts[0] == "transaction":
		s.handleTransaction(w, r, parts[1:])
	default:
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "unknown endpoint "+path)
	}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func (s *Server) metadata() map[string]any {
	base := s.pay.base
	meta := map[string]any{
		"node":               base + "node",
		"cypher":             base + "cypher",
		"batch":              base + "batch",
		"relationship_index": base + "index/relationship",
		"relationship_types": base + "relationship/types",
		"node_index":         base + "index/node",
		"extensions_info":    base + "ext",
		"extensions":         map[string]any{},
		"neo4j_version":      s.version,
	}
	if !s.legacy {
		meta["transaction"] = base + "transaction"
		meta["node_labels"] = base + "labels"
		meta["indexes"] = base + "schema/index"
		meta["constraints"] = base + "schema/constraint"
	}
	return meta
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "POST required")
			return
		}
		props := map[string]any{}
		json.NewDecoder(r.Body).Decode(&props)
		node := s.store.createNode(props)
		w.Header().Set("Location", s.pay.nodeURI(node.ID))
		s.writeJSON(w, http.StatusCreated, s.pay.node(node))
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		s.writeLegacyError(w, http.StatusNotFound, "NodeNotFoundException", "bad node id "+parts[0])
		return
	}
	node, nerr := s.store.node(id)

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			if nerr != nil {
				s.writeLegacyError(w, http.StatusNotFound, "NodeNotFoundException",
					fmt.Sprintf("Cannot find node with id [%d].", id))
				return
			}
			s.writeJSON(w, http.StatusOK, s.pay.node(node))
		case http.MethodDelete:
			switch s.store.deleteNode(id) {
			case nil:
				w.WriteHeader(http.StatusNoContent)
			case errConflict:
				s.writeLegacyError(w, http.StatusConflict, "ConstraintViolationException",
					fmt.Sprintf("The node with id %d cannot be deleted. Check that the node is orphaned before deletion.", id))
			default:
				s.writeLegacyError(w, http.StatusNotFound, "NodeNotFoundException",
					fmt.Sprintf("Cannot find node with id [%d].", id))
			}
		default:
			s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "GET or DELETE required")
		}

	case parts[1] == "properties" && len(parts) == 2:
		if nerr != nil {
			s.writeLegacyError(w, http.StatusNotFound, "NodeNotFoundException",
				fmt.Sprintf("Cannot find node with id [%d].", id))
			return
		}
		s.handleProperties(w, r, node.Props, func(props map[string]any) { s.store.setNodeProps(id, props) })

	case parts[1] == "labels" && len(parts) == 2:
		if s.legacy {
			s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "labels not supported")
			return
		}
		if nerr != nil {
			s.writeLegacyError(w, http.StatusNotFound, "NodeNotFoundException",
				fmt.Sprintf("Cannot find node with id [%d].", id))
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.writeJSON(w, http.StatusOK, s.pay.labels(node))
		case http.MethodPut:
			var labels []string
			if err := json.NewDecoder(r.Body).Decode(&labels); err != nil {
				s.writeLegacyError(w, http.StatusBadRequest, "BadInputException", "label list required")
				return
			}
			s.store.setNodeLabels(id, labels)
			w.WriteHeader(http.StatusNoContent)
		default:
			s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "GET or PUT required")
		}

	case parts[1] == "relationships" && len(parts) == 2:
		if r.Method != http.MethodPost {
			s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "POST required")
			return
		}
		if nerr != nil {
			s.writeLegacyError(w, http.StatusNotFound, "NodeNotFoundException",
				fmt.Sprintf("Cannot find node with id [%d].", id))
			return
		}
		s.handleCreateRelationship(w, r, id)

	default:
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "unknown node sub-resource")
	}
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request, current map[string]any, set func(map[string]any)) {
	switch r.Method {
	case http.MethodGet:
		if len(current) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.writeJSON(w, http.StatusOK, copyProps(current))
	case http.MethodPut:
		props := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&props); err != nil {
			s.writeLegacyError(w, http.StatusBadRequest, "BadInputException", "property map required")
			return
		}
		set(props)
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "GET or PUT required")
	}
}

type createRelRequest struct {
	To   string         `json:"to"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request, startID int64) {
	var req createRelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeLegacyError(w, http.StatusBadRequest, "BadInputException", "relationship body required")
		return
	}
	endID, err := s.nodeIDFromURI(req.To)
	if err != nil {
		s.writeLegacyError(w, http.StatusBadRequest, "BadInputException", "bad end node "+req.To)
		return
	}
	rel, rerr := s.store.createRel(startID, endID, req.Type, req.Data)
	if rerr != nil {
		s.writeLegacyError(w, http.StatusNotFound, "NodeNotFoundException",
			fmt.Sprintf("Cannot find node with id [%d].", endID))
		return
	}
	w.Header().Set("Location", s.pay.relURI(rel.ID))
	s.writeJSON(w, http.StatusCreated, s.pay.rel(rel))
}

func (s *Server) nodeIDFromURI(uri string) (int64, error) {
	_, after, ok := strings.Cut(uri, "/node/")
	if !ok {
		return 0, fmt.Errorf("not a node uri: %s", uri)
	}
	return strconv.ParseInt(strings.TrimSuffix(after, "/"), 10, 64)
}

func (s *Server) handleRelationship(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "relationship id required")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		s.writeLegacyError(w, http.StatusNotFound, "RelationshipNotFoundException", "bad relationship id "+parts[0])
		return
	}
	rel, rerr := s.store.rel(id)

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			if rerr != nil {
				s.writeLegacyError(w, http.StatusNotFound, "RelationshipNotFoundException",
					fmt.Sprintf("Cannot find relationship with id [%d].", id))
				return
			}
			s.writeJSON(w, http.StatusOK, s.pay.rel(rel))
		case http.MethodDelete:
			if s.store.deleteRel(id) != nil {
				s.writeLegacyError(w, http.StatusNotFound, "RelationshipNotFoundException",
					fmt.Sprintf("Cannot find relationship with id [%d].", id))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "GET or DELETE required")
		}

	case parts[1] == "properties" && len(parts) == 2:
		if rerr != nil {
			s.writeLegacyError(w, http.StatusNotFound, "RelationshipNotFoundException",
				fmt.Sprintf("Cannot find relationship with id [%d].", id))
			return
		}
		s.handleProperties(w, r, rel.Props, func(props map[string]any) { s.store.setRelProps(id, props) })

	default:
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "unknown relationship sub-resource")
	}
}

func (s *Server) handleLabelList(w http.ResponseWriter) {
	if s.legacy {
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "labels not supported")
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.allLabels())
}

func (s *Server) handleLabelNodes(w http.ResponseWriter, r *http.Request, label string) {
	if s.legacy {
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "labels not supported")
		return
	}
	propertyKey, encodedValue := "", ""
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			propertyKey, encodedValue = key, values[0]
		}
	}
	out := []any{}
	for _, node := range s.store.nodesByLabel(label, propertyKey, encodedValue) {
		out = append(out, s.pay.node(node))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request, parts []string) {
	if s.legacy {
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "schema not supported")
		return
	}
	switch {
	case len(parts) >= 2 && parts[0] == "index":
		s.handleSchemaKind(w, r, s.store.indexes, s.store.constraints, parts[1:])
	case len(parts) >= 3 && parts[0] == "constraint" && parts[2] == "uniqueness":
		rest := append([]string{parts[1]}, parts[3:]...)
		s.handleSchemaKind(w, r, s.store.constraints, s.store.indexes, rest)
	default:
		s.writeLegacyError(w, http.StatusNotFound, "NotFoundException", "unknown schema endpoint")
	}
}

// handleSchemaKind serves one schema collection; creating an entry that
// already exists in the opposing collection conflicts, the way indexes clash
// with uniqueness constraints on a real server.
func (s *Server) handleSchemaKind(w http.ResponseWriter, r *http.Request, kind, opposing map[string]map[string]struct{}, parts []string) {
	label := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		keys := s.store.schemaKeys(kind, label)
		out := make([]any, len(keys))
		for i, key := range keys {
			out[i] = map[string]any{"label": label, "property_keys": []string{key}}
		}
		s.writeJSON(w, http.StatusOK, out)

	case len(parts) == 1 && r.Method == http.MethodPost:
		var body struct {
			PropertyKeys []string `json:"property_keys"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.PropertyKeys) != 1 {
			s.writeLegacyError(w, http.StatusBadRequest, "BadInputException", "one property key required")
			return
		}
		key := body.PropertyKeys[0]
		if opposingKeys := s.store.schemaKeys(opposing, label); contains(opposingKeys, key) {
			s.writeLegacyError(w, http.StatusConflict, "ConstraintViolationException",
				fmt.Sprintf("Already constrained or indexed: :%s(%s)", label, key))
			return
		}
		if !s.store.addSchemaKey(kind, label, key) {
			s.writeLegacyError(w, http.StatusConflict, "ConstraintViolationException",
				fmt.Sprintf("Already exists: :%s(%s)", label, key))
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"label": label, "property_keys": []string{key}})

	case len(parts) == 2 && r.Method == http.MethodDelete:
		if !s.store.removeSchemaKey(kind, label, parts[1]) {
			s.writeLegacyError(w, http.StatusNotFound, "NotFoundException",
				fmt.Sprintf("No such schema entry: :%s(%s)", label, parts[1]))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "unsupported schema operation")
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type cypherRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params"`
}

func (s *Server) handleCypher(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeLegacyError(w, http.StatusMethodNotAllowed, "MethodNotAllowedException", "POST required")
		return
	}
	var req cypherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeLegacyError(w, http.StatusBadRequest, "BadInputException", "cypher body required")
		return
	}
	columns, rows, qerr := s.runCypher(req.Query, req.Params)
	if qerr != nil {
		s.writeLegacyError(w, http.StatusBadRequest, qerr.Exception, qerr.Message)
		return
	}
	if columns == nil {
		columns = []string{}
	}
	data := make([]any, len(rows))
	for i, row := range rows {
		data[i] = row
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"columns": columns, "data": data})
}
