package neotest

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// nodeRecord is one stored node.
type nodeRecord struct {
	ID     int64
	Props  map[string]any
	Labels map[string]struct{}
}

// relRecord is one stored relationship.
type relRecord struct {
	ID    int64
	Type  string
	Start int64
	End   int64
	Props map[string]any
}

// store is the in-memory graph backing a fake server. All access goes
// through the mutex; handlers may run concurrently.
type store struct {
	mu sync.Mutex

	nextNodeID int64
	nextRelID  int64
	nodes      map[int64]*nodeRecord
	rels       map[int64]*relRecord

	// indexes and constraints map label -> set of property keys.
	indexes     map[string]map[string]struct{}
	constraints map[string]map[string]struct{}
}

func newStore() *store {
	return &store{
		nodes:       map[int64]*nodeRecord{},
		rels:        map[int64]*relRecord{},
		indexes:     map[string]map[string]struct{}{},
		constraints: map[string]map[string]struct{}{},
	}
}

var errNotFound = fmt.Errorf("not found")
var errConflict = fmt.Errorf("conflict")

func (s *store) createNode(props map[string]any) *nodeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := &nodeRecord{
		ID:     s.nextNodeID,
		Props:  copyProps(props),
		Labels: map[string]struct{}{},
	}
	s.nextNodeID++
	s.nodes[node.ID] = node
	return node
}

func (s *store) node(id int64) (*nodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, errNotFound
	}
	return node, nil
}

func (s *store) setNodeProps(id int64, props map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return errNotFound
	}
	node.Props = copyProps(props)
	return nil
}

func (s *store) setNodeLabels(id int64, labels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return errNotFound
	}
	node.Labels = map[string]struct{}{}
	for _, label := range labels {
		node.Labels[label] = struct{}{}
	}
	return nil
}

// deleteNode refuses to delete a node that still has relationships, the way
// a real server answers with a conflict.
func (s *store) deleteNode(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return errNotFound
	}
	for _, rel := range s.rels {
		if rel.Start == id || rel.End == id {
			return errConflict
		}
	}
	delete(s.nodes, id)
	return nil
}

func (s *store) createRel(start, end int64, relType string, props map[string]any) (*relRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[start]; !ok {
		return nil, errNotFound
	}
	if _, ok := s.nodes[end]; !ok {
		return nil, errNotFound
	}
	rel := &relRecord{
		ID:    s.nextRelID,
		Type:  relType,
		Start: start,
		End:   end,
		Props: copyProps(props),
	}
	s.nextRelID++
	s.rels[rel.ID] = rel
	return rel, nil
}

func (s *store) rel(id int64) (*relRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.rels[id]
	if !ok {
		return nil, errNotFound
	}
	return rel, nil
}

func (s *store) setRelProps(id int64, props map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.rels[id]
	if !ok {
		return errNotFound
	}
	rel.Props = copyProps(props)
	return nil
}

func (s *store) deleteRel(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rels[id]; !ok {
		return errNotFound
	}
	delete(s.rels, id)
	return nil
}

func (s *store) order() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.nodes))
}

func (s *store) size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rels))
}

func (s *store) clearRels() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rels = map[int64]*relRecord{}
}

func (s *store) clearNodes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = map[int64]*nodeRecord{}
}

func (s *store) allLabels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, node := range s.nodes {
		for label := range node.Labels {
			seen[label] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func (s *store) relTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, rel := range s.rels {
		seen[rel.Type] = struct{}{}
	}
	return sortedKeys(seen)
}

// nodesByLabel returns the nodes carrying a label, optionally filtered by a
// JSON-encoded property value.
func (s *store) nodesByLabel(label, propertyKey, encodedValue string) []*nodeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*nodeRecord
	for _, node := range s.nodes {
		if _, ok := node.Labels[label]; !ok {
			continue
		}
		if propertyKey != "" {
			stored, ok := node.Props[propertyKey]
			if !ok {
				continue
			}
			encodedStored, err := json.Marshal(stored)
			if err != nil || string(encodedStored) != encodedValue {
				continue
			}
		}
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// matchRels selects relationships by optional end points, types and
// direction, in ID order.
func (s *store) matchRels(start, end *int64, types []string, bidirectional bool, limit int) []*relRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	typeSet := map[string]struct{}{}
	for _, t := range types {
		typeSet[t] = struct{}{}
	}
	ids := make([]int64, 0, len(s.rels))
	for id := range s.rels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*relRecord
	for _, id := range ids {
		rel := s.rels[id]
		if len(typeSet) > 0 {
			if _, ok := typeSet[rel.Type]; !ok {
				continue
			}
		}
		if !relMatches(rel, start, end, bidirectional) {
			continue
		}
		out = append(out, rel)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func relMatches(rel *relRecord, start, end *int64, bidirectional bool) bool {
	forward := (start == nil || rel.Start == *start) && (end == nil || rel.End == *end)
	if forward {
		return true
	}
	if !bidirectional {
		return false
	}
	return (start == nil || rel.End == *start) && (end == nil || rel.Start == *end)
}

// relsOf returns all relationships touching a node.
func (s *store) relsOf(id int64) []*relRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*relRecord
	for _, rel := range s.rels {
		if rel.Start == id || rel.End == id {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// deleteRelated removes a node together with everything reachable from it.
func (s *store) deleteRelated(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int64]struct{}{}
	frontier := []int64{id}
	for len(frontier) > 0 {
		current := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}
		for _, rel := range s.rels {
			if rel.Start == current {
				frontier = append(frontier, rel.End)
			}
			if rel.End == current {
				frontier = append(frontier, rel.Start)
			}
		}
	}
	for relID, rel := range s.rels {
		if _, ok := seen[rel.Start]; ok {
			delete(s.rels, relID)
			continue
		}
		if _, ok := seen[rel.End]; ok {
			delete(s.rels, relID)
		}
	}
	for nodeID := range seen {
		delete(s.nodes, nodeID)
	}
}

func (s *store) addSchemaKey(kind map[string]map[string]struct{}, label, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := kind[label]
	if !ok {
		keys = map[string]struct{}{}
		kind[label] = keys
	}
	if _, exists := keys[key]; exists {
		return false
	}
	keys[key] = struct{}{}
	return true
}

func (s *store) removeSchemaKey(kind map[string]map[string]struct{}, label, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := kind[label]
	if !ok {
		return false
	}
	if _, exists := keys[key]; !exists {
		return false
	}
	delete(keys, key)
	return true
}

func (s *store) schemaKeys(kind map[string]map[string]struct{}, label string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := kind[label]
	if !ok {
		return nil
	}
	return sortedKeys(keys)
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
