package graph

import (
	"context"
	"sort"
)

// LabelSet is a set of node labels bindable to a remote labels sub-resource.
type LabelSet struct {
	binding
	labels map[string]struct{}
}

// NewLabelSet builds a LabelSet holding the given labels.
func NewLabelSet(labels ...string) *LabelSet {
	s := &LabelSet{labels: make(map[string]struct{})}
	s.Update(labels...)
	return s
}

// Add inserts a label.
func (s *LabelSet) Add(label string) {
	s.labels[label] = struct{}{}
}

// Remove deletes a label.
func (s *LabelSet) Remove(label string) {
	delete(s.labels, label)
}

// Has reports membership.
func (s *LabelSet) Has(label string) bool {
	_, ok := s.labels[label]
	return ok
}

// Update inserts multiple labels.
func (s *LabelSet) Update(labels ...string) {
	for _, label := range labels {
		s.labels[label] = struct{}{}
	}
}

// Clear removes all labels.
func (s *LabelSet) Clear() {
	s.labels = make(map[string]struct{})
}

// Len returns the number of labels held.
func (s *LabelSet) Len() int { return len(s.labels) }

// Values returns the labels in sorted order.
func (s *LabelSet) Values() []string {
	out := make([]string, 0, len(s.labels))
	for label := range s.labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether two label sets hold the same labels.
func (s *LabelSet) Equal(other *LabelSet) bool {
	if other == nil {
		return len(s.labels) == 0
	}
	if len(s.labels) != len(other.labels) {
		return false
	}
	for label := range s.labels {
		if !other.Has(label) {
			return false
		}
	}
	return true
}

// Pull copies the remote label set onto the local one.
func (s *LabelSet) Pull(ctx context.Context) error {
	res, err := s.Resource()
	if err != nil {
		return err
	}
	rs, err := res.Get(ctx)
	if err != nil {
		return err
	}
	s.Clear()
	if remote, ok := rs.Content.([]any); ok {
		for _, label := range remote {
			if text, ok := label.(string); ok {
				s.Add(text)
			}
		}
	}
	return nil
}

// Push replaces the remote label set with the local one.
func (s *LabelSet) Push(ctx context.Context) error {
	res, err := s.Resource()
	if err != nil {
		return err
	}
	_, err = res.Put(ctx, s.Values())
	return err
}
