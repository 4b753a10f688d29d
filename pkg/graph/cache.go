package graph

import (
	"runtime"
	"sync"
	"weak"
)

// entityCache keeps one live local instance per remote entity ID so that
// hydrating the same entity twice yields the same pointer. Entries hold weak
// references: an instance nothing else retains is collected normally, and a
// GC cleanup evicts its slot.
type entityCache[T any] struct {
	mu      sync.Mutex
	entries map[int64]weak.Pointer[T]
}

func newEntityCache[T any]() *entityCache[T] {
	return &entityCache[T]{entries: make(map[int64]weak.Pointer[T])}
}

// getOrStore returns the live cached instance for id, or stores candidate as
// the canonical instance and returns it.
func (c *entityCache[T]) getOrStore(id int64, candidate *T) (*T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wp, ok := c.entries[id]; ok {
		if existing := wp.Value(); existing != nil {
			return existing, true
		}
	}
	wp := weak.Make(candidate)
	c.entries[id] = wp
	runtime.AddCleanup(candidate, func(key int64) {
		c.mu.Lock()
		// Only evict if the slot still holds our pointer; a newer instance
		// may have replaced it after this one became unreachable.
		if cur, ok := c.entries[key]; ok && cur == wp {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}, id)
	return candidate, false
}

// get returns the live cached instance for id, if any.
func (c *entityCache[T]) get(id int64) (*T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wp, ok := c.entries[id]; ok {
		if existing := wp.Value(); existing != nil {
			return existing, true
		}
	}
	return nil, false
}

// len counts slots still holding live instances.
func (c *entityCache[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, wp := range c.entries {
		if wp.Value() != nil {
			n++
		}
	}
	return n
}
