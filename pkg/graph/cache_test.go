package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityCacheIdentity(t *testing.T) {
	cache := newEntityCache[Node]()

	first := NewNode("Person")
	stored, fresh := cache.getOrStore(1, first)
	assert.True(t, fresh)
	assert.Same(t, first, stored)

	// A second candidate for the same id yields the original instance.
	second := NewNode()
	stored, fresh = cache.getOrStore(1, second)
	assert.False(t, fresh)
	assert.Same(t, first, stored)

	got, ok := cache.get(1)
	require.True(t, ok)
	assert.Same(t, first, got)

	_, ok = cache.get(2)
	assert.False(t, ok)

	other := NewNode()
	stored, fresh = cache.getOrStore(2, other)
	assert.True(t, fresh)
	assert.Same(t, other, stored)
	assert.Equal(t, 2, cache.len())
}
