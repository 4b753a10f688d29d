package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastNode(t *testing.T) {
	ref, err := CastNode(nil)
	require.NoError(t, err)
	assert.True(t, isNilRef(ref))

	n := NewNode()
	ref, err = CastNode(n)
	require.NoError(t, err)
	assert.Same(t, n, ref)

	ref, err = CastNode(5)
	require.NoError(t, err)
	ptr, ok := ref.(*NodePointer)
	require.True(t, ok)
	assert.Equal(t, 5, ptr.Address)

	ref, err = CastNode(int64(7))
	require.NoError(t, err)
	assert.Equal(t, 7, ref.(*NodePointer).Address)

	ref, err = CastNode("Person")
	require.NoError(t, err)
	assert.True(t, ref.(*Node).LabelSet().Has("Person"))

	ref, err = CastNode(map[string]any{"name": "Alice"})
	require.NoError(t, err)
	name, _ := ref.(*Node).Props().Get("name")
	assert.Equal(t, "Alice", name)

	_, err = CastNode(map[string]any{"bad": map[string]any{}})
	assert.ErrorIs(t, err, ErrInvalidPropertyValue)

	_, err = CastNode(3.14)
	assert.ErrorIs(t, err, ErrInvalidCast)
}

func TestNodeBind(t *testing.T) {
	uri := "http://localhost:7474/db/data/node/42"
	n := NewNode()
	require.NoError(t, n.Bind(uri, map[string]any{
		"self":       uri,
		"properties": uri + "/properties",
		"labels":     uri + "/labels",
	}))

	assert.True(t, n.Bound())
	assert.False(t, n.legacy)
	id, err := n.ID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	g, err := n.Graph()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7474/db/data/", g.URI())

	n.Unbind()
	assert.False(t, n.Bound())
	_, err = n.ID()
	assert.ErrorIs(t, err, ErrUnbound)
}

func TestNodeBindLegacyPayload(t *testing.T) {
	// A hypermedia payload that lacks a labels link marks the server as
	// label-incapable.
	uri := "http://localhost:7474/db/data/node/1"
	n := NewNode()
	require.NoError(t, n.Bind(uri, map[string]any{
		"self":       uri,
		"properties": uri + "/properties",
	}))
	assert.True(t, n.legacy)

	// Binding by bare URI, without a payload, assumes a modern server.
	m := NewNode()
	require.NoError(t, m.Bind(uri, nil))
	assert.False(t, m.legacy)

	// A payload holding only a self URI, as relationship endpoint references
	// do, proves nothing about label support either.
	ref := NewNode()
	require.NoError(t, ref.Bind(uri, map[string]any{"self": uri}))
	assert.False(t, ref.legacy)
	assert.True(t, ref.labels.Bound())
}

func TestNodeEqual(t *testing.T) {
	a := personNode("Alice")
	b := personNode("Alice")
	assert.True(t, a.Equal(b), "unbound nodes compare structurally")

	b.LabelSet().Add("Person")
	assert.False(t, a.Equal(b))

	uri := "http://localhost:7474/db/data/node/1"
	bound := NewNode()
	require.NoError(t, bound.Bind(uri, nil))
	boundToo := personNode("whatever")
	require.NoError(t, boundToo.Bind(uri, nil))
	assert.True(t, bound.Equal(boundToo), "bound nodes compare by resource identity")

	other := NewNode()
	require.NoError(t, other.Bind("http://localhost:7474/db/data/node/2", nil))
	assert.False(t, bound.Equal(other))

	assert.False(t, bound.Equal(a), "bound never equals unbound")
	assert.False(t, a.Equal(nil))
}
