package cypher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParametersInsertionOrder(t *testing.T) {
	p := NewParameters("zebra", 1, "apple", 2, "mango", 3)
	require.Equal(t, 3, p.Len())

	encoded, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"zebra":1,"apple":2,"mango":3}`, string(encoded),
		"members serialize in insertion order, not sorted")
}

func TestParametersSetUpdatesInPlace(t *testing.T) {
	p := NewParameters("a", 1, "b", 2)
	p.Set("a", 99)

	value, ok := p.Get("a")
	require.True(t, ok)
	assert.Equal(t, 99, value)
	assert.Equal(t, 2, p.Len(), "re-assigning keeps the original position")

	encoded, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"a":99,"b":2}`, string(encoded))
}

func TestParametersChaining(t *testing.T) {
	p := NewParameters().Set("x", 1).Set("y", "two")
	encoded, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1,"y":"two"}`, string(encoded))
}

func TestParametersEmpty(t *testing.T) {
	encoded, err := json.Marshal(NewParameters())
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(encoded), "empty parameters encode as an object, not null")
}

func TestParametersFromMap(t *testing.T) {
	p := FromMap(map[string]any{"a": 1, "b": 2})
	assert.Equal(t, 2, p.Len())
	value, ok := p.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, value)
}

func TestParametersOddPairs(t *testing.T) {
	p := NewParameters("a", 1, "dangling")
	assert.Equal(t, 1, p.Len(), "a trailing key without a value is dropped")
}
