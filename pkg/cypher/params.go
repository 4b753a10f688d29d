package cypher

import (
	"bytes"
	"encoding/json"
)

// Parameters is an ordered set of statement parameters. The transactional
// endpoint is sensitive to JSON member ordering in some server versions, so
// parameters serialize in insertion order rather than map order.
type Parameters struct {
	keys   []string
	values map[string]any
}

// NewParameters builds an ordered parameter set; pairs must alternate
// string keys and values.
func NewParameters(pairs ...any) *Parameters {
	p := &Parameters{values: map[string]any{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		if key, ok := pairs[i].(string); ok {
			p.Set(key, pairs[i+1])
		}
	}
	return p
}

// FromMap builds a parameter set from a map, ordering keys by first use of
// Set; map iteration order is not preserved.
func FromMap(values map[string]any) *Parameters {
	p := &Parameters{values: map[string]any{}}
	for key, value := range values {
		p.Set(key, value)
	}
	return p
}

// Set assigns a parameter, appending new keys in call order.
func (p *Parameters) Set(key string, value any) *Parameters {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// Get returns the value for a key.
func (p *Parameters) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Len returns the number of parameters.
func (p *Parameters) Len() int { return len(p.keys) }

// MarshalJSON encodes the parameters as an object with members in insertion
// order.
func (p *Parameters) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encodedValue, err := json.Marshal(p.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
