package graph

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// PropertySet is a key/value container in which a nil value is equivalent to
// a missing key: assigning nil deletes. It can be bound to a remote
// properties sub-resource and refreshed (Pull) or written back (Push).
//
// Values are restricted to the property space the server accepts: booleans,
// signed 64-bit integers, floats, strings, or flat homogeneous slices of one
// of those kinds. Assignment rejects anything else and leaves the set
// unchanged.
type PropertySet struct {
	binding
	values map[string]any
}

// NewPropertySet builds a PropertySet from the given values, validating each.
func NewPropertySet(values map[string]any) (*PropertySet, error) {
	p := &PropertySet{values: make(map[string]any)}
	for key, value := range values {
		if err := p.Set(key, value); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// mustPropertySet is for payloads already validated by the server.
func mustPropertySet(values map[string]any) *PropertySet {
	p, err := NewPropertySet(values)
	if err != nil {
		p = &PropertySet{values: make(map[string]any)}
		for key, value := range values {
			if normalized, err := normalizeProperty(value); err == nil {
				p.values[key] = normalized
			}
		}
	}
	return p
}

// Set assigns a value to a key. A nil value deletes the key. Invalid values
// (nested collections, heterogeneous lists, unsigned integers beyond the
// signed 64-bit range, maps) are rejected with ErrInvalidPropertyValue.
func (p *PropertySet) Set(key string, value any) error {
	if value == nil {
		delete(p.values, key)
		return nil
	}
	normalized, err := normalizeProperty(value)
	if err != nil {
		return err
	}
	p.values[key] = normalized
	return nil
}

// Get returns the value for key; missing keys yield (nil, false).
func (p *PropertySet) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is present.
func (p *PropertySet) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Delete removes key.
func (p *PropertySet) Delete(key string) { delete(p.values, key) }

// Len returns the number of keys held.
func (p *PropertySet) Len() int { return len(p.values) }

// Keys returns the property keys in sorted order.
func (p *PropertySet) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the held values.
func (p *PropertySet) Map() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Clear removes all keys.
func (p *PropertySet) Clear() {
	p.values = make(map[string]any)
}

// Replace substitutes the full content of the set, validating each value.
func (p *PropertySet) Replace(values map[string]any) error {
	fresh, err := NewPropertySet(values)
	if err != nil {
		return err
	}
	p.values = fresh.values
	return nil
}

// Equal reports structural equality of two property sets.
func (p *PropertySet) Equal(other *PropertySet) bool {
	if other == nil {
		return len(p.values) == 0
	}
	return reflect.DeepEqual(p.values, other.values)
}

// Pull copies the remote properties onto the local set.
func (p *PropertySet) Pull(ctx context.Context) error {
	res, err := p.Resource()
	if err != nil {
		return err
	}
	rs, err := res.Get(ctx)
	if err != nil {
		return err
	}
	p.values = make(map[string]any)
	if remote, ok := rs.Content.(map[string]any); ok {
		for key, value := range remote {
			if err := p.Set(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Push copies the local set onto the remote properties resource.
func (p *PropertySet) Push(ctx context.Context) error {
	res, err := p.Resource()
	if err != nil {
		return err
	}
	_, err = res.Put(ctx, p.values)
	return err
}

// normalizeProperty converts a candidate property value into its canonical
// form (bool, int64, float64, string, or a flat []bool/[]int64/[]float64/
// []string), or rejects it.
func normalizeProperty(value any) (any, error) {
	if scalar, ok, err := normalizeScalar(value); err != nil {
		return nil, err
	} else if ok {
		return scalar, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return normalizeSlice(rv)
	case reflect.Map:
		return nil, fmt.Errorf("%w: nested mappings are not allowed", ErrInvalidPropertyValue)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidPropertyValue, value)
	}
}

// normalizeScalar returns (canonical value, true, nil) for scalar inputs,
// (nil, false, nil) for non-scalars, and an error for out-of-range integers.
func normalizeScalar(value any) (any, bool, error) {
	switch v := value.(type) {
	case bool:
		return v, true, nil
	case string:
		return v, true, nil
	case int:
		return int64(v), true, nil
	case int8:
		return int64(v), true, nil
	case int16:
		return int64(v), true, nil
	case int32:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, false, fmt.Errorf("%w: integer %d overflows 64-bit signed range", ErrInvalidPropertyValue, v)
		}
		return int64(v), true, nil
	case uint8:
		return int64(v), true, nil
	case uint16:
		return int64(v), true, nil
	case uint32:
		return int64(v), true, nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, false, fmt.Errorf("%w: integer %d overflows 64-bit signed range", ErrInvalidPropertyValue, v)
		}
		return int64(v), true, nil
	case float32:
		return float64(v), true, nil
	case float64:
		return v, true, nil
	default:
		return nil, false, nil
	}
}

// normalizeSlice accepts only flat homogeneous sequences of one scalar kind.
func normalizeSlice(rv reflect.Value) (any, error) {
	n := rv.Len()
	elems := make([]any, 0, n)
	kind := ""
	for i := 0; i < n; i++ {
		elem := rv.Index(i).Interface()
		scalar, ok, err := normalizeScalar(elem)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: collections may only hold scalar values", ErrInvalidPropertyValue)
		}
		k := scalarKind(scalar)
		if kind == "" {
			kind = k
		} else if k != kind {
			return nil, fmt.Errorf("%w: collections must be homogeneous (%s vs %s)", ErrInvalidPropertyValue, kind, k)
		}
		elems = append(elems, scalar)
	}
	switch kind {
	case "boolean":
		out := make([]bool, n)
		for i, e := range elems {
			out[i] = e.(bool)
		}
		return out, nil
	case "integer":
		out := make([]int64, n)
		for i, e := range elems {
			out[i] = e.(int64)
		}
		return out, nil
	case "float":
		out := make([]float64, n)
		for i, e := range elems {
			out[i] = e.(float64)
		}
		return out, nil
	case "string":
		out := make([]string, n)
		for i, e := range elems {
			out[i] = e.(string)
		}
		return out, nil
	default:
		// empty collection
		return []any{}, nil
	}
}

func scalarKind(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	default:
		return ""
	}
}
