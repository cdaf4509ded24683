package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"strconv"
)

// Value is a JSON-shaped tree: map[string]any, []any, string, float64, bool
// or nil. Values handed out by this package must be treated as read-only;
// merges build new trees and share unchanged subtrees with their inputs.
type Value = any

// DeepMerge returns base with patch merged into it.
//
// Maps merge key by key, recursively. Keys absent from patch keep their base
// value. The hub addresses list elements by index key, so a map patched onto
// a list merges into the list's elements keyed "0".."n-1". Any other pairing
// (scalar, list over map, list over list) is replaced by the patch. A nil
// base behaves as an empty map. Neither input is modified.
func DeepMerge(base, patch Value) Value {
	pm, ok := patch.(map[string]any)
	if !ok {
		return patch
	}
	var bm map[string]any
	switch b := base.(type) {
	case map[string]any:
		bm = b
	case []any:
		bm = indexKeyed(b)
	}

	out := make(map[string]any, len(bm)+len(pm))
	maps.Copy(out, bm)
	for k, pv := range pm {
		out[k] = DeepMerge(bm[k], pv)
	}
	return out
}

// indexKeyed turns a list into a map keyed by element index.
func indexKeyed(l []any) map[string]any {
	out := make(map[string]any, len(l))
	for i, e := range l {
		out[strconv.Itoa(i)] = e
	}
	return out
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two values are structurally identical.
func Equal(a, b Value) bool {
	return reflect.DeepEqual(a, b)
}

// ParseValue decodes JSON text into a Value.
func ParseValue(data []byte) (Value, error) {
	var v Value
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	return v, nil
}
