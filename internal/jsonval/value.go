// Package jsonval models an arbitrary, untyped JSON tree as a tagged value
// with path-based access, the shape called for when strategies need to walk
// unpredictable merchant JSON blobs without committing to a Go struct shape.
package jsonval

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the underlying representation of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a tagged union over the JSON data model. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
	// keys holds the object's keys in sorted order for deterministic walks;
	// the source document's key order is not kept.
	keys []string
}

// Null is the canonical null Value.
var Null = Value{kind: KindNull}

// Parse decodes raw JSON bytes into a Value tree. Malformed input yields an
// error; callers in this codebase treat that as "no blob here" and move on.
func Parse(raw []byte) (Value, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Null, err
	}
	return fromAny(v), nil
}

func fromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case bool:
		return Value{kind: KindBool, b: t}
	case float64:
		return Value{kind: KindNumber, n: t}
	case json.Number:
		f, _ := t.Float64()
		return Value{kind: KindNumber, n: f}
	case string:
		return Value{kind: KindString, s: t}
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = fromAny(e)
		}
		return Value{kind: KindArray, arr: arr}
	case map[string]any:
		obj := make(map[string]Value, len(t))
		keys := make([]string, 0, len(t))
		for k, e := range t {
			obj[k] = fromAny(e)
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return Value{kind: KindObject, obj: obj, keys: keys}
	default:
		return Null
	}
}

// Kind reports the tag of this Value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null (or the zero Value).
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean value and whether v was actually a bool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the numeric value and whether v was actually a number.
// Numeric strings are NOT coerced here — callers that accept "29.99" as a
// string-typed price go through the money package's own string parsing.
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsString returns the string value and whether v was actually a string.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// AsArray returns the element slice and whether v was actually an array.
func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

// Keys returns the object's keys in sorted order (the source document's key
// order is not kept), or nil if v isn't an object.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.keys
}

// Field looks up a single object field by exact key, returning Null on miss
// or if v isn't an object.
func (v Value) Field(key string) Value {
	if v.kind != KindObject {
		return Null
	}
	if val, ok := v.obj[key]; ok {
		return val
	}
	return Null
}

// Index returns the i'th array element, or Null if out of range or v isn't
// an array.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Null
	}
	return v.arr[i]
}

// Get walks a dotted/segmented path of object fields and array indices.
// A segment that parses as an integer is treated as an array index first,
// falling back to an object field lookup of the same literal string.
func (v Value) Get(path ...string) Value {
	cur := v
	for _, seg := range path {
		if cur.kind == KindArray {
			if idx, err := strconv.Atoi(seg); err == nil {
				cur = cur.Index(idx)
				continue
			}
		}
		cur = cur.Field(seg)
		if cur.IsNull() {
			return Null
		}
	}
	return cur
}

// GetPath is a convenience wrapper accepting a single "a.b.c" string.
func (v Value) GetPath(dotted string) Value {
	if dotted == "" {
		return v
	}
	return v.Get(strings.Split(dotted, ".")...)
}

// Walk visits every node in the tree depth-first up to maxDepth (root is
// depth 0), calling fn with the path of keys/indices taken to reach it and
// the node itself. fn returns false to stop descending into that node's
// children (siblings are still visited).
func (v Value) Walk(maxDepth int, fn func(path []string, val Value) bool) {
	walk(v, nil, 0, maxDepth, fn)
}

func walk(v Value, path []string, depth, maxDepth int, fn func([]string, Value) bool) {
	if !fn(path, v) {
		return
	}
	if depth >= maxDepth {
		return
	}
	switch v.kind {
	case KindObject:
		for _, k := range v.keys {
			walk(v.obj[k], append(append([]string{}, path...), k), depth+1, maxDepth, fn)
		}
	case KindArray:
		for i, e := range v.arr {
			walk(e, append(append([]string{}, path...), strconv.Itoa(i)), depth+1, maxDepth, fn)
		}
	}
}

// Len returns the number of elements (array) or fields (object); 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}
