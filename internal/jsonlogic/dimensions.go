// Package jsonlogic extracts targeting dimensions from JSON-logic contexts
// and builds augmented contexts from them.
//
// Only the flat subset used for targeting is understood: a root that is either
// a single condition or {"and": [condition, ...]}, where every condition is
// {operator: [operand, operand]} with exactly one {"var": name} operand.
// It is not a general JSON-logic evaluator.
package jsonlogic

import (
	"bytes"
	"encoding/json"
	"iter"
)

// Dimension is a single (name, value) pair extracted from a condition.
type Dimension struct {
	Name  string
	Value any
}

// Dimensions is an insertion-ordered, duplicate-free mapping of dimension
// name to value. Setting an existing name replaces its value in place.
type Dimensions struct {
	names  []string
	values map[string]any
}

// NewDimensions returns an empty mapping.
func NewDimensions() *Dimensions {
	return &Dimensions{values: make(map[string]any)}
}

// Set stores value under name, keeping the position of an earlier entry.
func (d *Dimensions) Set(name string, value any) {
	if _, ok := d.values[name]; !ok {
		d.names = append(d.names, name)
	}
	d.values[name] = value
}

// Get returns the value stored under name.
func (d *Dimensions) Get(name string) (any, bool) {
	v, ok := d.values[name]
	return v, ok
}

// Len returns the number of distinct dimension names.
func (d *Dimensions) Len() int {
	return len(d.names)
}

// Names returns the dimension names in discovery order.
func (d *Dimensions) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// All iterates the dimensions in discovery order.
func (d *Dimensions) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, name := range d.names {
			if !yield(name, d.values[name]) {
				return
			}
		}
	}
}

// Tuples returns the dimensions as a slice in discovery order.
func (d *Dimensions) Tuples() []Dimension {
	out := make([]Dimension, 0, len(d.names))
	for name, value := range d.All() {
		out = append(out, Dimension{Name: name, Value: value})
	}
	return out
}

// MarshalJSON encodes the mapping as a JSON object preserving discovery order.
func (d *Dimensions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range d.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(d.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Overlapping reports whether some evaluation context can satisfy both a and b:
// every dimension named by both must require the same value. Contexts with no
// shared dimension always overlap.
func Overlapping(a, b *Dimensions) bool {
	for name, av := range a.All() {
		bv, ok := b.Get(name)
		if ok && !sameValue(av, bv) {
			return false
		}
	}
	return true
}

// sameValue compares decoded JSON values by their encoding, so numbers decoded
// as float64 and json.Number agree.
func sameValue(a, b any) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
