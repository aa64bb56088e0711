// Package document provides the read-only JSON tree consumed by the parser.
//
// A Node is one of four concrete types: *Object, *Array, *Scalar or Null.
// The set is closed (Node has an unexported method), so a type switch over
// those four cases is exhaustive:
//
//	switch v := n.(type) {
//	case *document.Object:
//	case *document.Array:
//	case *document.Scalar:
//	case document.Null:
//	}
//
// Objects keep their keys in document order, which the FHIR JSON convention
// depends on (extension order is significant).
package document

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind identifies the JSON kind of a Node.
type Kind int

// Node kinds.
const (
	KindNull Kind = iota
	KindObject
	KindArray
	KindScalar
)

// String returns the upper-case kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "OBJECT"
	case KindArray:
		return "ARRAY"
	case KindScalar:
		return "SCALAR"
	case KindNull:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

// ScalarType is the JSON type of a scalar value.
type ScalarType int

// Scalar types.
const (
	ScalarString ScalarType = iota
	ScalarNumber
	ScalarBoolean
)

// String returns the upper-case scalar type name used in diagnostics.
func (t ScalarType) String() string {
	switch t {
	case ScalarString:
		return "STRING"
	case ScalarNumber:
		return "NUMBER"
	case ScalarBoolean:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

// Node is a JSON value.
type Node interface {
	Kind() Kind
	node()
}

// Object is a JSON object with keys in document order.
type Object struct {
	keys   []string
	values map[string]Node
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]Node)}
}

// Kind implements Node.
func (o *Object) Kind() Kind { return KindObject }

func (o *Object) node() {}

// Set stores a value under key. A key that is already present keeps its
// original position and takes the new value.
func (o *Object) Set(key string, value Node) {
	if value == nil {
		value = Null{}
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Node, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Keys returns the keys in document order. The slice must not be modified.
func (o *Object) Keys() []string {
	return o.keys
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// Array is a JSON array.
type Array struct {
	items []Node
}

// NewArray returns an array holding items.
func NewArray(items ...Node) *Array {
	for i, item := range items {
		if item == nil {
			items[i] = Null{}
		}
	}
	return &Array{items: items}
}

// Kind implements Node.
func (a *Array) Kind() Kind { return KindArray }

func (a *Array) node() {}

// Len returns the number of entries.
func (a *Array) Len() int {
	return len(a.items)
}

// At returns the entry at index i.
func (a *Array) At(i int) Node {
	return a.items[i]
}

// Items returns all entries. The slice must not be modified.
func (a *Array) Items() []Node {
	return a.items
}

// Scalar is a JSON string, number or boolean.
type Scalar struct {
	value string
	typ   ScalarType
}

// NewString returns a string scalar.
func NewString(s string) *Scalar {
	return &Scalar{value: s, typ: ScalarString}
}

// NewNumber returns a number scalar holding the literal text of the number.
func NewNumber(literal string) *Scalar {
	return &Scalar{value: literal, typ: ScalarNumber}
}

// NewBool returns a boolean scalar.
func NewBool(b bool) *Scalar {
	return &Scalar{value: strconv.FormatBool(b), typ: ScalarBoolean}
}

// Kind implements Node.
func (s *Scalar) Kind() Kind { return KindScalar }

func (s *Scalar) node() {}

// String returns the string form of the value. Numbers keep the literal
// text from the document, so "1.50" stays "1.50".
func (s *Scalar) String() string {
	return s.value
}

// Type returns the JSON type of the scalar.
func (s *Scalar) Type() ScalarType {
	return s.typ
}

// IsString reports whether the scalar is a JSON string.
func (s *Scalar) IsString() bool {
	return s.typ == ScalarString
}

// Decimal returns the value of a number scalar with its precision intact.
func (s *Scalar) Decimal() (decimal.Decimal, error) {
	if s.typ != ScalarNumber {
		return decimal.Decimal{}, fmt.Errorf("scalar is %s, not NUMBER", s.typ)
	}
	return decimal.NewFromString(s.value)
}

// Bool returns the value of a boolean scalar.
func (s *Scalar) Bool() (bool, error) {
	if s.typ != ScalarBoolean {
		return false, fmt.Errorf("scalar is %s, not BOOLEAN", s.typ)
	}
	return s.value == "true", nil
}

// Null is the JSON null value.
type Null struct{}

// Kind implements Node.
func (Null) Kind() Kind { return KindNull }

func (Null) node() {}

// KindOf returns the kind of n, treating a nil Node as null.
func KindOf(n Node) Kind {
	if n == nil {
		return KindNull
	}
	return n.Kind()
}

// TypeName describes n for diagnostics: the scalar type for scalars,
// the kind otherwise.
func TypeName(n Node) string {
	if s, ok := n.(*Scalar); ok {
		return s.typ.String()
	}
	return KindOf(n).String()
}

// IsStringScalar reports whether n is a JSON string.
func IsStringScalar(n Node) bool {
	s, ok := n.(*Scalar)
	return ok && s.IsString()
}
