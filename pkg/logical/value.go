// Package logical holds the row oriented form of a dataset: a tree of values
// shaped like its schema. It is the layer that talks to human authored text
// and the pivot between external data and the columnar engine.
package logical

import (
	"bytes"
	"math"
)

// Value is one node of a logical tree. A nil Value inside an Array, a Map or
// a Struct field stands for a missing value, which Conform replaces with a
// default or rejects depending on the schema policy.
type Value interface {
	isValue()
	Kind() string
}

type Unit struct{}

type Int int64

type Double float64

type Binary []byte

type Array []Value

type Map []Pair

type Pair struct {
	Key   Value
	Value Value
}

// Struct is an ordered list of named fields.
type Struct []Field

type Field struct {
	Name  string
	Value Value
}

type Enum struct {
	Tag   uint32
	Value Value
}

type Nested struct {
	Table Table
}

func (Unit) isValue()   {}
func (Int) isValue()    {}
func (Double) isValue() {}
func (Binary) isValue() {}
func (Array) isValue()  {}
func (Map) isValue()    {}
func (Struct) isValue() {}
func (Enum) isValue()   {}
func (Nested) isValue() {}

func (Unit) Kind() string   { return "unit" }
func (Int) Kind() string    { return "int" }
func (Double) Kind() string { return "double" }
func (Binary) Kind() string { return "binary" }
func (Array) Kind() string  { return "array" }
func (Map) Kind() string    { return "map" }
func (Struct) Kind() string { return "struct" }
func (Enum) Kind() string   { return "enum" }
func (Nested) Kind() string { return "nested" }

// Get returns the value of the named field.
func (s Struct) Get(name string) (Value, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Table is a whole dataset. Its row count is the number of elements, pairs or
// bytes depending on the variant.
type Table interface {
	isTable()
	Kind() string
	Len() int
}

type BinaryTable []byte

type ArrayTable []Value

type MapTable []Pair

func (BinaryTable) isTable() {}
func (ArrayTable) isTable()  {}
func (MapTable) isTable()    {}

func (BinaryTable) Kind() string { return "binary" }
func (ArrayTable) Kind() string  { return "array" }
func (MapTable) Kind() string    { return "map" }

func (t BinaryTable) Len() int { return len(t) }
func (t ArrayTable) Len() int  { return len(t) }
func (t MapTable) Len() int    { return len(t) }

func kindOf(v Value) string {
	if v == nil {
		return "null"
	}
	return v.Kind()
}

// Equal reports whether two tables hold the same data. Nil and empty
// sequences are equal and doubles are compared bit for bit, so NaN payloads
// survive a round trip check.
func Equal(a, b Table) bool {
	switch x := a.(type) {
	case BinaryTable:
		y, ok := b.(BinaryTable)
		return ok && bytes.Equal(x, y)
	case ArrayTable:
		y, ok := b.(ArrayTable)
		return ok && equalValues(x, y)
	case MapTable:
		y, ok := b.(MapTable)
		return ok && equalPairs(x, y)
	case nil:
		return b == nil
	default:
		return false
	}
}

// EqualValue is Equal for single values.
func EqualValue(a, b Value) bool {
	switch x := a.(type) {
	case Unit:
		_, ok := b.(Unit)
		return ok
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Double:
		y, ok := b.(Double)
		return ok && math.Float64bits(float64(x)) == math.Float64bits(float64(y))
	case Binary:
		y, ok := b.(Binary)
		return ok && bytes.Equal(x, y)
	case Array:
		y, ok := b.(Array)
		return ok && equalValues(x, y)
	case Map:
		y, ok := b.(Map)
		return ok && equalPairs(x, y)
	case Struct:
		y, ok := b.(Struct)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].Name != y[i].Name || !EqualValue(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case Enum:
		y, ok := b.(Enum)
		return ok && x.Tag == y.Tag && EqualValue(x.Value, y.Value)
	case Nested:
		y, ok := b.(Nested)
		return ok && Equal(x.Table, y.Table)
	case nil:
		return b == nil
	default:
		return false
	}
}

func equalValues(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualValue(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalPairs(a, b []Pair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualValue(a[i].Key, b[i].Key) || !EqualValue(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}
