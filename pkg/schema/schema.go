// Package schema describes the shape of a zbra dataset: the top level table,
// the recursive value slots inside it, their encodings and the policy applied
// when a value is missing.
//
// Table and Value are closed sets. Every consumer dispatches on them with an
// exhaustive type switch; the unexported marker methods keep other packages
// from adding variants.
package schema

import "reflect"

// Default is the policy applied when a value is absent from the input.
type Default uint8

const (
	// Allow materializes a missing value as the canonical default of its type.
	Allow Default = iota
	// Deny rejects a missing value.
	Deny
)

func (d Default) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

type IntEncoding uint8

const (
	IntEncodingInt IntEncoding = iota
	IntEncodingDate
	IntEncodingTimeSeconds
	IntEncodingTimeMilliseconds
	IntEncodingTimeMicroseconds
)

func (e IntEncoding) String() string {
	switch e {
	case IntEncodingInt:
		return "int"
	case IntEncodingDate:
		return "date"
	case IntEncodingTimeSeconds:
		return "time_seconds"
	case IntEncodingTimeMilliseconds:
		return "time_milliseconds"
	case IntEncodingTimeMicroseconds:
		return "time_microseconds"
	default:
		return "unknown"
	}
}

type BinaryEncoding uint8

const (
	BinaryEncodingBinary BinaryEncoding = iota
	BinaryEncodingUTF8
)

func (e BinaryEncoding) String() string {
	switch e {
	case BinaryEncodingBinary:
		return "binary"
	case BinaryEncodingUTF8:
		return "utf8"
	default:
		return "unknown"
	}
}

// MaxDate is the largest accepted Date value, in milliseconds since the Unix
// epoch (2100-01-01T00:00:00Z). Keeping dates below it keeps the
// frame-of-reference deltas of clustered timestamps under the 32 bit packing
// threshold.
const MaxDate int64 = 4_102_444_800_000

// Table is the shape of a whole dataset.
type Table interface {
	isTable()
	// Kind is the lower case variant name used in error messages and JSON.
	Kind() string
}

type BinaryTable struct {
	Default  Default
	Encoding BinaryEncoding
}

type ArrayTable struct {
	Default Default
	Element Value
}

type MapTable struct {
	Default Default
	Key     Value
	Value   Value
}

func (BinaryTable) isTable() {}
func (ArrayTable) isTable()  {}
func (MapTable) isTable()    {}

func (BinaryTable) Kind() string { return "binary" }
func (ArrayTable) Kind() string  { return "array" }
func (MapTable) Kind() string    { return "map" }

// Value is the shape of one value slot.
type Value interface {
	isValue()
	Kind() string
}

// Unit carries no data. It is mostly used as the payload of enum variants.
type Unit struct{}

type Int struct {
	Default  Default
	Encoding IntEncoding
}

type Double struct {
	Default Default
}

type Binary struct {
	Default  Default
	Encoding BinaryEncoding
}

type Struct struct {
	Default Default
	Fields  []Field
}

type Enum struct {
	Default  Default
	Variants []Variant
}

type Array struct {
	Default Default
	Element Value
}

type Map struct {
	Default Default
	Key     Value
	Value   Value
}

type Nested struct {
	Default Default
	Table   Table
}

// Field is a named struct member. Field order defines column order.
type Field struct {
	Name   string
	Schema Value
}

// Variant is one alternative of an enum. Tag is the wire identity of the
// variant, declaration order is its serialization order.
type Variant struct {
	Name   string
	Tag    uint32
	Schema Value
}

func (Unit) isValue()   {}
func (Int) isValue()    {}
func (Double) isValue() {}
func (Binary) isValue() {}
func (Struct) isValue() {}
func (Enum) isValue()   {}
func (Array) isValue()  {}
func (Map) isValue()    {}
func (Nested) isValue() {}

func (Unit) Kind() string   { return "unit" }
func (Int) Kind() string    { return "int" }
func (Double) Kind() string { return "double" }
func (Binary) Kind() string { return "binary" }
func (Struct) Kind() string { return "struct" }
func (Enum) Kind() string   { return "enum" }
func (Array) Kind() string  { return "array" }
func (Map) Kind() string    { return "map" }
func (Nested) Kind() string { return "nested" }

// DefaultOf returns the missing value policy of a value schema. Unit has no
// data and therefore always allows absence.
func DefaultOf(v Value) Default {
	switch s := v.(type) {
	case Int:
		return s.Default
	case Double:
		return s.Default
	case Binary:
		return s.Default
	case Struct:
		return s.Default
	case Enum:
		return s.Default
	case Array:
		return s.Default
	case Map:
		return s.Default
	case Nested:
		return s.Default
	default:
		return Allow
	}
}

// VariantByTag returns the variant declared with the given tag.
func (e Enum) VariantByTag(tag uint32) (Variant, int, bool) {
	for i, v := range e.Variants {
		if v.Tag == tag {
			return v, i, true
		}
	}
	return Variant{}, -1, false
}

// FieldByName returns the field declared with the given name.
func (s Struct) FieldByName(name string) (Field, int, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// Equal reports whether two table schemas describe the same shape.
func Equal(a, b Table) bool {
	return reflect.DeepEqual(a, b)
}

// EqualValue reports whether two value schemas describe the same shape.
func EqualValue(a, b Value) bool {
	return reflect.DeepEqual(a, b)
}
