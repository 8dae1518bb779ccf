// Package striped holds the column oriented form of a dataset: one vector per
// scalar leaf, offsets for variable length values, a tag vector plus one dense
// column per variant for enums. It converts to and from the logical row tree.
//
// Offsets vectors have one entry per row plus one; they start at 0, never
// decrease, and end at the row count of the child they index into (the byte
// count for binary columns).
package striped

import "github.com/ZaninAndrea/zbra/pkg/schema"

type Column interface {
	isColumn()
	Kind() string
	RowCount() int
}

type Unit struct {
	Count int
}

type Int struct {
	Default  schema.Default
	Encoding schema.IntEncoding
	Values   []int64
}

type Double struct {
	Default schema.Default
	Values  []float64
}

type Binary struct {
	Default  schema.Default
	Encoding schema.BinaryEncoding
	Offsets  []int64
	Data     []byte
}

type Array struct {
	Default schema.Default
	Offsets []int64
	Element Column
}

type Map struct {
	Default schema.Default
	Offsets []int64
	Key     Column
	Value   Column
}

type Struct struct {
	Default schema.Default
	Fields  []FieldColumn
}

type FieldColumn struct {
	Name   string
	Column Column
}

// Enum stores one tag per row. Each variant column only holds the rows tagged
// for it, in row order, so the variant lengths sum to the row count.
type Enum struct {
	Default  schema.Default
	Tags     []uint32
	Variants []VariantColumn
}

type VariantColumn struct {
	Name   string
	Tag    uint32
	Column Column
}

// Nested stores every row's table back to back in Table; Offsets delimit the
// rows of Table that belong to each row.
type Nested struct {
	Default schema.Default
	Offsets []int64
	Table   Table
}

func (Unit) isColumn()   {}
func (Int) isColumn()    {}
func (Double) isColumn() {}
func (Binary) isColumn() {}
func (Array) isColumn()  {}
func (Map) isColumn()    {}
func (Struct) isColumn() {}
func (Enum) isColumn()   {}
func (Nested) isColumn() {}

func (Unit) Kind() string   { return "unit" }
func (Int) Kind() string    { return "int" }
func (Double) Kind() string { return "double" }
func (Binary) Kind() string { return "binary" }
func (Array) Kind() string  { return "array" }
func (Map) Kind() string    { return "map" }
func (Struct) Kind() string { return "struct" }
func (Enum) Kind() string   { return "enum" }
func (Nested) Kind() string { return "nested" }

func (c Unit) RowCount() int   { return c.Count }
func (c Int) RowCount() int    { return len(c.Values) }
func (c Double) RowCount() int { return len(c.Values) }
func (c Binary) RowCount() int { return offsetRows(c.Offsets) }
func (c Array) RowCount() int  { return offsetRows(c.Offsets) }
func (c Map) RowCount() int    { return offsetRows(c.Offsets) }
func (c Enum) RowCount() int   { return len(c.Tags) }
func (c Nested) RowCount() int { return offsetRows(c.Offsets) }

func (c Struct) RowCount() int {
	if len(c.Fields) == 0 {
		return 0
	}
	return c.Fields[0].Column.RowCount()
}

func offsetRows(offsets []int64) int {
	if len(offsets) == 0 {
		return 0
	}
	return len(offsets) - 1
}

// Table is a whole striped dataset.
type Table interface {
	isTable()
	Kind() string
	RowCount() int
}

// BinaryTable is a byte string; every byte is a row.
type BinaryTable struct {
	Default  schema.Default
	Encoding schema.BinaryEncoding
	Data     []byte
}

type ArrayTable struct {
	Default schema.Default
	Column  Column
}

type MapTable struct {
	Default schema.Default
	Key     Column
	Value   Column
}

func (BinaryTable) isTable() {}
func (ArrayTable) isTable()  {}
func (MapTable) isTable()    {}

func (BinaryTable) Kind() string { return "binary" }
func (ArrayTable) Kind() string  { return "array" }
func (MapTable) Kind() string    { return "map" }

func (t BinaryTable) RowCount() int { return len(t.Data) }
func (t ArrayTable) RowCount() int  { return t.Column.RowCount() }
func (t MapTable) RowCount() int    { return t.Key.RowCount() }
