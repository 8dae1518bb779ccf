package striped

import (
	"slices"

	"github.com/ZaninAndrea/zbra/pkg/logical"
)

// ToLogical rebuilds the logical rows of a striped table. The table is
// checked with Validate first, so corrupted offsets or tags surface as errors
// instead of out of range reads.
func ToLogical(t Table) (logical.Table, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}

	r := newTableReader(t)
	return r.take(t.RowCount()), nil
}

// Readers walk a column with their own cursor. Variable length columns read
// their offsets to know how many child values belong to the next row, and
// enum readers advance only the reader of the tagged variant, which acts as
// that variant's running counter.

type reader interface {
	next() logical.Value
}

type tableReader interface {
	take(n int) logical.Table
}

func newReader(c Column) reader {
	switch c := c.(type) {
	case Unit:
		return unitReader{}
	case Int:
		return &intReader{values: c.Values}
	case Double:
		return &doubleReader{values: c.Values}
	case Binary:
		return &binaryReader{offsets: c.Offsets, data: c.Data}
	case Array:
		return &arrayReader{offsets: c.Offsets, element: newReader(c.Element)}
	case Map:
		return &mapReader{offsets: c.Offsets, key: newReader(c.Key), value: newReader(c.Value)}
	case Struct:
		fields := make([]reader, len(c.Fields))
		names := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = newReader(f.Column)
			names[i] = f.Name
		}
		return &structReader{names: names, fields: fields}
	case Enum:
		variants := make(map[uint32]reader, len(c.Variants))
		for _, v := range c.Variants {
			variants[v.Tag] = newReader(v.Column)
		}
		return &enumReader{tags: c.Tags, variants: variants}
	case Nested:
		return &nestedReader{offsets: c.Offsets, table: newTableReader(c.Table)}
	default:
		// Validate rejects unknown columns before any reader is built.
		panic("striped: internal assertion failed: unknown column type")
	}
}

func newTableReader(t Table) tableReader {
	switch t := t.(type) {
	case BinaryTable:
		return &binaryTableReader{data: t.Data}
	case ArrayTable:
		return &arrayTableReader{element: newReader(t.Column)}
	case MapTable:
		return &mapTableReader{key: newReader(t.Key), value: newReader(t.Value)}
	default:
		panic("striped: internal assertion failed: unknown table type")
	}
}

type unitReader struct{}

func (unitReader) next() logical.Value { return logical.Unit{} }

type intReader struct {
	values []int64
	pos    int
}

func (r *intReader) next() logical.Value {
	v := r.values[r.pos]
	r.pos++
	return logical.Int(v)
}

type doubleReader struct {
	values []float64
	pos    int
}

func (r *doubleReader) next() logical.Value {
	v := r.values[r.pos]
	r.pos++
	return logical.Double(v)
}

type binaryReader struct {
	offsets []int64
	data    []byte
	pos     int
}

func (r *binaryReader) next() logical.Value {
	start, end := r.offsets[r.pos], r.offsets[r.pos+1]
	r.pos++
	return logical.Binary(slices.Clone(r.data[start:end]))
}

type arrayReader struct {
	offsets []int64
	element reader
	pos     int
}

func (r *arrayReader) next() logical.Value {
	n := int(r.offsets[r.pos+1] - r.offsets[r.pos])
	r.pos++

	out := make(logical.Array, n)
	for i := range out {
		out[i] = r.element.next()
	}
	return out
}

type mapReader struct {
	offsets []int64
	key     reader
	value   reader
	pos     int
}

func (r *mapReader) next() logical.Value {
	n := int(r.offsets[r.pos+1] - r.offsets[r.pos])
	r.pos++
	return logical.Map(readPairs(r.key, r.value, n))
}

func readPairs(key, value reader, n int) []logical.Pair {
	out := make([]logical.Pair, n)
	for i := range out {
		out[i] = logical.Pair{Key: key.next(), Value: value.next()}
	}
	return out
}

type structReader struct {
	names  []string
	fields []reader
}

func (r *structReader) next() logical.Value {
	out := make(logical.Struct, len(r.fields))
	for i, f := range r.fields {
		out[i] = logical.Field{Name: r.names[i], Value: f.next()}
	}
	return out
}

type enumReader struct {
	tags     []uint32
	variants map[uint32]reader
	pos      int
}

func (r *enumReader) next() logical.Value {
	tag := r.tags[r.pos]
	r.pos++
	return logical.Enum{Tag: tag, Value: r.variants[tag].next()}
}

type nestedReader struct {
	offsets []int64
	table   tableReader
	pos     int
}

func (r *nestedReader) next() logical.Value {
	n := int(r.offsets[r.pos+1] - r.offsets[r.pos])
	r.pos++
	return logical.Nested{Table: r.table.take(n)}
}

type binaryTableReader struct {
	data []byte
	pos  int
}

func (r *binaryTableReader) take(n int) logical.Table {
	out := slices.Clone(r.data[r.pos : r.pos+n])
	r.pos += n
	return logical.BinaryTable(out)
}

type arrayTableReader struct {
	element reader
}

func (r *arrayTableReader) take(n int) logical.Table {
	out := make(logical.ArrayTable, n)
	for i := range out {
		out[i] = r.element.next()
	}
	return out
}

type mapTableReader struct {
	key   reader
	value reader
}

func (r *mapTableReader) take(n int) logical.Table {
	return logical.MapTable(readPairs(r.key, r.value, n))
}
