package striped

import (
	"fmt"

	"github.com/ZaninAndrea/zbra/pkg/logical"
	"github.com/ZaninAndrea/zbra/pkg/schema"
)

// FromLogical stripes a logical table. The table must already conform to the
// schema (see logical.Conform): missing values are not defaulted here, and any
// disagreement with the schema is reported as an internal consistency failure
// wrapping the *schema.Error that describes it.
func FromLogical(s schema.Table, t logical.Table) (Table, error) {
	b, err := newTableBuilder(s)
	if err != nil {
		return nil, &Error{Kind: ErrConversion, Cause: err}
	}
	if err := b.push(t); err != nil {
		return nil, &Error{Kind: ErrConversion, Cause: err}
	}
	return b.finish(), nil
}

// Builders receive values one row at a time and append them to their
// vectors. Errors carry a path relative to the builder; parents prefix it
// with their own segment on the way up.

type builder interface {
	push(v logical.Value) error
	finish() Column
}

type tableBuilder interface {
	push(t logical.Table) error
	rows() int
	finish() Table
}

func newTableBuilder(s schema.Table) (tableBuilder, error) {
	switch s := s.(type) {
	case schema.BinaryTable:
		return &binaryTableBuilder{schema: s}, nil
	case schema.ArrayTable:
		element, err := newBuilder(s.Element)
		if err != nil {
			return nil, nest(err, "[]")
		}
		return &arrayTableBuilder{schema: s, element: element}, nil
	case schema.MapTable:
		key, err := newBuilder(s.Key)
		if err != nil {
			return nil, nest(err, "[].key")
		}
		value, err := newBuilder(s.Value)
		if err != nil {
			return nil, nest(err, "[].value")
		}
		return &mapTableBuilder{schema: s, key: key, value: value}, nil
	default:
		return nil, schema.UnsupportedType("", fmt.Sprintf("unknown table schema %T", s))
	}
}

func newBuilder(s schema.Value) (builder, error) {
	switch s := s.(type) {
	case schema.Unit:
		return &unitBuilder{}, nil
	case schema.Int:
		return &intBuilder{schema: s}, nil
	case schema.Double:
		return &doubleBuilder{schema: s}, nil
	case schema.Binary:
		return &binaryBuilder{schema: s, offsets: []int64{0}}, nil
	case schema.Array:
		element, err := newBuilder(s.Element)
		if err != nil {
			return nil, nest(err, "[]")
		}
		return &arrayBuilder{schema: s, offsets: []int64{0}, element: element}, nil
	case schema.Map:
		key, err := newBuilder(s.Key)
		if err != nil {
			return nil, nest(err, "[].key")
		}
		value, err := newBuilder(s.Value)
		if err != nil {
			return nil, nest(err, "[].value")
		}
		return &mapBuilder{schema: s, offsets: []int64{0}, key: key, value: value}, nil
	case schema.Struct:
		fields := make([]builder, len(s.Fields))
		for i, f := range s.Fields {
			b, err := newBuilder(f.Schema)
			if err != nil {
				return nil, nest(err, f.Name)
			}
			fields[i] = b
		}
		return &structBuilder{schema: s, fields: fields}, nil
	case schema.Enum:
		variants := make([]builder, len(s.Variants))
		for i, variant := range s.Variants {
			b, err := newBuilder(variant.Schema)
			if err != nil {
				return nil, nest(err, "<"+variant.Name+">")
			}
			variants[i] = b
		}
		return &enumBuilder{schema: s, variants: variants}, nil
	case schema.Nested:
		table, err := newTableBuilder(s.Table)
		if err != nil {
			return nil, nest(err, "/")
		}
		return &nestedBuilder{schema: s, offsets: []int64{0}, table: table}, nil
	default:
		return nil, schema.UnsupportedType("", fmt.Sprintf("unknown value schema %T", s))
	}
}

func mismatch(expected string, v logical.Value) *schema.Error {
	actual := "null"
	if v != nil {
		actual = v.Kind()
	}
	return schema.TypeMismatch("", expected, actual)
}

type unitBuilder struct {
	count int
}

func (b *unitBuilder) push(v logical.Value) error {
	if _, ok := v.(logical.Unit); !ok {
		return mismatch("unit", v)
	}
	b.count++
	return nil
}

func (b *unitBuilder) finish() Column {
	return Unit{Count: b.count}
}

type intBuilder struct {
	schema schema.Int
	values []int64
}

func (b *intBuilder) push(v logical.Value) error {
	n, ok := v.(logical.Int)
	if !ok {
		return mismatch(b.schema.Kind(), v)
	}
	b.values = append(b.values, int64(n))
	return nil
}

func (b *intBuilder) finish() Column {
	return Int{Default: b.schema.Default, Encoding: b.schema.Encoding, Values: b.values}
}

type doubleBuilder struct {
	schema schema.Double
	values []float64
}

func (b *doubleBuilder) push(v logical.Value) error {
	d, ok := v.(logical.Double)
	if !ok {
		return mismatch(b.schema.Kind(), v)
	}
	b.values = append(b.values, float64(d))
	return nil
}

func (b *doubleBuilder) finish() Column {
	return Double{Default: b.schema.Default, Values: b.values}
}

type binaryBuilder struct {
	schema  schema.Binary
	offsets []int64
	data    []byte
}

func (b *binaryBuilder) push(v logical.Value) error {
	bytes, ok := v.(logical.Binary)
	if !ok {
		return mismatch(b.schema.Kind(), v)
	}
	b.data = append(b.data, bytes...)
	b.offsets = append(b.offsets, int64(len(b.data)))
	return nil
}

func (b *binaryBuilder) finish() Column {
	return Binary{Default: b.schema.Default, Encoding: b.schema.Encoding, Offsets: b.offsets, Data: b.data}
}

type arrayBuilder struct {
	schema  schema.Array
	offsets []int64
	element builder
	count   int64
}

func (b *arrayBuilder) push(v logical.Value) error {
	elements, ok := v.(logical.Array)
	if !ok {
		return mismatch(b.schema.Kind(), v)
	}
	for i, element := range elements {
		if err := b.element.push(element); err != nil {
			return nest(err, schema.IndexPath("", i))
		}
	}
	b.count += int64(len(elements))
	b.offsets = append(b.offsets, b.count)
	return nil
}

func (b *arrayBuilder) finish() Column {
	return Array{Default: b.schema.Default, Offsets: b.offsets, Element: b.element.finish()}
}

type mapBuilder struct {
	schema  schema.Map
	offsets []int64
	key     builder
	value   builder
	count   int64
}

func (b *mapBuilder) push(v logical.Value) error {
	pairs, ok := v.(logical.Map)
	if !ok {
		return mismatch(b.schema.Kind(), v)
	}
	if err := pushPairs(b.key, b.value, pairs); err != nil {
		return err
	}
	b.count += int64(len(pairs))
	b.offsets = append(b.offsets, b.count)
	return nil
}

func (b *mapBuilder) finish() Column {
	return Map{Default: b.schema.Default, Offsets: b.offsets, Key: b.key.finish(), Value: b.value.finish()}
}

func pushPairs(key, value builder, pairs []logical.Pair) error {
	for i, p := range pairs {
		if err := key.push(p.Key); err != nil {
			return nest(err, schema.KeyPath("", i))
		}
		if err := value.push(p.Value); err != nil {
			return nest(err, schema.ValuePath("", i))
		}
	}
	return nil
}

type structBuilder struct {
	schema schema.Struct
	fields []builder
}

func (b *structBuilder) push(v logical.Value) error {
	fields, ok := v.(logical.Struct)
	if !ok {
		return mismatch(b.schema.Kind(), v)
	}

	// Conformed structs hold every schema field, in schema order.
	for i, fs := range b.schema.Fields {
		if i >= len(fields) {
			return schema.MissingField("", fs.Name)
		}
		if fields[i].Name != fs.Name {
			if _, _, known := b.schema.FieldByName(fields[i].Name); !known {
				return schema.UnknownField("", fields[i].Name)
			}
			return schema.MissingField("", fs.Name)
		}
	}
	if len(fields) > len(b.schema.Fields) {
		return schema.UnknownField("", fields[len(b.schema.Fields)].Name)
	}

	for i, f := range fields {
		if err := b.fields[i].push(f.Value); err != nil {
			return nest(err, f.Name)
		}
	}
	return nil
}

func (b *structBuilder) finish() Column {
	fields := make([]FieldColumn, len(b.fields))
	for i, f := range b.fields {
		fields[i] = FieldColumn{Name: b.schema.Fields[i].Name, Column: f.finish()}
	}
	return Struct{Default: b.schema.Default, Fields: fields}
}

type enumBuilder struct {
	schema   schema.Enum
	tags     []uint32
	variants []builder
}

func (b *enumBuilder) push(v logical.Value) error {
	e, ok := v.(logical.Enum)
	if !ok {
		return mismatch(b.schema.Kind(), v)
	}

	variant, index, ok := b.schema.VariantByTag(e.Tag)
	if !ok {
		return schema.UnsupportedType("", fmt.Sprintf("enum tag %d", e.Tag))
	}
	if err := b.variants[index].push(e.Value); err != nil {
		return nest(err, "<"+variant.Name+">")
	}
	b.tags = append(b.tags, e.Tag)
	return nil
}

func (b *enumBuilder) finish() Column {
	variants := make([]VariantColumn, len(b.variants))
	for i, v := range b.variants {
		declared := b.schema.Variants[i]
		variants[i] = VariantColumn{Name: declared.Name, Tag: declared.Tag, Column: v.finish()}
	}
	return Enum{Default: b.schema.Default, Tags: b.tags, Variants: variants}
}

type nestedBuilder struct {
	schema  schema.Nested
	offsets []int64
	table   tableBuilder
}

func (b *nestedBuilder) push(v logical.Value) error {
	n, ok := v.(logical.Nested)
	if !ok {
		return mismatch(b.schema.Kind(), v)
	}
	if err := b.table.push(n.Table); err != nil {
		return nest(err, "/")
	}
	b.offsets = append(b.offsets, int64(b.table.rows()))
	return nil
}

func (b *nestedBuilder) finish() Column {
	return Nested{Default: b.schema.Default, Offsets: b.offsets, Table: b.table.finish()}
}

type binaryTableBuilder struct {
	schema schema.BinaryTable
	data   []byte
}

func (b *binaryTableBuilder) push(t logical.Table) error {
	data, ok := t.(logical.BinaryTable)
	if !ok {
		return tableMismatch(b.schema.Kind(), t)
	}
	b.data = append(b.data, data...)
	return nil
}

func (b *binaryTableBuilder) rows() int { return len(b.data) }

func (b *binaryTableBuilder) finish() Table {
	return BinaryTable{Default: b.schema.Default, Encoding: b.schema.Encoding, Data: b.data}
}

type arrayTableBuilder struct {
	schema  schema.ArrayTable
	element builder
	count   int
}

func (b *arrayTableBuilder) push(t logical.Table) error {
	rows, ok := t.(logical.ArrayTable)
	if !ok {
		return tableMismatch(b.schema.Kind(), t)
	}
	for i, row := range rows {
		if err := b.element.push(row); err != nil {
			return nest(err, schema.IndexPath("", i))
		}
	}
	b.count += len(rows)
	return nil
}

func (b *arrayTableBuilder) rows() int { return b.count }

func (b *arrayTableBuilder) finish() Table {
	return ArrayTable{Default: b.schema.Default, Column: b.element.finish()}
}

type mapTableBuilder struct {
	schema schema.MapTable
	key    builder
	value  builder
	count  int
}

func (b *mapTableBuilder) push(t logical.Table) error {
	pairs, ok := t.(logical.MapTable)
	if !ok {
		return tableMismatch(b.schema.Kind(), t)
	}
	if err := pushPairs(b.key, b.value, pairs); err != nil {
		return err
	}
	b.count += len(pairs)
	return nil
}

func (b *mapTableBuilder) rows() int { return b.count }

func (b *mapTableBuilder) finish() Table {
	return MapTable{Default: b.schema.Default, Key: b.key.finish(), Value: b.value.finish()}
}

func tableMismatch(expected string, t logical.Table) *schema.Error {
	actual := "null"
	if t != nil {
		actual = t.Kind()
	}
	return schema.TypeMismatch("", expected, actual)
}

// nest prefixes the path of a schema error with the segment of the node that
// contains it.
func nest(err error, segment string) error {
	se, ok := err.(*schema.Error)
	if !ok {
		return err
	}

	nested := *se
	switch {
	case se.Path == "":
		nested.Path = segment
	case se.Path[0] == '[' || se.Path[0] == '<' || se.Path[0] == '/':
		nested.Path = segment + se.Path
	default:
		nested.Path = segment + "." + se.Path
	}
	return &nested
}
