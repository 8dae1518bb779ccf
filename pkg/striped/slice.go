package striped

import (
	"slices"

	"github.com/ZaninAndrea/zbra/pkg/schema"
)

// Slice returns rows [from, to) of a valid table as a new table that shares
// no buffers with t.
func Slice(t Table, from, to int) (Table, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}
	if from < 0 || to < from || to > t.RowCount() {
		return nil, newError(ErrRowCountMismatch, "", "row range [%d, %d) outside table of %d rows", from, to, t.RowCount())
	}
	return sliceTable(t, from, to), nil
}

func sliceTable(t Table, from, to int) Table {
	switch t := t.(type) {
	case BinaryTable:
		return BinaryTable{Default: t.Default, Encoding: t.Encoding, Data: slices.Clone(t.Data[from:to])}
	case ArrayTable:
		return ArrayTable{Default: t.Default, Column: sliceColumn(t.Column, from, to)}
	case MapTable:
		return MapTable{Default: t.Default, Key: sliceColumn(t.Key, from, to), Value: sliceColumn(t.Value, from, to)}
	default:
		panic("striped: internal assertion failed: unknown table type")
	}
}

func sliceColumn(c Column, from, to int) Column {
	switch c := c.(type) {
	case Unit:
		return Unit{Count: to - from}
	case Int:
		return Int{Default: c.Default, Encoding: c.Encoding, Values: slices.Clone(c.Values[from:to])}
	case Double:
		return Double{Default: c.Default, Values: slices.Clone(c.Values[from:to])}
	case Binary:
		start, end := c.Offsets[from], c.Offsets[to]
		return Binary{
			Default:  c.Default,
			Encoding: c.Encoding,
			Offsets:  rebase(c.Offsets[from : to+1]),
			Data:     slices.Clone(c.Data[start:end]),
		}
	case Array:
		start, end := int(c.Offsets[from]), int(c.Offsets[to])
		return Array{
			Default: c.Default,
			Offsets: rebase(c.Offsets[from : to+1]),
			Element: sliceColumn(c.Element, start, end),
		}
	case Map:
		start, end := int(c.Offsets[from]), int(c.Offsets[to])
		return Map{
			Default: c.Default,
			Offsets: rebase(c.Offsets[from : to+1]),
			Key:     sliceColumn(c.Key, start, end),
			Value:   sliceColumn(c.Value, start, end),
		}
	case Struct:
		fields := make([]FieldColumn, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = FieldColumn{Name: f.Name, Column: sliceColumn(f.Column, from, to)}
		}
		return Struct{Default: c.Default, Fields: fields}
	case Enum:
		before := tagCounts(c.Tags[:from])
		within := tagCounts(c.Tags[from:to])

		variants := make([]VariantColumn, len(c.Variants))
		for i, v := range c.Variants {
			start := before[v.Tag]
			variants[i] = VariantColumn{
				Name:   v.Name,
				Tag:    v.Tag,
				Column: sliceColumn(v.Column, start, start+within[v.Tag]),
			}
		}
		return Enum{Default: c.Default, Tags: slices.Clone(c.Tags[from:to]), Variants: variants}
	case Nested:
		start, end := int(c.Offsets[from]), int(c.Offsets[to])
		return Nested{
			Default: c.Default,
			Offsets: rebase(c.Offsets[from : to+1]),
			Table:   sliceTable(c.Table, start, end),
		}
	default:
		panic("striped: internal assertion failed: unknown column type")
	}
}

func rebase(offsets []int64) []int64 {
	out := make([]int64, len(offsets))
	for i, o := range offsets {
		out[i] = o - offsets[0]
	}
	return out
}

func tagCounts(tags []uint32) map[uint32]int {
	counts := make(map[uint32]int)
	for _, tag := range tags {
		counts[tag]++
	}
	return counts
}

// Concat appends tables with the same schema into a new table.
func Concat(tables []Table) (Table, error) {
	if len(tables) == 0 {
		return nil, newError(ErrColumnMismatch, "", "nothing to concatenate")
	}

	first := SchemaOf(tables[0])
	for _, t := range tables {
		if err := Validate(t); err != nil {
			return nil, err
		}
		if s := SchemaOf(t); !schema.Equal(first, s) {
			return nil, &Error{Kind: ErrColumnMismatch, Cause: schema.IncompatibleSchema(describe(s), describe(first))}
		}
	}
	return concatTables(tables), nil
}

func concatTables(tables []Table) Table {
	switch head := tables[0].(type) {
	case BinaryTable:
		var data []byte
		for _, t := range tables {
			data = append(data, t.(BinaryTable).Data...)
		}
		return BinaryTable{Default: head.Default, Encoding: head.Encoding, Data: data}
	case ArrayTable:
		columns := make([]Column, len(tables))
		for i, t := range tables {
			columns[i] = t.(ArrayTable).Column
		}
		return ArrayTable{Default: head.Default, Column: concatColumns(columns)}
	case MapTable:
		keys := make([]Column, len(tables))
		values := make([]Column, len(tables))
		for i, t := range tables {
			keys[i] = t.(MapTable).Key
			values[i] = t.(MapTable).Value
		}
		return MapTable{Default: head.Default, Key: concatColumns(keys), Value: concatColumns(values)}
	default:
		panic("striped: internal assertion failed: unknown table type")
	}
}

// concatColumns joins columns of identical shape; Concat checks the shapes.
func concatColumns(columns []Column) Column {
	switch head := columns[0].(type) {
	case Unit:
		count := 0
		for _, c := range columns {
			count += c.(Unit).Count
		}
		return Unit{Count: count}
	case Int:
		var values []int64
		for _, c := range columns {
			values = append(values, c.(Int).Values...)
		}
		return Int{Default: head.Default, Encoding: head.Encoding, Values: values}
	case Double:
		var values []float64
		for _, c := range columns {
			values = append(values, c.(Double).Values...)
		}
		return Double{Default: head.Default, Values: values}
	case Binary:
		offsets := make([][]int64, len(columns))
		var data []byte
		for i, c := range columns {
			offsets[i] = c.(Binary).Offsets
			data = append(data, c.(Binary).Data...)
		}
		return Binary{Default: head.Default, Encoding: head.Encoding, Offsets: concatOffsets(offsets), Data: data}
	case Array:
		offsets := make([][]int64, len(columns))
		elements := make([]Column, len(columns))
		for i, c := range columns {
			offsets[i] = c.(Array).Offsets
			elements[i] = c.(Array).Element
		}
		return Array{Default: head.Default, Offsets: concatOffsets(offsets), Element: concatColumns(elements)}
	case Map:
		offsets := make([][]int64, len(columns))
		keys := make([]Column, len(columns))
		values := make([]Column, len(columns))
		for i, c := range columns {
			offsets[i] = c.(Map).Offsets
			keys[i] = c.(Map).Key
			values[i] = c.(Map).Value
		}
		return Map{Default: head.Default, Offsets: concatOffsets(offsets), Key: concatColumns(keys), Value: concatColumns(values)}
	case Struct:
		fields := make([]FieldColumn, len(head.Fields))
		for f := range head.Fields {
			parts := make([]Column, len(columns))
			for i, c := range columns {
				parts[i] = c.(Struct).Fields[f].Column
			}
			fields[f] = FieldColumn{Name: head.Fields[f].Name, Column: concatColumns(parts)}
		}
		return Struct{Default: head.Default, Fields: fields}
	case Enum:
		var tags []uint32
		for _, c := range columns {
			tags = append(tags, c.(Enum).Tags...)
		}
		variants := make([]VariantColumn, len(head.Variants))
		for v := range head.Variants {
			parts := make([]Column, len(columns))
			for i, c := range columns {
				parts[i] = c.(Enum).Variants[v].Column
			}
			variants[v] = VariantColumn{Name: head.Variants[v].Name, Tag: head.Variants[v].Tag, Column: concatColumns(parts)}
		}
		return Enum{Default: head.Default, Tags: tags, Variants: variants}
	case Nested:
		offsets := make([][]int64, len(columns))
		tables := make([]Table, len(columns))
		for i, c := range columns {
			offsets[i] = c.(Nested).Offsets
			tables[i] = c.(Nested).Table
		}
		return Nested{Default: head.Default, Offsets: concatOffsets(offsets), Table: concatTables(tables)}
	default:
		panic("striped: internal assertion failed: unknown column type")
	}
}

func concatOffsets(parts [][]int64) []int64 {
	out := []int64{0}
	var base int64
	for _, offsets := range parts {
		for _, o := range offsets[1:] {
			out = append(out, base+o)
		}
		base += offsets[len(offsets)-1]
	}
	return out
}

func describe(s schema.Table) string {
	text, err := schema.MarshalTable(s)
	if err != nil {
		return s.Kind()
	}
	return string(text)
}
