package striped

import (
	"bytes"
	"math"
	"slices"
)

// Equal reports whether two striped tables hold the same columns. Nil and
// empty vectors are equal and doubles are compared bit for bit.
func Equal(a, b Table) bool {
	switch x := a.(type) {
	case BinaryTable:
		y, ok := b.(BinaryTable)
		return ok && x.Default == y.Default && x.Encoding == y.Encoding && bytes.Equal(x.Data, y.Data)
	case ArrayTable:
		y, ok := b.(ArrayTable)
		return ok && x.Default == y.Default && EqualColumn(x.Column, y.Column)
	case MapTable:
		y, ok := b.(MapTable)
		return ok && x.Default == y.Default && EqualColumn(x.Key, y.Key) && EqualColumn(x.Value, y.Value)
	case nil:
		return b == nil
	default:
		return false
	}
}

func EqualColumn(a, b Column) bool {
	switch x := a.(type) {
	case Unit:
		y, ok := b.(Unit)
		return ok && x.Count == y.Count
	case Int:
		y, ok := b.(Int)
		return ok && x.Default == y.Default && x.Encoding == y.Encoding && slices.Equal(x.Values, y.Values)
	case Double:
		y, ok := b.(Double)
		return ok && x.Default == y.Default && slices.EqualFunc(x.Values, y.Values, func(p, q float64) bool {
			return math.Float64bits(p) == math.Float64bits(q)
		})
	case Binary:
		y, ok := b.(Binary)
		return ok && x.Default == y.Default && x.Encoding == y.Encoding &&
			slices.Equal(x.Offsets, y.Offsets) && bytes.Equal(x.Data, y.Data)
	case Array:
		y, ok := b.(Array)
		return ok && x.Default == y.Default && slices.Equal(x.Offsets, y.Offsets) && EqualColumn(x.Element, y.Element)
	case Map:
		y, ok := b.(Map)
		return ok && x.Default == y.Default && slices.Equal(x.Offsets, y.Offsets) &&
			EqualColumn(x.Key, y.Key) && EqualColumn(x.Value, y.Value)
	case Struct:
		y, ok := b.(Struct)
		return ok && x.Default == y.Default && slices.EqualFunc(x.Fields, y.Fields, func(p, q FieldColumn) bool {
			return p.Name == q.Name && EqualColumn(p.Column, q.Column)
		})
	case Enum:
		y, ok := b.(Enum)
		return ok && x.Default == y.Default && slices.Equal(x.Tags, y.Tags) &&
			slices.EqualFunc(x.Variants, y.Variants, func(p, q VariantColumn) bool {
				return p.Name == q.Name && p.Tag == q.Tag && EqualColumn(p.Column, q.Column)
			})
	case Nested:
		y, ok := b.(Nested)
		return ok && x.Default == y.Default && slices.Equal(x.Offsets, y.Offsets) && Equal(x.Table, y.Table)
	case nil:
		return b == nil
	default:
		return false
	}
}
