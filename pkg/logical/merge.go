package logical

import (
	"bytes"
	"slices"

	"github.com/ZaninAndrea/zbra/pkg/schema"
)

// Merge combines two tables of the same kind. Array tables are concatenated
// and map tables merge the values of equal keys, keeping the key order of a
// followed by the new keys of b. Binary tables merge only when equal.
//
// Conflicting scalars fail with ErrInvalidValue, values of different kinds
// with ErrStructureMismatch. The inputs are not modified.
func Merge(a, b Table) (Table, error) {
	if b == nil {
		return a, nil
	}

	switch x := a.(type) {
	case BinaryTable:
		y, ok := b.(BinaryTable)
		if !ok {
			return nil, mergeMismatch("", a.Kind(), b.Kind())
		}
		if !bytes.Equal(x, y) {
			return nil, invalidValue("", "cannot merge different binary tables")
		}
		return slices.Clone(x), nil
	case ArrayTable:
		y, ok := b.(ArrayTable)
		if !ok {
			return nil, mergeMismatch("", a.Kind(), b.Kind())
		}
		return ArrayTable(slices.Concat(x, y)), nil
	case MapTable:
		y, ok := b.(MapTable)
		if !ok {
			return nil, mergeMismatch("", a.Kind(), b.Kind())
		}
		pairs, err := mergePairs("", x, y)
		if err != nil {
			return nil, err
		}
		return MapTable(pairs), nil
	case nil:
		return b, nil
	default:
		panic("internal assertion failed: unknown logical table")
	}
}

// MergeValue combines two values. Arrays are concatenated, maps merge equal
// keys, structs merge field by field and need the same field names in the
// same order, enums need the same tag. Scalars merge only when equal, doubles
// bit for bit. A missing (nil) value yields the other one.
func MergeValue(a, b Value) (Value, error) {
	return mergeValue("", a, b)
}

func mergeValue(path string, a, b Value) (Value, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	if a.Kind() != b.Kind() {
		return nil, mergeMismatch(path, a.Kind(), b.Kind())
	}

	switch x := a.(type) {
	case Unit:
		return Unit{}, nil
	case Int:
		if y := b.(Int); x != y {
			return nil, invalidValue(path, "cannot merge different integers %d and %d", int64(x), int64(y))
		}
		return x, nil
	case Double:
		if !EqualValue(x, b) {
			return nil, invalidValue(path, "cannot merge different doubles %v and %v", float64(x), float64(b.(Double)))
		}
		return x, nil
	case Binary:
		if !bytes.Equal(x, b.(Binary)) {
			return nil, invalidValue(path, "cannot merge different binary values")
		}
		return slices.Clone(x), nil
	case Array:
		return Array(slices.Concat(x, b.(Array))), nil
	case Map:
		pairs, err := mergePairs(path, x, b.(Map))
		if err != nil {
			return nil, err
		}
		return Map(pairs), nil
	case Struct:
		return mergeStruct(path, x, b.(Struct))
	case Enum:
		y := b.(Enum)
		if x.Tag != y.Tag {
			return nil, invalidValue(path, "cannot merge enums with different tags %d and %d", x.Tag, y.Tag)
		}
		v, err := mergeValue(path, x.Value, y.Value)
		if err != nil {
			return nil, err
		}
		return Enum{Tag: x.Tag, Value: v}, nil
	case Nested:
		t, err := Merge(x.Table, b.(Nested).Table)
		if err != nil {
			if e, ok := err.(*Error); ok && e.Path == "" {
				e.Path = path
			}
			return nil, err
		}
		return Nested{Table: t}, nil
	default:
		panic("internal assertion failed: unknown logical value")
	}
}

func mergeStruct(path string, a, b Struct) (Value, error) {
	if len(a) != len(b) {
		return nil, &Error{Kind: ErrStructureMismatch, Path: path,
			Reason: "cannot merge structs with different field counts"}
	}

	merged := make(Struct, len(a))
	for i := range a {
		if a[i].Name != b[i].Name {
			return nil, &Error{Kind: ErrStructureMismatch, Path: path,
				Reason: "field name mismatch: " + a[i].Name + " vs " + b[i].Name}
		}
		v, err := mergeValue(schema.FieldPath(path, a[i].Name), a[i].Value, b[i].Value)
		if err != nil {
			return nil, err
		}
		merged[i] = Field{Name: a[i].Name, Value: v}
	}
	return merged, nil
}

func mergePairs(path string, a, b []Pair) ([]Pair, error) {
	merged := slices.Clone(a)
	for i, p := range b {
		j := slices.IndexFunc(merged, func(q Pair) bool { return EqualValue(q.Key, p.Key) })
		if j < 0 {
			merged = append(merged, p)
			continue
		}
		v, err := mergeValue(schema.ValuePath(path, i), merged[j].Value, p.Value)
		if err != nil {
			return nil, err
		}
		merged[j].Value = v
	}
	return merged, nil
}

func mergeMismatch(path, a, b string) *Error {
	return &Error{Kind: ErrStructureMismatch, Path: path,
		Reason: "cannot merge " + a + " with " + b}
}
