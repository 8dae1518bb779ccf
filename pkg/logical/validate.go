package logical

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/ZaninAndrea/zbra/pkg/schema"
)

// Validate walks a schema and a table in lockstep and reports the first
// violation as a *schema.Error.
//
// Missing values under an Allow policy are accepted; Conform shows what they
// materialize to.
func Validate(s schema.Table, t Table) error {
	_, err := Conform(s, t)
	return err
}

// ValidateValue is Validate for a single value.
func ValidateValue(s schema.Value, v Value) error {
	_, err := ConformValue(s, v)
	return err
}

// Conform validates a table and returns its materialized form: missing values
// are replaced with their canonical defaults and struct fields are put in
// schema order. The input is not modified.
func Conform(s schema.Table, t Table) (Table, error) {
	return conformTable("", s, t)
}

// ConformValue is Conform for a single value.
func ConformValue(s schema.Value, v Value) (Value, error) {
	return conformValue("", s, v)
}

// DefaultTable returns the canonical default of a table schema: an empty table
// of the matching variant.
func DefaultTable(s schema.Table) (Table, error) {
	switch s.(type) {
	case schema.BinaryTable:
		return BinaryTable{}, nil
	case schema.ArrayTable:
		return ArrayTable{}, nil
	case schema.MapTable:
		return MapTable{}, nil
	default:
		return nil, schema.UnsupportedType("", fmt.Sprintf("unknown table schema %T", s))
	}
}

// DefaultValue returns the canonical default of a value schema. Enums have no
// designated default variant, so asking for one is an error.
func DefaultValue(s schema.Value) (Value, error) {
	return defaultValue("", s)
}

func defaultValue(path string, s schema.Value) (Value, error) {
	switch s := s.(type) {
	case schema.Unit:
		return Unit{}, nil
	case schema.Int:
		return Int(0), nil
	case schema.Double:
		return Double(0), nil
	case schema.Binary:
		return Binary{}, nil
	case schema.Array:
		return Array{}, nil
	case schema.Map:
		return Map{}, nil
	case schema.Struct:
		fields := make(Struct, len(s.Fields))
		for i, f := range s.Fields {
			v, err := defaultValue(schema.FieldPath(path, f.Name), f.Schema)
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Name: f.Name, Value: v}
		}
		return fields, nil
	case schema.Enum:
		return nil, schema.UnsupportedType(path, "enum has no designated default variant")
	case schema.Nested:
		t, err := DefaultTable(s.Table)
		if err != nil {
			return nil, err
		}
		return Nested{Table: t}, nil
	default:
		return nil, schema.UnsupportedType(path, fmt.Sprintf("unknown value schema %T", s))
	}
}

func conformTable(path string, s schema.Table, t Table) (Table, error) {
	if t == nil {
		policy, kind := tablePolicy(s)
		if policy == schema.Deny {
			return nil, schema.TypeMismatch(path, kind, "null")
		}
		return DefaultTable(s)
	}

	switch s := s.(type) {
	case schema.BinaryTable:
		data, ok := t.(BinaryTable)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), t.Kind())
		}
		if s.Encoding == schema.BinaryEncodingUTF8 && !utf8.Valid(data) {
			return nil, schema.InvalidEncoding(path, "table is not valid utf8")
		}
		return slices.Clone(data), nil
	case schema.ArrayTable:
		rows, ok := t.(ArrayTable)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), t.Kind())
		}
		out := make(ArrayTable, len(rows))
		for i, row := range rows {
			v, err := conformValue(schema.IndexPath(path, i), s.Element, row)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case schema.MapTable:
		rows, ok := t.(MapTable)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), t.Kind())
		}
		out, err := conformPairs(path, s.Key, s.Value, rows)
		if err != nil {
			return nil, err
		}
		return MapTable(out), nil
	default:
		return nil, schema.UnsupportedType(path, fmt.Sprintf("unknown table schema %T", s))
	}
}

func tablePolicy(s schema.Table) (schema.Default, string) {
	switch s := s.(type) {
	case schema.BinaryTable:
		return s.Default, s.Kind()
	case schema.ArrayTable:
		return s.Default, s.Kind()
	case schema.MapTable:
		return s.Default, s.Kind()
	default:
		return schema.Deny, "table"
	}
}

func conformPairs(path string, ks, vs schema.Value, pairs []Pair) ([]Pair, error) {
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		key, err := conformValue(schema.KeyPath(path, i), ks, p.Key)
		if err != nil {
			return nil, err
		}
		value, err := conformValue(schema.ValuePath(path, i), vs, p.Value)
		if err != nil {
			return nil, err
		}
		out[i] = Pair{Key: key, Value: value}
	}
	return out, nil
}

func conformValue(path string, s schema.Value, v Value) (Value, error) {
	if v == nil {
		if schema.DefaultOf(s) == schema.Deny {
			return nil, schema.TypeMismatch(path, s.Kind(), "null")
		}
		return defaultValue(path, s)
	}

	switch s := s.(type) {
	case schema.Unit:
		if _, ok := v.(Unit); !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), v.Kind())
		}
		return Unit{}, nil
	case schema.Int:
		n, ok := v.(Int)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), v.Kind())
		}
		if s.Encoding == schema.IntEncodingDate && (n < 0 || int64(n) > schema.MaxDate) {
			return nil, schema.UnsupportedType(path, fmt.Sprintf(
				"date %d is outside valid range 0..=%d (1970-01-01 to 2100-01-01)", int64(n), schema.MaxDate))
		}
		return n, nil
	case schema.Double:
		d, ok := v.(Double)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), v.Kind())
		}
		return d, nil
	case schema.Binary:
		b, ok := v.(Binary)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), v.Kind())
		}
		if s.Encoding == schema.BinaryEncodingUTF8 && !utf8.Valid(b) {
			return nil, schema.InvalidEncoding(path, "value is not valid utf8")
		}
		return slices.Clone(b), nil
	case schema.Struct:
		fields, ok := v.(Struct)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), v.Kind())
		}
		return conformStruct(path, s, fields)
	case schema.Enum:
		e, ok := v.(Enum)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), v.Kind())
		}
		variant, _, ok := s.VariantByTag(e.Tag)
		if !ok {
			return nil, schema.UnsupportedType(path, fmt.Sprintf("enum tag %d", e.Tag))
		}
		inner, err := conformValue(schema.VariantPath(path, variant.Name), variant.Schema, e.Value)
		if err != nil {
			return nil, err
		}
		return Enum{Tag: e.Tag, Value: inner}, nil
	case schema.Array:
		elements, ok := v.(Array)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), v.Kind())
		}
		out := make(Array, len(elements))
		for i, element := range elements {
			c, err := conformValue(schema.IndexPath(path, i), s.Element, element)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case schema.Map:
		pairs, ok := v.(Map)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), v.Kind())
		}
		out, err := conformPairs(path, s.Key, s.Value, pairs)
		if err != nil {
			return nil, err
		}
		return Map(out), nil
	case schema.Nested:
		n, ok := v.(Nested)
		if !ok {
			return nil, schema.TypeMismatch(path, s.Kind(), v.Kind())
		}
		t, err := conformTable(path+"/", s.Table, n.Table)
		if err != nil {
			return nil, err
		}
		return Nested{Table: t}, nil
	default:
		return nil, schema.UnsupportedType(path, fmt.Sprintf("unknown value schema %T", s))
	}
}

func conformStruct(path string, s schema.Struct, fields Struct) (Value, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.Name]; ok {
			return nil, schema.UnsupportedType(path, fmt.Sprintf("duplicate struct field %q", f.Name))
		}
		seen[f.Name] = struct{}{}

		if _, _, ok := s.FieldByName(f.Name); !ok {
			return nil, schema.UnknownField(path, f.Name)
		}
	}

	out := make(Struct, len(s.Fields))
	for i, fs := range s.Fields {
		fieldPath := schema.FieldPath(path, fs.Name)

		v, present := fields.Get(fs.Name)
		if !present || v == nil {
			if schema.DefaultOf(fs.Schema) == schema.Deny {
				return nil, schema.MissingField(path, fs.Name)
			}
			d, err := defaultValue(fieldPath, fs.Schema)
			if err != nil {
				return nil, err
			}
			out[i] = Field{Name: fs.Name, Value: d}
			continue
		}

		c, err := conformValue(fieldPath, fs.Schema, v)
		if err != nil {
			return nil, err
		}
		out[i] = Field{Name: fs.Name, Value: c}
	}
	return out, nil
}
