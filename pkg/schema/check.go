package schema

import (
	"fmt"
	"strconv"
)

// Check verifies that a table schema is well formed on its own: every nested
// node is present, structs and enums are not empty, field names and variant
// names and tags are unique, and policies and encodings are known.
func Check(t Table) error {
	return checkTable("", t)
}

// CheckValue is Check for a single value schema.
func CheckValue(v Value) error {
	return checkValue("", v)
}

func checkTable(path string, t Table) error {
	switch s := t.(type) {
	case BinaryTable:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		return checkBinaryEncoding(path, s.Encoding)
	case ArrayTable:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		return checkValue(IndexPath(path, -1), s.Element)
	case MapTable:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		if err := checkValue(KeyPath(path, -1), s.Key); err != nil {
			return err
		}
		return checkValue(ValuePath(path, -1), s.Value)
	case nil:
		return UnsupportedType(path, "missing table schema")
	default:
		return UnsupportedType(path, fmt.Sprintf("unknown table schema %T", t))
	}
}

func checkValue(path string, v Value) error {
	switch s := v.(type) {
	case Unit:
		return nil
	case Int:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		if s.Encoding > IntEncodingTimeMicroseconds {
			return InvalidEncoding(path, "unknown int encoding "+strconv.Itoa(int(s.Encoding)))
		}
		return nil
	case Double:
		return checkDefault(path, s.Default)
	case Binary:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		return checkBinaryEncoding(path, s.Encoding)
	case Struct:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		if len(s.Fields) == 0 {
			return UnsupportedType(path, "struct without fields")
		}
		seen := make(map[string]struct{}, len(s.Fields))
		for _, f := range s.Fields {
			if f.Name == "" {
				return UnsupportedType(path, "struct field without a name")
			}
			if _, ok := seen[f.Name]; ok {
				return UnsupportedType(path, fmt.Sprintf("duplicate struct field %q", f.Name))
			}
			seen[f.Name] = struct{}{}

			if err := checkValue(FieldPath(path, f.Name), f.Schema); err != nil {
				return err
			}
		}
		return nil
	case Enum:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		if len(s.Variants) == 0 {
			return UnsupportedType(path, "enum without variants")
		}
		tags := make(map[uint32]struct{}, len(s.Variants))
		names := make(map[string]struct{}, len(s.Variants))
		for _, variant := range s.Variants {
			if _, ok := tags[variant.Tag]; ok {
				return UnsupportedType(path, fmt.Sprintf("duplicate enum tag %d", variant.Tag))
			}
			tags[variant.Tag] = struct{}{}

			if _, ok := names[variant.Name]; ok {
				return UnsupportedType(path, fmt.Sprintf("duplicate enum variant %q", variant.Name))
			}
			names[variant.Name] = struct{}{}

			if err := checkValue(VariantPath(path, variant.Name), variant.Schema); err != nil {
				return err
			}
		}
		return nil
	case Array:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		return checkValue(IndexPath(path, -1), s.Element)
	case Map:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		if err := checkValue(KeyPath(path, -1), s.Key); err != nil {
			return err
		}
		return checkValue(ValuePath(path, -1), s.Value)
	case Nested:
		if err := checkDefault(path, s.Default); err != nil {
			return err
		}
		return checkTable(path+"/", s.Table)
	case nil:
		return UnsupportedType(path, "missing value schema")
	default:
		return UnsupportedType(path, fmt.Sprintf("unknown value schema %T", v))
	}
}

func checkDefault(path string, d Default) error {
	if d > Deny {
		return UnsupportedType(path, "unknown default policy "+strconv.Itoa(int(d)))
	}
	return nil
}

func checkBinaryEncoding(path string, e BinaryEncoding) error {
	if e > BinaryEncodingUTF8 {
		return InvalidEncoding(path, "unknown binary encoding "+strconv.Itoa(int(e)))
	}
	return nil
}
