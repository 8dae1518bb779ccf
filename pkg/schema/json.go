package schema

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// node is the JSON shape shared by table and value schemas:
//
//	{"type": "struct", "default": "deny", "fields": [{"name": "id", "schema": {"type": "int"}}]}
//
// A missing "default" means allow, a missing "encoding" means the plain
// encoding of the type.
type node struct {
	Type     string        `json:"type"`
	Default  string        `json:"default,omitempty"`
	Encoding string        `json:"encoding,omitempty"`
	Element  *node         `json:"element,omitempty"`
	Key      *node         `json:"key,omitempty"`
	Value    *node         `json:"value,omitempty"`
	Fields   []fieldNode   `json:"fields,omitempty"`
	Variants []variantNode `json:"variants,omitempty"`
	Table    *node         `json:"table,omitempty"`
}

type fieldNode struct {
	Name   string `json:"name"`
	Schema *node  `json:"schema"`
}

type variantNode struct {
	Name   string `json:"name"`
	Tag    uint32 `json:"tag"`
	Schema *node  `json:"schema"`
}

// MarshalTable renders a table schema as JSON. The output is deterministic.
func MarshalTable(t Table) ([]byte, error) {
	n, err := tableNode(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// MarshalValue renders a value schema as JSON.
func MarshalValue(v Value) ([]byte, error) {
	n, err := valueNode(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// UnmarshalTable parses and checks a table schema.
func UnmarshalTable(data []byte) (Table, error) {
	var n node
	if err := decodeStrict(data, &n); err != nil {
		return nil, fmt.Errorf("parse table schema: %w", err)
	}

	t, err := n.table("")
	if err != nil {
		return nil, err
	}
	if err := Check(t); err != nil {
		return nil, err
	}
	return t, nil
}

// UnmarshalValue parses and checks a value schema.
func UnmarshalValue(data []byte) (Value, error) {
	var n node
	if err := decodeStrict(data, &n); err != nil {
		return nil, fmt.Errorf("parse value schema: %w", err)
	}

	v, err := n.value("")
	if err != nil {
		return nil, err
	}
	if err := CheckValue(v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeStrict(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func tableNode(t Table) (*node, error) {
	switch s := t.(type) {
	case BinaryTable:
		return &node{Type: s.Kind(), Default: s.Default.String(), Encoding: s.Encoding.String()}, nil
	case ArrayTable:
		element, err := valueNode(s.Element)
		if err != nil {
			return nil, err
		}
		return &node{Type: s.Kind(), Default: s.Default.String(), Element: element}, nil
	case MapTable:
		key, err := valueNode(s.Key)
		if err != nil {
			return nil, err
		}
		value, err := valueNode(s.Value)
		if err != nil {
			return nil, err
		}
		return &node{Type: s.Kind(), Default: s.Default.String(), Key: key, Value: value}, nil
	default:
		return nil, UnsupportedType("", fmt.Sprintf("unknown table schema %T", t))
	}
}

func valueNode(v Value) (*node, error) {
	switch s := v.(type) {
	case Unit:
		return &node{Type: s.Kind()}, nil
	case Int:
		return &node{Type: s.Kind(), Default: s.Default.String(), Encoding: s.Encoding.String()}, nil
	case Double:
		return &node{Type: s.Kind(), Default: s.Default.String()}, nil
	case Binary:
		return &node{Type: s.Kind(), Default: s.Default.String(), Encoding: s.Encoding.String()}, nil
	case Struct:
		fields := make([]fieldNode, len(s.Fields))
		for i, f := range s.Fields {
			n, err := valueNode(f.Schema)
			if err != nil {
				return nil, err
			}
			fields[i] = fieldNode{Name: f.Name, Schema: n}
		}
		return &node{Type: s.Kind(), Default: s.Default.String(), Fields: fields}, nil
	case Enum:
		variants := make([]variantNode, len(s.Variants))
		for i, variant := range s.Variants {
			n, err := valueNode(variant.Schema)
			if err != nil {
				return nil, err
			}
			variants[i] = variantNode{Name: variant.Name, Tag: variant.Tag, Schema: n}
		}
		return &node{Type: s.Kind(), Default: s.Default.String(), Variants: variants}, nil
	case Array:
		element, err := valueNode(s.Element)
		if err != nil {
			return nil, err
		}
		return &node{Type: s.Kind(), Default: s.Default.String(), Element: element}, nil
	case Map:
		key, err := valueNode(s.Key)
		if err != nil {
			return nil, err
		}
		value, err := valueNode(s.Value)
		if err != nil {
			return nil, err
		}
		return &node{Type: s.Kind(), Default: s.Default.String(), Key: key, Value: value}, nil
	case Nested:
		table, err := tableNode(s.Table)
		if err != nil {
			return nil, err
		}
		return &node{Type: s.Kind(), Default: s.Default.String(), Table: table}, nil
	default:
		return nil, UnsupportedType("", fmt.Sprintf("unknown value schema %T", v))
	}
}

func (n *node) table(path string) (Table, error) {
	if n == nil {
		return nil, UnsupportedType(path, "missing table schema")
	}

	def, err := parseDefault(path, n.Default)
	if err != nil {
		return nil, err
	}

	switch n.Type {
	case "binary":
		encoding, err := parseBinaryEncoding(path, n.Encoding)
		if err != nil {
			return nil, err
		}
		return BinaryTable{Default: def, Encoding: encoding}, nil
	case "array":
		element, err := n.Element.value(IndexPath(path, -1))
		if err != nil {
			return nil, err
		}
		return ArrayTable{Default: def, Element: element}, nil
	case "map":
		key, err := n.Key.value(KeyPath(path, -1))
		if err != nil {
			return nil, err
		}
		value, err := n.Value.value(ValuePath(path, -1))
		if err != nil {
			return nil, err
		}
		return MapTable{Default: def, Key: key, Value: value}, nil
	default:
		return nil, UnsupportedType(path, fmt.Sprintf("unknown table type %q", n.Type))
	}
}

func (n *node) value(path string) (Value, error) {
	if n == nil {
		return nil, UnsupportedType(path, "missing value schema")
	}

	def, err := parseDefault(path, n.Default)
	if err != nil {
		return nil, err
	}

	switch n.Type {
	case "unit":
		return Unit{}, nil
	case "int":
		encoding, err := parseIntEncoding(path, n.Encoding)
		if err != nil {
			return nil, err
		}
		return Int{Default: def, Encoding: encoding}, nil
	case "double":
		return Double{Default: def}, nil
	case "binary":
		encoding, err := parseBinaryEncoding(path, n.Encoding)
		if err != nil {
			return nil, err
		}
		return Binary{Default: def, Encoding: encoding}, nil
	case "struct":
		fields := make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			s, err := f.Schema.value(FieldPath(path, f.Name))
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Name: f.Name, Schema: s}
		}
		return Struct{Default: def, Fields: fields}, nil
	case "enum":
		variants := make([]Variant, len(n.Variants))
		for i, v := range n.Variants {
			s, err := v.Schema.value(VariantPath(path, v.Name))
			if err != nil {
				return nil, err
			}
			variants[i] = Variant{Name: v.Name, Tag: v.Tag, Schema: s}
		}
		return Enum{Default: def, Variants: variants}, nil
	case "array":
		element, err := n.Element.value(IndexPath(path, -1))
		if err != nil {
			return nil, err
		}
		return Array{Default: def, Element: element}, nil
	case "map":
		key, err := n.Key.value(KeyPath(path, -1))
		if err != nil {
			return nil, err
		}
		value, err := n.Value.value(ValuePath(path, -1))
		if err != nil {
			return nil, err
		}
		return Map{Default: def, Key: key, Value: value}, nil
	case "nested":
		table, err := n.Table.table(path + "/")
		if err != nil {
			return nil, err
		}
		return Nested{Default: def, Table: table}, nil
	default:
		return nil, UnsupportedType(path, fmt.Sprintf("unknown value type %q", n.Type))
	}
}

func parseDefault(path, s string) (Default, error) {
	switch s {
	case "", "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	default:
		return Allow, UnsupportedType(path, fmt.Sprintf("unknown default policy %q", s))
	}
}

func parseIntEncoding(path, s string) (IntEncoding, error) {
	switch s {
	case "", "int":
		return IntEncodingInt, nil
	case "date":
		return IntEncodingDate, nil
	case "time_seconds":
		return IntEncodingTimeSeconds, nil
	case "time_milliseconds":
		return IntEncodingTimeMilliseconds, nil
	case "time_microseconds":
		return IntEncodingTimeMicroseconds, nil
	default:
		return IntEncodingInt, InvalidEncoding(path, fmt.Sprintf("unknown int encoding %q", s))
	}
}

func parseBinaryEncoding(path, s string) (BinaryEncoding, error) {
	switch s {
	case "", "binary":
		return BinaryEncodingBinary, nil
	case "utf8":
		return BinaryEncodingUTF8, nil
	default:
		return BinaryEncodingBinary, InvalidEncoding(path, fmt.Sprintf("unknown binary encoding %q", s))
	}
}
