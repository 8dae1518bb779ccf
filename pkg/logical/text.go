package logical

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/ZaninAndrea/zbra/pkg/schema"
)

// The text form of a logical tree is JSON read with the help of the schema:
//
//	Unit            null
//	Int, Double     number ("NaN", "Infinity" and "-Infinity" for doubles)
//	Binary          string, or {"base64": "..."} when the bytes are not utf8
//	Array           [v, ...]
//	Map             [{"key": k, "value": v}, ...]
//	Struct          {"struct": {"name": v, ...}}
//	Enum            {"enum": {"tag": n, "value": v}}
//	Nested          {"nested": <table>}
//
// A null stands for a missing value.

// Document is the human facing envelope pairing a schema with its data.
type Document struct {
	Schema schema.Table
	Data   Table
}

// FromText parses the JSON text of a table and conforms it to the schema.
func FromText(s schema.Table, text []byte) (Table, error) {
	raw, err := decodeJSON(text)
	if err != nil {
		return nil, err
	}

	t, err := tableFromJSON("", s, raw)
	if err != nil {
		return nil, err
	}

	conformed, err := Conform(s, t)
	if err != nil {
		return nil, validationFailure(err)
	}
	return conformed, nil
}

// ParseDocument reads a {"schema": ..., "data": ...} document.
func ParseDocument(text []byte) (Document, error) {
	var envelope struct {
		Schema json.RawMessage `json:"schema"`
		Data   json.RawMessage `json:"data"`
	}

	dec := json.NewDecoder(bytes.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&envelope); err != nil {
		return Document{}, &Error{Kind: ErrInvalidValue, Reason: "malformed document", Cause: err}
	}
	if len(envelope.Schema) == 0 {
		return Document{}, invalidValue("", "document has no schema")
	}

	s, err := schema.UnmarshalTable(envelope.Schema)
	if err != nil {
		return Document{}, &Error{Kind: ErrInvalidValue, Reason: "document schema", Cause: err}
	}

	data := []byte(envelope.Data)
	if len(data) == 0 {
		data = []byte("null")
	}

	t, err := FromText(s, data)
	if err != nil {
		return Document{}, err
	}
	return Document{Schema: s, Data: t}, nil
}

// FormatDocument renders a document as compact JSON.
func FormatDocument(doc Document) ([]byte, error) {
	s, err := schema.MarshalTable(doc.Schema)
	if err != nil {
		return nil, err
	}
	data, err := ToText(doc.Data)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(s)+len(data)+20)
	out = append(out, `{"schema":`...)
	out = append(out, s...)
	out = append(out, `,"data":`...)
	out = append(out, data...)
	out = append(out, '}')
	return out, nil
}

// ToText renders a table as JSON. Struct fields keep their order, so the
// output is deterministic.
func ToText(t Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeTable(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ValueToText renders a single value as JSON.
func ValueToText(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeJSON(text []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &Error{Kind: ErrInvalidValue, Reason: "malformed json", Cause: err}
	}

	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, invalidValue("", "unexpected data after the json value")
	}
	return raw, nil
}

func jsonKind(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", raw)
	}
}

func mismatch(path, expected string, raw any) error {
	return structureMismatch(schema.TypeMismatch(path, expected, jsonKind(raw)))
}

// tagged unwraps {"<tag>": inner}.
func tagged(raw any, tag string) (any, bool) {
	obj, ok := raw.(map[string]any)
	if !ok || len(obj) != 1 {
		return nil, false
	}
	inner, ok := obj[tag]
	return inner, ok
}

func tableFromJSON(path string, s schema.Table, raw any) (Table, error) {
	if raw == nil {
		return nil, nil
	}

	switch s := s.(type) {
	case schema.BinaryTable:
		b, err := bytesFromJSON(path, s.Kind(), raw)
		if err != nil {
			return nil, err
		}
		return BinaryTable(b), nil
	case schema.ArrayTable:
		items, ok := raw.([]any)
		if !ok {
			return nil, mismatch(path, s.Kind(), raw)
		}
		rows := make(ArrayTable, len(items))
		for i, item := range items {
			v, err := valueFromJSON(schema.IndexPath(path, i), s.Element, item)
			if err != nil {
				return nil, err
			}
			rows[i] = v
		}
		return rows, nil
	case schema.MapTable:
		pairs, err := pairsFromJSON(path, s.Kind(), s.Key, s.Value, raw)
		if err != nil {
			return nil, err
		}
		return MapTable(pairs), nil
	default:
		return nil, structureMismatch(schema.UnsupportedType(path, fmt.Sprintf("unknown table schema %T", s)))
	}
}

func bytesFromJSON(path, expected string, raw any) ([]byte, error) {
	switch raw := raw.(type) {
	case string:
		return []byte(raw), nil
	case map[string]any:
		encoded, ok := tagged(raw, "base64")
		if !ok {
			return nil, mismatch(path, expected, raw)
		}
		str, ok := encoded.(string)
		if !ok {
			return nil, invalidValue(path, "base64 payload must be a string")
		}
		b, err := base64.StdEncoding.DecodeString(str)
		if err != nil {
			return nil, invalidValue(path, "bad base64 payload: %v", err)
		}
		return b, nil
	default:
		return nil, mismatch(path, expected, raw)
	}
}

func pairsFromJSON(path, expected string, ks, vs schema.Value, raw any) ([]Pair, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, mismatch(path, expected, raw)
	}

	pairs := make([]Pair, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, mismatch(schema.IndexPath(path, i), "map entry", item)
		}
		for name := range obj {
			if name != "key" && name != "value" {
				return nil, invalidValue(schema.IndexPath(path, i), "unexpected map entry member %q", name)
			}
		}

		key, err := valueFromJSON(schema.KeyPath(path, i), ks, obj["key"])
		if err != nil {
			return nil, err
		}
		value, err := valueFromJSON(schema.ValuePath(path, i), vs, obj["value"])
		if err != nil {
			return nil, err
		}
		pairs[i] = Pair{Key: key, Value: value}
	}
	return pairs, nil
}

func valueFromJSON(path string, s schema.Value, raw any) (Value, error) {
	if raw == nil {
		return nil, nil
	}

	switch s := s.(type) {
	case schema.Unit:
		return nil, mismatch(path, s.Kind(), raw)
	case schema.Int:
		num, ok := raw.(json.Number)
		if !ok {
			return nil, mismatch(path, s.Kind(), raw)
		}
		n, err := strconv.ParseInt(string(num), 10, 64)
		if err != nil {
			return nil, invalidValue(path, "%s is not a 64 bit integer", num)
		}
		return Int(n), nil
	case schema.Double:
		switch raw := raw.(type) {
		case json.Number:
			f, err := strconv.ParseFloat(string(raw), 64)
			if err != nil {
				return nil, invalidValue(path, "%s is not a 64 bit float", raw)
			}
			return Double(f), nil
		case string:
			switch raw {
			case "NaN":
				return Double(math.NaN()), nil
			case "Infinity":
				return Double(math.Inf(1)), nil
			case "-Infinity":
				return Double(math.Inf(-1)), nil
			}
			return nil, invalidValue(path, "%q is not a double", raw)
		default:
			return nil, mismatch(path, s.Kind(), raw)
		}
	case schema.Binary:
		b, err := bytesFromJSON(path, s.Kind(), raw)
		if err != nil {
			return nil, err
		}
		return Binary(b), nil
	case schema.Struct:
		inner, ok := tagged(raw, "struct")
		if !ok {
			return nil, mismatch(path, s.Kind(), raw)
		}
		obj, ok := inner.(map[string]any)
		if !ok {
			return nil, mismatch(path, s.Kind(), inner)
		}
		return structFromJSON(path, s, obj)
	case schema.Enum:
		inner, ok := tagged(raw, "enum")
		if !ok {
			return nil, mismatch(path, s.Kind(), raw)
		}
		obj, ok := inner.(map[string]any)
		if !ok {
			return nil, mismatch(path, s.Kind(), inner)
		}
		return enumFromJSON(path, s, obj)
	case schema.Array:
		items, ok := raw.([]any)
		if !ok {
			return nil, mismatch(path, s.Kind(), raw)
		}
		out := make(Array, len(items))
		for i, item := range items {
			v, err := valueFromJSON(schema.IndexPath(path, i), s.Element, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case schema.Map:
		pairs, err := pairsFromJSON(path, s.Kind(), s.Key, s.Value, raw)
		if err != nil {
			return nil, err
		}
		return Map(pairs), nil
	case schema.Nested:
		inner, ok := tagged(raw, "nested")
		if !ok {
			return nil, mismatch(path, s.Kind(), raw)
		}
		t, err := tableFromJSON(path+"/", s.Table, inner)
		if err != nil {
			return nil, err
		}
		return Nested{Table: t}, nil
	default:
		return nil, structureMismatch(schema.UnsupportedType(path, fmt.Sprintf("unknown value schema %T", s)))
	}
}

func structFromJSON(path string, s schema.Struct, obj map[string]any) (Value, error) {
	out := make(Struct, 0, len(obj))
	for _, f := range s.Fields {
		raw, ok := obj[f.Name]
		if !ok {
			continue
		}
		v, err := valueFromJSON(schema.FieldPath(path, f.Name), f.Schema, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Field{Name: f.Name, Value: v})
	}

	// Fields the schema does not know are kept so validation can name them.
	var unknown []string
	for name := range obj {
		if _, _, ok := s.FieldByName(name); !ok {
			unknown = append(unknown, name)
		}
	}
	slices.Sort(unknown)
	for _, name := range unknown {
		out = append(out, Field{Name: name})
	}
	return out, nil
}

func enumFromJSON(path string, s schema.Enum, obj map[string]any) (Value, error) {
	for name := range obj {
		if name != "tag" && name != "value" {
			return nil, invalidValue(path, "unexpected enum member %q", name)
		}
	}

	num, ok := obj["tag"].(json.Number)
	if !ok {
		return nil, invalidValue(path, "enum tag must be a number")
	}
	tag, err := strconv.ParseUint(string(num), 10, 32)
	if err != nil {
		return nil, invalidValue(path, "enum tag %s is not a 32 bit unsigned integer", num)
	}

	variant, _, ok := s.VariantByTag(uint32(tag))
	if !ok {
		return nil, validationFailure(schema.UnsupportedType(path, fmt.Sprintf("enum tag %d", tag)))
	}

	v, err := valueFromJSON(schema.VariantPath(path, variant.Name), variant.Schema, obj["value"])
	if err != nil {
		return nil, err
	}
	return Enum{Tag: uint32(tag), Value: v}, nil
}

func writeTable(buf *bytes.Buffer, t Table) error {
	switch t := t.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case BinaryTable:
		return writeBytes(buf, t)
	case ArrayTable:
		return writeValues(buf, t)
	case MapTable:
		return writePairs(buf, t)
	default:
		return fmt.Errorf("unknown logical table %T", t)
	}
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v := v.(type) {
	case nil, Unit:
		buf.WriteString("null")
		return nil
	case Int:
		buf.Write(strconv.AppendInt(buf.AvailableBuffer(), int64(v), 10))
		return nil
	case Double:
		f := float64(v)
		switch {
		case math.IsNaN(f):
			buf.WriteString(`"NaN"`)
		case math.IsInf(f, 1):
			buf.WriteString(`"Infinity"`)
		case math.IsInf(f, -1):
			buf.WriteString(`"-Infinity"`)
		default:
			buf.Write(strconv.AppendFloat(buf.AvailableBuffer(), f, 'g', -1, 64))
		}
		return nil
	case Binary:
		return writeBytes(buf, v)
	case Array:
		return writeValues(buf, v)
	case Map:
		return writePairs(buf, v)
	case Struct:
		buf.WriteString(`{"struct":{`)
		for i, f := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, f.Name); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteString("}}")
		return nil
	case Enum:
		buf.WriteString(`{"enum":{"tag":`)
		buf.Write(strconv.AppendUint(buf.AvailableBuffer(), uint64(v.Tag), 10))
		buf.WriteString(`,"value":`)
		if err := writeValue(buf, v.Value); err != nil {
			return err
		}
		buf.WriteString("}}")
		return nil
	case Nested:
		buf.WriteString(`{"nested":`)
		if err := writeTable(buf, v.Table); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("unknown logical value %T", v)
	}
}

func writeValues(buf *bytes.Buffer, values []Value) error {
	buf.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writePairs(buf *bytes.Buffer, pairs []Pair) error {
	buf.WriteByte('[')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"key":`)
		if err := writeValue(buf, p.Key); err != nil {
			return err
		}
		buf.WriteString(`,"value":`)
		if err := writeValue(buf, p.Value); err != nil {
			return err
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return nil
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	if utf8.Valid(b) {
		return writeString(buf, string(b))
	}
	buf.WriteString(`{"base64":"`)
	buf.WriteString(base64.StdEncoding.EncodeToString(b))
	buf.WriteString(`"}`)
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}
