package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaninAndrea/zbra/pkg/schema"
)

func peopleSchema() schema.Table {
	return schema.ArrayTable{
		Default: schema.Allow,
		Element: schema.Struct{
			Default: schema.Allow,
			Fields: []schema.Field{
				{Name: "id", Schema: schema.Int{Default: schema.Allow, Encoding: schema.IntEncodingInt}},
				{Name: "name", Schema: schema.Binary{Default: schema.Allow, Encoding: schema.BinaryEncodingUTF8}},
				{Name: "born", Schema: schema.Int{Default: schema.Deny, Encoding: schema.IntEncodingDate}},
				{Name: "status", Schema: schema.Enum{
					Default: schema.Deny,
					Variants: []schema.Variant{
						{Name: "active", Tag: 0, Schema: schema.Unit{}},
						{Name: "suspended", Tag: 7, Schema: schema.Binary{Encoding: schema.BinaryEncodingUTF8}},
					},
				}},
				{Name: "scores", Schema: schema.Array{Element: schema.Double{}}},
				{Name: "tags", Schema: schema.Map{
					Key:   schema.Binary{Encoding: schema.BinaryEncodingUTF8},
					Value: schema.Int{Encoding: schema.IntEncodingTimeMicroseconds},
				}},
				{Name: "raw", Schema: schema.Nested{Table: schema.BinaryTable{}}},
			},
		},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	tables := map[string]schema.Table{
		"binary": schema.BinaryTable{Default: schema.Deny, Encoding: schema.BinaryEncodingUTF8},
		"array":  peopleSchema(),
		"map": schema.MapTable{
			Key:   schema.Int{Encoding: schema.IntEncodingTimeSeconds},
			Value: schema.Nested{Table: schema.ArrayTable{Element: schema.Double{Default: schema.Deny}}},
		},
	}

	for name, table := range tables {
		t.Run(name, func(t *testing.T) {
			encoded, err := schema.MarshalTable(table)
			require.NoError(t, err)

			decoded, err := schema.UnmarshalTable(encoded)
			require.NoError(t, err)
			assert.True(t, schema.Equal(table, decoded), "schema changed after round trip: %s", encoded)

			again, err := schema.MarshalTable(decoded)
			require.NoError(t, err)
			assert.Equal(t, string(encoded), string(again))
		})
	}
}

func TestUnmarshalDefaults(t *testing.T) {
	decoded, err := schema.UnmarshalTable([]byte(`{
		"type": "array",
		"element": {"type": "struct", "fields": [
			{"name": "when", "schema": {"type": "int", "encoding": "date"}},
			{"name": "what", "schema": {"type": "binary", "default": "deny"}}
		]}
	}`))
	require.NoError(t, err)

	expected := schema.ArrayTable{
		Default: schema.Allow,
		Element: schema.Struct{
			Default: schema.Allow,
			Fields: []schema.Field{
				{Name: "when", Schema: schema.Int{Default: schema.Allow, Encoding: schema.IntEncodingDate}},
				{Name: "what", Schema: schema.Binary{Default: schema.Deny, Encoding: schema.BinaryEncodingBinary}},
			},
		},
	}
	assert.True(t, schema.Equal(expected, decoded))
}

func TestUnmarshalRejects(t *testing.T) {
	cases := []struct {
		name string
		json string
		kind error
	}{
		{"unknown table type", `{"type": "set"}`, schema.ErrUnsupportedType},
		{"unknown value type", `{"type": "array", "element": {"type": "float"}}`, schema.ErrUnsupportedType},
		{"unknown encoding", `{"type": "binary", "encoding": "latin1"}`, schema.ErrInvalidEncoding},
		{"unknown default", `{"type": "binary", "default": "maybe"}`, schema.ErrUnsupportedType},
		{"missing element", `{"type": "array"}`, schema.ErrUnsupportedType},
		{"empty struct", `{"type": "array", "element": {"type": "struct", "fields": []}}`, schema.ErrUnsupportedType},
		{"duplicate field", `{"type": "array", "element": {"type": "struct", "fields": [
			{"name": "a", "schema": {"type": "int"}}, {"name": "a", "schema": {"type": "double"}}]}}`, schema.ErrUnsupportedType},
		{"duplicate tag", `{"type": "array", "element": {"type": "enum", "variants": [
			{"name": "a", "tag": 1, "schema": {"type": "unit"}}, {"name": "b", "tag": 1, "schema": {"type": "unit"}}]}}`, schema.ErrUnsupportedType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := schema.UnmarshalTable([]byte(tc.json))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "unexpected error: %v", err)

			var schemaErr *schema.Error
			assert.True(t, errors.As(err, &schemaErr))
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		_, err := schema.UnmarshalTable([]byte(`{"type": `))
		require.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := schema.UnmarshalTable([]byte(`{"type": "binary", "nullable": true}`))
		require.Error(t, err)
	})
}

func TestCheckPaths(t *testing.T) {
	table := schema.ArrayTable{
		Element: schema.Struct{Fields: []schema.Field{
			{Name: "inner", Schema: schema.Enum{}},
		}},
	}

	err := schema.Check(table)
	var schemaErr *schema.Error
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "[].inner", schemaErr.Path)
	assert.Contains(t, err.Error(), "enum without variants")
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "at [0].id: type mismatch: expected int, got binary",
		schema.TypeMismatch("[0].id", "int", "binary").Error())
	assert.Equal(t, `missing field "name"`, schema.MissingField("", "name").Error())
	assert.Equal(t, "incompatible schema: source binary, target array",
		schema.IncompatibleSchema("binary", "array").Error())
}

func TestLookups(t *testing.T) {
	element := peopleSchema().(schema.ArrayTable).Element.(schema.Struct)

	field, index, ok := element.FieldByName("status")
	require.True(t, ok)
	assert.Equal(t, 3, index)

	variant, position, ok := field.Schema.(schema.Enum).VariantByTag(7)
	require.True(t, ok)
	assert.Equal(t, "suspended", variant.Name)
	assert.Equal(t, 1, position)

	_, _, ok = field.Schema.(schema.Enum).VariantByTag(3)
	assert.False(t, ok)

	assert.Equal(t, schema.Deny, schema.DefaultOf(field.Schema))
	assert.Equal(t, schema.Allow, schema.DefaultOf(schema.Unit{}))
}
