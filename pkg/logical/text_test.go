package logical_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaninAndrea/zbra/pkg/logical"
	"github.com/ZaninAndrea/zbra/pkg/schema"
)

const peopleDocument = `{
	"schema": {
		"type": "array",
		"default": "allow",
		"element": {
			"type": "struct",
			"default": "allow",
			"fields": [
				{"name": "id", "schema": {"type": "int", "default": "allow", "encoding": "int"}},
				{"name": "name", "schema": {"type": "binary", "default": "allow", "encoding": "utf8"}},
				{"name": "age", "schema": {"type": "int", "default": "allow", "encoding": "int"}}
			]
		}
	},
	"data": [
		{"struct": {"id": 1, "name": "Alice", "age": 30}},
		{"struct": {"name": "Bob", "age": 25, "id": 2}}
	]
}`

func TestParseDocument(t *testing.T) {
	doc, err := logical.ParseDocument([]byte(peopleDocument))
	require.NoError(t, err)

	assert.True(t, schema.Equal(personSchema(), doc.Schema))

	expected := logical.ArrayTable{
		logical.Struct{
			{Name: "id", Value: logical.Int(1)},
			{Name: "name", Value: logical.Binary("Alice")},
			{Name: "age", Value: logical.Int(30)},
		},
		logical.Struct{
			{Name: "id", Value: logical.Int(2)},
			{Name: "name", Value: logical.Binary("Bob")},
			{Name: "age", Value: logical.Int(25)},
		},
	}
	assert.True(t, logical.Equal(expected, doc.Data), "got %#v", doc.Data)

	formatted, err := logical.FormatDocument(doc)
	require.NoError(t, err)

	again, err := logical.ParseDocument(formatted)
	require.NoError(t, err)
	assert.True(t, schema.Equal(doc.Schema, again.Schema))
	assert.True(t, logical.Equal(doc.Data, again.Data))
}

func TestTextRoundTrip(t *testing.T) {
	s := schema.MapTable{
		Key: schema.Binary{Encoding: schema.BinaryEncodingBinary},
		Value: schema.Struct{Fields: []schema.Field{
			{Name: "shape", Schema: schema.Enum{Variants: []schema.Variant{
				{Name: "none", Tag: 0, Schema: schema.Unit{}},
				{Name: "circle", Tag: 3, Schema: schema.Double{}},
			}}},
			{Name: "points", Schema: schema.Array{Element: schema.Double{}}},
			{Name: "attrs", Schema: schema.Map{Key: schema.Int{}, Value: schema.Binary{Encoding: schema.BinaryEncodingUTF8}}},
			{Name: "blob", Schema: schema.Nested{Table: schema.BinaryTable{}}},
		}},
	}

	table := logical.MapTable{
		{
			Key: logical.Binary{0xff, 0x01},
			Value: logical.Struct{
				{Name: "shape", Value: logical.Enum{Tag: 3, Value: logical.Double(1.25)}},
				{Name: "points", Value: logical.Array{logical.Double(math.Inf(-1)), logical.Double(-0.5), logical.Double(1e300)}},
				{Name: "attrs", Value: logical.Map{{Key: logical.Int(-9), Value: logical.Binary("ünïcode \"quoted\"")}}},
				{Name: "blob", Value: logical.Nested{Table: logical.BinaryTable{0x00, 0x80}}},
			},
		},
		{
			Key: logical.Binary("plain"),
			Value: logical.Struct{
				{Name: "shape", Value: logical.Enum{Tag: 0, Value: logical.Unit{}}},
				{Name: "points", Value: logical.Array{logical.Double(math.NaN())}},
				{Name: "attrs", Value: logical.Map{}},
				{Name: "blob", Value: logical.Nested{Table: logical.BinaryTable("text")}},
			},
		},
	}
	require.NoError(t, logical.Validate(s, table))

	text, err := logical.ToText(table)
	require.NoError(t, err)

	parsed, err := logical.FromText(s, text)
	require.NoError(t, err)
	assert.True(t, logical.Equal(table, parsed), "text was %s", text)

	again, err := logical.ToText(parsed)
	require.NoError(t, err)
	assert.Equal(t, string(text), string(again))
}

func TestToTextShape(t *testing.T) {
	text, err := logical.ToText(logical.ArrayTable{
		logical.Struct{{Name: "b", Value: logical.Int(1)}, {Name: "a", Value: logical.Unit{}}},
		logical.Enum{Tag: 2, Value: logical.Binary{0xff}},
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"struct":{"b":1,"a":null}},{"enum":{"tag":2,"value":{"base64":"/w=="}}}]`, string(text))
}

func TestFromTextErrors(t *testing.T) {
	cases := []struct {
		name  string
		data  string
		kinds []error
	}{
		{"malformed", `[{"struct": `, []error{logical.ErrInvalidValue}},
		{"trailing data", `[] []`, []error{logical.ErrInvalidValue}},
		{"wrong shape", `[{"id": 1}]`, []error{logical.ErrStructureMismatch, schema.ErrTypeMismatch}},
		{"string for int", `[{"struct": {"id": "1"}}]`, []error{logical.ErrStructureMismatch, schema.ErrTypeMismatch}},
		{"int overflow", `[{"struct": {"id": 9223372036854775808}}]`, []error{logical.ErrInvalidValue}},
		{"fractional int", `[{"struct": {"id": 1.5}}]`, []error{logical.ErrInvalidValue}},
		{"unknown field", `[{"struct": {"id": 1, "email": "a@b"}}]`, []error{logical.ErrValidationFailure, schema.ErrUnknownField}},
		{"bad utf8 base64", `[{"struct": {"name": {"base64": "/w=="}}}]`, []error{logical.ErrValidationFailure, schema.ErrInvalidEncoding}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := logical.FromText(personSchema(), []byte(tc.data))
			require.Error(t, err)

			var logicalErr *logical.Error
			require.True(t, errors.As(err, &logicalErr), "got %T", err)
			for _, kind := range tc.kinds {
				assert.True(t, errors.Is(err, kind), "expected %v in %v", kind, err)
			}
		})
	}
}

func TestFromTextNullsAndDefaults(t *testing.T) {
	parsed, err := logical.FromText(personSchema(), []byte(`[null, {"struct": {"name": null}}]`))
	require.NoError(t, err)
	require.Equal(t, 2, parsed.Len())

	for _, row := range parsed.(logical.ArrayTable) {
		id, ok := row.(logical.Struct).Get("id")
		require.True(t, ok)
		assert.Equal(t, logical.Int(0), id)
	}

	empty, err := logical.FromText(personSchema(), []byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestEnumText(t *testing.T) {
	s := schema.ArrayTable{Element: schema.Enum{Variants: []schema.Variant{
		{Name: "ok", Tag: 0, Schema: schema.Unit{}},
		{Name: "err", Tag: 9, Schema: schema.Binary{Encoding: schema.BinaryEncodingUTF8}},
	}}}

	parsed, err := logical.FromText(s, []byte(`[{"enum": {"tag": 0}}, {"enum": {"tag": 9, "value": "boom"}}]`))
	require.NoError(t, err)
	assert.True(t, logical.Equal(logical.ArrayTable{
		logical.Enum{Tag: 0, Value: logical.Unit{}},
		logical.Enum{Tag: 9, Value: logical.Binary("boom")},
	}, parsed))

	_, err = logical.FromText(s, []byte(`[{"enum": {"tag": 4}}]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, logical.ErrValidationFailure))
	assert.True(t, errors.Is(err, schema.ErrUnsupportedType))
}
