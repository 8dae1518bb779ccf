package logical_test

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaninAndrea/zbra/pkg/logical"
)

func requireLogicalError(t *testing.T, err error, kind error) *logical.Error {
	t.Helper()

	require.Error(t, err)
	assert.ErrorIs(t, err, kind)

	var logicalErr *logical.Error
	require.True(t, errors.As(err, &logicalErr), "expected a logical error, got %T", err)
	return logicalErr
}

func person(id int64, name string, tags ...string) logical.Value {
	values := make(logical.Array, len(tags))
	for i, tag := range tags {
		values[i] = logical.Binary(tag)
	}
	return logical.Struct{
		{Name: "id", Value: logical.Int(id)},
		{Name: "name", Value: logical.Binary(name)},
		{Name: "tags", Value: values},
	}
}

func TestMergeTables(t *testing.T) {
	t.Run("arrays concatenate", func(t *testing.T) {
		a := logical.ArrayTable{person(1, "Alice")}
		b := logical.ArrayTable{person(2, "Bob"), person(3, "Carol")}

		merged, err := logical.Merge(a, b)
		require.NoError(t, err)
		assert.True(t, logical.Equal(logical.ArrayTable{person(1, "Alice"), person(2, "Bob"), person(3, "Carol")}, merged))
		assert.Len(t, a, 1)
	})

	t.Run("maps merge equal keys", func(t *testing.T) {
		a := logical.MapTable{
			{Key: logical.Binary("alice"), Value: person(1, "Alice", "admin")},
			{Key: logical.Binary("bob"), Value: person(2, "Bob")},
		}
		b := logical.MapTable{
			{Key: logical.Binary("carol"), Value: person(3, "Carol")},
			{Key: logical.Binary("alice"), Value: person(1, "Alice", "ops")},
		}

		merged, err := logical.Merge(a, b)
		require.NoError(t, err)
		assert.True(t, logical.Equal(logical.MapTable{
			{Key: logical.Binary("alice"), Value: person(1, "Alice", "admin", "ops")},
			{Key: logical.Binary("bob"), Value: person(2, "Bob")},
			{Key: logical.Binary("carol"), Value: person(3, "Carol")},
		}, merged))

		// The first input keeps its original tags.
		tags, _ := a[0].Value.(logical.Struct).Get("tags")
		assert.Len(t, tags, 1)
	})

	t.Run("binary tables", func(t *testing.T) {
		merged, err := logical.Merge(logical.BinaryTable("abc"), logical.BinaryTable("abc"))
		require.NoError(t, err)
		assert.Equal(t, logical.BinaryTable("abc"), merged)

		_, err = logical.Merge(logical.BinaryTable("abc"), logical.BinaryTable("abd"))
		requireLogicalError(t, err, logical.ErrInvalidValue)
	})

	t.Run("different kinds", func(t *testing.T) {
		_, err := logical.Merge(logical.ArrayTable{}, logical.MapTable{})
		e := requireLogicalError(t, err, logical.ErrStructureMismatch)
		assert.Contains(t, e.Reason, "cannot merge array with map")
	})

	t.Run("conflict in a map value", func(t *testing.T) {
		a := logical.MapTable{{Key: logical.Int(7), Value: logical.Int(1)}}
		b := logical.MapTable{{Key: logical.Int(7), Value: logical.Int(2)}}

		_, err := logical.Merge(a, b)
		e := requireLogicalError(t, err, logical.ErrInvalidValue)
		assert.Equal(t, "[0].value", e.Path)
	})
}

func TestMergeValues(t *testing.T) {
	tests := []struct {
		name string
		a, b logical.Value
		want logical.Value
		kind error
		path string
	}{
		{name: "unit", a: logical.Unit{}, b: logical.Unit{}, want: logical.Unit{}},
		{name: "equal ints", a: logical.Int(4), b: logical.Int(4), want: logical.Int(4)},
		{name: "different ints", a: logical.Int(4), b: logical.Int(5), kind: logical.ErrInvalidValue},
		{name: "equal NaN", a: logical.Double(math.NaN()), b: logical.Double(math.NaN()), want: logical.Double(math.NaN())},
		{name: "different doubles", a: logical.Double(1.5), b: logical.Double(2.5), kind: logical.ErrInvalidValue},
		{name: "different binaries", a: logical.Binary("a"), b: logical.Binary("b"), kind: logical.ErrInvalidValue},
		{name: "missing", a: nil, b: logical.Int(3), want: logical.Int(3)},
		{name: "arrays", a: logical.Array{logical.Int(1)}, b: logical.Array{logical.Int(2)}, want: logical.Array{logical.Int(1), logical.Int(2)}},
		{
			name: "enum same tag",
			a:    logical.Enum{Tag: 2, Value: logical.Array{logical.Int(1)}},
			b:    logical.Enum{Tag: 2, Value: logical.Array{logical.Int(2)}},
			want: logical.Enum{Tag: 2, Value: logical.Array{logical.Int(1), logical.Int(2)}},
		},
		{name: "enum different tags", a: logical.Enum{Tag: 1, Value: logical.Unit{}}, b: logical.Enum{Tag: 2, Value: logical.Unit{}}, kind: logical.ErrInvalidValue},
		{
			name: "nested tables",
			a:    logical.Nested{Table: logical.ArrayTable{logical.Int(1)}},
			b:    logical.Nested{Table: logical.ArrayTable{logical.Int(2)}},
			want: logical.Nested{Table: logical.ArrayTable{logical.Int(1), logical.Int(2)}},
		},
		{name: "kind mismatch", a: logical.Int(1), b: logical.Binary("1"), kind: logical.ErrStructureMismatch},
		{name: "struct field names", a: person(1, "Alice"), b: logical.Struct{{Name: "id", Value: logical.Int(1)}, {Name: "nick", Value: logical.Binary("Al")}, {Name: "tags", Value: logical.Array{}}}, kind: logical.ErrStructureMismatch},
		{name: "struct field counts", a: person(1, "Alice"), b: logical.Struct{{Name: "id", Value: logical.Int(1)}}, kind: logical.ErrStructureMismatch},
		{name: "struct field conflict", a: person(1, "Alice"), b: person(1, "Alicia"), kind: logical.ErrInvalidValue, path: "name"},
		{name: "struct fields", a: person(1, "Alice", "a"), b: person(1, "Alice", "b"), want: person(1, "Alice", "a", "b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := logical.MergeValue(tt.a, tt.b)
			if tt.kind != nil {
				e := requireLogicalError(t, err, tt.kind)
				if tt.path != "" {
					assert.Equal(t, tt.path, e.Path)
				}
				return
			}
			require.NoError(t, err)
			assert.True(t, logical.EqualValue(tt.want, got), "got %#v", got)
		})
	}
}

func TestProperty_Merge(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ints := func(values []int64) logical.ArrayTable {
		rows := make(logical.ArrayTable, len(values))
		for i, v := range values {
			rows[i] = logical.Int(v)
		}
		return rows
	}

	properties.Property("merging array tables keeps every row in order", prop.ForAll(
		func(a, b []int64) bool {
			merged, err := logical.Merge(ints(a), ints(b))
			if err != nil || merged.Len() != len(a)+len(b) {
				return false
			}
			return logical.Equal(ints(append(append([]int64{}, a...), b...)), merged)
		},
		gen.SliceOf(gen.Int64()),
		gen.SliceOf(gen.Int64()),
	))

	properties.Property("different integers conflict and name both", prop.ForAll(
		func(a, b int64) bool {
			if a == b {
				return true
			}
			_, err := logical.MergeValue(logical.Int(a), logical.Int(b))
			var e *logical.Error
			return errors.As(err, &e) && errors.Is(err, logical.ErrInvalidValue) &&
				strings.Contains(e.Reason, strconv.FormatInt(a, 10)) &&
				strings.Contains(e.Reason, strconv.FormatInt(b, 10))
		},
		gen.Int64(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
