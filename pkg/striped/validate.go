package striped

import (
	"fmt"

	"github.com/ZaninAndrea/zbra/pkg/schema"
)

// Validate checks the invariants of a striped table: every offsets vector
// starts at 0, never decreases and ends at its child's row count, struct
// fields share a row count, enum tags are declared and every variant column
// holds exactly the rows tagged for it. The schema recovered from the table
// must also pass schema.Check.
func Validate(t Table) error {
	if _, err := checkTable("", t); err != nil {
		return err
	}

	if err := schema.Check(SchemaOf(t)); err != nil {
		return &Error{Kind: ErrColumnMismatch, Cause: err}
	}
	return nil
}

func checkTable(path string, t Table) (int, error) {
	switch t := t.(type) {
	case BinaryTable:
		return len(t.Data), nil
	case ArrayTable:
		return checkColumn(schema.IndexPath(path, -1), t.Column)
	case MapTable:
		keys, err := checkColumn(schema.KeyPath(path, -1), t.Key)
		if err != nil {
			return 0, err
		}
		values, err := checkColumn(schema.ValuePath(path, -1), t.Value)
		if err != nil {
			return 0, err
		}
		if keys != values {
			return 0, newError(ErrRowCountMismatch, path, "%d keys but %d values", keys, values)
		}
		return keys, nil
	case nil:
		return 0, newError(ErrColumnMismatch, path, "missing table")
	default:
		return 0, newError(ErrColumnMismatch, path, "unknown table type %T", t)
	}
}

func checkColumn(path string, c Column) (int, error) {
	switch c := c.(type) {
	case Unit:
		if c.Count < 0 {
			return 0, newError(ErrRowCountMismatch, path, "negative unit count %d", c.Count)
		}
		return c.Count, nil
	case Int:
		return len(c.Values), nil
	case Double:
		return len(c.Values), nil
	case Binary:
		return checkOffsets(path, c.Offsets, len(c.Data))
	case Array:
		children, err := checkColumn(schema.IndexPath(path, -1), c.Element)
		if err != nil {
			return 0, err
		}
		return checkOffsets(path, c.Offsets, children)
	case Map:
		keys, err := checkColumn(schema.KeyPath(path, -1), c.Key)
		if err != nil {
			return 0, err
		}
		values, err := checkColumn(schema.ValuePath(path, -1), c.Value)
		if err != nil {
			return 0, err
		}
		if keys != values {
			return 0, newError(ErrRowCountMismatch, path, "%d keys but %d values", keys, values)
		}
		return checkOffsets(path, c.Offsets, keys)
	case Struct:
		if len(c.Fields) == 0 {
			return 0, newError(ErrColumnMismatch, path, "struct without fields")
		}
		rows := -1
		for _, f := range c.Fields {
			n, err := checkColumn(schema.FieldPath(path, f.Name), f.Column)
			if err != nil {
				return 0, err
			}
			if rows >= 0 && n != rows {
				return 0, newError(ErrRowCountMismatch, path, "field %q has %d rows, expected %d", f.Name, n, rows)
			}
			rows = n
		}
		return rows, nil
	case Enum:
		return checkEnum(path, c)
	case Nested:
		children, err := checkTable(path+"/", c.Table)
		if err != nil {
			return 0, err
		}
		return checkOffsets(path, c.Offsets, children)
	case nil:
		return 0, newError(ErrColumnMismatch, path, "missing column")
	default:
		return 0, newError(ErrColumnMismatch, path, "unknown column type %T", c)
	}
}

func checkEnum(path string, c Enum) (int, error) {
	counts := make(map[uint32]int, len(c.Variants))
	for _, v := range c.Variants {
		if _, ok := counts[v.Tag]; ok {
			return 0, newError(ErrTags, path, "variant tag %d declared twice", v.Tag)
		}
		counts[v.Tag] = 0
	}

	for row, tag := range c.Tags {
		n, ok := counts[tag]
		if !ok {
			return 0, newError(ErrTags, path, "row %d has undeclared tag %d", row, tag)
		}
		counts[tag] = n + 1
	}

	total := 0
	for _, v := range c.Variants {
		n, err := checkColumn(schema.VariantPath(path, v.Name), v.Column)
		if err != nil {
			return 0, err
		}
		if n != counts[v.Tag] {
			return 0, newError(ErrTags, path, "variant %q has %d rows but %d rows are tagged %d", v.Name, n, counts[v.Tag], v.Tag)
		}
		total += n
	}

	if total != len(c.Tags) {
		return 0, newError(ErrRowCountMismatch, path, "variants hold %d rows, expected %d", total, len(c.Tags))
	}
	return len(c.Tags), nil
}

func checkOffsets(path string, offsets []int64, children int) (int, error) {
	if len(offsets) == 0 {
		return 0, newError(ErrOffsets, path, "offsets vector is empty")
	}
	if offsets[0] != 0 {
		return 0, newError(ErrOffsets, path, "offsets start at %d", offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return 0, newError(ErrOffsets, path, "offset %d decreases from %d to %d", i, offsets[i-1], offsets[i])
		}
	}
	if last := offsets[len(offsets)-1]; last != int64(children) {
		return 0, newError(ErrOffsets, path, "offsets end at %d, child has %s", last, pluralRows(children))
	}
	return len(offsets) - 1, nil
}

func pluralRows(n int) string {
	if n == 1 {
		return "1 row"
	}
	return fmt.Sprintf("%d rows", n)
}
