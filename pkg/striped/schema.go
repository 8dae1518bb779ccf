package striped

import "github.com/ZaninAndrea/zbra/pkg/schema"

// SchemaOf recovers the schema a striped table was built from. Columns keep
// their policies and encodings, so the result is exact.
func SchemaOf(t Table) schema.Table {
	switch t := t.(type) {
	case BinaryTable:
		return schema.BinaryTable{Default: t.Default, Encoding: t.Encoding}
	case ArrayTable:
		return schema.ArrayTable{Default: t.Default, Element: SchemaOfColumn(t.Column)}
	case MapTable:
		return schema.MapTable{Default: t.Default, Key: SchemaOfColumn(t.Key), Value: SchemaOfColumn(t.Value)}
	default:
		return nil
	}
}

// SchemaOfColumn is SchemaOf for a single column. It returns nil for an
// unknown or missing column.
func SchemaOfColumn(c Column) schema.Value {
	switch c := c.(type) {
	case Unit:
		return schema.Unit{}
	case Int:
		return schema.Int{Default: c.Default, Encoding: c.Encoding}
	case Double:
		return schema.Double{Default: c.Default}
	case Binary:
		return schema.Binary{Default: c.Default, Encoding: c.Encoding}
	case Array:
		return schema.Array{Default: c.Default, Element: SchemaOfColumn(c.Element)}
	case Map:
		return schema.Map{Default: c.Default, Key: SchemaOfColumn(c.Key), Value: SchemaOfColumn(c.Value)}
	case Struct:
		fields := make([]schema.Field, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = schema.Field{Name: f.Name, Schema: SchemaOfColumn(f.Column)}
		}
		return schema.Struct{Default: c.Default, Fields: fields}
	case Enum:
		variants := make([]schema.Variant, len(c.Variants))
		for i, v := range c.Variants {
			variants[i] = schema.Variant{Name: v.Name, Tag: v.Tag, Schema: SchemaOfColumn(v.Column)}
		}
		return schema.Enum{Default: c.Default, Variants: variants}
	case Nested:
		return schema.Nested{Default: c.Default, Table: SchemaOf(c.Table)}
	default:
		return nil
	}
}
