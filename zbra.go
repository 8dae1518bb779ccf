// Package zbra converts datasets between three forms: JSON text, a row
// oriented logical tree and a compressed columnar archive.
//
// The usual write path is
//
//	doc, err := zbra.LoadLogical(text)
//	table, err := zbra.ToStriped(doc.Schema, doc.Data)
//	data, err := zbra.EncodeBinary(doc.Schema, table, zbra.DefaultConfig())
//
// and DecodeBinary followed by ToLogical reads it back. Every step checks its
// input, so an error names the layer and, for schema violations, the path of
// the offending value.
package zbra

import (
	"github.com/ZaninAndrea/zbra/pkg/archive"
	"github.com/ZaninAndrea/zbra/pkg/logical"
	"github.com/ZaninAndrea/zbra/pkg/schema"
	"github.com/ZaninAndrea/zbra/pkg/striped"
)

type Config = archive.Config

func DefaultConfig() Config {
	return archive.DefaultConfig()
}

// LoadLogical parses a {"schema": ..., "data": ...} document. The data is
// validated against the schema and holds defaults for missing values.
func LoadLogical(text []byte) (logical.Document, error) {
	return logical.ParseDocument(text)
}

// Validate checks a logical table against a schema. Failures are
// *schema.Error values.
func Validate(s schema.Table, t logical.Table) error {
	return logical.Validate(s, t)
}

// ToStriped fills in defaults and transposes the rows into columns.
func ToStriped(s schema.Table, t logical.Table) (striped.Table, error) {
	conformed, err := logical.Conform(s, t)
	if err != nil {
		return nil, err
	}
	return striped.FromLogical(s, conformed)
}

func ToLogical(t striped.Table) (logical.Table, error) {
	return striped.ToLogical(t)
}

func EncodeBinary(s schema.Table, t striped.Table, cfg Config, opts ...archive.Option) ([]byte, error) {
	return archive.Encode(s, t, cfg, opts...)
}

func DecodeBinary(data []byte, opts ...archive.Option) (schema.Table, striped.Table, error) {
	return archive.Decode(data, opts...)
}
