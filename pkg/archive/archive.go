package archive

import (
	"bytes"

	"github.com/ZaninAndrea/zbra/pkg/logical"
	"github.com/ZaninAndrea/zbra/pkg/schema"
	"github.com/ZaninAndrea/zbra/pkg/striped"
)

// Encode writes a whole table as an archive. The output depends only on the
// arguments, so equal inputs give byte-identical archives.
func Encode(s schema.Table, t striped.Table, cfg Config, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer

	w, err := NewWriter(&buf, s, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Write(t); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a whole archive and joins its chunks into one table.
func Decode(data []byte, opts ...Option) (schema.Table, striped.Table, error) {
	r, err := NewReader(bytes.NewReader(data), opts...)
	if err != nil {
		return nil, nil, err
	}

	var chunks []striped.Table
	for res := range r.Chunks() {
		chunk, err := res.Get()
		if err != nil {
			return nil, nil, err
		}
		chunks = append(chunks, chunk)
	}

	switch len(chunks) {
	case 0:
		t, err := emptyTable(r.Schema())
		return r.Schema(), t, err
	case 1:
		return r.Schema(), chunks[0], nil
	default:
		t, err := striped.Concat(chunks)
		if err != nil {
			return nil, nil, blockError(ErrCorruptedData, noBlock, "join chunks", err)
		}
		return r.Schema(), t, nil
	}
}

// emptyTable builds the striped table with no rows for a schema.
func emptyTable(s schema.Table) (striped.Table, error) {
	var rows logical.Table
	switch s.(type) {
	case schema.BinaryTable:
		rows = logical.BinaryTable{}
	case schema.ArrayTable:
		rows = logical.ArrayTable{}
	case schema.MapTable:
		rows = logical.MapTable{}
	}
	return striped.FromLogical(s, rows)
}
