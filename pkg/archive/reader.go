package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"math"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/ZaninAndrea/zbra/pkg/compression"
	"github.com/ZaninAndrea/zbra/pkg/containers"
	"github.com/ZaninAndrea/zbra/pkg/schema"
	"github.com/ZaninAndrea/zbra/pkg/striped"
)

// Reader decodes an archive one chunk at a time. Blocks are read and
// decompressed as the chunk is assembled, so at most one chunk of columns is
// held in memory.
type Reader struct {
	in     *StructuredReader
	closer io.Closer
	schema schema.Table
	config Config
	log    *zap.Logger

	codecs map[Compression]compression.Codec

	blocks int
	chunks int
	done   bool
}

// NewReader reads and checks the header: magic and version first, then the
// schema and the compression settings. If r is an io.Closer, Close closes it.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	reader := &Reader{
		in:     NewStructuredReader(r),
		log:    buildOptions(opts).logger,
		codecs: make(map[Compression]compression.Codec),
	}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}

	if err := reader.readHeader(); err != nil {
		return nil, err
	}
	return reader, nil
}

func (r *Reader) readHeader() error {
	magic := make([]byte, magicLen)
	if _, err := io.ReadFull(r.in, magic); err != nil {
		return headerError("read magic", err)
	}
	version, err := parseMagic(magic)
	if err != nil {
		return err
	}
	if version != FormatVersion {
		return &Error{Kind: ErrUnsupportedVersion, Version: version, Block: noBlock}
	}

	schemaJSON, err := r.in.ReadBytes()
	if err != nil {
		return headerError("read schema", err)
	}
	if r.schema, err = schema.UnmarshalTable(schemaJSON); err != nil {
		return headerError("decode schema", err)
	}

	if r.config, err = readConfig(r.in); err != nil {
		return err
	}
	if _, err := r.codec(r.config.Compression); err != nil {
		return headerError("default compression", err)
	}
	for path, o := range r.config.Overrides {
		if _, err := r.codec(o); err != nil {
			return headerError(fmt.Sprintf("compression of column %q", path), err)
		}
	}
	return nil
}

func (r *Reader) Schema() schema.Table {
	return r.schema
}

func (r *Reader) Config() Config {
	return r.config
}

// Close closes the underlying reader when it is an io.Closer.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) codec(c Compression) (compression.Codec, error) {
	if codec, ok := r.codecs[c]; ok {
		return codec, nil
	}
	codec, err := compression.NewCodec(c.Algorithm, c.Level)
	if err != nil {
		return nil, err
	}
	r.codecs[c] = codec
	return codec, nil
}

// Chunks returns an iterator over the chunks of the archive. Iteration stops
// after the first error, which is yielded as the last element. The archive
// can be iterated only once.
func (r *Reader) Chunks() iter.Seq[containers.Result[striped.Table]] {
	return func(yield func(containers.Result[striped.Table]) bool) {
		for !r.done {
			chunk, err := r.readChunk()
			if err != nil {
				r.done = true
				yield(containers.Err[striped.Table](err))
				return
			}
			if chunk == nil {
				return
			}
			if !yield(containers.Ok(chunk)) {
				return
			}
		}
	}
}

// readChunk returns the next chunk, or nil after the end marker.
func (r *Reader) readChunk() (striped.Table, error) {
	rows, err := r.in.ReadUvarint()
	if err != nil {
		return nil, blockError(ErrCorruptedData, r.blocks, "read chunk header", err)
	}
	if rows == 0 {
		r.done = true
		if !r.in.AtEOF() {
			return nil, blockError(ErrCorruptedData, noBlock, "trailing bytes after the end marker", nil)
		}
		return nil, nil
	}
	if rows > maxRows {
		return nil, blockError(ErrCorruptedData, r.blocks, fmt.Sprintf("implausible row count %d", rows), nil)
	}

	blocks, err := r.in.ReadUvarint()
	if err != nil {
		return nil, blockError(ErrCorruptedData, r.blocks, "read chunk header", err)
	}
	if expected := blocksPerChunk(r.schema); blocks != uint64(expected) {
		return nil, blockError(ErrCorruptedData, r.blocks, fmt.Sprintf("chunk has %d blocks, schema needs %d", blocks, expected), nil)
	}

	first := r.blocks
	table, err := r.readTable("", r.schema, int(rows))
	if err != nil {
		return nil, err
	}
	if err := striped.Validate(table); err != nil {
		return nil, blockError(ErrCorruptedData, first, fmt.Sprintf("chunk %d breaks column invariants", r.chunks), err)
	}

	r.log.Debug("read chunk", zap.Int("chunk", r.chunks), zap.Uint64("rows", rows), zap.Int("first_block", first))
	r.chunks++
	return table, nil
}

func (r *Reader) readTable(path string, s schema.Table, rows int) (striped.Table, error) {
	switch s := s.(type) {
	case schema.BinaryTable:
		data, err := r.readBlock(path, blockBytes)
		if err != nil {
			return nil, err
		}
		if len(data) != rows {
			return nil, r.corrupt(fmt.Sprintf("binary table has %d bytes, expected %d", len(data), rows))
		}
		return striped.BinaryTable{Default: s.Default, Encoding: s.Encoding, Data: data}, nil
	case schema.ArrayTable:
		column, err := r.readColumn(path, s.Element, rows)
		if err != nil {
			return nil, err
		}
		return striped.ArrayTable{Default: s.Default, Column: column}, nil
	case schema.MapTable:
		key, err := r.readColumn(keyPath(path), s.Key, rows)
		if err != nil {
			return nil, err
		}
		value, err := r.readColumn(valuePath(path), s.Value, rows)
		if err != nil {
			return nil, err
		}
		return striped.MapTable{Default: s.Default, Key: key, Value: value}, nil
	default:
		panic("archive: internal assertion failed: unknown table schema")
	}
}

func (r *Reader) readColumn(path string, s schema.Value, rows int) (striped.Column, error) {
	switch s := s.(type) {
	case schema.Unit:
		return striped.Unit{Count: rows}, nil
	case schema.Int:
		values, err := r.readInts(path, rows)
		if err != nil {
			return nil, err
		}
		return striped.Int{Default: s.Default, Encoding: s.Encoding, Values: values}, nil
	case schema.Double:
		raw, err := r.readBlock(path, blockDoubles)
		if err != nil {
			return nil, err
		}
		if len(raw) != 8*rows {
			return nil, r.corrupt(fmt.Sprintf("%d bytes of doubles, expected %d values", len(raw), rows))
		}
		values := make([]float64, rows)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		return striped.Double{Default: s.Default, Values: values}, nil
	case schema.Binary:
		offsets, err := r.readOffsets(path, rows)
		if err != nil {
			return nil, err
		}
		data, err := r.readBlock(path, blockBytes)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != offsets[rows] {
			return nil, r.corrupt(fmt.Sprintf("%d bytes of data, offsets need %d", len(data), offsets[rows]))
		}
		return striped.Binary{Default: s.Default, Encoding: s.Encoding, Offsets: offsets, Data: data}, nil
	case schema.Array:
		offsets, err := r.readOffsets(path, rows)
		if err != nil {
			return nil, err
		}
		element, err := r.readColumn(elementPath(path), s.Element, int(offsets[rows]))
		if err != nil {
			return nil, err
		}
		return striped.Array{Default: s.Default, Offsets: offsets, Element: element}, nil
	case schema.Map:
		offsets, err := r.readOffsets(path, rows)
		if err != nil {
			return nil, err
		}
		key, err := r.readColumn(keyPath(path), s.Key, int(offsets[rows]))
		if err != nil {
			return nil, err
		}
		value, err := r.readColumn(valuePath(path), s.Value, int(offsets[rows]))
		if err != nil {
			return nil, err
		}
		return striped.Map{Default: s.Default, Offsets: offsets, Key: key, Value: value}, nil
	case schema.Struct:
		fields := make([]striped.FieldColumn, len(s.Fields))
		for i, f := range s.Fields {
			column, err := r.readColumn(fieldPath(path, f.Name), f.Schema, rows)
			if err != nil {
				return nil, err
			}
			fields[i] = striped.FieldColumn{Name: f.Name, Column: column}
		}
		return striped.Struct{Default: s.Default, Fields: fields}, nil
	case schema.Enum:
		return r.readEnum(path, s, rows)
	case schema.Nested:
		offsets, err := r.readOffsets(path, rows)
		if err != nil {
			return nil, err
		}
		table, err := r.readTable(nestedPath(path), s.Table, int(offsets[rows]))
		if err != nil {
			return nil, err
		}
		return striped.Nested{Default: s.Default, Offsets: offsets, Table: table}, nil
	default:
		panic("archive: internal assertion failed: unknown value schema")
	}
}

func (r *Reader) readEnum(path string, s schema.Enum, rows int) (striped.Column, error) {
	values, err := r.readInts(path, rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[uint32]int, len(s.Variants))
	for _, v := range s.Variants {
		counts[v.Tag] = 0
	}
	tags := make([]uint32, len(values))
	for i, v := range values {
		if v < 0 || v > math.MaxUint32 {
			return nil, r.corrupt(fmt.Sprintf("row %d has tag %d", i, v))
		}
		tag := uint32(v)
		if _, ok := counts[tag]; !ok {
			return nil, r.corrupt(fmt.Sprintf("row %d has undeclared tag %d", i, tag))
		}
		counts[tag]++
		tags[i] = tag
	}

	variants := make([]striped.VariantColumn, len(s.Variants))
	for i, v := range s.Variants {
		column, err := r.readColumn(variantPath(path, v.Name), v.Schema, counts[v.Tag])
		if err != nil {
			return nil, err
		}
		variants[i] = striped.VariantColumn{Name: v.Name, Tag: v.Tag, Column: column}
	}
	return striped.Enum{Default: s.Default, Tags: tags, Variants: variants}, nil
}

func (r *Reader) readInts(path string, count int) ([]int64, error) {
	raw, err := r.readBlock(path, blockInts)
	if err != nil {
		return nil, err
	}
	values, err := compression.DecodeInts(raw)
	if err != nil {
		return nil, r.corruptErr("decode integers", err)
	}
	if len(values) != count {
		return nil, r.corrupt(fmt.Sprintf("%d integers, expected %d", len(values), count))
	}
	return values, nil
}

// readOffsets reads the offsets of rows values and checks they can index
// a child column.
func (r *Reader) readOffsets(path string, rows int) ([]int64, error) {
	raw, err := r.readBlock(path, blockInts)
	if err != nil {
		return nil, err
	}
	offsets, err := compression.DecodeOffsets(raw)
	if err != nil {
		return nil, r.corruptErr("decode offsets", err)
	}
	if len(offsets) != rows+1 {
		return nil, r.corrupt(fmt.Sprintf("%d offsets for %d rows", len(offsets), rows))
	}
	if offsets[0] != 0 {
		return nil, r.corrupt(fmt.Sprintf("offsets start at %d", offsets[0]))
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] || offsets[i] > maxRows {
			return nil, r.corrupt(fmt.Sprintf("offset %d is %d after %d", i, offsets[i], offsets[i-1]))
		}
	}
	return offsets, nil
}

// readBlock reads the next block, checks its kind and checksum and returns
// the decompressed payload.
func (r *Reader) readBlock(path string, want blockKind) ([]byte, error) {
	index := r.blocks
	r.blocks++

	kind, err := r.in.ReadUint8()
	if err != nil {
		return nil, blockError(ErrCorruptedData, index, "read block header", err)
	}
	if blockKind(kind) != want {
		return nil, blockError(ErrCorruptedData, index, fmt.Sprintf("found %s block, expected %s", blockKind(kind), want), nil)
	}
	rawLen, err := r.in.ReadUvarint()
	if err != nil {
		return nil, blockError(ErrCorruptedData, index, "read block header", err)
	}
	storedLen, err := r.in.ReadUvarint()
	if err != nil {
		return nil, blockError(ErrCorruptedData, index, "read block header", err)
	}
	if rawLen > maxBlockSize || storedLen > maxBlockSize {
		return nil, blockError(ErrCorruptedData, index, fmt.Sprintf("implausible block size %d", max(rawLen, storedLen)), nil)
	}
	checksum, err := r.in.ReadUInt64()
	if err != nil {
		return nil, blockError(ErrCorruptedData, index, "read block header", err)
	}
	stored, err := r.in.ReadN(storedLen)
	if err != nil {
		return nil, blockError(ErrCorruptedData, index, "read block payload", err)
	}
	if actual := xxh3.Hash(stored); actual != checksum {
		return nil, blockError(ErrCorruptedData, index, fmt.Sprintf("checksum %016x, expected %016x", actual, checksum), nil)
	}

	if rawLen == 0 {
		if storedLen != 0 {
			return nil, blockError(ErrCorruptedData, index, "payload stored for an empty block", nil)
		}
		return nil, nil
	}

	codec, err := r.codec(r.config.compressionFor(path))
	if err != nil {
		return nil, blockError(ErrDecompressionFailure, index, "select codec", err)
	}
	raw, err := codec.Decompress(stored, int(rawLen))
	if err != nil {
		return nil, blockError(ErrDecompressionFailure, index, fmt.Sprintf("%s block of column %q", blockKind(kind), path), err)
	}
	return raw, nil
}

// corrupt reports a payload that decompressed fine but does not fit the
// schema. It blames the block read last.
func (r *Reader) corrupt(detail string) error {
	return blockError(ErrCorruptedData, r.blocks-1, detail, nil)
}

func (r *Reader) corruptErr(detail string, cause error) error {
	return blockError(ErrCorruptedData, r.blocks-1, detail, cause)
}
