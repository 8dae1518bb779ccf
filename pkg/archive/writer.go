package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/ZaninAndrea/zbra/pkg/compression"
	"github.com/ZaninAndrea/zbra/pkg/schema"
	"github.com/ZaninAndrea/zbra/pkg/striped"
)

// Writer streams striped tables of one schema into an archive. Rows are
// buffered until a chunk is full; Close writes the last partial chunk and
// the end marker.
type Writer struct {
	out    *StructuredWriter
	closer io.Closer
	schema schema.Table
	config Config
	log    *zap.Logger

	codecs map[Compression]compression.Codec

	pending     []striped.Table
	pendingRows int
	chunks      int
	blocks      int
	closed      bool
}

// NewWriter checks the schema and the configuration and writes the header.
// If w is an io.Closer, Close closes it.
func NewWriter(w io.Writer, s schema.Table, cfg Config, opts ...Option) (*Writer, error) {
	if err := schema.Check(s); err != nil {
		return nil, err
	}
	if cfg.ChunkRows < 0 {
		return nil, serializationError(fmt.Sprintf("negative chunk size %d", cfg.ChunkRows), nil)
	}

	writer := &Writer{
		out:    NewStructuredWriter(w),
		schema: s,
		config: cfg,
		log:    buildOptions(opts).logger,
		codecs: make(map[Compression]compression.Codec),
	}
	if c, ok := w.(io.Closer); ok {
		writer.closer = c
	}

	known := ColumnPaths(s)
	for path, o := range cfg.Overrides {
		if !slices.Contains(known, path) {
			return nil, serializationError(fmt.Sprintf("override for unknown column %q", path), nil)
		}
		if _, err := writer.codec(o); err != nil {
			return nil, serializationError(fmt.Sprintf("override for column %q", path), err)
		}
	}
	if _, err := writer.codec(cfg.Compression); err != nil {
		return nil, serializationError("default compression", err)
	}

	if err := writer.writeHeader(); err != nil {
		return nil, err
	}
	return writer, nil
}

func (w *Writer) writeHeader() error {
	schemaJSON, err := schema.MarshalTable(w.schema)
	if err != nil {
		return serializationError("encode schema", err)
	}

	w.out.Write(Magic(FormatVersion))
	w.out.WriteBytes(schemaJSON)
	if err := writeConfig(w.out, w.config); err != nil {
		return serializationError("write header", err)
	}
	return nil
}

func (w *Writer) codec(c Compression) (compression.Codec, error) {
	if codec, ok := w.codecs[c]; ok {
		return codec, nil
	}
	codec, err := compression.NewCodec(c.Algorithm, c.Level)
	if err != nil {
		return nil, err
	}
	w.codecs[c] = codec
	return codec, nil
}

// Write appends the rows of t. The table must have been built from the
// writer's schema.
func (w *Writer) Write(t striped.Table) error {
	if w.closed {
		return serializationError("write after close", nil)
	}
	if err := striped.Validate(t); err != nil {
		return serializationError("invalid table", err)
	}
	if actual := striped.SchemaOf(t); !schema.Equal(actual, w.schema) {
		return schema.IncompatibleSchema(describe(actual), describe(w.schema))
	}
	if t.RowCount() == 0 {
		return nil
	}

	w.pending = append(w.pending, t)
	w.pendingRows += t.RowCount()

	for w.config.ChunkRows > 0 && w.pendingRows >= w.config.ChunkRows {
		if err := w.flush(w.config.ChunkRows); err != nil {
			return err
		}
	}
	return nil
}

// flush writes the first n pending rows as one chunk.
func (w *Writer) flush(n int) error {
	joined := w.pending[0]
	if len(w.pending) > 1 {
		var err error
		if joined, err = striped.Concat(w.pending); err != nil {
			return serializationError("join pending rows", err)
		}
	}

	chunk, rest := joined, striped.Table(nil)
	if n < w.pendingRows {
		var err error
		if chunk, err = striped.Slice(joined, 0, n); err != nil {
			return serializationError("cut chunk", err)
		}
		if rest, err = striped.Slice(joined, n, w.pendingRows); err != nil {
			return serializationError("cut chunk", err)
		}
	}

	if err := w.writeChunk(chunk); err != nil {
		return err
	}

	w.pending = w.pending[:0]
	w.pendingRows = 0
	if rest != nil {
		w.pending = append(w.pending, rest)
		w.pendingRows = rest.RowCount()
	}
	return nil
}

func (w *Writer) writeChunk(t striped.Table) error {
	start := w.out.Offset()
	w.out.WriteUvarint(uint64(t.RowCount()))
	w.out.WriteUvarint(uint64(blocksPerChunk(w.schema)))

	if err := w.writeTable("", t); err != nil {
		return err
	}
	if err := w.out.Err(); err != nil {
		return serializationError(fmt.Sprintf("write chunk %d", w.chunks), err)
	}

	w.log.Debug("wrote chunk",
		zap.Int("chunk", w.chunks),
		zap.Int("rows", t.RowCount()),
		zap.Uint64("bytes", w.out.Offset()-start),
	)
	w.chunks++
	return nil
}

func (w *Writer) writeTable(path string, t striped.Table) error {
	switch t := t.(type) {
	case striped.BinaryTable:
		return w.writeBlock(path, blockBytes, t.Data)
	case striped.ArrayTable:
		return w.writeColumn(path, t.Column)
	case striped.MapTable:
		if err := w.writeColumn(keyPath(path), t.Key); err != nil {
			return err
		}
		return w.writeColumn(valuePath(path), t.Value)
	default:
		panic("archive: internal assertion failed: unknown table type")
	}
}

func (w *Writer) writeColumn(path string, c striped.Column) error {
	switch c := c.(type) {
	case striped.Unit:
		return nil
	case striped.Int:
		return w.writeInts(path, c.Values)
	case striped.Double:
		raw := make([]byte, 0, 8*len(c.Values))
		for _, v := range c.Values {
			raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(v))
		}
		return w.writeBlock(path, blockDoubles, raw)
	case striped.Binary:
		if err := w.writeOffsets(path, c.Offsets); err != nil {
			return err
		}
		return w.writeBlock(path, blockBytes, c.Data)
	case striped.Array:
		if err := w.writeOffsets(path, c.Offsets); err != nil {
			return err
		}
		return w.writeColumn(elementPath(path), c.Element)
	case striped.Map:
		if err := w.writeOffsets(path, c.Offsets); err != nil {
			return err
		}
		if err := w.writeColumn(keyPath(path), c.Key); err != nil {
			return err
		}
		return w.writeColumn(valuePath(path), c.Value)
	case striped.Struct:
		for _, f := range c.Fields {
			if err := w.writeColumn(fieldPath(path, f.Name), f.Column); err != nil {
				return err
			}
		}
		return nil
	case striped.Enum:
		tags := make([]int64, len(c.Tags))
		for i, tag := range c.Tags {
			tags[i] = int64(tag)
		}
		if err := w.writeInts(path, tags); err != nil {
			return err
		}
		for _, v := range c.Variants {
			if err := w.writeColumn(variantPath(path, v.Name), v.Column); err != nil {
				return err
			}
		}
		return nil
	case striped.Nested:
		if err := w.writeOffsets(path, c.Offsets); err != nil {
			return err
		}
		return w.writeTable(nestedPath(path), c.Table)
	default:
		panic("archive: internal assertion failed: unknown column type")
	}
}

func (w *Writer) writeInts(path string, values []int64) error {
	raw, stats := compression.EncodeInts(nil, values)
	w.logFallback(path, stats)
	return w.writeBlock(path, blockInts, raw)
}

func (w *Writer) writeOffsets(path string, offsets []int64) error {
	raw, stats := compression.EncodeOffsets(nil, offsets)
	w.logFallback(path, stats)
	return w.writeBlock(path, blockInts, raw)
}

func (w *Writer) logFallback(path string, stats compression.PackStats) {
	if stats.RawChunks > 0 {
		w.log.Debug("integer block fell back to raw 64 bit values",
			zap.Int("block", w.blocks),
			zap.String("column", path),
			zap.Int("raw_chunks", stats.RawChunks),
			zap.Int("chunks", stats.Chunks),
		)
	}
}

func (w *Writer) writeBlock(path string, kind blockKind, raw []byte) error {
	var stored []byte
	if len(raw) > 0 {
		codec, err := w.codec(w.config.compressionFor(path))
		if err != nil {
			return blockError(ErrSerializationFailure, w.blocks, "select codec", err)
		}
		if stored, err = codec.Compress(raw); err != nil {
			return blockError(ErrSerializationFailure, w.blocks, "compress "+kind.String(), err)
		}
	}

	w.out.WriteUint8(uint8(kind))
	w.out.WriteUvarint(uint64(len(raw)))
	w.out.WriteUvarint(uint64(len(stored)))
	w.out.WriteUInt64(xxh3.Hash(stored))
	w.out.Write(stored)
	if err := w.out.Err(); err != nil {
		return blockError(ErrSerializationFailure, w.blocks, "write block", err)
	}

	w.blocks++
	return nil
}

// Close writes the buffered rows and the end marker. Closing twice is a
// no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.pendingRows > 0 {
		if err := w.flush(w.pendingRows); err != nil {
			return err
		}
	}
	if err := w.out.WriteUvarint(0); err != nil {
		return serializationError("write end marker", err)
	}

	w.log.Debug("closed archive", zap.Int("chunks", w.chunks), zap.Int("blocks", w.blocks), zap.Uint64("bytes", w.out.Offset()))

	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func describe(s schema.Table) string {
	if s == nil {
		return "nothing"
	}
	text, err := schema.MarshalTable(s)
	if err != nil {
		return s.Kind()
	}
	return string(text)
}
