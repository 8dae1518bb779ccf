package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ZaninAndrea/zbra/internal/fixture"
	"github.com/ZaninAndrea/zbra/pkg/compression"
	"github.com/ZaninAndrea/zbra/pkg/logical"
	"github.com/ZaninAndrea/zbra/pkg/schema"
	"github.com/ZaninAndrea/zbra/pkg/striped"
)

type closeRecorder struct {
	io.Writer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

var algorithms = []compression.Algorithm{compression.None, compression.Zstd, compression.LZ4, compression.Snappy}

func fixtureTable(t testing.TB, seed uint64, rows int) striped.Table {
	t.Helper()

	s := fixture.Schema()
	conformed, err := logical.Conform(s, fixture.Events(seed, rows))
	if err != nil {
		t.Fatalf("Failed to conform fixture rows: %v", err)
	}
	table, err := striped.FromLogical(s, conformed)
	if err != nil {
		t.Fatalf("Failed to stripe fixture rows: %v", err)
	}
	return table
}

func peopleSchema() schema.Table {
	return schema.ArrayTable{Element: schema.Struct{Fields: []schema.Field{
		{Name: "id", Schema: schema.Int{}},
		{Name: "name", Schema: schema.Binary{Encoding: schema.BinaryEncodingUTF8}},
	}}}
}

func peopleTable(t testing.TB) striped.Table {
	t.Helper()

	rows := logical.ArrayTable{
		logical.Struct{{Name: "id", Value: logical.Int(1)}, {Name: "name", Value: logical.Binary("Alice")}},
		logical.Struct{{Name: "id", Value: logical.Int(2)}, {Name: "name", Value: logical.Binary("Bob")}},
	}
	table, err := striped.FromLogical(peopleSchema(), rows)
	if err != nil {
		t.Fatalf("Failed to stripe rows: %v", err)
	}
	return table
}

func TestReadWriteCycle(t *testing.T) {
	for _, algorithm := range algorithms {
		t.Run(algorithm.String(), func(t *testing.T) {
			cfg := Config{Compression: Compression{Algorithm: algorithm}, ChunkRows: 1000}

			t.Run("Base case", func(t *testing.T) {
				checkReadWriteCycle(t, cfg, fixtureTable(t, 1, 1500))
			})

			t.Run("Empty dataset", func(t *testing.T) {
				checkReadWriteCycle(t, cfg, fixtureTable(t, 1, 0))
			})

			t.Run("Single row", func(t *testing.T) {
				checkReadWriteCycle(t, cfg, fixtureTable(t, 2, 1))
			})
		})
	}

	t.Run("Binary table", func(t *testing.T) {
		table := striped.BinaryTable{Encoding: schema.BinaryEncodingUTF8, Data: []byte("hello, zbra")}
		checkReadWriteCycle(t, Config{Compression: Compression{Algorithm: compression.Zstd}, ChunkRows: 4}, table)
	})

	t.Run("Map table with doubles", func(t *testing.T) {
		table := striped.MapTable{
			Key:   striped.Int{Encoding: schema.IntEncodingDate, Values: []int64{0, schema.MaxDate, 86_400_000}},
			Value: striped.Double{Values: []float64{math.NaN(), math.Inf(-1), -0.0}},
		}
		checkReadWriteCycle(t, DefaultConfig(), table)
	})

	t.Run("Raw fallback", func(t *testing.T) {
		table := striped.ArrayTable{Column: striped.Int{Values: []int64{math.MinInt64, math.MaxInt64, 0, -1, 1 << 40}}}
		checkReadWriteCycle(t, DefaultConfig(), table)
	})
}

func checkReadWriteCycle(t *testing.T, cfg Config, table striped.Table) {
	t.Helper()

	s := striped.SchemaOf(table)
	out := &closeRecorder{Writer: &bytes.Buffer{}}

	writer, err := NewWriter(out, s, cfg)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := writer.Write(table); err != nil {
		t.Fatalf("Failed to write rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	if !out.closed {
		t.Errorf("Close did not close the underlying writer")
	}

	data := out.Writer.(*bytes.Buffer).Bytes()
	if !bytes.HasPrefix(data, []byte("||_ZBRA||00001||")) {
		t.Fatalf("Archive starts with %q", data[:min(16, len(data))])
	}

	readSchema, readTable, err := Decode(data)
	if err != nil {
		t.Fatalf("Failed to decode archive: %v", err)
	}
	if !schema.Equal(s, readSchema) {
		t.Errorf("Schema mismatch. Expected %v, got %v", s, readSchema)
	}
	if !striped.Equal(table, readTable) {
		t.Errorf("Table mismatch after the read write cycle")
	}
	if readTable.RowCount() != table.RowCount() {
		t.Errorf("Read %d rows, expected %d", readTable.RowCount(), table.RowCount())
	}
}

func TestChunks(t *testing.T) {
	table := fixtureTable(t, 7, 150)

	data, err := Encode(striped.SchemaOf(table), table, Config{Compression: Compression{Algorithm: compression.LZ4}, ChunkRows: 64})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	reader, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	if reader.Config().ChunkRows != 64 {
		t.Errorf("ChunkRows = %d", reader.Config().ChunkRows)
	}

	var sizes []int
	var chunks []striped.Table
	for res := range reader.Chunks() {
		if res.IsErr() {
			t.Fatalf("Error reading chunk %d: %v", len(chunks), res.Err)
		}
		chunk := res.Unwrap()
		sizes = append(sizes, chunk.RowCount())
		chunks = append(chunks, chunk)
	}
	if !slices.Equal(sizes, []int{64, 64, 22}) {
		t.Fatalf("Chunk sizes %v", sizes)
	}

	joined, err := striped.Concat(chunks)
	if err != nil {
		t.Fatalf("Failed to join chunks: %v", err)
	}
	if !striped.Equal(table, joined) {
		t.Errorf("Chunks do not add up to the written table")
	}

	t.Run("Streaming writes", func(t *testing.T) {
		var buf bytes.Buffer
		writer, err := NewWriter(&buf, striped.SchemaOf(table), Config{Compression: Compression{Algorithm: compression.LZ4}, ChunkRows: 64})
		if err != nil {
			t.Fatalf("Failed to create writer: %v", err)
		}
		for from := 0; from < 150; from += 50 {
			part, err := striped.Slice(table, from, from+50)
			if err != nil {
				t.Fatalf("Failed to slice: %v", err)
			}
			if err := writer.Write(part); err != nil {
				t.Fatalf("Failed to write rows: %v", err)
			}
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("Failed to close writer: %v", err)
		}

		if !bytes.Equal(buf.Bytes(), data) {
			t.Errorf("Streaming writes produced a different archive")
		}
	})
}

func TestEncodeIsDeterministic(t *testing.T) {
	table := fixtureTable(t, 5, 400)
	cfg := DefaultConfig()
	cfg.ChunkRows = 100
	cfg.Overrides = map[string]Compression{
		"payload":          {Algorithm: compression.None},
		"tags[]":           {Algorithm: compression.Snappy},
		"reading<message>": {Algorithm: compression.LZ4, Level: 9},
		"samples/":         {Algorithm: compression.Zstd, Level: 19},
		"attrs{key}":       {Algorithm: compression.LZ4},
	}

	first, err := Encode(fixture.Schema(), table, cfg)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Encode(fixture.Schema(), table, cfg)
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("Encoding %d differs from the first one", i)
		}
	}

	_, decoded, err := Decode(first)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !striped.Equal(table, decoded) {
		t.Errorf("Table mismatch with overrides")
	}
}

func TestColumnPaths(t *testing.T) {
	paths := ColumnPaths(fixture.Schema())
	expected := []string{
		"id", "at", "host", "tags", "tags[]", "reading", "reading<gauge>", "reading<counter>",
		"reading<message>", "attrs", "attrs{key}", "attrs{value}", "samples", "samples/", "payload",
	}
	if !slices.Equal(paths, expected) {
		t.Errorf("ColumnPaths() = %q", paths)
	}

	mapPaths := ColumnPaths(schema.MapTable{Key: schema.Int{}, Value: schema.Array{Element: schema.Double{}}})
	if !slices.Equal(mapPaths, []string{"{key}", "{value}", "{value}[]"}) {
		t.Errorf("ColumnPaths() = %q", mapPaths)
	}
}

func requireArchiveError(t *testing.T, err error, kind error) *Error {
	t.Helper()

	if !errors.Is(err, kind) {
		t.Fatalf("Expected %v, got %v", kind, err)
	}
	var archiveErr *Error
	if !errors.As(err, &archiveErr) {
		t.Fatalf("Expected an archive error, got %T", err)
	}
	return archiveErr
}

func TestHeaderErrors(t *testing.T) {
	data, err := Encode(peopleSchema(), peopleTable(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	if !IsArchive(data) || IsArchive(data[:10]) || IsArchive([]byte(`{"schema": {}}`)) {
		t.Errorf("IsArchive misclassified its input")
	}

	t.Run("Bad magic", func(t *testing.T) {
		bad := slices.Clone(data)
		bad[2] = 'X'
		_, _, err := Decode(bad)
		requireArchiveError(t, err, ErrInvalidHeader)
	})

	t.Run("Other version", func(t *testing.T) {
		bad := slices.Clone(data)
		copy(bad, Magic(2))
		_, _, err := Decode(bad)
		archiveErr := requireArchiveError(t, err, ErrUnsupportedVersion)
		if archiveErr.Version != 2 {
			t.Errorf("Version = %d", archiveErr.Version)
		}
	})

	t.Run("Version digits", func(t *testing.T) {
		bad := slices.Clone(data)
		copy(bad[9:], "0x001")
		_, _, err := Decode(bad)
		requireArchiveError(t, err, ErrInvalidHeader)
	})

	t.Run("Short input", func(t *testing.T) {
		_, _, err := Decode(data[:10])
		requireArchiveError(t, err, ErrInvalidHeader)
	})

	t.Run("Bad schema", func(t *testing.T) {
		_, _, err := Decode(append(Magic(FormatVersion), 2, '{', '}'))
		requireArchiveError(t, err, ErrInvalidHeader)
	})
}

func TestCorruptedBlocks(t *testing.T) {
	// Blocks: 0 id values, 1 name offsets, 2 name bytes.
	cfg := Config{Compression: Compression{Algorithm: compression.None}}
	data, err := Encode(peopleSchema(), peopleTable(t), cfg)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if blocksPerChunk(peopleSchema()) != 3 {
		t.Fatalf("Unexpected block layout")
	}

	t.Run("Flipped byte", func(t *testing.T) {
		bad := slices.Clone(data)
		bad[len(bad)-2] ^= 0xff
		_, _, err := Decode(bad)
		archiveErr := requireArchiveError(t, err, ErrCorruptedData)
		if archiveErr.Block != 2 {
			t.Errorf("Block = %d, expected 2", archiveErr.Block)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		_, _, err := Decode(data[:len(data)-3])
		archiveErr := requireArchiveError(t, err, ErrCorruptedData)
		if archiveErr.Block != 2 {
			t.Errorf("Block = %d, expected 2", archiveErr.Block)
		}
	})

	t.Run("Missing end marker", func(t *testing.T) {
		_, _, err := Decode(data[:len(data)-1])
		requireArchiveError(t, err, ErrCorruptedData)
	})

	t.Run("Trailing bytes", func(t *testing.T) {
		_, _, err := Decode(append(slices.Clone(data), 0))
		requireArchiveError(t, err, ErrCorruptedData)
	})

	t.Run("Wrong codec", func(t *testing.T) {
		schemaJSON, err := schema.MarshalTable(peopleSchema())
		if err != nil {
			t.Fatalf("Failed to marshal schema: %v", err)
		}
		algorithmAt := magicLen + len(binary.AppendUvarint(nil, uint64(len(schemaJSON)))) + len(schemaJSON)

		bad := slices.Clone(data)
		if bad[algorithmAt] != byte(compression.None) {
			t.Fatalf("Unexpected config layout")
		}
		bad[algorithmAt] = byte(compression.Snappy)

		_, _, err = Decode(bad)
		archiveErr := requireArchiveError(t, err, ErrDecompressionFailure)
		if archiveErr.Block != 0 {
			t.Errorf("Block = %d, expected 0", archiveErr.Block)
		}
	})
}

func TestWriterErrors(t *testing.T) {
	t.Run("Incompatible schema", func(t *testing.T) {
		_, err := Encode(fixture.Schema(), peopleTable(t), DefaultConfig())
		if !errors.Is(err, schema.ErrIncompatibleSchema) {
			t.Fatalf("Expected an incompatible schema error, got %v", err)
		}
	})

	t.Run("Unknown override", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Overrides = map[string]Compression{"nope": {Algorithm: compression.None}}
		_, err := Encode(peopleSchema(), peopleTable(t), cfg)
		requireArchiveError(t, err, ErrSerializationFailure)
	})

	t.Run("Unknown algorithm", func(t *testing.T) {
		cfg := Config{Compression: Compression{Algorithm: 42}}
		_, err := Encode(peopleSchema(), peopleTable(t), cfg)
		requireArchiveError(t, err, ErrSerializationFailure)
		if !errors.Is(err, compression.ErrUnknownAlgorithm) {
			t.Errorf("Expected the codec error to be wrapped, got %v", err)
		}
	})

	t.Run("Invalid schema", func(t *testing.T) {
		_, err := NewWriter(io.Discard, schema.ArrayTable{Element: schema.Struct{}}, DefaultConfig())
		if !errors.Is(err, schema.ErrUnsupportedType) {
			t.Fatalf("Expected a schema error, got %v", err)
		}
	})

	t.Run("Write after close", func(t *testing.T) {
		writer, err := NewWriter(io.Discard, peopleSchema(), DefaultConfig())
		if err != nil {
			t.Fatalf("Failed to create writer: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("Failed to close writer: %v", err)
		}
		requireArchiveError(t, writer.Write(peopleTable(t)), ErrSerializationFailure)
	})
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	table := striped.ArrayTable{Column: striped.Int{Values: []int64{math.MinInt64, math.MaxInt64}}}
	data, err := Encode(striped.SchemaOf(table), table, DefaultConfig(), WithLogger(logger))
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if _, _, err := Decode(data, WithLogger(logger)); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	for _, message := range []string{"wrote chunk", "integer block fell back to raw 64 bit values", "closed archive", "read chunk"} {
		if logs.FilterMessage(message).Len() == 0 {
			t.Errorf("Missing %q log entry", message)
		}
	}
}

func FuzzDecode(f *testing.F) {
	valid, err := Encode(peopleSchema(), peopleTable(f), Config{Compression: Compression{Algorithm: compression.None}})
	if err != nil {
		f.Fatalf("Failed to encode: %v", err)
	}
	f.Add(valid)
	f.Add(Magic(FormatVersion))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, table, err := Decode(data)
		if err != nil {
			return
		}
		if err := striped.Validate(table); err != nil {
			t.Fatalf("Decode returned an invalid table: %v", err)
		}
	})
}

func BenchmarkCompression(b *testing.B) {
	table := fixtureTable(b, 42, 100000)
	s := striped.SchemaOf(table)

	rows, err := striped.ToLogical(table)
	if err != nil {
		b.Fatalf("Failed to rebuild rows: %v", err)
	}
	text, err := logical.ToText(rows)
	if err != nil {
		b.Fatalf("Failed to render rows: %v", err)
	}
	inputBytes := len(text)

	for _, algorithm := range algorithms {
		b.Run(algorithm.String(), func(b *testing.B) {
			cfg := DefaultConfig()
			cfg.Compression = Compression{Algorithm: algorithm}

			var totalOutputBytes uint64
			b.ResetTimer()
			for n := 0; n < b.N; n++ {
				data, err := Encode(s, table, cfg)
				if err != nil {
					b.Fatalf("Failed to encode: %v", err)
				}
				totalOutputBytes += uint64(len(data))
			}

			avgOutputBytes := float64(totalOutputBytes) / float64(b.N)
			if avgOutputBytes > 0 {
				b.ReportMetric(100.0*(1.0-(avgOutputBytes/float64(inputBytes))), "%_compression_ratio")
			}
		})
	}
}
