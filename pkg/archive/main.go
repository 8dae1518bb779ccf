// Package archive implements the zbra binary format: a striped table framed
// with its schema and compression settings, stored as independently
// compressed blocks.
//
// Layout:
//
//	magic "||_ZBRA||00001||" (16 bytes, the 5 digits are the format version)
//	schema JSON (uvarint length prefix)
//	config record:
//	  - default algorithm id (uint8) and level (varint)
//	  - rows per chunk (uvarint)
//	  - override count (uvarint), then for each override sorted by path:
//	    column path (string), algorithm id (uint8), level (varint)
//	chunks, each:
//	  - row count (uvarint, never 0)
//	  - block count (uvarint)
//	  - blocks, one per leaf vector in pre-order over the schema:
//	    kind (uint8), raw length (uvarint), stored length (uvarint),
//	    xxh3 of the stored bytes (uint64), stored bytes
//	end marker (uvarint 0)
//
// Integer vectors go through frame-of-reference, zig-zag and BP64 before
// the block compressor; offsets vectors are stored as lengths. Doubles are
// stored as raw IEEE 754 bits and byte vectors as is.
package archive

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/ZaninAndrea/zbra/pkg/compression"
)

const (
	FormatVersion uint32 = 1

	magicPrefix = "||_ZBRA||"
	magicSuffix = "||"
	magicLen    = 16

	// DefaultChunkRows bounds the rows held in memory per chunk.
	DefaultChunkRows = 65536

	// Blocks claiming more raw bytes than this are treated as corrupted.
	maxBlockSize = 1 << 32

	// Chunks and offsets beyond this many rows are treated as corrupted.
	maxRows = 1 << 40
)

// Magic returns the 16 byte header for a format version.
func Magic(version uint32) []byte {
	return fmt.Appendf(nil, "%s%05d%s", magicPrefix, version, magicSuffix)
}

// IsArchive reports whether data starts like an archive of any version.
func IsArchive(data []byte) bool {
	return len(data) >= magicLen && string(data[:len(magicPrefix)]) == magicPrefix
}

// parseMagic returns the version encoded in a header.
func parseMagic(header []byte) (uint32, error) {
	if len(header) != magicLen ||
		string(header[:len(magicPrefix)]) != magicPrefix ||
		string(header[magicLen-len(magicSuffix):]) != magicSuffix {
		return 0, headerError(fmt.Sprintf("bad magic %q", header), nil)
	}

	digits := header[len(magicPrefix) : magicLen-len(magicSuffix)]
	for _, d := range digits {
		if d < '0' || d > '9' {
			return 0, headerError(fmt.Sprintf("bad version digits %q", digits), nil)
		}
	}
	version, err := strconv.ParseUint(string(digits), 10, 32)
	if err != nil {
		return 0, headerError("bad version digits", err)
	}
	return uint32(version), nil
}

type blockKind uint8

const (
	blockInts    blockKind = 0
	blockBytes   blockKind = 1
	blockDoubles blockKind = 2
)

func (k blockKind) String() string {
	switch k {
	case blockInts:
		return "ints"
	case blockBytes:
		return "bytes"
	case blockDoubles:
		return "doubles"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Compression selects the block compressor and its level. Level 0 is the
// default level of the algorithm.
type Compression struct {
	Algorithm compression.Algorithm
	Level     int
}

type Config struct {
	// Compression applies to every block without an override.
	Compression
	// ChunkRows is the number of rows per chunk; 0 writes one chunk.
	ChunkRows int
	// Overrides maps column paths (see ColumnPaths) to their compression.
	Overrides map[string]Compression
}

func DefaultConfig() Config {
	return Config{
		Compression: Compression{Algorithm: compression.Zstd, Level: 3},
		ChunkRows:   DefaultChunkRows,
	}
}

func (c Config) compressionFor(path string) Compression {
	if o, ok := c.Overrides[path]; ok {
		return o
	}
	return c.Compression
}

func writeConfig(sw *StructuredWriter, c Config) error {
	sw.WriteUint8(uint8(c.Algorithm))
	sw.WriteVarint(int64(c.Level))
	sw.WriteUvarint(uint64(c.ChunkRows))
	sw.WriteUvarint(uint64(len(c.Overrides)))
	for _, path := range slices.Sorted(maps.Keys(c.Overrides)) {
		o := c.Overrides[path]
		sw.WriteString(path)
		sw.WriteUint8(uint8(o.Algorithm))
		sw.WriteVarint(int64(o.Level))
	}
	return sw.Err()
}

func readConfig(sr *StructuredReader) (Config, error) {
	var c Config

	algorithm, err := sr.ReadUint8()
	if err != nil {
		return c, headerError("read algorithm", err)
	}
	level, err := sr.ReadVarint()
	if err != nil {
		return c, headerError("read level", err)
	}
	chunkRows, err := sr.ReadUvarint()
	if err != nil {
		return c, headerError("read chunk rows", err)
	}
	c.Compression = Compression{Algorithm: compression.Algorithm(algorithm), Level: int(level)}
	c.ChunkRows = int(chunkRows)

	count, err := sr.ReadUvarint()
	if err != nil {
		return c, headerError("read override count", err)
	}
	for i := uint64(0); i < count; i++ {
		if c.Overrides == nil {
			c.Overrides = make(map[string]Compression)
		}
		path, err := sr.ReadString()
		if err != nil {
			return c, headerError("read override path", err)
		}
		algorithm, err := sr.ReadUint8()
		if err != nil {
			return c, headerError("read override algorithm", err)
		}
		level, err := sr.ReadVarint()
		if err != nil {
			return c, headerError("read override level", err)
		}
		c.Overrides[path] = Compression{Algorithm: compression.Algorithm(algorithm), Level: int(level)}
	}
	return c, nil
}

type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger logs chunk and block events at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
