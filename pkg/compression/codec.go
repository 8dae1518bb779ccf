package compression

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies the general purpose compressor applied to a block
// after the integer stages. The numeric values are part of the file format.
type Algorithm uint8

const (
	None   Algorithm = 0
	Zstd   Algorithm = 1
	LZ4    Algorithm = 2
	Snappy Algorithm = 3
)

var ErrUnknownAlgorithm = errors.New("unknown compression algorithm")

// ErrSizeMismatch is returned when a block does not decompress to the size
// recorded next to it.
var ErrSizeMismatch = errors.New("decompressed size mismatch")

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	case Snappy:
		return "snappy"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "none":
		return None, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	case "snappy":
		return Snappy, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// Codec compresses whole blocks. Implementations are safe for concurrent use.
type Codec interface {
	Algorithm() Algorithm
	Compress(src []byte) ([]byte, error)
	// Decompress restores a block of exactly size bytes.
	Decompress(src []byte, size int) ([]byte, error)
}

// NewCodec returns the codec for an algorithm. Level 0 selects the default
// level of the algorithm; Snappy and None ignore it.
func NewCodec(algorithm Algorithm, level int) (Codec, error) {
	switch algorithm {
	case None:
		return noneCodec{}, nil
	case Zstd:
		enc, err := zstdEncoder(level)
		if err != nil {
			return nil, err
		}
		return zstdCodec{enc: enc}, nil
	case LZ4:
		lz4Level, err := mapLZ4Level(level)
		if err != nil {
			return nil, err
		}
		return lz4Codec{level: lz4Level}, nil
	case Snappy:
		return snappyCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, uint8(algorithm))
	}
}

// preallocSize caps the buffer reserved up front for a block, since the
// recorded size comes from the input and may be corrupted.
func preallocSize(size int) int {
	return min(max(size, 0), 16<<20)
}

type noneCodec struct{}

func (noneCodec) Algorithm() Algorithm { return None }

func (noneCodec) Compress(src []byte) ([]byte, error) {
	return bytes.Clone(src), nil
}

func (noneCodec) Decompress(src []byte, size int) ([]byte, error) {
	if len(src) != size {
		return nil, fmt.Errorf("%w: stored %d bytes, expected %d", ErrSizeMismatch, len(src), size)
	}
	return bytes.Clone(src), nil
}

// zstd encoders are reused per level and a single decoder serves every
// block; EncodeAll and DecodeAll may be called concurrently.
var (
	zstdEncoders sync.Map // zstd.EncoderLevel -> *zstd.Encoder
	zstdDecoder  = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
)

func zstdEncoder(level int) (*zstd.Encoder, error) {
	zl := zstd.SpeedDefault
	if level != 0 {
		zl = zstd.EncoderLevelFromZstd(level)
	}

	if enc, ok := zstdEncoders.Load(zl); ok {
		return enc.(*zstd.Encoder), nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zl), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	actual, _ := zstdEncoders.LoadOrStore(zl, enc)
	return actual.(*zstd.Encoder), nil
}

type zstdCodec struct {
	enc *zstd.Encoder
}

func (zstdCodec) Algorithm() Algorithm { return Zstd }

func (c zstdCodec) Compress(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, nil), nil
}

func (zstdCodec) Decompress(src []byte, size int) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, err
	}

	out, err := dec.DecodeAll(src, make([]byte, 0, preallocSize(size)))
	if err != nil {
		return nil, err
	}
	if len(out) != size {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrSizeMismatch, len(out), size)
	}
	return out, nil
}

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

func mapLZ4Level(level int) (lz4.CompressionLevel, error) {
	if level < 0 || level >= len(lz4Levels) {
		return lz4.Fast, fmt.Errorf("lz4 level %d out of range 0..%d", level, len(lz4Levels)-1)
	}
	return lz4Levels[level], nil
}

type lz4Codec struct {
	level lz4.CompressionLevel
}

func (lz4Codec) Algorithm() Algorithm { return LZ4 }

func (c lz4Codec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(c.level)); err != nil {
		return nil, err
	}

	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(src []byte, size int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))

	buf := bytes.NewBuffer(make([]byte, 0, preallocSize(size)))
	if _, err := r.WriteTo(buf); err != nil {
		return nil, err
	}
	if buf.Len() != size {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrSizeMismatch, buf.Len(), size)
	}
	return buf.Bytes(), nil
}

type snappyCodec struct{}

func (snappyCodec) Algorithm() Algorithm { return Snappy }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) Decompress(src []byte, size int) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, fmt.Errorf("%w: header says %d bytes, expected %d", ErrSizeMismatch, n, size)
	}
	return snappy.Decode(nil, src)
}
