package compression

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// BP64 packs unsigned integers in groups of ChunkLen. Every group starts with
// a width byte:
//   - 0: every element is zero and no payload follows
//   - 1..31: the elements are packed little endian, width bits each
//   - 32..64: packing is not worth it and every element is stored as a raw
//     8 byte little endian value
//
// The last group may be shorter than ChunkLen; the element count is not
// stored here and must be known by the caller.
const (
	ChunkLen = 64
	// RawWidth is the smallest width stored unpacked.
	RawWidth = 32
)

var (
	ErrTruncated = errors.New("truncated stream")
	ErrCorrupted = errors.New("corrupted stream")
)

// PackStats describes how a stream was packed.
type PackStats struct {
	Chunks    int
	RawChunks int
}

// Width returns the number of bits needed to represent the largest value.
func Width(values []uint64) uint8 {
	var all uint64
	for _, v := range values {
		all |= v
	}
	return uint8(64 - bits.LeadingZeros64(all))
}

// PackBP64 appends the packed form of values to dst.
func PackBP64(dst []byte, values []uint64) ([]byte, PackStats) {
	var stats PackStats
	for start := 0; start < len(values); start += ChunkLen {
		chunk := values[start:min(start+ChunkLen, len(values))]
		width := Width(chunk)

		stats.Chunks++
		dst = append(dst, width)
		switch {
		case width == 0:
		case width >= RawWidth:
			stats.RawChunks++
			for _, v := range chunk {
				dst = binary.LittleEndian.AppendUint64(dst, v)
			}
		default:
			dst = packChunk(dst, chunk, uint(width))
		}
	}
	return dst, stats
}

func packChunk(dst []byte, chunk []uint64, width uint) []byte {
	// width < 32 and at most 7 bits are pending, so acc never overflows.
	var acc uint64
	var pending uint
	for _, v := range chunk {
		acc |= v << pending
		pending += width
		for pending >= 8 {
			dst = append(dst, byte(acc))
			acc >>= 8
			pending -= 8
		}
	}
	if pending > 0 {
		dst = append(dst, byte(acc))
	}
	return dst
}

// UnpackBP64 reads count values from src and returns them with the number of
// bytes consumed. A stream that ends early is an error, never zero filled.
func UnpackBP64(src []byte, count int) ([]uint64, int, error) {
	out := make([]uint64, count)
	pos := 0
	for start := 0; start < count; start += ChunkLen {
		chunk := out[start:min(start+ChunkLen, count)]

		if pos >= len(src) {
			return nil, pos, fmt.Errorf("%w: missing width of chunk %d", ErrTruncated, start/ChunkLen)
		}
		width := src[pos]
		pos++

		switch {
		case width == 0:
		case width > 64:
			return nil, pos, fmt.Errorf("%w: chunk %d has width %d", ErrCorrupted, start/ChunkLen, width)
		case width >= RawWidth:
			need := 8 * len(chunk)
			if len(src)-pos < need {
				return nil, pos, fmt.Errorf("%w: raw chunk %d needs %d bytes, %d left", ErrTruncated, start/ChunkLen, need, len(src)-pos)
			}
			for i := range chunk {
				chunk[i] = binary.LittleEndian.Uint64(src[pos:])
				pos += 8
			}
		default:
			need := (len(chunk)*int(width) + 7) / 8
			if len(src)-pos < need {
				return nil, pos, fmt.Errorf("%w: packed chunk %d needs %d bytes, %d left", ErrTruncated, start/ChunkLen, need, len(src)-pos)
			}
			unpackChunk(chunk, src[pos:pos+need], uint(width))
			pos += need
		}
	}
	return out, pos, nil
}

func unpackChunk(chunk []uint64, src []byte, width uint) {
	mask := uint64(1)<<width - 1

	var acc uint64
	var pending uint
	next := 0
	for i := range chunk {
		for pending < width {
			acc |= uint64(src[next]) << pending
			next++
			pending += 8
		}
		chunk[i] = acc & mask
		acc >>= width
		pending -= width
	}
}
