package compression

import (
	"encoding/binary"
	"fmt"
)

// EncodeInts runs the integer stages (frame-of-reference around the median,
// zig-zag, BP64) and appends the result to dst:
//
//	uvarint count | varint reference | BP64 groups
//
// The general purpose compressor is applied by the caller to the whole block.
func EncodeInts(dst []byte, values []int64) ([]byte, PackStats) {
	reference, deltas := FrameOfReference(values)

	dst = binary.AppendUvarint(dst, uint64(len(values)))
	dst = binary.AppendVarint(dst, reference)
	return PackBP64(dst, ZigZagEncode(deltas))
}

// DecodeInts reverses EncodeInts. The input must hold exactly one stream.
func DecodeInts(src []byte) ([]int64, error) {
	count, n := binary.Uvarint(src)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad value count", ErrTruncated)
	}
	src = src[n:]

	// Every element needs at least one bit of payload or a shared width byte,
	// which bounds any believable count by the remaining input.
	if count > uint64(len(src))*ChunkLen {
		return nil, fmt.Errorf("%w: %d values cannot fit in %d bytes", ErrCorrupted, count, len(src))
	}

	reference, n := binary.Varint(src)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad reference value", ErrTruncated)
	}
	src = src[n:]

	packed, used, err := UnpackBP64(src, int(count))
	if err != nil {
		return nil, err
	}
	if used != len(src) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupted, len(src)-used)
	}

	return RestoreFrameOfReference(reference, ZigZagDecode(packed)), nil
}

// EncodeOffsets packs an offsets vector as lengths.
func EncodeOffsets(dst []byte, offsets []int64) ([]byte, PackStats) {
	return EncodeInts(dst, EncodeDelta(offsets))
}

func DecodeOffsets(src []byte) ([]int64, error) {
	lengths, err := DecodeInts(src)
	if err != nil {
		return nil, err
	}
	return DecodeDelta(lengths), nil
}
