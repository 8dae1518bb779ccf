package compression_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"testing"
	"testing/quick"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ZaninAndrea/zbra/pkg/compression"
)

func TestZigZag(t *testing.T) {
	t.Run("Known values", func(t *testing.T) {
		encoded := compression.ZigZagEncode([]int64{-3600000, 0, 3200000})
		if !slices.Equal(encoded, []uint64{7199999, 0, 6400000}) {
			t.Fatalf("unexpected encoding %v", encoded)
		}

		decoded := compression.ZigZagDecode(encoded)
		if !slices.Equal(decoded, []int64{-3600000, 0, 3200000}) {
			t.Fatalf("unexpected decoding %v", decoded)
		}
	})

	t.Run("Extremes", func(t *testing.T) {
		for _, v := range []int64{math.MinInt64, math.MaxInt64, -1, 1} {
			if got := compression.UnZigZag(compression.ZigZag(v)); got != v {
				t.Errorf("%d decoded as %d", v, got)
			}
		}
		if compression.ZigZag(math.MinInt64) != math.MaxUint64 {
			t.Errorf("min int64 should map to max uint64")
		}
	})

	t.Run("Identity", func(t *testing.T) {
		f := func(v int64) bool {
			return compression.UnZigZag(compression.ZigZag(v)) == v
		}
		if err := quick.Check(f, nil); err != nil {
			t.Error(err)
		}
	})
}

func TestMedian(t *testing.T) {
	tests := []struct {
		values []int64
		want   int64
	}{
		{nil, 0},
		{[]int64{5}, 5},
		{[]int64{9, 1, 5}, 5},
		{[]int64{1, 2}, 1},
		{[]int64{-3, 0}, -2},
		{[]int64{4, 10, 2, 8}, 6},
		{[]int64{math.MinInt64, math.MaxInt64}, -1},
	}

	for _, tc := range tests {
		if got := compression.Median(tc.values); got != tc.want {
			t.Errorf("Median(%v) = %d, want %d", tc.values, got, tc.want)
		}
	}
}

func TestFrameOfReference(t *testing.T) {
	values := []int64{1_700_000_000_000, 1_700_000_000_500, 1_699_999_999_000}
	reference, deltas := compression.FrameOfReference(values)
	if reference != 1_700_000_000_000 {
		t.Fatalf("unexpected reference %d", reference)
	}
	if !slices.Equal(deltas, []int64{0, 500, -1000}) {
		t.Fatalf("unexpected deltas %v", deltas)
	}

	if restored := compression.RestoreFrameOfReference(reference, deltas); !slices.Equal(restored, values) {
		t.Fatalf("unexpected restore %v", restored)
	}
}

func TestBP64(t *testing.T) {
	t.Run("Identity", func(t *testing.T) {
		f := func(raw []uint64, shift uint8) bool {
			// Shift the values right to exercise every width, not just raw chunks.
			values := make([]uint64, len(raw))
			for i, v := range raw {
				values[i] = v >> (shift % 65)
			}

			packed, _ := compression.PackBP64(nil, values)
			unpacked, used, err := compression.UnpackBP64(packed, len(values))
			if err != nil {
				t.Logf("Unpack failed: %v", err)
				return false
			}
			return used == len(packed) && slices.Equal(values, unpacked)
		}

		if err := quick.Check(f, nil); err != nil {
			t.Error(err)
		}
	})

	t.Run("All zero chunk has no payload", func(t *testing.T) {
		packed, stats := compression.PackBP64(nil, make([]uint64, 130))
		if !slices.Equal(packed, []byte{0, 0, 0}) {
			t.Fatalf("unexpected packing %v", packed)
		}
		if stats.Chunks != 3 || stats.RawChunks != 0 {
			t.Fatalf("unexpected stats %+v", stats)
		}
	})

	t.Run("Packed width", func(t *testing.T) {
		values := make([]uint64, 64)
		for i := range values {
			values[i] = uint64(i % 8)
		}

		packed, stats := compression.PackBP64(nil, values)
		if packed[0] != 3 {
			t.Fatalf("expected width 3, got %d", packed[0])
		}
		if len(packed) != 1+64*3/8 {
			t.Fatalf("unexpected packed size %d", len(packed))
		}
		if stats.RawChunks != 0 {
			t.Fatalf("unexpected raw chunks")
		}
	})

	t.Run("Raw fallback is lossless", func(t *testing.T) {
		values := []uint64{1 << 31, 0, math.MaxUint64, 12345, 1<<40 + 7}
		packed, stats := compression.PackBP64(nil, values)
		if stats.RawChunks != 1 {
			t.Fatalf("expected a raw chunk, got %+v", stats)
		}
		if packed[0] != 64 || len(packed) != 1+8*len(values) {
			t.Fatalf("unexpected raw layout: width %d, size %d", packed[0], len(packed))
		}
		if binary.LittleEndian.Uint64(packed[1:]) != 1<<31 {
			t.Fatalf("raw values must be little endian")
		}

		unpacked, _, err := compression.UnpackBP64(packed, len(values))
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(values, unpacked) {
			t.Fatalf("raw fallback lost data: %v", unpacked)
		}
	})

	t.Run("Width 32 is stored raw", func(t *testing.T) {
		packed, stats := compression.PackBP64(nil, []uint64{1 << 31})
		if packed[0] != compression.RawWidth || stats.RawChunks != 1 {
			t.Fatalf("expected raw storage at width 32, got width %d", packed[0])
		}
		packed, stats = compression.PackBP64(nil, []uint64{1<<31 - 1})
		if packed[0] != 31 || stats.RawChunks != 0 {
			t.Fatalf("expected packing at width 31, got width %d", packed[0])
		}
	})
}

func TestUnpackBP64_Errors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		count int
	}{
		{"MissingWidth", []byte{}, 1},
		{"MissingSecondWidth", []byte{0}, 65},
		{"TruncatedPacked", []byte{5, 0xff}, 64},
		{"TruncatedRaw", []byte{40, 1, 2, 3}, 1},
		{"BadWidth", []byte{65, 0, 0, 0, 0, 0, 0, 0, 0}, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := compression.UnpackBP64(tc.data, tc.count); err == nil {
				t.Errorf("Expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestInts(t *testing.T) {
	t.Run("Identity", func(t *testing.T) {
		f := func(raw []int64) bool {
			encoded, _ := compression.EncodeInts(nil, raw)
			decoded, err := compression.DecodeInts(encoded)
			if err != nil {
				t.Logf("Decode failed: %v", err)
				return false
			}
			return len(decoded) == len(raw) && (len(raw) == 0 || slices.Equal(raw, decoded))
		}

		if err := quick.Check(f, nil); err != nil {
			t.Error(err)
		}
	})

	t.Run("Clustered timestamps pack below raw width", func(t *testing.T) {
		values := make([]int64, 1000)
		for i := range values {
			values[i] = 4_000_000_000_000 + int64(i)*1000
		}

		encoded, stats := compression.EncodeInts(nil, values)
		if stats.RawChunks != 0 {
			t.Fatalf("expected no raw chunks, got %+v", stats)
		}
		if len(encoded) >= 8*len(values)/2 {
			t.Fatalf("expected at least 2x compression, got %d bytes", len(encoded))
		}
	})

	t.Run("Trailing bytes", func(t *testing.T) {
		encoded, _ := compression.EncodeInts(nil, []int64{1, 2, 3})
		if _, err := compression.DecodeInts(append(encoded, 0)); err == nil {
			t.Fatal("expected an error for trailing bytes")
		}
	})

	t.Run("Absurd count", func(t *testing.T) {
		data := binary.AppendUvarint(nil, 1<<40)
		data = append(data, 0, 0)
		if _, err := compression.DecodeInts(data); err == nil {
			t.Fatal("expected an error for an impossible count")
		}
	})
}

func TestOffsets(t *testing.T) {
	offsets := []int64{0, 5, 8, 8, 20}
	encoded, _ := compression.EncodeOffsets(nil, offsets)
	decoded, err := compression.DecodeOffsets(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(offsets, decoded) {
		t.Fatalf("unexpected offsets %v", decoded)
	}
}

func TestProperty_IntPipeline(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("dates within the accepted range never need raw chunks when clustered", prop.ForAll(
		func(base int64, spread int64, n int) bool {
			rng := rand.New(rand.NewSource(base))
			values := make([]int64, n)
			for i := range values {
				values[i] = base + rng.Int63n(spread+1)
			}

			_, stats := compression.EncodeInts(nil, values)
			return stats.RawChunks == 0
		},
		gen.Int64Range(0, 4_102_444_800_000),
		gen.Int64Range(0, 1<<29),
		gen.IntRange(1, 500),
	))

	properties.Property("any values survive the pipeline", prop.ForAll(
		func(values []int64) bool {
			encoded, _ := compression.EncodeInts(nil, values)
			decoded, err := compression.DecodeInts(encoded)
			return err == nil && len(decoded) == len(values) && (len(values) == 0 || slices.Equal(values, decoded))
		},
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t)
}

func FuzzDecodeInts(f *testing.F) {
	seed := func(values []int64) []byte {
		encoded, _ := compression.EncodeInts(nil, values)
		return encoded
	}
	f.Add([]byte{})
	f.Add(seed([]int64{0}))
	f.Add(seed([]int64{100, 200, 300}))
	f.Add(seed([]int64{math.MinInt64, math.MaxInt64, -5}))

	f.Fuzz(func(t *testing.T, data []byte) {
		decoded, err := compression.DecodeInts(data)
		if err != nil {
			return // Invalid input is fine
		}

		// Re-encode and check if it decodes to the same thing
		decoded2, err := compression.DecodeInts(seed(decoded))
		if err != nil {
			t.Fatalf("Failed to decode re-encoded data: %v", err)
		}
		if len(decoded) == 0 && len(decoded2) == 0 {
			return
		}
		if !slices.Equal(decoded, decoded2) {
			t.Fatalf("Mismatch after re-encoding: %v vs %v", decoded, decoded2)
		}
	})
}

func BenchmarkInts(b *testing.B) {
	sizes := []int{100, 1000, 10000, 100000}
	for _, n := range sizes {
		rng := rand.New(rand.NewSource(12345))
		data := make([]int64, n)
		for i := range data {
			data[i] = 1_700_000_000_000 + int64(i)*1000 + rng.Int63n(100)
		}

		encoded, _ := compression.EncodeInts(nil, data)

		b.Run(fmt.Sprintf("Encode_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = compression.EncodeInts(nil, data)
			}
			b.ReportMetric(float64(len(encoded))/float64(n), "bytes/value")
		})

		b.Run(fmt.Sprintf("Decode_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = compression.DecodeInts(encoded)
			}
		})
	}
}
