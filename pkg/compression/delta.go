package compression

// EncodeDelta replaces a sequence with the differences between consecutive
// values, the first value being relative to zero. Offsets vectors become row
// lengths, which pack far better than the running totals.
func EncodeDelta(values []int64) []int64 {
	out := make([]int64, len(values))

	var previous int64
	for i, v := range values {
		out[i] = v - previous
		previous = v
	}
	return out
}

// DecodeDelta is the inverse of EncodeDelta and works in place.
func DecodeDelta(deltas []int64) []int64 {
	var previous int64
	for i := range deltas {
		deltas[i] += previous
		previous = deltas[i]
	}
	return deltas
}
