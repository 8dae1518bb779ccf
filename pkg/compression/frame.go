package compression

import "slices"

// Median returns the reference point used by frame-of-reference encoding.
// For an even number of values it is the midpoint of the two middle values,
// rounded towards negative infinity. An empty slice has median 0.
func Median(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}

	lo, hi := sorted[mid-1], sorted[mid]
	// hi >= lo, so the distance always fits in a uint64.
	return lo + int64((uint64(hi)-uint64(lo))/2)
}

// FrameOfReference subtracts the median from every value and returns the
// median together with the deltas. Subtraction wraps, so any int64 input is
// restored exactly by RestoreFrameOfReference.
func FrameOfReference(values []int64) (int64, []int64) {
	reference := Median(values)

	deltas := make([]int64, len(values))
	for i, v := range values {
		deltas[i] = v - reference
	}
	return reference, deltas
}

// RestoreFrameOfReference adds the reference back to every delta in place.
func RestoreFrameOfReference(reference int64, deltas []int64) []int64 {
	for i := range deltas {
		deltas[i] += reference
	}
	return deltas
}
