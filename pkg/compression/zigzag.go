package compression

// ZigZag maps signed integers to unsigned ones so that values of small
// magnitude get small codes: 0, -1, 1, -2, 2 become 0, 1, 2, 3, 4.
func ZigZag(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func UnZigZag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func ZigZagEncode(values []int64) []uint64 {
	out := make([]uint64, len(values))
	for i, v := range values {
		out[i] = ZigZag(v)
	}
	return out
}

func ZigZagDecode(values []uint64) []int64 {
	out := make([]int64, len(values))
	for i, u := range values {
		out[i] = UnZigZag(u)
	}
	return out
}
