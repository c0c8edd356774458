// Package util holds small numeric helpers shared across the redo log
// packages: alignment arithmetic and overflow-checked addition.
package util

// RoundUp returns ceil(n/sz): the number of sz-sized units needed to hold n.
func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}

// AlignUp rounds the byte offset n up to the next multiple of sz.
func AlignUp(n uint64, sz uint64) uint64 {
	return RoundUp(n, sz) * sz
}

// AlignDown rounds the byte offset n down to the previous multiple of sz.
func AlignDown(n uint64, sz uint64) uint64 {
	return n / sz * sz
}

// Min returns the smaller of n and m.
func Min(n uint64, m uint64) uint64 {
	if n < m {
		return n
	}
	return m
}

// Max returns the larger of n and m.
func Max(n uint64, m uint64) uint64 {
	if n > m {
		return n
	}
	return m
}

// SumOverflows reports whether n+m overflows a uint64.
func SumOverflows(n uint64, m uint64) bool {
	return n+m < n
}

// CloneByteSlice returns a fresh copy of b, so callers can hand out data
// without aliasing internal buffers.
func CloneByteSlice(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
