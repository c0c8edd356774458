// Package crc32c computes the Castagnoli CRC-32 checksum used by the block
// and checkpoint-record codecs. It wraps the standard library's table, using
// the hardware-accelerated table when the CPU supports it (SSE4.2/ARM64
// CRC instructions) and falling back to a software table otherwise.
package crc32c

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC-32C of b.
func Checksum(b []byte) uint32 {
	return crc32.Checksum(b, table)
}

// Verify reports whether sum is the CRC-32C of b.
func Verify(b []byte, sum uint32) bool {
	return Checksum(b) == sum
}
