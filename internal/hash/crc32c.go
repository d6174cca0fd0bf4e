package hash

import (
	"hash"

	"github.com/klauspost/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// NewDigest returns a running CRC32C for outputs, which hash every byte
// they write.
func NewDigest() hash.Hash32 {
	return crc32.New(castagnoli)
}

// Extend continues crc over p. Extend(0, p) is the CRC32C of p.
func Extend(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, castagnoli, p)
}
