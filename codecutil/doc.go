// Package codecutil frames every codec file with a header and a checksum footer.
//
// Layout:
//
//	header: magic:int32  codec:vInt-prefixed ASCII  version:int32
//	footer: ^magic:int32 algorithm:int32(0)          checksum:int64
//
// All integers are big-endian. The checksum is the CRC32C of every byte that
// precedes it, widened to 64 bits.
package codecutil
