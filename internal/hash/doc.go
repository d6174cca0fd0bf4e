// Package hash computes the CRC32-Castagnoli checksum stored in the footer
// of every codec file, widened to 64 bits. Outputs keep a running digest
// while writing; inputs recompute it when a file is checked.
package hash
