// Package fs is the set of file-system calls segment writers make, so tests
// can substitute a [FaultyFS] that fails writes, syncs, closes or renames of
// chosen segment file kinds.
//
// Reads bypass this package and map files through internal/mmap.
package fs
