// Package mmap maps segment files read-only into memory.
//
// FSDirectory and the local blob store open every input through a File, so
// clones of an input are new cursors over the same bytes and never touch the
// file descriptor again.
//
//	f, err := mmap.Open("_0_VInt_0.tdt", mmap.HintRandom)
//	if err != nil { ... }
//	defer f.Close()
//	data := f.Bytes()
//
// Hints are forwarded to madvise(2) on Unix and ignored elsewhere. Bytes must
// not be used after Close.
package mmap
