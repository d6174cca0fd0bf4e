// Package intblock writes and reads streams of non-negative integers in
// blocks, with a seekable cursor type ([OutputIndex], [InputIndex]).
//
// Two stream shapes exist:
//
//   - fixed: every block holds exactly BlockSize values. The trailing block is
//     padded with undefined values; callers track the true length.
//   - variable: the encoder decides how many values each block holds and may
//     look ahead before flushing. Close pads with zeros until every real
//     value is flushed.
//
// A position is (fp, upto): the file offset of a block plus an offset inside
// it. Positions serialize absolutely or as a delta against the last position
// written through the same index:
//
//	absolute:              vInt(upto) vLong(fp)
//	relative, same block:  vInt(uptoDelta<<1 | 1)
//	relative, new block:   vInt(upto<<1) vLong(fp-lastFP)
//
// Every stream file carries a codecutil header and footer. Readers are not
// safe for concurrent use; call Input.Reader once per goroutine.
package intblock
