package intblock

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/store"
)

var (
	// ErrClosed is returned when writing to a closed stream.
	ErrClosed = fmt.Errorf("%w: intblock: stream closed", codecerr.ErrIllegalState)

	// ErrNegativeValue is returned when writing a negative value.
	ErrNegativeValue = fmt.Errorf("%w: intblock: negative value", codecerr.ErrIllegalArgument)

	// ErrIndexMismatch is returned when an index is combined with an index or
	// reader of a different stream kind.
	ErrIndexMismatch = errors.New("intblock: index belongs to a different stream kind")
)

// Output writes an integer stream.
type Output interface {
	// Write appends v, which must be non-negative.
	Write(v int) error
	// Index returns a new cursor bound to this output.
	Index() OutputIndex
	// Close flushes buffered values, writes the footer and closes the file.
	Close() error
}

// OutputIndex captures write positions and serializes them.
type OutputIndex interface {
	// Mark records the position of the next value to be written.
	Mark()
	// CopyFrom takes other's marked position. With copyLast, other's position
	// also becomes the baseline for the next relative Write.
	CopyFrom(other OutputIndex, copyLast bool) error
	// Write serializes the marked position, as a delta against the previous
	// Write unless absolute.
	Write(out store.DataOutput, absolute bool) error
}

// Input opens readers over an integer stream file.
type Input interface {
	// Reader returns a reader with a private cursor and buffer.
	Reader() Reader
	// Index returns a new, zero cursor for this stream.
	Index() InputIndex
	// CheckIntegrity verifies the whole-file checksum.
	CheckIntegrity() error
	Close() error
}

// Reader returns stream values in order.
type Reader interface {
	Next() (int, error)
}

// InputIndex is the read-side mirror of OutputIndex.
type InputIndex interface {
	// Read decodes a position written by OutputIndex.Write.
	Read(in store.DataInput, absolute bool) error
	// Seek positions r so its next value is the one at this index.
	Seek(r Reader) error
	CopyFrom(other InputIndex) error
	Clone() InputIndex
}

// StreamFactory creates stream files.
type StreamFactory interface {
	CreateOutput(dir store.Directory, name string, ctx store.IOContext) (Output, error)
	OpenInput(dir store.Directory, name string, ctx store.IOContext) (Input, error)
}
