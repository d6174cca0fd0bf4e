package store

import (
	"bufio"
	"errors"
	"fmt"
	"hash"
	"io"

	ihash "github.com/hupe1980/segcodec/internal/hash"
)

// ErrOutputClosed is returned when writing to a closed output.
var ErrOutputClosed = errors.New("store: output closed")

// IndexOutput is a write-once, append-only file.
type IndexOutput interface {
	DataOutput
	// Name returns the file name the output was created with.
	Name() string
	// FilePointer returns the number of bytes written so far.
	FilePointer() int64
	// Checksum returns the CRC32C of every byte written so far.
	Checksum() uint64
	// Close flushes and releases the output. The file is durable once Close returns nil.
	Close() error
}

// streamOutput adapts any io.Writer into a checksumming IndexOutput.
type streamOutput struct {
	name   string
	w      *bufio.Writer
	sink   io.Writer
	crc    hash.Hash32
	fp     int64
	closed bool
	// onClose runs after the buffer is flushed, e.g. to sync and close a file.
	onClose func() error
}

const outputBufferSize = 8192

func newStreamOutput(name string, sink io.Writer, onClose func() error) *streamOutput {
	return &streamOutput{
		name:    name,
		w:       bufio.NewWriterSize(sink, outputBufferSize),
		sink:    sink,
		crc:     ihash.NewDigest(),
		onClose: onClose,
	}
}

func (o *streamOutput) Name() string { return o.name }

func (o *streamOutput) WriteByte(b byte) error {
	if o.closed {
		return ErrOutputClosed
	}
	if err := o.w.WriteByte(b); err != nil {
		return fmt.Errorf("write %s: %w", o.name, err)
	}
	var one [1]byte
	one[0] = b
	_, _ = o.crc.Write(one[:])
	o.fp++
	return nil
}

func (o *streamOutput) WriteBytes(p []byte) error {
	if o.closed {
		return ErrOutputClosed
	}
	if _, err := o.w.Write(p); err != nil {
		return fmt.Errorf("write %s: %w", o.name, err)
	}
	_, _ = o.crc.Write(p)
	o.fp += int64(len(p))
	return nil
}

func (o *streamOutput) FilePointer() int64 { return o.fp }

func (o *streamOutput) Checksum() uint64 { return uint64(o.crc.Sum32()) }

func (o *streamOutput) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	var firstErr error
	if err := o.w.Flush(); err != nil {
		firstErr = fmt.Errorf("flush %s: %w", o.name, err)
	}
	if o.onClose != nil {
		if err := o.onClose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
