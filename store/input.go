package store

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/segcodec/codecerr"
)

// ErrInputClosed is returned when reading from a closed input.
var ErrInputClosed = errors.New("store: input closed")

// IndexInput is a seekable, clonable read handle.
type IndexInput interface {
	DataInput
	// Name returns the resource description used in errors.
	Name() string
	// FilePointer returns the current read position.
	FilePointer() int64
	// Seek moves the read position. Seeking past Length fails.
	Seek(pos int64) error
	// Length returns the file length in bytes.
	Length() int64
	// Clone returns an independent handle positioned where this one is.
	// Clones share the underlying file; only the original must be closed.
	Clone() IndexInput
	// Close releases the handle. Closing a clone is a no-op.
	Close() error
}

// bytesInput reads from a byte slice that stays valid while the input is open:
// RAM files and memory-mapped files.
type bytesInput struct {
	name    string
	data    []byte
	pos     int64
	isClone bool
	closer  io.Closer
}

func newBytesInput(name string, data []byte, closer io.Closer) *bytesInput {
	return &bytesInput{name: name, data: data, closer: closer}
}

func (in *bytesInput) Name() string { return in.name }

func (in *bytesInput) ReadByte() (byte, error) {
	if in.pos >= int64(len(in.data)) {
		return 0, eofError(in.name)
	}
	b := in.data[in.pos]
	in.pos++
	return b, nil
}

func (in *bytesInput) ReadBytes(p []byte) error {
	if int64(len(in.data))-in.pos < int64(len(p)) {
		return eofError(in.name)
	}
	copy(p, in.data[in.pos:])
	in.pos += int64(len(p))
	return nil
}

func (in *bytesInput) FilePointer() int64 { return in.pos }

func (in *bytesInput) Seek(pos int64) error {
	if pos < 0 || pos > int64(len(in.data)) {
		return codecerr.NewCorrupt(in.name, fmt.Sprintf("seek to %d past EOF (length=%d)", pos, len(in.data)), io.ErrUnexpectedEOF)
	}
	in.pos = pos
	return nil
}

func (in *bytesInput) Length() int64 { return int64(len(in.data)) }

func (in *bytesInput) Clone() IndexInput {
	c := *in
	c.isClone = true
	c.closer = nil
	return &c
}

func (in *bytesInput) Close() error {
	if in.isClone || in.closer == nil {
		return nil
	}
	c := in.closer
	in.closer = nil
	return c.Close()
}

// readerAtInput reads through an io.ReaderAt with a private read-ahead buffer.
// Used for blob-backed files that cannot be mapped into memory.
type readerAtInput struct {
	name    string
	r       io.ReaderAt
	length  int64
	pos     int64
	buf     []byte
	bufPos  int64 // file offset of buf[0]
	isClone bool
	closer  io.Closer
}

const inputBufferSize = 4096

func newReaderAtInput(name string, r io.ReaderAt, length int64, closer io.Closer) *readerAtInput {
	return &readerAtInput{name: name, r: r, length: length, closer: closer}
}

func (in *readerAtInput) Name() string { return in.name }

func (in *readerAtInput) fill() error {
	if in.pos >= in.length {
		return eofError(in.name)
	}
	n := min(int64(inputBufferSize), in.length-in.pos)
	if cap(in.buf) < int(n) {
		in.buf = make([]byte, inputBufferSize)
	}
	in.buf = in.buf[:n]
	read, err := in.r.ReadAt(in.buf, in.pos)
	if int64(read) < n {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return codecerr.NewCorrupt(in.name, "short read", err)
	}
	in.bufPos = in.pos
	return nil
}

func (in *readerAtInput) buffered() bool {
	return in.pos >= in.bufPos && in.pos < in.bufPos+int64(len(in.buf))
}

func (in *readerAtInput) ReadByte() (byte, error) {
	if !in.buffered() {
		if err := in.fill(); err != nil {
			return 0, err
		}
	}
	b := in.buf[in.pos-in.bufPos]
	in.pos++
	return b, nil
}

func (in *readerAtInput) ReadBytes(p []byte) error {
	if in.length-in.pos < int64(len(p)) {
		return eofError(in.name)
	}
	for len(p) > 0 {
		if !in.buffered() {
			if len(p) >= inputBufferSize {
				n, err := in.r.ReadAt(p, in.pos)
				if n < len(p) {
					if err == nil || errors.Is(err, io.EOF) {
						err = io.ErrUnexpectedEOF
					}
					return codecerr.NewCorrupt(in.name, "short read", err)
				}
				in.pos += int64(n)
				return nil
			}
			if err := in.fill(); err != nil {
				return err
			}
		}
		n := copy(p, in.buf[in.pos-in.bufPos:])
		p = p[n:]
		in.pos += int64(n)
	}
	return nil
}

func (in *readerAtInput) FilePointer() int64 { return in.pos }

func (in *readerAtInput) Seek(pos int64) error {
	if pos < 0 || pos > in.length {
		return codecerr.NewCorrupt(in.name, fmt.Sprintf("seek to %d past EOF (length=%d)", pos, in.length), io.ErrUnexpectedEOF)
	}
	in.pos = pos
	return nil
}

func (in *readerAtInput) Length() int64 { return in.length }

func (in *readerAtInput) Clone() IndexInput {
	return &readerAtInput{
		name:    in.name,
		r:       in.r,
		length:  in.length,
		pos:     in.pos,
		isClone: true,
	}
}

func (in *readerAtInput) Close() error {
	if in.isClone || in.closer == nil {
		return nil
	}
	c := in.closer
	in.closer = nil
	return c.Close()
}
