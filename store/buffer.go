package store

import (
	"io"

	"github.com/hupe1980/segcodec/codecerr"
)

// Buffer is a growable in-memory DataOutput.
//
// Postings writers use it to stage per-term metadata before the term
// dictionary copies it into the real file.
type Buffer struct {
	buf []byte
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// WriteByte appends b.
func (b *Buffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// WriteBytes appends p.
func (b *Buffer) WriteBytes(p []byte) error {
	b.buf = append(b.buf, p...)
	return nil
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Bytes returns the buffered bytes. The slice aliases the buffer until the next write.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return len(b.buf) }

// Reset empties the buffer, keeping its capacity.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

// CopyTo copies the buffered bytes to out.
func (b *Buffer) CopyTo(out DataOutput) error {
	return out.WriteBytes(b.buf)
}

// ByteReader is a DataInput over a byte slice.
type ByteReader struct {
	name string
	data []byte
	pos  int
}

// NewByteReader returns a reader over data. name identifies the source in errors.
func NewByteReader(name string, data []byte) *ByteReader {
	return &ByteReader{name: name, data: data}
}

// Name returns the resource name.
func (r *ByteReader) Name() string { return r.name }

// ReadByte implements DataInput.
func (r *ByteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, eofError(r.name)
	}
	c := r.data[r.pos]
	r.pos++
	return c, nil
}

// ReadBytes implements DataInput.
func (r *ByteReader) ReadBytes(p []byte) error {
	if len(r.data)-r.pos < len(p) {
		return eofError(r.name)
	}
	copy(p, r.data[r.pos:])
	r.pos += len(p)
	return nil
}

// Reset points the reader at new data.
func (r *ByteReader) Reset(data []byte) {
	r.data = data
	r.pos = 0
}

// Pos returns the read position.
func (r *ByteReader) Pos() int { return r.pos }

// SetPos moves the read position.
func (r *ByteReader) SetPos(pos int) { r.pos = pos }

// EOF reports whether every byte was consumed.
func (r *ByteReader) EOF() bool { return r.pos >= len(r.data) }

func eofError(name string) error {
	return codecerr.NewCorrupt(name, "read past EOF", io.ErrUnexpectedEOF)
}
