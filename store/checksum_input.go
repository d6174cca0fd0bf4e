package store

import (
	"fmt"

	"github.com/hupe1980/segcodec/codecerr"
	ihash "github.com/hupe1980/segcodec/internal/hash"
)

// ChecksumIndexInput accumulates a CRC32C over every byte read.
//
// It only seeks forward, by reading and discarding, so the checksum always
// covers a prefix of the file.
type ChecksumIndexInput struct {
	in  IndexInput
	crc uint32
}

// NewChecksumIndexInput wraps in. Reading starts at in's current position.
func NewChecksumIndexInput(in IndexInput) *ChecksumIndexInput {
	return &ChecksumIndexInput{in: in}
}

// OpenChecksumInput opens name and wraps it in a ChecksumIndexInput.
func OpenChecksumInput(dir Directory, name string, ctx IOContext) (*ChecksumIndexInput, error) {
	in, err := dir.OpenInput(name, ctx)
	if err != nil {
		return nil, err
	}
	return NewChecksumIndexInput(in), nil
}

func (c *ChecksumIndexInput) Name() string { return c.in.Name() }

func (c *ChecksumIndexInput) ReadByte() (byte, error) {
	b, err := c.in.ReadByte()
	if err != nil {
		return 0, err
	}
	c.crc = ihash.Extend(c.crc, []byte{b})
	return b, nil
}

func (c *ChecksumIndexInput) ReadBytes(p []byte) error {
	if err := c.in.ReadBytes(p); err != nil {
		return err
	}
	c.crc = ihash.Extend(c.crc, p)
	return nil
}

// Checksum returns the CRC32C of every byte read so far.
func (c *ChecksumIndexInput) Checksum() uint64 { return uint64(c.crc) }

func (c *ChecksumIndexInput) FilePointer() int64 { return c.in.FilePointer() }

func (c *ChecksumIndexInput) Length() int64 { return c.in.Length() }

// Seek skips forward to pos, hashing the skipped bytes.
func (c *ChecksumIndexInput) Seek(pos int64) error {
	cur := c.in.FilePointer()
	skip := pos - cur
	if skip < 0 {
		return fmt.Errorf("%w: ChecksumIndexInput cannot seek backwards (pos=%d, current=%d)", codecerr.ErrIllegalState, pos, cur)
	}
	if pos > c.in.Length() {
		return eofError(c.Name())
	}
	var buf [1024]byte
	for skip > 0 {
		n := min(skip, int64(len(buf)))
		if err := c.ReadBytes(buf[:n]); err != nil {
			return err
		}
		skip -= n
	}
	return nil
}

// Close closes the wrapped input.
func (c *ChecksumIndexInput) Close() error { return c.in.Close() }
