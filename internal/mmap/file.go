package mmap

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
)

// Hint tells the kernel how a file will be read.
type Hint uint8

const (
	HintNormal Hint = iota
	// HintSequential suits checksum verification and whole-file loads.
	HintSequential
	// HintRandom suits term lookups and block seeks.
	HintRandom
)

var (
	// ErrClosed is returned by a File after Close.
	ErrClosed = errors.New("mmap: file closed")
	// ErrNegativeOffset is returned by ReadAt for offsets below zero.
	ErrNegativeOffset = errors.New("mmap: negative offset")
)

// File is a read-only mapping of a whole file.
type File struct {
	path   string
	data   []byte
	closed atomic.Bool
}

// Open maps the file at path and applies hint. Empty files need no mapping.
func Open(path string, hint Hint) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size > math.MaxInt {
		return nil, fmt.Errorf("mmap %s: %d bytes exceed the address space", path, size)
	}

	m := &File{path: path}
	if size == 0 {
		return m, nil
	}
	if m.data, err = mapFile(f, int(size)); err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	if hint != HintNormal {
		if err := advise(m.data, hint); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("madvise %s: %w", path, err)
		}
	}
	return m, nil
}

// Path returns the path the file was opened with.
func (m *File) Path() string { return m.path }

// Bytes returns the mapped content, or nil once closed.
func (m *File) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Len returns the file length in bytes.
func (m *File) Len() int { return len(m.data) }

// ReadAt implements io.ReaderAt.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case m.closed.Load():
		return 0, ErrClosed
	case off < 0:
		return 0, ErrNegativeOffset
	case off >= int64(len(m.data)):
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the file. Closing twice is a no-op.
func (m *File) Close() error {
	if m.closed.Swap(true) || len(m.data) == 0 {
		return nil
	}
	return unmapFile(m.data)
}
