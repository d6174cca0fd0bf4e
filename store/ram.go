package store

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
)

// RAMDirectory keeps files in memory.
//
// Files become visible to OpenInput only after their output is closed.
type RAMDirectory struct {
	mu      sync.RWMutex
	files   map[string][]byte
	pending map[string]struct{}
	closed  bool
}

// NewRAMDirectory returns an empty RAMDirectory.
func NewRAMDirectory() *RAMDirectory {
	return &RAMDirectory{
		files:   make(map[string][]byte),
		pending: make(map[string]struct{}),
	}
}

// CreateOutput implements Directory.
func (d *RAMDirectory) CreateOutput(name string, ctx IOContext) (IndexOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDirectoryClosed
	}
	if _, ok := d.files[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, name)
	}
	if _, ok := d.pending[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, name)
	}
	d.pending[name] = struct{}{}

	buf := &bytes.Buffer{}
	out := newStreamOutput(name, buf, func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.pending, name)
		d.files[name] = buf.Bytes()
		return nil
	})
	return wrapOutput(out, ctx), nil
}

// OpenInput implements Directory.
func (d *RAMDirectory) OpenInput(name string, _ IOContext) (IndexInput, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrDirectoryClosed
	}
	data, ok := d.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return newBytesInput(fmt.Sprintf("RAMInput(name=%s)", name), data, nil), nil
}

// DeleteFile implements Directory.
func (d *RAMDirectory) DeleteFile(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	delete(d.files, name)
	return nil
}

// FileExists implements Directory.
func (d *RAMDirectory) FileExists(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.files[name]
	return ok
}

// FileLength implements Directory.
func (d *RAMDirectory) FileLength(name string) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.files[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return int64(len(data)), nil
}

// ListAll implements Directory.
func (d *RAMDirectory) ListAll() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.files))
	for name := range d.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Bytes returns a copy of a file's content. Tests use it to corrupt files.
func (d *RAMDirectory) Bytes(name string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.files[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(data), true
}

// Put stores data under name, replacing any existing file.
func (d *RAMDirectory) Put(name string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[name] = slices.Clone(data)
}

// Close implements Directory.
func (d *RAMDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
