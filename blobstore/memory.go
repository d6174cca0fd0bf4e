package blobstore

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps segment files in memory. Stored content is never
// modified in place, so open blobs keep seeing the content they were opened
// with even if the name is overwritten or deleted.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.files[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return memoryBlob(data), nil
}

// Create buffers writes until Close publishes them under name.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &pendingBlob{publish: func(data []byte) { m.store(name, data) }}, nil
}

func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.store(name, slices.Clone(data))
	return nil
}

func (m *MemoryStore) store(name string, data []byte) {
	m.mu.Lock()
	m.files[name] = data
	m.mu.Unlock()
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.files, name)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.files))
	for name := range m.files {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// TotalBytes is the summed size of all stored files.
func (m *MemoryStore) TotalBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, data := range m.files {
		n += int64(len(data))
	}
	return n
}

type memoryBlob []byte

func (b memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b memoryBlob) Close() error           { return nil }
func (b memoryBlob) Size() int64            { return int64(len(b)) }
func (b memoryBlob) Bytes() ([]byte, error) { return b, nil }

type pendingBlob struct {
	buf     bytes.Buffer
	publish func([]byte)
	closed  bool
}

func (w *pendingBlob) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *pendingBlob) Sync() error { return nil }

func (w *pendingBlob) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.publish(bytes.Clone(w.buf.Bytes()))
	return nil
}
