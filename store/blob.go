package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/segcodec/blobstore"
)

// BlobDirectory exposes a blobstore.BlobStore as a Directory.
//
// Outputs stream into WritableBlobs and become visible when closed. Inputs
// read through blobstore.ReaderAt; memory-mapped blobs are read in place.
type BlobDirectory struct {
	ctx   context.Context
	store blobstore.BlobStore

	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool
}

// NewBlobDirectory binds store to ctx. ctx governs every remote call made by
// the directory and the handles it returns.
func NewBlobDirectory(ctx context.Context, store blobstore.BlobStore) *BlobDirectory {
	return &BlobDirectory{ctx: ctx, store: store, pending: make(map[string]struct{})}
}

// Store returns the underlying blob store.
func (d *BlobDirectory) Store() blobstore.BlobStore { return d.store }

// CreateOutput implements Directory.
func (d *BlobDirectory) CreateOutput(name string, ctx IOContext) (IndexOutput, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDirectoryClosed
	}
	if _, ok := d.pending[name]; ok {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrFileExists, name)
	}
	d.pending[name] = struct{}{}
	d.mu.Unlock()

	release := func() {
		d.mu.Lock()
		delete(d.pending, name)
		d.mu.Unlock()
	}

	if d.FileExists(name) {
		release()
		return nil, fmt.Errorf("%w: %s", ErrFileExists, name)
	}
	w, err := d.store.Create(d.ctx, name)
	if err != nil {
		release()
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	out := newStreamOutput(name, w, func() error {
		defer release()
		syncErr := w.Sync()
		closeErr := w.Close()
		if syncErr != nil {
			return fmt.Errorf("sync %s: %w", name, syncErr)
		}
		if closeErr != nil {
			return fmt.Errorf("close %s: %w", name, closeErr)
		}
		return nil
	})
	return wrapOutput(out, ctx), nil
}

// OpenInput implements Directory.
func (d *BlobDirectory) OpenInput(name string, _ IOContext) (IndexInput, error) {
	if d.isClosed() {
		return nil, ErrDirectoryClosed
	}
	blob, err := d.store.Open(d.ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	desc := fmt.Sprintf("BlobInput(name=%s)", name)
	if m, ok := blob.(blobstore.Mappable); ok {
		if data, err := m.Bytes(); err == nil {
			return newBytesInput(desc, data, blob), nil
		}
	}
	return newReaderAtInput(desc, blobstore.ReaderAt(d.ctx, blob), blob.Size(), blob), nil
}

// DeleteFile implements Directory.
func (d *BlobDirectory) DeleteFile(name string) error {
	if !d.FileExists(name) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return d.store.Delete(d.ctx, name)
}

// FileExists implements Directory.
func (d *BlobDirectory) FileExists(name string) bool {
	blob, err := d.store.Open(d.ctx, name)
	if err != nil {
		return false
	}
	_ = blob.Close()
	return true
}

// FileLength implements Directory.
func (d *BlobDirectory) FileLength(name string) (int64, error) {
	blob, err := d.store.Open(d.ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return 0, err
	}
	defer blob.Close()
	return blob.Size(), nil
}

// ListAll implements Directory.
func (d *BlobDirectory) ListAll() ([]string, error) {
	return d.store.List(d.ctx, "")
}

// Close implements Directory. It does not close the underlying store.
func (d *BlobDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *BlobDirectory) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
