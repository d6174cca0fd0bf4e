package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"

	ifs "github.com/hupe1980/segcodec/internal/fs"
	"github.com/hupe1980/segcodec/internal/mmap"
)

// FSDirectory stores files in a local directory.
//
// Outputs write through an internal/fs.FileSystem and are fsynced on close.
// Inputs are memory-mapped, so clones are free.
type FSDirectory struct {
	root string
	fsys ifs.FileSystem
}

// FSOption configures an FSDirectory.
type FSOption func(*FSDirectory)

// WithFileSystem replaces the file system used for writes. Tests inject
// internal/fs.FaultyFS through it.
func WithFileSystem(fsys ifs.FileSystem) FSOption {
	return func(d *FSDirectory) {
		if fsys != nil {
			d.fsys = fsys
		}
	}
}

// OpenFSDirectory returns a directory rooted at root, creating it if needed.
func OpenFSDirectory(root string, opts ...FSOption) (*FSDirectory, error) {
	d := &FSDirectory{root: root, fsys: ifs.Default}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", root, err)
	}
	return d, nil
}

// Root returns the directory path.
func (d *FSDirectory) Root() string { return d.root }

func (d *FSDirectory) path(name string) string { return filepath.Join(d.root, name) }

// CreateOutput implements Directory.
func (d *FSDirectory) CreateOutput(name string, ctx IOContext) (IndexOutput, error) {
	f, err := ifs.CreateExclusive(d.fsys, d.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileExists, name)
		}
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	out := newStreamOutput(name, f, func() error {
		syncErr := f.Sync()
		closeErr := f.Close()
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
func (d *FSDirectory) OpenInput(name string, ctx IOContext) (IndexInput, error) {
	hint := mmap.HintRandom
	if ctx.Kind == ContextReadOnce || ctx.Kind == ContextMerge {
		hint = mmap.HintSequential
	}
	m, err := mmap.Open(d.path(name), hint)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return newBytesInput(fmt.Sprintf("MMapInput(path=%q)", d.path(name)), m.Bytes(), m), nil
}

// DeleteFile implements Directory.
func (d *FSDirectory) DeleteFile(name string) error {
	if err := d.fsys.Remove(d.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return err
	}
	return nil
}

// FileExists implements Directory.
func (d *FSDirectory) FileExists(name string) bool {
	_, err := d.fsys.Stat(d.path(name))
	return err == nil
}

// FileLength implements Directory.
func (d *FSDirectory) FileLength(name string) (int64, error) {
	info, err := d.fsys.Stat(d.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return 0, err
	}
	return info.Size(), nil
}

// ListAll implements Directory.
func (d *FSDirectory) ListAll() ([]string, error) {
	entries, err := d.fsys.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Close implements Directory. Open inputs stay valid until they are closed.
func (d *FSDirectory) Close() error { return nil }

