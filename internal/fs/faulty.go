package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInjected is returned by injected faults that carry no error of their own.
var ErrInjected = errors.New("fs: injected fault")

// Unlimited disables a write budget.
const Unlimited = -1

// Fault describes how writes to one kind of segment file fail.
type Fault struct {
	// Budget is the number of bytes a file accepts before writes fail.
	Budget     int64
	FailSync   bool
	FailClose  bool
	FailRename bool
	Err        error
}

// WriteFault fails writes once a file received budget bytes.
func WriteFault(budget int64) Fault { return Fault{Budget: budget} }

// SyncFault fails Sync.
func SyncFault() Fault { return Fault{Budget: Unlimited, FailSync: true} }

// CloseFault fails Close after closing the underlying file.
func CloseFault() Fault { return Fault{Budget: Unlimited, FailClose: true} }

// RenameFault fails renames onto the file.
func RenameFault() Fault { return Fault{Budget: Unlimited, FailRename: true} }

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

var noFault = Fault{Budget: Unlimited}

// FaultyFS wraps a FileSystem and injects failures into the files of
// chosen extensions, plus an optional budget shared by all files.
type FaultyFS struct {
	FS FileSystem

	mu      sync.Mutex
	faults  map[string]Fault
	budget  int64
	written int64
}

// NewFaultyFS wraps fsys, or Default if nil.
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{FS: fsys, faults: make(map[string]Fault), budget: Unlimited}
}

// Inject applies fault to files with extension ext ("tdt", "dvd", ...),
// replacing any fault set before.
func (f *FaultyFS) Inject(ext string, fault Fault) {
	f.mu.Lock()
	f.faults[strings.TrimPrefix(ext, ".")] = fault
	f.mu.Unlock()
}

// SetBudget fails every write once n bytes were written across all files.
func (f *FaultyFS) SetBudget(n int64) {
	f.mu.Lock()
	f.budget = n
	f.mu.Unlock()
}

// Written is the number of bytes written through f.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

// faultOf finds the fault of name, looking through the staging suffix.
func (f *FaultyFS) faultOf(name string) Fault {
	ext := strings.TrimPrefix(filepath.Ext(strings.TrimSuffix(name, TempSuffix)), ".")
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault, ok := f.faults[ext]; ok {
		return fault
	}
	return noFault
}

// spend charges n bytes to the shared budget.
func (f *FaultyFS) spend(n int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.budget != Unlimited && f.written+n > f.budget {
		return false
	}
	f.written += n
	return true
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, owner: f, fault: f.faultOf(name)}, nil
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if fault := f.faultOf(newpath); fault.FailRename {
		return fault.err()
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) Remove(name string) error                     { return f.FS.Remove(name) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error)        { return f.FS.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error { return f.FS.MkdirAll(path, perm) }
func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error)   { return f.FS.ReadDir(name) }

type faultyFile struct {
	File
	owner   *FaultyFS
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	n := int64(len(p))
	if ff.fault.Budget != Unlimited && ff.written+n > ff.fault.Budget {
		return 0, ff.fault.err()
	}
	if !ff.owner.spend(n) {
		return 0, ff.fault.err()
	}
	written, err := ff.File.Write(p)
	ff.written += int64(written)
	return written, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	err := ff.File.Close()
	if ff.fault.FailClose {
		return ff.fault.err()
	}
	return err
}
