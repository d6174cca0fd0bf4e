package fs

import (
	"io"
	"os"
)

// File is a file opened for writing.
type File interface {
	io.WriteCloser
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem is the set of os calls segment writers make.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// OS is the FileSystem of the host.
type OS struct{}

func (OS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}

func (OS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (OS) Remove(name string) error                     { return os.Remove(name) }
func (OS) Stat(name string) (os.FileInfo, error)        { return os.Stat(name) }
func (OS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OS) ReadDir(name string) ([]os.DirEntry, error)   { return os.ReadDir(name) }

// Default is used unless a directory is given another FileSystem.
var Default FileSystem = OS{}

// CreateExclusive creates name for writing and fails if it already exists.
// Segment files are write-once.
func CreateExclusive(fsys FileSystem, name string) (File, error) {
	return fsys.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

// CreateTemp truncates or creates the staging file of final. The caller
// publishes it with Rename once it is complete.
func CreateTemp(fsys FileSystem, final string) (File, string, error) {
	tmp := final + TempSuffix
	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	return f, tmp, err
}

// TempSuffix marks files that are still being written.
const TempSuffix = ".tmp"
