package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOS(t *testing.T) {
	tmp := t.TempDir()
	lfs := OS{}

	dir := filepath.Join(tmp, "segments")
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "_0.tdt")
	f, err := CreateExclusive(lfs, path)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	require.NoError(t, f.Close())

	_, err = CreateExclusive(lfs, path)
	assert.ErrorIs(t, err, os.ErrExist)

	entries, err := lfs.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	f, staged, err := CreateTemp(lfs, filepath.Join(dir, "_0.si"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "_0.si"+TempSuffix), staged)
	require.NoError(t, f.Close())
	require.NoError(t, lfs.Rename(staged, filepath.Join(dir, "_0.si")))
	_, err = lfs.Stat(filepath.Join(dir, "_0.si"))
	require.NoError(t, err)

	require.NoError(t, lfs.Remove(path))
	_, err = lfs.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS_Budget(t *testing.T) {
	ffs := NewFaultyFS(OS{})
	ffs.SetBudget(5)

	f, err := ffs.OpenFile(filepath.Join(t.TempDir(), "_0.doc"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = f.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Zero(t, n)
	assert.Equal(t, int64(5), ffs.Written())
}

func TestFaultyFS_Inject(t *testing.T) {
	tmp := t.TempDir()
	full := errors.New("disk full")
	ffs := NewFaultyFS(nil)
	ffs.Inject("tdt", Fault{Budget: 2, Err: full})
	ffs.Inject(".dvd", SyncFault())
	ffs.Inject("fnm", CloseFault())
	ffs.Inject("si", RenameFault())

	create := func(name string) File {
		f, err := ffs.OpenFile(filepath.Join(tmp, name), os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		return f
	}

	f := create("_0_VInt_0.tdt")
	_, err := f.Write([]byte("abc"))
	assert.ErrorIs(t, err, full)
	require.NoError(t, f.Close())

	f = create("_0_Direct_0.dvd")
	assert.ErrorIs(t, f.Sync(), ErrInjected)
	require.NoError(t, f.Close())

	f = create("_0.fnm")
	assert.ErrorIs(t, f.Close(), ErrInjected)

	f, staged, err := CreateTemp(ffs, filepath.Join(tmp, "_0.si"))
	require.NoError(t, err)
	_, err = f.Write([]byte("staged writes are not faulted"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.ErrorIs(t, ffs.Rename(staged, filepath.Join(tmp, "_0.si")), ErrInjected)

	f = create("_0.doc")
	_, err = f.Write([]byte("fine"))
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	require.NoError(t, ffs.Rename(filepath.Join(tmp, "_0.doc"), filepath.Join(tmp, "_1.doc")))
}
