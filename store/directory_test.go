package store

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/segcodec/blobstore"
	"github.com/hupe1980/segcodec/codecerr"
	ifs "github.com/hupe1980/segcodec/internal/fs"
	ihash "github.com/hupe1980/segcodec/internal/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directories(t *testing.T) map[string]Directory {
	t.Helper()
	fsDir, err := OpenFSDirectory(t.TempDir())
	require.NoError(t, err)
	return map[string]Directory{
		"ram":  NewRAMDirectory(),
		"fs":   fsDir,
		"blob": NewBlobDirectory(context.Background(), blobstore.NewMemoryStore()),
		"local": NewBlobDirectory(context.Background(),
			blobstore.NewLocalStore(t.TempDir())),
	}
}

func writeFile(t *testing.T, dir Directory, name string, data []byte) uint64 {
	t.Helper()
	out, err := dir.CreateOutput(name, DefaultIOContext)
	require.NoError(t, err)
	require.NoError(t, out.WriteBytes(data))
	assert.Equal(t, int64(len(data)), out.FilePointer())
	sum := out.Checksum()
	require.NoError(t, out.Close())
	return sum
}

func TestDirectory_WriteOnceReadBack(t *testing.T) {
	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	for name, dir := range directories(t) {
		t.Run(name, func(t *testing.T) {
			defer dir.Close()

			sum := writeFile(t, dir, "_0.tdt", payload)
			assert.Equal(t, uint64(ihash.Extend(0, payload)), sum)

			_, err := dir.CreateOutput("_0.tdt", DefaultIOContext)
			assert.ErrorIs(t, err, ErrFileExists)

			assert.True(t, dir.FileExists("_0.tdt"))
			n, err := dir.FileLength("_0.tdt")
			require.NoError(t, err)
			assert.Equal(t, int64(len(payload)), n)

			in, err := dir.OpenInput("_0.tdt", DefaultIOContext)
			require.NoError(t, err)
			defer in.Close()

			got := make([]byte, len(payload))
			require.NoError(t, in.ReadBytes(got))
			assert.Equal(t, payload, got)

			_, err = in.ReadByte()
			assert.True(t, codecerr.IsCorrupt(err))

			names, err := dir.ListAll()
			require.NoError(t, err)
			assert.Equal(t, []string{"_0.tdt"}, names)

			require.NoError(t, dir.DeleteFile("_0.tdt"))
			assert.False(t, dir.FileExists("_0.tdt"))
			_, err = dir.OpenInput("_0.tdt", DefaultIOContext)
			assert.ErrorIs(t, err, ErrFileNotFound)
		})
	}
}

func TestInput_CloneIsIndependent(t *testing.T) {
	for name, dir := range directories(t) {
		t.Run(name, func(t *testing.T) {
			defer dir.Close()
			writeFile(t, dir, "f.bin", []byte{1, 2, 3, 4, 5, 6, 7, 8})

			in, err := dir.OpenInput("f.bin", DefaultIOContext)
			require.NoError(t, err)
			defer in.Close()

			require.NoError(t, in.Seek(2))
			c := in.Clone()
			assert.Equal(t, int64(2), c.FilePointer())

			b, err := c.ReadByte()
			require.NoError(t, err)
			assert.Equal(t, byte(3), b)
			require.NoError(t, c.Seek(7))

			b, err = in.ReadByte()
			require.NoError(t, err)
			assert.Equal(t, byte(3), b)

			require.NoError(t, c.Close())
			b, err = in.ReadByte()
			require.NoError(t, err)
			assert.Equal(t, byte(4), b)

			assert.True(t, codecerr.IsCorrupt(in.Seek(9)))
		})
	}
}

func TestRAMDirectory_VisibleAfterClose(t *testing.T) {
	dir := NewRAMDirectory()
	out, err := dir.CreateOutput("x", DefaultIOContext)
	require.NoError(t, err)
	require.NoError(t, out.WriteByte(1))

	assert.False(t, dir.FileExists("x"))
	_, err = dir.CreateOutput("x", DefaultIOContext)
	assert.ErrorIs(t, err, ErrFileExists)

	require.NoError(t, out.Close())
	assert.True(t, dir.FileExists("x"))
	assert.ErrorIs(t, out.WriteByte(2), ErrOutputClosed)

	require.NoError(t, dir.Close())
	_, err = dir.OpenInput("x", DefaultIOContext)
	assert.ErrorIs(t, err, ErrDirectoryClosed)
}

func TestFSDirectory_InjectedWriteFailure(t *testing.T) {
	faulty := ifs.NewFaultyFS(nil)
	faulty.Inject("doc", ifs.WriteFault(100))
	dir, err := OpenFSDirectory(t.TempDir(), WithFileSystem(faulty))
	require.NoError(t, err)

	out, err := dir.CreateOutput("_0.doc", DefaultIOContext)
	require.NoError(t, err)
	writeErr := out.WriteBytes(make([]byte, 50000))
	closeErr := out.Close()
	assert.ErrorIs(t, errors.Join(writeErr, closeErr), ifs.ErrInjected)

	faulty.Inject("pos", ifs.SyncFault())
	out, err = dir.CreateOutput("_0.pos", DefaultIOContext)
	require.NoError(t, err)
	require.NoError(t, out.WriteByte(1))
	assert.ErrorIs(t, out.Close(), ifs.ErrInjected)
}

func TestChecksumIndexInput(t *testing.T) {
	dir := NewRAMDirectory()
	data := []byte("the quick brown fox jumps over the lazy dog")
	sum := writeFile(t, dir, "c", data)

	in, err := OpenChecksumInput(dir, "c", DefaultIOContext)
	require.NoError(t, err)
	defer in.Close()

	assert.Zero(t, in.Checksum())
	b, err := in.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, data[0], b)
	assert.Equal(t, uint64(ihash.Extend(0, data[:1])), in.Checksum())

	head := make([]byte, 4)
	require.NoError(t, in.ReadBytes(head))
	assert.Equal(t, uint64(ihash.Extend(0, data[:5])), in.Checksum())
	require.NoError(t, in.Seek(int64(len(data))))
	assert.Equal(t, sum, in.Checksum())

	assert.ErrorIs(t, in.Seek(0), codecerr.ErrIllegalState)
}

func TestRateLimitedOutput_SameBytes(t *testing.T) {
	plain, limited := NewRAMDirectory(), NewRAMDirectory()
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	writeFile(t, plain, "a", data)

	out, err := limited.CreateOutput("a", IOContext{Kind: ContextMerge, MaxWriteBytesPerSec: 1 << 20})
	require.NoError(t, err)
	_, ok := out.(*RateLimitedOutput)
	assert.True(t, ok)
	require.NoError(t, out.WriteBytes(data))
	require.NoError(t, out.Close())

	a, _ := plain.Bytes("a")
	b, _ := limited.Bytes("a")
	assert.Equal(t, a, b)
}

func TestSegmentFileName(t *testing.T) {
	assert.Equal(t, "_0_Memory_0.mem", SegmentFileName("_0", "Memory_0", "mem"))
	assert.Equal(t, "_1.fnm", SegmentFileName("_1", "", "fnm"))
	assert.Equal(t, "_1", SegmentFileName("_1", "", ""))
	assert.Equal(t, "mem", FileExtension("_0_Memory_0.mem"))
	assert.Equal(t, "", FileExtension("_0"))

	dir := NewRAMDirectory()
	dir.Put("_0.fnm", nil)
	dir.Put("_0_VInt_0.doc", nil)
	dir.Put("_10.fnm", nil)
	files, err := SegmentFiles(dir, "_0")
	require.NoError(t, err)
	assert.Equal(t, []string{"_0.fnm", "_0_VInt_0.doc"}, files)
}

func TestCheckSegmentName(t *testing.T) {
	for _, name := range []string{"_0", "_1z", "a", "seg"} {
		assert.NoError(t, CheckSegmentName(name), name)
	}
	for _, name := range []string{"", "_", "a_1", "_0_1", "seg.x", "_0.", "__0"} {
		assert.ErrorIs(t, CheckSegmentName(name), codecerr.ErrIllegalArgument, name)
	}

	_, err := SegmentFiles(NewRAMDirectory(), "a_1")
	assert.ErrorIs(t, err, codecerr.ErrIllegalArgument)
}

func TestOwnsFile(t *testing.T) {
	tests := []struct {
		segment string
		name    string
		want    bool
	}{
		{"a", "a.si", true},
		{"a", "a_1.fnm", true},
		{"a", "a_Direct_0.dvd", true},
		{"a", "ab.si", false},
		{"a", "a", false},
		{"a", "a.", false},
		{"a", "a_.fnm", false},
		{"a", "a_1", false},
		{"a", "a.x.si", false},
		{"a", "a_x.y.si", false},
		{"_0", "_0_1_Direct_0.dvd", true},
		{"_0", "_01.si", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OwnsFile(tt.segment, tt.name), "%s owns %s", tt.segment, tt.name)
	}
}
