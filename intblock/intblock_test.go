package intblock_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/intblock"
	"github.com/hupe1980/segcodec/intblock/compressed"
	"github.com/hupe1980/segcodec/intblock/mockvar"
	"github.com/hupe1980/segcodec/intblock/vintblock"
	"github.com/hupe1980/segcodec/internal/compression"
	ifs "github.com/hupe1980/segcodec/internal/fs"
	"github.com/hupe1980/segcodec/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomValues(rng *rand.Rand, n, max int) []int {
	values := make([]int, n)
	for i := range values {
		values[i] = rng.IntN(max)
	}
	return values
}

// writeStream writes values and returns, for every k, the absolute
// serialization of the index marked before the k-th value.
func writeStream(t *testing.T, f intblock.StreamFactory, dir store.Directory, name string, values []int) [][]byte {
	t.Helper()
	out, err := f.CreateOutput(dir, name, store.DefaultIOContext)
	require.NoError(t, err)

	idx := out.Index()
	marks := make([][]byte, len(values))
	for k, v := range values {
		idx.Mark()
		buf := store.NewBuffer()
		require.NoError(t, idx.Write(buf, true))
		marks[k] = buf.Bytes()
		require.NoError(t, out.Write(v))
	}
	require.NoError(t, out.Close())
	return marks
}

func readAll(t *testing.T, in intblock.Input, n int) []int {
	t.Helper()
	r := in.Reader()
	got := make([]int, n)
	for i := range got {
		v, err := r.Next()
		require.NoError(t, err)
		got[i] = v
	}
	return got
}

func factories(t *testing.T) map[string]func(int) intblock.StreamFactory {
	return map[string]func(int) intblock.StreamFactory{
		"vint": func(bs int) intblock.StreamFactory {
			f, err := vintblock.NewFactory(bs)
			require.NoError(t, err)
			return f
		},
		"lz4": func(bs int) intblock.StreamFactory {
			f, err := compressed.NewFactory(compression.LZ4, bs)
			require.NoError(t, err)
			return f
		},
		"zstd": func(bs int) intblock.StreamFactory {
			f, err := compressed.NewFactory(compression.ZSTD, bs)
			require.NoError(t, err)
			return f
		},
		"snappy": func(bs int) intblock.StreamFactory {
			f, err := compressed.NewFactory(compression.Snappy, bs)
			require.NoError(t, err)
			return f
		},
		"mockvar": func(bs int) intblock.StreamFactory {
			return mockvar.NewFactory(bs)
		},
	}
}

func TestStream_RoundTripAndSeek(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for name, mk := range factories(t) {
		for _, blockSize := range []int{1, 2, 3, 16, 128} {
			for _, n := range []int{0, 1, blockSize - 1, blockSize, blockSize + 1, 5*blockSize + 3, 1000} {
				t.Run(fmt.Sprintf("%s/bs=%d/n=%d", name, blockSize, n), func(t *testing.T) {
					dir := store.NewRAMDirectory()
					f := mk(blockSize)
					values := randomValues(rng, n, 1000)
					marks := writeStream(t, f, dir, "s", values)

					in, err := f.OpenInput(dir, "s", store.DefaultIOContext)
					require.NoError(t, err)
					defer in.Close()
					require.NoError(t, in.CheckIntegrity())

					assert.Equal(t, values, readAll(t, in, n))

					// Every marked index, sought on a reused reader, yields the value written after it.
					r := in.Reader()
					idx := in.Index()
					for _, k := range rng.Perm(n) {
						require.NoError(t, idx.Read(store.NewByteReader("idx", marks[k]), true))
						require.NoError(t, idx.Seek(r))
						v, err := r.Next()
						require.NoError(t, err)
						require.Equal(t, values[k], v, "value after mark %d", k)
					}
				})
			}
		}
	}
}

func TestVariable_ToyEncoderLowAndHighFirstValues(t *testing.T) {
	f := mockvar.NewFactory(3)
	sequences := [][]int{
		{1, 2, 3, 4, 5, 6, 7},
		{9, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		{0},
		{4},
		{1, 9, 1, 9, 1, 9, 1, 9, 1, 9, 1, 9, 4, 4, 4},
	}
	for i, values := range sequences {
		dir := store.NewRAMDirectory()
		writeStream(t, f, dir, "s", values)

		in, err := f.OpenInput(dir, "s", store.DefaultIOContext)
		require.NoError(t, err)
		assert.Equal(t, values, readAll(t, in, len(values)), "sequence %d", i)
		require.NoError(t, in.Close())
	}
}

func TestIndex_RelativeEncoding(t *testing.T) {
	for name, mk := range factories(t) {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(3, 3))
			f := mk(8)
			dir := store.NewRAMDirectory()
			values := randomValues(rng, 300, 50)

			out, err := f.CreateOutput(dir, "s", store.DefaultIOContext)
			require.NoError(t, err)
			idx := out.Index()

			meta := store.NewBuffer()
			var marked []int
			for k, v := range values {
				if k%7 == 0 {
					idx.Mark()
					require.NoError(t, idx.Write(meta, len(marked) == 0))
					marked = append(marked, k)
				}
				require.NoError(t, out.Write(v))
			}
			require.NoError(t, out.Close())

			in, err := f.OpenInput(dir, "s", store.DefaultIOContext)
			require.NoError(t, err)
			defer in.Close()

			r := in.Reader()
			rIdx := in.Index()
			mr := store.NewByteReader("meta", meta.Bytes())
			for i, k := range marked {
				require.NoError(t, rIdx.Read(mr, i == 0))
				c := rIdx.Clone()
				require.NoError(t, c.Seek(r))
				v, err := r.Next()
				require.NoError(t, err)
				require.Equal(t, values[k], v)
			}
			assert.True(t, mr.EOF())
		})
	}
}

func TestIndex_CopyFrom(t *testing.T) {
	f, err := vintblock.NewFactory(4)
	require.NoError(t, err)
	dir := store.NewRAMDirectory()

	out, err := f.CreateOutput(dir, "s", store.DefaultIOContext)
	require.NoError(t, err)
	a, b := out.Index(), out.Index()
	for v := range 6 {
		require.NoError(t, out.Write(v))
	}
	a.Mark()
	require.NoError(t, b.CopyFrom(a, true))

	// b's baseline is now a's position, so a relative write is a zero delta.
	meta := store.NewBuffer()
	require.NoError(t, b.Write(meta, false))
	assert.Equal(t, []byte{1}, meta.Bytes())
	require.NoError(t, out.Close())

	other := mockvar.NewFactory(2)
	out2, err := other.CreateOutput(dir, "t", store.DefaultIOContext)
	require.NoError(t, err)
	require.NoError(t, out2.Close())

	in1, err := f.OpenInput(dir, "s", store.DefaultIOContext)
	require.NoError(t, err)
	defer in1.Close()
	in2, err := other.OpenInput(dir, "t", store.DefaultIOContext)
	require.NoError(t, err)
	defer in2.Close()

	assert.ErrorIs(t, in1.Index().CopyFrom(in2.Index()), intblock.ErrIndexMismatch)
	assert.ErrorIs(t, in1.Index().Seek(in2.Reader()), intblock.ErrIndexMismatch)
}

func TestOutput_ClosedAndNegative(t *testing.T) {
	for name, mk := range factories(t) {
		t.Run(name, func(t *testing.T) {
			dir := store.NewRAMDirectory()
			out, err := mk(4).CreateOutput(dir, "s", store.DefaultIOContext)
			require.NoError(t, err)

			assert.ErrorIs(t, out.Write(-1), intblock.ErrNegativeValue)
			require.NoError(t, out.Write(1))
			require.NoError(t, out.Close())
			require.NoError(t, out.Close())
			assert.ErrorIs(t, out.Write(2), intblock.ErrClosed)
			assert.ErrorIs(t, out.Write(2), codecerr.ErrIllegalState)
		})
	}
}

func TestVariable_CloseReleasesFileOnPadFailure(t *testing.T) {
	faulty := ifs.NewFaultyFS(nil)
	root := t.TempDir()
	dir, err := store.OpenFSDirectory(root, store.WithFileSystem(faulty))
	require.NoError(t, err)

	f := mockvar.NewFactory(4)
	out, err := f.CreateOutput(dir, "s", store.DefaultIOContext)
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, out.Write(1))
	}
	faulty.SetBudget(0)

	err = out.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, ifs.ErrInjected)
	assert.ErrorIs(t, out.Write(1), intblock.ErrClosed)

	// The file handle was released, so the partial file can be removed.
	require.NoError(t, dir.DeleteFile("s"))
}

func TestInput_Corruption(t *testing.T) {
	f, err := vintblock.NewFactory(8)
	require.NoError(t, err)
	dir := store.NewRAMDirectory()
	writeStream(t, f, dir, "s", randomValues(rand.New(rand.NewPCG(1, 1)), 100, 1<<20))
	data, _ := dir.Bytes("s")

	bad := append([]byte(nil), data...)
	bad[1] ^= 0xff
	dir.Put("badmagic", bad)
	_, err = f.OpenInput(dir, "badmagic", store.DefaultIOContext)
	assert.True(t, codecerr.IsCorrupt(err))

	_, err = mockvar.NewFactory(8).OpenInput(dir, "s", store.DefaultIOContext)
	assert.True(t, codecerr.IsCorrupt(err), "wrong codec name")

	bad = append([]byte(nil), data...)
	bad[len(bad)/2] ^= 0x01
	dir.Put("flipped", bad)
	in, err := f.OpenInput(dir, "flipped", store.DefaultIOContext)
	require.NoError(t, err)
	assert.True(t, codecerr.IsCorrupt(in.CheckIntegrity()))
	require.NoError(t, in.Close())

	dir.Put("truncated", data[:len(data)-4])
	_, err = f.OpenInput(dir, "truncated", store.DefaultIOContext)
	assert.True(t, codecerr.IsCorrupt(err))
}

func TestFixedFactory_InvalidBlockSize(t *testing.T) {
	_, err := vintblock.NewFactory(0)
	assert.ErrorIs(t, err, codecerr.ErrIllegalArgument)
	_, err = vintblock.NewFactory(intblock.MaxBlockSize + 1)
	assert.ErrorIs(t, err, codecerr.ErrIllegalArgument)
}
