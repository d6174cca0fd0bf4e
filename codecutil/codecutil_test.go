package codecutil

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFramed(t *testing.T, dir *store.RAMDirectory, name, codec string, version int32, payload []byte) {
	t.Helper()
	out, err := dir.CreateOutput(name, store.DefaultIOContext)
	require.NoError(t, err)
	require.NoError(t, WriteHeader(out, codec, version))
	assert.Equal(t, int64(HeaderLength(codec)), out.FilePointer())
	require.NoError(t, out.WriteBytes(payload))
	require.NoError(t, WriteFooter(out))
	require.NoError(t, out.Close())
}

func TestHeader_RoundTrip(t *testing.T) {
	names := []string{"", "a", "FixedIntBlock", strings.Repeat("x", MaxCodecNameLength-1)}
	versions := []int32{0, 1, 7, 1 << 30}

	for _, name := range names {
		for _, v := range versions {
			buf := store.NewBuffer()
			require.NoError(t, WriteHeader(buf, name, v))
			assert.Equal(t, HeaderLength(name), buf.Len())

			got, err := CheckHeader(store.NewByteReader("hdr", buf.Bytes()), name, v, v)
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	}
}

func TestHeader_InvalidName(t *testing.T) {
	buf := store.NewBuffer()
	err := WriteHeader(buf, strings.Repeat("x", MaxCodecNameLength), 0)
	assert.ErrorIs(t, err, ErrInvalidCodecName)
	assert.ErrorIs(t, err, codecerr.ErrIllegalArgument)

	assert.ErrorIs(t, WriteHeader(buf, "näme", 0), ErrInvalidCodecName)
	assert.Zero(t, buf.Len())
}

func TestHeader_EveryCorruptByteFails(t *testing.T) {
	buf := store.NewBuffer()
	require.NoError(t, WriteHeader(buf, "VInt", 3))
	orig := buf.Bytes()

	// The version bytes are the last four; flipping them is a version error
	// unless the flipped value still lands in range, which cannot happen for [3,3].
	for i := range orig {
		data := append([]byte(nil), orig...)
		data[i] ^= 0x01

		_, err := CheckHeader(store.NewByteReader("hdr", data), "VInt", 3, 3)
		require.Error(t, err, "byte %d", i)
		if i >= len(orig)-4 {
			assert.True(t, codecerr.IsVersionIncompatible(err), "byte %d: %v", i, err)
		} else {
			assert.True(t, codecerr.IsCorrupt(err), "byte %d: %v", i, err)
		}
	}
}

func TestHeader_VersionRange(t *testing.T) {
	buf := store.NewBuffer()
	require.NoError(t, WriteHeader(buf, "Codec", 5))

	_, err := CheckHeader(store.NewByteReader("hdr", buf.Bytes()), "Codec", 6, 8)
	assert.ErrorIs(t, err, codecerr.ErrIndexFormatTooOld)
	assert.False(t, codecerr.IsCorrupt(err))
	var old *codecerr.IndexFormatTooOldError
	require.ErrorAs(t, err, &old)
	assert.Equal(t, int32(5), old.Version)

	_, err = CheckHeader(store.NewByteReader("hdr", buf.Bytes()), "Codec", 1, 4)
	assert.ErrorIs(t, err, codecerr.ErrIndexFormatTooNew)
	assert.ErrorIs(t, err, codecerr.ErrVersionIncompatible)

	_, err = CheckHeader(store.NewByteReader("hdr", buf.Bytes()), "Other", 5, 5)
	assert.True(t, codecerr.IsCorrupt(err))

	codec, version, err := ReadHeader(store.NewByteReader("hdr", buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Codec", codec)
	assert.Equal(t, int32(5), version)
}

func TestFooter_VerifiesAndReturnsChecksum(t *testing.T) {
	dir := store.NewRAMDirectory()
	payload := make([]byte, 1000)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range payload {
		payload[i] = byte(rng.UintN(256))
	}
	writeFramed(t, dir, "f", "Test", 1, payload)

	info, err := VerifyFile(dir, "f", "Test", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Test", info.Codec)
	assert.Equal(t, int32(1), info.Version)

	anyInfo, err := VerifyFile(dir, "f", AnyCodec, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, info, anyInfo)

	in, err := dir.OpenInput("f", store.DefaultIOContext)
	require.NoError(t, err)
	defer in.Close()

	stored, err := RetrieveChecksum(in)
	require.NoError(t, err)
	whole, err := ChecksumEntireFile(in)
	require.NoError(t, err)
	assert.Equal(t, stored, whole)
	assert.Equal(t, info.Checksum, stored)
	assert.Equal(t, in.Length(), info.Length)
}

func TestFooter_BitFlipIsDetected(t *testing.T) {
	dir := store.NewRAMDirectory()
	payload := make([]byte, 256)
	writeFramed(t, dir, "f", "Test", 1, payload)
	data, _ := dir.Bytes("f")

	for _, pos := range []int{HeaderLength("Test"), HeaderLength("Test") + 100, len(data) - FooterLength - 1} {
		corrupted := append([]byte(nil), data...)
		corrupted[pos] ^= 0x10
		dir.Put("g", corrupted)

		_, err := VerifyFile(dir, "g", "Test", 1, 1)
		require.Error(t, err)
		assert.True(t, codecerr.IsCorrupt(err))
		assert.Contains(t, err.Error(), "checksum failed")
	}
}

func TestFooter_TrailingAndTruncated(t *testing.T) {
	dir := store.NewRAMDirectory()
	writeFramed(t, dir, "f", "Test", 1, []byte("payload"))
	data, _ := dir.Bytes("f")

	dir.Put("extended", append(append([]byte(nil), data...), 0))
	in, err := store.OpenChecksumInput(dir, "extended", store.DefaultIOContext)
	require.NoError(t, err)
	_, err = CheckHeader(in, "Test", 1, 1)
	require.NoError(t, err)
	require.NoError(t, in.Seek(int64(len(data)-FooterLength)))
	_, err = CheckFooter(in)
	assert.True(t, codecerr.IsCorrupt(err))
	require.NoError(t, in.Close())

	dir.Put("truncated", data[:len(data)-3])
	_, err = VerifyFile(dir, "truncated", "Test", 1, 1)
	assert.True(t, codecerr.IsCorrupt(err))

	dir.Put("tiny", data[:5])
	tiny, err := dir.OpenInput("tiny", store.DefaultIOContext)
	require.NoError(t, err)
	_, err = RetrieveChecksum(tiny)
	assert.True(t, codecerr.IsCorrupt(err))
}

func TestCheckFooterOnError(t *testing.T) {
	dir := store.NewRAMDirectory()
	writeFramed(t, dir, "f", "Test", 1, []byte("payload"))

	in, err := store.OpenChecksumInput(dir, "f", store.DefaultIOContext)
	require.NoError(t, err)
	defer in.Close()

	prior := codecerr.Corruptf("f", "bad term")
	err = CheckFooterOnError(in, prior)
	assert.ErrorIs(t, err, prior)
	assert.Contains(t, err.Error(), "checksum passed")
}
