package memory

import (
	"testing"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/compression"
	"github.com/hupe1980/segcodec/store"
	"github.com/hupe1980/segcodec/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	f, err := format.LookupPostingsFormat(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, f.Name())
}

func TestRoundTrip(t *testing.T) {
	testutil.CheckPostingsFormat(t, New())
}

func TestRoundTripUncompressed(t *testing.T) {
	testutil.CheckPostingsFormat(t, &Format{Compression: compression.None})
}

func TestSingleFile(t *testing.T) {
	rng := testutil.NewRNG(1)
	fi := index.NewFieldInfo("body", 0, index.IndexOptionsDocsAndFreqsAndPositions, index.DocValuesNone)
	dir := store.NewRAMDirectory()
	ws := testutil.WriteState(t, dir, "_0", 20, fi)
	testutil.WritePostings(t, New(), ws, rng.InvertedField(fi, 20, 10))

	names, err := dir.ListAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"_0.mem"}, names)
}

func TestCorruptionDetectedAtOpen(t *testing.T) {
	rng := testutil.NewRNG(2)
	fi := index.NewFieldInfo("body", 0, index.IndexOptionsDocsAndFreqs, index.DocValuesNone)
	dir := store.NewRAMDirectory()
	ws := testutil.WriteState(t, dir, "_0", 50, fi)
	testutil.WritePostings(t, New(), ws, rng.InvertedField(fi, 50, 30))

	data, ok := dir.Bytes("_0.mem")
	require.True(t, ok)
	data[len(data)/2] ^= 0x10
	dir.Put("_0.mem", data)

	_, err := New().FieldsProducer(index.ReadStateFor(ws))
	require.Error(t, err)
	assert.True(t, codecerr.IsCorrupt(err), "got %v", err)
}

func TestUnknownFieldNumber(t *testing.T) {
	rng := testutil.NewRNG(3)
	fi := index.NewFieldInfo("body", 7, index.IndexOptionsDocs, index.DocValuesNone)
	dir := store.NewRAMDirectory()
	ws := testutil.WriteState(t, dir, "_0", 10, fi)
	testutil.WritePostings(t, New(), ws, rng.InvertedField(fi, 10, 5))

	other := testutil.WriteState(t, dir, "_0", 10,
		index.NewFieldInfo("body", 3, index.IndexOptionsDocs, index.DocValuesNone))
	_, err := New().FieldsProducer(index.ReadStateFor(other))
	assert.True(t, codecerr.IsCorrupt(err), "got %v", err)
}

func TestOutOfOrderCalls(t *testing.T) {
	fi := index.NewFieldInfo("body", 0, index.IndexOptionsDocsAndFreqsAndPositions, index.DocValuesNone)
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 10, fi)
	fc, err := New().FieldsConsumer(ws)
	require.NoError(t, err)
	tc, err := fc.AddField(fi)
	require.NoError(t, err)

	fw := tc.(*fieldWriter)
	assert.ErrorIs(t, fw.StartDoc(0, 1), codecerr.ErrIllegalState, "doc before term")
	assert.ErrorIs(t, fw.AddPosition(3), codecerr.ErrIllegalState, "position before term")
	assert.ErrorIs(t, fw.FinishTerm([]byte("a"), format.TermStats{DocFreq: 1}), codecerr.ErrIllegalState)

	pc, err := tc.StartTerm([]byte("a"))
	require.NoError(t, err)
	assert.ErrorIs(t, pc.AddPosition(3), codecerr.ErrIllegalState, "position before doc")
	require.NoError(t, pc.StartDoc(0, 1))
	require.NoError(t, pc.AddPosition(3))
	require.NoError(t, pc.FinishDoc())
	require.NoError(t, tc.FinishTerm([]byte("a"), format.TermStats{DocFreq: 1, TotalTermFreq: 1}))
	require.NoError(t, tc.Finish(1, 1, 1))
	require.NoError(t, fc.Close())
}
