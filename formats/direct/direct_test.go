package direct

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
	f, err := format.LookupDocValuesFormat(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, f.Name())
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []compression.Type{compression.None, compression.LZ4, compression.ZSTD, compression.Snappy} {
		t.Run(c.String(), func(t *testing.T) {
			testutil.CheckDocValuesFormat(t, &Format{Compression: c})
		})
	}
}

func writeNumeric(t *testing.T, dir store.Directory) index.SegmentWriteState {
	t.Helper()
	fi := index.NewFieldInfo("price", 0, index.IndexOptionsNone, index.DocValuesNumeric)
	ws := testutil.WriteState(t, dir, "_0", 500, fi)
	c, err := New().FieldsConsumer(ws)
	require.NoError(t, err)
	require.NoError(t, c.AddNumericField(fi, testutil.NewRNG(1).NumericValues(500, 0.8)))
	require.NoError(t, c.Close())
	return ws
}

func TestMetaCorruption(t *testing.T) {
	dir := store.NewRAMDirectory()
	ws := writeNumeric(t, dir)

	data, ok := dir.Bytes("_0.dvm")
	require.True(t, ok)
	data[len(data)-17] ^= 0x04
	dir.Put("_0.dvm", data)

	_, err := New().FieldsProducer(index.ReadStateFor(ws))
	assert.True(t, codecerr.IsCorrupt(err), "got %v", err)
}

func TestDataCorruption(t *testing.T) {
	dir := store.NewRAMDirectory()
	ws := writeNumeric(t, dir)

	data, ok := dir.Bytes("_0.dvd")
	require.True(t, ok)
	data[len(data)-30] ^= 0x04
	dir.Put("_0.dvd", data)

	p, err := New().FieldsProducer(index.ReadStateFor(ws))
	require.NoError(t, err)
	defer p.Close()
	assert.True(t, codecerr.IsCorrupt(p.CheckIntegrity()))
}

func TestSlotCountMismatch(t *testing.T) {
	fi := index.NewFieldInfo("price", 0, index.IndexOptionsNone, index.DocValuesNumeric)
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 10, fi)
	c, err := New().FieldsConsumer(ws)
	require.NoError(t, err)
	err = c.AddNumericField(fi, format.NewNumericValues(11))
	assert.ErrorIs(t, err, codecerr.ErrIllegalArgument)
	require.NoError(t, c.Close())
}
