package jsondv

import (
	"bytes"
	"testing"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/jsoncodec"
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
	for _, c := range []jsoncodec.Codec{jsoncodec.GoJSON{}, jsoncodec.Std{}} {
		t.Run(c.Name(), func(t *testing.T) {
			testutil.CheckDocValuesFormat(t, &Format{Codec: c})
		})
	}
}

func TestHumanReadable(t *testing.T) {
	fi := index.NewFieldInfo("price", 0, index.IndexOptionsNone, index.DocValuesNumeric)
	dir := store.NewRAMDirectory()
	ws := testutil.WriteState(t, dir, "_0", 3, fi)
	c, err := New().FieldsConsumer(ws)
	require.NoError(t, err)
	v := format.NewNumericValues(3)
	v.Set(2, 42)
	require.NoError(t, c.AddNumericField(fi, v))
	require.NoError(t, c.Close())

	data, ok := dir.Bytes("_0.dvj")
	require.True(t, ok)
	assert.True(t, bytes.Contains(data, []byte(`"name":"price"`)))
	assert.True(t, bytes.Contains(data, []byte(`"numeric":[42]`)))
}

func TestInvalidPayloadIsCorrupt(t *testing.T) {
	fi := index.NewFieldInfo("price", 0, index.IndexOptionsNone, index.DocValuesNumeric)
	dir := store.NewRAMDirectory()
	ws := testutil.WriteState(t, dir, "_0", 3, fi)

	out, err := dir.CreateOutput("_0.dvj", store.DefaultIOContext)
	require.NoError(t, err)
	require.NoError(t, writeFile(out, "go-json", []byte(`{"max_doc":3,"fields":[{"number":0,"name":"price","type":"numeric","max_doc":3,"docs":[1],"numeric":[]}]}`)))
	require.NoError(t, out.Close())

	_, err = New().FieldsProducer(index.ReadStateFor(ws))
	assert.True(t, codecerr.IsCorrupt(err), "got %v", err)
}
