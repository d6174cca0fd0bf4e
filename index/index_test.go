package index

import (
	"testing"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldInfos_Ordering(t *testing.T) {
	body := NewFieldInfo("body", 2, IndexOptionsDocsAndFreqsAndPositions, DocValuesNone)
	id := NewFieldInfo("id", 0, IndexOptionsDocs, DocValuesBinary)
	price := NewFieldInfo("price", 1, IndexOptionsNone, DocValuesNumeric)

	fis, err := NewFieldInfos(body, id, price)
	require.NoError(t, err)

	names := []string{}
	for _, fi := range fis.All() {
		names = append(names, fi.Name)
	}
	assert.Equal(t, []string{"id", "price", "body"}, names)
	assert.Same(t, price, fis.ByNumber(1))
	assert.Same(t, body, fis.ByName("body"))
	assert.Nil(t, fis.ByName("missing"))
	assert.True(t, fis.HasPostings())
	assert.True(t, fis.HasDocValues())

	assert.ErrorIs(t, fis.Add(NewFieldInfo("body", 9, IndexOptionsDocs, DocValuesNone)), codecerr.ErrIllegalArgument)
	assert.ErrorIs(t, fis.Add(NewFieldInfo("other", 2, IndexOptionsDocs, DocValuesNone)), codecerr.ErrIllegalArgument)
}

func TestFieldInfo_Attributes(t *testing.T) {
	fi := NewFieldInfo("f", 0, IndexOptionsDocs, DocValuesNone)
	_, ok := fi.Attribute("k")
	assert.False(t, ok)

	prev, had := fi.PutAttribute("k", "v1")
	assert.False(t, had)
	assert.Empty(t, prev)

	prev, had = fi.PutAttribute("k", "v2")
	assert.True(t, had)
	assert.Equal(t, "v1", prev)

	attrs := fi.Attributes()
	attrs["k"] = "mutated"
	v, _ := fi.Attribute("k")
	assert.Equal(t, "v2", v)

	c := fi.Clone()
	c.PutAttribute("k", "clone")
	v, _ = fi.Attribute("k")
	assert.Equal(t, "v2", v)
}

func TestFieldInfosFormat_RoundTrip(t *testing.T) {
	dir := store.NewRAMDirectory()
	a := NewFieldInfo("title", 0, IndexOptionsDocsAndFreqs, DocValuesSorted)
	a.PutAttribute("PerFieldPostingsFormat.format", "Memory")
	a.PutAttribute("PerFieldPostingsFormat.suffix", "0")
	a.DocValuesGen = 3
	b := NewFieldInfo("unknown-keys", 5, IndexOptionsNone, DocValuesNumeric)
	b.PutAttribute("future.key", "opaque value")
	fis, err := NewFieldInfos(a, b)
	require.NoError(t, err)

	var f FieldInfosFormat
	require.NoError(t, f.Write(dir, "_0", "", fis, store.DefaultIOContext))
	assert.True(t, dir.FileExists("_0.fnm"))

	got, err := f.Read(dir, "_0", "", store.DefaultIOContext)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	title := got.ByName("title")
	require.NotNil(t, title)
	assert.Equal(t, IndexOptionsDocsAndFreqs, title.IndexOptions)
	assert.Equal(t, DocValuesSorted, title.DocValuesType)
	assert.Equal(t, int64(3), title.DocValuesGen)
	assert.Equal(t, a.Attributes(), title.Attributes())

	other := got.ByNumber(5)
	require.NotNil(t, other)
	assert.Equal(t, int64(-1), other.DocValuesGen)
	assert.Equal(t, map[string]string{"future.key": "opaque value"}, other.Attributes())
}

func TestFieldInfosFormat_Corruption(t *testing.T) {
	dir := store.NewRAMDirectory()
	fis, err := NewFieldInfos(NewFieldInfo("f", 0, IndexOptionsDocs, DocValuesNone))
	require.NoError(t, err)
	var f FieldInfosFormat
	require.NoError(t, f.Write(dir, "_0", "", fis, store.DefaultIOContext))

	data, _ := dir.Bytes("_0.fnm")
	data[len(data)-codecutil.FooterLength-1] ^= 0x04
	dir.Put("_1.fnm", data)

	_, err = f.Read(dir, "_1", "", store.DefaultIOContext)
	require.Error(t, err)
	assert.True(t, codecerr.IsCorrupt(err))
}

func TestDocValuesSuffix(t *testing.T) {
	assert.Equal(t, "", DocValuesSuffix("", -1))
	assert.Equal(t, "Direct_0", DocValuesSuffix("Direct_0", -1))
	assert.Equal(t, "1", DocValuesSuffix("", 1))
	assert.Equal(t, "z", DocValuesSuffix("", 35))
	assert.Equal(t, "outer_10", DocValuesSuffix("outer", 36))
}

func TestSegmentInfoFormat(t *testing.T) {
	dir := store.NewRAMDirectory()
	var f SegmentInfoFormat
	si := &SegmentInfo{Name: "_4", DocCount: 1234, Codec: "SegCodec", Diagnostics: map[string]string{"source": "flush"}}
	require.NoError(t, f.Write(dir, si, store.DefaultIOContext))

	got, err := f.Read(dir, "_4", store.DefaultIOContext)
	require.NoError(t, err)
	assert.Equal(t, si, got)

	assert.ErrorIs(t, f.Write(dir, &SegmentInfo{Name: "_5", DocCount: -1}, store.DefaultIOContext), codecerr.ErrIllegalArgument)

	data, _ := dir.Bytes("_4.si")
	data[len(data)-codecutil.FooterLength-2] ^= 0x01
	dir.Put("_6.si", data)
	_, err = f.Read(dir, "_6", store.DefaultIOContext)
	assert.True(t, codecerr.IsCorrupt(err), "got %v", err)
}
