package testutil

import (
	"bytes"
	"testing"

	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// WriteState returns a write state for segment in dir.
func WriteState(tb testing.TB, dir store.Directory, segment string, docCount int, fields ...*index.FieldInfo) index.SegmentWriteState {
	tb.Helper()
	infos, err := index.NewFieldInfos(fields...)
	require.NoError(tb, err)
	return index.SegmentWriteState{
		Directory:    dir,
		SegmentName:  segment,
		FieldInfos:   infos,
		DocCount:     docCount,
		Context:      store.IOContext{Kind: store.ContextFlush},
		DocValuesGen: -1,
	}
}

// WritePostings writes fields through a fresh consumer of pf.
func WritePostings(tb testing.TB, pf format.PostingsFormat, state index.SegmentWriteState, fields ...format.InvertedField) {
	tb.Helper()
	consumer, err := pf.FieldsConsumer(state)
	require.NoError(tb, err)
	require.NoError(tb, format.WriteFields(consumer, fields...))
	require.NoError(tb, consumer.Close())
}

// AssertPostings checks that producer returns exactly want, including the
// term and field statistics.
func AssertPostings(tb testing.TB, producer format.FieldsProducer, want ...format.InvertedField) {
	tb.Helper()

	var names []string
	for _, f := range want {
		if len(f.Normalized().Terms) > 0 {
			names = append(names, f.Info.Name)
		}
	}
	assert.ElementsMatch(tb, names, producer.Fields())

	for _, w := range want {
		w = w.Normalized()
		terms, err := producer.Terms(w.Info.Name)
		require.NoError(tb, err)
		if len(w.Terms) == 0 {
			assert.Nil(tb, terms, "field %q", w.Info.Name)
			continue
		}
		require.NotNil(tb, terms, "field %q", w.Info.Name)

		got, err := format.ReadField(w.Info, terms)
		require.NoError(tb, err)
		require.Equal(tb, len(w.Terms), len(got.Terms), "field %q", w.Info.Name)
		for i := range w.Terms {
			assert.Equal(tb, w.Terms[i], got.Terms[i], "field %q term %q", w.Info.Name, w.Terms[i].Term)
		}
		assertFieldStats(tb, w, terms)
		assertTermStats(tb, w, terms)
	}
}

func assertFieldStats(tb testing.TB, w format.InvertedField, terms format.Terms) {
	tb.Helper()
	var sumDF, sumTTF int64
	docs := make(map[int]bool)
	for _, t := range w.Terms {
		sumDF += int64(len(t.Postings))
		for _, p := range t.Postings {
			sumTTF += int64(p.Freq)
			docs[p.Doc] = true
		}
	}
	if !w.Info.IndexOptions.HasFreqs() {
		sumTTF = -1
	}
	assert.Equal(tb, int64(len(w.Terms)), terms.Size(), "size of %q", w.Info.Name)
	assert.Equal(tb, sumDF, terms.SumDocFreq(), "sumDocFreq of %q", w.Info.Name)
	assert.Equal(tb, sumTTF, terms.SumTotalTermFreq(), "sumTotalTermFreq of %q", w.Info.Name)
	assert.Equal(tb, len(docs), terms.DocCount(), "docCount of %q", w.Info.Name)
}

func assertTermStats(tb testing.TB, w format.InvertedField, terms format.Terms) {
	tb.Helper()
	te, err := terms.Iterator()
	require.NoError(tb, err)

	// Seek in reverse order so no answer depends on iteration state.
	for i := len(w.Terms) - 1; i >= 0; i-- {
		t := w.Terms[i]
		found, err := te.SeekExact(t.Term)
		require.NoError(tb, err)
		require.True(tb, found, "seek %q", t.Term)
		assert.True(tb, bytes.Equal(t.Term, te.Term()))
		assert.Equal(tb, len(t.Postings), te.DocFreq())

		ttf := int64(-1)
		if w.Info.IndexOptions.HasFreqs() {
			ttf = 0
			for _, p := range t.Postings {
				ttf += int64(p.Freq)
			}
		}
		assert.Equal(tb, ttf, te.TotalTermFreq())

		pe, err := te.Postings()
		require.NoError(tb, err)
		doc, err := pe.NextDoc()
		require.NoError(tb, err)
		assert.Equal(tb, t.Postings[0].Doc, doc)
	}

	found, err := te.SeekExact(append(bytes.Clone(w.Terms[len(w.Terms)-1].Term), 0xff))
	require.NoError(tb, err)
	assert.False(tb, found)
}

// testFields returns one generated field per index option, plus an empty one.
func testFields(rng *RNG, maxDoc int) []format.InvertedField {
	opts := []index.IndexOptions{
		index.IndexOptionsDocs,
		index.IndexOptionsDocsAndFreqs,
		index.IndexOptionsDocsAndFreqsAndPositions,
	}
	names := []string{"id", "tags", "body"}
	var fields []format.InvertedField
	for i, o := range opts {
		fi := index.NewFieldInfo(names[i], i, o, index.DocValuesNone)
		fields = append(fields, rng.InvertedField(fi, maxDoc, 60+rng.Intn(60)))
	}
	empty := index.NewFieldInfo("empty", len(opts), index.IndexOptionsDocsAndFreqs, index.DocValuesNone)
	return append(fields, format.InvertedField{Info: empty})
}

func infosOf(fields []format.InvertedField) []*index.FieldInfo {
	infos := make([]*index.FieldInfo, len(fields))
	for i, f := range fields {
		infos[i] = f.Info
	}
	return infos
}

// CheckPostingsFormat round-trips generated fields of every index option
// through pf on a RAM directory and verifies integrity checking.
func CheckPostingsFormat(t *testing.T, pf format.PostingsFormat) {
	t.Helper()
	rng := NewRNG(4711)

	for _, maxDoc := range []int{1, 17, 300} {
		dir := store.NewRAMDirectory()
		fields := testFields(rng, maxDoc)
		ws := WriteState(t, dir, "_0", maxDoc, infosOf(fields)...)
		WritePostings(t, pf, ws, fields...)

		producer, err := pf.FieldsProducer(index.ReadStateFor(ws))
		require.NoError(t, err)
		AssertPostings(t, producer, fields...)
		require.NoError(t, producer.CheckIntegrity())

		// Unconsumed positions must not leak into the next document.
		body, err := producer.Terms("body")
		require.NoError(t, err)
		te, err := body.Iterator()
		require.NoError(t, err)
		for {
			term, err := te.Next()
			require.NoError(t, err)
			if term == nil {
				break
			}
			pe, err := te.Postings()
			require.NoError(t, err)
			docs := 0
			for {
				doc, err := pe.NextDoc()
				require.NoError(t, err)
				if doc == format.NoMoreDocs {
					break
				}
				docs++
			}
			assert.Equal(t, te.DocFreq(), docs)
		}
		require.NoError(t, producer.Close())
	}
}

// CheckDocValuesFormat round-trips numeric, binary and sorted fields through
// dvf on a RAM directory.
func CheckDocValuesFormat(t *testing.T, dvf format.DocValuesFormat) {
	t.Helper()
	rng := NewRNG(4711)

	for _, maxDoc := range []int{1, 10, 1000} {
		price := index.NewFieldInfo("price", 0, index.IndexOptionsNone, index.DocValuesNumeric)
		blob := index.NewFieldInfo("blob", 1, index.IndexOptionsNone, index.DocValuesBinary)
		color := index.NewFieldInfo("color", 2, index.IndexOptionsNone, index.DocValuesSorted)
		unset := index.NewFieldInfo("unset", 3, index.IndexOptionsNone, index.DocValuesNumeric)

		numeric := rng.NumericValues(maxDoc, 0.7)
		binary := rng.BinaryValues(maxDoc, 0.5)
		sorted := rng.SortedValues(maxDoc, 0.9, 7)

		dir := store.NewRAMDirectory()
		ws := WriteState(t, dir, "_1", maxDoc, price, blob, color, unset)
		consumer, err := dvf.FieldsConsumer(ws)
		require.NoError(t, err)
		require.NoError(t, consumer.AddNumericField(price, numeric))
		require.NoError(t, consumer.AddBinaryField(blob, binary))
		require.NoError(t, consumer.AddSortedField(color, sorted))
		assert.Error(t, consumer.AddBinaryField(price, binary), "type mismatch")
		require.NoError(t, consumer.Close())

		producer, err := dvf.FieldsProducer(index.ReadStateFor(ws))
		require.NoError(t, err)

		gotNumeric, err := producer.Numeric(price)
		require.NoError(t, err)
		require.NotNil(t, gotNumeric)
		assert.True(t, numeric.DocsWithField.Equals(gotNumeric.DocsWithField))
		for doc := range maxDoc {
			want, wantOK := numeric.Get(doc)
			got, gotOK := gotNumeric.Get(doc)
			assert.Equal(t, wantOK, gotOK)
			assert.Equal(t, want, got, "doc %d", doc)
		}

		gotBinary, err := producer.Binary(blob)
		require.NoError(t, err)
		require.NotNil(t, gotBinary)
		for doc := range maxDoc {
			want, wantOK := binary.Get(doc)
			got, gotOK := gotBinary.Get(doc)
			assert.Equal(t, wantOK, gotOK)
			assert.True(t, bytes.Equal(want, got), "doc %d", doc)
		}

		gotSorted, err := producer.Sorted(color)
		require.NoError(t, err)
		require.NotNil(t, gotSorted)
		require.Len(t, gotSorted.Terms, len(sorted.Terms))
		for i := range sorted.Terms {
			assert.True(t, bytes.Equal(sorted.Terms[i], gotSorted.Terms[i]), "term %d", i)
		}
		assert.Equal(t, sorted.Ords, gotSorted.Ords)

		missing, err := producer.Numeric(unset)
		require.NoError(t, err)
		assert.Nil(t, missing)

		_, err = producer.Sorted(price)
		assert.Error(t, err)

		require.NoError(t, producer.CheckIntegrity())
		require.NoError(t, producer.Close())
	}
}
