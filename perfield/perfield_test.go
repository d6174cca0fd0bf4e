package perfield

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/formats/blockpf"
	"github.com/hupe1980/segcodec/formats/direct"
	"github.com/hupe1980/segcodec/formats/jsondv"
	"github.com/hupe1980/segcodec/formats/memory"
	"github.com/hupe1980/segcodec/formats/vintpf"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/store"
	"github.com/hupe1980/segcodec/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostings is a registered postings format whose producers record
// closes and can be made to fail.
type fakePostings struct {
	name     string
	openErr  error
	closeErr error
	closes   atomic.Int32
}

func (f *fakePostings) Name() string { return f.name }

func (f *fakePostings) FieldsConsumer(index.SegmentWriteState) (format.FieldsConsumer, error) {
	return fakeConsumer{}, nil
}

func (f *fakePostings) FieldsProducer(index.SegmentReadState) (format.FieldsProducer, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeProducer{f: f}, nil
}

type fakeConsumer struct{}

func (fakeConsumer) AddField(*index.FieldInfo) (format.TermsConsumer, error) { return fakeConsumer{}, nil }
func (fakeConsumer) StartTerm([]byte) (format.PostingsConsumer, error)      { return fakeConsumer{}, nil }
func (fakeConsumer) FinishTerm([]byte, format.TermStats) error               { return nil }
func (fakeConsumer) Finish(int64, int64, int) error                          { return nil }
func (fakeConsumer) StartDoc(int, int) error                                 { return nil }
func (fakeConsumer) AddPosition(int) error                                   { return nil }
func (fakeConsumer) FinishDoc() error                                        { return nil }
func (fakeConsumer) Close() error                                            { return nil }

type fakeProducer struct{ f *fakePostings }

func (p *fakeProducer) Fields() []string                    { return nil }
func (p *fakeProducer) Terms(string) (format.Terms, error) { return nil, nil }
func (p *fakeProducer) CheckIntegrity() error               { return nil }
func (p *fakeProducer) Close() error {
	p.f.closes.Add(1)
	return p.f.closeErr
}

var (
	errCloseA = errors.New("close a")
	errCloseB = errors.New("close b")

	fakeA       = &fakePostings{name: "perfield-test-a", closeErr: errCloseA}
	fakeB       = &fakePostings{name: "perfield-test-b", closeErr: errCloseB}
	fakeOK      = &fakePostings{name: "perfield-test-ok"}
	fakeNoOpen  = &fakePostings{name: "perfield-test-noopen", openErr: errors.New("open failed")}
	nestedInner = NewPostingsFormat(PostingsByField(vintpf.New(), nil), WithName("InnerPerField"))
)

func init() {
	for _, f := range []*fakePostings{fakeA, fakeB, fakeOK, fakeNoOpen} {
		format.RegisterPostingsFormat(f)
	}
	format.RegisterPostingsFormat(nestedInner)
}

func field(name string, number int, opts index.IndexOptions) *index.FieldInfo {
	return index.NewFieldInfo(name, number, opts, index.DocValuesNone)
}

// reopen persists the field infos of ws and reads them back, so a reader
// sees only what survived on disk.
func reopen(t *testing.T, ws index.SegmentWriteState) index.SegmentReadState {
	t.Helper()
	var fif index.FieldInfosFormat
	require.NoError(t, fif.Write(ws.Directory, ws.SegmentName, "", ws.FieldInfos, ws.Context))
	infos, err := fif.Read(ws.Directory, ws.SegmentName, "", store.IOContext{})
	require.NoError(t, err)
	rs := index.ReadStateFor(ws)
	rs.FieldInfos = infos
	return rs
}

func TestPostingsFormat_CheckFormat(t *testing.T) {
	pf := NewPostingsFormat(PostingsByField(vintpf.New(), map[string]format.PostingsFormat{
		"body": memory.New(),
	}))
	testutil.CheckPostingsFormat(t, pf)
}

func TestDocValuesFormat_CheckFormat(t *testing.T) {
	df := NewDocValuesFormat(DocValuesByField(direct.New(), map[string]format.DocValuesFormat{
		"color": jsondv.New(),
	}))
	testutil.CheckDocValuesFormat(t, df)
}

func TestPostingsDispatchStability(t *testing.T) {
	vint := vintpf.New()
	mem := memory.New()
	pf := NewPostingsFormat(PostingsByField(vint, map[string]format.PostingsFormat{"c": mem}))

	a := field("a", 0, index.IndexOptionsDocs)
	b := field("b", 1, index.IndexOptionsDocs)
	c := field("c", 2, index.IndexOptionsDocs)
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 10, a, b, c)

	fc, err := pf.FieldsConsumer(ws)
	require.NoError(t, err)
	w := fc.(*postingsWriter)

	first, err := w.consumerFor(a)
	require.NoError(t, err)
	again, err := w.consumerFor(a)
	require.NoError(t, err)
	assert.Same(t, first, again)

	shared, err := w.consumerFor(b)
	require.NoError(t, err)
	assert.Same(t, first, shared, "same format instance shares one consumer")

	other, err := w.consumerFor(c)
	require.NoError(t, err)
	assert.NotSame(t, first, other)

	for _, fi := range []*index.FieldInfo{a, b} {
		name, _ := fi.Attribute(pf.FormatKey())
		suffix, _ := fi.Attribute(pf.SuffixKey())
		assert.Equal(t, vintpf.Name, name)
		assert.Equal(t, "0", suffix)
	}
	name, _ := c.Attribute(pf.FormatKey())
	assert.Equal(t, memory.Name, name)
	require.NoError(t, fc.Close())
}

func TestSuffixCollisionFreedom(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			// One instance per field: N instances of the same format name.
			instances := make(map[string]format.PostingsFormat)
			pf := NewPostingsFormat(func(field string) format.PostingsFormat {
				f, ok := instances[field]
				if !ok {
					f = vintpf.New()
					instances[field] = f
				}
				return f
			})

			var infos []*index.FieldInfo
			for i := range n {
				infos = append(infos, field(fmt.Sprintf("f%02d", i), i, index.IndexOptionsDocsAndFreqs))
			}
			ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 50, infos...)
			rng := testutil.NewRNG(int64(n))
			var fields []format.InvertedField
			for _, fi := range infos {
				fields = append(fields, rng.InvertedField(fi, 50, 20))
			}
			testutil.WritePostings(t, pf, ws, fields...)

			seen := make(map[string]bool)
			for _, fi := range infos {
				suffix, ok := fi.Attribute(pf.SuffixKey())
				require.True(t, ok)
				assert.False(t, seen[suffix], "suffix %s reused", suffix)
				seen[suffix] = true
			}
			assert.Len(t, seen, n)

			producer, err := pf.FieldsProducer(reopen(t, ws))
			require.NoError(t, err)
			testutil.AssertPostings(t, producer, fields...)
			assert.Len(t, producer.(*postingsReader).producers, n)
			require.NoError(t, producer.Close())
		})
	}
}

func TestPostingsRoundTripAfterReopen(t *testing.T) {
	fixed, err := blockpf.NewFixed(16)
	require.NoError(t, err)
	vint := vintpf.New()
	pf := NewPostingsFormat(PostingsByField(vint, map[string]format.PostingsFormat{
		"body":  fixed,
		"title": memory.New(),
	}))

	id := field("id", 0, index.IndexOptionsDocs)
	body := field("body", 1, index.IndexOptionsDocsAndFreqsAndPositions)
	title := field("title", 2, index.IndexOptionsDocsAndFreqs)
	tags := field("tags", 3, index.IndexOptionsDocsAndFreqs)

	dir := store.NewRAMDirectory()
	ws := testutil.WriteState(t, dir, "_0", 200, id, body, title, tags)
	rng := testutil.NewRNG(42)
	fields := []format.InvertedField{
		rng.InvertedField(id, 200, 50),
		rng.InvertedField(body, 200, 80),
		rng.InvertedField(title, 200, 30),
		rng.InvertedField(tags, 200, 10),
	}
	testutil.WritePostings(t, pf, ws, fields...)

	for _, name := range []string{"_0_VInt_0.tdt", "_0_FixedIntBlock_0.tdt", "_0_Memory_0.mem"} {
		assert.True(t, dir.FileExists(name), name)
	}

	// The reading dispatcher's selector plays no part.
	reader := NewPostingsFormat(func(string) format.PostingsFormat { return nil })
	producer, err := reader.FieldsProducer(reopen(t, ws))
	require.NoError(t, err)
	testutil.AssertPostings(t, producer, fields...)
	assert.Len(t, producer.(*postingsReader).producers, 3, "id and tags share one producer")
	require.NoError(t, producer.CheckIntegrity())
	require.NoError(t, producer.Close())
}

func TestSelfEmbedding(t *testing.T) {
	var pf *PostingsFormat
	pf = NewPostingsFormat(func(string) format.PostingsFormat { return pf })

	fi := field("a", 0, index.IndexOptionsDocs)
	fc, err := pf.FieldsConsumer(testutil.WriteState(t, store.NewRAMDirectory(), "_0", 1, fi))
	require.NoError(t, err)
	_, err = fc.AddField(fi)
	assert.ErrorIs(t, err, ErrSelfEmbedding)
	assert.ErrorIs(t, err, codecerr.ErrIllegalArgument)
	require.NoError(t, fc.Close())

	var df *DocValuesFormat
	df = NewDocValuesFormat(func(string) format.DocValuesFormat { return df })
	dvfi := index.NewFieldInfo("n", 0, index.IndexOptionsNone, index.DocValuesNumeric)
	dc, err := df.FieldsConsumer(testutil.WriteState(t, store.NewRAMDirectory(), "_0", 1, dvfi))
	require.NoError(t, err)
	assert.ErrorIs(t, dc.AddNumericField(dvfi, format.NewNumericValues(1)), ErrSelfEmbedding)
	require.NoError(t, dc.Close())
}

func TestNoFormat(t *testing.T) {
	pf := NewPostingsFormat(func(string) format.PostingsFormat { return nil })
	fi := field("a", 0, index.IndexOptionsDocs)
	fc, err := pf.FieldsConsumer(testutil.WriteState(t, store.NewRAMDirectory(), "_0", 1, fi))
	require.NoError(t, err)
	_, err = fc.AddField(fi)
	assert.ErrorIs(t, err, ErrNoFormat)
	require.NoError(t, fc.Close())
}

func TestNestedDispatch(t *testing.T) {
	outer := NewPostingsFormat(PostingsByField(memory.New(), map[string]format.PostingsFormat{
		"a": nestedInner,
	}))
	a := field("a", 0, index.IndexOptionsDocsAndFreqs)
	b := field("b", 1, index.IndexOptionsDocsAndFreqs)
	dir := store.NewRAMDirectory()
	ws := testutil.WriteState(t, dir, "_0", 30, a, b)
	rng := testutil.NewRNG(7)
	fields := []format.InvertedField{rng.InvertedField(a, 30, 15), rng.InvertedField(b, 30, 15)}
	testutil.WritePostings(t, outer, ws, fields...)

	assert.True(t, dir.FileExists("_0_InnerPerField_0_VInt_0.tdt"))
	assert.True(t, dir.FileExists("_0_Memory_0.mem"))

	inner, _ := a.Attribute(nestedInner.FormatKey())
	assert.Equal(t, vintpf.Name, inner)
	routed, _ := a.Attribute(outer.FormatKey())
	assert.Equal(t, nestedInner.Name(), routed)

	producer, err := outer.FieldsProducer(reopen(t, ws))
	require.NoError(t, err)
	testutil.AssertPostings(t, producer, fields...)
	require.NoError(t, producer.Close())
}

func TestFieldWithoutAttributes(t *testing.T) {
	pf := NewPostingsFormat(PostingsByField(vintpf.New(), nil))
	a := field("a", 0, index.IndexOptionsDocs)
	unrouted := field("unrouted", 1, index.IndexOptionsDocs)
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 20, a, unrouted)
	fields := []format.InvertedField{testutil.NewRNG(1).InvertedField(a, 20, 10)}
	testutil.WritePostings(t, pf, ws, fields...)

	producer, err := pf.FieldsProducer(reopen(t, ws))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, producer.Fields())
	terms, err := producer.Terms("unrouted")
	require.NoError(t, err)
	assert.Nil(t, terms)
	require.NoError(t, producer.Close())
}

func TestMissingSuffixIsCorrupt(t *testing.T) {
	a := field("a", 0, index.IndexOptionsDocs)
	a.PutAttribute(DefaultPostingsName+".format", vintpf.Name)
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 1, a)

	_, err := NewPostingsFormat(nil).FieldsProducer(index.ReadStateFor(ws))
	assert.True(t, codecerr.IsCorrupt(err), "got %v", err)

	a.PutAttribute(DefaultPostingsName+".suffix", "-3")
	_, err = NewPostingsFormat(nil).FieldsProducer(index.ReadStateFor(ws))
	assert.True(t, codecerr.IsCorrupt(err), "got %v", err)
}

func TestProducerWhileWriting(t *testing.T) {
	pf := NewPostingsFormat(PostingsByField(vintpf.New(), nil))
	a := field("a", 0, index.IndexOptionsDocs)
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 20, a)

	fc, err := pf.FieldsConsumer(ws)
	require.NoError(t, err)
	require.NoError(t, format.WriteFields(fc, testutil.NewRNG(3).InvertedField(a, 20, 5)))

	_, err = pf.FieldsProducer(index.ReadStateFor(ws))
	assert.ErrorIs(t, err, codecerr.ErrIllegalState)

	require.NoError(t, fc.Close())
	producer, err := pf.FieldsProducer(index.ReadStateFor(ws))
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestCloseIsBestEffort(t *testing.T) {
	pf := NewPostingsFormat(PostingsByField(fakeA, map[string]format.PostingsFormat{"y": fakeB}))
	x := field("x", 0, index.IndexOptionsDocs)
	y := field("y", 1, index.IndexOptionsDocs)
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 1, x, y)

	fc, err := pf.FieldsConsumer(ws)
	require.NoError(t, err)
	for _, fi := range []*index.FieldInfo{x, y} {
		_, err := fc.AddField(fi)
		require.NoError(t, err)
	}
	require.NoError(t, fc.Close())

	a0, b0 := fakeA.closes.Load(), fakeB.closes.Load()
	producer, err := pf.FieldsProducer(index.ReadStateFor(ws))
	require.NoError(t, err)
	err = producer.Close()
	assert.ErrorIs(t, err, errCloseA)
	assert.Equal(t, a0+1, fakeA.closes.Load())
	assert.Equal(t, b0+1, fakeB.closes.Load())
}

func TestOpenFailureClosesOpened(t *testing.T) {
	pf := NewPostingsFormat(PostingsByField(fakeOK, map[string]format.PostingsFormat{"y": fakeNoOpen}))
	x := field("x", 0, index.IndexOptionsDocs)
	y := field("y", 1, index.IndexOptionsDocs)
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 1, x, y)

	fc, err := pf.FieldsConsumer(ws)
	require.NoError(t, err)
	for _, fi := range []*index.FieldInfo{x, y} {
		_, err := fc.AddField(fi)
		require.NoError(t, err)
	}
	require.NoError(t, fc.Close())

	before := fakeOK.closes.Load()
	_, err = pf.FieldsProducer(index.ReadStateFor(ws))
	assert.ErrorIs(t, err, fakeNoOpen.openErr)
	assert.Equal(t, before+1, fakeOK.closes.Load())
}

func TestUnknownFormatName(t *testing.T) {
	a := field("a", 0, index.IndexOptionsDocs)
	a.PutAttribute(DefaultPostingsName+".format", "NoSuchFormat")
	a.PutAttribute(DefaultPostingsName+".suffix", "0")
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 1, a)

	_, err := NewPostingsFormat(nil).FieldsProducer(index.ReadStateFor(ws))
	assert.ErrorIs(t, err, format.ErrUnknownFormat)
}

func TestDispatchHook(t *testing.T) {
	got := make(map[string]string)
	pf := NewPostingsFormat(PostingsByField(vintpf.New(), nil), WithDispatchHook(func(field, name string) {
		got[field] = name
	}))
	a := field("a", 0, index.IndexOptionsDocs)
	ws := testutil.WriteState(t, store.NewRAMDirectory(), "_0", 5, a)
	testutil.WritePostings(t, pf, ws, testutil.NewRNG(5).InvertedField(a, 5, 3))
	assert.Equal(t, map[string]string{"a": vintpf.Name}, got)
}

func TestDocValuesUpdateKeepsRouting(t *testing.T) {
	const maxDoc = 40
	price := index.NewFieldInfo("price", 0, index.IndexOptionsNone, index.DocValuesNumeric)
	color := index.NewFieldInfo("color", 1, index.IndexOptionsNone, index.DocValuesSorted)
	dir := store.NewRAMDirectory()
	ws := testutil.WriteState(t, dir, "_0", maxDoc, price, color)
	rng := testutil.NewRNG(11)

	initial := NewDocValuesFormat(DocValuesByField(direct.New(), nil))
	dc, err := initial.FieldsConsumer(ws)
	require.NoError(t, err)
	require.NoError(t, dc.AddNumericField(price, rng.NumericValues(maxDoc, 1)))
	sorted := rng.SortedValues(maxDoc, 0.8, 4)
	require.NoError(t, dc.AddSortedField(color, sorted))
	require.NoError(t, dc.Close())

	// Generation 1 rewrites price only. The selector now prefers JSON, but
	// the persisted routing wins.
	updated := rng.NumericValues(maxDoc, 0.5)
	update := ws
	update.DocValuesGen = 1
	price.DocValuesGen = 1
	later := NewDocValuesFormat(DocValuesByField(jsondv.New(), nil))
	uc, err := later.FieldsConsumer(update)
	require.NoError(t, err)
	assert.ErrorIs(t, uc.AddSortedField(color, sorted), codecerr.ErrIllegalArgument, "color is still generation -1")
	require.NoError(t, uc.AddNumericField(price, updated))
	require.NoError(t, uc.Close())

	assert.True(t, dir.FileExists("_0_1_Direct_0.dvd"))
	suffix, _ := price.Attribute(later.SuffixKey())
	assert.Equal(t, "0", suffix)

	producer, err := later.FieldsProducer(reopen(t, ws))
	require.NoError(t, err)
	defer producer.Close()

	gotPrice, err := producer.Numeric(price)
	require.NoError(t, err)
	require.NotNil(t, gotPrice)
	assert.True(t, updated.DocsWithField.Equals(gotPrice.DocsWithField))
	for doc := range maxDoc {
		want, wantOK := updated.Get(doc)
		got, gotOK := gotPrice.Get(doc)
		assert.Equal(t, wantOK, gotOK)
		assert.Equal(t, want, got, "doc %d", doc)
	}

	gotColor, err := producer.Sorted(color)
	require.NoError(t, err)
	require.NotNil(t, gotColor)
	assert.Equal(t, sorted.Ords, gotColor.Ords)
	assert.Len(t, producer.(*docValuesReader).producers, 2)
}

func TestDocValuesFieldRoutedTwice(t *testing.T) {
	a, b := direct.New(), direct.New()
	calls := 0
	df := NewDocValuesFormat(func(string) format.DocValuesFormat {
		calls++
		if calls == 1 {
			return a
		}
		return b
	})
	fi := index.NewFieldInfo("n", 0, index.IndexOptionsNone, index.DocValuesNumeric)
	dc, err := df.FieldsConsumer(testutil.WriteState(t, store.NewRAMDirectory(), "_0", 2, fi))
	require.NoError(t, err)
	w := dc.(*docValuesWriter)
	_, err = w.consumerFor(fi)
	require.NoError(t, err)
	_, err = w.consumerFor(fi)
	assert.ErrorIs(t, err, codecerr.ErrIllegalState)
	require.NoError(t, dc.Close())
}
