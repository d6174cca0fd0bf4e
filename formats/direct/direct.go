// Package direct registers the "Direct" doc values format.
//
// Values are written to a .dvd data file, one compressed block per field,
// and located through a .dvm metadata file that is loaded eagerly on open.
// The documents with a value are kept as a serialized roaring bitmap in
// front of each field's data.
package direct

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/compression"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/store"
)

const (
	// Name is the registered format name.
	Name = "Direct"

	DataExtension = "dvd"
	MetaExtension = "dvm"

	dataCodec      = "DirectDocValuesData"
	metaCodec      = "DirectDocValuesMeta"
	versionStart   = 0
	versionCurrent = versionStart
)

// Format is the Direct doc values format.
type Format struct {
	// Compression applied to each field's value block.
	Compression compression.Type
}

var _ format.DocValuesFormat = (*Format)(nil)

// New returns a Direct format compressing with lz4.
func New() *Format { return &Format{Compression: compression.LZ4} }

// Name implements format.DocValuesFormat.
func (f *Format) Name() string { return Name }

// FieldsConsumer implements format.DocValuesFormat.
func (f *Format) FieldsConsumer(state index.SegmentWriteState) (format.DocValuesConsumer, error) {
	return newConsumer(state, f.Compression)
}

// FieldsProducer implements format.DocValuesFormat.
func (f *Format) FieldsProducer(state index.SegmentReadState) (format.DocValuesProducer, error) {
	return newProducer(state)
}

func init() {
	format.RegisterDocValuesFormat(New())
}

type consumer struct {
	data        store.IndexOutput
	meta        store.IndexOutput
	maxDoc      int
	compression compression.Type
	seen        map[int]bool
	closed      bool
}

func newConsumer(state index.SegmentWriteState, t compression.Type) (*consumer, error) {
	data, err := state.Directory.CreateOutput(state.FileName(DataExtension), state.Context)
	if err != nil {
		return nil, err
	}
	meta, err := state.Directory.CreateOutput(state.FileName(MetaExtension), state.Context)
	if err != nil {
		ioutil.CloseWhileHandling(data)
		return nil, err
	}
	c := &consumer{data: data, meta: meta, maxDoc: state.DocCount, compression: t, seen: make(map[int]bool)}
	if err := codecutil.WriteHeader(data, dataCodec, versionCurrent); err != nil {
		ioutil.CloseWhileHandling(data, meta)
		return nil, err
	}
	if err := codecutil.WriteHeader(meta, metaCodec, versionCurrent); err != nil {
		ioutil.CloseWhileHandling(data, meta)
		return nil, err
	}
	return c, nil
}

func (c *consumer) startField(fi *index.FieldInfo, want index.DocValuesType, maxDoc int, docs *roaring.Bitmap) error {
	switch {
	case c.closed:
		return fmt.Errorf("%w: doc values consumer closed", codecerr.ErrIllegalState)
	case fi.DocValuesType != want:
		return fmt.Errorf("%w: field %q has doc values type %s, not %s", codecerr.ErrIllegalArgument, fi.Name, fi.DocValuesType, want)
	case c.seen[fi.Number]:
		return fmt.Errorf("%w: field %q written twice", codecerr.ErrIllegalState, fi.Name)
	case c.maxDoc > 0 && maxDoc != c.maxDoc:
		return fmt.Errorf("%w: field %q has %d slots for %d documents", codecerr.ErrIllegalArgument, fi.Name, maxDoc, c.maxDoc)
	case !docs.IsEmpty() && int(docs.Maximum()) >= maxDoc:
		return fmt.Errorf("%w: field %q has a value for doc %d beyond %d documents", codecerr.ErrIllegalArgument, fi.Name, docs.Maximum(), maxDoc)
	}
	c.seen[fi.Number] = true
	if err := store.WriteZLong(c.meta, int64(fi.Number)); err != nil {
		return err
	}
	if err := c.meta.WriteByte(byte(want)); err != nil {
		return err
	}
	if err := store.WriteVLong(c.meta, uint64(c.data.FilePointer())); err != nil {
		return err
	}
	if err := store.WriteVInt(c.data, uint32(maxDoc)); err != nil {
		return err
	}
	bm, err := docs.ToBytes()
	if err != nil {
		return err
	}
	return store.WriteByteSlice(c.data, bm)
}

func (c *consumer) AddNumericField(fi *index.FieldInfo, values *format.NumericValues) error {
	if err := c.startField(fi, index.DocValuesNumeric, len(values.Values), values.DocsWithField); err != nil {
		return err
	}
	buf := store.NewBuffer()
	it := values.DocsWithField.Iterator()
	for it.HasNext() {
		if err := store.WriteZLong(buf, values.Values[it.Next()]); err != nil {
			return err
		}
	}
	return compression.WriteBlock(c.data, buf.Bytes(), c.compression)
}

func (c *consumer) AddBinaryField(fi *index.FieldInfo, values *format.BinaryValues) error {
	if err := c.startField(fi, index.DocValuesBinary, len(values.Values), values.DocsWithField); err != nil {
		return err
	}
	buf := store.NewBuffer()
	it := values.DocsWithField.Iterator()
	for it.HasNext() {
		if err := store.WriteByteSlice(buf, values.Values[it.Next()]); err != nil {
			return err
		}
	}
	return compression.WriteBlock(c.data, buf.Bytes(), c.compression)
}

func (c *consumer) AddSortedField(fi *index.FieldInfo, values *format.SortedValues) error {
	if err := c.startField(fi, index.DocValuesSorted, len(values.Ords), values.DocsWithField); err != nil {
		return err
	}
	terms := store.NewBuffer()
	if err := store.WriteVInt(terms, uint32(len(values.Terms))); err != nil {
		return err
	}
	for _, t := range values.Terms {
		if err := store.WriteByteSlice(terms, t); err != nil {
			return err
		}
	}
	if err := compression.WriteBlock(c.data, terms.Bytes(), c.compression); err != nil {
		return err
	}
	ords := store.NewBuffer()
	it := values.DocsWithField.Iterator()
	for it.HasNext() {
		doc := it.Next()
		ord := values.Ords[doc]
		if ord < 0 || ord >= len(values.Terms) {
			return fmt.Errorf("%w: field %q doc %d has ord %d of %d terms", codecerr.ErrIllegalArgument, fi.Name, doc, ord, len(values.Terms))
		}
		if err := store.WriteVInt(ords, uint32(ord)); err != nil {
			return err
		}
	}
	return compression.WriteBlock(c.data, ords.Bytes(), c.compression)
}

// Close terminates the metadata, writes both footers and closes both files.
func (c *consumer) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.finish()
	if err != nil {
		ioutil.CloseWhileHandling(c.data, c.meta)
		return err
	}
	return ioutil.CloseAll(c.data, c.meta)
}

func (c *consumer) finish() error {
	if err := store.WriteZLong(c.meta, -1); err != nil {
		return err
	}
	if err := codecutil.WriteFooter(c.meta); err != nil {
		return err
	}
	return codecutil.WriteFooter(c.data)
}
