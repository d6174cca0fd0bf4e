// Package jsondv registers the "JSON" doc values format: every field of a
// segment as one human-readable JSON document inside a framed .dvj file.
//
// The JSON implementation that wrote the file is recorded in it and picked
// by name when reading.
package jsondv

import (
	"bytes"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/jsoncodec"
	"github.com/hupe1980/segcodec/store"
)

const (
	// Name is the registered format name.
	Name = "JSON"
	// Extension is the extension of the values file.
	Extension = "dvj"

	codecName      = "JSONDocValues"
	versionStart   = 0
	versionCurrent = versionStart
)

// Format is the JSON doc values format.
type Format struct {
	Codec jsoncodec.Codec
}

var _ format.DocValuesFormat = (*Format)(nil)

// New returns a JSON format writing with jsoncodec.Default.
func New() *Format { return &Format{Codec: jsoncodec.Default} }

// Name implements format.DocValuesFormat.
func (f *Format) Name() string { return Name }

// FieldsConsumer implements format.DocValuesFormat. Nothing is written until
// the consumer is closed.
func (f *Format) FieldsConsumer(state index.SegmentWriteState) (format.DocValuesConsumer, error) {
	c := f.Codec
	if c == nil {
		c = jsoncodec.Default
	}
	return &consumer{state: state, codec: c, doc: document{MaxDoc: state.DocCount}}, nil
}

// FieldsProducer implements format.DocValuesFormat.
func (f *Format) FieldsProducer(state index.SegmentReadState) (format.DocValuesProducer, error) {
	return load(state)
}

func init() {
	format.RegisterDocValuesFormat(New())
}

type document struct {
	MaxDoc int         `json:"max_doc"`
	Fields []jsonField `json:"fields"`
}

type jsonField struct {
	Number  int      `json:"number"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	MaxDoc  int      `json:"max_doc"`
	Docs    []uint32 `json:"docs"`
	Numeric []int64  `json:"numeric,omitempty"`
	Binary  [][]byte `json:"binary,omitempty"`
	Terms   [][]byte `json:"terms,omitempty"`
	Ords    []int    `json:"ords,omitempty"`
}

type consumer struct {
	state  index.SegmentWriteState
	codec  jsoncodec.Codec
	doc    document
	seen   map[int]bool
	closed bool
}

func (c *consumer) add(fi *index.FieldInfo, want index.DocValuesType, maxDoc int, docs *roaring.Bitmap) (*jsonField, error) {
	if c.seen == nil {
		c.seen = make(map[int]bool)
	}
	switch {
	case c.closed:
		return nil, fmt.Errorf("%w: doc values consumer closed", codecerr.ErrIllegalState)
	case fi.DocValuesType != want:
		return nil, fmt.Errorf("%w: field %q has doc values type %s, not %s", codecerr.ErrIllegalArgument, fi.Name, fi.DocValuesType, want)
	case c.seen[fi.Number]:
		return nil, fmt.Errorf("%w: field %q written twice", codecerr.ErrIllegalState, fi.Name)
	case c.doc.MaxDoc > 0 && maxDoc != c.doc.MaxDoc:
		return nil, fmt.Errorf("%w: field %q has %d slots for %d documents", codecerr.ErrIllegalArgument, fi.Name, maxDoc, c.doc.MaxDoc)
	}
	c.seen[fi.Number] = true
	c.doc.Fields = append(c.doc.Fields, jsonField{
		Number: fi.Number,
		Name:   fi.Name,
		Type:   want.String(),
		MaxDoc: maxDoc,
		Docs:   docs.ToArray(),
	})
	return &c.doc.Fields[len(c.doc.Fields)-1], nil
}

func (c *consumer) AddNumericField(fi *index.FieldInfo, values *format.NumericValues) error {
	f, err := c.add(fi, index.DocValuesNumeric, len(values.Values), values.DocsWithField)
	if err != nil {
		return err
	}
	for _, doc := range f.Docs {
		f.Numeric = append(f.Numeric, values.Values[doc])
	}
	return nil
}

func (c *consumer) AddBinaryField(fi *index.FieldInfo, values *format.BinaryValues) error {
	f, err := c.add(fi, index.DocValuesBinary, len(values.Values), values.DocsWithField)
	if err != nil {
		return err
	}
	for _, doc := range f.Docs {
		f.Binary = append(f.Binary, values.Values[doc])
	}
	return nil
}

func (c *consumer) AddSortedField(fi *index.FieldInfo, values *format.SortedValues) error {
	f, err := c.add(fi, index.DocValuesSorted, len(values.Ords), values.DocsWithField)
	if err != nil {
		return err
	}
	f.Terms = values.Terms
	for _, doc := range f.Docs {
		f.Ords = append(f.Ords, values.Ords[doc])
	}
	return nil
}

// Close marshals every field and writes the file.
func (c *consumer) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	payload, err := c.codec.Marshal(c.doc)
	if err != nil {
		return fmt.Errorf("jsondv: marshal: %w", err)
	}
	out, err := c.state.Directory.CreateOutput(c.state.FileName(Extension), c.state.Context)
	if err != nil {
		return err
	}
	if err := writeFile(out, c.codec.Name(), payload); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeFile(out store.IndexOutput, codec string, payload []byte) error {
	if err := codecutil.WriteHeader(out, codecName, versionCurrent); err != nil {
		return err
	}
	if err := store.WriteString(out, codec); err != nil {
		return err
	}
	if err := store.WriteByteSlice(out, payload); err != nil {
		return err
	}
	return codecutil.WriteFooter(out)
}

type producer struct {
	byNumber map[int]*jsonField
}

func load(state index.SegmentReadState) (*producer, error) {
	in, err := store.OpenChecksumInput(state.Directory, state.FileName(Extension), state.Context)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	codec, payload, err := readFile(in)
	if err = codecutil.CheckFooterOnError(in, err); err != nil {
		return nil, err
	}
	var doc document
	if err := codec.Unmarshal(payload, &doc); err != nil {
		return nil, codecerr.NewCorrupt(in.Name(), "invalid JSON payload", err)
	}
	if state.DocCount > 0 && doc.MaxDoc > 0 && doc.MaxDoc != state.DocCount {
		return nil, codecerr.Corruptf(in.Name(), "written for %d documents, segment has %d", doc.MaxDoc, state.DocCount)
	}
	p := &producer{byNumber: make(map[int]*jsonField, len(doc.Fields))}
	for i := range doc.Fields {
		f := &doc.Fields[i]
		if err := validate(in.Name(), f, state.FieldInfos); err != nil {
			return nil, err
		}
		if _, dup := p.byNumber[f.Number]; dup {
			return nil, codecerr.Corruptf(in.Name(), "duplicate field %q", f.Name)
		}
		p.byNumber[f.Number] = f
	}
	return p, nil
}

func readFile(in *store.ChecksumIndexInput) (jsoncodec.Codec, []byte, error) {
	if _, err := codecutil.CheckHeader(in, codecName, versionStart, versionCurrent); err != nil {
		return nil, nil, err
	}
	name, err := store.ReadString(in)
	if err != nil {
		return nil, nil, err
	}
	codec, ok := jsoncodec.ByName(name)
	if !ok {
		return nil, nil, codecerr.Corruptf(in.Name(), "unknown JSON codec %q", name)
	}
	payload, err := store.ReadByteSlice(in)
	if err != nil {
		return nil, nil, err
	}
	return codec, payload, nil
}

func validate(resource string, f *jsonField, infos *index.FieldInfos) error {
	fi := infos.ByNumber(f.Number)
	if fi == nil || fi.Name != f.Name {
		return codecerr.Corruptf(resource, "field %d (%q) is not in the segment", f.Number, f.Name)
	}
	if f.Type != fi.DocValuesType.String() {
		return codecerr.Corruptf(resource, "field %q stored as %s but declared %s", f.Name, f.Type, fi.DocValuesType)
	}
	for i, doc := range f.Docs {
		if int(doc) >= f.MaxDoc || (i > 0 && doc <= f.Docs[i-1]) {
			return codecerr.Corruptf(resource, "field %q: bad doc list at %d", f.Name, i)
		}
	}
	n := len(f.Docs)
	switch fi.DocValuesType {
	case index.DocValuesNumeric:
		if len(f.Numeric) != n {
			return codecerr.Corruptf(resource, "field %q: %d values for %d docs", f.Name, len(f.Numeric), n)
		}
	case index.DocValuesBinary:
		if len(f.Binary) != n {
			return codecerr.Corruptf(resource, "field %q: %d values for %d docs", f.Name, len(f.Binary), n)
		}
	case index.DocValuesSorted:
		if len(f.Ords) != n {
			return codecerr.Corruptf(resource, "field %q: %d ords for %d docs", f.Name, len(f.Ords), n)
		}
		for i, t := range f.Terms {
			if i > 0 && bytes.Compare(t, f.Terms[i-1]) <= 0 {
				return codecerr.Corruptf(resource, "field %q: sorted terms out of order", f.Name)
			}
		}
		for _, ord := range f.Ords {
			if ord < 0 || ord >= len(f.Terms) {
				return codecerr.Corruptf(resource, "field %q: ord %d of %d terms", f.Name, ord, len(f.Terms))
			}
		}
	}
	return nil
}

func (p *producer) field(fi *index.FieldInfo, want index.DocValuesType) (*jsonField, error) {
	f, ok := p.byNumber[fi.Number]
	if !ok {
		return nil, nil
	}
	if fi.DocValuesType != want {
		return nil, fmt.Errorf("%w: field %q has %s doc values, not %s", codecerr.ErrIllegalArgument, fi.Name, fi.DocValuesType, want)
	}
	return f, nil
}

func (p *producer) Numeric(fi *index.FieldInfo) (*format.NumericValues, error) {
	f, err := p.field(fi, index.DocValuesNumeric)
	if f == nil || err != nil {
		return nil, err
	}
	v := format.NewNumericValues(f.MaxDoc)
	for i, doc := range f.Docs {
		v.Set(int(doc), f.Numeric[i])
	}
	return v, nil
}

func (p *producer) Binary(fi *index.FieldInfo) (*format.BinaryValues, error) {
	f, err := p.field(fi, index.DocValuesBinary)
	if f == nil || err != nil {
		return nil, err
	}
	v := format.NewBinaryValues(f.MaxDoc)
	for i, doc := range f.Docs {
		v.Set(int(doc), f.Binary[i])
	}
	return v, nil
}

func (p *producer) Sorted(fi *index.FieldInfo) (*format.SortedValues, error) {
	f, err := p.field(fi, index.DocValuesSorted)
	if f == nil || err != nil {
		return nil, err
	}
	v := &format.SortedValues{DocsWithField: roaring.BitmapOf(f.Docs...), Terms: f.Terms, Ords: make([]int, f.MaxDoc)}
	for i := range v.Ords {
		v.Ords[i] = -1
	}
	for i, doc := range f.Docs {
		v.Ords[doc] = f.Ords[i]
	}
	return v, nil
}

// CheckIntegrity is a no-op: the file was verified when it was loaded.
func (p *producer) CheckIntegrity() error { return nil }

func (p *producer) Close() error { return nil }
