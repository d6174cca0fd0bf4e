// Package memory registers the "Memory" postings format.
//
// The whole inverted index of a segment is buffered while it is written,
// serialized into a single zstd-compressed block and stored in one framed
// .mem file. Readers load and verify the file at open and serve everything
// from memory afterwards.
package memory

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/compression"
	"github.com/hupe1980/segcodec/store"
)

const (
	// Name is the registered format name.
	Name = "Memory"
	// Extension is the extension of the postings file.
	Extension = "mem"

	codecName      = "MemoryPostings"
	versionStart   = 0
	versionCurrent = versionStart
)

// Format is the Memory postings format.
type Format struct {
	// Compression applied to the serialized segment.
	Compression compression.Type
}

var _ format.PostingsFormat = (*Format)(nil)

// New returns a Memory format compressing with zstd.
func New() *Format { return &Format{Compression: compression.ZSTD} }

// Name implements format.PostingsFormat.
func (f *Format) Name() string { return Name }

// FieldsConsumer implements format.PostingsFormat. Nothing is written until
// the consumer is closed.
func (f *Format) FieldsConsumer(state index.SegmentWriteState) (format.FieldsConsumer, error) {
	return &writer{state: state, compression: f.Compression}, nil
}

// FieldsProducer implements format.PostingsFormat.
func (f *Format) FieldsProducer(state index.SegmentReadState) (format.FieldsProducer, error) {
	return load(state)
}

func init() {
	format.RegisterPostingsFormat(New())
}

type fieldData struct {
	field    format.InvertedField
	sumTTF   int64
	sumDF    int64
	docCount int
}

type writer struct {
	state       index.SegmentWriteState
	compression compression.Type
	fields      []*fieldData
	current     *fieldWriter
	closed      bool
}

func (w *writer) AddField(fi *index.FieldInfo) (format.TermsConsumer, error) {
	if w.closed {
		return nil, fmt.Errorf("%w: memory postings writer closed", codecerr.ErrIllegalState)
	}
	if fi.IndexOptions == index.IndexOptionsNone {
		return nil, fmt.Errorf("%w: field %q is not indexed", codecerr.ErrIllegalArgument, fi.Name)
	}
	w.current = &fieldWriter{parent: w, data: &fieldData{field: format.InvertedField{Info: fi}}}
	return w.current, nil
}

type fieldWriter struct {
	parent *writer
	data   *fieldData
	term   *format.InvertedTerm
}

func (fw *fieldWriter) StartTerm(term []byte) (format.PostingsConsumer, error) {
	fw.term = &format.InvertedTerm{Term: slices.Clone(term)}
	return fw, nil
}

func (fw *fieldWriter) StartDoc(docID, freq int) error {
	if fw.term == nil {
		return fmt.Errorf("%w: memory postings: StartDoc(%d) outside a term", codecerr.ErrIllegalState, docID)
	}
	fw.term.Postings = append(fw.term.Postings, format.Posting{Doc: docID, Freq: freq})
	return nil
}

func (fw *fieldWriter) AddPosition(position int) error {
	if fw.term == nil || len(fw.term.Postings) == 0 {
		return fmt.Errorf("%w: memory postings: AddPosition(%d) outside a doc", codecerr.ErrIllegalState, position)
	}
	if !fw.data.field.Info.IndexOptions.HasPositions() {
		return nil
	}
	p := &fw.term.Postings[len(fw.term.Postings)-1]
	p.Positions = append(p.Positions, position)
	return nil
}

func (fw *fieldWriter) FinishDoc() error { return nil }

func (fw *fieldWriter) FinishTerm(_ []byte, _ format.TermStats) error {
	if fw.term == nil {
		return fmt.Errorf("%w: memory postings: FinishTerm without StartTerm", codecerr.ErrIllegalState)
	}
	fw.data.field.Terms = append(fw.data.field.Terms, *fw.term)
	fw.term = nil
	return nil
}

func (fw *fieldWriter) Finish(sumTotalTermFreq, sumDocFreq int64, docCount int) error {
	if len(fw.data.field.Terms) == 0 {
		return nil
	}
	if !fw.data.field.Info.IndexOptions.HasFreqs() {
		sumTotalTermFreq = -1
	}
	fw.data.sumTTF, fw.data.sumDF, fw.data.docCount = sumTotalTermFreq, sumDocFreq, docCount
	fw.parent.fields = append(fw.parent.fields, fw.data)
	return nil
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	buf := store.NewBuffer()
	if err := encode(buf, w.fields); err != nil {
		return err
	}
	out, err := w.state.Directory.CreateOutput(w.state.FileName(Extension), w.state.Context)
	if err != nil {
		return err
	}
	if err := writeFile(out, buf.Bytes(), w.compression); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeFile(out store.IndexOutput, payload []byte, t compression.Type) error {
	if err := codecutil.WriteHeader(out, codecName, versionCurrent); err != nil {
		return err
	}
	if err := compression.WriteBlock(out, payload, t); err != nil {
		return err
	}
	return codecutil.WriteFooter(out)
}

func encode(out *store.Buffer, fields []*fieldData) error {
	if err := store.WriteVInt(out, uint32(len(fields))); err != nil {
		return err
	}
	for _, fd := range fields {
		fi := fd.field.Info
		opts := fi.IndexOptions
		if err := store.WriteVInt(out, uint32(fi.Number)); err != nil {
			return err
		}
		if err := store.WriteVInt(out, uint32(len(fd.field.Terms))); err != nil {
			return err
		}
		if err := store.WriteZLong(out, fd.sumTTF); err != nil {
			return err
		}
		if err := store.WriteVLong(out, uint64(fd.sumDF)); err != nil {
			return err
		}
		if err := store.WriteVInt(out, uint32(fd.docCount)); err != nil {
			return err
		}
		for _, t := range fd.field.Terms {
			if err := store.WriteByteSlice(out, t.Term); err != nil {
				return err
			}
			if err := store.WriteVInt(out, uint32(len(t.Postings))); err != nil {
				return err
			}
			lastDoc := 0
			for _, p := range t.Postings {
				if err := store.WriteVInt(out, uint32(p.Doc-lastDoc)); err != nil {
					return err
				}
				lastDoc = p.Doc
				if !opts.HasFreqs() {
					continue
				}
				if err := store.WriteVInt(out, uint32(p.Freq)); err != nil {
					return err
				}
				lastPos := 0
				for _, pos := range p.Positions {
					if err := store.WriteVInt(out, uint32(pos-lastPos)); err != nil {
						return err
					}
					lastPos = pos
				}
			}
		}
	}
	return nil
}

type reader struct {
	fields map[string]*memTerms
	names  []string
}

func load(state index.SegmentReadState) (*reader, error) {
	in, err := store.OpenChecksumInput(state.Directory, state.FileName(Extension), state.Context)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	payload, err := readPayload(in)
	if err = codecutil.CheckFooterOnError(in, err); err != nil {
		return nil, err
	}
	r := &reader{fields: make(map[string]*memTerms)}
	if err := r.decode(store.NewByteReader(in.Name(), payload), state.FieldInfos); err != nil {
		return nil, err
	}
	slices.Sort(r.names)
	return r, nil
}

func readPayload(in *store.ChecksumIndexInput) ([]byte, error) {
	if _, err := codecutil.CheckHeader(in, codecName, versionStart, versionCurrent); err != nil {
		return nil, err
	}
	return compression.ReadBlock(in)
}

func (r *reader) decode(in *store.ByteReader, infos *index.FieldInfos) error {
	name := in.Name()
	n, err := store.ReadVInt(in)
	if err != nil {
		return err
	}
	for range n {
		num, err := store.ReadVInt(in)
		if err != nil {
			return err
		}
		fi := infos.ByNumber(int(num))
		if fi == nil {
			return codecerr.Corruptf(name, "unknown field number %d", num)
		}
		if _, dup := r.fields[fi.Name]; dup {
			return codecerr.Corruptf(name, "duplicate field %q", fi.Name)
		}
		mt, err := decodeField(in, fi)
		if err != nil {
			return err
		}
		r.fields[fi.Name] = mt
		r.names = append(r.names, fi.Name)
	}
	if !in.EOF() {
		return codecerr.Corruptf(name, "trailing bytes after %d fields", n)
	}
	return nil
}

func decodeField(in *store.ByteReader, fi *index.FieldInfo) (*memTerms, error) {
	name := in.Name()
	opts := fi.IndexOptions
	numTerms, err := store.ReadVInt(in)
	if err != nil {
		return nil, err
	}
	mt := &memTerms{field: format.InvertedField{Info: fi}}
	if mt.sumTTF, err = store.ReadZLong(in); err != nil {
		return nil, err
	}
	sumDF, err := store.ReadVLong(in)
	if err != nil {
		return nil, err
	}
	mt.sumDF = int64(sumDF)
	docCount, err := store.ReadVInt(in)
	if err != nil {
		return nil, err
	}
	mt.docCount = int(docCount)

	for range numTerms {
		term, err := store.ReadByteSlice(in)
		if err != nil {
			return nil, err
		}
		if k := len(mt.field.Terms); k > 0 && bytes.Compare(term, mt.field.Terms[k-1].Term) <= 0 {
			return nil, codecerr.Corruptf(name, "terms of field %q out of order at %q", fi.Name, term)
		}
		df, err := store.ReadVInt(in)
		if err != nil {
			return nil, err
		}
		if df == 0 {
			return nil, codecerr.Corruptf(name, "term %q of field %q has no postings", term, fi.Name)
		}
		t := format.InvertedTerm{Term: term, Postings: make([]format.Posting, df)}
		doc := 0
		for i := range t.Postings {
			delta, err := store.ReadVInt(in)
			if err != nil {
				return nil, err
			}
			doc += int(delta)
			p := format.Posting{Doc: doc, Freq: 1}
			if opts.HasFreqs() {
				f, err := store.ReadVInt(in)
				if err != nil {
					return nil, err
				}
				if f == 0 {
					return nil, codecerr.Corruptf(name, "zero frequency in term %q of field %q", term, fi.Name)
				}
				p.Freq = int(f)
			}
			if opts.HasPositions() {
				p.Positions = make([]int, p.Freq)
				pos := 0
				for j := range p.Positions {
					d, err := store.ReadVInt(in)
					if err != nil {
						return nil, err
					}
					pos += int(d)
					p.Positions[j] = pos
				}
			}
			t.Postings[i] = p
		}
		mt.field.Terms = append(mt.field.Terms, t)
	}
	return mt, nil
}

func (r *reader) Fields() []string { return slices.Clone(r.names) }

func (r *reader) Terms(field string) (format.Terms, error) {
	mt, ok := r.fields[field]
	if !ok {
		return nil, nil
	}
	return mt, nil
}

// CheckIntegrity is a no-op: the file was verified when it was loaded.
func (r *reader) CheckIntegrity() error { return nil }

func (r *reader) Close() error { return nil }
