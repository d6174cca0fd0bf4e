package termsdict

import (
	"bytes"
	"slices"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/postings"
	"github.com/hupe1980/segcodec/store"
)

// Reader is a format.FieldsProducer over a terms file.
type Reader struct {
	in     store.IndexInput
	pr     postings.Reader
	fields map[string]*fieldTerms
	names  []string
}

var _ format.FieldsProducer = (*Reader)(nil)

// NewReader opens the terms file of state and loads every field. On success
// the Reader owns pr; on failure pr is left open.
func NewReader(state index.SegmentReadState, pr postings.Reader) (*Reader, error) {
	in, err := state.Directory.OpenInput(state.FileName(Extension), state.Context)
	if err != nil {
		return nil, err
	}
	r := &Reader{in: in, pr: pr, fields: make(map[string]*fieldTerms)}
	if err := r.load(state); err != nil {
		ioutil.CloseWhileHandling(in)
		return nil, err
	}
	return r, nil
}

func (r *Reader) load(state index.SegmentReadState) error {
	if _, err := codecutil.CheckHeader(r.in, codecName, versionStart, versionCurrent); err != nil {
		return err
	}
	if err := r.pr.Init(r.in); err != nil {
		return err
	}
	if _, err := codecutil.RetrieveChecksum(r.in.Clone()); err != nil {
		return err
	}
	entries, err := r.readDirectory(state)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fi := state.FieldInfos.ByNumber(e.number)
		ft, err := r.loadField(fi, e)
		if err != nil {
			return err
		}
		r.fields[fi.Name] = ft
		r.names = append(r.names, fi.Name)
	}
	slices.Sort(r.names)
	return nil
}

func (r *Reader) readDirectory(state index.SegmentReadState) ([]fieldEntry, error) {
	in := r.in.Clone()
	defer in.Close()

	name := in.Name()
	trailer := in.Length() - codecutil.FooterLength - 8
	if trailer < 0 {
		return nil, codecerr.Corruptf(name, "file too short for a field directory")
	}
	if err := in.Seek(trailer); err != nil {
		return nil, err
	}
	dirStart, err := store.ReadInt64(in)
	if err != nil {
		return nil, err
	}
	if dirStart < 0 || dirStart > trailer {
		return nil, codecerr.Corruptf(name, "field directory offset %d out of range", dirStart)
	}
	if err := in.Seek(dirStart); err != nil {
		return nil, err
	}
	n, err := store.ReadVInt(in)
	if err != nil {
		return nil, err
	}
	if int(n) > state.FieldInfos.Len() {
		return nil, codecerr.Corruptf(name, "%d fields in directory but %d field infos", n, state.FieldInfos.Len())
	}
	seen := make(map[int]bool, n)
	entries := make([]fieldEntry, 0, n)
	for range n {
		var e fieldEntry
		var vals [3]uint64
		for i := range vals {
			if vals[i], err = store.ReadVLong(in); err != nil {
				return nil, err
			}
		}
		e.number, e.numTerms, e.startFP = int(vals[0]), int64(vals[1]), int64(vals[2])
		if e.sumTTF, err = store.ReadZLong(in); err != nil {
			return nil, err
		}
		sumDF, err := store.ReadVLong(in)
		if err != nil {
			return nil, err
		}
		e.sumDF = int64(sumDF)
		docCount, err := store.ReadVInt(in)
		if err != nil {
			return nil, err
		}
		e.docCount = int(docCount)
		longsSize, err := store.ReadVInt(in)
		if err != nil {
			return nil, err
		}
		e.longsSize = int(longsSize)

		fi := state.FieldInfos.ByNumber(e.number)
		switch {
		case fi == nil:
			return nil, codecerr.Corruptf(name, "unknown field number %d", e.number)
		case seen[e.number]:
			return nil, codecerr.Corruptf(name, "duplicate field %q", fi.Name)
		case e.numTerms <= 0:
			return nil, codecerr.Corruptf(name, "field %q has %d terms", fi.Name, e.numTerms)
		case e.startFP < 0 || e.startFP >= dirStart:
			return nil, codecerr.Corruptf(name, "field %q starts at %d beyond directory %d", fi.Name, e.startFP, dirStart)
		case e.sumDF < int64(e.docCount):
			return nil, codecerr.Corruptf(name, "field %q: sumDocFreq %d < docCount %d", fi.Name, e.sumDF, e.docCount)
		case fi.IndexOptions.HasFreqs() && e.sumTTF < e.sumDF:
			return nil, codecerr.Corruptf(name, "field %q: sumTotalTermFreq %d < sumDocFreq %d", fi.Name, e.sumTTF, e.sumDF)
		case !fi.IndexOptions.HasFreqs() && e.sumTTF != -1:
			return nil, codecerr.Corruptf(name, "field %q without frequencies has sumTotalTermFreq %d", fi.Name, e.sumTTF)
		case state.DocCount > 0 && e.docCount > state.DocCount:
			return nil, codecerr.Corruptf(name, "field %q: docCount %d exceeds segment size %d", fi.Name, e.docCount, state.DocCount)
		}
		seen[e.number] = true
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Reader) loadField(fi *index.FieldInfo, e fieldEntry) (*fieldTerms, error) {
	in := r.in.Clone()
	defer in.Close()
	name := in.Name()

	if err := in.Seek(e.startFP); err != nil {
		return nil, err
	}
	ft := &fieldTerms{
		reader: r,
		fi:     fi,
		entry:  e,
		terms:  make([]termEntry, 0, e.numTerms),
	}
	hasFreqs := fi.IndexOptions.HasFreqs()
	longs := make([]int64, e.longsSize)
	extra := store.NewByteReader(name, nil)
	running := r.pr.NewTermState()

	for i := range e.numTerms {
		term, err := store.ReadByteSlice(in)
		if err != nil {
			return nil, err
		}
		if i > 0 && bytes.Compare(term, ft.terms[i-1].term) <= 0 {
			return nil, codecerr.Corruptf(name, "terms of field %q out of order at %q", fi.Name, term)
		}
		df, err := store.ReadVInt(in)
		if err != nil {
			return nil, err
		}
		if df == 0 {
			return nil, codecerr.Corruptf(name, "term %q of field %q has docFreq 0", term, fi.Name)
		}
		ttf := int64(-1)
		if hasFreqs {
			d, err := store.ReadVLong(in)
			if err != nil {
				return nil, err
			}
			ttf = int64(df) + int64(d)
		}
		for j := range longs {
			v, err := store.ReadVLong(in)
			if err != nil {
				return nil, err
			}
			longs[j] = int64(v)
		}
		extraBytes, err := store.ReadByteSlice(in)
		if err != nil {
			return nil, err
		}
		extra.Reset(extraBytes)

		base := running.Base()
		base.DocFreq, base.TotalTermFreq = int(df), ttf
		if err := r.pr.DecodeTerm(longs, extra, fi, running, i == 0); err != nil {
			return nil, err
		}
		if !extra.EOF() {
			return nil, codecerr.Corruptf(name, "term %q of field %q: %d unread metadata bytes",
				term, fi.Name, len(extraBytes)-extra.Pos())
		}
		ft.terms = append(ft.terms, termEntry{term: term, state: running.Clone()})
	}
	return ft, nil
}

// Fields implements format.FieldsProducer.
func (r *Reader) Fields() []string { return slices.Clone(r.names) }

// Terms implements format.FieldsProducer.
func (r *Reader) Terms(field string) (format.Terms, error) {
	ft, ok := r.fields[field]
	if !ok {
		return nil, nil
	}
	return ft, nil
}

// CheckIntegrity verifies the terms file and the postings files.
func (r *Reader) CheckIntegrity() error {
	if _, err := codecutil.ChecksumEntireFile(r.in); err != nil {
		return err
	}
	return r.pr.CheckIntegrity()
}

// Close closes the terms file and the postings reader.
func (r *Reader) Close() error {
	return ioutil.CloseAll(r.in, r.pr)
}

type termEntry struct {
	term  []byte
	state postings.TermState
}

type fieldTerms struct {
	reader *Reader
	fi     *index.FieldInfo
	entry  fieldEntry
	terms  []termEntry
}

func (f *fieldTerms) Iterator() (format.TermsEnum, error) {
	return &termsEnum{field: f, ord: -1}, nil
}

func (f *fieldTerms) Size() int64             { return int64(len(f.terms)) }
func (f *fieldTerms) SumDocFreq() int64       { return f.entry.sumDF }
func (f *fieldTerms) SumTotalTermFreq() int64 { return f.entry.sumTTF }
func (f *fieldTerms) DocCount() int           { return f.entry.docCount }

type termsEnum struct {
	field *fieldTerms
	ord   int
}

func (e *termsEnum) Next() ([]byte, error) {
	if e.ord+1 >= len(e.field.terms) {
		e.ord = len(e.field.terms)
		return nil, nil
	}
	e.ord++
	return e.field.terms[e.ord].term, nil
}

func (e *termsEnum) SeekExact(term []byte) (bool, error) {
	i, found := slices.BinarySearchFunc(e.field.terms, term, func(t termEntry, target []byte) int {
		return bytes.Compare(t.term, target)
	})
	if found {
		e.ord = i
	}
	return found, nil
}

func (e *termsEnum) current() *termEntry {
	if e.ord < 0 || e.ord >= len(e.field.terms) {
		return nil
	}
	return &e.field.terms[e.ord]
}

func (e *termsEnum) Term() []byte {
	if t := e.current(); t != nil {
		return t.term
	}
	return nil
}

func (e *termsEnum) DocFreq() int {
	if t := e.current(); t != nil {
		return t.state.Base().DocFreq
	}
	return 0
}

func (e *termsEnum) TotalTermFreq() int64 {
	if t := e.current(); t != nil {
		return t.state.Base().TotalTermFreq
	}
	return 0
}

func (e *termsEnum) Postings() (format.PostingsEnum, error) {
	t := e.current()
	if t == nil {
		return nil, errUnpositioned
	}
	return e.field.reader.pr.Postings(e.field.fi, t.state)
}
