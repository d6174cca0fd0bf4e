// Package vint stores postings as plain variable-length integers.
//
// Doc ids and frequencies go to the segment's .doc file, positions to its
// .pos file. A term is described by the file pointers of its first entry
// in each file: one long for fields without positions, two with.
package vint

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/postings"
	"github.com/hupe1980/segcodec/store"
)

const (
	termsCodec = "VIntPostingsTerms"
	docCodec   = "VIntPostingsDoc"
	posCodec   = "VIntPostingsPos"

	versionStart   = 0
	versionCurrent = versionStart

	// DocExtension is the extension of the doc and frequency file.
	DocExtension = "doc"
	// PosExtension is the extension of the position file.
	PosExtension = "pos"
)

type termState struct {
	postings.BlockTermState
	docStartFP int64
	posStartFP int64
}

func (s *termState) Base() *postings.BlockTermState { return &s.BlockTermState }

func (s *termState) Clone() postings.TermState {
	c := *s
	return &c
}

// Writer writes .doc and .pos files.
type Writer struct {
	docOut store.IndexOutput
	posOut store.IndexOutput

	opts         index.IndexOptions
	inTerm       bool
	termDocStart int64
	termPosStart int64
	docCount     int
	lastDoc      int
	lastPos      int

	lastDocFP int64
	lastPosFP int64
}

var _ postings.Writer = (*Writer)(nil)

// NewWriter creates the postings files of state. The .pos file is only
// created when a field indexes positions.
func NewWriter(state index.SegmentWriteState) (*Writer, error) {
	w := &Writer{}
	docOut, err := state.Directory.CreateOutput(state.FileName(DocExtension), state.Context)
	if err != nil {
		return nil, err
	}
	w.docOut = docOut
	if err := codecutil.WriteHeader(docOut, docCodec, versionCurrent); err != nil {
		ioutil.CloseWhileHandling(docOut)
		return nil, err
	}
	if postings.HasPositions(state.FieldInfos) {
		posOut, err := state.Directory.CreateOutput(state.FileName(PosExtension), state.Context)
		if err != nil {
			ioutil.CloseWhileHandling(docOut)
			return nil, err
		}
		w.posOut = posOut
		if err := codecutil.WriteHeader(posOut, posCodec, versionCurrent); err != nil {
			ioutil.CloseWhileHandling(docOut, posOut)
			return nil, err
		}
	}
	return w, nil
}

func (w *Writer) Init(termsOut store.IndexOutput) error {
	return codecutil.WriteHeader(termsOut, termsCodec, versionCurrent)
}

func (w *Writer) NewTermState() postings.TermState { return &termState{} }

func (w *Writer) SetField(fi *index.FieldInfo) (int, error) {
	if fi.IndexOptions.HasPositions() && w.posOut == nil {
		return 0, fmt.Errorf("%w: field %q indexes positions but the segment declares none",
			codecerr.ErrIllegalState, fi.Name)
	}
	w.opts = fi.IndexOptions
	w.lastDocFP, w.lastPosFP = 0, 0
	if w.opts.HasPositions() {
		return 2, nil
	}
	return 1, nil
}

func (w *Writer) StartTerm() error {
	w.inTerm = true
	w.termDocStart = w.docOut.FilePointer()
	if w.posOut != nil {
		w.termPosStart = w.posOut.FilePointer()
	}
	w.docCount, w.lastDoc = 0, 0
	return nil
}

func (w *Writer) StartDoc(docID, freq int) error {
	if !w.inTerm {
		return fmt.Errorf("%w: StartDoc outside a term", codecerr.ErrIllegalState)
	}
	if docID < 0 || docID < w.lastDoc || (w.docCount > 0 && docID == w.lastDoc) {
		return fmt.Errorf("%w: docs out of order (%d after %d)", codecerr.ErrIllegalArgument, docID, w.lastDoc)
	}
	if w.opts.HasFreqs() && freq <= 0 {
		return fmt.Errorf("%w: freq %d for doc %d", codecerr.ErrIllegalArgument, freq, docID)
	}
	delta := uint32(docID - w.lastDoc)
	w.lastDoc = docID
	w.docCount++
	w.lastPos = 0

	if !w.opts.HasFreqs() {
		return store.WriteVInt(w.docOut, delta)
	}
	if freq == 1 {
		return store.WriteVInt(w.docOut, delta<<1|1)
	}
	if err := store.WriteVInt(w.docOut, delta<<1); err != nil {
		return err
	}
	return store.WriteVInt(w.docOut, uint32(freq))
}

func (w *Writer) AddPosition(position int) error {
	if !w.opts.HasPositions() {
		return nil
	}
	if position < w.lastPos {
		return fmt.Errorf("%w: positions out of order (%d after %d)", codecerr.ErrIllegalArgument, position, w.lastPos)
	}
	if err := store.WriteVInt(w.posOut, uint32(position-w.lastPos)); err != nil {
		return err
	}
	w.lastPos = position
	return nil
}

func (w *Writer) FinishDoc() error { return nil }

func (w *Writer) FinishTerm(state postings.TermState) error {
	s, ok := state.(*termState)
	if !ok {
		return fmt.Errorf("%w: foreign term state %T", codecerr.ErrIllegalArgument, state)
	}
	if !w.inTerm {
		return fmt.Errorf("%w: FinishTerm without StartTerm", codecerr.ErrIllegalState)
	}
	w.inTerm = false
	if s.DocFreq != w.docCount {
		return fmt.Errorf("%w: docFreq %d but %d docs written", codecerr.ErrIllegalState, s.DocFreq, w.docCount)
	}
	s.docStartFP = w.termDocStart
	s.posStartFP = w.termPosStart
	return nil
}

func (w *Writer) EncodeTerm(longs []int64, _ store.DataOutput, fi *index.FieldInfo, state postings.TermState, absolute bool) error {
	s, ok := state.(*termState)
	if !ok {
		return fmt.Errorf("%w: foreign term state %T", codecerr.ErrIllegalArgument, state)
	}
	want := 1
	if fi.IndexOptions.HasPositions() {
		want = 2
	}
	if len(longs) != want {
		return fmt.Errorf("%w: %d longs for field %q, expected %d", codecerr.ErrIllegalArgument, len(longs), fi.Name, want)
	}
	if absolute {
		w.lastDocFP, w.lastPosFP = 0, 0
	}
	longs[0] = s.docStartFP - w.lastDocFP
	w.lastDocFP = s.docStartFP
	if want == 2 {
		longs[1] = s.posStartFP - w.lastPosFP
		w.lastPosFP = s.posStartFP
	}
	return nil
}

// Close writes the footers and closes both files.
func (w *Writer) Close() error {
	outs := []store.IndexOutput{w.docOut}
	if w.posOut != nil {
		outs = append(outs, w.posOut)
	}
	var errs []error
	for _, out := range outs {
		if err := codecutil.WriteFooter(out); err != nil {
			errs = append(errs, err)
		}
	}
	for _, out := range outs {
		if err := out.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reader reads .doc and .pos files.
type Reader struct {
	docIn store.IndexInput
	posIn store.IndexInput
}

var _ postings.Reader = (*Reader)(nil)

// NewReader opens the postings files of state and validates their headers
// and footer structure.
func NewReader(state index.SegmentReadState) (*Reader, error) {
	r := &Reader{}
	docIn, err := openChecked(state, DocExtension, docCodec)
	if err != nil {
		return nil, err
	}
	r.docIn = docIn
	if postings.HasPositions(state.FieldInfos) {
		posIn, err := openChecked(state, PosExtension, posCodec)
		if err != nil {
			ioutil.CloseWhileHandling(docIn)
			return nil, err
		}
		r.posIn = posIn
	}
	return r, nil
}

func openChecked(state index.SegmentReadState, ext, codec string) (store.IndexInput, error) {
	in, err := state.Directory.OpenInput(state.FileName(ext), state.Context)
	if err != nil {
		return nil, err
	}
	if _, err := codecutil.CheckHeader(in, codec, versionStart, versionCurrent); err != nil {
		ioutil.CloseWhileHandling(in)
		return nil, err
	}
	if _, err := codecutil.RetrieveChecksum(in.Clone()); err != nil {
		ioutil.CloseWhileHandling(in)
		return nil, err
	}
	return in, nil
}

func (r *Reader) Init(termsIn store.IndexInput) error {
	_, err := codecutil.CheckHeader(termsIn, termsCodec, versionStart, versionCurrent)
	return err
}

func (r *Reader) NewTermState() postings.TermState { return &termState{} }

func (r *Reader) DecodeTerm(longs []int64, in store.DataInput, fi *index.FieldInfo, state postings.TermState, absolute bool) error {
	s, ok := state.(*termState)
	if !ok {
		return fmt.Errorf("%w: foreign term state %T", codecerr.ErrIllegalArgument, state)
	}
	want := 1
	if fi.IndexOptions.HasPositions() {
		want = 2
	}
	if err := postings.CheckLongs(store.ResourceName(in), longs, want); err != nil {
		return err
	}
	if absolute {
		s.docStartFP, s.posStartFP = 0, 0
	}
	s.docStartFP += longs[0]
	if want == 2 {
		s.posStartFP += longs[1]
	}
	if s.docStartFP < 0 || s.docStartFP >= r.docIn.Length() {
		return codecerr.Corruptf(store.ResourceName(in), "doc pointer %d out of range for term of field %q", s.docStartFP, fi.Name)
	}
	if want == 2 && (r.posIn == nil || s.posStartFP < 0 || s.posStartFP >= r.posIn.Length()) {
		return codecerr.Corruptf(store.ResourceName(in), "position pointer %d out of range for term of field %q", s.posStartFP, fi.Name)
	}
	return nil
}

func (r *Reader) Postings(fi *index.FieldInfo, state postings.TermState) (format.PostingsEnum, error) {
	s, ok := state.(*termState)
	if !ok {
		return nil, fmt.Errorf("%w: foreign term state %T", codecerr.ErrIllegalArgument, state)
	}
	e := &postingsEnum{
		opts:    fi.IndexOptions,
		docFreq: s.DocFreq,
		docIn:   r.docIn.Clone(),
	}
	if err := e.docIn.Seek(s.docStartFP); err != nil {
		return nil, err
	}
	if fi.IndexOptions.HasPositions() {
		e.posIn = r.posIn.Clone()
		if err := e.posIn.Seek(s.posStartFP); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (r *Reader) CheckIntegrity() error {
	if _, err := codecutil.ChecksumEntireFile(r.docIn); err != nil {
		return err
	}
	if r.posIn != nil {
		if _, err := codecutil.ChecksumEntireFile(r.posIn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) Close() error {
	if r.posIn == nil {
		return r.docIn.Close()
	}
	return ioutil.CloseAll(r.docIn, r.posIn)
}

type postingsEnum struct {
	opts    index.IndexOptions
	docFreq int
	docIn   store.IndexInput
	posIn   store.IndexInput

	read    int
	doc     int
	freq    int
	posLeft int
	pos     int
}

func (e *postingsEnum) NextDoc() (int, error) {
	if e.read == e.docFreq {
		e.doc = format.NoMoreDocs
		return e.doc, nil
	}
	// Skip positions the caller did not consume.
	for ; e.posLeft > 0; e.posLeft-- {
		if _, err := store.ReadVInt(e.posIn); err != nil {
			return 0, err
		}
	}
	code, err := store.ReadVInt(e.docIn)
	if err != nil {
		return 0, err
	}
	e.freq = 1
	if e.opts.HasFreqs() {
		if code&1 == 0 {
			f, err := store.ReadVInt(e.docIn)
			if err != nil {
				return 0, err
			}
			if f == 0 {
				return 0, codecerr.Corruptf(e.docIn.Name(), "zero frequency")
			}
			e.freq = int(f)
		}
		code >>= 1
	}
	e.doc += int(code)
	e.read++
	if e.opts.HasPositions() {
		e.posLeft = e.freq
		e.pos = 0
	}
	return e.doc, nil
}

func (e *postingsEnum) Freq() int { return e.freq }

func (e *postingsEnum) NextPosition() (int, error) {
	if e.posLeft == 0 {
		return 0, fmt.Errorf("%w: no positions left in doc %d", codecerr.ErrIllegalState, e.doc)
	}
	delta, err := store.ReadVInt(e.posIn)
	if err != nil {
		return 0, err
	}
	e.posLeft--
	e.pos += int(delta)
	return e.pos, nil
}
