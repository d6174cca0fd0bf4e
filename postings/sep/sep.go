// Package sep stores doc ids, frequencies and positions in three separate
// integer block streams.
//
// The stream encoding is pluggable through an intblock.StreamFactory. A term
// is described entirely by the stream positions of its first entries, which
// are written as extra bytes; the longs vector is empty.
package sep

import (
	"fmt"
	"io"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/intblock"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/postings"
	"github.com/hupe1980/segcodec/store"
)

const (
	termsCodec     = "SepPostingsTerms"
	versionStart   = 0
	versionCurrent = versionStart

	DocExtension  = "doc"
	FreqExtension = "frq"
	PosExtension  = "pos"
)

type termState struct {
	postings.BlockTermState
	docIndex  intblock.InputIndex
	freqIndex intblock.InputIndex
	posIndex  intblock.InputIndex

	// Write side only.
	docMark  intblock.OutputIndex
	freqMark intblock.OutputIndex
	posMark  intblock.OutputIndex
}

func (s *termState) Base() *postings.BlockTermState { return &s.BlockTermState }

func (s *termState) Clone() postings.TermState {
	c := &termState{BlockTermState: s.BlockTermState}
	if s.docIndex != nil {
		c.docIndex = s.docIndex.Clone()
	}
	if s.freqIndex != nil {
		c.freqIndex = s.freqIndex.Clone()
	}
	if s.posIndex != nil {
		c.posIndex = s.posIndex.Clone()
	}
	return c
}

// Writer writes postings through three integer streams.
type Writer struct {
	docOut  intblock.Output
	freqOut intblock.Output
	posOut  intblock.Output

	// Current term start, marked by StartTerm.
	docIndex  intblock.OutputIndex
	freqIndex intblock.OutputIndex
	posIndex  intblock.OutputIndex

	// Baselines for relative encoding.
	lastDocIndex  intblock.OutputIndex
	lastFreqIndex intblock.OutputIndex
	lastPosIndex  intblock.OutputIndex

	opts     index.IndexOptions
	inTerm   bool
	docCount int
	lastDoc  int
	lastPos  int
}

var _ postings.Writer = (*Writer)(nil)

// NewWriter creates the streams of state through factory. Frequency and
// position streams are only created when some field needs them.
func NewWriter(state index.SegmentWriteState, factory intblock.StreamFactory) (*Writer, error) {
	w := &Writer{}
	var err error
	if w.docOut, err = factory.CreateOutput(state.Directory, state.FileName(DocExtension), state.Context); err != nil {
		return nil, err
	}
	w.docIndex, w.lastDocIndex = w.docOut.Index(), w.docOut.Index()

	if postings.HasFreqs(state.FieldInfos) {
		if w.freqOut, err = factory.CreateOutput(state.Directory, state.FileName(FreqExtension), state.Context); err != nil {
			ioutil.CloseWhileHandling(w.docOut)
			return nil, err
		}
		w.freqIndex, w.lastFreqIndex = w.freqOut.Index(), w.freqOut.Index()
	}
	if postings.HasPositions(state.FieldInfos) {
		if w.posOut, err = factory.CreateOutput(state.Directory, state.FileName(PosExtension), state.Context); err != nil {
			ioutil.CloseWhileHandling(w.docOut, w.freqOut)
			return nil, err
		}
		w.posIndex, w.lastPosIndex = w.posOut.Index(), w.posOut.Index()
	}
	return w, nil
}

func (w *Writer) Init(termsOut store.IndexOutput) error {
	return codecutil.WriteHeader(termsOut, termsCodec, versionCurrent)
}

func (w *Writer) NewTermState() postings.TermState { return &termState{} }

func (w *Writer) SetField(fi *index.FieldInfo) (int, error) {
	if (fi.IndexOptions.HasFreqs() && w.freqOut == nil) || (fi.IndexOptions.HasPositions() && w.posOut == nil) {
		return 0, fmt.Errorf("%w: field %q needs streams the segment did not declare",
			codecerr.ErrIllegalState, fi.Name)
	}
	w.opts = fi.IndexOptions
	return 0, nil
}

func (w *Writer) StartTerm() error {
	w.inTerm = true
	w.docIndex.Mark()
	if w.opts.HasFreqs() {
		w.freqIndex.Mark()
	}
	if w.opts.HasPositions() {
		w.posIndex.Mark()
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
	if err := w.docOut.Write(docID - w.lastDoc); err != nil {
		return err
	}
	w.lastDoc = docID
	w.docCount++
	w.lastPos = 0
	if w.opts.HasFreqs() {
		return w.freqOut.Write(freq)
	}
	return nil
}

func (w *Writer) AddPosition(position int) error {
	if !w.opts.HasPositions() {
		return nil
	}
	if position < w.lastPos {
		return fmt.Errorf("%w: positions out of order (%d after %d)", codecerr.ErrIllegalArgument, position, w.lastPos)
	}
	if err := w.posOut.Write(position - w.lastPos); err != nil {
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
	s.docMark = w.docOut.Index()
	if err := s.docMark.CopyFrom(w.docIndex, false); err != nil {
		return err
	}
	if w.opts.HasFreqs() {
		s.freqMark = w.freqOut.Index()
		if err := s.freqMark.CopyFrom(w.freqIndex, false); err != nil {
			return err
		}
	}
	if w.opts.HasPositions() {
		s.posMark = w.posOut.Index()
		if err := s.posMark.CopyFrom(w.posIndex, false); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) EncodeTerm(longs []int64, out store.DataOutput, fi *index.FieldInfo, state postings.TermState, absolute bool) error {
	s, ok := state.(*termState)
	if !ok {
		return fmt.Errorf("%w: foreign term state %T", codecerr.ErrIllegalArgument, state)
	}
	if len(longs) != 0 {
		return fmt.Errorf("%w: %d longs for field %q, expected none", codecerr.ErrIllegalArgument, len(longs), fi.Name)
	}
	if err := encodeIndex(w.lastDocIndex, s.docMark, out, absolute); err != nil {
		return err
	}
	if fi.IndexOptions.HasFreqs() {
		if err := encodeIndex(w.lastFreqIndex, s.freqMark, out, absolute); err != nil {
			return err
		}
	}
	if fi.IndexOptions.HasPositions() {
		if err := encodeIndex(w.lastPosIndex, s.posMark, out, absolute); err != nil {
			return err
		}
	}
	return nil
}

func encodeIndex(last, mark intblock.OutputIndex, out store.DataOutput, absolute bool) error {
	if mark == nil {
		return fmt.Errorf("%w: term state was not finished", codecerr.ErrIllegalState)
	}
	if err := last.CopyFrom(mark, false); err != nil {
		return err
	}
	return last.Write(out, absolute)
}

// Close flushes and closes every stream.
func (w *Writer) Close() error {
	closers := []io.Closer{w.docOut}
	if w.freqOut != nil {
		closers = append(closers, w.freqOut)
	}
	if w.posOut != nil {
		closers = append(closers, w.posOut)
	}
	return ioutil.CloseAll(closers...)
}

// Reader reads postings written by Writer.
type Reader struct {
	docIn  intblock.Input
	freqIn intblock.Input
	posIn  intblock.Input
}

var _ postings.Reader = (*Reader)(nil)

// NewReader opens the streams of state through factory.
func NewReader(state index.SegmentReadState, factory intblock.StreamFactory) (*Reader, error) {
	r := &Reader{}
	var err error
	if r.docIn, err = factory.OpenInput(state.Directory, state.FileName(DocExtension), state.Context); err != nil {
		return nil, err
	}
	if postings.HasFreqs(state.FieldInfos) {
		if r.freqIn, err = factory.OpenInput(state.Directory, state.FileName(FreqExtension), state.Context); err != nil {
			ioutil.CloseWhileHandling(r.docIn)
			return nil, err
		}
	}
	if postings.HasPositions(state.FieldInfos) {
		if r.posIn, err = factory.OpenInput(state.Directory, state.FileName(PosExtension), state.Context); err != nil {
			ioutil.CloseWhileHandling(r.closers()...)
			return nil, err
		}
	}
	return r, nil
}

func (r *Reader) closers() []io.Closer {
	closers := []io.Closer{r.docIn}
	if r.freqIn != nil {
		closers = append(closers, r.freqIn)
	}
	if r.posIn != nil {
		closers = append(closers, r.posIn)
	}
	return closers
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
	if err := postings.CheckLongs(store.ResourceName(in), longs, 0); err != nil {
		return err
	}
	var err error
	if s.docIndex, err = decodeIndex(s.docIndex, r.docIn, in, absolute); err != nil {
		return err
	}
	if fi.IndexOptions.HasFreqs() {
		if r.freqIn == nil {
			return codecerr.Corruptf(store.ResourceName(in), "field %q has frequencies but the segment has no freq stream", fi.Name)
		}
		if s.freqIndex, err = decodeIndex(s.freqIndex, r.freqIn, in, absolute); err != nil {
			return err
		}
	}
	if fi.IndexOptions.HasPositions() {
		if r.posIn == nil {
			return codecerr.Corruptf(store.ResourceName(in), "field %q has positions but the segment has no position stream", fi.Name)
		}
		if s.posIndex, err = decodeIndex(s.posIndex, r.posIn, in, absolute); err != nil {
			return err
		}
	}
	return nil
}

func decodeIndex(idx intblock.InputIndex, stream intblock.Input, in store.DataInput, absolute bool) (intblock.InputIndex, error) {
	if idx == nil {
		idx = stream.Index()
	}
	if err := idx.Read(in, absolute); err != nil {
		return nil, err
	}
	return idx, nil
}

func (r *Reader) Postings(fi *index.FieldInfo, state postings.TermState) (format.PostingsEnum, error) {
	s, ok := state.(*termState)
	if !ok || s.docIndex == nil {
		return nil, fmt.Errorf("%w: term state was not decoded by this reader", codecerr.ErrIllegalArgument)
	}
	e := &postingsEnum{opts: fi.IndexOptions, docFreq: s.DocFreq, freq: 1}
	e.docReader = r.docIn.Reader()
	if err := s.docIndex.Seek(e.docReader); err != nil {
		return nil, err
	}
	if fi.IndexOptions.HasFreqs() {
		e.freqReader = r.freqIn.Reader()
		if err := s.freqIndex.Seek(e.freqReader); err != nil {
			return nil, err
		}
	}
	if fi.IndexOptions.HasPositions() {
		e.posReader = r.posIn.Reader()
		if err := s.posIndex.Seek(e.posReader); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (r *Reader) CheckIntegrity() error {
	for _, in := range []intblock.Input{r.docIn, r.freqIn, r.posIn} {
		if in == nil {
			continue
		}
		if err := in.CheckIntegrity(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) Close() error {
	return ioutil.CloseAll(r.closers()...)
}

type postingsEnum struct {
	opts       index.IndexOptions
	docFreq    int
	docReader  intblock.Reader
	freqReader intblock.Reader
	posReader  intblock.Reader

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
	for ; e.posLeft > 0; e.posLeft-- {
		if _, err := e.posReader.Next(); err != nil {
			return 0, err
		}
	}
	delta, err := e.docReader.Next()
	if err != nil {
		return 0, err
	}
	if e.opts.HasFreqs() {
		if e.freq, err = e.freqReader.Next(); err != nil {
			return 0, err
		}
		if e.freq <= 0 {
			return 0, codecerr.Corruptf("freq stream", "non-positive frequency %d", e.freq)
		}
	}
	e.doc += delta
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
	delta, err := e.posReader.Next()
	if err != nil {
		return 0, err
	}
	e.posLeft--
	e.pos += delta
	return e.pos, nil
}
