package termsdict

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/postings"
	"github.com/hupe1980/segcodec/store"
)

const (
	// Extension is the extension of the terms file.
	Extension = "tdt"

	codecName      = "TermsDict"
	versionStart   = 0
	versionCurrent = versionStart
)

type fieldEntry struct {
	number    int
	numTerms  int64
	startFP   int64
	sumTTF    int64
	sumDF     int64
	docCount  int
	longsSize int
}

// Writer is a format.FieldsConsumer writing a terms file and delegating
// postings to a postings.Writer.
type Writer struct {
	out       store.IndexOutput
	pw        postings.Writer
	fields    []fieldEntry
	lastField string
	current   *termsWriter
	closed    bool
}

var _ format.FieldsConsumer = (*Writer)(nil)

// NewWriter creates the terms file of state. On success the Writer owns pw.
func NewWriter(state index.SegmentWriteState, pw postings.Writer) (*Writer, error) {
	out, err := state.Directory.CreateOutput(state.FileName(Extension), state.Context)
	if err != nil {
		return nil, err
	}
	if err := codecutil.WriteHeader(out, codecName, versionCurrent); err != nil {
		ioutil.CloseWhileHandling(out)
		return nil, err
	}
	if err := pw.Init(out); err != nil {
		ioutil.CloseWhileHandling(out)
		return nil, err
	}
	return &Writer{out: out, pw: pw}, nil
}

// AddField starts the terms of fi. Fields must arrive in name order and
// each must be finished before the next starts.
func (w *Writer) AddField(fi *index.FieldInfo) (format.TermsConsumer, error) {
	if w.closed {
		return nil, fmt.Errorf("%w: terms writer closed", codecerr.ErrIllegalState)
	}
	if w.current != nil && !w.current.finished {
		return nil, fmt.Errorf("%w: field %q not finished", codecerr.ErrIllegalState, w.current.fi.Name)
	}
	if fi.IndexOptions == index.IndexOptionsNone {
		return nil, fmt.Errorf("%w: field %q is not indexed", codecerr.ErrIllegalArgument, fi.Name)
	}
	if w.lastField != "" && strings.Compare(fi.Name, w.lastField) <= 0 {
		return nil, fmt.Errorf("%w: field %q after %q", codecerr.ErrIllegalArgument, fi.Name, w.lastField)
	}
	longsSize, err := w.pw.SetField(fi)
	if err != nil {
		return nil, err
	}
	w.lastField = fi.Name
	w.current = &termsWriter{
		parent:    w,
		fi:        fi,
		startFP:   w.out.FilePointer(),
		longs:     make([]int64, longsSize),
		extra:     store.NewBuffer(),
		longsSize: longsSize,
	}
	return w.current, nil
}

// Close writes the field directory and footer, then closes the terms file
// and the postings writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.writeTrailer()
	return errors.Join(err, ioutil.CloseAll(w.out, w.pw))
}

func (w *Writer) writeTrailer() error {
	dirStart := w.out.FilePointer()
	if err := store.WriteVInt(w.out, uint32(len(w.fields))); err != nil {
		return err
	}
	for _, f := range w.fields {
		for _, v := range []uint64{uint64(f.number), uint64(f.numTerms), uint64(f.startFP)} {
			if err := store.WriteVLong(w.out, v); err != nil {
				return err
			}
		}
		if err := store.WriteZLong(w.out, f.sumTTF); err != nil {
			return err
		}
		if err := store.WriteVLong(w.out, uint64(f.sumDF)); err != nil {
			return err
		}
		if err := store.WriteVInt(w.out, uint32(f.docCount)); err != nil {
			return err
		}
		if err := store.WriteVInt(w.out, uint32(f.longsSize)); err != nil {
			return err
		}
	}
	if err := store.WriteInt64(w.out, dirStart); err != nil {
		return err
	}
	return codecutil.WriteFooter(w.out)
}

type termsWriter struct {
	parent    *Writer
	fi        *index.FieldInfo
	startFP   int64
	longs     []int64
	longsSize int
	extra     *store.Buffer
	numTerms  int64
	lastTerm  []byte
	inTerm    bool
	finished  bool
}

func (t *termsWriter) StartTerm(term []byte) (format.PostingsConsumer, error) {
	if t.finished || t.inTerm {
		return nil, fmt.Errorf("%w: StartTerm in wrong state", codecerr.ErrIllegalState)
	}
	if t.numTerms > 0 && bytes.Compare(term, t.lastTerm) <= 0 {
		return nil, fmt.Errorf("%w: term %q after %q in field %q", codecerr.ErrIllegalArgument, term, t.lastTerm, t.fi.Name)
	}
	if err := t.parent.pw.StartTerm(); err != nil {
		return nil, err
	}
	t.inTerm = true
	return t.parent.pw, nil
}

func (t *termsWriter) FinishTerm(term []byte, stats format.TermStats) error {
	if !t.inTerm {
		return fmt.Errorf("%w: FinishTerm without StartTerm", codecerr.ErrIllegalState)
	}
	t.inTerm = false
	if stats.DocFreq <= 0 {
		return fmt.Errorf("%w: term %q has docFreq %d", codecerr.ErrIllegalArgument, term, stats.DocFreq)
	}
	hasFreqs := t.fi.IndexOptions.HasFreqs()
	if hasFreqs && stats.TotalTermFreq < int64(stats.DocFreq) {
		return fmt.Errorf("%w: term %q has totalTermFreq %d below docFreq %d",
			codecerr.ErrIllegalArgument, term, stats.TotalTermFreq, stats.DocFreq)
	}

	pw := t.parent.pw
	state := pw.NewTermState()
	base := state.Base()
	base.DocFreq = stats.DocFreq
	base.TotalTermFreq = stats.TotalTermFreq
	if !hasFreqs {
		base.TotalTermFreq = -1
	}
	if err := pw.FinishTerm(state); err != nil {
		return err
	}

	t.extra.Reset()
	clear(t.longs)
	if err := pw.EncodeTerm(t.longs, t.extra, t.fi, state, t.numTerms == 0); err != nil {
		return err
	}

	out := t.parent.out
	if err := store.WriteByteSlice(out, term); err != nil {
		return err
	}
	if err := store.WriteVInt(out, uint32(stats.DocFreq)); err != nil {
		return err
	}
	if hasFreqs {
		if err := store.WriteVLong(out, uint64(stats.TotalTermFreq-int64(stats.DocFreq))); err != nil {
			return err
		}
	}
	for i, v := range t.longs {
		if v < 0 {
			return fmt.Errorf("%w: postings writer produced negative long %d at %d for term %q",
				codecerr.ErrIllegalState, v, i, term)
		}
		if err := store.WriteVLong(out, uint64(v)); err != nil {
			return err
		}
	}
	if err := store.WriteByteSlice(out, t.extra.Bytes()); err != nil {
		return err
	}
	t.lastTerm = append(t.lastTerm[:0], term...)
	t.numTerms++
	return nil
}

func (t *termsWriter) Finish(sumTotalTermFreq, sumDocFreq int64, docCount int) error {
	if t.inTerm || t.finished {
		return fmt.Errorf("%w: Finish in wrong state", codecerr.ErrIllegalState)
	}
	t.finished = true
	if t.numTerms == 0 {
		return nil
	}
	if !t.fi.IndexOptions.HasFreqs() {
		sumTotalTermFreq = -1
	}
	t.parent.fields = append(t.parent.fields, fieldEntry{
		number:    t.fi.Number,
		numTerms:  t.numTerms,
		startFP:   t.startFP,
		sumTTF:    sumTotalTermFreq,
		sumDF:     sumDocFreq,
		docCount:  docCount,
		longsSize: t.longsSize,
	})
	return nil
}
