package termsdict

import (
	"fmt"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/postings"
)

var errUnpositioned = fmt.Errorf("%w: terms enum is not positioned on a term", codecerr.ErrIllegalState)

// WriterFunc creates the postings writer of a segment.
type WriterFunc func(state index.SegmentWriteState) (postings.Writer, error)

// ReaderFunc opens the postings reader of a segment.
type ReaderFunc func(state index.SegmentReadState) (postings.Reader, error)

// Format is a format.PostingsFormat pairing this terms dictionary with a
// postings encoding.
type Format struct {
	name      string
	newWriter WriterFunc
	newReader ReaderFunc
}

var _ format.PostingsFormat = (*Format)(nil)

// NewFormat returns a postings format named name.
func NewFormat(name string, newWriter WriterFunc, newReader ReaderFunc) *Format {
	return &Format{name: name, newWriter: newWriter, newReader: newReader}
}

// Name implements format.PostingsFormat.
func (f *Format) Name() string { return f.name }

// FieldsConsumer implements format.PostingsFormat.
func (f *Format) FieldsConsumer(state index.SegmentWriteState) (format.FieldsConsumer, error) {
	pw, err := f.newWriter(state)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(state, pw)
	if err != nil {
		ioutil.CloseWhileHandling(pw)
		return nil, err
	}
	return w, nil
}

// FieldsProducer implements format.PostingsFormat.
func (f *Format) FieldsProducer(state index.SegmentReadState) (format.FieldsProducer, error) {
	pr, err := f.newReader(state)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(state, pr)
	if err != nil {
		ioutil.CloseWhileHandling(pr)
		return nil, err
	}
	return r, nil
}
