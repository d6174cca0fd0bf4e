package segcodec

import (
	"io"

	"github.com/hupe1980/segcodec/internal/ioutil"
)

// Close releases the producers held by this reader.
//
// Every producer is closed even if an earlier one fails; the first error is
// returned. Closing twice is a no-op.
func (r *SegmentReader) Close() error {
	if r == nil || r.closed {
		return nil
	}
	r.closed = true
	var closers []io.Closer
	if r.postings != nil {
		closers = append(closers, r.postings)
	}
	if r.docValues != nil {
		closers = append(closers, r.docValues)
	}
	return ioutil.CloseAll(closers...)
}
