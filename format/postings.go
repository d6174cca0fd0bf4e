package format

import (
	"math"

	"github.com/hupe1980/segcodec/index"
)

// NoMoreDocs is returned by PostingsEnum.NextDoc once the postings are exhausted.
const NoMoreDocs = math.MaxInt32

// TermStats are the statistics of one term within a field.
type TermStats struct {
	DocFreq       int
	TotalTermFreq int64
}

// PostingsFormat encodes and decodes the inverted index of a segment.
type PostingsFormat interface {
	Name() string
	FieldsConsumer(state index.SegmentWriteState) (FieldsConsumer, error)
	FieldsProducer(state index.SegmentReadState) (FieldsProducer, error)
}

// FieldsConsumer receives the fields of a segment in name order.
type FieldsConsumer interface {
	AddField(fi *index.FieldInfo) (TermsConsumer, error)
	Close() error
}

// TermsConsumer receives the terms of one field in byte order.
type TermsConsumer interface {
	StartTerm(term []byte) (PostingsConsumer, error)
	FinishTerm(term []byte, stats TermStats) error
	Finish(sumTotalTermFreq, sumDocFreq int64, docCount int) error
}

// PostingsConsumer receives the postings of one term in doc order.
type PostingsConsumer interface {
	// StartDoc begins a document. freq is ignored for fields without frequencies.
	StartDoc(docID, freq int) error
	// AddPosition records one occurrence within the current document.
	AddPosition(position int) error
	FinishDoc() error
}

// FieldsProducer reads the inverted index of a segment.
type FieldsProducer interface {
	// Fields returns the names of fields with postings, sorted.
	Fields() []string
	// Terms returns the terms of field, or nil if the field has none.
	Terms(field string) (Terms, error)
	// CheckIntegrity verifies the checksums of every file read.
	CheckIntegrity() error
	Close() error
}

// Terms are the terms of one field.
type Terms interface {
	Iterator() (TermsEnum, error)
	// Size returns the number of terms.
	Size() int64
	SumDocFreq() int64
	// SumTotalTermFreq returns -1 when frequencies are not indexed.
	SumTotalTermFreq() int64
	DocCount() int
}

// TermsEnum iterates the terms of a field in byte order.
type TermsEnum interface {
	// Next advances to the next term and returns it, or nil at the end.
	Next() ([]byte, error)
	// SeekExact positions the enum on term and reports whether it exists.
	SeekExact(term []byte) (bool, error)
	Term() []byte
	DocFreq() int
	// TotalTermFreq returns -1 when frequencies are not indexed.
	TotalTermFreq() int64
	Postings() (PostingsEnum, error)
}

// PostingsEnum iterates the documents of one term.
type PostingsEnum interface {
	// NextDoc advances and returns the next doc id, or NoMoreDocs.
	NextDoc() (int, error)
	// Freq returns the frequency in the current document; 1 when frequencies
	// are not indexed.
	Freq() int
	// NextPosition returns the next position in the current document. It may
	// be called at most Freq times.
	NextPosition() (int, error)
}
