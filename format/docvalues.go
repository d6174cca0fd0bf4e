package format

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/segcodec/index"
)

// NumericValues are one int64 per document. Values has one slot per
// document in the segment; slots of documents missing from DocsWithField
// are zero.
type NumericValues struct {
	DocsWithField *roaring.Bitmap
	Values        []int64
}

// BinaryValues are one byte slice per document.
type BinaryValues struct {
	DocsWithField *roaring.Bitmap
	Values        [][]byte
}

// SortedValues map documents to ordinals into a sorted, deduplicated term
// dictionary. Ords has one slot per document; -1 means no value.
type SortedValues struct {
	DocsWithField *roaring.Bitmap
	Terms         [][]byte
	Ords          []int
}

// Lookup returns the value of doc, or nil.
func (s *SortedValues) Lookup(doc int) []byte {
	if doc < 0 || doc >= len(s.Ords) || s.Ords[doc] < 0 {
		return nil
	}
	return s.Terms[s.Ords[doc]]
}

// DocValuesFormat encodes and decodes the columnar values of a segment.
type DocValuesFormat interface {
	Name() string
	FieldsConsumer(state index.SegmentWriteState) (DocValuesConsumer, error)
	FieldsProducer(state index.SegmentReadState) (DocValuesProducer, error)
}

// DocValuesConsumer writes doc values field by field.
type DocValuesConsumer interface {
	AddNumericField(fi *index.FieldInfo, values *NumericValues) error
	AddBinaryField(fi *index.FieldInfo, values *BinaryValues) error
	AddSortedField(fi *index.FieldInfo, values *SortedValues) error
	Close() error
}

// DocValuesProducer reads doc values. A field without stored values yields
// nil and no error.
type DocValuesProducer interface {
	Numeric(fi *index.FieldInfo) (*NumericValues, error)
	Binary(fi *index.FieldInfo) (*BinaryValues, error)
	Sorted(fi *index.FieldInfo) (*SortedValues, error)
	CheckIntegrity() error
	Close() error
}

// NewNumericValues returns empty values for a segment of maxDoc documents.
func NewNumericValues(maxDoc int) *NumericValues {
	return &NumericValues{DocsWithField: roaring.New(), Values: make([]int64, maxDoc)}
}

// Set stores v for doc.
func (n *NumericValues) Set(doc int, v int64) {
	n.Values[doc] = v
	n.DocsWithField.Add(uint32(doc))
}

// Get returns the value of doc and whether doc has one.
func (n *NumericValues) Get(doc int) (int64, bool) {
	if doc < 0 || doc >= len(n.Values) || !n.DocsWithField.Contains(uint32(doc)) {
		return 0, false
	}
	return n.Values[doc], true
}

// NewBinaryValues returns empty values for a segment of maxDoc documents.
func NewBinaryValues(maxDoc int) *BinaryValues {
	return &BinaryValues{DocsWithField: roaring.New(), Values: make([][]byte, maxDoc)}
}

// Set stores v for doc.
func (b *BinaryValues) Set(doc int, v []byte) {
	b.Values[doc] = v
	b.DocsWithField.Add(uint32(doc))
}

// Get returns the value of doc and whether doc has one.
func (b *BinaryValues) Get(doc int) ([]byte, bool) {
	if doc < 0 || doc >= len(b.Values) || !b.DocsWithField.Contains(uint32(doc)) {
		return nil, false
	}
	return b.Values[doc], true
}

// NewSortedValues builds sorted values for maxDoc documents from a
// per-document value map.
func NewSortedValues(maxDoc int, byDoc map[int][]byte) *SortedValues {
	unique := make(map[string]struct{}, len(byDoc))
	for _, v := range byDoc {
		unique[string(v)] = struct{}{}
	}
	terms := make([]string, 0, len(unique))
	for t := range unique {
		terms = append(terms, t)
	}
	slices.Sort(terms)

	ordOf := make(map[string]int, len(terms))
	s := &SortedValues{DocsWithField: roaring.New(), Terms: make([][]byte, len(terms)), Ords: make([]int, maxDoc)}
	for i, t := range terms {
		s.Terms[i] = []byte(t)
		ordOf[t] = i
	}
	for i := range s.Ords {
		s.Ords[i] = -1
	}
	for doc, v := range byDoc {
		s.Ords[doc] = ordOf[string(v)]
		s.DocsWithField.Add(uint32(doc))
	}
	return s
}
