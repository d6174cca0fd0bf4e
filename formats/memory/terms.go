package memory

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/format"
)

type memTerms struct {
	field    format.InvertedField
	sumTTF   int64
	sumDF    int64
	docCount int
}

func (m *memTerms) Iterator() (format.TermsEnum, error) { return &termsEnum{terms: m, ord: -1}, nil }
func (m *memTerms) Size() int64                         { return int64(len(m.field.Terms)) }
func (m *memTerms) SumDocFreq() int64                   { return m.sumDF }
func (m *memTerms) SumTotalTermFreq() int64             { return m.sumTTF }
func (m *memTerms) DocCount() int                       { return m.docCount }

type termsEnum struct {
	terms *memTerms
	ord   int
}

func (e *termsEnum) Next() ([]byte, error) {
	all := e.terms.field.Terms
	if e.ord+1 >= len(all) {
		e.ord = len(all)
		return nil, nil
	}
	e.ord++
	return all[e.ord].Term, nil
}

func (e *termsEnum) SeekExact(term []byte) (bool, error) {
	i, found := slices.BinarySearchFunc(e.terms.field.Terms, term, func(t format.InvertedTerm, target []byte) int {
		return bytes.Compare(t.Term, target)
	})
	if found {
		e.ord = i
	}
	return found, nil
}

func (e *termsEnum) current() *format.InvertedTerm {
	if e.ord < 0 || e.ord >= len(e.terms.field.Terms) {
		return nil
	}
	return &e.terms.field.Terms[e.ord]
}

func (e *termsEnum) Term() []byte {
	if t := e.current(); t != nil {
		return t.Term
	}
	return nil
}

func (e *termsEnum) DocFreq() int {
	if t := e.current(); t != nil {
		return len(t.Postings)
	}
	return 0
}

func (e *termsEnum) TotalTermFreq() int64 {
	t := e.current()
	if t == nil {
		return 0
	}
	if !e.terms.field.Info.IndexOptions.HasFreqs() {
		return -1
	}
	var ttf int64
	for _, p := range t.Postings {
		ttf += int64(p.Freq)
	}
	return ttf
}

func (e *termsEnum) Postings() (format.PostingsEnum, error) {
	t := e.current()
	if t == nil {
		return nil, fmt.Errorf("%w: terms enum is not positioned on a term", codecerr.ErrIllegalState)
	}
	return &postingsEnum{postings: t.Postings, i: -1}, nil
}

type postingsEnum struct {
	postings []format.Posting
	i        int
	pos      int
}

func (e *postingsEnum) NextDoc() (int, error) {
	e.i++
	e.pos = 0
	if e.i >= len(e.postings) {
		e.i = len(e.postings)
		return format.NoMoreDocs, nil
	}
	return e.postings[e.i].Doc, nil
}

func (e *postingsEnum) Freq() int {
	if e.i < 0 || e.i >= len(e.postings) {
		return 0
	}
	return e.postings[e.i].Freq
}

func (e *postingsEnum) NextPosition() (int, error) {
	if e.i < 0 || e.i >= len(e.postings) || e.pos >= len(e.postings[e.i].Positions) {
		return 0, fmt.Errorf("%w: no positions left", codecerr.ErrIllegalState)
	}
	p := e.postings[e.i].Positions[e.pos]
	e.pos++
	return p, nil
}
