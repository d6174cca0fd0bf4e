package format

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/index"
)

// Posting is one document of a term.
type Posting struct {
	Doc int
	// Freq is the term frequency; when Positions is set it must equal len(Positions).
	Freq      int
	Positions []int
}

// InvertedTerm is a term with its postings in doc order.
type InvertedTerm struct {
	Term     []byte
	Postings []Posting
}

// InvertedField is the in-memory inverted index of one field.
type InvertedField struct {
	Info  *index.FieldInfo
	Terms []InvertedTerm
}

// WriteFields pushes fields through consumer, sorting fields by name and
// terms by bytes, and computing the term and field statistics.
func WriteFields(consumer FieldsConsumer, fields ...InvertedField) error {
	sorted := slices.Clone(fields)
	slices.SortFunc(sorted, func(a, b InvertedField) int { return strings.Compare(a.Info.Name, b.Info.Name) })

	for _, f := range sorted {
		if err := writeField(consumer, f); err != nil {
			return fmt.Errorf("write field %q: %w", f.Info.Name, err)
		}
	}
	return nil
}

func writeField(consumer FieldsConsumer, f InvertedField) error {
	tc, err := consumer.AddField(f.Info)
	if err != nil {
		return err
	}
	opts := f.Info.IndexOptions
	terms := slices.Clone(f.Terms)
	slices.SortFunc(terms, func(a, b InvertedTerm) int { return bytes.Compare(a.Term, b.Term) })

	var sumDocFreq, sumTTF int64
	docs := make(map[int]struct{})
	for i, t := range terms {
		if i > 0 && bytes.Equal(terms[i-1].Term, t.Term) {
			return fmt.Errorf("%w: duplicate term %q", codecerr.ErrIllegalArgument, t.Term)
		}
		if len(t.Postings) == 0 {
			continue
		}
		pc, err := tc.StartTerm(t.Term)
		if err != nil {
			return err
		}
		var ttf int64
		for _, p := range t.Postings {
			freq := p.Freq
			if opts.HasPositions() {
				freq = len(p.Positions)
			}
			if freq <= 0 {
				freq = 1
			}
			if err := pc.StartDoc(p.Doc, freq); err != nil {
				return err
			}
			if opts.HasPositions() {
				for _, pos := range p.Positions {
					if err := pc.AddPosition(pos); err != nil {
						return err
					}
				}
			}
			if err := pc.FinishDoc(); err != nil {
				return err
			}
			ttf += int64(freq)
			docs[p.Doc] = struct{}{}
		}
		stats := TermStats{DocFreq: len(t.Postings), TotalTermFreq: -1}
		if opts.HasFreqs() {
			stats.TotalTermFreq = ttf
			sumTTF += ttf
		}
		sumDocFreq += int64(stats.DocFreq)
		if err := tc.FinishTerm(t.Term, stats); err != nil {
			return err
		}
	}
	if !opts.HasFreqs() {
		sumTTF = -1
	}
	return tc.Finish(sumTTF, sumDocFreq, len(docs))
}

// ReadField collects every term and posting of terms into memory. It is the
// inverse of WriteFields for one field.
func ReadField(fi *index.FieldInfo, terms Terms) (InvertedField, error) {
	f := InvertedField{Info: fi}
	it, err := terms.Iterator()
	if err != nil {
		return f, err
	}
	for {
		term, err := it.Next()
		if err != nil {
			return f, err
		}
		if term == nil {
			return f, nil
		}
		pe, err := it.Postings()
		if err != nil {
			return f, err
		}
		postings, err := ReadPostings(pe, fi.IndexOptions)
		if err != nil {
			return f, err
		}
		f.Terms = append(f.Terms, InvertedTerm{Term: bytes.Clone(term), Postings: postings})
	}
}

// ReadPostings drains pe.
func ReadPostings(pe PostingsEnum, opts index.IndexOptions) ([]Posting, error) {
	var out []Posting
	for {
		doc, err := pe.NextDoc()
		if err != nil {
			return nil, err
		}
		if doc == NoMoreDocs {
			return out, nil
		}
		p := Posting{Doc: doc, Freq: pe.Freq()}
		if opts.HasPositions() {
			p.Positions = make([]int, p.Freq)
			for i := range p.Positions {
				if p.Positions[i], err = pe.NextPosition(); err != nil {
					return nil, err
				}
			}
		}
		out = append(out, p)
	}
}

// Normalized returns f as a reader sees it after a round trip: terms
// sorted, empty terms dropped, and frequencies filled in according to the
// field's index options.
func (f InvertedField) Normalized() InvertedField {
	opts := f.Info.IndexOptions
	out := InvertedField{Info: f.Info}
	for _, t := range f.Terms {
		if len(t.Postings) == 0 {
			continue
		}
		nt := InvertedTerm{Term: t.Term, Postings: make([]Posting, len(t.Postings))}
		for i, p := range t.Postings {
			np := Posting{Doc: p.Doc, Freq: 1}
			switch {
			case opts.HasPositions():
				np.Freq = max(len(p.Positions), 1)
				np.Positions = p.Positions
			case opts.HasFreqs():
				np.Freq = max(p.Freq, 1)
			}
			nt.Postings[i] = np
		}
		out.Terms = append(out.Terms, nt)
	}
	slices.SortFunc(out.Terms, func(a, b InvertedTerm) int { return bytes.Compare(a.Term, b.Term) })
	return out
}
