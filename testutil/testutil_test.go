package testutil

import (
	"bytes"
	"testing"

	"github.com/hupe1980/segcodec/index"
	"github.com/stretchr/testify/assert"
)

func TestRNGDeterministic(t *testing.T) {
	a, b := NewRNG(4711), NewRNG(4711)
	assert.Equal(t, a.Ints(100, 10), b.Ints(100, 10))

	a.Reset()
	assert.Equal(t, b.Seed(), a.Seed())
}

func TestInts(t *testing.T) {
	for _, v := range NewRNG(1).Ints(1000, 16) {
		assert.GreaterOrEqual(t, v, 0)
	}
}

func TestInvertedField(t *testing.T) {
	rng := NewRNG(4711)
	fi := index.NewFieldInfo("body", 0, index.IndexOptionsDocsAndFreqsAndPositions, index.DocValuesNone)
	f := rng.InvertedField(fi, 50, 40)

	assert.NotEmpty(t, f.Terms)
	seen := make(map[string]bool)
	for _, term := range f.Terms {
		assert.False(t, seen[string(term.Term)], "duplicate term %q", term.Term)
		seen[string(term.Term)] = true
		assert.NotEmpty(t, term.Postings)
		for i, p := range term.Postings {
			assert.Less(t, p.Doc, 50)
			if i > 0 {
				assert.Greater(t, p.Doc, term.Postings[i-1].Doc)
			}
			assert.Len(t, p.Positions, p.Freq)
		}
	}
}

func TestSortedValues(t *testing.T) {
	s := NewRNG(3).SortedValues(100, 0.5, 5)
	for i := 1; i < len(s.Terms); i++ {
		assert.Negative(t, bytes.Compare(s.Terms[i-1], s.Terms[i]))
	}
	for doc, ord := range s.Ords {
		assert.Equal(t, ord >= 0, s.DocsWithField.Contains(uint32(doc)))
	}
}
