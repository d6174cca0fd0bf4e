package testutil

import (
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63 returns a non-negative pseudo-random int64.
func (r *RNG) Int63() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63()
}

// Ints returns n values in [0, limit). Roughly one in eight values is
// drawn from the full int32 range to exercise long variable-length codes.
func (r *RNG) Ints(n, limit int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, n)
	for i := range out {
		if r.rand.Intn(8) == 0 {
			out[i] = r.rand.Intn(math.MaxInt32)
			continue
		}
		out[i] = r.rand.Intn(limit)
	}
	return out
}

// Term returns a random term of 1 to maxLen bytes. Some bytes are above
// 0x7f so that byte order differs from rune order.
func (r *RNG) Term(maxLen int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.termLocked(maxLen)
}

func (r *RNG) termLocked(maxLen int) []byte {
	b := make([]byte, 1+r.rand.Intn(maxLen))
	for i := range b {
		if r.rand.Intn(16) == 0 {
			b[i] = byte(0x80 + r.rand.Intn(0x80))
			continue
		}
		b[i] = byte('a' + r.rand.Intn(26))
	}
	return b
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// InvertedField generates up to numTerms distinct terms over maxDoc
// documents. Document frequencies follow a Zipf distribution, so a few
// terms are dense and most are rare. Frequencies and positions are filled
// in according to fi.IndexOptions.
func (r *RNG) InvertedField(fi *index.FieldInfo, maxDoc, numTerms int) format.InvertedField {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, numTerms)
	f := format.InvertedField{Info: fi}
	for range numTerms {
		term := r.termLocked(12)
		if seen[string(term)] {
			continue
		}
		seen[string(term)] = true

		df := 1 + r.zipfLocked(maxDoc, 1.2)
		docs := r.rand.Perm(maxDoc)[:df]
		slices.Sort(docs)

		t := format.InvertedTerm{Term: term, Postings: make([]format.Posting, len(docs))}
		for i, doc := range docs {
			p := format.Posting{Doc: doc, Freq: 1}
			if fi.IndexOptions.HasFreqs() {
				p.Freq = 1 + r.zipfLocked(40, 1.5)
			}
			if fi.IndexOptions.HasPositions() {
				p.Positions = make([]int, p.Freq)
				pos := 0
				for j := range p.Positions {
					pos += r.rand.Intn(50)
					p.Positions[j] = pos
				}
			}
			t.Postings[i] = p
		}
		f.Terms = append(f.Terms, t)
	}
	return f
}

// NumericValues gives each of maxDoc documents a value with probability density.
func (r *RNG) NumericValues(maxDoc int, density float64) *format.NumericValues {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := format.NewNumericValues(maxDoc)
	for doc := range maxDoc {
		if r.rand.Float64() < density {
			v.Set(doc, r.rand.Int63()-r.rand.Int63())
		}
	}
	return v
}

// BinaryValues gives each of maxDoc documents a value with probability density.
func (r *RNG) BinaryValues(maxDoc int, density float64) *format.BinaryValues {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := format.NewBinaryValues(maxDoc)
	for doc := range maxDoc {
		if r.rand.Float64() < density {
			v.Set(doc, r.termLocked(40))
		}
	}
	return v
}

// SortedValues draws each present value from a vocabulary of cardinality terms.
func (r *RNG) SortedValues(maxDoc int, density float64, cardinality int) *format.SortedValues {
	r.mu.Lock()
	defer r.mu.Unlock()
	vocab := make([][]byte, cardinality)
	for i := range vocab {
		vocab[i] = r.termLocked(8)
	}
	byDoc := make(map[int][]byte)
	for doc := range maxDoc {
		if r.rand.Float64() < density {
			byDoc[doc] = vocab[r.zipfLocked(cardinality, 1.1)]
		}
	}
	return format.NewSortedValues(maxDoc, byDoc)
}
