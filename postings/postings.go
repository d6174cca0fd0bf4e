package postings

import (
	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/store"
)

// BlockTermState is the metadata every postings encoding keeps per term.
type BlockTermState struct {
	DocFreq int
	// TotalTermFreq is -1 when the field does not index frequencies.
	TotalTermFreq int64
}

// TermState is the per-term metadata record of one postings encoding.
type TermState interface {
	Base() *BlockTermState
	Clone() TermState
}

// Writer encodes postings for a terms dictionary.
//
// The call sequence per field is SetField, then per term StartTerm, the
// PostingsConsumer calls, FinishTerm and EncodeTerm. The first EncodeTerm of
// every field is absolute.
type Writer interface {
	format.PostingsConsumer

	// Init writes the writer's sub-header into the terms file.
	Init(termsOut store.IndexOutput) error
	NewTermState() TermState
	// SetField prepares the writer for fi and returns the number of longs it
	// encodes per term of that field.
	SetField(fi *index.FieldInfo) (int, error)
	StartTerm() error
	// FinishTerm completes the current term. state's base statistics must be
	// filled in by the caller; the writer adds its file pointers.
	FinishTerm(state TermState) error
	// EncodeTerm fills longs and writes any extra bytes to out. Without
	// absolute, values are deltas against the previously encoded term.
	EncodeTerm(longs []int64, out store.DataOutput, fi *index.FieldInfo, state TermState, absolute bool) error
	Close() error
}

// Reader decodes postings written by the matching Writer.
type Reader interface {
	// Init checks the sub-header written by Writer.Init.
	Init(termsIn store.IndexInput) error
	NewTermState() TermState
	// DecodeTerm applies longs and the extra bytes in in to state. Without
	// absolute, state must hold the previous term's metadata.
	DecodeTerm(longs []int64, in store.DataInput, fi *index.FieldInfo, state TermState, absolute bool) error
	Postings(fi *index.FieldInfo, state TermState) (format.PostingsEnum, error)
	CheckIntegrity() error
	Close() error
}

// CheckLongs reports a corruption error unless longs has exactly want entries.
func CheckLongs(resource string, longs []int64, want int) error {
	if len(longs) != want {
		return codecerr.Corruptf(resource, "term metadata has %d longs, field expects %d", len(longs), want)
	}
	return nil
}

// HasPositions reports whether any field of infos indexes positions.
func HasPositions(infos *index.FieldInfos) bool {
	for _, fi := range infos.All() {
		if fi.IndexOptions.HasPositions() {
			return true
		}
	}
	return false
}

// HasFreqs reports whether any field of infos indexes frequencies.
func HasFreqs(infos *index.FieldInfos) bool {
	for _, fi := range infos.All() {
		if fi.IndexOptions.HasFreqs() {
			return true
		}
	}
	return false
}
