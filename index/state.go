package index

import (
	"strconv"

	"github.com/hupe1980/segcodec/store"
)

// SegmentWriteState is what a format needs to write one segment.
type SegmentWriteState struct {
	Directory   store.Directory
	SegmentName string
	// SegmentSuffix disambiguates files of nested formats; "" at the top level.
	SegmentSuffix string
	FieldInfos    *FieldInfos
	DocCount      int
	Context       store.IOContext
	// DocValuesGen is the generation doc values are written under; -1 for
	// the initial write.
	DocValuesGen int64
}

// WithSuffix returns a copy of s with a different segment suffix.
func (s SegmentWriteState) WithSuffix(suffix string) SegmentWriteState {
	s.SegmentSuffix = suffix
	return s
}

// FileName composes a file name for ext under this state's segment and suffix.
func (s SegmentWriteState) FileName(ext string) string {
	return store.SegmentFileName(s.SegmentName, s.SegmentSuffix, ext)
}

// SegmentReadState is what a format needs to read one segment.
type SegmentReadState struct {
	Directory     store.Directory
	SegmentName   string
	SegmentSuffix string
	FieldInfos    *FieldInfos
	DocCount      int
	Context       store.IOContext
}

// WithSuffix returns a copy of s with a different segment suffix.
func (s SegmentReadState) WithSuffix(suffix string) SegmentReadState {
	s.SegmentSuffix = suffix
	return s
}

// FileName composes a file name for ext under this state's segment and suffix.
func (s SegmentReadState) FileName(ext string) string {
	return store.SegmentFileName(s.SegmentName, s.SegmentSuffix, ext)
}

// ReadStateFor returns the read state mirroring a completed write.
func ReadStateFor(ws SegmentWriteState) SegmentReadState {
	return SegmentReadState{
		Directory:     ws.Directory,
		SegmentName:   ws.SegmentName,
		SegmentSuffix: ws.SegmentSuffix,
		FieldInfos:    ws.FieldInfos,
		DocCount:      ws.DocCount,
		Context:       ws.Context,
	}
}

// DocValuesSuffix returns the segment suffix of doc values written under
// generation gen. The initial generation (-1) keeps suffix unchanged; later
// generations append gen in base 36.
func DocValuesSuffix(suffix string, gen int64) string {
	if gen == -1 {
		return suffix
	}
	g := strconv.FormatInt(gen, 36)
	if suffix == "" {
		return g
	}
	return suffix + "_" + g
}
