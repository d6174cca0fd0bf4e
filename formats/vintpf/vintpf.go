// Package vintpf registers the "VInt" postings format: the linear terms
// dictionary over plain vInt-coded postings.
package vintpf

import (
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/postings"
	"github.com/hupe1980/segcodec/postings/vint"
	"github.com/hupe1980/segcodec/termsdict"
)

// Name is the registered format name.
const Name = "VInt"

// New returns the VInt postings format.
func New() *termsdict.Format {
	return termsdict.NewFormat(Name,
		func(state index.SegmentWriteState) (postings.Writer, error) { return vint.NewWriter(state) },
		func(state index.SegmentReadState) (postings.Reader, error) { return vint.NewReader(state) },
	)
}

func init() {
	format.RegisterPostingsFormat(New())
}
