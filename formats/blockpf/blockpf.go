// Package blockpf registers postings formats that store docs, frequencies
// and positions in separate integer block streams:
//
//	FixedIntBlock       fixed-size blocks of vInts
//	VariableIntBlock    the lookahead encoder of package mockvar
//	CompressedIntBlock  fixed-size vInt blocks run through a compressor
//
// Block parameters live in each stream's header, so any instance of a
// format reads files written by any other instance of the same name.
package blockpf

import (
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/intblock"
	"github.com/hupe1980/segcodec/intblock/compressed"
	"github.com/hupe1980/segcodec/intblock/mockvar"
	"github.com/hupe1980/segcodec/intblock/vintblock"
	"github.com/hupe1980/segcodec/internal/compression"
	"github.com/hupe1980/segcodec/postings"
	"github.com/hupe1980/segcodec/postings/sep"
	"github.com/hupe1980/segcodec/termsdict"
)

const (
	FixedName      = "FixedIntBlock"
	VariableName   = "VariableIntBlock"
	CompressedName = "CompressedIntBlock"

	// DefaultBlockSize is the block size of the registered fixed formats.
	DefaultBlockSize = 128
	// DefaultBaseBlockSize is the base block size of the registered variable format.
	DefaultBaseBlockSize = 64
)

// New returns a postings format named name over the streams of factory.
func New(name string, factory intblock.StreamFactory) *termsdict.Format {
	return termsdict.NewFormat(name,
		func(state index.SegmentWriteState) (postings.Writer, error) { return sep.NewWriter(state, factory) },
		func(state index.SegmentReadState) (postings.Reader, error) { return sep.NewReader(state, factory) },
	)
}

// NewFixed returns a FixedIntBlock format writing blocks of blockSize.
func NewFixed(blockSize int) (*termsdict.Format, error) {
	f, err := vintblock.NewFactory(blockSize)
	if err != nil {
		return nil, err
	}
	return New(FixedName, f), nil
}

// NewVariable returns a VariableIntBlock format.
func NewVariable(baseBlockSize int) *termsdict.Format {
	return New(VariableName, mockvar.NewFactory(baseBlockSize))
}

// NewCompressed returns a CompressedIntBlock format compressing blocks of
// blockSize with t.
func NewCompressed(t compression.Type, blockSize int) (*termsdict.Format, error) {
	f, err := compressed.NewFactory(t, blockSize)
	if err != nil {
		return nil, err
	}
	return New(CompressedName, f), nil
}

func mustFormat(f *termsdict.Format, err error) *termsdict.Format {
	if err != nil {
		panic(err)
	}
	return f
}

func init() {
	format.RegisterPostingsFormat(mustFormat(NewFixed(DefaultBlockSize)))
	format.RegisterPostingsFormat(NewVariable(DefaultBaseBlockSize))
	format.RegisterPostingsFormat(mustFormat(NewCompressed(compression.LZ4, DefaultBlockSize)))
}
