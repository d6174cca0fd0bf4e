// Package compressed encodes fixed-size integer blocks as vInts and then
// compresses each block with LZ4, Zstandard or Snappy. Blocks that do not
// shrink are stored uncompressed.
package compressed

import (
	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/intblock"
	"github.com/hupe1980/segcodec/internal/compression"
	"github.com/hupe1980/segcodec/store"
)

// Name is the stream header name.
const Name = "CompressedIntBlock"

// Codec is an intblock.FixedBlockCodec.
type Codec struct {
	Compression compression.Type
}

var _ intblock.FixedBlockCodec = Codec{}

func (c Codec) Name() string { return Name }

func (c Codec) EncodeBlock(out store.IndexOutput, block []int) error {
	buf := store.NewBuffer()
	for _, v := range block {
		if err := store.WriteVInt(buf, uint32(v)); err != nil {
			return err
		}
	}
	return compression.WriteBlock(out, buf.Bytes(), c.Compression)
}

func (c Codec) DecodeBlock(in store.IndexInput, block []int) error {
	data, err := compression.ReadBlock(in)
	if err != nil {
		return err
	}
	r := store.NewByteReader(in.Name(), data)
	for i := range block {
		v, err := store.ReadVInt(r)
		if err != nil {
			return err
		}
		block[i] = int(v)
	}
	if !r.EOF() {
		return codecerr.Corruptf(in.Name(), "%d trailing bytes in compressed block", len(data)-r.Pos())
	}
	return nil
}

// NewFactory returns a fixed-block stream factory compressing with t.
func NewFactory(t compression.Type, blockSize int) (*intblock.FixedFactory, error) {
	return intblock.NewFixedFactory(Codec{Compression: t}, blockSize)
}
