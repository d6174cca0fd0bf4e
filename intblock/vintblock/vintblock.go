// Package vintblock encodes fixed-size integer blocks as one vInt per value.
package vintblock

import (
	"github.com/hupe1980/segcodec/intblock"
	"github.com/hupe1980/segcodec/store"
)

// Name is the stream header name.
const Name = "VIntBlock"

// Codec is an intblock.FixedBlockCodec writing plain vInts.
type Codec struct{}

var _ intblock.FixedBlockCodec = Codec{}

func (Codec) Name() string { return Name }

func (Codec) EncodeBlock(out store.IndexOutput, block []int) error {
	for _, v := range block {
		if err := store.WriteVInt(out, uint32(v)); err != nil {
			return err
		}
	}
	return nil
}

func (Codec) DecodeBlock(in store.IndexInput, block []int) error {
	for i := range block {
		v, err := store.ReadVInt(in)
		if err != nil {
			return err
		}
		block[i] = int(v)
	}
	return nil
}

// NewFactory returns a fixed-block stream factory with blocks of blockSize values.
func NewFactory(blockSize int) (*intblock.FixedFactory, error) {
	return intblock.NewFixedFactory(Codec{}, blockSize)
}
