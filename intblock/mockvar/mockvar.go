// Package mockvar is a deliberately odd variable-length block encoder used
// to exercise look-ahead buffering: a block holds BaseBlockSize values when
// its first value is at most 3, else twice that, and a block is only flushed
// once the value after it is known.
package mockvar

import (
	"github.com/hupe1980/segcodec/intblock"
	"github.com/hupe1980/segcodec/store"
)

// Name is the stream header name.
const Name = "MockVariableIntBlock"

// Codec is an intblock.VariableBlockCodec.
type Codec struct {
	BaseBlockSize int
}

var _ intblock.VariableBlockCodec = Codec{}

// New returns a Codec with the given base block size.
func New(baseBlockSize int) Codec { return Codec{BaseBlockSize: baseBlockSize} }

func (c Codec) Name() string { return Name }

func (c Codec) MaxBlockSize() int { return 2 * c.BaseBlockSize }

func (c Codec) NewEncoder() intblock.VariableEncoder {
	return &encoder{base: c.BaseBlockSize, buffer: make([]int, 2*c.BaseBlockSize+1)}
}

func (c Codec) DecodeBlock(in store.IndexInput, block []int) (int, error) {
	n, err := store.ReadVInt(in)
	if err != nil {
		return 0, err
	}
	if int(n) > len(block) {
		return int(n), nil
	}
	for i := 0; i < int(n); i++ {
		v, err := store.ReadVInt(in)
		if err != nil {
			return 0, err
		}
		block[i] = int(v)
	}
	return int(n), nil
}

type encoder struct {
	base    int
	buffer  []int
	pending int
}

func (e *encoder) Add(out store.IndexOutput, v int) (int, error) {
	e.buffer[e.pending] = v
	e.pending++

	flushAt := e.base
	if e.buffer[0] > 3 {
		flushAt = 2 * e.base
	}
	if e.pending < flushAt+1 {
		return 0, nil
	}

	if err := store.WriteVInt(out, uint32(flushAt)); err != nil {
		return 0, err
	}
	for _, x := range e.buffer[:flushAt] {
		if err := store.WriteVInt(out, uint32(x)); err != nil {
			return 0, err
		}
	}
	e.buffer[0] = e.buffer[flushAt]
	e.pending = 1
	return flushAt, nil
}

// NewFactory returns a variable-block stream factory for baseBlockSize.
func NewFactory(baseBlockSize int) *intblock.VariableFactory {
	return intblock.NewVariableFactory(New(baseBlockSize))
}
