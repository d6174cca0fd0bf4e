package intblock

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/store"
)

const (
	variableVersionStart   int32 = 0
	variableVersionCurrent int32 = variableVersionStart
)

// VariableBlockCodec encodes blocks whose length the encoder chooses.
type VariableBlockCodec interface {
	// Name is written to the stream header.
	Name() string
	// MaxBlockSize bounds the number of values any block decodes to.
	MaxBlockSize() int
	// NewEncoder returns a fresh encoder for one output.
	NewEncoder() VariableEncoder
	// DecodeBlock decodes the next block into block and returns its length.
	DecodeBlock(in store.IndexInput, block []int) (int, error)
}

// VariableEncoder buffers values and decides when to flush them.
type VariableEncoder interface {
	// Add buffers v and returns how many buffered values it wrote to out.
	// It may hold values back until later values are known.
	Add(out store.IndexOutput, v int) (int, error)
}

// VariableFactory creates variable-size block streams.
type VariableFactory struct {
	Codec VariableBlockCodec
}

// NewVariableFactory returns a factory for codec.
func NewVariableFactory(codec VariableBlockCodec) *VariableFactory {
	return &VariableFactory{Codec: codec}
}

// CreateOutput implements StreamFactory.
func (f *VariableFactory) CreateOutput(dir store.Directory, name string, ctx store.IOContext) (Output, error) {
	out, err := dir.CreateOutput(name, ctx)
	if err != nil {
		return nil, err
	}
	w, err := newVariableOutput(out, f.Codec)
	if err != nil {
		ioutil.CloseWhileHandling(out)
		return nil, err
	}
	return w, nil
}

// OpenInput implements StreamFactory.
func (f *VariableFactory) OpenInput(dir store.Directory, name string, ctx store.IOContext) (Input, error) {
	in, err := dir.OpenInput(name, ctx)
	if err != nil {
		return nil, err
	}
	r, err := newVariableInput(in, f.Codec)
	if err != nil {
		ioutil.CloseWhileHandling(in)
		return nil, err
	}
	return r, nil
}

type outputState uint8

const (
	stateAccepting outputState = iota
	stateFlushing
	stateClosed
)

type variableOutput struct {
	out     store.IndexOutput
	encoder VariableEncoder
	state   outputState
	// upto counts values added but not yet flushed by the encoder.
	upto int
}

func newVariableOutput(out store.IndexOutput, codec VariableBlockCodec) (*variableOutput, error) {
	if err := codecutil.WriteHeader(out, codec.Name(), variableVersionCurrent); err != nil {
		return nil, err
	}
	if err := store.WriteInt32(out, int32(codec.MaxBlockSize())); err != nil {
		return nil, err
	}
	return &variableOutput{out: out, encoder: codec.NewEncoder()}, nil
}

func (o *variableOutput) position() (int64, int) { return o.out.FilePointer(), o.upto }

func (o *variableOutput) Index() OutputIndex { return &outputIndex{owner: o} }

func (o *variableOutput) Write(v int) error {
	if o.state != stateAccepting {
		return ErrClosed
	}
	if v < 0 {
		return ErrNegativeValue
	}
	return o.add(v)
}

func (o *variableOutput) add(v int) error {
	flushed, err := o.encoder.Add(o.out, v)
	if err != nil {
		return err
	}
	o.upto += 1 - flushed
	if o.upto < 0 {
		return fmt.Errorf("%w: intblock: encoder flushed %d values with only %d pending",
			codecerr.ErrIllegalState, flushed, o.upto+flushed-1)
	}
	return nil
}

// Close pads the stream with zeros until the encoder has flushed every real
// value, then writes the footer. The file is closed even if padding fails.
func (o *variableOutput) Close() error {
	if o.state == stateClosed {
		return nil
	}
	o.state = stateFlushing

	var padErr error
	for stuffed := 0; o.upto > stuffed; stuffed++ {
		if padErr = o.add(0); padErr != nil {
			break
		}
	}
	o.state = stateClosed

	var footerErr error
	if padErr == nil {
		footerErr = codecutil.WriteFooter(o.out)
	}
	return errors.Join(padErr, footerErr, o.out.Close())
}

type variableInput struct {
	in           store.IndexInput
	codec        VariableBlockCodec
	maxBlockSize int
}

func newVariableInput(in store.IndexInput, codec VariableBlockCodec) (*variableInput, error) {
	if _, err := codecutil.CheckHeader(in, codec.Name(), variableVersionStart, variableVersionCurrent); err != nil {
		return nil, err
	}
	maxBlockSize, err := store.ReadInt32(in)
	if err != nil {
		return nil, err
	}
	if maxBlockSize <= 0 || maxBlockSize > MaxBlockSize {
		return nil, codecerr.Corruptf(in.Name(), "invalid max block size %d", maxBlockSize)
	}
	if _, err := codecutil.RetrieveChecksum(in.Clone()); err != nil {
		return nil, err
	}
	return &variableInput{in: in, codec: codec, maxBlockSize: int(maxBlockSize)}, nil
}

func (vi *variableInput) Reader() Reader {
	return &variableReader{
		owner:       vi,
		in:          vi.in.Clone(),
		codec:       vi.codec,
		block:       make([]int, vi.maxBlockSize),
		lastBlockFP: -1,
	}
}

// Index returns an unbounded cursor: with a look-ahead encoder a marked
// offset can exceed the length of the block it was marked in.
func (vi *variableInput) Index() InputIndex {
	return &inputIndex{owner: vi, resource: vi.in.Name()}
}

func (vi *variableInput) CheckIntegrity() error {
	_, err := codecutil.ChecksumEntireFile(vi.in)
	return err
}

func (vi *variableInput) Close() error { return vi.in.Close() }

type variableReader struct {
	owner       *variableInput
	in          store.IndexInput
	codec       VariableBlockCodec
	block       []int
	blockSize   int
	upto        int
	lastBlockFP int64

	seekPending bool
	pendingFP   int64
	pendingUpto int
}

func (r *variableReader) stream() any { return r.owner }

func (r *variableReader) seek(fp int64, upto int) {
	r.pendingFP = fp
	r.pendingUpto = upto
	r.seekPending = true
}

func (r *variableReader) readBlock() error {
	r.lastBlockFP = r.in.FilePointer()
	n, err := r.codec.DecodeBlock(r.in, r.block)
	if err != nil {
		r.lastBlockFP = -1
		return err
	}
	if n <= 0 || n > len(r.block) {
		r.lastBlockFP = -1
		return codecerr.Corruptf(r.in.Name(), "block length %d out of range (max %d)", n, len(r.block))
	}
	r.blockSize = n
	return nil
}

// maybeSeek applies a pending seek. Block lengths are only known after
// decoding, so an offset past the end of its block walks forward one block
// at a time.
func (r *variableReader) maybeSeek() error {
	if !r.seekPending {
		return nil
	}
	r.seekPending = false
	if r.pendingFP != r.lastBlockFP {
		if err := r.in.Seek(r.pendingFP); err != nil {
			return err
		}
		if err := r.readBlock(); err != nil {
			return err
		}
	}
	r.upto = r.pendingUpto
	for r.upto >= r.blockSize {
		r.upto -= r.blockSize
		if err := r.readBlock(); err != nil {
			return err
		}
	}
	return nil
}

func (r *variableReader) Next() (int, error) {
	if err := r.maybeSeek(); err != nil {
		return 0, err
	}
	if r.upto == r.blockSize {
		if err := r.readBlock(); err != nil {
			return 0, err
		}
		r.upto = 0
	}
	v := r.block[r.upto]
	r.upto++
	return v, nil
}
