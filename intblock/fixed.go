package intblock

import (
	"fmt"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/store"
)

const (
	fixedVersionStart   int32 = 0
	fixedVersionCurrent int32 = fixedVersionStart

	// MaxBlockSize bounds block sizes read from disk.
	MaxBlockSize = 1 << 16
)

// FixedBlockCodec encodes blocks of exactly len(block) values.
// Implementations are stateless and safe for concurrent use.
type FixedBlockCodec interface {
	// Name is written to the stream header.
	Name() string
	EncodeBlock(out store.IndexOutput, block []int) error
	DecodeBlock(in store.IndexInput, block []int) error
}

// FixedFactory creates fixed-size block streams.
type FixedFactory struct {
	Codec     FixedBlockCodec
	BlockSize int
}

// NewFixedFactory returns a factory for blocks of blockSize values.
func NewFixedFactory(codec FixedBlockCodec, blockSize int) (*FixedFactory, error) {
	if blockSize <= 0 || blockSize > MaxBlockSize {
		return nil, fmt.Errorf("%w: block size %d out of range", codecerr.ErrIllegalArgument, blockSize)
	}
	return &FixedFactory{Codec: codec, BlockSize: blockSize}, nil
}

// CreateOutput implements StreamFactory.
func (f *FixedFactory) CreateOutput(dir store.Directory, name string, ctx store.IOContext) (Output, error) {
	out, err := dir.CreateOutput(name, ctx)
	if err != nil {
		return nil, err
	}
	w, err := newFixedOutput(out, f.Codec, f.BlockSize)
	if err != nil {
		ioutil.CloseWhileHandling(out)
		return nil, err
	}
	return w, nil
}

// OpenInput implements StreamFactory.
func (f *FixedFactory) OpenInput(dir store.Directory, name string, ctx store.IOContext) (Input, error) {
	in, err := dir.OpenInput(name, ctx)
	if err != nil {
		return nil, err
	}
	r, err := newFixedInput(in, f.Codec)
	if err != nil {
		ioutil.CloseWhileHandling(in)
		return nil, err
	}
	return r, nil
}

type fixedOutput struct {
	out    store.IndexOutput
	codec  FixedBlockCodec
	buffer []int
	upto   int
	closed bool
}

func newFixedOutput(out store.IndexOutput, codec FixedBlockCodec, blockSize int) (*fixedOutput, error) {
	if err := codecutil.WriteHeader(out, codec.Name(), fixedVersionCurrent); err != nil {
		return nil, err
	}
	if err := store.WriteVInt(out, uint32(blockSize)); err != nil {
		return nil, err
	}
	return &fixedOutput{out: out, codec: codec, buffer: make([]int, blockSize)}, nil
}

func (o *fixedOutput) position() (int64, int) { return o.out.FilePointer(), o.upto }

func (o *fixedOutput) Index() OutputIndex { return &outputIndex{owner: o} }

func (o *fixedOutput) Write(v int) error {
	if o.closed {
		return ErrClosed
	}
	if v < 0 {
		return ErrNegativeValue
	}
	o.buffer[o.upto] = v
	o.upto++
	if o.upto == len(o.buffer) {
		if err := o.codec.EncodeBlock(o.out, o.buffer); err != nil {
			return err
		}
		o.upto = 0
	}
	return nil
}

func (o *fixedOutput) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true

	var err error
	if o.upto > 0 {
		// values past upto are left over from the previous block
		err = o.codec.EncodeBlock(o.out, o.buffer)
	}
	if err == nil {
		err = codecutil.WriteFooter(o.out)
	}
	if closeErr := o.out.Close(); err == nil {
		err = closeErr
	}
	return err
}

type fixedInput struct {
	in        store.IndexInput
	codec     FixedBlockCodec
	blockSize int
}

func newFixedInput(in store.IndexInput, codec FixedBlockCodec) (*fixedInput, error) {
	if _, err := codecutil.CheckHeader(in, codec.Name(), fixedVersionStart, fixedVersionCurrent); err != nil {
		return nil, err
	}
	blockSize, err := store.ReadVInt(in)
	if err != nil {
		return nil, err
	}
	if blockSize == 0 || blockSize > MaxBlockSize {
		return nil, codecerr.Corruptf(in.Name(), "invalid block size %d", blockSize)
	}
	if _, err := codecutil.RetrieveChecksum(in.Clone()); err != nil {
		return nil, err
	}
	return &fixedInput{in: in, codec: codec, blockSize: int(blockSize)}, nil
}

func (fi *fixedInput) Reader() Reader {
	return &fixedReader{
		owner:       fi,
		in:          fi.in.Clone(),
		codec:       fi.codec,
		block:       make([]int, fi.blockSize),
		upto:        fi.blockSize,
		lastBlockFP: -1,
	}
}

func (fi *fixedInput) Index() InputIndex {
	return &inputIndex{owner: fi, maxUpto: fi.blockSize, resource: fi.in.Name()}
}

func (fi *fixedInput) CheckIntegrity() error {
	_, err := codecutil.ChecksumEntireFile(fi.in)
	return err
}

func (fi *fixedInput) Close() error { return fi.in.Close() }

type fixedReader struct {
	owner       *fixedInput
	in          store.IndexInput
	codec       FixedBlockCodec
	block       []int
	upto        int
	lastBlockFP int64

	seekPending bool
	pendingFP   int64
}

func (r *fixedReader) stream() any { return r.owner }

func (r *fixedReader) seek(fp int64, upto int) {
	if r.seekPending || fp != r.lastBlockFP {
		r.pendingFP = fp
		r.seekPending = true
	}
	r.upto = upto
}

func (r *fixedReader) maybeSeek() error {
	if !r.seekPending {
		return nil
	}
	r.seekPending = false
	if r.pendingFP == r.lastBlockFP {
		return nil
	}
	if err := r.in.Seek(r.pendingFP); err != nil {
		return err
	}
	return r.readBlock()
}

func (r *fixedReader) readBlock() error {
	r.lastBlockFP = r.in.FilePointer()
	if err := r.codec.DecodeBlock(r.in, r.block); err != nil {
		r.lastBlockFP = -1
		return err
	}
	return nil
}

func (r *fixedReader) Next() (int, error) {
	if err := r.maybeSeek(); err != nil {
		return 0, err
	}
	if r.upto == len(r.block) {
		if err := r.readBlock(); err != nil {
			return 0, err
		}
		r.upto = 0
	}
	v := r.block[r.upto]
	r.upto++
	return v, nil
}
