package intblock

import (
	"fmt"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/store"
)

// positioner reports the position of the next value an output will write.
type positioner interface {
	position() (fp int64, upto int)
}

type outputIndex struct {
	owner    positioner
	fp       int64
	upto     int
	lastFP   int64
	lastUpto int
}

func (idx *outputIndex) Mark() {
	idx.fp, idx.upto = idx.owner.position()
}

func (idx *outputIndex) CopyFrom(other OutputIndex, copyLast bool) error {
	o, ok := other.(*outputIndex)
	if !ok {
		return ErrIndexMismatch
	}
	idx.fp, idx.upto = o.fp, o.upto
	if copyLast {
		idx.lastFP, idx.lastUpto = o.fp, o.upto
	}
	return nil
}

func (idx *outputIndex) Write(out store.DataOutput, absolute bool) error {
	switch {
	case absolute:
		if err := store.WriteVInt(out, uint32(idx.upto)); err != nil {
			return err
		}
		if err := store.WriteVLong(out, uint64(idx.fp)); err != nil {
			return err
		}
	case idx.fp == idx.lastFP:
		if idx.upto < idx.lastUpto {
			return fmt.Errorf("%w: intblock: index moved backwards (upto=%d, last=%d)",
				codecerr.ErrIllegalState, idx.upto, idx.lastUpto)
		}
		if err := store.WriteVInt(out, uint32(idx.upto-idx.lastUpto)<<1|1); err != nil {
			return err
		}
	default:
		if idx.fp < idx.lastFP {
			return fmt.Errorf("%w: intblock: index moved backwards (fp=%d, last=%d)",
				codecerr.ErrIllegalState, idx.fp, idx.lastFP)
		}
		if err := store.WriteVInt(out, uint32(idx.upto)<<1); err != nil {
			return err
		}
		if err := store.WriteVLong(out, uint64(idx.fp-idx.lastFP)); err != nil {
			return err
		}
	}
	idx.lastFP, idx.lastUpto = idx.fp, idx.upto
	return nil
}

// seeker is implemented by readers that an inputIndex can position.
type seeker interface {
	seek(fp int64, upto int)
	stream() any
}

type inputIndex struct {
	owner any
	// maxUpto bounds upto exclusively; 0 means unbounded.
	maxUpto  int
	resource string
	fp       int64
	upto     int
}

func (idx *inputIndex) Read(in store.DataInput, absolute bool) error {
	if absolute {
		upto, err := store.ReadVInt(in)
		if err != nil {
			return err
		}
		fp, err := store.ReadVLong(in)
		if err != nil {
			return err
		}
		idx.upto, idx.fp = int(upto), int64(fp)
	} else {
		delta, err := store.ReadVInt(in)
		if err != nil {
			return err
		}
		if delta&1 == 1 {
			idx.upto += int(delta >> 1)
		} else {
			fpDelta, err := store.ReadVLong(in)
			if err != nil {
				return err
			}
			idx.upto = int(delta >> 1)
			idx.fp += int64(fpDelta)
		}
	}
	if idx.maxUpto > 0 && idx.upto >= idx.maxUpto {
		return codecerr.Corruptf(idx.resource, "block offset %d out of range (block size %d)", idx.upto, idx.maxUpto)
	}
	if idx.fp < 0 {
		return codecerr.Corruptf(idx.resource, "negative block pointer %d", idx.fp)
	}
	return nil
}

func (idx *inputIndex) Seek(r Reader) error {
	s, ok := r.(seeker)
	if !ok || s.stream() != idx.owner {
		return ErrIndexMismatch
	}
	s.seek(idx.fp, idx.upto)
	return nil
}

func (idx *inputIndex) CopyFrom(other InputIndex) error {
	o, ok := other.(*inputIndex)
	if !ok || o.owner != idx.owner {
		return ErrIndexMismatch
	}
	idx.fp, idx.upto = o.fp, o.upto
	return nil
}

func (idx *inputIndex) Clone() InputIndex {
	c := *idx
	return &c
}

func (idx *inputIndex) String() string {
	return fmt.Sprintf("fp=%d upto=%d", idx.fp, idx.upto)
}
