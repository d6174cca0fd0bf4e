package compression

import (
	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/store"
)

// maxBlockSize bounds the lengths accepted by ReadBlock.
const maxBlockSize = 1 << 30

// WriteBlock compresses data with t and writes it framed as
// [type:byte][uncompressed:vInt][stored:vInt][bytes].
func WriteBlock(out store.DataOutput, data []byte, t Type) error {
	stored, used, err := Compress(data, t)
	if err != nil {
		return err
	}
	if err := out.WriteByte(byte(used)); err != nil {
		return err
	}
	if err := store.WriteVInt(out, uint32(len(data))); err != nil {
		return err
	}
	if used == None {
		return out.WriteBytes(data)
	}
	if err := store.WriteVInt(out, uint32(len(stored))); err != nil {
		return err
	}
	return out.WriteBytes(stored)
}

// ReadBlock reads and decompresses a block written by WriteBlock. Malformed
// frames are reported as corruption.
func ReadBlock(in store.DataInput) ([]byte, error) {
	b, err := in.ReadByte()
	if err != nil {
		return nil, err
	}
	t := Type(b)
	if !t.Valid() {
		return nil, codecerr.Corruptf(store.ResourceName(in), "unknown compression type %d", b)
	}
	size, err := store.ReadVInt(in)
	if err != nil {
		return nil, err
	}
	if size > maxBlockSize {
		return nil, codecerr.Corruptf(store.ResourceName(in), "block size %d out of range", size)
	}
	storedSize := size
	if t != None {
		if storedSize, err = store.ReadVInt(in); err != nil {
			return nil, err
		}
		if storedSize > maxBlockSize {
			return nil, codecerr.Corruptf(store.ResourceName(in), "compressed size %d out of range", storedSize)
		}
	}
	stored := make([]byte, storedSize)
	if err := in.ReadBytes(stored); err != nil {
		return nil, err
	}
	data, err := Decompress(stored, t, int(size))
	if err != nil {
		return nil, codecerr.NewCorrupt(store.ResourceName(in), "decompress "+t.String()+" block", err)
	}
	return data, nil
}
