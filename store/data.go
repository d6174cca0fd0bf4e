package store

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/hupe1980/segcodec/codecerr"
)

const (
	maxVIntBytes  = 5
	maxVLongBytes = 9

	// maxStringLength guards against allocating absurd buffers on corrupt lengths.
	maxStringLength = 1 << 28
)

// DataOutput is a sink of bytes.
type DataOutput interface {
	WriteByte(b byte) error
	WriteBytes(b []byte) error
}

// DataInput is a source of bytes.
type DataInput interface {
	ReadByte() (byte, error)
	// ReadBytes fills b completely or fails.
	ReadBytes(b []byte) error
}

// WriteInt32 writes v as four big-endian bytes.
func WriteInt32(out DataOutput, v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return out.WriteBytes(buf[:])
}

// WriteInt64 writes v as eight big-endian bytes.
func WriteInt64(out DataOutput, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return out.WriteBytes(buf[:])
}

// WriteVInt writes v in 1 to 5 bytes.
func WriteVInt(out DataOutput, v uint32) error {
	var buf [maxVIntBytes]byte
	n := binary.PutUvarint(buf[:], uint64(v))
	return out.WriteBytes(buf[:n])
}

// WriteVLong writes v in 1 to 9 bytes. v must fit in 63 bits.
func WriteVLong(out DataOutput, v uint64) error {
	if v > math.MaxInt64 {
		return codecerr.ErrIllegalArgument
	}
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return out.WriteBytes(buf[:n])
}

// WriteZLong writes a signed value with zig-zag encoding.
func WriteZLong(out DataOutput, v int64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64((v<<1)^(v>>63)))
	return out.WriteBytes(buf[:n])
}

// WriteString writes a vInt length followed by the bytes of s.
func WriteString(out DataOutput, s string) error {
	if err := WriteVInt(out, uint32(len(s))); err != nil {
		return err
	}
	return out.WriteBytes([]byte(s))
}

// WriteByteSlice writes a vInt length followed by b.
func WriteByteSlice(out DataOutput, b []byte) error {
	if err := WriteVInt(out, uint32(len(b))); err != nil {
		return err
	}
	return out.WriteBytes(b)
}

// WriteStringMap writes m as a vInt count followed by key/value pairs in key order.
func WriteStringMap(out DataOutput, m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	if err := WriteVInt(out, uint32(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := WriteString(out, k); err != nil {
			return err
		}
		if err := WriteString(out, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// ReadInt32 reads four big-endian bytes.
func ReadInt32(in DataInput) (int32, error) {
	var buf [4]byte
	if err := in.ReadBytes(buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

// ReadInt64 reads eight big-endian bytes.
func ReadInt64(in DataInput) (int64, error) {
	var buf [8]byte
	if err := in.ReadBytes(buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// ReadVInt reads a value written by WriteVInt.
func ReadVInt(in DataInput) (uint32, error) {
	var v uint32
	for shift := uint(0); shift < 7*maxVIntBytes; shift += 7 {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift == 28 && b > 0x0f {
			return 0, codecerr.Corruptf(ResourceName(in), "invalid vInt")
		}
		v |= uint32(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
	}
	return 0, codecerr.Corruptf(ResourceName(in), "invalid vInt")
}

// ReadVLong reads a value written by WriteVLong.
func ReadVLong(in DataInput) (uint64, error) {
	var v uint64
	for shift := uint(0); shift < 7*maxVLongBytes; shift += 7 {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
	}
	return 0, codecerr.Corruptf(ResourceName(in), "invalid vLong")
}

// ReadZLong reads a value written by WriteZLong.
func ReadZLong(in DataInput) (int64, error) {
	var v uint64
	for shift := uint(0); shift < 70; shift += 7 {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return int64(v>>1) ^ -int64(v&1), nil
		}
	}
	return 0, codecerr.Corruptf(ResourceName(in), "invalid zLong")
}

// ReadString reads a string written by WriteString.
func ReadString(in DataInput) (string, error) {
	b, err := ReadByteSlice(in)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadByteSlice reads a slice written by WriteByteSlice.
func ReadByteSlice(in DataInput) ([]byte, error) {
	n, err := ReadVInt(in)
	if err != nil {
		return nil, err
	}
	if n > maxStringLength {
		return nil, codecerr.Corruptf(ResourceName(in), "invalid length %d", n)
	}
	b := make([]byte, n)
	if err := in.ReadBytes(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadStringMap reads a map written by WriteStringMap.
func ReadStringMap(in DataInput) (map[string]string, error) {
	n, err := ReadVInt(in)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, min(n, 1024))
	for i := uint32(0); i < n; i++ {
		k, err := ReadString(in)
		if err != nil {
			return nil, err
		}
		v, err := ReadString(in)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// ResourceName describes in for error messages.
func ResourceName(in DataInput) string {
	if n, ok := in.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "DataInput"
}
