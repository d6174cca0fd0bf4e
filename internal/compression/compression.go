// Package compression compresses opaque byte blocks with LZ4, Zstandard or
// Snappy. Callers frame the result themselves and record the Type actually
// used, which may be None when compression does not pay off.
package compression

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a compression algorithm. The numeric values are persisted.
type Type uint8

const (
	None   Type = 0
	LZ4    Type = 1
	ZSTD   Type = 2
	Snappy Type = 3
)

var (
	// ErrUnknownType is returned for a Type value this package does not know.
	ErrUnknownType = errors.New("compression: unknown type")

	// ErrSizeMismatch is returned when a block decodes to an unexpected length.
	ErrSizeMismatch = errors.New("compression: decompressed size mismatch")
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	case Snappy:
		return "snappy"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseType maps a name such as "zstd" to its Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	case "snappy":
		return Snappy, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Valid reports whether t is a known Type.
func (t Type) Valid() bool { return t <= Snappy }

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// minSavings is the fraction a block must shrink by to be stored compressed.
const minSavings = 0.1

// Compress compresses data with t. It returns data itself and None when the
// compressed form would not be at least 10% smaller.
func Compress(data []byte, t Type) ([]byte, Type, error) {
	if t == None || len(data) == 0 {
		return data, None, nil
	}

	var compressed []byte
	switch t {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, None, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case Snappy:
		compressed = snappy.Encode(nil, data)
	default:
		return nil, None, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*(1-minSavings) {
		return data, None, nil
	}
	return compressed, t, nil
}

// Decompress reverses Compress. size is the uncompressed length recorded by
// the caller.
func Decompress(data []byte, t Type, size int) ([]byte, error) {
	switch t {
	case None:
		if len(data) != size {
			return nil, ErrSizeMismatch
		}
		return data, nil
	case LZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, err
		}
		if len(out) != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	case Snappy:
		n, err := snappy.DecodedLen(data)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, ErrSizeMismatch
		}
		return snappy.Decode(make([]byte, size), data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
}
