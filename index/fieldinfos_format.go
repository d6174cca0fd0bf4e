package index

import (
	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/store"
)

const (
	// FieldInfosExtension is the file extension of persisted field infos.
	FieldInfosExtension = "fnm"

	fieldInfosCodec          = "FieldInfos"
	fieldInfosVersionStart   = 0
	fieldInfosVersionCurrent = fieldInfosVersionStart

	maxFields = 1 << 20
)

// FieldInfosFormat persists FieldInfos, attribute bags included, in a
// framed .fnm file.
type FieldInfosFormat struct{}

// Write stores infos as segment's field infos.
func (FieldInfosFormat) Write(dir store.Directory, segment, suffix string, infos *FieldInfos, ctx store.IOContext) (err error) {
	name := store.SegmentFileName(segment, suffix, FieldInfosExtension)
	out, err := dir.CreateOutput(name, ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	if err := codecutil.WriteHeader(out, fieldInfosCodec, fieldInfosVersionCurrent); err != nil {
		return err
	}
	if err := store.WriteVInt(out, uint32(infos.Len())); err != nil {
		return err
	}
	for _, fi := range infos.All() {
		if err := writeFieldInfo(out, fi); err != nil {
			return err
		}
	}
	return codecutil.WriteFooter(out)
}

func writeFieldInfo(out store.DataOutput, fi *FieldInfo) error {
	if err := store.WriteString(out, fi.Name); err != nil {
		return err
	}
	if err := store.WriteVInt(out, uint32(fi.Number)); err != nil {
		return err
	}
	if err := out.WriteByte(byte(fi.IndexOptions)); err != nil {
		return err
	}
	if err := out.WriteByte(byte(fi.DocValuesType)); err != nil {
		return err
	}
	if err := store.WriteZLong(out, fi.DocValuesGen); err != nil {
		return err
	}
	return store.WriteStringMap(out, fi.Attributes())
}

// Read loads segment's field infos and verifies the file checksum.
func (FieldInfosFormat) Read(dir store.Directory, segment, suffix string, ctx store.IOContext) (*FieldInfos, error) {
	name := store.SegmentFileName(segment, suffix, FieldInfosExtension)
	in, err := store.OpenChecksumInput(dir, name, ctx)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	infos, readErr := readFieldInfos(in)
	if err := codecutil.CheckFooterOnError(in, readErr); err != nil {
		return nil, err
	}
	return infos, nil
}

func readFieldInfos(in *store.ChecksumIndexInput) (*FieldInfos, error) {
	if _, err := codecutil.CheckHeader(in, fieldInfosCodec, fieldInfosVersionStart, fieldInfosVersionCurrent); err != nil {
		return nil, err
	}
	n, err := store.ReadVInt(in)
	if err != nil {
		return nil, err
	}
	if n > maxFields {
		return nil, codecerr.Corruptf(in.Name(), "invalid field count %d", n)
	}
	infos := &FieldInfos{byName: make(map[string]*FieldInfo, n)}
	for range n {
		fi, err := readFieldInfo(in)
		if err != nil {
			return nil, err
		}
		if err := infos.Add(fi); err != nil {
			return nil, codecerr.NewCorrupt(in.Name(), "invalid field", err)
		}
	}
	return infos, nil
}

func readFieldInfo(in *store.ChecksumIndexInput) (*FieldInfo, error) {
	name, err := store.ReadString(in)
	if err != nil {
		return nil, err
	}
	number, err := store.ReadVInt(in)
	if err != nil {
		return nil, err
	}
	opts, err := in.ReadByte()
	if err != nil {
		return nil, err
	}
	if IndexOptions(opts) > IndexOptionsDocsAndFreqsAndPositions {
		return nil, codecerr.Corruptf(in.Name(), "invalid index options %d for field %q", opts, name)
	}
	dvType, err := in.ReadByte()
	if err != nil {
		return nil, err
	}
	if DocValuesType(dvType) > DocValuesSorted {
		return nil, codecerr.Corruptf(in.Name(), "invalid doc values type %d for field %q", dvType, name)
	}
	gen, err := store.ReadZLong(in)
	if err != nil {
		return nil, err
	}
	attrs, err := store.ReadStringMap(in)
	if err != nil {
		return nil, err
	}
	fi := NewFieldInfo(name, int(number), IndexOptions(opts), DocValuesType(dvType))
	fi.DocValuesGen = gen
	fi.setAttributes(attrs)
	return fi, nil
}
