package codecutil

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/store"
)

const (
	// CodecMagic starts every header.
	CodecMagic int32 = 0x3fd76c17

	// FooterMagic starts every footer.
	FooterMagic int32 = ^CodecMagic

	// FooterLength is the fixed size of a footer in bytes.
	FooterLength = 16

	// MaxCodecNameLength is the exclusive upper bound on codec name length.
	MaxCodecNameLength = 128

	checksumAlgorithm int32 = 0
)

// ErrInvalidCodecName is returned when a codec name is not short ASCII.
var ErrInvalidCodecName = fmt.Errorf("%w: codec name must be ASCII and shorter than %d characters",
	codecerr.ErrIllegalArgument, MaxCodecNameLength)

func validateName(codec string) error {
	if len(codec) >= MaxCodecNameLength {
		return fmt.Errorf("%w: %q", ErrInvalidCodecName, codec)
	}
	for i := 0; i < len(codec); i++ {
		if codec[i] >= 0x80 {
			return fmt.Errorf("%w: %q", ErrInvalidCodecName, codec)
		}
	}
	return nil
}

// WriteHeader writes the magic, codec name and version to out.
func WriteHeader(out store.DataOutput, codec string, version int32) error {
	if err := validateName(codec); err != nil {
		return err
	}
	if err := store.WriteInt32(out, CodecMagic); err != nil {
		return err
	}
	if err := store.WriteString(out, codec); err != nil {
		return err
	}
	return store.WriteInt32(out, version)
}

// HeaderLength returns the number of bytes WriteHeader produces for codec.
func HeaderLength(codec string) int {
	return 9 + len(codec)
}

// CheckHeader reads a header and validates it against codec and the
// inclusive version range. It returns the version found.
func CheckHeader(in store.DataInput, codec string, minVersion, maxVersion int32) (int32, error) {
	magic, err := store.ReadInt32(in)
	if err != nil {
		return 0, err
	}
	if magic != CodecMagic {
		return 0, codecerr.Corruptf(store.ResourceName(in),
			"codec header mismatch: actual header=%d vs expected header=%d", magic, CodecMagic)
	}
	return CheckHeaderNoMagic(in, codec, minVersion, maxVersion)
}

// CheckHeaderNoMagic is CheckHeader for callers that already consumed the magic.
func CheckHeaderNoMagic(in store.DataInput, codec string, minVersion, maxVersion int32) (int32, error) {
	name, err := readName(in)
	if err != nil {
		return 0, err
	}
	if name != codec {
		return 0, codecerr.Corruptf(store.ResourceName(in),
			"codec mismatch: actual codec=%s vs expected codec=%s", name, codec)
	}
	version, err := store.ReadInt32(in)
	if err != nil {
		return 0, err
	}
	resource := store.ResourceName(in)
	if version < minVersion {
		return 0, &codecerr.IndexFormatTooOldError{Resource: resource, Version: version, MinVersion: minVersion, MaxVersion: maxVersion}
	}
	if version > maxVersion {
		return 0, &codecerr.IndexFormatTooNewError{Resource: resource, Version: version, MinVersion: minVersion, MaxVersion: maxVersion}
	}
	return version, nil
}

// ReadHeader reads a header without validating the codec name or version.
func ReadHeader(in store.DataInput) (codec string, version int32, err error) {
	magic, err := store.ReadInt32(in)
	if err != nil {
		return "", 0, err
	}
	if magic != CodecMagic {
		return "", 0, codecerr.Corruptf(store.ResourceName(in),
			"codec header mismatch: actual header=%d vs expected header=%d", magic, CodecMagic)
	}
	if codec, err = readName(in); err != nil {
		return "", 0, err
	}
	if version, err = store.ReadInt32(in); err != nil {
		return "", 0, err
	}
	return codec, version, nil
}

func readName(in store.DataInput) (string, error) {
	n, err := store.ReadVInt(in)
	if err != nil {
		return "", err
	}
	if n >= MaxCodecNameLength {
		return "", codecerr.Corruptf(store.ResourceName(in), "codec name length %d out of range", n)
	}
	buf := make([]byte, n)
	if err := in.ReadBytes(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteFooter writes the footer magic, algorithm id and the running checksum
// of out. Nothing may be written after the footer.
func WriteFooter(out store.IndexOutput) error {
	if err := store.WriteInt32(out, FooterMagic); err != nil {
		return err
	}
	if err := store.WriteInt32(out, checksumAlgorithm); err != nil {
		return err
	}
	return store.WriteInt64(out, int64(out.Checksum()))
}

// CheckFooter validates the footer at the current position of in, which must
// be exactly FooterLength bytes before the end. It returns the checksum.
func CheckFooter(in *store.ChecksumIndexInput) (uint64, error) {
	if err := validateFooterPosition(in); err != nil {
		return 0, err
	}
	if err := readFooterPrefix(in); err != nil {
		return 0, err
	}
	actual := in.Checksum()
	expected, err := readChecksum(in)
	if err != nil {
		return 0, err
	}
	if expected != actual {
		return 0, codecerr.Corruptf(in.Name(),
			"checksum failed (hardware problem?) : expected=%x actual=%x", expected, actual)
	}
	return actual, nil
}

// CheckFooterOnError completes a reader's cleanup after a failure. If the
// footer is intact and the checksum matches, the original error is returned
// annotated with that fact; a checksum mismatch is joined to it.
func CheckFooterOnError(in *store.ChecksumIndexInput, prior error) error {
	if prior == nil {
		_, err := CheckFooter(in)
		return err
	}
	if in.FilePointer() <= in.Length()-FooterLength {
		if err := in.Seek(in.Length() - FooterLength); err != nil {
			return errors.Join(prior, err)
		}
	}
	if _, err := CheckFooter(in); err != nil {
		return errors.Join(prior, err)
	}
	return fmt.Errorf("%w (checksum passed; the error is not caused by file damage)", prior)
}

// RetrieveChecksum returns the stored checksum by seeking to the footer.
// It validates the footer structure but not the checksum itself.
func RetrieveChecksum(in store.IndexInput) (uint64, error) {
	if in.Length() < FooterLength {
		return 0, codecerr.Corruptf(in.Name(),
			"misplaced codec footer (file truncated?): length=%d but footerLength=%d", in.Length(), FooterLength)
	}
	if err := in.Seek(in.Length() - FooterLength); err != nil {
		return 0, err
	}
	if err := readFooterPrefix(in); err != nil {
		return 0, err
	}
	return readChecksum(in)
}

// ChecksumEntireFile hashes a clone of in from offset 0 and validates the
// footer. in's position is left unchanged.
func ChecksumEntireFile(in store.IndexInput) (uint64, error) {
	clone := in.Clone()
	defer clone.Close()

	if err := clone.Seek(0); err != nil {
		return 0, err
	}
	ci := store.NewChecksumIndexInput(clone)
	if ci.Length() < FooterLength {
		return 0, codecerr.Corruptf(in.Name(),
			"misplaced codec footer (file truncated?): length=%d but footerLength=%d", ci.Length(), FooterLength)
	}
	if err := ci.Seek(ci.Length() - FooterLength); err != nil {
		return 0, err
	}
	return CheckFooter(ci)
}

// FileInfo is what VerifyFile learned about a file.
type FileInfo struct {
	Codec    string
	Version  int32
	Length   int64
	Checksum uint64
}

// AnyCodec makes VerifyFile accept whatever codec and version a header names.
const AnyCodec = ""

// VerifyFile opens name, validates its header, then validates the whole-file
// checksum. Unless codec is AnyCodec the header must name codec with a
// version in [minVersion, maxVersion]. On failure the returned info holds
// what was read before the failure.
func VerifyFile(dir store.Directory, name, codec string, minVersion, maxVersion int32) (FileInfo, error) {
	in, err := store.OpenChecksumInput(dir, name, store.IOContext{Kind: store.ContextReadOnce})
	if err != nil {
		return FileInfo{}, err
	}
	defer in.Close()

	info := FileInfo{Length: in.Length()}
	if codec == AnyCodec {
		codec, info.Version, err = ReadHeader(in)
	} else {
		info.Version, err = CheckHeader(in, codec, minVersion, maxVersion)
	}
	if err != nil {
		return info, err
	}
	info.Codec = codec
	if in.Length() < in.FilePointer()+FooterLength {
		return info, codecerr.Corruptf(in.Name(), "misplaced codec footer (file truncated?)")
	}
	if err := in.Seek(in.Length() - FooterLength); err != nil {
		return info, err
	}
	info.Checksum, err = CheckFooter(in)
	return info, err
}

func validateFooterPosition(in *store.ChecksumIndexInput) error {
	remaining := in.Length() - in.FilePointer()
	if remaining < FooterLength {
		return codecerr.Corruptf(in.Name(),
			"misplaced codec footer (file truncated?): remaining=%d, expected=%d, fp=%d", remaining, FooterLength, in.FilePointer())
	}
	if remaining > FooterLength {
		return codecerr.Corruptf(in.Name(),
			"misplaced codec footer (file extended?): remaining=%d, expected=%d, fp=%d", remaining, FooterLength, in.FilePointer())
	}
	return nil
}

func readFooterPrefix(in store.DataInput) error {
	magic, err := store.ReadInt32(in)
	if err != nil {
		return err
	}
	if magic != FooterMagic {
		return codecerr.Corruptf(store.ResourceName(in),
			"codec footer mismatch (file truncated?): actual footer=%d vs expected footer=%d", magic, FooterMagic)
	}
	algorithm, err := store.ReadInt32(in)
	if err != nil {
		return err
	}
	if algorithm != checksumAlgorithm {
		return codecerr.Corruptf(store.ResourceName(in), "unknown checksum algorithm=%d", algorithm)
	}
	return nil
}

func readChecksum(in store.DataInput) (uint64, error) {
	v, err := store.ReadInt64(in)
	if err != nil {
		return 0, err
	}
	if uint64(v)>>32 != 0 {
		return 0, codecerr.Corruptf(store.ResourceName(in), "illegal CRC-32 checksum: %d", v)
	}
	return uint64(v), nil
}
