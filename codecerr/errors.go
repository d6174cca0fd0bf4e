// Package codecerr defines the error kinds shared by every layer of the codec.
//
// Three kinds exist and none of them is retryable:
//
//   - corruption ([ErrCorruptIndex]): bad magic, wrong codec name, checksum
//     mismatch, trailing bytes, truncated files, malformed metadata.
//   - version incompatibility ([ErrVersionIncompatible]): the file is intact
//     but was written by a format version outside the supported range.
//   - usage errors ([ErrIllegalArgument], [ErrIllegalState]): the caller
//     violated an API contract.
//
// Match them with errors.Is; typed errors carry the details.
package codecerr

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptIndex matches every corruption error.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrVersionIncompatible matches both too-old and too-new format errors.
	ErrVersionIncompatible = errors.New("incompatible index format version")

	// ErrIndexFormatTooOld is returned when a file predates the oldest supported version.
	ErrIndexFormatTooOld = fmt.Errorf("%w: too old", ErrVersionIncompatible)

	// ErrIndexFormatTooNew is returned when a file is newer than the reader understands.
	ErrIndexFormatTooNew = fmt.Errorf("%w: too new", ErrVersionIncompatible)

	// ErrIllegalArgument marks a usage error caused by an invalid argument.
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrIllegalState marks a usage error caused by calling an operation at the wrong time.
	ErrIllegalState = errors.New("illegal state")
)

// CorruptIndexError reports a structural problem in a file.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type CorruptIndexError struct {
	Resource string
	Msg      string
	cause    error
}

// NewCorrupt returns a *CorruptIndexError for resource.
func NewCorrupt(resource, msg string, cause error) error {
	return &CorruptIndexError{Resource: resource, Msg: msg, cause: cause}
}

// Corruptf is like NewCorrupt with a formatted message.
func Corruptf(resource, format string, args ...any) error {
	return &CorruptIndexError{Resource: resource, Msg: fmt.Sprintf(format, args...)}
}

func (e *CorruptIndexError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("corrupt index: %s (resource=%s): %v", e.Msg, e.Resource, e.cause)
	}
	return fmt.Sprintf("corrupt index: %s (resource=%s)", e.Msg, e.Resource)
}

func (e *CorruptIndexError) Unwrap() error { return e.cause }

// Is reports whether target is ErrCorruptIndex.
func (e *CorruptIndexError) Is(target error) bool { return target == ErrCorruptIndex }

// IndexFormatTooOldError reports a version below the supported minimum.
type IndexFormatTooOldError struct {
	Resource   string
	Version    int32
	MinVersion int32
	MaxVersion int32
}

func (e *IndexFormatTooOldError) Error() string {
	return fmt.Sprintf("format version is not supported (resource=%s): %d (needs to be between %d and %d); this index is too old",
		e.Resource, e.Version, e.MinVersion, e.MaxVersion)
}

// Is reports whether target is ErrIndexFormatTooOld or ErrVersionIncompatible.
func (e *IndexFormatTooOldError) Is(target error) bool {
	return target == ErrIndexFormatTooOld || target == ErrVersionIncompatible
}

// IndexFormatTooNewError reports a version above the supported maximum.
type IndexFormatTooNewError struct {
	Resource   string
	Version    int32
	MinVersion int32
	MaxVersion int32
}

func (e *IndexFormatTooNewError) Error() string {
	return fmt.Sprintf("format version is not supported (resource=%s): %d (needs to be between %d and %d); upgrade the reader",
		e.Resource, e.Version, e.MinVersion, e.MaxVersion)
}

// Is reports whether target is ErrIndexFormatTooNew or ErrVersionIncompatible.
func (e *IndexFormatTooNewError) Is(target error) bool {
	return target == ErrIndexFormatTooNew || target == ErrVersionIncompatible
}

// IsCorrupt reports whether err is a corruption error.
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorruptIndex) }

// IsVersionIncompatible reports whether err is a version incompatibility.
func IsVersionIncompatible(err error) bool { return errors.Is(err, ErrVersionIncompatible) }
