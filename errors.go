package segcodec

import (
	"errors"
	"fmt"
)

var (
	// ErrSegmentNotFound is returned when a directory holds no file of the
	// requested segment.
	ErrSegmentNotFound = errors.New("segcodec: segment not found")

	// ErrReaderClosed is returned by a SegmentReader after Close.
	ErrReaderClosed = errors.New("segcodec: segment reader closed")
)

// IntegrityError reports a segment file that failed verification.
//
// The original underlying error can be accessed via errors.Unwrap.
type IntegrityError struct {
	File  string
	cause error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: %v", e.File, e.cause)
}

func (e *IntegrityError) Unwrap() error { return e.cause }
