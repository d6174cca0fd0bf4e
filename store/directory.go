package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/segcodec/codecerr"
)

var (
	// ErrFileExists is returned when creating a file that already exists.
	// Codec files are write-once.
	ErrFileExists = errors.New("store: file already exists")

	// ErrFileNotFound is returned when opening a missing file.
	ErrFileNotFound = errors.New("store: file not found")

	// ErrDirectoryClosed is returned by operations on a closed directory.
	ErrDirectoryClosed = errors.New("store: directory closed")
)

// ContextKind describes why a file is being written or read.
type ContextKind uint8

const (
	ContextDefault ContextKind = iota
	ContextFlush
	ContextMerge
	ContextReadOnce
)

func (k ContextKind) String() string {
	switch k {
	case ContextFlush:
		return "flush"
	case ContextMerge:
		return "merge"
	case ContextReadOnce:
		return "read-once"
	default:
		return "default"
	}
}

// IOContext is a buffering and throttling hint. It never affects the bytes.
type IOContext struct {
	Kind ContextKind
	// MaxWriteBytesPerSec throttles outputs when positive.
	MaxWriteBytesPerSec int
}

// DefaultIOContext is the zero hint.
var DefaultIOContext = IOContext{}

// Directory is a flat namespace of write-once files.
type Directory interface {
	// CreateOutput creates a new file. It fails with ErrFileExists if name is taken.
	CreateOutput(name string, ctx IOContext) (IndexOutput, error)
	// OpenInput opens an existing file. It fails with ErrFileNotFound if name is missing.
	OpenInput(name string, ctx IOContext) (IndexInput, error)
	DeleteFile(name string) error
	FileExists(name string) bool
	FileLength(name string) (int64, error)
	// ListAll returns all file names in sorted order.
	ListAll() ([]string, error)
	Close() error
}

// SegmentFileName composes segment, suffix and extension into a file name:
// "_0" + "Memory_0" + "mem" => "_0_Memory_0.mem".
func SegmentFileName(segment, suffix, ext string) string {
	var sb strings.Builder
	sb.WriteString(segment)
	if suffix != "" {
		sb.WriteByte('_')
		sb.WriteString(suffix)
	}
	if ext != "" {
		sb.WriteByte('.')
		sb.WriteString(ext)
	}
	return sb.String()
}

// FileExtension returns the part of name after the last '.', or "".
func FileExtension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// CheckSegmentName reports whether segment can name a segment. A name is
// non-empty, has no '.', and has no '_' other than a leading one, so that
// "_0" and "a" are valid but "_0_1" and "a.b" are not. Every file of a
// segment is named "<segment>.<ext>" or "<segment>_<suffix>.<ext>", which
// keeps the files of "a" apart from those of any other segment.
func CheckSegmentName(segment string) error {
	body := strings.TrimPrefix(segment, "_")
	if body == "" || strings.ContainsAny(body, "._") {
		return fmt.Errorf("%w: invalid segment name %q", codecerr.ErrIllegalArgument, segment)
	}
	return nil
}

// SegmentFiles returns the names in dir that belong to segment.
func SegmentFiles(dir Directory, segment string) ([]string, error) {
	if err := CheckSegmentName(segment); err != nil {
		return nil, err
	}
	all, err := dir.ListAll()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range all {
		if OwnsFile(segment, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// OwnsFile reports whether name is a file of segment: "<segment>.<ext>" or
// "<segment>_<suffix>.<ext>" with a single '.'.
func OwnsFile(segment, name string) bool {
	rest, ok := strings.CutPrefix(name, segment)
	if !ok || rest == "" {
		return false
	}
	switch rest[0] {
	case '.':
		ext := rest[1:]
		return ext != "" && !strings.Contains(ext, ".")
	case '_':
		suffix, ext, ok := strings.Cut(rest[1:], ".")
		return ok && suffix != "" && ext != "" && !strings.Contains(ext, ".")
	default:
		return false
	}
}

func wrapOutput(out IndexOutput, ctx IOContext) IndexOutput {
	return NewRateLimitedOutput(out, ctx.MaxWriteBytesPerSec)
}
