package index

import (
	"fmt"
	"math"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/store"
)

const (
	// SegmentInfoExtension is the file extension of persisted segment infos.
	SegmentInfoExtension = "si"

	segmentInfoCodec          = "SegmentInfo"
	segmentInfoVersionStart   = 0
	segmentInfoVersionCurrent = segmentInfoVersionStart
)

// SegmentInfo is the per-segment metadata written once at flush.
type SegmentInfo struct {
	Name     string
	DocCount int
	// Codec is the name of the codec that wrote the segment.
	Codec string
	// Diagnostics are free-form key/value pairs, for example the writer version.
	Diagnostics map[string]string
}

// SegmentInfoFormat persists a SegmentInfo in a framed .si file.
type SegmentInfoFormat struct{}

// Write stores si as "<si.Name>.si".
func (SegmentInfoFormat) Write(dir store.Directory, si *SegmentInfo, ctx store.IOContext) (err error) {
	if si.DocCount < 0 || si.DocCount > math.MaxInt32 {
		return fmt.Errorf("%w: segment %q has doc count %d", codecerr.ErrIllegalArgument, si.Name, si.DocCount)
	}
	out, err := dir.CreateOutput(store.SegmentFileName(si.Name, "", SegmentInfoExtension), ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	if err := codecutil.WriteHeader(out, segmentInfoCodec, segmentInfoVersionCurrent); err != nil {
		return err
	}
	if err := store.WriteString(out, si.Codec); err != nil {
		return err
	}
	if err := store.WriteInt32(out, int32(si.DocCount)); err != nil {
		return err
	}
	if err := store.WriteStringMap(out, si.Diagnostics); err != nil {
		return err
	}
	return codecutil.WriteFooter(out)
}

// Read loads the info of segment and verifies the file checksum.
func (SegmentInfoFormat) Read(dir store.Directory, segment string, ctx store.IOContext) (*SegmentInfo, error) {
	in, err := store.OpenChecksumInput(dir, store.SegmentFileName(segment, "", SegmentInfoExtension), ctx)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	si, readErr := readSegmentInfo(in, segment)
	if err := codecutil.CheckFooterOnError(in, readErr); err != nil {
		return nil, err
	}
	return si, nil
}

func readSegmentInfo(in *store.ChecksumIndexInput, segment string) (*SegmentInfo, error) {
	if _, err := codecutil.CheckHeader(in, segmentInfoCodec, segmentInfoVersionStart, segmentInfoVersionCurrent); err != nil {
		return nil, err
	}
	codec, err := store.ReadString(in)
	if err != nil {
		return nil, err
	}
	docCount, err := store.ReadInt32(in)
	if err != nil {
		return nil, err
	}
	if docCount < 0 {
		return nil, codecerr.Corruptf(in.Name(), "invalid doc count %d", docCount)
	}
	diag, err := store.ReadStringMap(in)
	if err != nil {
		return nil, err
	}
	return &SegmentInfo{Name: segment, DocCount: int(docCount), Codec: codec, Diagnostics: diag}, nil
}
