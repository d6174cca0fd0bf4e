package segcodec

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/store"
)

// FileStatus is the verification result of one segment file.
type FileStatus struct {
	Name     string `json:"name"`
	Codec    string `json:"codec,omitempty"`
	Version  int32  `json:"version"`
	Length   int64  `json:"length"`
	Checksum uint64 `json:"checksum,omitempty"`
	// Err is set when the file failed verification.
	Err error `json:"-"`
}

// OK reports whether the file passed verification.
func (s FileStatus) OK() bool { return s.Err == nil }

// VerifySegment checks the header and whole-file checksum of every file of
// segment, across all generations, without decoding their content.
//
// Every file is checked even after a failure. The returned error joins one
// *IntegrityError per failed file.
func (c *Codec) VerifySegment(ctx context.Context, dir store.Directory, segment string) ([]FileStatus, error) {
	files, err := store.SegmentFiles(dir, segment)
	if err != nil {
		return nil, err
	}
	if !dir.FileExists(store.SegmentFileName(segment, "", index.SegmentInfoExtension)) {
		return nil, fmt.Errorf("%w: %q", ErrSegmentNotFound, segment)
	}

	statuses := make([]FileStatus, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			statuses[i] = verifyFile(dir, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log := c.logger.WithSegment(segment)
	var errs []error
	for _, s := range statuses {
		c.metrics.RecordFileOpened(store.FileExtension(s.Name))
		c.metrics.RecordIntegrityCheck(s.OK())
		if !s.OK() {
			log.LogIntegrityFailure(ctx, s.Name, s.Err)
			errs = append(errs, &IntegrityError{File: s.Name, cause: s.Err})
		}
	}
	return statuses, errors.Join(errs...)
}

func verifyFile(dir store.Directory, name string) FileStatus {
	info, err := codecutil.VerifyFile(dir, name, codecutil.AnyCodec, 0, 0)
	return FileStatus{
		Name:     name,
		Codec:    info.Codec,
		Version:  info.Version,
		Length:   info.Length,
		Checksum: info.Checksum,
		Err:      err,
	}
}
