// Command segcheck verifies the segments of an index directory.
//
//	segcheck -dir ./index [-segment _0] [-config segcodec.yaml] [-json]
//
// The configuration selects the storage; -dir overrides its path, so
// segments on S3 or MinIO are checked with a config file alone.
//
// Every file of each segment has its header and checksum verified, then the
// segment is opened and its fields are summarized. The exit code is 1 if any
// segment fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/hupe1980/segcodec"
	"github.com/hupe1980/segcodec/config"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/jsoncodec"
	"github.com/hupe1980/segcodec/storage"
	"github.com/hupe1980/segcodec/store"
)

type fileReport struct {
	segcodec.FileStatus
	Error string `json:"error,omitempty"`
}

type fieldReport struct {
	Name      string `json:"name"`
	Postings  string `json:"postings,omitempty"`
	DocValues string `json:"docValues,omitempty"`
	Gen       int64  `json:"gen"`
}

type segmentReport struct {
	Name     string        `json:"name"`
	DocCount int           `json:"docCount"`
	Gen      int64         `json:"gen"`
	Files    []fileReport  `json:"files"`
	Fields   []fieldReport `json:"fields,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func main() {
	dirPath := flag.String("dir", "", "index directory (overrides storage.path)")
	segment := flag.String("segment", "", "segment to check (default: all)")
	configPath := flag.String("config", "", "codec configuration file")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ok, err := run(ctx, os.Stdout, *dirPath, *segment, *configPath, *asJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "segcheck: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, dirPath, segment, configPath string, asJSON bool) (bool, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return false, err
	}
	if dirPath != "" {
		cfg.Storage.Path = dirPath
	}
	if cfg.Storage.Type == config.StorageFS || cfg.Storage.Type == config.StorageLocal {
		if _, err := os.Stat(cfg.Storage.Path); err != nil {
			return false, err
		}
	}
	codec, err := segcodec.FromConfig(cfg)
	if err != nil {
		return false, err
	}
	dir, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return false, err
	}
	defer dir.Close()

	segments := []string{segment}
	if segment == "" {
		if segments, err = listSegments(dir); err != nil {
			return false, err
		}
	}

	reports := make([]segmentReport, 0, len(segments))
	ok := true
	for _, name := range segments {
		r := check(ctx, codec, dir, name)
		if r.Error != "" {
			ok = false
		}
		reports = append(reports, r)
	}

	if asJSON {
		data, err := jsoncodec.Default.Marshal(reports)
		if err != nil {
			return false, err
		}
		_, err = fmt.Fprintln(w, string(data))
		return ok, err
	}
	printReports(w, reports)
	return ok, nil
}

func listSegments(dir store.Directory) ([]string, error) {
	all, err := dir.ListAll()
	if err != nil {
		return nil, err
	}
	var segments []string
	for _, name := range all {
		if store.FileExtension(name) == index.SegmentInfoExtension {
			segments = append(segments, strings.TrimSuffix(name, "."+index.SegmentInfoExtension))
		}
	}
	slices.Sort(segments)
	return segments, nil
}

func check(ctx context.Context, codec *segcodec.Codec, dir store.Directory, segment string) segmentReport {
	report := segmentReport{Name: segment, Gen: -1}

	statuses, verr := codec.VerifySegment(ctx, dir, segment)
	for _, s := range statuses {
		fr := fileReport{FileStatus: s}
		if s.Err != nil {
			fr.Error = s.Err.Error()
		}
		report.Files = append(report.Files, fr)
	}
	if verr != nil {
		report.Error = verr.Error()
		return report
	}

	r, err := codec.OpenSegment(ctx, dir, segment)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	defer r.Close()

	report.DocCount = r.Info.DocCount
	report.Gen = r.Gen
	postingsKey := codec.PostingsFormat().FormatKey()
	docValuesKey := codec.DocValuesFormat().FormatKey()
	for _, fi := range r.FieldInfos.All() {
		f := fieldReport{Name: fi.Name, Gen: fi.DocValuesGen}
		f.Postings, _ = fi.Attribute(postingsKey)
		f.DocValues, _ = fi.Attribute(docValuesKey)
		report.Fields = append(report.Fields, f)
	}
	if err := r.CheckIntegrity(); err != nil {
		report.Error = err.Error()
	}
	return report
}

func printReports(w io.Writer, reports []segmentReport) {
	for _, r := range reports {
		status := "OK"
		if r.Error != "" {
			status = "FAILED"
		}
		fmt.Fprintf(w, "segment %s: %s docs=%d gen=%d\n", r.Name, status, r.DocCount, r.Gen)
		for _, f := range r.Files {
			if f.Error != "" {
				fmt.Fprintf(w, "  file %-32s %s\n", f.Name, f.Error)
				continue
			}
			fmt.Fprintf(w, "  file %-32s %s v%d %d bytes crc=%08x\n", f.Name, f.Codec, f.Version, f.Length, f.Checksum)
		}
		for _, f := range r.Fields {
			fmt.Fprintf(w, "  field %-20s postings=%s docvalues=%s gen=%d\n", f.Name, orDash(f.Postings), orDash(f.DocValues), f.Gen)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", r.Error)
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
