package segcodec

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/store"
)

// Segment is the in-memory content of a segment to write.
type Segment struct {
	Name     string
	DocCount int
	// Fields describes every field of the segment. Postings and DocValues
	// refer to these exact infos.
	Fields    []*index.FieldInfo
	Postings  []format.InvertedField
	DocValues []DocValues
	// Diagnostics are stored verbatim in the segment info.
	Diagnostics map[string]string
}

// DocValues are the values of one doc values field. Only the set matching
// Info.DocValuesType is read.
type DocValues struct {
	Info    *index.FieldInfo
	Numeric *format.NumericValues
	Binary  *format.BinaryValues
	Sorted  *format.SortedValues
}

// WriteSegment writes seg to dir: postings, doc values, field infos and,
// last, the segment info.
func (c *Codec) WriteSegment(ctx context.Context, dir store.Directory, seg *Segment) (err error) {
	start := time.Now()
	files := 0
	defer func() {
		c.logger.WithSegment(seg.Name).LogFlush(ctx, seg.DocCount, files, time.Since(start), err)
	}()

	if err := store.CheckSegmentName(seg.Name); err != nil {
		return err
	}
	infos, err := index.NewFieldInfos(seg.Fields...)
	if err != nil {
		return err
	}
	if err := checkSegment(seg, infos); err != nil {
		return err
	}

	ws := index.SegmentWriteState{
		Directory:    dir,
		SegmentName:  seg.Name,
		FieldInfos:   infos,
		DocCount:     seg.DocCount,
		Context:      store.IOContext{Kind: store.ContextFlush, MaxWriteBytesPerSec: c.maxWriteRate},
		DocValuesGen: -1,
	}

	if len(seg.Postings) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.writePostings(ws, seg.Postings); err != nil {
			return fmt.Errorf("write postings of %s: %w", seg.Name, err)
		}
	}
	if len(seg.DocValues) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.writeDocValues(ws, seg.DocValues); err != nil {
			return fmt.Errorf("write doc values of %s: %w", seg.Name, err)
		}
	}
	if err := c.fieldInfos.Write(dir, seg.Name, "", infos, ws.Context); err != nil {
		return err
	}
	si := &index.SegmentInfo{Name: seg.Name, DocCount: seg.DocCount, Codec: CodecName, Diagnostics: seg.Diagnostics}
	if err := c.segmentInfo.Write(dir, si, ws.Context); err != nil {
		return err
	}

	files, err = c.recordWritten(dir, seg.Name)
	return err
}

func checkSegment(seg *Segment, infos *index.FieldInfos) error {
	if seg.DocCount < 0 {
		return fmt.Errorf("%w: segment %q has doc count %d", codecerr.ErrIllegalArgument, seg.Name, seg.DocCount)
	}
	for _, f := range seg.Postings {
		if infos.ByName(f.Info.Name) != f.Info {
			return fmt.Errorf("%w: postings field %q is not a field of segment %q", codecerr.ErrIllegalArgument, f.Info.Name, seg.Name)
		}
	}
	for _, f := range seg.DocValues {
		if infos.ByName(f.Info.Name) != f.Info {
			return fmt.Errorf("%w: doc values field %q is not a field of segment %q", codecerr.ErrIllegalArgument, f.Info.Name, seg.Name)
		}
	}
	return nil
}

func (c *Codec) writePostings(ws index.SegmentWriteState, fields []format.InvertedField) error {
	consumer, err := c.postings.FieldsConsumer(ws)
	if err != nil {
		return err
	}
	if err := format.WriteFields(consumer, fields...); err != nil {
		return errors.Join(err, consumer.Close())
	}
	return consumer.Close()
}

func (c *Codec) writeDocValues(ws index.SegmentWriteState, fields []DocValues) error {
	consumer, err := c.docValues.FieldsConsumer(ws)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if err := addDocValues(consumer, f); err != nil {
			return errors.Join(fmt.Errorf("field %q: %w", f.Info.Name, err), consumer.Close())
		}
	}
	return consumer.Close()
}

func addDocValues(consumer format.DocValuesConsumer, f DocValues) error {
	switch f.Info.DocValuesType {
	case index.DocValuesNumeric:
		if f.Numeric == nil {
			return fmt.Errorf("%w: missing numeric values", codecerr.ErrIllegalArgument)
		}
		return consumer.AddNumericField(f.Info, f.Numeric)
	case index.DocValuesBinary:
		if f.Binary == nil {
			return fmt.Errorf("%w: missing binary values", codecerr.ErrIllegalArgument)
		}
		return consumer.AddBinaryField(f.Info, f.Binary)
	case index.DocValuesSorted:
		if f.Sorted == nil {
			return fmt.Errorf("%w: missing sorted values", codecerr.ErrIllegalArgument)
		}
		return consumer.AddSortedField(f.Info, f.Sorted)
	default:
		return fmt.Errorf("%w: field has no doc values type", codecerr.ErrIllegalArgument)
	}
}

func (c *Codec) recordWritten(dir store.Directory, segment string) (int, error) {
	files, err := store.SegmentFiles(dir, segment)
	if err != nil {
		return 0, err
	}
	for _, name := range files {
		n, err := dir.FileLength(name)
		if err != nil {
			return 0, err
		}
		c.metrics.RecordFileWritten(store.FileExtension(name), n)
	}
	return len(files), nil
}

// UpdateDocValues writes new values for existing doc values fields of
// segment as a new generation and returns it. Fields keep the format they
// were first written with. Readers opened afterwards see the new values;
// files of earlier generations are left in place.
func (c *Codec) UpdateDocValues(ctx context.Context, dir store.Directory, segment string, fields ...DocValues) (gen int64, err error) {
	defer func() {
		c.logger.WithSegment(segment).LogDocValuesUpdate(ctx, gen, len(fields), err)
	}()
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	if err := store.CheckSegmentName(segment); err != nil {
		return -1, err
	}

	si, err := c.segmentInfo.Read(dir, segment, store.IOContext{Kind: store.ContextReadOnce})
	if err != nil {
		return -1, err
	}
	current, err := FieldInfosGen(dir, segment)
	if err != nil {
		return -1, err
	}
	infos, err := c.fieldInfos.Read(dir, segment, index.DocValuesSuffix("", current), store.IOContext{Kind: store.ContextReadOnce})
	if err != nil {
		return -1, err
	}

	gen = max(current, 0) + 1
	updates := make([]DocValues, len(fields))
	for i, f := range fields {
		fi := infos.ByName(f.Info.Name)
		if fi == nil || fi.DocValuesType == index.DocValuesNone || fi.DocValuesType != f.Info.DocValuesType {
			return -1, fmt.Errorf("%w: segment %q has no %s doc values field %q",
				codecerr.ErrIllegalArgument, segment, f.Info.DocValuesType, f.Info.Name)
		}
		fi.DocValuesGen = gen
		f.Info = fi
		updates[i] = f
	}

	ws := index.SegmentWriteState{
		Directory:    dir,
		SegmentName:  segment,
		FieldInfos:   infos,
		DocCount:     si.DocCount,
		Context:      store.IOContext{Kind: store.ContextFlush, MaxWriteBytesPerSec: c.maxWriteRate},
		DocValuesGen: gen,
	}
	if err := c.writeDocValues(ws, updates); err != nil {
		return -1, fmt.Errorf("write doc values generation %d of %s: %w", gen, segment, err)
	}
	if err := c.fieldInfos.Write(dir, segment, index.DocValuesSuffix("", gen), infos, ws.Context); err != nil {
		return -1, err
	}
	return gen, nil
}

// FieldInfosGen returns the newest field infos generation of segment, or -1
// when only the initial field infos exist. Generations are read from
// "<segment>_<gen>.fnm" names with gen in lower-case base 36.
func FieldInfosGen(dir store.Directory, segment string) (int64, error) {
	files, err := store.SegmentFiles(dir, segment)
	if err != nil {
		return -1, err
	}
	gen := int64(-1)
	for _, name := range files {
		base, ok := strings.CutSuffix(name, "."+index.FieldInfosExtension)
		if !ok {
			continue
		}
		digits, ok := strings.CutPrefix(base, segment+"_")
		if !ok || strings.TrimLeft(digits, "0123456789abcdefghijklmnopqrstuvwxyz") != "" {
			continue
		}
		g, err := strconv.ParseInt(digits, 36, 64)
		if err != nil || g < 1 {
			continue
		}
		gen = max(gen, g)
	}
	return gen, nil
}

// OpenSegment opens the newest generation of segment for reading.
func (c *Codec) OpenSegment(ctx context.Context, dir store.Directory, segment string) (r *SegmentReader, err error) {
	defer func() {
		fields := 0
		if r != nil {
			fields = r.FieldInfos.Len()
		}
		c.logger.WithSegment(segment).LogOpen(ctx, fields, err)
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.CheckSegmentName(segment); err != nil {
		return nil, err
	}
	if !dir.FileExists(store.SegmentFileName(segment, "", index.SegmentInfoExtension)) {
		return nil, fmt.Errorf("%w: %q", ErrSegmentNotFound, segment)
	}

	si, err := c.segmentInfo.Read(dir, segment, store.DefaultIOContext)
	if err != nil {
		return nil, err
	}
	gen, err := FieldInfosGen(dir, segment)
	if err != nil {
		return nil, err
	}
	infos, err := c.fieldInfos.Read(dir, segment, index.DocValuesSuffix("", gen), store.DefaultIOContext)
	if err != nil {
		return nil, err
	}

	rs := index.SegmentReadState{
		Directory:   dir,
		SegmentName: segment,
		FieldInfos:  infos,
		DocCount:    si.DocCount,
		Context:     store.DefaultIOContext,
	}
	reader := &SegmentReader{Info: si, FieldInfos: infos, Gen: gen}
	if infos.HasPostings() {
		if reader.postings, err = c.postings.FieldsProducer(rs); err != nil {
			return nil, err
		}
	}
	if infos.HasDocValues() {
		if reader.docValues, err = c.docValues.FieldsProducer(rs); err != nil {
			return nil, errors.Join(err, reader.Close())
		}
	}

	files, err := store.SegmentFiles(dir, segment)
	if err != nil {
		return nil, errors.Join(err, reader.Close())
	}
	for _, name := range files {
		c.metrics.RecordFileOpened(store.FileExtension(name))
	}
	return reader, nil
}

// SegmentReader reads one generation of a segment.
//
// A SegmentReader is safe for concurrent use until Close.
type SegmentReader struct {
	Info       *index.SegmentInfo
	FieldInfos *index.FieldInfos
	// Gen is the field infos generation the reader was opened at.
	Gen int64

	postings  format.FieldsProducer
	docValues format.DocValuesProducer
	closed    bool
}

// Fields returns the names of fields with postings, sorted.
func (r *SegmentReader) Fields() []string {
	if r.postings == nil {
		return nil
	}
	return r.postings.Fields()
}

// Terms returns the terms of field, or nil if it has no postings.
func (r *SegmentReader) Terms(field string) (format.Terms, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	if r.postings == nil {
		return nil, nil
	}
	return r.postings.Terms(field)
}

// NumericValues returns the numeric values of field, or nil.
func (r *SegmentReader) NumericValues(field string) (*format.NumericValues, error) {
	fi, err := r.docValuesField(field)
	if fi == nil || err != nil {
		return nil, err
	}
	return r.docValues.Numeric(fi)
}

// BinaryValues returns the binary values of field, or nil.
func (r *SegmentReader) BinaryValues(field string) (*format.BinaryValues, error) {
	fi, err := r.docValuesField(field)
	if fi == nil || err != nil {
		return nil, err
	}
	return r.docValues.Binary(fi)
}

// SortedValues returns the sorted values of field, or nil.
func (r *SegmentReader) SortedValues(field string) (*format.SortedValues, error) {
	fi, err := r.docValuesField(field)
	if fi == nil || err != nil {
		return nil, err
	}
	return r.docValues.Sorted(fi)
}

func (r *SegmentReader) docValuesField(field string) (*index.FieldInfo, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	if r.docValues == nil {
		return nil, nil
	}
	return r.FieldInfos.ByName(field), nil
}

// CheckIntegrity verifies the checksums of every file the reader uses.
func (r *SegmentReader) CheckIntegrity() error {
	if r.closed {
		return ErrReaderClosed
	}
	if r.postings != nil {
		if err := r.postings.CheckIntegrity(); err != nil {
			return err
		}
	}
	if r.docValues != nil {
		return r.docValues.CheckIntegrity()
	}
	return nil
}
