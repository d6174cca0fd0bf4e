package segcodec

import (
	"fmt"

	"github.com/hupe1980/segcodec/format"
	_ "github.com/hupe1980/segcodec/formats/all"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/perfield"
)

// CodecName is recorded in the segment info of every segment written by a Codec.
const CodecName = "SegCodec"

// Codec bundles the formats that make up a segment: field infos, segment
// info, and the per-field postings and doc values dispatchers.
//
// A Codec is safe for concurrent use by independent segments.
type Codec struct {
	postings    *perfield.PostingsFormat
	docValues   *perfield.DocValuesFormat
	fieldInfos  index.FieldInfosFormat
	segmentInfo index.SegmentInfoFormat

	logger       *Logger
	metrics      MetricsCollector
	maxWriteRate int
}

// New returns a Codec. Format names are resolved against the registry of
// package format; an unknown name fails with format.ErrUnknownFormat.
func New(optFns ...Option) (*Codec, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	postingsDefault, err := resolve(o.postings, format.LookupPostingsFormat)
	if err != nil {
		return nil, fmt.Errorf("default postings format: %w", err)
	}
	postingsOverrides := make(map[string]format.PostingsFormat, len(o.postingsByField))
	for field, c := range o.postingsByField {
		if postingsOverrides[field], err = resolve(c, format.LookupPostingsFormat); err != nil {
			return nil, fmt.Errorf("postings format of field %q: %w", field, err)
		}
	}

	docValuesDefault, err := resolve(o.docValues, format.LookupDocValuesFormat)
	if err != nil {
		return nil, fmt.Errorf("default doc values format: %w", err)
	}
	docValuesOverrides := make(map[string]format.DocValuesFormat, len(o.docValuesByField))
	for field, c := range o.docValuesByField {
		if docValuesOverrides[field], err = resolve(c, format.LookupDocValuesFormat); err != nil {
			return nil, fmt.Errorf("doc values format of field %q: %w", field, err)
		}
	}

	metrics := o.metricsCollector
	dispatchOpts := []perfield.Option{
		perfield.WithLogger(o.logger.Logger),
		perfield.WithDispatchHook(func(_, name string) { metrics.RecordFieldDispatched(name) }),
	}
	return &Codec{
		postings:     perfield.NewPostingsFormat(perfield.PostingsByField(postingsDefault, postingsOverrides), dispatchOpts...),
		docValues:    perfield.NewDocValuesFormat(perfield.DocValuesByField(docValuesDefault, docValuesOverrides), dispatchOpts...),
		logger:       o.logger,
		metrics:      metrics,
		maxWriteRate: o.maxWriteRate,
	}, nil
}

// Name returns CodecName.
func (c *Codec) Name() string { return CodecName }

// PostingsFormat returns the per-field postings dispatcher.
func (c *Codec) PostingsFormat() *perfield.PostingsFormat { return c.postings }

// DocValuesFormat returns the per-field doc values dispatcher.
func (c *Codec) DocValuesFormat() *perfield.DocValuesFormat { return c.docValues }

// FieldInfosFormat returns the field infos format.
func (c *Codec) FieldInfosFormat() index.FieldInfosFormat { return c.fieldInfos }

// SegmentInfoFormat returns the segment info format.
func (c *Codec) SegmentInfoFormat() index.SegmentInfoFormat { return c.segmentInfo }
