package segcodec

import (
	"github.com/hupe1980/segcodec/format"
)

const (
	// DefaultPostingsFormat is the postings format of fields without an override.
	DefaultPostingsFormat = "VInt"
	// DefaultDocValuesFormat is the doc values format of fields without an override.
	DefaultDocValuesFormat = "Direct"
)

// formatChoice is a format given either by registered name or as an instance.
type formatChoice[F any] struct {
	name     string
	instance F
	set      bool
}

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	maxWriteRate     int

	postings         formatChoice[format.PostingsFormat]
	postingsByField  map[string]formatChoice[format.PostingsFormat]
	docValues        formatChoice[format.DocValuesFormat]
	docValuesByField map[string]formatChoice[format.DocValuesFormat]
}

// Option configures a Codec.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		postings:         formatChoice[format.PostingsFormat]{name: DefaultPostingsFormat},
		docValues:        formatChoice[format.DocValuesFormat]{name: DefaultDocValuesFormat},
		postingsByField:  make(map[string]formatChoice[format.PostingsFormat]),
		docValuesByField: make(map[string]formatChoice[format.DocValuesFormat]),
	}
}

// WithLogger sets the logger.
//
// If nil is passed, logging is discarded.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMaxWriteBytesPerSec throttles segment writes. Zero disables throttling.
func WithMaxWriteBytesPerSec(n int) Option {
	return func(o *options) {
		o.maxWriteRate = n
	}
}

// WithPostingsFormat sets the registered postings format used for fields
// without an override.
func WithPostingsFormat(name string) Option {
	return func(o *options) {
		o.postings = formatChoice[format.PostingsFormat]{name: name}
	}
}

// WithPostingsFormatForField routes field to the registered postings format name.
func WithPostingsFormatForField(field, name string) Option {
	return func(o *options) {
		o.postingsByField[field] = formatChoice[format.PostingsFormat]{name: name}
	}
}

// WithCustomPostingsFormat uses f for fields, or for every field without an
// override when fields is empty. Its name must be registered for the
// segment to be readable.
func WithCustomPostingsFormat(f format.PostingsFormat, fields ...string) Option {
	return func(o *options) {
		c := formatChoice[format.PostingsFormat]{instance: f, set: true}
		if len(fields) == 0 {
			o.postings = c
		}
		for _, field := range fields {
			o.postingsByField[field] = c
		}
	}
}

// WithDocValuesFormat sets the registered doc values format used for fields
// without an override.
func WithDocValuesFormat(name string) Option {
	return func(o *options) {
		o.docValues = formatChoice[format.DocValuesFormat]{name: name}
	}
}

// WithDocValuesFormatForField routes field to the registered doc values format name.
func WithDocValuesFormatForField(field, name string) Option {
	return func(o *options) {
		o.docValuesByField[field] = formatChoice[format.DocValuesFormat]{name: name}
	}
}

// WithCustomDocValuesFormat uses f for fields, or for every field without an
// override when fields is empty. Its name must be registered for the
// segment to be readable.
func WithCustomDocValuesFormat(f format.DocValuesFormat, fields ...string) Option {
	return func(o *options) {
		c := formatChoice[format.DocValuesFormat]{instance: f, set: true}
		if len(fields) == 0 {
			o.docValues = c
		}
		for _, field := range fields {
			o.docValuesByField[field] = c
		}
	}
}

// resolve returns the instance of c, looking its name up with lookup.
func resolve[F any](c formatChoice[F], lookup func(string) (F, error)) (F, error) {
	if c.set {
		return c.instance, nil
	}
	return lookup(c.name)
}
