package perfield

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
)

// DocValuesSelector chooses the doc values format of a field. It must
// return the same instance for the same field within a write. Returning nil
// fails the dispatch with ErrNoFormat.
type DocValuesSelector func(field string) format.DocValuesFormat

// DocValuesByField returns a selector choosing overrides[field], or def.
func DocValuesByField(def format.DocValuesFormat, overrides map[string]format.DocValuesFormat) DocValuesSelector {
	return func(field string) format.DocValuesFormat {
		if f, ok := overrides[field]; ok {
			return f
		}
		return def
	}
}

// DocValuesFormat is a doc values format that delegates each field to the
// format chosen by its selector.
//
// Doc values of a later generation are written under the segment suffix
// index.DocValuesSuffix(suffix, gen). A field whose DocValuesGen is set
// keeps the format and suffix persisted by its earlier write, whatever the
// selector says now.
type DocValuesFormat struct {
	opts     options
	keys     attributeKeys
	selector DocValuesSelector
	writes   tracker
}

var _ format.DocValuesFormat = (*DocValuesFormat)(nil)

// NewDocValuesFormat returns a dispatcher over selector.
func NewDocValuesFormat(selector DocValuesSelector, opts ...Option) *DocValuesFormat {
	o := newOptions(DefaultDocValuesName, opts)
	return &DocValuesFormat{opts: o, keys: keysFor(o.name), selector: selector}
}

// Name returns the dispatcher name.
func (df *DocValuesFormat) Name() string { return df.keys.dispatcher }

// FormatKey is the attribute holding a field's format name.
func (df *DocValuesFormat) FormatKey() string { return df.keys.format }

// SuffixKey is the attribute holding a field's format suffix.
func (df *DocValuesFormat) SuffixKey() string { return df.keys.suffix }

// FieldsConsumer implements format.DocValuesFormat. Fields passed to the
// consumer must carry state.DocValuesGen.
func (df *DocValuesFormat) FieldsConsumer(state index.SegmentWriteState) (format.DocValuesConsumer, error) {
	key := segmentKey{dir: state.Directory, segment: state.SegmentName, suffix: state.SegmentSuffix}
	df.writes.begin(key)
	open := func(f format.DocValuesFormat, s index.SegmentWriteState) (format.DocValuesConsumer, error) {
		return f.FieldsConsumer(s)
	}
	outer := index.DocValuesSuffix(state.SegmentSuffix, state.DocValuesGen)
	return &docValuesWriter{
		df:     df,
		key:    key,
		gen:    state.DocValuesGen,
		router: newRouter(df.opts, state, outer, open),
	}, nil
}

// FieldsProducer implements format.DocValuesFormat.
func (df *DocValuesFormat) FieldsProducer(state index.SegmentReadState) (format.DocValuesProducer, error) {
	if df.writes.busy(segmentKey{dir: state.Directory, segment: state.SegmentName, suffix: state.SegmentSuffix}) {
		return nil, fmt.Errorf("%w: perfield: segment %q is still being written", codecerr.ErrIllegalState, state.SegmentName)
	}
	o, err := openAll(state, df.keys,
		func(fi *index.FieldInfo) bool { return fi.DocValuesType != index.DocValuesNone },
		func(fi *index.FieldInfo) string { return index.DocValuesSuffix(state.SegmentSuffix, fi.DocValuesGen) },
		func(name string, s index.SegmentReadState) (format.DocValuesProducer, error) {
			f, err := format.LookupDocValuesFormat(name)
			if err != nil {
				return nil, err
			}
			return f.FieldsProducer(s)
		},
	)
	if err != nil {
		return nil, err
	}
	df.opts.logger.Debug("doc values producers opened",
		"segment", state.SegmentName,
		"fields", len(o.byField),
		"producers", len(o.producers),
	)
	return &docValuesReader{byField: o.byField, producers: o.producers, logger: df.opts.logger}, nil
}

// lookup resolves the persisted format name of field. The instance the
// selector configures for field is preferred when it carries that name, so
// later generations are written with the same settings; other names go to
// the registry.
func (df *DocValuesFormat) lookup(field, name string) (format.DocValuesFormat, error) {
	if f := df.selector(field); f != nil && f.Name() == name {
		return f, nil
	}
	return format.LookupDocValuesFormat(name)
}

type docValuesWriter struct {
	df     *DocValuesFormat
	key    segmentKey
	gen    int64
	router *router[format.DocValuesFormat, format.DocValuesConsumer]
	closed bool
}

// consumerFor dispatches fi and returns the consumer of its format.
func (w *docValuesWriter) consumerFor(fi *index.FieldInfo) (format.DocValuesConsumer, error) {
	if w.closed {
		return nil, fmt.Errorf("%w: perfield: doc values writer closed", codecerr.ErrIllegalState)
	}
	if fi.DocValuesGen != w.gen {
		return nil, fmt.Errorf("%w: perfield: field %q has doc values generation %d, writing generation %d",
			codecerr.ErrIllegalArgument, fi.Name, fi.DocValuesGen, w.gen)
	}

	var f format.DocValuesFormat
	reuse := -1
	if fi.DocValuesGen != -1 {
		if name, ok := fi.Attribute(w.df.keys.format); ok {
			var err error
			if f, err = w.df.lookup(fi.Name, name); err != nil {
				return nil, err
			}
		}
		if raw, ok := fi.Attribute(w.df.keys.suffix); ok {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: perfield: field %q has invalid %s %q", codecerr.ErrIllegalState, fi.Name, w.df.keys.suffix, raw)
			}
			reuse = n
		}
	}
	if f == nil {
		if f = w.df.selector(fi.Name); f == nil {
			return nil, fmt.Errorf("%w %q", ErrNoFormat, fi.Name)
		}
	}
	return w.router.route(fi, f, reuse)
}

func (w *docValuesWriter) AddNumericField(fi *index.FieldInfo, values *format.NumericValues) error {
	c, err := w.consumerFor(fi)
	if err != nil {
		return err
	}
	return c.AddNumericField(fi, values)
}

func (w *docValuesWriter) AddBinaryField(fi *index.FieldInfo, values *format.BinaryValues) error {
	c, err := w.consumerFor(fi)
	if err != nil {
		return err
	}
	return c.AddBinaryField(fi, values)
}

func (w *docValuesWriter) AddSortedField(fi *index.FieldInfo, values *format.SortedValues) error {
	c, err := w.consumerFor(fi)
	if err != nil {
		return err
	}
	return c.AddSortedField(fi, values)
}

func (w *docValuesWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.df.writes.end(w.key)
	return w.router.close()
}

type docValuesReader struct {
	byField   map[string]format.DocValuesProducer
	producers []format.DocValuesProducer
	logger    *slog.Logger
}

func (r *docValuesReader) Numeric(fi *index.FieldInfo) (*format.NumericValues, error) {
	p, ok := r.byField[fi.Name]
	if !ok {
		return nil, nil
	}
	return p.Numeric(fi)
}

func (r *docValuesReader) Binary(fi *index.FieldInfo) (*format.BinaryValues, error) {
	p, ok := r.byField[fi.Name]
	if !ok {
		return nil, nil
	}
	return p.Binary(fi)
}

func (r *docValuesReader) Sorted(fi *index.FieldInfo) (*format.SortedValues, error) {
	p, ok := r.byField[fi.Name]
	if !ok {
		return nil, nil
	}
	return p.Sorted(fi)
}

func (r *docValuesReader) CheckIntegrity() error {
	for _, p := range r.producers {
		if err := p.CheckIntegrity(); err != nil {
			return err
		}
	}
	return nil
}

func (r *docValuesReader) Close() error {
	err := closeAll(r.producers)
	if err != nil {
		r.logger.Warn("closing doc values producers failed", "error", err)
	}
	return err
}
