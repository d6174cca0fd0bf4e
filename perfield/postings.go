package perfield

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
)

// PostingsSelector chooses the postings format of a field. It must return
// the same instance for the same field within a write. Returning nil fails
// the dispatch with ErrNoFormat.
type PostingsSelector func(field string) format.PostingsFormat

// PostingsByField returns a selector choosing overrides[field], or def.
func PostingsByField(def format.PostingsFormat, overrides map[string]format.PostingsFormat) PostingsSelector {
	return func(field string) format.PostingsFormat {
		if f, ok := overrides[field]; ok {
			return f
		}
		return def
	}
}

// PostingsFormat is a postings format that delegates each field to the
// format chosen by its selector.
type PostingsFormat struct {
	opts     options
	keys     attributeKeys
	selector PostingsSelector
	writes   tracker
}

var _ format.PostingsFormat = (*PostingsFormat)(nil)

// NewPostingsFormat returns a dispatcher over selector.
func NewPostingsFormat(selector PostingsSelector, opts ...Option) *PostingsFormat {
	o := newOptions(DefaultPostingsName, opts)
	return &PostingsFormat{opts: o, keys: keysFor(o.name), selector: selector}
}

// Name returns the dispatcher name.
func (pf *PostingsFormat) Name() string { return pf.keys.dispatcher }

// FormatKey is the attribute holding a field's format name.
func (pf *PostingsFormat) FormatKey() string { return pf.keys.format }

// SuffixKey is the attribute holding a field's format suffix.
func (pf *PostingsFormat) SuffixKey() string { return pf.keys.suffix }

// FieldsConsumer implements format.PostingsFormat.
func (pf *PostingsFormat) FieldsConsumer(state index.SegmentWriteState) (format.FieldsConsumer, error) {
	key := segmentKey{dir: state.Directory, segment: state.SegmentName, suffix: state.SegmentSuffix}
	pf.writes.begin(key)
	open := func(f format.PostingsFormat, s index.SegmentWriteState) (format.FieldsConsumer, error) {
		return f.FieldsConsumer(s)
	}
	return &postingsWriter{
		pf:     pf,
		key:    key,
		router: newRouter(pf.opts, state, state.SegmentSuffix, open),
	}, nil
}

// FieldsProducer implements format.PostingsFormat.
func (pf *PostingsFormat) FieldsProducer(state index.SegmentReadState) (format.FieldsProducer, error) {
	if pf.writes.busy(segmentKey{dir: state.Directory, segment: state.SegmentName, suffix: state.SegmentSuffix}) {
		return nil, fmt.Errorf("%w: perfield: segment %q is still being written", codecerr.ErrIllegalState, state.SegmentName)
	}
	o, err := openAll(state, pf.keys,
		func(fi *index.FieldInfo) bool { return fi.IndexOptions != index.IndexOptionsNone },
		func(*index.FieldInfo) string { return state.SegmentSuffix },
		func(name string, s index.SegmentReadState) (format.FieldsProducer, error) {
			f, err := format.LookupPostingsFormat(name)
			if err != nil {
				return nil, err
			}
			return f.FieldsProducer(s)
		},
	)
	if err != nil {
		return nil, err
	}

	r := &postingsReader{byField: o.byField, producers: o.producers, logger: pf.opts.logger}
	for field, p := range o.byField {
		if slices.Contains(p.Fields(), field) {
			r.names = append(r.names, field)
		}
	}
	slices.Sort(r.names)
	pf.opts.logger.Debug("postings producers opened",
		"segment", state.SegmentName,
		"fields", len(r.names),
		"producers", len(r.producers),
	)
	return r, nil
}

type postingsWriter struct {
	pf     *PostingsFormat
	key    segmentKey
	router *router[format.PostingsFormat, format.FieldsConsumer]
	closed bool
}

// consumerFor dispatches fi and returns the consumer of its format.
func (w *postingsWriter) consumerFor(fi *index.FieldInfo) (format.FieldsConsumer, error) {
	if w.closed {
		return nil, fmt.Errorf("%w: perfield: postings writer closed", codecerr.ErrIllegalState)
	}
	f := w.pf.selector(fi.Name)
	if f == nil {
		return nil, fmt.Errorf("%w %q", ErrNoFormat, fi.Name)
	}
	return w.router.route(fi, f, -1)
}

func (w *postingsWriter) AddField(fi *index.FieldInfo) (format.TermsConsumer, error) {
	c, err := w.consumerFor(fi)
	if err != nil {
		return nil, err
	}
	return c.AddField(fi)
}

func (w *postingsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.pf.writes.end(w.key)
	return w.router.close()
}

type postingsReader struct {
	byField   map[string]format.FieldsProducer
	producers []format.FieldsProducer
	names     []string
	logger    *slog.Logger
}

func (r *postingsReader) Fields() []string { return slices.Clone(r.names) }

func (r *postingsReader) Terms(field string) (format.Terms, error) {
	p, ok := r.byField[field]
	if !ok {
		return nil, nil
	}
	return p.Terms(field)
}

func (r *postingsReader) CheckIntegrity() error {
	for _, p := range r.producers {
		if err := p.CheckIntegrity(); err != nil {
			return err
		}
	}
	return nil
}

func (r *postingsReader) Close() error {
	err := closeAll(r.producers)
	if err != nil {
		r.logger.Warn("closing postings producers failed", "error", err)
	}
	return err
}
