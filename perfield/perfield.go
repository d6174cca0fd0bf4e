// Package perfield routes each field of a segment to its own postings or
// doc values format.
//
// On write, a selector picks a format per field name. Every distinct format
// instance gets one consumer and one integer suffix, allocated per format
// name, so two differently configured instances of the same format never
// share files. The choice is persisted in the field's attribute bag:
//
//	<dispatcher>.format  the registered format name
//	<dispatcher>.suffix  the integer suffix
//
// The concrete files of a format are named with the segment suffix
// "<outer>_<format>_<suffix>". On read, the attributes are resolved through
// the format registry and one producer is opened per distinct
// (format, suffix) pair, shared by all fields routed to it. A field without
// the attributes has no values.
//
// A dispatcher may select another dispatcher with a different name; their
// attribute keys and file suffixes compose. Selecting itself fails with
// [ErrSelfEmbedding].
package perfield

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/store"
)

const (
	// DefaultPostingsName is the name of a postings dispatcher without WithName.
	DefaultPostingsName = "PerFieldPostingsFormat"
	// DefaultDocValuesName is the name of a doc values dispatcher without WithName.
	DefaultDocValuesName = "PerFieldDocValuesFormat"
)

var (
	// ErrSelfEmbedding is returned when a dispatcher selects itself for a field.
	ErrSelfEmbedding = fmt.Errorf("%w: perfield: dispatcher cannot embed itself", codecerr.ErrIllegalArgument)

	// ErrNoFormat is returned when the selector has no format for a field.
	ErrNoFormat = fmt.Errorf("%w: perfield: no format for field", codecerr.ErrIllegalState)
)

type options struct {
	name       string
	logger     *slog.Logger
	onDispatch func(field, format string)
}

// Option configures a dispatcher.
type Option func(*options)

// WithName sets the dispatcher name. The name namespaces the persisted
// attributes, so nested dispatchers need distinct names.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger for format opens and close failures.
// If nil is passed, logging is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDispatchHook registers fn to be called after every successful dispatch
// of a field on the write path.
func WithDispatchHook(fn func(field, format string)) Option {
	return func(o *options) {
		o.onDispatch = fn
	}
}

func newOptions(defaultName string, opts []Option) options {
	o := options{name: defaultName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	o.logger = o.logger.With("dispatcher", o.name)
	return o
}

// attributeKeys are the attribute names a dispatcher persists its routing under.
type attributeKeys struct {
	dispatcher string
	format     string
	suffix     string
}

func keysFor(name string) attributeKeys {
	return attributeKeys{dispatcher: name, format: name + ".format", suffix: name + ".suffix"}
}

func formatSuffix(name string, suffix int) string {
	return name + "_" + strconv.Itoa(suffix)
}

func fullSuffix(outer, inner string) string {
	if outer == "" {
		return inner
	}
	return outer + "_" + inner
}

// segmentKey identifies a segment being written by a dispatcher.
type segmentKey struct {
	dir     store.Directory
	segment string
	suffix  string
}

// tracker counts unfinished writers per segment so producers are not
// opened on a half-written segment.
type tracker struct {
	mu   sync.Mutex
	open map[segmentKey]int
}

func (t *tracker) begin(k segmentKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == nil {
		t.open = make(map[segmentKey]int)
	}
	t.open[k]++
}

func (t *tracker) end(k segmentKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open[k]--; t.open[k] <= 0 {
		delete(t.open, k)
	}
}

func (t *tracker) busy(k segmentKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open[k] > 0
}

type namedFormat interface {
	comparable
	Name() string
}

type slot[C io.Closer] struct {
	format   string
	suffix   int
	consumer C
}

// router is the write side shared by both dispatchers.
type router[F namedFormat, C io.Closer] struct {
	keys       attributeKeys
	state      index.SegmentWriteState
	outer      string
	open       func(F, index.SegmentWriteState) (C, error)
	logger     *slog.Logger
	onDispatch func(field, format string)

	slots    map[F]*slot[C]
	order    []*slot[C]
	next     map[string]int
	used     map[string]bool
	assigned map[string]*slot[C]
}

func newRouter[F namedFormat, C io.Closer](o options, state index.SegmentWriteState, outer string, open func(F, index.SegmentWriteState) (C, error)) *router[F, C] {
	return &router[F, C]{
		keys:       keysFor(o.name),
		state:      state,
		outer:      outer,
		open:       open,
		logger:     o.logger,
		onDispatch: o.onDispatch,
		slots:      make(map[F]*slot[C]),
		next:       make(map[string]int),
		used:       make(map[string]bool),
		assigned:   make(map[string]*slot[C]),
	}
}

// route returns the consumer of f for fi and records the routing in fi's
// attributes. reuse is a previously persisted suffix, or -1.
func (r *router[F, C]) route(fi *index.FieldInfo, f F, reuse int) (C, error) {
	var zero C
	name := f.Name()
	if name == r.keys.dispatcher {
		return zero, fmt.Errorf("%w: field %q selected %q", ErrSelfEmbedding, fi.Name, name)
	}

	s, ok := r.slots[f]
	if prev, routed := r.assigned[fi.Name]; routed && (!ok || prev != s) {
		return zero, fmt.Errorf("%w: perfield: field %q already routed to %s",
			codecerr.ErrIllegalState, fi.Name, formatSuffix(prev.format, prev.suffix))
	}
	if !ok {
		var err error
		if s, err = r.newSlot(fi, f, reuse); err != nil {
			return zero, err
		}
	}
	r.assigned[fi.Name] = s

	fi.PutAttribute(r.keys.format, name)
	fi.PutAttribute(r.keys.suffix, strconv.Itoa(s.suffix))
	if r.onDispatch != nil {
		r.onDispatch(fi.Name, name)
	}
	return s.consumer, nil
}

func (r *router[F, C]) newSlot(fi *index.FieldInfo, f F, reuse int) (*slot[C], error) {
	name := f.Name()
	suffix := reuse
	if suffix < 0 {
		suffix = r.next[name]
	}
	full := fullSuffix(r.outer, formatSuffix(name, suffix))
	if r.used[full] {
		return nil, fmt.Errorf("%w: perfield: suffix %q of field %q is already in use", codecerr.ErrIllegalState, full, fi.Name)
	}

	c, err := r.open(f, r.state.WithSuffix(full))
	if err != nil {
		return nil, fmt.Errorf("perfield: open %s for field %q: %w", name, fi.Name, err)
	}
	r.next[name] = max(r.next[name], suffix+1)
	r.used[full] = true

	s := &slot[C]{format: name, suffix: suffix, consumer: c}
	r.slots[f] = s
	r.order = append(r.order, s)
	r.logger.Debug("format instance opened",
		"segment", r.state.SegmentName,
		"field", fi.Name,
		"format", name,
		"suffix", full,
	)
	return s, nil
}

// close closes every consumer in open order and returns the first error.
func (r *router[F, C]) close() error {
	closers := make([]io.Closer, len(r.order))
	for i, s := range r.order {
		closers[i] = s.consumer
	}
	err := ioutil.CloseAll(closers...)
	if err != nil {
		r.logger.Warn("closing format consumers failed", "segment", r.state.SegmentName, "error", err)
	}
	return err
}

// opened is the read side shared by both dispatchers: one producer per
// distinct full suffix, shared by the fields routed to it.
type opened[P io.Closer] struct {
	byField   map[string]P
	producers []P
}

func openAll[P io.Closer](
	state index.SegmentReadState,
	keys attributeKeys,
	want func(*index.FieldInfo) bool,
	outer func(*index.FieldInfo) string,
	open func(name string, state index.SegmentReadState) (P, error),
) (*opened[P], error) {
	o := &opened[P]{byField: make(map[string]P)}
	memo := make(map[string]P)

	for _, fi := range state.FieldInfos.All() {
		if !want(fi) {
			continue
		}
		name, ok := fi.Attribute(keys.format)
		if !ok {
			continue
		}
		suffix, err := readSuffix(state.SegmentName, keys, fi)
		if err != nil {
			return nil, errors.Join(err, closeAll(o.producers))
		}
		if name == keys.dispatcher {
			return nil, errors.Join(
				codecerr.Corruptf(state.SegmentName, "field %q is routed to dispatcher %q itself", fi.Name, name),
				closeAll(o.producers),
			)
		}

		full := fullSuffix(outer(fi), formatSuffix(name, suffix))
		p, ok := memo[full]
		if !ok {
			p, err = open(name, state.WithSuffix(full))
			if err != nil {
				return nil, errors.Join(fmt.Errorf("perfield: open %s for field %q: %w", full, fi.Name, err), closeAll(o.producers))
			}
			memo[full] = p
			o.producers = append(o.producers, p)
		}
		o.byField[fi.Name] = p
	}
	return o, nil
}

func readSuffix(resource string, keys attributeKeys, fi *index.FieldInfo) (int, error) {
	raw, ok := fi.Attribute(keys.suffix)
	if !ok {
		return 0, codecerr.Corruptf(resource, "field %q has %s but no %s", fi.Name, keys.format, keys.suffix)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, codecerr.Corruptf(resource, "field %q has invalid %s %q", fi.Name, keys.suffix, raw)
	}
	return n, nil
}

func closeAll[P io.Closer](ps []P) error {
	closers := make([]io.Closer, len(ps))
	for i, p := range ps {
		closers[i] = p
	}
	return ioutil.CloseAll(closers...)
}
