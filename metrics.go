package segcodec

import (
	"sync"
	"sync/atomic"
)

// MetricsCollector defines an interface for collecting codec metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; package metric ships such an implementation.
type MetricsCollector interface {
	// RecordFileWritten is called for every file of a written segment.
	RecordFileWritten(ext string, bytes int64)

	// RecordFileOpened is called for every file opened by a segment reader
	// or by verification.
	RecordFileOpened(ext string)

	// RecordIntegrityCheck is called once per verified file.
	RecordIntegrityCheck(ok bool)

	// RecordFieldDispatched is called when a per-field dispatcher routes a
	// field to format.
	RecordFieldDispatched(format string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFileWritten(string, int64) {}
func (NoopMetricsCollector) RecordFileOpened(string)         {}
func (NoopMetricsCollector) RecordIntegrityCheck(bool)       {}
func (NoopMetricsCollector) RecordFieldDispatched(string)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FilesWritten      atomic.Int64
	BytesWritten      atomic.Int64
	FilesOpened       atomic.Int64
	IntegrityChecks   atomic.Int64
	IntegrityFailures atomic.Int64

	mu          sync.Mutex
	dispatchers map[string]int64
}

// RecordFileWritten implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFileWritten(_ string, bytes int64) {
	b.FilesWritten.Add(1)
	b.BytesWritten.Add(bytes)
}

// RecordFileOpened implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFileOpened(string) {
	b.FilesOpened.Add(1)
}

// RecordIntegrityCheck implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIntegrityCheck(ok bool) {
	b.IntegrityChecks.Add(1)
	if !ok {
		b.IntegrityFailures.Add(1)
	}
}

// RecordFieldDispatched implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFieldDispatched(format string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dispatchers == nil {
		b.dispatchers = make(map[string]int64)
	}
	b.dispatchers[format]++
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	b.mu.Lock()
	dispatched := make(map[string]int64, len(b.dispatchers))
	for k, v := range b.dispatchers {
		dispatched[k] = v
	}
	b.mu.Unlock()

	return BasicMetricsStats{
		FilesWritten:      b.FilesWritten.Load(),
		BytesWritten:      b.BytesWritten.Load(),
		FilesOpened:       b.FilesOpened.Load(),
		IntegrityChecks:   b.IntegrityChecks.Load(),
		IntegrityFailures: b.IntegrityFailures.Load(),
		FieldsDispatched:  dispatched,
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FilesWritten      int64
	BytesWritten      int64
	FilesOpened       int64
	IntegrityChecks   int64
	IntegrityFailures int64
	// FieldsDispatched counts dispatched fields per format name.
	FieldsDispatched map[string]int64
}
