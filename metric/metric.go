// Package metric exports codec metrics to Prometheus.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/segcodec"
)

var _ segcodec.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector implements segcodec.MetricsCollector with Prometheus
// counters.
type PrometheusCollector struct {
	filesWritten    *prometheus.CounterVec
	bytesWritten    *prometheus.CounterVec
	filesOpened     *prometheus.CounterVec
	integrityChecks *prometheus.CounterVec
	dispatched      *prometheus.CounterVec
}

// NewPrometheusCollector creates the collector and registers its metrics
// with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{
		filesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segcodec_files_written_total",
			Help: "Segment files written, by extension",
		}, []string{"ext"}),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segcodec_bytes_written_total",
			Help: "Bytes of segment files written, by extension",
		}, []string{"ext"}),
		filesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segcodec_files_opened_total",
			Help: "Segment files opened for reading or verification, by extension",
		}, []string{"ext"}),
		integrityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segcodec_integrity_checks_total",
			Help: "Files verified, by result",
		}, []string{"status"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segcodec_fields_dispatched_total",
			Help: "Fields routed by the per-field dispatchers, by format",
		}, []string{"format"}),
	}
	for _, col := range []prometheus.Collector{c.filesWritten, c.bytesWritten, c.filesOpened, c.integrityChecks, c.dispatched} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordFileWritten implements segcodec.MetricsCollector.
func (c *PrometheusCollector) RecordFileWritten(ext string, bytes int64) {
	c.filesWritten.WithLabelValues(ext).Inc()
	c.bytesWritten.WithLabelValues(ext).Add(float64(bytes))
}

// RecordFileOpened implements segcodec.MetricsCollector.
func (c *PrometheusCollector) RecordFileOpened(ext string) {
	c.filesOpened.WithLabelValues(ext).Inc()
}

// RecordIntegrityCheck implements segcodec.MetricsCollector.
func (c *PrometheusCollector) RecordIntegrityCheck(ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	c.integrityChecks.WithLabelValues(status).Inc()
}

// RecordFieldDispatched implements segcodec.MetricsCollector.
func (c *PrometheusCollector) RecordFieldDispatched(format string) {
	c.dispatched.WithLabelValues(format).Inc()
}
