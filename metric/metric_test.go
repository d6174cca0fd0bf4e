package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	c.RecordFileWritten("tdt", 100)
	c.RecordFileWritten("tdt", 20)
	c.RecordFileWritten("fnm", 7)
	c.RecordFileOpened("si")
	c.RecordIntegrityCheck(true)
	c.RecordIntegrityCheck(false)
	c.RecordIntegrityCheck(false)
	c.RecordFieldDispatched("VInt")

	assert.InDelta(t, 2, counterValue(t, reg, "segcodec_files_written_total", "ext", "tdt"), 0)
	assert.InDelta(t, 120, counterValue(t, reg, "segcodec_bytes_written_total", "ext", "tdt"), 0)
	assert.InDelta(t, 7, counterValue(t, reg, "segcodec_bytes_written_total", "ext", "fnm"), 0)
	assert.InDelta(t, 1, counterValue(t, reg, "segcodec_files_opened_total", "ext", "si"), 0)
	assert.InDelta(t, 1, counterValue(t, reg, "segcodec_integrity_checks_total", "status", "ok"), 0)
	assert.InDelta(t, 2, counterValue(t, reg, "segcodec_integrity_checks_total", "status", "failed"), 0)
	assert.InDelta(t, 1, counterValue(t, reg, "segcodec_fields_dispatched_total", "format", "VInt"), 0)
}

func TestPrometheusCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	_, err = NewPrometheusCollector(reg)
	assert.Error(t, err)
}
