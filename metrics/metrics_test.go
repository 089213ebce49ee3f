package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePhase("observe", 3*time.Millisecond)
	m.ObservePhase("decide", 10*time.Millisecond)
	m.RecordDecision("APPROVED")
	m.RecordDecision("REJECTED")
	m.RecordDecision("REJECTED")
	m.RecordCycle("completed")
	m.SetBreakerActive(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("APPROVED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("REJECTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState))

	m.SetBreakerActive(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.breakerState))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["tradegate_phase_duration_seconds"])
	assert.True(t, names["tradegate_decisions_total"])
}
