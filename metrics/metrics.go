package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ═══════════════════════════════════════════════════════════════════════════════
// METRICS - cycle latency, decisions and breaker state
// ═══════════════════════════════════════════════════════════════════════════════

// Metrics implements the loop's Recorder interface over prometheus
// collectors. The host exposes the registry however it serves /metrics.
type Metrics struct {
	phaseLatency *prometheus.HistogramVec
	decisions    *prometheus.CounterVec
	cycles       *prometheus.CounterVec
	breakerState prometheus.Gauge
}

// New registers the collectors on the given registerer (use
// prometheus.DefaultRegisterer in production, a fresh registry in tests).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		phaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tradegate",
			Name:      "phase_duration_seconds",
			Help:      "OODA phase latency",
			Buckets:   []float64{.001, .005, .010, .020, .025, .050, .100, .200, .500},
		}, []string{"phase"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradegate",
			Name:      "decisions_total",
			Help:      "Risk decisions by approval status",
		}, []string{"status"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradegate",
			Name:      "cycles_total",
			Help:      "Finished OODA cycles by outcome",
		}, []string{"outcome"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradegate",
			Name:      "circuit_breaker_active",
			Help:      "1 while the consecutive-loss breaker is latched",
		}),
	}
	reg.MustRegister(m.phaseLatency, m.decisions, m.cycles, m.breakerState)
	return m
}

// ObservePhase records one phase duration.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.phaseLatency.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordDecision counts one risk decision.
func (m *Metrics) RecordDecision(status string) {
	m.decisions.WithLabelValues(status).Inc()
}

// RecordCycle counts one finished cycle.
func (m *Metrics) RecordCycle(outcome string) {
	m.cycles.WithLabelValues(outcome).Inc()
}

// SetBreakerActive mirrors the breaker latch into the gauge.
func (m *Metrics) SetBreakerActive(active bool) {
	if active {
		m.breakerState.Set(1)
		return
	}
	m.breakerState.Set(0)
}
