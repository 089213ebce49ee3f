package ooda

import (
	"fmt"
	"time"
)

// Phase names the four OODA phases for timing and audit records.
type Phase string

const (
	PhaseObserve Phase = "observe"
	PhaseOrient  Phase = "orient"
	PhaseDecide  Phase = "decide"
	PhaseAct     Phase = "act"
)

// TimingConfig bounds each phase and the whole cycle.
type TimingConfig struct {
	MaxObserve time.Duration
	MaxOrient  time.Duration
	MaxDecide  time.Duration
	MaxAct     time.Duration
	MaxTotal   time.Duration
	// MaxDataAge is the quote freshness window checked during Observe.
	MaxDataAge time.Duration
}

// DefaultTimingConfig is the sub-200ms cycle budget.
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		MaxObserve: 20 * time.Millisecond,
		MaxOrient:  50 * time.Millisecond,
		MaxDecide:  25 * time.Millisecond,
		MaxAct:     100 * time.Millisecond,
		MaxTotal:   200 * time.Millisecond,
		MaxDataAge: 5 * time.Second,
	}
}

// budget returns the configured ceiling for a phase.
func (c TimingConfig) budget(p Phase) time.Duration {
	switch p {
	case PhaseObserve:
		return c.MaxObserve
	case PhaseOrient:
		return c.MaxOrient
	case PhaseDecide:
		return c.MaxDecide
	case PhaseAct:
		return c.MaxAct
	default:
		return c.MaxTotal
	}
}

// LoopTiming records measured phase durations for one cycle.
type LoopTiming struct {
	Observe time.Duration `json:"observe"`
	Orient  time.Duration `json:"orient"`
	Decide  time.Duration `json:"decide"`
	Act     time.Duration `json:"act"`
	Total   time.Duration `json:"total"`
}

func (t *LoopTiming) record(p Phase, d time.Duration) {
	switch p {
	case PhaseObserve:
		t.Observe = d
	case PhaseOrient:
		t.Orient = d
	case PhaseDecide:
		t.Decide = d
	case PhaseAct:
		t.Act = d
	}
}

// PhaseOverrun reports one phase past its budget.
type PhaseOverrun struct {
	Phase Phase
	Took  time.Duration
	Max   time.Duration
}

func (o PhaseOverrun) String() string {
	return fmt.Sprintf("%s took %s (max %s)", o.Phase, o.Took, o.Max)
}

// CheckPhaseTimeouts compares measurements against the config and returns
// every overrun.
func (t LoopTiming) CheckPhaseTimeouts(cfg TimingConfig) []PhaseOverrun {
	var out []PhaseOverrun
	checks := []struct {
		phase Phase
		took  time.Duration
		max   time.Duration
	}{
		{PhaseObserve, t.Observe, cfg.MaxObserve},
		{PhaseOrient, t.Orient, cfg.MaxOrient},
		{PhaseDecide, t.Decide, cfg.MaxDecide},
		{PhaseAct, t.Act, cfg.MaxAct},
	}
	for _, c := range checks {
		if c.max > 0 && c.took > c.max {
			out = append(out, PhaseOverrun{Phase: c.phase, Took: c.took, Max: c.max})
		}
	}
	if cfg.MaxTotal > 0 && t.Total > cfg.MaxTotal {
		out = append(out, PhaseOverrun{Phase: "total", Took: t.Total, Max: cfg.MaxTotal})
	}
	return out
}

// MeetsTargets reports whether the cycle stayed inside every budget.
func (t LoopTiming) MeetsTargets(cfg TimingConfig) bool {
	return len(t.CheckPhaseTimeouts(cfg)) == 0
}

// DeadlineError is a phase blown past its budget.
type DeadlineError struct {
	Phase Phase
	Max   time.Duration
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("phase %s exceeded deadline %s", e.Phase, e.Max)
}

// StaleDataError is a quote older than the freshness window.
type StaleDataError struct {
	Age    time.Duration
	MaxAge time.Duration
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale market data: age %s exceeds maximum %s", e.Age, e.MaxAge)
}
