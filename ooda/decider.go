package ooda

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/tradegate/risk"
	"github.com/web3guy0/tradegate/types"
)

// Decider implements the Decide phase: run the protocol engine under a hard
// wall-clock deadline, independent of the phase-level check.
type Decider struct {
	engine      *risk.Engine
	maxDecision time.Duration
}

// NewDecider builds a decider with the default 25ms decision budget.
func NewDecider(engine *risk.Engine) *Decider {
	return &Decider{engine: engine, maxDecision: 25 * time.Millisecond}
}

// WithMaxDecisionTime overrides the hard decision deadline.
func (d *Decider) WithMaxDecisionTime(max time.Duration) *Decider {
	d.maxDecision = max
	return d
}

// Decide assesses the proposal. The engine is pure CPU so it cannot be
// cancelled; it runs in its own goroutine and a blown deadline abandons the
// result and reports AssessmentFailed.
func (d *Decider) Decide(ctx context.Context, p *types.TradeProposal) (*risk.RiskAssessment, risk.ProtocolDecision, error) {
	type outcome struct {
		assessment *risk.RiskAssessment
		decision   risk.ProtocolDecision
	}
	done := make(chan outcome, 1)
	go func() {
		a, dec := d.engine.Assess(p)
		done <- outcome{assessment: a, decision: dec}
	}()

	timer := time.NewTimer(d.maxDecision)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.assessment, out.decision, nil
	case <-timer.C:
		log.Error().
			Str("proposal", p.ID).
			Dur("max", d.maxDecision).
			Msg("Decision deadline exceeded")
		return nil, risk.DecisionAssessmentFailed, &DeadlineError{Phase: PhaseDecide, Max: d.maxDecision}
	case <-ctx.Done():
		return nil, risk.DecisionAssessmentFailed, &DeadlineError{Phase: PhaseDecide, Max: d.maxDecision}
	}
}
