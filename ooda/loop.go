package ooda

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/tradegate/exchange"
	"github.com/web3guy0/tradegate/portfolio"
	"github.com/web3guy0/tradegate/risk"
	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// OODA LOOP - one cycle per trade intent
// ═══════════════════════════════════════════════════════════════════════════════
//
// Observe → Orient → Decide → Act, each phase under its own deadline, the
// whole cycle under a total deadline, every transition written to an
// append-only audit trail. A cycle ends in Completed with an order placed
// and registered, or in Failed with the reason preserved.
//
// Loops are cheap; run one per intent. Concurrent loops share nothing but
// the portfolio tracker and the adapter.
//
// ═══════════════════════════════════════════════════════════════════════════════

// FailureKind classifies why a cycle died.
type FailureKind string

const (
	FailValidation       FailureKind = "VALIDATION_ERROR"
	FailSizing           FailureKind = "SIZING_ERROR"
	FailStaleData        FailureKind = "STALE_MARKET_DATA"
	FailExchange         FailureKind = "EXCHANGE_ERROR"
	FailRejected         FailureKind = "REJECTED"
	FailAssessment       FailureKind = "ASSESSMENT_FAILED"
	FailDeadline         FailureKind = "DEADLINE_EXCEEDED"
	FailPostTradeBreach  FailureKind = "POST_TRADE_LIMIT_BREACH"
	FailStateTransition  FailureKind = "STATE_TRANSITION_ERROR"
)

// Failure carries the terminal reason of a failed cycle.
type Failure struct {
	Phase   Phase       `json:"phase"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("cycle failed in %s [%s]: %s", f.Phase, f.Kind, f.Message)
}

// Recorder receives timing and decision observations; the metrics package
// implements it. A nil recorder is fine.
type Recorder interface {
	ObservePhase(phase string, d time.Duration)
	RecordDecision(status string)
	RecordCycle(outcome string)
}

// ReconcileEvent reports the outcome of an out-of-band order reconciliation
// after an Act timeout.
type ReconcileEvent struct {
	ClientOrderID string
	Registered    bool
	Cancelled     bool
	Note          string
}

// CycleResult is everything one cycle produced, terminal state included.
type CycleResult struct {
	FinalState    State                  `json:"final_state"`
	Failure       *Failure               `json:"failure,omitempty"`
	Intent        types.TradeIntent      `json:"intent"`
	Quote         *types.MarketQuote     `json:"quote,omitempty"`
	Proposal      *types.TradeProposal   `json:"proposal,omitempty"`
	Assessment    *risk.RiskAssessment   `json:"assessment,omitempty"`
	Order         *exchange.TradeOrder   `json:"order,omitempty"`
	OrderResult   *exchange.OrderResult  `json:"order_result,omitempty"`
	PositionID    string                 `json:"position_id,omitempty"`
	Timing        LoopTiming             `json:"timing"`
	Audit         []AuditEntry           `json:"audit"`
	StatusMessage string                 `json:"status_message"`
}

// Loop drives one OODA cycle at a time. Between cycles call Reset.
type Loop struct {
	mu    sync.Mutex
	state State

	cfg        TimingConfig
	observer   *Observer
	orientator *Orientator
	decider    *Decider
	actor      *Actor
	tracker    *portfolio.Tracker

	recorder    Recorder
	onReconcile func(ReconcileEvent)
	now         func() time.Time

	trail  Trail
	timing LoopTiming
}

// NewLoop wires a loop from its collaborators.
func NewLoop(cfg TimingConfig, observer *Observer, orientator *Orientator, decider *Decider, actor *Actor, tracker *portfolio.Tracker) *Loop {
	return &Loop{
		cfg:        cfg,
		state:      StateIdle,
		observer:   observer,
		orientator: orientator,
		decider:    decider,
		actor:      actor,
		tracker:    tracker,
		now:        time.Now,
	}
}

// WithRecorder attaches a metrics recorder.
func (l *Loop) WithRecorder(r Recorder) *Loop {
	l.recorder = r
	return l
}

// OnReconcile registers a callback fired when a timed-out order is
// reconciled out-of-band.
func (l *Loop) OnReconcile(fn func(ReconcileEvent)) *Loop {
	l.onReconcile = fn
	return l
}

// State returns the current loop state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Reset returns a terminal loop to Idle for the next cycle.
func (l *Loop) Reset() error {
	return l.transition(StateIdle, "reset", nil)
}

// transition validates and commits a state change, appending to the audit
// trail. An illegal pair is recorded as a fatal audit event and rejected.
func (l *Loop) transition(to State, reason string, assessment *risk.RiskAssessment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	from := l.state
	if !CanTransition(from, to) {
		err := &StateTransitionError{From: from, To: to}
		l.trail.append(AuditEntry{
			At: l.now(), From: from, To: from,
			Reason: "FATAL: " + err.Error(),
		})
		log.Error().Err(err).Msg("Invalid OODA transition attempted")
		return err
	}
	l.state = to
	l.trail.append(AuditEntry{
		At: l.now(), From: from, To: to,
		Reason:     reason,
		Assessment: assessment,
	})
	return nil
}

// RunCycle executes one full cycle for the intent. The loop must be Idle.
func (l *Loop) RunCycle(ctx context.Context, intent types.TradeIntent) *CycleResult {
	l.mu.Lock()
	if l.state != StateIdle {
		state := l.state
		l.mu.Unlock()
		return &CycleResult{
			FinalState:    state,
			Failure:       &Failure{Kind: FailStateTransition, Message: fmt.Sprintf("cycle started while %s", state)},
			Intent:        intent,
			StatusMessage: "loop busy",
		}
	}
	l.trail = Trail{}
	l.timing = LoopTiming{}
	l.mu.Unlock()

	result := &CycleResult{Intent: intent}
	cycleStart := l.now()
	defer func() {
		result.Timing = l.timing
		result.Timing.Total = l.now().Sub(cycleStart)
		result.Audit = l.trail.Entries()
		result.FinalState = l.State()
		if l.recorder != nil {
			outcome := "completed"
			if result.Failure != nil {
				outcome = string(result.Failure.Kind)
			}
			l.recorder.RecordCycle(outcome)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, l.cfg.MaxTotal)
	defer cancel()

	_ = l.transition(StateObserving, fmt.Sprintf("cycle started: %s %s", intent.Side, intent.Symbol), nil)

	// ── Observe ────────────────────────────────────────────────────────────
	var quote types.MarketQuote
	err := l.runPhase(ctx, PhaseObserve, func(pctx context.Context) error {
		q, err := l.observer.Observe(pctx, intent.Symbol)
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		l.fail(result, PhaseObserve, err)
		return result
	}
	result.Quote = &quote
	_ = l.transition(StateOrienting, fmt.Sprintf("quote %s@%s fresh", quote.Symbol, quote.Last), nil)

	// ── Orient ─────────────────────────────────────────────────────────────
	var orientation Orientation
	err = l.runPhase(ctx, PhaseOrient, func(context.Context) error {
		o, err := l.orientator.Orient(intent, quote)
		if err != nil {
			return err
		}
		orientation = o
		return nil
	})
	if err != nil {
		l.fail(result, PhaseOrient, err)
		return result
	}
	result.Proposal = orientation.Proposal
	_ = l.transition(StateDeciding,
		fmt.Sprintf("proposal %s sized %s (confidence %.2f)",
			orientation.Proposal.ID, orientation.Size, orientation.Confidence), nil)

	// ── Decide ─────────────────────────────────────────────────────────────
	var assessment *risk.RiskAssessment
	var decision risk.ProtocolDecision
	err = l.runPhase(ctx, PhaseDecide, func(pctx context.Context) error {
		a, d, err := l.decider.Decide(pctx, orientation.Proposal)
		if err != nil {
			return err
		}
		assessment = a
		decision = d
		return nil
	})
	if err != nil {
		l.fail(result, PhaseDecide, err)
		return result
	}
	result.Assessment = assessment
	if l.recorder != nil {
		l.recorder.RecordDecision(assessment.ApprovalStatus.String())
	}

	switch decision {
	case risk.DecisionRejected:
		l.failWith(result, PhaseDecide, FailRejected, assessment.Reasoning, assessment)
		return result
	case risk.DecisionAssessmentFailed:
		l.failWith(result, PhaseDecide, FailAssessment, assessment.Reasoning, assessment)
		return result
	}

	if err := l.transition(StateActing, "approved: "+assessment.Reasoning, assessment); err != nil {
		l.failWith(result, PhaseDecide, FailStateTransition, err.Error(), assessment)
		return result
	}

	// ── Act ────────────────────────────────────────────────────────────────
	order := l.actor.BuildOrder(orientation.Proposal, orientation.Size)
	result.Order = &order

	var orderResult exchange.OrderResult
	err = l.runPhase(ctx, PhaseAct, func(pctx context.Context) error {
		res, err := l.actor.Execute(pctx, &order)
		if err != nil {
			return err
		}
		orderResult = res
		return nil
	})
	if err != nil {
		var deadline *DeadlineError
		if errors.As(err, &deadline) {
			// The order may have landed: reconcile out-of-band, never retry
			// blind.
			l.trail.append(AuditEntry{
				At: l.now(), From: StateActing, To: StateActing,
				Reason: "act timed out; reconciliation scheduled for " + order.ClientOrderID,
			})
			go l.reconcile(order, orientation.Proposal, orientation.Size)
		}
		l.fail(result, PhaseAct, err)
		return result
	}
	result.OrderResult = &orderResult

	// Aggregate ceiling re-check: two cycles that both passed Decide can
	// collide here; the loser unwinds.
	positionID, err := l.tracker.RegisterOpen(orientation.Proposal, orientation.Size)
	if err != nil {
		if errors.Is(err, portfolio.ErrAggregateRiskExceeded) {
			l.undoOrder(&orderResult)
			l.failWith(result, PhaseAct, FailPostTradeBreach, err.Error(), assessment)
			return result
		}
		l.fail(result, PhaseAct, err)
		return result
	}
	result.PositionID = positionID

	_ = l.transition(StateCompleted,
		fmt.Sprintf("order %s %s; position %s registered", orderResult.OrderID, orderResult.Status, positionID),
		nil)
	result.StatusMessage = assessment.Reasoning
	return result
}

// runPhase executes fn under the phase budget, records its duration, and
// converts a blown budget into a DeadlineError for that phase.
func (l *Loop) runPhase(ctx context.Context, phase Phase, fn func(context.Context) error) error {
	budget := l.cfg.budget(phase)
	pctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := l.now()
	done := make(chan error, 1)
	go func() { done <- fn(pctx) }()

	var err error
	select {
	case err = <-done:
		// A phase that finished after its context expired still blew the
		// budget; the deadline is the verdict, not whatever error the
		// cancelled I/O happened to surface.
		if pctx.Err() != nil {
			err = &DeadlineError{Phase: phase, Max: budget}
		}
	case <-pctx.Done():
		err = &DeadlineError{Phase: phase, Max: budget}
	}
	took := l.now().Sub(start)
	l.timing.record(phase, took)
	if l.recorder != nil {
		l.recorder.ObservePhase(string(phase), took)
	}
	return err
}

// fail transitions to Failed classifying err by its type.
func (l *Loop) fail(result *CycleResult, phase Phase, err error) {
	l.failWith(result, phase, classify(err), err.Error(), nil)
}

func (l *Loop) failWith(result *CycleResult, phase Phase, kind FailureKind, msg string, assessment *risk.RiskAssessment) {
	failure := &Failure{Phase: phase, Kind: kind, Message: msg}
	result.Failure = failure
	result.StatusMessage = msg
	_ = l.transition(StateFailed, failure.Error(), assessment)
	log.Warn().
		Str("phase", string(phase)).
		Str("kind", string(kind)).
		Str("reason", msg).
		Msg("OODA cycle failed")
}

func classify(err error) FailureKind {
	var (
		deadline   *DeadlineError
		stale      *StaleDataError
		validation *types.ValidationError
		proposal   *types.ProposalError
		transition *StateTransitionError
		exchErr    *exchange.Error
	)
	switch {
	case errors.As(err, &deadline):
		return FailDeadline
	case errors.As(err, &stale):
		return FailStaleData
	case errors.As(err, &validation), errors.As(err, &proposal):
		return FailValidation
	case errors.As(err, &transition):
		return FailStateTransition
	case errors.As(err, &exchErr):
		return FailExchange
	default:
		// Sizing errors surface from Orient; everything it raises that is
		// not a validation failure is a sizing failure.
		return FailSizing
	}
}

// reconcile queries a timed-out order and, if it landed, registers the
// position out-of-band. Runs detached from the (already failed) cycle.
func (l *Loop) reconcile(order exchange.TradeOrder, proposal *types.TradeProposal, size types.PositionSize) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := ReconcileEvent{ClientOrderID: order.ClientOrderID}

	// The placement may still be in flight at the venue; poll briefly before
	// concluding it never landed.
	var res exchange.OrderResult
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		res, err = l.actor.Adapter().GetOrderStatus(ctx, order.ClientOrderID)
		if err == nil {
			break
		}
		if kind, ok := exchange.KindOf(err); !ok || kind != exchange.OrderNotFound {
			event.Note = "status query failed: " + err.Error()
			l.emitReconcile(event)
			return
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			event.Note = "order never landed"
			l.emitReconcile(event)
			return
		}
	}
	if err != nil {
		event.Note = "order never landed"
		l.emitReconcile(event)
		return
	}

	switch res.Status {
	case exchange.StatusFilled, exchange.StatusPartiallyFilled, exchange.StatusNew:
		if _, err := l.tracker.RegisterOpen(proposal, size); err != nil {
			if errors.Is(err, portfolio.ErrAggregateRiskExceeded) {
				if cancelErr := l.actor.Adapter().CancelOrder(ctx, res.OrderID); cancelErr == nil {
					event.Cancelled = true
					event.Note = "post-trade limit breach; order cancelled"
				} else {
					event.Note = "POST_TRADE_LIMIT_BREACH: order landed, cancel failed"
				}
			} else {
				event.Note = "register failed: " + err.Error()
			}
		} else {
			event.Registered = true
			event.Note = "order landed after timeout; position registered"
		}
	default:
		event.Note = "order terminal as " + string(res.Status)
	}
	l.emitReconcile(event)
}

func (l *Loop) emitReconcile(ev ReconcileEvent) {
	log.Warn().
		Str("client_order_id", ev.ClientOrderID).
		Bool("registered", ev.Registered).
		Bool("cancelled", ev.Cancelled).
		Str("note", ev.Note).
		Msg("🔎 Order reconciliation")
	if l.onReconcile != nil {
		l.onReconcile(ev)
	}
}

// undoOrder attempts to cancel an order whose registration breached the
// aggregate ceiling. A filled order cannot be cancelled; the breach stays in
// the audit trail either way.
func (l *Loop) undoOrder(res *exchange.OrderResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.actor.Adapter().CancelOrder(ctx, res.OrderID); err != nil {
		l.trail.append(AuditEntry{
			At: l.now(), From: StateActing, To: StateActing,
			Reason: "POST_TRADE_LIMIT_BREACH: cancel failed for " + res.OrderID + ": " + err.Error(),
		})
		return
	}
	l.trail.append(AuditEntry{
		At: l.now(), From: StateActing, To: StateActing,
		Reason: "POST_TRADE_LIMIT_BREACH: order " + res.OrderID + " cancelled",
	})
}
