package ooda

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/tradegate/exchange"
	"github.com/web3guy0/tradegate/portfolio"
	"github.com/web3guy0/tradegate/risk"
	"github.com/web3guy0/tradegate/sizing"
	"github.com/web3guy0/tradegate/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustPrice(t *testing.T, s string) types.PricePoint {
	t.Helper()
	p, err := types.NewPricePoint(d(s))
	require.NoError(t, err)
	return p
}

func mustPricePtr(t *testing.T, s string) *types.PricePoint {
	t.Helper()
	p := mustPrice(t, s)
	return &p
}

// intent builds the S1-shaped intent: 10k equity, entry 100 / stop 95.
func intent(t *testing.T, riskPct string, target string) types.TradeIntent {
	t.Helper()
	eq, err := types.NewAccountEquity(d("10000"))
	require.NoError(t, err)
	rp, err := types.NewRiskPercentageBetween(d(riskPct), d("0.001"), d("0.99"))
	require.NoError(t, err)
	it := types.TradeIntent{
		Symbol:        "BTCUSDT",
		Side:          types.Long,
		Entry:         mustPrice(t, "100"),
		Stop:          mustPrice(t, "95"),
		AccountEquity: eq,
		Risk:          rp,
	}
	if target != "" {
		it.TakeProfit = mustPricePtr(t, target)
	}
	return it
}

type harness struct {
	mock    *exchange.Mock
	tracker *portfolio.Tracker
	engine  *risk.Engine
	loop    *Loop
	timing  TimingConfig
}

func newHarness(t *testing.T, limits risk.ProtocolLimits, mutate func(*TimingConfig)) *harness {
	t.Helper()
	timing := DefaultTimingConfig()
	// Generous budgets so scheduler jitter cannot flake the suite; deadline
	// tests tighten them explicitly.
	timing.MaxObserve = 500 * time.Millisecond
	timing.MaxOrient = 500 * time.Millisecond
	timing.MaxDecide = 500 * time.Millisecond
	timing.MaxAct = 500 * time.Millisecond
	timing.MaxTotal = 5 * time.Second
	if mutate != nil {
		mutate(&timing)
	}

	mock := exchange.NewMock()
	mock.SetMarketData(types.MarketQuote{
		Symbol:    "BTCUSDT",
		Bid:       d("99.99"),
		Ask:       d("100.01"),
		Last:      d("100"),
		Volume24h: d("5000"),
		Timestamp: time.Now(),
	})

	tracker := portfolio.NewTracker(limits)
	engine := risk.NewEngine(limits, tracker)
	loop := NewLoop(timing,
		NewObserver(mock, timing.MaxDataAge),
		NewOrientator(sizing.NewCalculator()),
		NewDecider(engine).WithMaxDecisionTime(timing.MaxDecide),
		NewActor(mock, "test"),
		tracker,
	)
	return &harness{mock: mock, tracker: tracker, engine: engine, loop: loop, timing: timing}
}

// S1: happy path on the Standard preset.
func TestScenarioHappyPath(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), nil)

	res := h.loop.RunCycle(context.Background(), intent(t, "0.02", "110"))

	require.Nil(t, res.Failure, "unexpected failure: %+v", res.Failure)
	assert.Equal(t, StateCompleted, res.FinalState)

	require.NotNil(t, res.Order)
	assert.Equal(t, exchange.Buy, res.Order.Side)
	assert.Equal(t, exchange.Limit, res.Order.Type)
	assert.True(t, res.Order.Quantity.Equal(d("40")), "got %s", res.Order.Quantity)
	require.NotNil(t, res.Order.Price)
	assert.True(t, res.Order.Price.Equal(d("100")))
	assert.True(t, len(res.Order.ClientOrderID) > len("test-"))

	require.NotNil(t, res.OrderResult)
	assert.Equal(t, exchange.StatusFilled, res.OrderResult.Status)

	view := h.tracker.View()
	assert.Equal(t, 1, view.OpenPositions)
	assert.True(t, view.TotalPortfolioRisk.Equal(d("0.02")))
	assert.Len(t, h.mock.PlacedOrders(), 1)
}

// S2: excessive per-trade risk rejected by MaxTradeRisk.
func TestScenarioExcessiveRisk(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), nil)

	res := h.loop.RunCycle(context.Background(), intent(t, "0.08", ""))

	assert.Equal(t, StateFailed, res.FinalState)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailRejected, res.Failure.Kind)
	assert.Contains(t, res.StatusMessage, "exceeds maximum")
	assert.Equal(t, 0, h.tracker.View().OpenPositions)
	assert.Empty(t, h.mock.PlacedOrders())
}

// S3: inverted stop dies in Orient before sizing.
func TestScenarioInvertedStop(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), nil)

	it := intent(t, "0.02", "")
	it.Stop = mustPrice(t, "105")
	res := h.loop.RunCycle(context.Background(), it)

	assert.Equal(t, StateFailed, res.FinalState)
	require.NotNil(t, res.Failure)
	assert.Equal(t, PhaseOrient, res.Failure.Phase)
	assert.Equal(t, FailValidation, res.Failure.Kind)
	assert.Nil(t, res.Proposal)
	assert.Empty(t, h.mock.PlacedOrders())
}

// S4: three losses latch the breaker; the next proposal is rejected.
func TestScenarioBreakerLatches(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), nil)

	for i := 0; i < 3; i++ {
		h.tracker.RecordOutcome(d("-100"))
	}
	view := h.tracker.View()
	assert.True(t, view.BreakerActive)
	assert.Equal(t, 3, view.ConsecutiveLosses)

	res := h.loop.RunCycle(context.Background(), intent(t, "0.02", "110"))
	assert.Equal(t, StateFailed, res.FinalState)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailRejected, res.Failure.Kind)
	require.NotNil(t, res.Assessment)
	require.NotNil(t, res.Assessment.DominantViolation())
	assert.Equal(t, "ConsecutiveLossLimit", res.Assessment.DominantViolation().RuleName)
	assert.Equal(t, risk.Rejected, res.Assessment.ApprovalStatus)
}

// S5: a 10s-old quote against a 5s window fails Observe.
func TestScenarioStaleData(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), func(tc *TimingConfig) {
		tc.MaxDataAge = 5 * time.Second
	})
	h.mock.SetMarketData(types.MarketQuote{
		Symbol:    "BTCUSDT",
		Bid:       d("99.99"),
		Ask:       d("100.01"),
		Last:      d("100"),
		Volume24h: d("5000"),
		Timestamp: time.Now().Add(-10 * time.Second),
	})

	res := h.loop.RunCycle(context.Background(), intent(t, "0.02", ""))

	assert.Equal(t, StateFailed, res.FinalState)
	require.NotNil(t, res.Failure)
	assert.Equal(t, PhaseObserve, res.Failure.Phase)
	assert.Equal(t, FailStaleData, res.Failure.Kind)
	assert.Nil(t, res.Proposal)
	assert.Empty(t, h.mock.PlacedOrders())
}

// S6: the portfolio ceiling rejects 0.12 projected and admits exactly 0.10.
func TestScenarioPortfolioCeiling(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), nil)

	// Two open positions at 0.04 each.
	for i := 0; i < 2; i++ {
		res := h.loop.RunCycle(context.Background(), intent(t, "0.04", ""))
		require.Equal(t, StateCompleted, res.FinalState, "setup cycle %d: %+v", i, res.Failure)
		require.NoError(t, h.loop.Reset())
	}

	res := h.loop.RunCycle(context.Background(), intent(t, "0.04", ""))
	assert.Equal(t, StateFailed, res.FinalState)
	require.NotNil(t, res.Assessment)
	require.NotNil(t, res.Assessment.DominantViolation())
	assert.Equal(t, "MaxPortfolioRisk", res.Assessment.DominantViolation().RuleName)
	require.NoError(t, h.loop.Reset())

	res = h.loop.RunCycle(context.Background(), intent(t, "0.02", ""))
	assert.Equal(t, StateCompleted, res.FinalState)
	assert.True(t, h.tracker.View().TotalPortfolioRisk.Equal(d("0.10")))
}

// OODA transition closure: only the listed pairs are legal.
func TestPropertyTransitionClosure(t *testing.T) {
	legal := map[[2]State]bool{
		{StateIdle, StateObserving}:      true,
		{StateObserving, StateOrienting}: true,
		{StateObserving, StateFailed}:    true,
		{StateOrienting, StateDeciding}:  true,
		{StateOrienting, StateFailed}:    true,
		{StateDeciding, StateActing}:     true,
		{StateDeciding, StateCompleted}:  true,
		{StateDeciding, StateFailed}:     true,
		{StateActing, StateCompleted}:    true,
		{StateActing, StateFailed}:       true,
		{StateCompleted, StateIdle}:      true,
		{StateFailed, StateIdle}:         true,
	}
	all := []State{StateIdle, StateObserving, StateOrienting, StateDeciding, StateActing, StateCompleted, StateFailed}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]State{from, to}], CanTransition(from, to),
				"%s -> %s", from, to)
		}
	}
}

func TestLoopRejectsIllegalTransitions(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), nil)

	// Reset from Idle is not in the table.
	err := h.loop.Reset()
	var terr *StateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StateIdle, terr.From)

	// A busy loop refuses a second cycle.
	res := h.loop.RunCycle(context.Background(), intent(t, "0.02", ""))
	require.Equal(t, StateCompleted, res.FinalState)
	res2 := h.loop.RunCycle(context.Background(), intent(t, "0.02", ""))
	require.NotNil(t, res2.Failure)
	assert.Equal(t, FailStateTransition, res2.Failure.Kind)

	// After reset the loop runs again.
	require.NoError(t, h.loop.Reset())
	assert.Equal(t, StateIdle, h.loop.State())
}

// Deadline correctness: a phase past its budget terminates the cycle in
// Failed naming that phase.
func TestPropertyDeadlineObserve(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), func(tc *TimingConfig) {
		tc.MaxObserve = 20 * time.Millisecond
	})
	h.mock.SetResponseDelay(80 * time.Millisecond)

	res := h.loop.RunCycle(context.Background(), intent(t, "0.02", ""))
	assert.Equal(t, StateFailed, res.FinalState)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailDeadline, res.Failure.Kind)
	assert.Equal(t, PhaseObserve, res.Failure.Phase)
	assert.Greater(t, res.Timing.Observe, 20*time.Millisecond)
}

// slowRule stalls the engine long enough to blow the decision deadline.
type slowRule struct {
	delay time.Duration
}

func (s slowRule) Assess(*types.TradeProposal, risk.StateView) *risk.Violation {
	time.Sleep(s.delay)
	return nil
}
func (s slowRule) Name() string        { return "Slow" }
func (s slowRule) Priority() int       { return 50 }
func (s slowRule) Description() string { return "stalls for tests" }

func TestPropertyDeadlineDecide(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), func(tc *TimingConfig) {
		tc.MaxDecide = 25 * time.Millisecond
	})
	h.engine.AddRule(slowRule{delay: 200 * time.Millisecond})

	res := h.loop.RunCycle(context.Background(), intent(t, "0.02", ""))
	assert.Equal(t, StateFailed, res.FinalState)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailDeadline, res.Failure.Kind)
	assert.Equal(t, PhaseDecide, res.Failure.Phase)
}

func TestTimingCheckPhaseTimeouts(t *testing.T) {
	cfg := DefaultTimingConfig()
	timing := LoopTiming{
		Observe: 10 * time.Millisecond,
		Orient:  60 * time.Millisecond, // over the 50ms budget
		Decide:  10 * time.Millisecond,
		Act:     10 * time.Millisecond,
		Total:   90 * time.Millisecond,
	}
	overruns := timing.CheckPhaseTimeouts(cfg)
	require.Len(t, overruns, 1)
	assert.Equal(t, PhaseOrient, overruns[0].Phase)
	assert.False(t, timing.MeetsTargets(cfg))

	timing.Orient = 40 * time.Millisecond
	assert.True(t, timing.MeetsTargets(cfg))
}

// Audit completeness: the trail for a terminal cycle carries the start, the
// proposal conversion, the decision with its assessment, and the terminal
// entry.
func TestPropertyAuditCompleteness(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), nil)
	res := h.loop.RunCycle(context.Background(), intent(t, "0.02", "110"))
	require.Equal(t, StateCompleted, res.FinalState)

	require.GreaterOrEqual(t, len(res.Audit), 4)
	assert.Contains(t, res.Audit[0].Reason, "cycle started")
	assert.Equal(t, StateIdle, res.Audit[0].From)

	var sawProposal, sawDecision, sawTerminal bool
	for _, e := range res.Audit {
		if e.To == StateDeciding {
			sawProposal = true
			assert.Contains(t, e.Reason, "proposal")
		}
		if e.From == StateDeciding && e.Assessment != nil {
			sawDecision = true
			assert.Equal(t, risk.Approved, e.Assessment.ApprovalStatus)
		}
		if e.To == StateCompleted {
			sawTerminal = true
		}
	}
	assert.True(t, sawProposal, "missing proposal conversion entry")
	assert.True(t, sawDecision, "missing decision entry")
	assert.True(t, sawTerminal, "missing terminal entry")
}

func TestAuditOnRejection(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), nil)
	res := h.loop.RunCycle(context.Background(), intent(t, "0.08", ""))
	require.Equal(t, StateFailed, res.FinalState)

	last := res.Audit[len(res.Audit)-1]
	assert.Equal(t, StateFailed, last.To)
	assert.Contains(t, last.Reason, "REJECTED")
	require.NotNil(t, last.Assessment)
	assert.True(t, last.Assessment.IsRejected())
}

// rejectPlaceAdapter fails only order placement; market data flows normally.
type rejectPlaceAdapter struct {
	*exchange.Mock
}

func (r *rejectPlaceAdapter) PlaceOrder(context.Context, *exchange.TradeOrder) (exchange.OrderResult, error) {
	return exchange.OrderResult{}, exchange.NewError(exchange.InsufficientBalance, "margin call")
}

func TestExchangeErrorFailsAct(t *testing.T) {
	timing := DefaultTimingConfig()
	timing.MaxObserve = 500 * time.Millisecond
	timing.MaxOrient = 500 * time.Millisecond
	timing.MaxDecide = 500 * time.Millisecond
	timing.MaxAct = 500 * time.Millisecond
	timing.MaxTotal = 5 * time.Second

	mock := exchange.NewMock()
	mock.SetMarketData(types.MarketQuote{
		Symbol: "BTCUSDT", Bid: d("99.99"), Ask: d("100.01"),
		Last: d("100"), Volume24h: d("5000"), Timestamp: time.Now(),
	})
	adapter := &rejectPlaceAdapter{Mock: mock}

	limits := risk.StandardLimits()
	tracker := portfolio.NewTracker(limits)
	engine := risk.NewEngine(limits, tracker)
	loop := NewLoop(timing,
		NewObserver(adapter, timing.MaxDataAge),
		NewOrientator(sizing.NewCalculator()),
		NewDecider(engine).WithMaxDecisionTime(timing.MaxDecide),
		NewActor(adapter, "test"),
		tracker,
	)

	res := loop.RunCycle(context.Background(), intent(t, "0.02", ""))
	assert.Equal(t, StateFailed, res.FinalState)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailExchange, res.Failure.Kind)
	assert.Equal(t, PhaseAct, res.Failure.Phase)
	assert.Equal(t, 0, tracker.View().OpenPositions)
}

// slowPlaceAdapter delays PlaceOrder past the Act budget but still lands the
// order, so reconciliation finds it afterwards.
type slowPlaceAdapter struct {
	*exchange.Mock
	delay time.Duration
}

func (s *slowPlaceAdapter) PlaceOrder(_ context.Context, order *exchange.TradeOrder) (exchange.OrderResult, error) {
	time.Sleep(s.delay)
	return s.Mock.PlaceOrder(context.Background(), order)
}

func TestActTimeoutReconciliation(t *testing.T) {
	timing := DefaultTimingConfig()
	timing.MaxObserve = 500 * time.Millisecond
	timing.MaxOrient = 500 * time.Millisecond
	timing.MaxDecide = 500 * time.Millisecond
	timing.MaxAct = 30 * time.Millisecond
	timing.MaxTotal = 5 * time.Second

	mock := exchange.NewMock()
	mock.SetMarketData(types.MarketQuote{
		Symbol: "BTCUSDT", Bid: d("99.99"), Ask: d("100.01"),
		Last: d("100"), Volume24h: d("5000"), Timestamp: time.Now(),
	})
	slow := &slowPlaceAdapter{Mock: mock, delay: 100 * time.Millisecond}

	limits := risk.StandardLimits()
	tracker := portfolio.NewTracker(limits)
	engine := risk.NewEngine(limits, tracker)

	events := make(chan ReconcileEvent, 1)
	loop := NewLoop(timing,
		NewObserver(slow, timing.MaxDataAge),
		NewOrientator(sizing.NewCalculator()),
		NewDecider(engine).WithMaxDecisionTime(timing.MaxDecide),
		NewActor(slow, "test"),
		tracker,
	).OnReconcile(func(ev ReconcileEvent) { events <- ev })

	res := loop.RunCycle(context.Background(), intent(t, "0.02", ""))
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailDeadline, res.Failure.Kind)
	assert.Equal(t, PhaseAct, res.Failure.Phase)

	select {
	case ev := <-events:
		assert.True(t, ev.Registered, "note: %s", ev.Note)
		assert.Equal(t, 1, tracker.View().OpenPositions)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciliation never fired")
	}
}

func TestShortIntentPlacesSellOrder(t *testing.T) {
	h := newHarness(t, risk.StandardLimits(), nil)
	eq, err := types.NewAccountEquity(d("10000"))
	require.NoError(t, err)
	rp, err := types.NewRiskPercentage(d("0.02"))
	require.NoError(t, err)
	it := types.TradeIntent{
		Symbol:        "BTCUSDT",
		Side:          types.Short,
		Entry:         mustPrice(t, "100"),
		Stop:          mustPrice(t, "105"),
		TakeProfit:    mustPricePtr(t, "90"),
		AccountEquity: eq,
		Risk:          rp,
	}

	res := h.loop.RunCycle(context.Background(), it)
	require.Equal(t, StateCompleted, res.FinalState, "failure: %+v", res.Failure)
	assert.Equal(t, exchange.Sell, res.Order.Side)
	assert.True(t, res.Order.Quantity.Equal(d("40")))
}
