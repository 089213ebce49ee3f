package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/risk"
	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PORTFOLIO TRACKER - single writer for all mutable trading state
// ═══════════════════════════════════════════════════════════════════════════════
//
// Owns the open-position map, the daily P&L counter and the loss tracker.
// Every mutation happens under one lock; readers get point-in-time snapshots
// via View(). Concurrent OODA cycles are linearised here.
//
// ═══════════════════════════════════════════════════════════════════════════════

// OpenPosition is one registered position. Lifetime: RegisterOpen → Close.
type OpenPosition struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	RiskAmount     decimal.Decimal `json:"risk_amount"`
	RiskPercentage decimal.Decimal `json:"risk_percentage"`
	OpenedAt       time.Time       `json:"opened_at"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
}

var (
	// ErrPositionNotFound: the id is not in the open map.
	ErrPositionNotFound = errors.New("open position not found")
	// ErrAggregateRiskExceeded: registering this position would push the
	// portfolio past its risk ceiling. Raised by the post-trade re-check
	// when two cycles raced past Decide together.
	ErrAggregateRiskExceeded = errors.New("aggregate portfolio risk limit exceeded")
)

const riskCacheTTL = time.Second

// Tracker is the C7 state owner.
type Tracker struct {
	mu     sync.Mutex
	limits risk.ProtocolLimits

	positions map[string]OpenPosition

	// Derived portfolio risk, cached against rapid-fire assessments.
	cachedRisk   decimal.Decimal
	cachedRiskAt time.Time

	loss *LossTracker

	dailyPnL        decimal.Decimal
	dailyTradeCount int
	lastResetAt     time.Time

	now func() time.Time
}

// NewTracker creates an empty tracker for the given limits.
func NewTracker(limits risk.ProtocolLimits) *Tracker {
	t := &Tracker{
		limits:    limits,
		positions: make(map[string]OpenPosition),
		loss:      NewLossTracker(limits.MaxConsecutiveLosses),
		now:       time.Now,
	}
	t.lastResetAt = t.now()
	return t
}

// WithClock injects a clock for tests; the loss tracker shares it.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	t.loss.now = now
	t.lastResetAt = now()
	return t
}

// Loss exposes the loss tracker for manual breaker control.
func (t *Tracker) Loss() *LossTracker { return t.loss }

// RegisterOpen records an executed proposal as an open position. It re-checks
// the aggregate risk ceiling under the lock: two cycles that individually
// passed Decide can still collide here, and the second one loses.
func (t *Tracker) RegisterOpen(p *types.TradeProposal, size types.PositionSize) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetDailyIfNeededLocked()

	riskPct := p.Risk.Value()
	projected := t.portfolioRiskLocked().Add(riskPct)
	if projected.GreaterThan(t.limits.MaxTotalPortfolioRisk) {
		return "", fmt.Errorf("%w: projected %s > limit %s",
			ErrAggregateRiskExceeded, projected.String(), t.limits.MaxTotalPortfolioRisk.String())
	}

	pos := OpenPosition{
		ID:             p.ID,
		Symbol:         p.Symbol,
		RiskAmount:     size.Value().Mul(p.RiskDistance()),
		RiskPercentage: riskPct,
		OpenedAt:       t.now(),
	}
	t.positions[pos.ID] = pos
	t.dailyTradeCount++
	t.invalidateRiskLocked()

	log.Info().
		Str("id", pos.ID).
		Str("symbol", pos.Symbol).
		Str("risk_pct", riskPct.String()).
		Int("open_positions", len(t.positions)).
		Msg("Position registered")

	return pos.ID, nil
}

// UpdateUnrealizedPnL refreshes the mark on one open position.
func (t *Tracker) UpdateUnrealizedPnL(id string, pnl decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.positions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	pos.UnrealizedPnL = pnl
	t.positions[id] = pos
	t.invalidateRiskLocked()
	return nil
}

// Close removes a position from the open map and returns it.
func (t *Tracker) Close(id string) (OpenPosition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.positions[id]
	if !ok {
		return OpenPosition{}, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	delete(t.positions, id)
	t.invalidateRiskLocked()
	log.Info().Str("id", id).Str("symbol", pos.Symbol).Msg("Position closed")
	return pos, nil
}

// RecordOutcome folds a closed trade's realized P&L into the daily counter
// and the loss streak, returning any breaker event.
func (t *Tracker) RecordOutcome(pnl decimal.Decimal) BreakerEvent {
	t.mu.Lock()
	t.resetDailyIfNeededLocked()
	t.dailyPnL = t.dailyPnL.Add(pnl)
	daily := t.dailyPnL
	t.mu.Unlock()

	ev := t.loss.RecordOutcome(pnl)

	log.Info().
		Str("trade_pnl", pnl.StringFixed(2)).
		Str("daily_pnl", daily.StringFixed(2)).
		Str("breaker_event", ev.String()).
		Msg("📊 Trade outcome recorded")
	return ev
}

// ResetBreaker is the manual post-incident reset.
func (t *Tracker) ResetBreaker() { t.loss.Reset() }

// View captures a read-consistent snapshot for rule evaluation. The daily
// reset check runs first so rules never see a stale day's counters.
func (t *Tracker) View() risk.StateView {
	t.mu.Lock()
	t.resetDailyIfNeededLocked()
	view := risk.StateView{
		TotalPortfolioRisk: t.portfolioRiskLocked(),
		OpenPositions:      len(t.positions),
		DailyLoss:          t.dailyLossLocked(),
		DailyTradeCount:    t.dailyTradeCount,
	}
	t.mu.Unlock()

	consecutive, _, active, reason := t.loss.Stats()
	view.ConsecutiveLosses = consecutive
	view.BreakerActive = active
	view.HaltReason = reason
	return view
}

// OpenPositions returns a copy of the open map for reporting.
func (t *Tracker) OpenPositions() []OpenPosition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]OpenPosition, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out
}

// portfolioRiskLocked sums open risk percentages through a 1s TTL cache.
func (t *Tracker) portfolioRiskLocked() decimal.Decimal {
	if !t.cachedRiskAt.IsZero() && t.now().Sub(t.cachedRiskAt) < riskCacheTTL {
		return t.cachedRisk
	}
	total := decimal.Zero
	for _, p := range t.positions {
		total = total.Add(p.RiskPercentage)
	}
	t.cachedRisk = total
	t.cachedRiskAt = t.now()
	return total
}

func (t *Tracker) invalidateRiskLocked() {
	t.cachedRiskAt = time.Time{}
}

// dailyLossLocked is today's realized loss as a positive number.
func (t *Tracker) dailyLossLocked() decimal.Decimal {
	if t.dailyPnL.IsNegative() {
		return t.dailyPnL.Abs()
	}
	return decimal.Zero
}

// resetDailyIfNeededLocked zeroes the daily counters when the clock has
// crossed the configured reset boundary since the last reset. The breaker
// latch is untouched: only a manual reset clears it.
func (t *Tracker) resetDailyIfNeededLocked() {
	now := t.now()
	boundary := t.lastBoundaryBefore(now)
	if t.lastResetAt.Before(boundary) {
		t.dailyPnL = decimal.Zero
		t.dailyTradeCount = 0
		t.lastResetAt = now
		log.Info().Time("boundary", boundary).Msg("📅 Daily counters reset")
	}
}

// lastBoundaryBefore finds the most recent reset instant at or before now,
// in the limits' configured offset.
func (t *Tracker) lastBoundaryBefore(now time.Time) time.Time {
	loc := time.FixedZone("reset", t.limits.TimezoneOffsetHrs*3600)
	local := now.In(loc)
	boundary := time.Date(local.Year(), local.Month(), local.Day(),
		t.limits.DailyResetHour, t.limits.DailyResetMinute, 0, 0, loc)
	if boundary.After(now) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary
}
