package portfolio

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LOSS TRACKER - consecutive losses and the latched circuit breaker
// ═══════════════════════════════════════════════════════════════════════════════
//
// The breaker is write-rare, read-every-trade: a mutex-protected counter and
// a latched flag. Once latched it stays latched until an explicit manual
// reset; no cooldown disarms it.
//
// ═══════════════════════════════════════════════════════════════════════════════

// BreakerEvent is the outcome of recording one trade result.
type BreakerEvent int

const (
	// BreakerNone: trading continues normally.
	BreakerNone BreakerEvent = iota
	// BreakerCaution: one loss away from the limit.
	BreakerCaution
	// BreakerLatched: the streak is at or past the limit and the halt is
	// engaged; returned for every such loss, including after the latch.
	BreakerLatched
)

func (e BreakerEvent) String() string {
	switch e {
	case BreakerCaution:
		return "CAUTION"
	case BreakerLatched:
		return "LATCHED"
	default:
		return "NONE"
	}
}

// LossTracker is the single owner of consecutive-loss state. Rules consult
// it through snapshots; nothing else counts losses.
type LossTracker struct {
	mu sync.Mutex

	maxConsecutive int

	consecutiveLosses    int
	totalConsecutiveLoss decimal.Decimal
	lastLossAt           time.Time
	active               bool
	haltReason           string

	now func() time.Time
}

// NewLossTracker creates a tracker that latches at maxConsecutive losses.
func NewLossTracker(maxConsecutive int) *LossTracker {
	return &LossTracker{
		maxConsecutive: maxConsecutive,
		now:            time.Now,
	}
}

// RecordOutcome folds one closed trade's P&L into the streak. A strictly
// negative pnl extends the streak, a strictly positive one resets it, and
// zero is a no-op.
func (t *LossTracker) RecordOutcome(pnl decimal.Decimal) BreakerEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case pnl.IsNegative():
		t.consecutiveLosses++
		t.totalConsecutiveLoss = t.totalConsecutiveLoss.Add(pnl.Abs())
		t.lastLossAt = t.now()

		if t.consecutiveLosses >= t.maxConsecutive {
			if !t.active {
				t.active = true
				t.haltReason = "max consecutive losses reached"
				log.Warn().
					Int("consecutive_losses", t.consecutiveLosses).
					Str("streak_loss", t.totalConsecutiveLoss.StringFixed(2)).
					Msg("🚨 CIRCUIT BREAKER TRIPPED")
			}
			return BreakerLatched
		}
		if t.consecutiveLosses == t.maxConsecutive-1 {
			log.Warn().
				Int("consecutive_losses", t.consecutiveLosses).
				Msg("One loss away from circuit breaker")
			return BreakerCaution
		}
		return BreakerNone

	case pnl.IsPositive():
		t.consecutiveLosses = 0
		t.totalConsecutiveLoss = decimal.Zero
		t.lastLossAt = time.Time{}
		return BreakerNone

	default:
		// Breakeven: neither extends nor resets the streak.
		return BreakerNone
	}
}

// Reset manually disarms the breaker and zeroes the streak. This is the only
// way out of a latch; post-incident resumption is a human decision.
func (t *LossTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveLosses = 0
	t.totalConsecutiveLoss = decimal.Zero
	t.lastLossAt = time.Time{}
	t.active = false
	t.haltReason = ""
	log.Info().Msg("Circuit breaker manually reset")
}

// Active reports the latch state.
func (t *LossTracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Stats returns the streak counters under the lock.
func (t *LossTracker) Stats() (consecutive int, streakLoss decimal.Decimal, active bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutiveLosses, t.totalConsecutiveLoss, t.active, t.haltReason
}

// restore rehydrates persisted state; used by snapshot recovery only.
func (t *LossTracker) restore(consecutive int, streakLoss decimal.Decimal, lastLossAt time.Time, active bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveLosses = consecutive
	t.totalConsecutiveLoss = streakLoss
	t.lastLossAt = lastLossAt
	t.active = active
	t.haltReason = reason
}
