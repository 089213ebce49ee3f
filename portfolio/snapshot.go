package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the serializable image of tracker state a host persists and
// restores across restarts. Decimal fields serialize as canonical base-10
// strings through their JSON marshalers.
type Snapshot struct {
	Positions []OpenPosition `json:"positions"`

	ConsecutiveLosses    int             `json:"consecutive_losses"`
	TotalConsecutiveLoss decimal.Decimal `json:"total_consecutive_loss"`
	LastLossAt           time.Time       `json:"last_loss_at"`
	BreakerActive        bool            `json:"breaker_active"`
	HaltReason           string          `json:"halt_reason"`

	DailyPnL        decimal.Decimal `json:"daily_pnl"`
	DailyTradeCount int             `json:"daily_trade_count"`
	LastResetAt     time.Time       `json:"last_reset_at"`

	TakenAt time.Time `json:"taken_at"`
}

// Snapshot captures the full tracker state for persistence.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	positions := make([]OpenPosition, 0, len(t.positions))
	for _, p := range t.positions {
		positions = append(positions, p)
	}
	snap := Snapshot{
		Positions:       positions,
		DailyPnL:        t.dailyPnL,
		DailyTradeCount: t.dailyTradeCount,
		LastResetAt:     t.lastResetAt,
		TakenAt:         t.now(),
	}
	t.mu.Unlock()

	t.loss.mu.Lock()
	snap.ConsecutiveLosses = t.loss.consecutiveLosses
	snap.TotalConsecutiveLoss = t.loss.totalConsecutiveLoss
	snap.LastLossAt = t.loss.lastLossAt
	snap.BreakerActive = t.loss.active
	snap.HaltReason = t.loss.haltReason
	t.loss.mu.Unlock()

	return snap
}

// Restore rehydrates the tracker from a persisted snapshot. Daily counters
// are then subject to the normal boundary check, so a snapshot from
// yesterday resets on first read.
func (t *Tracker) Restore(s Snapshot) {
	t.mu.Lock()
	t.positions = make(map[string]OpenPosition, len(s.Positions))
	for _, p := range s.Positions {
		t.positions[p.ID] = p
	}
	t.dailyPnL = s.DailyPnL
	t.dailyTradeCount = s.DailyTradeCount
	if !s.LastResetAt.IsZero() {
		t.lastResetAt = s.LastResetAt
	}
	t.invalidateRiskLocked()
	t.mu.Unlock()

	t.loss.restore(s.ConsecutiveLosses, s.TotalConsecutiveLoss, s.LastLossAt, s.BreakerActive, s.HaltReason)
}
