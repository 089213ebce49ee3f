package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PORTFOLIO & LOSS-MANAGEMENT RULES - consume tracker state
// ═══════════════════════════════════════════════════════════════════════════════

// MaxPortfolioRiskRule caps aggregate open risk. The current total comes from
// the tracker's snapshot (the tracker caches the sum with a 1s TTL).
type MaxPortfolioRiskRule struct {
	Limits ProtocolLimits
}

func (r MaxPortfolioRiskRule) Assess(p *types.TradeProposal, view StateView) *Violation {
	projected := view.TotalPortfolioRisk.Add(p.Risk.Value())
	if projected.LessThanOrEqual(r.Limits.MaxTotalPortfolioRisk) {
		return nil
	}
	return &Violation{
		RuleName: "MaxPortfolioRisk",
		Severity: SeverityCritical,
		Description: fmt.Sprintf("projected portfolio risk %s%% exceeds maximum %s%%",
			pct(projected), pct(r.Limits.MaxTotalPortfolioRisk)),
		CurrentValue:    projected,
		LimitValue:      r.Limits.MaxTotalPortfolioRisk,
		SuggestedAction: "close or reduce open positions before adding exposure",
	}
}

func (r MaxPortfolioRiskRule) Name() string        { return "MaxPortfolioRisk" }
func (r MaxPortfolioRiskRule) Priority() int       { return 2 }
func (r MaxPortfolioRiskRule) Description() string { return "aggregate portfolio risk ceiling" }

// MaxOpenPositionsRule caps concurrent positions.
type MaxOpenPositionsRule struct {
	Limits ProtocolLimits
}

func (r MaxOpenPositionsRule) Assess(_ *types.TradeProposal, view StateView) *Violation {
	if view.OpenPositions < r.Limits.MaxOpenPositions {
		return nil
	}
	return &Violation{
		RuleName: "MaxOpenPositions",
		Severity: SeverityCritical,
		Description: fmt.Sprintf("open position count %d at maximum %d",
			view.OpenPositions, r.Limits.MaxOpenPositions),
		CurrentValue:    decimal.NewFromInt(int64(view.OpenPositions)),
		LimitValue:      decimal.NewFromInt(int64(r.Limits.MaxOpenPositions)),
		SuggestedAction: "close an open position before opening another",
	}
}

func (r MaxOpenPositionsRule) Name() string        { return "MaxOpenPositions" }
func (r MaxOpenPositionsRule) Priority() int       { return 2 }
func (r MaxOpenPositionsRule) Description() string { return "concurrent position ceiling" }

// DailyLossLimitRule caps realized loss plus the loss this trade could add.
// The potential loss equals equity × risk% (identical to size × risk
// distance under exact sizing). The tracker resets its daily counters at the
// configured boundary before producing the view.
type DailyLossLimitRule struct {
	Limits ProtocolLimits
}

func (r DailyLossLimitRule) Assess(p *types.TradeProposal, view StateView) *Violation {
	potential := p.RiskAmount()
	projected := view.DailyLoss.Add(potential)
	limit := r.Limits.MaxDailyLoss.Mul(p.AccountEquity.Value())
	if projected.LessThanOrEqual(limit) {
		return nil
	}
	return &Violation{
		RuleName: "DailyLossLimit",
		Severity: SeverityCritical,
		Description: fmt.Sprintf("projected daily loss %s exceeds limit %s",
			projected.StringFixed(2), limit.StringFixed(2)),
		CurrentValue:    projected,
		LimitValue:      limit,
		SuggestedAction: "stop trading for the day or reduce trade risk",
	}
}

func (r DailyLossLimitRule) Name() string        { return "DailyLossLimit" }
func (r DailyLossLimitRule) Priority() int       { return 2 }
func (r DailyLossLimitRule) Description() string { return "daily loss ceiling" }

// ConsecutiveLossRule is the circuit breaker's gate. The loss tracker owns
// the counter and the latch; this rule only consults the snapshot. While the
// breaker is latched every proposal is rejected; one loss shy of the limit
// earns a warning.
type ConsecutiveLossRule struct {
	Limits ProtocolLimits
}

func (r ConsecutiveLossRule) Assess(_ *types.TradeProposal, view StateView) *Violation {
	if view.BreakerActive {
		reason := view.HaltReason
		if reason == "" {
			reason = "circuit breaker active"
		}
		return &Violation{
			RuleName: "ConsecutiveLossLimit",
			Severity: SeverityCritical,
			Description: fmt.Sprintf("trading halted: %s (%d consecutive losses)",
				reason, view.ConsecutiveLosses),
			CurrentValue:    decimal.NewFromInt(int64(view.ConsecutiveLosses)),
			LimitValue:      decimal.NewFromInt(int64(r.Limits.MaxConsecutiveLosses)),
			SuggestedAction: "review the losing streak and reset the breaker manually",
		}
	}
	if r.Limits.MaxConsecutiveLosses > 1 && view.ConsecutiveLosses == r.Limits.MaxConsecutiveLosses-1 {
		return &Violation{
			RuleName: "ConsecutiveLossLimit",
			Severity: SeverityWarning,
			Description: fmt.Sprintf("one loss away from the circuit breaker (%d of %d)",
				view.ConsecutiveLosses, r.Limits.MaxConsecutiveLosses),
			CurrentValue:    decimal.NewFromInt(int64(view.ConsecutiveLosses)),
			LimitValue:      decimal.NewFromInt(int64(r.Limits.MaxConsecutiveLosses)),
			SuggestedAction: "size down or stand aside until a winner resets the streak",
		}
	}
	return nil
}

func (r ConsecutiveLossRule) Name() string        { return "ConsecutiveLossLimit" }
func (r ConsecutiveLossRule) Priority() int       { return 1 }
func (r ConsecutiveLossRule) Description() string { return "consecutive-loss circuit breaker gate" }
