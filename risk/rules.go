package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/num"
	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK RULES - pluggable checks applied to every proposal
// ═══════════════════════════════════════════════════════════════════════════════
//
// Strategy asks → rules approve/reject → orchestrator executes.
// Rules run in priority order (ascending, stable on ties) and ALL run by
// default: the audit trail is worth more than the saved microseconds.
//
// ═══════════════════════════════════════════════════════════════════════════════

// StateView is a point-in-time snapshot of portfolio state handed to rules.
// Position fields are captured under the tracker's lock and loss-streak
// fields under the loss tracker's lock, in two separate reads.
type StateView struct {
	TotalPortfolioRisk decimal.Decimal
	OpenPositions      int
	ConsecutiveLosses  int
	BreakerActive      bool
	HaltReason         string
	DailyLoss          decimal.Decimal // realized loss today, positive number
	DailyTradeCount    int
}

// StateProvider hands out snapshots; the portfolio tracker implements it.
type StateProvider interface {
	View() StateView
}

// Rule is one risk constraint. Assess returns nil when the proposal passes.
type Rule interface {
	Assess(p *types.TradeProposal, view StateView) *Violation
	Name() string
	// Priority orders evaluation; lower runs first.
	Priority() int
	Description() string
}

// ─────────────────────────────────────────────────────────────────────────────
// Structural sanity rules
// ─────────────────────────────────────────────────────────────────────────────

// ValidSymbolRule blocks proposals without a symbol.
type ValidSymbolRule struct{}

func (ValidSymbolRule) Assess(p *types.TradeProposal, _ StateView) *Violation {
	if p.Symbol == "" {
		return &Violation{
			RuleName:        "ValidSymbol",
			Severity:        SeverityBlocking,
			Description:     "trading symbol cannot be empty",
			CurrentValue:    decimal.Zero,
			LimitValue:      decimal.NewFromInt(1),
			SuggestedAction: "provide a valid trading symbol (e.g. BTCUSDT)",
		}
	}
	return nil
}

func (ValidSymbolRule) Name() string        { return "ValidSymbol" }
func (ValidSymbolRule) Priority() int       { return 0 }
func (ValidSymbolRule) Description() string { return "symbol must be present" }

// StopLossDirectionRule blocks stops on the wrong side of the entry.
type StopLossDirectionRule struct{}

func (StopLossDirectionRule) Assess(p *types.TradeProposal, _ StateView) *Violation {
	entry, stop := p.Entry.Value(), p.Stop.Value()
	var bad bool
	var msg string
	switch p.Side {
	case types.Long:
		bad = stop.GreaterThanOrEqual(entry)
		msg = "long stop loss must be below entry price"
	case types.Short:
		bad = stop.LessThanOrEqual(entry)
		msg = "short stop loss must be above entry price"
	}
	if !bad {
		return nil
	}
	return &Violation{
		RuleName:        "StopLossDirection",
		Severity:        SeverityBlocking,
		Description:     msg,
		CurrentValue:    stop,
		LimitValue:      entry,
		SuggestedAction: fmt.Sprintf("move the stop to the correct side of entry for a %s trade", p.Side),
	}
}

func (StopLossDirectionRule) Name() string        { return "StopLossDirection" }
func (StopLossDirectionRule) Priority() int       { return 0 }
func (StopLossDirectionRule) Description() string { return "stop must be on the loss side of entry" }

// TakeProfitDirectionRule blocks targets on the wrong side of the entry.
type TakeProfitDirectionRule struct{}

func (TakeProfitDirectionRule) Assess(p *types.TradeProposal, _ StateView) *Violation {
	if p.TakeProfit == nil {
		return nil
	}
	entry, tp := p.Entry.Value(), p.TakeProfit.Value()
	var bad bool
	var msg string
	switch p.Side {
	case types.Long:
		bad = tp.LessThanOrEqual(entry)
		msg = "long take profit must be above entry price"
	case types.Short:
		bad = tp.GreaterThanOrEqual(entry)
		msg = "short take profit must be below entry price"
	}
	if !bad {
		return nil
	}
	return &Violation{
		RuleName:        "TakeProfitDirection",
		Severity:        SeverityBlocking,
		Description:     msg,
		CurrentValue:    tp,
		LimitValue:      entry,
		SuggestedAction: fmt.Sprintf("move the target to the correct side of entry for a %s trade", p.Side),
	}
}

func (TakeProfitDirectionRule) Name() string  { return "TakeProfitDirection" }
func (TakeProfitDirectionRule) Priority() int { return 0 }
func (TakeProfitDirectionRule) Description() string {
	return "take profit, when set, must be on the profit side of entry"
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-trade risk rules
// ─────────────────────────────────────────────────────────────────────────────

// MaxTradeRiskRule caps risk% on a single trade.
type MaxTradeRiskRule struct {
	Limits ProtocolLimits
}

func (r MaxTradeRiskRule) Assess(p *types.TradeProposal, _ StateView) *Violation {
	riskPct := p.Risk.Value()
	if riskPct.LessThanOrEqual(r.Limits.MaxIndividualTradeRisk) {
		return nil
	}
	return &Violation{
		RuleName: "MaxTradeRisk",
		Severity: SeverityCritical,
		Description: fmt.Sprintf("individual trade risk %s%% exceeds maximum allowed %s%%",
			pct(riskPct), pct(r.Limits.MaxIndividualTradeRisk)),
		CurrentValue:    riskPct,
		LimitValue:      r.Limits.MaxIndividualTradeRisk,
		SuggestedAction: fmt.Sprintf("reduce trade risk to at most %s%% of equity", pct(r.Limits.MaxIndividualTradeRisk)),
	}
}

func (r MaxTradeRiskRule) Name() string        { return "MaxTradeRisk" }
func (r MaxTradeRiskRule) Priority() int       { return 1 }
func (r MaxTradeRiskRule) Description() string { return "per-trade risk ceiling" }

// MinTradeRiskRule warns on trades too small to be meaningful.
type MinTradeRiskRule struct {
	Limits ProtocolLimits
}

func (r MinTradeRiskRule) Assess(p *types.TradeProposal, _ StateView) *Violation {
	riskPct := p.Risk.Value()
	if riskPct.GreaterThanOrEqual(r.Limits.MinIndividualTradeRisk) {
		return nil
	}
	return &Violation{
		RuleName: "MinTradeRisk",
		Severity: SeverityWarning,
		Description: fmt.Sprintf("individual trade risk %s%% below minimum recommended %s%%",
			pct(riskPct), pct(r.Limits.MinIndividualTradeRisk)),
		CurrentValue:    riskPct,
		LimitValue:      r.Limits.MinIndividualTradeRisk,
		SuggestedAction: fmt.Sprintf("consider risking at least %s%% for a meaningful trade", pct(r.Limits.MinIndividualTradeRisk)),
	}
}

func (r MinTradeRiskRule) Name() string        { return "MinTradeRisk" }
func (r MinTradeRiskRule) Priority() int       { return 5 }
func (r MinTradeRiskRule) Description() string { return "per-trade risk floor (advisory)" }

// MinRewardRiskRatioRule floors the R-multiple when a target exists.
type MinRewardRiskRatioRule struct {
	Limits ProtocolLimits
}

func (r MinRewardRiskRatioRule) Assess(p *types.TradeProposal, _ StateView) *Violation {
	ratio, ok := p.RiskRewardRatio()
	if !ok || ratio.GreaterThanOrEqual(r.Limits.MinRewardRiskRatio) {
		return nil
	}
	return &Violation{
		RuleName: "MinRewardRiskRatio",
		Severity: SeverityHigh,
		Description: fmt.Sprintf("reward-to-risk ratio %s below minimum required %s",
			ratio.StringFixed(2), r.Limits.MinRewardRiskRatio.StringFixed(2)),
		CurrentValue:    ratio,
		LimitValue:      r.Limits.MinRewardRiskRatio,
		SuggestedAction: fmt.Sprintf("adjust the target for at least %s:1 reward to risk", r.Limits.MinRewardRiskRatio.StringFixed(1)),
	}
}

func (r MinRewardRiskRatioRule) Name() string        { return "MinRewardRiskRatio" }
func (r MinRewardRiskRatioRule) Priority() int       { return 3 }
func (r MinRewardRiskRatioRule) Description() string { return "R-multiple floor when a target is set" }

func pct(fraction decimal.Decimal) string {
	return num.Canonical(fraction.Mul(decimal.NewFromInt(100)))
}
