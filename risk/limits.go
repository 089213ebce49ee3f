package risk

import (
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PROTOCOL LIMITS - immutable risk configuration
// ═══════════════════════════════════════════════════════════════════════════════

// ProtocolLimits is the immutable bundle of ceilings the rule set enforces.
// All decimal fields are fractions of account equity except where noted.
type ProtocolLimits struct {
	// MaxIndividualTradeRisk caps risk% on any single trade.
	MaxIndividualTradeRisk decimal.Decimal `json:"max_individual_trade_risk"`
	// MinIndividualTradeRisk flags trades too small to matter.
	MinIndividualTradeRisk decimal.Decimal `json:"min_individual_trade_risk"`
	// MaxTotalPortfolioRisk caps the sum of risk% across open positions.
	MaxTotalPortfolioRisk decimal.Decimal `json:"max_total_portfolio_risk"`
	// MaxConsecutiveLosses arms the circuit breaker.
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`
	// MinRewardRiskRatio floors R-multiples when a target is set.
	MinRewardRiskRatio decimal.Decimal `json:"min_reward_risk_ratio"`
	// MaxOpenPositions caps concurrent positions.
	MaxOpenPositions int `json:"max_open_positions"`
	// MaxDailyLoss caps realized+projected loss per trading day.
	MaxDailyLoss decimal.Decimal `json:"max_daily_loss"`
	// MaxDrawdown caps drawdown from peak equity.
	MaxDrawdown decimal.Decimal `json:"max_drawdown"`

	// Daily counters reset when a UTC-offset clock crosses this boundary.
	// Crypto has no session, so the default is midnight UTC; session markets
	// can set 09:30 with their offset.
	DailyResetHour    int `json:"daily_reset_hour"`
	DailyResetMinute  int `json:"daily_reset_minute"`
	TimezoneOffsetHrs int `json:"timezone_offset_hours"`
}

// StandardLimits is the default preset.
func StandardLimits() ProtocolLimits {
	return ProtocolLimits{
		MaxIndividualTradeRisk: decimal.RequireFromString("0.06"),
		MinIndividualTradeRisk: decimal.RequireFromString("0.005"),
		MaxTotalPortfolioRisk:  decimal.RequireFromString("0.10"),
		MaxConsecutiveLosses:   3,
		MinRewardRiskRatio:     decimal.RequireFromString("2.0"),
		MaxOpenPositions:       5,
		MaxDailyLoss:           decimal.RequireFromString("0.05"),
		MaxDrawdown:            decimal.RequireFromString("0.10"),
	}
}

// ConservativeLimits is the tight preset for new accounts.
func ConservativeLimits() ProtocolLimits {
	return ProtocolLimits{
		MaxIndividualTradeRisk: decimal.RequireFromString("0.02"),
		MinIndividualTradeRisk: decimal.RequireFromString("0.005"),
		MaxTotalPortfolioRisk:  decimal.RequireFromString("0.05"),
		MaxConsecutiveLosses:   2,
		MinRewardRiskRatio:     decimal.RequireFromString("3.0"),
		MaxOpenPositions:       3,
		MaxDailyLoss:           decimal.RequireFromString("0.02"),
		MaxDrawdown:            decimal.RequireFromString("0.05"),
	}
}

// AggressiveLimits is the loose preset for experienced accounts.
func AggressiveLimits() ProtocolLimits {
	return ProtocolLimits{
		MaxIndividualTradeRisk: decimal.RequireFromString("0.10"),
		MinIndividualTradeRisk: decimal.RequireFromString("0.01"),
		MaxTotalPortfolioRisk:  decimal.RequireFromString("0.15"),
		MaxConsecutiveLosses:   5,
		MinRewardRiskRatio:     decimal.RequireFromString("1.5"),
		MaxOpenPositions:       8,
		MaxDailyLoss:           decimal.RequireFromString("0.08"),
		MaxDrawdown:            decimal.RequireFromString("0.15"),
	}
}

// PresetByName resolves a preset label, defaulting to Standard.
func PresetByName(name string) ProtocolLimits {
	switch name {
	case "conservative":
		return ConservativeLimits()
	case "aggressive":
		return AggressiveLimits()
	default:
		return StandardLimits()
	}
}
