package sizing

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/num"
	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SIZING - Van Tharp % risk model
// ═══════════════════════════════════════════════════════════════════════════════
//
// Formula: size = (equity * risk%) / (entry - stop)
//
// - Fixed % of equity risked per trade (compounding)
// - Wider stops = smaller positions, tighter stops = larger positions
// - Checked decimal arithmetic throughout: magnitude overflow fails, while a
//   non-terminating quotient is rounded to the 28-significant-digit budget
//
// The calculator is long-oriented: callers with short setups mirror the stop
// about the entry before calling (the orchestrator does this).
//
// ═══════════════════════════════════════════════════════════════════════════════

// Calculator computes position sizes from validated typed inputs.
type Calculator struct {
	precision    int32
	hasPrecision bool
	balanceGuard bool
}

// NewCalculator returns a calculator that preserves full scale and enforces
// the cash-equity guard.
func NewCalculator() *Calculator {
	return &Calculator{balanceGuard: true}
}

// NewCalculatorWithPrecision rounds results to the given number of decimal
// places using banker's rounding.
func NewCalculatorWithPrecision(places int32) *Calculator {
	return &Calculator{precision: places, hasPrecision: true, balanceGuard: true}
}

// DisableBalanceGuard turns off the position-value-vs-equity check for
// margin-aware deployments; the portfolio risk rules stay the backstop.
func (c *Calculator) DisableBalanceGuard() *Calculator {
	c.balanceGuard = false
	return c
}

// CalculatePositionSize applies the Van Tharp formula with checked decimal
// arithmetic and returns a validated PositionSize.
func (c *Calculator) CalculatePositionSize(
	equity types.AccountEquity,
	risk types.RiskPercentage,
	entry, stop types.PricePoint,
) (types.PositionSize, error) {
	if stop.Value().GreaterThanOrEqual(entry.Value()) {
		return types.PositionSize{}, &InvalidStopDistanceError{Entry: entry.Value(), Stop: stop.Value()}
	}

	stopDistance := entry.Value().Sub(stop.Value())
	if stopDistance.IsZero() {
		// Unreachable after the check above; kept so the failure mode has a name.
		return types.PositionSize{}, &DivisionByZeroError{Entry: entry.Value(), Stop: stop.Value()}
	}

	riskAmount, err := num.CheckedMul(equity.Value(), risk.Value())
	if err != nil {
		return types.PositionSize{}, &OverflowError{Op: "risk amount"}
	}

	raw, err := num.CheckedDiv(riskAmount, stopDistance)
	if err != nil {
		if errors.Is(err, num.ErrDivisionByZero) {
			return types.PositionSize{}, &DivisionByZeroError{Entry: entry.Value(), Stop: stop.Value()}
		}
		return types.PositionSize{}, &OverflowError{Op: "position size"}
	}

	if c.hasPrecision {
		raw = num.RoundBankers(raw, c.precision)
	}

	size, err := types.NewPositionSize(raw)
	if err != nil {
		return types.PositionSize{}, &InvalidResultError{Value: raw}
	}

	if c.balanceGuard {
		positionValue := size.TotalValue(entry)
		// Decided on exact values: size × entry > equity exactly when
		// risk amount × entry > equity × stop distance.
		if riskAmount.Mul(entry.Value()).GreaterThan(equity.Value().Mul(stopDistance)) {
			log.Warn().
				Str("position_value", num.Canonical(positionValue)).
				Str("equity", equity.String()).
				Msg("Position value exceeds account balance")
			return types.PositionSize{}, &ExceedsAccountBalanceError{
				PositionValue: positionValue,
				Equity:        equity.Value(),
			}
		}
		// A quotient rounded up at that boundary can sit just above
		// equity ÷ entry; truncate it so the position stays within equity.
		if positionValue.GreaterThan(equity.Value()) {
			capped, _ := equity.Value().QuoRem(entry.Value(), -raw.Exponent())
			if size, err = types.NewPositionSize(capped); err != nil {
				return types.PositionSize{}, &InvalidResultError{Value: capped}
			}
		}
	}

	log.Debug().
		Str("risk_amount", num.Canonical(riskAmount)).
		Str("stop_distance", num.Canonical(stopDistance)).
		Str("size", size.String()).
		Msg("Position sizing")

	return size, nil
}

// CalculateRiskAmount is the dollar amount at stake: equity × risk%.
func (c *Calculator) CalculateRiskAmount(equity types.AccountEquity, risk types.RiskPercentage) decimal.Decimal {
	return equity.Value().Mul(risk.Value())
}

// CalculateStopDistance is entry − stop for a valid long setup.
func (c *Calculator) CalculateStopDistance(entry, stop types.PricePoint) (decimal.Decimal, error) {
	if stop.Value().GreaterThanOrEqual(entry.Value()) {
		return decimal.Zero, &InvalidStopDistanceError{Entry: entry.Value(), Stop: stop.Value()}
	}
	return entry.Value().Sub(stop.Value()), nil
}

// ValidateTradingSetup checks the structural relationship between entry and
// stop without computing a size. Typed inputs have already validated
// themselves.
func (c *Calculator) ValidateTradingSetup(
	_ types.AccountEquity,
	_ types.RiskPercentage,
	entry, stop types.PricePoint,
) error {
	if stop.Value().GreaterThanOrEqual(entry.Value()) {
		return &InvalidStopDistanceError{Entry: entry.Value(), Stop: stop.Value()}
	}
	// Flag suspiciously tight stops; noise will blow through them.
	stopDistance := entry.Value().Sub(stop.Value())
	minDistance := entry.Value().Mul(decimal.New(1, -5))
	if stopDistance.LessThan(minDistance) {
		log.Warn().
			Str("stop_distance", num.Canonical(stopDistance)).
			Str("entry", entry.String()).
			Msg("Stop distance extremely small, position size may be unrealistic")
	}
	return nil
}
