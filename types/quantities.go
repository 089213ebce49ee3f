package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/num"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TYPED QUANTITIES - validated at construction, immutable afterwards
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every monetary value in the pipeline is one of these wrappers. A value that
// exists has already passed its invariant, so downstream code never re-checks.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Default bounds for per-trade risk, as fractions of account equity.
var (
	MinRiskPercentage = decimal.RequireFromString("0.005") // 0.5%
	MaxRiskPercentage = decimal.RequireFromString("0.06")  // 6%
)

// ValidationError reports a typed-quantity constructor rejection.
type ValidationError struct {
	Field  string
	Value  decimal.Decimal
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Field, num.Canonical(e.Value), e.Reason)
}

// AccountEquity is the account balance backing a trade intent. Always > 0.
type AccountEquity struct {
	v decimal.Decimal
}

func NewAccountEquity(v decimal.Decimal) (AccountEquity, error) {
	if !v.IsPositive() {
		return AccountEquity{}, &ValidationError{Field: "account equity", Value: v, Reason: "must be positive"}
	}
	return AccountEquity{v: v}, nil
}

func (a AccountEquity) Value() decimal.Decimal { return a.v }
func (a AccountEquity) String() string         { return num.Canonical(a.v) }

func (a AccountEquity) MarshalJSON() ([]byte, error) { return json.Marshal(num.Canonical(a.v)) }

func (a *AccountEquity) UnmarshalJSON(b []byte) error {
	v, err := decodeDecimal(b)
	if err != nil {
		return err
	}
	eq, err := NewAccountEquity(v)
	if err != nil {
		return err
	}
	*a = eq
	return nil
}

// RiskPercentage is per-trade risk as a fraction of equity, bounded to
// [MinRiskPercentage, MaxRiskPercentage].
type RiskPercentage struct {
	v decimal.Decimal
}

func NewRiskPercentage(v decimal.Decimal) (RiskPercentage, error) {
	return NewRiskPercentageBetween(v, MinRiskPercentage, MaxRiskPercentage)
}

// NewRiskPercentageBetween validates against caller-supplied bounds, used
// when protocol limits widen or narrow the default window.
func NewRiskPercentageBetween(v, min, max decimal.Decimal) (RiskPercentage, error) {
	if v.LessThan(min) {
		return RiskPercentage{}, &ValidationError{
			Field: "risk percentage", Value: v,
			Reason: fmt.Sprintf("below minimum %s", num.Canonical(min)),
		}
	}
	if v.GreaterThan(max) {
		return RiskPercentage{}, &ValidationError{
			Field: "risk percentage", Value: v,
			Reason: fmt.Sprintf("above maximum %s", num.Canonical(max)),
		}
	}
	return RiskPercentage{v: v}, nil
}

func (r RiskPercentage) Value() decimal.Decimal { return r.v }
func (r RiskPercentage) String() string         { return num.Canonical(r.v) }

func (r RiskPercentage) MarshalJSON() ([]byte, error) { return json.Marshal(num.Canonical(r.v)) }

func (r *RiskPercentage) UnmarshalJSON(b []byte) error {
	v, err := decodeDecimal(b)
	if err != nil {
		return err
	}
	rp, err := NewRiskPercentage(v)
	if err != nil {
		return err
	}
	*r = rp
	return nil
}

// PricePoint is a strictly positive price.
type PricePoint struct {
	v decimal.Decimal
}

func NewPricePoint(v decimal.Decimal) (PricePoint, error) {
	if !v.IsPositive() {
		return PricePoint{}, &ValidationError{Field: "price", Value: v, Reason: "must be positive"}
	}
	return PricePoint{v: v}, nil
}

func (p PricePoint) Value() decimal.Decimal { return p.v }
func (p PricePoint) String() string         { return num.Canonical(p.v) }

func (p PricePoint) MarshalJSON() ([]byte, error) { return json.Marshal(num.Canonical(p.v)) }

func (p *PricePoint) UnmarshalJSON(b []byte) error {
	v, err := decodeDecimal(b)
	if err != nil {
		return err
	}
	pp, err := NewPricePoint(v)
	if err != nil {
		return err
	}
	*p = pp
	return nil
}

// PositionSize is a strictly positive quantity of units. Produced by the
// sizing kernel, or by deserialization which re-validates.
type PositionSize struct {
	v decimal.Decimal
}

func NewPositionSize(v decimal.Decimal) (PositionSize, error) {
	if !v.IsPositive() {
		return PositionSize{}, &ValidationError{Field: "position size", Value: v, Reason: "must be positive"}
	}
	return PositionSize{v: v}, nil
}

func (s PositionSize) Value() decimal.Decimal { return s.v }
func (s PositionSize) String() string         { return num.Canonical(s.v) }

// TotalValue is the notional value of the position at the given price.
func (s PositionSize) TotalValue(price PricePoint) decimal.Decimal {
	return s.v.Mul(price.Value())
}

func (s PositionSize) MarshalJSON() ([]byte, error) { return json.Marshal(num.Canonical(s.v)) }

func (s *PositionSize) UnmarshalJSON(b []byte) error {
	v, err := decodeDecimal(b)
	if err != nil {
		return err
	}
	ps, err := NewPositionSize(v)
	if err != nil {
		return err
	}
	*s = ps
	return nil
}

func decodeDecimal(b []byte) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}
