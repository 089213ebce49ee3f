package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/num"
)

// InvalidStopDistanceError: the stop is not below the entry, so there is no
// positive risk distance to size against.
type InvalidStopDistanceError struct {
	Entry decimal.Decimal
	Stop  decimal.Decimal
}

func (e *InvalidStopDistanceError) Error() string {
	return fmt.Sprintf("invalid stop distance: stop %s must be below entry %s",
		num.Canonical(e.Stop), num.Canonical(e.Entry))
}

// DivisionByZeroError: zero stop distance reached the division. Shadowed by
// InvalidStopDistanceError in practice.
type DivisionByZeroError struct {
	Entry decimal.Decimal
	Stop  decimal.Decimal
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("division by zero: entry %s equals stop %s",
		num.Canonical(e.Entry), num.Canonical(e.Stop))
}

// OverflowError: a checked multiply or divide left the representable range.
type OverflowError struct {
	Op string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("calculation overflow during %s", e.Op)
}

// InvalidResultError: the formula produced a non-positive size.
type InvalidResultError struct {
	Value decimal.Decimal
}

func (e *InvalidResultError) Error() string {
	return fmt.Sprintf("invalid position size result %s: must be positive", num.Canonical(e.Value))
}

// ExceedsAccountBalanceError: the sized position would cost more than the
// account holds. Margin policy, when wanted, lives in risk rules instead.
type ExceedsAccountBalanceError struct {
	PositionValue decimal.Decimal
	Equity        decimal.Decimal
}

func (e *ExceedsAccountBalanceError) Error() string {
	return fmt.Sprintf("position value %s exceeds account balance %s",
		num.Canonical(e.PositionValue), num.Canonical(e.Equity))
}
