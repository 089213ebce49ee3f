package num

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CHECKED DECIMAL ARITHMETIC
// ═══════════════════════════════════════════════════════════════════════════════
//
// All monetary and price math in this repo goes through these helpers.
// shopspring/decimal is arbitrary precision, so "overflow" here means the
// result no longer fits the 28-significant-digit budget every serialized
// value is held to. A result whose integer part is too wide fails with
// ErrOverflow; excess fractional digits do not fail but are rounded into the
// budget with banker's rounding.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MaxSignificantDigits is the precision budget for every stored value.
const MaxSignificantDigits = 28

// DivScale is the scale used for non-terminating divisions.
const DivScale = 28

var (
	ErrOverflow       = errors.New("decimal overflow: result exceeds 28 significant digits")
	ErrDivisionByZero = errors.New("decimal division by zero")
)

// CheckedMul multiplies a and b, failing with ErrOverflow when the product's
// integer part no longer fits the digit budget. A product with excess
// fractional precision is rounded into budget instead of erroring, matching
// the behavior of fixed-width decimal types.
func CheckedMul(a, b decimal.Decimal) (decimal.Decimal, error) {
	res, err := fit(a.Mul(b))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s * %s", err, a, b)
	}
	return res, nil
}

// CheckedDiv divides a by b at DivScale, failing with ErrDivisionByZero on a
// zero divisor and ErrOverflow when the quotient's magnitude exceeds the
// budget. Terminating quotients are returned exactly.
func CheckedDiv(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrDivisionByZero
	}
	res := a.DivRound(b, DivScale)
	// A terminating quotient round-trips; keep it at its natural scale.
	if res.Mul(b).Equal(a) {
		res = normalize(res)
	}
	res, err := fit(res)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s / %s", err, a, b)
	}
	return res, nil
}

// CheckedAdd adds a and b under the same budget.
func CheckedAdd(a, b decimal.Decimal) (decimal.Decimal, error) {
	res, err := fit(a.Add(b))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s + %s", err, a, b)
	}
	return res, nil
}

// CheckedSub subtracts b from a under the same digit budget.
func CheckedSub(a, b decimal.Decimal) (decimal.Decimal, error) {
	return CheckedAdd(a, b.Neg())
}

// RoundBankers rounds to places using banker's rounding (round half to even).
func RoundBankers(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundBank(places)
}

// Canonical renders d as its canonical base-10 string, the only form used
// for serialization and audit output.
func Canonical(d decimal.Decimal) string {
	return normalize(d).String()
}

// fit forces d inside the digit budget. Magnitude overflow (an integer part
// wider than the budget) is unrepresentable and errors; excess fractional
// precision is rounded away with banker's rounding.
func fit(d decimal.Decimal) (decimal.Decimal, error) {
	intDigits := IntegerDigits(d)
	if intDigits > MaxSignificantDigits {
		return decimal.Zero, ErrOverflow
	}
	if SignificantDigits(d) > MaxSignificantDigits {
		d = d.RoundBank(int32(MaxSignificantDigits - intDigits))
	}
	return d, nil
}

// IntegerDigits counts the digits of d's integer part; zero for |d| < 1.
func IntegerDigits(d decimal.Decimal) int {
	return SignificantDigits(d.Truncate(0))
}

// SignificantDigits counts the significant decimal digits of d.
func SignificantDigits(d decimal.Decimal) int {
	s := normalize(d).Coefficient().String()
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return 0
	}
	return len(s)
}

var bigTen = big.NewInt(10)

// normalize strips trailing zero scale so equal values share one form.
func normalize(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	for d.Exponent() < 0 {
		coeff := d.Coefficient()
		q, r := new(big.Int).QuoRem(coeff, bigTen, new(big.Int))
		if r.Sign() != 0 {
			break
		}
		d = decimal.NewFromBigInt(q, d.Exponent()+1)
	}
	return d
}
