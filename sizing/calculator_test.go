package sizing

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/tradegate/types"
)

const propertyIterations = 10000

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustEquity(t *testing.T, v decimal.Decimal) types.AccountEquity {
	t.Helper()
	e, err := types.NewAccountEquity(v)
	require.NoError(t, err)
	return e
}

func mustRisk(t *testing.T, v decimal.Decimal) types.RiskPercentage {
	t.Helper()
	r, err := types.NewRiskPercentage(v)
	require.NoError(t, err)
	return r
}

func mustPrice(t *testing.T, v decimal.Decimal) types.PricePoint {
	t.Helper()
	p, err := types.NewPricePoint(v)
	require.NoError(t, err)
	return p
}

// stopDistances only contains 2^a * 5^b values, so every division below
// terminates and the identity checks are exact.
var stopDistances = []string{
	"0.5", "1", "2", "2.5", "4", "5", "8", "10", "12.5", "16", "20", "25", "32", "40", "50",
}

var riskFractions = []string{
	"0.005", "0.008", "0.01", "0.015", "0.02", "0.025", "0.03", "0.04", "0.05", "0.06",
}

type setup struct {
	equity types.AccountEquity
	risk   types.RiskPercentage
	entry  types.PricePoint
	stop   types.PricePoint
}

// randomSetup generates a valid long setup whose sizing terminates exactly.
func randomSetup(t *testing.T, rng *rand.Rand) setup {
	t.Helper()
	equity := decimal.NewFromInt(int64(rng.Intn(990000) + 10000)) // 10k..1M
	risk := d(riskFractions[rng.Intn(len(riskFractions))])
	dist := d(stopDistances[rng.Intn(len(stopDistances))])
	// Entry far enough above the distance that stops stay positive and the
	// balance guard rarely bites.
	entry := decimal.NewFromInt(int64(rng.Intn(4000) + 1000))
	stop := entry.Sub(dist)
	return setup{
		equity: mustEquity(t, equity),
		risk:   mustRisk(t, risk),
		entry:  mustPrice(t, entry),
		stop:   mustPrice(t, stop),
	}
}

func TestBasicCalculation(t *testing.T) {
	calc := NewCalculator()
	size, err := calc.CalculatePositionSize(
		mustEquity(t, d("10000")),
		mustRisk(t, d("0.02")),
		mustPrice(t, d("100")),
		mustPrice(t, d("95")),
	)
	require.NoError(t, err)
	// (10000 * 0.02) / (100 - 95) = 200 / 5 = 40, exactly.
	assert.True(t, size.Value().Equal(d("40")), "got %s", size)
}

func TestPrecisionRounding(t *testing.T) {
	calc := NewCalculatorWithPrecision(2)
	size, err := calc.CalculatePositionSize(
		mustEquity(t, d("10000")),
		mustRisk(t, d("0.023")),
		mustPrice(t, d("100.33")),
		mustPrice(t, d("97.17")),
	)
	require.NoError(t, err)
	// 230 / 3.16 = 72.78481...; banker's rounding to 2 places.
	assert.True(t, size.Value().Equal(d("72.78")), "got %s", size)
}

func TestAuxiliaryOperations(t *testing.T) {
	calc := NewCalculator()

	riskAmount := calc.CalculateRiskAmount(mustEquity(t, d("25000")), mustRisk(t, d("0.015")))
	assert.True(t, riskAmount.Equal(d("375")))

	dist, err := calc.CalculateStopDistance(mustPrice(t, d("150")), mustPrice(t, d("142")))
	require.NoError(t, err)
	assert.True(t, dist.Equal(d("8")))

	_, err = calc.CalculateStopDistance(mustPrice(t, d("142")), mustPrice(t, d("150")))
	assert.Error(t, err)

	err = calc.ValidateTradingSetup(
		mustEquity(t, d("10000")), mustRisk(t, d("0.02")),
		mustPrice(t, d("100")), mustPrice(t, d("95")))
	assert.NoError(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	calc := NewCalculator()
	eq := mustEquity(t, d("10000"))
	rp := mustRisk(t, d("0.02"))

	// Stop above entry.
	_, err := calc.CalculatePositionSize(eq, rp, mustPrice(t, d("95")), mustPrice(t, d("100")))
	var invStop *InvalidStopDistanceError
	assert.ErrorAs(t, err, &invStop)

	// Stop equal to entry.
	_, err = calc.CalculatePositionSize(eq, rp, mustPrice(t, d("100")), mustPrice(t, d("100")))
	assert.ErrorAs(t, err, &invStop)

	// Tiny stop distance drives size past the account balance.
	_, err = calc.CalculatePositionSize(eq, mustRisk(t, d("0.01")),
		mustPrice(t, d("100")), mustPrice(t, d("99.999")))
	var exceeds *ExceedsAccountBalanceError
	assert.ErrorAs(t, err, &exceeds)
	assert.True(t, exceeds.PositionValue.GreaterThan(exceeds.Equity))
}

func TestBalanceGuardDisabled(t *testing.T) {
	calc := NewCalculator().DisableBalanceGuard()
	size, err := calc.CalculatePositionSize(
		mustEquity(t, d("10000")), mustRisk(t, d("0.01")),
		mustPrice(t, d("100")), mustPrice(t, d("99.999")))
	require.NoError(t, err)
	assert.True(t, size.TotalValue(mustPrice(t, d("100"))).GreaterThan(d("10000")))
}

// Position-sizing identity: size × (entry − stop) == equity × risk%, exactly.
func TestPropertySizingIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	// Guard off: P5 covers the refusal branch; here every valid setup must
	// satisfy the identity.
	calc := NewCalculator().DisableBalanceGuard()
	for i := 0; i < propertyIterations; i++ {
		s := randomSetup(t, rng)
		size, err := calc.CalculatePositionSize(s.equity, s.risk, s.entry, s.stop)
		require.NoError(t, err, "iteration %d", i)
		dist := s.entry.Value().Sub(s.stop.Value())
		lhs := size.Value().Mul(dist)
		rhs := s.equity.Value().Mul(s.risk.Value())
		require.True(t, lhs.Equal(rhs),
			"iteration %d: %s*%s != %s", i, size, dist, rhs)
	}
}

// Equity scaling: doubling equity doubles size.
func TestPropertyEquityLinearity(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	calc := NewCalculator().DisableBalanceGuard()
	two := decimal.NewFromInt(2)
	for i := 0; i < propertyIterations; i++ {
		s := randomSetup(t, rng)
		size1, err := calc.CalculatePositionSize(s.equity, s.risk, s.entry, s.stop)
		require.NoError(t, err)
		doubled := mustEquity(t, s.equity.Value().Mul(two))
		size2, err := calc.CalculatePositionSize(doubled, s.risk, s.entry, s.stop)
		require.NoError(t, err)
		require.True(t, size2.Value().Equal(size1.Value().Mul(two)), "iteration %d", i)
	}
}

// Risk scaling: doubling risk% (within bounds) doubles size.
func TestPropertyRiskLinearity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	calc := NewCalculator().DisableBalanceGuard()
	two := decimal.NewFromInt(2)
	halfable := []string{"0.005", "0.01", "0.015", "0.02", "0.025", "0.03"}
	for i := 0; i < propertyIterations; i++ {
		s := randomSetup(t, rng)
		base := mustRisk(t, d(halfable[rng.Intn(len(halfable))]))
		size1, err := calc.CalculatePositionSize(s.equity, base, s.entry, s.stop)
		require.NoError(t, err)
		doubled := mustRisk(t, base.Value().Mul(two))
		size2, err := calc.CalculatePositionSize(s.equity, doubled, s.entry, s.stop)
		require.NoError(t, err)
		require.True(t, size2.Value().Equal(size1.Value().Mul(two)), "iteration %d", i)
	}
}

// Stop-distance inverse: shrinking the distance strictly grows the size.
func TestPropertyStopDistanceInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	calc := NewCalculator().DisableBalanceGuard()
	for i := 0; i < propertyIterations; i++ {
		s := randomSetup(t, rng)
		wideDist := s.entry.Value().Sub(s.stop.Value())
		narrowDist := wideDist.Div(decimal.NewFromInt(2))
		narrowStop := mustPrice(t, s.entry.Value().Sub(narrowDist))

		wide, err := calc.CalculatePositionSize(s.equity, s.risk, s.entry, s.stop)
		require.NoError(t, err)
		narrow, err := calc.CalculatePositionSize(s.equity, s.risk, s.entry, narrowStop)
		require.NoError(t, err)
		require.True(t, narrow.Value().GreaterThan(wide.Value()), "iteration %d", i)
	}
}

// No implicit leverage: either size×entry ≤ equity, or the calculator
// refuses with ExceedsAccountBalance.
func TestPropertyNoImplicitLeverage(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	calc := NewCalculator()
	sawRefusal := false
	for i := 0; i < propertyIterations; i++ {
		equity := decimal.NewFromInt(int64(rng.Intn(99000) + 1000))
		risk := d(riskFractions[rng.Intn(len(riskFractions))])
		entry := decimal.NewFromInt(int64(rng.Intn(900) + 100))
		// Distances down to 0.5% of entry provoke the guard regularly.
		dist := entry.Mul(d("0.005")).Mul(decimal.NewFromInt(int64(rng.Intn(40) + 1)))
		stop := entry.Sub(dist)
		if !stop.IsPositive() {
			continue
		}
		size, err := calc.CalculatePositionSize(
			mustEquity(t, equity), mustRisk(t, risk),
			mustPrice(t, entry), mustPrice(t, stop))
		if err != nil {
			var exceeds *ExceedsAccountBalanceError
			if errors.As(err, &exceeds) {
				sawRefusal = true
				// The bare formula really would violate the guard.
				bare := equity.Mul(risk).Div(dist)
				require.True(t, bare.Mul(entry).GreaterThan(equity), "iteration %d", i)
				continue
			}
			t.Fatalf("iteration %d: unexpected error %v", i, err)
		}
		require.True(t, size.TotalValue(mustPrice(t, entry)).LessThanOrEqual(equity),
			"iteration %d", i)
	}
	require.True(t, sawRefusal, "generator never exercised the balance guard")
}
