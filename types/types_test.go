package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func price(t *testing.T, s string) PricePoint {
	t.Helper()
	p, err := NewPricePoint(d(s))
	require.NoError(t, err)
	return p
}

func equity(t *testing.T, s string) AccountEquity {
	t.Helper()
	e, err := NewAccountEquity(d(s))
	require.NoError(t, err)
	return e
}

func riskPct(t *testing.T, s string) RiskPercentage {
	t.Helper()
	r, err := NewRiskPercentage(d(s))
	require.NoError(t, err)
	return r
}

func TestAccountEquityValidation(t *testing.T) {
	_, err := NewAccountEquity(decimal.Zero)
	assert.Error(t, err)
	_, err = NewAccountEquity(d("-100"))
	assert.Error(t, err)

	eq, err := NewAccountEquity(d("10000"))
	require.NoError(t, err)
	assert.True(t, eq.Value().Equal(d("10000")))
}

func TestRiskPercentageBounds(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"0.004", false}, // below 0.5%
		{"0.005", true},
		{"0.02", true},
		{"0.06", true},
		{"0.061", false}, // above 6%
		{"0", false},
	}
	for _, tc := range cases {
		_, err := NewRiskPercentage(d(tc.in))
		if tc.ok {
			assert.NoError(t, err, tc.in)
		} else {
			assert.Error(t, err, tc.in)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		}
	}

	// Custom bounds widen the window.
	_, err := NewRiskPercentageBetween(d("0.08"), d("0.01"), d("0.10"))
	assert.NoError(t, err)
}

func TestPricePointAndPositionSize(t *testing.T) {
	_, err := NewPricePoint(decimal.Zero)
	assert.Error(t, err)

	_, err = NewPositionSize(d("-1"))
	assert.Error(t, err)

	size, err := NewPositionSize(d("40"))
	require.NoError(t, err)
	assert.True(t, size.TotalValue(price(t, "100")).Equal(d("4000")))
}

func TestProposalInvariants(t *testing.T) {
	eq := equity(t, "10000")
	rp := riskPct(t, "0.02")

	// Valid long.
	tp := price(t, "110")
	p, err := NewTradeProposal("BTCUSDT", Long, price(t, "100"), price(t, "95"), &tp, eq, rp)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.RiskDistance().Equal(d("5")))
	reward, ok := p.RewardDistance()
	require.True(t, ok)
	assert.True(t, reward.Equal(d("10")))
	ratio, ok := p.RiskRewardRatio()
	require.True(t, ok)
	assert.True(t, ratio.Equal(d("2")))

	// Inverted long stop.
	_, err = NewTradeProposal("BTCUSDT", Long, price(t, "100"), price(t, "105"), nil, eq, rp)
	assert.Error(t, err)

	// Long take profit below entry.
	badTP := price(t, "99")
	_, err = NewTradeProposal("BTCUSDT", Long, price(t, "100"), price(t, "95"), &badTP, eq, rp)
	assert.Error(t, err)

	// Valid short mirrors the constraints.
	shortTP := price(t, "90")
	p, err = NewTradeProposal("BTCUSDT", Short, price(t, "100"), price(t, "105"), &shortTP, eq, rp)
	require.NoError(t, err)
	assert.True(t, p.RiskDistance().Equal(d("5")))

	// Short stop below entry.
	_, err = NewTradeProposal("BTCUSDT", Short, price(t, "100"), price(t, "95"), nil, eq, rp)
	assert.Error(t, err)

	// Empty symbol.
	_, err = NewTradeProposal("", Long, price(t, "100"), price(t, "95"), nil, eq, rp)
	assert.Error(t, err)
}

func TestProposalWithoutTarget(t *testing.T) {
	p, err := NewTradeProposal("ETHUSDT", Long,
		price(t, "2000"), price(t, "1900"), nil,
		equity(t, "50000"), riskPct(t, "0.01"))
	require.NoError(t, err)

	_, ok := p.RewardDistance()
	assert.False(t, ok)
	_, ok = p.RiskRewardRatio()
	assert.False(t, ok)
	assert.True(t, p.RiskAmount().Equal(d("500")))
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	eq := equity(t, "10000.50")
	raw, err := json.Marshal(eq)
	require.NoError(t, err)
	assert.Equal(t, `"10000.5"`, string(raw))

	var back AccountEquity
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Value().Equal(eq.Value()))

	// Deserialization re-validates.
	var bad PositionSize
	assert.Error(t, json.Unmarshal([]byte(`"-5"`), &bad))
}
