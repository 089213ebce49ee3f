package ooda

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/sizing"
	"github.com/web3guy0/tradegate/types"
)

// Orientator implements the Orient phase: synthesize a validated proposal
// from the intent and the fresh quote, and size it.
type Orientator struct {
	calc *sizing.Calculator
	now  func() time.Time
}

// NewOrientator builds an orientator around the given calculator.
func NewOrientator(calc *sizing.Calculator) *Orientator {
	return &Orientator{calc: calc, now: time.Now}
}

// Orientation is the Orient phase output. Confidence is informational only;
// nothing gates on it.
type Orientation struct {
	Proposal   *types.TradeProposal
	Size       types.PositionSize
	Confidence float64
}

// Orient builds the proposal (structural invariants enforced at
// construction) and computes the position size.
func (o *Orientator) Orient(intent types.TradeIntent, quote types.MarketQuote) (Orientation, error) {
	proposal, err := types.NewTradeProposal(
		intent.Symbol, intent.Side,
		intent.Entry, intent.Stop, intent.TakeProfit,
		intent.AccountEquity, intent.Risk,
	)
	if err != nil {
		return Orientation{}, err
	}

	size, err := o.size(proposal)
	if err != nil {
		// The cash-equity guard is policy, not arithmetic: the proposal
		// still goes to Decide, where the rule set rejects it with the full
		// violation list on record. Real sizing failures abort here.
		var exceeds *sizing.ExceedsAccountBalanceError
		if !errors.As(err, &exceeds) {
			return Orientation{}, err
		}
		size = types.PositionSize{}
	}

	return Orientation{
		Proposal:   proposal,
		Size:       size,
		Confidence: o.confidence(quote, proposal),
	}, nil
}

// size runs the long-oriented kernel; short setups mirror the stop about
// the entry so the risk distance and the cash guard are both preserved.
func (o *Orientator) size(p *types.TradeProposal) (types.PositionSize, error) {
	entry, stop := p.Entry, p.Stop
	if p.Side == types.Short {
		mirrored := entry.Value().Sub(p.Stop.Value().Sub(entry.Value()))
		m, err := types.NewPricePoint(mirrored)
		if err != nil {
			return types.PositionSize{}, err
		}
		stop = m
	}
	return o.calc.CalculatePositionSize(p.AccountEquity, p.Risk, entry, stop)
}

// confidence scores data quality: stale-ish data, thin volume and very tight
// stops each shave it down.
func (o *Orientator) confidence(quote types.MarketQuote, p *types.TradeProposal) float64 {
	c := 1.0
	if quote.Age(o.now()) > time.Second {
		c *= 0.9
	}
	if quote.Volume24h.IsZero() {
		c *= 0.8
	}
	// Stops tighter than 0.5% of entry are likely noise.
	threshold := p.Entry.Value().Mul(decimal.RequireFromString("0.005"))
	if p.RiskDistance().LessThan(threshold) {
		c *= 0.7
	}
	if c < 0 {
		c = 0
	}
	return c
}
