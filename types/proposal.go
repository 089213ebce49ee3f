package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeSide is the direction of a proposed trade.
type TradeSide string

const (
	Long  TradeSide = "LONG"
	Short TradeSide = "SHORT"
)

// Valid reports whether s is one of the two known sides.
func (s TradeSide) Valid() bool { return s == Long || s == Short }

// TradeIntent is the user-originated request that starts one OODA cycle.
// Entries, stops and targets are inputs here; nothing in the pipeline
// generates them.
type TradeIntent struct {
	Symbol        string          `json:"symbol"`
	Side          TradeSide       `json:"side"`
	Entry         PricePoint      `json:"entry"`
	Stop          PricePoint      `json:"stop"`
	TakeProfit    *PricePoint     `json:"take_profit,omitempty"`
	AccountEquity AccountEquity   `json:"account_equity"`
	Risk          RiskPercentage  `json:"risk_percentage"`
}

// TradeProposal is the immutable output of the Orient phase: a fully
// validated trade setup ready for risk assessment. Construction enforces
// every structural invariant, so a proposal that exists is well-formed.
type TradeProposal struct {
	ID            string         `json:"id"`
	Symbol        string         `json:"symbol"`
	Side          TradeSide      `json:"side"`
	Entry         PricePoint     `json:"entry"`
	Stop          PricePoint     `json:"stop"`
	TakeProfit    *PricePoint    `json:"take_profit,omitempty"`
	AccountEquity AccountEquity  `json:"account_equity"`
	Risk          RiskPercentage `json:"risk_percentage"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ProposalError reports a structural invariant rejected at construction.
type ProposalError struct {
	Reason string
}

func (e *ProposalError) Error() string { return "invalid trade proposal: " + e.Reason }

// NewTradeProposal validates the setup and mints a proposal with a fresh id.
func NewTradeProposal(
	symbol string,
	side TradeSide,
	entry, stop PricePoint,
	takeProfit *PricePoint,
	equity AccountEquity,
	risk RiskPercentage,
) (*TradeProposal, error) {
	if symbol == "" {
		return nil, &ProposalError{Reason: "symbol must not be empty"}
	}
	if !side.Valid() {
		return nil, &ProposalError{Reason: fmt.Sprintf("unknown trade side %q", side)}
	}
	switch side {
	case Long:
		if !stop.Value().LessThan(entry.Value()) {
			return nil, &ProposalError{Reason: "long stop must be below entry"}
		}
		if takeProfit != nil && !takeProfit.Value().GreaterThan(entry.Value()) {
			return nil, &ProposalError{Reason: "long take profit must be above entry"}
		}
	case Short:
		if !stop.Value().GreaterThan(entry.Value()) {
			return nil, &ProposalError{Reason: "short stop must be above entry"}
		}
		if takeProfit != nil && !takeProfit.Value().LessThan(entry.Value()) {
			return nil, &ProposalError{Reason: "short take profit must be below entry"}
		}
	}
	return &TradeProposal{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Side:          side,
		Entry:         entry,
		Stop:          stop,
		TakeProfit:    takeProfit,
		AccountEquity: equity,
		Risk:          risk,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// RiskDistance is |entry − stop|.
func (p *TradeProposal) RiskDistance() decimal.Decimal {
	return p.Entry.Value().Sub(p.Stop.Value()).Abs()
}

// RewardDistance is |take_profit − entry|, and false when no target is set.
func (p *TradeProposal) RewardDistance() (decimal.Decimal, bool) {
	if p.TakeProfit == nil {
		return decimal.Zero, false
	}
	return p.TakeProfit.Value().Sub(p.Entry.Value()).Abs(), true
}

// RiskRewardRatio is reward distance over risk distance, and false when no
// target is set.
func (p *TradeProposal) RiskRewardRatio() (decimal.Decimal, bool) {
	reward, ok := p.RewardDistance()
	if !ok {
		return decimal.Zero, false
	}
	risk := p.RiskDistance()
	if risk.IsZero() {
		return decimal.Zero, false
	}
	return reward.Div(risk), true
}

// RiskAmount is the equity fraction at stake: equity × risk%.
func (p *TradeProposal) RiskAmount() decimal.Decimal {
	return p.AccountEquity.Value().Mul(p.Risk.Value())
}
