package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketQuote is a point-in-time market snapshot from an exchange adapter.
type MarketQuote struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Last      decimal.Decimal `json:"last"`
	Volume24h decimal.Decimal `json:"volume_24h"`
	Timestamp time.Time       `json:"timestamp"`
}

// Age is how stale the quote is relative to now.
func (q MarketQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.Timestamp)
}

// Fresh reports whether the quote is within the freshness window.
func (q MarketQuote) Fresh(now time.Time, maxAge time.Duration) bool {
	return q.Age(now) <= maxAge
}
