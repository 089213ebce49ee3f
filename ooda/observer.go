package ooda

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/tradegate/exchange"
	"github.com/web3guy0/tradegate/types"
)

// Observer implements the Observe phase: fetch a quote and reject staleness.
type Observer struct {
	adapter    exchange.Adapter
	maxDataAge time.Duration
	now        func() time.Time
}

// NewObserver builds an observer over the given adapter.
func NewObserver(adapter exchange.Adapter, maxDataAge time.Duration) *Observer {
	return &Observer{adapter: adapter, maxDataAge: maxDataAge, now: time.Now}
}

// Observe fetches market data and enforces the freshness invariant.
func (o *Observer) Observe(ctx context.Context, symbol string) (types.MarketQuote, error) {
	quote, err := o.adapter.GetMarketData(ctx, symbol)
	if err != nil {
		return types.MarketQuote{}, err
	}
	age := quote.Age(o.now())
	if age > o.maxDataAge {
		log.Warn().
			Str("symbol", symbol).
			Dur("age", age).
			Dur("max_age", o.maxDataAge).
			Msg("Rejecting stale quote")
		return types.MarketQuote{}, &StaleDataError{Age: age, MaxAge: o.maxDataAge}
	}
	return quote, nil
}

// MaxDataAge is the configured freshness window.
func (o *Observer) MaxDataAge() time.Duration { return o.maxDataAge }
