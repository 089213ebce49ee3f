package ooda

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/tradegate/exchange"
	"github.com/web3guy0/tradegate/types"
)

// Actor implements the Act phase: convert an approved proposal into an
// exchange order and submit it.
type Actor struct {
	adapter exchange.Adapter
	// tag prefixes client order ids so a deployment's orders are
	// recognizable at the venue.
	tag string
}

// NewActor builds an actor submitting through the given adapter.
func NewActor(adapter exchange.Adapter, tag string) *Actor {
	if tag == "" {
		tag = "tradegate"
	}
	return &Actor{adapter: adapter, tag: tag}
}

// BuildOrder shapes the wire order: a limit order at the proposal's entry,
// with a fresh unique client order id.
func (a *Actor) BuildOrder(p *types.TradeProposal, size types.PositionSize) exchange.TradeOrder {
	side := exchange.Buy
	if p.Side == types.Short {
		side = exchange.Sell
	}
	price := p.Entry.Value()
	return exchange.TradeOrder{
		Symbol:        p.Symbol,
		Side:          side,
		Type:          exchange.Limit,
		Quantity:      size.Value(),
		Price:         &price,
		ClientOrderID: a.tag + "-" + uuid.NewString(),
	}
}

// Execute submits the order. Any adapter error is terminal for the cycle.
func (a *Actor) Execute(ctx context.Context, order *exchange.TradeOrder) (exchange.OrderResult, error) {
	res, err := a.adapter.PlaceOrder(ctx, order)
	if err != nil {
		log.Error().Err(err).Str("order", order.String()).Msg("Order placement failed")
		return exchange.OrderResult{}, err
	}
	log.Info().
		Str("order_id", res.OrderID).
		Str("client_order_id", res.ClientOrderID).
		Str("status", string(res.Status)).
		Msg("✅ Order placed")
	return res, nil
}

// Adapter exposes the underlying adapter for reconciliation queries.
func (a *Actor) Adapter() exchange.Adapter { return a.adapter }
