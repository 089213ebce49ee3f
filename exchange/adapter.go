package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXCHANGE ADAPTER CONTRACT
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every venue sits behind this interface. Adapters own their retry, backoff,
// rate limiting and connection pooling; callers treat any returned error as
// terminal for the current cycle. Implementations must be safe for
// concurrent invocation.
//
// ═══════════════════════════════════════════════════════════════════════════════

// OrderSide is the wire direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType is the execution style.
type OrderType string

const (
	Market          OrderType = "MARKET"
	Limit           OrderType = "LIMIT"
	StopLoss        OrderType = "STOP_LOSS"
	StopLossLimit   OrderType = "STOP_LOSS_LIMIT"
	TakeProfit      OrderType = "TAKE_PROFIT"
	TakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT"
)

// OrderStatus is the venue-reported lifecycle state.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// TradeOrder is the wire-neutral order shape. Price is required for
// non-market types; StopPrice for the Stop* types. ClientOrderID must be
// unique per placement.
type TradeOrder struct {
	Symbol        string           `json:"symbol"`
	Side          OrderSide        `json:"side"`
	Type          OrderType        `json:"order_type"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	ClientOrderID string           `json:"client_order_id"`
}

// OrderResult is the venue's acknowledgement of a placement or status query.
type OrderResult struct {
	OrderID          string          `json:"order_id"`
	ClientOrderID    string          `json:"client_order_id"`
	Symbol           string          `json:"symbol"`
	Status           OrderStatus     `json:"status"`
	ExecutedQuantity decimal.Decimal `json:"executed_quantity"`
	ExecutedPrice    decimal.Decimal `json:"executed_price"`
	Commission       decimal.Decimal `json:"commission"`
	Timestamp        time.Time       `json:"timestamp"`
}

// AccountBalance is one asset's balance at the venue.
type AccountBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
	Total  decimal.Decimal `json:"total"`
}

// Adapter is the unified exchange contract.
type Adapter interface {
	GetMarketData(ctx context.Context, symbol string) (types.MarketQuote, error)
	PlaceOrder(ctx context.Context, order *TradeOrder) (OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (OrderResult, error)
	GetBalance(ctx context.Context, asset string) (AccountBalance, error)
	GetAllBalances(ctx context.Context) ([]AccountBalance, error)
	HealthCheck(ctx context.Context) bool
	IsSymbolSupported(symbol string) bool
	ExchangeName() string
}
