package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MOCK EXCHANGE - the executable form of the adapter contract
// ═══════════════════════════════════════════════════════════════════════════════
//
// Used by tests and paper trading. Fully configurable: seed quotes and
// balances, flip health, inject latency or the next error, inspect placed
// orders. Carries its own rate limiter because rate limiting is the
// adapter's concern, not the caller's.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Mock implements Adapter against in-memory state.
type Mock struct {
	mu sync.Mutex

	name     string
	quotes   map[string]types.MarketQuote
	balances map[string]AccountBalance
	orders   map[string]OrderResult // order id → result
	byClient map[string]string      // client order id → order id
	placed   []OrderResult

	healthy   bool
	delay     time.Duration
	nextError error

	limiter *rate.Limiter

	now func() time.Time
}

// NewMock creates a healthy mock named "mock-exchange".
func NewMock() *Mock {
	return &Mock{
		name:     "mock-exchange",
		quotes:   make(map[string]types.MarketQuote),
		balances: make(map[string]AccountBalance),
		orders:   make(map[string]OrderResult),
		byClient: make(map[string]string),
		healthy:  true,
		limiter:  rate.NewLimiter(rate.Limit(100), 200),
		now:      time.Now,
	}
}

// NewMockNamed creates a mock with a custom exchange name.
func NewMockNamed(name string) *Mock {
	m := NewMock()
	m.name = name
	return m
}

// WithClock injects a clock for tests.
func (m *Mock) WithClock(now func() time.Time) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// SetMarketData seeds or replaces the quote for a symbol.
func (m *Mock) SetMarketData(q types.MarketQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.Symbol] = q
}

// SetBalance seeds a balance for an asset.
func (m *Mock) SetBalance(b AccountBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[b.Asset] = b
}

// SetHealthy flips the health flag.
func (m *Mock) SetHealthy(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = ok
}

// SetResponseDelay makes every market-data, order and balance call sleep,
// for deadline tests. HealthCheck and IsSymbolSupported do not sleep.
func (m *Mock) SetResponseDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// FailNext injects an error returned by the next market-data, order or
// balance call.
func (m *Mock) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextError = err
}

// PlacedOrders returns every order accepted so far.
func (m *Mock) PlacedOrders() []OrderResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OrderResult, len(m.placed))
	copy(out, m.placed)
	return out
}

// ClearOrders wipes order history.
func (m *Mock) ClearOrders() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = make(map[string]OrderResult)
	m.byClient = make(map[string]string)
	m.placed = nil
}

// gate applies delay, rate limit, context and injected failure.
func (m *Mock) gate(ctx context.Context) error {
	m.mu.Lock()
	delay := m.delay
	injected := m.nextError
	m.nextError = nil
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return NewError(ConnectionError, "request cancelled: %v", ctx.Err())
		}
	}
	if !m.limiter.Allow() {
		return NewError(RateLimitExceeded, "mock rate limit")
	}
	if injected != nil {
		return injected
	}
	return nil
}

func (m *Mock) GetMarketData(ctx context.Context, symbol string) (types.MarketQuote, error) {
	if err := m.gate(ctx); err != nil {
		return types.MarketQuote{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[symbol]
	if !ok {
		return types.MarketQuote{}, NewError(MarketDataUnavailable, "no quote for %s", symbol)
	}
	return q, nil
}

func (m *Mock) PlaceOrder(ctx context.Context, order *TradeOrder) (OrderResult, error) {
	if err := m.gate(ctx); err != nil {
		return OrderResult{}, err
	}
	if order.Symbol == "" || !order.Quantity.IsPositive() {
		return OrderResult{}, NewError(InvalidOrder, "symbol and positive quantity required")
	}
	if order.Type != Market && order.Price == nil {
		return OrderResult{}, NewError(InvalidOrder, "price required for %s orders", order.Type)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	execPrice := decimal.Zero
	if order.Price != nil {
		execPrice = *order.Price
	} else if q, ok := m.quotes[order.Symbol]; ok {
		execPrice = q.Last
	}

	res := OrderResult{
		OrderID:          fmt.Sprintf("mock-%s", uuid.NewString()),
		ClientOrderID:    order.ClientOrderID,
		Symbol:           order.Symbol,
		Status:           StatusFilled,
		ExecutedQuantity: order.Quantity,
		ExecutedPrice:    execPrice,
		Commission:       execPrice.Mul(order.Quantity).Mul(decimal.RequireFromString("0.001")),
		Timestamp:        m.now(),
	}
	m.orders[res.OrderID] = res
	m.byClient[res.ClientOrderID] = res.OrderID
	m.placed = append(m.placed, res)
	return res, nil
}

func (m *Mock) CancelOrder(ctx context.Context, orderID string) error {
	if err := m.gate(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.lookupLocked(orderID)
	if !ok {
		return NewError(OrderNotFound, "%s", orderID)
	}
	if res.Status == StatusFilled {
		return NewError(InvalidOrder, "order %s already filled", orderID)
	}
	res.Status = StatusCancelled
	m.orders[res.OrderID] = res
	return nil
}

func (m *Mock) GetOrderStatus(ctx context.Context, orderID string) (OrderResult, error) {
	if err := m.gate(ctx); err != nil {
		return OrderResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.lookupLocked(orderID)
	if !ok {
		return OrderResult{}, NewError(OrderNotFound, "%s", orderID)
	}
	return res, nil
}

// lookupLocked resolves by order id first, then by client order id so
// reconciliation after a timed-out placement can find its order.
func (m *Mock) lookupLocked(id string) (OrderResult, bool) {
	if res, ok := m.orders[id]; ok {
		return res, true
	}
	if oid, ok := m.byClient[id]; ok {
		return m.orders[oid], true
	}
	return OrderResult{}, false
}

func (m *Mock) GetBalance(ctx context.Context, asset string) (AccountBalance, error) {
	if err := m.gate(ctx); err != nil {
		return AccountBalance{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[asset]
	if !ok {
		return AccountBalance{}, NewError(InsufficientBalance, "no balance for %s", asset)
	}
	return b, nil
}

func (m *Mock) GetAllBalances(ctx context.Context) ([]AccountBalance, error) {
	if err := m.gate(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AccountBalance, 0, len(m.balances))
	for _, b := range m.balances {
		out = append(out, b)
	}
	return out, nil
}

func (m *Mock) HealthCheck(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

func (m *Mock) IsSymbolSupported(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.quotes[symbol]
	return ok
}

func (m *Mock) ExchangeName() string { return m.name }
