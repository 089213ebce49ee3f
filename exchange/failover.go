package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FAILOVER MANAGER - N adapters behind one adapter-shaped front
// ═══════════════════════════════════════════════════════════════════════════════
//
// Tracks a current-primary pointer and advances through the backup list when
// the primary's breaker opens on sustained failures. Indistinguishable from
// a single adapter to callers.
//
// ═══════════════════════════════════════════════════════════════════════════════

// FailoverConfig tunes breaker sensitivity per backend.
type FailoverConfig struct {
	// ConsecutiveFailures opens a backend's breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long an open breaker waits before half-open probes.
	OpenTimeout time.Duration
}

// DefaultFailoverConfig trips after 5 straight failures, probing after 30s.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// Failover implements Adapter over an ordered list of backends.
type Failover struct {
	mu       sync.Mutex
	backends []Adapter
	breakers []*gobreaker.CircuitBreaker
	current  int
}

// NewFailover wires the backends in priority order; the first is primary.
func NewFailover(cfg FailoverConfig, backends ...Adapter) *Failover {
	if len(backends) == 0 {
		panic("failover requires at least one backend")
	}
	f := &Failover{backends: backends}
	for _, b := range backends {
		name := b.ExchangeName()
		f.breakers = append(f.breakers, gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: name,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
			},
			Timeout: cfg.OpenTimeout,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("exchange", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Exchange breaker state change")
			},
		}))
	}
	return f
}

// CurrentPrimary names the backend currently fronting calls.
func (f *Failover) CurrentPrimary() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backends[f.current].ExchangeName()
}

// ResetToPrimary points back at the configured primary.
func (f *Failover) ResetToPrimary() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = 0
	log.Info().Str("exchange", f.backends[0].ExchangeName()).Msg("Failover reset to primary")
}

// pick returns the active backend and breaker, advancing past open breakers.
func (f *Failover) pick() (Adapter, *gobreaker.CircuitBreaker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := f.current
	for i := 0; i < len(f.backends); i++ {
		idx := (start + i) % len(f.backends)
		if f.breakers[idx].State() != gobreaker.StateOpen {
			if idx != f.current {
				log.Warn().
					Str("from", f.backends[f.current].ExchangeName()).
					Str("to", f.backends[idx].ExchangeName()).
					Msg("🔀 Exchange failover")
				f.current = idx
			}
			return f.backends[idx], f.breakers[idx]
		}
	}
	// Everything open: keep the pointer, let the breaker surface the error.
	return f.backends[f.current], f.breakers[f.current]
}

func (f *Failover) exec(call func(Adapter) (any, error)) (any, error) {
	backend, breaker := f.pick()
	return breaker.Execute(func() (any, error) {
		return call(backend)
	})
}

func (f *Failover) GetMarketData(ctx context.Context, symbol string) (types.MarketQuote, error) {
	res, err := f.exec(func(a Adapter) (any, error) { return a.GetMarketData(ctx, symbol) })
	if err != nil {
		return types.MarketQuote{}, wrapBreakerErr(err)
	}
	return res.(types.MarketQuote), nil
}

func (f *Failover) PlaceOrder(ctx context.Context, order *TradeOrder) (OrderResult, error) {
	res, err := f.exec(func(a Adapter) (any, error) { return a.PlaceOrder(ctx, order) })
	if err != nil {
		return OrderResult{}, wrapBreakerErr(err)
	}
	return res.(OrderResult), nil
}

func (f *Failover) CancelOrder(ctx context.Context, orderID string) error {
	_, err := f.exec(func(a Adapter) (any, error) { return nil, a.CancelOrder(ctx, orderID) })
	return wrapBreakerErr(err)
}

func (f *Failover) GetOrderStatus(ctx context.Context, orderID string) (OrderResult, error) {
	res, err := f.exec(func(a Adapter) (any, error) { return a.GetOrderStatus(ctx, orderID) })
	if err != nil {
		return OrderResult{}, wrapBreakerErr(err)
	}
	return res.(OrderResult), nil
}

func (f *Failover) GetBalance(ctx context.Context, asset string) (AccountBalance, error) {
	res, err := f.exec(func(a Adapter) (any, error) { return a.GetBalance(ctx, asset) })
	if err != nil {
		return AccountBalance{}, wrapBreakerErr(err)
	}
	return res.(AccountBalance), nil
}

func (f *Failover) GetAllBalances(ctx context.Context) ([]AccountBalance, error) {
	res, err := f.exec(func(a Adapter) (any, error) { return a.GetAllBalances(ctx) })
	if err != nil {
		return nil, wrapBreakerErr(err)
	}
	return res.([]AccountBalance), nil
}

// HealthCheck runs through the active backend's breaker, so sustained
// health-check failures advance the pointer like failed calls do.
func (f *Failover) HealthCheck(ctx context.Context) bool {
	_, err := f.exec(func(a Adapter) (any, error) {
		if !a.HealthCheck(ctx) {
			return nil, NewError(ConnectionError, "%s health check failed", a.ExchangeName())
		}
		return nil, nil
	})
	return err == nil
}

func (f *Failover) IsSymbolSupported(symbol string) bool {
	backend, _ := f.pick()
	return backend.IsSymbolSupported(symbol)
}

func (f *Failover) ExchangeName() string {
	return "failover(" + f.CurrentPrimary() + ")"
}

// wrapBreakerErr converts gobreaker sentinels into adapter errors.
func wrapBreakerErr(err error) error {
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return NewError(ConnectionError, "exchange unavailable: %v", err)
	}
	return err
}
