package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BINANCE MARKET-DATA ADAPTER - live quotes over websocket
// ═══════════════════════════════════════════════════════════════════════════════
//
// Streams bookTicker updates into a quote cache; GetMarketData serves from
// the cache so the Observe phase never blocks on the network. Order
// endpoints are not wired: this adapter exists for observation and paper
// trading, and reports ExchangeSpecificError for anything requiring keys.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	binanceWSURL      = "wss://stream.binance.com:9443/stream"
	binanceReconnect  = 5 * time.Second
	binancePingPeriod = 3 * time.Minute
)

type binanceTickerMsg struct {
	Data struct {
		Symbol string `json:"s"`
		Bid    string `json:"b"`
		Ask    string `json:"a"`
	} `json:"data"`
}

// Binance is a market-data-only adapter.
type Binance struct {
	mu      sync.RWMutex
	symbols []string
	quotes  map[string]types.MarketQuote
	conn    *websocket.Conn
	running bool
	stopCh  chan struct{}
}

// NewBinance creates an adapter streaming the given symbols (e.g. BTCUSDT).
func NewBinance(symbols ...string) *Binance {
	return &Binance{
		symbols: symbols,
		quotes:  make(map[string]types.MarketQuote),
		stopCh:  make(chan struct{}),
	}
}

// Start connects the stream and begins caching quotes.
func (b *Binance) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.streamLoop()
	log.Info().Strs("symbols", b.symbols).Msg("📈 Binance feed started")
}

// Stop closes the stream.
func (b *Binance) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	close(b.stopCh)
	if b.conn != nil {
		_ = b.conn.Close()
	}
	log.Info().Msg("Binance feed stopped")
}

func (b *Binance) streamURL() string {
	streams := make([]string, 0, len(b.symbols))
	for _, s := range b.symbols {
		streams = append(streams, strings.ToLower(s)+"@bookTicker")
	}
	return binanceWSURL + "?streams=" + strings.Join(streams, "/")
}

func (b *Binance) streamLoop() {
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(b.streamURL(), nil)
		if err != nil {
			log.Error().Err(err).Msg("Binance websocket dial failed")
			select {
			case <-time.After(binanceReconnect):
				continue
			case <-b.stopCh:
				return
			}
		}

		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()

		b.readLoop(conn)

		_ = conn.Close()
		select {
		case <-b.stopCh:
			return
		case <-time.After(binanceReconnect):
		}
	}
}

func (b *Binance) readLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(binancePingPeriod)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			case <-b.stopCh:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Binance websocket read error, reconnecting")
			return
		}
		var msg binanceTickerMsg
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Data.Symbol == "" {
			continue
		}
		bid, err1 := decimal.NewFromString(msg.Data.Bid)
		ask, err2 := decimal.NewFromString(msg.Data.Ask)
		if err1 != nil || err2 != nil {
			continue
		}
		last := bid.Add(ask).Div(decimal.NewFromInt(2))

		b.mu.Lock()
		prev := b.quotes[msg.Data.Symbol]
		b.quotes[msg.Data.Symbol] = types.MarketQuote{
			Symbol:    msg.Data.Symbol,
			Bid:       bid,
			Ask:       ask,
			Last:      last,
			Volume24h: prev.Volume24h,
			Timestamp: time.Now().UTC(),
		}
		b.mu.Unlock()
	}
}

func (b *Binance) GetMarketData(_ context.Context, symbol string) (types.MarketQuote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[symbol]
	if !ok {
		return types.MarketQuote{}, NewError(MarketDataUnavailable, "no stream data for %s", symbol)
	}
	return q, nil
}

func (b *Binance) PlaceOrder(context.Context, *TradeOrder) (OrderResult, error) {
	return OrderResult{}, b.unsupported("place_order")
}

func (b *Binance) CancelOrder(context.Context, string) error {
	return b.unsupported("cancel_order")
}

func (b *Binance) GetOrderStatus(context.Context, string) (OrderResult, error) {
	return OrderResult{}, b.unsupported("get_order_status")
}

func (b *Binance) GetBalance(context.Context, string) (AccountBalance, error) {
	return AccountBalance{}, b.unsupported("get_balance")
}

func (b *Binance) GetAllBalances(context.Context) ([]AccountBalance, error) {
	return nil, b.unsupported("get_all_balances")
}

func (b *Binance) unsupported(op string) error {
	return NewError(ExchangeSpecificError, "%s requires API keys; this adapter is market-data only", op)
}

func (b *Binance) HealthCheck(context.Context) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running && b.conn != nil
}

func (b *Binance) IsSymbolSupported(symbol string) bool {
	for _, s := range b.symbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

func (b *Binance) ExchangeName() string { return "binance" }

var _ Adapter = (*Binance)(nil)
var _ Adapter = (*Mock)(nil)
var _ Adapter = (*Failover)(nil)

// String renders an order for logs.
func (o *TradeOrder) String() string {
	price := "market"
	if o.Price != nil {
		price = o.Price.String()
	}
	return fmt.Sprintf("%s %s %s qty=%s price=%s", o.Side, o.Type, o.Symbol, o.Quantity, price)
}
