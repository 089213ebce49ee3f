package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradegate/exchange"
	"github.com/web3guy0/tradegate/ooda"
	"github.com/web3guy0/tradegate/portfolio"
	"github.com/web3guy0/tradegate/risk"
	"github.com/web3guy0/tradegate/sizing"
	"github.com/web3guy0/tradegate/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - central wiring and cycle scheduler
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   Intent → OODA loop → Risk engine → Exchange → Portfolio tracker
//
// Each submitted intent gets its own loop running on its own goroutine;
// cycles share only the tracker and the adapter. Results fan in on a
// channel.
//
// ═══════════════════════════════════════════════════════════════════════════════

// TradeNotifier receives trade and breaker events; the bot package
// implements it. Nil means no notifications.
type TradeNotifier interface {
	NotifyTrade(symbol string, side types.TradeSide, price, size decimal.Decimal)
	NotifyBreaker(reason string, consecutiveLosses int)
	NotifyRejection(symbol, reason string)
}

// SnapshotStore persists tracker snapshots and cycle audits; the storage
// package implements it. Nil disables persistence.
type SnapshotStore interface {
	SaveSnapshot(snap portfolio.Snapshot) error
	LoadSnapshot() (portfolio.Snapshot, bool, error)
	SaveCycle(result *ooda.CycleResult) error
}

// Config bundles the engine's construction inputs.
type Config struct {
	Limits   risk.ProtocolLimits
	Timing   ooda.TimingConfig
	OrderTag string
	// SizePrecision rounds sizes to that many decimal places when
	// HasPrecision is set; otherwise it is ignored.
	SizePrecision int32
	HasPrecision  bool
}

// Engine owns the shared collaborators and schedules cycles.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	adapter exchange.Adapter
	tracker *portfolio.Tracker
	engine  *risk.Engine
	calc    *sizing.Calculator

	store    SnapshotStore
	notifier TradeNotifier
	recorder ooda.Recorder

	results chan *ooda.CycleResult
	wg      sync.WaitGroup
	running bool
}

// NewEngine wires an engine over the given adapter.
func NewEngine(cfg Config, adapter exchange.Adapter) *Engine {
	calc := sizing.NewCalculator()
	if cfg.HasPrecision {
		calc = sizing.NewCalculatorWithPrecision(cfg.SizePrecision)
	}
	tracker := portfolio.NewTracker(cfg.Limits)
	return &Engine{
		cfg:     cfg,
		adapter: adapter,
		tracker: tracker,
		engine:  risk.NewEngine(cfg.Limits, tracker).WithCalculator(calc),
		calc:    calc,
		results: make(chan *ooda.CycleResult, 64),
	}
}

// WithStore attaches snapshot persistence.
func (e *Engine) WithStore(s SnapshotStore) *Engine {
	e.store = s
	return e
}

// WithNotifier attaches trade notifications.
func (e *Engine) WithNotifier(n TradeNotifier) *Engine {
	e.notifier = n
	return e
}

// WithRecorder attaches a metrics recorder passed to every loop.
func (e *Engine) WithRecorder(r ooda.Recorder) *Engine {
	e.recorder = r
	return e
}

// Tracker exposes the portfolio tracker for outcome recording and reporting.
func (e *Engine) Tracker() *portfolio.Tracker { return e.tracker }

// Start recovers persisted state. Safe to call once.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	e.running = true

	if e.store != nil {
		snap, ok, err := e.store.LoadSnapshot()
		if err != nil {
			return err
		}
		if ok {
			e.tracker.Restore(snap)
			log.Warn().
				Int("positions", len(snap.Positions)).
				Bool("breaker_active", snap.BreakerActive).
				Msg("📥 Recovered portfolio state from previous session")
		}
	}

	log.Info().Str("exchange", e.adapter.ExchangeName()).Msg("⚡ Engine started")
	return nil
}

// Stop waits for in-flight cycles and persists a final snapshot.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.wg.Wait()
	e.persistSnapshot()
	log.Info().Msg("Engine stopped")
}

// Results delivers finished cycle results.
func (e *Engine) Results() <-chan *ooda.CycleResult { return e.results }

// Submit schedules one OODA cycle for the intent on its own goroutine.
func (e *Engine) Submit(ctx context.Context, intent types.TradeIntent) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		res := e.newLoop().RunCycle(ctx, intent)
		e.afterCycle(res)
		select {
		case e.results <- res:
		default:
			log.Warn().Msg("Results channel full, dropping cycle result")
		}
	}()
}

// RunCycle executes one cycle synchronously.
func (e *Engine) RunCycle(ctx context.Context, intent types.TradeIntent) *ooda.CycleResult {
	res := e.newLoop().RunCycle(ctx, intent)
	e.afterCycle(res)
	return res
}

func (e *Engine) newLoop() *ooda.Loop {
	observer := ooda.NewObserver(e.adapter, e.cfg.Timing.MaxDataAge)
	orientator := ooda.NewOrientator(e.calc)
	decider := ooda.NewDecider(e.engine).WithMaxDecisionTime(e.cfg.Timing.MaxDecide)
	actor := ooda.NewActor(e.adapter, e.cfg.OrderTag)
	loop := ooda.NewLoop(e.cfg.Timing, observer, orientator, decider, actor, e.tracker)
	if e.recorder != nil {
		loop.WithRecorder(e.recorder)
	}
	return loop
}

func (e *Engine) afterCycle(res *ooda.CycleResult) {
	if e.store != nil {
		if err := e.store.SaveCycle(res); err != nil {
			log.Error().Err(err).Msg("Failed to persist cycle audit")
		}
	}
	e.persistSnapshot()

	if e.notifier == nil {
		return
	}
	switch {
	case res.FinalState == ooda.StateCompleted && res.OrderResult != nil:
		e.notifier.NotifyTrade(res.Proposal.Symbol, res.Proposal.Side,
			res.OrderResult.ExecutedPrice, res.OrderResult.ExecutedQuantity)
	case res.Failure != nil && res.Failure.Kind == ooda.FailRejected:
		e.notifier.NotifyRejection(res.Intent.Symbol, res.StatusMessage)
	}
}

// RecordOutcome folds a closed trade's P&L into the tracker and fans out
// breaker notifications.
func (e *Engine) RecordOutcome(pnl decimal.Decimal) portfolio.BreakerEvent {
	ev := e.tracker.RecordOutcome(pnl)
	if ev == portfolio.BreakerLatched && e.notifier != nil {
		consecutive, _, _, reason := e.tracker.Loss().Stats()
		e.notifier.NotifyBreaker(reason, consecutive)
	}
	e.persistSnapshot()
	return ev
}

func (e *Engine) persistSnapshot() {
	if e.store == nil {
		return
	}
	if err := e.store.SaveSnapshot(e.tracker.Snapshot()); err != nil {
		log.Error().Err(err).Msg("Failed to persist portfolio snapshot")
	}
}
