// Package engine runs the market simulation: it serializes price samples
// from the active feed into the candle aggregator, keeps the order book and
// trade tape current, and fronts the wallet ledger for order execution.
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexustrade/paperdesk/internal/market"
	"github.com/nexustrade/paperdesk/internal/wallet"
)

// depthRefreshTimeout bounds a live depth fetch so a stalled exchange can
// never hold up tick delivery.
const depthRefreshTimeout = 5 * time.Second

// DepthSource supplies externally fetched depth snapshots in live mode.
type DepthSource interface {
	Snapshot(ctx context.Context) (market.BookSnapshot, error)
}

// Publisher receives executed fills and sealed candles. Implementations
// must not block; publish failures are logged and dropped.
type Publisher interface {
	PublishFill(ctx context.Context, trade market.Trade) error
	PublishCandle(ctx context.Context, candle market.Candle) error
}

// Update is one tick's worth of dashboard state, pushed to stream
// subscribers.
type Update struct {
	Price  float64             `json:"price"`
	Candle market.Candle       `json:"candle"`
	Book   market.BookSnapshot `json:"book"`
	Tape   []market.Trade      `json:"tape"`
	Equity decimal.Decimal     `json:"equity"`
	PnL    wallet.PnL          `json:"pnl"`
}

// Config holds engine tunables. The chance fields drive the simulated
// market activity per tick and only apply in synthetic mode.
type Config struct {
	// BookRefreshChance is the per-tick probability of regenerating the
	// synthetic book.
	BookRefreshChance float64

	// TapeTradeChance is the per-tick probability of printing a simulated
	// trade on the tape.
	TapeTradeChance float64

	// TapeAmountMax scales the random amount of a simulated tape trade.
	TapeAmountMax float64
}

// Engine owns the aggregator and the latest book snapshot. All samples are
// consumed by a single goroutine, so the aggregator and ledger never
// observe interleaved partial updates.
type Engine struct {
	cfg    Config
	feed   market.Feed
	agg    *market.Aggregator
	tape   *market.Tape
	ledger *wallet.Ledger
	rng    *rand.Rand
	logger *slog.Logger

	// exactly one of these is set, per feed mode
	synthBook *market.SyntheticBook
	depth     DepthSource

	publisher Publisher // optional

	mu        sync.RWMutex
	lastPrice float64
	lastBook  market.BookSnapshot

	subMu sync.Mutex
	subs  map[chan Update]struct{}
}

// New creates an engine in synthetic mode. rng drives the per-tick
// activity decisions; inject a seeded generator for deterministic runs.
func New(cfg Config, feed market.Feed, agg *market.Aggregator, book *market.SyntheticBook,
	tape *market.Tape, ledger *wallet.Ledger, rng *rand.Rand, logger *slog.Logger) *Engine {
	e := newEngine(cfg, feed, agg, tape, ledger, rng, logger)
	e.synthBook = book
	return e
}

// NewLive creates an engine in live mode, refreshing the book from depth.
func NewLive(cfg Config, feed market.Feed, agg *market.Aggregator, depth DepthSource,
	tape *market.Tape, ledger *wallet.Ledger, rng *rand.Rand, logger *slog.Logger) *Engine {
	e := newEngine(cfg, feed, agg, tape, ledger, rng, logger)
	e.depth = depth
	return e
}

func newEngine(cfg Config, feed market.Feed, agg *market.Aggregator, tape *market.Tape,
	ledger *wallet.Ledger, rng *rand.Rand, logger *slog.Logger) *Engine {
	if cfg.BookRefreshChance == 0 {
		cfg.BookRefreshChance = 0.7
	}
	if cfg.TapeTradeChance == 0 {
		cfg.TapeTradeChance = 0.5
	}
	if cfg.TapeAmountMax == 0 {
		cfg.TapeAmountMax = 1
	}
	return &Engine{
		cfg:    cfg,
		feed:   feed,
		agg:    agg,
		tape:   tape,
		ledger: ledger,
		rng:    rng,
		logger: logger.With("component", "engine"),
		subs:   make(map[chan Update]struct{}),
	}
}

// SetPublisher attaches an optional fills/candles publisher.
func (e *Engine) SetPublisher(p Publisher) {
	e.publisher = p
}

// CombinePublishers fans out to several publishers, returning the first
// error. Nil entries are skipped, and a fully-nil combination yields nil so
// callers can wire zero, one or both sinks uniformly.
func CombinePublishers(publishers ...Publisher) Publisher {
	active := make(multiPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return active
}

type multiPublisher []Publisher

func (m multiPublisher) PublishFill(ctx context.Context, trade market.Trade) error {
	var firstErr error
	for _, p := range m {
		if err := p.PublishFill(ctx, trade); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m multiPublisher) PublishCandle(ctx context.Context, candle market.Candle) error {
	var firstErr error
	for _, p := range m {
		if err := p.PublishCandle(ctx, candle); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Backfill replays historical samples through the aggregator so the chart
// has sealed candles before the first live tick. Call before Run.
func (e *Engine) Backfill(samples []market.PriceSample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range samples {
		e.agg.Ingest(s)
		e.lastPrice = s.Price
	}
	if e.synthBook != nil && e.lastPrice > 0 {
		e.lastBook = e.synthBook.Snapshot(e.lastPrice)
	}
	e.logger.Info("backfill complete",
		"samples", len(samples), "sealed_candles", len(e.agg.Sealed()), "last_price", e.lastPrice)
}

// Run consumes the feed until the context is cancelled. It is the single
// ingestion point: both synthetic ticks and live stream messages arrive
// through the same channel.
func (e *Engine) Run(ctx context.Context) error {
	samples := make(chan market.PriceSample, 100)

	go func() {
		if err := e.feed.Run(ctx, samples); err != nil {
			e.logger.Error("feed stopped", "feed", e.feed.Name(), "error", err)
		}
	}()

	e.logger.Info("engine started", "feed", e.feed.Name())

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return nil
		case sample := <-samples:
			e.processSample(ctx, sample)
		}
	}
}

// processSample applies one tick: fold the sample into the candle series,
// refresh the book, maybe print a simulated trade, then notify
// subscribers.
func (e *Engine) processSample(ctx context.Context, sample market.PriceSample) {
	// The live fetch waits on the rate limiter and the network, so it runs
	// before taking the lock; readers see the previous book until the swap.
	var liveBook *market.BookSnapshot
	if e.depth != nil {
		if snap, err := e.fetchDepth(ctx); err != nil {
			e.logger.Debug("depth refresh failed, keeping previous book", "error", err)
		} else {
			liveBook = &snap
		}
	}

	e.mu.Lock()
	e.lastPrice = sample.Price
	sealed := e.agg.Ingest(sample)

	switch {
	case e.synthBook != nil:
		if e.rng.Float64() < e.cfg.BookRefreshChance {
			e.lastBook = e.synthBook.Snapshot(sample.Price)
		}
	case liveBook != nil:
		e.lastBook = *liveBook
	}

	if e.synthBook != nil && e.rng.Float64() < e.cfg.TapeTradeChance {
		side := market.SideBuy
		if e.rng.Float64() < 0.5 {
			side = market.SideSell
		}
		// Simulated market prints bypass the wallet's balance checks.
		e.tape.Record(market.Trade{
			ID:     uuid.NewString(),
			Time:   sample.Time,
			Price:  sample.Price,
			Amount: e.rng.Float64() * e.cfg.TapeAmountMax,
			Side:   side,
		})
	}

	current, _ := e.agg.Current()
	book := e.lastBook
	e.mu.Unlock()

	if sealed != nil && e.publisher != nil {
		if err := e.publisher.PublishCandle(ctx, *sealed); err != nil {
			e.logger.Warn("failed to publish sealed candle", "open_time", sealed.OpenTime, "error", err)
		}
	}

	update := Update{
		Price:  sample.Price,
		Candle: current,
		Book:   book,
		Tape:   e.tape.Recent(),
	}
	if equity, err := e.ledger.Equity(sample.Price); err == nil {
		update.Equity = equity
	}
	if pnl, err := e.ledger.PnL(sample.Price); err == nil {
		update.PnL = pnl
	}
	e.broadcast(update)
}

// fetchDepth pulls a live depth snapshot with a bounded wait. Called
// without holding e.mu.
func (e *Engine) fetchDepth(ctx context.Context) (market.BookSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, depthRefreshTimeout)
	defer cancel()

	return e.depth.Snapshot(fetchCtx)
}

// ExecuteOrder fills a user order against the given price, falling back to
// the last feed price when price is zero (market-style order). Successful
// fills are forwarded to the publisher.
func (e *Engine) ExecuteOrder(ctx context.Context, side market.Side, price, amount float64) (market.Trade, error) {
	if price == 0 {
		price = e.LastPrice()
	}

	trade, err := e.ledger.ExecuteOrder(ctx, side, price, amount)
	if err != nil {
		return market.Trade{}, err
	}

	if e.publisher != nil {
		if perr := e.publisher.PublishFill(ctx, trade); perr != nil {
			e.logger.Warn("failed to publish fill", "trade_id", trade.ID, "error", perr)
		}
	}
	return trade, nil
}

// LastPrice returns the most recent feed price, zero before the first
// sample.
func (e *Engine) LastPrice() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastPrice
}

// Candles returns the sealed history plus the in-progress candle, oldest
// first.
func (e *Engine) Candles() []market.Candle {
	e.mu.RLock()
	defer e.mu.RUnlock()

	candles := e.agg.Sealed()
	if current, ok := e.agg.Current(); ok {
		candles = append(candles, current)
	}
	return candles
}

// Book returns the latest depth snapshot.
func (e *Engine) Book() market.BookSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastBook
}

// Tape returns recent trades, newest first.
func (e *Engine) Tape() []market.Trade {
	return e.tape.Recent()
}

// Ledger exposes the wallet for query handlers.
func (e *Engine) Ledger() *wallet.Ledger {
	return e.ledger
}

// Subscribe registers a tick-update subscriber. The returned cancel
// function must be called to release it. Slow subscribers miss updates
// rather than blocking the engine.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 8)

	e.subMu.Lock()
	e.subs[ch] = struct{}{}
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		delete(e.subs, ch)
		e.subMu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcast(update Update) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for ch := range e.subs {
		select {
		case ch <- update:
		default:
		}
	}
}
