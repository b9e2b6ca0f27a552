package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/nexustrade/paperdesk/internal/market"
	"github.com/nexustrade/paperdesk/internal/wallet"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	feed := market.NewSyntheticFeed(market.SyntheticConfig{InitialPrice: 48234.50}, rand.New(rand.NewSource(1)))
	agg := market.NewAggregator(900, 96)
	book := market.NewSyntheticBook(market.BookConfig{Depth: 8, Step: 5, Jitter: 2, AmountMax: 2}, rand.New(rand.NewSource(2)))
	tape := market.NewTape(20)

	store := wallet.NewMemoryStore()
	state, err := wallet.LoadOrCreate(context.Background(), store,
		wallet.NewState(10000, 0.15, 48234.50), logger)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	ledger := wallet.NewLedger(state, store, tape, logger)

	return New(cfg, feed, agg, book, tape, ledger, rand.New(rand.NewSource(3)), logger)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestBackfillSealsHistory(t *testing.T) {
	e := newTestEngine(t, Config{})

	feed := market.NewSyntheticFeed(market.SyntheticConfig{InitialPrice: 48234.50}, rand.New(rand.NewSource(7)))
	e.Backfill(feed.History(time.Now(), 24*time.Hour, time.Minute))

	candles := e.Candles()
	// 24h of 15m buckets plus the in-progress one.
	if len(candles) < 90 {
		t.Fatalf("got %d candles after backfill, want at least 90", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime <= candles[i-1].OpenTime {
			t.Errorf("candles out of order at %d: %d then %d", i, candles[i-1].OpenTime, candles[i].OpenTime)
		}
	}
	if e.LastPrice() <= 0 {
		t.Errorf("LastPrice = %v after backfill, want positive", e.LastPrice())
	}
	if len(e.Book().Bids) == 0 {
		t.Error("book empty after backfill")
	}
}

func TestProcessSampleUpdatesState(t *testing.T) {
	e := newTestEngine(t, Config{BookRefreshChance: 1, TapeTradeChance: 1})

	now := time.Now().Unix()
	e.processSample(context.Background(), market.PriceSample{Time: now, Price: 48000, Volume: 1})

	if got := e.LastPrice(); got != 48000 {
		t.Errorf("LastPrice = %v, want 48000", got)
	}
	book := e.Book()
	if len(book.Bids) != 8 || len(book.Asks) != 8 {
		t.Errorf("book levels = %d/%d, want 8/8", len(book.Bids), len(book.Asks))
	}
	tape := e.Tape()
	if len(tape) != 1 {
		t.Fatalf("tape length = %d, want 1 simulated trade", len(tape))
	}
	if tape[0].Price != 48000 {
		t.Errorf("tape trade price = %v, want 48000", tape[0].Price)
	}
	if tape[0].Amount < 0 || tape[0].Amount >= 1 {
		t.Errorf("tape trade amount = %v, want in [0,1)", tape[0].Amount)
	}
}

func TestProcessSampleSkipsActivityWhenChanceZero(t *testing.T) {
	// Chance fields below any possible rng draw: book and tape stay put.
	e := newTestEngine(t, Config{BookRefreshChance: -1, TapeTradeChance: -1})

	e.processSample(context.Background(), market.PriceSample{Time: time.Now().Unix(), Price: 48000})

	if len(e.Book().Bids) != 0 {
		t.Error("book refreshed despite zero chance")
	}
	if len(e.Tape()) != 0 {
		t.Error("tape trade recorded despite zero chance")
	}
	if e.LastPrice() != 48000 {
		t.Errorf("LastPrice = %v, want 48000", e.LastPrice())
	}
}

func TestExecuteOrderUsesLastPriceWhenZero(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.processSample(context.Background(), market.PriceSample{Time: time.Now().Unix(), Price: 50000})

	trade, err := e.ExecuteOrder(context.Background(), market.SideBuy, 0, 0.1)
	if err != nil {
		t.Fatalf("ExecuteOrder: %v", err)
	}
	if trade.Price != 50000 {
		t.Errorf("trade price = %v, want last feed price 50000", trade.Price)
	}

	cash, asset := e.Ledger().Balances()
	if got := cash.InexactFloat64(); got != 5000 {
		t.Errorf("cash after buy = %v, want 5000", got)
	}
	if got := asset.InexactFloat64(); got != 0.25 {
		t.Errorf("asset after buy = %v, want 0.25", got)
	}
}

func TestExecuteOrderRejectsWithoutPrice(t *testing.T) {
	e := newTestEngine(t, Config{})

	_, err := e.ExecuteOrder(context.Background(), market.SideBuy, 0, 0.1)
	if !errors.Is(err, wallet.ErrPriceUnavailable) {
		t.Errorf("error = %v, want ErrPriceUnavailable before first tick", err)
	}
}

type capturingPublisher struct {
	fills   []market.Trade
	candles []market.Candle
}

func (p *capturingPublisher) PublishFill(_ context.Context, trade market.Trade) error {
	p.fills = append(p.fills, trade)
	return nil
}

func (p *capturingPublisher) PublishCandle(_ context.Context, candle market.Candle) error {
	p.candles = append(p.candles, candle)
	return nil
}

func TestSealedCandlesAndFillsArePublished(t *testing.T) {
	e := newTestEngine(t, Config{BookRefreshChance: -1, TapeTradeChance: -1})
	pub := &capturingPublisher{}
	e.SetPublisher(pub)

	ctx := context.Background()
	e.processSample(ctx, market.PriceSample{Time: 0, Price: 48000})
	e.processSample(ctx, market.PriceSample{Time: 900, Price: 48100})

	if len(pub.candles) != 1 {
		t.Fatalf("published candles = %d, want 1", len(pub.candles))
	}
	if pub.candles[0].OpenTime != 0 || pub.candles[0].Close != 48000 {
		t.Errorf("sealed candle = %+v, want open_time 0 close 48000", pub.candles[0])
	}

	if _, err := e.ExecuteOrder(ctx, market.SideSell, 48100, 0.05); err != nil {
		t.Fatalf("ExecuteOrder: %v", err)
	}
	if len(pub.fills) != 1 {
		t.Fatalf("published fills = %d, want 1", len(pub.fills))
	}
	if pub.fills[0].Side != market.SideSell {
		t.Errorf("published fill side = %q, want sell", pub.fills[0].Side)
	}
}

type blockingDepth struct {
	started chan struct{}
	release chan struct{}
	snap    market.BookSnapshot
	err     error
}

func (d *blockingDepth) Snapshot(ctx context.Context) (market.BookSnapshot, error) {
	close(d.started)
	select {
	case <-d.release:
	case <-ctx.Done():
		return market.BookSnapshot{}, ctx.Err()
	}
	return d.snap, d.err
}

func newLiveTestEngine(t *testing.T, depth DepthSource) *Engine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	feed := market.NewSyntheticFeed(market.SyntheticConfig{InitialPrice: 48234.50}, rand.New(rand.NewSource(1)))
	agg := market.NewAggregator(900, 96)
	tape := market.NewTape(20)

	store := wallet.NewMemoryStore()
	state, err := wallet.LoadOrCreate(context.Background(), store,
		wallet.NewState(10000, 0.15, 48234.50), logger)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	ledger := wallet.NewLedger(state, store, tape, logger)

	return NewLive(Config{}, feed, agg, depth, tape, ledger, rand.New(rand.NewSource(3)), logger)
}

func TestSlowDepthFetchDoesNotBlockReaders(t *testing.T) {
	depth := &blockingDepth{
		started: make(chan struct{}),
		release: make(chan struct{}),
		snap: market.BookSnapshot{
			Bids:   []market.BookLevel{{Price: 47990, Amount: 1}},
			Asks:   []market.BookLevel{{Price: 48010, Amount: 1}},
			Spread: 20,
		},
	}
	e := newLiveTestEngine(t, depth)

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.processSample(context.Background(), market.PriceSample{Time: time.Now().Unix(), Price: 48000})
	}()

	<-depth.started

	// The fetch is in flight; state reads must return without waiting on it.
	read := make(chan float64, 1)
	go func() { read <- e.LastPrice() }()
	select {
	case <-read:
	case <-time.After(2 * time.Second):
		t.Fatal("LastPrice blocked behind an in-flight depth fetch")
	}
	if got := e.Book(); len(got.Bids) != 0 {
		t.Errorf("book = %+v before fetch completed, want previous (empty) snapshot", got)
	}

	close(depth.release)
	<-done

	if got := e.Book(); len(got.Asks) != 1 || got.Asks[0].Price != 48010 {
		t.Errorf("book = %+v after fetch, want fetched snapshot", got)
	}
}

func TestFailedDepthFetchKeepsPreviousBook(t *testing.T) {
	ok := &blockingDepth{
		started: make(chan struct{}),
		release: make(chan struct{}),
		snap: market.BookSnapshot{
			Bids:   []market.BookLevel{{Price: 47990, Amount: 1}},
			Asks:   []market.BookLevel{{Price: 48010, Amount: 1}},
			Spread: 20,
		},
	}
	close(ok.release)
	e := newLiveTestEngine(t, ok)
	e.processSample(context.Background(), market.PriceSample{Time: time.Now().Unix(), Price: 48000})
	if len(e.Book().Asks) != 1 {
		t.Fatal("first snapshot not applied")
	}

	failing := &blockingDepth{
		started: make(chan struct{}),
		release: make(chan struct{}),
		err:     errors.New("exchange down"),
	}
	close(failing.release)
	e.depth = failing
	e.processSample(context.Background(), market.PriceSample{Time: time.Now().Unix(), Price: 48005})

	if got := e.Book(); len(got.Asks) != 1 || got.Asks[0].Price != 48010 {
		t.Errorf("book = %+v after failed refresh, want previous snapshot retained", got)
	}
	if e.LastPrice() != 48005 {
		t.Errorf("LastPrice = %v, want ticks to continue past failed refresh", e.LastPrice())
	}
}

func TestCombinePublishers(t *testing.T) {
	if got := CombinePublishers(nil, nil); got != nil {
		t.Errorf("CombinePublishers(nil, nil) = %v, want nil", got)
	}

	first := &capturingPublisher{}
	second := &capturingPublisher{}
	combined := CombinePublishers(first, nil, second)

	trade := market.Trade{ID: "t-1", Price: 48000, Amount: 0.1, Side: market.SideBuy}
	if err := combined.PublishFill(context.Background(), trade); err != nil {
		t.Fatalf("PublishFill: %v", err)
	}
	if len(first.fills) != 1 || len(second.fills) != 1 {
		t.Errorf("fills delivered = %d/%d, want 1/1", len(first.fills), len(second.fills))
	}
}

func TestSubscribeReceivesTickUpdates(t *testing.T) {
	e := newTestEngine(t, Config{BookRefreshChance: 1, TapeTradeChance: -1})

	ch, cancel := e.Subscribe()
	defer cancel()

	e.processSample(context.Background(), market.PriceSample{Time: time.Now().Unix(), Price: 48000})

	select {
	case update := <-ch:
		if update.Price != 48000 {
			t.Errorf("update price = %v, want 48000", update.Price)
		}
		if len(update.Book.Bids) != 8 {
			t.Errorf("update book bids = %d, want 8", len(update.Book.Bids))
		}
		if !update.Equity.IsPositive() {
			t.Errorf("update equity = %v, want positive", update.Equity)
		}
	default:
		t.Fatal("no update delivered to subscriber")
	}
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	e := newTestEngine(t, Config{BookRefreshChance: -1, TapeTradeChance: -1})

	ch, cancel := e.Subscribe()
	cancel()

	e.processSample(context.Background(), market.PriceSample{Time: time.Now().Unix(), Price: 48000})

	select {
	case <-ch:
		t.Error("cancelled subscriber still received an update")
	default:
	}
}
