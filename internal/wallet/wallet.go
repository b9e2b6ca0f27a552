// Package wallet implements the paper-trading ledger: cash and asset
// balances, market-style order execution against a reference price, and
// PnL accounting against a fixed initial baseline.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexustrade/paperdesk/internal/market"
)

// saveTimeout bounds every persistence write so a slow store can never
// block order execution indefinitely.
const saveTimeout = 5 * time.Second

var oneHundred = decimal.NewFromInt(100)

// PnL is profit-or-loss against the wallet's initial equity baseline.
type PnL struct {
	Absolute decimal.Decimal `json:"absolute"`
	Percent  decimal.Decimal `json:"percent"`
}

// Ledger owns WalletState exclusively. Every successful order mutates both
// balances atomically, records the fill on the tape and persists the new
// state. Safe for concurrent use: no reader ever observes cash debited
// without the asset credited, or vice versa.
type Ledger struct {
	mu     sync.Mutex
	state  State
	store  Store
	tape   *market.Tape
	logger *slog.Logger

	// dirty marks an unsaved state after a persistence failure; the next
	// mutation retries the write. In-memory state is never dropped.
	dirty bool

	now func() time.Time
}

// NewLedger creates a ledger over an already loaded (or freshly seeded)
// state. tape may be nil when fills should not appear on the public tape.
func NewLedger(state State, store Store, tape *market.Tape, logger *slog.Logger) *Ledger {
	if state.Trades == nil {
		state.Trades = []market.Trade{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		state:  state,
		store:  store,
		tape:   tape,
		logger: logger.With("component", "wallet"),
		now:    time.Now,
	}
}

// LoadOrCreate restores the wallet from the store, or seeds and persists
// the given default state on first-ever load.
func LoadOrCreate(ctx context.Context, store Store, seed State, logger *slog.Logger) (State, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load wallet state: %w", err)
	}
	if state != nil {
		if state.Trades == nil {
			state.Trades = []market.Trade{}
		}
		return *state, nil
	}

	if logger != nil {
		logger.Info("no persisted wallet, seeding defaults",
			"cash", seed.Cash, "asset_qty", seed.AssetQty, "initial_equity", seed.InitialEquity)
	}
	if err := store.Save(ctx, seed); err != nil {
		return State{}, fmt.Errorf("persist seeded wallet: %w", err)
	}
	return seed, nil
}

// ExecuteOrder fills a market-style order at the given reference price.
// Fills are synchronous and all-or-nothing: the order is either Filled
// (balances mutated, trade recorded and persisted) or Rejected with one of
// the wallet errors and no side effects.
func (l *Ledger) ExecuteOrder(ctx context.Context, side market.Side, price, amount float64) (market.Trade, error) {
	if !side.Valid() {
		return market.Trade{}, fmt.Errorf("%w: unknown side %q", ErrInvalidAmount, side)
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return market.Trade{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return market.Trade{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, price)
	}

	p := decimal.NewFromFloat(price)
	a := decimal.NewFromFloat(amount)
	cost := p.Mul(a)

	l.mu.Lock()
	defer l.mu.Unlock()

	switch side {
	case market.SideBuy:
		if cost.GreaterThan(l.state.Cash) {
			return market.Trade{}, fmt.Errorf("%w: required %s, available %s",
				ErrInsufficientFunds, cost, l.state.Cash)
		}
		l.state.Cash = l.state.Cash.Sub(cost)
		l.state.AssetQty = l.state.AssetQty.Add(a)
	case market.SideSell:
		if a.GreaterThan(l.state.AssetQty) {
			return market.Trade{}, fmt.Errorf("%w: requested %s, held %s",
				ErrInsufficientAsset, a, l.state.AssetQty)
		}
		l.state.AssetQty = l.state.AssetQty.Sub(a)
		l.state.Cash = l.state.Cash.Add(cost)
	}

	trade := market.Trade{
		ID:     uuid.NewString(),
		Time:   l.now().Unix(),
		Price:  price,
		Amount: amount,
		Side:   side,
	}
	l.state.Trades = append(l.state.Trades, trade)

	if l.tape != nil {
		l.tape.Record(trade)
	}
	l.persistLocked(ctx)

	return trade, nil
}

// persistLocked writes the current state to the store with a bounded wait.
// Failures are logged and retried on the next mutation; they never undo the
// in-memory mutation.
func (l *Ledger) persistLocked(ctx context.Context) {
	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	if err := l.store.Save(saveCtx, l.state.clone()); err != nil {
		l.dirty = true
		l.logger.Error("failed to persist wallet state, will retry on next mutation", "error", err)
		return
	}
	if l.dirty {
		l.logger.Info("wallet state persisted after earlier failure")
	}
	l.dirty = false
}

// Equity returns cash plus the mark-to-market value of the held asset.
func (l *Ledger) Equity(currentPrice float64) (decimal.Decimal, error) {
	if currentPrice <= 0 || math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrPriceUnavailable, currentPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equityLocked(decimal.NewFromFloat(currentPrice)), nil
}

func (l *Ledger) equityLocked(price decimal.Decimal) decimal.Decimal {
	return l.state.Cash.Add(l.state.AssetQty.Mul(price))
}

// PnL returns equity minus the fixed initial baseline, absolute and as a
// percentage of that baseline. Pure with respect to wallet state: calling it
// twice at the same price with no intervening order yields identical values.
func (l *Ledger) PnL(currentPrice float64) (PnL, error) {
	if currentPrice <= 0 || math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) {
		return PnL{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, currentPrice)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	absolute := l.equityLocked(decimal.NewFromFloat(currentPrice)).Sub(l.state.InitialEquity)
	percent := decimal.Zero
	if !l.state.InitialEquity.IsZero() {
		percent = absolute.Div(l.state.InitialEquity).Mul(oneHundred)
	}
	return PnL{Absolute: absolute, Percent: percent}, nil
}

// AmountForPercent sizes an order as a percentage of the spendable balance:
// pct% of cash/price for buys, pct% of the held position for sells.
func (l *Ledger) AmountForPercent(side market.Side, pct, currentPrice float64) (decimal.Decimal, error) {
	if !side.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown side %q", ErrInvalidAmount, side)
	}
	if currentPrice <= 0 || math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrPriceUnavailable, currentPrice)
	}
	if pct <= 0 || pct > 100 || math.IsNaN(pct) {
		return decimal.Zero, fmt.Errorf("%w: percent %v", ErrInvalidAmount, pct)
	}

	fraction := decimal.NewFromFloat(pct).Div(oneHundred)

	l.mu.Lock()
	defer l.mu.Unlock()

	if side == market.SideBuy {
		return l.state.Cash.Div(decimal.NewFromFloat(currentPrice)).Mul(fraction), nil
	}
	return l.state.AssetQty.Mul(fraction), nil
}

// State returns a deep copy of the wallet state.
func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.clone()
}

// Balances returns the current cash and asset balances.
func (l *Ledger) Balances() (cash, assetQty decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Cash, l.state.AssetQty
}
