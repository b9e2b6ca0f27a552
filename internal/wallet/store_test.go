package wallet

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/nexustrade/paperdesk/internal/market"
)

func stateWithTrades() State {
	state := NewState(5000, 0.1, 50000)
	state.Trades = []market.Trade{
		{ID: "t1", Time: 1700000000, Price: 50000, Amount: 0.1, Side: market.SideBuy},
		{ID: "t2", Time: 1700000100, Price: 50500.25, Amount: 0.05, Side: market.SideSell},
	}
	return state
}

func assertRoundTrip(t *testing.T, loaded *State, original State) {
	t.Helper()
	if loaded == nil {
		t.Fatal("Expected state, got nil")
	}
	if !loaded.Cash.Equal(original.Cash) {
		t.Errorf("Cash mismatch: %s vs %s", loaded.Cash, original.Cash)
	}
	if !loaded.AssetQty.Equal(original.AssetQty) {
		t.Errorf("AssetQty mismatch: %s vs %s", loaded.AssetQty, original.AssetQty)
	}
	if !loaded.InitialEquity.Equal(original.InitialEquity) {
		t.Errorf("InitialEquity mismatch: %s vs %s", loaded.InitialEquity, original.InitialEquity)
	}
	if len(loaded.Trades) != len(original.Trades) {
		t.Fatalf("Trades length mismatch: %d vs %d", len(loaded.Trades), len(original.Trades))
	}
	for i := range loaded.Trades {
		if loaded.Trades[i] != original.Trades[i] {
			t.Errorf("Trade %d mismatch: %+v vs %+v", i, loaded.Trades[i], original.Trades[i])
		}
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if loaded, err := store.Load(ctx); err != nil || loaded != nil {
		t.Fatalf("Empty store must load (nil, nil), got %v / %v", loaded, err)
	}

	original := stateWithTrades()
	if err := store.Save(ctx, original); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	assertRoundTrip(t, loaded, original)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), StateKey+".json")
	store := NewFileStore(path)
	ctx := context.Background()

	if loaded, err := store.Load(ctx); err != nil || loaded != nil {
		t.Fatalf("Missing file must load (nil, nil), got %v / %v", loaded, err)
	}

	original := stateWithTrades()
	if err := store.Save(ctx, original); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	assertRoundTrip(t, loaded, original)
}

func TestStateSchemaUsesPlainNumbers(t *testing.T) {
	// The persisted document is {cash, assetQty, trades, initialEquity}
	// with balances as JSON numbers, not quoted strings.
	data, err := json.Marshal(stateWithTrades())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, key := range []string{"cash", "assetQty", "initialEquity", "trades"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("Missing key %q in persisted schema", key)
		}
	}
	if string(doc["cash"]) != "5000" {
		t.Errorf("Expected cash as plain number 5000, got %s", doc["cash"])
	}
}

func TestFileStoreSurvivesLedgerSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), StateKey+".json")
	ctx := context.Background()

	store := NewFileStore(path)
	state, err := LoadOrCreate(ctx, store, NewState(10000, 0, 50000), slog.Default())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ledger := NewLedger(state, store, nil, slog.Default())
	if _, err := ledger.ExecuteOrder(ctx, market.SideBuy, 50000, 0.1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// New session over the same file restores the mutated balances.
	restored, err := LoadOrCreate(ctx, NewFileStore(path), NewState(10000, 0, 50000), slog.Default())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := ledger.State()
	assertRoundTrip(t, &restored, expected)
}
