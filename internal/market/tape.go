package market

import "sync"

// Tape is an append-only, capacity-bounded log of executed or simulated
// trades, newest first. Pure bookkeeping: it never validates trade legality.
// Safe for concurrent use.
type Tape struct {
	mu       sync.RWMutex
	capacity int
	trades   []Trade
}

// NewTape creates a tape that retains at most capacity trades.
func NewTape(capacity int) *Tape {
	if capacity <= 0 {
		capacity = 20
	}
	return &Tape{
		capacity: capacity,
		trades:   make([]Trade, 0, capacity),
	}
}

// Record prepends the trade, evicting the oldest entry once the tape
// exceeds its capacity.
func (t *Tape) Record(trade Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.trades = append([]Trade{trade}, t.trades...)
	if len(t.trades) > t.capacity {
		t.trades = t.trades[:t.capacity]
	}
}

// Recent returns a copy of the tape, newest first.
func (t *Tape) Recent() []Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Trade, len(t.trades))
	copy(out, t.trades)
	return out
}

// Len returns the number of trades currently on the tape.
func (t *Tape) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.trades)
}
