// Package market holds the core market-simulation types: price samples,
// OHLC candles, order book snapshots and the trade tape.
package market

// Side is the taker side of a trade or order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// PriceSample is a single timestamped price observation from a feed.
// Volume is the feed-dependent volume increment carried by this sample:
// a random increment for synthetic feeds, the exchange-reported delta for
// live feeds. It is never negative.
type PriceSample struct {
	Time   int64   `json:"time"` // Unix seconds
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Candle is an OHLC + volume summary of one fixed-width time bucket.
// Invariants: Low <= min(Open, Close), High >= max(Open, Close), Low <= High.
type Candle struct {
	OpenTime int64   `json:"open_time"` // bucket-aligned Unix seconds
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// BookSnapshot is a rendering-ready two-sided depth view.
// Bids are sorted descending by price, asks ascending.
// Whenever both sides are non-empty, Bids[0].Price < Asks[0].Price.
type BookSnapshot struct {
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
	Spread float64     `json:"spread"`
}

// Trade is a single executed or simulated trade. Immutable once created.
type Trade struct {
	ID     string  `json:"id"`
	Time   int64   `json:"time"` // Unix seconds
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
	Side   Side    `json:"side"`
}
