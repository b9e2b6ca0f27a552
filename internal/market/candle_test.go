package market

import (
	"math/rand"
	"testing"
	"time"
)

func TestAggregatorBootstrap(t *testing.T) {
	agg := NewAggregator(900, 96)

	if _, ok := agg.Current(); ok {
		t.Error("Expected no current candle before first sample")
	}

	sealed := agg.Ingest(PriceSample{Time: 100, Price: 50000, Volume: 1})
	if sealed != nil {
		t.Error("First sample must not seal a candle")
	}

	current, ok := agg.Current()
	if !ok {
		t.Fatal("Expected a current candle after first sample")
	}
	if current.OpenTime != 0 {
		t.Errorf("Expected bucket-aligned open time 0, got %d", current.OpenTime)
	}
	if current.Open != 50000 || current.High != 50000 || current.Low != 50000 || current.Close != 50000 {
		t.Errorf("Expected OHLC all 50000, got %+v", current)
	}
}

func TestAggregatorBucketRollover(t *testing.T) {
	// Samples at t=0,100,900,950 with bucket width 900 must produce two
	// candles: the first spanning [0,900), the second starting at 900.
	agg := NewAggregator(900, 96)

	samples := []PriceSample{
		{Time: 0, Price: 100, Volume: 1},
		{Time: 100, Price: 110, Volume: 1},
		{Time: 900, Price: 105, Volume: 1},
		{Time: 950, Price: 90, Volume: 1},
	}

	var sealedCount int
	for _, s := range samples {
		if closed := agg.Ingest(s); closed != nil {
			sealedCount++
			if closed.OpenTime != 0 {
				t.Errorf("Expected sealed candle open time 0, got %d", closed.OpenTime)
			}
			if closed.Open != 100 || closed.Close != 110 {
				t.Errorf("Expected sealed open=100 close=110, got %+v", closed)
			}
			if closed.Volume != 2 {
				t.Errorf("Expected sealed volume 2, got %f", closed.Volume)
			}
		}
	}

	if sealedCount != 1 {
		t.Fatalf("Expected exactly 1 sealed candle, got %d", sealedCount)
	}

	current, ok := agg.Current()
	if !ok {
		t.Fatal("Expected a current candle")
	}
	if current.OpenTime != 900 {
		t.Errorf("Expected second candle to start at 900, got %d", current.OpenTime)
	}
	if current.Open != 105 || current.Close != 90 || current.High != 105 || current.Low != 90 {
		t.Errorf("Unexpected second candle: %+v", current)
	}
	if len(agg.Sealed()) != 1 {
		t.Errorf("Expected 1 candle in history, got %d", len(agg.Sealed()))
	}
}

func TestAggregatorUpdatesCurrentCandle(t *testing.T) {
	agg := NewAggregator(60, 10)

	agg.Ingest(PriceSample{Time: 10, Price: 100})
	agg.Ingest(PriceSample{Time: 20, Price: 130, Volume: 3})
	agg.Ingest(PriceSample{Time: 30, Price: 80, Volume: 2})
	agg.Ingest(PriceSample{Time: 40, Price: 95})

	current, _ := agg.Current()
	if current.Open != 100 {
		t.Errorf("Expected open 100, got %f", current.Open)
	}
	if current.High != 130 {
		t.Errorf("Expected high 130, got %f", current.High)
	}
	if current.Low != 80 {
		t.Errorf("Expected low 80, got %f", current.Low)
	}
	if current.Close != 95 {
		t.Errorf("Expected close 95, got %f", current.Close)
	}
	if current.Volume != 5 {
		t.Errorf("Expected volume 5, got %f", current.Volume)
	}
}

func TestAggregatorHistoryBound(t *testing.T) {
	agg := NewAggregator(60, 3)

	// 10 buckets worth of samples, one each.
	for i := 0; i < 10; i++ {
		agg.Ingest(PriceSample{Time: int64(i * 60), Price: float64(100 + i)})
	}

	sealed := agg.Sealed()
	if len(sealed) != 3 {
		t.Fatalf("Expected history capped at 3, got %d", len(sealed))
	}
	// Oldest first: last three sealed buckets are 6,7,8 (bucket 9 is current).
	if sealed[0].OpenTime != 360 || sealed[2].OpenTime != 480 {
		t.Errorf("Unexpected retained buckets: %d..%d", sealed[0].OpenTime, sealed[2].OpenTime)
	}
}

func TestSealedCandleInvariants(t *testing.T) {
	// Drive the aggregator with a seeded random walk and check OHLC
	// invariants on everything it seals.
	rng := rand.New(rand.NewSource(7))
	feed := NewSyntheticFeed(SyntheticConfig{InitialPrice: 48234.50, Step: 20}, rng)
	agg := NewAggregator(900, 1000)

	now := time.Unix(1_700_000_000, 0)
	for _, s := range feed.History(now, 24*time.Hour, time.Minute) {
		agg.Ingest(s)
	}

	sealed := agg.Sealed()
	if len(sealed) < 90 {
		t.Fatalf("Expected ~95 sealed candles from 24h of 15m buckets, got %d", len(sealed))
	}

	var prevOpen int64 = -1
	for _, c := range sealed {
		if c.Low > c.Open || c.Low > c.Close {
			t.Errorf("Candle %d: low %f above open/close", c.OpenTime, c.Low)
		}
		if c.High < c.Open || c.High < c.Close {
			t.Errorf("Candle %d: high %f below open/close", c.OpenTime, c.High)
		}
		if c.Low > c.High {
			t.Errorf("Candle %d: low %f > high %f", c.OpenTime, c.Low, c.High)
		}
		if c.Volume < 0 {
			t.Errorf("Candle %d: negative volume %f", c.OpenTime, c.Volume)
		}
		if c.OpenTime <= prevOpen {
			t.Errorf("Candle open times not increasing: %d after %d", c.OpenTime, prevOpen)
		}
		prevOpen = c.OpenTime
	}
}
