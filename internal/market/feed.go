package market

import (
	"context"
	"math/rand"
	"time"
)

// Feed produces a monotonic sequence of timestamped price samples.
// Implementations must not mutate candles or wallet state; they only emit.
type Feed interface {
	// Name returns the feed identifier used for logging.
	Name() string

	// Run emits samples into out until the context is cancelled.
	// Delivery order on out is the serialization point for all downstream
	// consumers, so implementations must send from a single goroutine.
	Run(ctx context.Context, out chan<- PriceSample) error
}

// SyntheticConfig holds tunables for the random-walk feed.
type SyntheticConfig struct {
	// InitialPrice is the walk's starting point.
	InitialPrice float64

	// Step is the absolute magnitude of one move: each sample moves the
	// price by uniform(-Step/2, +Step/2).
	Step float64

	// VolumeStep scales the random volume increment carried per sample.
	VolumeStep float64

	// TickInterval is the emit cadence for Run.
	TickInterval time.Duration
}

// SyntheticFeed evolves the price as a bounded random walk. It is fully
// deterministic given a seeded generator; tests inject their own rand.Rand.
// Not safe for concurrent use: Next must be called from one goroutine.
type SyntheticFeed struct {
	cfg   SyntheticConfig
	rng   *rand.Rand
	price float64
}

// NewSyntheticFeed creates a synthetic feed. The generator is owned by the
// feed afterwards and must not be shared.
func NewSyntheticFeed(cfg SyntheticConfig, rng *rand.Rand) *SyntheticFeed {
	if cfg.Step == 0 {
		cfg.Step = 20
	}
	if cfg.VolumeStep == 0 {
		cfg.VolumeStep = 10
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	return &SyntheticFeed{
		cfg:   cfg,
		rng:   rng,
		price: cfg.InitialPrice,
	}
}

// Name returns the feed identifier used for logging.
func (s *SyntheticFeed) Name() string { return "synthetic" }

// Next advances the walk by one step and returns the sample at ts.
// A move that would take the price to zero or below is discarded, keeping
// every emitted price strictly positive.
func (s *SyntheticFeed) Next(ts int64) PriceSample {
	move := (s.rng.Float64() - 0.5) * s.cfg.Step
	if next := s.price + move; next > 0 {
		s.price = next
	}
	return PriceSample{
		Time:   ts,
		Price:  s.price,
		Volume: s.rng.Float64() * s.cfg.VolumeStep,
	}
}

// History generates samples covering the span ending at now, spaced by
// interval, advancing the walk as it goes. Used to backfill the chart with
// sealed candles on boot.
func (s *SyntheticFeed) History(now time.Time, span, interval time.Duration) []PriceSample {
	if interval <= 0 || span <= 0 {
		return nil
	}
	n := int(span / interval)
	samples := make([]PriceSample, 0, n)
	ts := now.Add(-span).Unix()
	step := int64(interval / time.Second)
	for i := 0; i < n; i++ {
		samples = append(samples, s.Next(ts))
		ts += step
	}
	return samples
}

// Run emits one sample per tick until the context is cancelled.
func (s *SyntheticFeed) Run(ctx context.Context, out chan<- PriceSample) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			sample := s.Next(now.Unix())
			select {
			case out <- sample:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
