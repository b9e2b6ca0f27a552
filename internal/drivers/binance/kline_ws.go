package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/nexustrade/paperdesk/internal/market"
	"github.com/nexustrade/paperdesk/internal/stream"
)

// KlineFeed turns the kline stream into a sequence of price samples: each
// update yields one sample at the candle's current close. Exchange-reported
// candle volume is cumulative, so the feed emits per-sample deltas, clamped
// at zero so downstream volume never decreases.
//
// Implements market.Feed. Reconnection is handled by the stream client
// with exponential backoff; while disconnected no samples are emitted and
// consumers keep operating on their last-known state.
type KlineFeed struct {
	symbol   string
	interval string
	logger   *slog.Logger

	// cumulative volume tracking for the current exchange bucket
	lastBucket int64
	lastVolume float64
}

// NewKlineFeed creates a live feed for one symbol (e.g. "BTCUSDT").
func NewKlineFeed(symbol, interval string, logger *slog.Logger) *KlineFeed {
	if interval == "" {
		interval = DefaultInterval
	}
	return &KlineFeed{
		symbol:   symbol,
		interval: interval,
		logger:   logger.With("feed", "binance-kline", "symbol", symbol),
	}
}

// Name returns the feed identifier used for logging.
func (f *KlineFeed) Name() string { return "binance-kline" }

// Run connects to the kline stream and emits samples until the context is
// cancelled.
func (f *KlineFeed) Run(ctx context.Context, out chan<- market.PriceSample) error {
	url := fmt.Sprintf("%s/%s@kline_%s", wsBaseURL, strings.ToLower(f.symbol), f.interval)

	client := stream.NewWSClient(
		// The exchange pings from the server side.
		stream.WSConfig{URL: url, PingDisabled: true},
		stream.WSHandler{
			OnMessage: func(_ *websocket.Conn, msg []byte) error {
				sample, err := f.parseKline(msg)
				if err != nil {
					return fmt.Errorf("parse kline: %w", err)
				}
				select {
				case out <- sample:
				case <-ctx.Done():
				}
				return nil
			},
		},
		f.logger,
	)

	return client.Run(ctx)
}

// wsKline mirrors the fields of the stream message we consume.
type wsKline struct {
	EventTime int64 `json:"E"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
	} `json:"k"`
}

// parseKline converts one stream message into a price sample.
func (f *KlineFeed) parseKline(msg []byte) (market.PriceSample, error) {
	var k wsKline
	if err := json.Unmarshal(msg, &k); err != nil {
		return market.PriceSample{}, err
	}
	if k.EventTime <= 0 || k.Kline.OpenTime <= 0 {
		return market.PriceSample{}, fmt.Errorf("missing timestamps")
	}

	price, err := strconv.ParseFloat(k.Kline.Close, 64)
	if err != nil {
		return market.PriceSample{}, fmt.Errorf("close %q: %v", k.Kline.Close, err)
	}
	if price <= 0 {
		return market.PriceSample{}, fmt.Errorf("non-positive close %f", price)
	}

	total, err := strconv.ParseFloat(k.Kline.Volume, 64)
	if err != nil {
		return market.PriceSample{}, fmt.Errorf("volume %q: %v", k.Kline.Volume, err)
	}

	return market.PriceSample{
		Time:   k.EventTime / 1000,
		Price:  price,
		Volume: f.volumeDelta(k.Kline.OpenTime, total),
	}, nil
}

// volumeDelta converts the cumulative candle volume into a per-sample
// increment. A new exchange bucket resets the baseline; a shrinking total
// (out-of-order update) yields zero rather than a negative delta.
func (f *KlineFeed) volumeDelta(bucket int64, total float64) float64 {
	defer func() {
		f.lastBucket = bucket
		f.lastVolume = total
	}()

	if bucket != f.lastBucket {
		return total
	}
	if delta := total - f.lastVolume; delta > 0 {
		return delta
	}
	return 0
}
