// Package pipeline publishes executed fills and sealed candles to Kafka for
// downstream consumers. Publishing is best-effort: the trading path never
// blocks on the broker.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nexustrade/paperdesk/internal/market"
)

const writeTimeout = 5 * time.Second

// Config holds broker and topic settings.
type Config struct {
	Broker       string
	FillsTopic   string
	CandlesTopic string
}

// writer is the subset of kafka.Writer the publisher needs; swapped out in
// tests.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes fills and sealed candles as JSON messages, keyed by
// trade id and candle open time respectively.
type KafkaPublisher struct {
	fills   writer
	candles writer
	symbol  string
	logger  *slog.Logger
}

// NewKafkaPublisher creates a publisher with async batching writers.
func NewKafkaPublisher(cfg Config, symbol string, logger *slog.Logger) *KafkaPublisher {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
			Compression:  kafka.Zstd,
		}
	}
	return &KafkaPublisher{
		fills:   newWriter(cfg.FillsTopic),
		candles: newWriter(cfg.CandlesTopic),
		symbol:  symbol,
		logger:  logger.With("component", "pipeline"),
	}
}

// fillEnvelope is the wire schema for an executed fill.
type fillEnvelope struct {
	Symbol string       `json:"symbol"`
	Trade  market.Trade `json:"trade"`
}

// candleEnvelope is the wire schema for a sealed candle.
type candleEnvelope struct {
	Symbol string        `json:"symbol"`
	Candle market.Candle `json:"candle"`
}

// PublishFill writes one executed fill, keyed by trade id.
func (p *KafkaPublisher) PublishFill(ctx context.Context, trade market.Trade) error {
	value, err := json.Marshal(fillEnvelope{Symbol: p.symbol, Trade: trade})
	if err != nil {
		return fmt.Errorf("marshal fill %s: %w", trade.ID, err)
	}
	return p.write(ctx, p.fills, kafka.Message{Key: []byte(trade.ID), Value: value})
}

// PublishCandle writes one sealed candle, keyed by its open time so replays
// of the same bucket land on the same partition.
func (p *KafkaPublisher) PublishCandle(ctx context.Context, candle market.Candle) error {
	value, err := json.Marshal(candleEnvelope{Symbol: p.symbol, Candle: candle})
	if err != nil {
		return fmt.Errorf("marshal candle %d: %w", candle.OpenTime, err)
	}
	key := []byte(fmt.Sprintf("%s:%d", p.symbol, candle.OpenTime))
	return p.write(ctx, p.candles, kafka.Message{Key: key, Value: value})
}

func (p *KafkaPublisher) write(ctx context.Context, w writer, msg kafka.Message) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := w.WriteMessages(writeCtx, msg); err != nil && ctx.Err() == nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

// Close flushes and closes both writers.
func (p *KafkaPublisher) Close() error {
	var firstErr error
	for _, w := range []writer{p.fills, p.candles} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
