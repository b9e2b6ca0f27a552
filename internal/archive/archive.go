// Package archive persists sealed candles and executed fills to ClickHouse
// for offline analysis. The archive is optional; when no DSN is configured
// the engine simply runs without it.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/clickhouse"
	"gorm.io/gorm"

	"github.com/nexustrade/paperdesk/internal/market"
)

// Archive writes rows through GORM. It satisfies the engine's publisher
// contract so it can sit next to the Kafka pipeline on the same hook.
type Archive struct {
	db     *gorm.DB
	symbol string
	logger *slog.Logger
}

// New opens a ClickHouse connection and creates the candle and fill tables
// if they do not exist.
func New(dsn, symbol string, logger *slog.Logger) (*Archive, error) {
	db, err := gorm.Open(clickhouse.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := db.AutoMigrate(&CandleRow{}, &FillRow{}); err != nil {
		return nil, fmt.Errorf("migrate archive tables: %w", err)
	}
	return &Archive{
		db:     db,
		symbol: symbol,
		logger: logger.With("component", "archive"),
	}, nil
}

// PublishCandle stores one sealed candle.
func (a *Archive) PublishCandle(ctx context.Context, candle market.Candle) error {
	row := CandleRow{
		Symbol:     a.symbol,
		OpenTime:   time.Unix(candle.OpenTime, 0).UTC(),
		Open:       candle.Open,
		High:       candle.High,
		Low:        candle.Low,
		Close:      candle.Close,
		Volume:     candle.Volume,
		InsertedAt: time.Now().UTC(),
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("archive candle %d: %w", candle.OpenTime, err)
	}
	return nil
}

// PublishFill stores one executed fill.
func (a *Archive) PublishFill(ctx context.Context, trade market.Trade) error {
	row := FillRow{
		TradeID:     trade.ID,
		Symbol:      a.symbol,
		Side:        string(trade.Side),
		Price:       trade.Price,
		BaseAmount:  trade.Amount,
		QuoteAmount: trade.Price * trade.Amount,
		EventTime:   time.Unix(trade.Time, 0).UTC(),
		InsertedAt:  time.Now().UTC(),
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("archive fill %s: %w", trade.ID, err)
	}
	return nil
}

// RecentCandles returns the latest stored candles for the archive's symbol,
// oldest first.
func (a *Archive) RecentCandles(ctx context.Context, limit int) ([]CandleRow, error) {
	var rows []CandleRow
	err := a.db.WithContext(ctx).
		Where("symbol = ?", a.symbol).
		Order("open_time DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query archived candles: %w", err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// Close releases the underlying connection pool.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
