package archive

import "time"

// CandleRow is one sealed candle persisted to ClickHouse.
type CandleRow struct {
	Symbol     string    `gorm:"column:symbol;primaryKey" json:"symbol"`
	OpenTime   time.Time `gorm:"column:open_time;primaryKey;type:DateTime" json:"open_time"`
	Open       float64   `gorm:"column:open;type:Float64" json:"open"`
	High       float64   `gorm:"column:high;type:Float64" json:"high"`
	Low        float64   `gorm:"column:low;type:Float64" json:"low"`
	Close      float64   `gorm:"column:close;type:Float64" json:"close"`
	Volume     float64   `gorm:"column:volume;type:Float64" json:"volume"`
	InsertedAt time.Time `gorm:"column:inserted_at;type:DateTime;default:now()" json:"inserted_at"`
}

func (CandleRow) TableName() string {
	return "candle"
}

func (CandleRow) TableOptions() string {
	return "ENGINE = ReplacingMergeTree() ORDER BY (symbol, open_time)"
}

// FillRow is one executed wallet fill persisted to ClickHouse.
type FillRow struct {
	TradeID     string    `gorm:"column:trade_id;primaryKey" json:"trade_id"`
	Symbol      string    `gorm:"column:symbol" json:"symbol"`
	Side        string    `gorm:"column:side" json:"side"`
	Price       float64   `gorm:"column:price;type:Float64" json:"price"`
	BaseAmount  float64   `gorm:"column:base_amount;type:Float64" json:"base_amount"`
	QuoteAmount float64   `gorm:"column:quote_amount;type:Float64" json:"quote_amount"`
	EventTime   time.Time `gorm:"column:event_time;type:DateTime" json:"event_time"`
	InsertedAt  time.Time `gorm:"column:inserted_at;type:DateTime;default:now()" json:"inserted_at"`
}

func (FillRow) TableName() string {
	return "fill"
}

func (FillRow) TableOptions() string {
	return "ENGINE = ReplacingMergeTree() ORDER BY (trade_id)"
}
