// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Feed mode selects where price samples come from.
const (
	FeedModeSynthetic = "synthetic"
	FeedModeLive      = "live"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// ServerPort is the HTTP listen port for the dashboard API.
	ServerPort string

	// DebugMode enables gin debug logging when "true".
	DebugMode bool

	// UsersDSN is the MySQL connection string for the users store.
	UsersDSN string

	// ArchiveDSN is the ClickHouse connection string for the market-data
	// archive. Empty disables archiving.
	ArchiveDSN string

	Feed   FeedConfig
	Market MarketConfig
	Wallet WalletConfig
	Kafka  KafkaConfig
}

// FeedConfig holds price feed settings.
type FeedConfig struct {
	// Mode is "synthetic" or "live".
	Mode string

	// Symbol is the traded pair, e.g. "BTCUSDT".
	Symbol string

	// TickIntervalMS is the synthetic tick cadence in milliseconds.
	TickIntervalMS int

	// InitialPrice seeds the synthetic random walk.
	InitialPrice float64

	// Step is the absolute magnitude of one synthetic price move:
	// each tick moves the price by uniform(-Step/2, +Step/2).
	Step float64

	// Seed seeds the synthetic generator. 0 means derive from wall clock.
	Seed int64

	// BackfillHours is how much synthetic history to replay on boot.
	BackfillHours int
}

// MarketConfig holds candle, order book and trade tape settings.
type MarketConfig struct {
	// BucketSeconds is the candle bucket width (900 = 15m candles).
	BucketSeconds int64

	// CandleHistory is how many sealed candles to retain in memory.
	CandleHistory int

	// BookDepth is the number of levels per side in a book snapshot.
	BookDepth int

	// BookStep is the price distance between synthetic book levels.
	BookStep float64

	// BookJitter is the max random offset added to a synthetic level price.
	BookJitter float64

	// TapeCapacity is the max number of trades kept on the tape.
	TapeCapacity int
}

// WalletConfig holds paper-trading wallet settings.
type WalletConfig struct {
	// InitialCash is the quote-currency balance seeded on first load.
	InitialCash float64

	// InitialAsset is the base-currency position seeded on first load.
	InitialAsset float64

	// StoreBackend is "file", "redis" or "memory".
	StoreBackend string

	// StorePath is the JSON state file path for the file backend.
	StorePath string

	// RedisAddr is the Redis address for the redis backend.
	RedisAddr string
}

// KafkaConfig holds Kafka connection settings for the fills/candles publisher.
type KafkaConfig struct {
	// Enabled toggles publishing entirely.
	Enabled bool

	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// FillsTopic receives executed wallet orders.
	FillsTopic string

	// CandlesTopic receives sealed candles.
	CandlesTopic string
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DebugMode:  getEnv("DEBUG_MODE", "false") == "true",
		UsersDSN:   getUsersDSN(),
		ArchiveDSN: getEnv("CLICKHOUSE_DSN", ""),
		Feed: FeedConfig{
			Mode:           getEnv("FEED_MODE", FeedModeSynthetic),
			Symbol:         getEnv("FEED_SYMBOL", "BTCUSDT"),
			TickIntervalMS: getEnvInt("FEED_TICK_INTERVAL_MS", 1000),
			InitialPrice:   getEnvFloat("FEED_INITIAL_PRICE", 48234.50),
			Step:           getEnvFloat("FEED_STEP", 20),
			Seed:           int64(getEnvInt("FEED_SEED", 0)),
			BackfillHours:  getEnvInt("FEED_BACKFILL_HOURS", 24),
		},
		Market: MarketConfig{
			BucketSeconds: int64(getEnvInt("CANDLE_BUCKET_SECONDS", 900)),
			CandleHistory: getEnvInt("CANDLE_HISTORY", 96),
			BookDepth:     getEnvInt("BOOK_DEPTH", 8),
			BookStep:      getEnvFloat("BOOK_STEP", 5),
			BookJitter:    getEnvFloat("BOOK_JITTER", 2),
			TapeCapacity:  getEnvInt("TAPE_CAPACITY", 20),
		},
		Wallet: WalletConfig{
			InitialCash:  getEnvFloat("WALLET_INITIAL_CASH", 10000),
			InitialAsset: getEnvFloat("WALLET_INITIAL_ASSET", 0.15),
			StoreBackend: getEnv("WALLET_STORE", "file"),
			StorePath:    getEnv("WALLET_STORE_PATH", "wallet_state.json"),
			RedisAddr:    getEnv("WALLET_REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Enabled:      getEnv("KAFKA_ENABLED", "false") == "true",
			Broker:       getEnv("KAFKA_BROKER", "localhost:9092"),
			FillsTopic:   getEnv("KAFKA_FILLS_TOPIC", "paperdesk_fills"),
			CandlesTopic: getEnv("KAFKA_CANDLES_TOPIC", "paperdesk_candles"),
		},
	}
}

// getUsersDSN constructs the MySQL DSN from environment variables.
func getUsersDSN() string {
	dbUser := getEnv("MYSQL_USER", "root")
	dbPassword := getEnv("MYSQL_PASSWORD", "")
	dbHost := getEnv("MYSQL_HOST", "localhost")
	dbPort := getEnv("MYSQL_PORT", "3306")
	dbName := getEnv("MYSQL_DB", "paperdesk")

	return fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
