package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/nexustrade/paperdesk/configs"
	"github.com/nexustrade/paperdesk/internal/archive"
	"github.com/nexustrade/paperdesk/internal/drivers/binance"
	"github.com/nexustrade/paperdesk/internal/engine"
	"github.com/nexustrade/paperdesk/internal/market"
	"github.com/nexustrade/paperdesk/internal/pipeline"
	"github.com/nexustrade/paperdesk/internal/server"
	"github.com/nexustrade/paperdesk/internal/user"
	"github.com/nexustrade/paperdesk/internal/wallet"
)

func main() {
	cfg := configs.AppLoad()

	level := slog.LevelInfo
	if cfg.DebugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	migrateFlag := flag.Bool("migrate", false, "Run database migrations and exit")
	flag.Parse()

	db, err := gorm.Open(mysql.Open(cfg.UsersDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *migrateFlag {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get sql.DB: %v", err)
		}
		if err := goose.SetDialect("mysql"); err != nil {
			log.Fatalf("Goose: failed to set dialect: %v", err)
		}
		log.Println("Running database migrations...")
		if err := goose.Up(sqlDB, "migrations"); err != nil {
			log.Fatalf("Goose migration failed: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newWalletStore(cfg.Wallet)
	if err != nil {
		log.Fatalf("Failed to open wallet store: %v", err)
	}
	defer closeStore()

	state, err := wallet.LoadOrCreate(ctx, store,
		wallet.NewState(cfg.Wallet.InitialCash, cfg.Wallet.InitialAsset, cfg.Feed.InitialPrice), logger)
	if err != nil {
		log.Fatalf("Failed to load wallet state: %v", err)
	}

	tape := market.NewTape(cfg.Market.TapeCapacity)
	ledger := wallet.NewLedger(state, store, tape, logger)
	agg := market.NewAggregator(cfg.Market.BucketSeconds, cfg.Market.CandleHistory)

	seed := cfg.Feed.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var eng *engine.Engine
	switch cfg.Feed.Mode {
	case configs.FeedModeLive:
		feed := binance.NewKlineFeed(cfg.Feed.Symbol, intervalName(cfg.Market.BucketSeconds), logger)
		depth := binance.NewDepthClient(cfg.Feed.Symbol, cfg.Market.BookDepth, logger)
		eng = engine.NewLive(engine.Config{}, feed, agg, depth, tape, ledger,
			rand.New(rand.NewSource(seed)), logger)

	default:
		feed := market.NewSyntheticFeed(market.SyntheticConfig{
			InitialPrice: cfg.Feed.InitialPrice,
			Step:         cfg.Feed.Step,
			TickInterval: time.Duration(cfg.Feed.TickIntervalMS) * time.Millisecond,
		}, rand.New(rand.NewSource(seed)))
		book := market.NewSyntheticBook(market.BookConfig{
			Depth:     cfg.Market.BookDepth,
			Step:      cfg.Market.BookStep,
			Jitter:    cfg.Market.BookJitter,
			AmountMax: 2,
		}, rand.New(rand.NewSource(seed+1)))
		eng = engine.New(engine.Config{}, feed, agg, book, tape, ledger,
			rand.New(rand.NewSource(seed+2)), logger)

		// The same walk continues from the backfilled history into live ticks.
		span := time.Duration(cfg.Feed.BackfillHours) * time.Hour
		eng.Backfill(feed.History(time.Now(), span, time.Minute))
	}

	var publishers []engine.Publisher
	var candleArchive server.CandleArchive
	if cfg.Kafka.Enabled {
		kp := pipeline.NewKafkaPublisher(pipeline.Config{
			Broker:       cfg.Kafka.Broker,
			FillsTopic:   cfg.Kafka.FillsTopic,
			CandlesTopic: cfg.Kafka.CandlesTopic,
		}, cfg.Feed.Symbol, logger)
		defer kp.Close()
		publishers = append(publishers, kp)
	}
	if cfg.ArchiveDSN != "" {
		ar, err := archive.New(cfg.ArchiveDSN, cfg.Feed.Symbol, logger)
		if err != nil {
			logger.Error("archive disabled", "error", err)
		} else {
			defer ar.Close()
			publishers = append(publishers, ar)
			candleArchive = ar
		}
	}
	if p := engine.CombinePublishers(publishers...); p != nil {
		eng.SetPublisher(p)
	}

	users := user.NewService(user.NewGormRepository(db), user.NewSessionStore(user.DefaultSessionTTL), logger)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(&server.Config{
		Auth:   server.NewAuthHandler(users),
		Market: server.NewMarketHandler(eng, cfg.Feed.Symbol, intervalName(cfg.Market.BucketSeconds), candleArchive),
		Wallet: server.NewWalletHandler(eng),
		Stream: server.NewStreamHandler(eng, logger),
		Users:  users,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		if err := eng.Run(ctx); err != nil {
			logger.Error("engine exited", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("dashboard api listening", "port", cfg.ServerPort, "feed_mode", cfg.Feed.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}

// newWalletStore selects the persistence backend for wallet state.
func newWalletStore(cfg configs.WalletConfig) (wallet.Store, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		rs, err := wallet.NewRedisStore(cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { rs.Close() }, nil
	case "memory":
		return wallet.NewMemoryStore(), func() {}, nil
	default:
		return wallet.NewFileStore(cfg.StorePath), func() {}, nil
	}
}

// intervalName renders a candle bucket width as an exchange-style interval.
func intervalName(bucketSeconds int64) string {
	if bucketSeconds%3600 == 0 {
		return fmt.Sprintf("%dh", bucketSeconds/3600)
	}
	return fmt.Sprintf("%dm", bucketSeconds/60)
}
