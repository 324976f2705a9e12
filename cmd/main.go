package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/api"
	"github.com/JhonesBR/go-fxmatch/internal/config"
	"github.com/JhonesBR/go-fxmatch/internal/db"
	"github.com/JhonesBR/go-fxmatch/internal/engine"
	"github.com/JhonesBR/go-fxmatch/internal/events"
	"github.com/JhonesBR/go-fxmatch/internal/fee"
	"github.com/JhonesBR/go-fxmatch/internal/ledger"
	"github.com/JhonesBR/go-fxmatch/internal/logging"
	"github.com/JhonesBR/go-fxmatch/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, memory otherwise
	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection", zap.Error(err))
		}
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("database migration", zap.Error(err))
		}
		st = store.NewPostgresStore(pool)
	} else {
		logger.Warn("no database_url configured, state is kept in memory")
		st = store.NewMemoryStore()
	}
	defer st.Close()

	// Event sinks
	var publishers events.Multi
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publishers = append(publishers, kp)
	}
	if cfg.Journal.Path != "" {
		journal, err := events.OpenJournal(cfg.Journal.Path)
		if err != nil {
			logger.Fatal("open journal", zap.Error(err))
		}
		defer journal.Close()
		publishers = append(publishers, journal)
	}

	eng := engine.New(st, engine.Options{
		Currencies:    cfg.SupportedCurrencies,
		FeeAccount:    cfg.FeeAccount,
		Fees:          fee.NewRateSchedule(cfg.BuyFeeRate, cfg.SellFeeRate),
		ReserveBuffer: cfg.ReserveBuffer,
		MaxSlippage:   cfg.MaxSlippage,
		Publisher:     publishers,
		Logger:        logger,
	})
	if err := eng.Restore(ctx); err != nil {
		logger.Fatal("restore order books", zap.Error(err))
	}

	// Initialize a new Fiber app
	app := fiber.New()

	// Initialize the API routes
	api.InitializeRoutes(app, api.Dependencies{
		Engine: eng,
		Ledger: ledger.NewService(st, cfg.SupportedCurrencies, logger),
		Logger: logger,
	})

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
