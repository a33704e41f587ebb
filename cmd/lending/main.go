package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/campus_lending/internal/app"
	"github.com/Freeeeeet/campus_lending/internal/auth"
	"github.com/Freeeeeet/campus_lending/internal/config"
	"github.com/Freeeeeet/campus_lending/internal/controller/httpapi"
	"github.com/Freeeeeet/campus_lending/internal/controller/telegram"
	"github.com/Freeeeeet/campus_lending/internal/metrics"
	"github.com/Freeeeeet/campus_lending/internal/model"
	"github.com/Freeeeeet/campus_lending/internal/realtime"
	"github.com/Freeeeeet/campus_lending/internal/repository"
	"github.com/Freeeeeet/campus_lending/internal/repository/memory"
	"github.com/Freeeeeet/campus_lending/internal/repository/migrations"
	"github.com/Freeeeeet/campus_lending/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type transactionStore interface {
	service.TransactionStore
	httpapi.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Lending service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting campus lending",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Duration("expiry_window", cfg.ExpiryWindow),
		zap.Bool("database", cfg.UseDatabase()),
		zap.Bool("telegram", cfg.TelegramEnabled()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var (
		store     transactionStore
		inventory service.Inventory
	)

	if cfg.UseDatabase() {
		pool, err := pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return err
		}
		logger.Info("Connected to database")

		if cfg.Migrations {
			if err := migrate(ctx, pool, logger); err != nil {
				return err
			}
		}

		store = repository.NewTransactionRepository(pool)
		inventory = repository.NewItemRepository(pool)
	} else {
		logger.Warn("DB_DSN not set, state is kept in memory only")
		store = memory.NewTransactionStore()
		inventory = memory.NewInventory(demoItems()...)
	}

	hub := realtime.NewHub(logger.Named("realtime"), m)

	lending := service.NewBorrowService(store, inventory, hub, logger.Named("lending"), service.Options{
		ExpiryWindow: cfg.ExpiryWindow,
		Metrics:      m,
	})
	defer lending.Close()

	restored, err := lending.RestoreTimers(ctx)
	if err != nil {
		return err
	}
	logger.Info("Expiry timers restored", zap.Int("pending", restored))

	scheduler := app.NewScheduler(lending, cfg.ExpirySweepInterval, cfg.OverdueCheckInterval, logger.Named("scheduler"))
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var notifier *telegram.Notifier
	if cfg.TelegramEnabled() {
		notifier, err = startTelegram(ctx, cfg, lending, hub, logger.Named("telegram"))
		if err != nil {
			// The chat mirror is optional; the desk keeps working without it
			logger.Error("Telegram mirror disabled", zap.Error(err))
		}
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret)
	server := httpapi.NewServer(lending, hub, tokens, store, reg, logger.Named("http"))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if notifier != nil {
		select {
		case <-notifier.Done():
		case <-shutdownCtx.Done():
			logger.Warn("Telegram notifier did not stop in time")
		}
	}

	return nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	migrator, err := app.NewMigrator(pool, migrations.FS, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}

func startTelegram(ctx context.Context, cfg *config.Config, lending *service.BorrowService, hub *realtime.Hub, logger *zap.Logger) (*telegram.Notifier, error) {
	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}

	controller := telegram.NewBotController(b, lending, cfg.TelegramAdminChatID, logger)
	if err := controller.RegisterHandlers(ctx); err != nil {
		return nil, err
	}

	notifier := telegram.NewNotifier(b, cfg.TelegramAdminChatID, logger)
	hub.Registry().JoinAdmin(notifier)

	go notifier.Run(ctx)
	go controller.Start(ctx)

	return notifier, nil
}

// demoItems stocks the in-memory inventory for local runs
func demoItems() []model.Item {
	return []model.Item{
		{Barcode: "BC-001", Name: "Projector", Brand: "Epson"},
		{Barcode: "BC-002", Name: "HDMI cable", Brand: "Vention"},
		{Barcode: "BC-003", Name: "Laser pointer", Brand: "Logitech"},
		{Barcode: "BC-004", Name: "Speaker", Brand: "JBL"},
	}
}
