package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/bootstrap"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/config"
	cronpkg "github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/cron"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/dedup"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/flow"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/notify"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/repository"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/router"
	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/service"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// --- Processed store (Redis with in-memory fallback) ---
	store, storeErr := dedup.NewProcessedStore(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		cfg.Flow.AttemptTTL,
	)
	if storeErr != nil {
		logger.Warn("Redis unavailable for finalization dedup, using in-memory fallback", zap.Error(storeErr))
	}

	// --- Backend clients ---
	tokenSource := func() string { return cfg.Backend.Token }
	orders := service.NewOrderClient(cfg.Backend.BaseURL, tokenSource)
	cart := service.NewCartClient(cfg.Backend.BaseURL, tokenSource)
	ipn := service.NewIPNMirror(cfg.Backend.BaseURL, logger)

	// --- Ops alerting (optional) ---
	var notifier flow.Notifier
	if ops := notify.New(cfg.Telegram.Token, cfg.Telegram.AlertChatID, logger); ops != nil {
		notifier = ops
	}

	// --- Finalization gateway ---
	finalizer := flow.NewFinalizer(orders, cart, store, ipn, notifier, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Routes ---
	router.Setup(e, cfg, db, finalizer, logger)

	// --- Cron Scheduler ---
	attempts := repository.NewAttemptRepository(db)
	scheduler := cronpkg.New(cfg, attempts, orders, finalizer, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting payment bridge server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
