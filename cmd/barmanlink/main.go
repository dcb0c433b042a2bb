package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/barmanlink/barmanlink/internal/app"
	"github.com/barmanlink/barmanlink/internal/catalog"
	"github.com/barmanlink/barmanlink/internal/observability"
	"github.com/barmanlink/barmanlink/internal/orders"
	"github.com/barmanlink/barmanlink/internal/platform/cache"
	"github.com/barmanlink/barmanlink/internal/platform/db"
	"github.com/barmanlink/barmanlink/internal/proofs"
	"github.com/barmanlink/barmanlink/internal/shared"
	"github.com/barmanlink/barmanlink/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	notifier := jobs.NewNotifier(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, logger, metrics)
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("notifier close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	catalogResolver := catalog.NewCache(catalog.NewRepository(pool), redisClient, cfg.CatalogCacheTTL)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, auditLogger, notifier)
	ordersHandler := orders.NewHandler(logger, ordersService, catalogResolver)

	proofStore, err := proofs.NewStore(cfg.ProofDir)
	if err != nil {
		logger.Error("init proof store", slog.Any("error", err))
		os.Exit(1)
	}
	proofsHandler := proofs.NewHandler(logger, proofStore)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Metrics:       metrics,
		OrdersHandler: ordersHandler,
		ProofsHandler: proofsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
