package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"daisycash/internal/amqp"
	"daisycash/internal/auth"
	"daisycash/internal/cache"
	"daisycash/internal/cli"
	"daisycash/internal/core"
	apphttp "daisycash/internal/http"
	applog "daisycash/internal/log"
	"daisycash/internal/middleware/ratelimit"
	"daisycash/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)
	cli.MustValidate(logger, cfg)

	res := cli.InitBackend(context.Background(), logger, cfg)

	// Change events are optional for the server: without a broker the mirror
	// is healed by the worker's periodic sweep.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled", "error", err)
		} else {
			amqpClient = c
			publisher = c
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	reportCache := cache.NewLRUCache[core.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(cfg.ReportCacheTTL)

	txs := services.NewTransactionService(res.Store, res.Blobs, publisher)
	reports := services.NewReportService(res.Store, txs, reportCache)
	authSvc := auth.NewService(res.Store, cfg.SessionSecret, cfg.SessionTTL)

	if cfg.AdminEmail != "" {
		if _, err := authSvc.EnsureUser(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Error("Failed to bootstrap admin user", "error", err)
			os.Exit(1)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:        res.Store,
		Auth:         authSvc,
		Transactions: txs,
		Reports:      reports,
		Blobs:        res.Blobs,
		Logger:       logger,
		CookieSecure: cfg.CookieSecure,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting daisycash server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"blob_backend", cfg.BlobBackend,
		"events", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
