package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"sheetledger/internal/backend"
	"sheetledger/internal/cache"
	"sheetledger/internal/cli"
	apphttp "sheetledger/internal/http"
	"sheetledger/internal/log"
	"sheetledger/internal/middleware/ratelimit"
	"sheetledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	service := services.NewRecordService(res.Store, cache.New(cache.WithFetchTimeout(cfg.StoreTimeout)), res.Notifier, services.RecordServiceConfig{
		Timeout:     cfg.StoreTimeout,
		SettleDelay: cfg.StoreSettleDelay,
	}, logger)

	// A failed first load is not fatal: the page retries on first visit.
	if err := service.Reload(context.Background()); err != nil {
		logger.Warn("Initial record load failed", log.FieldError, err)
	}

	srv := apphttp.NewServer(cfg.Addr(), apphttp.Options{
		Service: service,
		Logger:  logger,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	})

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting sheetledger server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		log.FieldRecords, service.Size())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
