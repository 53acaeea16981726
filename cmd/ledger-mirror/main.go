package main

import (
	"context"
	"os"

	"sheetledger/internal/amqp"
	"sheetledger/internal/backend"
	"sheetledger/internal/cli"
	"sheetledger/internal/config"
	"sheetledger/internal/log"
	"sheetledger/internal/storage"
	"sheetledger/internal/worker"
)

// ledger-mirror copies the configured store into the SQLite file at
// SQLITE_DB_PATH, resyncing on change notifications and every
// MIRROR_INTERVAL.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.DataBackend == config.BackendSQLite {
		logger.Error("The sqlite backend cannot be mirrored into itself; choose memory, appscript or sheets")
		os.Exit(1)
	}

	logger.Info("Starting ledger-mirror", log.FieldBackend, cfg.DataBackend, "db_path", cfg.SQLiteDBPath)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The mirror consumes notifications instead of publishing them.
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer res.Close()

	mirror, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer mirror.Close()

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(context.Background(), cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	}

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, nil)

	w := worker.NewMirrorWorker(res.Store, mirror, consumer, cfg.MirrorInterval, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("Mirror worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker shutdown complete")
}
