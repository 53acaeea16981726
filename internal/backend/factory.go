// Package backend builds the record store selected by DATA_BACKEND, plus the
// optional change notifier.
package backend

import (
	"context"
	"fmt"

	"sheetledger/internal/amqp"
	"sheetledger/internal/config"
	"sheetledger/internal/log"
	"sheetledger/internal/services"
	ports "sheetledger/internal/sheets"
	"sheetledger/internal/sheets/appscript"
	gsheet "sheetledger/internal/sheets/google"
	"sheetledger/internal/sheets/memory"
	"sheetledger/internal/storage"
)

// Type represents the type of backend
type Type string

const (
	Memory    Type = config.BackendMemory
	AppScript Type = config.BackendAppScript
	Sheets    Type = config.BackendSheets
	SQLite    Type = config.BackendSQLite
)

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case Memory, AppScript, Sheets, SQLite:
		return true
	default:
		return false
	}
}

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result contains the store, an optional notifier and the cleanup function.
type Result struct {
	Store    ports.Store
	Notifier services.Notifier
	Cleanup  CleanupFunc
}

// Close runs Cleanup when set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	DataDirectory string // memory seed directory
	AppScriptURL  string
	SQLiteDBPath  string

	// AMQP is optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{
		Type:          t,
		DataDirectory: appConfig.DataDir,
		AppScriptURL:  appConfig.AppScriptURL,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		AMQPURL:       appConfig.AMQPURL,
		AMQPExchange:  appConfig.AMQPExchange,
		AMQPQueue:     appConfig.AMQPQueue,
	}, nil
}

// Factory creates backends from configuration.
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create builds the store for cfg.Type. An unreachable broker is logged and
// the backend runs without notifications.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch cfg.Type {
	case Memory:
		res = f.createMemory(cfg)
	case AppScript:
		res, err = f.createAppScript(cfg)
	case Sheets:
		res, err = f.createSheets(ctx)
	case SQLite:
		res, err = f.createSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			res.Notifier = client
			res.Cleanup = chain(res.Cleanup, client.Close)
		}
	}
	return res, nil
}

func (f *Factory) createMemory(cfg Config) *Result {
	dir := cfg.DataDirectory
	if dir == "" {
		dir = "data"
	}
	store := memory.NewFromFiles(dir)
	f.logger.Info("Initialized memory backend", "data_directory", dir, log.FieldRecords, store.Len())
	return &Result{Store: store}
}

func (f *Factory) createAppScript(cfg Config) (*Result, error) {
	client, err := appscript.New(cfg.AppScriptURL, appscript.WithLogger(f.logger.Logger.With(log.FieldComponent, log.ComponentSheets)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Apps Script client: %w", err)
	}
	f.logger.Info("Initialized Apps Script backend")
	return &Result{Store: client}, nil
}

func (f *Factory) createSheets(ctx context.Context) (*Result, error) {
	client, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend")
	return &Result{Store: client}, nil
}

func (f *Factory) createSQLite(cfg Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	return &Result{Store: repo, Cleanup: repo.Close}, nil
}

func chain(first, second CleanupFunc) CleanupFunc {
	if first == nil {
		return second
	}
	return func() error {
		err := second()
		if ferr := first(); err == nil {
			err = ferr
		}
		return err
	}
}
