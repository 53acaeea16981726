package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sheetledger/internal/amqp"
	"sheetledger/internal/log"
	ports "sheetledger/internal/sheets"
)

// Mirror receives a full copy of the record table.
type Mirror interface {
	ReplaceAll(ctx context.Context, rows []ports.RawRow) error
}

// Consumer delivers change notifications until ctx is done.
type Consumer interface {
	ConsumeRecordsChanged(ctx context.Context, handler func(context.Context, *amqp.RecordsChangedMessage) error) error
}

// MirrorWorker copies the remote store into a local mirror. It resyncs on
// every change notification and on a fixed interval, as a backstop for
// lost messages.
type MirrorWorker struct {
	source   ports.RecordReader
	target   Mirror
	consumer Consumer // nil disables notifications
	interval time.Duration
	logger   *log.Logger

	mu       sync.Mutex
	lastSync time.Time
	rows     int
	syncs    int
}

func NewMirrorWorker(source ports.RecordReader, target Mirror, consumer Consumer, interval time.Duration, logger *log.Logger) *MirrorWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &MirrorWorker{
		source:   source,
		target:   target,
		consumer: consumer,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Sync reads every row from the source and replaces the mirror with them.
// Concurrent calls are serialized so the mirror never interleaves copies.
func (w *MirrorWorker) Sync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.source.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch records: %w", err)
	}
	if err := w.target.ReplaceAll(ctx, rows); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	w.lastSync = time.Now()
	w.rows = len(rows)
	w.syncs++

	w.logger.InfoContext(ctx, "Mirror synced",
		log.FieldOperation, log.OpMirror,
		log.FieldRecords, len(rows))
	return nil
}

// HandleRecordsChanged processes a single change notification from AMQP.
// The row is informational; the whole table is copied again.
func (w *MirrorWorker) HandleRecordsChanged(ctx context.Context, msg *amqp.RecordsChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing records changed message",
		"id", msg.ID.String(),
		"action", msg.Action,
		log.FieldRow, msg.Row)
	return w.Sync(ctx)
}

// Run syncs once, then keeps the mirror current until ctx is done. A
// consumer failure stops the worker; periodic sync failures are logged and
// retried on the next tick.
func (w *MirrorWorker) Run(ctx context.Context) error {
	if err := w.Sync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sync failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.Sync(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err)
				}
			}
		}
	})

	if w.consumer != nil {
		g.Go(func() error {
			return w.consumer.ConsumeRecordsChanged(ctx, w.HandleRecordsChanged)
		})
	} else {
		w.logger.Info("Skipping AMQP message consumption - no consumer configured")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Stats reports the last successful sync time, its row count and how many
// syncs have completed.
func (w *MirrorWorker) Stats() (lastSync time.Time, rows, syncs int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSync, w.rows, w.syncs
}
