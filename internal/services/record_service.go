package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sheetledger/internal/amqp"
	"sheetledger/internal/cache"
	"sheetledger/internal/core"
	"sheetledger/internal/log"
	ports "sheetledger/internal/sheets"
)

// ErrMutationFailed marks a store mutation that was not acknowledged.
var ErrMutationFailed = errors.New("mutation failed")

// Notifier announces table changes to other processes.
type Notifier interface {
	PublishRecordsChanged(ctx context.Context, action string, row int) error
}

// EntryInput is the raw entry form.
type EntryInput struct {
	Date     string
	Category string
	Amount   string
	Note     string
}

// EditInput is the raw edit form. The date is not editable.
type EditInput struct {
	Row      string
	Category string
	Amount   string
	Note     string
}

// RecordServiceConfig holds tuning knobs for store calls.
type RecordServiceConfig struct {
	// Timeout bounds each store call (default: 10s)
	Timeout time.Duration

	// SettleDelay waits between an acknowledged mutation and the reload, for
	// stores whose reads lag behind their writes (default: 0)
	SettleDelay time.Duration
}

// RecordService validates input, applies mutations to the store and keeps
// the cache in step with it.
type RecordService struct {
	store    ports.Store
	cache    *cache.RecordCache
	notifier Notifier
	config   RecordServiceConfig
	logger   *log.Logger
}

func NewRecordService(store ports.Store, c *cache.RecordCache, notifier Notifier, config RecordServiceConfig, logger *log.Logger) *RecordService {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RecordService{
		store:    store,
		cache:    c,
		notifier: notifier,
		config:   config,
		logger:   logger.WithComponent(log.ComponentRecords),
	}
}

// Records returns the cached records in store order.
func (s *RecordService) Records() []core.ExpenseRecord {
	return s.cache.Snapshot()
}

// Reload refreshes the cache from the store. Failures are logged and the
// previous records stay in place.
func (s *RecordService) Reload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	if err := s.cache.Reload(ctx, s.store); err != nil {
		s.logger.WithComponent(log.ComponentCache).ErrorContext(ctx, "Failed to reload records",
			log.NewFields().WithOperation(log.OpReload).WithError(err).ToSlice()...)
		return err
	}
	s.logger.DebugContext(ctx, "Records reloaded", log.FieldRecords, s.cache.Size())
	return nil
}

// ParseEntry validates an entry form without touching the store.
func ParseEntry(in EntryInput) (core.Entry, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Entry{}, err
	}
	e := core.Entry{
		Date:     strings.TrimSpace(in.Date),
		Category: strings.TrimSpace(in.Category),
		Amount:   amount,
		Note:     strings.TrimSpace(in.Note),
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	return e, nil
}

// ParseRow validates a positional row parameter.
func ParseRow(s string) (int, error) {
	row, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, core.ErrInvalidRow
	}
	if err := core.ValidateRow(row); err != nil {
		return 0, err
	}
	return row, nil
}

// Add appends a new record.
func (s *RecordService) Add(ctx context.Context, in EntryInput) error {
	e, err := ParseEntry(in)
	if err != nil {
		return err
	}
	err = s.mutate(ctx, amqp.ActionAdd, 0, func(ctx context.Context) error {
		return s.store.Add(ctx, e)
	})
	if err == nil {
		s.logger.InfoContext(ctx, "Record added",
			log.NewFields().WithOperation(log.OpCreate).WithRecord(0, e.Date, e.Category, e.Amount.Cents).ToSlice()...)
	}
	return err
}

// Edit replaces category, amount and note of the record at the given row.
// The date is taken from the cached record.
func (s *RecordService) Edit(ctx context.Context, in EditInput) error {
	row, err := ParseRow(in.Row)
	if err != nil {
		return err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return err
	}
	current, ok := s.cache.Lookup(row)
	if !ok {
		return ports.ErrRowNotFound
	}
	e := core.Entry{
		Date:     current.Date,
		Category: strings.TrimSpace(in.Category),
		Amount:   amount,
		Note:     strings.TrimSpace(in.Note),
	}
	err = s.mutate(ctx, amqp.ActionEdit, row, func(ctx context.Context) error {
		return s.store.Edit(ctx, row, e)
	})
	if err == nil {
		s.logger.InfoContext(ctx, "Record updated",
			log.NewFields().WithOperation(log.OpUpdate).WithRecord(row, e.Date, e.Category, e.Amount.Cents).ToSlice()...)
	}
	return err
}

// Delete removes the record at the given row. Later rows shift up.
func (s *RecordService) Delete(ctx context.Context, rowParam string) error {
	row, err := ParseRow(rowParam)
	if err != nil {
		return err
	}
	err = s.mutate(ctx, amqp.ActionDelete, row, func(ctx context.Context) error {
		return s.store.Delete(ctx, row)
	})
	if err == nil {
		s.logger.InfoContext(ctx, "Record deleted",
			log.NewFields().WithOperation(log.OpDelete).WithRecord(row, "", "", 0).ToSlice()...)
	}
	return err
}

// mutate runs op and waits for the store acknowledgement before reloading.
// The cache is reloaded even when op fails so the page shows the store's
// real state.
//
// ctx bounds the whole path. Once op is acknowledged the mutation counts as
// done: a deadline reached during the settle wait or the reload cuts them
// short without failing the call, and the detached fetch still lands in the
// cache afterwards.
func (s *RecordService) mutate(ctx context.Context, action string, row int, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	opErr := op(opCtx)
	cancel()

	if opErr != nil {
		s.logger.ErrorContext(ctx, "Store mutation failed",
			log.NewFields().WithOperation(action).WithRecord(row, "", "", 0).WithError(opErr).ToSlice()...)
	} else {
		s.notify(ctx, action, row)
		s.settle(ctx)
	}

	s.cache.Invalidate()
	_ = s.Reload(ctx)

	if opErr != nil {
		if errors.Is(opErr, ports.ErrRowNotFound) {
			return opErr
		}
		return fmt.Errorf("%w: %s: %w", ErrMutationFailed, action, opErr)
	}
	return nil
}

func (s *RecordService) notify(ctx context.Context, action string, row int) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishRecordsChanged(ctx, action, row); err != nil {
		s.logger.WithComponent(log.ComponentAMQP).WarnContext(ctx, "Failed to publish change notification",
			log.NewFields().WithOperation(action).WithError(err).ToSlice()...)
	}
}

// settle waits SettleDelay, or until ctx is done.
func (s *RecordService) settle(ctx context.Context) {
	if s.config.SettleDelay <= 0 {
		return
	}
	t := time.NewTimer(s.config.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Settle wait cut short",
			log.NewFields().WithOperation(log.OpReload).WithError(ctx.Err()).ToSlice()...)
	case <-t.C:
	}
}

// IsValidationError reports whether err was caused by bad user input.
func IsValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidBudget) ||
		errors.Is(err, core.ErrInvalidRow) ||
		errors.Is(err, core.ErrInvalidMonth)
}

// LoadedAt reports when the cache last loaded successfully; zero before the
// first load.
func (s *RecordService) LoadedAt() time.Time {
	return s.cache.LoadedAt()
}

// Size is the number of cached records.
func (s *RecordService) Size() int {
	return s.cache.Size()
}
