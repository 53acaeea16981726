package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sheetledger/internal/core"
	"sheetledger/internal/log"
	ports "sheetledger/internal/sheets"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores records in a local SQLite file. Positional rows
// follow insertion order: row 2 is the record with the smallest id.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// FetchAll implements sheets.RecordReader
func (r *SQLiteRepository) FetchAll(ctx context.Context) ([]ports.RawRow, error) {
	recs, err := r.queries.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	logger(ctx).DebugContext(ctx, "Records read from SQLite",
		log.FieldOperation, log.OpRead,
		log.FieldRecords, len(recs))
	out := make([]ports.RawRow, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ports.EntryRow(core.Entry{
			Date:     rec.Date,
			Category: rec.Category,
			Amount:   core.Money{Cents: rec.AmountCents},
			Note:     rec.Note,
		}))
	}
	return out, nil
}

// Add implements sheets.RecordWriter
func (r *SQLiteRepository) Add(ctx context.Context, e core.Entry) error {
	id, err := r.queries.CreateRecord(ctx, CreateRecordParams{
		Date:        e.Date,
		Category:    e.Category,
		AmountCents: e.Amount.Cents,
		Note:        e.Note,
	})
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	logger(ctx).DebugContext(ctx, "Record saved to SQLite",
		log.FieldOperation, log.OpCreate,
		"id", id,
		log.FieldAmountCents, e.Amount.Cents)
	return nil
}

// Edit implements sheets.RecordWriter
func (r *SQLiteRepository) Edit(ctx context.Context, row int, e core.Entry) error {
	id, err := r.idForRow(ctx, row)
	if err != nil {
		return err
	}
	err = r.queries.UpdateRecord(ctx, UpdateRecordParams{
		ID:          id,
		Date:        e.Date,
		Category:    e.Category,
		AmountCents: e.Amount.Cents,
		Note:        e.Note,
	})
	if err != nil {
		return fmt.Errorf("update record %d: %w", id, err)
	}
	return nil
}

// Delete implements sheets.RecordWriter
func (r *SQLiteRepository) Delete(ctx context.Context, row int) error {
	id, err := r.idForRow(ctx, row)
	if err != nil {
		return err
	}
	if err := r.queries.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	return nil
}

// ReplaceAll swaps the table contents for rows in a single transaction.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, rows []ports.RawRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteAllRecords(ctx); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	for i, raw := range rows {
		rec := ports.ParseRow(raw, i+core.FirstDataRow)
		if _, err := q.CreateRecord(ctx, CreateRecordParams{
			Date:        rec.Date,
			Category:    rec.Category,
			AmountCents: rec.Amount.Cents,
			Note:        rec.Note,
		}); err != nil {
			return fmt.Errorf("insert row %d: %w", rec.Row, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentStorage)
}

func (r *SQLiteRepository) idForRow(ctx context.Context, row int) (int64, error) {
	if row < core.FirstDataRow {
		return 0, ports.ErrRowNotFound
	}
	id, err := r.queries.RecordIDAtOffset(ctx, int64(row-core.FirstDataRow))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ports.ErrRowNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve row %d: %w", row, err)
	}
	return id, nil
}
