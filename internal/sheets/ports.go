package sheets

import (
	"context"
	"errors"

	"sheetledger/internal/core"
)

// ErrRowNotFound is returned when a positional row does not address a data row.
var ErrRowNotFound = errors.New("row not found")

// RawRow is one data row as returned by a store: [date, category, amount, note].
// Missing trailing cells are treated as empty.
type RawRow = []any

// Ports for outbound adapters.
type (
	// RecordReader returns the entire table minus the header row.
	RecordReader interface {
		FetchAll(ctx context.Context) ([]RawRow, error)
	}

	// RecordWriter mutates the table. A nil error means the store acknowledged
	// the change.
	RecordWriter interface {
		Add(ctx context.Context, e core.Entry) error
		Edit(ctx context.Context, row int, e core.Entry) error
		Delete(ctx context.Context, row int) error
	}

	Store interface {
		RecordReader
		RecordWriter
	}
)
