package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Record struct {
	ID          int64
	Date        string
	Category    string
	AmountCents int64
	Note        string
}

type CreateRecordParams struct {
	Date        string
	Category    string
	AmountCents int64
	Note        string
}

const createRecord = `
INSERT INTO records (date, category, amount_cents, note)
VALUES (?, ?, ?, ?)
`

func (q *Queries) CreateRecord(ctx context.Context, arg CreateRecordParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createRecord, arg.Date, arg.Category, arg.AmountCents, arg.Note)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listRecords = `
SELECT id, date, category, amount_cents, note
FROM records
ORDER BY id
`

func (q *Queries) ListRecords(ctx context.Context) ([]Record, error) {
	rows, err := q.db.QueryContext(ctx, listRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Record
	for rows.Next() {
		var i Record
		if err := rows.Scan(&i.ID, &i.Date, &i.Category, &i.AmountCents, &i.Note); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const recordIDAtOffset = `
SELECT id FROM records ORDER BY id LIMIT 1 OFFSET ?
`

func (q *Queries) RecordIDAtOffset(ctx context.Context, offset int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, recordIDAtOffset, offset)
	var id int64
	err := row.Scan(&id)
	return id, err
}

type UpdateRecordParams struct {
	ID          int64
	Date        string
	Category    string
	AmountCents int64
	Note        string
}

const updateRecord = `
UPDATE records SET date = ?, category = ?, amount_cents = ?, note = ?
WHERE id = ?
`

func (q *Queries) UpdateRecord(ctx context.Context, arg UpdateRecordParams) error {
	_, err := q.db.ExecContext(ctx, updateRecord, arg.Date, arg.Category, arg.AmountCents, arg.Note, arg.ID)
	return err
}

const deleteRecord = `
DELETE FROM records WHERE id = ?
`

func (q *Queries) DeleteRecord(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteRecord, id)
	return err
}

const deleteAllRecords = `
DELETE FROM records
`

func (q *Queries) DeleteAllRecords(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllRecords)
	return err
}

const countRecords = `
SELECT COUNT(*) FROM records
`

func (q *Queries) CountRecords(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRecords)
	var count int64
	err := row.Scan(&count)
	return count, err
}
