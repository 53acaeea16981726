package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sheetledger/internal/core"
	ports "sheetledger/internal/sheets"
)

// SeedFile is the optional CSV read by NewFromFiles.
const SeedFile = "seed_records.csv"

// Store keeps rows in memory with the same positional semantics as a sheet:
// the first data row is row 2 and deleting a row shifts later rows up.
type Store struct {
	mu   sync.Mutex
	rows []ports.RawRow
}

var _ ports.Store = (*Store)(nil)

func New(rows ...ports.RawRow) *Store {
	s := &Store{}
	for _, r := range rows {
		s.rows = append(s.rows, cloneRow(r))
	}
	return s
}

// NewFromFiles seeds the store from base/seed_records.csv when present
// (date,category,amount,note; lines starting with # are skipped).
func NewFromFiles(base string) *Store {
	return New(readSeed(filepath.Join(base, SeedFile))...)
}

func (s *Store) FetchAll(_ context.Context) ([]ports.RawRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.RawRow, len(s.rows))
	for i, r := range s.rows {
		out[i] = cloneRow(r)
	}
	return out, nil
}

func (s *Store) Add(_ context.Context, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, ports.EntryRow(e))
	return nil
}

func (s *Store) Edit(_ context.Context, row int, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.index(row)
	if err != nil {
		return err
	}
	s.rows[i] = ports.EntryRow(e)
	return nil
}

func (s *Store) Delete(_ context.Context, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.index(row)
	if err != nil {
		return err
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	return nil
}

// Len returns the number of data rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Store) index(row int) (int, error) {
	i := row - core.FirstDataRow
	if i < 0 || i >= len(s.rows) {
		return 0, ports.ErrRowNotFound
	}
	return i, nil
}

func cloneRow(r ports.RawRow) ports.RawRow {
	return append(ports.RawRow(nil), r...)
}

func readSeed(path string) []ports.RawRow {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out []ports.RawRow
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Skip malformed lines; the seed is best-effort.
			continue
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := make(ports.RawRow, len(rec))
		for i, v := range rec {
			row[i] = strings.TrimSpace(v)
		}
		out = append(out, row)
	}
	return out
}
