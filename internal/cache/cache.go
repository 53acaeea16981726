// Package cache holds the in-process copy of the remote record table.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"sheetledger/internal/core"
	ports "sheetledger/internal/sheets"

	"golang.org/x/sync/singleflight"
)

// RecordCache keeps the full record set in store order. Records are replaced
// wholesale; there is no partial update path.
//
// Reloads requested within the same generation share one fetch. Invalidate
// starts a new generation so that a reload requested after a mutation never
// joins a fetch that began before it. Every fetch is numbered when it starts
// and a result older than the last applied one is dropped.
type RecordCache struct {
	mu       sync.RWMutex
	records  []core.ExpenseRecord
	applied  uint64
	loadedAt time.Time

	seq          atomic.Uint64
	gen          atomic.Uint64
	group        singleflight.Group
	fetchTimeout time.Duration
}

// DefaultFetchTimeout bounds a shared fetch when no option overrides it.
const DefaultFetchTimeout = 30 * time.Second

type Option func(*RecordCache)

// WithFetchTimeout bounds each shared fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *RecordCache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func New(opts ...Option) *RecordCache {
	c := &RecordCache{fetchTimeout: DefaultFetchTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ReplaceAll discards the current contents and parses rows into records,
// numbering them from row 2.
func (c *RecordCache) ReplaceAll(rows []ports.RawRow) {
	c.apply(c.seq.Add(1), rows)
}

// Reload fetches the whole table and replaces the cache. On error the cache
// is left unchanged.
//
// The shared fetch is detached from every caller: it runs under its own
// fetch timeout and lands in the cache even when the caller that started it
// gives up. Each caller waits only as long as its own ctx allows.
func (c *RecordCache) Reload(ctx context.Context, reader ports.RecordReader) error {
	key := strconv.FormatUint(c.gen.Load(), 10)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		seq := c.seq.Add(1)
		rows, err := reader.FetchAll(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.apply(seq, rows)
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("reload records: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("reload records: %w", res.Err)
		}
		return nil
	}
}

// Invalidate marks the cached data as outdated so the next Reload starts a
// fresh fetch.
func (c *RecordCache) Invalidate() {
	c.gen.Add(1)
}

// apply installs rows if seq is newer than the last applied result and
// reports whether it did.
func (c *RecordCache) apply(seq uint64, rows []ports.RawRow) bool {
	records := make([]core.ExpenseRecord, len(rows))
	for i, raw := range rows {
		records[i] = ports.ParseRow(raw, i+core.FirstDataRow)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.applied {
		return false
	}
	c.applied = seq
	c.records = records
	c.loadedAt = time.Now()
	return true
}

// Snapshot returns a copy of the records in store order.
func (c *RecordCache) Snapshot() []core.ExpenseRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.ExpenseRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Lookup returns the record at the given positional row.
func (c *RecordCache) Lookup(row int) (core.ExpenseRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := row - core.FirstDataRow
	if i < 0 || i >= len(c.records) {
		return core.ExpenseRecord{}, false
	}
	return c.records[i], true
}

// Size returns the current number of records.
func (c *RecordCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// LoadedAt reports when data was last applied; zero until the first load.
func (c *RecordCache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
