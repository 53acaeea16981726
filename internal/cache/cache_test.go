package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sheetledger/internal/core"
	ports "sheetledger/internal/sheets"
)

type readerFunc func(ctx context.Context) ([]ports.RawRow, error)

func (f readerFunc) FetchAll(ctx context.Context) ([]ports.RawRow, error) { return f(ctx) }

func staticReader(rows ...ports.RawRow) readerFunc {
	return func(context.Context) ([]ports.RawRow, error) { return rows, nil }
}

func TestReplaceAllKeepsOrderAndNumbersRows(t *testing.T) {
	c := New()
	c.ReplaceAll([]ports.RawRow{
		{"2024-02-01", "B", 2.0, ""},
		{"2024-01-01", "A", 1.0, "first"},
		{"2024-03-01", "C", "3,5", ""},
	})
	got := core.FilterByMonth(c.Snapshot(), "")
	wantCats := []string{"B", "A", "C"}
	if len(got) != len(wantCats) {
		t.Fatalf("expected %d records, got %d", len(wantCats), len(got))
	}
	for i, r := range got {
		if r.Row != i+2 {
			t.Errorf("record %d: row = %d, want %d", i, r.Row, i+2)
		}
		if r.Category != wantCats[i] {
			t.Errorf("record %d: category = %q, want %q", i, r.Category, wantCats[i])
		}
	}
	if got[2].Amount.Cents != 350 {
		t.Errorf("comma amount = %d, want 350", got[2].Amount.Cents)
	}

	c.ReplaceAll(nil)
	if c.Size() != 0 {
		t.Fatalf("ReplaceAll must discard prior contents")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := New()
	c.ReplaceAll([]ports.RawRow{{"2024-01-01", "A", 1.0}})
	snap := c.Snapshot()
	snap[0].Category = "changed"
	if r, _ := c.Lookup(2); r.Category != "A" {
		t.Fatalf("cache mutated through snapshot")
	}
}

func TestLookup(t *testing.T) {
	c := New()
	c.ReplaceAll([]ports.RawRow{{"2024-01-01", "A", 1.0}, {"2024-01-02", "B", 2.0}})
	if r, ok := c.Lookup(3); !ok || r.Category != "B" {
		t.Fatalf("lookup(3) = %+v, %v", r, ok)
	}
	for _, row := range []int{0, 1, 4} {
		if _, ok := c.Lookup(row); ok {
			t.Fatalf("lookup(%d) should miss", row)
		}
	}
}

func TestReloadErrorKeepsCache(t *testing.T) {
	c := New()
	if err := c.Reload(context.Background(), staticReader(ports.RawRow{"2024-01-01", "A", 1.0})); err != nil {
		t.Fatalf("reload: %v", err)
	}
	loadedAt := c.LoadedAt()
	if loadedAt.IsZero() {
		t.Fatal("LoadedAt should be set after a successful reload")
	}

	boom := errors.New("boom")
	c.Invalidate()
	err := c.Reload(context.Background(), readerFunc(func(context.Context) ([]ports.RawRow, error) {
		return nil, boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	if c.Size() != 1 || !c.LoadedAt().Equal(loadedAt) {
		t.Fatalf("failed reload must leave the cache unchanged")
	}
}

func TestStaleReloadIsDropped(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})
	slow := readerFunc(func(context.Context) ([]ports.RawRow, error) {
		close(started)
		<-release
		return []ports.RawRow{{"2024-01-01", "stale", 1.0}}, nil
	})

	done := make(chan error, 1)
	go func() { done <- c.Reload(context.Background(), slow) }()
	<-started

	// A mutation was acknowledged while the slow fetch was in flight.
	c.Invalidate()
	if err := c.Reload(context.Background(), staticReader(ports.RawRow{"2024-01-01", "fresh", 1.0})); err != nil {
		t.Fatalf("fresh reload: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("slow reload: %v", err)
	}
	snap := c.Snapshot()
	if len(snap) != 1 || snap[0].Category != "fresh" {
		t.Fatalf("stale result overwrote fresh data: %+v", snap)
	}
}

func TestConcurrentReloadsShareFetch(t *testing.T) {
	c := New()
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	reader := readerFunc(func(context.Context) ([]ports.RawRow, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return []ports.RawRow{{"2024-01-01", "A", 1.0}}, nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Reload(context.Background(), reader)
	}()
	<-started
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Reload(context.Background(), reader)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("expected a single shared fetch, got %d", n)
	}
	if c.Size() != 1 {
		t.Fatalf("expected cache to be populated")
	}
}

func TestReloadSurvivesFirstCallerCancel(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	reader := readerFunc(func(ctx context.Context) ([]ports.RawRow, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return []ports.RawRow{{"2024-01-01", "A", 1.0}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() { errA <- c.Reload(ctxA, reader) }()
	<-started

	errB := make(chan error, 1)
	go func() { errB <- c.Reload(context.Background(), reader) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: err = %v, want context.Canceled", err)
	}

	close(release)
	if err := <-errB; err != nil {
		t.Fatalf("live caller failed with the other caller's cancellation: %v", err)
	}
	if c.Size() != 1 {
		t.Fatalf("size = %d, want 1", c.Size())
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fetches = %d, want 1 shared fetch", n)
	}
}

func TestReloadLandsAfterCallerGivesUp(t *testing.T) {
	c := New()
	release := make(chan struct{})
	reader := readerFunc(func(context.Context) ([]ports.RawRow, error) {
		<-release
		return []ports.RawRow{{"2024-01-01", "A", 1.0}}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.Reload(ctx, reader); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for c.Size() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Size() != 1 {
		t.Fatal("detached fetch did not populate the cache")
	}
}

func TestFetchTimeoutBoundsSharedFetch(t *testing.T) {
	c := New(WithFetchTimeout(20 * time.Millisecond))
	reader := readerFunc(func(ctx context.Context) ([]ports.RawRow, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err := c.Reload(context.Background(), reader); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
