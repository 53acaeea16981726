package worker

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"sheetledger/internal/amqp"
	"sheetledger/internal/core"
	"sheetledger/internal/log"
	ports "sheetledger/internal/sheets"
	"sheetledger/internal/sheets/memory"
	"sheetledger/internal/storage"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newMirror(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

type failingSource struct{}

func (failingSource) FetchAll(context.Context) ([]ports.RawRow, error) {
	return nil, errors.New("store unavailable")
}

// scriptedConsumer delivers its messages, then blocks until cancelled.
type scriptedConsumer struct {
	msgs      []*amqp.RecordsChangedMessage
	delivered chan error
	err       error
}

func (c *scriptedConsumer) ConsumeRecordsChanged(ctx context.Context, handler func(context.Context, *amqp.RecordsChangedMessage) error) error {
	if c.err != nil {
		return c.err
	}
	for _, m := range c.msgs {
		c.delivered <- handler(ctx, m)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestSyncCopiesAllRows(t *testing.T) {
	source := memory.New(
		ports.RawRow{"2024-01-05", "Food", 12.5, "lunch"},
		ports.RawRow{"2024-01-09", "Rent", "500", ""},
	)
	mirror := newMirror(t)
	w := NewMirrorWorker(source, mirror, nil, time.Minute, testLogger())

	if err := w.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	rows, err := mirror.FetchAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("mirror rows = %d, want 2", len(rows))
	}
	rec := ports.ParseRow(rows[0], core.FirstDataRow)
	if rec.Category != "Food" || rec.Amount.Cents != 1250 {
		t.Errorf("first mirrored record = %+v", rec)
	}

	// a second sync replaces rather than appends
	_ = source.Delete(context.Background(), 2)
	if err := w.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n, _ := mirror.Count(context.Background()); n != 1 {
		t.Errorf("mirror count after delete = %d, want 1", n)
	}
	if _, rows, syncs := w.Stats(); rows != 1 || syncs != 2 {
		t.Errorf("stats rows=%d syncs=%d", rows, syncs)
	}
}

func TestSyncFailureKeepsMirror(t *testing.T) {
	mirror := newMirror(t)
	if err := mirror.Add(context.Background(), core.Entry{Date: "2024-01-01", Category: "Old", Amount: core.Money{Cents: 100}}); err != nil {
		t.Fatal(err)
	}
	w := NewMirrorWorker(failingSource{}, mirror, nil, time.Minute, testLogger())

	if err := w.Sync(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := mirror.Count(context.Background()); n != 1 {
		t.Errorf("mirror changed after failed fetch: count=%d", n)
	}
	if last, _, _ := w.Stats(); !last.IsZero() {
		t.Error("lastSync set after failure")
	}
}

func TestRunResyncsOnNotification(t *testing.T) {
	source := memory.New(ports.RawRow{"2024-01-05", "Food", 10.0, ""})
	mirror := newMirror(t)
	consumer := &scriptedConsumer{
		msgs:      []*amqp.RecordsChangedMessage{amqp.NewRecordsChangedMessage(amqp.ActionAdd, 0)},
		delivered: make(chan error, 1),
	}
	w := NewMirrorWorker(source, mirror, consumer, time.Hour, testLogger())

	// the notification arrives after a new row was added
	_ = source.Add(context.Background(), core.Entry{Date: "2024-01-06", Category: "Books", Amount: core.Money{Cents: 900}})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	select {
	case err := <-consumer.delivered:
		if err != nil {
			t.Fatalf("handler: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not handled")
	}
	if n, _ := mirror.Count(context.Background()); n != 2 {
		t.Errorf("mirror count = %d, want 2", n)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunStopsOnConsumerFailure(t *testing.T) {
	boom := errors.New("channel closed")
	w := NewMirrorWorker(memory.New(), newMirror(t), &scriptedConsumer{err: boom}, time.Hour, testLogger())

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("Run = %v, want %v", err, boom)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunPeriodicSync(t *testing.T) {
	source := memory.New()
	mirror := newMirror(t)
	w := NewMirrorWorker(source, mirror, nil, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, syncs := w.Stats(); syncs >= 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("periodic sync did not run")
}
