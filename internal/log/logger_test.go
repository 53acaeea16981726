package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"info":  slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLoggerTagsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf}).WithComponent(ComponentCache)
	l.InfoContext(context.Background(), "hello", FieldRecords, 3)

	out := buf.String()
	if strings.Count(out, "component=cache") != 1 {
		t.Fatalf("expected a single component tag, got %q", out)
	}
	if !strings.Contains(out, "records=3") {
		t.Fatalf("missing field in %q", out)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithRecord(4, "", "", 0).
		WithError(errors.New("boom")).
		WithError(nil).
		WithOperation(OpDelete)
	if f[FieldRow] != 4 || f[FieldError] != "boom" || f[FieldOperation] != OpDelete {
		t.Fatalf("unexpected fields %v", f)
	}
	if _, ok := f[FieldCategory]; ok {
		t.Fatal("empty category should be skipped")
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Fatal("ToSlice should emit key/value pairs")
	}
}

func TestMiddlewareAttachesLoggerAndLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelDebug, Output: &buf})

	var got *Logger
	h := Middleware(base, func(*http.Request) string { return "req-1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/records", nil))

	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("expected http component logger in context, got %+v", got)
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "request_id=req-1", "status_code=422", "path=/records"} {
		if !strings.Contains(out, want) {
			t.Errorf("access log %q missing %q", out, want)
		}
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Logger == nil {
		t.Fatal("FromContext should fall back to the default logger")
	}
}
