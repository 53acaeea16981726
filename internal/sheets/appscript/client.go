// Package appscript talks to a spreadsheet published as an Apps Script web
// app. A single URL serves the whole table on GET and accepts add, edit and
// delete actions as JSON on POST.
package appscript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sheetledger/internal/core"
	ports "sheetledger/internal/sheets"

	"github.com/sony/gobreaker"
)

const (
	maxErrorBody = 512

	// Breaker settings: open after this many consecutive failures and
	// half-open after BreakerTimeout.
	BreakerFailures = 3
	BreakerTimeout  = 30 * time.Second
)

type Client struct {
	url     string
	hc      *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ ports.Store = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout, redirects followed).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the web app deployed at url.
func New(url string, opts ...Option) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("missing apps script url")
	}
	c := &Client{
		url:    url,
		hc:     &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "appscript",
		Timeout: BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= BreakerFailures
		},
		// A caller giving up is not a sign the endpoint is unhealthy.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

type (
	entryRequest struct {
		Action   string     `json:"action"`
		Row      int        `json:"row,omitempty"`
		Date     string     `json:"date"`
		Category string     `json:"category"`
		Amount   core.Money `json:"amount"`
		Note     string     `json:"note"`
	}

	deleteRequest struct {
		Action string `json:"action"`
		Row    int    `json:"row"`
	}

	// reply is the optional JSON object a script may answer mutations with.
	reply struct {
		Status  string `json:"status"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
)

// FetchAll GETs the table. Element 0 of the returned array is the header.
func (c *Client) FetchAll(ctx context.Context) ([]ports.RawRow, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("appscript fetch: %w", err)
	}
	return res.([]ports.RawRow), nil
}

func (c *Client) fetch(ctx context.Context) ([]ports.RawRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var table []ports.RawRow
	if err := dec.Decode(&table); err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	if len(table) <= 1 {
		return []ports.RawRow{}, nil
	}
	return table[1:], nil
}

func (c *Client) Add(ctx context.Context, e core.Entry) error {
	return c.post(ctx, "add", entryRequest{
		Action:   "add",
		Date:     e.Date,
		Category: e.Category,
		Amount:   e.Amount,
		Note:     e.Note,
	})
}

func (c *Client) Edit(ctx context.Context, row int, e core.Entry) error {
	if row < core.FirstDataRow {
		return ports.ErrRowNotFound
	}
	return c.post(ctx, "edit", entryRequest{
		Action:   "edit",
		Row:      row,
		Date:     e.Date,
		Category: e.Category,
		Amount:   e.Amount,
		Note:     e.Note,
	})
}

func (c *Client) Delete(ctx context.Context, row int) error {
	if row < core.FirstDataRow {
		return ports.ErrRowNotFound
	}
	return c.post(ctx, "delete", deleteRequest{Action: "delete", Row: row})
}

// post sends one mutation and returns once the script has answered.
func (c *Client) post(ctx context.Context, action string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("appscript %s: encode: %w", action, err)
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.send(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("appscript %s: %w", action, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody))
	}
	return replyError(respBody)
}

// replyError inspects a 2xx body. Anything that is not a JSON object is
// treated as success.
func replyError(body []byte) error {
	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return nil
	}
	switch {
	case r.Error != "":
		return fmt.Errorf("script error: %s", r.Error)
	case strings.EqualFold(r.Status, "error"):
		msg := r.Message
		if msg == "" {
			msg = "unknown"
		}
		return fmt.Errorf("script error: %s", msg)
	}
	return nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
