// Package arango executes AQL statements on ArangoDB through its HTTP cursor API.
package arango

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/birdie-ai/arangoql/slog"
)

type (
	// Executor runs statements, [*Client] is the implementation that talks to ArangoDB.
	Executor interface {
		Execute(ctx context.Context, st aql.Statement) (Result, error)
	}

	// Result is the outcome of a statement, with all the batches of its cursor.
	Result struct {
		Rows []json.RawMessage
		// FullCount is the number of rows the statement would return with no LIMIT.
		// It is only set when the statement asks for it, like the ones built by
		// [aql.Query.BuildCount].
		FullCount      int64
		WritesExecuted int64
		WritesIgnored  int64
	}

	// Client is an ArangoDB HTTP client. It is safe for concurrent use.
	Client struct {
		doer     Doer
		base     string
		username string
		password string
	}

	// Option configures a [Client] created with [NewClient].
	Option func(*options)

	// Cursor iterates over the batches of a statement result.
	Cursor struct {
		c       *Client
		id      string
		hasMore bool
		batch   []json.RawMessage
		extra   cursorExtra
	}

	options struct {
		doer    Doer
		sleep   func(context.Context, time.Duration)
		onRetry func(status int, err error)
	}

	cursorRequest struct {
		Query     string         `json:"query"`
		BindVars  aql.Params     `json:"bindVars,omitempty"`
		BatchSize int            `json:"batchSize,omitempty"`
		Options   map[string]any `json:"options,omitempty"`
	}

	cursorResponse struct {
		Error        bool              `json:"error"`
		Code         int               `json:"code"`
		ErrorNum     int               `json:"errorNum"`
		ErrorMessage string            `json:"errorMessage"`
		ID           string            `json:"id"`
		HasMore      bool              `json:"hasMore"`
		Result       []json.RawMessage `json:"result"`
		Extra        cursorExtra       `json:"extra"`
	}

	cursorExtra struct {
		Stats struct {
			FullCount      int64 `json:"fullCount"`
			WritesExecuted int64 `json:"writesExecuted"`
			WritesIgnored  int64 `json:"writesIgnored"`
		} `json:"stats"`
	}
)

// WithHTTPClient sets the [Doer] used to send requests, [http.DefaultClient] by default.
// Retries are done on top of it.
func WithHTTPClient(d Doer) Option {
	return func(o *options) {
		o.doer = d
	}
}

// WithSleep sets the function used to sleep between retries, usually for testing.
func WithSleep(sleep func(context.Context, time.Duration)) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// NewClient creates a client for the given configuration.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	def := DefaultConfig()
	if cfg.Database == "" {
		cfg.Database = def.Database
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = def.Retry
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		doer:    http.DefaultClient,
		sleep:   defaultSleep,
		onRetry: sampleRetry,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		doer: &retrier{
			doer:     o.doer,
			timeout:  cfg.Timeout,
			min:      cfg.Retry.Min,
			max:      cfg.Retry.Max,
			attempts: cfg.Retry.Attempts,
			sleep:    o.sleep,
			onRetry:  o.onRetry,
		},
		base:     strings.TrimSuffix(cfg.Endpoint, "/") + "/_db/" + url.PathEscape(cfg.Database),
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

// Execute runs the statement and reads all the batches of its result.
func (c *Client) Execute(ctx context.Context, st aql.Statement) (Result, error) {
	cur, err := c.Cursor(ctx, st)
	if err != nil {
		return Result{}, err
	}
	rows, err := cur.All(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Rows:           rows,
		FullCount:      cur.extra.Stats.FullCount,
		WritesExecuted: cur.extra.Stats.WritesExecuted,
		WritesIgnored:  cur.extra.Stats.WritesIgnored,
	}, nil
}

// Cursor creates a server side cursor for the statement, the first batch of the result
// comes with it.
func (c *Client) Cursor(ctx context.Context, st aql.Statement) (*Cursor, error) {
	opts := maps.Clone(st.Options)
	if st.FullCount {
		if opts == nil {
			opts = map[string]any{}
		}
		opts["fullCount"] = true
	}
	res, err := c.send(ctx, http.MethodPost, "/_api/cursor", cursorRequest{
		Query:     st.Query,
		BindVars:  st.BindVars,
		BatchSize: st.BatchSize,
		Options:   opts,
	})
	if err != nil {
		return nil, err
	}
	return &Cursor{c: c, id: res.ID, hasMore: res.HasMore, batch: res.Result, extra: res.Extra}, nil
}

// Next fetches the next batch. It returns false when the cursor has no more batches.
func (cur *Cursor) Next(ctx context.Context) (bool, error) {
	if !cur.hasMore {
		cur.batch = nil
		return false, nil
	}
	res, err := cur.c.send(ctx, http.MethodPut, "/_api/cursor/"+url.PathEscape(cur.id), nil)
	if err != nil {
		return false, err
	}
	cur.hasMore = res.HasMore
	cur.batch = res.Result
	return true, nil
}

// Batch returns the rows of the current batch.
func (cur *Cursor) Batch() []json.RawMessage {
	return cur.batch
}

// All returns the rows of the current batch and of all the batches after it.
// If a batch can't be fetched the cursor is closed.
func (cur *Cursor) All(ctx context.Context) ([]json.RawMessage, error) {
	rows := cur.Batch()
	for {
		more, err := cur.Next(ctx)
		if err != nil {
			if cerr := cur.Close(ctx); cerr != nil {
				err = errors.Join(err, fmt.Errorf("closing cursor: %w", cerr))
			}
			return nil, err
		}
		if !more {
			return rows, nil
		}
		rows = append(rows, cur.Batch()...)
	}
}

// Close deletes the cursor on the server if it still has batches to be read.
func (cur *Cursor) Close(ctx context.Context) error {
	if !cur.hasMore {
		return nil
	}
	cur.hasMore = false
	_, err := cur.c.send(ctx, http.MethodDelete, "/_api/cursor/"+url.PathEscape(cur.id), nil)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body any) (cursorResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return cursorResponse{}, fmt.Errorf("arango: encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return cursorResponse{}, fmt.Errorf("arango: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	res, err := c.doer.Do(req)
	if err != nil {
		return cursorResponse{}, fmt.Errorf("arango: %s %s: %w", method, path, err)
	}
	data, err := io.ReadAll(res.Body)
	if cerr := res.Body.Close(); cerr != nil {
		slog.FromCtx(ctx).Debug("arango: closing response body", "error", cerr)
	}
	slog.FromCtx(ctx).Debug("arango: request done", "http_request", map[string]any{
		"method":        method,
		"url":           req.URL.String(),
		"status_code":   res.StatusCode,
		"response_size": len(data),
		"elapsed":       time.Since(start).String(),
	})
	if err != nil {
		return cursorResponse{}, fmt.Errorf("arango: reading response: %w", err)
	}

	var parsed cursorResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return cursorResponse{}, fmt.Errorf("arango: decoding response (status %d): %w: %s", res.StatusCode, err, data)
	}
	if parsed.Error || res.StatusCode >= http.StatusBadRequest {
		return cursorResponse{}, classify(&Error{
			Code:     res.StatusCode,
			ErrorNum: parsed.ErrorNum,
			Message:  parsed.ErrorMessage,
		})
	}
	return parsed, nil
}
