package arango

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/birdie-ai/arangoql/slog"
)

// Doer sends HTTP requests, [*http.Client] is the usual implementation.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type (
	// retrier is a [Doer] that retries requests that failed on the network or
	// that got a status code that indicates a temporary condition on the server.
	// The request body is read in memory so it can be sent again.
	retrier struct {
		doer     Doer
		timeout  time.Duration
		min      time.Duration
		max      time.Duration
		attempts int
		sleep    func(context.Context, time.Duration)
		onRetry  func(status int, err error)
	}
	readerCloserCanceller struct {
		io.ReadCloser
		cancel context.CancelFunc
	}
)

var retryStatusCodes = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// errors that the http pkg gives no other way to detect but the message.
var retryErrorSuffixes = []string{
	"i/o timeout",
	"read: connection timed out",
	"connect: connection refused",
	"EOF",
	"write: broken pipe",
	"connection reset by peer",
	"server closed idle connection",
	"use of closed network connection",
	"Temporary failure in name resolution",
}

// ParseRetryAfter parses the Retry-After header of a response, that can be a number of
// seconds or an HTTP date.
func ParseRetryAfter(value string) (time.Duration, time.Time, error) {
	if value == "" {
		return 0, time.Time{}, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, time.Time{}, nil
	}
	if t, err := http.ParseTime(value); err == nil {
		return 0, t, nil
	}
	return 0, time.Time{}, fmt.Errorf("invalid Retry-After header: %s", value)
}

func (c *readerCloserCanceller) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}

func (r *retrier) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		if err := req.Body.Close(); err != nil {
			return nil, fmt.Errorf("closing request body: %w", err)
		}
	}

	ctx := req.Context()
	period := r.min
	wait := func(d time.Duration) {
		r.sleep(ctx, d)
		period = min(period*2, r.max)
	}

	for try := 0; ctx.Err() == nil; try++ {
		tryReq, cancel := r.newRequest(ctx, req, body)
		log := slog.FromCtx(ctx).With("request_url", tryReq.URL.String(), "try", try)
		canRetry := r.attempts == 0 || try < r.attempts

		res, err := r.doer.Do(tryReq)
		if err != nil {
			cancel()
			if !canRetry || !retryable(err) {
				log.Debug("arango: request failed", "error", err)
				return nil, err
			}
			log.Debug("arango: retrying request with error", "error", err, "sleep_period", period.String())
			r.onRetry(0, err)
			wait(period)
			continue
		}
		res.Body = &readerCloserCanceller{res.Body, cancel}

		if _, ok := retryStatusCodes[res.StatusCode]; !ok || !canRetry {
			return res, nil
		}

		r.onRetry(res.StatusCode, nil)
		if err := res.Body.Close(); err != nil {
			log.Debug("arango: closing response body while retrying", "error", err)
		}
		after, at, err := ParseRetryAfter(res.Header.Get("Retry-After"))
		switch {
		case err != nil:
			log.Warn("arango: parsing Retry-After header", "error", err)
		case after >= time.Second:
			period = min(after, r.max)
		case !at.IsZero() && time.Until(at) >= time.Second:
			period = min(time.Until(at), r.max)
		}
		log.Debug("arango: retrying request with error status code",
			"status_code", res.StatusCode, "sleep_period", period.String())
		wait(period)
	}

	slog.FromCtx(ctx).Debug("arango: stopping retry: context done", "error", ctx.Err())
	return nil, ctx.Err()
}

func (r *retrier) newRequest(ctx context.Context, req *http.Request, body []byte) (*http.Request, context.CancelFunc) {
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	if r.timeout == 0 {
		return req, func() {}
	}
	tryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	return req.Clone(tryCtx), cancel
}

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	if strings.Contains(msg, "http2: server sent GOAWAY and closed the connection") {
		return true
	}
	for _, suffix := range retryErrorSuffixes {
		if strings.HasSuffix(msg, suffix) {
			return true
		}
	}
	return false
}

func defaultSleep(ctx context.Context, period time.Duration) {
	sleepCtx, cancel := context.WithTimeout(ctx, period)
	defer cancel()
	<-sleepCtx.Done()
}
