// Package upstream holds the HTTP plumbing shared by the TfL and Realtime
// Trains clients: a dedicated http.Client, outbound rate limiting, bounded
// retries and typed errors.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
)

const maxBodySize = 8 * 1024 * 1024

// Observer receives one call per upstream request attempt.
type Observer interface {
	ObserveUpstream(provider, endpoint, outcome string, seconds float64)
}

// NewHTTPClient returns a client with its own transport and an absolute
// per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 50
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Requester performs JSON GET requests against a single provider.
type Requester struct {
	Provider string
	Client   *http.Client
	Limiter  *rate.Limiter
	Logger   *slog.Logger
	Observer Observer
	Clock    clock.Clock

	// MaxRetries bounds retries of temporary failures. Zero disables them.
	MaxRetries uint64
	// RetryBase is the first backoff interval.
	RetryBase time.Duration
}

// GetJSON issues req, retrying temporary failures, and decodes the body
// into out. endpoint is a low-cardinality label for metrics.
func (r *Requester) GetJSON(ctx context.Context, endpoint string, newRequest func(context.Context) (*http.Request, error), out any) error {
	b := r.backoff()
	attempt := 0

	_, err := backoff.RetryNotifyWithData(func() (struct{}, error) {
		attempt++
		err := r.do(ctx, endpoint, newRequest, out)
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		var ae *APIError
		if errors.As(err, &ae) && !ae.Temporary() {
			return struct{}{}, backoff.Permanent(err)
		}
		if !errors.As(err, &ae) && !IsNetwork(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		r.logger().Warn("upstream request failed, retrying",
			slog.String("provider", r.Provider),
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	})
	return err
}

func (r *Requester) backoff() backoff.BackOff {
	base := r.RetryBase
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	var clk backoff.Clock = backoff.SystemClock
	if r.Clock != nil {
		clk = r.Clock
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         8 * base,
		MaxElapsedTime:      30 * time.Second,
		Stop:                backoff.Stop,
		Clock:               clk,
	}
	b.Reset()
	return backoff.WithMaxRetries(b, r.MaxRetries)
}

func (r *Requester) do(ctx context.Context, endpoint string, newRequest func(context.Context) (*http.Request, error), out any) error {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limiter: %w", r.Provider, err)
		}
	}

	req, err := newRequest(ctx)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", r.Provider, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	outcome := "ok"
	defer func() {
		if r.Observer != nil {
			r.Observer.ObserveUpstream(r.Provider, endpoint, outcome, time.Since(start).Seconds())
		}
	}()

	resp, err := r.client().Do(req)
	if err != nil {
		outcome = "network_error"
		return &NetworkError{Provider: r.Provider, URL: redactURL(req), Err: err}
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		r.logger().With(slog.String("component", r.Provider+"_client")),
		"http_response_body")

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		outcome = "network_error"
		return &NetworkError{Provider: r.Provider, URL: redactURL(req), Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(body)) > maxBodySize {
		outcome = "too_large"
		return fmt.Errorf("%s response exceeds size limit of %d bytes", r.Provider, maxBodySize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = fmt.Sprintf("status_%d", resp.StatusCode)
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return &APIError{Provider: r.Provider, StatusCode: resp.StatusCode, URL: redactURL(req), Body: snippet}
	}

	if err := json.Unmarshal(body, out); err != nil {
		outcome = "decode_error"
		return fmt.Errorf("failed to decode %s response: %w", r.Provider, err)
	}
	return nil
}

func (r *Requester) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return defaultClient
}

func (r *Requester) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

var defaultClient = NewHTTPClient(10 * time.Second)

// redactURL drops credentials and the query string, which may carry an
// app_key, before a URL is logged or wrapped in an error.
func redactURL(req *http.Request) string {
	u := *req.URL
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// NewLimiter converts a requests-per-second budget into a limiter. A
// non-positive budget disables limiting.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
