// Package remote implements the resilient HTTP JSON client shared by the
// provider adapters and the overlay store. It retries transient failures
// with exponential backoff and jitter, honors server-provided retry delays,
// and transparently follows cursor-based pagination up to a page ceiling.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// Config tunes retry and pagination behavior.
type Config struct {
	// MaxAttempts is the total attempt budget per call, first try included.
	MaxAttempts int

	// BaseDelay is the backoff before the first retry; it doubles per
	// attempt up to MaxDelay. Up to 200ms of jitter is added on top. A
	// server-provided Retry-After wins over the computed delay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// MaxPages bounds GetAllPages; exceeding it fails with
	// ErrPaginationLimit instead of looping forever.
	MaxPages int
}

// DefaultConfig returns the standard client tuning.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		MaxPages:    1000,
	}
}

const maxJitter = 200 * time.Millisecond

// Client issues authenticated JSON calls against the provider and overlay
// store APIs. It is stateless aside from retry counters local to one call
// and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	tokens     oauth2.TokenSource
	cfg        Config
	logger     *slog.Logger
}

// NewClient creates a Client. httpClient may be nil, in which case
// http.DefaultClient is used; tokens may be nil for unauthenticated targets
// (tests, local emulators).
func NewClient(httpClient *http.Client, tokens oauth2.TokenSource, cfg Config, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = DefaultConfig().MaxPages
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		tokens:     tokens,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "remote_client")),
	}
}

// GetJSON performs a GET and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

// PostJSON performs a POST with a JSON body and decodes the response into
// out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, url string, payload, out any) error {
	return c.send(ctx, http.MethodPost, url, payload, out)
}

// PatchJSON performs a PATCH with a JSON body and decodes the response into
// out when out is non-nil.
func (c *Client) PatchJSON(ctx context.Context, url string, payload, out any) error {
	return c.send(ctx, http.MethodPatch, url, payload, out)
}

func (c *Client) send(ctx context.Context, method, url string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	body, err := c.do(ctx, method, url, encoded)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

// page is the wire shape of one paginated listing response.
type page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// GetAllPages follows the opaque next link of a paginated listing, flattening
// every page's items. It fails with ErrPaginationLimit when the listing does
// not terminate within the page ceiling.
func (c *Client) GetAllPages(ctx context.Context, url string) ([]json.RawMessage, error) {
	var items []json.RawMessage

	next := url
	for pageCount := 0; next != ""; pageCount++ {
		if pageCount >= c.cfg.MaxPages {
			return nil, fmt.Errorf("%w: listing %s did not terminate within %d pages",
				ErrPaginationLimit, url, c.cfg.MaxPages)
		}

		var p page
		if err := c.GetJSON(ctx, next, &p); err != nil {
			return nil, err
		}
		items = append(items, p.Value...)
		next = p.NextLink
	}

	return items, nil
}

// do runs one call with the retry loop. Transient statuses (429/503/504) and
// transport errors are retried with exponential backoff plus jitter; any
// other non-2xx status fails immediately.
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr *Error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		respBody, retryAfter, err := c.attempt(ctx, method, url, body)
		if err == nil {
			return respBody, nil
		}
		if !err.Retryable {
			return nil, err
		}
		lastErr = err

		if attempt == c.cfg.MaxAttempts {
			break
		}

		delay := c.backoff(attempt, rng)
		if retryAfter > 0 {
			delay = retryAfter
		}

		c.logger.Warn("retrying remote call",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Int("status", err.StatusCode),
			slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &Error{Message: "call cancelled during retry delay", Err: ctx.Err(), Retryable: false}
		}
	}

	return nil, &Error{
		StatusCode: lastErr.StatusCode,
		Retryable:  true,
		Message:    fmt.Sprintf("exhausted %d attempts: %s", c.cfg.MaxAttempts, lastErr.Message),
		Err:        lastErr.Err,
	}
}

// attempt performs a single request. The returned retryAfter is non-zero
// only when the server supplied a usable Retry-After value.
func (c *Client) attempt(ctx context.Context, method, url string, body []byte) ([]byte, time.Duration, *Error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, &Error{Message: "failed to build request", Err: err, Retryable: false}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, 0, &Error{Message: "failed to obtain access token", Err: err, Retryable: false}
		}
		tok.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &Error{Message: "transport failure", Err: err, Retryable: true}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &Error{Message: "failed to read response body", Err: err, Retryable: true}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, 0, nil
	}

	retryable := resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout

	var retryAfter time.Duration
	if retryable {
		retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}

	return nil, retryAfter, &Error{
		StatusCode: resp.StatusCode,
		Retryable:  retryable,
		Message:    truncate(string(respBody), 256),
	}
}

func (c *Client) backoff(attempt int, rng *rand.Rand) time.Duration {
	delay := c.cfg.BaseDelay << (attempt - 1)
	if delay > c.cfg.MaxDelay || delay <= 0 {
		delay = c.cfg.MaxDelay
	}
	return delay + time.Duration(rng.Int63n(int64(maxJitter)))
}

// parseRetryAfter handles both forms the header may take: delay seconds or
// an HTTP-date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func decodeInto(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Message: "malformed JSON response", Err: err, Retryable: false}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
