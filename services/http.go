package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stock-analyzer/observability"
)

// Sentinel errors shared by the provider clients
var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
)

// maxResponseBytes bounds a single provider response; 10-K documents run to tens of MB
const maxResponseBytes = 64 << 20

// APIError is a non-2xx response from a provider
type APIError struct {
	Service    string
	StatusCode int
	Body       string
	// RetryAfter is the delay the provider asked for on a 429 or 503, if any
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Unwrap maps well-known status codes onto the package sentinels
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		return nil
	}
}

// RetryAfterDelay lets WithRetry honour the provider's Retry-After header
func (e *APIError) RetryAfterDelay() time.Duration {
	return e.RetryAfter
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// retryable reports whether another attempt at the same request may succeed
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// providerClient is the transport shared by the data providers. Every GET is
// throttled, run through the provider's circuit breaker, retried with backoff
// and recorded in the external API metrics.
type providerClient struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	userAgent  string
}

func newProviderClient(name string, requestsPerSecond float64) *providerClient {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &providerClient{
		name:       name,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
		retry:      DefaultRetryConfig,
	}
}

// get fetches reqURL and returns the raw body
func (c *providerClient) get(ctx context.Context, operation, reqURL string) ([]byte, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(c.name, operation)
	timer := metrics.NewTimer()

	body, err := WithCircuitBreaker(ctx, c.name, func() ([]byte, error) {
		var body []byte
		err := WithRetry(ctx, c.retry, func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return Permanent(fmt.Errorf("rate limiter wait: %w", err))
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return Permanent(fmt.Errorf("failed to create request: %w", err))
			}
			if c.userAgent != "" {
				req.Header.Set("User-Agent", c.userAgent)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", operation, err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			if err != nil {
				return fmt.Errorf("failed to read %s response: %w", operation, err)
			}

			if resp.StatusCode != http.StatusOK {
				apiErr := &APIError{
					Service:    c.name,
					StatusCode: resp.StatusCode,
					Body:       preview(data),
					RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
				}
				if apiErr.retryable() {
					return apiErr
				}
				return Permanent(apiErr)
			}

			body = data
			return nil
		})
		return body, err
	})

	timer.ObserveExternalAPI(c.name, operation)
	if err != nil {
		metrics.RecordExternalAPIError(c.name, operation, categorizeAPIError(err))
		return nil, err
	}
	return body, nil
}

// getJSON fetches reqURL and decodes the body into v
func (c *providerClient) getJSON(ctx context.Context, operation, reqURL string, v any) error {
	body, err := c.get(ctx, operation, reqURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

// preview trims a response body for error messages
func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// categorizeAPIError categorizes an error for metrics purposes
func categorizeAPIError(err error) string {
	if err == nil {
		return "none"
	}
	switch {
	case errors.Is(err, ErrServiceUnavailable):
		return "circuit_open"
	case errors.Is(err, ErrRateLimited):
		return "rate_limit"
	case errors.Is(err, ErrUnauthorized):
		return "auth_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "429"):
		return "rate_limit"
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"):
		return "connection_error"
	default:
		return "unknown"
	}
}
