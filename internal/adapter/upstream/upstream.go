package upstream

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/polkiloo/payouts/internal/config"
)

const defaultRetryAfter = 5 * time.Second

// TooManyRequestsError represents a rate limiting signal from an upstream API.
type TooManyRequestsError struct {
	Service    string
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("%s: too many requests, retry after %s", e.Service, e.RetryAfter)
}

// StatusError is a non-2xx answer from an upstream API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status %d", e.Service, e.StatusCode)
}

// ClientError reports whether the upstream rejected the request itself.
// A conflict is not a rejection: the upstream may already hold the request.
func (e *StatusError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusConflict
}

// NewClient builds a resty client for endpoint. The URL must be absolute.
func NewClient(service string, endpoint config.Endpoint) (*resty.Client, error) {
	parsed, err := url.Parse(endpoint.URL)
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", service, err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("%s url must be absolute", service)
	}

	client := resty.New().
		SetBaseURL(parsed.String()).
		SetTimeout(endpoint.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return client, nil
}

// Check converts an unsuccessful response into an error.
func Check(service string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return TooManyRequestsError{Service: service, RetryAfter: ParseRetryAfter(resp.Header().Get("Retry-After"))}
	}
	return &StatusError{Service: service, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
}

// ParseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return defaultRetryAfter
}
