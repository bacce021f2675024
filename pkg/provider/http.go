package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// HTTPOptions configures an HTTPClient.
type HTTPOptions struct {
	// Name identifies the provider in errors and the breaker.
	Name    string
	BaseURL string
	Headers map[string]string
	Timeout time.Duration
	// MaxRetries bounds retries of retryable failures; zero disables retry.
	MaxRetries    int
	RetryInterval time.Duration
	// BreakerFailures consecutive retryable failures open the breaker for
	// BreakerTimeout. Zero uses 5.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// HTTPClient posts JSON to a provider API with retry and a circuit breaker.
type HTTPClient struct {
	name          string
	baseURL       string
	headers       map[string]string
	client        *http.Client
	maxRetries    int
	retryInterval time.Duration
	breaker       *gobreaker.CircuitBreaker
}

// NewHTTPClient builds an HTTPClient from opts.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	threshold := opts.BreakerFailures

	return &HTTPClient{
		name:          opts.Name,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		headers:       opts.Headers,
		client:        &http.Client{Timeout: opts.Timeout},
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Name,
			MaxRequests: 1,
			Timeout:     opts.BreakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			// Client mistakes say nothing about backend health.
			IsSuccessful: func(err error) bool {
				return err == nil || !IsRetryable(err)
			},
		}),
	}
}

// Name returns the provider name.
func (c *HTTPClient) Name() string { return c.name }

// PostJSON sends in as JSON to path and decodes the response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.retry(ctx, func() error { return c.post(ctx, path, payload, out) })
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Provider: c.name, Message: "circuit open", Err: err}
	}
	return err
}

func (c *HTTPClient) retry(ctx context.Context, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.maxRetries)), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", c.name, ctx.Err())
		}
		return &Error{Provider: c.name, Message: "sending request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Provider: c.name, Message: "reading response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Provider: c.name, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Provider: c.name, Message: "parsing response", Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

// ErrMalformedResponse marks a provider reply that could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")
