package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// errClientStatus marks 4xx responses so they are not retried.
var errClientStatus = errors.New("client error status")

// HTTPConfig configures an http handler.
type HTTPConfig struct {
	// URL is the endpoint.
	URL string
	// Method is the HTTP method (default POST). GET sends arguments as query
	// parameters, other methods as a JSON body.
	Method string
	// Headers are added to every request.
	Headers map[string]string
	// Idempotent enables retries on transport errors and 5xx responses.
	Idempotent bool
	// Retries is the attempt count when Idempotent is set.
	Retries int
	// MaxOutput caps the response body in bytes (0 = unlimited).
	MaxOutput int64
}

// HTTP forwards invocations to a remote endpoint.
type HTTP struct {
	config  HTTPConfig
	client  *http.Client
	breaker circuitbreaker.CircuitBreaker[any]
	retrier retry.Retry[any]
}

// NewHTTP creates an http handler. The breaker is shared by every tool
// targeting the same URL.
func NewHTTP(cfg HTTPConfig, client *http.Client, breaker circuitbreaker.CircuitBreaker[any]) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: http handler requires a url", ErrInvalidSpec)
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	cfg.Method = strings.ToUpper(cfg.Method)
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if client == nil {
		client = http.DefaultClient
	}

	attempts := 1
	if cfg.Idempotent && cfg.Retries > 1 {
		attempts = cfg.Retries
	}

	return &HTTP{
		config:  cfg,
		client:  client,
		breaker: breaker,
		retrier: retry.New[any](retry.Config{
			MaxAttempts:        attempts,
			InitialDelay:       100 * time.Millisecond,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         2.0,
			NonRetryableErrors: []error{errClientStatus},
		}),
	}, nil
}

// Call performs the request.
func (h *HTTP) Call(ctx context.Context, args tool.Arguments) (any, error) {
	call := func(ctx context.Context) (any, error) {
		return h.retrier.Do(ctx, func(ctx context.Context) (any, error) {
			return h.do(ctx, args)
		})
	}
	if h.breaker == nil {
		return call(ctx)
	}
	return h.breaker.Execute(ctx, call)
}

func (h *HTTP) do(ctx context.Context, args tool.Arguments) (any, error) {
	req, err := h.newRequest(ctx, args)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", h.config.Method, h.config.URL, err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if h.config.MaxOutput > 0 {
		body = io.LimitReader(resp.Body, h.config.MaxOutput+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(truncate(data, 512)))
		if resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %w: %d %s", ErrRemoteStatus, errClientStatus, resp.StatusCode, snippet)
		}
		return nil, fmt.Errorf("%w: %d %s", ErrRemoteStatus, resp.StatusCode, snippet)
	}
	if h.config.MaxOutput > 0 && int64(len(data)) > h.config.MaxOutput {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrOutputTooLarge, h.config.MaxOutput)
	}
	return decodeOutput(data), nil
}

func (h *HTTP) newRequest(ctx context.Context, args tool.Arguments) (*http.Request, error) {
	target := h.config.URL
	var body io.Reader

	if h.config.Method == http.MethodGet {
		u, err := url.Parse(target)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		values, err := argStrings(args)
		if err != nil {
			return nil, err
		}
		for key, value := range values {
			q.Set(key, value)
		}
		u.RawQuery = q.Encode()
		target = u.String()
	} else {
		payload, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, h.config.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.config.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
