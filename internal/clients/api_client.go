package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vaidashi/phone-order-api/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
	"github.com/vaidashi/phone-order-api/pkg/logger"
	"github.com/vaidashi/phone-order-api/pkg/retry"
)

// Config configures an APIClient for one upstream provider
type Config struct {
	Name        string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     retry.BackoffStrategy
	Breaker     *circuitbreaker.CircuitBreaker
}

// Request describes one call to the upstream API. Form and JSON are mutually exclusive.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Form     url.Values
	JSON     interface{}
	Header   http.Header
	Username string
	Password string
}

// Response is a completed upstream response with a status below 500
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx response
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the response body
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to parse response: %v", err)).WithCode("invalid_response")
	}
	return nil
}

// APIClient calls a provider's HTTP API with retries and a circuit breaker.
// Network failures, timeouts, 429 and 5xx are retried; other 4xx responses are handed back to the caller.
type APIClient struct {
	name        string
	baseURL     string
	httpClient  *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig *retry.RetryConfig
	logger      logger.Logger
}

// NewAPIClient creates a new APIClient instance
func NewAPIClient(cfg Config, logger logger.Logger) *APIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = &retry.ExponentialBackoff{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      1.5,
			JitterFactor:    0.2,
		}
	}
	if cfg.Breaker == nil {
		cfg.Breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
			Name:             cfg.Name,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			HalfOpenMaxCalls: 1,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				logger.Warn("Circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return &APIClient{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    cfg.Breaker,
		retryConfig: &retry.RetryConfig{
			MaxAttempts:     cfg.MaxAttempts,
			BackoffStrategy: cfg.Backoff,
			Logger:          logger,
			ShouldRetry:     apperrors.IsRetryable,
		},
		logger: logger,
	}
}

// Name returns the provider name
func (c *APIClient) Name() string {
	return c.name
}

// Breaker exposes the circuit breaker for metrics
func (c *APIClient) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Do sends the request, retrying transient failures
func (c *APIClient) Do(ctx context.Context, req Request) (*Response, error) {
	if !c.breaker.Allow() {
		return nil, apperrors.NewServiceUnavailableError(fmt.Sprintf("%s circuit breaker is open", c.name)).
			WithCode("circuit_open")
	}

	var response *Response

	retryFunc := func(ctx context.Context, attempt int) error {
		resp, err := c.send(ctx, req)

		if err != nil {
			if apperrors.IsRetryable(err) {
				c.breaker.Failure()
			}
			return err
		}

		c.breaker.Success()
		response = resp
		return nil
	}

	if err := retry.Retry(ctx, retryFunc, c.retryConfig); err != nil {
		c.logger.Error("Provider request failed",
			"provider", c.name,
			"method", req.Method,
			"path", req.Path,
			"error", err)
		return nil, err
	}

	return response, nil
}

func (c *APIClient) send(ctx context.Context, r Request) (*Response, error) {
	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	contentType := ""

	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.JSON != nil:
		raw, err := json.Marshal(r.JSON)

		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("failed to marshal request: %v", err))
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)

	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInternal, fmt.Sprintf("failed to create request: %v", err), http.StatusInternalServerError, false)
	}

	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.Username != "" {
		req.SetBasicAuth(r.Username, r.Password)
	}

	resp, err := c.httpClient.Do(req)

	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, apperrors.NewTimeoutError(fmt.Sprintf("%s request timed out", c.name)).WithCode("timeout")
		}
		return nil, apperrors.NewTemporaryError(fmt.Sprintf("failed to reach %s: %v", c.name, err)).WithCode("connection_error")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, apperrors.NewTemporaryError(fmt.Sprintf("failed to read response body: %v", err)).WithCode("connection_error")
	}

	switch {
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return nil, apperrors.NewTimeoutError(fmt.Sprintf("%s request timed out", c.name)).WithCode("timeout")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitedError(fmt.Sprintf("%s rate limit exceeded", c.name)).WithCode("rate_limited")
	case resp.StatusCode >= 500:
		return nil, apperrors.NewTemporaryError(fmt.Sprintf("%s service error: %d", c.name, resp.StatusCode)).WithCode("connection_error")
	}

	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}
