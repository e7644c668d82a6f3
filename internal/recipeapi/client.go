// Package recipeapi is the HTTP client for the upstream recipe API
// (Spoonacular-compatible). It provides:
// - Query encoding and response decoding
// - Optional retries with exponential backoff
// - Upstream error mapping (402/429 quota, 401/403 auth, 5xx)
// - Circuit breaking
package recipeapi

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"recipegate/internal/core"
	"recipegate/internal/httpclient"
)

// DefaultBaseURL is the public Spoonacular endpoint.
const DefaultBaseURL = "https://api.spoonacular.com"

// QuotaLeftHeader carries the remaining daily points on every response.
const QuotaLeftHeader = "X-API-Quota-Left"

// Config holds configuration for the recipe API client
type Config struct {
	// BaseURL is the API base URL
	BaseURL string

	// APIKey is sent as the x-api-key header. Empty means not configured.
	APIKey string

	// Retry configuration. Retries are off unless MaxRetries > 0.
	MaxRetries     int           // Maximum number of retry attempts (default: 0)
	InitialBackoff time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 30s)
	BackoffFactor  float64       // Backoff multiplier (default: 2.0)

	// Circuit breaker configuration, nil disables it
	CircuitBreaker *CircuitBreakerConfig
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before opening the circuit
	FailureThreshold int
	// SuccessThreshold is the number of successes needed to close an open circuit
	SuccessThreshold int
	// Timeout is how long to wait before attempting to close an open circuit
	Timeout time.Duration
}

// DefaultConfig returns default client configuration
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		APIKey:         apiKey,
		MaxRetries:     0,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		CircuitBreaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

// Client talks to the upstream recipe API.
type Client struct {
	httpClient     *http.Client
	config         Config
	circuitBreaker *breaker

	quotaMu   sync.RWMutex
	quotaLeft string
}

// New creates a client. A nil httpClient gets the default pooled client.
func New(config Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpclient.NewDefaultHTTPClient()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient: httpClient,
		config:     config,
	}

	if config.CircuitBreaker != nil {
		c.circuitBreaker = newBreaker(*config.CircuitBreaker)
	}

	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// QuotaLeft returns the last X-API-Quota-Left value seen, or "" if none yet.
func (c *Client) QuotaLeft() string {
	c.quotaMu.RLock()
	defer c.quotaMu.RUnlock()
	return c.quotaLeft
}

// CircuitState returns the breaker state, or "disabled".
func (c *Client) CircuitState() string {
	if c.circuitBreaker == nil {
		return "disabled"
	}
	return c.circuitBreaker.stateName()
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	// Name labels the request in metrics; defaults to Endpoint
	Name string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do executes a request with retries and circuit breaking, then unmarshals the response
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewProviderError(http.StatusBadGateway, "failed to unmarshal response: "+err.Error(), err)
		}
	}

	return nil
}

// DoRaw executes a request with retries and circuit breaking, returning the raw response
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	name := req.Name
	if name == "" {
		name = req.Endpoint
	}

	if !c.Configured() {
		return nil, core.NewNotConfiguredError(name)
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.allow() {
		return nil, core.NewProviderError(http.StatusServiceUnavailable,
			"circuit breaker is open - recipe API temporarily unavailable", nil)
	}

	var lastErr error
	maxAttempts := c.config.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		start := time.Now()
		resp, err := c.doRequest(ctx, req)
		if err != nil {
			observeRequest(name, "network_error", start)
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			c.record(outcomeUnhealthy)
			continue
		}
		observeRequest(name, strconv.Itoa(resp.StatusCode), start)
		c.recordQuota(resp.Header)
		c.record(classifyStatus(resp.StatusCode))

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		lastErr = core.ParseUpstreamError(resp.StatusCode, resp.Body)
		if !c.isRetryable(resp.StatusCode) {
			return nil, lastErr
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, core.NewProviderError(http.StatusBadGateway, "request failed after retries", nil)
}

// doRequest executes a single HTTP request without retries
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewNetworkError("failed to reach recipe API: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewNetworkError("failed to read response: "+err.Error(), err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.config.BaseURL + req.Endpoint
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)

	return httpReq, nil
}

func (c *Client) recordQuota(h http.Header) {
	left := h.Get(QuotaLeftHeader)
	if left == "" {
		return
	}
	c.quotaMu.Lock()
	c.quotaLeft = left
	c.quotaMu.Unlock()
	if v, err := strconv.ParseFloat(left, 64); err == nil {
		quotaLeftGauge.Set(v)
	}
}

// calculateBackoff calculates the backoff duration for a given attempt
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffFactor, float64(attempt-1))
	if backoff > float64(c.config.MaxBackoff) {
		backoff = float64(c.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

func (c *Client) record(o outcome) {
	if c.circuitBreaker != nil {
		c.circuitBreaker.record(o)
	}
}

// isRetryable returns true for transient upstream failures.
// Quota answers (402, 429) are never retried.
func (c *Client) isRetryable(statusCode int) bool {
	return statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusGatewayTimeout
}
