// Package client provides the GitHub GraphQL transport: one POST per page
// with bearer auth, error classification, and request metrics. Retrying is
// deliberately left to the caller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/repoharvest/ghfetch/pkg/query"
	"github.com/repoharvest/ghfetch/pkg/ratelimit"
	"github.com/repoharvest/ghfetch/pkg/search"
)

// Prometheus metrics for GraphQL requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghfetch_requests_total",
		Help: "Total GraphQL requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghfetch_request_duration_seconds",
		Help:    "GraphQL request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghfetch_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})
)

// Client posts query documents to the GraphQL endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Token is the bearer token for the API (required).
	Token string

	// Endpoint defaults to the GitHub GraphQL API.
	Endpoint string

	// UserAgent identifies the collector (required by the API).
	UserAgent string

	// Timeout bounds one request. The server aborts queries after 10
	// seconds, so the default leaves room for transfer.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(token, userAgent string) Config {
	return Config{
		Token:     token,
		Endpoint:  query.DefaultEndpoint,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// New creates a new GraphQL client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("api token is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = query.DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "github-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Execute posts one request and returns the raw response body. Non-2xx
// statuses and transport failures come back classified; decoding the body
// is the caller's concern.
func (c *Client) Execute(ctx context.Context, req query.Request) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "bearer "+c.config.Token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().Msg("Executing GraphQL request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("%w: read body: %v", ErrTransientNetwork, err)
	}

	requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		errClass := c.classifyStatus(resp)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("GraphQL request error")

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Class:      errClass,
			Message:    resp.Status,
		}
		if errClass == ErrorClassRateLimit {
			apiErr.Err = ratelimit.ErrRateLimitExceeded
		}
		return nil, apiErr
	}

	return body, nil
}

// RateLimit issues the zero-cost quota probe.
func (c *Client) RateLimit(ctx context.Context) (*search.RateLimitStatus, error) {
	body, err := c.Execute(ctx, query.NewRateLimitRequest())
	if err != nil {
		return nil, err
	}
	return search.DecodeRateLimit(body)
}

// classifyStatus categorizes a non-2xx response for handling and metrics.
// The API signals budget exhaustion with 429, or 403 plus a zeroed
// X-RateLimit-Remaining header.
func (c *Client) classifyStatus(resp *http.Response) ErrorClass {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return ErrorClassRateLimit
	case resp.StatusCode >= 500:
		return ErrorClassServer
	case resp.StatusCode >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
