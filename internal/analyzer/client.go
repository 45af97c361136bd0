// Package analyzer calls the external classification service that judges
// whether a URL is productive for the active session's stated task.
//
// The verdict is advisory input to the gating engine; any failure here is
// reported as an error and the caller falls back to blocking. No failure
// path may ever produce an "allowed" result.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/focusgate/gateway/internal/infrastructure/resilience"
	"github.com/focusgate/gateway/internal/shared/types"
)

// Request is the analyzer wire request.
type Request struct {
	URL       string     `json:"url"`
	Domain    string     `json:"domain"`
	Context   []types.QA `json:"context"`
	SessionID string     `json:"session_id"`
}

// Response is the analyzer wire response.
type Response struct {
	IsProductive bool    `json:"isProductive"`
	Explanation  string  `json:"explanation"`
	Confidence   float64 `json:"confidence"`
}

// Result is a sanitized classification verdict.
type Result struct {
	Productive  bool
	Explanation string
	Confidence  float64
}

// Config tunes the client.
type Config struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	RPS        float64
}

// Client wraps resty with rate limiting and a circuit breaker.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	sanitize *bluemonday.Policy
	endpoint string
}

// New creates a production-ready analyzer client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", "FocusGate/1.0")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), int(cfg.RPS)+1)
	}

	breaker := resilience.New("analyzer", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		resty:    restyClient,
		limiter:  limiter,
		breaker:  breaker,
		sanitize: bluemonday.StrictPolicy(),
		endpoint: cfg.URL,
	}
}

// BreakerState reports the circuit breaker state, for health checks.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Classify asks the analyzer to judge url against the session's task.
func (c *Client) Classify(ctx context.Context, s *types.Session, rawURL string) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("no active session")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req := Request{
		URL:       rawURL,
		Domain:    s.Domain,
		Context:   s.Context,
		SessionID: s.ID,
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		var body Response
		resp, err := c.resty.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&body).
			Post(c.endpoint)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("analyzer returned %d", resp.StatusCode())
		}
		return body, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("analyzer call: %w", err)
	}

	body := out.(Response)
	return Result{
		Productive:  body.IsProductive,
		Explanation: c.sanitize.Sanitize(body.Explanation),
		Confidence:  body.Confidence,
	}, nil
}
