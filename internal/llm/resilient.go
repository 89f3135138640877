package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ResilientProvider decorates a Provider with fortify resilience patterns.
// Task generation calls an external completion API on the learner's critical
// path, so transient API failures are retried and a flapping provider is
// tripped open instead of stalling every notebook cell.
type ResilientProvider struct {
	inner   Provider
	breaker circuitbreaker.CircuitBreaker[*Response]
	retrier retry.Retry[*Response]
	gate    bulkhead.Bulkhead[*Response]
	limiter ratelimit.RateLimiter
	logger  *slog.Logger
	name    string
}

// ResilientConfig selects which patterns wrap the provider.
type ResilientConfig struct {
	EnableCircuitBreaker bool
	EnableRetry          bool
	EnableBulkhead       bool
	EnableRateLimit      bool

	// MaxConcurrent bounds in-flight completions (default 5).
	MaxConcurrent int
	// RatePerSecond bounds request rate (default 2).
	RatePerSecond int

	Logger *slog.Logger
}

// DefaultResilientConfig enables every pattern with defaults tuned for a
// single-user assistant: a couple of completions per second is plenty.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableBulkhead:       true,
		EnableRateLimit:      true,
		MaxConcurrent:        5,
		RatePerSecond:        2,
	}
}

// NewResilientProvider wraps provider according to cfg.
func NewResilientProvider(provider Provider, cfg ResilientConfig) *ResilientProvider {
	rp := &ResilientProvider{
		inner:  provider,
		logger: cfg.Logger,
		name:   provider.Name(),
	}

	if cfg.EnableCircuitBreaker {
		rp.breaker = circuitbreaker.New[*Response](circuitbreaker.Config{
			MaxRequests: 2,
			Interval:    10 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				if rp.logger != nil {
					rp.logger.Warn("llm circuit breaker transition",
						"provider", rp.name, "from", from.String(), "to", to.String())
				}
			},
		})
	}

	if cfg.EnableRetry {
		rp.retrier = retry.New[*Response](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  2 * time.Second,
			MaxDelay:      60 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   retryableCompletionError,
		})
	}

	if cfg.EnableBulkhead {
		limit := cfg.MaxConcurrent
		if limit <= 0 {
			limit = 5
		}
		rp.gate = bulkhead.New[*Response](bulkhead.Config{
			MaxConcurrent: limit,
			MaxQueue:      limit * 2,
			QueueTimeout:  30 * time.Second,
		})
	}

	if cfg.EnableRateLimit {
		perSecond := cfg.RatePerSecond
		if perSecond <= 0 {
			perSecond = 2
		}
		rp.limiter = ratelimit.New(&ratelimit.Config{
			Rate:     perSecond,
			Burst:    perSecond * 3,
			Interval: time.Second,
		})
	}

	return rp
}

func (p *ResilientProvider) Name() string {
	return p.inner.Name()
}

// Complete runs the completion through rate limit, bulkhead, retry and
// circuit breaker in that order. The breaker sits outermost so that retries
// against a dead provider count as one failure series, not three.
func (p *ResilientProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p.limiter != nil && !p.limiter.Allow(ctx, p.name) {
		return nil, fmt.Errorf("provider %s: rate limit exceeded", p.name)
	}

	call := func(ctx context.Context) (*Response, error) {
		if p.gate == nil {
			return p.inner.Complete(ctx, req)
		}
		return p.gate.Execute(ctx, func(ctx context.Context) (*Response, error) {
			return p.inner.Complete(ctx, req)
		})
	}

	withRetry := call
	if p.retrier != nil {
		withRetry = func(ctx context.Context) (*Response, error) {
			return p.retrier.Do(ctx, call)
		}
	}

	if p.breaker != nil {
		return p.breaker.Execute(ctx, withRetry)
	}
	return withRetry(ctx)
}

// Close releases the rate limiter's token refill goroutine.
func (p *ResilientProvider) Close() error {
	if p.limiter != nil {
		return p.limiter.Close()
	}
	return nil
}

// retryableCompletionError reports whether err looks like a transient API
// failure. The provider clients format upstream failures as
// "API error (status NNN): ...", so the status is recovered from the text.
func retryableCompletionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, status := range []string{"status 429", "status 500", "status 502", "status 503", "status 504"} {
		if strings.Contains(msg, status) {
			return true
		}
	}
	return false
}
