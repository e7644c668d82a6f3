package recipeapi

import (
	"net/http"
	"sync"
	"time"
)

// outcome is how a single upstream exchange affects the breaker.
type outcome int

const (
	// outcomeNeutral leaves the breaker untouched. Quota answers and
	// client-side errors say nothing about upstream health.
	outcomeNeutral outcome = iota
	outcomeHealthy
	outcomeUnhealthy
)

// classifyStatus maps an upstream status code to its breaker outcome.
func classifyStatus(status int) outcome {
	switch {
	case status == http.StatusOK:
		return outcomeHealthy
	case status == http.StatusPaymentRequired, status == http.StatusTooManyRequests:
		return outcomeNeutral
	case status >= 500:
		return outcomeUnhealthy
	default:
		return outcomeNeutral
	}
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// breaker stops calls to an upstream that keeps failing at the transport or
// 5xx level. After cooldown it lets trial calls through; enough healthy trials
// close it again and one unhealthy trial reopens it.
type breaker struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	state    breakerState
	failures int
	trials   int
	openedAt time.Time
	now      func() time.Time
}

func newBreaker(cfg CircuitBreakerConfig) *breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}
	return &breaker{cfg: cfg, now: time.Now}
}

// allow reports whether a call may go upstream.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen {
		if b.now().Sub(b.openedAt) <= b.cfg.Timeout {
			return false
		}
		b.state = breakerHalfOpen
		b.trials = 0
	}
	return true
}

// record applies the outcome of one upstream exchange.
func (b *breaker) record(o outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch o {
	case outcomeHealthy:
		b.failures = 0
		if b.state == breakerHalfOpen {
			b.trials++
			if b.trials >= b.cfg.SuccessThreshold {
				b.state = breakerClosed
			}
		}
	case outcomeUnhealthy:
		b.failures++
		if b.state == breakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
			b.state = breakerOpen
			b.openedAt = b.now()
			b.trials = 0
		}
	}
}

func (b *breaker) stateName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
