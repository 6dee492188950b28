package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BreakerState is one of the three circuit breaker states.
type BreakerState int

const (
	// StateClosed is normal operation; calls pass through.
	StateClosed BreakerState = iota

	// StateOpen fails calls fast without touching the server.
	StateOpen

	// StateHalfOpen admits trial calls to probe recovery.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Circuit breaker defaults, tuned for tool servers that typically recover
// within a minute of a restart.
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
	DefaultSuccessThreshold = 2
)

// BreakerConfig parameterizes a CircuitBreaker. Zero values select the
// package defaults.
type BreakerConfig struct {
	// FailureThreshold is how many consecutive failures in the closed
	// state trip the breaker open.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before
	// admitting trial calls.
	RecoveryTimeout time.Duration

	// SuccessThreshold is how many trial successes close the breaker
	// again.
	SuccessThreshold int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	return c
}

// CircuitBreaker tracks failures for one server and fails fast while the
// server is considered down. It observes and gates calls but never
// transforms their errors.
//
// The open-to-half-open transition is evaluated lazily whenever state is
// read; there is no background timer. Every state read-then-mutate
// sequence runs under one mutex, so concurrent callers cannot
// double-apply a transition.
type CircuitBreaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	state        BreakerState
	failureCount int
	successCount int
	lastFailure  time.Time
}

// NewCircuitBreaker creates a closed breaker for the named server.
func NewCircuitBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: logger.With("mcp_server", name),
		now:    time.Now,
	}
}

// evaluate applies the lazy open-to-half-open transition and returns the
// current state. Caller must hold b.mu.
func (b *CircuitBreaker) evaluate() BreakerState {
	if b.state == StateOpen && !b.lastFailure.IsZero() &&
		b.now().Sub(b.lastFailure) >= b.cfg.RecoveryTimeout {
		b.state = StateHalfOpen
		b.successCount = 0
		b.logger.Info("circuit breaker half-open, admitting trial calls")
	}
	return b.state
}

// State returns the current state, committing the recovery transition if
// it is due.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evaluate()
}

// Do runs op through the breaker. When the breaker is open, Do fails
// immediately with a *ConnectionError carrying the remaining cooldown and
// op is never invoked. Otherwise op's outcome is recorded and its error,
// if any, is returned unchanged.
func (b *CircuitBreaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.evaluate() == StateOpen {
		remaining := b.cfg.RecoveryTimeout - b.now().Sub(b.lastFailure)
		b.mu.Unlock()
		return &ConnectionError{
			Server:  b.name,
			Reason:  "circuit breaker open, retry in " + remaining.Round(time.Millisecond).String(),
			RetryIn: remaining,
		}
	}
	b.mu.Unlock()

	// op blocks on I/O and must not run under the mutex.
	err := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

// onSuccess applies the success transition rule. Caller must hold b.mu.
func (b *CircuitBreaker) onSuccess() {
	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
			b.lastFailure = time.Time{}
			b.logger.Info("circuit breaker closed, server recovered")
		}
		return
	}
	b.failureCount = 0
}

// onFailure applies the failure transition rule. Caller must hold b.mu.
func (b *CircuitBreaker) onFailure() {
	b.failureCount++
	b.lastFailure = b.now()

	switch {
	case b.state == StateHalfOpen:
		b.state = StateOpen
		b.successCount = 0
		b.logger.Warn("circuit breaker reopened, trial call failed")
	case b.state == StateClosed && b.failureCount >= b.cfg.FailureThreshold:
		b.state = StateOpen
		b.logger.Warn("circuit breaker opened",
			"failures", b.failureCount,
			"recovery_timeout", b.cfg.RecoveryTimeout,
		)
	}
}

// Reset forces the breaker closed with all counters cleared.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
	b.lastFailure = time.Time{}
	b.logger.Info("circuit breaker reset")
}

// BreakerMetrics is a point-in-time snapshot of one breaker.
type BreakerMetrics struct {
	Name         string        `json:"name"`
	State        string        `json:"state"`
	FailureCount int           `json:"failure_count"`
	SuccessCount int           `json:"success_count"`
	TimeToReset  time.Duration `json:"time_until_reset,omitempty"`
}

// Metrics snapshots the breaker. TimeToReset is set only while open.
func (b *CircuitBreaker) Metrics() BreakerMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := BreakerMetrics{
		Name:         b.name,
		State:        b.evaluate().String(),
		FailureCount: b.failureCount,
		SuccessCount: b.successCount,
	}
	if b.state == StateOpen {
		m.TimeToReset = b.cfg.RecoveryTimeout - b.now().Sub(b.lastFailure)
	}
	return m
}
