// Package resilience wraps outbound calls with:
//   - a fixed-delay retry loop that honours server retry-after hints
//   - a gobreaker circuit breaker
//   - markers for errors that must not be retried
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen indicates the circuit breaker is open
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")
	// ErrExhaustedRetries indicates retry attempts were exhausted
	ErrExhaustedRetries = errors.New("retry attempts exhausted")
)

// NoRetry marks an error as permanent so WithRetry returns it at once.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

// IsNoRetry reports whether err is wrapped with NoRetry.
func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return e.err.Error() }
func (e noRetryError) Unwrap() error { return e.err }

// RetryAfter attaches a server-provided delay (e.g. Telegram 429 retry_after) to err.
func RetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	if after < 0 {
		after = 0
	}
	return retryAfterError{err: err, after: after}
}

// RetryAfterError is implemented by errors that carry an explicit retry delay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

type retryAfterError struct {
	err   error
	after time.Duration
}

func (e retryAfterError) Error() string             { return fmt.Sprintf("retry after %s: %v", e.after, e.err) }
func (e retryAfterError) Unwrap() error             { return e.err }
func (e retryAfterError) RetryAfter() time.Duration { return e.after }

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF-OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// mapState converts gobreaker state to our CircuitState
func mapState(state gobreaker.State) CircuitState {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// CircuitBreaker implements the circuit breaker pattern using gobreaker
type CircuitBreaker struct {
	name        string
	timeout     time.Duration
	openTimeout time.Duration
	cb          *gobreaker.CircuitBreaker
}

// CircuitBreakerConfig holds configuration for circuit breakers
type CircuitBreakerConfig struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// CallTimeout bounds each call when the context has no deadline.
	CallTimeout time.Duration
	// IsFailure decides which errors count against the breaker. Nil counts every error.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from, to CircuitState)
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromState, toState := mapState(from), mapState(to)
			slog.Info("Circuit breaker state changed", "name", name, "from", fromState, "to", toState)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, fromState, toState)
			}
		},
	}
	if cfg.IsFailure != nil {
		isFailure := cfg.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return &CircuitBreaker{
		name:        cfg.Name,
		timeout:     cfg.CallTimeout,
		openTimeout: cfg.OpenTimeout,
		cb:          gobreaker.NewCircuitBreaker(settings),
	}
}

// OpenTimeout is how long the breaker stays open before probing again.
func (cb *CircuitBreaker) OpenTimeout() time.Duration {
	return cb.openTimeout
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	return mapState(cb.cb.State())
}

// Execute runs an operation through the circuit breaker
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func(context.Context) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cb.timeout)
		defer cancel()
	}

	_, err := cb.cb.Execute(func() (interface{}, error) {
		err := operation(ctx)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	})

	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		// Half-open probe slot taken; treat like open.
		return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
	}
	return err
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// MaxRetryAfter caps server-provided retry hints. Zero means no cap.
	MaxRetryAfter time.Duration
	Clock         clockwork.Clock
}

// WithRetry executes an operation, retrying failures after a fixed delay.
// A RetryAfterError replaces the delay with its hint. Errors marked with
// NoRetry, an open circuit and context cancellation stop the loop at once.
func WithRetry(ctx context.Context, operation func(context.Context) error, cfg RetryConfig) error {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	attempts := cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		}
		if IsNoRetry(err) || errors.Is(err, ErrCircuitOpen) {
			return err
		}
		if attempt == attempts {
			break
		}

		wait := cfg.Delay
		var ra RetryAfterError
		if errors.As(err, &ra) {
			wait = ra.RetryAfter()
			if cfg.MaxRetryAfter > 0 && wait > cfg.MaxRetryAfter {
				wait = cfg.MaxRetryAfter
			}
		}

		slog.Debug("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"next_interval", wait,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		case <-clock.After(wait):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, attempts, lastErr)
}
