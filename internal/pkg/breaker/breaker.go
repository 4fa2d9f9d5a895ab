// Package breaker wraps remote gateway calls in a circuit breaker.
package breaker

import (
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"photokiosk/internal/metrics"
)

// Settings controls when a breaker opens.
type Settings struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int
	// Timeout is how long the breaker stays open before letting a probe through.
	Timeout time.Duration
	// Ignore reports errors that should not count as gateway failures (e.g. not found).
	Ignore func(error) bool
}

// Breaker is a named circuit breaker with logging and metrics.
type Breaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger
}

func New(name string, s Settings, logger *slog.Logger) *Breaker {
	if s.MaxFailures <= 0 {
		s.MaxFailures = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	maxFailures := uint32(s.MaxFailures)

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	b := &Breaker{name: name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (s.Ignore != nil && s.Ignore(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state transition",
				slog.String("breaker", name),
				slog.String("from", stateToString(from)),
				slog.String("to", stateToString(to)))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return b
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case IsRejected(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		b.logger.Warn("Gateway call rejected by open circuit", slog.String("breaker", b.name))
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return result, err
}

// Run is Execute for calls with no result.
func (b *Breaker) Run(fn func() error) error {
	_, err := b.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// State returns the current state name.
func (b *Breaker) State() string {
	return stateToString(b.cb.State())
}

// IsRejected reports whether err came from the breaker rather than the gateway.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Cast type-asserts a breaker result.
func Cast[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, errors.New("circuit breaker: unexpected result type")
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
