// Package breaker guards calls to a remote backend with a consecutive-failure
// circuit breaker.
package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned without calling the backend while the circuit is open
// or while the half-open probe slot is taken.
var ErrOpen = errors.New("circuit breaker open")

type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

type Config struct {
	// Name identifies the protected backend in logs and metrics.
	Name string
	// Failures is the number of consecutive failures that opens the circuit.
	Failures uint32
	// OpenFor is how long the circuit stays open before one probe is let through.
	OpenFor time.Duration
	// Ignore reports errors that say nothing about backend health.
	Ignore func(err error) bool
	// OnStateChange is called after the transition has been logged.
	OnStateChange func(name string, from, to State)
}

type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

func New(cfg Config) *Breaker {
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}

	threshold := cfg.Failures
	ignore := cfg.Ignore
	onChange := cfg.OnStateChange

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (ignore != nil && ignore(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if onChange != nil {
				onChange(name, from, to)
			}
		},
	}

	return &Breaker{name: cfg.Name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn unless the circuit is open. The error returned by fn is
// passed through unchanged.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", b.name, ErrOpen)
	}
	return err
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State { return b.cb.State() }

// StateValue maps a state to the gauge value exported for it.
func StateValue(s State) float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}
