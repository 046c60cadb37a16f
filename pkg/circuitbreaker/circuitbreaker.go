// Package circuitbreaker wraps gobreaker with the settings shape used by the
// services' configuration.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears counts while closed. Zero never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](s Settings) *Breaker[T] {
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Requests the caller gave up on say nothing about the upstream.
		IsExcluded: func(err error) bool {
			var ae abandonedError
			return errors.As(err, &ae) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker[T]{cb: cb}
}

func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	return b.cb.Execute(fn)
}

// ExecuteContext is Execute for calls made on behalf of ctx. A failure that
// happens after ctx ended is returned as is but not counted against the
// breaker, so a caller's own deadline never trips it.
func (b *Breaker[T]) ExecuteContext(ctx context.Context, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (T, error) {
		v, err := fn()
		if err != nil && ctx.Err() != nil {
			return v, abandonedError{err: err}
		}
		return v, err
	})
	var ae abandonedError
	if errors.As(err, &ae) {
		err = ae.err
	}
	return v, err
}

func (b *Breaker[T]) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// IsRejected reports whether err came from the breaker refusing the call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

type abandonedError struct {
	err error
}

func (e abandonedError) Error() string { return e.err.Error() }

func (e abandonedError) Unwrap() error { return e.err }
