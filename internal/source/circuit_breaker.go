// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/favmirror/internal/logging"
	"github.com/tomtom215/favmirror/internal/metrics"
)

// BreakerSettings tunes CircuitBreakerSource.
type BreakerSettings struct {
	Name string

	// MaxRequests allowed while half-open.
	MaxRequests uint32

	// Interval resets counts while closed.
	Interval time.Duration

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// MinRequests and FailureRatio decide when to trip.
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings opens after 60% failures over at least 10 requests
// and lets a trial request through after 2 minutes.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "remote-source",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// CircuitBreakerSource wraps a Source with a circuit breaker. Item-gone and
// not-found answers are successful remote responses and never trip it. A
// rejected call surfaces as ErrUnavailable, which aborts a sync run.
//
// The breaker uses real time for its interval and timeout.
type CircuitBreakerSource struct {
	next Source
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewCircuitBreakerSource wraps next.
func NewCircuitBreakerSource(next Source, s BreakerSettings) *CircuitBreakerSource {
	name := s.Name
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},

		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrItemGone) ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrPageCapReached) ||
				errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreakerSource{next: next, cb: cb, name: name}
}

// State returns the breaker state name.
func (b *CircuitBreakerSource) State() string {
	return stateToString(b.cb.State())
}

func (b *CircuitBreakerSource) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, fmt.Errorf("%w: circuit %s: %w", ErrUnavailable, b.name, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		counts := b.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(counts.ConsecutiveFailures))
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// castResult type-asserts a breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
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

// ListCollections lists collections with circuit breaker protection.
func (b *CircuitBreakerSource) ListCollections(ctx context.Context) ([]RemoteCollection, error) {
	return castResult[[]RemoteCollection](b.execute(func() (any, error) {
		return b.next.ListCollections(ctx)
	}))
}

// ListItems lists a page with circuit breaker protection. The page cap is
// checked before the breaker so it never counts as a request.
func (b *CircuitBreakerSource) ListItems(ctx context.Context, collectionID string, page int) (*Page, error) {
	if limit := b.next.PageLimit(); limit > 0 && page > limit {
		return nil, fmt.Errorf("%w: page %d > %d", ErrPageCapReached, page, limit)
	}
	return castResult[*Page](b.execute(func() (any, error) {
		return b.next.ListItems(ctx, collectionID, page)
	}))
}

// GetItemDetail fetches detail with circuit breaker protection.
func (b *CircuitBreakerSource) GetItemDetail(ctx context.Context, shortCode string) (*Entry, error) {
	return castResult[*Entry](b.execute(func() (any, error) {
		return b.next.GetItemDetail(ctx, shortCode)
	}))
}

// FetchAsset bypasses the breaker. Cover CDNs fail independently of the API
// and cover failures are item-level.
func (b *CircuitBreakerSource) FetchAsset(ctx context.Context, url string) ([]byte, error) {
	return b.next.FetchAsset(ctx, url)
}

// PageLimit delegates to the wrapped source.
func (b *CircuitBreakerSource) PageLimit() int {
	return b.next.PageLimit()
}

var _ Source = (*CircuitBreakerSource)(nil)
