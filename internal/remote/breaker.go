// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package remote

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
	"github.com/tomtom215/elevation-loom/internal/models"
)

// Pusher sends one week to the remote store.
type Pusher interface {
	Push(ctx context.Context, payload models.WeekPayload) error
}

// CircuitBreakerPusher wraps a Pusher with a circuit breaker. While the
// circuit is open Push fails immediately with gobreaker.ErrOpenState.
//
// Non-temporary client errors (400, 403, 404, 422 ...) and context
// cancellation do not count as failures.
type CircuitBreakerPusher struct {
	next Pusher
	cb   *gobreaker.CircuitBreaker[struct{}]
	name string
}

// NewCircuitBreakerPusher wraps next with a breaker configured by cfg.
func NewCircuitBreakerPusher(next Pusher, cfg config.CircuitBreakerConfig) *CircuitBreakerPusher {
	name := "remote-push"

	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 10
	}
	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.6
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			trip := ratio >= failureRatio
			if trip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return trip
		},

		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrNoIdentity) {
				return true
			}
			var re *RemoteError
			if errors.As(err, &re) {
				return !re.Temporary()
			}
			return false
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

	return &CircuitBreakerPusher{next: next, cb: cb, name: name}
}

// Push forwards to the wrapped Pusher unless the circuit is open.
func (p *CircuitBreakerPusher) Push(ctx context.Context, payload models.WeekPayload) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.Push(ctx, payload)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(p.name, "rejected").Inc()
			logging.Debug().Err(err).Str("week_key", payload.Key()).Msg("[CIRCUIT BREAKER] Push rejected")
			return err
		}
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(p.name).Set(float64(p.cb.Counts().ConsecutiveFailures))
		return err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(p.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(p.name).Set(0)
	return nil
}

// State returns the breaker state name: closed, half-open or open.
func (p *CircuitBreakerPusher) State() string {
	return stateToString(p.cb.State())
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
