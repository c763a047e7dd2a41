package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	planetRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planet_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	planetRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planet_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	}, []string{"error_class"})

	planetRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planet_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// calculateWait returns the backoff in seconds before retrying attempt n
// (1-indexed): a value in [2^n, 2^n+1), clamped to maxBackoff. The jitter
// is drawn per attempt so concurrent sessions do not retry in lockstep.
func calculateWait(attempt int, maxBackoff float64) float64 {
	wait := math.Pow(2, float64(attempt)) + rand.Float64()
	return math.Min(wait, maxBackoff)
}

// retry runs fn up to maxAttempts times, backing off between attempts.
// Only errors carrying a retryable class (rate limit, server, network)
// are recovered; everything else propagates immediately.
func (s *Session) retry(ctx context.Context, fn func() error) error {
	maxAttempts := s.config.MaxAttempts

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				s.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if !retryable(err) {
			return err
		}
		lastErr = err

		if attempt >= maxAttempts {
			break
		}

		class := errorClassOf(err)
		planetRetriesTotal.WithLabelValues(string(class)).Inc()

		wait := calculateWait(attempt, s.config.MaxRetryBackoff)
		planetRetryBackoffSeconds.WithLabelValues(string(class)).Observe(wait)

		s.logger.Warn().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Float64("backoff_seconds", wait).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(time.Duration(wait * float64(time.Second))):
		}
	}

	class := errorClassOf(lastErr)
	planetRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	s.logger.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}

// errorClassOf extracts the error class from err, defaulting to network
// for non-API errors.
func errorClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ErrorClassNetwork
}
