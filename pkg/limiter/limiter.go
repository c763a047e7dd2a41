// Package limiter implements request admission control for the Planet API
// client: a cap on concurrently in-flight requests and a minimum spacing
// between successive admissions.
package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

// Prometheus metrics for admission control.
var (
	planetRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planet_requests_in_flight",
		Help: "Number of requests currently admitted past the limiter",
	})

	planetAdmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planet_admissions_total",
		Help: "Total number of requests admitted by the limiter",
	})

	planetAdmissionWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planet_admission_wait_seconds",
		Help:    "Time spent waiting for limiter admission",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})
)

// DefaultPollInterval is how often a waiter rechecks the cadence gate.
// It trades latency-to-admission against wakeup churn and has no effect
// on correctness.
const DefaultPollInterval = 10 * time.Millisecond

// Limiter gates outbound requests behind two independent admission
// controls: a counting semaphore bounding concurrently in-flight requests
// and a cadence gate enforcing a minimum interval between admissions.
//
// Acquire and Release must be paired on every exit path. Admission order
// among waiters is not FIFO and no fairness is guaranteed.
type Limiter struct {
	sem     *semaphore.Weighted // nil when concurrency is unbounded
	cadence time.Duration       // zero when rate is unbounded

	// PollInterval is the cadence recheck interval. It may be lowered in
	// tests to speed them up.
	PollInterval time.Duration

	mu        sync.Mutex
	lastAdmit time.Time
	now       func() time.Time
}

// New creates a Limiter admitting at most maxWorkers concurrent holders
// and at most rateLimit admissions per second. Zero disables the
// respective gate.
func New(rateLimit float64, maxWorkers int64) *Limiter {
	l := &Limiter{
		PollInterval: DefaultPollInterval,
		now:          time.Now,
	}
	if maxWorkers > 0 {
		l.sem = semaphore.NewWeighted(maxWorkers)
	}
	if rateLimit > 0 {
		l.cadence = time.Duration(float64(time.Second) / rateLimit)
	}
	return l
}

// Acquire blocks until both gates admit the caller or ctx is cancelled.
// On success the caller holds one concurrency slot and must call Release
// exactly once, on every exit path.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()

	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	if err := l.waitCadence(ctx); err != nil {
		if l.sem != nil {
			l.sem.Release(1)
		}
		return err
	}

	planetRequestsInFlight.Inc()
	planetAdmissionsTotal.Inc()
	planetAdmissionWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// Release returns the caller's concurrency slot.
func (l *Limiter) Release() {
	planetRequestsInFlight.Dec()
	if l.sem != nil {
		l.sem.Release(1)
	}
}

// waitCadence polls until at least one cadence interval has elapsed since
// the previous admission, then records the caller as the latest admission.
// The check and the timestamp update happen under one lock so concurrent
// waiters cannot both observe the gate as open.
func (l *Limiter) waitCadence(ctx context.Context) error {
	if l.cadence == 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := l.now()
		if l.lastAdmit.IsZero() || now.Sub(l.lastAdmit) >= l.cadence {
			l.lastAdmit = now
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.PollInterval):
		}
	}
}
