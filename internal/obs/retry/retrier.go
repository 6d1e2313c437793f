package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

// Backoff yields how long to wait before re-running attempt n
// (zero-based, counted from the first failure).
type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt, caps the result at Max, and
// smears it by up to ±Jitter so workers sharing a broker outage do not
// retry in lockstep.
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Max > 0 {
		d = math.Min(d, float64(b.Max))
	}
	if b.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(d)
}

// Policy bounds one retried operation. Name labels the metrics below;
// a nil Retryable treats every error as transient.
type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

var (
	mAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_attempts_total",
		Help: "Attempts executed under a retry policy, the last one included.",
	}, []string{"name"})
	mExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_exhausted_total",
		Help: "Retried operations that still failed after the final attempt.",
	}, []string{"name"})
	mElapsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retry_duration_seconds",
		Help:    "Wall time of one retried operation, waits included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)

// Do runs fn under p. It returns nil as soon as fn succeeds, the last
// error once attempts run out or the error is non-retryable, and
// ctx.Err() when the context dies during a backoff wait.
func Do(ctx context.Context, fn func() error, p Policy) error {
	name := p.Name
	if name == "" {
		name = "default"
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(err error) bool { return err != nil }
	}
	var backoff Backoff = p.Backoff
	if backoff == nil {
		backoff = ExpoJitter{Base: 100 * time.Millisecond, Max: 5 * time.Second}
	}

	start := time.Now()
	defer func() {
		mElapsed.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	span := trace.SpanFromContext(ctx)
	for attempt := 0; ; attempt++ {
		err := fn()
		mAttempts.WithLabelValues(name).Inc()
		if err == nil {
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}
		if span.IsRecording() {
			span.AddEvent("retry.attempt")
		}
		if attempt == attempts-1 || !retryable(err) {
			mExhausted.WithLabelValues(name).Inc()
			if p.OnExhaust != nil {
				p.OnExhaust(err)
			}
			return err
		}

		wait := time.NewTimer(backoff.Next(attempt))
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}
