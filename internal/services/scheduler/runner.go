package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

type Config struct {
	Tick       time.Duration
	BatchLimit int
}

var (
	mChecksPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_check_units_published_total", Help: "Check units published to the queue.",
	})
	mDigestsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_digest_units_published_total", Help: "Digest units published to the queue.",
	})
	mTickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_errors_total", Help: "Errors in scheduler ticks.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "scheduler_tick_duration_seconds", Help: "Scheduler tick duration.",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	Log *zap.Logger
	UC  *Usecase
	Cfg Config
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	st, err := r.UC.Tick(ctx, r.Cfg.BatchLimit)
	if err != nil {
		mTickErrors.Inc()
		r.Log.Warn("tick error", zap.Error(err))
	}
	mChecksPublished.Add(float64(st.ChecksPublished))
	mDigestsPublished.Add(float64(st.DigestsPublished))
	if st.Errors > 0 {
		mTickErrors.Add(float64(st.Errors))
	}
	if st.ChecksDue > 0 || st.DigestsDue > 0 {
		r.Log.Debug("scheduled batch",
			zap.Int("checks_due", st.ChecksDue),
			zap.Int("checks_published", st.ChecksPublished),
			zap.Int("digests_due", st.DigestsDue),
			zap.Int("digests_published", st.DigestsPublished),
			zap.Int("errors", st.Errors),
		)
	}
	mTickDur.Observe(time.Since(start).Seconds())
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
