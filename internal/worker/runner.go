package worker

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"pagewatch/internal/domain/event"
	"pagewatch/internal/domain/joblock"
	"pagewatch/internal/obs"
)

var (
	mJobsDone = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_jobs_done_total", Help: "Jobs completed.",
	}, []string{"kind"})
	mJobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_jobs_failed_total", Help: "Jobs that errored (left for queue retry).",
	}, []string{"kind"})
	mJobsLockHeld = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_jobs_lock_held_total", Help: "Jobs dropped because the lock was held elsewhere.",
	}, []string{"kind"})
)

// Runner executes one unit of work under its job lock and records the
// unit's lifecycle in the job-event log. The lock is released in all
// cases; contention is a normal skipped outcome, not an error.
type Runner struct {
	log    *zap.Logger
	locks  joblock.Repo
	events event.Repo
	holder string
}

func NewRunner(log *zap.Logger, locks joblock.Repo, events event.Repo) *Runner {
	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}
	return &Runner{
		log:    log,
		locks:  locks,
		events: events,
		holder: host + ":" + uuid.NewString(),
	}
}

// Do acquires the (kind, key) lock and runs fn. A held lock drops the
// unit with a skipped job event; fn's error is recorded and propagated
// so the queue redelivers the unit.
func (r *Runner) Do(ctx context.Context, kind, key string, monitorID int64, fn func(ctx context.Context) (string, error)) error {
	jobID := kind + ":" + key
	log := obs.WithTrace(ctx, r.log).With(zap.String("job_id", jobID))

	ok, err := r.locks.Acquire(ctx, kind, key, r.holder)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", jobID, err)
	}
	if !ok {
		mJobsLockHeld.WithLabelValues(kind).Inc()
		log.Debug("lock held elsewhere; dropping unit")
		r.record(ctx, log, jobID, kind, monitorID, event.JobSkipped, "lock held", "")
		return nil
	}
	defer func() {
		if err := r.locks.Release(ctx, kind, key, r.holder); err != nil {
			log.Warn("release lock", zap.Error(err))
		}
	}()

	r.record(ctx, log, jobID, kind, monitorID, event.JobStarted, "", "")

	msg, err := fn(ctx)
	if err != nil {
		mJobsFailed.WithLabelValues(kind).Inc()
		r.record(ctx, log, jobID, kind, monitorID, event.JobFailed, msg, err.Error())
		return err
	}

	mJobsDone.WithLabelValues(kind).Inc()
	r.record(ctx, log, jobID, kind, monitorID, event.JobDone, msg, "")
	return nil
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, jobID, kind string, monitorID int64, status event.JobStatus, message, errText string) {
	e := &event.JobEvent{
		JobID:   jobID,
		Kind:    kind,
		Status:  status,
		Message: message,
		Error:   errText,
	}
	if monitorID > 0 {
		id := monitorID
		e.MonitorID = &id
	}
	if err := r.events.RecordJobEvent(ctx, e); err != nil {
		log.Error("record job event", zap.String("status", string(status)), zap.Error(err))
	}
}
