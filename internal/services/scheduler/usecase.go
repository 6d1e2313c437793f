package scheduler

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"pagewatch/internal/domain/digest"
	"pagewatch/internal/domain/monitor"
	"pagewatch/internal/domain/queue"
	"pagewatch/internal/obs/retry"
)

type Stats struct {
	ChecksDue        int
	ChecksPublished  int
	DigestsDue       int
	DigestsPublished int
	Errors           int
}

// Usecase publishes due work onto the queue: monitors whose check is
// due, and digest groups whose fire time has passed. Both are derived
// from queryable state, so a failed publish is simply re-derived on the
// next tick.
type Usecase struct {
	Log      *zap.Logger
	Monitors monitor.Repo
	Digests  digest.Repo
	Jobs     queue.Jobs
	Clock    monitor.Clock
	Policy   retry.Policy
}

func (u *Usecase) Tick(ctx context.Context, limit int) (Stats, error) {
	if limit <= 0 {
		limit = 100
	}

	tr := otel.Tracer("scheduler.uc")
	ctx, span := tr.Start(ctx, "scheduler.tick",
		trace.WithAttributes(attribute.Int("batch.limit", limit)),
	)
	defer span.End()

	var st Stats

	due, err := u.Monitors.FetchDue(ctx, limit)
	if err != nil {
		span.RecordError(err)
		return st, fmt.Errorf("fetch due monitors: %w", err)
	}
	st.ChecksDue = len(due)
	for _, m := range due {
		id := m.ID
		err := retry.Do(ctx, func() error {
			return u.Jobs.PublishCheckRequested(ctx, id)
		}, u.Policy)
		if err != nil {
			st.Errors++
			u.Log.Warn("publish check unit", zap.Int64("monitor_id", id), zap.Error(err))
			continue
		}
		st.ChecksPublished++
	}

	groups, err := u.Digests.ListPendingGroups(ctx, u.Clock.Now())
	if err != nil {
		span.RecordError(err)
		return st, fmt.Errorf("list due digest groups: %w", err)
	}
	st.DigestsDue = len(groups)
	for _, g := range groups {
		g := g
		err := retry.Do(ctx, func() error {
			return u.Jobs.PublishDigestDue(ctx, g)
		}, u.Policy)
		if err != nil {
			st.Errors++
			u.Log.Warn("publish digest unit",
				zap.Int64("monitor_id", g.MonitorID),
				zap.Int64("channel_id", g.ChannelID),
				zap.Error(err))
			continue
		}
		st.DigestsPublished++
	}

	span.SetAttributes(
		attribute.Int("checks.published", st.ChecksPublished),
		attribute.Int("digests.published", st.DigestsPublished),
		attribute.Int("errors", st.Errors),
	)
	return st, nil
}
