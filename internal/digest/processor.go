package digestproc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"pagewatch/internal/dispatch"
	"pagewatch/internal/domain/channel"
	"pagewatch/internal/domain/digest"
	"pagewatch/internal/domain/monitor"
	"pagewatch/internal/notify"
	"pagewatch/internal/obs"
	"pagewatch/internal/repository/postgres"
)

type Status string

const (
	StatusNone    Status = "none"
	StatusSkipped Status = "skipped"
	StatusSent    Status = "sent"
)

// Job identifies one digest group to process.
type Job struct {
	MonitorID int64
	ChannelID int64
	DigestAt  time.Time
}

type Outcome struct {
	Status    Status
	Reason    string
	ItemCount int
	Summary   string
}

var (
	mGroupsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digest_groups_sent_total", Help: "Digest groups dispatched successfully.",
	})
	mGroupsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digest_groups_skipped_total", Help: "Digest groups consumed without delivery.",
	})
	mGroupsGone = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digest_groups_gone_total", Help: "Digest jobs whose group was already consumed.",
	})
	mProcessDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "digest_process_duration_seconds", Help: "Digest group processing duration.",
		Buckets: prometheus.DefBuckets,
	})
)

// Processor orchestrates one digest group: re-reads it, validates
// preconditions against current state, aggregates content, dispatches to
// the single target channel, and consumes the group.
type Processor struct {
	log        *zap.Logger
	tx         postgres.Transactor
	monitors   monitor.Repo
	changes    monitor.ChangeRepo
	channels   channel.Repo
	items      digest.Repo
	registry   *notify.Registry
	dispatcher *dispatch.Dispatcher
	clock      monitor.Clock
}

func NewProcessor(
	log *zap.Logger,
	tx postgres.Transactor,
	monitors monitor.Repo,
	changes monitor.ChangeRepo,
	channels channel.Repo,
	items digest.Repo,
	registry *notify.Registry,
	dispatcher *dispatch.Dispatcher,
	clock monitor.Clock,
) *Processor {
	return &Processor{
		log:        log,
		tx:         tx,
		monitors:   monitors,
		changes:    changes,
		channels:   channels,
		items:      items,
		registry:   registry,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

// Process handles one digest job. Precondition failures consume the
// group and return a skipped outcome; a dispatch failure returns an
// error with the group left unconsumed, so the queue can redeliver it.
// The whole read-group → decide → mark-sent sequence runs inside one
// transaction.
func (p *Processor) Process(ctx context.Context, job Job) (Outcome, error) {
	start := time.Now()
	defer func() { mProcessDur.Observe(time.Since(start).Seconds()) }()

	tr := otel.Tracer("digest.processor")
	ctx, span := tr.Start(ctx, "digest.process")
	span.SetAttributes(
		attribute.Int64("monitor.id", job.MonitorID),
		attribute.Int64("channel.id", job.ChannelID),
		attribute.String("digest.at", job.DigestAt.UTC().Format(time.RFC3339)),
	)
	defer span.End()

	var out Outcome
	err := p.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.process(ctx, job)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}

	switch out.Status {
	case StatusSent:
		mGroupsSent.Inc()
	case StatusSkipped:
		mGroupsSkipped.Inc()
	case StatusNone:
		mGroupsGone.Inc()
	}
	return out, nil
}

func (p *Processor) process(ctx context.Context, job Job) (Outcome, error) {
	log := obs.WithTrace(ctx, p.log).With(
		zap.Int64("monitor_id", job.MonitorID),
		zap.Int64("channel_id", job.ChannelID),
		zap.Time("digest_at", job.DigestAt),
	)

	// Always a fresh read: group membership may have shifted between
	// enqueue and processing.
	group, err := p.items.PendingGroup(ctx, digest.Key{
		MonitorID: job.MonitorID,
		ChannelID: job.ChannelID,
		DigestAt:  job.DigestAt,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("read group: %w", err)
	}
	if group == nil || len(group.ItemIDs) == 0 {
		return Outcome{Status: StatusNone}, nil
	}

	mon, err := p.monitors.GetByID(ctx, group.MonitorID)
	if err != nil && !errors.Is(err, postgres.ErrNotFound) {
		return Outcome{}, fmt.Errorf("get monitor: %w", err)
	}
	if mon == nil || !mon.Active {
		return p.consume(ctx, log, group, "monitor missing or inactive")
	}

	binding, err := p.channels.GetBinding(ctx, group.MonitorID, group.ChannelID)
	if err != nil && !errors.Is(err, postgres.ErrNotFound) {
		return Outcome{}, fmt.Errorf("get binding: %w", err)
	}
	// Delivery intent is whatever the configuration says now, not what
	// it said when the items were queued.
	if binding == nil || binding.DeliveryMode != channel.ModeWeeklyDigest {
		return p.consume(ctx, log, group, "channel missing or no longer in digest mode")
	}

	changes, err := p.changes.GetByIDs(ctx, group.ChangeIDs)
	if err != nil {
		return Outcome{}, fmt.Errorf("get changes: %w", err)
	}
	if len(changes) == 0 {
		return p.consume(ctx, log, group, "underlying changes missing")
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].CreatedAt.Before(changes[j].CreatedAt)
	})

	winStart, winEnd := Window(group.DigestKey, group.DigestAt)
	summary := p.render(mon, binding, changes, winStart, winEnd)
	if summary == "" {
		return p.consume(ctx, log, group, "aggregated content empty")
	}

	// One synthetic change carries the aggregated text; the refs keep
	// every underlying change in the audit trail.
	latest := changes[len(changes)-1]
	agg := *latest
	agg.Summary = summary

	refs := make([]dispatch.EventRef, 0, len(changes))
	for _, c := range changes {
		refs = append(refs, dispatch.EventRef{ChangeID: c.ID, ReleaseVersion: c.ReleaseVersion})
	}

	results, err := p.dispatcher.Dispatch(ctx, &agg, mon, []*channel.Binding{binding}, "", &dispatch.Options{
		EventRefs: refs,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("dispatch digest: %w", err)
	}
	for _, r := range results {
		if !r.OK {
			// The group stays unconsumed so the queue can retry it.
			return Outcome{}, fmt.Errorf("digest dispatch failed: %s", r.Err)
		}
	}

	now := p.clock.Now()
	if err := p.items.MarkItemsSent(ctx, group.ItemIDs, now); err != nil {
		return Outcome{}, fmt.Errorf("mark items sent: %w", err)
	}
	digestAt := group.DigestAt
	if err := p.channels.UpdateLinkOptions(ctx, group.MonitorID, group.ChannelID, channel.OptionsPatch{
		LastDigestAt: &digestAt,
	}); err != nil {
		return Outcome{}, fmt.Errorf("update last digest: %w", err)
	}

	log.Info("digest sent", zap.Int("items", len(group.ItemIDs)))
	return Outcome{Status: StatusSent, ItemCount: len(group.ItemIDs), Summary: summary}, nil
}

// render prefers the channel plugin's own digest formatting and falls
// back to the generic aggregation chain.
func (p *Processor) render(mon *monitor.Monitor, binding *channel.Binding, changes []*monitor.Change, start, end time.Time) string {
	if plugin, ok := p.registry.Get(binding.Type); ok {
		if f, ok := plugin.(notify.DigestFormatter); ok {
			if text, ok := f.FormatDigest(notify.DigestContext{
				Monitor:     mon,
				Changes:     changes,
				WindowStart: start,
				WindowEnd:   end,
			}); ok && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	return strings.TrimSpace(RenderDigest(mon, changes, start, end))
}

// consume marks the group sent without delivery so a permanently
// undeliverable group is never reprocessed.
func (p *Processor) consume(ctx context.Context, log *zap.Logger, group *digest.Group, reason string) (Outcome, error) {
	if err := p.items.MarkItemsSent(ctx, group.ItemIDs, p.clock.Now()); err != nil {
		return Outcome{}, fmt.Errorf("consume group: %w", err)
	}
	log.Info("digest skipped", zap.String("reason", reason), zap.Int("items", len(group.ItemIDs)))
	return Outcome{Status: StatusSkipped, Reason: reason, ItemCount: len(group.ItemIDs)}, nil
}
