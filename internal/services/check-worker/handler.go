package check_worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	digestproc "pagewatch/internal/digest"
	"pagewatch/internal/dispatch"
	"pagewatch/internal/domain/channel"
	"pagewatch/internal/domain/digest"
	"pagewatch/internal/domain/monitor"
	"pagewatch/internal/repository/postgres"
)

// ContentChecker is the fetching/diffing collaborator. A nil change
// means the resource is unchanged.
type ContentChecker interface {
	Check(ctx context.Context, mon *monitor.Monitor) (*monitor.Change, error)
}

// DigestSchedule is the weekly fire-time policy for digest-mode channels.
type DigestSchedule struct {
	Weekday time.Weekday
	Hour    int
}

type Handler struct {
	Log        *zap.Logger
	Monitors   monitor.Repo
	Changes    monitor.ChangeRepo
	Channels   channel.Repo
	Items      digest.Repo
	Dispatcher *dispatch.Dispatcher
	Checker    ContentChecker
	Clock      monitor.Clock
	Schedule   DigestSchedule
}

// HandleCheck runs one content check. A detected change goes out
// immediately on immediate-mode channels and is queued as a digest item
// for weekly-digest channels.
func (h *Handler) HandleCheck(ctx context.Context, monitorID int64) (string, error) {
	log := h.Log.With(zap.Int64("monitor_id", monitorID))

	mon, err := h.Monitors.GetByID(ctx, monitorID)
	if errors.Is(err, postgres.ErrNotFound) {
		return "monitor missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("get monitor: %w", err)
	}
	if !mon.Active {
		return "monitor inactive", nil
	}

	change, err := h.Checker.Check(ctx, mon)
	if err != nil {
		return "", fmt.Errorf("content check: %w", err)
	}
	if change == nil {
		return "no change", nil
	}

	if err := h.Changes.Insert(ctx, change); err != nil {
		return "", fmt.Errorf("record change: %w", err)
	}
	log.Info("change detected",
		zap.Int64("change_id", change.ID),
		zap.String("release_version", change.ReleaseVersion))

	bindings, err := h.Channels.ListForMonitor(ctx, mon.ID, true)
	if err != nil {
		return "", fmt.Errorf("list channels: %w", err)
	}

	var immediate []*channel.Binding
	queued := 0
	now := h.Clock.Now()
	for _, b := range bindings {
		switch b.DeliveryMode {
		case channel.ModeWeeklyDigest:
			fireAt := digestproc.NextFireTime(now, h.Schedule.Weekday, h.Schedule.Hour)
			item := &digest.Item{
				MonitorID: mon.ID,
				ChannelID: b.ID,
				ChangeID:  change.ID,
				DigestAt:  fireAt,
				DigestKey: digestproc.KeyFor(fireAt),
			}
			if err := h.Items.Insert(ctx, item); err != nil {
				return "", fmt.Errorf("queue digest item: %w", err)
			}
			queued++
		default:
			immediate = append(immediate, b)
		}
	}

	sent, failed := 0, 0
	if len(immediate) > 0 {
		results, err := h.Dispatcher.Dispatch(ctx, change, mon, immediate, "", nil)
		if err != nil {
			return "", fmt.Errorf("dispatch change: %w", err)
		}
		// Per-channel failures are already in the audit trail; they do
		// not fail the check unit.
		for _, r := range results {
			if r.OK {
				sent++
			} else {
				failed++
				log.Warn("immediate send failed",
					zap.Int64("channel_id", r.ChannelID), zap.Error(r.Err))
			}
		}
	}

	return fmt.Sprintf("change %d: %d sent, %d failed, %d queued for digest",
		change.ID, sent, failed, queued), nil
}
