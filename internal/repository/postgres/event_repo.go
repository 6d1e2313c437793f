package postgres

import (
	"context"
	"fmt"

	"pagewatch/internal/domain/event"
)

var _ event.Repo = (*EventRepoImpl)(nil)

type EventRepoImpl struct {
	db *DB
}

func NewEventRepo(db *DB) *EventRepoImpl { return &EventRepoImpl{db: db} }

const (
	qNotificationInsert = `
INSERT INTO notification_events (change_id, channel_id, status, detail, release_version)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at;
`

	qHasSentForVersion = `
SELECT 1
FROM notification_events e
JOIN changes c ON c.id = e.change_id
WHERE c.monitor_id = $1 AND e.release_version = $2 AND e.status = 'sent'
LIMIT 1;
`

	qJobEventInsert = `
INSERT INTO job_events (job_id, kind, status, monitor_id, message, error)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at;
`
)

// notifExecutor picks where a notification row is written. Sent rows
// join any ambient transaction so they commit atomically with mark-sent;
// failed rows go straight to the pool, because the digest processor
// deliberately errors out of its transaction to trigger queue redelivery
// and the failure audit row must survive that rollback.
func (r *EventRepoImpl) notifExecutor(ctx context.Context, status event.Status) execQueryer {
	if status == event.StatusFailed {
		return r.db.Pool
	}
	return r.db.execQueryer(ctx)
}

func (r *EventRepoImpl) RecordNotification(ctx context.Context, n *event.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.notifExecutor(ctx, n.Status).QueryRow(ctx, qNotificationInsert,
		n.ChangeID,
		n.ChannelID,
		string(n.Status),
		n.Detail,
		n.ReleaseVersion,
	).Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification event: %w", err)
	}
	return nil
}

func (r *EventRepoImpl) HasSentForVersion(ctx context.Context, monitorID int64, releaseVersion string) (bool, error) {
	if releaseVersion == "" {
		return false, nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qHasSentForVersion, monitorID, releaseVersion)
	if err != nil {
		return false, fmt.Errorf("query sent versions: %w", err)
	}
	return oneRow(rows), nil
}

func (r *EventRepoImpl) RecordJobEvent(ctx context.Context, e *event.JobEvent) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qJobEventInsert,
		e.JobID,
		e.Kind,
		string(e.Status),
		e.MonitorID,
		e.Message,
		e.Error,
	).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}
