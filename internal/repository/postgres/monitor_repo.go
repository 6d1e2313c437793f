package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pagewatch/internal/domain/monitor"
)

var _ monitor.Repo = (*MonitorRepoImpl)(nil)

type MonitorRepoImpl struct {
	db *DB
}

func NewMonitorRepo(db *DB) *MonitorRepoImpl { return &MonitorRepoImpl{db: db} }

const (
	qMonitorGetByID = `
SELECT id, name, url, active, include_link, last_hash, check_interval_sec, next_check_at, created_at, updated_at
FROM monitors
WHERE id = $1;
`

	qMonitorFetchDue = `
SELECT id, name, url, active, include_link, last_hash, check_interval_sec, next_check_at, created_at, updated_at
FROM monitors
WHERE active = TRUE AND next_check_at <= NOW()
ORDER BY next_check_at
FOR UPDATE SKIP LOCKED
LIMIT $1;
`

	qMonitorUpdateHash = `
UPDATE monitors
SET last_hash = $2, updated_at = NOW()
WHERE id = $1;
`

	qMonitorBumpNextCheck = `
UPDATE monitors
SET next_check_at = NOW() + (check_interval_sec * INTERVAL '1 second'),
    updated_at = NOW()
WHERE id = ANY($1);
`
)

func scanMonitor(row pgx.Row, m *monitor.Monitor) error {
	var intervalSec int
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.URL,
		&m.Active,
		&m.IncludeLink,
		&m.LastHash,
		&intervalSec,
		&m.NextCheckAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan monitor: %w", err)
	}
	m.CheckInterval = time.Duration(intervalSec) * time.Second
	return nil
}

func (r *MonitorRepoImpl) GetByID(ctx context.Context, id int64) (*monitor.Monitor, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var m monitor.Monitor
	if err := scanMonitor(r.db.execQueryer(ctx).QueryRow(ctx, qMonitorGetByID, id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MonitorRepoImpl) UpdateLastHash(ctx context.Context, id int64, hash string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qMonitorUpdateHash, id, hash); err != nil {
		return fmt.Errorf("update last_hash: %w", err)
	}
	return nil
}

// FetchDue claims due monitors and bumps their next_check_at inside one
// transaction, so concurrent scheduler ticks never claim the same monitor.
func (r *MonitorRepoImpl) FetchDue(ctx context.Context, limit int) ([]*monitor.Monitor, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, qMonitorFetchDue, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch due: %w", err)
	}
	defer rows.Close()

	var (
		out []*monitor.Monitor
		ids []int64
	)
	for rows.Next() {
		var m monitor.Monitor
		if err := scanMonitor(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, qMonitorBumpNextCheck, ids); err != nil {
		return nil, fmt.Errorf("bump next_check_at: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}
