package postgres

import (
	"context"
	"fmt"

	"pagewatch/internal/domain/monitor"
)

var _ monitor.ChangeRepo = (*ChangeRepoImpl)(nil)

type ChangeRepoImpl struct {
	db *DB
}

func NewChangeRepo(db *DB) *ChangeRepoImpl { return &ChangeRepoImpl{db: db} }

const (
	qChangeInsert = `
INSERT INTO changes (monitor_id, release_version, summary)
VALUES ($1, $2, $3)
RETURNING id, created_at;
`

	qChangesByIDs = `
SELECT id, monitor_id, release_version, summary, created_at
FROM changes
WHERE id = ANY($1)
ORDER BY created_at, id;
`
)

func (r *ChangeRepoImpl) Insert(ctx context.Context, c *monitor.Change) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qChangeInsert,
		c.MonitorID,
		c.ReleaseVersion,
		c.Summary,
	).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}

func (r *ChangeRepoImpl) GetByIDs(ctx context.Context, ids []int64) ([]*monitor.Change, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qChangesByIDs, ids)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	out := make([]*monitor.Change, 0, len(ids))
	for rows.Next() {
		var c monitor.Change
		if err := rows.Scan(&c.ID, &c.MonitorID, &c.ReleaseVersion, &c.Summary, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
