package postgres

import (
	"context"
	"fmt"
	"time"

	"pagewatch/internal/domain/digest"
)

var _ digest.Repo = (*DigestRepoImpl)(nil)

type DigestRepoImpl struct {
	db *DB
}

func NewDigestRepo(db *DB) *DigestRepoImpl { return &DigestRepoImpl{db: db} }

const (
	qDigestInsert = `
INSERT INTO digest_items (monitor_id, channel_id, change_id, digest_at, digest_key)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;
`

	qDigestPendingGroups = `
SELECT monitor_id, channel_id, digest_at, MIN(digest_key),
       ARRAY_AGG(id ORDER BY id), ARRAY_AGG(change_id ORDER BY id)
FROM digest_items
WHERE sent_at IS NULL AND digest_at <= $1
GROUP BY monitor_id, channel_id, digest_at
ORDER BY digest_at, monitor_id, channel_id;
`

	// Row locks keep a racing processor out of the group until the
	// surrounding transaction commits its mark-sent write.
	qDigestPendingByKey = `
SELECT id, change_id, digest_key
FROM digest_items
WHERE monitor_id = $1 AND channel_id = $2 AND digest_at = $3 AND sent_at IS NULL
ORDER BY id
FOR UPDATE;
`

	qDigestMarkSent = `
UPDATE digest_items
SET sent_at = $2
WHERE id = ANY($1) AND sent_at IS NULL;
`
)

func (r *DigestRepoImpl) Insert(ctx context.Context, it *digest.Item) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qDigestInsert,
		it.MonitorID,
		it.ChannelID,
		it.ChangeID,
		it.DigestAt,
		it.DigestKey,
	).Scan(&it.ID); err != nil {
		return fmt.Errorf("insert digest item: %w", err)
	}
	return nil
}

func (r *DigestRepoImpl) ListPendingGroups(ctx context.Context, until time.Time) ([]*digest.Group, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qDigestPendingGroups, until)
	if err != nil {
		return nil, fmt.Errorf("query pending groups: %w", err)
	}
	defer rows.Close()

	var out []*digest.Group
	for rows.Next() {
		var g digest.Group
		if err := rows.Scan(&g.MonitorID, &g.ChannelID, &g.DigestAt, &g.DigestKey, &g.ItemIDs, &g.ChangeIDs); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *DigestRepoImpl) PendingGroup(ctx context.Context, key digest.Key) (*digest.Group, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qDigestPendingByKey, key.MonitorID, key.ChannelID, key.DigestAt)
	if err != nil {
		return nil, fmt.Errorf("query pending group: %w", err)
	}
	defer rows.Close()

	var items []*digest.Item
	for rows.Next() {
		it := digest.Item{MonitorID: key.MonitorID, ChannelID: key.ChannelID, DigestAt: key.DigestAt}
		if err := rows.Scan(&it.ID, &it.ChangeID, &it.DigestKey); err != nil {
			return nil, fmt.Errorf("scan digest item: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// The query pins one key, so at most one group comes back.
	groups := digest.GroupItems(items)
	if len(groups) == 0 {
		return nil, nil
	}
	return groups[0], nil
}

func (r *DigestRepoImpl) MarkItemsSent(ctx context.Context, itemIDs []int64, at time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qDigestMarkSent, itemIDs, at); err != nil {
		return fmt.Errorf("mark digest items sent: %w", err)
	}
	return nil
}
