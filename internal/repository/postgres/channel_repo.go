package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pagewatch/internal/domain/channel"
)

var _ channel.Repo = (*ChannelRepoImpl)(nil)

type ChannelRepoImpl struct {
	db *DB
}

func NewChannelRepo(db *DB) *ChannelRepoImpl { return &ChannelRepoImpl{db: db} }

const (
	qBindingsForMonitor = `
SELECT c.id, c.type, c.name, c.active, c.config,
       mc.monitor_id, mc.include_link, mc.delivery_mode, mc.last_digest_at
FROM monitor_channels mc
JOIN channels c ON c.id = mc.channel_id
WHERE mc.monitor_id = $1 AND ($2 = FALSE OR c.active = TRUE)
ORDER BY c.id;
`

	qBindingGet = `
SELECT c.id, c.type, c.name, c.active, c.config,
       mc.monitor_id, mc.include_link, mc.delivery_mode, mc.last_digest_at
FROM monitor_channels mc
JOIN channels c ON c.id = mc.channel_id
WHERE mc.monitor_id = $1 AND mc.channel_id = $2;
`

	qBindingUpdateOptions = `
UPDATE monitor_channels
SET include_link   = COALESCE($3, include_link),
    delivery_mode  = COALESCE($4, delivery_mode),
    last_digest_at = COALESCE($5, last_digest_at)
WHERE monitor_id = $1 AND channel_id = $2;
`
)

func scanBinding(row pgx.Row, b *channel.Binding) error {
	var mode string
	if err := row.Scan(
		&b.ID,
		&b.Type,
		&b.Name,
		&b.Active,
		&b.Config,
		&b.MonitorID,
		&b.IncludeLink,
		&mode,
		&b.LastDigestAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan binding: %w", err)
	}
	b.DeliveryMode = channel.Mode(mode)
	return nil
}

func (r *ChannelRepoImpl) ListForMonitor(ctx context.Context, monitorID int64, activeOnly bool) ([]*channel.Binding, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qBindingsForMonitor, monitorID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	var out []*channel.Binding
	for rows.Next() {
		var b channel.Binding
		if err := scanBinding(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ChannelRepoImpl) GetBinding(ctx context.Context, monitorID, channelID int64) (*channel.Binding, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var b channel.Binding
	if err := scanBinding(r.db.execQueryer(ctx).QueryRow(ctx, qBindingGet, monitorID, channelID), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *ChannelRepoImpl) UpdateLinkOptions(ctx context.Context, monitorID, channelID int64, patch channel.OptionsPatch) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var mode *string
	if patch.DeliveryMode != nil {
		s := string(*patch.DeliveryMode)
		mode = &s
	}

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qBindingUpdateOptions,
		monitorID, channelID, patch.IncludeLink, mode, patch.LastDigestAt)
	if err != nil {
		return fmt.Errorf("update link options: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
