package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"pagewatch/internal/domain/event"
)

type stubTx struct{ pgx.Tx }

func TestEventRepo_FailedNotificationsBypassAmbientTx(t *testing.T) {
	db := &DB{}
	repo := NewEventRepo(db)

	tx := &stubTx{}
	ctx := context.WithValue(context.Background(), txInjector{}, pgx.Tx(tx))

	// Sent rows commit together with the digest mark-sent update.
	require.Equal(t, execQueryer(tx), repo.notifExecutor(ctx, event.StatusSent))

	// Failed rows must outlive the rollback that requeues the group.
	require.Equal(t, execQueryer(db.Pool), repo.notifExecutor(ctx, event.StatusFailed))

	// Without a transaction everything goes through the pool.
	require.Equal(t, execQueryer(db.Pool), repo.notifExecutor(context.Background(), event.StatusSent))
}
