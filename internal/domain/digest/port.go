package digest

import (
	"context"
	"time"
)

type Repo interface {
	Insert(ctx context.Context, it *Item) error
	// ListPendingGroups returns every group of unsent items whose
	// digest_at is at or before until. Pure read; safe to call
	// repeatedly and concurrently.
	ListPendingGroups(ctx context.Context, until time.Time) ([]*Group, error)
	// PendingGroup re-reads one group by exact key, locking its items
	// until the surrounding transaction ends. Returns nil when no
	// pending items match.
	PendingGroup(ctx context.Context, key Key) (*Group, error)
	MarkItemsSent(ctx context.Context, itemIDs []int64, at time.Time) error
}
