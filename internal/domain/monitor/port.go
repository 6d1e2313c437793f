package monitor

import (
	"context"
	"time"
)

type Repo interface {
	GetByID(ctx context.Context, id int64) (*Monitor, error)
	FetchDue(ctx context.Context, limit int) ([]*Monitor, error)
	UpdateLastHash(ctx context.Context, id int64, hash string) error
}

type ChangeRepo interface {
	Insert(ctx context.Context, c *Change) error
	// GetByIDs returns the changes that still exist; missing ids are
	// silently omitted.
	GetByIDs(ctx context.Context, ids []int64) ([]*Change, error)
}

type Clock interface {
	Now() time.Time
}
