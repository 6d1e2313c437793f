package queue

import (
	"context"

	"pagewatch/internal/domain/digest"
)

// Jobs publishes units of work onto the durable queue.
type Jobs interface {
	PublishCheckRequested(ctx context.Context, monitorID int64) error
	PublishDigestDue(ctx context.Context, g *digest.Group) error
}
