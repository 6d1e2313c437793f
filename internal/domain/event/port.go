package event

import "context"

type Repo interface {
	RecordNotification(ctx context.Context, n *Notification) error
	// HasSentForVersion reports whether any of the monitor's channels
	// already has a sent event for the given release version.
	HasSentForVersion(ctx context.Context, monitorID int64, releaseVersion string) (bool, error)
	RecordJobEvent(ctx context.Context, e *JobEvent) error
}
