package channel

import "context"

type Repo interface {
	ListForMonitor(ctx context.Context, monitorID int64, activeOnly bool) ([]*Binding, error)
	GetBinding(ctx context.Context, monitorID, channelID int64) (*Binding, error)
	UpdateLinkOptions(ctx context.Context, monitorID, channelID int64, patch OptionsPatch) error
}
