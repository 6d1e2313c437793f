package digest_worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	digestproc "pagewatch/internal/digest"
	"pagewatch/internal/domain/joblock"
	kafkax "pagewatch/internal/repository/kafka"
	"pagewatch/internal/worker"
)

type Controller struct {
	Log  *zap.Logger
	Sub  *kafkax.Consumer
	Jobs *worker.Runner
	Proc *digestproc.Processor
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(
		func(ctx context.Context, _ []byte, job *kafkax.DigestJob) error {
			if job.MonitorID <= 0 || job.ChannelID <= 0 {
				c.Log.Warn("invalid digest unit",
					zap.Int64("monitor_id", job.MonitorID),
					zap.Int64("channel_id", job.ChannelID))
				return nil
			}
			at, err := job.At()
			if err != nil {
				// Malformed unit; dropping it beats redelivering forever.
				c.Log.Warn("invalid digest unit timestamp", zap.Error(err))
				return nil
			}
			return c.Jobs.Do(ctx, joblock.KindDigest, job.LockKey(), job.MonitorID, func(ctx context.Context) (string, error) {
				out, err := c.Proc.Process(ctx, digestproc.Job{
					MonitorID: job.MonitorID,
					ChannelID: job.ChannelID,
					DigestAt:  at,
				})
				if err != nil {
					return "", err
				}
				return outcomeMessage(out), nil
			})
		},
	)
	return c.Sub.Consume(ctx, handler)
}

func outcomeMessage(out digestproc.Outcome) string {
	switch out.Status {
	case digestproc.StatusSent:
		return fmt.Sprintf("sent %d item(s)", out.ItemCount)
	case digestproc.StatusSkipped:
		return "skipped: " + out.Reason
	default:
		return "no pending group"
	}
}
