package check_worker

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"pagewatch/internal/domain/joblock"
	kafkax "pagewatch/internal/repository/kafka"
	"pagewatch/internal/worker"
)

type Controller struct {
	Log  *zap.Logger
	Sub  *kafkax.Consumer
	Jobs *worker.Runner
	UC   *Handler
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(
		func(ctx context.Context, _ []byte, job *kafkax.CheckJob) error {
			if job.MonitorID <= 0 {
				c.Log.Warn("invalid check unit", zap.Int64("monitor_id", job.MonitorID))
				return nil
			}
			key := strconv.FormatInt(job.MonitorID, 10)
			return c.Jobs.Do(ctx, joblock.KindCheck, key, job.MonitorID, func(ctx context.Context) (string, error) {
				return c.UC.HandleCheck(ctx, job.MonitorID)
			})
		},
	)
	return c.Sub.Consume(ctx, handler)
}
