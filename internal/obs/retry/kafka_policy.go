package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultKafkaPolicy backs queue publishes from the scheduler.
func DefaultKafkaPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "kafka_publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("publish retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("publish retries exhausted", zap.Error(err))
			}
		},
	}
}
