package kafka

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	MaxWait           time.Duration
}

// EnsureTopic creates the topic on the cluster controller if it does
// not exist yet and waits until partitions become visible, so the first
// scheduler tick does not race topic auto-creation. Not seeing the
// topic before MaxWait is logged but not an error.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("topic", spec.Name))

	if spec.NumPartitions <= 0 {
		spec.NumPartitions = 1
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 1
	}
	if spec.MaxWait <= 0 {
		spec.MaxWait = 5 * time.Second
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		log.Warn("broker dial failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	ctrl, err := conn.Controller()
	if err != nil {
		log.Warn("controller lookup failed", zap.Error(err))
		return err
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(ctrl.Host, strconv.Itoa(ctrl.Port)))
	if err != nil {
		log.Warn("controller dial failed", zap.Error(err))
		return err
	}
	defer cc.Close()

	if err := cc.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	}); err != nil {
		// Usually "topic already exists"; the visibility wait below decides.
		log.Debug("create topic", zap.Error(err))
	}

	deadline := time.Now().Add(spec.MaxWait)
	for {
		if ps, err := conn.ReadPartitions(spec.Name); err == nil && len(ps) > 0 {
			log.Info("topic ready", zap.Int("partitions", len(ps)))
			return nil
		}
		if time.Now().After(deadline) {
			log.Warn("topic not visible before deadline")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
