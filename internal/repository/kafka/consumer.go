package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processes one message. A nil return commits the offset; an
// error leaves it uncommitted so the group redelivers the message.
type Handler func(ctx context.Context, key, value []byte) error

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	MinBytes      int
	MaxBytes      int
	Logger        *zap.Logger
}

type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
	cfg    *ConsumerConfig
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1 << 10
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}

	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,
		MinBytes:              cfg.MinBytes,
		MaxBytes:              cfg.MaxBytes,
		SessionTimeout:        10 * time.Second,
		RebalanceTimeout:      15 * time.Second,
		HeartbeatInterval:     3 * time.Second,
	})

	return &Consumer{reader: r, log: consumerLogger(cfg.Logger, cfg), cfg: cfg}
}

func consumerLogger(l *zap.Logger, cfg *ConsumerConfig) *zap.Logger {
	return l.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", cfg.Topic),
		zap.String("group", cfg.GroupID),
	)
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = consumerLogger(l, c.cfg)
	return &cp
}

const (
	fetchBackoffMin = 200 * time.Millisecond
	fetchBackoffMax = 5 * time.Second
)

// Consume runs the fetch-handle-commit loop until ctx is canceled.
// Fetch failures back off exponentially up to fetchBackoffMax; a
// handler error skips the commit and moves on, leaving redelivery to
// the group.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	c.log.Info("consumer started")

	wait := fetchBackoffMin
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopped")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				c.log.Debug("fetch EOF", zap.Duration("wait", wait))
			} else {
				c.log.Warn("fetch failed", zap.Error(err), zap.Duration("wait", wait))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > fetchBackoffMax {
				wait = fetchBackoffMax
			}
			continue
		}
		wait = fetchBackoffMin

		if err := h(ctx, msg.Key, msg.Value); err != nil {
			c.log.Error("handler error",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("commit failed", zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
