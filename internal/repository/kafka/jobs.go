package kafka

import (
	"context"
	"fmt"
	"time"

	"pagewatch/internal/domain/digest"
	"pagewatch/internal/domain/queue"
)

// CheckJob is the serialized check unit.
type CheckJob struct {
	MonitorID int64 `json:"monitorId"`
}

// DigestJob is the serialized digest unit. DigestAt carries the group's
// scheduled fire time as an RFC 3339 string.
type DigestJob struct {
	MonitorID int64  `json:"monitorId"`
	ChannelID int64  `json:"channelId"`
	DigestAt  string `json:"digestAt"`
}

func (j *DigestJob) At() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, j.DigestAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse digestAt %q: %w", j.DigestAt, err)
	}
	return t, nil
}

// LockKey derives the digest worker's lock key for this unit.
func (j *DigestJob) LockKey() string {
	return fmt.Sprintf("%d:%d:%s", j.MonitorID, j.ChannelID, j.DigestAt)
}

type JobsKafka struct {
	checks  *Producer
	digests *Producer
}

func NewJobsKafka(checks, digests *Producer) *JobsKafka {
	return &JobsKafka{checks: checks, digests: digests}
}

var _ queue.Jobs = (*JobsKafka)(nil)

func (j *JobsKafka) PublishCheckRequested(ctx context.Context, monitorID int64) error {
	return j.checks.PublishJSON(ctx, KeyFromInt64(monitorID), &CheckJob{MonitorID: monitorID})
}

func (j *JobsKafka) PublishDigestDue(ctx context.Context, g *digest.Group) error {
	job := &DigestJob{
		MonitorID: g.MonitorID,
		ChannelID: g.ChannelID,
		DigestAt:  g.DigestAt.UTC().Format(time.RFC3339),
	}
	key := fmt.Sprintf("%d:%d", g.MonitorID, g.ChannelID)
	return j.digests.PublishJSON(ctx, []byte(key), job)
}
