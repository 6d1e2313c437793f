package event

import "time"

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Notification is one append-only audit record of a delivery attempt.
// Rows are never mutated or deleted.
type Notification struct {
	ID             int64     `json:"id"`
	ChangeID       *int64    `json:"change_id"`
	ChannelID      *int64    `json:"channel_id"`
	Status         Status    `json:"status"`
	Detail         string    `json:"detail"`
	ReleaseVersion string    `json:"release_version"`
	CreatedAt      time.Time `json:"created_at"`
}

type JobStatus string

const (
	JobStarted JobStatus = "started"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
	JobSkipped JobStatus = "skipped"
)

type JobEvent struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"`
	Status    JobStatus `json:"status"`
	MonitorID *int64    `json:"monitor_id"`
	Message   string    `json:"message"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}
