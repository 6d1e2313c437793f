package monitor

import "time"

type Monitor struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	URL           string        `json:"url"`
	Active        bool          `json:"active"`
	IncludeLink   bool          `json:"include_link"`
	LastHash      string        `json:"last_hash"`
	CheckInterval time.Duration `json:"check_interval"`
	NextCheckAt   time.Time     `json:"next_check_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Change is one detected modification of a monitored resource.
// Immutable once recorded.
type Change struct {
	ID             int64     `json:"id"`
	MonitorID      int64     `json:"monitor_id"`
	ReleaseVersion string    `json:"release_version"`
	Summary        string    `json:"summary"`
	CreatedAt      time.Time `json:"created_at"`
}
