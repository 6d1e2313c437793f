package channel

import (
	"encoding/json"
	"time"
)

// Mode is the per-(monitor, channel) delivery mode.
type Mode string

const (
	ModeImmediate    Mode = "immediate"
	ModeWeeklyDigest Mode = "weekly_digest"
)

type Channel struct {
	ID     int64           `json:"id"`
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Active bool            `json:"active"`
	Config json.RawMessage `json:"config"`
}

// Binding is a channel together with its link options for one monitor.
type Binding struct {
	Channel
	MonitorID    int64      `json:"monitor_id"`
	IncludeLink  *bool      `json:"include_link"`
	DeliveryMode Mode       `json:"delivery_mode"`
	LastDigestAt *time.Time `json:"last_digest_at"`
}

// OptionsPatch updates a binding's options; nil fields are left untouched.
type OptionsPatch struct {
	IncludeLink  *bool
	DeliveryMode *Mode
	LastDigestAt *time.Time
}
