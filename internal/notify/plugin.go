package notify

import (
	"context"
	"encoding/json"
	"time"

	"pagewatch/internal/domain/monitor"
)

// Message is one rendered notification handed to a channel notifier.
// Link is empty when link inclusion is resolved off for the channel.
type Message struct {
	Text    string
	Monitor *monitor.Monitor
	Link    string
}

// Notifier delivers one message to one provider. A nil return is a
// confirmed-accepted send; anything the provider rejected comes back as
// an error.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Config is a validated, channel-type-specific configuration.
type Config interface {
	Validate() error
}

// Plugin is one channel-type variant. The set of variants is closed:
// adding a channel type means registering another Plugin, never
// extending an existing one.
type Plugin interface {
	ID() string
	Label() string
	// ParseConfig decodes and validates a channel's raw configuration.
	ParseConfig(raw json.RawMessage) (Config, error)
	// Notifier builds a send-capable instance from a config previously
	// returned by ParseConfig.
	Notifier(cfg Config) (Notifier, error)
}

// DigestContext carries everything a channel-specific digest rendering
// may want.
type DigestContext struct {
	Monitor     *monitor.Monitor
	Changes     []*monitor.Change
	WindowStart time.Time
	WindowEnd   time.Time
}

// DigestFormatter is an optional capability: a plugin that understands
// its channel family's formatting can override the generic aggregation.
// Returning false defers to the generic renderer.
type DigestFormatter interface {
	FormatDigest(dc DigestContext) (string, bool)
}

// LinkResolver is an optional capability: a canonical URL to show in
// place of the raw monitored URL. Returning false falls back to the
// monitor's URL.
type LinkResolver interface {
	MonitorLink(m *monitor.Monitor) (string, bool)
}
