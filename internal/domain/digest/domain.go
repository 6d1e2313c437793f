package digest

import "time"

// Item is one pending (monitor, channel, change) tuple scheduled for
// batched delivery at DigestAt.
type Item struct {
	ID        int64      `json:"id"`
	MonitorID int64      `json:"monitor_id"`
	ChannelID int64      `json:"channel_id"`
	ChangeID  int64      `json:"change_id"`
	DigestAt  time.Time  `json:"digest_at"`
	DigestKey string     `json:"digest_key"`
	SentAt    *time.Time `json:"sent_at"`
}

// Group is every pending item sharing one (monitor, channel, digest_at)
// key, delivered as a single aggregated notification.
type Group struct {
	MonitorID int64     `json:"monitor_id"`
	ChannelID int64     `json:"channel_id"`
	DigestAt  time.Time `json:"digest_at"`
	DigestKey string    `json:"digest_key"`
	ItemIDs   []int64   `json:"item_ids"`
	ChangeIDs []int64   `json:"change_ids"`
}

// Key identifies one group.
type Key struct {
	MonitorID int64
	ChannelID int64
	DigestAt  time.Time
}

func (g *Group) Key() Key {
	return Key{MonitorID: g.MonitorID, ChannelID: g.ChannelID, DigestAt: g.DigestAt}
}
