package digest

// GroupItems buckets pending items by (monitor, channel, digest_at). It
// is pure read logic with no side effects; already-sent items are
// skipped. Groups come out in first-seen order, change ids in item order.
func GroupItems(items []*Item) []*Group {
	byKey := make(map[Key]*Group)
	var out []*Group

	for _, it := range items {
		if it.SentAt != nil {
			continue
		}
		key := Key{MonitorID: it.MonitorID, ChannelID: it.ChannelID, DigestAt: it.DigestAt}
		g, ok := byKey[key]
		if !ok {
			g = &Group{
				MonitorID: it.MonitorID,
				ChannelID: it.ChannelID,
				DigestAt:  it.DigestAt,
				DigestKey: it.DigestKey,
			}
			byKey[key] = g
			out = append(out, g)
		}
		g.ItemIDs = append(g.ItemIDs, it.ID)
		g.ChangeIDs = append(g.ChangeIDs, it.ChangeID)
	}
	return out
}
