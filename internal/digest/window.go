package digestproc

import "time"

const keyLayout = "2006-01-02"

// Window computes the display time window for one group: start is
// midnight UTC of the digest key's date, end is the fire time minus one
// millisecond. A key that fails to parse collapses the window onto the
// fire time rather than failing the digest.
func Window(digestKey string, digestAt time.Time) (start, end time.Time) {
	day, err := time.ParseInLocation(keyLayout, digestKey, time.UTC)
	if err != nil {
		return digestAt, digestAt
	}
	return day, digestAt.Add(-time.Millisecond)
}

// NextFireTime returns the first weekly fire time strictly after t:
// the given weekday at hour:00 UTC.
func NextFireTime(t time.Time, weekday time.Weekday, hour int) time.Time {
	t = t.UTC()
	fire := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
	days := (int(weekday) - int(t.Weekday()) + 7) % 7
	fire = fire.AddDate(0, 0, days)
	if !fire.After(t) {
		fire = fire.AddDate(0, 0, 7)
	}
	return fire
}

// KeyFor labels a fire time's group with the calendar date its weekly
// window starts on.
func KeyFor(fireAt time.Time) string {
	return fireAt.UTC().AddDate(0, 0, -7).Format(keyLayout)
}
