package digestproc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextFireTime(t *testing.T) {
	// Wednesday 2024-03-06 13:30 UTC, firing Mondays at 09:00.
	now := time.Date(2024, 3, 6, 13, 30, 0, 0, time.UTC)
	fire := NextFireTime(now, time.Monday, 9)
	require.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), fire)
}

func TestNextFireTime_SameDayBeforeHour(t *testing.T) {
	now := time.Date(2024, 3, 11, 8, 59, 0, 0, time.UTC) // Monday
	fire := NextFireTime(now, time.Monday, 9)
	require.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), fire)
}

func TestNextFireTime_SameDayAfterHourRollsAWeek(t *testing.T) {
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC) // Monday exactly at fire hour
	fire := NextFireTime(now, time.Monday, 9)
	require.Equal(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC), fire)
}

func TestKeyFor(t *testing.T) {
	fire := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-03-04", KeyFor(fire))
}

func TestWindow(t *testing.T) {
	fire := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	start, end := Window("2024-03-04", fire)
	require.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), start)
	require.True(t, end.Before(fire))
}

func TestWindow_BadKeyCollapses(t *testing.T) {
	fire := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	start, end := Window("garbage", fire)
	require.Equal(t, fire, start)
	require.Equal(t, fire, end)
}
