package digestproc

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pagewatch/internal/domain/monitor"
)

func TestRenderDigest(t *testing.T) {
	mon := &monitor.Monitor{ID: 7, Name: "release feed"}
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)

	text := RenderDigest(mon, []*monitor.Change{
		{ReleaseVersion: "v1.1", Summary: "v1.1 released"},
		{Summary: "docs updated"},
	}, start, end)

	require.Contains(t, text, "release feed: 2 update(s)")
	require.Contains(t, text, "between 2024-03-04 and 2024-03-10")
	require.Contains(t, text, "- v1.1: v1.1 released")
	require.Contains(t, text, "- docs updated")
}

func TestRenderDigest_FallsBackToCountLine(t *testing.T) {
	mon := &monitor.Monitor{ID: 7, Name: "release feed"}
	now := time.Now().UTC()

	text := RenderDigest(mon, []*monitor.Change{{Summary: "   "}, {Summary: ""}}, now, now)
	require.Equal(t, "2 change(s) were detected on release feed.", text)
}

func TestRenderDigest_EmptyInput(t *testing.T) {
	require.Empty(t, RenderDigest(&monitor.Monitor{Name: "x"}, nil, time.Time{}, time.Time{}))
}

func TestRenderDigest_SingleDayWindow(t *testing.T) {
	mon := &monitor.Monitor{ID: 7, Name: "release feed"}
	day := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	text := RenderDigest(mon, []*monitor.Change{{Summary: "one change"}}, day, day.Add(time.Hour))
	require.True(t, strings.Contains(text, "on 2024-03-04"), text)
}
