package digestproc

import (
	"fmt"
	"strings"
	"time"

	"pagewatch/internal/domain/monitor"
)

// RenderDigest builds the generic aggregated message for one group.
// Changes are expected in chronological order. When the structured
// rendering comes out empty it falls back to concatenating each change's
// summary, and as a last resort to a one-line count.
func RenderDigest(mon *monitor.Monitor, changes []*monitor.Change, start, end time.Time) string {
	if len(changes) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d update(s) %s\n", mon.Name, len(changes), windowPhrase(start, end))
	lines := 0
	for _, c := range changes {
		s := strings.TrimSpace(c.Summary)
		if s == "" {
			continue
		}
		if c.ReleaseVersion != "" {
			fmt.Fprintf(&b, "- %s: %s\n", c.ReleaseVersion, s)
		} else {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		lines++
	}
	if lines > 0 {
		return strings.TrimSpace(b.String())
	}

	if joined := joinSummaries(changes); joined != "" {
		return joined
	}

	return fmt.Sprintf("%d change(s) were detected on %s.", len(changes), mon.Name)
}

func joinSummaries(changes []*monitor.Change) string {
	var parts []string
	for _, c := range changes {
		if s := strings.TrimSpace(c.Summary); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func windowPhrase(start, end time.Time) string {
	const day = "2006-01-02"
	if start.Format(day) == end.Format(day) {
		return "on " + start.Format(day)
	}
	return fmt.Sprintf("between %s and %s", start.Format(day), end.Format(day))
}
