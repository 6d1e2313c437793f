package check_worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pagewatch/internal/domain/monitor"
)

type HTTPCheckConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	MaxBody   int64         `mapstructure:"max_body"`
}

// HTTPChecker detects changes by hashing the fetched body and comparing
// against the monitor's last recorded hash.
type HTTPChecker struct {
	Client   *http.Client
	Monitors monitor.Repo
	Cfg      HTTPCheckConfig
}

var _ ContentChecker = (*HTTPChecker)(nil)

func (c *HTTPChecker) Check(ctx context.Context, mon *monitor.Monitor) (*monitor.Change, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalizeURL(mon.URL), nil)
	if err != nil {
		return nil, err
	}
	if c.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.Cfg.UserAgent)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	maxBody := c.Cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 4 << 20
	}
	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(resp.Body, maxBody)); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	hash := hex.EncodeToString(h.Sum(nil))

	if hash == mon.LastHash {
		return nil, nil
	}
	if err := c.Monitors.UpdateLastHash(ctx, mon.ID, hash); err != nil {
		return nil, fmt.Errorf("store hash: %w", err)
	}
	// First observation just establishes the baseline.
	if mon.LastHash == "" {
		return nil, nil
	}

	return &monitor.Change{
		MonitorID: mon.ID,
		Summary:   fmt.Sprintf("%s changed (content hash %s)", mon.Name, hash[:12]),
	}, nil
}

func normalizeURL(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return t
	}
	if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
		return t
	}
	return "https://" + t
}
