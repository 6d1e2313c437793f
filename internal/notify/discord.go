package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

type DiscordConfig struct {
	WebhookURL string `json:"webhookUrl"`
	Username   string `json:"username"`
}

func (c *DiscordConfig) Validate() error {
	if strings.TrimSpace(c.WebhookURL) == "" {
		return fmt.Errorf("webhookUrl is required")
	}
	u, err := url.Parse(c.WebhookURL)
	if err != nil || u.Scheme != "https" {
		return fmt.Errorf("webhookUrl must be an https URL")
	}
	return nil
}

// DiscordPlugin is the social-messaging channel family, delivered through
// incoming webhooks. It carries no optional capabilities, so digests and
// links go through the generic fallbacks.
type DiscordPlugin struct {
	client *http.Client
}

var _ Plugin = (*DiscordPlugin)(nil)

func NewDiscordPlugin(client *http.Client) *DiscordPlugin {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DiscordPlugin{client: client}
}

func (p *DiscordPlugin) ID() string    { return "discord" }
func (p *DiscordPlugin) Label() string { return "Discord" }

func (p *DiscordPlugin) ParseConfig(raw json.RawMessage) (Config, error) {
	var cfg DiscordConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode discord config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (p *DiscordPlugin) Notifier(cfg Config) (Notifier, error) {
	dc, ok := cfg.(*DiscordConfig)
	if !ok {
		return nil, fmt.Errorf("discord: unexpected config type %T", cfg)
	}
	return &discordNotifier{client: p.client, cfg: dc}, nil
}

type discordNotifier struct {
	client *http.Client
	cfg    *DiscordConfig
}

type discordPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

func (n *discordNotifier) Send(ctx context.Context, msg Message) error {
	content := msg.Text
	if msg.Link != "" {
		content = content + "\n" + msg.Link
	}
	// Discord counts characters, not bytes, and rejects content over
	// 2000 of them. Truncate on a rune boundary.
	if utf8.RuneCountInString(content) > 2000 {
		content = string([]rune(content)[:1997]) + "..."
	}

	body, err := json.Marshal(discordPayload{Content: content, Username: n.cfg.Username})
	if err != nil {
		return fmt.Errorf("discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
