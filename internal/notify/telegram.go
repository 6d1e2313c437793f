package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"pagewatch/internal/domain/monitor"
)

type TelegramConfig struct {
	BotToken string `json:"botToken"`
	ChatID   int64  `json:"chatId"`
}

func (c *TelegramConfig) Validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return fmt.Errorf("botToken is required")
	}
	if c.ChatID == 0 {
		return fmt.Errorf("chatId is required")
	}
	return nil
}

// TelegramPlugin is the chat-bot channel family, backed by the Bot API
// via telebot.
type TelegramPlugin struct{}

var (
	_ Plugin          = (*TelegramPlugin)(nil)
	_ DigestFormatter = (*TelegramPlugin)(nil)
	_ LinkResolver    = (*TelegramPlugin)(nil)
)

func (p *TelegramPlugin) ID() string    { return "telegram" }
func (p *TelegramPlugin) Label() string { return "Telegram" }

func (p *TelegramPlugin) ParseConfig(raw json.RawMessage) (Config, error) {
	var cfg TelegramConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode telegram config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (p *TelegramPlugin) Notifier(cfg Config) (Notifier, error) {
	tc, ok := cfg.(*TelegramConfig)
	if !ok {
		return nil, fmt.Errorf("telegram: unexpected config type %T", cfg)
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:  tc.BotToken,
		Poller: nil,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &telegramNotifier{bot: bot, chatID: tc.ChatID}, nil
}

// FormatDigest renders a Markdown digest in the chat-bot house style.
func (p *TelegramPlugin) FormatDigest(dc DigestContext) (string, bool) {
	if len(dc.Changes) == 0 {
		return "", false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* — %d update(s) %s\n",
		escapeMarkdown(dc.Monitor.Name), len(dc.Changes), windowLabel(dc.WindowStart, dc.WindowEnd))
	for _, c := range dc.Changes {
		line := strings.TrimSpace(c.Summary)
		if line == "" {
			continue
		}
		if c.ReleaseVersion != "" {
			fmt.Fprintf(&b, "• `%s` %s\n", c.ReleaseVersion, escapeMarkdown(line))
		} else {
			fmt.Fprintf(&b, "• %s\n", escapeMarkdown(line))
		}
	}
	return strings.TrimSpace(b.String()), true
}

// MonitorLink normalizes the monitored URL into a clickable https link.
func (p *TelegramPlugin) MonitorLink(m *monitor.Monitor) (string, bool) {
	u := strings.TrimSpace(m.URL)
	if u == "" {
		return "", false
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u, true
}

type telegramNotifier struct {
	bot    *tele.Bot
	chatID int64
}

func (n *telegramNotifier) Send(ctx context.Context, msg Message) error {
	text := msg.Text
	if msg.Link != "" {
		text = text + "\n" + msg.Link
	}
	_, err := n.bot.Send(tele.ChatID(n.chatID), text, &tele.SendOptions{
		ParseMode:             tele.ModeMarkdown,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func windowLabel(start, end time.Time) string {
	const day = "2006-01-02"
	if start.Format(day) == end.Format(day) {
		return "on " + start.Format(day)
	}
	return fmt.Sprintf("between %s and %s", start.Format(day), end.Format(day))
}

var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
