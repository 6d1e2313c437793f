package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"pagewatch/internal/domain/monitor"
)

func TestRegistry_ClosedSet(t *testing.T) {
	r := NewRegistry(&TelegramPlugin{}, NewDiscordPlugin(nil))

	require.Equal(t, []string{"telegram", "discord"}, r.IDs())

	p, ok := r.Get("telegram")
	require.True(t, ok)
	require.Equal(t, "Telegram", p.Label())

	_, ok = r.Get("carrier-pigeon")
	require.False(t, ok)
}

func TestRegistry_DuplicateIDKeepsFirst(t *testing.T) {
	r := NewRegistry(&TelegramPlugin{}, &TelegramPlugin{})
	require.Equal(t, []string{"telegram"}, r.IDs())
}

func TestTelegramParseConfig(t *testing.T) {
	p := &TelegramPlugin{}

	cfg, err := p.ParseConfig(json.RawMessage(`{"botToken":"123:abc","chatId":-100200}`))
	require.NoError(t, err)
	tc := cfg.(*TelegramConfig)
	require.Equal(t, "123:abc", tc.BotToken)
	require.Equal(t, int64(-100200), tc.ChatID)

	_, err = p.ParseConfig(json.RawMessage(`{"chatId":5}`))
	require.ErrorContains(t, err, "botToken is required")

	_, err = p.ParseConfig(json.RawMessage(`{"botToken":"x"}`))
	require.ErrorContains(t, err, "chatId is required")

	_, err = p.ParseConfig(json.RawMessage(`{bad json`))
	require.ErrorContains(t, err, "decode telegram config")
}

func TestTelegramFormatDigest(t *testing.T) {
	p := &TelegramPlugin{}
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)

	text, ok := p.FormatDigest(DigestContext{
		Monitor: &monitor.Monitor{Name: "release*feed"},
		Changes: []*monitor.Change{
			{ReleaseVersion: "v1.1", Summary: "v1.1 released"},
			{Summary: "docs updated"},
		},
		WindowStart: start,
		WindowEnd:   end,
	})
	require.True(t, ok)
	require.Contains(t, text, `release\*feed`)
	require.Contains(t, text, "`v1.1` v1.1 released")
	require.Contains(t, text, "between 2024-03-04 and 2024-03-10")

	_, ok = p.FormatDigest(DigestContext{Monitor: &monitor.Monitor{Name: "x"}})
	require.False(t, ok)
}

func TestTelegramMonitorLink(t *testing.T) {
	p := &TelegramPlugin{}

	link, ok := p.MonitorLink(&monitor.Monitor{URL: "example.com/releases"})
	require.True(t, ok)
	require.Equal(t, "https://example.com/releases", link)

	link, ok = p.MonitorLink(&monitor.Monitor{URL: "http://example.com"})
	require.True(t, ok)
	require.Equal(t, "http://example.com", link)

	_, ok = p.MonitorLink(&monitor.Monitor{URL: "  "})
	require.False(t, ok)
}

func TestDiscordParseConfig(t *testing.T) {
	p := NewDiscordPlugin(nil)

	cfg, err := p.ParseConfig(json.RawMessage(`{"webhookUrl":"https://discord.example/api/webhooks/1/x","username":"bot"}`))
	require.NoError(t, err)
	require.Equal(t, "bot", cfg.(*DiscordConfig).Username)

	_, err = p.ParseConfig(json.RawMessage(`{}`))
	require.ErrorContains(t, err, "webhookUrl is required")

	_, err = p.ParseConfig(json.RawMessage(`{"webhookUrl":"http://plain.example"}`))
	require.ErrorContains(t, err, "https")
}

func TestDiscordSend(t *testing.T) {
	var got discordPayload
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewDiscordPlugin(srv.Client())
	cfg, err := p.ParseConfig(json.RawMessage(`{"webhookUrl":"` + srv.URL + `","username":"pagewatch"}`))
	require.NoError(t, err)
	n, err := p.Notifier(cfg)
	require.NoError(t, err)

	err = n.Send(context.Background(), Message{Text: "v2 released", Link: "https://example.com/v2"})
	require.NoError(t, err)
	require.Equal(t, "v2 released\nhttps://example.com/v2", got.Content)
	require.Equal(t, "pagewatch", got.Username)
}

func TestDiscordSend_TruncatesLongContent(t *testing.T) {
	var got discordPayload
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewDiscordPlugin(srv.Client())
	cfg, err := p.ParseConfig(json.RawMessage(`{"webhookUrl":"` + srv.URL + `"}`))
	require.NoError(t, err)
	n, err := p.Notifier(cfg)
	require.NoError(t, err)

	err = n.Send(context.Background(), Message{Text: strings.Repeat("a", 3000)})
	require.NoError(t, err)
	require.Len(t, got.Content, 2000)
	require.True(t, strings.HasSuffix(got.Content, "..."))
}

func TestDiscordSend_TruncatesOnRuneBoundary(t *testing.T) {
	var got discordPayload
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewDiscordPlugin(srv.Client())
	cfg, err := p.ParseConfig(json.RawMessage(`{"webhookUrl":"` + srv.URL + `"}`))
	require.NoError(t, err)
	n, err := p.Notifier(cfg)
	require.NoError(t, err)

	// Multi-byte runes: byte-offset truncation would split one in half.
	err = n.Send(context.Background(), Message{Text: strings.Repeat("ж", 3000)})
	require.NoError(t, err)
	require.True(t, utf8.ValidString(got.Content))
	require.Equal(t, 2000, utf8.RuneCountInString(got.Content))
	require.True(t, strings.HasSuffix(got.Content, "..."))
}

func TestDiscordSend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewDiscordPlugin(srv.Client())
	cfg, err := p.ParseConfig(json.RawMessage(`{"webhookUrl":"` + srv.URL + `"}`))
	require.NoError(t, err)
	n, err := p.Notifier(cfg)
	require.NoError(t, err)

	err = n.Send(context.Background(), Message{Text: "x"})
	require.ErrorContains(t, err, "status 429")
}
