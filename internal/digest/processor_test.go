package digestproc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pagewatch/internal/dispatch"
	"pagewatch/internal/domain/channel"
	"pagewatch/internal/domain/digest"
	"pagewatch/internal/domain/event"
	"pagewatch/internal/domain/monitor"
	"pagewatch/internal/notify"
	"pagewatch/internal/repository/postgres"
)

type fakeTx struct{ calls int }

func (f *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeMonitors struct{ byID map[int64]*monitor.Monitor }

func (f *fakeMonitors) GetByID(_ context.Context, id int64) (*monitor.Monitor, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMonitors) FetchDue(context.Context, int) ([]*monitor.Monitor, error) { return nil, nil }

func (f *fakeMonitors) UpdateLastHash(context.Context, int64, string) error { return nil }

type fakeChanges struct{ byID map[int64]*monitor.Change }

func (f *fakeChanges) Insert(context.Context, *monitor.Change) error { return nil }

func (f *fakeChanges) GetByIDs(_ context.Context, ids []int64) ([]*monitor.Change, error) {
	var out []*monitor.Change
	for _, id := range ids {
		if c, ok := f.byID[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeChannels struct {
	binding *channel.Binding
	patches []channel.OptionsPatch
}

func (f *fakeChannels) ListForMonitor(context.Context, int64, bool) ([]*channel.Binding, error) {
	return nil, nil
}

func (f *fakeChannels) GetBinding(_ context.Context, monitorID, channelID int64) (*channel.Binding, error) {
	if f.binding == nil || f.binding.MonitorID != monitorID || f.binding.ID != channelID {
		return nil, postgres.ErrNotFound
	}
	cp := *f.binding
	return &cp, nil
}

func (f *fakeChannels) UpdateLinkOptions(_ context.Context, _, _ int64, patch channel.OptionsPatch) error {
	f.patches = append(f.patches, patch)
	return nil
}

type fakeItems struct {
	group  *digest.Group
	sent   []int64
	sentAt time.Time
}

func (f *fakeItems) Insert(context.Context, *digest.Item) error { return nil }

func (f *fakeItems) ListPendingGroups(context.Context, time.Time) ([]*digest.Group, error) {
	return nil, nil
}

func (f *fakeItems) PendingGroup(_ context.Context, key digest.Key) (*digest.Group, error) {
	if f.group == nil || f.group.Key() != key {
		return nil, nil
	}
	cp := *f.group
	return &cp, nil
}

func (f *fakeItems) MarkItemsSent(_ context.Context, ids []int64, at time.Time) error {
	f.sent = append(f.sent, ids...)
	f.sentAt = at
	f.group = nil
	return nil
}

type fakeEvents struct {
	mu    sync.Mutex
	notes []event.Notification
}

func (f *fakeEvents) RecordNotification(_ context.Context, n *event.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, *n)
	return nil
}

func (f *fakeEvents) HasSentForVersion(context.Context, int64, string) (bool, error) {
	return false, nil
}

func (f *fakeEvents) RecordJobEvent(context.Context, *event.JobEvent) error { return nil }

type nopConfig struct{}

func (nopConfig) Validate() error { return nil }

type scriptedPlugin struct {
	id        string
	sendErr   error
	mu        sync.Mutex
	sent      []notify.Message
	digestFmt func(notify.DigestContext) (string, bool)
}

func (p *scriptedPlugin) ID() string    { return p.id }
func (p *scriptedPlugin) Label() string { return p.id }

func (p *scriptedPlugin) ParseConfig(json.RawMessage) (notify.Config, error) {
	return nopConfig{}, nil
}

func (p *scriptedPlugin) Notifier(notify.Config) (notify.Notifier, error) { return p, nil }

func (p *scriptedPlugin) Send(_ context.Context, msg notify.Message) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return nil
}

func (p *scriptedPlugin) FormatDigest(dc notify.DigestContext) (string, bool) {
	if p.digestFmt == nil {
		return "", false
	}
	return p.digestFmt(dc)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type procFixture struct {
	proc     *Processor
	tx       *fakeTx
	monitors *fakeMonitors
	changes  *fakeChanges
	channels *fakeChannels
	items    *fakeItems
	events   *fakeEvents
	plugin   *scriptedPlugin
	job      Job
}

func newFixture(t *testing.T) *procFixture {
	t.Helper()

	digestAt := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	mon := &monitor.Monitor{ID: 7, Name: "release feed", URL: "https://example.com/releases", Active: true, IncludeLink: true}
	bnd := &channel.Binding{
		Channel:      channel.Channel{ID: 2, Type: "chat", Name: "team chat", Active: true, Config: json.RawMessage(`{}`)},
		MonitorID:    7,
		DeliveryMode: channel.ModeWeeklyDigest,
	}
	changes := map[int64]*monitor.Change{
		11: {ID: 11, MonitorID: 7, ReleaseVersion: "v1.1", Summary: "v1.1 released", CreatedAt: digestAt.Add(-5 * 24 * time.Hour)},
		12: {ID: 12, MonitorID: 7, ReleaseVersion: "v1.2", Summary: "v1.2 released", CreatedAt: digestAt.Add(-2 * 24 * time.Hour)},
	}

	f := &procFixture{
		tx:       &fakeTx{},
		monitors: &fakeMonitors{byID: map[int64]*monitor.Monitor{7: mon}},
		changes:  &fakeChanges{byID: changes},
		channels: &fakeChannels{binding: bnd},
		items: &fakeItems{group: &digest.Group{
			MonitorID: 7, ChannelID: 2, DigestAt: digestAt, DigestKey: "2024-03-04",
			ItemIDs: []int64{101, 102}, ChangeIDs: []int64{12, 11},
		}},
		events: &fakeEvents{},
		plugin: &scriptedPlugin{id: "chat"},
		job:    Job{MonitorID: 7, ChannelID: 2, DigestAt: digestAt},
	}

	registry := notify.NewRegistry(f.plugin)
	d := dispatch.New(zap.NewNop(), registry, f.events)
	f.proc = NewProcessor(zap.NewNop(), f.tx, f.monitors, f.changes, f.channels, f.items, registry, d, fixedClock{t: digestAt.Add(time.Minute)})
	return f
}

func TestProcess_SendsAggregatedDigest(t *testing.T) {
	f := newFixture(t)

	out, err := f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusSent, out.Status)
	require.Equal(t, 2, out.ItemCount)

	require.Len(t, f.plugin.sent, 1)
	text := f.plugin.sent[0].Text
	// Chronological order, oldest first, regardless of item order.
	require.Contains(t, text, "v1.1 released")
	require.Contains(t, text, "v1.2 released")
	require.Less(t, strings.Index(text, "v1.1 released"), strings.Index(text, "v1.2 released"))

	require.ElementsMatch(t, []int64{101, 102}, f.items.sent)
	require.Len(t, f.channels.patches, 1)
	require.NotNil(t, f.channels.patches[0].LastDigestAt)
	require.Equal(t, f.job.DigestAt, *f.channels.patches[0].LastDigestAt)

	// One audit event per underlying change.
	require.Len(t, f.events.notes, 2)
	require.Equal(t, 1, f.tx.calls)
}

func TestProcess_GroupAlreadyConsumed(t *testing.T) {
	f := newFixture(t)
	f.items.group = nil

	out, err := f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusNone, out.Status)
	require.Empty(t, f.plugin.sent)
}

func TestProcess_SecondRunIsNoop(t *testing.T) {
	f := newFixture(t)

	out, err := f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusSent, out.Status)

	out, err = f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusNone, out.Status)
	require.Len(t, f.plugin.sent, 1)
}

func TestProcess_MonitorGoneConsumesGroup(t *testing.T) {
	f := newFixture(t)
	delete(f.monitors.byID, 7)

	out, err := f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status)
	require.Equal(t, "monitor missing or inactive", out.Reason)
	require.ElementsMatch(t, []int64{101, 102}, f.items.sent)
	require.Empty(t, f.plugin.sent)
}

func TestProcess_InactiveMonitorConsumesGroup(t *testing.T) {
	f := newFixture(t)
	f.monitors.byID[7].Active = false

	out, err := f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status)
	require.Equal(t, "monitor missing or inactive", out.Reason)
}

func TestProcess_ModeSwitchedConsumesGroup(t *testing.T) {
	f := newFixture(t)
	f.channels.binding.DeliveryMode = channel.ModeImmediate

	out, err := f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status)
	require.Equal(t, "channel missing or no longer in digest mode", out.Reason)
	require.ElementsMatch(t, []int64{101, 102}, f.items.sent)
}

func TestProcess_MissingChangesConsumeGroup(t *testing.T) {
	f := newFixture(t)
	f.changes.byID = map[int64]*monitor.Change{}

	out, err := f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status)
	require.Equal(t, "underlying changes missing", out.Reason)
}

func TestProcess_DispatchFailureLeavesGroupPending(t *testing.T) {
	f := newFixture(t)
	f.plugin.sendErr = errors.New("provider down")

	_, err := f.proc.Process(context.Background(), f.job)
	require.ErrorContains(t, err, "digest dispatch failed")
	require.Empty(t, f.items.sent)
	require.NotNil(t, f.items.group)

	// Redelivery after the provider recovers succeeds.
	f.plugin.sendErr = nil
	out, err := f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusSent, out.Status)
}

func TestProcess_PluginDigestFormatterWins(t *testing.T) {
	f := newFixture(t)
	f.plugin.digestFmt = func(dc notify.DigestContext) (string, bool) {
		return fmt.Sprintf("custom digest with %d changes", len(dc.Changes)), true
	}

	out, err := f.proc.Process(context.Background(), f.job)
	require.NoError(t, err)
	require.Equal(t, StatusSent, out.Status)
	require.Len(t, f.plugin.sent, 1)
	require.Equal(t, "custom digest with 2 changes", f.plugin.sent[0].Text)
}
