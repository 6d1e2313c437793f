package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"pagewatch/internal/domain/channel"
	"pagewatch/internal/domain/event"
	"pagewatch/internal/domain/monitor"
	"pagewatch/internal/notify"
	"pagewatch/internal/obs"
)

// EventRef is one underlying logical change represented by a dispatch.
// A digest dispatch carries one ref per aggregated change, so every
// change gets its own audit event even though one message covers all.
type EventRef struct {
	ChangeID       int64
	ReleaseVersion string
}

type Options struct {
	// AllowRepeat skips the cross-path release-version dedup, letting a
	// caller explicitly re-announce an already-sent version.
	AllowRepeat bool
	// EventRefs overrides the default single ref derived from the
	// dispatched change.
	EventRefs []EventRef
}

type Result struct {
	ChannelID   int64
	ChannelName string
	OK          bool
	Err         error
}

var (
	mChannels = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_channels_total", Help: "Channels fanned out to.",
	})
	mSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_sent_total", Help: "Per-channel sends that succeeded.",
	})
	mFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_failed_total", Help: "Per-channel sends that failed.",
	})
	mDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_deduped_refs_total", Help: "Event refs dropped by release-version dedup.",
	})
)

// Dispatcher fans one notification payload out to a set of channels,
// isolating per-channel failures and appending one audit event per
// (ref, channel) terminal outcome.
type Dispatcher struct {
	log      *zap.Logger
	registry *notify.Registry
	events   event.Repo
}

func New(log *zap.Logger, registry *notify.Registry, events event.Repo) *Dispatcher {
	return &Dispatcher{log: log, registry: registry, events: events}
}

func (d *Dispatcher) Dispatch(
	ctx context.Context,
	change *monitor.Change,
	mon *monitor.Monitor,
	bindings []*channel.Binding,
	displayLink string,
	opts *Options,
) ([]Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	refs := opts.EventRefs
	if len(refs) == 0 {
		refs = []EventRef{{ChangeID: change.ID, ReleaseVersion: change.ReleaseVersion}}
	}
	refs = dedupeRefs(refs)

	if !opts.AllowRepeat {
		kept := refs[:0]
		for _, ref := range refs {
			if ref.ReleaseVersion != "" {
				sent, err := d.events.HasSentForVersion(ctx, mon.ID, ref.ReleaseVersion)
				if err != nil {
					return nil, fmt.Errorf("version dedup: %w", err)
				}
				if sent {
					mDeduped.Inc()
					continue
				}
			}
			kept = append(kept, ref)
		}
		refs = kept
	}
	if len(refs) == 0 {
		return nil, nil
	}

	var active []*channel.Binding
	for _, b := range bindings {
		if b.Active {
			active = append(active, b)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	text := strings.TrimSpace(change.Summary)
	if text == "" {
		text = fmt.Sprintf("Change detected on %s", mon.Name)
	}

	results := make([]Result, len(active))
	var wg sync.WaitGroup
	for i, b := range active {
		wg.Add(1)
		go func(i int, b *channel.Binding) {
			defer wg.Done()
			results[i] = d.sendOne(ctx, text, mon, b, displayLink, refs)
		}(i, b)
	}
	wg.Wait()

	for _, r := range results {
		mChannels.Inc()
		if r.OK {
			mSent.Inc()
		} else {
			mFailed.Inc()
		}
	}
	return results, nil
}

// sendOne runs the whole per-channel pipeline. Every exit path is a
// terminal outcome recorded for each ref; a panicking notifier is
// contained here and never reaches sibling channels.
func (d *Dispatcher) sendOne(
	ctx context.Context,
	text string,
	mon *monitor.Monitor,
	b *channel.Binding,
	displayLink string,
	refs []EventRef,
) (res Result) {
	res = Result{ChannelID: b.ID, ChannelName: b.Name}
	log := obs.WithTrace(ctx, d.log).With(
		zap.Int64("channel_id", b.ID),
		zap.String("channel_type", b.Type),
	)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("notifier panic: %v", r)
			log.Error("notifier panicked", zap.Any("panic", r))
			d.recordAll(ctx, refs, b, event.StatusFailed, err.Error())
			res.OK = false
			res.Err = err
		}
	}()

	plugin, ok := d.registry.Get(b.Type)
	if !ok {
		d.recordAll(ctx, refs, b, event.StatusFailed, "unknown notification type")
		res.Err = errors.New("unknown notification type")
		return res
	}

	cfg, err := plugin.ParseConfig(b.Config)
	if err != nil {
		log.Warn("channel config rejected", zap.Error(err))
		d.recordAll(ctx, refs, b, event.StatusFailed, "invalid configuration")
		res.Err = errors.New("invalid configuration")
		return res
	}

	link := d.resolveLink(mon, b, plugin, displayLink)

	notifier, err := plugin.Notifier(cfg)
	if err != nil {
		log.Warn("notifier init failed", zap.Error(err))
		d.recordAll(ctx, refs, b, event.StatusFailed, err.Error())
		res.Err = err
		return res
	}

	if err := notifier.Send(ctx, notify.Message{Text: text, Monitor: mon, Link: link}); err != nil {
		log.Warn("send failed", zap.Error(err))
		d.recordAll(ctx, refs, b, event.StatusFailed, err.Error())
		res.Err = err
		return res
	}

	d.recordAll(ctx, refs, b, event.StatusSent, "")
	res.OK = true
	return res
}

// resolveLink applies the tri-state inclusion rule once per channel: the
// binding's own override when set, else the monitor's default.
func (d *Dispatcher) resolveLink(mon *monitor.Monitor, b *channel.Binding, plugin notify.Plugin, displayLink string) string {
	include := mon.IncludeLink
	if b.IncludeLink != nil {
		include = *b.IncludeLink
	}
	if !include {
		return ""
	}
	if displayLink != "" {
		return displayLink
	}
	if lr, ok := plugin.(notify.LinkResolver); ok {
		if link, ok := lr.MonitorLink(mon); ok {
			return link
		}
	}
	return mon.URL
}

func (d *Dispatcher) recordAll(ctx context.Context, refs []EventRef, b *channel.Binding, status event.Status, detail string) {
	for _, ref := range refs {
		changeID := ref.ChangeID
		channelID := b.ID
		n := &event.Notification{
			ChangeID:       &changeID,
			ChannelID:      &channelID,
			Status:         status,
			Detail:         detail,
			ReleaseVersion: ref.ReleaseVersion,
		}
		if err := d.events.RecordNotification(ctx, n); err != nil {
			d.log.Error("record notification event",
				zap.Int64("change_id", ref.ChangeID),
				zap.Int64("channel_id", b.ID),
				zap.Error(err))
		}
	}
}

// dedupeRefs returns a fresh slice, so the later sent-version
// compaction never writes through the caller's Options.EventRefs.
func dedupeRefs(refs []EventRef) []EventRef {
	seen := make(map[EventRef]struct{}, len(refs))
	out := make([]EventRef, 0, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
