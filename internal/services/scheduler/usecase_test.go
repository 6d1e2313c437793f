package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pagewatch/internal/domain/digest"
	"pagewatch/internal/domain/monitor"
	"pagewatch/internal/obs/retry"
)

type fakeMonitors struct {
	due []*monitor.Monitor
	err error
}

func (f *fakeMonitors) GetByID(context.Context, int64) (*monitor.Monitor, error) { return nil, nil }

func (f *fakeMonitors) FetchDue(_ context.Context, limit int) ([]*monitor.Monitor, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeMonitors) UpdateLastHash(context.Context, int64, string) error { return nil }

type fakeDigests struct {
	groups []*digest.Group
}

func (f *fakeDigests) Insert(context.Context, *digest.Item) error { return nil }

func (f *fakeDigests) ListPendingGroups(context.Context, time.Time) ([]*digest.Group, error) {
	return f.groups, nil
}

func (f *fakeDigests) PendingGroup(context.Context, digest.Key) (*digest.Group, error) {
	return nil, nil
}

func (f *fakeDigests) MarkItemsSent(context.Context, []int64, time.Time) error { return nil }

type fakeJobs struct {
	checks    []int64
	digests   []*digest.Group
	checkErr  error
	digestErr error
}

func (f *fakeJobs) PublishCheckRequested(_ context.Context, monitorID int64) error {
	if f.checkErr != nil {
		return f.checkErr
	}
	f.checks = append(f.checks, monitorID)
	return nil
}

func (f *fakeJobs) PublishDigestDue(_ context.Context, g *digest.Group) error {
	if f.digestErr != nil {
		return f.digestErr
	}
	f.digests = append(f.digests, g)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newUsecase(monitors *fakeMonitors, digests *fakeDigests, jobs *fakeJobs) *Usecase {
	return &Usecase{
		Log:      zap.NewNop(),
		Monitors: monitors,
		Digests:  digests,
		Jobs:     jobs,
		Clock:    fixedClock{t: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)},
		Policy:   retry.Policy{Attempts: 1},
	}
}

func TestTick_PublishesDueWork(t *testing.T) {
	jobs := &fakeJobs{}
	uc := newUsecase(
		&fakeMonitors{due: []*monitor.Monitor{{ID: 1}, {ID: 2}}},
		&fakeDigests{groups: []*digest.Group{{MonitorID: 7, ChannelID: 2}}},
		jobs,
	)

	st, err := uc.Tick(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, st.ChecksPublished)
	require.Equal(t, 1, st.DigestsPublished)
	require.Zero(t, st.Errors)
	require.Equal(t, []int64{1, 2}, jobs.checks)
}

func TestTick_BatchLimit(t *testing.T) {
	jobs := &fakeJobs{}
	uc := newUsecase(
		&fakeMonitors{due: []*monitor.Monitor{{ID: 1}, {ID: 2}, {ID: 3}}},
		&fakeDigests{},
		jobs,
	)

	st, err := uc.Tick(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, st.ChecksDue)
	require.Equal(t, 2, st.ChecksPublished)
}

func TestTick_PublishFailureCountsErrorAndContinues(t *testing.T) {
	jobs := &fakeJobs{checkErr: errors.New("broker down")}
	uc := newUsecase(
		&fakeMonitors{due: []*monitor.Monitor{{ID: 1}, {ID: 2}}},
		&fakeDigests{groups: []*digest.Group{{MonitorID: 7, ChannelID: 2}}},
		jobs,
	)

	st, err := uc.Tick(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, st.Errors)
	require.Zero(t, st.ChecksPublished)
	// Digest publishing still ran.
	require.Equal(t, 1, st.DigestsPublished)
}

func TestTick_FetchErrorPropagates(t *testing.T) {
	uc := newUsecase(&fakeMonitors{err: errors.New("db down")}, &fakeDigests{}, &fakeJobs{})

	_, err := uc.Tick(context.Background(), 10)
	require.ErrorContains(t, err, "fetch due monitors")
}
