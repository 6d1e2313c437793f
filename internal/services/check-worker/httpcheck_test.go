package check_worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pagewatch/internal/domain/monitor"
)

type hashRecorder struct {
	fakeMonitors
	updates map[int64]string
}

func (r *hashRecorder) UpdateLastHash(_ context.Context, id int64, hash string) error {
	if r.updates == nil {
		r.updates = map[int64]string{}
	}
	r.updates[id] = hash
	return nil
}

func newHTTPChecker(t *testing.T, body string, status int) (*HTTPChecker, *hashRecorder, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	rec := &hashRecorder{}
	return &HTTPChecker{
		Client:   srv.Client(),
		Monitors: rec,
		Cfg:      HTTPCheckConfig{Timeout: 5 * time.Second, UserAgent: "test"},
	}, rec, srv
}

func TestHTTPChecker_FirstObservationSetsBaseline(t *testing.T) {
	c, rec, srv := newHTTPChecker(t, "hello", http.StatusOK)

	mon := &monitor.Monitor{ID: 7, Name: "page", URL: srv.URL}
	change, err := c.Check(context.Background(), mon)
	require.NoError(t, err)
	require.Nil(t, change)
	require.NotEmpty(t, rec.updates[7])
}

func TestHTTPChecker_UnchangedContent(t *testing.T) {
	c, rec, srv := newHTTPChecker(t, "hello", http.StatusOK)

	mon := &monitor.Monitor{ID: 7, Name: "page", URL: srv.URL}
	_, err := c.Check(context.Background(), mon)
	require.NoError(t, err)
	mon.LastHash = rec.updates[7]

	change, err := c.Check(context.Background(), mon)
	require.NoError(t, err)
	require.Nil(t, change)
}

func TestHTTPChecker_ChangedContentEmitsChange(t *testing.T) {
	c, rec, srv := newHTTPChecker(t, "hello v2", http.StatusOK)

	mon := &monitor.Monitor{ID: 7, Name: "page", URL: srv.URL, LastHash: "stale-hash"}
	change, err := c.Check(context.Background(), mon)
	require.NoError(t, err)
	require.NotNil(t, change)
	require.Equal(t, int64(7), change.MonitorID)
	require.Contains(t, change.Summary, "page changed")
	require.NotEqual(t, "stale-hash", rec.updates[7])
}

func TestHTTPChecker_ServerErrorIsFailure(t *testing.T) {
	c, _, srv := newHTTPChecker(t, "oops", http.StatusInternalServerError)

	mon := &monitor.Monitor{ID: 7, Name: "page", URL: srv.URL}
	_, err := c.Check(context.Background(), mon)
	require.ErrorContains(t, err, "status 500")
}
