package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/timeutil"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

func newInstance(t *testing.T) *session.Instance {
	t.Helper()
	inst, err := session.NewInstance(session.Options{
		Clock:  timeutil.NewMockClock(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)),
		System: session.DefaultSystem(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close() })
	return inst
}

func TestObserveCall(t *testing.T) {
	t.Parallel()
	m := New(newInstance(t))

	m.ObserveCall("xrBeginSession", xrerr.KindNone, time.Millisecond)
	m.ObserveCall("xrBeginSession", xrerr.SessionRunning, time.Millisecond)
	m.ObserveCall("xrBeginSession", xrerr.SessionRunning, 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("xrBeginSession", "XR_SUCCESS")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("xrBeginSession", "XR_ERROR_SESSION_RUNNING")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.callDuration))
}

func TestGauges(t *testing.T) {
	t.Parallel()
	inst := newInstance(t)
	m := New(inst)

	s, err := inst.CreateSession(session.CreateInfo{ApplicationName: "gauges"})
	require.NoError(t, err)
	_, err = s.CreateReferenceSpace(session.ReferenceSpaceCreateInfo{
		Type:                 session.ReferenceSpaceLocal,
		PoseInReferenceSpace: session.DefaultSystem().LocalOrigin,
	})
	require.NoError(t, err)
	s.MarkLost("unplugged")

	expected := `
# HELP xrstate_handles_live Live handles by kind.
# TYPE xrstate_handles_live gauge
xrstate_handles_live{kind="body_tracker"} 0
xrstate_handles_live{kind="facial_tracker"} 0
xrstate_handles_live{kind="hand_tracker"} 0
xrstate_handles_live{kind="session"} 1
xrstate_handles_live{kind="space"} 1
# HELP xrstate_sessions_lost Sessions that have been marked lost.
# TYPE xrstate_sessions_lost gauge
xrstate_sessions_lost 1
`
	err = testutil.GatherAndCompare(m.Registry, strings.NewReader(expected),
		"xrstate_handles_live", "xrstate_sessions_lost")
	assert.NoError(t, err)

	// IDLE, READY, LOSS_PENDING.
	pending, err := testutil.GatherAndCount(m.Registry, "xrstate_events_pending")
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
	assert.Equal(t, 3, inst.PendingEvents())
}

func TestHandler(t *testing.T) {
	t.Parallel()
	m := New(newInstance(t))
	m.ObserveCall("xrPollEvent", xrerr.KindNone, time.Microsecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `xrstate_api_calls_total{function="xrPollEvent",result="XR_SUCCESS"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
