package journal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/testutil"
	"github.com/banshee-data/xrstate/internal/timeutil"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func stateEvent(id handle.ID, at int64, s session.State, reason string) session.Event {
	return session.Event{Type: session.EventSessionStateChanged, Session: id, Time: at, State: s, Reason: reason}
}

func TestOpenMigrates(t *testing.T) {
	t.Parallel()
	j := openTestJournal(t)
	version, dirty, err := j.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Migrating again is a no-op.
	require.NoError(t, j.MigrateUp())
}

func TestRecordAndQuery(t *testing.T) {
	t.Parallel()
	j := openTestJournal(t)
	ctx := context.Background()
	a, b := handle.ID("session_a"), handle.ID("session_b")

	for _, e := range []session.Event{
		stateEvent(a, 10, session.StateIdle, ""),
		stateEvent(a, 11, session.StateReady, ""),
		stateEvent(b, 12, session.StateIdle, ""),
		{Type: session.EventDisplayRefreshRateChanged, Session: a, Time: 13, FromRate: 90, ToRate: 72},
		stateEvent(a, 14, session.StateLossPending, "cable pulled"),
	} {
		require.NoError(t, j.Record(ctx, e))
	}

	all, err := j.Events(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "LOSS_PENDING", all[0].State)
	assert.Equal(t, "cable pulled", all[0].Reason)
	assert.Equal(t, "display_refresh_rate_changed", all[1].Type)
	assert.Equal(t, 72.0, all[1].ToRate)

	onlyB, err := j.Events(ctx, Query{Session: b})
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, int64(12), onlyB[0].TimeNs)

	limited, err := j.Events(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	want := []SessionSummary{
		{Session: a, FirstSeen: 10, LastState: "LOSS_PENDING", LostReason: "cable pulled"},
		{Session: b, FirstSeen: 12, LastState: "IDLE"},
	}
	if diff := cmp.Diff(want, sessions); diff != "" {
		t.Errorf("sessions mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRecordsInstanceEvents(t *testing.T) {
	t.Parallel()
	j := openTestJournal(t)
	inst, err := session.NewInstance(session.Options{
		Clock:  timeutil.NewMockClock(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)),
		System: session.DefaultSystem(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	// Subscribe happens inside Run; wait for it before producing events.
	started := make(chan struct{})
	go func() {
		close(started)
		done <- j.Run(ctx, inst)
	}()
	<-started

	require.Eventually(t, func() bool {
		s, err := inst.CreateSession(session.CreateInfo{ApplicationName: "journal"})
		if err != nil {
			return false
		}
		entries, _ := j.Events(ctx, Query{Session: s.ID()})
		if len(entries) == 0 {
			_ = inst.DestroySession(s)
			return false
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	// Destroying the instance closes the subscription and ends Run.
	require.NoError(t, inst.Destroy())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after instance destroy")
	}
}

func TestAdminRoutes(t *testing.T) {
	t.Parallel()
	j := openTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, stateEvent("session_x", 5, session.StateIdle, "")))

	mux := http.NewServeMux()
	require.NoError(t, j.AttachAdminRoutes(mux))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, testutil.DebugRequest(http.MethodGet, "/debug/journal?session=session_x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "IDLE", entries[0].State)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, testutil.DebugRequest(http.MethodGet, "/debug/journal?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, testutil.DebugRequest(http.MethodGet, "/debug/journal-sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)
}
