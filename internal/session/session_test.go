package session

import (
	"context"
	"errors"
	"testing"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/xrerr"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstanceRequiresValidSystem(t *testing.T) {
	t.Parallel()
	_, err := NewInstance(Options{})
	assert.Error(t, err)

	sys := DefaultSystem()
	sys.Views = sys.Views[:1]
	_, err = NewInstance(Options{System: sys})
	assert.Error(t, err)
}

func TestCreateSessionEmitsIdleThenReady(t *testing.T) {
	t.Parallel()
	in, _ := newTestInstance(t, nil)
	s, err := in.CreateSession(CreateInfo{})
	require.NoError(t, err)

	assert.Equal(t, StateReady, s.State())
	if diff := cmp.Diff([]State{StateIdle, StateReady}, drainStates(in)); diff != "" {
		t.Errorf("state events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []*Session{s}, in.Sessions())
}

func TestPollEventEmptyQueue(t *testing.T) {
	t.Parallel()
	in, _ := newTestInstance(t, nil)
	_, q := in.PollEvent()
	assert.Equal(t, xrerr.EventUnavailable, q)
}

func TestBegin(t *testing.T) {
	t.Parallel()

	t.Run("moves to synchronized", func(t *testing.T) {
		t.Parallel()
		in, _ := newTestInstance(t, nil)
		s := newRunningSession(t, in)
		assert.True(t, s.Running())
		assert.Equal(t, StateSynchronized, s.State())
	})

	t.Run("twice is session running", func(t *testing.T) {
		t.Parallel()
		in, _ := newTestInstance(t, nil)
		s := newRunningSession(t, in)
		err := s.Begin(BeginInfo{ViewConfiguration: ViewConfigurationPrimaryStereo})
		assert.Equal(t, xrerr.SessionRunning, xrerr.KindOf(err))
		assert.Equal(t, StateSynchronized, s.State())
	})

	t.Run("mismatched view configuration", func(t *testing.T) {
		t.Parallel()
		in, _ := newTestInstance(t, nil)
		s, err := in.CreateSession(CreateInfo{})
		require.NoError(t, err)
		err = s.Begin(BeginInfo{ViewConfiguration: ViewConfigurationPrimaryMono})
		assert.Equal(t, xrerr.ViewConfigurationTypeUnsupported, xrerr.KindOf(err))
		assert.False(t, s.Running())
		assert.Equal(t, StateReady, s.State())
	})

	t.Run("unknown view configuration", func(t *testing.T) {
		t.Parallel()
		in, _ := newTestInstance(t, nil)
		s, err := in.CreateSession(CreateInfo{})
		require.NoError(t, err)
		err = s.Begin(BeginInfo{ViewConfiguration: 42})
		assert.Equal(t, xrerr.ViewConfigurationTypeUnsupported, xrerr.KindOf(err))
	})
}

func TestEndRequiresRunning(t *testing.T) {
	t.Parallel()
	in, _ := newTestInstance(t, nil)
	s, err := in.CreateSession(CreateInfo{})
	require.NoError(t, err)
	assert.Equal(t, xrerr.SessionNotRunning, xrerr.KindOf(s.End()))
	assert.Equal(t, xrerr.SessionNotRunning, xrerr.KindOf(s.RequestExit()))
}

func TestEndReturnsToReady(t *testing.T) {
	t.Parallel()
	in, _ := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	drainStates(in)

	require.NoError(t, s.End())
	assert.False(t, s.Running())
	assert.Equal(t, []State{StateStopping, StateIdle, StateReady}, drainStates(in))

	// A stopped session can begin again.
	require.NoError(t, s.Begin(BeginInfo{ViewConfiguration: ViewConfigurationPrimaryStereo}))
}

func TestRequestExitFlow(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	runFrame(t, s, clock)

	require.NoError(t, s.RequestExit())
	assert.Equal(t, StateFocused, s.State(), "request-exit alone changes nothing")
	drainStates(in)

	clock.Advance(s.sys.Period())
	fs, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	assert.True(t, fs.ShouldStop)
	assert.Equal(t, StateStopping, s.State())

	require.NoError(t, s.End())
	assert.Equal(t, []State{StateStopping, StateIdle, StateExiting}, drainStates(in))

	err = s.Begin(BeginInfo{ViewConfiguration: ViewConfigurationPrimaryStereo})
	assert.Equal(t, xrerr.ValidationFailure, xrerr.KindOf(err))
}

func TestLostSessionIsSticky(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	runFrame(t, s, clock)
	drainStates(in)

	s.MarkLost("display disconnected")
	assert.True(t, s.Lost())
	assert.Equal(t, StateLossPending, s.State())
	assert.Equal(t, []State{StateLossPending}, drainStates(in))

	ops := map[string]func() error{
		"begin":        func() error { return s.Begin(BeginInfo{ViewConfiguration: ViewConfigurationPrimaryStereo}) },
		"begin unknown view config": func() error {
			return s.Begin(BeginInfo{ViewConfiguration: ViewConfigurationType(99)})
		},
		"end":          s.End,
		"request exit": s.RequestExit,
		"wait frame": func() error {
			_, err := s.WaitFrame(context.Background())
			return err
		},
		"begin frame": s.BeginFrame,
		"end frame":   func() error { return s.EndFrame(FrameEndInfo{DisplayTime: 1, BlendMode: BlendModeOpaque}) },
		"create space": func() error {
			_, err := s.CreateReferenceSpace(ReferenceSpaceCreateInfo{Type: ReferenceSpaceLocal, PoseInReferenceSpace: identity()})
			return err
		},
		"refresh rate": func() error { return s.RequestRefreshRate(90) },
	}
	for name, op := range ops {
		for i := 0; i < 2; i++ {
			err := op()
			assert.True(t, errors.Is(err, xrerr.ErrSessionLost), "%s attempt %d: %v", name, i, err)
		}
	}

	// Destroy still works on a lost session.
	require.NoError(t, in.DestroySession(s))
	assert.Empty(t, in.Sessions())
}

func TestMarkLostTwiceEmitsOnce(t *testing.T) {
	t.Parallel()
	in, _ := newTestInstance(t, nil)
	s, err := in.CreateSession(CreateInfo{})
	require.NoError(t, err)
	drainStates(in)
	s.MarkLost("a")
	s.MarkLost("b")
	assert.Equal(t, []State{StateLossPending}, drainStates(in))
}

func TestDestroySession(t *testing.T) {
	t.Parallel()
	in, _ := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	sp, err := s.CreateReferenceSpace(ReferenceSpaceCreateInfo{Type: ReferenceSpaceStage, PoseInReferenceSpace: identity()})
	require.NoError(t, err)
	assert.Equal(t, []handle.ID{sp.ID()}, s.Spaces())

	require.NoError(t, in.DestroySession(s))
	assert.Empty(t, in.Sessions())

	_, err = in.Session(s.ID())
	assert.Equal(t, xrerr.HandleInvalid, xrerr.KindOf(err))
	_, err = in.Space(sp.ID())
	assert.Equal(t, xrerr.HandleInvalid, xrerr.KindOf(err))

	// Queued events for the session are discarded.
	assert.Equal(t, 0, in.PendingEvents())

	err = in.DestroySession(s)
	assert.Equal(t, xrerr.HandleInvalid, xrerr.KindOf(err))
}

func TestSubscribeReceivesEvents(t *testing.T) {
	t.Parallel()
	in, _ := newTestInstance(t, nil)
	id, ch := in.Subscribe()
	defer in.Unsubscribe(id)

	s, err := in.CreateSession(CreateInfo{})
	require.NoError(t, err)

	first := <-ch
	second := <-ch
	assert.Equal(t, s.ID(), first.Session)
	assert.Equal(t, StateIdle, first.State)
	assert.Equal(t, StateReady, second.State)
	assert.Greater(t, first.Time, int64(0))
}

func TestInstanceCloseClosesSubscribers(t *testing.T) {
	t.Parallel()
	clockless := DefaultSystem()
	in, err := NewInstance(Options{System: clockless})
	require.NoError(t, err)
	_, ch := in.Subscribe()
	_, err = in.CreateSession(CreateInfo{})
	require.NoError(t, err)

	require.NoError(t, in.Close())
	for range ch {
	}
	_, err = in.CreateSession(CreateInfo{})
	assert.Equal(t, xrerr.HandleInvalid, xrerr.KindOf(err))
}

func TestEventQueueDropsOldest(t *testing.T) {
	t.Parallel()
	q := newEventQueue(2)
	q.push(Event{Session: "a"})
	q.push(Event{Session: "b"})
	q.push(Event{Session: "c"})
	e, _ := q.poll()
	assert.Equal(t, handle.ID("b"), e.Session)
	assert.Equal(t, 1, q.dropped)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	runFrame(t, s, clock)
	runFrame(t, s, clock)

	info := s.Snapshot()
	assert.Equal(t, "FOCUSED", info.State)
	assert.Equal(t, int64(2), info.FramesSubmitted)
	assert.Equal(t, float32(90), info.RefreshRate)
	assert.Equal(t, "test", info.Application)
}

func TestExtensionSet(t *testing.T) {
	t.Parallel()
	set, err := NewExtensionSet("XR_EXT_hand_tracking", "XR_FB_body_tracking")
	require.NoError(t, err)
	assert.True(t, set.Enabled(ExtHandTracking))
	assert.False(t, set.Enabled(ExtFacialTrackingHTC))

	assert.Equal(t, []string{"XR_EXT_hand_tracking", "XR_FB_body_tracking"}, set.Names())

	_, err = NewExtensionSet("XR_BOGUS_extension")
	assert.Error(t, err)
}

func TestParseCapabilities(t *testing.T) {
	t.Parallel()
	caps, err := ParseCapabilities("hand_tracking", "lip_facial_tracking")
	require.NoError(t, err)
	assert.Equal(t, map[Capability]bool{CapHandTracking: true, CapLipFacialTracking: true}, caps)

	_, err = ParseCapabilities("x-ray_vision")
	assert.Error(t, err)
}
