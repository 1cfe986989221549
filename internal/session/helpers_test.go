package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/timeutil"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestInstance(t *testing.T, mutate func(*System)) (*Instance, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(testEpoch)
	sys := DefaultSystem()
	if mutate != nil {
		mutate(sys)
	}
	in, err := NewInstance(Options{Clock: clock, System: sys})
	require.NoError(t, err)
	t.Cleanup(func() { _ = in.Close() })
	return in, clock
}

func newRunningSession(t *testing.T, in *Instance) *Session {
	t.Helper()
	s, err := in.CreateSession(CreateInfo{ApplicationName: "test"})
	require.NoError(t, err)
	require.NoError(t, s.Begin(BeginInfo{ViewConfiguration: ViewConfigurationPrimaryStereo}))
	return s
}

// runFrame advances the clock by one period so WaitFrame never blocks, then
// completes a wait/begin/end cycle.
func runFrame(t *testing.T, s *Session, clock *timeutil.MockClock) FrameState {
	t.Helper()
	clock.Advance(s.sys.Period())
	fs, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.BeginFrame())
	require.NoError(t, s.EndFrame(FrameEndInfo{DisplayTime: fs.PredictedDisplayTime, BlendMode: BlendModeOpaque}))
	return fs
}

// drainStates pops every queued state change for id.
func drainStates(in *Instance) []State {
	var out []State
	for {
		e, q := in.PollEvent()
		if q != 0 {
			return out
		}
		if e.Type == EventSessionStateChanged {
			out = append(out, e.State)
		}
	}
}

// waitForTimers blocks until n goroutines are parked on the mock clock.
func waitForTimers(t *testing.T, clock *timeutil.MockClock, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for clock.PendingTimers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d pending timers", n)
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeCompositor struct {
	mu       sync.Mutex
	begun    []int64
	ended    []FrameSubmission
	endErr   error
	beginErr error
}

func (c *fakeCompositor) BeginFrame(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.beginErr != nil {
		return c.beginErr
	}
	c.begun = append(c.begun, id)
	return nil
}

func (c *fakeCompositor) EndFrame(id int64, sub FrameSubmission) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.endErr != nil {
		return c.endErr
	}
	c.ended = append(c.ended, sub)
	return nil
}

var errCompositor = errors.New("swapchain lost")

func identity() relation.Pose { return relation.IdentityPose }
