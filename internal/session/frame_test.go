package session

import (
	"context"
	"testing"
	"time"

	"github.com/banshee-data/xrstate/internal/xrerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameLoopDiscipline(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	end := FrameEndInfo{DisplayTime: 1, BlendMode: BlendModeOpaque}

	// begin-frame with no wait-frame
	assert.Equal(t, xrerr.ValidationFailure, xrerr.KindOf(s.BeginFrame()))
	// end-frame with no begin-frame
	assert.Equal(t, xrerr.ValidationFailure, xrerr.KindOf(s.EndFrame(end)))
	assert.Equal(t, StateSynchronized, s.State())

	clock.Advance(s.sys.Period())
	fs, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.BeginFrame())
	// begin-frame twice in a row
	assert.Equal(t, xrerr.ValidationFailure, xrerr.KindOf(s.BeginFrame()))
	assert.Equal(t, StateSynchronized, s.State())

	end.DisplayTime = fs.PredictedDisplayTime
	require.NoError(t, s.EndFrame(end))
	// end-frame twice in a row
	assert.Equal(t, xrerr.ValidationFailure, xrerr.KindOf(s.EndFrame(end)))
	assert.Equal(t, StateFocused, s.State())
}

func TestFrameLoopRequiresRunning(t *testing.T) {
	t.Parallel()
	in, _ := newTestInstance(t, nil)
	s, err := in.CreateSession(CreateInfo{})
	require.NoError(t, err)

	_, err = s.WaitFrame(context.Background())
	assert.Equal(t, xrerr.SessionNotRunning, xrerr.KindOf(err))
	assert.Equal(t, xrerr.SessionNotRunning, xrerr.KindOf(s.BeginFrame()))
}

func TestFirstSubmissionFocuses(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	drainStates(in)

	fs := runFrame(t, s, clock)
	assert.False(t, fs.ShouldRender, "not yet visible when the first frame was predicted")
	assert.Equal(t, []State{StateVisible, StateFocused}, drainStates(in))

	fs = runFrame(t, s, clock)
	assert.True(t, fs.ShouldRender)
	assert.Empty(t, drainStates(in))
}

func TestPredictedDisplayTimesIncrease(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	period := s.sys.Period()

	var last int64
	for i := 0; i < 10; i++ {
		fs := runFrame(t, s, clock)
		assert.Greater(t, fs.PredictedDisplayTime, last)
		assert.Equal(t, period, fs.PredictedDisplayPeriod)
		last = fs.PredictedDisplayTime
	}
	assert.Len(t, s.FrameTimings(), 10)
}

func TestWaitFrameBlocksUntilNextInterval(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	period := s.sys.Period()
	first := runFrame(t, s, clock)

	// The clock has not moved, so the next interval is a full period away.
	type result struct {
		fs  FrameState
		err error
	}
	done := make(chan result, 1)
	go func() {
		fs, err := s.WaitFrame(context.Background())
		done <- result{fs, err}
	}()

	waitForTimers(t, clock, 1)
	select {
	case <-done:
		t.Fatal("WaitFrame returned before the clock advanced")
	default:
	}

	clock.Advance(period)
	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, first.PredictedDisplayTime+int64(period), r.fs.PredictedDisplayTime)
	timings := s.FrameTimings()
	assert.Equal(t, period, timings[len(timings)-1].Wait)
}

func TestOverlappingWaitFrame(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	runFrame(t, s, clock)

	done := make(chan error, 1)
	go func() {
		_, err := s.WaitFrame(context.Background())
		done <- err
	}()
	waitForTimers(t, clock, 1)

	_, err := s.WaitFrame(context.Background())
	assert.Equal(t, xrerr.ValidationFailure, xrerr.KindOf(err))

	clock.Advance(s.sys.Period())
	require.NoError(t, <-done)
}

func TestWaitFrameAcrossRestart(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	runFrame(t, s, clock)

	done := make(chan error, 1)
	go func() {
		_, err := s.WaitFrame(context.Background())
		done <- err
	}()
	waitForTimers(t, clock, 1)

	require.NoError(t, s.End())
	require.NoError(t, s.Begin(BeginInfo{ViewConfiguration: ViewConfigurationPrimaryStereo}))

	// The wait from the previous run still holds the slot.
	_, err := s.WaitFrame(context.Background())
	assert.Equal(t, xrerr.ValidationFailure, xrerr.KindOf(err))

	clock.Advance(s.sys.Period())
	assert.Equal(t, xrerr.SessionNotRunning, xrerr.KindOf(<-done))

	// The stale wait committed nothing; the new run starts cleanly.
	assert.Equal(t, xrerr.ValidationFailure, xrerr.KindOf(s.BeginFrame()))
	runFrame(t, s, clock)
}

func TestWaitFrameContextCancel(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	runFrame(t, s, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.WaitFrame(ctx)
		done <- err
	}()
	waitForTimers(t, clock, 1)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	var xe *xrerr.Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, xrerr.RuntimeFailure, xe.Kind)
	// The aborted wait leaves no frame to begin.
	assert.Equal(t, xrerr.ValidationFailure, xrerr.KindOf(s.BeginFrame()))
}

func TestWaitFrameUnblocksOnDestroy(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	runFrame(t, s, clock)

	done := make(chan error, 1)
	go func() {
		_, err := s.WaitFrame(context.Background())
		done <- err
	}()
	waitForTimers(t, clock, 1)
	require.NoError(t, in.DestroySession(s))

	select {
	case err := <-done:
		assert.Equal(t, xrerr.HandleInvalid, xrerr.KindOf(err))
	case <-time.After(5 * time.Second):
		t.Fatal("WaitFrame did not return after destroy")
	}
}

func TestPacerSkipsMissedIntervals(t *testing.T) {
	t.Parallel()
	p := pacer{period: 10}

	predicted, wake := p.next(100)
	assert.Equal(t, int64(110), predicted)
	assert.Equal(t, int64(100), wake)
	p.commit(predicted)

	// On time: wake at the start of the next interval.
	predicted, wake = p.next(105)
	assert.Equal(t, int64(120), predicted)
	assert.Equal(t, int64(110), wake)

	// Three periods late: the skipped intervals are never predicted.
	predicted, wake = p.next(135)
	assert.Equal(t, int64(150), predicted)
	assert.Equal(t, int64(140), wake)
}

func TestEndFrameValidation(t *testing.T) {
	t.Parallel()
	in, clock := newTestInstance(t, nil)
	s := newRunningSession(t, in)
	local, err := s.CreateReferenceSpace(ReferenceSpaceCreateInfo{Type: ReferenceSpaceLocal, PoseInReferenceSpace: identity()})
	require.NoError(t, err)

	clock.Advance(s.sys.Period())
	fs, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.BeginFrame())

	badPose := identity()
	badPose.Orientation.Real = 2

	tests := []struct {
		name string
		info FrameEndInfo
		want xrerr.Kind
	}{
		{"zero time", FrameEndInfo{DisplayTime: 0, BlendMode: BlendModeOpaque}, xrerr.TimeInvalid},
		{"unsupported blend mode", FrameEndInfo{DisplayTime: fs.PredictedDisplayTime, BlendMode: BlendModeAdditive}, xrerr.EnvironmentBlendModeUnsupported},
		{"nil layer", FrameEndInfo{DisplayTime: fs.PredictedDisplayTime, BlendMode: BlendModeOpaque, Layers: []Layer{nil}}, xrerr.LayerInvalid},
		{"dead space", FrameEndInfo{DisplayTime: fs.PredictedDisplayTime, BlendMode: BlendModeOpaque, Layers: []Layer{&QuadLayer{Space: "space_gone", Pose: identity(), Width: 1, Height: 1}}}, xrerr.HandleInvalid},
		{"wrong view count", FrameEndInfo{DisplayTime: fs.PredictedDisplayTime, BlendMode: BlendModeOpaque, Layers: []Layer{&ProjectionLayer{Space: local.ID(), Views: make([]ProjectionView, 1)}}}, xrerr.ValidationFailure},
		{"bad quad pose", FrameEndInfo{DisplayTime: fs.PredictedDisplayTime, BlendMode: BlendModeOpaque, Layers: []Layer{&QuadLayer{Space: local.ID(), Pose: badPose, Width: 1, Height: 1}}}, xrerr.PoseInvalid},
		{"too many layers", FrameEndInfo{DisplayTime: fs.PredictedDisplayTime, BlendMode: BlendModeOpaque, Layers: make([]Layer, MaxLayers+1)}, xrerr.ValidationFailure},
	}
	for _, tt := range tests {
		err := s.EndFrame(tt.info)
		assert.Equal(t, tt.want, xrerr.KindOf(err), tt.name)
	}

	// None of the failures consumed the frame.
	views := []ProjectionView{{Pose: identity()}, {Pose: identity()}}
	require.NoError(t, s.EndFrame(FrameEndInfo{
		DisplayTime: fs.PredictedDisplayTime,
		BlendMode:   BlendModeOpaque,
		Layers:      []Layer{&ProjectionLayer{Space: local.ID(), Views: views}},
	}))
}

func TestCompositorFailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	comp := &fakeCompositor{}
	in, clock := newTestInstance(t, func(sys *System) { sys.Compositor = comp })
	s := newRunningSession(t, in)

	clock.Advance(s.sys.Period())
	fs, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.BeginFrame())

	comp.endErr = errCompositor
	err = s.EndFrame(FrameEndInfo{DisplayTime: fs.PredictedDisplayTime, BlendMode: BlendModeOpaque})
	assert.Equal(t, xrerr.RuntimeFailure, xrerr.KindOf(err))
	assert.Equal(t, StateSynchronized, s.State())

	comp.endErr = nil
	require.NoError(t, s.EndFrame(FrameEndInfo{DisplayTime: fs.PredictedDisplayTime, BlendMode: BlendModeOpaque}))
	assert.Equal(t, StateFocused, s.State())
	require.Len(t, comp.ended, 1)
	assert.Equal(t, in.Time().ExternalToMonotonic(fs.PredictedDisplayTime), comp.ended[0].DisplayTimeNs)
	assert.Equal(t, []int64{1}, comp.begun)
}

func TestCompositorBeginFailure(t *testing.T) {
	t.Parallel()
	comp := &fakeCompositor{beginErr: errCompositor}
	in, clock := newTestInstance(t, func(sys *System) { sys.Compositor = comp })
	s := newRunningSession(t, in)

	clock.Advance(s.sys.Period())
	_, err := s.WaitFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, xrerr.RuntimeFailure, xrerr.KindOf(s.BeginFrame()))

	// The waited frame is still available.
	comp.beginErr = nil
	require.NoError(t, s.BeginFrame())
}
