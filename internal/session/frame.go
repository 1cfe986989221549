package session

import (
	"context"
	"time"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// MaxLayers is the most composition layers one EndFrame may submit.
const MaxLayers = 16

// frameState tracks where the application is in its wait/begin/end cycle.
type frameState struct {
	waiting   bool // a WaitFrame is blocked
	waited    bool // a WaitFrame completed and no BeginFrame consumed it
	begun     bool
	id        int64
	predicted int64 // monotonic
}

// FrameState is the result of WaitFrame.
type FrameState struct {
	// PredictedDisplayTime is external time.
	PredictedDisplayTime   int64
	PredictedDisplayPeriod time.Duration
	ShouldRender           bool
	ShouldStop             bool
}

// pacer produces display intervals on the monotonic clock. Predicted
// times strictly increase across committed frames.
type pacer struct {
	period int64
	last   int64 // 0 until the first committed frame
}

// next returns the next predicted display time and the monotonic time the
// caller should wake at.
func (p *pacer) next(now int64) (predicted, wake int64) {
	if p.last == 0 {
		return now + p.period, now
	}
	predicted = p.last + p.period
	wake = predicted - p.period
	if wake < now {
		// Missed intervals are skipped, never displayed late.
		missed := (now - wake + p.period - 1) / p.period
		predicted += missed * p.period
		wake += missed * p.period
	}
	return predicted, wake
}

func (p *pacer) commit(predicted int64) { p.last = predicted }

func (p *pacer) reset() { p.last = 0 }

func (p *pacer) setPeriod(d time.Duration) {
	if d > 0 {
		p.period = int64(d)
	}
}

// WaitFrame blocks until the next display interval opens and returns its
// timing. Only one WaitFrame may be in flight per session.
func (s *Session) WaitFrame(ctx context.Context) (FrameState, error) {
	clock := s.inst.time.Clock()
	s.mu.Lock()
	if err := s.checkRunningLocked(); err != nil {
		s.mu.Unlock()
		return FrameState{}, err
	}
	if s.frame.waiting {
		s.mu.Unlock()
		return FrameState{}, xrerr.New(xrerr.ValidationFailure, "another thread is already in xrWaitFrame")
	}
	s.frame.waiting = true
	run := s.run
	now := s.inst.time.MonotonicNow()
	predicted, wake := s.pacer.next(now)
	period := time.Duration(s.pacer.period)
	s.mu.Unlock()

	start := clock.Now()
	waitErr := s.sleepUntil(ctx, wake)
	waited := clock.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame.waiting = false
	if waitErr != nil {
		return FrameState{}, xrerr.Wrap(xrerr.RuntimeFailure, waitErr, "wait frame")
	}
	if err := s.checkRunningLocked(); err != nil {
		return FrameState{}, err
	}
	if s.run != run {
		return FrameState{}, xrerr.New(xrerr.SessionNotRunning, "session was restarted while xrWaitFrame was blocked")
	}

	s.pacer.commit(predicted)
	s.frame.waited = true
	s.frame.predicted = predicted
	s.timings.add(FrameTiming{
		PredictedDisplayTime: predicted,
		Period:               period,
		Wait:                 waited,
	})

	shouldStop := s.exitRequested
	if shouldStop && s.state != StateStopping {
		s.transitionLocked(StateStopping)
	}
	return FrameState{
		PredictedDisplayTime:   s.inst.time.MonotonicToExternal(predicted),
		PredictedDisplayPeriod: period,
		ShouldRender:           s.state == StateVisible || s.state == StateFocused,
		ShouldStop:             shouldStop,
	}, nil
}

func (s *Session) sleepUntil(ctx context.Context, wake int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := time.Duration(wake - s.inst.time.MonotonicNow())
	if d <= 0 {
		return nil
	}
	timer := s.inst.time.Clock().NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
}

// BeginFrame marks the start of rendering for the frame the last WaitFrame
// released.
func (s *Session) BeginFrame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRunningLocked(); err != nil {
		return err
	}
	if s.frame.begun {
		return xrerr.New(xrerr.ValidationFailure, "xrBeginFrame called twice without xrEndFrame")
	}
	if !s.frame.waited {
		return xrerr.New(xrerr.ValidationFailure, "xrBeginFrame called without a matching xrWaitFrame")
	}
	id := s.frame.id + 1
	if c := s.sys.Compositor; c != nil {
		if err := c.BeginFrame(id); err != nil {
			return xrerr.New(xrerr.RuntimeFailure, "compositor failed to begin frame %d: %v", id, err)
		}
	}
	s.frame.waited = false
	s.frame.begun = true
	s.frame.id = id
	return nil
}

// Layer is a composition layer submitted with EndFrame.
type Layer interface {
	layerSpace() handle.ID
}

// ProjectionView is one view of a projection layer.
type ProjectionView struct {
	Pose relation.Pose
	Fov  Fov
}

// ProjectionLayer is a stereo (or mono) rendering of the scene.
type ProjectionLayer struct {
	Space handle.ID
	Views []ProjectionView
}

func (l *ProjectionLayer) layerSpace() handle.ID { return l.Space }

// QuadLayer is a flat image placed in a space.
type QuadLayer struct {
	Space  handle.ID
	Pose   relation.Pose
	Width  float64
	Height float64
}

func (l *QuadLayer) layerSpace() handle.ID { return l.Space }

// FrameEndInfo is the argument to EndFrame.
type FrameEndInfo struct {
	// DisplayTime is external time.
	DisplayTime int64
	BlendMode   BlendMode
	Layers      []Layer
}

// FrameSubmission is what the compositor receives.
type FrameSubmission struct {
	// DisplayTimeNs is monotonic.
	DisplayTimeNs int64
	BlendMode     BlendMode
	Layers        []Layer
}

// EndFrame submits the frame begun by BeginFrame. The first successful
// submission makes the session visible and focused.
func (s *Session) EndFrame(info FrameEndInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRunningLocked(); err != nil {
		return err
	}
	if !s.frame.begun {
		return xrerr.New(xrerr.ValidationFailure, "xrEndFrame called without a matching xrBeginFrame")
	}
	if err := xrerr.First(
		xrerr.ValidTime(info.DisplayTime),
		s.checkBlendMode(info.BlendMode),
		s.checkLayers(info.Layers),
	); err != nil {
		return err
	}

	if c := s.sys.Compositor; c != nil {
		sub := FrameSubmission{
			DisplayTimeNs: s.inst.time.ExternalToMonotonic(info.DisplayTime),
			BlendMode:     info.BlendMode,
			Layers:        info.Layers,
		}
		if err := c.EndFrame(s.frame.id, sub); err != nil {
			return xrerr.New(xrerr.RuntimeFailure, "compositor failed to end frame %d: %v", s.frame.id, err)
		}
	}
	s.frame.begun = false
	s.submitted++
	if s.state == StateSynchronized {
		s.transitionLocked(StateVisible)
		s.transitionLocked(StateFocused)
	}
	return nil
}

func (s *Session) checkBlendMode(m BlendMode) xrerr.Check {
	return func() error {
		if !s.sys.supportsBlendMode(m) {
			return xrerr.New(xrerr.EnvironmentBlendModeUnsupported,
				"(frameEndInfo->environmentBlendMode == %d) is not supported by the system", m)
		}
		return nil
	}
}

func (s *Session) checkLayers(layers []Layer) xrerr.Check {
	return func() error {
		if len(layers) > MaxLayers {
			return xrerr.New(xrerr.ValidationFailure, "(frameEndInfo->layerCount == %d) exceeds the limit of %d", len(layers), MaxLayers)
		}
		for i, l := range layers {
			if err := s.checkLayer(i, l); err != nil {
				return err
			}
		}
		return nil
	}
}

func (s *Session) checkLayer(i int, l Layer) error {
	if l == nil {
		return xrerr.New(xrerr.LayerInvalid, "(frameEndInfo->layers[%d] == NULL)", i)
	}
	sp, err := s.inst.Space(l.layerSpace())
	if err != nil {
		return err
	}
	if sp.sess != s {
		return xrerr.New(xrerr.ValidationFailure, "(frameEndInfo->layers[%d]->space) belongs to another session", i)
	}
	switch layer := l.(type) {
	case *ProjectionLayer:
		if len(layer.Views) != len(s.sys.Views) {
			return xrerr.New(xrerr.ValidationFailure,
				"(frameEndInfo->layers[%d]->viewCount == %d) must equal the view count %d", i, len(layer.Views), len(s.sys.Views))
		}
		for j, v := range layer.Views {
			if !v.Pose.IsNormalized() {
				return xrerr.New(xrerr.PoseInvalid, "(frameEndInfo->layers[%d]->views[%d].pose) is not normalized", i, j)
			}
		}
	case *QuadLayer:
		if !layer.Pose.IsNormalized() {
			return xrerr.New(xrerr.PoseInvalid, "(frameEndInfo->layers[%d]->pose) is not normalized", i)
		}
		if layer.Width <= 0 || layer.Height <= 0 {
			return xrerr.New(xrerr.ValidationFailure, "(frameEndInfo->layers[%d]->size) must be positive", i)
		}
	default:
		return xrerr.New(xrerr.LayerInvalid, "(frameEndInfo->layers[%d]) has unknown type %T", i, l)
	}
	return nil
}

// FrameTiming is one WaitFrame measurement.
type FrameTiming struct {
	// PredictedDisplayTime is monotonic.
	PredictedDisplayTime int64
	Period               time.Duration
	Wait                 time.Duration
}

const timingHistory = 128

type timingRing struct {
	buf  [timingHistory]FrameTiming
	next int
	n    int
}

func (r *timingRing) add(t FrameTiming) {
	r.buf[r.next] = t
	r.next = (r.next + 1) % timingHistory
	if r.n < timingHistory {
		r.n++
	}
}

func (r *timingRing) snapshot() []FrameTiming {
	out := make([]FrameTiming, 0, r.n)
	start := (r.next - r.n + timingHistory) % timingHistory
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(start+i)%timingHistory])
	}
	return out
}

// FrameTimings returns recent WaitFrame measurements, oldest first.
func (s *Session) FrameTimings() []FrameTiming {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timings.snapshot()
}
