package xrapi

import (
	"context"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/session"
)

// CreateSession creates a session in the READY state.
func (rt *Runtime) CreateSession(ctx context.Context, info session.CreateInfo) (handle.ID, error) {
	_, c := rt.enter(ctx, "xrCreateSession", rt.inst.ID())
	s, err := rt.inst.CreateSession(info)
	if err != nil {
		return handle.Nil, c.done(err)
	}
	c.span.SetAttributes(handleAttr(s.ID()))
	c.log.Infof("created session %s", s.ID())
	return s.ID(), c.done(nil)
}

// DestroySession destroys a session and every space and tracker under it.
// A lost session may still be destroyed.
func (rt *Runtime) DestroySession(ctx context.Context, id handle.ID) error {
	_, c := rt.enter(ctx, "xrDestroySession", id)
	s, err := rt.inst.Session(id)
	if err != nil {
		return c.done(err)
	}
	return c.done(rt.inst.DestroySession(s))
}

// BeginSession starts the frame loop.
func (rt *Runtime) BeginSession(ctx context.Context, id handle.ID, info session.BeginInfo) error {
	_, c := rt.enter(ctx, "xrBeginSession", id)
	s, err := rt.liveSession(id)
	if err != nil {
		return c.done(err)
	}
	return c.done(s.Begin(info))
}

// EndSession stops the frame loop.
func (rt *Runtime) EndSession(ctx context.Context, id handle.ID) error {
	_, c := rt.enter(ctx, "xrEndSession", id)
	s, err := rt.liveSession(id)
	if err != nil {
		return c.done(err)
	}
	return c.done(s.End())
}

// RequestExitSession asks a running session to wind down.
func (rt *Runtime) RequestExitSession(ctx context.Context, id handle.ID) error {
	_, c := rt.enter(ctx, "xrRequestExitSession", id)
	s, err := rt.liveSession(id)
	if err != nil {
		return c.done(err)
	}
	return c.done(s.RequestExit())
}

// MarkSessionLost moves a session to LOSS_PENDING. It is the device
// layer's and operator's way to report an unrecoverable condition.
func (rt *Runtime) MarkSessionLost(ctx context.Context, id handle.ID, reason string) error {
	_, c := rt.enter(ctx, "xrMarkSessionLost", id)
	s, err := rt.inst.Session(id)
	if err != nil {
		return c.done(err)
	}
	s.MarkLost(reason)
	return c.done(nil)
}

// Sessions returns a snapshot of every live session.
func (rt *Runtime) Sessions() []session.Info {
	sessions := rt.inst.Sessions()
	infos := make([]session.Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Snapshot())
	}
	return infos
}

// WaitFrame blocks until the next display interval. ctx bounds the wait.
func (rt *Runtime) WaitFrame(ctx context.Context, id handle.ID) (session.FrameState, error) {
	ctx, c := rt.enter(ctx, "xrWaitFrame", id)
	s, err := rt.liveSession(id)
	if err != nil {
		return session.FrameState{}, c.done(err)
	}
	fs, err := s.WaitFrame(ctx)
	return fs, c.done(err)
}

// BeginFrame marks the start of rendering for the waited frame.
func (rt *Runtime) BeginFrame(ctx context.Context, id handle.ID) error {
	_, c := rt.enter(ctx, "xrBeginFrame", id)
	s, err := rt.liveSession(id)
	if err != nil {
		return c.done(err)
	}
	return c.done(s.BeginFrame())
}

// EndFrame submits the frame's layers.
func (rt *Runtime) EndFrame(ctx context.Context, id handle.ID, info session.FrameEndInfo) error {
	_, c := rt.enter(ctx, "xrEndFrame", id)
	s, err := rt.liveSession(id)
	if err != nil {
		return c.done(err)
	}
	return c.done(s.EndFrame(info))
}

// ViewLocateInfo is the argument to LocateViews.
type ViewLocateInfo struct {
	ViewConfiguration session.ViewConfigurationType
	// DisplayTime is external time.
	DisplayTime int64
	Space       handle.ID
}

// LocateViews is a two-call enumeration over the views of the system's
// view configuration.
func (rt *Runtime) LocateViews(ctx context.Context, id handle.ID, info ViewLocateInfo, capacity int, views []session.View) (session.ViewState, int, error) {
	_, c := rt.enter(ctx, "xrLocateViews", id, info.Space)
	s, err := rt.inst.Session(id)
	if err != nil {
		return session.ViewState{}, 0, c.done(err)
	}
	sp, err := rt.inst.Space(info.Space)
	if err != nil {
		return session.ViewState{}, 0, c.done(err)
	}
	vs, n, err := s.LocateViews(session.ViewLocateInfo{
		ViewConfiguration: info.ViewConfiguration,
		DisplayTime:       info.DisplayTime,
		Space:             sp,
	}, capacity, views)
	return vs, n, c.done(err)
}

// GetVisibilityMask returns a view's mask geometry through two two-call
// enumerations.
func (rt *Runtime) GetVisibilityMask(
	ctx context.Context,
	id handle.ID,
	viewConfig session.ViewConfigurationType,
	viewIndex int,
	maskType session.VisibilityMaskType,
	vertexCapacity int, vertices []session.Vector2,
	indexCapacity int, indices []uint32,
) (vertexCount, indexCount int, err error) {
	_, c := rt.enter(ctx, "xrGetVisibilityMaskKHR", id)
	s, err := rt.liveSession(id)
	if err == nil {
		err = rt.extension(session.ExtVisibilityMask)()
	}
	if err != nil {
		return 0, 0, c.done(err)
	}
	vertexCount, indexCount, err = s.GetVisibilityMask(viewConfig, viewIndex, maskType, vertexCapacity, vertices, indexCapacity, indices)
	return vertexCount, indexCount, c.done(err)
}

// CreateReferenceSpace creates a VIEW, LOCAL or STAGE space.
func (rt *Runtime) CreateReferenceSpace(ctx context.Context, id handle.ID, info session.ReferenceSpaceCreateInfo) (handle.ID, error) {
	_, c := rt.enter(ctx, "xrCreateReferenceSpace", id)
	s, err := rt.inst.Session(id)
	if err != nil {
		return handle.Nil, c.done(err)
	}
	sp, err := s.CreateReferenceSpace(info)
	if err != nil {
		return handle.Nil, c.done(err)
	}
	return sp.ID(), c.done(nil)
}

// DestroySpace destroys a space.
func (rt *Runtime) DestroySpace(ctx context.Context, id handle.ID) error {
	_, c := rt.enter(ctx, "xrDestroySpace", id)
	if _, err := rt.inst.Space(id); err != nil {
		return c.done(err)
	}
	return c.done(rt.inst.Handles().Destroy(id))
}

// LocateSpace returns space's relation in base at external time t.
func (rt *Runtime) LocateSpace(ctx context.Context, spaceID, baseID handle.ID, t int64) (relation.Relation, error) {
	_, c := rt.enter(ctx, "xrLocateSpace", spaceID, baseID)
	sp, err := rt.inst.Space(spaceID)
	if err != nil {
		return relation.Relation{}, c.done(err)
	}
	base, err := rt.inst.Space(baseID)
	if err != nil {
		return relation.Relation{}, c.done(err)
	}
	r, err := sp.Session().LocateSpace(sp, base, t)
	return r, c.done(err)
}

// EnumerateRefreshRates is a two-call enumeration over the display's
// refresh rates.
func (rt *Runtime) EnumerateRefreshRates(ctx context.Context, id handle.ID, capacity int, rates []float32) (int, error) {
	_, c := rt.enter(ctx, "xrEnumerateDisplayRefreshRatesFB", id)
	s, err := rt.liveSession(id)
	if err == nil {
		err = rt.extension(session.ExtDisplayRefreshRate)()
	}
	if err != nil {
		return 0, c.done(err)
	}
	n, err := s.EnumerateRefreshRates(capacity, rates)
	return n, c.done(err)
}

// GetRefreshRate returns the current display refresh rate.
func (rt *Runtime) GetRefreshRate(ctx context.Context, id handle.ID) (float32, error) {
	_, c := rt.enter(ctx, "xrGetDisplayRefreshRateFB", id)
	s, err := rt.liveSession(id)
	if err == nil {
		err = rt.extension(session.ExtDisplayRefreshRate)()
	}
	if err != nil {
		return 0, c.done(err)
	}
	rate, err := s.RefreshRate()
	return rate, c.done(err)
}

// RequestRefreshRate switches the display refresh rate. Zero leaves the
// choice to the runtime.
func (rt *Runtime) RequestRefreshRate(ctx context.Context, id handle.ID, rate float32) error {
	_, c := rt.enter(ctx, "xrRequestDisplayRefreshRateFB", id)
	s, err := rt.liveSession(id)
	if err == nil {
		err = rt.extension(session.ExtDisplayRefreshRate)()
	}
	if err != nil {
		return c.done(err)
	}
	return c.done(s.RequestRefreshRate(rate))
}

// SetPerformanceLevel forwards a performance hint for one domain.
func (rt *Runtime) SetPerformanceLevel(ctx context.Context, id handle.ID, domain session.PerfDomain, level session.PerfLevel) error {
	_, c := rt.enter(ctx, "xrPerfSettingsSetPerformanceLevelEXT", id)
	s, err := rt.liveSession(id)
	if err == nil {
		err = rt.extension(session.ExtPerformanceSettings)()
	}
	if err != nil {
		return c.done(err)
	}
	return c.done(s.SetPerformanceLevel(domain, level))
}
