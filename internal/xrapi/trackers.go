package xrapi

import (
	"context"

	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/tracker"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// createTracker runs the shared creation path: session handle, not lost,
// extension, then the tracker's own validation.
func (rt *Runtime) createTracker(c *call, sessID handle.ID, cfg tracker.Config, exts ...session.Extension) (handle.ID, error) {
	s, err := rt.liveSession(sessID)
	if err != nil {
		return handle.Nil, c.done(err)
	}
	checks := make([]xrerr.Check, len(exts))
	for i, ext := range exts {
		checks[i] = rt.extension(ext)
	}
	if err := xrerr.First(checks...); err != nil {
		return handle.Nil, c.done(err)
	}
	t, err := tracker.Create(c.log, s, cfg)
	if err != nil {
		return handle.Nil, c.done(err)
	}
	c.span.SetAttributes(handleAttr(t.ID()))
	return t.ID(), c.done(nil)
}

// liveTracker checks the tracker's session is not lost and the
// extensions are enabled.
func (rt *Runtime) liveTracker(t tracker.Tracker, exts ...session.Extension) error {
	checks := []xrerr.Check{t.Session().CheckNotLost}
	for _, ext := range exts {
		checks = append(checks, rt.extension(ext))
	}
	return xrerr.First(checks...)
}

// baseSpace resolves a base space handle. Ownership is checked by the
// tracker.
func (rt *Runtime) baseSpace(id handle.ID) (*session.Space, error) {
	return rt.inst.Space(id)
}

// CreateHandTracker creates a hand tracker.
func (rt *Runtime) CreateHandTracker(ctx context.Context, sessID handle.ID, cfg tracker.HandConfig) (handle.ID, error) {
	_, c := rt.enter(ctx, "xrCreateHandTrackerEXT", sessID)
	return rt.createTracker(c, sessID, cfg, session.ExtHandTracking)
}

// DestroyHandTracker destroys a hand tracker.
func (rt *Runtime) DestroyHandTracker(ctx context.Context, id handle.ID) error {
	_, c := rt.enter(ctx, "xrDestroyHandTrackerEXT", id)
	h, err := tracker.LookupHand(rt.inst.Handles(), id)
	if err != nil {
		return c.done(err)
	}
	return c.done(tracker.Destroy(h))
}

// HandJointsLocateInfo is the argument to LocateHandJoints.
type HandJointsLocateInfo struct {
	BaseSpace handle.ID
	// Time is external time.
	Time int64
}

// LocateHandJoints locates every joint of the tracked hand.
func (rt *Runtime) LocateHandJoints(ctx context.Context, id handle.ID, info HandJointsLocateInfo, out *tracker.HandJointLocations) error {
	_, c := rt.enter(ctx, "xrLocateHandJointsEXT", id, info.BaseSpace)
	h, err := tracker.LookupHand(rt.inst.Handles(), id)
	if err != nil {
		return c.done(err)
	}
	base, err := rt.baseSpace(info.BaseSpace)
	if err != nil {
		return c.done(err)
	}
	if err := rt.liveTracker(h, session.ExtHandTracking); err != nil {
		return c.done(err)
	}
	return c.done(h.LocateJoints(tracker.HandJointsLocateInfo{BaseSpace: base, Time: info.Time}, out))
}

// ApplyForceFeedbackCurl sends per-finger curl resistance to a hand
// tracker's device.
func (rt *Runtime) ApplyForceFeedbackCurl(ctx context.Context, id handle.ID, values []device.ForceFeedbackValue) error {
	_, c := rt.enter(ctx, "xrApplyForceFeedbackCurlMNDX", id)
	h, err := tracker.LookupHand(rt.inst.Handles(), id)
	if err != nil {
		return c.done(err)
	}
	if err := rt.liveTracker(h, session.ExtForceFeedbackCurl); err != nil {
		return c.done(err)
	}
	return c.done(h.ApplyForceFeedback(values))
}

// CreateBodyTracker creates a body tracker. The full body joint set also
// needs its own extension.
func (rt *Runtime) CreateBodyTracker(ctx context.Context, sessID handle.ID, cfg tracker.BodyConfig) (handle.ID, error) {
	_, c := rt.enter(ctx, "xrCreateBodyTrackerFB", sessID)
	exts := []session.Extension{session.ExtBodyTrackingFB}
	if cfg.JointSet == device.BodyJointSetFullBody {
		exts = append(exts, session.ExtBodyTrackingFullBody)
	}
	return rt.createTracker(c, sessID, cfg, exts...)
}

// DestroyBodyTracker destroys a body tracker.
func (rt *Runtime) DestroyBodyTracker(ctx context.Context, id handle.ID) error {
	_, c := rt.enter(ctx, "xrDestroyBodyTrackerFB", id)
	b, err := tracker.LookupBody(rt.inst.Handles(), id)
	if err != nil {
		return c.done(err)
	}
	return c.done(tracker.Destroy(b))
}

// GetBodySkeleton writes the rest skeleton in API joint order.
func (rt *Runtime) GetBodySkeleton(ctx context.Context, id handle.ID, joints []tracker.BodySkeletonJoint) error {
	_, c := rt.enter(ctx, "xrGetBodySkeletonFB", id)
	b, err := tracker.LookupBody(rt.inst.Handles(), id)
	if err != nil {
		return c.done(err)
	}
	if err := rt.liveTracker(b, session.ExtBodyTrackingFB); err != nil {
		return c.done(err)
	}
	return c.done(b.Skeleton(joints))
}

// BodyJointsLocateInfo is the argument to LocateBodyJoints.
type BodyJointsLocateInfo struct {
	BaseSpace handle.ID
	// Time is external time.
	Time int64
}

// LocateBodyJoints locates every joint of the tracked body.
func (rt *Runtime) LocateBodyJoints(ctx context.Context, id handle.ID, info BodyJointsLocateInfo, out *tracker.BodyJointLocations) error {
	_, c := rt.enter(ctx, "xrLocateBodyJointsFB", id, info.BaseSpace)
	b, err := tracker.LookupBody(rt.inst.Handles(), id)
	if err != nil {
		return c.done(err)
	}
	base, err := rt.baseSpace(info.BaseSpace)
	if err != nil {
		return c.done(err)
	}
	if err := rt.liveTracker(b, session.ExtBodyTrackingFB); err != nil {
		return c.done(err)
	}
	return c.done(b.LocateJoints(tracker.BodyJointsLocateInfo{BaseSpace: base, Time: info.Time}, out))
}

// RequestBodyTrackingFidelity asks the body device to switch fidelity.
func (rt *Runtime) RequestBodyTrackingFidelity(ctx context.Context, id handle.ID, f device.Fidelity) error {
	_, c := rt.enter(ctx, "xrRequestBodyTrackingFidelityMETA", id)
	b, err := tracker.LookupBody(rt.inst.Handles(), id)
	if err != nil {
		return c.done(err)
	}
	if err := rt.liveTracker(b, session.ExtBodyTrackingFidelity); err != nil {
		return c.done(err)
	}
	return c.done(b.RequestFidelity(f))
}

// CreateFacialTracker creates an eye or lip expression tracker.
func (rt *Runtime) CreateFacialTracker(ctx context.Context, sessID handle.ID, cfg tracker.FacialConfig) (handle.ID, error) {
	_, c := rt.enter(ctx, "xrCreateFacialTrackerHTC", sessID)
	return rt.createTracker(c, sessID, cfg, session.ExtFacialTrackingHTC)
}

// DestroyFacialTracker destroys a facial tracker.
func (rt *Runtime) DestroyFacialTracker(ctx context.Context, id handle.ID) error {
	_, c := rt.enter(ctx, "xrDestroyFacialTrackerHTC", id)
	f, err := tracker.LookupFacial(rt.inst.Handles(), id)
	if err != nil {
		return c.done(err)
	}
	return c.done(tracker.Destroy(f))
}

// GetFacialExpressions samples the tracker's expression weights.
func (rt *Runtime) GetFacialExpressions(ctx context.Context, id handle.ID, out *tracker.FacialExpressions) error {
	_, c := rt.enter(ctx, "xrGetFacialExpressionsHTC", id)
	f, err := tracker.LookupFacial(rt.inst.Handles(), id)
	if err != nil {
		return c.done(err)
	}
	if err := rt.liveTracker(f, session.ExtFacialTrackingHTC); err != nil {
		return c.done(err)
	}
	return c.done(f.Expressions(out))
}
