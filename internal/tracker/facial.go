package tracker

import (
	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// FacialTrackingType selects an expression set.
type FacialTrackingType int

const (
	FacialTrackingEye FacialTrackingType = 1
	FacialTrackingLip FacialTrackingType = 2
)

// FacialConfig creates a facial tracker.
type FacialConfig struct {
	Type FacialTrackingType
}

func (FacialConfig) trackerKind() Kind { return KindFacial }

// FacialTracker reports expression weights for the eyes or the lips.
type FacialTracker struct {
	base
	typ    FacialTrackingType
	layout device.Layout
}

func newFacial(call monitoring.Call, sess *session.Session, c FacialConfig) (*FacialTracker, error) {
	var (
		capability session.Capability
		input      device.InputName
		layout     device.Layout
	)
	switch c.Type {
	case FacialTrackingEye:
		capability, input, layout = session.CapEyeFacialTracking, device.InputEyeFacialTrackingHTC, device.EyeLayoutHTC
	case FacialTrackingLip:
		capability, input, layout = session.CapLipFacialTracking, device.InputLipFacialTrackingHTC, device.LipLayoutHTC
	default:
		return nil, xrerr.New(xrerr.ValidationFailure, "(createInfo->facialTrackingType == %d) is not a valid type", c.Type)
	}
	if !sess.System().Supports(capability) {
		return nil, xrerr.New(xrerr.FeatureUnsupported, "System does not support %s", capability)
	}

	dev := bind(call, sess, device.RoleFace, input, func(caps device.Capabilities) bool { return caps.FaceTracking })
	return &FacialTracker{
		base: base{
			id:    handle.NewID(handle.KindFacialTracker),
			kind:  KindFacial,
			sess:  sess,
			dev:   dev,
			input: input,
		},
		typ:    c.Type,
		layout: layout,
	}, nil
}

// Type returns the expression set the tracker reports.
func (f *FacialTracker) Type() FacialTrackingType { return f.typ }

// ExpressionCount is the number of weights the tracker reports.
func (f *FacialTracker) ExpressionCount() int { return f.layout.Count() }

// FacialExpressions receives Expressions output.
type FacialExpressions struct {
	IsActive bool
	// SampleTime is external time.
	SampleTime int64
	Weights    []float64
}

// Expressions samples the face device. Weights must hold at least
// ExpressionCount entries.
func (f *FacialTracker) Expressions(out *FacialExpressions) error {
	if err := xrerr.First(
		f.sess.CheckNotLost,
		xrerr.NotNil("facialExpressions", out != nil),
		f.ready,
	); err != nil {
		return err
	}
	count := f.layout.Count()
	if len(out.Weights) < count {
		return xrerr.Insufficient(count, "(facialExpressions->expressionCount == %d) is less than %d", len(out.Weights), count)
	}

	tk := f.sess.Instance().Time()
	s, err := f.sample(tk.MonotonicNow())
	if err != nil {
		return err
	}
	if !s.Active || s.Face == nil {
		out.IsActive = false
		out.SampleTime = 0
		clear(out.Weights[:count])
		return nil
	}
	if len(s.Face.Weights) != count {
		return xrerr.New(xrerr.RuntimeFailure, "device '%s' reported %d expressions, want %d", f.dev.Name(), len(s.Face.Weights), count)
	}
	for i := 0; i < count; i++ {
		out.Weights[i] = s.Face.Weights[f.layout.Native(i)]
	}
	out.IsActive = true
	out.SampleTime = tk.MonotonicToExternal(s.TimestampNs)
	return nil
}
