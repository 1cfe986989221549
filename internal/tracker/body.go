package tracker

import (
	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// BodyConfig creates a body tracker.
type BodyConfig struct {
	JointSet device.BodyJointSetType
}

func (BodyConfig) trackerKind() Kind { return KindBody }

// BodyTracker locates a full skeleton.
type BodyTracker struct {
	base
	set    device.BodyJointSetType
	layout device.Layout
}

func newBody(call monitoring.Call, sess *session.Session, c BodyConfig) (*BodyTracker, error) {
	sys := sess.System()
	if !sys.Supports(session.CapBodyTracking) {
		return nil, xrerr.New(xrerr.FeatureUnsupported, "System does not support body tracking")
	}

	var input device.InputName
	switch c.JointSet {
	case device.BodyJointSetDefault:
		input = device.InputBodyTrackingFB
	case device.BodyJointSetFullBody:
		if !sys.Supports(session.CapFullBodyTracking) {
			return nil, xrerr.New(xrerr.FeatureUnsupported, "System does not support full body tracking")
		}
		input = device.InputFullBodyTrackingMeta
	default:
		return nil, xrerr.New(xrerr.ValidationFailure, "(createInfo->bodyJointSet == %d) is not a valid joint set", c.JointSet)
	}

	dev := bind(call, sess, device.RoleBody, input, func(caps device.Capabilities) bool { return caps.BodyTracking })
	return &BodyTracker{
		base: base{
			id:    handle.NewID(handle.KindBodyTracker),
			kind:  KindBody,
			sess:  sess,
			dev:   dev,
			input: input,
		},
		set:    c.JointSet,
		layout: device.BodyLayout(c.JointSet),
	}, nil
}

// JointSet returns the tracker's joint set.
func (b *BodyTracker) JointSet() device.BodyJointSetType { return b.set }

// JointCount is the number of joints in the tracker's set.
func (b *BodyTracker) JointCount() int { return b.layout.Count() }

// BodySkeletonJoint is one joint of the rest skeleton, in API order.
type BodySkeletonJoint struct {
	Pose        relation.Pose
	Joint       int
	ParentJoint int
}

// Skeleton writes the rest skeleton into joints, which must hold at least
// JointCount entries.
func (b *BodyTracker) Skeleton(joints []BodySkeletonJoint) error {
	if err := b.ready(); err != nil {
		return err
	}
	count := b.layout.Count()
	if len(joints) < count {
		return xrerr.New(xrerr.ValidationFailure, "joint count is too small (%d < %d)", len(joints), count)
	}
	provider, ok := b.dev.(device.SkeletonProvider)
	if !ok {
		return xrerr.New(xrerr.FunctionUnsupported, "Device '%s' has no body skeleton", b.dev.Name())
	}
	native, err := provider.BodySkeleton(b.input)
	if err != nil {
		return xrerr.New(xrerr.RuntimeFailure, "device '%s' failed to report skeleton: %v", b.dev.Name(), err)
	}
	if len(native) != count {
		return xrerr.New(xrerr.RuntimeFailure, "device '%s' reported %d skeleton joints, want %d", b.dev.Name(), len(native), count)
	}
	for i := 0; i < count; i++ {
		n := native[b.layout.Native(i)]
		joints[i] = BodySkeletonJoint{
			Pose:        n.Pose,
			Joint:       i,
			ParentJoint: b.layout.API(n.Parent),
		}
	}
	return nil
}

// BodyJointsLocateInfo is the argument to LocateJoints.
type BodyJointsLocateInfo struct {
	BaseSpace *session.Space
	// Time is external time.
	Time int64
}

// BodyJointLocation is one located joint.
type BodyJointLocation struct {
	Pose  relation.Pose
	Flags relation.Flags
}

// FidelityStatus receives the fidelity the device is currently running.
type FidelityStatus struct {
	Fidelity device.Fidelity
}

// BodyJointLocations receives LocateJoints output.
type BodyJointLocations struct {
	IsActive             bool
	Confidence           float64
	SkeletonChangedCount uint32
	// Time is external time.
	Time   int64
	Joints []BodyJointLocation
	// Fidelity is optional.
	Fidelity *FidelityStatus
}

// LocateJoints resolves every joint through joint-in-body, body-in-base.
func (b *BodyTracker) LocateJoints(info BodyJointsLocateInfo, out *BodyJointLocations) error {
	if err := xrerr.First(
		b.sess.CheckNotLost,
		xrerr.NotNil("locations", out != nil),
		b.ready,
	); err != nil {
		return err
	}
	caps := b.dev.Capabilities()
	count := b.layout.Count()
	if err := xrerr.First(
		func() error {
			if !caps.BodyTracking {
				return xrerr.New(xrerr.FunctionUnsupported, "Device '%s' does not support body tracking", b.dev.Name())
			}
			return nil
		},
		func() error {
			if len(out.Joints) < count {
				return xrerr.New(xrerr.ValidationFailure, "joint count is too small (%d < %d)", len(out.Joints), count)
			}
			return nil
		},
		xrerr.ValidTime(info.Time),
		func() error {
			if out.Fidelity == nil {
				return nil
			}
			if !b.sess.Instance().ExtensionEnabled(session.ExtBodyTrackingFidelity) {
				return xrerr.New(xrerr.FunctionUnsupported, "Requires the %s extension to be enabled", session.ExtBodyTrackingFidelity)
			}
			if !caps.BodyTrackingFidelity {
				return xrerr.New(xrerr.FeatureUnsupported, "Device '%s' does not report body tracking fidelity", b.dev.Name())
			}
			return nil
		},
	); err != nil {
		return err
	}

	tk := b.sess.Instance().Time()
	mono := tk.ExternalToMonotonic(info.Time)
	originInBase, err := b.originIn(info.BaseSpace, mono)
	if err != nil {
		return err
	}
	s, err := b.sample(mono)
	if err != nil {
		return err
	}

	var bodyInBase relation.Relation
	if s.Active && s.Body != nil {
		bodyInBase = relation.Resolve(s.Body.BodyPose, originInBase)
	}
	if !s.Active || s.Body == nil || bodyInBase.Flags == relation.FlagsNone {
		out.IsActive = false
		out.Confidence = 0
		out.SkeletonChangedCount = 0
		out.Time = 0
		if out.Fidelity != nil {
			*out.Fidelity = FidelityStatus{}
		}
		clear(out.Joints[:count])
		return nil
	}
	if len(s.Body.Joints) != count {
		return xrerr.New(xrerr.RuntimeFailure, "device '%s' reported %d body joints, want %d", b.dev.Name(), len(s.Body.Joints), count)
	}

	for i := 0; i < count; i++ {
		r := relation.Resolve(s.Body.Joints[b.layout.Native(i)], bodyInBase)
		out.Joints[i] = BodyJointLocation{Pose: r.Pose, Flags: r.Flags & locationMask}
	}
	out.IsActive = true
	out.Confidence = s.Body.Confidence
	out.SkeletonChangedCount = s.Body.SkeletonChangedCount
	out.Time = tk.MonotonicToExternal(s.TimestampNs)
	if out.Fidelity != nil {
		out.Fidelity.Fidelity = s.Body.Fidelity
	}
	return nil
}

// RequestFidelity asks the device to switch tracking fidelity.
func (b *BodyTracker) RequestFidelity(f device.Fidelity) error {
	if err := b.ready(); err != nil {
		return err
	}
	if f != device.FidelityLow && f != device.FidelityHigh {
		return xrerr.New(xrerr.ValidationFailure, "(fidelity == %d) is not a valid fidelity", f)
	}
	ctl, ok := b.dev.(device.FidelityController)
	if !ok || !b.dev.Capabilities().BodyTrackingFidelity {
		return xrerr.New(xrerr.FeatureUnsupported, "Device '%s' cannot change body tracking fidelity", b.dev.Name())
	}
	if err := ctl.SetBodyTrackingFidelity(b.input, f); err != nil {
		return xrerr.New(xrerr.RuntimeFailure, "device '%s' rejected fidelity %d: %v", b.dev.Name(), f, err)
	}
	return nil
}
