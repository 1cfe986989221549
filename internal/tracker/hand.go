package tracker

import (
	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/xrerr"
	"gonum.org/v1/gonum/spatial/r3"
)

// Hand selects a hand.
type Hand int

const (
	HandLeft  Hand = 1
	HandRight Hand = 2
)

// HandJointSet selects a hand joint layout. Only the default 26-joint set
// exists.
type HandJointSet int

const HandJointSetDefault HandJointSet = 0

// HandConfig creates a hand tracker.
type HandConfig struct {
	Hand     Hand
	JointSet HandJointSet
}

func (HandConfig) trackerKind() Kind { return KindHand }

// HandTracker locates the joints of one hand.
type HandTracker struct {
	base
	hand Hand
}

func newHand(call monitoring.Call, sess *session.Session, c HandConfig) (*HandTracker, error) {
	role, input := device.RoleHandTrackingLeft, device.InputHandTrackingLeft
	switch c.Hand {
	case HandLeft:
	case HandRight:
		role, input = device.RoleHandTrackingRight, device.InputHandTrackingRight
	default:
		return nil, xrerr.New(xrerr.ValidationFailure, "(createInfo->hand == %d) is not a valid hand", c.Hand)
	}
	if c.JointSet != HandJointSetDefault {
		return nil, xrerr.New(xrerr.ValidationFailure, "(createInfo->handJointSet == %d) is not a valid joint set", c.JointSet)
	}
	if !sess.System().Supports(session.CapHandTracking) {
		return nil, xrerr.New(xrerr.FeatureUnsupported, "System does not support hand tracking")
	}

	dev := bind(call, sess, role, input, func(caps device.Capabilities) bool { return caps.HandTracking })
	return &HandTracker{
		base: base{
			id:    handle.NewID(handle.KindHandTracker),
			kind:  KindHand,
			sess:  sess,
			dev:   dev,
			input: input,
		},
		hand: c.Hand,
	}, nil
}

// Hand returns which hand the tracker follows.
func (h *HandTracker) Hand() Hand { return h.hand }

// HandJointLocation is one located joint.
type HandJointLocation struct {
	Pose   relation.Pose
	Radius float64
	Flags  relation.Flags
}

// HandJointVelocity is one joint's velocity in the base space.
type HandJointVelocity struct {
	LinearVelocity  r3.Vec
	AngularVelocity r3.Vec
	Flags           relation.Flags
}

// HandJointsLocateInfo is the argument to LocateJoints.
type HandJointsLocateInfo struct {
	BaseSpace *session.Space
	// Time is external time.
	Time int64
}

// HandJointLocations receives LocateJoints output. Joints must hold
// exactly device.HandJointCount entries; Velocities is optional and, when
// present, must be the same length.
type HandJointLocations struct {
	IsActive   bool
	Joints     []HandJointLocation
	Velocities []HandJointVelocity
}

// LocateJoints resolves every joint through joint-in-hand, hand-in-origin,
// origin-in-base.
func (h *HandTracker) LocateJoints(info HandJointsLocateInfo, out *HandJointLocations) error {
	if err := h.sess.CheckNotLost(); err != nil {
		return err
	}
	if err := xrerr.First(
		xrerr.NotNil("locations", out != nil),
		func() error {
			if len(out.Joints) != device.HandJointCount {
				return xrerr.New(xrerr.ValidationFailure, "(locations->jointCount == %d) must equal %d", len(out.Joints), device.HandJointCount)
			}
			if out.Velocities != nil && len(out.Velocities) != device.HandJointCount {
				return xrerr.New(xrerr.ValidationFailure, "(velocities->jointCount == %d) must equal %d", len(out.Velocities), device.HandJointCount)
			}
			return nil
		},
		xrerr.ValidTime(info.Time),
		h.ready,
	); err != nil {
		return err
	}

	mono := h.sess.Instance().Time().ExternalToMonotonic(info.Time)
	originInBase, err := h.originIn(info.BaseSpace, mono)
	if err != nil {
		return err
	}
	s, err := h.sample(mono)
	if err != nil {
		return err
	}
	if !s.Active || s.Hand == nil {
		out.IsActive = false
		clear(out.Joints)
		clear(out.Velocities)
		return nil
	}

	for i := 0; i < device.HandJointCount; i++ {
		j := s.Hand.Joints[device.HandLayout.Native(i)]
		r := relation.Resolve(j.Relation, s.Hand.HandPose, originInBase)
		out.Joints[i] = HandJointLocation{Pose: r.Pose, Radius: j.Radius, Flags: r.Flags & locationMask}
		if out.Velocities != nil {
			out.Velocities[i] = HandJointVelocity{
				LinearVelocity:  r.LinearVelocity,
				AngularVelocity: r.AngularVelocity,
				Flags:           r.Flags & velocityMask,
			}
		}
	}
	out.IsActive = true
	return nil
}

// ApplyForceFeedback sends per-finger curl resistance to the hand's
// device.
func (h *HandTracker) ApplyForceFeedback(values []device.ForceFeedbackValue) error {
	if err := h.ready(); err != nil {
		return err
	}
	if len(values) > device.ForceFeedbackLocationsMax {
		return xrerr.New(xrerr.ValidationFailure, "(locationCount == %d) exceeds %d", len(values), device.ForceFeedbackLocationsMax)
	}
	for i, v := range values {
		if v.Location < device.ForceFeedbackLittle || v.Location > device.ForceFeedbackThumb {
			return xrerr.New(xrerr.ValidationFailure, "(locations[%d].location == %d) is not a finger", i, v.Location)
		}
		if v.Value < 0 || v.Value > 1 {
			return xrerr.New(xrerr.ValidationFailure, "(locations[%d].value == %f) must be within [0, 1]", i, v.Value)
		}
	}
	out, ok := h.dev.(device.ForceFeedbackOutput)
	if !ok || !h.dev.Capabilities().ForceFeedback {
		return xrerr.New(xrerr.FeatureUnsupported, "Device '%s' has no force feedback output", h.dev.Name())
	}
	if err := out.SetForceFeedback(h.input, values); err != nil {
		return xrerr.New(xrerr.RuntimeFailure, "device '%s' rejected force feedback: %v", h.dev.Name(), err)
	}
	return nil
}
