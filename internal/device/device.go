// Package device is the runtime's view of tracking hardware: named inputs,
// capability flags, and timestamped samples. Drivers implement Device; the
// session and tracker layers only ever call through this interface.
package device

import (
	"errors"

	"github.com/banshee-data/xrstate/internal/relation"
)

// ErrNoSample is returned when a device has nothing to report for an input
// yet. Callers treat it as a device failure.
var ErrNoSample = errors.New("device: no sample available")

// InputName identifies one data stream a device produces.
type InputName string

const (
	InputHeadPose             InputName = "head_pose"
	InputHandTrackingLeft     InputName = "hand_tracking_left"
	InputHandTrackingRight    InputName = "hand_tracking_right"
	InputBodyTrackingFB       InputName = "body_tracking_fb"
	InputFullBodyTrackingMeta InputName = "full_body_tracking_meta"
	InputEyeFacialTrackingHTC InputName = "eye_facial_tracking_htc"
	InputLipFacialTrackingHTC InputName = "lip_facial_tracking_htc"
)

// Role is the system-level slot a device fills.
type Role string

const (
	RoleHead              Role = "head"
	RoleHandTrackingLeft  Role = "hand_tracking_left"
	RoleHandTrackingRight Role = "hand_tracking_right"
	RoleBody              Role = "body"
	RoleFace              Role = "face"
)

// Capabilities are the coarse feature flags a device advertises.
type Capabilities struct {
	HandTracking         bool `json:"hand_tracking"`
	BodyTracking         bool `json:"body_tracking"`
	FaceTracking         bool `json:"face_tracking"`
	BodyTrackingFidelity bool `json:"body_tracking_fidelity"`
	ForceFeedback        bool `json:"force_feedback"`
}

// Device is a source of tracking samples.
type Device interface {
	Name() string
	Inputs() []InputName
	Capabilities() Capabilities
	// Sample returns the state of input predicted or interpolated to atNs
	// on the runtime's monotonic clock. Inputs without a time notion
	// (facial expressions) ignore atNs.
	Sample(input InputName, atNs int64) (Sample, error)
}

// HasInput reports whether d produces input.
func HasInput(d Device, input InputName) bool {
	if d == nil {
		return false
	}
	for _, in := range d.Inputs() {
		if in == input {
			return true
		}
	}
	return false
}

// Sample is one reading of one input. Exactly one of the payload fields is
// meaningful for a given input kind; Pose is used by head and other plain
// pose inputs.
type Sample struct {
	Input InputName
	// TimestampNs is the monotonic time the sample describes.
	TimestampNs int64
	Active      bool

	Pose relation.Relation
	Hand *HandJointSet
	Body *BodyJointSet
	Face *FacialExpressionSet
}

// HandJoint is one hand joint in the hand's own frame, native order.
type HandJoint struct {
	Relation relation.Relation
	Radius   float64
}

// HandJointSet is a full hand sample.
type HandJointSet struct {
	// Joints are relative to HandPose, in device-native order.
	Joints [HandJointCount]HandJoint
	// HandPose places the hand in the tracking origin.
	HandPose relation.Relation
}

// BodyJointSetType selects a body skeleton layout.
type BodyJointSetType int

const (
	BodyJointSetDefault BodyJointSetType = iota
	BodyJointSetFullBody
)

// Fidelity is a body tracking quality level.
type Fidelity int

const (
	FidelityLow  Fidelity = 1
	FidelityHigh Fidelity = 2
)

// BodyJointSet is a full body sample.
type BodyJointSet struct {
	JointSet BodyJointSetType
	// Joints are relative to BodyPose, in device-native order.
	Joints []relation.Relation
	// BodyPose places the body root in the tracking origin.
	BodyPose             relation.Relation
	Confidence           float64
	SkeletonChangedCount uint32
	Fidelity             Fidelity
}

// SkeletonJoint is one joint of a rest skeleton. Joint and Parent are
// device-native indices; a root has Parent -1.
type SkeletonJoint struct {
	Pose   relation.Pose
	Joint  int
	Parent int
}

// FacialExpressionSet holds expression weights in device-native order.
type FacialExpressionSet struct {
	Weights []float64
}

// SkeletonProvider is implemented by body devices that expose a rest
// skeleton.
type SkeletonProvider interface {
	BodySkeleton(input InputName) ([]SkeletonJoint, error)
}

// FidelityController is implemented by body devices that can switch
// tracking fidelity.
type FidelityController interface {
	SetBodyTrackingFidelity(input InputName, f Fidelity) error
}

// ForceFeedbackLocation is a finger on a haptic glove.
type ForceFeedbackLocation int

const (
	ForceFeedbackLittle ForceFeedbackLocation = iota
	ForceFeedbackRing
	ForceFeedbackMiddle
	ForceFeedbackIndex
	ForceFeedbackThumb
)

// ForceFeedbackValue is a curl resistance for one finger, 0 to 1.
type ForceFeedbackValue struct {
	Location ForceFeedbackLocation
	Value    float64
}

// ForceFeedbackOutput is implemented by devices with per-finger haptics.
type ForceFeedbackOutput interface {
	SetForceFeedback(input InputName, values []ForceFeedbackValue) error
}

// Provider resolves the device filling a role. A nil Device means the slot
// is empty.
type Provider interface {
	DeviceForRole(role Role) Device
}

// RoleMap is the static Provider used by configured systems.
type RoleMap map[Role]Device

func (m RoleMap) DeviceForRole(role Role) Device {
	return m[role]
}
