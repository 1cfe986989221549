package serialdev

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/relation"
)

// wireLine is one JSON object per line on the serial feed. Which payload
// fields are read depends on the input.
//
//	{"input":"head_pose","pose":{"p":[0,1.6,0],"q":[0,0,0,1]}}
//	{"input":"eye_facial_tracking_htc","weights":[0.1, ...]}
type wireLine struct {
	Input string `json:"input"`
	// AgeNs is how long before transmission the sample was taken.
	AgeNs  int64 `json:"age_ns,omitempty"`
	Active *bool `json:"active,omitempty"`

	Pose            *wirePose   `json:"pose,omitempty"`
	Joints          []wireJoint `json:"joints,omitempty"`
	Confidence      float64     `json:"confidence,omitempty"`
	Fidelity        int         `json:"fidelity,omitempty"`
	SkeletonChanged uint32      `json:"skeleton_changed,omitempty"`
	Weights         []float64   `json:"weights,omitempty"`

	// Skeleton replaces the rest skeleton of a body input.
	Skeleton []wireJoint `json:"skeleton,omitempty"`
}

// wirePose is a pose with optional velocities. Q is x, y, z, w.
type wirePose struct {
	P [3]float64  `json:"p"`
	Q [4]float64  `json:"q"`
	V *[3]float64 `json:"v,omitempty"`
	W *[3]float64 `json:"w,omitempty"`
}

type wireJoint struct {
	wirePose
	Radius float64 `json:"r,omitempty"`
	Parent int     `json:"parent,omitempty"`
}

func (w wireLine) active() bool {
	return w.Active == nil || *w.Active
}

func (p wirePose) pose() relation.Pose {
	return relation.Pose{
		Orientation: quat.Number{Real: p.Q[3], Imag: p.Q[0], Jmag: p.Q[1], Kmag: p.Q[2]},
		Position:    r3.Vec{X: p.P[0], Y: p.P[1], Z: p.P[2]},
	}
}

// relation converts a wire pose. A transmitted pose is valid and tracked;
// velocities are valid only when sent.
func (p wirePose) relation() (relation.Relation, error) {
	r := relation.Relation{Pose: p.pose(), Flags: relation.FlagsPose}
	if !r.Pose.IsNormalized() {
		return relation.Relation{}, fmt.Errorf("orientation %v is not normalized", p.Q)
	}
	if p.V != nil {
		r.LinearVelocity = r3.Vec{X: p.V[0], Y: p.V[1], Z: p.V[2]}
		r.Flags |= relation.LinearVelocityValid
	}
	if p.W != nil {
		r.AngularVelocity = r3.Vec{X: p.W[0], Y: p.W[1], Z: p.W[2]}
		r.Flags |= relation.AngularVelocityValid
	}
	return r, nil
}

// expectedJoints returns how many joints a body or hand input carries.
func expectedJoints(input device.InputName) (int, bool) {
	switch input {
	case device.InputHandTrackingLeft, device.InputHandTrackingRight:
		return device.HandJointCount, true
	case device.InputBodyTrackingFB:
		return device.BodyJointCountFB, true
	case device.InputFullBodyTrackingMeta:
		return device.BodyJointCountFullBody, true
	}
	return 0, false
}

func expectedWeights(input device.InputName) (int, bool) {
	switch input {
	case device.InputEyeFacialTrackingHTC:
		return device.EyeExpressionCountHTC, true
	case device.InputLipFacialTrackingHTC:
		return device.LipExpressionCountHTC, true
	}
	return 0, false
}

func jointSetFor(input device.InputName) device.BodyJointSetType {
	if input == device.InputFullBodyTrackingMeta {
		return device.BodyJointSetFullBody
	}
	return device.BodyJointSetDefault
}

// decodeSample builds a device sample from a parsed line. ts is the
// monotonic time the sample describes.
func decodeSample(w wireLine, ts int64) (device.Sample, error) {
	input := device.InputName(w.Input)
	s := device.Sample{Input: input, TimestampNs: ts, Active: w.active()}
	if !s.Active {
		return s, nil
	}

	switch input {
	case device.InputHeadPose:
		if w.Pose == nil {
			return s, fmt.Errorf("%s: missing pose", input)
		}
		r, err := w.Pose.relation()
		if err != nil {
			return s, fmt.Errorf("%s: %w", input, err)
		}
		s.Pose = r

	case device.InputHandTrackingLeft, device.InputHandTrackingRight:
		hand, err := decodeHand(w)
		if err != nil {
			return s, fmt.Errorf("%s: %w", input, err)
		}
		s.Hand = hand

	case device.InputBodyTrackingFB, device.InputFullBodyTrackingMeta:
		body, err := decodeBody(w)
		if err != nil {
			return s, fmt.Errorf("%s: %w", input, err)
		}
		s.Body = body

	case device.InputEyeFacialTrackingHTC, device.InputLipFacialTrackingHTC:
		want, _ := expectedWeights(input)
		if len(w.Weights) != want {
			return s, fmt.Errorf("%s: got %d weights, want %d", input, len(w.Weights), want)
		}
		s.Face = &device.FacialExpressionSet{Weights: append([]float64(nil), w.Weights...)}

	default:
		return s, fmt.Errorf("unknown input %q", w.Input)
	}
	return s, nil
}

func decodeHand(w wireLine) (*device.HandJointSet, error) {
	if w.Pose == nil {
		return nil, fmt.Errorf("missing hand pose")
	}
	if len(w.Joints) != device.HandJointCount {
		return nil, fmt.Errorf("got %d joints, want %d", len(w.Joints), device.HandJointCount)
	}
	hand := &device.HandJointSet{}
	var err error
	if hand.HandPose, err = w.Pose.relation(); err != nil {
		return nil, err
	}
	for i, j := range w.Joints {
		r, err := j.relation()
		if err != nil {
			return nil, fmt.Errorf("joint %d: %w", i, err)
		}
		hand.Joints[i] = device.HandJoint{Relation: r, Radius: j.Radius}
	}
	return hand, nil
}

func decodeBody(w wireLine) (*device.BodyJointSet, error) {
	input := device.InputName(w.Input)
	want, _ := expectedJoints(input)
	if w.Pose == nil {
		return nil, fmt.Errorf("missing body pose")
	}
	if len(w.Joints) != want {
		return nil, fmt.Errorf("got %d joints, want %d", len(w.Joints), want)
	}
	bodyPose, err := w.Pose.relation()
	if err != nil {
		return nil, err
	}
	body := &device.BodyJointSet{
		JointSet:             jointSetFor(input),
		Joints:               make([]relation.Relation, want),
		BodyPose:             bodyPose,
		Confidence:           w.Confidence,
		SkeletonChangedCount: w.SkeletonChanged,
		Fidelity:             device.Fidelity(w.Fidelity),
	}
	for i, j := range w.Joints {
		if body.Joints[i], err = j.relation(); err != nil {
			return nil, fmt.Errorf("joint %d: %w", i, err)
		}
	}
	return body, nil
}

func decodeSkeleton(w wireLine) ([]device.SkeletonJoint, error) {
	want, ok := expectedJoints(device.InputName(w.Input))
	if !ok || device.InputName(w.Input) == device.InputHandTrackingLeft || device.InputName(w.Input) == device.InputHandTrackingRight {
		return nil, fmt.Errorf("%s has no body skeleton", w.Input)
	}
	if len(w.Skeleton) != want {
		return nil, fmt.Errorf("%s: got %d skeleton joints, want %d", w.Input, len(w.Skeleton), want)
	}
	joints := make([]device.SkeletonJoint, want)
	for i, j := range w.Skeleton {
		if j.Parent < -1 || j.Parent >= want {
			return nil, fmt.Errorf("%s: skeleton joint %d has parent %d", w.Input, i, j.Parent)
		}
		joints[i] = device.SkeletonJoint{Pose: j.pose(), Joint: i, Parent: j.Parent}
	}
	return joints, nil
}
