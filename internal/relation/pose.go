package relation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// NormalizationTolerance is how far |q| may drift from 1 before a pose
// supplied by an application is rejected as invalid.
const NormalizationTolerance = 0.01

// Pose is a rigid transform: Orientation rotates child-frame vectors into
// the parent frame, Position is the child origin in the parent frame.
type Pose struct {
	Orientation quat.Number
	Position    r3.Vec
}

// IdentityPose is the pose of a frame relative to itself.
var IdentityPose = Pose{Orientation: quat.Number{Real: 1}}

// NewPose builds a pose from an axis-angle rotation (radians) and a
// translation.
func NewPose(angle float64, axis r3.Vec, position r3.Vec) Pose {
	return Pose{
		Orientation: quat.Number(r3.NewRotation(angle, axis)),
		Position:    position,
	}
}

// Rotate applies orientation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// Transform maps a point from the child frame into the parent frame.
func (p Pose) Transform(v r3.Vec) r3.Vec {
	return r3.Add(p.Position, Rotate(p.Orientation, v))
}

// Compose returns inner expressed in p's parent frame; inner must be
// expressed in p's child frame.
func (p Pose) Compose(inner Pose) Pose {
	return Pose{
		Orientation: normalize(quat.Mul(p.Orientation, inner.Orientation)),
		Position:    p.Transform(inner.Position),
	}
}

// Inverse returns the parent frame expressed in the child frame.
func (p Pose) Inverse() Pose {
	inv := quat.Conj(p.Orientation)
	return Pose{
		Orientation: inv,
		Position:    r3.Scale(-1, Rotate(inv, p.Position)),
	}
}

// IsNormalized reports whether the orientation is a unit quaternion within
// NormalizationTolerance.
func (p Pose) IsNormalized() bool {
	return math.Abs(quat.Abs(p.Orientation)-1) <= NormalizationTolerance
}

// IsIdentity reports whether p is exactly the identity pose.
func (p Pose) IsIdentity() bool {
	return p == IdentityPose
}

// ApproxEqual compares two poses component-wise within tol. q and -q are
// the same rotation and compare equal.
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	if r3.Norm(r3.Sub(p.Position, o.Position)) > tol {
		return false
	}
	same := quat.Abs(quat.Sub(p.Orientation, o.Orientation)) <= tol
	flipped := quat.Abs(quat.Add(p.Orientation, o.Orientation)) <= tol
	return same || flipped
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || n == 1 {
		return q
	}
	return quat.Scale(1/n, q)
}
