package relation

import (
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Flags marks which components of a Relation are usable (valid) and which
// are actively produced by a device (tracked).
type Flags uint8

const (
	OrientationValid Flags = 1 << iota
	PositionValid
	LinearVelocityValid
	AngularVelocityValid
	OrientationTracked
	PositionTracked

	FlagsNone Flags = 0
	// FlagsPose is the valid+tracked set for a pose with no velocities.
	FlagsPose = OrientationValid | PositionValid | OrientationTracked | PositionTracked
	// FlagsAll is every valid and tracked bit.
	FlagsAll = FlagsPose | LinearVelocityValid | AngularVelocityValid
)

// Has reports whether every bit in want is set.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Located reports whether f carries a usable pose (orientation and
// position valid).
func (f Flags) Located() bool {
	return f.Has(OrientationValid | PositionValid)
}

func (f Flags) String() string {
	if f == FlagsNone {
		return "none"
	}
	names := []struct {
		bit  Flags
		name string
	}{
		{OrientationValid, "orientation_valid"},
		{PositionValid, "position_valid"},
		{LinearVelocityValid, "linear_velocity_valid"},
		{AngularVelocityValid, "angular_velocity_valid"},
		{OrientationTracked, "orientation_tracked"},
		{PositionTracked, "position_tracked"},
	}
	var parts []string
	for _, n := range names {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Relation is the pose of one frame in another at an instant, with the
// frame's velocities expressed in the parent frame.
type Relation struct {
	Pose            Pose
	LinearVelocity  r3.Vec
	AngularVelocity r3.Vec
	Flags           Flags
}

// Identity is the relation of a frame to itself: identity pose, zero
// velocity, every flag set.
func Identity() Relation {
	return Relation{Pose: IdentityPose, Flags: FlagsAll}
}

// FromPose wraps a static pose. A static offset is known exactly and does
// not move, so every component (zero velocities included) is valid and
// tracked.
func FromPose(p Pose) Relation {
	return Relation{Pose: p, Flags: FlagsAll}
}

// Invalid is a relation with no usable component.
func Invalid() Relation {
	return Relation{Pose: IdentityPose}
}

// Inverse returns the parent frame relative to the child frame. Flags are
// preserved.
func (r Relation) Inverse() Relation {
	inv := r.Pose.Inverse()
	// Velocities of the parent as seen from the child, in child axes.
	lin := Rotate(inv.Orientation, r3.Sub(r3.Cross(r.AngularVelocity, r.Pose.Position), r.LinearVelocity))
	ang := r3.Scale(-1, Rotate(inv.Orientation, r.AngularVelocity))
	return Relation{
		Pose:            inv,
		LinearVelocity:  lin,
		AngularVelocity: ang,
		Flags:           r.Flags,
	}
}

// Compose returns inner (a frame in r's child frame) expressed in r's
// parent frame. Each component flag survives only if it is set on both.
func (r Relation) Compose(inner Relation) Relation {
	lever := Rotate(r.Pose.Orientation, inner.Pose.Position)
	lin := r3.Add(r3.Add(r.LinearVelocity, Rotate(r.Pose.Orientation, inner.LinearVelocity)), r3.Cross(r.AngularVelocity, lever))
	ang := r3.Add(r.AngularVelocity, Rotate(r.Pose.Orientation, inner.AngularVelocity))
	return Relation{
		Pose:            r.Pose.Compose(inner.Pose),
		LinearVelocity:  lin,
		AngularVelocity: ang,
		Flags:           r.Flags & inner.Flags,
	}
}
