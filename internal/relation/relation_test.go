package relation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

var (
	xAxis = r3.Vec{X: 1}
	yAxis = r3.Vec{Y: 1}
	zAxis = r3.Vec{Z: 1}
)

func assertVec(t *testing.T, want, got r3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-9, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-9, "z")
}

func TestResolve_EmptyChainIsIdentity(t *testing.T) {
	t.Parallel()

	var c Chain
	got := c.Resolve()

	assert.True(t, got.Pose.IsIdentity())
	assert.Equal(t, FlagsAll, got.Flags)
	assert.Equal(t, r3.Vec{}, got.LinearVelocity)
	assert.Equal(t, r3.Vec{}, got.AngularVelocity)
}

func TestResolve_SingleLinkPassesThrough(t *testing.T) {
	t.Parallel()

	link := Relation{
		Pose:           NewPose(0.3, zAxis, r3.Vec{X: 1, Y: 2, Z: 3}),
		LinearVelocity: r3.Vec{X: 0.5},
		Flags:          OrientationValid | PositionValid | LinearVelocityValid,
	}
	got := Resolve(link)

	assert.True(t, got.Pose.ApproxEqual(link.Pose, tol))
	assertVec(t, link.LinearVelocity, got.LinearVelocity)
	assert.Equal(t, link.Flags, got.Flags)
}

func TestResolve_ValidityConjunction(t *testing.T) {
	t.Parallel()

	a := Relation{Pose: NewPose(0.2, yAxis, r3.Vec{X: 1}), Flags: FlagsAll}
	b := Relation{Pose: NewPose(0.1, xAxis, r3.Vec{Z: 1}), Flags: OrientationValid | OrientationTracked}

	ab := Resolve(a, b)
	assert.False(t, ab.Flags.Has(PositionValid), "position invalid on one link must invalidate the result")
	assert.False(t, ab.Flags.Has(PositionTracked))
	assert.True(t, ab.Flags.Has(OrientationValid|OrientationTracked))

	aa := Resolve(a, a)
	assert.True(t, aa.Flags.Has(PositionValid))
	assert.Equal(t, FlagsAll, aa.Flags)
}

func TestResolve_TrackedIndependentOfValid(t *testing.T) {
	t.Parallel()

	lastKnown := Relation{Pose: IdentityPose, Flags: OrientationValid | PositionValid}
	live := FromPose(NewPose(0, zAxis, r3.Vec{Y: 1}))

	got := Resolve(lastKnown, live)
	assert.True(t, got.Flags.Located(), "valid-but-untracked data is still usable")
	assert.False(t, got.Flags.Has(OrientationTracked))
	assert.False(t, got.Flags.Has(PositionTracked))
}

func TestResolve_OrderSensitive(t *testing.T) {
	t.Parallel()

	a := FromPose(NewPose(math.Pi/2, zAxis, r3.Vec{X: 1}))
	b := FromPose(NewPose(math.Pi/2, xAxis, r3.Vec{Y: 2}))

	ab := Resolve(a, b)
	ba := Resolve(b, a)
	assert.False(t, ab.Pose.ApproxEqual(ba.Pose, 1e-6))
}

func TestResolve_ComposesTranslationThroughRotation(t *testing.T) {
	t.Parallel()

	// Joint 1m along the hand's X axis; hand rotated 90° about Z and
	// placed at (0, 0, 1) in the world.
	joint := FromPose(Pose{Orientation: IdentityPose.Orientation, Position: r3.Vec{X: 1}})
	hand := FromPose(NewPose(math.Pi/2, zAxis, r3.Vec{Z: 1}))

	got := Resolve(joint, hand)
	assertVec(t, r3.Vec{X: 0, Y: 1, Z: 1}, got.Pose.Position)
}

func TestResolve_VelocitiesTransformAndSum(t *testing.T) {
	t.Parallel()

	inner := Relation{
		Pose:            Pose{Orientation: IdentityPose.Orientation, Position: r3.Vec{X: 1}},
		LinearVelocity:  r3.Vec{X: 1},
		AngularVelocity: r3.Vec{},
		Flags:           FlagsAll,
	}
	outer := Relation{
		Pose:            NewPose(math.Pi/2, zAxis, r3.Vec{}),
		LinearVelocity:  r3.Vec{Z: 2},
		AngularVelocity: r3.Vec{Z: 1},
		Flags:           FlagsAll,
	}

	got := Resolve(inner, outer)

	// inner velocity (1,0,0) rotated 90° about Z -> (0,1,0); plus outer
	// (0,0,2); plus w x r = (0,0,1) x (0,1,0) = (-1,0,0).
	assertVec(t, r3.Vec{X: -1, Y: 1, Z: 2}, got.LinearVelocity)
	assertVec(t, r3.Vec{Z: 1}, got.AngularVelocity)
}

func TestRelation_InverseRoundTrip(t *testing.T) {
	t.Parallel()

	r := Relation{
		Pose:            NewPose(0.7, r3.Unit(r3.Vec{X: 1, Y: 1}), r3.Vec{X: 0.2, Y: -1, Z: 3}),
		LinearVelocity:  r3.Vec{X: 0.3, Y: 0.1},
		AngularVelocity: r3.Vec{Z: 0.5},
		Flags:           FlagsAll,
	}

	got := Resolve(r, r.Inverse())
	require.True(t, got.Pose.ApproxEqual(IdentityPose, 1e-9), "r then r⁻¹ must be identity, got %+v", got.Pose)
	assertVec(t, r3.Vec{}, got.LinearVelocity)
	assertVec(t, r3.Vec{}, got.AngularVelocity)
	assert.Equal(t, FlagsAll, got.Flags)
}

func TestChain_PushPoseSkipsIdentity(t *testing.T) {
	t.Parallel()

	var c Chain
	c.PushPose(IdentityPose)
	assert.Equal(t, 0, c.Len())

	c.PushPose(NewPose(0, zAxis, r3.Vec{X: 1}))
	c.PushInverse(FromPose(NewPose(0, zAxis, r3.Vec{X: 1})))
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Resolve().Pose.ApproxEqual(IdentityPose, tol))
}

func TestChain_PushPanicsPastLimit(t *testing.T) {
	t.Parallel()

	var c Chain
	for i := 0; i < MaxChainLength; i++ {
		c.Push(Identity())
	}
	assert.Panics(t, func() { c.Push(Identity()) })
}

func TestPose_IsNormalized(t *testing.T) {
	t.Parallel()

	assert.True(t, IdentityPose.IsNormalized())
	bad := IdentityPose
	bad.Orientation.Real = 2
	assert.False(t, bad.IsNormalized())
}

func TestFlags_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", FlagsNone.String())
	assert.Equal(t, "orientation_valid|position_valid", (OrientationValid | PositionValid).String())
}
