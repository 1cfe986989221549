// Package relation owns the pose algebra of the runtime.
//
// Responsibilities: rigid poses (unit quaternion + translation), space
// relations (a pose with linear/angular velocity and a validity/tracked
// bitmask), and the relation chain resolver that composes an ordered list
// of relations into one answer.
// Key types: Pose, Flags, Relation, Chain.
//
// Dependency rule: this package holds no state, takes no locks and never
// imports session, tracker or device code. Everything here is a pure
// function of its inputs.
package relation
