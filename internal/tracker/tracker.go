// Package tracker implements capability trackers: per-session objects that
// bind a hand, body, or face tracking device at creation and answer
// queries by sampling it.
//
// Trackers are tagged variants sharing one lifecycle. They are registered
// in the instance handle table under their session, so destroying the
// session destroys them and their handles stop resolving.
package tracker

import (
	"fmt"

	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// Kind is a tracker variant.
type Kind int

const (
	KindHand Kind = iota + 1
	KindBody
	KindFacial
)

func (k Kind) String() string {
	switch k {
	case KindHand:
		return "hand"
	case KindBody:
		return "body"
	case KindFacial:
		return "facial"
	default:
		return fmt.Sprintf("tracker(%d)", int(k))
	}
}

// HandleKind is the handle table kind for trackers of k.
func (k Kind) HandleKind() handle.Kind {
	switch k {
	case KindHand:
		return handle.KindHandTracker
	case KindBody:
		return handle.KindBodyTracker
	case KindFacial:
		return handle.KindFacialTracker
	default:
		return ""
	}
}

// Config selects and configures a tracker variant.
type Config interface {
	trackerKind() Kind
}

// Tracker is the lifecycle shared by all variants.
type Tracker interface {
	handle.Object
	ID() handle.ID
	Kind() Kind
	Session() *session.Session
	// Device returns the bound device, nil when none could be bound.
	Device() device.Device
}

type base struct {
	id    handle.ID
	kind  Kind
	sess  *session.Session
	dev   device.Device
	input device.InputName
}

func (b *base) ID() handle.ID             { return b.id }
func (b *base) Kind() Kind                { return b.kind }
func (b *base) Session() *session.Session { return b.sess }
func (b *base) Device() device.Device     { return b.dev }
func (b *base) Input() device.InputName   { return b.input }
func (b *base) Destroy() error            { return nil }

// Create builds a tracker of the variant cfg selects and registers it
// under sess. Binding problems are warnings on call, not errors: the
// tracker is created without a device and its queries fail later.
func Create(call monitoring.Call, sess *session.Session, cfg Config) (Tracker, error) {
	if err := sess.CheckNotLost(); err != nil {
		return nil, err
	}
	var (
		t   Tracker
		err error
	)
	switch c := cfg.(type) {
	case HandConfig:
		t, err = newHand(call, sess, c)
	case BodyConfig:
		t, err = newBody(call, sess, c)
	case FacialConfig:
		t, err = newFacial(call, sess, c)
	case nil:
		return nil, xrerr.New(xrerr.ArgumentInvalid, "(createInfo == NULL)")
	default:
		return nil, xrerr.New(xrerr.ValidationFailure, "unknown tracker config %T", cfg)
	}
	if err != nil {
		return nil, err
	}
	table := sess.Instance().Handles()
	if err := table.RegisterAs(t.ID(), t.Kind().HandleKind(), sess.ID(), t); err != nil {
		return nil, err
	}
	return t, nil
}

// Destroy releases t. A second destroy fails handle validation.
func Destroy(t Tracker) error {
	return t.Session().Instance().Handles().Destroy(t.ID())
}

// Lookup resolves a tracker handle of any kind.
func Lookup(table *handle.Table, id handle.ID) (Tracker, error) {
	obj, err := table.Lookup(id, id.Kind())
	if err != nil {
		return nil, err
	}
	t, ok := obj.(Tracker)
	if !ok {
		return nil, xrerr.New(xrerr.HandleInvalid, "(%s) is not a tracker", id)
	}
	return t, nil
}

// LookupHand resolves a hand tracker handle.
func LookupHand(table *handle.Table, id handle.ID) (*HandTracker, error) {
	return handle.Get[*HandTracker](table, id, handle.KindHandTracker)
}

// LookupBody resolves a body tracker handle.
func LookupBody(table *handle.Table, id handle.ID) (*BodyTracker, error) {
	return handle.Get[*BodyTracker](table, id, handle.KindBodyTracker)
}

// LookupFacial resolves a facial tracker handle.
func LookupFacial(table *handle.Table, id handle.ID) (*FacialTracker, error) {
	return handle.Get[*FacialTracker](table, id, handle.KindFacialTracker)
}

// bind finds the device for role and keeps it only if it provides input.
func bind(call monitoring.Call, sess *session.Session, role device.Role, input device.InputName, capable func(device.Capabilities) bool) device.Device {
	dev := sess.System().DeviceForRole(role)
	if dev == nil {
		call.Warnf("No device found for role %s", role)
		return nil
	}
	if !capable(dev.Capabilities()) || !device.HasInput(dev, input) {
		call.Warnf("Device '%s' does not provide %s", dev.Name(), input)
		return nil
	}
	return dev
}

// ready runs the checks every query shares: session alive, device bound.
func (b *base) ready() error {
	if err := b.sess.CheckNotLost(); err != nil {
		return err
	}
	if b.dev == nil {
		return xrerr.New(xrerr.FunctionUnsupported, "%s tracker has no device", b.kind)
	}
	return nil
}

// sample reads the bound input, mapping device failures to RuntimeFailure.
func (b *base) sample(atNs int64) (device.Sample, error) {
	s, err := b.dev.Sample(b.input, atNs)
	if err != nil {
		return device.Sample{}, xrerr.New(xrerr.RuntimeFailure, "device '%s' failed to sample %s: %v", b.dev.Name(), b.input, err)
	}
	return s, nil
}

// originIn returns the tracking origin expressed in base at monotonic atNs.
func (b *base) originIn(space *session.Space, atNs int64) (relation.Relation, error) {
	if space == nil || space.Session() != b.sess {
		return relation.Relation{}, xrerr.New(xrerr.ValidationFailure, "base space does not belong to the tracker's session")
	}
	in, err := space.InOrigin(atNs)
	if err != nil {
		return relation.Relation{}, err
	}
	return in.Inverse(), nil
}

const (
	locationMask = relation.OrientationValid | relation.PositionValid | relation.OrientationTracked | relation.PositionTracked
	velocityMask = relation.LinearVelocityValid | relation.AngularVelocityValid
)
