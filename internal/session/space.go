package session

import (
	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// Space is a reference frame owned by a session: a well-known reference
// space plus an application-supplied offset.
type Space struct {
	id     handle.ID
	sess   *Session
	typ    ReferenceSpaceType
	offset relation.Pose
}

// ReferenceSpaceCreateInfo is the argument to CreateReferenceSpace.
type ReferenceSpaceCreateInfo struct {
	Type                 ReferenceSpaceType
	PoseInReferenceSpace relation.Pose
}

// CreateReferenceSpace creates a space offset from a reference space.
func (s *Session) CreateReferenceSpace(info ReferenceSpaceCreateInfo) (*Space, error) {
	if err := s.CheckNotLost(); err != nil {
		return nil, err
	}
	switch info.Type {
	case ReferenceSpaceView, ReferenceSpaceLocal, ReferenceSpaceStage:
	default:
		return nil, xrerr.New(xrerr.ValidationFailure, "(createInfo->referenceSpaceType == %d) is not a valid type", info.Type)
	}
	if !s.sys.supportsReferenceSpace(info.Type) {
		return nil, xrerr.New(xrerr.ReferenceSpaceUnsupported, "(createInfo->referenceSpaceType == %s) is not supported", info.Type)
	}
	if !info.PoseInReferenceSpace.IsNormalized() {
		return nil, xrerr.New(xrerr.PoseInvalid, "(createInfo->poseInReferenceSpace.orientation) is not a unit quaternion")
	}

	sp := &Space{
		id:     handle.NewID(handle.KindSpace),
		sess:   s,
		typ:    info.Type,
		offset: info.PoseInReferenceSpace,
	}
	if err := s.inst.table.RegisterAs(sp.id, handle.KindSpace, s.id, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// ID returns the space handle.
func (sp *Space) ID() handle.ID { return sp.id }

// Session returns the owning session.
func (sp *Space) Session() *Session { return sp.sess }

// Type returns the reference space type.
func (sp *Space) Type() ReferenceSpaceType { return sp.typ }

// Destroy implements handle.Object.
func (sp *Space) Destroy() error { return nil }

// InOrigin returns the space's relation in the tracking origin at
// monotonic time atNs. VIEW spaces sample the head device.
func (sp *Space) InOrigin(atNs int64) (relation.Relation, error) {
	sys := sp.sess.sys
	switch sp.typ {
	case ReferenceSpaceLocal:
		return relation.FromPose(sys.LocalOrigin.Compose(sp.offset)), nil
	case ReferenceSpaceStage:
		return relation.FromPose(sys.StageOrigin.Compose(sp.offset)), nil
	case ReferenceSpaceView:
		head, err := sp.sess.headRelation(atNs)
		if err != nil {
			return relation.Relation{}, err
		}
		var c relation.Chain
		c.PushPose(sp.offset)
		c.Push(head)
		return c.Resolve(), nil
	default:
		return relation.Invalid(), nil
	}
}

// Space resolves a space handle and checks it belongs to s.
func (s *Session) Space(id handle.ID) (*Space, error) {
	sp, err := s.inst.Space(id)
	if err != nil {
		return nil, err
	}
	if sp.sess != s {
		return nil, xrerr.New(xrerr.ValidationFailure, "space %s belongs to another session", id)
	}
	return sp, nil
}

// LocateSpace returns space's relation in base at external time t.
func (s *Session) LocateSpace(space, base *Space, t int64) (relation.Relation, error) {
	if err := xrerr.First(s.CheckNotLost, xrerr.ValidTime(t)); err != nil {
		return relation.Relation{}, err
	}
	if space.sess != s || base.sess != s {
		return relation.Relation{}, xrerr.New(xrerr.ValidationFailure, "spaces must belong to the same session")
	}
	mono := s.inst.time.ExternalToMonotonic(t)
	spaceIn, err := space.InOrigin(mono)
	if err != nil {
		return relation.Relation{}, err
	}
	baseIn, err := base.InOrigin(mono)
	if err != nil {
		return relation.Relation{}, err
	}
	return relation.Resolve(spaceIn, baseIn.Inverse()), nil
}
