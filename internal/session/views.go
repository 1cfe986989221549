package session

import (
	"math"

	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/twocall"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// ViewLocateInfo is the argument to LocateViews.
type ViewLocateInfo struct {
	ViewConfiguration ViewConfigurationType
	// DisplayTime is external time.
	DisplayTime int64
	Space       *Space
}

// LocateViews writes each view's pose in info.Space using the two-call
// protocol. Each view resolves the chain eye-in-head, head-in-origin,
// origin-in-base.
func (s *Session) LocateViews(info ViewLocateInfo, capacity int, views []View) (ViewState, int, error) {
	if err := xrerr.First(
		s.CheckNotLost,
		xrerr.Capacity("view", capacity, len(views)),
		s.checkViewConfiguration(info.ViewConfiguration),
		xrerr.ValidTime(info.DisplayTime),
	); err != nil {
		return ViewState{}, 0, err
	}
	if info.Space == nil || info.Space.sess != s {
		return ViewState{}, 0, xrerr.New(xrerr.ValidationFailure, "(viewLocateInfo->space) does not belong to this session")
	}

	mono := s.inst.time.ExternalToMonotonic(info.DisplayTime)
	var (
		originInBase relation.Relation
		head         relation.Relation
		sampleErr    error
		sampled      bool
	)
	flags := relation.FlagsPose
	n, err := twocall.EnumerateFunc(capacity, views, len(s.sys.Views), func(i int) View {
		if !sampled {
			sampled = true
			head, sampleErr = s.headRelation(mono)
			if sampleErr == nil {
				var baseIn relation.Relation
				baseIn, sampleErr = info.Space.InOrigin(mono)
				originInBase = baseIn.Inverse()
			}
		}
		if sampleErr != nil {
			return View{}
		}
		var c relation.Chain
		c.PushPose(s.sys.Views[i].EyeOffset)
		c.Push(head)
		c.Push(originInBase)
		r := c.Resolve()
		flags &= r.Flags
		return View{Pose: r.Pose, Fov: s.sys.Views[i].Fov}
	})
	if err != nil {
		return ViewState{}, n, err
	}
	if sampleErr != nil {
		return ViewState{}, 0, sampleErr
	}
	return ViewState{Flags: flags}, n, nil
}

func (s *Session) checkViewConfiguration(v ViewConfigurationType) xrerr.Check {
	return func() error {
		if !v.Valid() || v != s.sys.ViewConfiguration {
			return xrerr.New(xrerr.ViewConfigurationTypeUnsupported,
				"(viewConfigurationType == %s) is not the system's %s", v, s.sys.ViewConfiguration)
		}
		return nil
	}
}

// VisibilityMask is a mesh on a view's image plane, in tangent space.
type VisibilityMask struct {
	Vertices []Vector2
	Indices  []uint32
}

// visibilityMask derives the mask from a view's field of view. Views are
// rectangular, so the hidden mesh is empty and the visible mesh is the
// whole image.
func visibilityMask(fov Fov, t VisibilityMaskType) VisibilityMask {
	l, r := math.Tan(fov.AngleLeft), math.Tan(fov.AngleRight)
	u, d := math.Tan(fov.AngleUp), math.Tan(fov.AngleDown)
	corners := []Vector2{{X: l, Y: d}, {X: r, Y: d}, {X: r, Y: u}, {X: l, Y: u}}
	switch t {
	case VisibilityMaskVisibleTriangleMesh:
		return VisibilityMask{Vertices: corners, Indices: []uint32{0, 1, 2, 0, 2, 3}}
	case VisibilityMaskLineLoop:
		return VisibilityMask{Vertices: corners, Indices: []uint32{0, 1, 2, 3}}
	default:
		return VisibilityMask{}
	}
}

// GetVisibilityMask returns a view's mask through two independent two-call
// enumerations, one for vertices and one for indices. Both capacities are
// checked before either buffer is written.
func (s *Session) GetVisibilityMask(
	viewConfig ViewConfigurationType,
	viewIndex int,
	maskType VisibilityMaskType,
	vertexCapacity int, vertices []Vector2,
	indexCapacity int, indices []uint32,
) (vertexCount, indexCount int, err error) {
	if err := xrerr.First(
		s.CheckNotLost,
		xrerr.Capacity("vertex", vertexCapacity, len(vertices)),
		xrerr.Capacity("index", indexCapacity, len(indices)),
		s.checkViewConfiguration(viewConfig),
	); err != nil {
		return 0, 0, err
	}
	if viewIndex < 0 || viewIndex >= len(s.sys.Views) {
		return 0, 0, xrerr.New(xrerr.ValidationFailure, "(viewIndex == %d) must be less than %d", viewIndex, len(s.sys.Views))
	}
	switch maskType {
	case VisibilityMaskHiddenTriangleMesh, VisibilityMaskVisibleTriangleMesh, VisibilityMaskLineLoop:
	default:
		return 0, 0, xrerr.New(xrerr.ValidationFailure, "(visibilityMaskType == %d) is not a valid mask type", maskType)
	}

	mask := visibilityMask(s.sys.Views[viewIndex].Fov, maskType)
	nv, ni := len(mask.Vertices), len(mask.Indices)
	if (vertexCapacity != 0 && vertexCapacity < nv) || (indexCapacity != 0 && indexCapacity < ni) {
		return nv, ni, xrerr.Insufficient(max(nv, ni),
			"mask needs %d vertices and %d indices, capacities are %d and %d", nv, ni, vertexCapacity, indexCapacity)
	}
	if _, err := twocall.Enumerate(vertexCapacity, vertices, mask.Vertices); err != nil {
		return nv, ni, err
	}
	if _, err := twocall.Enumerate(indexCapacity, indices, mask.Indices); err != nil {
		return nv, ni, err
	}
	return nv, ni, nil
}
