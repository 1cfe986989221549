package session

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/relation"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultFramePeriod is used when a system lists no refresh rates.
const DefaultFramePeriod = time.Second / 60

// Compositor receives frame boundaries and layer submissions. It is called
// with the session's frame lock held and must not call back into the
// session.
type Compositor interface {
	BeginFrame(frameID int64) error
	EndFrame(frameID int64, sub FrameSubmission) error
}

// PerformanceController receives performance level hints.
type PerformanceController interface {
	SetPerformanceLevel(domain PerfDomain, level PerfLevel) error
}

// System is the hardware a session runs on: its views, display modes,
// tracking capabilities, and the devices filling each role. A System is
// immutable once an Instance is built from it.
type System struct {
	Name              string
	ViewConfiguration ViewConfigurationType
	Views             []ViewInfo
	BlendModes        []BlendMode
	ReferenceSpaces   []ReferenceSpaceType

	// LocalOrigin and StageOrigin place the LOCAL and STAGE frames in the
	// tracking origin.
	LocalOrigin relation.Pose
	StageOrigin relation.Pose

	Capabilities map[Capability]bool
	Devices      device.Provider

	// Headless systems have no display: no refresh rates, no compositor.
	Headless     bool
	RefreshRates []float32
	// FramePeriod overrides the period derived from the first refresh rate.
	FramePeriod time.Duration

	Compositor  Compositor
	Performance PerformanceController
}

// DefaultSystem returns a stereo system with no tracking capabilities and
// no devices.
func DefaultSystem() *System {
	fov := Fov{
		AngleLeft:  -45 * math.Pi / 180,
		AngleRight: 45 * math.Pi / 180,
		AngleUp:    45 * math.Pi / 180,
		AngleDown:  -45 * math.Pi / 180,
	}
	const halfIPD = 0.0315
	return &System{
		Name:              "xrstate",
		ViewConfiguration: ViewConfigurationPrimaryStereo,
		Views: []ViewInfo{
			{EyeOffset: relation.Pose{Orientation: relation.IdentityPose.Orientation, Position: r3.Vec{X: -halfIPD}}, Fov: fov},
			{EyeOffset: relation.Pose{Orientation: relation.IdentityPose.Orientation, Position: r3.Vec{X: halfIPD}}, Fov: fov},
		},
		BlendModes:      []BlendMode{BlendModeOpaque},
		ReferenceSpaces: []ReferenceSpaceType{ReferenceSpaceView, ReferenceSpaceLocal, ReferenceSpaceStage},
		LocalOrigin:     relation.IdentityPose,
		StageOrigin:     relation.IdentityPose,
		Capabilities:    map[Capability]bool{},
		Devices:         device.RoleMap{},
		RefreshRates:    []float32{90},
	}
}

// Supports reports whether the system advertises capability c.
func (s *System) Supports(c Capability) bool {
	return s.Capabilities[c]
}

// DeviceForRole returns the device filling role, or nil.
func (s *System) DeviceForRole(role device.Role) device.Device {
	if s.Devices == nil {
		return nil
	}
	return s.Devices.DeviceForRole(role)
}

// Period returns the display period for the current configuration.
func (s *System) Period() time.Duration {
	if s.FramePeriod > 0 {
		return s.FramePeriod
	}
	if !s.Headless && len(s.RefreshRates) > 0 {
		return periodFor(s.RefreshRates[0])
	}
	return DefaultFramePeriod
}

func periodFor(rate float32) time.Duration {
	if rate <= 0 {
		return DefaultFramePeriod
	}
	return time.Duration(float64(time.Second) / float64(rate))
}

func (s *System) supportsBlendMode(m BlendMode) bool {
	for _, b := range s.BlendModes {
		if b == m {
			return true
		}
	}
	return false
}

func (s *System) supportsReferenceSpace(t ReferenceSpaceType) bool {
	for _, r := range s.ReferenceSpaces {
		if r == t {
			return true
		}
	}
	return false
}

func (s *System) validate() error {
	if !s.ViewConfiguration.Valid() {
		return fmt.Errorf("system %q: unknown view configuration %d", s.Name, s.ViewConfiguration)
	}
	want := 1
	if s.ViewConfiguration == ViewConfigurationPrimaryStereo {
		want = 2
	}
	if len(s.Views) != want {
		return fmt.Errorf("system %q: %s needs %d views, have %d", s.Name, s.ViewConfiguration, want, len(s.Views))
	}
	if len(s.BlendModes) == 0 {
		return fmt.Errorf("system %q: no blend modes", s.Name)
	}
	for _, r := range s.RefreshRates {
		if r <= 0 {
			return fmt.Errorf("system %q: invalid refresh rate %v", s.Name, r)
		}
	}
	for i, v := range s.Views {
		if !v.EyeOffset.IsNormalized() {
			return fmt.Errorf("system %q: view %d eye offset is not normalized", s.Name, i)
		}
	}
	return nil
}
