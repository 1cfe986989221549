package session

import (
	"fmt"
	"sort"

	"github.com/banshee-data/xrstate/internal/relation"
)

// State is a session lifecycle state.
type State int

const (
	StateUnknown State = iota
	StateIdle
	StateReady
	StateSynchronized
	StateVisible
	StateFocused
	StateStopping
	StateLossPending
	StateExiting
)

var stateNames = [...]string{
	StateUnknown:      "UNKNOWN",
	StateIdle:         "IDLE",
	StateReady:        "READY",
	StateSynchronized: "SYNCHRONIZED",
	StateVisible:      "VISIBLE",
	StateFocused:      "FOCUSED",
	StateStopping:     "STOPPING",
	StateLossPending:  "LOSS_PENDING",
	StateExiting:      "EXITING",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// ViewConfigurationType is the display arrangement a session renders for.
type ViewConfigurationType int

const (
	ViewConfigurationPrimaryMono   ViewConfigurationType = 1
	ViewConfigurationPrimaryStereo ViewConfigurationType = 2
)

func (v ViewConfigurationType) String() string {
	switch v {
	case ViewConfigurationPrimaryMono:
		return "PRIMARY_MONO"
	case ViewConfigurationPrimaryStereo:
		return "PRIMARY_STEREO"
	default:
		return fmt.Sprintf("VIEW_CONFIGURATION(%d)", int(v))
	}
}

// Valid reports whether v is a known view configuration.
func (v ViewConfigurationType) Valid() bool {
	return v == ViewConfigurationPrimaryMono || v == ViewConfigurationPrimaryStereo
}

// BlendMode is how rendered frames combine with the real world.
type BlendMode int

const (
	BlendModeOpaque     BlendMode = 1
	BlendModeAdditive   BlendMode = 2
	BlendModeAlphaBlend BlendMode = 3
)

// ReferenceSpaceType names a well-known tracking frame.
type ReferenceSpaceType int

const (
	ReferenceSpaceView  ReferenceSpaceType = 1
	ReferenceSpaceLocal ReferenceSpaceType = 2
	ReferenceSpaceStage ReferenceSpaceType = 3
)

func (t ReferenceSpaceType) String() string {
	switch t {
	case ReferenceSpaceView:
		return "VIEW"
	case ReferenceSpaceLocal:
		return "LOCAL"
	case ReferenceSpaceStage:
		return "STAGE"
	default:
		return fmt.Sprintf("REFERENCE_SPACE(%d)", int(t))
	}
}

// Extension is an optional API feature an application can enable.
type Extension string

const (
	ExtHandTracking         Extension = "XR_EXT_hand_tracking"
	ExtForceFeedbackCurl    Extension = "XR_MNDX_force_feedback_curl"
	ExtBodyTrackingFB       Extension = "XR_FB_body_tracking"
	ExtBodyTrackingFullBody Extension = "XR_META_body_tracking_full_body"
	ExtBodyTrackingFidelity Extension = "XR_META_body_tracking_fidelity"
	ExtFacialTrackingHTC    Extension = "XR_HTC_facial_tracking"
	ExtVisibilityMask       Extension = "XR_KHR_visibility_mask"
	ExtPerformanceSettings  Extension = "XR_EXT_performance_settings"
	ExtDisplayRefreshRate   Extension = "XR_FB_display_refresh_rate"
)

// KnownExtensions lists every extension the runtime implements.
var KnownExtensions = []Extension{
	ExtHandTracking,
	ExtForceFeedbackCurl,
	ExtBodyTrackingFB,
	ExtBodyTrackingFullBody,
	ExtBodyTrackingFidelity,
	ExtFacialTrackingHTC,
	ExtVisibilityMask,
	ExtPerformanceSettings,
	ExtDisplayRefreshRate,
}

// ExtensionSet is the set of extensions enabled on an instance.
type ExtensionSet map[Extension]bool

// NewExtensionSet builds a set, rejecting names the runtime does not know.
func NewExtensionSet(names ...string) (ExtensionSet, error) {
	set := make(ExtensionSet, len(names))
	for _, n := range names {
		ext := Extension(n)
		if !isKnown(ext) {
			return nil, fmt.Errorf("unsupported extension %q", n)
		}
		set[ext] = true
	}
	return set, nil
}

// Enabled reports whether ext was enabled.
func (s ExtensionSet) Enabled(ext Extension) bool {
	return s[ext]
}

// Names returns the enabled extension names, sorted.
func (s ExtensionSet) Names() []string {
	out := make([]string, 0, len(s))
	for ext, on := range s {
		if on {
			out = append(out, string(ext))
		}
	}
	sort.Strings(out)
	return out
}

func isKnown(ext Extension) bool {
	for _, k := range KnownExtensions {
		if k == ext {
			return true
		}
	}
	return false
}

// Capability is a system-level tracking feature.
type Capability string

const (
	CapHandTracking         Capability = "hand_tracking"
	CapBodyTracking         Capability = "body_tracking"
	CapFullBodyTracking     Capability = "full_body_tracking"
	CapBodyTrackingFidelity Capability = "body_tracking_fidelity"
	CapEyeFacialTracking    Capability = "eye_facial_tracking"
	CapLipFacialTracking    Capability = "lip_facial_tracking"
	CapForceFeedback        Capability = "force_feedback"
)

// ParseCapabilities builds a capability map from names, rejecting unknown
// ones.
func ParseCapabilities(names ...string) (map[Capability]bool, error) {
	out := make(map[Capability]bool, len(names))
	for _, n := range names {
		switch c := Capability(n); c {
		case CapHandTracking, CapBodyTracking, CapFullBodyTracking, CapBodyTrackingFidelity,
			CapEyeFacialTracking, CapLipFacialTracking, CapForceFeedback:
			out[c] = true
		default:
			return nil, fmt.Errorf("unknown capability %q", n)
		}
	}
	return out, nil
}

// Fov is a view's field of view, angles in radians.
type Fov struct {
	AngleLeft  float64
	AngleRight float64
	AngleUp    float64
	AngleDown  float64
}

// ViewInfo describes one view of the system's view configuration.
type ViewInfo struct {
	// EyeOffset places the eye in the head frame.
	EyeOffset relation.Pose
	Fov       Fov
}

// View is one located view.
type View struct {
	Pose relation.Pose
	Fov  Fov
}

// ViewState carries the validity of a LocateViews result.
type ViewState struct {
	Flags relation.Flags
}

// Vector2 is a 2D point on a view's image plane.
type Vector2 struct {
	X, Y float64
}

// VisibilityMaskType selects the mask mesh.
type VisibilityMaskType int

const (
	VisibilityMaskHiddenTriangleMesh  VisibilityMaskType = 1
	VisibilityMaskVisibleTriangleMesh VisibilityMaskType = 2
	VisibilityMaskLineLoop            VisibilityMaskType = 3
)

// PerfDomain is a processing unit the application can hint about.
type PerfDomain int

const (
	PerfDomainCPU PerfDomain = 1
	PerfDomainGPU PerfDomain = 2
)

// PerfLevel is a performance hint.
type PerfLevel int

const (
	PerfLevelPowerSavings  PerfLevel = 0
	PerfLevelSustainedLow  PerfLevel = 25
	PerfLevelSustainedHigh PerfLevel = 50
	PerfLevelBoost         PerfLevel = 75
)

func (d PerfDomain) valid() bool { return d == PerfDomainCPU || d == PerfDomainGPU }

func (l PerfLevel) valid() bool {
	switch l {
	case PerfLevelPowerSavings, PerfLevelSustainedLow, PerfLevelSustainedHigh, PerfLevelBoost:
		return true
	}
	return false
}
