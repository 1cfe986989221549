package main

import (
	"fmt"

	"github.com/banshee-data/xrstate/internal/config"
	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/device/serialdev"
	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/session"
)

// buildSystem describes the hardware from cfg. When feed is non-nil it
// fills every role the system's capabilities call for.
func buildSystem(cfg *config.RuntimeConfig, feed *serialdev.Device) (*session.System, error) {
	sys := session.DefaultSystem()
	sys.Name = cfg.GetSystemName()
	if cfg.GetViewConfiguration() == "mono" {
		sys.ViewConfiguration = session.ViewConfigurationPrimaryMono
		sys.Views = sys.Views[:1]
		sys.Views[0].EyeOffset = relation.IdentityPose
	}
	sys.Headless = cfg.GetHeadless()
	sys.RefreshRates = cfg.GetRefreshRates()
	sys.FramePeriod = cfg.GetFramePeriod()

	caps, err := session.ParseCapabilities(cfg.GetCapabilities()...)
	if err != nil {
		return nil, fmt.Errorf("capabilities: %w", err)
	}
	sys.Capabilities = caps

	if feed != nil {
		roles := device.RoleMap{}
		for _, input := range feed.Inputs() {
			roles[roleFor(input)] = feed
		}
		sys.Devices = roles
	}
	return sys, nil
}

// feedInputs lists the inputs a serial feed carries for the configured
// capabilities. Head pose is always carried.
func feedInputs(caps []string) ([]device.InputName, device.Capabilities) {
	inputs := []device.InputName{device.InputHeadPose}
	var dc device.Capabilities
	for _, c := range caps {
		switch session.Capability(c) {
		case session.CapHandTracking:
			inputs = append(inputs, device.InputHandTrackingLeft, device.InputHandTrackingRight)
			dc.HandTracking = true
		case session.CapBodyTracking:
			inputs = append(inputs, device.InputBodyTrackingFB)
			dc.BodyTracking = true
		case session.CapFullBodyTracking:
			inputs = append(inputs, device.InputFullBodyTrackingMeta)
		case session.CapBodyTrackingFidelity:
			dc.BodyTrackingFidelity = true
		case session.CapEyeFacialTracking:
			inputs = append(inputs, device.InputEyeFacialTrackingHTC)
			dc.FaceTracking = true
		case session.CapLipFacialTracking:
			inputs = append(inputs, device.InputLipFacialTrackingHTC)
			dc.FaceTracking = true
		case session.CapForceFeedback:
			dc.ForceFeedback = true
		}
	}
	return inputs, dc
}

func roleFor(input device.InputName) device.Role {
	switch input {
	case device.InputHandTrackingLeft:
		return device.RoleHandTrackingLeft
	case device.InputHandTrackingRight:
		return device.RoleHandTrackingRight
	case device.InputBodyTrackingFB, device.InputFullBodyTrackingMeta:
		return device.RoleBody
	case device.InputEyeFacialTrackingHTC, device.InputLipFacialTrackingHTC:
		return device.RoleFace
	default:
		return device.RoleHead
	}
}
