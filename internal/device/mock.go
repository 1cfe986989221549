package device

import (
	"fmt"
	"sync"
)

// MockDevice implements Device with scripted samples for testing. Samples
// are set per input; a nil error and no sample yields ErrNoSample.
type MockDevice struct {
	mu sync.Mutex

	name   string
	inputs []InputName
	caps   Capabilities

	samples  map[InputName]Sample
	skeleton map[InputName][]SkeletonJoint

	// SampleError is returned by every Sample call if set.
	SampleError error
	// SkeletonError is returned by BodySkeleton if set.
	SkeletonError error
	// OutputError is returned by SetForceFeedback and
	// SetBodyTrackingFidelity if set.
	OutputError error

	// SampleCalls records the times passed to Sample, per input.
	SampleCalls map[InputName][]int64
	// FidelityRequests records fidelity switches in call order.
	FidelityRequests []Fidelity
	// ForceFeedback records the last haptic values per input.
	ForceFeedback map[InputName][]ForceFeedbackValue
}

// NewMockDevice creates a MockDevice producing the given inputs.
func NewMockDevice(name string, caps Capabilities, inputs ...InputName) *MockDevice {
	return &MockDevice{
		name:          name,
		inputs:        inputs,
		caps:          caps,
		samples:       make(map[InputName]Sample),
		skeleton:      make(map[InputName][]SkeletonJoint),
		SampleCalls:   make(map[InputName][]int64),
		ForceFeedback: make(map[InputName][]ForceFeedbackValue),
	}
}

func (m *MockDevice) Name() string { return m.name }

func (m *MockDevice) Inputs() []InputName {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]InputName(nil), m.inputs...)
}

func (m *MockDevice) Capabilities() Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caps
}

// SetSample scripts the sample returned for s.Input.
func (m *MockDevice) SetSample(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[s.Input] = s
}

// SetSkeleton scripts the rest skeleton for input.
func (m *MockDevice) SetSkeleton(input InputName, joints []SkeletonJoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skeleton[input] = joints
}

func (m *MockDevice) Sample(input InputName, atNs int64) (Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SampleCalls[input] = append(m.SampleCalls[input], atNs)
	if m.SampleError != nil {
		return Sample{}, m.SampleError
	}
	s, ok := m.samples[input]
	if !ok {
		return Sample{}, fmt.Errorf("%s %s: %w", m.name, input, ErrNoSample)
	}
	return s, nil
}

func (m *MockDevice) BodySkeleton(input InputName) ([]SkeletonJoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SkeletonError != nil {
		return nil, m.SkeletonError
	}
	joints, ok := m.skeleton[input]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", m.name, input, ErrNoSample)
	}
	return joints, nil
}

func (m *MockDevice) SetBodyTrackingFidelity(input InputName, f Fidelity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OutputError != nil {
		return m.OutputError
	}
	m.FidelityRequests = append(m.FidelityRequests, f)
	return nil
}

func (m *MockDevice) SetForceFeedback(input InputName, values []ForceFeedbackValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OutputError != nil {
		return m.OutputError
	}
	m.ForceFeedback[input] = append([]ForceFeedbackValue(nil), values...)
	return nil
}

// Calls returns how many times input was sampled.
func (m *MockDevice) Calls(input InputName) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SampleCalls[input])
}

// CountingProvider wraps a RoleMap and counts lookups, so tests can assert
// that a code path never reached device binding.
type CountingProvider struct {
	mu      sync.Mutex
	Devices RoleMap
	lookups int
}

func (p *CountingProvider) DeviceForRole(role Role) Device {
	p.mu.Lock()
	p.lookups++
	p.mu.Unlock()
	return p.Devices[role]
}

// Lookups returns the number of DeviceForRole calls so far.
func (p *CountingProvider) Lookups() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookups
}
