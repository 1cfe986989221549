// Package serialdev is a tracking device fed by JSON sample lines from a
// serial bridge. It keeps the latest sample per input and sends haptic and
// fidelity commands back down the same link.
package serialdev

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/monitoring"
)

// ErrNoCommandLink is returned by output calls when the device was built
// without a Commander.
var ErrNoCommandLink = errors.New("serialdev: no command link")

// Commander writes one command line to the device.
type Commander interface {
	SendCommand(command string) error
}

// Options configures a Device.
type Options struct {
	Name         string
	Inputs       []device.InputName
	Capabilities device.Capabilities
	// Now returns the runtime's monotonic time in nanoseconds.
	Now func() int64
	// Commands is optional; without it outputs fail.
	Commands Commander
}

// Device implements device.Device over a line feed.
type Device struct {
	name     string
	inputs   []device.InputName
	caps     device.Capabilities
	now      func() int64
	commands Commander

	mu       sync.RWMutex
	latest   map[device.InputName]device.Sample
	skeleton map[device.InputName][]device.SkeletonJoint
	lines    uint64
	rejected uint64
}

// New creates a Device. Lines for inputs not in opts.Inputs are rejected.
func New(opts Options) *Device {
	name := opts.Name
	if name == "" {
		name = "serial"
	}
	return &Device{
		name:     name,
		inputs:   append([]device.InputName(nil), opts.Inputs...),
		caps:     opts.Capabilities,
		now:      opts.Now,
		commands: opts.Commands,
		latest:   make(map[device.InputName]device.Sample),
		skeleton: make(map[device.InputName][]device.SkeletonJoint),
	}
}

func (d *Device) Name() string                      { return d.name }
func (d *Device) Capabilities() device.Capabilities { return d.caps }

func (d *Device) Inputs() []device.InputName {
	return append([]device.InputName(nil), d.inputs...)
}

func (d *Device) declared(input device.InputName) bool {
	for _, in := range d.inputs {
		if in == input {
			return true
		}
	}
	return false
}

// HandleLine parses one feed line and stores its sample or skeleton.
func (d *Device) HandleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	d.mu.Lock()
	d.lines++
	d.mu.Unlock()

	var w wireLine
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return d.reject(fmt.Errorf("parse line: %w", err))
	}
	input := device.InputName(w.Input)
	if !d.declared(input) {
		return d.reject(fmt.Errorf("input %q is not provided by %s", w.Input, d.name))
	}

	if w.Skeleton != nil {
		joints, err := decodeSkeleton(w)
		if err != nil {
			return d.reject(err)
		}
		d.mu.Lock()
		d.skeleton[input] = joints
		d.mu.Unlock()
		return nil
	}

	var ts int64
	if d.now != nil {
		ts = d.now() - w.AgeNs
	}
	s, err := decodeSample(w, ts)
	if err != nil {
		return d.reject(err)
	}
	d.mu.Lock()
	d.latest[input] = s
	d.mu.Unlock()
	return nil
}

func (d *Device) reject(err error) error {
	d.mu.Lock()
	d.rejected++
	d.mu.Unlock()
	return err
}

// Stats returns the number of lines seen and how many were rejected.
func (d *Device) Stats() (lines, rejected uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lines, d.rejected
}

// Run consumes lines until the channel closes or ctx is done. Bad lines
// are logged and skipped.
func (d *Device) Run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := d.HandleLine(line); err != nil {
				monitoring.Logf("[serialdev] %s: dropping line: %v", d.name, err)
			}
		}
	}
}

// Sample returns the latest sample for input. Samples are not
// extrapolated to atNs.
func (d *Device) Sample(input device.InputName, atNs int64) (device.Sample, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.latest[input]
	if !ok {
		return device.Sample{}, fmt.Errorf("%s %s: %w", d.name, input, device.ErrNoSample)
	}
	return s, nil
}

// BodySkeleton returns the last skeleton received for input.
func (d *Device) BodySkeleton(input device.InputName) ([]device.SkeletonJoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	joints, ok := d.skeleton[input]
	if !ok {
		return nil, fmt.Errorf("%s %s skeleton: %w", d.name, input, device.ErrNoSample)
	}
	return append([]device.SkeletonJoint(nil), joints...), nil
}

// SetForceFeedback sends "FF <input> <location>=<value> ..." with
// locations in ascending order.
func (d *Device) SetForceFeedback(input device.InputName, values []device.ForceFeedbackValue) error {
	if d.commands == nil {
		return ErrNoCommandLink
	}
	sorted := append([]device.ForceFeedbackValue(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Location < sorted[j].Location })

	var b strings.Builder
	fmt.Fprintf(&b, "FF %s", input)
	for _, v := range sorted {
		fmt.Fprintf(&b, " %d=%.3f", v.Location, v.Value)
	}
	return d.commands.SendCommand(b.String())
}

// SetBodyTrackingFidelity sends "FIDELITY <input> <level>".
func (d *Device) SetBodyTrackingFidelity(input device.InputName, f device.Fidelity) error {
	if d.commands == nil {
		return ErrNoCommandLink
	}
	return d.commands.SendCommand(fmt.Sprintf("FIDELITY %s %d", input, f))
}
