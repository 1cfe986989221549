package session

import (
	"sync"

	"github.com/banshee-data/xrstate/internal/device"
	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/relation"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// Session is one application's rendering and tracking context.
//
// The lifecycle fields are guarded by mu. Device sampling never happens
// with mu held.
type Session struct {
	id   handle.ID
	inst *Instance
	sys  *System
	app  string
	done chan struct{}

	mu            sync.Mutex
	state         State
	running       bool
	run           uint64 // bumped by Begin and End
	lost          bool
	lossReason    string
	exitRequested bool
	destroyed     bool
	viewConfig    ViewConfigurationType
	frame         frameState
	pacer         pacer
	timings       timingRing
	submitted     int64
	refreshRate   float32
	perf          map[PerfDomain]PerfLevel
}

func newSession(in *Instance, info CreateInfo) *Session {
	s := &Session{
		id:    handle.NewID(handle.KindSession),
		inst:  in,
		sys:   in.sys,
		app:   info.ApplicationName,
		done:  make(chan struct{}),
		state: StateUnknown,
		pacer: pacer{period: int64(in.sys.Period())},
		perf:  make(map[PerfDomain]PerfLevel),
	}
	if !in.sys.Headless && len(in.sys.RefreshRates) > 0 {
		s.refreshRate = in.sys.RefreshRates[0]
	}
	return s
}

// ID returns the session handle.
func (s *Session) ID() handle.ID { return s.id }

// Instance returns the owning instance.
func (s *Session) Instance() *Instance { return s.inst }

// System returns the system the session runs on.
func (s *Session) System() *System { return s.sys }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether Begin succeeded and End has not been called.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Lost reports whether the session has been lost.
func (s *Session) Lost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// CheckNotLost fails with SessionLost once the session is lost. Every
// operation except destroy runs it before anything else.
func (s *Session) CheckNotLost() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkLiveLocked()
}

func (s *Session) checkLiveLocked() error {
	if s.destroyed {
		return xrerr.New(xrerr.HandleInvalid, "session %s is destroyed", s.id)
	}
	if s.lost {
		return xrerr.New(xrerr.SessionLost, "session is lost: %s", s.lossReason)
	}
	return nil
}

func (s *Session) checkRunningLocked() error {
	if err := s.checkLiveLocked(); err != nil {
		return err
	}
	if !s.running {
		return xrerr.New(xrerr.SessionNotRunning, "session is not running")
	}
	return nil
}

// BeginInfo is the argument to Begin.
type BeginInfo struct {
	ViewConfiguration ViewConfigurationType
}

// Begin starts the session's frame loop and moves it to SYNCHRONIZED.
func (s *Session) Begin(info BeginInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLiveLocked(); err != nil {
		return err
	}
	if !info.ViewConfiguration.Valid() {
		return xrerr.New(xrerr.ViewConfigurationTypeUnsupported,
			"(beginInfo->primaryViewConfigurationType == %d) is not a known view configuration", info.ViewConfiguration)
	}
	if s.running {
		return xrerr.New(xrerr.SessionRunning, "session is already running")
	}
	if info.ViewConfiguration != s.sys.ViewConfiguration {
		return xrerr.New(xrerr.ViewConfigurationTypeUnsupported,
			"(beginInfo->primaryViewConfigurationType == %s) does not match the system's %s",
			info.ViewConfiguration, s.sys.ViewConfiguration)
	}
	if s.state != StateIdle && s.state != StateReady {
		return xrerr.New(xrerr.ValidationFailure, "session cannot begin from %s", s.state)
	}

	s.running = true
	s.run++
	s.exitRequested = false
	s.viewConfig = info.ViewConfiguration
	// A WaitFrame parked in the previous run still holds the wait slot.
	s.frame = frameState{waiting: s.frame.waiting}
	s.pacer.reset()
	s.transitionLocked(StateSynchronized)
	return nil
}

// End stops the frame loop. The session returns to IDLE, then to READY or,
// if exit was requested, to EXITING.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRunningLocked(); err != nil {
		return err
	}

	s.running = false
	s.run++
	s.frame = frameState{waiting: s.frame.waiting}
	s.pacer.reset()
	s.transitionLocked(StateStopping)
	s.transitionLocked(StateIdle)
	if s.exitRequested {
		s.transitionLocked(StateExiting)
	} else {
		s.transitionLocked(StateReady)
	}
	return nil
}

// RequestExit arms termination. The next WaitFrame reports should-stop;
// nothing else changes until the application calls End.
func (s *Session) RequestExit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRunningLocked(); err != nil {
		return err
	}
	s.exitRequested = true
	return nil
}

// ExitRequested reports whether RequestExit has been called since Begin.
func (s *Session) ExitRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitRequested
}

// MarkLost moves the session to LOSS_PENDING. Loss is permanent: every
// later operation except destroy fails with SessionLost.
func (s *Session) MarkLost(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost || s.destroyed {
		return
	}
	s.lost = true
	s.lossReason = reason
	monitoring.Logf("[session] %s lost: %s", s.id, reason)
	s.transitionLockedWithReason(StateLossPending, reason)
}

// Destroy implements handle.Object. Trackers and spaces are already gone.
func (s *Session) Destroy() error {
	s.inst.unlink(s)
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	s.running = false
	s.frame = frameState{waiting: s.frame.waiting}
	close(s.done)
	s.mu.Unlock()
	s.inst.events.removeSession(s.id)
	return nil
}

// Trackers returns the session's live tracker handles in creation order.
func (s *Session) Trackers() []handle.ID {
	return s.inst.table.Children(s.id, handle.KindHandTracker, handle.KindBodyTracker, handle.KindFacialTracker)
}

// Spaces returns the session's live space handles in creation order.
func (s *Session) Spaces() []handle.ID {
	return s.inst.table.Children(s.id, handle.KindSpace)
}

func (s *Session) transitionLocked(to State) {
	s.transitionLockedWithReason(to, "")
}

func (s *Session) transitionLockedWithReason(to State, reason string) {
	if s.state == to {
		return
	}
	s.state = to
	s.inst.emit(Event{
		Type:    EventSessionStateChanged,
		Session: s.id,
		Time:    s.inst.time.Now(),
		State:   to,
		Reason:  reason,
	})
}

// headRelation samples the head device at monotonic time atNs. A system
// with no head device reports an unlocated head.
func (s *Session) headRelation(atNs int64) (relation.Relation, error) {
	dev := s.sys.DeviceForRole(device.RoleHead)
	if dev == nil {
		return relation.Invalid(), nil
	}
	sample, err := dev.Sample(device.InputHeadPose, atNs)
	if err != nil {
		return relation.Relation{}, xrerr.New(xrerr.RuntimeFailure, "head device %s: %v", dev.Name(), err)
	}
	r := sample.Pose
	if !sample.Active {
		r.Flags = relation.FlagsNone
	}
	return r, nil
}

// Info is a point-in-time summary of a session.
type Info struct {
	ID                handle.ID             `json:"id"`
	Application       string                `json:"application,omitempty"`
	State             string                `json:"state"`
	Running           bool                  `json:"running"`
	Lost              bool                  `json:"lost"`
	ExitRequested     bool                  `json:"exit_requested"`
	ViewConfiguration ViewConfigurationType `json:"view_configuration,omitempty"`
	RefreshRate       float32               `json:"refresh_rate,omitempty"`
	FramesSubmitted   int64                 `json:"frames_submitted"`
	Trackers          int                   `json:"trackers"`
	Spaces            int                   `json:"spaces"`
}

// Snapshot returns a summary of the session.
func (s *Session) Snapshot() Info {
	trackers := len(s.Trackers())
	spaces := len(s.Spaces())
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:                s.id,
		Application:       s.app,
		State:             s.state.String(),
		Running:           s.running,
		Lost:              s.lost,
		ExitRequested:     s.exitRequested,
		ViewConfiguration: s.viewConfig,
		RefreshRate:       s.refreshRate,
		FramesSubmitted:   s.submitted,
		Trackers:          trackers,
		Spaces:            spaces,
	}
}
