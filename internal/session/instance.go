// Package session holds the runtime's lifecycle state: the Instance root,
// the System it drives, Sessions with their frame loop, and reference
// Spaces.
//
// Instances are constructed explicitly and passed down; nothing here is a
// package-level singleton. Every object is registered in the instance's
// handle table, which owns destruction.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/timeutil"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// Options configure a new Instance.
type Options struct {
	// Clock drives pacing and time conversion; nil uses the wall clock.
	Clock timeutil.Clock
	// TimeOffset is added to monotonic time to form external time.
	TimeOffset time.Duration
	Extensions ExtensionSet
	System     *System
	// EventQueueCapacity bounds queued events; <= 0 uses the default.
	EventQueueCapacity int
}

// Instance is the root of all runtime state for one application.
type Instance struct {
	id     handle.ID
	table  *handle.Table
	time   *timeutil.TimeKeeper
	ext    ExtensionSet
	sys    *System
	events *eventQueue

	mu       sync.RWMutex
	sessions []*Session
	closed   bool
}

// NewInstance validates opts.System and builds an instance around it.
func NewInstance(opts Options) (*Instance, error) {
	if opts.System == nil {
		return nil, fmt.Errorf("instance requires a system")
	}
	if err := opts.System.validate(); err != nil {
		return nil, err
	}
	ext := opts.Extensions
	if ext == nil {
		ext = ExtensionSet{}
	}
	in := &Instance{
		table:  handle.NewTable(),
		time:   timeutil.NewTimeKeeper(opts.Clock, opts.TimeOffset),
		ext:    ext,
		sys:    opts.System,
		events: newEventQueue(opts.EventQueueCapacity),
	}
	id, err := in.table.Register(handle.KindInstance, handle.Nil, in)
	if err != nil {
		return nil, err
	}
	in.id = id
	return in, nil
}

// ID returns the instance handle.
func (in *Instance) ID() handle.ID { return in.id }

// Handles returns the handle table shared by everything the instance owns.
func (in *Instance) Handles() *handle.Table { return in.table }

// Time returns the instance's time conversion.
func (in *Instance) Time() *timeutil.TimeKeeper { return in.time }

// System returns the system the instance drives.
func (in *Instance) System() *System { return in.sys }

// ExtensionEnabled reports whether the application enabled ext.
func (in *Instance) ExtensionEnabled(ext Extension) bool {
	return in.ext.Enabled(ext)
}

// Extensions returns a copy of the enabled extension set.
func (in *Instance) Extensions() ExtensionSet {
	out := make(ExtensionSet, len(in.ext))
	for k, v := range in.ext {
		out[k] = v
	}
	return out
}

// CreateInfo describes a new session.
type CreateInfo struct {
	ApplicationName string
}

// CreateSession creates a session and moves it to READY.
func (in *Instance) CreateSession(info CreateInfo) (*Session, error) {
	in.mu.RLock()
	closed := in.closed
	in.mu.RUnlock()
	if closed {
		return nil, xrerr.New(xrerr.HandleInvalid, "instance is destroyed")
	}

	s := newSession(in, info)
	if err := in.table.RegisterAs(s.id, handle.KindSession, in.id, s); err != nil {
		return nil, err
	}
	in.mu.Lock()
	in.sessions = append(in.sessions, s)
	in.mu.Unlock()

	s.mu.Lock()
	s.transitionLocked(StateIdle)
	s.transitionLocked(StateReady)
	s.mu.Unlock()
	return s, nil
}

// Session resolves a session handle.
func (in *Instance) Session(id handle.ID) (*Session, error) {
	return handle.Get[*Session](in.table, id, handle.KindSession)
}

// Space resolves a space handle.
func (in *Instance) Space(id handle.ID) (*Space, error) {
	return handle.Get[*Space](in.table, id, handle.KindSpace)
}

// DestroySession unlinks s from the instance, then destroys its trackers
// and spaces and finally s itself.
func (in *Instance) DestroySession(s *Session) error {
	in.unlink(s)
	return in.table.Destroy(s.id)
}

// Sessions returns a snapshot of the live sessions in creation order.
func (in *Instance) Sessions() []*Session {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return append([]*Session(nil), in.sessions...)
}

// PollEvent pops the oldest queued event. An empty queue is not an error;
// it reports EventUnavailable.
func (in *Instance) PollEvent() (Event, xrerr.Qualifier) {
	e, ok := in.events.poll()
	if !ok {
		return Event{}, xrerr.EventUnavailable
	}
	return e, xrerr.Success
}

// PendingEvents returns the number of queued events.
func (in *Instance) PendingEvents() int {
	return in.events.len()
}

// Subscribe returns a channel receiving every event as it is queued. The
// channel is closed by Unsubscribe or when the instance is destroyed.
func (in *Instance) Subscribe() (string, <-chan Event) {
	return in.events.subscribe()
}

// Unsubscribe stops delivery to a subscriber.
func (in *Instance) Unsubscribe(id string) {
	in.events.unsubscribe(id)
}

// Close destroys the instance and everything it owns.
func (in *Instance) Close() error {
	return in.table.Destroy(in.id)
}

// Destroy implements handle.Object. Sessions are already gone.
func (in *Instance) Destroy() error {
	in.mu.Lock()
	in.closed = true
	in.sessions = nil
	in.mu.Unlock()
	in.events.close()
	return nil
}

func (in *Instance) unlink(s *Session) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i, cur := range in.sessions {
		if cur == s {
			in.sessions = append(in.sessions[:i], in.sessions[i+1:]...)
			return
		}
	}
}

func (in *Instance) emit(e Event) {
	in.events.push(e)
}
