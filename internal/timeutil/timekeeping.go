package timeutil

import "time"

// DefaultExternalOffset keeps every external timestamp strictly positive,
// since applications treat a time <= 0 as invalid.
const DefaultExternalOffset = time.Second

// TimeKeeper converts between the runtime's monotonic nanosecond clock
// (what devices stamp their samples with) and the external time domain
// exposed to applications.
type TimeKeeper struct {
	clock  Clock
	epoch  time.Time
	offset int64
}

// NewTimeKeeper starts the monotonic clock at zero on the current reading
// of clock. External time is monotonic time shifted by offset.
func NewTimeKeeper(clock Clock, offset time.Duration) *TimeKeeper {
	if clock == nil {
		clock = RealClock{}
	}
	if offset <= 0 {
		offset = DefaultExternalOffset
	}
	return &TimeKeeper{
		clock:  clock,
		epoch:  clock.Now(),
		offset: offset.Nanoseconds(),
	}
}

// Clock returns the underlying clock.
func (tk *TimeKeeper) Clock() Clock {
	return tk.clock
}

// MonotonicNow returns nanoseconds elapsed since the keeper was created.
func (tk *TimeKeeper) MonotonicNow() int64 {
	return tk.clock.Since(tk.epoch).Nanoseconds()
}

// Now returns the current external time.
func (tk *TimeKeeper) Now() int64 {
	return tk.MonotonicToExternal(tk.MonotonicNow())
}

// MonotonicToExternal converts a monotonic sample timestamp to external time.
func (tk *TimeKeeper) MonotonicToExternal(ns int64) int64 {
	return ns + tk.offset
}

// ExternalToMonotonic converts an application-supplied time to monotonic
// nanoseconds.
func (tk *TimeKeeper) ExternalToMonotonic(t int64) int64 {
	return t - tk.offset
}

// MonotonicToWall maps a monotonic timestamp back onto the clock's wall time.
func (tk *TimeKeeper) MonotonicToWall(ns int64) time.Time {
	return tk.epoch.Add(time.Duration(ns))
}
