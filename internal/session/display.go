package session

import (
	"github.com/banshee-data/xrstate/internal/twocall"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// EnumerateRefreshRates lists the display refresh rates using the two-call
// protocol. Headless systems report none.
func (s *Session) EnumerateRefreshRates(capacity int, rates []float32) (int, error) {
	if err := xrerr.First(s.CheckNotLost, xrerr.Capacity("displayRefreshRate", capacity, len(rates))); err != nil {
		return 0, err
	}
	if s.sys.Headless {
		return 0, nil
	}
	return twocall.Enumerate(capacity, rates, s.sys.RefreshRates)
}

// RefreshRate returns the current display refresh rate, 0 when headless.
func (s *Session) RefreshRate() (float32, error) {
	if err := s.CheckNotLost(); err != nil {
		return 0, err
	}
	if s.sys.Headless {
		return 0, nil
	}
	if len(s.sys.RefreshRates) == 0 {
		return 0, xrerr.New(xrerr.RuntimeFailure, "system reports no display refresh rates")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshRate, nil
}

// refreshRateKey truncates to hundredths in single precision, so 72.0 and
// 72.004 match while 72.01 does not.
func refreshRateKey(rate float32) int32 {
	return int32(rate * 100.0)
}

// RequestRefreshRate switches the display to a listed rate. A request of 0
// leaves the rate to the runtime and always succeeds.
func (s *Session) RequestRefreshRate(rate float32) error {
	if err := s.CheckNotLost(); err != nil {
		return err
	}
	if rate == 0 {
		return nil
	}
	if s.sys.Headless {
		return xrerr.New(xrerr.DisplayRefreshRateUnsupported, "headless sessions have no display")
	}
	var matched float32
	found := false
	for _, r := range s.sys.RefreshRates {
		if refreshRateKey(r) == refreshRateKey(rate) {
			matched, found = r, true
			break
		}
	}
	if !found {
		return xrerr.New(xrerr.DisplayRefreshRateUnsupported, "(displayRefreshRate == %f) is not a supported rate", rate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLiveLocked(); err != nil {
		return err
	}
	from := s.refreshRate
	if from == matched {
		return nil
	}
	s.refreshRate = matched
	if s.sys.FramePeriod == 0 {
		s.pacer.setPeriod(periodFor(matched))
	}
	s.inst.emit(Event{
		Type:     EventDisplayRefreshRateChanged,
		Session:  s.id,
		Time:     s.inst.time.Now(),
		FromRate: from,
		ToRate:   matched,
	})
	return nil
}

// SetPerformanceLevel records a performance hint and forwards it to the
// system's performance controller.
func (s *Session) SetPerformanceLevel(domain PerfDomain, level PerfLevel) error {
	if err := s.CheckNotLost(); err != nil {
		return err
	}
	if !domain.valid() {
		return xrerr.New(xrerr.ValidationFailure, "(domain == %d) is not a valid performance domain", domain)
	}
	if !level.valid() {
		return xrerr.New(xrerr.ValidationFailure, "(level == %d) is not a valid performance level", level)
	}
	if p := s.sys.Performance; p != nil {
		if err := p.SetPerformanceLevel(domain, level); err != nil {
			return xrerr.New(xrerr.RuntimeFailure, "performance controller: %v", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perf[domain] = level
	return nil
}

// PerformanceLevel returns the last level set for domain.
func (s *Session) PerformanceLevel(domain PerfDomain) (PerfLevel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.perf[domain]
	return l, ok
}
