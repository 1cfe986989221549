package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_NewTimer(t *testing.T) {
	clock := RealClock{}
	timer := clock.NewTimer(10 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C():
		// Timer fired as expected
	case <-time.After(time.Second):
		t.Error("timer did not fire")
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(time.Hour)

	if got, want := clock.Now(), start.Add(time.Hour); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if d := clock.Since(start); d != time.Hour {
		t.Errorf("Since() = %v, want 1h", d)
	}
}

func TestMockClock_Timer(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	timer := clock.NewTimer(5 * time.Millisecond)

	if n := clock.PendingTimers(); n != 1 {
		t.Fatalf("PendingTimers() = %d, want 1", n)
	}

	clock.Advance(4 * time.Millisecond)
	select {
	case <-timer.C():
		t.Fatal("timer fired too early")
	default:
	}

	clock.Advance(time.Millisecond)
	select {
	case <-timer.C():
	default:
		t.Fatal("timer did not fire at its deadline")
	}

	if n := clock.PendingTimers(); n != 0 {
		t.Errorf("PendingTimers() after fire = %d, want 0", n)
	}
}

func TestMockClock_TimerStop(t *testing.T) {
	clock := NewMockClock(time.Now())
	timer := clock.NewTimer(time.Minute)

	if !timer.Stop() {
		t.Error("Stop should return true for active timer")
	}
	if timer.Stop() {
		t.Error("second Stop should return false")
	}

	clock.Advance(2 * time.Minute)
	select {
	case <-timer.C():
		t.Error("stopped timer should not fire")
	default:
	}
}

func TestTimeKeeper_RoundTrip(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tk := NewTimeKeeper(clock, 0)

	if got := tk.MonotonicNow(); got != 0 {
		t.Fatalf("MonotonicNow() at creation = %d, want 0", got)
	}
	if got := tk.Now(); got != DefaultExternalOffset.Nanoseconds() {
		t.Errorf("Now() = %d, want %d", got, DefaultExternalOffset.Nanoseconds())
	}

	clock.Advance(250 * time.Millisecond)
	mono := tk.MonotonicNow()
	if mono != (250 * time.Millisecond).Nanoseconds() {
		t.Errorf("MonotonicNow() = %d after advance", mono)
	}

	ext := tk.MonotonicToExternal(mono)
	if ext <= 0 {
		t.Errorf("external time must be positive, got %d", ext)
	}
	if back := tk.ExternalToMonotonic(ext); back != mono {
		t.Errorf("round trip = %d, want %d", back, mono)
	}
}

func TestTimeKeeper_CustomOffset(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	tk := NewTimeKeeper(clock, 5*time.Second)

	if got := tk.MonotonicToExternal(10); got != 5_000_000_010 {
		t.Errorf("MonotonicToExternal(10) = %d", got)
	}
	if got := tk.MonotonicToWall(int64(time.Second)); !got.Equal(time.Unix(1, 0)) {
		t.Errorf("MonotonicToWall = %v", got)
	}
}
