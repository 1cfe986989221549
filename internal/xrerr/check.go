package xrerr

// Check is one precondition. Checks run lazily, in order.
type Check func() error

// First runs checks in order and returns the first failure. Later checks
// are never evaluated, so a check may rely on every earlier one passing.
func First(checks ...Check) error {
	for _, c := range checks {
		if c == nil {
			continue
		}
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}

// ValidTime rejects non-positive application times.
func ValidTime(t int64) Check {
	return func() error {
		if t <= 0 {
			return New(TimeInvalid, "(time == %d) is not a valid time.", t)
		}
		return nil
	}
}

// NotNil rejects a missing required argument. ok is the caller's own
// nil test, keeping this free of reflection.
func NotNil(name string, ok bool) Check {
	return func() error {
		if !ok {
			return New(ArgumentInvalid, "(%s == NULL)", name)
		}
		return nil
	}
}

// Capacity rejects a buffer shorter than the capacity the caller declared,
// the Go rendering of a non-null buffer check.
func Capacity(name string, capacity, bufLen int) Check {
	return func() error {
		if capacity < 0 {
			return New(ArgumentInvalid, "(%sCapacityInput == %d) is negative", name, capacity)
		}
		if capacity > bufLen {
			return New(ArgumentInvalid, "(%s) buffer holds %d elements but capacity is %d", name, bufLen, capacity)
		}
		return nil
	}
}

// Extension rejects calls into an extension the application did not enable.
func Extension(name string, enabled bool) Check {
	return func() error {
		if !enabled {
			return New(FunctionUnsupported, "Requires the %s extension to be enabled", name)
		}
		return nil
	}
}
