// Package twocall implements the capacity-in / count-out / array-out query
// idiom shared by every enumeration in the runtime.
//
// A caller first asks with capacity 0 to learn the count, allocates, then
// asks again. The helpers here are the only place that protocol is written
// down; enumeration sites must not re-implement it.
package twocall

import "github.com/banshee-data/xrstate/internal/xrerr"

// Enumerate copies items into buf following the two-call rules:
//
//   - capacity == 0: return len(items), buf untouched.
//   - 0 < capacity < len(items): SizeInsufficient, count still returned.
//   - capacity >= len(items): copy exactly len(items) elements.
//
// buf must hold at least capacity elements.
func Enumerate[T any](capacity int, buf []T, items []T) (int, error) {
	return EnumerateFunc(capacity, buf, len(items), func(i int) T { return items[i] })
}

// EnumerateFunc is Enumerate for results produced on demand; fill is only
// called when the items are actually written.
func EnumerateFunc[T any](capacity int, buf []T, count int, fill func(i int) T) (int, error) {
	if err := xrerr.Capacity("element", capacity, len(buf))(); err != nil {
		return 0, err
	}
	if capacity == 0 {
		return count, nil
	}
	if capacity < count {
		return count, xrerr.Insufficient(count, "(capacity == %d) is less than the required count %d", capacity, count)
	}
	for i := 0; i < count; i++ {
		buf[i] = fill(i)
	}
	return count, nil
}

// Slice performs both calls of the idiom against query and returns the
// full result. It is the caller side of the protocol, used by the admin
// surface and tests.
func Slice[T any](query func(capacity int, buf []T) (int, error)) ([]T, error) {
	n, err := query(0, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []T{}, nil
	}
	buf := make([]T, n)
	n, err = query(len(buf), buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
