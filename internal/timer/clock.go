package timer

import "time"

// Wake is a pending one-shot callback that can be stopped.
type Wake interface {
	Stop() bool
}

// Clock provides wall-clock time and one-shot callbacks. Tests substitute a
// manual implementation to drive the countdown deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Wake
}

// SystemClock is the Clock backed by the runtime timers.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Wake {
	return time.AfterFunc(d, f)
}
