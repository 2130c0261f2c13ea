package fastthread

import (
	"runtime"
	"time"
)

// A Clock reads a monotonic time in nanoseconds.
// An error means the time is unavailable for this cycle.
type Clock interface {
	Now() (int64, error)
}

// A Sleeper suspends the fast thread between cycles.
type Sleeper interface {
	Sleep(ns int64)
	Yield()
}

type ClockFunc func() (int64, error)

func (f ClockFunc) Now() (int64, error) {
	return f()
}

// Default sleeper, backed by the Go runtime.
type runtimeSleeper struct{}

func (runtimeSleeper) Sleep(ns int64) {
	time.Sleep(time.Duration(ns))
}

func (runtimeSleeper) Yield() {
	runtime.Gosched()
}
