//go:build !linux

package fastthread

import "time"

// The runtime's monotonic reading, relative to process start.
type monotonicClock struct {
	epoch time.Time
}

func (c monotonicClock) Now() (int64, error) {
	return int64(time.Since(c.epoch)), nil
}

func defaultClock() Clock {
	return monotonicClock{epoch: time.Now()}
}
