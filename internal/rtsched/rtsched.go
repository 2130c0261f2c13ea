// Package rtsched prepares the OS thread a fast thread runs on.
//
// The calling goroutine is locked to its OS thread, which is then optionally pinned
// to a CPU and given real-time scheduling. Failures (commonly EPERM in containers
// or without CAP_SYS_NICE) are logged and otherwise ignored: the fallback is simply
// normal scheduling.
package rtsched

import (
	"log/slog"
	"runtime"
)

type Config struct {
	// CPU to pin the thread to, or negative to leave affinity alone.
	CPU int

	// SCHED_FIFO priority (1-99), or 0 to not request real-time scheduling.
	Priority int

	// Nice value to apply if real-time scheduling was not requested or was refused.
	// 0 leaves the nice value alone.
	Nice int
}

// A Config that only locks the OS thread.
func Default() Config {
	return Config{CPU: -1}
}

// Lock the calling goroutine to its OS thread and apply cfg to that thread.
//
// The returned function unlocks the thread; call it when the loop ends.
// If the thread's scheduling was changed it is not restored, so the goroutine
// should exit without calling the unlock function to let the runtime discard the thread.
func Apply(cfg Config, logger *slog.Logger) (unlock func(), modified bool) {
	if logger == nil {
		logger = slog.Default()
	}
	runtime.LockOSThread()
	modified = apply(cfg, logger)
	return runtime.UnlockOSThread, modified
}
