//go:build linux

package rtsched

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

const schedFIFO = 1

func apply(cfg Config, logger *slog.Logger) bool {
	modified := false
	tid := unix.Gettid()

	if cfg.CPU >= 0 {
		var set unix.CPUSet
		set.Zero()
		set.Set(cfg.CPU)
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			logger.Warn("could not pin fast thread", "cpu", cfg.CPU, "tid", tid, "err", err)
		} else {
			modified = true
		}
	}

	if cfg.Priority > 0 {
		attr := unix.SchedAttr{
			Policy:   schedFIFO,
			Priority: uint32(cfg.Priority),
		}
		if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
			logger.Warn("did not receive requested real-time priority", "priority", cfg.Priority, "tid", tid, "err", err)
		} else {
			logger.Debug("fast thread scheduled SCHED_FIFO", "priority", cfg.Priority, "tid", tid)
			return true
		}
	}

	if cfg.Nice != 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, tid, cfg.Nice); err != nil {
			logger.Warn("could not renice fast thread", "nice", cfg.Nice, "tid", tid, "err", err)
		} else {
			modified = true
		}
	}
	return modified
}
