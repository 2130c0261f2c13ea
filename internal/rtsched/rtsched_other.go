//go:build !linux

package rtsched

import "log/slog"

func apply(cfg Config, logger *slog.Logger) bool {
	if cfg.CPU >= 0 || cfg.Priority > 0 || cfg.Nice != 0 {
		logger.Debug("thread affinity and priority are only supported on linux")
	}
	return false
}
