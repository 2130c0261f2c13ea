package rtsched

import (
	"log/slog"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOnlyLocks(t *testing.T) {
	done := make(chan bool)
	go func() {
		unlock, modified := Apply(Default(), nil)
		defer unlock()
		done <- modified
	}()
	assert.False(t, <-done, "the default config leaves scheduling alone")
}

func TestRefusedRequestsAreNotFatal(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("scheduling requests are ignored off linux")
	}
	done := make(chan bool)
	go func() {
		// No such CPU, so the affinity request fails and is only logged.
		unlock, modified := Apply(Config{CPU: 1023, Priority: 0, Nice: 0}, slog.Default())
		unlock()
		done <- modified
	}()
	require.False(t, <-done)
}
