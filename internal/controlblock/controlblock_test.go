package controlblock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceWakesOnce(t *testing.T) {
	var cblk ControlBlock

	assert.True(t, cblk.Advance(240))
	assert.False(t, cblk.Advance(240), "flag already set, no second wake")

	assert.Equal(t, int32(480), cblk.Rear())
	assert.Equal(t, uint64(480), cblk.Server())

	assert.True(t, cblk.Wait(time.Millisecond))
	assert.False(t, cblk.Wait(time.Millisecond), "flag consumed by the previous wait")

	assert.True(t, cblk.Advance(240))
}

func TestWaitReleasedByAdvance(t *testing.T) {
	var cblk ControlBlock

	woke := make(chan bool)
	go func() {
		woke <- cblk.Wait(0)
	}()

	// Keep advancing until the waiter notices: it may not be parked yet.
	deadline := time.After(time.Second)
	for {
		cblk.Advance(1)
		select {
		case ok := <-woke:
			assert.True(t, ok)
			return
		case <-deadline:
			t.Fatal("waiter not released")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestInvalidate(t *testing.T) {
	var cblk ControlBlock
	require.True(t, cblk.IsValid())

	done := make(chan bool)
	go func() {
		done <- cblk.Wait(0)
	}()

	cblk.Invalidate()
	assert.False(t, cblk.IsValid())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter not released by invalidate")
	}

	assert.False(t, cblk.Wait(0), "invalid block never waits")
}
