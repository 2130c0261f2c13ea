package futex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownDoesNotParkWhenPositive(t *testing.T) {
	var f Futex
	f.Store(1)

	done := make(chan struct{})
	go func() {
		f.Down()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Down parked although the word was positive")
	}
	assert.Equal(t, int32(0), f.Load())
}

func TestUpReleasesParkedDown(t *testing.T) {
	var f Futex

	done := make(chan struct{})
	go func() {
		f.Down()
		close(done)
	}()

	// Wait for the goroutine to announce itself by decrementing the word
	require.Eventually(t, func() bool { return f.Load() == -1 }, time.Second, time.Millisecond)

	select {
	case <-done:
		t.Fatal("Down returned before Up")
	case <-time.After(20 * time.Millisecond):
	}

	assert.True(t, f.Up())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Up did not release Down")
	}
	assert.Equal(t, int32(0), f.Load())
}

func TestUpWithoutWaiterDoesNotWake(t *testing.T) {
	var f Futex
	assert.False(t, f.Up())
	assert.Equal(t, int32(1), f.Load())
}

func TestWaitReturnsWhenWordDiffers(t *testing.T) {
	var f Futex
	f.Store(3)

	done := make(chan struct{})
	go func() {
		f.Wait(7, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait parked although the word did not match")
	}
}

func TestWaitTimeout(t *testing.T) {
	var f Futex

	done := make(chan struct{})
	go func() {
		f.Wait(0, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait ignored its timeout")
	}
}

func TestOrAndReturnOld(t *testing.T) {
	var f Futex
	assert.Equal(t, int32(0), f.Or(0x4))
	assert.Equal(t, int32(0x4), f.Or(0x1))
	assert.Equal(t, int32(0x5), f.And(^int32(0x4)))
	assert.Equal(t, int32(0x1), f.Load())
}
