// Package controlblock is the small block of shared counters between a fast
// thread (the server, producing frames into a client's buffer) and the client
// consuming them.
package controlblock

import (
	"sync/atomic"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/futex"
)

const (
	// Set by the server when it has advanced, cleared by the client when it notices.
	flagWake int32 = 1 << 0

	// Set once the server will not advance again.
	flagInvalid int32 = 1 << 1
)

// The zero value is a valid control block.
type ControlBlock struct {
	// Frames made available by the server. Wraps.
	rear atomic.Int32

	// Total frames the server has produced.
	server atomic.Uint64

	flags futex.Futex
}

// Server side: publish frames newly made available to the client, and wake it
// if it has not been woken since it last looked.
// Returns true if a wake was issued.
func (c *ControlBlock) Advance(frames int) bool {
	c.rear.Add(int32(frames))
	c.server.Add(uint64(frames))

	if c.flags.Or(flagWake)&flagWake != 0 {
		return false
	}
	c.flags.Wake(1)
	return true
}

// Client side.
func (c *ControlBlock) Rear() int32 {
	return c.rear.Load()
}

func (c *ControlBlock) Server() uint64 {
	return c.server.Load()
}

// Client side: wait for the server to advance.
//
// Returns true if the server advanced since the last call, either before this call
// or within timeout. A zero timeout waits indefinitely. Returns false on timeout and
// once the block has been invalidated.
func (c *ControlBlock) Wait(timeout time.Duration) bool {
	old := c.flags.And(^flagWake)
	if old&flagWake != 0 {
		return true
	}
	if old&flagInvalid != 0 {
		return false
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		c.flags.Wait(old, timeout)
		old = c.flags.And(^flagWake)
		if old&flagWake != 0 {
			return true
		}
		if old&flagInvalid != 0 {
			return false
		}
		if timeout > 0 {
			if timeout = time.Until(deadline); timeout <= 0 {
				return false
			}
		}
	}
}

// Server side: mark the block as finished and release any waiting client.
func (c *ControlBlock) Invalidate() {
	c.flags.Or(flagInvalid)
	c.flags.Wake(1 << 30)
}

func (c *ControlBlock) IsValid() bool {
	return c.flags.Load()&flagInvalid == 0
}
