// Package threadcontrol builds and publishes the states of the fast threads.
//
// A controller is the only writer of its thread's state queue. It keeps a draft of
// the next state, changes it through methods that validate every request, and
// publishes it with Push. Generations are bumped only for what changed, so the
// fast thread reacquires only those resources.
//
// Controllers are safe for concurrent use; none of their methods may be called
// from a fast thread.
package threadcontrol

import (
	"context"
	"errors"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/futex"
)

var (
	ErrFormatMismatch    = errors.New("endpoint format does not match")
	ErrNoFreeTrackSlot   = errors.New("no free track slot")
	ErrInvalidTrackSlot  = errors.New("invalid track slot")
	ErrNoFreeSinkSlot    = errors.New("no free sink slot")
	ErrInvalidSinkSlot   = errors.New("invalid sink slot")
	ErrInvalidFrameCount = errors.New("frame count must be positive")
	ErrNilEndpoint       = errors.New("endpoint must not be nil")
	ErrExited            = errors.New("fast thread has been asked to exit")
)

// commandControl tracks the command of a draft state and runs the cold idle handshake.
type commandControl struct {
	coldFutex futex.Futex
	exited    bool
}

func (c *commandControl) init(base *fastthread.ThreadState) {
	base.ColdFutex = &c.coldFutex
	base.Command = fastthread.CommandHotIdle
}

// Change the draft's command.
//
// Entering cold idle resets the futex word so the thread parks on it. Leaving
// cold idle raises the word again, releasing the thread if it is parked; this is
// done before the new state is pushed, so the thread is awake to poll it.
func (c *commandControl) set(base *fastthread.ThreadState, command fastthread.Command) error {
	if c.exited {
		return ErrExited
	}
	if base.Command == command {
		return nil
	}

	if base.Command == fastthread.CommandColdIdle {
		c.coldFutex.Up()
	}
	if command == fastthread.CommandColdIdle {
		c.coldFutex.Store(0)
		base.ColdGen++
	}
	if command == fastthread.CommandExit {
		c.exited = true
	}
	base.Command = command
	return nil
}

func (c *commandControl) check() error {
	if c.exited {
		return ErrExited
	}
	return nil
}

type acker interface {
	WaitAcked(ctx context.Context) error
}

func waitAcked(ctx context.Context, q acker, block bool) error {
	if !block {
		return nil
	}
	return q.WaitAcked(ctx)
}
