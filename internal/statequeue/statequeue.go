// Package statequeue hands immutable state snapshots from one non-real-time writer
// to one real-time reader without locks.
//
// The queue is a triple buffer with one extra reader slot: the writer owns one slot,
// the reader owns two (its current and its previous state), and the remaining
// "middle" slot is exchanged atomically. The writer never touches the reader's
// slots, so a snapshot being read cannot be torn, and neither side ever waits for
// the other. Only the newest push is observable: pushes made while the reader is
// not polling overwrite one another.
package statequeue

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	numSlots  = 4
	indexMask = 0x3

	// Set on the middle index by Push, cleared by Poll.
	freshBit = 0x4

	// Back-off between acknowledgement checks in WaitAcked.
	ackPollInterval = 3 * time.Millisecond
)

// A StateQueue must be created with New, and must have exactly one writer
// (Push, Acked, WaitAcked) and exactly one reader (Poll).
type StateQueue[T any] struct {
	slots [numSlots]T

	// Index of the middle slot, tagged with freshBit while it holds an unread push.
	middle atomic.Uint32
	_pad0  [60]byte

	// Writer-owned slot index.
	back  uint32
	_pad1 [60]byte

	// Reader-owned slot indices: the newest polled state and the one before it.
	front    uint32
	previous uint32
	_pad2    [56]byte

	pushes atomic.Uint64
	polls  atomic.Uint64
}

// Create a new StateQueue. All slots are allocated here; Push and Poll never allocate.
func New[T any]() *StateQueue[T] {
	q := &StateQueue[T]{
		front:    0,
		previous: 1,
		back:     2,
	}
	q.middle.Store(3)
	return q
}

// Publish a copy of *v as the newest state. Never blocks.
//
// If the previous push has not been polled yet it is discarded.
func (q *StateQueue[T]) Push(v *T) {
	q.slots[q.back] = *v
	old := q.middle.Swap(q.back | freshBit)
	q.back = old & indexMask
	q.pushes.Add(1)
}

// Return the newest state if one was pushed since the last successful Poll, otherwise nil.
// Never blocks.
//
// The returned state must be treated as read-only. It remains valid, and is not
// modified by the writer, until the second Poll after it that returns non-nil,
// so the reader can always hold both its current and its previous state.
func (q *StateQueue[T]) Poll() *T {
	if q.middle.Load()&freshBit == 0 {
		return nil
	}
	old := q.middle.Swap(q.previous)
	q.previous = q.front
	q.front = old & indexMask
	q.polls.Add(1)
	return &q.slots[q.front]
}

// Report whether the most recent push has been observed by the reader.
// True before any push.
func (q *StateQueue[T]) Acked() bool {
	return q.middle.Load()&freshBit == 0
}

// Block until the most recent push has been observed by the reader, or ctx is done.
//
// For use by the writer only, and never on a real-time thread.
func (q *StateQueue[T]) WaitAcked(ctx context.Context) error {
	if q.Acked() {
		return nil
	}
	ticker := time.NewTicker(ackPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if q.Acked() {
				return nil
			}
		}
	}
}

// The number of pushes made so far.
func (q *StateQueue[T]) Pushes() uint64 {
	return q.pushes.Load()
}

// The number of polls that returned a new state so far.
func (q *StateQueue[T]) Polls() uint64 {
	return q.polls.Load()
}
