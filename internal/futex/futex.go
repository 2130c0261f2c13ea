// Package futex provides a 32 bit wake word with futex(2) semantics.
//
// The word is manipulated with atomic operations; Wait parks the caller only while
// the word still holds an expected value, and Wake releases parked callers. On Linux
// this is the futex system call, elsewhere a mutex and condition variable stand in
// with the same semantics.
//
// A Futex must not be copied after first use.
package futex

import (
	"sync/atomic"
	"time"
)

type Futex struct {
	word int32
	waiter
}

func (f *Futex) Load() int32 {
	return atomic.LoadInt32(&f.word)
}

func (f *Futex) Store(v int32) {
	atomic.StoreInt32(&f.word, v)
}

// Add delta to the word, returning the new value.
func (f *Futex) Add(delta int32) int32 {
	return atomic.AddInt32(&f.word, delta)
}

// Set the bits of mask, returning the old value.
func (f *Futex) Or(mask int32) int32 {
	return atomic.OrInt32(&f.word, mask)
}

// Keep only the bits of mask, returning the old value.
func (f *Futex) And(mask int32) int32 {
	return atomic.AndInt32(&f.word, mask)
}

// Park the caller while the word equals val, for at most timeout.
// A non-positive timeout waits until woken.
//
// Spurious returns are possible; callers re-check the word.
func (f *Futex) Wait(val int32, timeout time.Duration) {
	f.wait(&f.word, val, timeout)
}

// Wake at most n callers parked in Wait.
func (f *Futex) Wake(n int) {
	f.wake(&f.word, n)
}

// Down decrements the word and, if it was not positive, parks until a matching Up.
//
// Used as a binary semaphore by the fast threads to enter cold idle: the control
// side resets the word to 0 before requesting cold idle, so the decrement parks.
func (f *Futex) Down() {
	old := f.Add(-1) + 1
	if old > 0 {
		return
	}
	for f.Load() == old-1 {
		f.Wait(old-1, 0)
	}
}

// Up increments the word and wakes a caller parked in Down, if there is one.
// Returns true if a wake was issued.
func (f *Futex) Up() bool {
	if f.Add(1) == 0 {
		f.Wake(1)
		return true
	}
	return false
}
