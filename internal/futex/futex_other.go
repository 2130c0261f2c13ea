//go:build !linux

package futex

import (
	"sync"
	"sync/atomic"
	"time"
)

// Portable stand-in for the kernel wait queue.
//
// Wakers modify the word before taking mu, waiters check the word while holding mu,
// so a wake can never slip between a waiter's check and its park.
type waiter struct {
	once sync.Once
	mu   sync.Mutex
	cond *sync.Cond
}

func (w *waiter) init() {
	w.once.Do(func() {
		w.cond = sync.NewCond(&w.mu)
	})
}

func (w *waiter) wait(addr *int32, val int32, timeout time.Duration) {
	w.init()
	w.mu.Lock()
	defer w.mu.Unlock()
	if atomic.LoadInt32(addr) != val {
		return
	}
	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			w.mu.Lock()
			w.cond.Broadcast()
			w.mu.Unlock()
		})
		defer timer.Stop()
	}
	w.cond.Wait()
}

func (w *waiter) wake(_ *int32, _ int) {
	w.init()
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}
