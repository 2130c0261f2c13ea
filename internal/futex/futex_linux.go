//go:build linux

package futex

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexWait        = 0
	futexWake        = 1
	futexPrivateFlag = 128
)

// The kernel keeps the wait queue, nothing to hold here.
type waiter struct{}

func (waiter) wait(addr *int32, val int32, timeout time.Duration) {
	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	}
	// EAGAIN (word changed), EINTR and ETIMEDOUT all mean "go look again"
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWait|futexPrivateFlag,
		uintptr(uint32(val)),
		uintptr(unsafe.Pointer(ts)),
		0,
		0,
	)
}

func (waiter) wake(addr *int32, n int) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWake|futexPrivateFlag,
		uintptr(n),
		0,
		0,
		0,
	)
}
