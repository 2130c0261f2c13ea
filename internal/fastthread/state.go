package fastthread

import (
	"log/slog"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/futex"
)

// ThreadState is the part of a pushed state every fast thread understands.
// Worker states embed it.
//
// A state is never modified after it has been pushed.
type ThreadState struct {
	Command Command

	// Incremented by the control side every time it requests a new cold idle.
	// A COLD_IDLE state whose ColdGen was already handled is treated as hot idle.
	ColdGen uint32

	// Parked on during cold idle; required when Command is CommandColdIdle.
	ColdFutex *futex.Futex

	// Where the fast thread logs for this state. nil uses the thread's own logger.
	Logger *slog.Logger
}

func (s *ThreadState) Base() *ThreadState {
	return s
}

// State is implemented by pointers to worker states.
type State interface {
	Base() *ThreadState

	// The diagnostics block the thread writes for this state, or nil.
	ThreadDump() *DumpState
}

// A Worker supplies the work a fast thread does between state changes.
// All methods are called from the fast thread.
type Worker[PT State] interface {
	// Report whether command is a work command of this worker.
	// Returning false for a non-base command is a programming error.
	IsSubClassCommand(command Command) bool

	// Called on a transition from a work command into an idle command.
	OnIdle()

	// Called once, as the thread loop returns.
	OnExit()

	// Called once for every new state with a work command, before OnWork.
	// previous is the last work state seen, or the initial state.
	// The worker sets c.Timing when its period changes.
	OnStateChange(previous, current PT, c *Cycle)

	// Do one cycle of work. Sets c.AttemptedIO when a blocking read or write was attempted.
	OnWork(current PT, c *Cycle)
}

// Cycle is the fast thread's view of its own progress, shared with the worker hooks.
type Cycle struct {
	// Set once warm-up has completed; workers may hold back I/O until then.
	IsWarm bool

	// Never nil.
	Dump *DumpState

	// Never nil.
	Logger *slog.Logger

	// The thread's timing constants. Written by OnStateChange, read by the thread.
	Timing *Timing

	// Whether the last OnWork attempted I/O. Reset by the thread before every OnWork.
	AttemptedIO bool
}
