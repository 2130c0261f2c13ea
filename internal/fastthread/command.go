package fastthread

import "fmt"

// Command is what a fast thread is asked to do with its current state.
//
// The low bits are reserved for the commands every fast thread understands.
// Worker-specific commands are bit flags starting at CommandSubclassBase,
// e.g. a mixer's MIX and WRITE, which combine into MIX_WRITE.
type Command uint32

const (
	// Used only for the built-in initial state, before anything is pushed. Acts like hot idle.
	CommandInitial Command = 0x0

	// Sleep briefly and poll again. For when there is no work, but work is expected soon.
	CommandHotIdle Command = 0x1

	// Park until released by the control side. For long idle periods.
	CommandColdIdle Command = 0x2

	// Mask matching both idle commands.
	CommandIdle Command = 0x3

	// Terminate the thread loop.
	CommandExit Command = 0x4

	// The first bit available to worker-specific commands.
	CommandSubclassBase Command = 0x8
)

func (c Command) IsIdle() bool {
	return c&CommandIdle != 0
}

func (c Command) String() string {
	switch c {
	case CommandInitial:
		return "INITIAL"
	case CommandHotIdle:
		return "HOT_IDLE"
	case CommandColdIdle:
		return "COLD_IDLE"
	case CommandExit:
		return "EXIT"
	default:
		return fmt.Sprintf("0x%x", uint32(c))
	}
}
