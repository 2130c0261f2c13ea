package fastthread

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/rtsched"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/statequeue"
)

const (
	// Sleep of an idle cycle that has nothing better to do.
	defaultSleepNs int64 = 999999999

	hotIdleNs int64 = 1000000

	// Warm after this many consecutive in-range cycles...
	minWarmupCycles = 2

	// ...or this many cycles in total, whichever comes first.
	maxWarmupCycles = 10
)

// Thread is the periodic real-time loop shared by the mixer and capture workers.
//
// Each cycle it sleeps, polls its state queue, applies a new state (handing
// work states to the worker), does one unit of work, and measures the cycle
// to decide how long to sleep next.
type Thread[T any, PT interface {
	*T
	State
}] struct {
	queue   *statequeue.StateQueue[T]
	worker  Worker[PT]
	clock   Clock
	sleeper Sleeper
	logger  *slog.Logger

	realtime *rtsched.Config

	// Used before the first push.
	initial T

	// Copy of the last work state, taken when entering an idle command.
	// Queue slots are only retained for one extra poll, so idling must not rely on them.
	preIdle T

	current  PT
	previous PT

	dummyDump DumpState
	cycle     Cycle
	timing    Timing

	sleepNs           int64
	oldTs             int64
	oldTsValid        bool
	ignoreNextOverrun bool
	coldGen           uint32

	warmupCycles             uint32
	warmupConsecutiveInRange uint32
	measuredWarmupNs         int64
}

type Option[T any, PT interface {
	*T
	State
}] func(*Thread[T, PT])

// Use c instead of CLOCK_MONOTONIC.
func WithClock[T any, PT interface {
	*T
	State
}](c Clock) Option[T, PT] {
	return func(t *Thread[T, PT]) {
		t.clock = c
	}
}

func WithSleeper[T any, PT interface {
	*T
	State
}](s Sleeper) Option[T, PT] {
	return func(t *Thread[T, PT]) {
		t.sleeper = s
	}
}

func WithLogger[T any, PT interface {
	*T
	State
}](logger *slog.Logger) Option[T, PT] {
	return func(t *Thread[T, PT]) {
		t.logger = logger
	}
}

// Apply cfg to the OS thread Start runs the loop on.
func WithRealtime[T any, PT interface {
	*T
	State
}](cfg rtsched.Config) Option[T, PT] {
	return func(t *Thread[T, PT]) {
		t.realtime = &cfg
	}
}

// Create a thread reading its states from queue. The thread is the queue's only reader.
func New[T any, PT interface {
	*T
	State
}](queue *statequeue.StateQueue[T], worker Worker[PT], opts ...Option[T, PT]) *Thread[T, PT] {
	t := &Thread[T, PT]{
		queue:   queue,
		worker:  worker,
		clock:   defaultClock(),
		sleeper: runtimeSleeper{},
		logger:  slog.Default(),
		sleepNs: -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("fast thread uuid", uuid.New())

	t.current = PT(&t.initial)
	t.previous = PT(&t.initial)
	t.cycle = Cycle{
		Dump:   &t.dummyDump,
		Logger: t.logger,
		Timing: &t.timing,
	}
	return t
}

// Run the loop on the calling goroutine until an EXIT state is applied.
func (t *Thread[T, PT]) Run() {
	t.logger.Debug("fast thread started")
	for t.step() {
	}
	t.logger.Debug("fast thread exited")
}

// Run the loop on a new goroutine locked to its own OS thread, configured per WithRealtime.
// The returned channel is closed once the loop has exited.
func (t *Thread[T, PT]) Start() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		cfg := rtsched.Default()
		if t.realtime != nil {
			cfg = *t.realtime
		}
		unlock, modified := rtsched.Apply(cfg, t.logger)
		if !modified {
			// An untouched OS thread can be handed back to the scheduler.
			defer unlock()
		}

		t.Run()
	}()
	return done
}

// One cycle of the loop. Returns false once the thread has exited.
func (t *Thread[T, PT]) step() bool {
	if t.sleepNs >= 0 {
		if t.sleepNs > 0 {
			t.sleeper.Sleep(t.sleepNs)
		} else {
			t.sleeper.Yield()
		}
	}
	t.sleepNs = defaultSleepNs

	if next := t.queue.Poll(); next != nil {
		t.apply(PT(next))
	}

	base := t.current.Base()
	switch command := base.Command; command {
	case CommandInitial, CommandHotIdle:
		t.sleepNs = hotIdleNs
		return true
	case CommandColdIdle:
		t.coldIdle(base)
		return true
	case CommandExit:
		t.worker.OnExit()
		return false
	default:
		if !t.worker.IsSubClassCommand(command) {
			panic(fmt.Sprintf("fast thread: unexpected command %s", command))
		}
	}

	if t.current != t.previous {
		t.worker.OnStateChange(t.previous, t.current, &t.cycle)
		t.previous = t.current
	}

	t.cycle.AttemptedIO = false
	t.worker.OnWork(t.current, &t.cycle)

	t.measure()
	return true
}

// Switch to next, polled this cycle.
func (t *Thread[T, PT]) apply(next PT) {
	if dump := next.ThreadDump(); dump != nil {
		t.cycle.Dump = dump
	} else {
		t.cycle.Dump = &t.dummyDump
	}
	if logger := next.Base().Logger; logger != nil {
		t.cycle.Logger = logger
	} else {
		t.cycle.Logger = t.logger
	}
	t.cycle.Dump.Command.Store(uint32(next.Base().Command))

	// non-idle -> non-idle: previous is the old current, still retained by the queue
	// non-idle -> idle:     previous is a copy of the old current
	// idle     -> any:      previous unchanged
	if !t.current.Base().Command.IsIdle() {
		if next.Base().Command.IsIdle() {
			t.worker.OnIdle()
			t.preIdle = *t.current
			t.previous = PT(&t.preIdle)
			t.oldTsValid = false
			t.ignoreNextOverrun = true
		} else {
			t.previous = t.current
		}
	}
	t.current = next
	t.cycle.Logger.Debug("fast thread state applied", "command", next.Base().Command)
}

func (t *Thread[T, PT]) coldIdle(base *ThreadState) {
	if base.ColdGen == t.coldGen {
		t.sleepNs = hotIdleNs
		return
	}
	if base.ColdFutex == nil {
		panic("fast thread: cold idle state without a futex")
	}

	base.ColdFutex.Down()

	t.cycle.IsWarm = false
	t.warmupCycles = 0
	t.warmupConsecutiveInRange = 0
	t.measuredWarmupNs = 0
	t.sleepNs = -1
	t.coldGen = base.ColdGen
	t.oldTsValid = false
	t.ignoreNextOverrun = true
	t.cycle.Dump.ColdIdleEntries.Add(1)
	t.cycle.Logger.Debug("fast thread left cold idle", "coldGen", base.ColdGen)
}

// Time the cycle that just finished and choose the next sleep.
func (t *Thread[T, PT]) measure() {
	dump := t.cycle.Dump
	if t.timing.IsZero() {
		// Nothing to pace against.
		t.oldTsValid = false
		t.sleepNs = hotIdleNs
		return
	}

	now, err := t.clock.Now()
	if err != nil {
		t.oldTsValid = false
		t.sleepNs = t.timing.PeriodNs
		dump.TimingFallbacks.Add(1)
		return
	}
	if !t.oldTsValid {
		t.oldTsValid = true
		t.oldTs = now
		t.sleepNs = t.timing.PeriodNs
		t.ignoreNextOverrun = true
		return
	}

	cycleNs := now - t.oldTs
	t.oldTs = now
	dump.CycleSequence.Add(1)
	dump.LastCycleNs.Store(cycleNs)

	if !t.cycle.IsWarm && t.cycle.AttemptedIO {
		t.measuredWarmupNs += cycleNs
		if t.timing.WarmupNs <= cycleNs && cycleNs <= t.timing.UnderrunNs {
			t.warmupConsecutiveInRange++
		} else {
			t.warmupConsecutiveInRange = 0
		}
		t.warmupCycles++
		if t.warmupCycles >= maxWarmupCycles || t.warmupConsecutiveInRange >= minWarmupCycles {
			t.cycle.IsWarm = true
			dump.MeasuredWarmupNs.Store(t.measuredWarmupNs)
			dump.WarmupCycles.Store(t.warmupCycles)
			t.cycle.Logger.Debug("fast thread warm", "cycles", t.warmupCycles, "warmupNs", t.measuredWarmupNs)
		}
	}

	t.sleepNs = -1
	if !t.cycle.IsWarm {
		return
	}
	switch {
	case cycleNs > t.timing.UnderrunNs:
		dump.Underruns.Add(1)
		t.ignoreNextOverrun = true
	case cycleNs < t.timing.OverrunNs:
		if t.ignoreNextOverrun {
			t.ignoreNextOverrun = false
		} else {
			dump.Overruns.Add(1)
		}
		// Forces a minimum cycle time, for sinks that return early.
		t.sleepNs = t.timing.ForceNs - cycleNs
	default:
		t.ignoreNextOverrun = false
	}
}
