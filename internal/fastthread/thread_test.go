package fastthread

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/futex"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/statequeue"
)

const commandWork = CommandSubclassBase

type testState struct {
	ThreadState
	FrameCount int
	SampleRate int
	Dump       *DumpState
}

func (s *testState) ThreadDump() *DumpState {
	return s.Dump
}

type testWorker struct {
	stateChanges   int
	previousFrames []int
	works          int
	idles          int
	exits          int
}

func (w *testWorker) IsSubClassCommand(command Command) bool {
	return command == commandWork
}

func (w *testWorker) OnIdle() {
	w.idles++
}

func (w *testWorker) OnExit() {
	w.exits++
}

func (w *testWorker) OnStateChange(previous, current *testState, c *Cycle) {
	w.stateChanges++
	w.previousFrames = append(w.previousFrames, previous.FrameCount)
	*c.Timing = NewTiming(current.FrameCount, current.SampleRate)
}

func (w *testWorker) OnWork(current *testState, c *Cycle) {
	w.works++
	c.AttemptedIO = true
}

type fakeClock struct {
	now int64
	err error
}

func (c *fakeClock) Now() (int64, error) {
	return c.now, c.err
}

type fakeSleeper struct {
	sleeps []int64
	yields int
}

func (s *fakeSleeper) Sleep(ns int64) {
	s.sleeps = append(s.sleeps, ns)
}

func (s *fakeSleeper) Yield() {
	s.yields++
}

type testThread struct {
	*Thread[testState, *testState]
	queue   *statequeue.StateQueue[testState]
	worker  *testWorker
	clock   *fakeClock
	sleeper *fakeSleeper
	dump    *DumpState
}

func newTestThread() *testThread {
	tt := &testThread{
		queue:   statequeue.New[testState](),
		worker:  &testWorker{},
		clock:   &fakeClock{},
		sleeper: &fakeSleeper{},
		dump:    &DumpState{},
	}
	tt.Thread = New(tt.queue, tt.worker,
		WithClock[testState](tt.clock),
		WithSleeper[testState](tt.sleeper),
	)
	return tt
}

func (tt *testThread) push(command Command, frameCount int) {
	tt.queue.Push(&testState{
		ThreadState: ThreadState{Command: command},
		FrameCount:  frameCount,
		SampleRate:  48000,
		Dump:        tt.dump,
	})
}

// Step once with the clock at now.
func (tt *testThread) stepAt(t *testing.T, now int64) {
	t.Helper()
	tt.clock.now = now
	require.True(t, tt.step())
}

func TestInitialStateHotIdles(t *testing.T) {
	tt := newTestThread()

	require.True(t, tt.step())
	assert.Equal(t, hotIdleNs, tt.sleepNs)
	assert.Zero(t, tt.worker.works)

	require.True(t, tt.step())
	assert.Equal(t, []int64{hotIdleNs}, tt.sleeper.sleeps)
}

func TestStateChangeOncePerState(t *testing.T) {
	tt := newTestThread()

	tt.push(commandWork, 480)
	tt.stepAt(t, 0)
	tt.stepAt(t, 10000000)
	tt.stepAt(t, 20000000)

	assert.Equal(t, 1, tt.worker.stateChanges)
	assert.Equal(t, 3, tt.worker.works)
	assert.Equal(t, []int{0}, tt.worker.previousFrames, "first previous is the initial state")
	assert.Equal(t, commandWork, tt.dump.Snapshot().Command)

	tt.push(commandWork, 240)
	tt.stepAt(t, 30000000)
	assert.Equal(t, 2, tt.worker.stateChanges)
	assert.Equal(t, []int{0, 480}, tt.worker.previousFrames)
}

func TestPreviousSurvivesIdle(t *testing.T) {
	tt := newTestThread()

	tt.push(commandWork, 480)
	tt.stepAt(t, 0)

	// Enough idle pushes to recycle every queue slot.
	for range 6 {
		tt.push(CommandHotIdle, 0)
		tt.stepAt(t, 0)
	}
	assert.Equal(t, 1, tt.worker.idles, "OnIdle only on the work to idle transition")

	tt.push(commandWork, 240)
	tt.stepAt(t, 0)

	assert.Equal(t, 2, tt.worker.stateChanges)
	assert.Equal(t, []int{0, 480}, tt.worker.previousFrames)
}

func TestExit(t *testing.T) {
	tt := newTestThread()

	tt.push(commandWork, 480)
	tt.stepAt(t, 0)

	tt.push(CommandExit, 0)
	assert.False(t, tt.step())
	assert.Equal(t, 1, tt.worker.exits)
}

func TestRunReturnsOnExit(t *testing.T) {
	tt := newTestThread()
	tt.push(CommandExit, 0)

	tt.Run()
	assert.Equal(t, 1, tt.worker.exits)
}

func TestUnknownCommandPanics(t *testing.T) {
	tt := newTestThread()
	tt.push(commandWork<<1, 480)

	assert.Panics(t, func() { tt.step() })
}

func TestTimingFallback(t *testing.T) {
	tt := newTestThread()

	tt.push(commandWork, 480)
	tt.stepAt(t, 0)

	tt.clock.err = errors.New("clock unavailable")
	tt.stepAt(t, 0)

	assert.Equal(t, int64(10000000), tt.sleepNs)
	assert.Equal(t, uint32(1), tt.dump.TimingFallbacks.Load())

	// The next good reading restarts timing as a first cycle.
	tt.clock.err = nil
	tt.stepAt(t, 50000000)
	assert.Equal(t, int64(10000000), tt.sleepNs)
	assert.Zero(t, tt.dump.Underruns.Load())
}

func TestTrivialTimingSleepsHotIdle(t *testing.T) {
	tt := newTestThread()

	tt.push(commandWork, 0)
	tt.stepAt(t, 0)
	tt.stepAt(t, 5000000)

	assert.Equal(t, hotIdleNs, tt.sleepNs)
	assert.Zero(t, tt.dump.Underruns.Load())
	assert.Zero(t, tt.dump.Overruns.Load())
}

func TestWarmupConsecutiveInRange(t *testing.T) {
	tt := newTestThread()

	tt.push(commandWork, 480)
	tt.stepAt(t, 0)
	tt.stepAt(t, 10000000)
	assert.False(t, tt.cycle.IsWarm)

	tt.stepAt(t, 20000000)
	assert.True(t, tt.cycle.IsWarm)
	assert.Equal(t, uint32(2), tt.dump.WarmupCycles.Load())
	assert.Equal(t, int64(20000000), tt.dump.MeasuredWarmupNs.Load())
}

func TestWarmupGivesUpAfterMaxCycles(t *testing.T) {
	tt := newTestThread()

	tt.push(commandWork, 480)
	now := int64(0)
	tt.stepAt(t, now)

	// 1ms cycles are never in range for a 10ms period.
	for i := 1; i < maxWarmupCycles; i++ {
		now += 1000000
		tt.stepAt(t, now)
		require.False(t, tt.cycle.IsWarm, "cycle %d", i)
	}
	now += 1000000
	tt.stepAt(t, now)
	assert.True(t, tt.cycle.IsWarm)
	assert.Equal(t, uint32(maxWarmupCycles), tt.dump.WarmupCycles.Load())
}

// Warm up a thread with a 1ms period (48 frames at 48kHz). Returns the clock reading.
func warmThread(t *testing.T, tt *testThread) int64 {
	t.Helper()
	tt.push(commandWork, 48)
	tt.stepAt(t, 0)
	tt.stepAt(t, 1000000)
	tt.stepAt(t, 2000000)
	require.True(t, tt.cycle.IsWarm)
	return 2000000
}

func TestOverrunForcing(t *testing.T) {
	tt := newTestThread()
	now := warmThread(t, tt)

	require.Equal(t, int64(500000), tt.timing.OverrunNs)
	require.Equal(t, int64(950000), tt.timing.ForceNs)

	// Underrun: the next overrun is ignored.
	now += 2000000
	tt.stepAt(t, now)
	require.Equal(t, uint32(1), tt.dump.Underruns.Load())
	require.True(t, tt.ignoreNextOverrun)

	for range 3 {
		now += 100000
		tt.stepAt(t, now)
		assert.Equal(t, int64(850000), tt.sleepNs)
	}
	assert.Equal(t, uint32(2), tt.dump.Overruns.Load())
	assert.Equal(t, int64(100000), tt.dump.LastCycleNs.Load())
}

func TestColdIdleIsIdempotent(t *testing.T) {
	tt := newTestThread()
	cold := &futex.Futex{}
	cold.Store(1)

	state := testState{
		ThreadState: ThreadState{Command: CommandColdIdle, ColdGen: 1, ColdFutex: cold},
		Dump:        tt.dump,
	}
	tt.queue.Push(&state)
	require.True(t, tt.step())

	assert.Equal(t, int32(0), cold.Load())
	assert.Equal(t, int64(-1), tt.sleepNs)
	assert.Equal(t, uint32(1), tt.dump.ColdIdleEntries.Load())

	// Same generation, polled or not: hot idle, no further decrement.
	require.True(t, tt.step())
	tt.queue.Push(&state)
	require.True(t, tt.step())

	assert.Equal(t, int32(0), cold.Load())
	assert.Equal(t, hotIdleNs, tt.sleepNs)
	assert.Equal(t, uint32(1), tt.dump.ColdIdleEntries.Load())
}

func TestColdIdleParksUntilUp(t *testing.T) {
	tt := newTestThread()
	cold := &futex.Futex{}

	tt.queue.Push(&testState{
		ThreadState: ThreadState{Command: CommandColdIdle, ColdGen: 1, ColdFutex: cold},
		Dump:        tt.dump,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		tt.step()
	}()

	require.Eventually(t, func() bool { return cold.Load() == -1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("cold idle returned before release")
	default:
	}

	cold.Up()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cold idle not released")
	}
	assert.Equal(t, uint32(1), tt.dump.ColdIdleEntries.Load())
}

// The first cycle after cold idle is exempt from underrun and overrun counting.
func TestFirstCycleAfterColdIdleExempt(t *testing.T) {
	tt := newTestThread()
	now := warmThread(t, tt)

	cold := &futex.Futex{}
	cold.Store(1)
	tt.queue.Push(&testState{
		ThreadState: ThreadState{Command: CommandColdIdle, ColdGen: 1, ColdFutex: cold},
		Dump:        tt.dump,
	})
	tt.stepAt(t, now)
	assert.False(t, tt.cycle.IsWarm)

	tt.push(commandWork, 48)
	now += 50000000
	tt.stepAt(t, now)
	assert.True(t, tt.ignoreNextOverrun)
	now += 100000
	tt.stepAt(t, now)

	assert.Zero(t, tt.dump.Underruns.Load())
	assert.Zero(t, tt.dump.Overruns.Load())
}
