package fastthread

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// DumpState holds the diagnostics counters of a fast thread.
//
// It is allocated and owned by the control side, referenced from the pushed state,
// and written only by the fast thread. Readers (dump/inspection paths) get a
// best-effort view through Snapshot: each counter is read atomically, but the set of
// counters is not read as a unit.
type DumpState struct {
	Command          atomic.Uint32
	Underruns        atomic.Uint32
	Overruns         atomic.Uint32
	SampleRate       atomic.Uint32
	FrameCount       atomic.Uint32
	WarmupCycles     atomic.Uint32
	MeasuredWarmupNs atomic.Int64
	ColdIdleEntries  atomic.Uint32
	TimingFallbacks  atomic.Uint32
	CycleSequence    atomic.Uint64
	LastCycleNs      atomic.Int64
}

// A plain copy of a DumpState.
type DumpSnapshot struct {
	Command          Command
	Underruns        uint32
	Overruns         uint32
	SampleRate       uint32
	FrameCount       uint32
	WarmupCycles     uint32
	MeasuredWarmupNs int64
	ColdIdleEntries  uint32
	TimingFallbacks  uint32
	CycleSequence    uint64
	LastCycleNs      int64
}

func (d *DumpState) Snapshot() DumpSnapshot {
	return DumpSnapshot{
		Command:          Command(d.Command.Load()),
		Underruns:        d.Underruns.Load(),
		Overruns:         d.Overruns.Load(),
		SampleRate:       d.SampleRate.Load(),
		FrameCount:       d.FrameCount.Load(),
		WarmupCycles:     d.WarmupCycles.Load(),
		MeasuredWarmupNs: d.MeasuredWarmupNs.Load(),
		ColdIdleEntries:  d.ColdIdleEntries.Load(),
		TimingFallbacks:  d.TimingFallbacks.Load(),
		CycleSequence:    d.CycleSequence.Load(),
		LastCycleNs:      d.LastCycleNs.Load(),
	}
}

func (s DumpSnapshot) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Command:         %s\n", s.Command)
	fmt.Fprintf(&sb, "SampleRate:      %d\n", s.SampleRate)
	fmt.Fprintf(&sb, "FrameCount:      %d\n", s.FrameCount)
	fmt.Fprintf(&sb, "Cycles:          %d\n", s.CycleSequence)
	fmt.Fprintf(&sb, "LastCycle:       %v\n", time.Duration(s.LastCycleNs))
	fmt.Fprintf(&sb, "Underruns:       %d\n", s.Underruns)
	fmt.Fprintf(&sb, "Overruns:        %d\n", s.Overruns)
	fmt.Fprintf(&sb, "Warmup:          %d cycles, %v\n", s.WarmupCycles, time.Duration(s.MeasuredWarmupNs))
	fmt.Fprintf(&sb, "ColdIdleEntries: %d\n", s.ColdIdleEntries)
	fmt.Fprintf(&sb, "TimingFallbacks: %d\n", s.TimingFallbacks)
	return sb.String()
}
