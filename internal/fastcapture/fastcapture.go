// Package fastcapture is the fast thread worker reading one source and
// delivering each period to up to MaxSinks sinks.
package fastcapture

import (
	"fmt"
	"math/bits"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/controlblock"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/statequeue"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

// FastCapture is the fastthread.Worker of a capture thread. Its fields are owned
// by the fast thread.
type FastCapture struct {
	source    audiodevice.AudioSourceDevice
	sourceGen uint32

	format     audiodevice.DeviceProperties
	frameCount int

	sinks    [MaxSinks]audiodevice.AudioSinkDevice
	cblks    [MaxSinks]*controlblock.ControlBlock
	sinkGens [MaxSinks]uint32
	sinkMask uint32
	sinksGen uint32

	// One period, frameCount * frame size.
	buf []byte

	dummyDump DumpState
}

type Thread = fastthread.Thread[State, *State]

func New() *FastCapture {
	return &FastCapture{}
}

func NewThread(queue *statequeue.StateQueue[State], opts ...fastthread.Option[State, *State]) *Thread {
	return fastthread.New(queue, New(), opts...)
}

func (f *FastCapture) IsSubClassCommand(command fastthread.Command) bool {
	switch command {
	case CommandRead, CommandWrite, CommandReadWrite:
		return true
	default:
		return false
	}
}

func (f *FastCapture) OnIdle() {
}

func (f *FastCapture) OnExit() {
	for mask := f.sinkMask; mask != 0; mask &= mask - 1 {
		f.unbindSink(bits.TrailingZeros32(mask))
	}
	if f.source != nil {
		audiodevice.DetachDevice(f.source)
		f.source = nil
	}
}

func (f *FastCapture) dump(current *State) *DumpState {
	if current.Dump != nil {
		return current.Dump
	}
	return &f.dummyDump
}

func (f *FastCapture) OnStateChange(previous, current *State, c *fastthread.Cycle) {
	dump := f.dump(current)
	format := f.format

	if current.SourceGen != f.sourceGen {
		if f.source != nil {
			audiodevice.DetachDevice(f.source)
		}
		f.source = current.Source
		f.sourceGen = current.SourceGen
		format = audiodevice.DeviceProperties{}
		if f.source != nil {
			audiodevice.AttachDevice(f.source)
			format = f.source.GetDeviceProperties()
		}
		c.Logger.Debug("capture source bound", "sourceGen", f.sourceGen, "format", format)
	}

	reconfigureSinks := current.SinksGen != f.sinksGen
	formatChanged := format != f.format
	if formatChanged || current.FrameCount != f.frameCount {
		f.format = format
		f.frameCount = current.FrameCount
		f.buf = nil
		if f.frameCount > 0 && f.format.IsValid() {
			f.buf = make([]byte, f.frameCount*f.format.FrameSize())
			*c.Timing = fastthread.NewTiming(f.frameCount, f.format.SampleRate)
		} else {
			*c.Timing = fastthread.Timing{}
		}
		dump.SampleRate.Store(uint32(f.format.SampleRate))
		dump.FrameCount.Store(uint32(f.frameCount))

		if formatChanged {
			// Every sink is checked against the new format.
			for mask := f.sinkMask; mask != 0; mask &= mask - 1 {
				f.unbindSink(bits.TrailingZeros32(mask))
			}
			reconfigureSinks = true
		}
		c.Logger.Debug("capture reconfigured", "format", f.format, "frameCount", f.frameCount, "periodNs", c.Timing.PeriodNs)
	}

	if reconfigureSinks {
		f.applySinks(current)
		f.sinksGen = current.SinksGen
	}
}

func (f *FastCapture) applySinks(current *State) {
	bound := f.sinkMask

	for removed := bound &^ current.SinkMask; removed != 0; removed &= removed - 1 {
		f.unbindSink(bits.TrailingZeros32(removed))
	}
	for added := current.SinkMask &^ bound; added != 0; added &= added - 1 {
		i := bits.TrailingZeros32(added)
		f.bindSink(i, &current.Sinks[i])
	}
	for kept := current.SinkMask & bound; kept != 0; kept &= kept - 1 {
		i := bits.TrailingZeros32(kept)
		if current.Sinks[i].Generation != f.sinkGens[i] {
			f.unbindSink(i)
			f.bindSink(i, &current.Sinks[i])
		}
	}
}

func (f *FastCapture) bindSink(i int, sink *Sink) {
	if i >= MaxSinks {
		panic(fmt.Sprintf("fastcapture: sink slot %d out of range", i))
	}
	if sink.Sink == nil {
		panic(fmt.Sprintf("fastcapture: sink %d is active without an endpoint", i))
	}
	if f.format.IsValid() {
		if props := sink.Sink.GetDeviceProperties(); props != f.format {
			panic(fmt.Sprintf("fastcapture: sink %d format %s does not match source format %s", i, props, f.format))
		}
	}
	audiodevice.AttachDevice(sink.Sink)
	f.sinks[i] = sink.Sink
	f.cblks[i] = sink.Cblk
	f.sinkGens[i] = sink.Generation
	f.sinkMask |= 1 << i
}

func (f *FastCapture) unbindSink(i int) {
	audiodevice.DetachDevice(f.sinks[i])
	f.sinks[i] = nil
	f.cblks[i] = nil
	f.sinkMask &^= 1 << i
}

func (f *FastCapture) OnWork(current *State, c *fastthread.Cycle) {
	dump := f.dump(current)
	command := current.Command
	if f.buf == nil {
		return
	}

	valid := 0
	if command&CommandRead != 0 && f.source != nil {
		dump.ReadSequence.Add(1)
		n, err := f.source.Read(f.buf, f.frameCount, 0)
		c.AttemptedIO = true
		if err != nil {
			dump.ReadErrors.Add(1)
			n = 0
		}
		n = max(0, min(n, f.frameCount))
		dump.FramesRead.Add(uint64(n))
		valid = n

		dump.Silenced.Store(current.Silenced)
		if current.Silenced {
			valid = 0
		}
	}

	if command&CommandWrite != 0 && f.sinkMask != 0 {
		if valid < f.frameCount {
			audiodevice.FillSilence(f.buf[valid*f.format.FrameSize():], f.format.Encoding)
		}
		for mask := f.sinkMask; mask != 0; mask &= mask - 1 {
			i := bits.TrailingZeros32(mask)
			n, err := f.sinks[i].Write(f.buf, f.frameCount)
			c.AttemptedIO = true
			if err != nil {
				dump.WriteErrors.Add(1)
				continue
			}
			dump.FramesWritten.Add(uint64(n))
			if f.cblks[i] != nil && n > 0 {
				f.cblks[i].Advance(n)
			}
		}
	}
}
