package threadcontrol

import (
	"context"
	"fmt"
	"log/slog"
	"math/bits"
	"sync"

	"github.com/google/uuid"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/controlblock"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastcapture"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/statequeue"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

const allSinks = uint32(1)<<fastcapture.MaxSinks - 1

type CaptureController struct {
	mu     sync.Mutex
	logger *slog.Logger

	queue   *statequeue.StateQueue[fastcapture.State]
	draft   fastcapture.State
	command commandControl
	dump    fastcapture.DumpState
}

func NewCaptureController(queue *statequeue.StateQueue[fastcapture.State], logger *slog.Logger) *CaptureController {
	if logger == nil {
		logger = slog.Default()
	}
	c := &CaptureController{
		logger: logger.With("capture controller uuid", uuid.New()),
		queue:  queue,
	}
	c.command.init(&c.draft.ThreadState)
	c.draft.Dump = &c.dump
	c.draft.Logger = c.logger
	return c
}

func (c *CaptureController) SetSource(source audiodevice.AudioSourceDevice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.command.check(); err != nil {
		return err
	}
	if source != nil {
		format := source.GetDeviceProperties()
		if !format.IsValid() {
			return fmt.Errorf("%w: source format %s is invalid", ErrFormatMismatch, format)
		}
		for mask := c.draft.SinkMask; mask != 0; mask &= mask - 1 {
			i := bits.TrailingZeros32(mask)
			if props := c.draft.Sinks[i].Sink.GetDeviceProperties(); props != format {
				return fmt.Errorf("%w: sink %d %s, source %s", ErrFormatMismatch, i, props, format)
			}
		}
	}

	c.draft.Source = source
	c.draft.SourceGen++
	return nil
}

func (c *CaptureController) SetFrameCount(frameCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.command.check(); err != nil {
		return err
	}
	if frameCount <= 0 {
		return ErrInvalidFrameCount
	}
	c.draft.FrameCount = frameCount
	return nil
}

// Deliver silence to the sinks while set. The source is still read.
func (c *CaptureController) SetSilenced(silenced bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.command.check(); err != nil {
		return err
	}
	c.draft.Silenced = silenced
	return nil
}

// Add a sink in the first free slot, returning the slot.
// cblk, if not nil, is advanced after every write to the sink.
func (c *CaptureController) AddSink(sink audiodevice.AudioSinkDevice, cblk *controlblock.ControlBlock) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.command.check(); err != nil {
		return -1, err
	}
	if sink == nil {
		return -1, ErrNilEndpoint
	}
	if c.draft.Source != nil {
		if props, format := sink.GetDeviceProperties(), c.draft.Source.GetDeviceProperties(); props != format {
			return -1, fmt.Errorf("%w: sink %s, source %s", ErrFormatMismatch, props, format)
		}
	}
	free := ^c.draft.SinkMask & allSinks
	if free == 0 {
		return -1, ErrNoFreeSinkSlot
	}

	slot := bits.TrailingZeros32(free)
	s := &c.draft.Sinks[slot]
	*s = fastcapture.Sink{
		Sink:       sink,
		Cblk:       cblk,
		Generation: s.Generation + 1,
	}
	c.draft.SinkMask |= 1 << slot
	c.draft.SinksGen++
	return slot, nil
}

func (c *CaptureController) RemoveSink(slot int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.command.check(); err != nil {
		return err
	}
	if slot < 0 || slot >= fastcapture.MaxSinks || c.draft.SinkMask&(1<<slot) == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSinkSlot, slot)
	}
	s := &c.draft.Sinks[slot]
	*s = fastcapture.Sink{Generation: s.Generation + 1}
	c.draft.SinkMask &^= 1 << slot
	c.draft.SinksGen++
	return nil
}

// Read and write. Takes effect on the next Push.
func (c *CaptureController) Start() error {
	return c.setCommand(fastcapture.CommandReadWrite)
}

func (c *CaptureController) HotIdle() error {
	return c.setCommand(fastthread.CommandHotIdle)
}

func (c *CaptureController) ColdIdle() error {
	return c.setCommand(fastthread.CommandColdIdle)
}

func (c *CaptureController) Exit() error {
	return c.setCommand(fastthread.CommandExit)
}

func (c *CaptureController) setCommand(command fastthread.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command.set(&c.draft.ThreadState, command)
}

func (c *CaptureController) Push(ctx context.Context, block bool) error {
	c.mu.Lock()
	c.queue.Push(&c.draft)
	c.logger.Debug("pushed capture state",
		"command", c.draft.Command,
		"sinks", bits.OnesCount32(c.draft.SinkMask),
		"sinksGen", c.draft.SinksGen,
		"sourceGen", c.draft.SourceGen,
		"frameCount", c.draft.FrameCount,
		"silenced", c.draft.Silenced,
	)
	c.mu.Unlock()

	return waitAcked(ctx, c.queue, block)
}

func (c *CaptureController) Dump() fastcapture.DumpSnapshot {
	return c.dump.Snapshot()
}
