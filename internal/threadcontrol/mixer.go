package threadcontrol

import (
	"context"
	"fmt"
	"log/slog"
	"math/bits"
	"sync"

	"github.com/google/uuid"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastmixer"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/statequeue"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

type MixerController struct {
	mu     sync.Mutex
	logger *slog.Logger

	queue   *statequeue.StateQueue[fastmixer.State]
	draft   fastmixer.State
	command commandControl
	dump    fastmixer.DumpState
}

// Create the controller of the mixer thread reading from queue.
// The draft starts hot idle, with no sink and no tracks.
func NewMixerController(queue *statequeue.StateQueue[fastmixer.State], logger *slog.Logger) *MixerController {
	if logger == nil {
		logger = slog.Default()
	}
	c := &MixerController{
		logger: logger.With("mixer controller uuid", uuid.New()),
		queue:  queue,
	}
	c.command.init(&c.draft.ThreadState)
	c.draft.Dump = &c.dump
	c.draft.Logger = c.logger
	return c
}

func (c *MixerController) SetSink(sink audiodevice.AudioSinkDevice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.command.check(); err != nil {
		return err
	}
	if sink != nil {
		format := sink.GetDeviceProperties()
		if !format.IsValid() {
			return fmt.Errorf("%w: sink format %s is invalid", ErrFormatMismatch, format)
		}
		for mask := c.draft.TrackMask; mask != 0; mask &= mask - 1 {
			i := bits.TrailingZeros32(mask)
			if err := checkTrackFormat(c.draft.Tracks[i].Source, format); err != nil {
				return fmt.Errorf("track %d: %w", i, err)
			}
		}
	}

	c.draft.Sink = sink
	c.draft.SinkGen++
	return nil
}

func (c *MixerController) SetFrameCount(frameCount int) error {
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

// Add a track in the first free slot, returning the slot.
func (c *MixerController) AddTrack(source audiodevice.AudioSourceDevice, gain float32) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.command.check(); err != nil {
		return -1, err
	}
	if err := c.checkSource(source); err != nil {
		return -1, err
	}
	free := ^c.draft.TrackMask
	if free == 0 {
		return -1, ErrNoFreeTrackSlot
	}

	slot := bits.TrailingZeros32(free)
	track := &c.draft.Tracks[slot]
	*track = fastmixer.Track{
		Source:     source,
		Gain:       gain,
		Generation: track.Generation + 1,
	}
	c.draft.TrackMask |= 1 << slot
	c.draft.TracksGen++
	return slot, nil
}

// Replace the source and gain of an active track. The volume provider is kept.
func (c *MixerController) UpdateTrack(slot int, source audiodevice.AudioSourceDevice, gain float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	track, err := c.activeTrack(slot)
	if err != nil {
		return err
	}
	if err := c.checkSource(source); err != nil {
		return err
	}
	track.Source = source
	track.Gain = gain
	track.Generation++
	c.draft.TracksGen++
	return nil
}

// Set the volume provider of an active track, or nil to remove it.
func (c *MixerController) SetTrackVolume(slot int, volume fastmixer.VolumeProvider) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	track, err := c.activeTrack(slot)
	if err != nil {
		return err
	}
	track.Volume = volume
	track.Generation++
	c.draft.TracksGen++
	return nil
}

func (c *MixerController) RemoveTrack(slot int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	track, err := c.activeTrack(slot)
	if err != nil {
		return err
	}
	*track = fastmixer.Track{Generation: track.Generation + 1}
	c.draft.TrackMask &^= 1 << slot
	c.draft.TracksGen++
	return nil
}

func (c *MixerController) activeTrack(slot int) (*fastmixer.Track, error) {
	if err := c.command.check(); err != nil {
		return nil, err
	}
	if slot < 0 || slot >= fastmixer.MaxTracks || c.draft.TrackMask&(1<<slot) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTrackSlot, slot)
	}
	return &c.draft.Tracks[slot], nil
}

func (c *MixerController) checkSource(source audiodevice.AudioSourceDevice) error {
	if source == nil {
		return ErrNilEndpoint
	}
	if c.draft.Sink == nil {
		return nil
	}
	return checkTrackFormat(source, c.draft.Sink.GetDeviceProperties())
}

// Tracks must match the sink's rate and channels; the mixer converts encodings.
func checkTrackFormat(source audiodevice.AudioSourceDevice, sinkFormat audiodevice.DeviceProperties) error {
	props := source.GetDeviceProperties()
	if props.SampleRate != sinkFormat.SampleRate || props.NumChannels != sinkFormat.NumChannels || !props.IsValid() {
		return fmt.Errorf("%w: track %s, sink %s", ErrFormatMismatch, props, sinkFormat)
	}
	return nil
}

// Mix and write. Takes effect on the next Push.
func (c *MixerController) Start() error {
	return c.setCommand(fastmixer.CommandMixWrite)
}

func (c *MixerController) HotIdle() error {
	return c.setCommand(fastthread.CommandHotIdle)
}

func (c *MixerController) ColdIdle() error {
	return c.setCommand(fastthread.CommandColdIdle)
}

// Once pushed the thread ends, and every later request fails with ErrExited.
func (c *MixerController) Exit() error {
	return c.setCommand(fastthread.CommandExit)
}

func (c *MixerController) setCommand(command fastthread.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command.set(&c.draft.ThreadState, command)
}

// Publish the draft. If block is set, wait until the thread has picked it up
// or ctx is done.
func (c *MixerController) Push(ctx context.Context, block bool) error {
	c.mu.Lock()
	c.queue.Push(&c.draft)
	c.logger.Debug("pushed mixer state",
		"command", c.draft.Command,
		"tracks", bits.OnesCount32(c.draft.TrackMask),
		"tracksGen", c.draft.TracksGen,
		"sinkGen", c.draft.SinkGen,
		"frameCount", c.draft.FrameCount,
	)
	c.mu.Unlock()

	return waitAcked(ctx, c.queue, block)
}

// A best-effort copy of the thread's diagnostics.
func (c *MixerController) Dump() fastmixer.DumpSnapshot {
	return c.dump.Snapshot()
}
