package device

import (
	"io"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

// A pacer blocks its caller until the wall clock has caught up with the frames
// moved so far, the way a hardware endpoint blocks until its buffer has room or data.
type pacer struct {
	sampleRate int
	start      time.Time
	frames     int64
}

func (p *pacer) wait(frames int) {
	if p.start.IsZero() {
		p.start = time.Now()
	}
	p.frames += int64(frames)
	due := p.start.Add(time.Duration(p.frames * int64(time.Second) / int64(p.sampleRate)))
	if d := time.Until(due); d > 0 {
		time.Sleep(d)
	} else if d < -100*time.Millisecond {
		// Too far behind to catch up; restart the timeline.
		p.start = time.Time{}
		p.frames = 0
	}
}

// Middle-man sink consuming frames no faster than real time.
//
// Wraps non-blocking sinks (files, pipes, dummies) so a fast thread writing to them
// is paced by the sink, as it would be by an audio device.
type PacedSinkDevice struct {
	sink audiodevice.AudioSinkDevice
	pacer
}

func NewPacedSinkDevice(sink audiodevice.AudioSinkDevice) *PacedSinkDevice {
	return &PacedSinkDevice{
		sink:  sink,
		pacer: pacer{sampleRate: sink.GetDeviceProperties().SampleRate},
	}
}

func (d *PacedSinkDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.sink.GetDeviceProperties()
}

func (d *PacedSinkDevice) Write(buf []byte, frameCount int) (int, error) {
	d.wait(frameCount)
	return d.sink.Write(buf, frameCount)
}

func (d *PacedSinkDevice) Attach() {
	audiodevice.AttachDevice(d.sink)
}

// Restarts the timeline, so the next write after a pause is not rushed.
func (d *PacedSinkDevice) Detach() {
	d.start = time.Time{}
	d.frames = 0
	audiodevice.DetachDevice(d.sink)
}

// Middle-man source producing frames no faster than real time.
type PacedSourceDevice struct {
	source audiodevice.AudioSourceDevice
	pacer
}

func NewPacedSourceDevice(source audiodevice.AudioSourceDevice) *PacedSourceDevice {
	return &PacedSourceDevice{
		source: source,
		pacer:  pacer{sampleRate: source.GetDeviceProperties().SampleRate},
	}
}

func (d *PacedSourceDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.source.GetDeviceProperties()
}

func (d *PacedSourceDevice) Read(buf []byte, frameCount int, timestampHint time.Duration) (int, error) {
	d.wait(frameCount)
	return d.source.Read(buf, frameCount, timestampHint)
}

func (d *PacedSourceDevice) Attach() {
	audiodevice.AttachDevice(d.source)
}

func (d *PacedSourceDevice) Detach() {
	d.start = time.Time{}
	d.frames = 0
	audiodevice.DetachDevice(d.source)
}

// Closes the wrapped sink, if it can be closed.
func (d *PacedSinkDevice) Close() error {
	if c, ok := d.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
