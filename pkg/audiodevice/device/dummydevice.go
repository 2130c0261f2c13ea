package device

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

// An AudioSourceDevice producing silence, or a sine tone, never blocking.
//
// A minimal example of the architecture of an AudioSourceDevice, useful in testing.
type DummyAudioSourceDevice struct {
	properties audiodevice.DeviceProperties

	// Tone frequency in Hz, 0 for silence.
	frequency float64
	amplitude float32
	phase     float64

	// Frames left before ErrEndOfData, negative for endless.
	remaining int64

	scratch   []float32
	framesOut atomic.Uint64
}

// A source producing endless silence.
func NewDummyAudioSourceDevice(properties audiodevice.DeviceProperties) *DummyAudioSourceDevice {
	return &DummyAudioSourceDevice{
		properties: properties,
		remaining:  -1,
	}
}

// A source producing an endless sine tone on every channel.
func NewSineAudioSourceDevice(properties audiodevice.DeviceProperties, frequency float64, amplitude float32) *DummyAudioSourceDevice {
	d := NewDummyAudioSourceDevice(properties)
	d.frequency = frequency
	d.amplitude = amplitude
	return d
}

// End the data after frames more frames.
func (d *DummyAudioSourceDevice) LimitFrames(frames int) *DummyAudioSourceDevice {
	d.remaining = int64(frames)
	return d
}

func (d *DummyAudioSourceDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

func (d *DummyAudioSourceDevice) Read(buf []byte, frameCount int, _ time.Duration) (int, error) {
	if d.remaining == 0 {
		return 0, audiodevice.ErrEndOfData
	}
	frameSize := d.properties.FrameSize()
	if len(buf) < frameCount*frameSize {
		return 0, audiodevice.ErrShortBuffer
	}

	n := frameCount
	if d.remaining > 0 {
		n = int(min(int64(n), d.remaining))
		d.remaining -= int64(n)
	}

	if d.frequency == 0 {
		audiodevice.FillSilence(buf[:n*frameSize], d.properties.Encoding)
	} else {
		d.tone(buf, n)
	}
	d.framesOut.Add(uint64(n))
	return n, nil
}

func (d *DummyAudioSourceDevice) tone(buf []byte, frames int) {
	channels := d.properties.NumChannels
	if cap(d.scratch) < frames*channels {
		d.scratch = make([]float32, frames*channels)
	}
	samples := d.scratch[:frames*channels]

	step := 2 * math.Pi * d.frequency / float64(d.properties.SampleRate)
	for i := range frames {
		v := d.amplitude * float32(math.Sin(d.phase))
		for ch := range channels {
			samples[i*channels+ch] = v
		}
		d.phase = math.Mod(d.phase+step, 2*math.Pi)
	}
	audiodevice.EncodeFloat32(buf, samples, d.properties.Encoding)
}

// Total frames produced.
func (d *DummyAudioSourceDevice) Frames() uint64 {
	return d.framesOut.Load()
}

// An AudioSinkDevice that consumes all frames without any further actions,
// other than counting them.
//
// A minimal example of the architecture of an AudioSinkDevice, useful in testing.
type DummyAudioSinkDevice struct {
	properties audiodevice.DeviceProperties

	writes   atomic.Uint64
	framesIn atomic.Uint64
}

func NewDummyAudioSinkDevice(properties audiodevice.DeviceProperties) *DummyAudioSinkDevice {
	return &DummyAudioSinkDevice{
		properties: properties,
	}
}

func (d *DummyAudioSinkDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

func (d *DummyAudioSinkDevice) Write(buf []byte, frameCount int) (int, error) {
	if len(buf) < frameCount*d.properties.FrameSize() {
		return 0, audiodevice.ErrShortBuffer
	}
	d.writes.Add(1)
	d.framesIn.Add(uint64(frameCount))
	return frameCount, nil
}

func (d *DummyAudioSinkDevice) Writes() uint64 {
	return d.writes.Load()
}

func (d *DummyAudioSinkDevice) Frames() uint64 {
	return d.framesIn.Load()
}
