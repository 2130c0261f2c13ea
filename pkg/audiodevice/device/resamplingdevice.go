package device

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oov/audio/resampler"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

const resampleQuality = 10

type floatResampler interface {
	ProcessFloat32(channel int, in []float32, out []float32) (read int, written int)
}

// Middle-man source adapting another source to a different sample rate, channel
// count, or encoding. Useful to feed a fast mixer, which requires every track to
// match the sink's rate and channels.
//
// Mono is duplicated to stereo, stereo is averaged to mono.
//
// All buffers are allocated for a maximum frame count up front; a Read for more
// frames than that is served in part.
type ResamplingSourceDevice struct {
	logger *slog.Logger

	source           audiodevice.AudioSourceDevice
	sourceProperties audiodevice.DeviceProperties
	properties       audiodevice.DeviceProperties

	// nil when only the channel count or encoding differ.
	resampler floatResampler

	sourceBytes   []byte
	sourceSamples []float32
	planarIn      [][]float32
	planarOut     [][]float32

	// Interleaved converted samples not yet delivered.
	pending []float32

	sourceDone bool
}

// Create a ResamplingSourceDevice delivering the frames of source in the given properties.
// maxFrameCount is the largest Read the device serves in full.
func NewResamplingSourceDevice(
	source audiodevice.AudioSourceDevice,
	properties audiodevice.DeviceProperties,
	maxFrameCount int,
) (*ResamplingSourceDevice, error) {
	sourceProperties := source.GetDeviceProperties()
	if !sourceProperties.IsValid() || !properties.IsValid() {
		return nil, fmt.Errorf("cannot convert %s to %s", sourceProperties, properties)
	}
	if sourceProperties.NumChannels > 2 || properties.NumChannels > 2 {
		return nil, fmt.Errorf("cannot convert %s to %s: at most 2 channels supported", sourceProperties, properties)
	}
	if maxFrameCount <= 0 {
		return nil, fmt.Errorf("max frame count must be positive")
	}

	// Source frames needed for maxFrameCount output frames, with headroom for the filter.
	sourceFrames := maxFrameCount*sourceProperties.SampleRate/properties.SampleRate + 64
	outFrames := sourceFrames*properties.SampleRate/sourceProperties.SampleRate + 64

	d := &ResamplingSourceDevice{
		logger:           slog.Default().With("resampling device uuid", uuid.New()),
		source:           source,
		sourceProperties: sourceProperties,
		properties:       properties,
		sourceBytes:      make([]byte, sourceFrames*sourceProperties.FrameSize()),
		sourceSamples:    make([]float32, sourceFrames*sourceProperties.NumChannels),
		pending:          make([]float32, 0, (maxFrameCount+outFrames)*properties.NumChannels),
	}
	for range properties.NumChannels {
		d.planarIn = append(d.planarIn, make([]float32, sourceFrames))
		d.planarOut = append(d.planarOut, make([]float32, outFrames))
	}

	if sourceProperties.SampleRate != properties.SampleRate {
		d.resampler = resampler.New(properties.NumChannels, sourceProperties.SampleRate, properties.SampleRate, resampleQuality)
	}

	d.logger.Debug("converting source", "from", sourceProperties, "to", properties, "resampling", d.resampler != nil)
	return d, nil
}

func (d *ResamplingSourceDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

// The properties of the wrapped source.
func (d *ResamplingSourceDevice) GetSourceDeviceProperties() audiodevice.DeviceProperties {
	return d.sourceProperties
}

func (d *ResamplingSourceDevice) Read(buf []byte, frameCount int, timestampHint time.Duration) (int, error) {
	if len(buf) < frameCount*d.properties.FrameSize() {
		return 0, audiodevice.ErrShortBuffer
	}
	channels := d.properties.NumChannels
	maxPending := cap(d.pending) / channels

	for !d.sourceDone && len(d.pending)/channels < frameCount {
		wanted := frameCount - len(d.pending)/channels
		need := wanted*d.sourceProperties.SampleRate/d.properties.SampleRate + 1
		need = min(need, len(d.planarIn[0]))

		// Keep room for what the conversion can produce.
		if len(d.pending)/channels+len(d.planarOut[0]) > maxPending {
			break
		}

		n, err := d.source.Read(d.sourceBytes[:need*d.sourceProperties.FrameSize()], need, timestampHint)
		if err != nil {
			d.sourceDone = true
			if len(d.pending) == 0 {
				return 0, err
			}
			break
		}
		if n <= 0 {
			break
		}
		d.convert(n)
	}

	frames := min(frameCount, len(d.pending)/channels)
	if frames == 0 {
		if d.sourceDone {
			return 0, audiodevice.ErrEndOfData
		}
		return 0, nil
	}
	audiodevice.EncodeFloat32(buf, d.pending[:frames*channels], d.properties.Encoding)
	remaining := copy(d.pending, d.pending[frames*channels:])
	d.pending = d.pending[:remaining]
	return frames, nil
}

// Convert n frames from sourceBytes and append them to pending.
func (d *ResamplingSourceDevice) convert(n int) {
	inChannels := d.sourceProperties.NumChannels
	outChannels := d.properties.NumChannels
	samples := audiodevice.DecodeFloat32(d.sourceSamples[:n*inChannels], d.sourceBytes, d.sourceProperties.Encoding)
	frames := samples / inChannels

	// Deinterleave into the output channel layout.
	for i := range frames {
		switch {
		case inChannels == outChannels:
			for ch := range outChannels {
				d.planarIn[ch][i] = d.sourceSamples[i*inChannels+ch]
			}
		case inChannels == 1:
			for ch := range outChannels {
				d.planarIn[ch][i] = d.sourceSamples[i]
			}
		default:
			d.planarIn[0][i] = (d.sourceSamples[2*i] + d.sourceSamples[2*i+1]) / 2
		}
	}

	written := frames
	if d.resampler != nil {
		for ch := range outChannels {
			_, written = d.resampler.ProcessFloat32(ch, d.planarIn[ch][:frames], d.planarOut[ch])
		}
	} else {
		for ch := range outChannels {
			copy(d.planarOut[ch], d.planarIn[ch][:frames])
		}
	}

	for i := range written {
		for ch := range outChannels {
			d.pending = append(d.pending, d.planarOut[ch][i])
		}
	}
}

func (d *ResamplingSourceDevice) Attach() {
	audiodevice.AttachDevice(d.source)
}

func (d *ResamplingSourceDevice) Detach() {
	audiodevice.DetachDevice(d.source)
}
