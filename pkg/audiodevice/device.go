package audiodevice

import (
	"errors"
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
)

var (
	// Returned by endpoints that have been closed or have no more data to give.
	ErrEndOfData = errors.New("end of audio data")

	// Returned when a buffer is too small to hold the requested number of frames.
	ErrShortBuffer = errors.New("buffer too small for requested frames")
)

// The sample encoding of PCM data moving through a device.
type Encoding int

const (
	EncodingInvalid Encoding = iota

	// Unsigned 8 bit PCM. Silence is mid-scale (0x80), not zero!
	EncodingPCM8

	// Signed 16 bit little endian PCM.
	EncodingPCM16

	// 32 bit little endian IEEE float PCM, nominally in [-1.0, 1.0].
	EncodingPCMFloat32
)

func (e Encoding) String() string {
	switch e {
	case EncodingPCM8:
		return "pcm8"
	case EncodingPCM16:
		return "pcm16"
	case EncodingPCMFloat32:
		return "pcmfloat32"
	default:
		return "invalid"
	}
}

// The number of bytes used to store a single sample of a single channel.
// Returns 0 for an invalid encoding.
func (e Encoding) BytesPerSample() int {
	switch e {
	case EncodingPCM8:
		return 1
	case EncodingPCM16:
		return 2
	case EncodingPCMFloat32:
		return 4
	default:
		return 0
	}
}

// The bit depth of the encoding, as understood by go-audio.
func (e Encoding) BitDepth() int {
	return 8 * e.BytesPerSample()
}

// DeviceProperties describe the format of the data a device produces or consumes.
//
// Two endpoints connected to one another (e.g. a capture source and the pipe
// it feeds) must have equal DeviceProperties.
type DeviceProperties struct {
	SampleRate  int
	NumChannels int
	Encoding    Encoding
}

// The size in bytes of a single frame, i.e. one sample for every channel.
func (p DeviceProperties) FrameSize() int {
	return p.NumChannels * p.Encoding.BytesPerSample()
}

// A DeviceProperties is valid if every field describes something a device could
// actually produce. The zero value is invalid.
func (p DeviceProperties) IsValid() bool {
	return p.SampleRate > 0 && p.NumChannels > 0 && p.Encoding.BytesPerSample() > 0
}

// The duration of frameCount frames at this sample rate.
func (p DeviceProperties) Duration(frameCount int) time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frameCount) * int64(time.Second) / int64(p.SampleRate))
}

// The go-audio representation of these properties, for use with the go-audio codecs.
func (p DeviceProperties) AudioFormat() *goaudio.Format {
	return &goaudio.Format{
		NumChannels: p.NumChannels,
		SampleRate:  p.SampleRate,
	}
}

func (p DeviceProperties) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", p.SampleRate, p.NumChannels, p.Encoding)
}

// Interface for audio source devices, e.g. microphones, files, or the read end of a pipe.
//
// Reads are non-owning: the caller supplies the buffer, the device fills it.
type AudioSourceDevice interface {
	GetDeviceProperties() DeviceProperties

	// Read up to frameCount frames into buf, which must hold at least
	// frameCount * FrameSize() bytes.
	//
	// Returns the number of frames actually read, which may be fewer than requested.
	// A non-nil error means no frames were read this call.
	//
	// timestampHint is the capture time the caller expects the first frame to
	// correspond to, or zero if unknown. Devices are free to ignore it.
	Read(buf []byte, frameCount int, timestampHint time.Duration) (int, error)
}

// Interface for audio sink devices, e.g. speakers, files, or the write end of a pipe.
type AudioSinkDevice interface {
	GetDeviceProperties() DeviceProperties

	// Write frameCount frames from buf, which holds frameCount * FrameSize() bytes.
	//
	// Returns the number of frames actually accepted, which may be fewer than given.
	// A non-nil error means no frames were accepted this call.
	Write(buf []byte, frameCount int) (int, error)
}

// Devices that want to know when a fast thread starts or stops using them
// may implement Attachable.
//
// Attach is called once when the device becomes bound to a fast thread
// (a generation change referencing it), and Detach once when that binding ends.
// Both are called from the real-time thread, so must not block.
type Attachable interface {
	Attach()
	Detach()
}

// Call Attach on the device if it implements Attachable.
func AttachDevice(device any) {
	if a, ok := device.(Attachable); ok {
		a.Attach()
	}
}

// Call Detach on the device if it implements Attachable.
func DetachDevice(device any) {
	if a, ok := device.(Attachable); ok {
		a.Detach()
	}
}
