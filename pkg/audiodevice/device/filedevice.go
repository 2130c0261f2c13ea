package device

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

// --------------------------------------------------------------------------------
// FileAudioInputDevice

// Define an AudioSourceDevice that plays a .WAV file.
//
// The whole file is decoded when the device is created, so reads never touch the
// file system and are safe on a fast thread. 8 bit files are delivered as PCM8,
// anything wider as PCM16.
type FileAudioInputDevice struct {
	logger *slog.Logger
	uuid   uuid.UUID

	properties audiodevice.DeviceProperties
	loop       bool

	// Interleaved samples, already in the delivered encoding's range.
	data []int
	pos  int // samples
}

// Make a new FileAudioInputDevice from a .WAV file (on the audioFilePath).
// If loop is set the file repeats forever, otherwise reads end with ErrEndOfData.
func NewFileAudioInputDevice(audioFilePath string, loop bool) (*FileAudioInputDevice, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"file input device uuid", uuid,
	)

	f, err := os.Open(audioFilePath)
	if err != nil {
		logger.Error(
			"could not open audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		logger.Error(
			"could not decode audio file",
			"audioFile", audioFilePath,
			"err", decoder.Err(),
		)
		return nil, errors.New("error while decoding audio file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		logger.Error(
			"could not get full PCM buffer from audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}

	properties := audiodevice.DeviceProperties{
		SampleRate:  int(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		Encoding:    audiodevice.EncodingPCM16,
	}
	bitDepth := int(decoder.BitDepth)
	switch {
	case bitDepth == 8:
		properties.Encoding = audiodevice.EncodingPCM8
	case bitDepth > 16:
		for i, v := range buf.Data {
			buf.Data[i] = v >> (bitDepth - 16)
		}
	}
	if !properties.IsValid() {
		return nil, fmt.Errorf("unsupported audio file format %s", properties)
	}

	logger.Debug(
		"loaded audio file",
		"audioFile", audioFilePath,
		"format", properties,
		"bitDepth", bitDepth,
		"frames", len(buf.Data)/properties.NumChannels,
	)

	return &FileAudioInputDevice{
		logger:     logger,
		uuid:       uuid,
		properties: properties,
		loop:       loop,
		data:       buf.Data,
	}, nil
}

func (d *FileAudioInputDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

func (d *FileAudioInputDevice) Read(buf []byte, frameCount int, _ time.Duration) (int, error) {
	channels := d.properties.NumChannels
	if len(buf) < frameCount*d.properties.FrameSize() {
		return 0, audiodevice.ErrShortBuffer
	}
	if len(d.data) < channels {
		return 0, audiodevice.ErrEndOfData
	}

	frames := 0
	for frames < frameCount {
		if d.pos >= len(d.data) {
			if !d.loop {
				break
			}
			d.pos = 0
		}
		n := min(frameCount-frames, (len(d.data)-d.pos)/channels)
		if n == 0 {
			// A trailing partial frame.
			d.pos = len(d.data)
			continue
		}
		d.put(buf[frames*d.properties.FrameSize():], d.data[d.pos:d.pos+n*channels])
		d.pos += n * channels
		frames += n
	}

	if frames == 0 {
		return 0, audiodevice.ErrEndOfData
	}
	return frames, nil
}

func (d *FileAudioInputDevice) put(dst []byte, samples []int) {
	switch d.properties.Encoding {
	case audiodevice.EncodingPCM8:
		for i, v := range samples {
			dst[i] = byte(v)
		}
	case audiodevice.EncodingPCM16:
		for i, v := range samples {
			u := uint16(int16(v))
			dst[2*i] = byte(u)
			dst[2*i+1] = byte(u >> 8)
		}
	}
}

// Restart playback from the beginning of the file.
func (d *FileAudioInputDevice) Rewind() {
	d.pos = 0
}

// --------------------------------------------------------------------------------
// FileAudioOutputDevice

// Define an AudioSinkDevice that records into a .WAV file.
//
// Writes only append to memory; the file is written when the device is closed,
// so writes never touch the file system. The file is only valid once closed.
type FileAudioOutputDevice struct {
	logger *slog.Logger
	uuid   uuid.UUID

	properties audiodevice.DeviceProperties
	encoder    *wav.Encoder
	fileHandle *os.File

	data   []int
	closed atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// Create a new FileAudioOutputDevice that records PCM8 or PCM16 frames to a .WAV file at the
// specified path. expected is a hint of how long the recording will be, used to preallocate.
func NewFileAudioOutputDevice(
	audioFilePath string,
	properties audiodevice.DeviceProperties,
	expected time.Duration,
) (*FileAudioOutputDevice, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"file output device uuid", uuid,
	)

	if !properties.IsValid() || properties.Encoding == audiodevice.EncodingPCMFloat32 {
		return nil, fmt.Errorf("unsupported audio file format %s", properties)
	}

	f, err := os.Create(audioFilePath)
	if err != nil {
		logger.Error(
			"could not open audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}

	encoder := wav.NewEncoder(f, properties.SampleRate, properties.Encoding.BitDepth(), properties.NumChannels, 1)

	logger.Debug(
		"created audio file",
		"audioFile", audioFilePath,
		"format", properties,
	)

	samples := int(expected.Seconds()*float64(properties.SampleRate)) * properties.NumChannels
	return &FileAudioOutputDevice{
		logger:     logger,
		uuid:       uuid,
		properties: properties,
		encoder:    encoder,
		fileHandle: f,
		data:       make([]int, 0, max(samples, 0)),
	}, nil
}

func (d *FileAudioOutputDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

// Must not be called concurrently with Close.
func (d *FileAudioOutputDevice) Write(buf []byte, frameCount int) (int, error) {
	if d.closed.Load() {
		return 0, audiodevice.ErrEndOfData
	}
	samples := frameCount * d.properties.NumChannels
	if len(buf) < frameCount*d.properties.FrameSize() {
		return 0, audiodevice.ErrShortBuffer
	}

	switch d.properties.Encoding {
	case audiodevice.EncodingPCM8:
		for _, b := range buf[:samples] {
			d.data = append(d.data, int(b))
		}
	case audiodevice.EncodingPCM16:
		for i := range samples {
			d.data = append(d.data, int(int16(uint16(buf[2*i])|uint16(buf[2*i+1])<<8)))
		}
	}
	return frameCount, nil
}

// Frames recorded so far.
func (d *FileAudioOutputDevice) Frames() int {
	return len(d.data) / d.properties.NumChannels
}

// Write the recording to the file and close it.
// Call only once nothing writes to the device any more.
func (d *FileAudioOutputDevice) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		buf := &goaudio.IntBuffer{
			Format:         d.properties.AudioFormat(),
			Data:           d.data,
			SourceBitDepth: d.properties.Encoding.BitDepth(),
		}
		d.closeErr = errors.Join(
			d.encoder.Write(buf),
			d.encoder.Close(),
			d.fileHandle.Sync(),
			d.fileHandle.Close(),
		)
		if d.closeErr != nil {
			d.logger.Error("error while writing audio file", "err", d.closeErr)
			return
		}
		d.logger.Debug("audio file written", "frames", d.Frames())
	})
	return d.closeErr
}
