package device

import (
	"bytes"
	"errors"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

var (
	stereo16 = audiodevice.DeviceProperties{SampleRate: 48000, NumChannels: 2, Encoding: audiodevice.EncodingPCM16}
	mono16   = audiodevice.DeviceProperties{SampleRate: 48000, NumChannels: 1, Encoding: audiodevice.EncodingPCM16}
	mono8    = audiodevice.DeviceProperties{SampleRate: 8000, NumChannels: 1, Encoding: audiodevice.EncodingPCM8}
)

func TestDummySourceSilenceAndLimit(t *testing.T) {
	source := NewDummyAudioSourceDevice(mono8).LimitFrames(150)
	buf := make([]byte, 100)

	n, err := source.Read(buf, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, bytes.Repeat([]byte{0x80}, 100), buf)

	n, err = source.Read(buf, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	_, err = source.Read(buf, 100, 0)
	assert.ErrorIs(t, err, audiodevice.ErrEndOfData)
	assert.Equal(t, uint64(150), source.Frames())
}

func TestSineSource(t *testing.T) {
	source := NewSineAudioSourceDevice(stereo16, 1000, 0.5)
	buf := make([]byte, 480*stereo16.FrameSize())

	n, err := source.Read(buf, 480, 0)
	require.NoError(t, err)
	require.Equal(t, 480, n)

	samples := make([]float32, 480*2)
	audiodevice.DecodeFloat32(samples, buf, stereo16.Encoding)
	peak := float32(0)
	for i := 0; i < len(samples); i += 2 {
		assert.Equal(t, samples[i], samples[i+1], "channels carry the same tone")
		peak = max(peak, samples[i])
	}
	assert.InDelta(t, 0.5, peak, 0.01)
}

func TestDummySinkCounts(t *testing.T) {
	sink := NewDummyAudioSinkDevice(stereo16)
	n, err := sink.Write(make([]byte, 240*4), 240)
	require.NoError(t, err)
	assert.Equal(t, 240, n)

	_, err = sink.Write(make([]byte, 10), 240)
	assert.ErrorIs(t, err, audiodevice.ErrShortBuffer)

	assert.Equal(t, uint64(1), sink.Writes())
	assert.Equal(t, uint64(240), sink.Frames())
}

func TestVolumeControl(t *testing.T) {
	v := NewVolumeControl()
	assert.Equal(t, float32(1), v.GetVolumeAdjustMagnitude())

	v.SetVolumeAdjustMagnitude(0.25)
	assert.Equal(t, float32(0.25), v.GetVolumeAdjustMagnitude())

	v.SetVolumeAdjustMagnitude(-3)
	assert.Zero(t, v.GetVolumeAdjustMagnitude())
}

func TestPipeWrapsAndNeverOverwrites(t *testing.T) {
	pipe, err := NewPipeDevice(mono8, 10)
	require.NoError(t, err)
	sink, source := pipe.Sink(), pipe.Source()

	in := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := sink.Write(in, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	out := make([]byte, 6)
	n, err = source.Read(out, 6, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, in[:6], out)

	// 2 frames pending, room for 8, wrapping around the end of the ring.
	n, err = sink.Write([]byte{9, 10, 11, 12, 13, 14, 15, 16, 17, 18}, 10)
	require.NoError(t, err)
	assert.Equal(t, 8, n, "short write when full")
	assert.Equal(t, 10, pipe.Available())

	out = make([]byte, 10)
	n, err = source.Read(out, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, []byte{7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, out)

	n, err = source.Read(out, 10, 0)
	assert.NoError(t, err)
	assert.Zero(t, n, "empty pipe reads nothing without blocking")
}

func TestPipeClose(t *testing.T) {
	pipe, err := NewPipeDevice(mono8, 4)
	require.NoError(t, err)

	_, err = pipe.Sink().Write([]byte{1, 2}, 2)
	require.NoError(t, err)
	pipe.Close()

	_, err = pipe.Sink().Write([]byte{3}, 1)
	assert.ErrorIs(t, err, audiodevice.ErrEndOfData)

	out := make([]byte, 4)
	n, err := pipe.Source().Read(out, 4, 0)
	require.NoError(t, err, "pending data still readable")
	assert.Equal(t, 2, n)

	_, err = pipe.Source().Read(out, 4, 0)
	assert.ErrorIs(t, err, audiodevice.ErrEndOfData)
}

func TestPipeConcurrent(t *testing.T) {
	pipe, err := NewPipeDevice(mono16, 64)
	require.NoError(t, err)
	const total = 100000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer pipe.Close()
		sink := pipe.Sink()
		buf := make([]byte, 2*7)
		written := 0
		for written < total {
			frames := min(7, total-written)
			for i := range frames {
				v := uint16(written + i)
				buf[2*i] = byte(v)
				buf[2*i+1] = byte(v >> 8)
			}
			n, err := sink.Write(buf, frames)
			if err != nil {
				return
			}
			if n == 0 {
				runtime.Gosched()
			}
			written += n
		}
	}()

	source := pipe.Source()
	buf := make([]byte, 2*5)
	expected := uint16(0)
	read := 0
	for {
		n, err := source.Read(buf, 5, 0)
		if errors.Is(err, audiodevice.ErrEndOfData) {
			break
		}
		require.NoError(t, err)
		if n == 0 {
			runtime.Gosched()
		}
		for i := range n {
			v := uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
			require.Equal(t, expected, v, "frame %d", read+i)
			expected++
		}
		read += n
	}
	wg.Wait()
	assert.Equal(t, total, read)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	output, err := NewFileAudioOutputDevice(path, stereo16, time.Second)
	require.NoError(t, err)

	source := NewSineAudioSourceDevice(stereo16, 440, 0.5)
	buf := make([]byte, 480*stereo16.FrameSize())
	for range 10 {
		n, err := source.Read(buf, 480, 0)
		require.NoError(t, err)
		_, err = output.Write(buf, n)
		require.NoError(t, err)
	}
	last := bytes.Clone(buf)
	require.NoError(t, output.Close())

	_, err = output.Write(buf, 480)
	assert.ErrorIs(t, err, audiodevice.ErrEndOfData)

	input, err := NewFileAudioInputDevice(path, false)
	require.NoError(t, err)
	assert.Equal(t, stereo16, input.GetDeviceProperties())

	read := 0
	for {
		n, err := input.Read(buf, 480, 0)
		if errors.Is(err, audiodevice.ErrEndOfData) {
			break
		}
		require.NoError(t, err)
		read += n
	}
	assert.Equal(t, 4800, read)
	assert.Equal(t, last, buf, "the last period survives the round trip")
}

func TestFileInputLoops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.wav")
	output, err := NewFileAudioOutputDevice(path, mono8, 0)
	require.NoError(t, err)
	_, err = output.Write([]byte{1, 2, 3, 4}, 4)
	require.NoError(t, err)
	require.NoError(t, output.Close())

	input, err := NewFileAudioInputDevice(path, true)
	require.NoError(t, err)
	assert.Equal(t, mono8, input.GetDeviceProperties())

	buf := make([]byte, 8)
	n, err := input.Read(buf, 8, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 1, 2, 3, 4}, buf)
}

func TestFileOutputRejectsFloat(t *testing.T) {
	props := stereo16
	props.Encoding = audiodevice.EncodingPCMFloat32
	_, err := NewFileAudioOutputDevice(filepath.Join(t.TempDir(), "f.wav"), props, 0)
	assert.Error(t, err)
}

func TestChannelConversionWithoutResampling(t *testing.T) {
	source := NewSineAudioSourceDevice(mono16, 1000, 0.5)
	converted, err := NewResamplingSourceDevice(source, stereo16, 480)
	require.NoError(t, err)
	assert.Equal(t, stereo16, converted.GetDeviceProperties())
	assert.Equal(t, mono16, converted.GetSourceDeviceProperties())

	buf := make([]byte, 480*stereo16.FrameSize())
	n, err := converted.Read(buf, 480, 0)
	require.NoError(t, err)
	assert.Equal(t, 480, n)

	samples := make([]float32, 960)
	audiodevice.DecodeFloat32(samples, buf, stereo16.Encoding)
	for i := 0; i < len(samples); i += 2 {
		require.Equal(t, samples[i], samples[i+1])
	}
}

func TestResamplingKeepsRate(t *testing.T) {
	src := mono16
	src.SampleRate = 24000
	source := NewSineAudioSourceDevice(src, 440, 0.5)
	converted, err := NewResamplingSourceDevice(source, stereo16, 480)
	require.NoError(t, err)

	buf := make([]byte, 480*stereo16.FrameSize())
	produced := 0
	for range 100 {
		n, err := converted.Read(buf, 480, 0)
		require.NoError(t, err)
		produced += n
	}

	// Two output frames for every source frame, give or take the filter delay.
	assert.InDelta(t, 2*float64(source.Frames()), float64(produced), 1000)
	assert.Greater(t, produced, 40000)
}

func TestResamplingEndOfData(t *testing.T) {
	source := NewDummyAudioSourceDevice(mono16).LimitFrames(100)
	converted, err := NewResamplingSourceDevice(source, stereo16, 480)
	require.NoError(t, err)

	buf := make([]byte, 480*stereo16.FrameSize())
	n, err := converted.Read(buf, 480, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	_, err = converted.Read(buf, 480, 0)
	assert.ErrorIs(t, err, audiodevice.ErrEndOfData)
}

func TestPacedSinkBlocks(t *testing.T) {
	sink := NewPacedSinkDevice(NewDummyAudioSinkDevice(stereo16))
	buf := make([]byte, 480*stereo16.FrameSize())

	start := time.Now()
	for range 5 {
		_, err := sink.Write(buf, 480)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}
