package threadcontrol

import (
	"sync/atomic"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

var testFormat = audiodevice.DeviceProperties{
	SampleRate:  48000,
	NumChannels: 2,
	Encoding:    audiodevice.EncodingPCM16,
}

// Endpoints safe to use from a running fast thread.
type testSource struct {
	props audiodevice.DeviceProperties
	reads atomic.Int64
}

func newTestSource(props audiodevice.DeviceProperties) *testSource {
	return &testSource{props: props}
}

func (s *testSource) GetDeviceProperties() audiodevice.DeviceProperties {
	return s.props
}

func (s *testSource) Read(buf []byte, frameCount int, _ time.Duration) (int, error) {
	s.reads.Add(1)
	return frameCount, nil
}

type testSink struct {
	props  audiodevice.DeviceProperties
	writes atomic.Int64
}

func newTestSink(props audiodevice.DeviceProperties) *testSink {
	return &testSink{props: props}
}

func (s *testSink) GetDeviceProperties() audiodevice.DeviceProperties {
	return s.props
}

func (s *testSink) Write(buf []byte, frameCount int) (int, error) {
	s.writes.Add(1)
	return frameCount, nil
}

type fixedVolume float32

func (v fixedVolume) GetVolumeAdjustMagnitude() float32 {
	return float32(v)
}
