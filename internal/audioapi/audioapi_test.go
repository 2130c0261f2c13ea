package audioapi

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

var stereo16 = audiodevice.DeviceProperties{
	SampleRate:  48000,
	NumChannels: 2,
	Encoding:    audiodevice.EncodingPCM16,
}

func TestDummyAPI(t *testing.T) {
	api := NewDummyAudioIODeviceAPI(stereo16)

	inputs := api.InputDevices()
	require.Len(t, inputs, 2)
	for _, input := range inputs {
		source, err := api.InitInputDeviceFromID(input)
		require.NoError(t, err)
		assert.Equal(t, stereo16, source.GetDeviceProperties())
	}

	_, err := api.InitInputDeviceFromID(AudioIODevice{ID: 7})
	assert.ErrorIs(t, err, errNoDeviceWithID)

	sink, err := api.InitDefaultOutputDevice()
	require.NoError(t, err)
	n, err := sink.Write(make([]byte, 48*stereo16.FrameSize()), 48)
	require.NoError(t, err)
	assert.Equal(t, 48, n)

	_, err = api.InitOutputDeviceFromID(AudioIODevice{ID: 1})
	assert.ErrorIs(t, err, errNoDeviceWithID)
}

func TestFileAPIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	missing := filepath.Join(t.TempDir(), "missing.wav")

	recorder := NewFileAudioIODeviceAPI(nil, []string{path}, stereo16, time.Second)
	_, err := recorder.InitDefaultInputDevice()
	assert.ErrorIs(t, err, errNoDefaultDevice)

	outputs := recorder.OutputDevices()
	require.Len(t, outputs, 1)
	assert.Equal(t, path, outputs[0].Name)

	sink, err := recorder.InitOutputDeviceFromID(outputs[0])
	require.NoError(t, err)
	buf := make([]byte, 480*stereo16.FrameSize())
	for i := range buf {
		buf[i] = byte(i)
	}
	_, err = sink.Write(buf, 480)
	require.NoError(t, err)
	require.NoError(t, sink.(io.Closer).Close())

	player := NewFileAudioIODeviceAPI([]string{missing, path}, nil, stereo16, 0)
	inputs := player.InputDevices()
	require.Len(t, inputs, 1, "unreadable files are not listed")
	assert.Equal(t, 1, inputs[0].ID)
	assert.Equal(t, stereo16, inputs[0].DeviceProperties)

	source, err := player.InitInputDeviceFromID(inputs[0])
	require.NoError(t, err)
	got := make([]byte, len(buf))
	n, err := source.Read(got, 480, 0)
	require.NoError(t, err)
	assert.Equal(t, 480, n)
	assert.Equal(t, buf, got)

	_, err = player.InitDefaultOutputDevice()
	assert.ErrorIs(t, err, errNoDefaultDevice)
}

func TestAudioIODeviceString(t *testing.T) {
	s := AudioIODevice{ID: 3, Name: "DummyInput", DeviceProperties: stereo16}.String()
	assert.Contains(t, s, "ID:          3")
	assert.Contains(t, s, "Encoding:    pcm16")
}
