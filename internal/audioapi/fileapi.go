package audioapi

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice/device"
)

// An API over .WAV files: every input path is an input device playing that file
// in a loop, every output path an output device recording into that file.
//
// Output devices must be closed (see device.PacedSinkDevice.Close) for the file
// to be written.
type FileAudioIODeviceAPI struct {
	logger *slog.Logger

	inputs  []string
	outputs []string

	outputProperties audiodevice.DeviceProperties
	expected         time.Duration
}

// Create a FileAudioIODeviceAPI. Recordings use outputProperties, and preallocate
// for expected duration.
func NewFileAudioIODeviceAPI(
	inputs []string,
	outputs []string,
	outputProperties audiodevice.DeviceProperties,
	expected time.Duration,
) *FileAudioIODeviceAPI {
	uuid := uuid.New()
	return &FileAudioIODeviceAPI{
		logger:           slog.Default().With("file api uuid", uuid),
		inputs:           inputs,
		outputs:          outputs,
		outputProperties: outputProperties,
		expected:         expected,
	}
}

// Lists only the files that can be decoded.
func (api *FileAudioIODeviceAPI) InputDevices() []AudioIODevice {
	devices := make([]AudioIODevice, 0, len(api.inputs))
	for i, path := range api.inputs {
		d, err := device.NewFileAudioInputDevice(path, true)
		if err != nil {
			api.logger.Warn("skipping unreadable input file", "path", path, "err", err)
			continue
		}
		devices = append(devices, AudioIODevice{
			ID:               i,
			Name:             path,
			DeviceProperties: d.GetDeviceProperties(),
		})
	}
	return devices
}

func (api *FileAudioIODeviceAPI) InitInputDeviceFromID(id AudioIODevice) (audiodevice.AudioSourceDevice, error) {
	if id.ID < 0 || id.ID >= len(api.inputs) {
		return nil, errNoDeviceWithID
	}
	d, err := device.NewFileAudioInputDevice(api.inputs[id.ID], true)
	if err != nil {
		return nil, fmt.Errorf("opening input %d: %w", id.ID, err)
	}
	return device.NewPacedSourceDevice(d), nil
}

func (api *FileAudioIODeviceAPI) InitDefaultInputDevice() (audiodevice.AudioSourceDevice, error) {
	if len(api.inputs) == 0 {
		return nil, errNoDefaultDevice
	}
	return api.InitInputDeviceFromID(AudioIODevice{ID: 0})
}

func (api *FileAudioIODeviceAPI) OutputDevices() []AudioIODevice {
	devices := make([]AudioIODevice, len(api.outputs))
	for i, path := range api.outputs {
		devices[i] = AudioIODevice{
			ID:               i,
			Name:             path,
			DeviceProperties: api.outputProperties,
		}
	}
	return devices
}

func (api *FileAudioIODeviceAPI) InitOutputDeviceFromID(id AudioIODevice) (audiodevice.AudioSinkDevice, error) {
	if id.ID < 0 || id.ID >= len(api.outputs) {
		return nil, errNoDeviceWithID
	}
	d, err := device.NewFileAudioOutputDevice(api.outputs[id.ID], api.outputProperties, api.expected)
	if err != nil {
		return nil, fmt.Errorf("opening output %d: %w", id.ID, err)
	}
	return device.NewPacedSinkDevice(d), nil
}

func (api *FileAudioIODeviceAPI) InitDefaultOutputDevice() (audiodevice.AudioSinkDevice, error) {
	if len(api.outputs) == 0 {
		return nil, errNoDefaultDevice
	}
	return api.InitOutputDeviceFromID(AudioIODevice{ID: 0})
}
