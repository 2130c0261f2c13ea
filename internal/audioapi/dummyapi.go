package audioapi

import (
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice/device"
)

const (
	dummySilenceID = iota
	dummySineID
)

// A dummy API that lists two input devices and one output device:
// - a silent input device
// - an input device playing a 440Hz tone
// - a dummy output device (consumes all frames and counts them)
//
// This API is intended to be used in testing and demos only!
type DummyAudioIODeviceAPI struct {
	properties audiodevice.DeviceProperties
}

func NewDummyAudioIODeviceAPI(properties audiodevice.DeviceProperties) DummyAudioIODeviceAPI {
	return DummyAudioIODeviceAPI{
		properties: properties,
	}
}

func (api DummyAudioIODeviceAPI) InputDevices() []AudioIODevice {
	return []AudioIODevice{
		{
			ID:               dummySilenceID,
			Name:             "DummyInput",
			DeviceProperties: api.properties,
		},
		{
			ID:               dummySineID,
			Name:             "DummySine",
			DeviceProperties: api.properties,
		},
	}
}

func (api DummyAudioIODeviceAPI) InitInputDeviceFromID(id AudioIODevice) (audiodevice.AudioSourceDevice, error) {
	switch id.ID {
	case dummySilenceID:
		return device.NewPacedSourceDevice(device.NewDummyAudioSourceDevice(api.properties)), nil
	case dummySineID:
		return device.NewPacedSourceDevice(device.NewSineAudioSourceDevice(api.properties, 440, 0.25)), nil
	default:
		return nil, errNoDeviceWithID
	}
}

func (api DummyAudioIODeviceAPI) InitDefaultInputDevice() (audiodevice.AudioSourceDevice, error) {
	return api.InitInputDeviceFromID(AudioIODevice{ID: dummySilenceID})
}

func (api DummyAudioIODeviceAPI) OutputDevices() []AudioIODevice {
	return []AudioIODevice{
		{
			ID:               0,
			Name:             "DummyOutput",
			DeviceProperties: api.properties,
		},
	}
}

func (api DummyAudioIODeviceAPI) InitOutputDeviceFromID(id AudioIODevice) (audiodevice.AudioSinkDevice, error) {
	if id.ID != 0 {
		return nil, errNoDeviceWithID
	}
	return device.NewPacedSinkDevice(device.NewDummyAudioSinkDevice(api.properties)), nil
}

func (api DummyAudioIODeviceAPI) InitDefaultOutputDevice() (audiodevice.AudioSinkDevice, error) {
	return api.InitOutputDeviceFromID(AudioIODevice{ID: 0})
}
