package device

import (
	"math"
	"sync/atomic"
)

// A volume a user can change while a fast mixer is using it.
//
// VolumeControl is a fastmixer.VolumeProvider: the mixer reads it every cycle,
// so changes are heard within one period, without pushing a new state.
type VolumeControl struct {
	// math.Float32bits of the magnitude.
	bits atomic.Uint32
}

// A VolumeControl at natural scaling (1.0).
func NewVolumeControl() *VolumeControl {
	v := &VolumeControl{}
	v.SetVolumeAdjustMagnitude(1.0)
	return v
}

// Set the volumeAdjustMagnitude to a new value. Negative values are taken as 0.0.
// 0.0 means muted, 1.0 is natural scaling, technically uncapped but
// the mix clips if values are made too large.
func (v *VolumeControl) SetVolumeAdjustMagnitude(volumeAdjustMagnitude float32) {
	if volumeAdjustMagnitude < 0.0 || math.IsNaN(float64(volumeAdjustMagnitude)) {
		volumeAdjustMagnitude = 0.0
	}
	v.bits.Store(math.Float32bits(volumeAdjustMagnitude))
}

// Get the current volumeAdjustMagnitude. Safe to call from a fast thread.
func (v *VolumeControl) GetVolumeAdjustMagnitude() float32 {
	return math.Float32frombits(v.bits.Load())
}
