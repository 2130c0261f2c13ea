package fastthread

// Timing constants of a fast thread, derived from its nominal period.
//
// All fields are nanoseconds. The zero Timing belongs to a trivial configuration
// (no frames or no sample rate), where a cycle degenerates to a plain sleep.
type Timing struct {
	// Nominal duration of one cycle.
	PeriodNs int64

	// A cycle longer than this is an underrun.
	UnderrunNs int64

	// A cycle shorter than this is an overrun.
	OverrunNs int64

	// Minimum cycle time enforced after an overrun.
	ForceNs int64

	// Shortest cycle that counts towards warm-up.
	WarmupNs int64
}

// Compute the timing constants for frameCount frames per cycle at sampleRate.
//
//	period   1.00
//	underrun 1.75
//	overrun  0.50
//	force    0.95
//	warmup   0.50
func NewTiming(frameCount int, sampleRate int) Timing {
	if frameCount <= 0 || sampleRate <= 0 {
		return Timing{}
	}
	frames := int64(frameCount)
	rate := int64(sampleRate)
	return Timing{
		PeriodNs:   frames * 1000000000 / rate,
		UnderrunNs: frames * 1750000000 / rate,
		OverrunNs:  frames * 500000000 / rate,
		ForceNs:    frames * 950000000 / rate,
		WarmupNs:   frames * 500000000 / rate,
	}
}

func (t Timing) IsZero() bool {
	return t == Timing{}
}
