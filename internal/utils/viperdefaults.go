package utils

import "github.com/spf13/viper"

// Set the viper defaults for the fastpath demo.
//
// The defaults run a short session mixing two dummy tones into a dummy sink, and capturing a
// dummy tone into a discarded pipe, without asking for real-time scheduling.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")

	viper.SetDefault("samplerate", 48000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("framecount", 480)
	viper.SetDefault("duration", "2s")

	// Paths to .WAV files. An empty list mixes two dummy tones.
	viper.SetDefault("tracks", []string{})
	// Path to the mixed .WAV file. Empty writes to a dummy sink.
	viper.SetDefault("output", "")
	viper.SetDefault("captureinput", "")
	viper.SetDefault("captureoutput", "")

	viper.SetDefault("cpu", -1)
	viper.SetDefault("priority", 0)
	viper.SetDefault("nice", 0)
}
