package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/rtsched"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

var (
	errInvalidFormat     = errors.New("invalid mix format")
	errInvalidFrameCount = errors.New("framecount must be positive")
	errInvalidDuration   = errors.New("duration must be positive")
)

// The settings of one demo session, read from viper.
type Config struct {
	Format     audiodevice.DeviceProperties
	FrameCount int
	Duration   time.Duration

	Tracks        []string
	Output        string
	CaptureInput  string
	CaptureOutput string

	Realtime rtsched.Config
}

// Read the config file at configFilePath into viper, over the defaults.
// A missing file is not an error; the defaults are used.
func LoadConfig(configFilePath string) {
	utils.SetViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			panic(err)
		}
	}
}

// Build the session Config from viper, validating it.
func Current() (Config, error) {
	cfg := Config{
		Format: audiodevice.DeviceProperties{
			SampleRate:  viper.GetInt("samplerate"),
			NumChannels: viper.GetInt("channels"),
			Encoding:    audiodevice.EncodingPCM16,
		},
		FrameCount:    viper.GetInt("framecount"),
		Duration:      viper.GetDuration("duration"),
		Tracks:        viper.GetStringSlice("tracks"),
		Output:        viper.GetString("output"),
		CaptureInput:  viper.GetString("captureinput"),
		CaptureOutput: viper.GetString("captureoutput"),
		Realtime: rtsched.Config{
			CPU:      viper.GetInt("cpu"),
			Priority: viper.GetInt("priority"),
			Nice:     viper.GetInt("nice"),
		},
	}

	var errs []error
	if !cfg.Format.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %s", errInvalidFormat, cfg.Format))
	}
	if cfg.FrameCount <= 0 {
		errs = append(errs, errInvalidFrameCount)
	}
	if cfg.Duration <= 0 {
		errs = append(errs, errInvalidDuration)
	}
	return cfg, errors.Join(errs...)
}
