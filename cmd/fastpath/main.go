package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/cmd/fastpath/config"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/audioapi"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/controlblock"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastcapture"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastmixer"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/statequeue"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/threadcontrol"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice/device"
)

// Frames the capture pipe holds, in periods.
const pipePeriods = 8

// Open the mixer's tracks. With no track files configured, two dummy tones are mixed.
func openTracks(cfg config.Config) ([]audiodevice.AudioSourceDevice, error) {
	if len(cfg.Tracks) == 0 {
		return []audiodevice.AudioSourceDevice{
			device.NewSineAudioSourceDevice(cfg.Format, 440, 0.25),
			device.NewSineAudioSourceDevice(cfg.Format, 660, 0.25),
		}, nil
	}

	tracks := make([]audiodevice.AudioSourceDevice, 0, len(cfg.Tracks))
	for _, path := range cfg.Tracks {
		file, err := device.NewFileAudioInputDevice(path, true)
		if err != nil {
			return nil, fmt.Errorf("opening track %s: %w", path, err)
		}
		format := file.GetDeviceProperties()
		if format.SampleRate == cfg.Format.SampleRate && format.NumChannels == cfg.Format.NumChannels {
			tracks = append(tracks, file)
			continue
		}
		converted, err := device.NewResamplingSourceDevice(file, cfg.Format, cfg.FrameCount)
		if err != nil {
			return nil, fmt.Errorf("converting track %s: %w", path, err)
		}
		tracks = append(tracks, converted)
	}
	return tracks, nil
}

func openMixerSink(cfg config.Config) (audiodevice.AudioSinkDevice, error) {
	if cfg.Output == "" {
		return audioapi.NewDummyAudioIODeviceAPI(cfg.Format).InitDefaultOutputDevice()
	}
	api := audioapi.NewFileAudioIODeviceAPI(nil, []string{cfg.Output}, cfg.Format, cfg.Duration)
	return api.InitDefaultOutputDevice()
}

func openCaptureSource(cfg config.Config) (audiodevice.AudioSourceDevice, error) {
	var api audioapi.AudioIODeviceAPI
	if cfg.CaptureInput == "" {
		api = audioapi.NewDummyAudioIODeviceAPI(cfg.Format)
	} else {
		api = audioapi.NewFileAudioIODeviceAPI([]string{cfg.CaptureInput}, nil, cfg.Format, 0)
	}

	inputs := api.InputDevices()
	if len(inputs) == 0 {
		return nil, errors.New("no capture input device")
	}
	// The last dummy input is a tone, which makes for a more interesting recording.
	input := inputs[len(inputs)-1]
	slog.Debug("opening capture input", "device", input.String())
	return api.InitInputDeviceFromID(input)
}

func openCaptureSink(cfg config.Config, format audiodevice.DeviceProperties) (audiodevice.AudioSinkDevice, error) {
	if cfg.CaptureOutput == "" {
		return device.NewDummyAudioSinkDevice(format), nil
	}
	return device.NewFileAudioOutputDevice(cfg.CaptureOutput, format, cfg.Duration)
}

// Drain the capture pipe into sink until the pipe is closed and empty.
func consumeCapture(pipe *device.PipeDevice, cblk *controlblock.ControlBlock, sink audiodevice.AudioSinkDevice, frameCount int) error {
	source := pipe.Source()
	buf := make([]byte, frameCount*pipe.GetDeviceProperties().FrameSize())
	for {
		n, err := source.Read(buf, frameCount, 0)
		if errors.Is(err, audiodevice.ErrEndOfData) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading capture pipe: %w", err)
		}
		if n > 0 {
			if _, err := sink.Write(buf, n); err != nil {
				return fmt.Errorf("writing capture: %w", err)
			}
			continue
		}
		cblk.Wait(100 * time.Millisecond)
	}
}

func closeDevice(d any) error {
	if c, ok := d.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Sleep for d, or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Run the session: play, hot idle, cold idle, play again, exit.
func runSession(ctx context.Context, cfg config.Config, mixer *threadcontrol.MixerController, capture *threadcontrol.CaptureController) error {
	quarter := cfg.Duration / 4
	steps := []struct {
		name string
		set  func() error
		hold time.Duration
	}{
		{"start", func() error { return errors.Join(mixer.Start(), capture.Start()) }, quarter},
		{"hot idle", func() error { return errors.Join(mixer.HotIdle(), capture.HotIdle()) }, quarter / 2},
		{"cold idle", func() error { return errors.Join(mixer.ColdIdle(), capture.ColdIdle()) }, quarter / 2},
		{"resume", func() error { return errors.Join(mixer.Start(), capture.Start()) }, 2 * quarter},
	}

	for _, step := range steps {
		slog.Info("fast threads changing state", "step", step.name)
		if err := step.set(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		if err := errors.Join(mixer.Push(ctx, true), capture.Push(ctx, true)); err != nil {
			if ctx.Err() != nil {
				// Interrupted while waiting for the threads; the push still stands.
				break
			}
			return fmt.Errorf("%s: %w", step.name, err)
		}
		if err := pause(ctx, step.hold); err != nil {
			// Interrupted: still shut the threads down below.
			break
		}
	}
	return nil
}

// Push EXIT to both threads. Does not wait for the push to be observed:
// a thread parked in cold idle is woken by leaving cold idle.
func exitThreads(mixer *threadcontrol.MixerController, capture *threadcontrol.CaptureController) error {
	errMixer := mixer.Exit()
	errCapture := capture.Exit()
	return errors.Join(
		errMixer,
		errCapture,
		mixer.Push(context.Background(), false),
		capture.Push(context.Background(), false),
	)
}

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	flag.Parse()

	config.LoadConfig(*configFilePath)
	logFilePointer, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	cfg, err := config.Current()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.Info("starting fastpath",
		"format", cfg.Format,
		"frameCount", cfg.FrameCount,
		"period", cfg.Format.Duration(cfg.FrameCount),
		"duration", cfg.Duration,
	)

	// --------------------------------------------------------------------------------
	// Endpoints

	tracks, err := openTracks(cfg)
	if err != nil {
		slog.Error("could not open tracks", "err", err)
		os.Exit(1)
	}
	mixerSink, err := openMixerSink(cfg)
	if err != nil {
		slog.Error("could not open mixer output", "err", err)
		os.Exit(1)
	}

	captureSource, err := openCaptureSource(cfg)
	if err != nil {
		slog.Error("could not open capture input", "err", err)
		os.Exit(1)
	}
	captureFormat := captureSource.GetDeviceProperties()
	pipe, err := device.NewPipeDevice(captureFormat, pipePeriods*cfg.FrameCount)
	if err != nil {
		slog.Error("could not create capture pipe", "err", err)
		os.Exit(1)
	}
	captureSink, err := openCaptureSink(cfg, captureFormat)
	if err != nil {
		slog.Error("could not open capture output", "err", err)
		os.Exit(1)
	}
	var cblk controlblock.ControlBlock

	// --------------------------------------------------------------------------------
	// Controllers

	mixerQueue := statequeue.New[fastmixer.State]()
	mixer := threadcontrol.NewMixerController(mixerQueue, slog.Default())
	captureQueue := statequeue.New[fastcapture.State]()
	capture := threadcontrol.NewCaptureController(captureQueue, slog.Default())

	volumes := make([]*device.VolumeControl, len(tracks))
	err = errors.Join(
		mixer.SetSink(mixerSink),
		mixer.SetFrameCount(cfg.FrameCount),
		capture.SetSource(captureSource),
		capture.SetFrameCount(cfg.FrameCount),
	)
	for i, track := range tracks {
		slot, addErr := mixer.AddTrack(track, 1/float32(len(tracks)))
		if addErr != nil {
			err = errors.Join(err, addErr)
			continue
		}
		volumes[i] = device.NewVolumeControl()
		err = errors.Join(err, mixer.SetTrackVolume(slot, volumes[i]))
	}
	if _, addErr := capture.AddSink(pipe.Sink(), &cblk); addErr != nil {
		err = errors.Join(err, addErr)
	}
	if err != nil {
		slog.Error("could not configure fast threads", "err", err)
		os.Exit(1)
	}

	// --------------------------------------------------------------------------------
	// Threads

	mixerThread := fastmixer.NewThread(mixerQueue, fastthread.WithRealtime[fastmixer.State](cfg.Realtime))
	captureThread := fastcapture.NewThread(captureQueue, fastthread.WithRealtime[fastcapture.State](cfg.Realtime))
	mixerDone := mixerThread.Start()
	captureDone := captureThread.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumeCapture(pipe, &cblk, captureSink, cfg.FrameCount)
	})
	g.Go(func() error {
		sessionErr := runSession(gctx, cfg, mixer, capture)
		exitErr := exitThreads(mixer, capture)
		<-mixerDone
		<-captureDone

		// Nothing writes to the pipe any more; let the consumer drain it and return.
		pipe.Close()
		cblk.Invalidate()
		return errors.Join(sessionErr, exitErr)
	})

	err = g.Wait()
	err = errors.Join(err, closeDevice(mixerSink), closeDevice(captureSink))
	if err != nil {
		slog.Error("session ended with errors", "err", err)
	}

	fmt.Println("mixer:")
	fmt.Println(mixer.Dump().String())
	fmt.Println("capture:")
	fmt.Println(capture.Dump().String())
	fmt.Printf("capture pipe: %d frames, control block server %d\n", pipe.Written(), cblk.Server())

	if err != nil {
		os.Exit(1)
	}
}
