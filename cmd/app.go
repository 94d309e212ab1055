package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/virtcam/virtcam/internal/events"
	"github.com/virtcam/virtcam/internal/fetch"
	"github.com/virtcam/virtcam/internal/hostproc"
	"github.com/virtcam/virtcam/internal/logging"
	"github.com/virtcam/virtcam/internal/prefs"
	"github.com/virtcam/virtcam/internal/process"
	"github.com/virtcam/virtcam/internal/resource"
	"github.com/virtcam/virtcam/internal/run"
	"github.com/virtcam/virtcam/internal/stream"
	"github.com/virtcam/virtcam/internal/supervisor"
	"github.com/virtcam/virtcam/internal/synth"
)

// app wires the full component graph for a command invocation.
type app struct {
	opts     *Options
	bus      *events.Bus
	registry *process.Registry
	sup      *supervisor.Supervisor
	video    *stream.VideoController
	audio    *stream.AudioController
	synth    *synth.Synthesizer
	prefs    *prefs.Store
	fetcher  *fetch.Downloader
	audioDir string

	// vmDetected is the host probe result; it only ever enables VM mode.
	vmDetected bool
}

func newApp(opts *Options) (*app, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	videoDir := opts.VideoDir
	if videoDir == "" {
		videoDir = filepath.Join(home, "virtcam", "videos")
	}
	audioDir := opts.AudioDir
	if audioDir == "" {
		audioDir = filepath.Join(home, "virtcam", "audio")
	}
	prefsFile := opts.PrefsFile
	if prefsFile == "" {
		prefsFile = filepath.Join(home, "virtcam", "prefs.toml")
	}

	settings, err := processSettings(opts)
	if err != nil {
		return nil, err
	}
	timings, err := resourceTimings(opts)
	if err != nil {
		return nil, err
	}

	bus := events.New()
	runner := run.New()

	killer := hostproc.NewKiller(timings.CleanupDelay, logging.GetLogger("resource"))

	videoCfg := resource.VideoConfig{
		DeviceNr:    opts.VideoDeviceNr,
		DevicePath:  fmt.Sprintf("/dev/video%d", opts.VideoDeviceNr),
		CardLabel:   opts.VideoLabel,
		Width:       1280,
		Height:      720,
		PixelFormat: "YUYV",
		Sudo:        opts.VideoSudo,
	}
	audioCfg := resource.AudioConfig{
		SinkName:        opts.AudioSink,
		SinkDescription: opts.AudioDescription,
	}

	resourceLogger := logging.GetLogger("resource")
	videoGuard := resource.NewVideoGuard(videoCfg, timings, runner, killer, resourceLogger)
	audioGuard := resource.NewAudioGuard(audioCfg, timings, runner, killer, resourceLogger)
	sup := supervisor.New(videoGuard, audioGuard, bus, resourceLogger)

	registry := process.NewRegistry(logging.GetLogger("process"))
	videoProc := process.New("video-stream", settings, logging.GetLogger("process"))
	audioProc := process.New("audio-stream", settings, logging.GetLogger("process"))
	for _, p := range []*process.Managed{videoProc, audioProc} {
		p.SetStateChangeCallback(publishProcessState(bus))
		registry.Register(p)
	}

	fetcher := fetch.New(videoDir, bus, logging.GetLogger("stream"))
	synthesizer := synth.New(runner, bus, logging.GetLogger("synth"))

	streamLogger := logging.GetLogger("stream")
	video := stream.NewVideo(videoCfg.DevicePath, videoProc, fetcher, bus, streamLogger)
	audio := stream.NewAudio(audioCfg.SinkName, audioDir, audioProc, synthesizer, bus, streamLogger)

	vmDetected := stream.DetectVM(context.Background(), runner)
	if vmDetected {
		streamLogger.Info("virtual machine detected, using reduced quality profile")
	}
	if opts.VMMode || vmDetected {
		video.SetVMMode(true)
	}

	store := prefs.NewStore(prefsFile, bus, logging.GetLogger("main"))

	return &app{
		opts:       opts,
		bus:        bus,
		registry:   registry,
		sup:        sup,
		video:      video,
		audio:      audio,
		synth:      synthesizer,
		prefs:      store,
		fetcher:    fetcher,
		audioDir:   audioDir,
		vmDetected: vmDetected,
	}, nil
}

// close releases in-process resources. OS resources are the supervisor's
// business and are only torn down when a command asks for it.
func (a *app) close() {
	a.prefs.Close()
	a.bus.Close()
}

// publishProcessState forwards supervision state transitions to the bus.
// The bus dispatches asynchronously, so the callback never re-enters the
// handle.
func publishProcessState(bus *events.Bus) process.StateChangeCallback {
	return func(name string, oldState, newState process.State, pid int) {
		bus.Publish(events.ProcessStateEvent{
			Name:      name,
			OldState:  string(oldState),
			NewState:  string(newState),
			PID:       pid,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func processSettings(opts *Options) (process.Settings, error) {
	settings := process.DefaultSettings()
	var err error
	if settings.SettleDelay, err = time.ParseDuration(opts.StartDelay); err != nil {
		return settings, fmt.Errorf("invalid start-delay: %w", err)
	}
	if settings.StopTimeout, err = time.ParseDuration(opts.StopTimeout); err != nil {
		return settings, fmt.Errorf("invalid stop-timeout: %w", err)
	}
	if settings.KillTimeout, err = time.ParseDuration(opts.KillTimeout); err != nil {
		return settings, fmt.Errorf("invalid kill-timeout: %w", err)
	}
	return settings, nil
}

func resourceTimings(opts *Options) (resource.Timings, error) {
	timings := resource.DefaultTimings()
	var err error
	if timings.CleanupDelay, err = time.ParseDuration(opts.CleanupDelay); err != nil {
		return timings, fmt.Errorf("invalid cleanup-delay: %w", err)
	}
	timings.ModuleSettle = timings.CleanupDelay
	if opts.CleanupRetries > 0 {
		timings.MaxCleanupRetries = opts.CleanupRetries
	}
	return timings, nil
}
