// Package cmd implements the virtcam command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/virtcam/virtcam/internal/config"
	"github.com/virtcam/virtcam/internal/logging"
)

// Options is the flat configuration surface. Values resolve with
// precedence CLI flags > VIRTCAM_* environment > TOML config file.
type Options struct {
	Config string

	// Video device
	VideoDeviceNr int    `toml:"video.device_nr" env:"VIDEO_DEVICE_NR"`
	VideoLabel    string `toml:"video.card_label" env:"VIDEO_CARD_LABEL"`
	VideoSudo     bool   `toml:"video.sudo" env:"VIDEO_SUDO"`

	// Audio sink
	AudioSink        string `toml:"audio.sink_name" env:"AUDIO_SINK_NAME"`
	AudioDescription string `toml:"audio.sink_description" env:"AUDIO_SINK_DESCRIPTION"`

	// Streaming
	VMMode bool `toml:"stream.vm_mode" env:"VM_MODE"`

	// Paths; empty means under the user's home directory.
	VideoDir  string `toml:"paths.video_dir" env:"VIDEO_DIR"`
	AudioDir  string `toml:"paths.audio_dir" env:"AUDIO_DIR"`
	PrefsFile string `toml:"paths.prefs_file" env:"PREFS_FILE"`

	// Process supervision timing
	StartDelay     string `toml:"timing.start_delay" env:"TIMING_START_DELAY"`
	StopTimeout    string `toml:"timing.stop_timeout" env:"TIMING_STOP_TIMEOUT"`
	KillTimeout    string `toml:"timing.kill_timeout" env:"TIMING_KILL_TIMEOUT"`
	CleanupDelay   string `toml:"timing.cleanup_delay" env:"TIMING_CLEANUP_DELAY"`
	CleanupRetries int    `toml:"timing.cleanup_retries" env:"TIMING_CLEANUP_RETRIES"`

	// Observability
	MetricsAddr string `toml:"metrics.addr" env:"METRICS_ADDR"`

	// Logging
	LoggingLevel    string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingProcess  string `toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingResource string `toml:"logging.resource" env:"LOGGING_RESOURCE"`
	LoggingStream   string `toml:"logging.stream" env:"LOGGING_STREAM"`
	LoggingSynth    string `toml:"logging.synth" env:"LOGGING_SYNTH"`
}

func registerFlags(cmd *cobra.Command, opts *Options) {
	f := cmd.PersistentFlags()
	f.StringVarP(&opts.Config, "config", "c", "virtcam.toml", "Path to configuration file")

	f.IntVar(&opts.VideoDeviceNr, "video-device-nr", 10, "v4l2loopback device number (/dev/videoN)")
	f.StringVar(&opts.VideoLabel, "video-label", "VirtualCam", "Camera name shown to applications")
	f.BoolVar(&opts.VideoSudo, "video-sudo", true, "Run privileged device commands through sudo")

	f.StringVar(&opts.AudioSink, "audio-sink", "virtmic", "PulseAudio null sink name")
	f.StringVar(&opts.AudioDescription, "audio-description", "VirtualMic", "Microphone name shown to applications")

	f.BoolVar(&opts.VMMode, "vm-mode", false, "Reduced quality profile for virtual machines")

	f.StringVar(&opts.VideoDir, "video-dir", "", "Video artifact cache directory (default ~/virtcam/videos)")
	f.StringVar(&opts.AudioDir, "audio-dir", "", "Generated audio directory (default ~/virtcam/audio)")
	f.StringVar(&opts.PrefsFile, "prefs-file", "", "Preferences file (default ~/virtcam/prefs.toml)")

	f.StringVar(&opts.StartDelay, "start-delay", "2s", "Settle window before a producer counts as running")
	f.StringVar(&opts.StopTimeout, "stop-timeout", "2s", "Grace period before SIGKILL on stop")
	f.StringVar(&opts.KillTimeout, "kill-timeout", "1s", "Wait for SIGKILL confirmation")
	f.StringVar(&opts.CleanupDelay, "cleanup-delay", "500ms", "Delay between device cleanup sub-steps")
	f.IntVar(&opts.CleanupRetries, "cleanup-retries", 3, "Busy-module unload attempts")

	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (empty disables)")

	f.StringVar(&opts.LoggingLevel, "logging-level", "info", "Global logging level (debug, info, warn, error)")
	f.StringVar(&opts.LoggingFormat, "logging-format", "text", "Logging format (text, json)")
	f.StringVar(&opts.LoggingProcess, "logging-process", "info", "Process supervision logging level")
	f.StringVar(&opts.LoggingResource, "logging-resource", "info", "Device resource logging level")
	f.StringVar(&opts.LoggingStream, "logging-stream", "info", "Stream controller logging level")
	f.StringVar(&opts.LoggingSynth, "logging-synth", "info", "Speech synthesis logging level")
}

// NewRootCmd builds the virtcam command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "virtcam",
		Short:         "Virtual camera and microphone supervisor",
		Long:          `virtcam creates a v4l2loopback camera and a PulseAudio microphone, feeds them with looped media, test patterns or synthesized speech, and supervises the ffmpeg producers behind them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(opts, cmd); err != nil {
				slog.Warn("Failed to load config", "error", err)
			}
			logging.Initialize(logging.Config{
				Level:  opts.LoggingLevel,
				Format: opts.LoggingFormat,
				Modules: map[string]string{
					"process":  opts.LoggingProcess,
					"resource": opts.LoggingResource,
					"stream":   opts.LoggingStream,
					"synth":    opts.LoggingSynth,
				},
			})
			return nil
		},
	}
	registerFlags(root, opts)

	root.AddCommand(
		newUpCmd(opts),
		newDevicesCmd(opts),
		newVideoCmd(opts),
		newAudioCmd(opts),
		newSayCmd(opts),
		newCacheCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
