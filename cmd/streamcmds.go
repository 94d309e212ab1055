package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/virtcam/virtcam/internal/events"
	"github.com/virtcam/virtcam/internal/logging"
	"github.com/virtcam/virtcam/internal/prefs"
	"github.com/virtcam/virtcam/internal/stream"
)

// newVideoCmd controls the video producer.
func newVideoCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Control the virtual camera stream",
	}

	start := &cobra.Command{
		Use:   "start <source>",
		Short: "Stream a catalog source into the camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.video.Start(cmd.Context(), args[0]); err != nil {
				return err
			}
			rememberVideo(a, args[0])
			waitForInterrupt(cmd)
			return a.video.Stop()
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List video sources",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, src := range stream.VideoSources() {
				printSource(cmd, src)
			}
		},
	}

	download := &cobra.Command{
		Use:   "download <source>",
		Short: "Fetch a source's media file without streaming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			unsub := a.bus.Subscribe(func(e events.DownloadProgressEvent) {
				if e.Done {
					fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d bytes\n", e.Downloaded)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\r%d/%d bytes", e.Downloaded, e.Total)
			})
			defer unsub()
			return a.video.Download(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(start, list, download)
	return cmd
}

// newAudioCmd controls the audio producer.
func newAudioCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Control the virtual microphone stream",
	}

	start := &cobra.Command{
		Use:   "start <source>",
		Short: "Stream a catalog source into the microphone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.audio.Start(cmd.Context(), args[0]); err != nil {
				return err
			}
			rememberAudio(a, args[0])
			waitForInterrupt(cmd)
			return a.audio.Stop()
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List audio sources",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, src := range stream.AudioSources() {
				printSource(cmd, src)
			}
		},
	}

	generate := &cobra.Command{
		Use:   "generate <source>",
		Short: "Generate a source's audio file without streaming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			return a.audio.Generate(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(start, list, generate)
	return cmd
}

func printSource(cmd *cobra.Command, src stream.Source) {
	fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-10s %s\n", src.Name, src.Type, src.Description)
}

// waitForInterrupt blocks until SIGINT or SIGTERM so the producer keeps
// feeding the device while the command runs in the foreground.
func waitForInterrupt(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

func rememberVideo(a *app, source string) {
	if err := a.prefs.Update(func(p *prefs.Preferences) { p.VideoSelection = source }); err != nil {
		logging.GetLogger("main").Warn("could not save preference", "error", err)
	}
}

func rememberAudio(a *app, source string) {
	if err := a.prefs.Update(func(p *prefs.Preferences) { p.AudioSelection = source }); err != nil {
		logging.GetLogger("main").Warn("could not save preference", "error", err)
	}
}
