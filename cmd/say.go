package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// newSayCmd synthesizes arbitrary text to a WAV file.
func newSayCmd(opts *Options) *cobra.Command {
	var output string
	var voice string

	cmd := &cobra.Command{
		Use:   "say <text>...",
		Short: "Synthesize text to a WAV file",
		Long: `Synthesizes the given text with the best installed speech backend
(flite, pico2wave, espeak-ng, festival or espeak) and enhances the result.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			if output == "" {
				output = filepath.Join(a.audioDir, "say.wav")
			}
			text := strings.Join(args, " ")
			backend, err := a.synth.Speak(cmd.Context(), text, output, voice)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", output, backend)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output WAV file (default <audio-dir>/say.wav)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice hint, one of the catalog script names")
	return cmd
}

// newCacheCmd manages the artifact caches.
func newCacheCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage downloaded and generated artifacts",
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete downloaded videos and generated audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			deleted := a.audio.ClearCache()
			if err := a.fetcher.ClearCache(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared caches (%d audio files)\n", deleted)
			return nil
		},
	}

	cmd.AddCommand(clear)
	return cmd
}
