package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/virtcam/virtcam/internal/logging"
)

// newUpCmd brings up both devices, starts the preferred sources and runs
// until interrupted, then stops producers and tears the devices down.
func newUpCmd(opts *Options) *cobra.Command {
	var noStream bool
	var watchPrefs bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Set up devices, stream preferred sources and run until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.GetLogger("main")
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res := a.sup.SetupAll(ctx)
			if !res.VideoOK && !res.AudioOK {
				return errors.Join(res.VideoErr, res.AudioErr)
			}
			if !res.AllOK() {
				logger.Warn("running with partial devices",
					"video", res.VideoOK, "audio", res.AudioOK)
			}

			if opts.MetricsAddr != "" {
				startMetricsServer(ctx, opts.MetricsAddr)
			}

			if !noStream {
				p := a.prefs.Get()
				a.video.SetVMMode(p.VMMode || opts.VMMode || a.vmDetected)
				a.audio.SetVolume(p.Volume)
				if res.VideoOK {
					if err := a.video.Start(ctx, p.VideoSelection); err != nil {
						logger.Error("video start failed", "source", p.VideoSelection, "error", err)
					}
				}
				if res.AudioOK {
					if err := a.audio.Start(ctx, p.AudioSelection); err != nil {
						logger.Error("audio start failed", "source", p.AudioSelection, "error", err)
					}
				}
			}
			if watchPrefs {
				if err := a.prefs.Watch(); err != nil {
					logger.Warn("preferences watch unavailable", "error", err)
				}
			}

			logger.Info("virtcam up", "video_ok", res.VideoOK, "audio_ok", res.AudioOK)
			<-ctx.Done()
			logger.Info("shutting down")

			if err := a.registry.StopAll(); err != nil {
				logger.Warn("some producers did not stop cleanly", "error", err)
			}
			// The signal context is done; give teardown its own bound.
			tctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			a.sup.TeardownAll(tctx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Set up devices without starting producers")
	cmd.Flags().BoolVar(&watchPrefs, "watch-prefs", false, "Reload preferences when the file changes")
	return cmd
}

func startMetricsServer(ctx context.Context, addr string) {
	logger := logging.GetLogger("main")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
}
