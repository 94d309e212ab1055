package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/virtcam/virtcam/internal/events"
	"github.com/virtcam/virtcam/internal/metrics"
	"github.com/virtcam/virtcam/internal/process"
)

// VideoStatus is a snapshot of the video controller.
type VideoStatus struct {
	Running  bool
	Source   string
	Fallback bool
	VMMode   bool
	Settings Settings
	PID      int
}

// VideoController streams catalog sources into the loopback device.
type VideoController struct {
	device  string
	proc    Process
	fetcher Fetcher
	bus     *events.Bus
	logger  *slog.Logger

	mu       sync.Mutex
	vmMode   bool
	current  string
	fallback bool
}

// NewVideo creates a video controller writing to device.
func NewVideo(device string, proc Process, fetcher Fetcher, bus *events.Bus, logger *slog.Logger) *VideoController {
	return &VideoController{
		device:  device,
		proc:    proc,
		fetcher: fetcher,
		bus:     bus,
		logger:  logger,
	}
}

// SetVMMode toggles the reduced-quality VM profile. Takes effect on the
// next Start.
func (c *VideoController) SetVMMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vmMode = enabled
	c.logger.Info("vm optimization mode", "enabled", enabled)
}

func (c *VideoController) settingsLocked() Settings {
	if c.vmMode {
		return VMSettings()
	}
	return DefaultSettings()
}

// Start begins streaming the named catalog source. A failed fetch or a
// producer that dies on launch degrades to the built-in blue frame source
// rather than failing the start outright.
func (c *VideoController) Start(ctx context.Context, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.proc.IsRunning() {
		return fmt.Errorf("%w: %s", ErrAlreadyStreaming, c.current)
	}
	src, ok := LookupVideo(source)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	settings := c.settingsLocked()
	usedFallback := false
	var argv []string

	switch src.Type {
	case TypeGenerated:
		argv = testPatternArgs(settings, c.vmMode, c.device)
	case TypeDownload:
		path, err := c.fetcher.Fetch(ctx, src.URL, src.File)
		if err != nil {
			c.logger.Warn("artifact unavailable, using fallback source", "source", source, "error", err)
			argv = fallbackVideoArgs(settings, c.device)
			usedFallback = true
		} else {
			argv = videoFileArgs(path, settings, c.vmMode, c.device)
		}
	default:
		return fmt.Errorf("source %q is not a video source", source)
	}

	err := c.proc.Start(argv)
	if err != nil && !usedFallback && !errors.Is(err, process.ErrAlreadyRunning) {
		c.logger.Warn("video producer failed, using fallback source", "source", source, "error", err)
		usedFallback = true
		err = c.proc.Start(fallbackVideoArgs(settings, c.device))
	}
	if err != nil {
		return fmt.Errorf("start video %q: %w", source, err)
	}

	if usedFallback {
		metrics.RecordStreamFallback("video")
	}
	c.current = source
	c.fallback = usedFallback
	publishState(c.bus, "video", source, true, usedFallback)
	pid, _ := c.proc.PID()
	c.logger.Info("video streaming", "source", source, "fallback", usedFallback, "pid", pid)
	return nil
}

// Stop ends the stream. Stopping an idle controller is a no-op.
func (c *VideoController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == "" && !c.proc.IsRunning() {
		return nil
	}
	err := c.proc.Stop()
	source := c.current
	c.current = ""
	c.fallback = false
	publishState(c.bus, "video", source, false, false)
	c.logger.Info("video stopped", "source", source)
	return err
}

// Restart stops and starts again. An empty source reuses the one that was
// streaming.
func (c *VideoController) Restart(ctx context.Context, source string) error {
	c.mu.Lock()
	if source == "" {
		source = c.current
	}
	c.mu.Unlock()
	if source == "" {
		return ErrNoPreviousSource
	}
	if err := c.Stop(); err != nil {
		c.logger.Warn("stop before restart", "error", err)
	}
	return c.Start(ctx, source)
}

// Download fetches a source's artifact without starting playback. Sources
// with nothing to download succeed immediately.
func (c *VideoController) Download(ctx context.Context, source string) error {
	src, ok := LookupVideo(source)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if src.Type != TypeDownload {
		return nil
	}
	_, err := c.fetcher.Fetch(ctx, src.URL, src.File)
	return err
}

// Status returns a snapshot.
func (c *VideoController) Status() VideoStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	pid, _ := c.proc.PID()
	return VideoStatus{
		Running:  c.proc.IsRunning(),
		Source:   c.current,
		Fallback: c.fallback,
		VMMode:   c.vmMode,
		Settings: c.settingsLocked(),
		PID:      pid,
	}
}
