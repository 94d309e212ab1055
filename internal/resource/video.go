package resource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/virtcam/virtcam/internal/metrics"
	"github.com/virtcam/virtcam/internal/run"
)

// VideoConfig describes the v4l2loopback device to create.
type VideoConfig struct {
	// DeviceNr is the /dev/videoN number to claim.
	DeviceNr int

	// DevicePath is the resulting device node, normally /dev/video<DeviceNr>.
	DevicePath string

	// CardLabel is the device name shown to applications.
	CardLabel string

	// Width, Height and PixelFormat pre-negotiate the device format so
	// consumers that open the device before any producer see a sane mode.
	Width       int
	Height      int
	PixelFormat string

	// Sudo prefixes privileged commands with sudo. Disable when running
	// as root or with the right capabilities.
	Sudo bool
}

// DefaultVideoConfig returns the stock virtual camera configuration.
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		DeviceNr:    10,
		DevicePath:  "/dev/video10",
		CardLabel:   "VirtualCam",
		Width:       1280,
		Height:      720,
		PixelFormat: "YUYV",
		Sudo:        true,
	}
}

// videoKillPatterns matches command lines of processes likely to be holding
// the device node or the loopback module.
func (c VideoConfig) killPatterns() []string {
	return []string{
		"ffmpeg " + c.DevicePath,
		c.DevicePath,
	}
}

// VideoGuard owns the v4l2loopback kernel module and its device node. All
// mutating module operations for the video family go through one instance.
type VideoGuard struct {
	cfg     VideoConfig
	timings Timings
	runner  run.Runner
	killer  ProcessKiller
	logger  *slog.Logger

	// probeDevice reports whether path exists and is a character device.
	// Injectable for tests.
	probeDevice func(path string) bool

	mu    sync.Mutex
	state State
}

// NewVideoGuard returns a guard for the configured loopback device.
func NewVideoGuard(cfg VideoConfig, timings Timings, runner run.Runner, killer ProcessKiller, logger *slog.Logger) *VideoGuard {
	return &VideoGuard{
		cfg:         cfg,
		timings:     timings,
		runner:      runner,
		killer:      killer,
		logger:      logger,
		probeDevice: isCharDevice,
		state:       StateNotSetup,
	}
}

func isCharDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Family implements Guard.
func (g *VideoGuard) Family() string { return "video" }

// Identity implements Guard.
func (g *VideoGuard) Identity() string { return g.cfg.DevicePath }

// IsSetup implements Guard.
func (g *VideoGuard) IsSetup() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateReady
}

// Probe implements Guard. It checks the OS, not the guard's own flag.
func (g *VideoGuard) Probe(ctx context.Context) bool {
	return g.probeDevice(g.cfg.DevicePath)
}

// Setup implements Guard. An already-Ready guard is torn down and rebuilt
// rather than trusted stale.
func (g *VideoGuard) Setup(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateReady {
		g.logger.Info("video device already set up, rebuilding", "device", g.cfg.DevicePath)
	}

	g.state = StateCleaning
	g.cleanupLocked(ctx)

	g.state = StateLoading
	if err := g.loadLocked(ctx); err != nil {
		g.state = StateNotSetup
		metrics.RecordResourceSetup("video", string(PhaseLoad))
		return &SetupError{Family: "video", Phase: PhaseLoad, Err: err}
	}

	sleepCtx(ctx, g.timings.ModuleSettle)

	g.state = StateVerifying
	if !g.probeDevice(g.cfg.DevicePath) {
		g.state = StateNotSetup
		metrics.RecordResourceSetup("video", string(PhaseVerify))
		return &SetupError{
			Family: "video",
			Phase:  PhaseVerify,
			Err:    fmt.Errorf("%s missing or not a character device after module load", g.cfg.DevicePath),
		}
	}

	g.initLocked(ctx)

	g.state = StateReady
	metrics.RecordResourceSetup("video", "ok")
	metrics.SetResourceReady("video", true)
	g.logger.Info("video device ready", "device", g.cfg.DevicePath, "label", g.cfg.CardLabel)
	return nil
}

// Teardown implements Guard. Always best-effort, always ends NotSetup.
func (g *VideoGuard) Teardown(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = StateCleaning
	g.cleanupLocked(ctx)
	g.state = StateNotSetup
	metrics.SetResourceReady("video", false)
	g.logger.Info("video device torn down", "device", g.cfg.DevicePath)
}

// cleanupLocked evicts device users then unloads the loopback module.
// Never fails; every sub-step failure is logged and skipped.
func (g *VideoGuard) cleanupLocked(ctx context.Context) {
	for _, pattern := range g.cfg.killPatterns() {
		g.killer.KillPattern(ctx, pattern)
	}
	sleepCtx(ctx, g.timings.CleanupDelay)

	if !g.moduleLoaded(ctx) {
		return
	}

	for attempt := 1; attempt <= g.timings.MaxCleanupRetries; attempt++ {
		res, err := g.run(ctx, g.privileged("modprobe", "-r", "v4l2loopback")...)
		if err != nil {
			g.logger.Warn("module unload tool failed", "error", err)
			return
		}
		if res.Code == 0 {
			g.logger.Debug("v4l2loopback unloaded", "attempt", attempt)
			return
		}
		if !isBusyError(res.Stderr) {
			g.logger.Warn("module unload failed", "stderr", strings.TrimSpace(res.Stderr))
			return
		}
		g.logger.Warn("v4l2loopback busy, evicting holders",
			"attempt", attempt, "retries", g.timings.MaxCleanupRetries)
		g.killer.ForceKillPattern(g.cfg.DevicePath)
		sleepCtx(ctx, g.timings.CleanupDelay)
	}
	g.logger.Warn("v4l2loopback still loaded after unload retries")
}

func (g *VideoGuard) loadLocked(ctx context.Context) error {
	args := g.privileged("modprobe", "v4l2loopback",
		"devices=1",
		fmt.Sprintf("video_nr=%d", g.cfg.DeviceNr),
		fmt.Sprintf("card_label=%s", g.cfg.CardLabel),
		"exclusive_caps=1",
		"max_buffers=2",
	)
	res, err := g.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("modprobe: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("modprobe exited %d: %s", res.Code, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// initLocked relaxes node permissions and pre-sets the device format.
// Both steps are conveniences: failures degrade, they do not fail setup.
func (g *VideoGuard) initLocked(ctx context.Context) {
	if res, err := g.run(ctx, g.privileged("chmod", "666", g.cfg.DevicePath)...); err != nil || res.Code != 0 {
		g.logger.Warn("could not relax device permissions", "device", g.cfg.DevicePath)
	}

	if _, err := g.runner.LookPath("v4l2-ctl"); err != nil {
		g.logger.Debug("v4l2-ctl not installed, skipping format init")
		return
	}
	fmtSpec := fmt.Sprintf("width=%d,height=%d,pixelformat=%s",
		g.cfg.Width, g.cfg.Height, g.cfg.PixelFormat)
	res, err := g.run(ctx, "v4l2-ctl", "-d", g.cfg.DevicePath, "--set-fmt-video="+fmtSpec)
	if err != nil || res.Code != 0 {
		g.logger.Debug("device format init failed", "device", g.cfg.DevicePath, "format", fmtSpec)
	}
}

func (g *VideoGuard) moduleLoaded(ctx context.Context) bool {
	res, err := g.run(ctx, "lsmod")
	if err != nil {
		return false
	}
	return strings.Contains(res.Stdout, "v4l2loopback")
}

func (g *VideoGuard) privileged(name string, args ...string) []string {
	if g.cfg.Sudo {
		return append([]string{"sudo", name}, args...)
	}
	return append([]string{name}, args...)
}

func (g *VideoGuard) run(ctx context.Context, argv ...string) (run.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timings.CommandTimeout)
	defer cancel()
	return g.runner.Run(cctx, argv[0], argv[1:]...)
}
