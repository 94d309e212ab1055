package resource

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/virtcam/virtcam/internal/metrics"
	"github.com/virtcam/virtcam/internal/run"
)

// AudioConfig describes the PulseAudio null sink acting as the virtual
// microphone. The sink's monitor source is what applications record from.
type AudioConfig struct {
	// SinkName is the PulseAudio sink_name, referenced by streams.
	SinkName string

	// SinkDescription is the human-readable device.description.
	SinkDescription string
}

// DefaultAudioConfig returns the stock virtual microphone configuration.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SinkName:        "virtmic",
		SinkDescription: "VirtualMic",
	}
}

// AudioGuard owns the null sink lifecycle. Sink modules are addressed by
// the module IDs PulseAudio assigns, collected fresh on every cleanup so
// sinks left over from earlier runs are removed too.
type AudioGuard struct {
	cfg     AudioConfig
	timings Timings
	runner  run.Runner
	killer  ProcessKiller
	logger  *slog.Logger

	mu    sync.Mutex
	state State
}

// NewAudioGuard returns a guard for the configured null sink.
func NewAudioGuard(cfg AudioConfig, timings Timings, runner run.Runner, killer ProcessKiller, logger *slog.Logger) *AudioGuard {
	return &AudioGuard{
		cfg:     cfg,
		timings: timings,
		runner:  runner,
		killer:  killer,
		logger:  logger,
		state:   StateNotSetup,
	}
}

// Family implements Guard.
func (g *AudioGuard) Family() string { return "audio" }

// Identity implements Guard.
func (g *AudioGuard) Identity() string { return g.cfg.SinkName }

// IsSetup implements Guard.
func (g *AudioGuard) IsSetup() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateReady
}

// Probe implements Guard. It asks the sound server, not the guard's flag.
func (g *AudioGuard) Probe(ctx context.Context) bool {
	return g.sinkExists(ctx)
}

// Setup implements Guard. An already-Ready guard is torn down and rebuilt.
func (g *AudioGuard) Setup(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateReady {
		g.logger.Info("audio sink already set up, rebuilding", "sink", g.cfg.SinkName)
	}

	g.state = StateCleaning
	g.cleanupLocked(ctx)

	g.state = StateLoading
	moduleID, err := g.loadLocked(ctx)
	if err != nil {
		g.state = StateNotSetup
		metrics.RecordResourceSetup("audio", string(PhaseLoad))
		return &SetupError{Family: "audio", Phase: PhaseLoad, Err: err}
	}

	sleepCtx(ctx, g.timings.ModuleSettle)

	g.state = StateVerifying
	if !g.sinkExists(ctx) {
		g.state = StateNotSetup
		metrics.RecordResourceSetup("audio", string(PhaseVerify))
		return &SetupError{
			Family: "audio",
			Phase:  PhaseVerify,
			Err:    fmt.Errorf("sink %s not listed after module load", g.cfg.SinkName),
		}
	}

	g.state = StateReady
	metrics.RecordResourceSetup("audio", "ok")
	metrics.SetResourceReady("audio", true)
	g.logger.Info("audio sink ready", "sink", g.cfg.SinkName, "module", moduleID)
	return nil
}

// Teardown implements Guard. Always best-effort, always ends NotSetup.
func (g *AudioGuard) Teardown(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = StateCleaning
	g.cleanupLocked(ctx)
	g.state = StateNotSetup
	metrics.SetResourceReady("audio", false)
	g.logger.Info("audio sink torn down", "sink", g.cfg.SinkName)
}

// cleanupLocked evicts sink feeders then unloads every null-sink module
// carrying our sink name. Never fails.
func (g *AudioGuard) cleanupLocked(ctx context.Context) {
	g.killer.KillPattern(ctx, g.cfg.SinkName)
	sleepCtx(ctx, g.timings.CleanupDelay)

	ids := g.sinkModuleIDs(ctx)
	for _, id := range ids {
		res, err := g.run(ctx, "pactl", "unload-module", id)
		if err != nil || res.Code != 0 {
			g.logger.Warn("could not unload sink module", "module", id)
			continue
		}
		g.logger.Debug("sink module unloaded", "module", id)
	}
	if len(ids) > 0 {
		sleepCtx(ctx, g.timings.CleanupDelay)
	}
}

func (g *AudioGuard) loadLocked(ctx context.Context) (string, error) {
	res, err := g.run(ctx, "pactl", "load-module", "module-null-sink",
		"sink_name="+g.cfg.SinkName,
		"sink_properties=device.description="+g.cfg.SinkDescription,
	)
	if err != nil {
		return "", fmt.Errorf("pactl: %w", err)
	}
	if res.Code != 0 {
		return "", fmt.Errorf("pactl exited %d: %s", res.Code, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// sinkModuleIDs returns the IDs of loaded null-sink modules whose arguments
// reference our sink name.
func (g *AudioGuard) sinkModuleIDs(ctx context.Context) []string {
	res, err := g.run(ctx, "pactl", "list", "short", "modules")
	if err != nil || res.Code != 0 {
		return nil
	}
	var ids []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != "module-null-sink" {
			continue
		}
		if strings.Contains(line, "sink_name="+g.cfg.SinkName) {
			ids = append(ids, fields[0])
		}
	}
	return ids
}

func (g *AudioGuard) sinkExists(ctx context.Context) bool {
	res, err := g.run(ctx, "pactl", "list", "short", "sinks")
	if err != nil || res.Code != 0 {
		return false
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == g.cfg.SinkName {
			return true
		}
	}
	return false
}

func (g *AudioGuard) run(ctx context.Context, name string, args ...string) (run.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timings.CommandTimeout)
	defer cancel()
	return g.runner.Run(cctx, name, args...)
}
