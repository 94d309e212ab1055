// Package hostproc finds and terminates host processes by command-line
// pattern. Resource guards use it to evict stale stream processes holding a
// virtual device before unloading the backing kernel module.
package hostproc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Proc is the slice of gopsutil's process API the killer needs.
type Proc interface {
	Cmdline() (string, error)
	Terminate() error
	Kill() error
}

// Lister enumerates host processes. Injectable for tests.
type Lister func() ([]Proc, error)

func gopsutilLister() ([]Proc, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]Proc, len(procs))
	for i, p := range procs {
		out[i] = p
	}
	return out, nil
}

// Killer terminates processes whose command line contains a pattern,
// escalating from SIGTERM to SIGKILL after a settle delay.
type Killer struct {
	list        Lister
	settleDelay time.Duration
	logger      *slog.Logger
}

// NewKiller creates a Killer backed by gopsutil.
func NewKiller(settleDelay time.Duration, logger *slog.Logger) *Killer {
	return &Killer{
		list:        gopsutilLister,
		settleDelay: settleDelay,
		logger:      logger,
	}
}

// NewKillerWithLister creates a Killer with a custom process lister.
func NewKillerWithLister(list Lister, settleDelay time.Duration, logger *slog.Logger) *Killer {
	return &Killer{list: list, settleDelay: settleDelay, logger: logger}
}

// FindByPattern returns processes whose command line contains pattern.
// Processes that vanish mid-scan are skipped.
func (k *Killer) FindByPattern(pattern string) []Proc {
	procs, err := k.list()
	if err != nil {
		k.logger.Warn("Failed to list host processes", "error", err)
		return nil
	}

	var found []Proc
	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil {
			continue // process may have exited
		}
		if strings.Contains(cmdline, pattern) {
			found = append(found, p)
		}
	}
	return found
}

// KillPattern terminates all processes matching pattern: graceful first,
// then SIGKILL for the ones still matching after the settle delay.
// Best-effort by design; individual failures are logged, never returned.
func (k *Killer) KillPattern(ctx context.Context, pattern string) {
	matches := k.FindByPattern(pattern)
	if len(matches) == 0 {
		k.logger.Debug("No processes matching pattern", "pattern", pattern)
		return
	}

	k.logger.Info("Terminating processes", "pattern", pattern, "count", len(matches))
	for _, p := range matches {
		if err := p.Terminate(); err != nil {
			k.logger.Debug("Terminate failed", "pattern", pattern, "error", err)
		}
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(k.settleDelay):
	}

	remaining := k.FindByPattern(pattern)
	if len(remaining) == 0 {
		return
	}

	k.logger.Warn("Force killing stubborn processes", "pattern", pattern, "count", len(remaining))
	for _, p := range remaining {
		if err := p.Kill(); err != nil {
			k.logger.Debug("Kill failed", "pattern", pattern, "error", err)
		}
	}
}

// ForceKillPattern sends SIGKILL to every process matching pattern without a
// graceful phase. Used between module-unload retries when the resource stays
// busy.
func (k *Killer) ForceKillPattern(pattern string) {
	for _, p := range k.FindByPattern(pattern) {
		if err := p.Kill(); err != nil {
			k.logger.Debug("Kill failed", "pattern", pattern, "error", err)
		}
	}
}
