package process

import (
	"errors"
	"log/slog"
	"sync"
)

// Handle is the subset of Managed the registry needs. Narrowing to an
// interface keeps StopAll testable with injected faulty handles.
type Handle interface {
	Name() string
	Stop() error
	IsRunning() bool
}

// Registry tracks every managed process the application creates so bulk
// shutdown can guarantee no process outlives the application. One instance
// is constructed at startup and passed to every component that creates
// processes.
type Registry struct {
	mu      sync.Mutex
	handles map[Handle]struct{}
	logger  *slog.Logger
}

// NewRegistry creates an empty process registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handles: make(map[Handle]struct{}),
		logger:  logger,
	}
}

// Register adds a handle. Adding an already-registered handle is a no-op.
func (r *Registry) Register(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[h]; !exists {
		r.handles[h] = struct{}{}
		r.logger.Debug("Registered process", "name", h.Name())
	}
}

// Unregister removes a handle. Removing an unknown handle is a no-op.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[h]; exists {
		delete(r.handles, h)
		r.logger.Debug("Unregistered process", "name", h.Name())
	}
}

// StopAll stops every registered handle over a snapshot of the set.
// Individual failures are logged and collected but never prevent the
// remaining handles from being stopped. Handles registered during the sweep
// are picked up by a subsequent sweep, not this one.
func (r *Registry) StopAll() error {
	snapshot := r.snapshot()
	r.logger.Info("Stopping all registered processes", "count", len(snapshot))

	var errs []error
	for _, h := range snapshot {
		if err := h.Stop(); err != nil {
			r.logger.Error("Failed to stop process", "name", h.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunningCount returns the number of registered handles currently running.
func (r *Registry) RunningCount() int {
	count := 0
	for _, h := range r.snapshot() {
		if h.IsRunning() {
			count++
		}
	}
	return count
}

func (r *Registry) snapshot() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles := make([]Handle, 0, len(r.handles))
	for h := range r.handles {
		handles = append(handles, h)
	}
	return handles
}
