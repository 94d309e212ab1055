package resource

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/virtcam/virtcam/internal/run"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testTimings() Timings {
	return Timings{
		CleanupDelay:      time.Millisecond,
		ModuleSettle:      time.Millisecond,
		CommandTimeout:    time.Second,
		MaxCleanupRetries: 3,
	}
}

// fakeRunner scripts external tool behavior through respond and records
// every invocation.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	respond func(name string, args []string) (run.Result, error)
	paths   map[string]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (run.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	f.mu.Unlock()
	if f.respond == nil {
		return run.Result{}, nil
	}
	return f.respond(name, args)
}

func (f *fakeRunner) RunInput(ctx context.Context, input []byte, name string, args ...string) (run.Result, error) {
	return f.Run(ctx, name, args...)
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if path, ok := f.paths[name]; ok {
		return path, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (f *fakeRunner) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeRunner) calledWith(prefix string) bool {
	return f.callCount(prefix) > 0
}

// fakeKiller records eviction requests.
type fakeKiller struct {
	mu     sync.Mutex
	killed []string
	forced []string
}

func (f *fakeKiller) KillPattern(ctx context.Context, pattern string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pattern)
}

func (f *fakeKiller) ForceKillPattern(pattern string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, pattern)
}

func (f *fakeKiller) forceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forced)
}
