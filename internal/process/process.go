package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/virtcam/virtcam/internal/metrics"
)

// ErrAlreadyRunning is returned by Start when the process is already running.
// It is the only precondition error; every other start failure is an ordinary
// negative result that leaves the handle in StateError.
var ErrAlreadyRunning = errors.New("process already running")

// ErrExitedEarly is returned by Start when the process launched but exited
// within the settle window. Callers typically react by falling back to a
// degraded command rather than treating this as fatal.
var ErrExitedEarly = errors.New("process exited during settle window")

// Managed wraps one external long-running process with tracked lifecycle
// state. A handle is reusable across start/stop cycles. All mutating
// operations on one handle are serialized; operations on distinct handles
// never block each other.
type Managed struct {
	name     string
	settings Settings
	logger   *slog.Logger
	onChange StateChangeCallback

	mu    sync.Mutex
	state State
	cmd   *exec.Cmd
	done  chan struct{} // closed when the wait goroutine observes exit
	pid   int
}

// New creates a managed process handle in the Stopped state.
func New(name string, settings Settings, logger *slog.Logger) *Managed {
	return &Managed{
		name:     name,
		settings: settings,
		logger:   logger,
		state:    StateStopped,
	}
}

// SetStateChangeCallback registers a callback invoked on every state
// transition. The callback runs while the handle's lock is held and must not
// call back into the handle. Must be set before Start.
func (m *Managed) SetStateChangeCallback(cb StateChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = cb
}

// Name returns the immutable process name.
func (m *Managed) Name() string {
	return m.name
}

// State returns the current lifecycle state after reconciling it with a
// fresh liveness probe.
func (m *Managed) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileLocked()
	return m.state
}

// IsRunning reports whether the process is in StateRunning and the
// underlying OS process is confirmed alive. State and OS reality can diverge
// between probes; every call reconciles them.
func (m *Managed) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileLocked()
	return m.state == StateRunning
}

// PID returns the process identifier while the process is confirmed running.
func (m *Managed) PID() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileLocked()
	if m.state != StateRunning {
		return 0, false
	}
	return m.pid, true
}

// Start launches the given argv with suppressed standard streams and waits
// up to the settle delay to confirm the process stays alive.
//
// Returns ErrAlreadyRunning if the handle is already running. A command that
// cannot be launched or that exits within the settle window moves the handle
// to StateError and returns a non-nil error that is NOT ErrAlreadyRunning,
// so callers can distinguish the precondition violation from an expected
// negative outcome.
func (m *Managed) Start(argv []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(argv) == 0 {
		return fmt.Errorf("process %s: empty command", m.name)
	}

	m.reconcileLocked()
	if m.state == StateRunning || m.state == StateStarting || m.state == StateStopping {
		return fmt.Errorf("process %s: %w", m.name, ErrAlreadyRunning)
	}

	m.logger.Info("Starting process", "name", m.name, "command", argv[0])
	m.setStateLocked(StateStarting)

	cmd := exec.Command(argv[0], argv[1:]...)
	// Detach into its own process group so signals to the parent don't
	// reach supervised children, matching the graceful-stop contract.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// nil std streams are wired to /dev/null by os/exec

	if err := cmd.Start(); err != nil {
		m.logger.Error("Failed to start process", "name", m.name, "error", err)
		m.cmd = nil
		m.done = nil
		m.setStateLocked(StateError)
		metrics.RecordProcessStart(m.name, "launch_failed")
		return fmt.Errorf("process %s: %w", m.name, err)
	}

	m.cmd = cmd
	m.pid = cmd.Process.Pid
	done := make(chan struct{})
	m.done = done
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	m.logger.Debug("Process launched", "name", m.name, "pid", m.pid)

	// Settle window: an exit before the deadline means the command died
	// immediately (bad args, missing device); staying alive means Running.
	select {
	case <-done:
		m.logger.Error("Process died immediately after start", "name", m.name, "pid", m.pid)
		m.cmd = nil
		m.done = nil
		m.pid = 0
		m.setStateLocked(StateError)
		metrics.RecordProcessStart(m.name, "died_early")
		return fmt.Errorf("process %s: %w", m.name, ErrExitedEarly)
	case <-time.After(m.settings.SettleDelay):
	}

	m.setStateLocked(StateRunning)
	metrics.RecordProcessStart(m.name, "ok")
	m.logger.Info("Process started", "name", m.name, "pid", m.pid)
	return nil
}

// Stop terminates the process: SIGTERM, bounded wait, SIGKILL escalation.
// Stopping an already-stopped handle is a no-op success. The handle always
// ends in StateStopped with native resources released, even when the kill
// cannot be confirmed; in that case the error is still reported.
func (m *Managed) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateStopped {
		m.logger.Debug("Process already stopped", "name", m.name)
		return nil
	}

	if m.cmd == nil || m.cmd.Process == nil {
		m.setStateLocked(StateStopped)
		return nil
	}

	m.logger.Info("Stopping process", "name", m.name, "pid", m.pid)
	m.setStateLocked(StateStopping)

	done := m.done
	mode := "graceful"
	var stopErr error

	if err := m.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		m.logger.Warn("Failed to send SIGTERM", "name", m.name, "error", err)
	}

	select {
	case <-done:
		m.logger.Debug("Process terminated gracefully", "name", m.name)
	case <-time.After(m.settings.StopTimeout):
		m.logger.Warn("Graceful stop timeout, forcing kill", "name", m.name, "timeout", m.settings.StopTimeout)
		mode = "forced"
		if err := m.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			m.logger.Error("Failed to kill process", "name", m.name, "error", err)
		}
		select {
		case <-done:
		case <-time.After(m.settings.KillTimeout):
			// Fail open: release the handle anyway so application state
			// cannot leak, but surface the error to the caller.
			mode = "unconfirmed"
			stopErr = fmt.Errorf("process %s: kill not confirmed within %s", m.name, m.settings.KillTimeout)
			m.logger.Error("Process did not exit after kill signal", "name", m.name)
		}
	}

	m.cmd = nil
	m.done = nil
	m.pid = 0
	m.setStateLocked(StateStopped)
	metrics.RecordProcessStop(m.name, mode)
	m.logger.Info("Process stopped", "name", m.name)
	return stopErr
}

// aliveLocked reports whether the wait goroutine has not yet observed exit.
func (m *Managed) aliveLocked() bool {
	if m.cmd == nil || m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// reconcileLocked aligns the tracked state with OS reality: a Running handle
// whose process has exited moves to StateError and drops the native handle.
func (m *Managed) reconcileLocked() {
	if m.state == StateRunning && !m.aliveLocked() {
		m.logger.Warn("Process exited unexpectedly", "name", m.name, "pid", m.pid)
		m.cmd = nil
		m.done = nil
		m.pid = 0
		m.setStateLocked(StateError)
	}
}

// setStateLocked transitions the state and fires the change callback.
func (m *Managed) setStateLocked(newState State) {
	old := m.state
	if old == newState {
		return
	}
	m.state = newState
	if m.onChange != nil {
		m.onChange(m.name, old, newState, m.pid)
	}
}
