package process

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProcess creates a Managed with short timeouts for testing.
func newTestProcess(name string) *Managed {
	return New(name, Settings{
		SettleDelay: 50 * time.Millisecond,
		StopTimeout: 100 * time.Millisecond,
		KillTimeout: 100 * time.Millisecond,
	}, testLogger())
}

func TestStartAndStop(t *testing.T) {
	m := newTestProcess("test")

	if err := m.Start([]string{"sleep", "10"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !m.IsRunning() {
		t.Error("IsRunning() = false after successful start")
	}
	if pid, ok := m.PID(); !ok || pid <= 0 {
		t.Errorf("PID() = %d, %v; want positive pid while running", pid, ok)
	}

	if err := m.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true immediately after Stop()")
	}
	if got := m.State(); got != StateStopped {
		t.Errorf("State() = %v after stop, want %v", got, StateStopped)
	}
	if _, ok := m.PID(); ok {
		t.Error("PID() valid after stop")
	}
}

func TestStartWhileRunning(t *testing.T) {
	m := newTestProcess("test")

	if err := m.Start([]string{"sleep", "10"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = m.Stop() }()

	firstPID, _ := m.PID()

	err := m.Start([]string{"sleep", "10"})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	// The precondition failure must not have replaced the native handle.
	if pid, _ := m.PID(); pid != firstPID {
		t.Errorf("PID changed after rejected Start: %d -> %d", firstPID, pid)
	}
}

func TestStartCommandNotFound(t *testing.T) {
	m := newTestProcess("test")

	err := m.Start([]string{"/nonexistent/command/that/does/not/exist"})
	if err == nil {
		t.Fatal("Start() with missing command succeeded")
	}
	if errors.Is(err, ErrAlreadyRunning) {
		t.Error("missing command reported as ErrAlreadyRunning")
	}
	if got := m.State(); got != StateError {
		t.Errorf("State() = %v, want %v", got, StateError)
	}
	if _, ok := m.PID(); ok {
		t.Error("PID() valid in error state")
	}
}

func TestStartDiesWithinSettleWindow(t *testing.T) {
	m := newTestProcess("test")

	err := m.Start([]string{"true"})
	if !errors.Is(err, ErrExitedEarly) {
		t.Fatalf("Start() error = %v, want ErrExitedEarly", err)
	}
	if got := m.State(); got != StateError {
		t.Errorf("State() = %v, want %v", got, StateError)
	}
}

func TestStartEmptyCommand(t *testing.T) {
	m := newTestProcess("test")
	if err := m.Start(nil); err == nil {
		t.Fatal("Start(nil) succeeded")
	}
}

func TestStopAlreadyStopped(t *testing.T) {
	m := newTestProcess("test")
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() on fresh handle error = %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestStopForcesKill(t *testing.T) {
	m := newTestProcess("test")

	// Process that ignores SIGTERM
	if err := m.Start([]string{"sh", "-c", "trap '' TERM; sleep 10"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := m.Stop(); err != nil {
		t.Errorf("Stop() error = %v, want nil (forced kill confirmed)", err)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true after forced stop")
	}
	if got := m.State(); got != StateStopped {
		t.Errorf("State() = %v, want %v", got, StateStopped)
	}
}

func TestHandleReuse(t *testing.T) {
	m := newTestProcess("test")

	for i := 0; i < 2; i++ {
		if err := m.Start([]string{"sleep", "10"}); err != nil {
			t.Fatalf("cycle %d: Start() error = %v", i, err)
		}
		if err := m.Stop(); err != nil {
			t.Fatalf("cycle %d: Stop() error = %v", i, err)
		}
	}
}

func TestStartAfterError(t *testing.T) {
	m := newTestProcess("test")

	if err := m.Start([]string{"true"}); !errors.Is(err, ErrExitedEarly) {
		t.Fatalf("Start() error = %v, want ErrExitedEarly", err)
	}

	// An errored handle must accept a new start.
	if err := m.Start([]string{"sleep", "10"}); err != nil {
		t.Fatalf("Start() after error = %v", err)
	}
	_ = m.Stop()
}

func TestIsRunningReconcilesWithOS(t *testing.T) {
	m := New("test", Settings{
		SettleDelay: 10 * time.Millisecond,
		StopTimeout: 100 * time.Millisecond,
		KillTimeout: 100 * time.Millisecond,
	}, testLogger())

	if err := m.Start([]string{"sleep", "0.05"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Wait for the process to exit on its own.
	deadline := time.Now().Add(2 * time.Second)
	for m.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("process still reported running after it should have exited")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := m.State(); got != StateError {
		t.Errorf("State() = %v after unexpected exit, want %v", got, StateError)
	}
	if _, ok := m.PID(); ok {
		t.Error("PID() valid after unexpected exit")
	}
}

func TestStateChangeCallback(t *testing.T) {
	m := newTestProcess("test")

	var transitions []State
	m.SetStateChangeCallback(func(_ string, _, newState State, _ int) {
		transitions = append(transitions, newState)
	})

	if err := m.Start([]string{"sleep", "10"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	want := []State{StateStarting, StateRunning, StateStopping, StateStopped}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}
