package process

import (
	"errors"
	"testing"
	"time"
)

// fakeHandle is an injectable handle for registry tests.
type fakeHandle struct {
	name    string
	running bool
	stopErr error
	stops   int
}

func (f *fakeHandle) Name() string { return f.name }

func (f *fakeHandle) Stop() error {
	f.stops++
	// Fail-open like Managed: the handle is treated as stopped even when
	// the underlying termination fails.
	f.running = false
	return f.stopErr
}

func (f *fakeHandle) IsRunning() bool { return f.running }

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry(testLogger())
	h := &fakeHandle{name: "a", running: true}

	r.Register(h)
	r.Register(h)

	if got := r.RunningCount(); got != 1 {
		t.Errorf("RunningCount() = %d, want 1", got)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry(testLogger())
	h := &fakeHandle{name: "a", running: true}

	r.Register(h)
	r.Unregister(h)
	r.Unregister(h) // no-op

	if got := r.RunningCount(); got != 0 {
		t.Errorf("RunningCount() = %d, want 0", got)
	}
	if err := r.StopAll(); err != nil {
		t.Errorf("StopAll() error = %v", err)
	}
	if h.stops != 0 {
		t.Error("unregistered handle was stopped")
	}
}

func TestRegistryStopAllNeverShortCircuits(t *testing.T) {
	r := NewRegistry(testLogger())

	faulty := &fakeHandle{name: "faulty", running: true, stopErr: errors.New("kill not confirmed")}
	healthy1 := &fakeHandle{name: "healthy1", running: true}
	healthy2 := &fakeHandle{name: "healthy2", running: true}

	r.Register(healthy1)
	r.Register(faulty)
	r.Register(healthy2)

	err := r.StopAll()
	if err == nil {
		t.Error("StopAll() error = nil, want the faulty handle's error")
	}

	for _, h := range []*fakeHandle{healthy1, faulty, healthy2} {
		if h.stops != 1 {
			t.Errorf("handle %s stopped %d times, want 1", h.name, h.stops)
		}
	}
	if got := r.RunningCount(); got != 0 {
		t.Errorf("RunningCount() = %d after StopAll, want 0", got)
	}
}

func TestRegistryStopAllWithManagedProcesses(t *testing.T) {
	r := NewRegistry(testLogger())

	m1 := newTestProcess("m1")
	m2 := newTestProcess("m2")
	r.Register(m1)
	r.Register(m2)

	if err := m1.Start([]string{"sleep", "10"}); err != nil {
		t.Fatalf("Start(m1) error = %v", err)
	}
	if err := m2.Start([]string{"sleep", "10"}); err != nil {
		t.Fatalf("Start(m2) error = %v", err)
	}

	if got := r.RunningCount(); got != 2 {
		t.Fatalf("RunningCount() = %d, want 2", got)
	}

	start := time.Now()
	if err := r.StopAll(); err != nil {
		t.Errorf("StopAll() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("StopAll took too long: %v", elapsed)
	}

	if got := r.RunningCount(); got != 0 {
		t.Errorf("RunningCount() = %d after StopAll, want 0", got)
	}
}
