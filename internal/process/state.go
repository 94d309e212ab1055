package process

import "time"

// State represents the current state of a managed process.
type State string

// Process states.
const (
	StateStopped  State = "stopped"  // Not running, no native handle held
	StateStarting State = "starting" // Launched, inside the settle window
	StateRunning  State = "running"  // Confirmed alive
	StateStopping State = "stopping" // Termination in progress
	StateError    State = "error"    // Failed to start or died unexpectedly
)

// Settings holds the timing bounds for process lifecycle operations.
// The defaults are empirically tuned; treat them as configuration, not as
// guaranteed-correct timings for every host.
type Settings struct {
	// SettleDelay is how long a freshly launched process must stay alive
	// before it is considered Running.
	SettleDelay time.Duration

	// StopTimeout is the graceful termination window before SIGKILL.
	StopTimeout time.Duration

	// KillTimeout is how long to wait for exit confirmation after SIGKILL.
	KillTimeout time.Duration
}

// DefaultSettings returns the default lifecycle timing bounds.
func DefaultSettings() Settings {
	return Settings{
		SettleDelay: 2 * time.Second,
		StopTimeout: 2 * time.Second,
		KillTimeout: 1 * time.Second,
	}
}

// StateChangeCallback is called on process state transitions.
// Used for domain-specific reactions (events, metrics surfaces).
type StateChangeCallback func(name string, oldState, newState State, pid int)
