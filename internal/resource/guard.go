// Package resource provides idempotent setup and teardown of the OS-level
// stateful resources behind the virtual devices: the v4l2loopback kernel
// module with its device node, and the PulseAudio null sink.
//
// Each resource family has exactly one guard instance owning all mutating
// operations on it. A guard walks NotSetup -> Cleaning -> Loading ->
// Verifying -> Ready on setup and Ready -> Cleaning -> NotSetup on teardown.
// Load and verify failures are fatal for the setup attempt and surface as a
// typed *SetupError; cleanup failures are best-effort and only logged.
package resource

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// State is the guard's internal setup state.
type State string

// Guard states.
const (
	StateNotSetup  State = "not_setup"
	StateCleaning  State = "cleaning"
	StateLoading   State = "loading"
	StateVerifying State = "verifying"
	StateReady     State = "ready"
)

// Phase names the setup phase in which a fatal failure occurred.
type Phase string

// Setup phases.
const (
	PhaseCleanup Phase = "cleanup"
	PhaseLoad    Phase = "load"
	PhaseVerify  Phase = "verify"
)

// SetupError is the fatal setup failure for one resource family. It names
// the family and phase so the user can be told which resource to retry.
type SetupError struct {
	Family string
	Phase  Phase
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s setup failed in %s phase: %v", e.Family, e.Phase, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Guard is the setup/teardown state machine around one virtual device
// family.
type Guard interface {
	// Family returns "video" or "audio".
	Family() string

	// Identity returns the device path or sink name.
	Identity() string

	// Setup brings the resource to a verified-usable state. Calling Setup
	// on an already-Ready guard tears down and rebuilds; staleness of a
	// previously created resource is never assumed safe.
	Setup(ctx context.Context) error

	// Teardown releases the resource. Best-effort: it always leaves the
	// guard in NotSetup and never fails.
	Teardown(ctx context.Context)

	// Probe reports whether the resource currently exists on the OS,
	// independent of the guard's own state.
	Probe(ctx context.Context) bool

	// IsSetup reports the guard's internal setup flag.
	IsSetup() bool
}

// ProcessKiller evicts host processes holding a resource, by command-line
// pattern. Satisfied by *hostproc.Killer.
type ProcessKiller interface {
	KillPattern(ctx context.Context, pattern string)
	ForceKillPattern(pattern string)
}

// Timings holds the empirically tuned delays and retry bounds for resource
// operations. Defaults come from configuration, not guaranteed-correct OS
// timing assumptions.
type Timings struct {
	// CleanupDelay separates cleanup sub-steps and unload retries.
	CleanupDelay time.Duration

	// ModuleSettle is the wait after a module load before verification.
	ModuleSettle time.Duration

	// CommandTimeout bounds each external tool invocation.
	CommandTimeout time.Duration

	// MaxCleanupRetries bounds the busy-resource unload retry loop.
	MaxCleanupRetries int
}

// DefaultTimings returns the default resource operation bounds.
func DefaultTimings() Timings {
	return Timings{
		CleanupDelay:      500 * time.Millisecond,
		ModuleSettle:      500 * time.Millisecond,
		CommandTimeout:    10 * time.Second,
		MaxCleanupRetries: 3,
	}
}

// isBusyError reports whether tool stderr indicates a busy resource, the
// retryable failure mode of module unloads.
func isBusyError(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "in use") || strings.Contains(s, "busy")
}

// sleepCtx sleeps for d or until ctx is done, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
