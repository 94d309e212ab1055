// Package supervisor coordinates the per-family resource guards. It runs
// setups independently so one family failing never blocks the other, and
// broadcasts device state changes on the event bus.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/virtcam/virtcam/internal/events"
	"github.com/virtcam/virtcam/internal/resource"
)

// SetupResult reports the outcome of one SetupAll pass, per family. Partial
// success is a normal outcome: the caller decides what still works with
// only one device up.
type SetupResult struct {
	VideoOK  bool
	AudioOK  bool
	VideoErr error
	AudioErr error
}

// AllOK reports whether both families came up.
func (r SetupResult) AllOK() bool {
	return r.VideoOK && r.AudioOK
}

// FamilyStatus is one family's line in a Status report.
type FamilyStatus struct {
	Family   string
	Identity string
	Setup    bool // the guard's internal flag
	Present  bool // what the OS reports right now
}

// Supervisor owns the resource guards and is the only component allowed to
// invoke their mutating operations.
type Supervisor struct {
	video  resource.Guard
	audio  resource.Guard
	bus    *events.Bus
	logger *slog.Logger
}

// New creates a supervisor over the given guards. bus may be nil when no
// listener cares about device state.
func New(video, audio resource.Guard, bus *events.Bus, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		video:  video,
		audio:  audio,
		bus:    bus,
		logger: logger,
	}
}

// SetupAll sets up both families. Failures are isolated: audio setup runs
// even when video setup fails, and the result carries each family's error
// separately.
func (s *Supervisor) SetupAll(ctx context.Context) SetupResult {
	var res SetupResult

	res.VideoErr = s.video.Setup(ctx)
	res.VideoOK = res.VideoErr == nil
	s.publishState(s.video, res.VideoErr)
	if res.VideoErr != nil {
		s.logger.Error("video setup failed", "error", res.VideoErr)
	}

	res.AudioErr = s.audio.Setup(ctx)
	res.AudioOK = res.AudioErr == nil
	s.publishState(s.audio, res.AudioErr)
	if res.AudioErr != nil {
		s.logger.Error("audio setup failed", "error", res.AudioErr)
	}

	return res
}

// SetupFamily sets up one family by name. Unknown names are a no-op
// returning nil, matching the CLI's permissive argument handling.
func (s *Supervisor) SetupFamily(ctx context.Context, family string) error {
	g := s.guardFor(family)
	if g == nil {
		return nil
	}
	err := g.Setup(ctx)
	s.publishState(g, err)
	return err
}

// TeardownAll releases both families. Teardowns are best-effort and both
// always run.
func (s *Supervisor) TeardownAll(ctx context.Context) {
	s.video.Teardown(ctx)
	s.publishState(s.video, nil)
	s.audio.Teardown(ctx)
	s.publishState(s.audio, nil)
}

// TeardownFamily releases one family by name.
func (s *Supervisor) TeardownFamily(ctx context.Context, family string) {
	g := s.guardFor(family)
	if g == nil {
		return
	}
	g.Teardown(ctx)
	s.publishState(g, nil)
}

// Status reports both the guards' flags and a live OS probe per family.
// Disagreement between the two means the resource changed underneath us.
func (s *Supervisor) Status(ctx context.Context) []FamilyStatus {
	statuses := make([]FamilyStatus, 0, 2)
	for _, g := range []resource.Guard{s.video, s.audio} {
		statuses = append(statuses, FamilyStatus{
			Family:   g.Family(),
			Identity: g.Identity(),
			Setup:    g.IsSetup(),
			Present:  g.Probe(ctx),
		})
	}
	return statuses
}

func (s *Supervisor) guardFor(family string) resource.Guard {
	switch family {
	case "video":
		return s.video
	case "audio":
		return s.audio
	default:
		s.logger.Warn("unknown device family", "family", family)
		return nil
	}
}

func (s *Supervisor) publishState(g resource.Guard, err error) {
	if s.bus == nil {
		return
	}
	ev := events.DeviceStateEvent{
		Family:    g.Family(),
		Identity:  g.Identity(),
		Ready:     g.IsSetup(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(ev)
}
