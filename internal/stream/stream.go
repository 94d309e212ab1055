// Package stream drives the ffmpeg producers feeding the virtual devices.
// A controller owns one managed process and a built-in source catalog;
// sources that need an artifact fetch or synthesize it on demand, and
// failures degrade to a built-in source (blue frames for video, silence
// for audio) instead of leaving the device dark.
package stream

import (
	"context"
	"errors"
	"time"

	"github.com/virtcam/virtcam/internal/events"
)

// Controller errors.
var (
	ErrUnknownSource    = errors.New("unknown source")
	ErrAlreadyStreaming = errors.New("stream already active")
	ErrNoPreviousSource = errors.New("no previous source to restart")
)

// Process is the supervised child a controller starts and stops. Satisfied
// by *process.Managed.
type Process interface {
	Start(argv []string) error
	Stop() error
	IsRunning() bool
	PID() (int, bool)
}

// Fetcher provides cached artifacts. Satisfied by *fetch.Downloader.
type Fetcher interface {
	Fetch(ctx context.Context, url, filename string) (string, error)
}

// Generator produces audio artifacts. Satisfied by *synth.Synthesizer.
type Generator interface {
	Speak(ctx context.Context, text, output, script string) (string, error)
	Tone(ctx context.Context, output string) error
}

func publishState(bus *events.Bus, kind, source string, active, fallback bool) {
	if bus == nil {
		return
	}
	bus.Publish(events.StreamStateEvent{
		Kind:      kind,
		Source:    source,
		Active:    active,
		Fallback:  fallback,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
