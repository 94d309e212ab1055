package stream

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/virtcam/virtcam/internal/events"
	"github.com/virtcam/virtcam/internal/metrics"
)

// AudioStatus is a snapshot of the audio controller.
type AudioStatus struct {
	Running bool
	Source  string
	Silence bool
	PID     int
}

// AudioController streams catalog sources into the pulse sink. Speech and
// tone sources are generated on first use and cached in dir; the silence
// source runs no producer at all.
type AudioController struct {
	sink   string
	dir    string
	proc   Process
	gen    Generator
	bus    *events.Bus
	logger *slog.Logger

	mu      sync.Mutex
	current string
	silence bool
	volume  string
}

// NewAudio creates an audio controller feeding sink, caching generated
// audio in dir.
func NewAudio(sink, dir string, proc Process, gen Generator, bus *events.Bus, logger *slog.Logger) *AudioController {
	return &AudioController{
		sink:   sink,
		dir:    dir,
		proc:   proc,
		gen:    gen,
		bus:    bus,
		logger: logger,
		volume: defaultVolume,
	}
}

// SetVolume overrides the playback amplification factor. Non-positive
// values keep the default.
func (c *AudioController) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > 0 {
		c.volume = strconv.FormatFloat(v, 'f', -1, 64)
	}
}

func (c *AudioController) runningLocked() bool {
	return c.silence || c.proc.IsRunning()
}

// Start begins streaming the named catalog source, generating its audio
// file first when missing. Generation failure degrades to silence mode so
// the microphone stays configured even without content.
func (c *AudioController) Start(ctx context.Context, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runningLocked() {
		return fmt.Errorf("%w: %s", ErrAlreadyStreaming, c.current)
	}
	src, ok := LookupAudio(source)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	if src.Type == TypeSilence {
		c.silence = true
		c.current = source
		publishState(c.bus, "audio", source, true, false)
		c.logger.Info("silence mode active")
		return nil
	}

	path, err := c.ensureArtifact(ctx, src)
	if err != nil {
		c.logger.Warn("audio unavailable, degrading to silence", "source", source, "error", err)
		metrics.RecordStreamFallback("audio")
		c.silence = true
		c.current = source
		publishState(c.bus, "audio", source, true, true)
		return nil
	}

	if err := c.proc.Start(audioFileArgs(path, c.sink, c.volume)); err != nil {
		return fmt.Errorf("start audio %q: %w", source, err)
	}
	c.current = source
	publishState(c.bus, "audio", source, true, false)
	pid, _ := c.proc.PID()
	c.logger.Info("audio streaming", "source", source, "pid", pid)
	return nil
}

// Stop ends the stream or leaves silence mode. Idle controllers are a
// no-op.
func (c *AudioController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.runningLocked() && c.current == "" {
		return nil
	}
	source := c.current
	var err error
	if c.silence {
		c.silence = false
	} else {
		err = c.proc.Stop()
	}
	c.current = ""
	publishState(c.bus, "audio", source, false, false)
	c.logger.Info("audio stopped", "source", source)
	return err
}

// Restart stops and starts again. An empty source reuses the one that was
// streaming.
func (c *AudioController) Restart(ctx context.Context, source string) error {
	c.mu.Lock()
	if source == "" {
		source = c.current
	}
	c.mu.Unlock()
	if source == "" {
		return ErrNoPreviousSource
	}
	if err := c.Stop(); err != nil {
		c.logger.Warn("stop before restart", "error", err)
	}
	return c.Start(ctx, source)
}

// Generate produces a source's audio file without starting playback.
// Already-present files and the silence source succeed immediately.
func (c *AudioController) Generate(ctx context.Context, source string) error {
	src, ok := LookupAudio(source)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if src.Type == TypeSilence {
		return nil
	}
	_, err := c.ensureArtifact(ctx, src)
	return err
}

// ClearCache deletes all generated audio files and returns how many were
// removed.
func (c *AudioController) ClearCache() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".wav" {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			c.logger.Warn("could not delete cached audio", "file", entry.Name(), "error", err)
			continue
		}
		count++
	}
	c.logger.Info("audio cache cleared", "deleted", count)
	return count
}

// Status returns a snapshot.
func (c *AudioController) Status() AudioStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := AudioStatus{
		Running: c.runningLocked(),
		Source:  c.current,
		Silence: c.silence,
	}
	if !c.silence {
		st.PID, _ = c.proc.PID()
	}
	return st
}

func (c *AudioController) ensureArtifact(ctx context.Context, src Source) (string, error) {
	path := filepath.Join(c.dir, src.File)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}

	switch src.Type {
	case TypeTone:
		if err := c.gen.Tone(ctx, path); err != nil {
			return "", err
		}
	case TypeSpeech:
		if _, err := c.gen.Speak(ctx, src.Text, path, src.Name); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("source %q is not an audio source", src.Name)
	}
	return path, nil
}
