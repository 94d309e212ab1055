// Package synth generates speech and tone audio files through whichever
// speech backend is installed. Backends are probed in order of voice
// quality and the first hit is used; raw synthesis output is then passed
// through an ffmpeg filter chain that softens the robotic timbre.
package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/virtcam/virtcam/internal/events"
	"github.com/virtcam/virtcam/internal/metrics"
	"github.com/virtcam/virtcam/internal/run"
)

// ErrNoBackend means no speech backend is installed at all.
var ErrNoBackend = errors.New("no speech backend installed")

// enhanceFilter is the ffmpeg audio filter chain applied to raw synthesis
// output: volume lift, rumble and hiss trims, speech-band EQ, compression
// and a tiny stereo delay.
const enhanceFilter = "volume=10dB," +
	"highpass=f=80," +
	"lowpass=f=12000," +
	"equalizer=f=2000:t=h:w=200:g=2," +
	"equalizer=f=300:t=h:w=100:g=-2," +
	"acompressor=threshold=0.3:ratio=3:attack=5:release=100," +
	"adelay=0.002|0.002"

// Tone generation parameters.
const (
	toneFrequency = 440
	toneDuration  = 5
	toneAmplitude = 0.8
)

// Synthesizer runs the synthesize-then-enhance pipeline.
type Synthesizer struct {
	runner  run.Runner
	bus     *events.Bus
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a synthesizer. bus may be nil.
func New(runner run.Runner, bus *events.Bus, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		runner:  runner,
		bus:     bus,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// AvailableBackends returns the installed backend names, most preferred
// first.
func (s *Synthesizer) AvailableBackends() []string {
	var names []string
	for _, e := range enginesByPreference {
		if _, err := s.runner.LookPath(e.command); err == nil {
			names = append(names, e.name)
		}
	}
	return names
}

// Speak synthesizes text into a WAV file at output, enhancing the result.
// script selects the voice mapping and may be empty. Returns the backend
// name used.
func (s *Synthesizer) Speak(ctx context.Context, text, output, script string) (string, error) {
	tmp := output + ".raw.wav"
	defer os.Remove(tmp)

	s.publish("synthesize", "", "")
	backend, err := s.synthesize(ctx, text, tmp, script)
	if err != nil {
		metrics.RecordSynthesis(backend, "failed")
		return backend, err
	}

	s.publish("enhance", backend, "")
	if err := s.enhance(ctx, tmp, output); err != nil {
		metrics.RecordSynthesis(backend, "failed")
		return backend, err
	}

	metrics.RecordSynthesis(backend, "ok")
	s.publish("done", backend, output)
	s.logger.Info("speech generated", "backend", backend, "output", output)
	return backend, nil
}

// synthesize runs the best installed backend. Backend selection and
// execution failures both surface here; a backend being installed but
// failing is not retried with the next one, matching how broken installs
// should be noticed rather than papered over.
func (s *Synthesizer) synthesize(ctx context.Context, text, output, script string) (string, error) {
	eng, err := s.selectEngine()
	if err != nil {
		return "", err
	}

	args, stdin := eng.argv(text, output, script)
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var res run.Result
	if stdin != nil {
		res, err = s.runner.RunInput(cctx, stdin, eng.command, args...)
	} else {
		res, err = s.runner.Run(cctx, eng.command, args...)
	}
	if err != nil {
		return eng.name, fmt.Errorf("%s: %w", eng.name, err)
	}
	if res.Code != 0 {
		return eng.name, fmt.Errorf("%s exited %d: %s", eng.name, res.Code, firstLine(res.Stderr))
	}
	if !fileNonEmpty(output) {
		return eng.name, fmt.Errorf("%s produced no output file", eng.name)
	}
	return eng.name, nil
}

func (s *Synthesizer) selectEngine() (*engine, error) {
	for i := range enginesByPreference {
		e := &enginesByPreference[i]
		if _, err := s.runner.LookPath(e.command); err == nil {
			s.logger.Debug("speech backend selected", "backend", e.name)
			return e, nil
		}
	}
	return nil, ErrNoBackend
}

// enhance applies the filter chain. When ffmpeg is unavailable or fails
// the raw synthesis is copied through unchanged; a robotic voice beats no
// voice.
func (s *Synthesizer) enhance(ctx context.Context, input, output string) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.runner.Run(cctx, "ffmpeg", "-i", input, "-af", enhanceFilter, "-y", output)
	if err == nil && res.Code == 0 && fileNonEmpty(output) {
		return nil
	}
	if err != nil {
		s.logger.Warn("audio enhancement unavailable, keeping raw synthesis", "error", err)
	} else {
		s.logger.Warn("audio enhancement failed, keeping raw synthesis", "stderr", firstLine(res.Stderr))
	}
	return copyFile(input, output)
}

// Tone generates the 440Hz test tone at output via ffmpeg.
func (s *Synthesizer) Tone(ctx context.Context, output string) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	src := fmt.Sprintf("sine=frequency=%d:duration=%d:amplitude=%g",
		toneFrequency, toneDuration, toneAmplitude)
	res, err := s.runner.Run(cctx, "ffmpeg", "-f", "lavfi", "-i", src,
		"-af", "volume=6dB", "-y", output)
	if err != nil {
		return fmt.Errorf("generate tone: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("generate tone: ffmpeg exited %d: %s", res.Code, firstLine(res.Stderr))
	}
	if !fileNonEmpty(output) {
		return errors.New("generate tone: ffmpeg produced no output file")
	}
	s.logger.Info("tone generated", "output", output)
	return nil
}

func (s *Synthesizer) publish(stage, backend, output string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.SynthesisProgressEvent{Stage: stage, Backend: backend, Output: output})
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
