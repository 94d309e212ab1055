package stream

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/virtcam/virtcam/internal/fetch"
	"github.com/virtcam/virtcam/internal/process"
	"github.com/virtcam/virtcam/internal/synth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// The controllers are wired with these concrete types; keep the interfaces
// in sync with them.
var (
	_ Process   = (*process.Managed)(nil)
	_ Fetcher   = (*fetch.Downloader)(nil)
	_ Generator = (*synth.Synthesizer)(nil)
	_ Process   = (*fakeProc)(nil)
	_ Fetcher   = (*fakeFetcher)(nil)
	_ Generator = (*fakeGen)(nil)
)

// fakeProc stands in for a managed ffmpeg process.
type fakeProc struct {
	mu        sync.Mutex
	running   bool
	starts    [][]string
	stops     int
	failFirst bool // first Start dies like a producer exiting early
}

func (f *fakeProc) Start(argv []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return process.ErrAlreadyRunning
	}
	f.starts = append(f.starts, argv)
	if f.failFirst && len(f.starts) == 1 {
		return process.ErrExitedEarly
	}
	f.running = true
	return nil
}

func (f *fakeProc) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
	return nil
}

func (f *fakeProc) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeProc) PID() (int, bool) {
	if f.IsRunning() {
		return 4242, true
	}
	return 0, false
}

func (f *fakeProc) lastStart() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.starts) == 0 {
		return nil
	}
	return f.starts[len(f.starts)-1]
}

// fakeFetcher serves artifacts from a scripted cache.
type fakeFetcher struct {
	dir     string
	err     error
	fetched []string
}

func (f *fakeFetcher) Path(filename string) string {
	return filepath.Join(f.dir, filename)
}

func (f *fakeFetcher) Cached(filename string) bool {
	_, err := os.Stat(f.Path(filename))
	return err == nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, filename string) (string, error) {
	f.fetched = append(f.fetched, url)
	if f.err != nil {
		return "", f.err
	}
	path := f.Path(filename)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// fakeGen stands in for the synthesis pipeline.
type fakeGen struct {
	err    error
	speaks []string // scripts requested
	tones  int
}

func (f *fakeGen) Speak(ctx context.Context, text, output, script string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.speaks = append(f.speaks, script)
	return "flite", os.WriteFile(output, []byte("RIFF"), 0o644)
}

func (f *fakeGen) Tone(ctx context.Context, output string) error {
	if f.err != nil {
		return f.err
	}
	f.tones++
	return os.WriteFile(output, []byte("RIFF"), 0o644)
}

var errFetchDown = errors.New("connection refused")

func argvContains(argv []string, want string) bool {
	for _, a := range argv {
		if a == want {
			return true
		}
	}
	return false
}
