package stream

import (
	"context"
	"errors"
	"testing"
)

func newTestVideo(t *testing.T, proc *fakeProc, fetcher *fakeFetcher) *VideoController {
	t.Helper()
	if fetcher == nil {
		fetcher = &fakeFetcher{dir: t.TempDir()}
	} else if fetcher.dir == "" {
		fetcher.dir = t.TempDir()
	}
	return NewVideo("/dev/video10", proc, fetcher, nil, testLogger())
}

func TestVideoStartTestPattern(t *testing.T) {
	proc := &fakeProc{}
	c := newTestVideo(t, proc, nil)

	if err := c.Start(context.Background(), "Test Pattern"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	argv := proc.lastStart()
	if !argvContains(argv, "testsrc2=size=640x480:rate=30") {
		t.Errorf("unexpected argv: %v", argv)
	}
	if argv[len(argv)-1] != "/dev/video10" {
		t.Errorf("argv does not end with the device: %v", argv)
	}
	st := c.Status()
	if !st.Running || st.Source != "Test Pattern" || st.Fallback {
		t.Errorf("status wrong: %+v", st)
	}
}

func TestVideoStartUnknownSource(t *testing.T) {
	c := newTestVideo(t, &fakeProc{}, nil)
	err := c.Start(context.Background(), "Moon Landing")
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("got %v, want ErrUnknownSource", err)
	}
}

func TestVideoStartWhileStreaming(t *testing.T) {
	c := newTestVideo(t, &fakeProc{}, nil)
	if err := c.Start(context.Background(), "Test Pattern"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background(), "Test Pattern"); !errors.Is(err, ErrAlreadyStreaming) {
		t.Errorf("got %v, want ErrAlreadyStreaming", err)
	}
}

func TestVideoDownloadSourceFetchesArtifact(t *testing.T) {
	proc := &fakeProc{}
	fetcher := &fakeFetcher{}
	c := newTestVideo(t, proc, fetcher)

	if err := c.Start(context.Background(), "Surfing HD"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(fetcher.fetched) != 1 {
		t.Fatalf("got %d fetches, want 1", len(fetcher.fetched))
	}
	argv := proc.lastStart()
	if !argvContains(argv, "-stream_loop") || !argvContains(argv, fetcher.Path("surfing.mp4")) {
		t.Errorf("unexpected argv: %v", argv)
	}
}

func TestVideoFetchFailureFallsBack(t *testing.T) {
	proc := &fakeProc{}
	c := newTestVideo(t, proc, &fakeFetcher{err: errFetchDown})

	if err := c.Start(context.Background(), "Ocean Waves"); err != nil {
		t.Fatalf("Start should degrade, got %v", err)
	}
	argv := proc.lastStart()
	if !argvContains(argv, "color=c=blue:s=640x480:r=30") {
		t.Errorf("fallback source not used: %v", argv)
	}
	st := c.Status()
	if !st.Fallback || st.Source != "Ocean Waves" {
		t.Errorf("status wrong: %+v", st)
	}
}

func TestVideoProducerDeathFallsBack(t *testing.T) {
	proc := &fakeProc{failFirst: true}
	c := newTestVideo(t, proc, nil)

	if err := c.Start(context.Background(), "Test Pattern"); err != nil {
		t.Fatalf("Start should degrade, got %v", err)
	}
	if len(proc.starts) != 2 {
		t.Fatalf("got %d starts, want 2 (primary then fallback)", len(proc.starts))
	}
	if !argvContains(proc.lastStart(), "color=c=blue:s=640x480:r=30") {
		t.Errorf("fallback source not used: %v", proc.lastStart())
	}
	if !c.Status().Fallback {
		t.Error("fallback not recorded")
	}
}

func TestVideoVMMode(t *testing.T) {
	proc := &fakeProc{}
	c := newTestVideo(t, proc, nil)
	c.SetVMMode(true)

	if err := c.Start(context.Background(), "Test Pattern"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	argv := proc.lastStart()
	if !argvContains(argv, "testsrc2=size=360x240:rate=15") {
		t.Errorf("vm settings not applied: %v", argv)
	}
	if !argvContains(argv, "ultrafast") {
		t.Errorf("vm encode flags missing: %v", argv)
	}
}

func TestVideoStopAndRestart(t *testing.T) {
	proc := &fakeProc{}
	c := newTestVideo(t, proc, nil)

	if err := c.Stop(); err != nil {
		t.Errorf("Stop while idle: %v", err)
	}
	if err := c.Start(context.Background(), "Test Pattern"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Restart(context.Background(), ""); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if len(proc.starts) != 2 || proc.stops != 1 {
		t.Errorf("got %d starts %d stops, want 2/1", len(proc.starts), proc.stops)
	}
	if c.Status().Source != "Test Pattern" {
		t.Errorf("restart lost the source: %+v", c.Status())
	}

	c.Stop()
	if err := c.Restart(context.Background(), ""); !errors.Is(err, ErrNoPreviousSource) {
		t.Errorf("got %v, want ErrNoPreviousSource", err)
	}
}

func TestVideoDownloadWithoutStart(t *testing.T) {
	proc := &fakeProc{}
	fetcher := &fakeFetcher{}
	c := newTestVideo(t, proc, fetcher)

	if err := c.Download(context.Background(), "Surfing HD"); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(fetcher.fetched) != 1 {
		t.Errorf("got %d fetches, want 1", len(fetcher.fetched))
	}
	if len(proc.starts) != 0 {
		t.Error("download started playback")
	}
	// Generated sources have nothing to fetch.
	if err := c.Download(context.Background(), "Test Pattern"); err != nil {
		t.Errorf("Download generated source: %v", err)
	}
}
