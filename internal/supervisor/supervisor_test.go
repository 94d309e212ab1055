package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/virtcam/virtcam/internal/events"
	"github.com/virtcam/virtcam/internal/resource"
)

// fakeGuard satisfies resource.Guard with scripted outcomes.
type fakeGuard struct {
	family   string
	identity string
	setupErr error

	mu        sync.Mutex
	setup     bool
	setups    int
	teardowns int
}

func (f *fakeGuard) Family() string   { return f.family }
func (f *fakeGuard) Identity() string { return f.identity }

func (f *fakeGuard) Setup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setups++
	if f.setupErr != nil {
		f.setup = false
		return f.setupErr
	}
	f.setup = true
	return nil
}

func (f *fakeGuard) Teardown(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardowns++
	f.setup = false
}

func (f *fakeGuard) Probe(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setup
}

func (f *fakeGuard) IsSetup() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setup
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSetupAll(t *testing.T) {
	video := &fakeGuard{family: "video", identity: "/dev/video10"}
	audio := &fakeGuard{family: "audio", identity: "virtmic"}
	s := New(video, audio, nil, testLogger())

	res := s.SetupAll(context.Background())

	if !res.AllOK() {
		t.Fatalf("SetupAll failed: video=%v audio=%v", res.VideoErr, res.AudioErr)
	}
	if video.setups != 1 || audio.setups != 1 {
		t.Errorf("got %d/%d setups, want 1/1", video.setups, audio.setups)
	}
}

func TestSetupAllIsolatesFailures(t *testing.T) {
	video := &fakeGuard{family: "video", identity: "/dev/video10"}
	audio := &fakeGuard{
		family:   "audio",
		identity: "virtmic",
		setupErr: &resource.SetupError{Family: "audio", Phase: resource.PhaseLoad, Err: errors.New("no sound server")},
	}
	s := New(video, audio, nil, testLogger())

	res := s.SetupAll(context.Background())

	if !res.VideoOK {
		t.Error("video setup failed despite the audio-only fault")
	}
	if res.AudioOK || res.AudioErr == nil {
		t.Error("audio failure not reported")
	}
	var serr *resource.SetupError
	if !errors.As(res.AudioErr, &serr) || serr.Phase != resource.PhaseLoad {
		t.Errorf("audio error lost its phase: %v", res.AudioErr)
	}
	if res.AllOK() {
		t.Error("AllOK true on partial success")
	}
}

func TestVideoFailureDoesNotBlockAudio(t *testing.T) {
	video := &fakeGuard{family: "video", identity: "/dev/video10", setupErr: errors.New("modprobe failed")}
	audio := &fakeGuard{family: "audio", identity: "virtmic"}
	s := New(video, audio, nil, testLogger())

	res := s.SetupAll(context.Background())

	if audio.setups != 1 {
		t.Error("audio setup skipped after video failure")
	}
	if !res.AudioOK {
		t.Errorf("audio not OK: %v", res.AudioErr)
	}
}

func TestTeardownAll(t *testing.T) {
	video := &fakeGuard{family: "video", identity: "/dev/video10"}
	audio := &fakeGuard{family: "audio", identity: "virtmic"}
	s := New(video, audio, nil, testLogger())

	s.SetupAll(context.Background())
	s.TeardownAll(context.Background())

	if video.teardowns != 1 || audio.teardowns != 1 {
		t.Errorf("got %d/%d teardowns, want 1/1", video.teardowns, audio.teardowns)
	}
	if video.IsSetup() || audio.IsSetup() {
		t.Error("guards still set up after TeardownAll")
	}
}

func TestSetupFamily(t *testing.T) {
	video := &fakeGuard{family: "video", identity: "/dev/video10"}
	audio := &fakeGuard{family: "audio", identity: "virtmic"}
	s := New(video, audio, nil, testLogger())

	if err := s.SetupFamily(context.Background(), "audio"); err != nil {
		t.Fatalf("SetupFamily: %v", err)
	}
	if video.setups != 0 || audio.setups != 1 {
		t.Errorf("got %d/%d setups, want 0/1", video.setups, audio.setups)
	}
	if err := s.SetupFamily(context.Background(), "midi"); err != nil {
		t.Errorf("unknown family returned error: %v", err)
	}
}

func TestStatus(t *testing.T) {
	video := &fakeGuard{family: "video", identity: "/dev/video10"}
	audio := &fakeGuard{family: "audio", identity: "virtmic"}
	s := New(video, audio, nil, testLogger())
	s.SetupFamily(context.Background(), "video")

	statuses := s.Status(context.Background())

	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	if !statuses[0].Setup || !statuses[0].Present {
		t.Errorf("video status wrong: %+v", statuses[0])
	}
	if statuses[1].Setup || statuses[1].Present {
		t.Errorf("audio status wrong: %+v", statuses[1])
	}
}

func TestPublishesDeviceStateEvents(t *testing.T) {
	bus := events.New()
	defer bus.Close()

	var mu sync.Mutex
	var got []events.DeviceStateEvent
	unsub := bus.Subscribe(func(e events.DeviceStateEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	defer unsub()

	video := &fakeGuard{family: "video", identity: "/dev/video10"}
	audio := &fakeGuard{family: "audio", identity: "virtmic", setupErr: errors.New("no sound server")}
	s := New(video, audio, bus, testLogger())
	s.SetupAll(context.Background())

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	byFamily := make(map[string]events.DeviceStateEvent, 2)
	for _, e := range got {
		byFamily[e.Family] = e
	}
	if e := byFamily["video"]; !e.Ready || e.Error != "" {
		t.Errorf("video event wrong: %+v", e)
	}
	if e := byFamily["audio"]; e.Ready || e.Error == "" {
		t.Errorf("audio failure event wrong: %+v", e)
	}
}
