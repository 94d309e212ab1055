package stream

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestAudio(t *testing.T, proc *fakeProc, gen *fakeGen) (*AudioController, string) {
	t.Helper()
	dir := t.TempDir()
	return NewAudio("virtmic", dir, proc, gen, nil, testLogger()), dir
}

func TestAudioSilenceModeRunsNoProcess(t *testing.T) {
	proc := &fakeProc{}
	c, _ := newTestAudio(t, proc, &fakeGen{})

	if err := c.Start(context.Background(), "Silence"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := c.Status()
	if !st.Running || !st.Silence || st.PID != 0 {
		t.Errorf("status wrong: %+v", st)
	}
	if len(proc.starts) != 0 {
		t.Error("silence mode launched a process")
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.Status().Running {
		t.Error("still running after leaving silence mode")
	}
	if proc.stops != 0 {
		t.Error("silence stop touched the process")
	}
}

func TestAudioStartGeneratesMissingSpeech(t *testing.T) {
	proc := &fakeProc{}
	gen := &fakeGen{}
	c, dir := newTestAudio(t, proc, gen)

	if err := c.Start(context.Background(), "Meeting Voice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(gen.speaks) != 1 || gen.speaks[0] != "Meeting Voice" {
		t.Errorf("speech not generated with the script hint: %v", gen.speaks)
	}
	argv := proc.lastStart()
	if !argvContains(argv, filepath.Join(dir, "meeting_voice.wav")) {
		t.Errorf("generated file not streamed: %v", argv)
	}
	if !argvContains(argv, "volume=2.5") || argv[len(argv)-1] != "virtmic" {
		t.Errorf("unexpected argv: %v", argv)
	}
}

func TestAudioVolumeOverride(t *testing.T) {
	proc := &fakeProc{}
	c, _ := newTestAudio(t, proc, &fakeGen{})
	c.SetVolume(6)
	c.SetVolume(-1) // ignored

	if err := c.Start(context.Background(), "Meeting Voice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if argv := proc.lastStart(); !argvContains(argv, "volume=6") {
		t.Errorf("volume override missing: %v", argv)
	}
}

func TestAudioStartUsesCachedFile(t *testing.T) {
	proc := &fakeProc{}
	gen := &fakeGen{}
	c, dir := newTestAudio(t, proc, gen)
	if err := os.WriteFile(filepath.Join(dir, "test_audio.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := c.Start(context.Background(), "Test Audio"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(gen.speaks) != 0 {
		t.Error("regenerated an already cached file")
	}
}

func TestAudioGenerationFailureDegradesToSilence(t *testing.T) {
	proc := &fakeProc{}
	c, _ := newTestAudio(t, proc, &fakeGen{err: errors.New("no speech backend installed")})

	if err := c.Start(context.Background(), "Quick Update"); err != nil {
		t.Fatalf("Start should degrade, got %v", err)
	}
	st := c.Status()
	if !st.Running || !st.Silence {
		t.Errorf("status wrong: %+v", st)
	}
	if len(proc.starts) != 0 {
		t.Error("process started without an artifact")
	}
}

func TestAudioToneGeneration(t *testing.T) {
	gen := &fakeGen{}
	c, dir := newTestAudio(t, &fakeProc{}, gen)

	if err := c.Generate(context.Background(), "Simple Tone"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.tones != 1 {
		t.Errorf("got %d tone generations, want 1", gen.tones)
	}
	if _, err := os.Stat(filepath.Join(dir, "tone.wav")); err != nil {
		t.Errorf("tone file missing: %v", err)
	}
	// Silence needs no artifact.
	if err := c.Generate(context.Background(), "Silence"); err != nil {
		t.Errorf("Generate silence: %v", err)
	}
}

func TestAudioStartWhileStreaming(t *testing.T) {
	c, _ := newTestAudio(t, &fakeProc{}, &fakeGen{})

	if err := c.Start(context.Background(), "Silence"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background(), "Simple Tone"); !errors.Is(err, ErrAlreadyStreaming) {
		t.Errorf("got %v, want ErrAlreadyStreaming", err)
	}
}

func TestAudioUnknownSource(t *testing.T) {
	c, _ := newTestAudio(t, &fakeProc{}, &fakeGen{})
	if err := c.Start(context.Background(), "Whale Song"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("got %v, want ErrUnknownSource", err)
	}
}

func TestAudioRestartReusesSource(t *testing.T) {
	proc := &fakeProc{}
	gen := &fakeGen{}
	c, _ := newTestAudio(t, proc, gen)

	if err := c.Start(context.Background(), "Casual Chat"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Restart(context.Background(), ""); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if c.Status().Source != "Casual Chat" {
		t.Errorf("restart lost the source: %+v", c.Status())
	}
	if len(proc.starts) != 2 {
		t.Errorf("got %d starts, want 2", len(proc.starts))
	}
}

func TestAudioClearCache(t *testing.T) {
	c, dir := newTestAudio(t, &fakeProc{}, &fakeGen{})
	for _, name := range []string{"a.wav", "b.wav", "keep.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if got := c.ClearCache(); got != 2 {
		t.Errorf("got %d deleted, want 2", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.mp4")); err != nil {
		t.Error("non-wav file deleted")
	}
}
