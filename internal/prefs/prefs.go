// Package prefs persists the user's last selections between runs. The
// preferences file is TOML, written atomically so a crash mid-save never
// corrupts it, and can be watched for external edits.
package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/virtcam/virtcam/internal/config"
	"github.com/virtcam/virtcam/internal/events"
)

// Preferences are the persisted user selections.
type Preferences struct {
	VideoSelection string  `toml:"video_selection"`
	AudioSelection string  `toml:"audio_selection"`
	VMMode         bool    `toml:"vm_mode"`
	Volume         float64 `toml:"volume"`
}

// Defaults returns the stock preferences.
func Defaults() Preferences {
	return Preferences{
		VideoSelection: "Test Pattern",
		AudioSelection: "Meeting Voice",
		VMMode:         false,
		Volume:         2.5,
	}
}

// Store loads and saves one preferences file.
type Store struct {
	path   string
	bus    *events.Bus
	logger *slog.Logger

	mu       sync.Mutex
	current  Preferences
	watcher  *config.Watcher[Preferences]
	debounce time.Duration
}

// NewStore creates a store over path and loads it. A missing or unreadable
// file falls back to defaults; only saving can fail.
func NewStore(path string, bus *events.Bus, logger *slog.Logger) *Store {
	s := &Store{path: path, bus: bus, logger: logger, debounce: 1500 * time.Millisecond}
	prefs, err := load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("preferences unreadable, using defaults", "path", path, "error", err)
		}
		prefs = Defaults()
	}
	s.current = prefs
	return s
}

// Get returns the current preferences.
func (s *Store) Get() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update applies fn to the preferences and saves the result.
func (s *Store) Update(fn func(*Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	fn(&next)
	if err := save(s.path, next); err != nil {
		return err
	}
	s.current = next
	s.logger.Debug("preferences saved", "path", s.path)
	return nil
}

// Reset restores defaults and saves them.
func (s *Store) Reset() error {
	return s.Update(func(p *Preferences) { *p = Defaults() })
}

// Watch reloads the store when the file changes on disk, publishing a
// PreferencesChangedEvent per reload. The file must exist before watching;
// call Save or Update first when unsure.
func (s *Store) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}
	w := config.NewWatcher(s.path, load, s.logger, config.WithDebounce[Preferences](s.debounce))
	w.OnReload(func(p Preferences) {
		s.mu.Lock()
		s.current = p
		s.mu.Unlock()
		s.logger.Info("preferences reloaded", "path", s.path)
		if s.bus != nil {
			s.bus.Publish(events.PreferencesChangedEvent{Path: s.path})
		}
	})
	if err := w.Start(); err != nil {
		return fmt.Errorf("watch preferences: %w", err)
	}
	s.watcher = w
	return nil
}

// Close stops the watcher if one is running.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Stop()
	s.watcher = nil
	return err
}

func load(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preferences{}, err
	}
	// Unknown keys are dropped, known keys keep their defaults when
	// absent.
	prefs := Defaults()
	if err := toml.Unmarshal(data, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("parse preferences: %w", err)
	}
	return prefs, nil
}

func save(path string, prefs Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	data, err := toml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
