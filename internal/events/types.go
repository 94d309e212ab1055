package events

// Event type constants for kelindar/event.
const (
	TypeDeviceState uint32 = iota + 1
	TypeProcessState
	TypeStreamState
	TypeDownloadProgress
	TypeSynthesisProgress
	TypePreferencesChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceStateEvent is published when a resource guard finishes a setup or
// teardown attempt for one device family.
type DeviceStateEvent struct {
	Family    string `json:"family"`   // "video" or "audio"
	Identity  string `json:"identity"` // device path or sink name
	Ready     bool   `json:"ready"`    // true after a successful setup
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for DeviceStateEvent.
func (e DeviceStateEvent) Type() uint32 { return TypeDeviceState }

// ProcessStateEvent is published on managed process state transitions.
type ProcessStateEvent struct {
	Name      string `json:"name"`
	OldState  string `json:"old_state"`
	NewState  string `json:"new_state"`
	PID       int    `json:"pid,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ProcessStateEvent.
func (e ProcessStateEvent) Type() uint32 { return TypeProcessState }

// StreamStateEvent is published when a stream controller starts or stops a
// stream, including fallback substitutions.
type StreamStateEvent struct {
	Kind      string `json:"kind"` // "video" or "audio"
	Source    string `json:"source"`
	Active    bool   `json:"active"`
	Fallback  bool   `json:"fallback"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for StreamStateEvent.
func (e StreamStateEvent) Type() uint32 { return TypeStreamState }

// DownloadProgressEvent reports progress of an artifact download.
type DownloadProgressEvent struct {
	URL        string `json:"url"`
	Downloaded int64  `json:"downloaded"`
	Total      int64  `json:"total"` // -1 when unknown
	Done       bool   `json:"done"`
}

// Type returns the event type identifier for DownloadProgressEvent.
func (e DownloadProgressEvent) Type() uint32 { return TypeDownloadProgress }

// SynthesisProgressEvent reports progress of a speech synthesis run.
type SynthesisProgressEvent struct {
	Stage   string `json:"stage"` // "synthesize", "enhance", "done"
	Backend string `json:"backend,omitempty"`
	Output  string `json:"output,omitempty"`
}

// Type returns the event type identifier for SynthesisProgressEvent.
func (e SynthesisProgressEvent) Type() uint32 { return TypeSynthesisProgress }

// PreferencesChangedEvent is published when the preferences file is reloaded.
type PreferencesChangedEvent struct {
	Path string `json:"path"`
}

// Type returns the event type identifier for PreferencesChangedEvent.
func (e PreferencesChangedEvent) Type() uint32 { return TypePreferencesChanged }
