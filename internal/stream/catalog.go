package stream

// SourceType classifies how a catalog source is obtained.
type SourceType string

// Source types.
const (
	TypeGenerated SourceType = "generated" // ffmpeg lavfi pattern
	TypeDownload  SourceType = "download"  // fetched media file
	TypeSpeech    SourceType = "speech"    // synthesized speech
	TypeTone      SourceType = "tone"      // generated test tone
	TypeSilence   SourceType = "silence"   // no producer at all
)

// Source is one entry in the built-in content catalog.
type Source struct {
	Name        string
	Type        SourceType
	Description string

	// File is the cache filename for download, speech and tone sources.
	File string

	// URL is set for download sources.
	URL string

	// Text is the script for speech sources.
	Text string
}

// videoCatalog lists the built-in video sources.
var videoCatalog = []Source{
	{
		Name:        "Test Pattern",
		Type:        TypeGenerated,
		Description: "Color test pattern",
	},
	{
		Name:        "Surfing HD",
		Type:        TypeDownload,
		File:        "surfing.mp4",
		URL:         "https://filesamples.com/samples/video/mp4/sample_1280x720_surfing_with_audio.mp4",
		Description: "HD surfing footage",
	},
	{
		Name:        "Ocean Waves",
		Type:        TypeDownload,
		File:        "ocean.mp4",
		URL:         "https://filesamples.com/samples/video/mp4/sample_960x540_ocean_with_audio.mp4",
		Description: "Ocean wave scenes",
	},
}

// audioCatalog lists the built-in audio sources.
var audioCatalog = []Source{
	{
		Name:        "Meeting Voice",
		Type:        TypeSpeech,
		File:        "meeting_voice.wav",
		Text:        "Hello everyone... Thanks for joining the meeting today. Um, let me just share my screen here... Can everyone see this clearly? ... Great! So, let's begin with our agenda. First up, we need to discuss the project timeline. Uh, the development is going really well actually. We're definitely on track for the deadline. Any questions so far? ... No? Excellent. Let's move on to the next topic then.",
		Description: "Natural meeting conversation",
	},
	{
		Name:        "Professional Talk",
		Type:        TypeSpeech,
		File:        "professional.wav",
		Text:        "Good morning everyone. I'll be presenting our quarterly results today. So, as you can see on this slide here, our performance has really exceeded expectations. Revenue is up by, uh, fifteen percent, which is fantastic. Customer satisfaction scores have improved significantly as well. Now, let's look at the detailed breakdown... These numbers really reflect the hard work of the entire team. Really great job everyone.",
		Description: "Professional presentation",
	},
	{
		Name:        "Casual Chat",
		Type:        TypeSpeech,
		File:        "casual_chat.wav",
		Text:        "Hey! How's it going? ... Yeah, yeah, I saw that email too. Oh man, did you catch the game last night? It was pretty amazing, right? ... Oh, by the way, we should probably sync up about next week's presentation. I can share my screen if you want to take a look at the draft... Just let me know what works for you, okay?",
		Description: "Casual conversation",
	},
	{
		Name:        "Quick Update",
		Type:        TypeSpeech,
		File:        "quick_update.wav",
		Text:        "Hi folks, just a quick update here... So the project is on track. We completed the first milestone yesterday, which is great. Um, no blockers at the moment, everything's running smoothly. I'll have the full report ready by end of day. Thanks everyone!",
		Description: "Brief status update",
	},
	{
		Name:        "Test Audio",
		Type:        TypeSpeech,
		File:        "test_audio.wav",
		Text:        "Testing, testing, one two three... Can you hear me clearly? Hello? ... This is a microphone test. Audio check... audio check... Is this coming through okay?",
		Description: "Microphone test",
	},
	{
		Name:        "Simple Tone",
		Type:        TypeTone,
		File:        "tone.wav",
		Description: "440Hz test tone",
	},
	{
		Name:        "Silence",
		Type:        TypeSilence,
		Description: "No audio output",
	},
}

// VideoSources returns the video catalog in display order.
func VideoSources() []Source {
	out := make([]Source, len(videoCatalog))
	copy(out, videoCatalog)
	return out
}

// AudioSources returns the audio catalog in display order.
func AudioSources() []Source {
	out := make([]Source, len(audioCatalog))
	copy(out, audioCatalog)
	return out
}

func lookup(catalog []Source, name string) (Source, bool) {
	for _, s := range catalog {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// LookupVideo finds a video source by name.
func LookupVideo(name string) (Source, bool) {
	return lookup(videoCatalog, name)
}

// LookupAudio finds an audio source by name.
func LookupAudio(name string) (Source, bool) {
	return lookup(audioCatalog, name)
}
