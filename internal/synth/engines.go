package synth

// Engine command-line shapes for the supported speech backends. All
// backends take the text as a plain argument or on stdin, never through a
// shell, so arbitrary script text cannot inject commands.

// espeak tuning, shared by espeak and espeak-ng.
const (
	espeakSpeed     = "160"
	espeakPitch     = "50"
	espeakAmplitude = "200"
)

// fliteVoices maps script names to flite voice names.
var fliteVoices = map[string]string{
	"Meeting Voice":     "slt",
	"Professional Talk": "awb",
	"Casual Chat":       "awb",
	"Quick Update":      "slt",
	"Test Audio":        "kal",
}

// espeakVoices maps script names to espeak voice variants.
var espeakVoices = map[string]string{
	"Meeting Voice":     "en+f3",
	"Professional Talk": "en+m3",
	"Casual Chat":       "en+m7",
	"Quick Update":      "en+f2",
	"Test Audio":        "en+m4",
}

func voiceFor(m map[string]string, script, fallback string) string {
	if v, ok := m[script]; ok {
		return v
	}
	return fallback
}

// engine describes one speech backend: the binary to probe for and how to
// build its invocation.
type engine struct {
	name string

	// command is the binary probed with LookPath. For festival the
	// synthesis frontend is text2wave, not the festival binary itself.
	command string

	// argv builds the invocation; stdin is non-nil for backends that
	// read the text from standard input.
	argv func(text, output, script string) (args []string, stdin []byte)
}

// enginesByPreference lists backends most natural first. Selection walks
// this order and takes the first installed one.
var enginesByPreference = []engine{
	{
		name:    "flite",
		command: "flite",
		argv: func(text, output, script string) ([]string, []byte) {
			voice := voiceFor(fliteVoices, script, "slt")
			return []string{"-voice", voice, "-t", text, "-o", output}, nil
		},
	},
	{
		name:    "pico2wave",
		command: "pico2wave",
		argv: func(text, output, script string) ([]string, []byte) {
			return []string{"-l", "en-US", "-w", output, text}, nil
		},
	},
	{
		name:    "espeak-ng",
		command: "espeak-ng",
		argv: func(text, output, script string) ([]string, []byte) {
			voice := voiceFor(espeakVoices, script, "en+m3")
			return []string{"-v", voice, "-s", espeakSpeed, "-p", espeakPitch,
				"-a", espeakAmplitude, "-w", output, text}, nil
		},
	},
	{
		name:    "festival",
		command: "text2wave",
		argv: func(text, output, script string) ([]string, []byte) {
			return []string{"-eval", "(voice_cmu_us_slt_arctic_hts)", "-o", output}, []byte(text)
		},
	},
	{
		name:    "espeak",
		command: "espeak",
		argv: func(text, output, script string) ([]string, []byte) {
			voice := voiceFor(espeakVoices, script, "en+f3")
			return []string{"-v", voice, "-s", espeakSpeed, "-p", espeakPitch,
				"-a", espeakAmplitude, "-w", output, text}, nil
		},
	},
}
