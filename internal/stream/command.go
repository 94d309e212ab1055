package stream

import "fmt"

// pixelFormat is what v4l2loopback consumers negotiate most reliably.
const pixelFormat = "yuyv422"

// defaultVolume is the amplification applied to audio file playback; the
// synthesized sources are quiet by default.
const defaultVolume = "2.5"

// Settings are the video geometry and rate for a stream.
type Settings struct {
	Width     int
	Height    int
	Framerate int
}

// DefaultSettings is the normal streaming quality.
func DefaultSettings() Settings {
	return Settings{Width: 640, Height: 480, Framerate: 30}
}

// VMSettings trades quality for CPU inside virtual machines.
func VMSettings() Settings {
	return Settings{Width: 360, Height: 240, Framerate: 15}
}

// vmFlags lighten the encode when running inside a VM.
var vmFlags = []string{"-preset", "ultrafast", "-bufsize", "1M"}

// testPatternArgs builds the ffmpeg invocation for the generated test
// pattern. Commands are argv slices end to end; nothing ever passes
// through a shell.
func testPatternArgs(s Settings, vmMode bool, device string) []string {
	args := []string{
		"ffmpeg",
		"-re",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc2=size=%dx%d:rate=%d", s.Width, s.Height, s.Framerate),
		"-pix_fmt", pixelFormat,
		"-f", "v4l2",
		"-vcodec", "rawvideo",
	}
	if vmMode {
		args = append(args, vmFlags...)
	}
	return append(args, device)
}

// videoFileArgs builds the ffmpeg invocation looping a media file into the
// device.
func videoFileArgs(path string, s Settings, vmMode bool, device string) []string {
	args := []string{
		"ffmpeg",
		"-re",
		"-stream_loop", "-1",
		"-i", path,
		"-vf", fmt.Sprintf("scale=%d:%d", s.Width, s.Height),
		"-pix_fmt", pixelFormat,
		"-f", "v4l2",
		"-vcodec", "rawvideo",
	}
	if vmMode {
		args = append(args, vmFlags...)
	}
	return append(args, device)
}

// fallbackVideoArgs builds the degraded built-in source, a plain blue
// frame. It has no file dependency and only needs lavfi, so it works when
// everything else does not.
func fallbackVideoArgs(s Settings, device string) []string {
	return []string{
		"ffmpeg",
		"-re",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=blue:s=%dx%d:r=%d", s.Width, s.Height, s.Framerate),
		"-pix_fmt", pixelFormat,
		"-f", "v4l2",
		device,
	}
}

// audioFileArgs builds the ffmpeg invocation looping an audio file into
// the pulse sink.
func audioFileArgs(path, sink, volume string) []string {
	return []string{
		"ffmpeg",
		"-re",
		"-stream_loop", "-1",
		"-i", path,
		"-af", "volume=" + volume,
		"-f", "pulse",
		sink,
	}
}
