// Package process provides supervised lifecycle management for external
// long-running processes.
//
// Managed wraps one subprocess:
//   - Start launches with suppressed standard streams and confirms the
//     process survives a settle window before declaring it Running
//   - Stop escalates SIGTERM -> SIGKILL with bounded timeouts and always
//     releases the native handle
//   - liveness queries reconcile tracked state with the OS
//   - mutating operations are serialized per handle
//
// Registry tracks every handle the application creates:
//   - idempotent Register/Unregister
//   - StopAll sweeps a snapshot and never short-circuits on one failure
//
// Example:
//
//	proc := process.New("video-stream", process.DefaultSettings(), logger)
//	registry.Register(proc)
//	if err := proc.Start([]string{"ffmpeg", "-i", "in.mp4", "-f", "v4l2", "/dev/video10"}); err != nil {
//	    // errors.Is(err, process.ErrAlreadyRunning) is a usage bug;
//	    // anything else is a normal negative result
//	}
//	defer registry.StopAll()
package process
