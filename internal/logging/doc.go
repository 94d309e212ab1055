// Package logging provides structured logging with per-module log level configuration.
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"resource": "debug",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("stream")
//	logger.Info("Stream started", "source", name)
//
// When running under systemd, filter with:
//
//	journalctl -t virtcam MODULE=resource
package logging
