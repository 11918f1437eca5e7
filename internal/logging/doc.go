// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout when it is a terminal, pipe or file, to the systemd
// journal when journald is running, and always to an in-memory history that
// the HTTP API exposes at /api/logs.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"sequencer": "debug",
//			"http":      "warn",
//		},
//	})
//
// Then fetch a logger per module:
//
//	logger := logging.GetLogger("sequencer")
//	logger.Info("Program uploaded", "steps", 12)
//
// Loggers obtained before Initialize are kept; their levels are updated in
// place when the configuration arrives.
//
// # Viewing Logs
//
//	journalctl -t tc420 -f
//	journalctl -t tc420 MODULE=sequencer
//	journalctl -t tc420 -p err
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//	history = 500
//
//	[logging.modules]
//	sequencer = "debug"
//	transport = "debug"
package logging
