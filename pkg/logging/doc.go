// Package logging provides subsystem-tagged leveled logging for hotpatch,
// built on the standard slog package.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Transport", "Connected to %s", url)
//	logging.Debug("Reconciler", "Merged partial update for %s", res)
//	logging.Error("Devserver", err, "Failed to publish spool file %s", path)
//
// Every entry carries a "subsystem" attribute and, for Error, an "error"
// attribute. Messages below the configured level are dropped before
// formatting.
//
// # Subsystems
//
//   - Bootstrap: configuration loading and application startup
//   - Reconciler: update aggregation, delivery and resets
//   - Transport: socket connection and reconnects
//   - Devserver: update server and spool watching
//
// Init may be called again (for example from tests); the package is safe for
// concurrent use.
package logging
