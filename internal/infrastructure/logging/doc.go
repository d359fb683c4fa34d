// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr by default so stdout stays free for a parent process
// that embeds the host.
//
// Components log through named children and attach structured fields
// rather than formatting values into the message:
//
//	logger := logging.NewDefault()
//	log := logger.Component("terminal")
//	log.Info("Spawned session", zap.String("session_id", id), zap.Int("pid", pid))
package logging
