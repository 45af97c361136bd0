// Package logging provides structured logging using uber/zap.
//
// The gateway runs one of two modes, selected by LOG_DEV:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// The level comes from LOG_LEVEL via the config package; both knobs feed
// logging.New at startup.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", OutputPaths: []string{"stdout"}})
//	logger.Info("Gateway starting", zap.String("port", "8000"))
//	logger.Error("Analyzer unreachable", zap.Error(err))
package logging
