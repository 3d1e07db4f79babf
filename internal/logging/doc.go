// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output, debug level
//
// Components take a *Logger that may be nil; OrNop turns nil into a no-op
// logger and Named scopes it ("scanner", "session", "backend").
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("session tracked", zap.String("session", id))
//	logger.Warn("failed to save sessions", zap.Error(err))
package logging
