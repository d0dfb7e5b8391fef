// Package logging provides structured logging for Gray Logic Things.
//
// It wraps the standard log/slog package so every component logs with the
// same handler, level filter and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("update loop started", "thing_id", "humidity-sensor")
//	loopLog := logger.With("component", "updater")
//
// Packages that only need to emit log lines accept a small Logger interface
// (Debug/Info/Warn/Error) rather than this concrete type, so *Logger can be
// passed anywhere and tests can use a no-op.
package logging
