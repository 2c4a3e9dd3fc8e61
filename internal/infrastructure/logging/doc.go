// Package logging provides structured logging for illuminate-door.
//
// This package wraps go.uber.org/zap to provide consistent, structured
// key-value logging across the application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Console output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, console
//	  output: "stdout"   # stdout, stderr
//
// Each automation additionally chooses whether its routine messages are
// logged at debug or info (log_level in its block).
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("door opened", "sensor", "binary_sensor.front_door")
//	logger.Error("failed to turn on entity", "error", err)
//
// # Security
//
// Never log tokens or passwords.
package logging
