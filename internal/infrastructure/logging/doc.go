// Package logging provides structured logging for Gray Logic Energy.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the polling service.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Optional append-only file destination for headless deployments
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file: ""           # path, required when output is "file"
//
// # Usage
//
//	logger, err := logging.New(cfg.Logging, "1.0.0")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.Info("poll cycle complete", "devices", 4, "failures", 1)
//
// # Security
//
// Never log secrets, tokens, passwords, or API keys. Device credentials
// pass through this service; log the identity at most, never the secret.
package logging
