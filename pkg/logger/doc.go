// Package logger provides the structured logging interface used across icloudalbum.
//
// It wraps zerolog with a small interface so that library code can accept any
// Logger (including the capturing TestLogger) while the CLI installs a global
// console or JSON logger.
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	logger.WithField("fetch_id", id).Info("Fetching album")
//	logger.WithError(err).Error("Download failed")
//
// Library code takes a Logger parameter and falls back to the global one:
//
//	log := logger.OrDefault(opts.Logger).WithField("component", "icloud")
//	log.WarnWithFields("skipping malformed photo", map[string]interface{}{
//	    "index": i,
//	})
package logger
