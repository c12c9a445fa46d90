// Package logger provides a structured logging facility based on Zap.
//
// The sync engine installs the configured logger as the process-wide
// default; every component receives it at construction and tags its
// entries with the table and sync_id it is working on.
//
// # Configuration
//
//   - Level: debug, info, warn, error
//   - Format: json (production) or console (development)
//
// # Usage
//
//	log, _ := logger.New(&cfg.Log)
//	log.Info("Startup merge complete", zap.String("sync_id", id))
//
//	// In a status endpoint handler:
//	l := logger.WithRayID(log, c)
//	l.Warn("Unauthorized status request")
package logger
