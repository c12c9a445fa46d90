// Package database handles the cloud database connection and schema
// inspection.
//
// It wraps GORM to configure the managed MySQL connection from the
// application's configuration. The connection is optional at startup: the
// local store accepts writes regardless, and the sync engine retries the
// remote on its own cadence.
//
// # Schema Inspection
//
// MissingColumns compares a remote table against the table registry and
// reports expected columns the remote lacks. The check command uses it to
// explain schema-mismatch suspensions without touching any data.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("Cloud database unreachable, starting local-only")
//	}
package database
