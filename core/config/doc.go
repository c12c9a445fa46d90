// Package config provides configuration management for the sync engine.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP status server settings (port, API key)
//   - Store: flat-file local store location and lock budget
//   - Database: MySQL connection details for the cloud store
//   - Sync: cycle cadence, micro-sync triggers, live score TTL
//   - Storage: S3/MinIO credentials for crest assets
//   - Log: Logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.CycleIntervalSeconds)
package config
