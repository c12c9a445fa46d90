package store

// Config holds configuration for the flat-file local store.
type Config struct {
	// Dir is the directory holding one CSV file per table.
	Dir string `mapstructure:"dir" default:"data/store"`
	// LockTimeoutSeconds is the default write-lock budget for mutations.
	LockTimeoutSeconds int `mapstructure:"lock_timeout_seconds" default:"10"`
}
