package sync

// Config holds configuration for the sync engine.
type Config struct {
	// CycleIntervalSeconds is the cadence of full cycle syncs.
	CycleIntervalSeconds int `mapstructure:"cycle_interval_seconds" default:"300"`
	// MicroIntervalSeconds is the cadence of micro-syncs for
	// latency-sensitive tables.
	MicroIntervalSeconds int `mapstructure:"micro_interval_seconds" default:"15"`
	// MicroBatchSize bounds the ChangeSet pushed by one micro-sync.
	MicroBatchSize int `mapstructure:"micro_batch_size" default:"50"`
	// MicroFlushThreshold flushes a micro table early once this many local
	// writes have queued, without waiting for the interval.
	MicroFlushThreshold int `mapstructure:"micro_flush_threshold" default:"25"`
	// LiveTTLMinutes is the age after which live score rows are tombstoned
	// by the expiry sweep.
	LiveTTLMinutes int `mapstructure:"live_ttl_minutes" default:"180"`
	// SweepIntervalSeconds is the cadence of the expiry sweep.
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" default:"60"`
	// WatermarkPath is the persisted watermark map location.
	WatermarkPath string `mapstructure:"watermark_path" default:"data/state/watermarks.json"`
	// ForceMerge re-runs the startup merge even on a warm restart.
	ForceMerge bool `mapstructure:"force_merge" default:"false"`
}
