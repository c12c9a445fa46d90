package logger

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn or error.
	Level string `mapstructure:"level" default:"info"`
	// Format selects the encoding: json for machines, console for humans.
	Format string `mapstructure:"format" default:"json"`
}
