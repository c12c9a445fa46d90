package database

// Config holds configuration for the cloud database connection.
type Config struct {
	// Host is the database host.
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the database port.
	Port int `mapstructure:"port" default:"3306"`
	// User is the database user.
	User string `mapstructure:"user" default:"root"`
	// Password is the database password.
	Password string `mapstructure:"password" default:""`
	// Name is the database name.
	Name string `mapstructure:"name" default:"leobook"`
	// TimeoutSeconds bounds connection setup and per-query I/O. The sync
	// engine treats a slow remote the same as an unreachable one.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
