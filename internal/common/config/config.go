// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Bot       BotConfig       `mapstructure:"bot"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Teams     TeamsConfig     `mapstructure:"teams"`
	Form      FormConfig      `mapstructure:"form"`
	PubMap    PubMapConfig    `mapstructure:"pubmap"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BotConfig holds the chat platform connection settings. AdminGroupID is the
// review channel; every administrative action is gated on it.
type BotConfig struct {
	Token          string `mapstructure:"token"`
	AdminGroupID   int64  `mapstructure:"admin_group_id"`
	APIBaseURL     string `mapstructure:"api_base_url"`
	PollTimeout    int    `mapstructure:"poll_timeout"`    // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// StorageConfig locates the durable collections.
type StorageConfig struct {
	DataDir          string `mapstructure:"data_dir"`
	ApplicationsFile string `mapstructure:"applications_file"`
	UsersFile        string `mapstructure:"users_file"`
	BannedFile       string `mapstructure:"banned_file"`
}

// TeamsConfig locates the optional team registry document. When the path is
// empty or the file is absent the compiled-in team table is used.
type TeamsConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

// FormConfig bounds the conversational form.
type FormConfig struct {
	ReasonMinLength     int `mapstructure:"reason_min_length"`
	ReasonMaxLength     int `mapstructure:"reason_max_length"`
	ExperienceMinLength int `mapstructure:"experience_min_length"`
	ExperienceMaxLength int `mapstructure:"experience_max_length"`
	CooldownHours       int `mapstructure:"cooldown_hours"`
}

// PubMapConfig bounds the publication map.
type PubMapConfig struct {
	Backend    string `mapstructure:"backend"` // "memory" or "redis"
	TTL        int    `mapstructure:"ttl"`     // milliseconds
	MaxEntries int    `mapstructure:"max_entries"`
}

// RelayConfig bounds media forwarded through the live relay.
type RelayConfig struct {
	MediaMaxBytes int64 `mapstructure:"media_max_bytes"`
}

// BroadcastConfig throttles admin fan-out.
type BroadcastConfig struct {
	MinLength int `mapstructure:"min_length"`
	Throttle  int `mapstructure:"throttle"` // milliseconds between sends
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ArchiveConfig toggles the Postgres decision archive. When disabled the
// router records decisions on the store only.
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
