// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort        = 8080
	defaultServerHost        = "0.0.0.0"
	defaultReadTimeout       = 30 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultDatabasePath      = "./data/airwave.db"
	defaultLogLevel          = "info"
	defaultLogPretty         = false
	defaultLineupDataDir     = "./data/lineups"
	defaultRefreshInterval   = 4 * time.Hour
	defaultWindowDuration    = 12 * time.Hour
	defaultMaxBuildRetries   = 3
	defaultRetryBackoffBase  = 2 * time.Second
	defaultMaxMeldDuration   = 30 * time.Minute
	defaultMaxFlexDuration   = 6 * time.Hour
	defaultBuildParallelism  = 8
	defaultGuideMinimumEntry = 5 * time.Minute
	envPrefix                = "AIRWAVE"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Lineup   LineupConfig
	Guide    GuideConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// LineupConfig holds lineup store configuration
type LineupConfig struct {
	// DataDir is the directory holding per-channel lineup JSON blobs
	DataDir string
}

// GuideConfig holds guide build and refresh configuration
type GuideConfig struct {
	// RefreshInterval is how often the guide cache is rebuilt
	RefreshInterval time.Duration
	// WindowDuration is the forward-looking horizon of each rebuild
	WindowDuration time.Duration
	// MaxBuildRetries bounds the retry count for a failed refresh
	MaxBuildRetries int
	// RetryBackoffBase is the first retry delay; each retry doubles it
	RetryBackoffBase time.Duration
	// MaxMeldDuration caps the accumulated padding melded into one flex run
	MaxMeldDuration time.Duration
	// MaxFlexDuration caps any single emitted flex block; longer blocks are
	// split into consecutive chunks
	MaxFlexDuration time.Duration
	// BuildParallelism bounds how many channels build concurrently
	BuildParallelism int
	// DefaultGuideMinimum is used for channels with no per-channel threshold
	DefaultGuideMinimum time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/airwave")

	// Environment variable settings
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Lineup defaults
	v.SetDefault("lineup.datadir", defaultLineupDataDir)

	// Guide defaults
	v.SetDefault("guide.refreshinterval", defaultRefreshInterval)
	v.SetDefault("guide.windowduration", defaultWindowDuration)
	v.SetDefault("guide.maxbuildretries", defaultMaxBuildRetries)
	v.SetDefault("guide.retrybackoffbase", defaultRetryBackoffBase)
	v.SetDefault("guide.maxmeldduration", defaultMaxMeldDuration)
	v.SetDefault("guide.maxflexduration", defaultMaxFlexDuration)
	v.SetDefault("guide.buildparallelism", defaultBuildParallelism)
	v.SetDefault("guide.defaultguideminimum", defaultGuideMinimumEntry)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Lineup.DataDir == "" {
		return fmt.Errorf("lineup data directory must be set")
	}

	if c.Guide.RefreshInterval <= 0 {
		return fmt.Errorf("invalid guide refresh interval: %v (must be > 0)", c.Guide.RefreshInterval)
	}
	if c.Guide.WindowDuration <= 0 {
		return fmt.Errorf("invalid guide window duration: %v (must be > 0)", c.Guide.WindowDuration)
	}
	if c.Guide.MaxBuildRetries < 0 {
		return fmt.Errorf("invalid guide max build retries: %d (must be >= 0)", c.Guide.MaxBuildRetries)
	}
	if c.Guide.RetryBackoffBase <= 0 {
		return fmt.Errorf("invalid guide retry backoff base: %v (must be > 0)", c.Guide.RetryBackoffBase)
	}
	if c.Guide.MaxMeldDuration <= 0 {
		return fmt.Errorf("invalid guide max meld duration: %v (must be > 0)", c.Guide.MaxMeldDuration)
	}
	if c.Guide.MaxFlexDuration <= 0 {
		return fmt.Errorf("invalid guide max flex duration: %v (must be > 0)", c.Guide.MaxFlexDuration)
	}
	if c.Guide.BuildParallelism < 1 {
		return fmt.Errorf("invalid guide build parallelism: %d (must be >= 1)", c.Guide.BuildParallelism)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
