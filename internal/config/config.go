package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. GEARSHELF_SERVER_PORT
const EnvPrefix = "GEARSHELF"

// AppConfig represents the main application configuration
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Paths     PathConfig      `mapstructure:"paths"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Retention RetentionConfig `mapstructure:"retention"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// PathConfig holds filesystem locations owned by the application
type PathConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// ScannerConfig tunes the directory scanner
type ScannerConfig struct {
	Workers int `mapstructure:"workers"`
}

// RetentionConfig controls the inactive-plugin cleanup job
type RetentionConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Days     int    `mapstructure:"days"`
	Schedule string `mapstructure:"schedule"`
}

// LoggingConfig selects log verbosity and output format
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig configures the OpenTelemetry exporter
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"` // stdout or otlp
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// RateLimitConfig throttles the HTTP command and search endpoints
type RateLimitConfig struct {
	ScansPerMinute int           `mapstructure:"scans_per_minute"`
	ScanBurst      int           `mapstructure:"scan_burst"`
	SearchMax      int           `mapstructure:"search_max"`
	SearchWindow   time.Duration `mapstructure:"search_window"`
}

// ConfigLoader reads configuration from file, environment and defaults
type ConfigLoader struct {
	viper *viper.Viper
}

// NewConfigLoader creates a loader searching the standard config locations
func NewConfigLoader() *ConfigLoader {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "gearshelf"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	return &ConfigLoader{viper: v}
}

// SetConfigFile pins the loader to one explicit file
func (l *ConfigLoader) SetConfigFile(path string) {
	l.viper.SetConfigFile(path)
}

// Set overrides a single key, used for command-line flags
func (l *ConfigLoader) Set(key string, value interface{}) {
	l.viper.Set(key, value)
}

// Load reads, unmarshals and validates the configuration
func (l *ConfigLoader) Load() (*AppConfig, error) {
	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig
	if err := l.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyDatabaseDefaults(&config.Database)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// ConfigFileUsed returns the file viper read, or "" when running on defaults
func (l *ConfigLoader) ConfigFileUsed() string {
	return l.viper.ConfigFileUsed()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8420)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.conn_max_idle_time", 0)

	v.SetDefault("paths.data_dir", defaultDataDir())

	v.SetDefault("scanner.workers", 4)

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.days", 30)
	v.SetDefault("retention.schedule", "@daily")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("rate_limit.scans_per_minute", 6)
	v.SetDefault("rate_limit.scan_burst", 1)
	v.SetDefault("rate_limit.search_max", 60)
	v.SetDefault("rate_limit.search_window", time.Minute)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "GearShelf")
	}
	return ".gearshelf"
}

// validateConfig validates the configuration values
func validateConfig(config *AppConfig) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if err := validateDatabaseConfig(&config.Database); err != nil {
		return err
	}

	if config.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir cannot be empty")
	}

	if config.Scanner.Workers < 1 {
		return fmt.Errorf("scanner.workers must be at least 1")
	}

	if config.Retention.Days < 0 {
		return fmt.Errorf("retention.days cannot be negative")
	}
	if config.Retention.Enabled {
		if _, err := cron.ParseStandard(config.Retention.Schedule); err != nil {
			return fmt.Errorf("retention.schedule is invalid: %w", err)
		}
	}

	switch config.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json")
	}

	if config.Tracing.Enabled {
		switch config.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be stdout or otlp")
		}
		if config.Tracing.SampleRatio < 0 || config.Tracing.SampleRatio > 1 {
			return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
		}
	}

	if config.RateLimit.ScansPerMinute < 1 {
		return fmt.Errorf("rate_limit.scans_per_minute must be at least 1")
	}
	if config.RateLimit.SearchMax < 1 {
		return fmt.Errorf("rate_limit.search_max must be at least 1")
	}

	return nil
}
