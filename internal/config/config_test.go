package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func validConfig() *AppConfig {
	return &AppConfig{
		Server:    ServerConfig{Port: 8420},
		Database:  DatabaseConfig{Driver: DriverSQLite},
		Paths:     PathConfig{DataDir: "/data"},
		Scanner:   ScannerConfig{Workers: 4},
		Retention: RetentionConfig{Enabled: true, Days: 30, Schedule: "@daily"},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		RateLimit: RateLimitConfig{ScansPerMinute: 6, SearchMax: 60, SearchWindow: time.Minute},
	}
}

func TestConfigLoader_Defaults(t *testing.T) {
	loader := NewConfigLoader()
	loader.SetConfigFile(writeConfig(t, "server:\n  port: 8420\n"))

	config, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, DriverSQLite, config.Database.Driver)
	assert.Equal(t, DefaultSQLiteMaxOpenConns, config.Database.MaxOpenConns)
	assert.Equal(t, DefaultSQLiteMaxOpenConns, config.Database.MaxIdleConns)
	assert.Equal(t, 4, config.Scanner.Workers)
	assert.Equal(t, 30, config.Retention.Days)
	assert.Equal(t, "@daily", config.Retention.Schedule)
	assert.Equal(t, "console", config.Logging.Format)
	assert.False(t, config.Tracing.Enabled)
	assert.Equal(t, time.Minute, config.RateLimit.SearchWindow)
	assert.NotEmpty(t, config.Paths.DataDir)
}

func TestConfigLoader_Load(t *testing.T) {
	loader := NewConfigLoader()
	loader.SetConfigFile(writeConfig(t, `
server:
  host: "0.0.0.0"
  port: 9090
database:
  driver: postgres
  dsn: "host=db user=gear dbname=gear sslmode=disable"
  max_open_conns: 20
paths:
  data_dir: "/var/lib/gearshelf"
scanner:
  workers: 8
retention:
  days: 7
  schedule: "0 3 * * *"
logging:
  level: debug
  format: json
`))

	config, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, DriverPostgres, config.Database.Driver)
	assert.Equal(t, 20, config.Database.MaxOpenConns)
	assert.Equal(t, DefaultMaxIdleConns, config.Database.MaxIdleConns)
	assert.Equal(t, "/var/lib/gearshelf", config.Paths.DataDir)
	assert.Equal(t, 8, config.Scanner.Workers)
	assert.Equal(t, 7, config.Retention.Days)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
}

func TestConfigLoader_EnvironmentOverride(t *testing.T) {
	t.Setenv("GEARSHELF_SERVER_HOST", "env-host")
	t.Setenv("GEARSHELF_RETENTION_DAYS", "90")

	loader := NewConfigLoader()
	loader.SetConfigFile(writeConfig(t, "server:\n  host: \"localhost\"\n  port: 8888\nretention:\n  days: 5\n"))

	config, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "env-host", config.Server.Host)
	assert.Equal(t, 8888, config.Server.Port)
	assert.Equal(t, 90, config.Retention.Days)
}

func TestConfigLoader_FlagOverride(t *testing.T) {
	loader := NewConfigLoader()
	loader.SetConfigFile(writeConfig(t, "logging:\n  level: info\n"))
	loader.Set("logging.level", "debug")

	config, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestConfigLoader_MalformedFile(t *testing.T) {
	loader := NewConfigLoader()
	loader.SetConfigFile(writeConfig(t, "server: [unterminated\n"))

	_, err := loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfigValidation(t *testing.T) {
	require.NoError(t, validateConfig(validConfig()))

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"invalid port", func(c *AppConfig) { c.Server.Port = 70000 }, "server.port must be between 1 and 65535"},
		{"unknown driver", func(c *AppConfig) { c.Database.Driver = "mysql" }, "database.driver must be sqlite or postgres"},
		{"postgres without dsn", func(c *AppConfig) { c.Database.Driver = DriverPostgres }, "database.dsn cannot be empty"},
		{"missing data dir", func(c *AppConfig) { c.Paths.DataDir = "" }, "paths.data_dir cannot be empty"},
		{"no workers", func(c *AppConfig) { c.Scanner.Workers = 0 }, "scanner.workers must be at least 1"},
		{"negative retention", func(c *AppConfig) { c.Retention.Days = -1 }, "retention.days cannot be negative"},
		{"bad schedule", func(c *AppConfig) { c.Retention.Schedule = "every tuesday" }, "retention.schedule is invalid"},
		{"bad log format", func(c *AppConfig) { c.Logging.Format = "xml" }, "logging.format must be console or json"},
		{"bad exporter", func(c *AppConfig) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "zipkin"
		}, "tracing.exporter must be stdout or otlp"},
		{"zero scan rate", func(c *AppConfig) { c.RateLimit.ScansPerMinute = 0 }, "rate_limit.scans_per_minute must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)
			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigValidation_DisabledRetentionIgnoresSchedule(t *testing.T) {
	config := validConfig()
	config.Retention.Enabled = false
	config.Retention.Schedule = "not a schedule"
	assert.NoError(t, validateConfig(config))
}

func TestDatabaseConfig_ResolvePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", "plugins.db"), DatabaseConfig{}.ResolvePath("/data"))
	assert.Equal(t, "/tmp/custom.db", DatabaseConfig{Path: "/tmp/custom.db"}.ResolvePath("/data"))
}
