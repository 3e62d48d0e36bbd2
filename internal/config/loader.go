package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/taskhub/internal/logging"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config captures file and environment driven configuration values for the
// taskhub service.
type Config struct {
	HTTPPort        int           `yaml:"http_port"`
	Storage         string        `yaml:"storage"`
	SQLitePath      string        `yaml:"sqlite_path"`
	Timezone        string        `yaml:"timezone"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	AllocAttempts   int           `yaml:"alloc_max_attempts"`
	AllocBackoff    time.Duration `yaml:"alloc_backoff"`
	JanitorSchedule string        `yaml:"janitor_schedule"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// SeedOwners are provisioned at startup when missing.
	SeedOwners []string `yaml:"seed_owners"`

	// Location is resolved from Timezone and used for zone-less request
	// timestamps.
	Location *time.Location `yaml:"-"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTPPort:        8080,
		Storage:         StorageSQLite,
		SQLitePath:      "taskhub.db",
		Timezone:        "UTC",
		LogLevel:        "info",
		LogFormat:       "json",
		AllocAttempts:   5,
		AllocBackoff:    10 * time.Millisecond,
		JanitorSchedule: "@every 1h",
		CORSOrigins:     []string{"*"},
		ShutdownTimeout: 10 * time.Second,
		Location:        time.UTC,
	}
}

// Load applies defaults, then the YAML file named by TASKHUB_CONFIG_FILE when
// set, then TASKHUB_* environment overrides.
//
// Every invalid value is collected and reported in a single error.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("TASKHUB_CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	invalid := make([]string, 0, 2)

	if value := env("TASKHUB_HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "TASKHUB_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if value := env("TASKHUB_STORAGE"); value != "" {
		cfg.Storage = strings.ToLower(value)
	}
	if value := env("TASKHUB_SQLITE_PATH"); value != "" {
		cfg.SQLitePath = value
	}
	if value := env("TASKHUB_TIMEZONE"); value != "" {
		cfg.Timezone = value
	}
	if value := env("TASKHUB_LOG_LEVEL"); value != "" {
		cfg.LogLevel = value
	}
	if value := env("TASKHUB_LOG_FORMAT"); value != "" {
		cfg.LogFormat = strings.ToLower(value)
	}
	if value := env("TASKHUB_ALLOC_MAX_ATTEMPTS"); value != "" {
		attempts, err := strconv.Atoi(value)
		if err != nil {
			invalid = append(invalid, "TASKHUB_ALLOC_MAX_ATTEMPTS")
		} else {
			cfg.AllocAttempts = attempts
		}
	}
	if value := env("TASKHUB_ALLOC_BACKOFF"); value != "" {
		backoff, err := time.ParseDuration(value)
		if err != nil {
			invalid = append(invalid, "TASKHUB_ALLOC_BACKOFF")
		} else {
			cfg.AllocBackoff = backoff
		}
	}
	if value := env("TASKHUB_JANITOR_SCHEDULE"); value != "" {
		cfg.JanitorSchedule = value
	}
	if value := env("TASKHUB_CORS_ORIGINS"); value != "" {
		cfg.CORSOrigins = splitList(value)
	}
	if value := env("TASKHUB_SHUTDOWN_TIMEOUT"); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			invalid = append(invalid, "TASKHUB_SHUTDOWN_TIMEOUT")
		} else {
			cfg.ShutdownTimeout = timeout
		}
	}

	if value := env("TASKHUB_SEED_OWNERS"); value != "" {
		cfg.SeedOwners = splitList(value)
	}

	invalid = append(invalid, cfg.validate()...)
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// validate checks the merged values and resolves Location. It returns the
// names of offending settings.
func (c *Config) validate() []string {
	var invalid []string
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, "http_port")
	}
	switch c.Storage {
	case StorageSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			invalid = append(invalid, "sqlite_path")
		}
	case StorageMemory:
	default:
		invalid = append(invalid, "storage")
	}
	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		invalid = append(invalid, "timezone")
	} else {
		c.Location = location
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		invalid = append(invalid, "log_level")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		invalid = append(invalid, "log_format")
	}
	if c.AllocAttempts <= 0 {
		invalid = append(invalid, "alloc_max_attempts")
	}
	if c.AllocBackoff < 0 {
		invalid = append(invalid, "alloc_backoff")
	}
	if len(c.CORSOrigins) == 0 {
		invalid = append(invalid, "cors_origins")
	}
	if c.ShutdownTimeout <= 0 {
		invalid = append(invalid, "shutdown_timeout")
	}
	return invalid
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
