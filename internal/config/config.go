// Package config loads application configuration from defaults, an optional
// YAML file, and environment-variable overrides, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultMaxMessageSize is 25 MB in bytes.
const defaultMaxMessageSize = 26214400

// Config holds the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// StorageConfig holds database settings.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// IngestConfig holds ingestion limits.
type IngestConfig struct {
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	dataDir := filepath.Join(homeDir, ".mail-ingest")

	cfg := &Config{}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = "8080"
	cfg.Storage.DBPath = filepath.Join(dataDir, "mail.db")
	cfg.Ingest.MaxMessageSize = defaultMaxMessageSize
	cfg.Logging.Level = "info"
	return cfg
}

// Load builds configuration from defaults, the optional YAML file at path,
// then environment variables. Environment variables always win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvVars()
	return cfg, nil
}

// Address returns the full server address.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// SlogLevel maps the configured level string to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("MAIL_INGEST_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MAIL_INGEST_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("MAIL_INGEST_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("MAIL_INGEST_MAX_MESSAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Ingest.MaxMessageSize = size
		}
	}
	if v := os.Getenv("MAIL_INGEST_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
