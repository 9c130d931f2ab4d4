// Package config provides unified configuration for the Rollcall service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the Rollcall service.
type Config struct {
	// DataDir is the root directory for the registry database and the
	// per-event roster artifacts. Empty means the current working directory.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Archive configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Audit configuration
	Audit AuditConfig `json:"audit" yaml:"audit"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// ArchiveConfig holds roster archival configuration.
type ArchiveConfig struct {
	// Enabled controls whether roster archival is available
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Storage is the archive storage type: local, s3
	Storage string `json:"storage" yaml:"storage"`

	// Path is the local archive path (for local type)
	Path string `json:"path" yaml:"path"`

	// Prefix is the object key prefix for archived rosters
	Prefix string `json:"prefix" yaml:"prefix"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// AuditConfig holds audit log configuration.
type AuditConfig struct {
	// TailSize is the number of recent denials kept in memory
	TailSize int `json:"tail_size" yaml:"tail_size"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Storage: "local",
			Prefix:  "rosters",
		},
		Audit: AuditConfig{
			TailSize: 256,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
// An empty DataDir falls back to the current working directory.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.DataDir = wd
		} else {
			c.DataDir = "."
		}
	}

	if c.Archive.Storage == "local" && c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(c.DataDir, "archive")
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = "rosters"
	}
	if c.Audit.TailSize <= 0 {
		c.Audit.TailSize = 256
	}
}

// RegistryPath returns the path to the registry database.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "rollcall.db")
}

// EventsDir returns the root directory for per-event roster artifacts.
func (c *Config) EventsDir() string {
	return filepath.Join(c.DataDir, "events")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required (call Resolve first)")
	}

	if c.Archive.Storage != "local" && c.Archive.Storage != "s3" {
		return fmt.Errorf("invalid archive storage type: %s (must be local or s3)", c.Archive.Storage)
	}

	if c.Archive.Enabled && c.Archive.Storage == "s3" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket is required when archive storage is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ROLLCALL_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ROLLCALL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ROLLCALL_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("ROLLCALL_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ROLLCALL_ARCHIVE_STORAGE"); v != "" {
		cfg.Archive.Storage = v
	}
	if v := os.Getenv("ROLLCALL_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("ROLLCALL_ARCHIVE_PREFIX"); v != "" {
		cfg.Archive.Prefix = v
	}
	if v := os.Getenv("ROLLCALL_S3_BUCKET"); v != "" {
		cfg.Archive.S3.Bucket = v
	}
	if v := os.Getenv("ROLLCALL_S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := os.Getenv("ROLLCALL_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}
	if v := os.Getenv("ROLLCALL_AUDIT_TAIL_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Audit.TailSize)
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.EventsDir(),
	}
	if c.Archive.Enabled && c.Archive.Storage == "local" {
		dirs = append(dirs, c.Archive.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
