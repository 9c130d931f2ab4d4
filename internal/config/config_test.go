package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.HTTP.Addr)
	}
	if cfg.Archive.Enabled {
		t.Error("archive should be disabled by default")
	}
	if cfg.Archive.Storage != "local" {
		t.Errorf("expected default archive storage local, got %s", cfg.Archive.Storage)
	}
	if cfg.Audit.TailSize != 256 {
		t.Errorf("expected default audit tail size 256, got %d", cfg.Audit.TailSize)
	}
}

func TestResolveDefaultsToWorkingDirectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if cfg.DataDir != wd {
		t.Errorf("expected data dir %s, got %s", wd, cfg.DataDir)
	}
	if cfg.RegistryPath() != filepath.Join(wd, "rollcall.db") {
		t.Errorf("unexpected registry path: %s", cfg.RegistryPath())
	}
	if cfg.EventsDir() != filepath.Join(wd, "events") {
		t.Errorf("unexpected events dir: %s", cfg.EventsDir())
	}
}

func TestResolveArchiveDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data/rollcall"
	cfg.Archive.Prefix = ""
	cfg.Resolve()

	if cfg.Archive.Path != filepath.Join("/data/rollcall", "archive") {
		t.Errorf("unexpected archive path: %s", cfg.Archive.Path)
	}
	if cfg.Archive.Prefix != "rosters" {
		t.Errorf("unexpected archive prefix: %s", cfg.Archive.Prefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: true,
		},
		{
			name:    "unknown archive storage",
			mutate:  func(c *Config) { c.Archive.Storage = "ftp" },
			wantErr: true,
		},
		{
			name: "s3 archive without bucket",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Storage = "s3"
			},
			wantErr: true,
		},
		{
			name: "s3 archive with bucket",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Storage = "s3"
				c.Archive.S3.Bucket = "rollcall-rosters"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
data_dir: /data/rollcall
http:
  addr: ":9090"
  read_timeout: 10s
archive:
  enabled: true
  storage: s3
  prefix: exports
  s3:
    bucket: rollcall-rosters
    region: eu-west-1
audit:
  tail_size: 64
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.DataDir != "/data/rollcall" {
		t.Errorf("unexpected data dir: %s", cfg.DataDir)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("unexpected addr: %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ReadTimeout != 10*time.Second {
		t.Errorf("unexpected read timeout: %v", cfg.HTTP.ReadTimeout)
	}
	// Fields absent from the file keep their defaults
	if cfg.HTTP.WriteTimeout != 60*time.Second {
		t.Errorf("unexpected write timeout: %v", cfg.HTTP.WriteTimeout)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Storage != "s3" {
		t.Errorf("unexpected archive config: %+v", cfg.Archive)
	}
	if cfg.Archive.S3.Bucket != "rollcall-rosters" || cfg.Archive.S3.Region != "eu-west-1" {
		t.Errorf("unexpected s3 config: %+v", cfg.Archive.S3)
	}
	if cfg.Audit.TailSize != 64 {
		t.Errorf("unexpected audit tail size: %d", cfg.Audit.TailSize)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	content := `{"data_dir": "/data/rollcall", "http": {"addr": ":7070"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.DataDir != "/data/rollcall" || cfg.HTTP.Addr != ":7070" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadFromFileUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("data_dir = \"/x\""), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported config format")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ROLLCALL_DATA_DIR", "/env/rollcall")
	t.Setenv("ROLLCALL_HTTP_ADDR", ":6060")
	t.Setenv("ROLLCALL_ARCHIVE_ENABLED", "true")
	t.Setenv("ROLLCALL_ARCHIVE_STORAGE", "s3")
	t.Setenv("ROLLCALL_S3_BUCKET", "env-bucket")
	t.Setenv("ROLLCALL_AUDIT_TAIL_SIZE", "32")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.DataDir != "/env/rollcall" {
		t.Errorf("unexpected data dir: %s", cfg.DataDir)
	}
	if cfg.HTTP.Addr != ":6060" {
		t.Errorf("unexpected addr: %s", cfg.HTTP.Addr)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Storage != "s3" || cfg.Archive.S3.Bucket != "env-bucket" {
		t.Errorf("unexpected archive config: %+v", cfg.Archive)
	}
	if cfg.Audit.TailSize != 32 {
		t.Errorf("unexpected audit tail size: %d", cfg.Audit.TailSize)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "rollcall")
	cfg.Archive.Enabled = true
	cfg.Resolve()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, p := range []string{cfg.DataDir, cfg.EventsDir(), cfg.Archive.Path} {
		info, err := os.Stat(p)
		if err != nil {
			t.Errorf("expected directory %s: %v", p, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", p)
		}
	}
}
