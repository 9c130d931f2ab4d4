// Package main implements the rollcall binary: an event check-in record
// keeper with a SQLite registry and per-event CSV roster artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/rollcall/rollcall/internal/app"
	"github.com/rollcall/rollcall/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Local overrides from .env, if present. Real environments set
	// ROLLCALL_* directly.
	_ = godotenv.Load()

	// Parse command line flags
	var (
		configFile  string
		dataDir     string
		httpAddr    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for the registry database and roster artifacts")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP address for the API server")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Rollcall - Event Check-In Record Keeper\n\n")
		fmt.Fprintf(os.Stderr, "Usage: rollcall [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rollcall --data-dir /data/rollcall\n")
		fmt.Fprintf(os.Stderr, "  rollcall --config /etc/rollcall/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  ROLLCALL_DATA_DIR         Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  ROLLCALL_HTTP_ADDR        HTTP address for the API server\n")
		fmt.Fprintf(os.Stderr, "  ROLLCALL_ARCHIVE_ENABLED  Enable the roster archive backend\n")
		fmt.Fprintf(os.Stderr, "  ROLLCALL_ARCHIVE_STORAGE  Archive storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  ROLLCALL_S3_BUCKET        S3 bucket for archived rosters\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("rollcall version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := loadConfig(configFile, dataDir, httpAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Print startup banner
	printBanner(cfg)

	// Create and start the application
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	// Wait for shutdown signal
	if err := application.Wait(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, httpAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("Rollcall - Event Check-In Record Keeper")
	log.Printf("Configuration:")
	log.Printf("  Data Dir:   %s", cfg.DataDir)
	log.Printf("  HTTP Addr:  %s", cfg.HTTP.Addr)
	if cfg.Archive.Enabled {
		log.Printf("  Archive:    %s", cfg.Archive.Storage)
		if cfg.Archive.Storage == "s3" {
			log.Printf("  S3 Bucket:  %s", cfg.Archive.S3.Bucket)
		}
	} else {
		log.Printf("  Archive:    disabled")
	}
}
