// Package app provides the unified application lifecycle management for Rollcall.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	httpapi "github.com/rollcall/rollcall/internal/api/http"
	"github.com/rollcall/rollcall/internal/archive"
	"github.com/rollcall/rollcall/internal/audit"
	"github.com/rollcall/rollcall/internal/config"
	"github.com/rollcall/rollcall/internal/reconcile"
	"github.com/rollcall/rollcall/internal/registry"
	"github.com/rollcall/rollcall/internal/roster"
	"github.com/rollcall/rollcall/internal/server"
	"github.com/rollcall/rollcall/internal/storage"
)

// App manages the Rollcall service lifecycle: the relational registry, the
// roster artifact store, the optional archive backend, and the HTTP API.
type App struct {
	cfg *config.Config

	// Shared resources
	rosters  *roster.Store
	auditLog *audit.Log
	registry registry.Registry
	storage  storage.ObjectStorage
	archiver *archive.Archiver
	shutdown *server.ShutdownManager

	httpServer *http.Server

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg: cfg,
	}, nil
}

// Start initializes shared resources, runs a startup consistency sweep, and
// starts the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if err := a.runStartupReconcile(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}

	if err := a.startHTTPService(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP service: %w", err)
	}

	log.Printf("Rollcall started: data_dir=%s addr=%s", a.cfg.DataDir, a.cfg.HTTP.Addr)
	return nil
}

// initSharedResources initializes the shutdown manager, roster store, audit
// log, registry, and (when enabled) the archive backend. The shutdown
// manager comes first so every resource registers its closer as soon as it
// exists; a failed start then tears down through the same path as a signal.
func (a *App) initSharedResources() error {
	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig())

	rosters, err := roster.NewStore(a.cfg.EventsDir())
	if err != nil {
		return fmt.Errorf("failed to initialize roster store: %w", err)
	}
	a.rosters = rosters
	a.auditLog = audit.NewLog(a.cfg.Audit.TailSize)

	reg, err := registry.NewSQLiteRegistry(a.cfg.RegistryPath(), a.rosters, a.auditLog)
	if err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}
	a.registry = reg
	a.shutdown.RegisterCloser(reg)
	log.Printf("Registry initialized: %s", a.cfg.RegistryPath())

	if a.cfg.Archive.Enabled {
		switch a.cfg.Archive.Storage {
		case "local":
			a.storage, err = storage.NewLocalStorage(a.cfg.Archive.Path)
		case "s3":
			s3Cfg := storage.DefaultS3Config()
			if a.cfg.Archive.S3.Region != "" {
				s3Cfg.Region = a.cfg.Archive.S3.Region
			}
			if a.cfg.Archive.S3.Endpoint != "" {
				s3Cfg.Endpoint = a.cfg.Archive.S3.Endpoint
			}
			a.storage, err = storage.NewS3Storage(
				context.Background(),
				a.cfg.Archive.S3.Bucket,
				s3Cfg,
			)
		default:
			return fmt.Errorf("unsupported archive storage type: %s", a.cfg.Archive.Storage)
		}
		if err != nil {
			return fmt.Errorf("failed to initialize archive storage: %w", err)
		}
		a.archiver = archive.NewArchiver(a.registry, a.storage, a.cfg.Archive.Prefix)
		log.Printf("Archive storage initialized: type=%s", a.cfg.Archive.Storage)
	}

	return nil
}

// runStartupReconcile sweeps the registry against the roster directory and
// rebuilds any rosters that are missing or unreadable. Orphaned artifacts
// are logged and left in place.
func (a *App) runStartupReconcile(ctx context.Context) error {
	report, err := reconcile.Reconcile(ctx, a.registry, a.rosters)
	if err != nil {
		return err
	}
	if !report.HasIssues() {
		log.Printf("Reconciliation clean: %d events, %d artifacts", report.TotalEvents, report.TotalArtifacts)
		return nil
	}

	log.Printf("Reconciliation found %d dangling events, %d orphaned artifacts",
		len(report.DanglingEvents), len(report.OrphanedArtifacts))
	return reconcile.Repair(ctx, a.registry, a.rosters, report)
}

// startHTTPService builds the API handler chain and starts the HTTP server.
func (a *App) startHTTPService(ctx context.Context) error {
	handler := httpapi.NewHandler(a.registry, a.archiver)

	// Routes already carries recovery and request-id middleware; the
	// shutdown gate goes outermost so draining rejects before any work.
	chain := server.ShutdownMiddleware(a.shutdown)(handler.Routes())

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      chain,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	graceful := server.NewGracefulHTTPServer(a.httpServer, a.shutdown)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("HTTP API listening on %s", a.cfg.HTTP.Addr)
		if err := graceful.ListenAndServe(); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Wait blocks until a shutdown signal arrives or the context is cancelled,
// then drains and closes all resources.
func (a *App) Wait(ctx context.Context) error {
	if err := a.shutdown.ListenForSignals(ctx); err != nil {
		return err
	}
	a.wg.Wait()
	return nil
}

// Stop initiates graceful shutdown programmatically.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}

	var err error
	if a.shutdown != nil {
		err = a.shutdown.Shutdown(ctx, "stop requested")
	}
	a.wg.Wait()
	return err
}

// cleanup releases partially initialized resources after a failed start by
// draining the shutdown manager, which closes everything registered so far
// (registry, and the HTTP server if it got as far as listening).
func (a *App) cleanup() {
	if a.shutdown != nil {
		if err := a.shutdown.Shutdown(context.Background(), "startup failed"); err != nil {
			log.Printf("Cleanup error: %v", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.registry = nil
	a.archiver = nil
	a.storage = nil
	a.httpServer = nil
}

// Registry exposes the registry for tests and embedded use.
func (a *App) Registry() registry.Registry {
	return a.registry
}
