package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/giygas/medisearch/catalog"
	"github.com/giygas/medisearch/catalogparser"
	"github.com/giygas/medisearch/config"
	"github.com/giygas/medisearch/data"
	"github.com/giygas/medisearch/handlers"
	"github.com/giygas/medisearch/health"
	"github.com/giygas/medisearch/identity"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/scheduler"
	"github.com/giygas/medisearch/search"
	"github.com/giygas/medisearch/server"
	"github.com/giygas/medisearch/session"
	"github.com/giygas/medisearch/storage"
)

// catalogBackend is the catalogue the engine queries, with whatever has to
// be stopped or closed on shutdown
type catalogBackend struct {
	store     interfaces.CatalogStore
	data      interfaces.CatalogDataStore // nil for remote backends
	scheduler interfaces.Scheduler
	close     func() error
}

func main() {
	envFile := pflag.String("env-file", "", "path to a .env file (default .env when present)")
	logDir := pflag.String("log-dir", "", "log directory, overrides LOG_DIR")
	verbose := pflag.BoolP("verbose", "v", false, "verbose console logging")
	pflag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}

	logging.InitLoggerWithOptions(logging.Options{
		Dir:            cfg.LogDir,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		Verbose:        *verbose,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer func() { _ = logging.Close() }()

	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"catalog_backend", cfg.CatalogBackend,
		"identity_backend", cfg.IdentityBackend)

	if err := run(cfg); err != nil {
		logging.Error("MediSearch stopped with an error", "error", err)
		_ = logging.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	backend, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if backend.scheduler != nil {
			backend.scheduler.Stop()
		}
		if backend.close != nil {
			_ = backend.close()
		}
	}()

	gate := session.NewGate(openIdentity(cfg, store))
	gate.Start()
	defer gate.Stop()

	engine := search.NewEngine(backend.store, search.WithQueryTimeout(cfg.SearchQueryTimeout))
	defer engine.Wait()

	healthOpts := []health.Option{
		health.WithGate(gate),
		health.WithDatabase(store),
		health.WithRefreshTimes(cfg.CatalogRefresh),
	}

	handler := handlers.NewHTTPHandler(handlers.Dependencies{
		Engine:          engine,
		Catalog:         backend.store,
		Gate:            gate,
		Form:            session.NewForm(gate),
		Preferences:     store,
		Health:          health.NewHealthChecker(backend.data, healthOpts...),
		SearchMaxLength: cfg.SearchMaxLength,
	})

	srv := server.NewServer(cfg, handler, gate)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Info("Received signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

// openCatalog builds the configured catalogue backend. The memory backend
// loads the seed before returning so the first search sees data.
func openCatalog(cfg *config.Config) (*catalogBackend, error) {
	switch cfg.CatalogBackend {
	case config.CatalogFirestore:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fs, err := catalog.NewFirestoreStore(ctx, catalog.FirestoreConfig{
			ProjectID:       cfg.FirestoreProjectID,
			Collection:      cfg.FirestoreCollection,
			CredentialsFile: cfg.FirestoreCredentials,
		})
		if err != nil {
			return nil, err
		}
		return &catalogBackend{store: fs, close: fs.Close}, nil

	default:
		parser, err := catalogparser.NewParser(cfg.CatalogSeed)
		if err != nil {
			return nil, err
		}

		container := data.NewCatalogContainer()
		sched := scheduler.NewScheduler(container, parser, cfg.CatalogRefresh)
		if err := sched.Start(); err != nil {
			return nil, err
		}
		return &catalogBackend{store: container, data: container, scheduler: sched}, nil
	}
}

func openIdentity(cfg *config.Config, store *storage.Store) interfaces.IdentityService {
	if cfg.IdentityBackend == config.IdentityFirebase {
		return identity.NewFirebaseProvider(cfg.FirebaseAPIKey)
	}
	return identity.NewLocalProvider(store, cfg.BcryptCost)
}
