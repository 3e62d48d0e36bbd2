package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/taskhub/internal/application"
	"github.com/example/taskhub/internal/config"
	httptransport "github.com/example/taskhub/internal/http"
	"github.com/example/taskhub/internal/logging"
	"github.com/example/taskhub/internal/maintenance"
	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/persistence/memory"
	"github.com/example/taskhub/internal/persistence/sqlite"
	"github.com/example/taskhub/internal/persistence/sqlite/migration"
	"github.com/example/taskhub/internal/sequence"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "taskhub: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(stdout, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.HTTPPort, err)
	}
	return app.Serve(ctx, listener)
}

type storage interface {
	persistence.RecordStore
	persistence.Provisioner
	Close() error
}

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   storage
	janitor *maintenance.Janitor
	handler http.Handler
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, health, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := seedOwners(ctx, store, cfg.SeedOwners); err != nil {
		_ = store.Close()
		return nil, err
	}

	policy := sequence.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.AllocAttempts
	policy.InitialDelay = cfg.AllocBackoff
	allocator := sequence.NewAllocator(store, policy, logger)

	events := application.NewEventService(store, allocator, logger, time.Now)
	sequences := application.NewSequenceService(store, allocator, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Events:      httptransport.NewEventHandler(events, cfg.Location, logger),
		Sequences:   httptransport.NewSequenceHandler(sequences, logger),
		Health:      health,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		janitor: maintenance.NewJanitor(store, logger),
		handler: router,
	}, nil
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, httptransport.HealthCheck, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), nil, nil
	default:
		store, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		return store, store.Ping, nil
	}
}

func seedOwners(ctx context.Context, store persistence.Provisioner, ownerIDs []string) error {
	for _, id := range ownerIDs {
		_, err := store.CreateOwner(ctx, persistence.Owner{ID: id, DisplayName: id, CreatedAt: time.Now().UTC()})
		if err != nil && !errors.Is(err, persistence.ErrDuplicate) {
			return fmt.Errorf("seed owner %s: %w", id, err)
		}
	}
	return nil
}

// Serve runs the HTTP server and the janitor until ctx ends, then shuts both
// down within the configured timeout.
func (a *app) Serve(ctx context.Context, listener net.Listener) error {
	if err := a.janitor.Start(a.cfg.JanitorSchedule); err != nil {
		_ = listener.Close()
		return err
	}

	server := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	a.logger.Info("taskhub API listening", "addr", listener.Addr().String(), "storage", a.cfg.Storage)

	var err error
	select {
	case err = <-serveErr:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
		a.logger.Error("failed to shutdown server", "error", serr)
	}
	if jerr := a.janitor.Stop(shutdownCtx); jerr != nil {
		a.logger.Error("failed to stop janitor", "error", jerr)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	a.logger.Info("taskhub API stopped")
	return nil
}

func (a *app) Close() error {
	return a.store.Close()
}
