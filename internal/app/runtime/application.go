// Package runtime boots the engine: configuration, database, migrations,
// service wiring, and the HTTP server lifecycle.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/familygrove/engine/internal/app"
	"github.com/familygrove/engine/internal/app/domain/feature"
	"github.com/familygrove/engine/internal/app/httpapi"
	"github.com/familygrove/engine/internal/app/metrics"
	"github.com/familygrove/engine/internal/app/storage"
	"github.com/familygrove/engine/internal/app/storage/postgres"
	"github.com/familygrove/engine/internal/config"
	"github.com/familygrove/engine/internal/platform/migrations"
	"github.com/familygrove/engine/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	engine *app.Application
	server *http.Server
	db     *sql.DB
}

// NewApplication constructs a runnable application from the environment.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	store, db, err := buildStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}

	engine, err := app.New(app.Options{
		Store:      store,
		Presets:    feature.LoadPresetsOrDefault(cfg.PresetsFile),
		EventsSize: cfg.API.EventsBuffer,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", httpapi.NewHandler(engine, httpapi.Config{
		RateLimitPerSecond: cfg.API.RateLimitPerSecond,
		RateLimitBurst:     cfg.API.RateLimitBurst,
		AuditLimit:         cfg.API.AuditLimit,
		AuditFile:          cfg.API.AuditFile,
	}, log))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      metrics.InstrumentHandler(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{
		cfg:    cfg,
		log:    log,
		engine: engine,
		server: server,
		db:     db,
	}, nil
}

// Engine exposes the composed services, mainly for embedding and tests.
func (a *Application) Engine() *app.Application { return a.engine }

// Run starts the services and the HTTP server, blocking until the context is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.server.Addr).Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, the services, and the database.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.engine.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

// buildStore opens postgres when a DSN is configured, applying migrations on
// the way up. An empty DSN leaves store selection to the app layer, which
// defaults to memory.
func buildStore(cfg *config.Config, log *logger.Logger) (storage.Store, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("FG_DB_DSN not set; using the in-memory store")
		return nil, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	return postgres.New(db), db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
