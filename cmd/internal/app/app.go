// Package app wires the trackd server runtime: config, logging, storage, HTTP
// routes, and the live position feed.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trackd/cmd/identity"
	authapi "trackd/cmd/internal/auth/api"
	"trackd/cmd/internal/auth/token"
	"trackd/cmd/internal/position"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the trackd server runtime. It owns the storage lifecycle and the HTTP
// server wiring.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metrics *Metrics

	auth      *authapi.Handler
	positions *position.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	tokenCfg, err := token.LoadConfigFromEnv(cfg.Environment)
	if err != nil {
		return nil, err
	}
	if tokenCfg.UsesDevSecrets() {
		log.Warn("auth.secrets.dev_defaults_in_use")
	}
	tokens, err := token.NewService(tokenCfg)
	if err != nil {
		return nil, err
	}

	var (
		dbPool     *pgxpool.Pool
		dbEnabled  bool
		devices    identity.Store
		positStore position.Store
	)

	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		devices = identity.NewMemStore()
		positStore = position.NewMemStore()
	} else {
		if cfg.MigrateOnStart {
			if err := RunMigrations(ctx, cfg.DatabaseURL); err != nil {
				return nil, err
			}
			log.Info("db.migrations.applied")
		}

		dbPool, err = NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dbEnabled = true
		log.Info("db.enabled.postgres_store")

		devices, err = identity.NewPostgresStore(dbPool)
		if err != nil {
			dbPool.Close()
			return nil, err
		}
		positStore, err = position.NewPostgresStore(dbPool)
		if err != nil {
			dbPool.Close()
			return nil, err
		}
	}

	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), devices, tokens, dbPool)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	positions, err := position.NewHandler(log, position.LoadConfigFromEnv(), positStore, tokens, position.NewHub(log))
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		metrics:   NewMetrics(),
		auth:      auth,
		positions: positions,
	}, nil
}

// Handler builds the full middleware chain around the route mux.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.metrics, a.dbPool, a.dbEnabled, a.auth, a.positions)

	var h http.Handler = mux
	h = WithMetrics(h, a.metrics)
	h = WithRequestLogging(h, a.log)
	h = WithSecurityHeaders(h)
	h = WithCORS(h, a.cfg, a.log)
	return h
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "env", a.cfg.Environment, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
