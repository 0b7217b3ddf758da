// Package app wires the Stronghold server runtime: config, logging, HTTP
// routes, and the relay gateways.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"stronghold/internal/credential"
	"stronghold/internal/relay"
	stepupapi "stronghold/internal/stepup/api"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the Stronghold server runtime: it owns HTTP wiring, the relay
// core, and the credential subsystem.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	registry *prometheus.Registry

	relaySvc *relay.Service
	ws       *relay.WSGateway
	sse      *relay.SSEGateway

	stepup *stepupapi.Handler
	creds  *credential.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	st, dbPool, dbEnabled, credStore, err := newCredentialStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	relaySvc := relay.NewService(log, relay.Config{
		PINDigits:      cfg.PINDigits,
		PINOptionCount: cfg.PINOptionCount,
		QueueCapacity:  cfg.QueueCapacity,
		CleanupDelay:   cfg.CleanupDelay,
	}, relay.NewMetrics(reg))

	ws := relay.NewWSGateway(log, relaySvc, relay.WSGatewayConfig{
		OriginRequired:  cfg.OriginRequired,
		AllowedOrigins:  cfg.AllowedOrigins,
		WriteTimeout:    cfg.WSWriteTimeout,
		ReadIdleTimeout: cfg.WSReadIdleTimeout,
	})
	sse := relay.NewSSEGateway(log, relaySvc)

	stepup := stepupapi.NewHandler(log, stepupapi.Config{}, relaySvc)

	credSvc := credential.NewService(log, credStore, relaySvc)
	creds := credential.NewHandler(log, credSvc)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		registry:  reg,
		relaySvc:  relaySvc,
		ws:        ws,
		sse:       sse,
		stepup:    stepup,
		creds:     creds,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	handler := newRouter(a.log, a.cfg, a.dbPool, a.dbEnabled, a.registry, a.stepup, a.creds, a.ws, a.sse)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(handler, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		// WriteTimeout stays at the configured value even when zero:
		// SSE and WebSocket responses are long-lived.
		WriteTimeout:   a.cfg.WriteTimeout,
		IdleTimeout:    nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes: nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

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

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
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

// newCredentialStore decides between Postgres-backed persistence and the
// in-memory dev store.
func newCredentialStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, credential.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, credential.NewInMemoryStore(), nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, nil, err
	}

	log.Info("db.enabled.postgres_store")

	// Ownership model:
	// - app owns pool lifecycle
	// - PostgresStore.Close() is a no-op
	credStore, err := credential.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, err
	}
	if err := credStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, false, nil, err
	}

	return dbStore{pool: pool, credStore: credStore}, pool, true, credStore, nil
}

type dbStore struct {
	pool      *pgxpool.Pool
	credStore credential.Store
}

func (s dbStore) Close(_ context.Context) error {
	if s.credStore != nil {
		_ = s.credStore.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
