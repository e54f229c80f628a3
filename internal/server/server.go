// Package server serves the folio site: page routes rendered in the
// resolved locale behind the middleware chain, plus the health, locale
// listing and static asset routes the locale middleware bypasses.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/folio/internal/config"
	ferrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/i18n"
	"github.com/conneroisu/folio/internal/locale"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/middleware"
	"github.com/conneroisu/folio/internal/monitoring"
	"github.com/conneroisu/folio/internal/preference"
	"github.com/conneroisu/folio/internal/version"
	"github.com/conneroisu/folio/internal/watcher"
)

// MetricsPath serves the in-process metrics. It sits under a bypassed
// prefix so the locale middleware leaves it alone.
const MetricsPath = "/_folio/metrics"

// ShutdownTimeout bounds the graceful shutdown triggered by context
// cancellation.
const ShutdownTimeout = 30 * time.Second

// Server handles HTTP server lifecycle and route registration.
//
// Invariants:
// - httpServer is nil until Start and is never replaced
// - isShutdown is protected by mu and never reset
type Server struct {
	cfg       *config.Config
	logger    logging.Logger
	kv        preference.KV
	catalog   *i18n.Catalog
	persister *preference.Persister
	chain     *middleware.MiddlewareChain
	mux       *http.ServeMux
	handler   http.Handler
	health    *monitoring.HealthMonitor
	metrics   *monitoring.MetricsCollector
	localeMet *monitoring.LocaleMetrics

	persisterOpts []preference.PersisterOption

	mu         sync.RWMutex
	httpServer *http.Server
	addr       string
	watcher    *watcher.FileWatcher
	isShutdown bool
	done       chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Server.
type Option func(*Server)

// WithKV replaces the preference backend selected by the configuration.
func WithKV(kv preference.KV) Option {
	return func(s *Server) {
		s.kv = kv
	}
}

// WithPersisterOptions passes extra options to the preference persister.
func WithPersisterOptions(opts ...preference.PersisterOption) Option {
	return func(s *Server) {
		s.persisterOpts = append(s.persisterOpts, opts...)
	}
}

// New wires the preference stores, message catalog, middleware chain and
// routes for cfg. Nothing listens until Start.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Server: config cannot be nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.WithComponent("server"),
		mux:    http.NewServeMux(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.kv == nil {
		s.kv = NewKV(cfg.Store)
	}

	catalog, err := i18n.NewCatalog(i18n.Options{
		Locales: cfg.Locales(),
		Dir:     cfg.Catalog.Dir,
	})
	if err != nil {
		_ = s.kv.Close()
		return nil, err
	}
	s.catalog = catalog

	cookieOpts := cfg.CookieOptions()
	persisterOpts := append([]preference.PersisterOption{
		preference.WithLogger(logger),
		preference.WithReadTimeout(cfg.Store.ReadTimeout),
		preference.WithWriteTimeout(cfg.Store.WriteTimeout),
	}, s.persisterOpts...)
	// The locale cookie is read first: it is script visible, so a client
	// side switch must win over the durable copy, and a present cookie
	// spares the KV round trip.
	s.persister = preference.NewPersister([]preference.Store{
		preference.NewCookieStore(cfg.Site.CookieName, cookieOpts),
		preference.NewDurableStore(s.kv, preference.DurableStoreOptions{
			VisitorCookie: cfg.Site.VisitorCookieName,
			KeyPrefix:     cfg.Store.KeyPrefix,
			TTL:           cfg.Store.TTL,
			Cookie:        cookieOpts,
		}),
	}, persisterOpts...)

	s.metrics = monitoring.NewMetricsCollector("folio")
	s.localeMet = monitoring.NewLocaleMetrics(s.metrics, s.persister)

	s.health = monitoring.NewHealthMonitor(logger,
		monitoring.WithVersion(version.GetShortVersion()),
		monitoring.WithEnvironment(cfg.Server.Environment),
	)
	s.health.RegisterCheck(monitoring.StoreHealthChecker(cfg.Store.Backend, s.kv))
	s.health.RegisterCheck(monitoring.CatalogHealthChecker(s.catalog))
	s.health.RegisterCheck(monitoring.GoroutineHealthChecker())

	s.chain = middleware.NewMiddlewareChain(middleware.MiddlewareDependencies{
		Locales:          cfg.Locales(),
		Persister:        s.persister,
		Bypass:           cfg.Bypass(),
		Logger:           logger,
		CanonicalDefault: cfg.Site.CanonicalDefault,
		Production:       cfg.IsProduction(),
		OnResolve: func(_ *http.Request, res locale.Result) {
			s.localeMet.Resolved(res)
		},
	})
	// Timed just inside the request id so every response is counted.
	s.chain.AddMiddlewareAt(1, s.timeRequests)

	s.registerRoutes()
	s.handler = s.chain.Apply(s.mux)

	return s, nil
}

// NewKV returns the preference backend named by cfg.Backend.
func NewKV(cfg config.StoreConfig) preference.KV {
	if cfg.Backend == config.BackendRedis {
		return preference.NewRedisKV(preference.RedisOptions{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			ReadTimeout:  cfg.WriteTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	return preference.NewMemoryKV()
}

// registerRoutes registers all HTTP routes with their handlers
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/healthz", s.health.HTTPHandler())
	s.mux.HandleFunc(MetricsPath, s.metrics.HTTPHandler())
	s.mux.HandleFunc("/api/locales", s.handleLocales)
	s.mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	if dir := s.cfg.Server.StaticDir; dir != "" {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	} else {
		s.mux.Handle("/static/", http.NotFoundHandler())
	}

	s.mux.HandleFunc("/", s.handlePage)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Catalog returns the message catalog the pages are rendered from.
func (s *Server) Catalog() *i18n.Catalog {
	return s.catalog
}

// Metrics returns the collector served at MetricsPath.
func (s *Server) Metrics() *monitoring.MetricsCollector {
	return s.metrics
}

// Persister returns the preference persister.
func (s *Server) Persister() *preference.Persister {
	return s.persister
}

// Start listens on the configured address and blocks until ctx is
// cancelled, Shutdown is called, or the server fails.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Server.Start: context cannot be nil")
	}

	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return fmt.Errorf("Server.Start: server has been shut down")
	}
	if s.httpServer != nil {
		s.mu.Unlock()
		return fmt.Errorf("Server.Start: server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		s.mu.Unlock()
		return ferrors.NewIOError(ferrors.ErrCodeServerStart, "failed to listen on "+s.cfg.Addr(), err).
			WithComponent("server")
	}
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.mu.Unlock()

	s.startCatalogWatcher(ctx)

	s.logger.Info(ctx, "Server listening",
		"addr", s.Addr(),
		"environment", s.cfg.Server.Environment,
		"locales", s.cfg.Locales().Codes(),
		"default", s.cfg.Locales().Default(),
		"store", s.cfg.Store.Backend,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("Server: serve: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case <-s.done:
		return nil
	case err := <-errChan:
		return err
	}
}

func (s *Server) startCatalogWatcher(ctx context.Context) {
	if !s.cfg.Catalog.Watch || s.cfg.Catalog.Dir == "" {
		return
	}

	fw, err := watcher.WatchCatalogs(ctx, s.cfg.Catalog.Dir, countingReloader{s.catalog, s.localeMet}, s.logger, watcher.DefaultCatalogDebounce)
	if err != nil {
		s.logger.Warn(ctx, err, "Catalog hot reload disabled", "dir", s.cfg.Catalog.Dir)
		return
	}

	s.mu.Lock()
	s.watcher = fw
	s.mu.Unlock()
}

// Shutdown stops the watcher, drains in-flight requests and background
// preference writes, then closes the preference backend. Safe to call more
// than once; later calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Server.Shutdown: context cannot be nil")
	}

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.isShutdown = true
		server := s.httpServer
		fw := s.watcher
		s.mu.Unlock()

		s.logger.Info(ctx, "Shutting down server")

		if fw != nil {
			_ = fw.Stop()
		}

		var errs []error
		if server != nil {
			if err := server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("Server.Shutdown: server shutdown failed: %w", err))
			}
		}

		s.persister.Wait()
		if err := s.kv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("Server.Shutdown: close store: %w", err))
		}

		s.shutdownErr = errors.Join(errs...)
		close(s.done)
	})

	return s.shutdownErr
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.addr != "" {
		return s.addr
	}

	return s.cfg.Addr()
}

// IsShutdown returns whether the server has been shut down
func (s *Server) IsShutdown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isShutdown
}

// timeRequests records request durations by method.
func (s *Server) timeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stop := s.metrics.Timer("http_request", map[string]string{"method": r.Method})
		defer stop()

		next.ServeHTTP(w, r)
	})
}

// countingReloader counts catalog reloads triggered by the watcher.
type countingReloader struct {
	catalog *i18n.Catalog
	metrics *monitoring.LocaleMetrics
}

func (c countingReloader) Reload() error {
	err := c.catalog.Reload()
	c.metrics.CatalogReloaded(err)

	return err
}
