// Package api serves the operational HTTP surface: liveness, Prometheus
// metrics and alert counters.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// AlertCounter reports stored alert totals
type AlertCounter interface {
	CountAlerts(ctx context.Context) (int64, error)
	CountCorrelationAlerts(ctx context.Context) (int64, error)
}

// CatalogInfo identifies the loaded rule catalog
type CatalogInfo interface {
	Version() string
	Len() int
}

// API holds the HTTP server
type API struct {
	router  *mux.Router
	server  *http.Server
	health  HealthChecker
	counter AlertCounter
	catalog CatalogInfo
	logger  *zap.SugaredLogger
	started time.Time
}

// NewAPI builds the router. counter and catalog may be nil, in which case
// the stats endpoint reports only what it has.
func NewAPI(health HealthChecker, counter AlertCounter, catalog CatalogInfo, logger *zap.SugaredLogger) *API {
	a := &API{
		router:  mux.NewRouter(),
		health:  health,
		counter: counter,
		catalog: catalog,
		logger:  logger,
		started: time.Now(),
	}
	a.setupRoutes()
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a
}

func (a *API) setupRoutes() {
	a.router.Use(a.recoverMiddleware)
	a.router.HandleFunc("/health", a.healthCheck).Methods(http.MethodGet)
	a.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	a.router.HandleFunc("/api/v1/stats", a.getStats).Methods(http.MethodGet)
}

// Handler exposes the router for tests and embedding
func (a *API) Handler() http.Handler {
	return a.router
}

// Serve accepts connections on l until Stop is called
func (a *API) Serve(l net.Listener) error {
	a.logger.Infow("API server listening", "addr", l.Addr().String())
	if err := a.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on addr and serves until Stop is called
func (a *API) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.Serve(l)
}

// Stop shuts the server down gracefully
func (a *API) Stop(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *API) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Errorw("Panic in HTTP handler", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
