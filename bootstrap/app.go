package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"argus/api"
	"argus/config"
	"argus/correlate"
	"argus/detect"
	"argus/ingest"
	"argus/service"
	"argus/storage"
	"argus/util/goroutine"

	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// App is a running argus process: one feed consumer and one correlation
// scheduler sharing a store, plus the operational HTTP server.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Store     storage.Store
	Catalog   *detect.Catalog
	Consumer  *detect.Consumer
	Scheduler *correlate.Scheduler
	Sink      *service.AlertSink
	Feed      ingest.Feed
	APIServer *api.API

	// newFeed is replaced in tests
	newFeed func(*config.Config, *zap.SugaredLogger) (ingest.Feed, error)

	closers   []io.Closer
	cancel    context.CancelFunc
	serviceWg sync.WaitGroup
}

// NewApp loads the rule catalog and opens the store. Either failing aborts
// startup.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sugar := logger.Sugar()
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Sugar:   sugar,
		newFeed: InitFeed,
	}

	catalog, err := detect.LoadCatalog(cfg.Rules.Path, cfg.Rules.RegexTimeout, sugar)
	if err != nil {
		return nil, fmt.Errorf("rule catalog: %w", err)
	}
	app.Catalog = catalog

	store, err := InitStore(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.Store = store

	dispatcher, closers, err := InitDispatcher(cfg, sugar)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("notification channels: %w", err)
	}
	app.closers = closers
	for _, name := range catalog.ActionNames() {
		if !contains(dispatcher.Channels(), name) {
			sugar.Warnw("Rule catalog names a notification channel that is not enabled", "channel", name)
		}
	}

	app.Sink = service.NewAlertSink(store, dispatcher, sugar)
	engine := detect.NewRuleEngine(catalog, store, sugar)
	app.Consumer = detect.NewConsumer(catalog, engine, store, app.Sink, sugar)

	if cfg.Correlation.Enabled {
		app.Scheduler = correlate.NewScheduler(store, app.Sink, correlate.DefaultDetectors(), correlate.SchedulerConfig{
			Period:   cfg.Correlation.Period,
			Lookback: cfg.Correlation.Lookback,
		}, sugar)
	}

	if cfg.API.Enabled {
		app.APIServer = api.NewAPI(store, store, catalog, sugar)
	}

	sugar.Infow("argus initialized",
		"rules", catalog.Len(),
		"catalog_version", catalog.Version(),
		"storage", cfg.Storage.Driver)
	return app, nil
}

// Start launches the feed consumer, the correlation scheduler and the API
// server. They run until ctx is cancelled or Shutdown is called.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	feed, err := a.newFeed(a.Config, a.Sugar)
	if err != nil {
		a.cancel()
		return fmt.Errorf("event feed: %w", err)
	}
	a.Feed = feed

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		defer goroutine.Recover("feed consumer", a.Sugar)
		if err := feed.Run(ctx, a.Consumer); err != nil && !errors.Is(err, ingest.ErrFeedClosed) {
			a.Sugar.Errorw("Feed consumer stopped", "error", err)
		}
		a.Sugar.Info("Feed consumer stopped")
	}()

	if a.Scheduler != nil {
		a.serviceWg.Add(1)
		go func() {
			defer a.serviceWg.Done()
			defer goroutine.Recover("correlation scheduler", a.Sugar)
			a.Scheduler.Run(ctx)
			a.Sugar.Info("Correlation scheduler stopped")
		}()
	}

	if a.APIServer != nil {
		addr := net.JoinHostPort(a.Config.API.Host, strconv.Itoa(a.Config.API.Port))
		l, err := net.Listen("tcp", addr)
		if err != nil {
			a.cancel()
			return fmt.Errorf("api listener: %w", err)
		}
		go func() {
			if err := a.APIServer.Serve(l); err != nil {
				a.Sugar.Errorw("API server error", "error", err)
			}
		}()
	}
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	sig := <-c
	a.Sugar.Infow("Shutdown signal received", "signal", sig.String())
}

// Shutdown stops intake, waits for both workers to return and only then
// closes the store
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	a.Sugar.Info("Phase 1: Stopping feed consumer and scheduler")
	if a.cancel != nil {
		a.cancel()
	}

	a.Sugar.Info("Phase 2: Waiting for in-flight work")
	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		a.Sugar.Warnw("Timed out waiting for workers", "timeout", shutdownTimeout)
	}

	a.Sugar.Info("Phase 3: Stopping API server")
	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Warnw("API server shutdown error", "error", err)
		}
		cancel()
	}

	a.Sugar.Info("Phase 4: Closing transports")
	if a.Feed != nil {
		if err := a.Feed.Close(); err != nil {
			a.Sugar.Warnw("Feed close error", "error", err)
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Sugar.Warnw("Channel close error", "error", err)
		}
	}

	a.Sugar.Info("Phase 5: Closing store")
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Sugar.Errorw("Store close error", "error", err)
		}
	}

	_ = a.Logger.Sync()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
