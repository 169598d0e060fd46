package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"argus/config"
	"argus/storage"

	"go.uber.org/zap"
)

var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// InitStore opens the configured store, retrying ClickHouse connections.
// Failure is fatal to startup.
func InitStore(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := initSQLite(cfg.SQLite.Path, sugar)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverClickHouse:
		ch, err := initClickHouse(ctx, cfg, sugar, retryDelays)
		if err != nil {
			return nil, err
		}
		return ch, nil
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnsupportedDriver, cfg.Storage.Driver)
	}
}

func initSQLite(path string, sugar *zap.SugaredLogger) (*storage.SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := storage.NewSQLite(path, sugar)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nFATAL: SQLite initialization failed\n%s\n\n", ClassifySQLiteError(err, path))
		return nil, fmt.Errorf("failed to open SQLite at %s: %w", path, err)
	}
	return db, nil
}

func initClickHouse(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger, delays []time.Duration) (*storage.ClickHouse, error) {
	var lastErr error
	for attempt := 0; attempt <= len(delays); attempt++ {
		if attempt > 0 {
			delay := delays[attempt-1]
			sugar.Infow("Retrying ClickHouse connection",
				"attempt", attempt,
				"max_retries", len(delays),
				"delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		ch, err := storage.NewClickHouse(ctx, cfg, sugar)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		sugar.Warnw("ClickHouse connection attempt failed", "attempt", attempt+1, "error", err)
	}

	fmt.Fprintf(os.Stderr, "\nFATAL: ClickHouse connection failed\n%s\n\n", ClassifyConnectionError(lastErr, cfg.ClickHouse.Addr))
	return nil, fmt.Errorf("failed to connect to ClickHouse after %d attempts: %w", len(delays)+1, lastErr)
}
