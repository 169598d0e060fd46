package storage

import (
	"context"
	"time"

	"argus/core"
)

// Store is the durable event and alert record shared by the real-time rule
// engine and the correlation scheduler. Each method is a single statement;
// no cross-operation transactions are defined.
type Store interface {
	// InsertEvent appends an event
	InsertEvent(ctx context.Context, event *core.Event) error
	// CountRecent counts events with the given hostname and tag whose timestamp
	// falls inside the trailing window of the store-side clock
	CountRecent(ctx context.Context, hostname, tag string, window time.Duration) (int64, error)
	// EventsSince returns events with timestamp >= since, most recent first
	EventsSince(ctx context.Context, since time.Time) ([]core.Event, error)

	InsertAlert(ctx context.Context, alert *core.Alert) error
	InsertCorrelationAlert(ctx context.Context, alert *core.CorrelationAlert) error
	CountAlerts(ctx context.Context) (int64, error)
	CountCorrelationAlerts(ctx context.Context) (int64, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*ClickHouse)(nil)
)
