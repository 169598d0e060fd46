package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"regexp"
	"time"

	"argus/config"
	"argus/core"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

var validDatabaseNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ClickHouse stores events and alerts in MergeTree tables
type ClickHouse struct {
	Conn   driver.Conn
	Logger *zap.SugaredLogger
}

// NewClickHouse connects, creates the database if needed and ensures the tables exist
func NewClickHouse(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*ClickHouse, error) {
	if err := validateDatabaseName(cfg.ClickHouse.Database); err != nil {
		return nil, fmt.Errorf("invalid database name: %w", err)
	}

	options := &clickhouse.Options{
		Addr: []string{cfg.ClickHouse.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:     cfg.ClickHouse.MaxPoolSize,
		MaxIdleConns:     cfg.ClickHouse.MaxPoolSize / 2,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
			return d.DialContext(ctx, "tcp", addr)
		},
	}
	if cfg.ClickHouse.TLS {
		options.TLS = &tls.Config{MinVersion: tls.VersionTLS13}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	logger.Infof("Connected to ClickHouse at %s", cfg.ClickHouse.Addr)

	ch := &ClickHouse{Conn: conn, Logger: logger}
	if err := ch.createTables(ctx, cfg.ClickHouse.Database); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ch, nil
}

func validateDatabaseName(database string) error {
	if database == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if len(database) > 64 {
		return fmt.Errorf("database name too long (max 64 characters)")
	}
	if !validDatabaseNameRegex.MatchString(database) {
		return fmt.Errorf("database name contains invalid characters (only alphanumeric and underscore allowed)")
	}
	return nil
}

func (ch *ClickHouse) createTables(ctx context.Context, database string) error {
	statements := []struct {
		name  string
		query string
	}{
		{"database", fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)},
		{"events", `
		CREATE TABLE IF NOT EXISTS events (
			id String,
			timestamp DateTime64(3, 'UTC'),
			hostname LowCardinality(String),
			tag LowCardinality(String),
			message String,
			priority Int32,
			source_ip String,
			INDEX idx_source_ip source_ip TYPE bloom_filter(0.01) GRANULARITY 1
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (hostname, tag, timestamp)`},
		{"alerts", `
		CREATE TABLE IF NOT EXISTS alerts (
			id String,
			rule_id LowCardinality(String),
			timestamp DateTime64(3, 'UTC'),
			source_ip String,
			hostname String,
			message String,
			severity LowCardinality(String),
			description String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, rule_id)`},
		{"correlation_alerts", `
		CREATE TABLE IF NOT EXISTS correlation_alerts (
			id String,
			alert_type LowCardinality(String),
			description String,
			severity LowCardinality(String),
			source String,
			timestamp DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, alert_type)`},
	}
	for _, st := range statements {
		if err := ch.Conn.Exec(ctx, st.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
		ch.Logger.Debugf("ClickHouse %s ready", st.name)
	}
	return nil
}

// HealthCheck pings the server
func (ch *ClickHouse) HealthCheck(ctx context.Context) error {
	return ch.Conn.Ping(ctx)
}

// Close releases the connection pool
func (ch *ClickHouse) Close() error {
	return ch.Conn.Close()
}

// InsertEvent appends an event
func (ch *ClickHouse) InsertEvent(ctx context.Context, event *core.Event) error {
	if event == nil {
		return ErrNilRecord
	}
	err := ch.Conn.Exec(ctx, `
		INSERT INTO events (id, timestamp, hostname, tag, message, priority, source_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UTC(), event.Hostname, event.Tag,
		event.Message, int32(event.Priority), event.SourceIP)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}
	return nil
}

// CountRecent counts events sharing hostname and tag within window of the server clock
func (ch *ClickHouse) CountRecent(ctx context.Context, hostname, tag string, window time.Duration) (int64, error) {
	var count uint64
	err := ch.Conn.QueryRow(ctx, `
		SELECT count() FROM events
		WHERE hostname = ? AND tag = ? AND timestamp >= now64(3) - toIntervalMillisecond(?)`,
		hostname, tag, window.Milliseconds()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent events for %s/%s: %w", hostname, tag, err)
	}
	return int64(count), nil
}

// EventsSince returns events with timestamp >= since, most recent first
func (ch *ClickHouse) EventsSince(ctx context.Context, since time.Time) ([]core.Event, error) {
	rows, err := ch.Conn.Query(ctx, `
		SELECT id, timestamp, hostname, tag, message, priority, source_ip
		FROM events
		WHERE timestamp >= ?
		ORDER BY timestamp DESC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		var e core.Event
		var priority int32
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Hostname, &e.Tag, &e.Message, &priority, &e.SourceIP); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Priority = int(priority)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// InsertAlert appends a rule alert
func (ch *ClickHouse) InsertAlert(ctx context.Context, alert *core.Alert) error {
	if alert == nil {
		return ErrNilRecord
	}
	err := ch.Conn.Exec(ctx, `
		INSERT INTO alerts (id, rule_id, timestamp, source_ip, hostname, message, severity, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.RuleID, alert.Timestamp.UTC(), alert.SourceIP, alert.Hostname,
		alert.Message, string(alert.Severity), alert.Description)
	if err != nil {
		return fmt.Errorf("failed to insert alert for rule %s: %w", alert.RuleID, err)
	}
	return nil
}

// InsertCorrelationAlert appends a correlation alert
func (ch *ClickHouse) InsertCorrelationAlert(ctx context.Context, alert *core.CorrelationAlert) error {
	if alert == nil {
		return ErrNilRecord
	}
	err := ch.Conn.Exec(ctx, `
		INSERT INTO correlation_alerts (id, alert_type, description, severity, source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		alert.ID, string(alert.AlertType), alert.Description, string(alert.Severity),
		alert.Source, alert.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert %s correlation alert: %w", alert.AlertType, err)
	}
	return nil
}

// CountAlerts returns the number of rows in alerts
func (ch *ClickHouse) CountAlerts(ctx context.Context) (int64, error) {
	return ch.count(ctx, "alerts")
}

// CountCorrelationAlerts returns the number of rows in correlation_alerts
func (ch *ClickHouse) CountCorrelationAlerts(ctx context.Context) (int64, error) {
	return ch.count(ctx, "correlation_alerts")
}

func (ch *ClickHouse) count(ctx context.Context, table string) (int64, error) {
	var n uint64
	if err := ch.Conn.QueryRow(ctx, "SELECT count() FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return int64(n), nil
}
