package storage

import (
	"context"
	"fmt"

	"argus/core"
)

// InsertAlert appends a rule alert
func (s *SQLite) InsertAlert(ctx context.Context, alert *core.Alert) error {
	if alert == nil {
		return ErrNilRecord
	}
	if s.closed.Load() {
		return ErrDatabaseClosed
	}
	_, err := s.WriteDB.ExecContext(ctx, `
		INSERT INTO alerts (id, rule_id, timestamp, source_ip, hostname, message, severity, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.RuleID, toMillis(alert.Timestamp), alert.SourceIP, alert.Hostname,
		alert.Message, string(alert.Severity), alert.Description)
	if err != nil {
		return fmt.Errorf("failed to insert alert for rule %s: %w", alert.RuleID, err)
	}
	return nil
}

// InsertCorrelationAlert appends a correlation alert
func (s *SQLite) InsertCorrelationAlert(ctx context.Context, alert *core.CorrelationAlert) error {
	if alert == nil {
		return ErrNilRecord
	}
	if s.closed.Load() {
		return ErrDatabaseClosed
	}
	_, err := s.WriteDB.ExecContext(ctx, `
		INSERT INTO correlation_alerts (id, alert_type, description, severity, source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		alert.ID, string(alert.AlertType), alert.Description, string(alert.Severity),
		alert.Source, toMillis(alert.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert %s correlation alert: %w", alert.AlertType, err)
	}
	return nil
}

// CountAlerts returns the number of rows in alerts
func (s *SQLite) CountAlerts(ctx context.Context) (int64, error) {
	return s.count(ctx, "alerts")
}

// CountCorrelationAlerts returns the number of rows in correlation_alerts
func (s *SQLite) CountCorrelationAlerts(ctx context.Context) (int64, error) {
	return s.count(ctx, "correlation_alerts")
}

func (s *SQLite) count(ctx context.Context, table string) (int64, error) {
	if s.closed.Load() {
		return 0, ErrDatabaseClosed
	}
	var n int64
	// table is one of the fixed names above
	if err := s.ReadDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
