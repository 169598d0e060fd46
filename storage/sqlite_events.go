package storage

import (
	"context"
	"fmt"
	"time"

	"argus/core"
)

// InsertEvent appends an event
func (s *SQLite) InsertEvent(ctx context.Context, event *core.Event) error {
	if event == nil {
		return ErrNilRecord
	}
	if s.closed.Load() {
		return ErrDatabaseClosed
	}
	_, err := s.WriteDB.ExecContext(ctx, `
		INSERT INTO events (id, timestamp, hostname, tag, message, priority, source_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, toMillis(event.Timestamp), event.Hostname, event.Tag,
		event.Message, event.Priority, event.SourceIP)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}
	return nil
}

// CountRecent counts events sharing hostname and tag within window of the
// database clock
func (s *SQLite) CountRecent(ctx context.Context, hostname, tag string, window time.Duration) (int64, error) {
	if s.closed.Load() {
		return 0, ErrDatabaseClosed
	}
	var count int64
	err := s.ReadDB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE hostname = ? AND tag = ? AND timestamp >= `+storeNowMillis+` - ?`,
		hostname, tag, window.Milliseconds()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent events for %s/%s: %w", hostname, tag, err)
	}
	return count, nil
}

// EventsSince returns events with timestamp >= since, most recent first
func (s *SQLite) EventsSince(ctx context.Context, since time.Time) ([]core.Event, error) {
	if s.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	rows, err := s.ReadDB.QueryContext(ctx, `
		SELECT id, timestamp, hostname, tag, message, priority, source_ip
		FROM events
		WHERE timestamp >= ?
		ORDER BY timestamp DESC`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		var e core.Event
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Hostname, &e.Tag, &e.Message, &e.Priority, &e.SourceIP); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = fromMillis(ts)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
