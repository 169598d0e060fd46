package core

import (
	"time"

	"github.com/google/uuid"
)

// Event represents one ingested log record. Events are immutable once stored;
// Timestamp is the only ordering key used for windowing.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Hostname  string    `json:"hostname"`
	Tag       string    `json:"tag"`
	Message   string    `json:"message"`
	Priority  int       `json:"priority"`
	SourceIP  string    `json:"source_ip"`
}

// NewEvent creates a new Event with a generated UUID
func NewEvent() *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
	}
}

// Alert is emitted by the rule engine when a rule fires on an event
type Alert struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"rule_id"`
	Timestamp   time.Time `json:"timestamp"`
	SourceIP    string    `json:"source_ip"`
	Hostname    string    `json:"hostname"`
	Message     string    `json:"message"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
}

// NewAlert builds the alert for rule firing on event
func NewAlert(rule *Rule, event *Event) *Alert {
	return &Alert{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		Timestamp:   time.Now().UTC(),
		SourceIP:    event.SourceIP,
		Hostname:    event.Hostname,
		Message:     event.Message,
		Severity:    rule.Severity,
		Description: rule.Description,
	}
}

// CorrelationAlert is emitted by a pattern detector over a batch of events.
// Source is the grouping entity: a source IP or, for lateral movement, a user name.
type CorrelationAlert struct {
	ID          string          `json:"id"`
	AlertType   CorrelationType `json:"alert_type"`
	Description string          `json:"description"`
	Severity    Severity        `json:"severity"`
	Source      string          `json:"source"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewCorrelationAlert creates a correlation alert stamped with the current time
func NewCorrelationAlert(alertType CorrelationType, severity Severity, source, description string) *CorrelationAlert {
	return &CorrelationAlert{
		ID:          uuid.New().String(),
		AlertType:   alertType,
		Description: description,
		Severity:    severity,
		Source:      source,
		Timestamp:   time.Now().UTC(),
	}
}
