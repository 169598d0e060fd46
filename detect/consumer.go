package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"argus/core"
	"argus/metrics"

	"go.uber.org/zap"
)

// EventWriter persists ingested events
type EventWriter interface {
	InsertEvent(ctx context.Context, event *core.Event) error
}

// AlertRecorder persists an alert and then notifies the given channels
type AlertRecorder interface {
	Record(ctx context.Context, alert *core.Alert, actions []string) error
}

// Consumer is the real-time path: it handles one feed message at a time.
// It stores the event before evaluating so threshold rules count it.
type Consumer struct {
	catalog *Catalog
	engine  *RuleEngine
	events  EventWriter
	sink    AlertRecorder
	logger  *zap.SugaredLogger
}

// NewConsumer wires the catalog, engine, event store and alert sink.
// Panics if any dependency is nil.
func NewConsumer(catalog *Catalog, engine *RuleEngine, events EventWriter, sink AlertRecorder, logger *zap.SugaredLogger) *Consumer {
	if catalog == nil {
		panic("catalog is required")
	}
	if engine == nil {
		panic("engine is required")
	}
	if events == nil {
		panic("event writer is required")
	}
	if sink == nil {
		panic("alert sink is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Consumer{catalog: catalog, engine: engine, events: events, sink: sink, logger: logger}
}

// HandleMessage decodes, stores and evaluates one feed message. Failures are
// logged here; the returned error is informational and the message is never
// retried.
func (c *Consumer) HandleMessage(ctx context.Context, data []byte) error {
	start := time.Now()
	defer func() {
		metrics.EventProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	event, err := core.DecodeEvent(data)
	if err != nil {
		metrics.EventsMalformed.Inc()
		c.logger.Warnw("Discarding malformed event message", "error", err, "bytes", len(data))
		return err
	}
	return c.HandleEvent(ctx, event)
}

// HandleEvent stores and evaluates a decoded event
func (c *Consumer) HandleEvent(ctx context.Context, event *core.Event) error {
	if err := c.events.InsertEvent(ctx, event); err != nil {
		c.logger.Errorw("Failed to store event, dropping",
			"event_id", event.ID,
			"hostname", event.Hostname,
			"error", err)
		return fmt.Errorf("store event: %w", err)
	}

	alerts, evalErr := c.engine.Evaluate(ctx, event)
	if evalErr != nil {
		c.logger.Errorw("Rule evaluation failed for some rules",
			"event_id", event.ID,
			"error", evalErr)
	}

	var errs []error
	if evalErr != nil {
		errs = append(errs, evalErr)
	}
	for _, alert := range alerts {
		rule, _ := c.catalog.Rule(alert.RuleID)
		metrics.AlertsGenerated.WithLabelValues(string(alert.Severity)).Inc()
		c.logger.Infow("Rule fired",
			"rule_id", alert.RuleID,
			"severity", alert.Severity,
			"hostname", alert.Hostname,
			"source_ip", alert.SourceIP)

		if err := c.sink.Record(ctx, alert, c.catalog.ActionsFor(rule)); err != nil {
			c.logger.Errorw("Failed to record alert",
				"rule_id", alert.RuleID,
				"alert_id", alert.ID,
				"error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
