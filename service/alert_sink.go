package service

import (
	"context"
	"errors"
	"fmt"

	"argus/core"

	"go.uber.org/zap"
)

// AlertStorage defines the alert persistence operations needed by the sink.
// Defined here (consumer package) so tests can substitute a mock.
type AlertStorage interface {
	InsertAlert(ctx context.Context, alert *core.Alert) error
	InsertCorrelationAlert(ctx context.Context, alert *core.CorrelationAlert) error
}

// Dispatcher delivers an alert to named notification channels
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *core.Alert, actions []string) error
}

// AlertSink is the single exit point for alerts produced by either detection
// path. It persists first and notifies second; a notification failure never
// undoes a stored alert.
type AlertSink struct {
	store      AlertStorage
	dispatcher Dispatcher
	logger     *zap.SugaredLogger
}

// NewAlertSink panics on missing dependencies so wiring mistakes surface at startup.
func NewAlertSink(store AlertStorage, dispatcher Dispatcher, logger *zap.SugaredLogger) *AlertSink {
	if store == nil {
		panic("store is required")
	}
	if dispatcher == nil {
		panic("dispatcher is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &AlertSink{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Persist stores a rule alert
func (s *AlertSink) Persist(ctx context.Context, alert *core.Alert) error {
	if alert == nil {
		return errors.New("alert is required")
	}
	if err := s.store.InsertAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to persist alert %s: %w", alert.ID, err)
	}
	return nil
}

// Dispatch notifies each named channel once. Failures are logged here and
// not returned to the caller.
func (s *AlertSink) Dispatch(ctx context.Context, alert *core.Alert, actions []string) {
	if len(actions) == 0 {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, alert, actions); err != nil {
		s.logger.Warnw("Alert dispatch incomplete",
			"alert_id", alert.ID,
			"rule_id", alert.RuleID,
			"actions", actions,
			"error", err)
	}
}

// Record persists the alert and, only if that succeeded, dispatches it
func (s *AlertSink) Record(ctx context.Context, alert *core.Alert, actions []string) error {
	if err := s.Persist(ctx, alert); err != nil {
		return err
	}
	s.logger.Infow("Alert stored",
		"alert_id", alert.ID,
		"rule_id", alert.RuleID,
		"severity", alert.Severity,
		"hostname", alert.Hostname)
	s.Dispatch(ctx, alert, actions)
	return nil
}

// PersistCorrelation stores a correlation alert. Correlation alerts have no
// action list and are never dispatched.
func (s *AlertSink) PersistCorrelation(ctx context.Context, alert *core.CorrelationAlert) error {
	if alert == nil {
		return errors.New("correlation alert is required")
	}
	if err := s.store.InsertCorrelationAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to persist correlation alert %s: %w", alert.ID, err)
	}
	return nil
}
