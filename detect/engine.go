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

// EventCounter answers threshold lookups against the event store
type EventCounter interface {
	CountRecent(ctx context.Context, hostname, tag string, window time.Duration) (int64, error)
}

// RuleEngine evaluates every catalog rule against one event at a time
type RuleEngine struct {
	catalog *Catalog
	counter EventCounter
	logger  *zap.SugaredLogger
}

// NewRuleEngine creates a rule engine over an immutable catalog
func NewRuleEngine(catalog *Catalog, counter EventCounter, logger *zap.SugaredLogger) *RuleEngine {
	if catalog == nil {
		panic("catalog is required")
	}
	if counter == nil {
		panic("counter is required")
	}
	return &RuleEngine{catalog: catalog, counter: counter, logger: logger}
}

// Evaluate returns one alert per firing rule. The event must already be
// stored so threshold counts include it. A failed threshold lookup skips
// that rule only; the failures are returned joined after all rules ran.
func (e *RuleEngine) Evaluate(ctx context.Context, event *core.Event) ([]*core.Alert, error) {
	var alerts []*core.Alert
	var errs []error

	for _, rule := range e.catalog.rules {
		fired, err := e.evaluateRule(ctx, rule, event)
		if err != nil {
			metrics.RuleEvaluationErrors.WithLabelValues(rule.ID).Inc()
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))
			continue
		}
		if fired {
			alerts = append(alerts, core.NewAlert(rule, event))
		}
	}
	return alerts, errors.Join(errs...)
}

func (e *RuleEngine) evaluateRule(ctx context.Context, rule *core.Rule, event *core.Event) (bool, error) {
	switch rule.Kind {
	case core.RuleKindPattern:
		return e.matches(rule, event), nil

	case core.RuleKindThreshold:
		if rule.Pattern != nil && !e.matches(rule, event) {
			return false, nil
		}
		count, err := e.counter.CountRecent(ctx, event.Hostname, event.Tag, rule.Window)
		if err != nil {
			return false, err
		}
		return count >= int64(rule.Threshold), nil

	default:
		return false, nil
	}
}

// matches treats a regex timeout as no match
func (e *RuleEngine) matches(rule *core.Rule, event *core.Event) bool {
	ok, err := MatchPattern(rule.Pattern, event.Message)
	if err != nil {
		metrics.RegexTimeouts.Inc()
		e.logger.Warnw("Rule condition did not complete, treating as no match",
			"rule_id", rule.ID,
			"error", err)
		return false
	}
	return ok
}
