package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"argus/core"
	"argus/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUnknownChannel is returned when an alert names a channel that is not configured
var ErrUnknownChannel = errors.New("unknown notification channel")

// Channel delivers an alert to one external destination
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *core.Alert) error
}

// DispatcherConfig holds the per-channel delivery policy
type DispatcherConfig struct {
	// Timeout bounds a single Send
	Timeout time.Duration
	// MinSeverity drops alerts ranked below it
	MinSeverity core.Severity
	// RateLimit is sends per second per channel; zero disables limiting
	RateLimit float64
	// CircuitBreaker guards each channel
	CircuitBreaker core.CircuitBreakerConfig
}

// DefaultDispatcherConfig returns the defaults used when nothing is configured
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Timeout:        10 * time.Second,
		MinSeverity:    core.SeverityLow,
		CircuitBreaker: core.DefaultCircuitBreakerConfig(),
	}
}

type managedChannel struct {
	Channel
	breaker *core.CircuitBreaker
	limiter *rate.Limiter
}

// Dispatcher routes alerts to named channels. Each channel is invoked
// independently; one channel failing never stops the others.
type Dispatcher struct {
	channels map[string]*managedChannel
	cfg      DispatcherConfig
	logger   *zap.SugaredLogger
}

// NewDispatcher registers channels by name. Duplicate names are an error.
func NewDispatcher(cfg DispatcherConfig, logger *zap.SugaredLogger, channels ...Channel) (*Dispatcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDispatcherConfig().Timeout
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = core.SeverityLow
	}
	if !cfg.MinSeverity.IsValid() {
		return nil, fmt.Errorf("invalid minimum severity %q", cfg.MinSeverity)
	}

	d := &Dispatcher{
		channels: make(map[string]*managedChannel, len(channels)),
		cfg:      cfg,
		logger:   logger,
	}
	for _, ch := range channels {
		if _, dup := d.channels[ch.Name()]; dup {
			return nil, fmt.Errorf("duplicate notification channel %q", ch.Name())
		}
		breaker, err := core.NewCircuitBreaker(cfg.CircuitBreaker)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name(), err)
		}
		mc := &managedChannel{Channel: ch, breaker: breaker}
		if cfg.RateLimit > 0 {
			burst := int(cfg.RateLimit)
			if burst < 1 {
				burst = 1
			}
			mc.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
		}
		d.channels[ch.Name()] = mc
	}
	return d, nil
}

// Channels returns the registered channel names
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch sends alert once per action. Failures are logged per channel and
// returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *core.Alert, actions []string) error {
	if alert.Severity.Rank() < d.cfg.MinSeverity.Rank() {
		d.logger.Debugw("Alert below notification threshold",
			"alert_id", alert.ID,
			"severity", alert.Severity,
			"min_severity", d.cfg.MinSeverity)
		return nil
	}

	var errs []error
	for _, name := range actions {
		ch, ok := d.channels[name]
		if !ok {
			metrics.NotificationsSent.WithLabelValues(name, "unknown").Inc()
			d.logger.Warnw("Alert names an unconfigured notification channel",
				"channel", name,
				"rule_id", alert.RuleID)
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownChannel, name))
			continue
		}
		if err := d.send(ctx, ch, alert); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, ch *managedChannel, alert *core.Alert) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if ch.limiter != nil {
		if err := ch.limiter.Wait(sendCtx); err != nil {
			metrics.NotificationsSent.WithLabelValues(ch.Name(), "rate_limited").Inc()
			d.logger.Warnw("Notification rate limited", "channel", ch.Name(), "alert_id", alert.ID, "error", err)
			return err
		}
	}

	err := ch.breaker.Execute(func() error {
		return ch.Send(sendCtx, alert)
	})
	switch {
	case err == nil:
		metrics.NotificationsSent.WithLabelValues(ch.Name(), "sent").Inc()
		return nil
	case errors.Is(err, core.ErrCircuitBreakerOpen), errors.Is(err, core.ErrTooManyRequests):
		metrics.NotificationsSent.WithLabelValues(ch.Name(), "circuit_open").Inc()
		d.logger.Warnw("Notification skipped, channel circuit open", "channel", ch.Name(), "alert_id", alert.ID)
		return err
	default:
		metrics.NotificationsSent.WithLabelValues(ch.Name(), "failed").Inc()
		d.logger.Errorw("Notification failed",
			"channel", ch.Name(),
			"alert_id", alert.ID,
			"rule_id", alert.RuleID,
			"error", err,
			"breaker_state", ch.breaker.State())
		return err
	}
}
