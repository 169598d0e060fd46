package correlate

import (
	"context"
	"fmt"
	"time"

	"argus/core"
	"argus/metrics"
	"argus/util/goroutine"

	"go.uber.org/zap"
)

// Reference cadence of the batch path
const (
	DefaultPeriod   = 60 * time.Second
	DefaultLookback = 5 * time.Minute
)

// EventSource fetches the trailing window of stored events
type EventSource interface {
	EventsSince(ctx context.Context, since time.Time) ([]core.Event, error)
}

// AlertSink persists correlation alerts. Correlation alerts are not dispatched
// to notification channels.
type AlertSink interface {
	PersistCorrelation(ctx context.Context, alert *core.CorrelationAlert) error
}

// SchedulerConfig controls the sweep cadence
type SchedulerConfig struct {
	Period   time.Duration
	Lookback time.Duration
}

// SweepResult summarises one sweep
type SweepResult struct {
	Events   int
	Alerts   int
	Failures int
}

// Scheduler periodically runs every detector over the events of the last
// Lookback. Sweeps keep no memory of earlier sweeps, so activity inside
// overlapping windows is reported again on each tick.
type Scheduler struct {
	source    EventSource
	sink      AlertSink
	detectors []Detector
	period    time.Duration
	lookback  time.Duration
	now       func() time.Time
	logger    *zap.SugaredLogger
}

// NewScheduler creates a scheduler. Zero config values fall back to
// DefaultPeriod and DefaultLookback; nil detectors means DefaultDetectors.
func NewScheduler(source EventSource, sink AlertSink, detectors []Detector, cfg SchedulerConfig, logger *zap.SugaredLogger) *Scheduler {
	if source == nil {
		panic("event source is required")
	}
	if sink == nil {
		panic("alert sink is required")
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if detectors == nil {
		detectors = DefaultDetectors()
	}
	return &Scheduler{
		source:    source,
		sink:      sink,
		detectors: detectors,
		period:    cfg.Period,
		lookback:  cfg.Lookback,
		now:       time.Now,
		logger:    logger,
	}
}

// Run sweeps immediately and then once per period until ctx is cancelled.
// A sweep in progress when ctx is cancelled completes before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Infow("Correlation scheduler started",
		"period", s.period,
		"lookback", s.lookback,
		"detectors", len(s.detectors))

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Correlation scheduler stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce detaches the sweep from cancellation and bounds it by one period
func (s *Scheduler) sweepOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.period)
	defer cancel()
	s.Sweep(sweepCtx)
}

// Sweep fetches one batch and hands it to each detector in order. Fetch,
// detector and persistence failures are logged and counted, never returned.
func (s *Scheduler) Sweep(ctx context.Context) SweepResult {
	start := time.Now()
	metrics.CorrelationSweeps.Inc()
	defer func() {
		metrics.CorrelationSweepDuration.Observe(time.Since(start).Seconds())
	}()

	var result SweepResult
	since := s.now().Add(-s.lookback)
	batch, err := s.source.EventsSince(ctx, since)
	if err != nil {
		s.logger.Errorw("Correlation sweep could not fetch events", "since", since, "error", err)
		result.Failures++
		return result
	}
	result.Events = len(batch)

	for _, d := range s.detectors {
		n, err := s.runDetector(ctx, d, batch)
		result.Alerts += n
		if err != nil {
			metrics.DetectorFailures.WithLabelValues(d.Name()).Inc()
			s.logger.Errorw("Detector failed", "detector", d.Name(), "error", err)
			result.Failures++
		}
	}

	s.logger.Debugw("Correlation sweep finished",
		"events", result.Events,
		"alerts", result.Alerts,
		"failures", result.Failures,
		"duration", time.Since(start))
	return result
}

// runDetector isolates one detector invocation and persists its alerts.
// It returns how many alerts were persisted.
func (s *Scheduler) runDetector(ctx context.Context, d Detector, batch []core.Event) (int, error) {
	var alerts []*core.CorrelationAlert
	err := goroutine.Guard("detector "+d.Name(), s.logger, func() error {
		var err error
		alerts, err = d.Detect(batch)
		return err
	})
	if err != nil {
		return 0, err
	}

	persisted := 0
	var firstErr error
	for _, alert := range alerts {
		if err := s.sink.PersistCorrelation(ctx, alert); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("persist %s alert for %s: %w", alert.AlertType, alert.Source, err)
			}
			continue
		}
		persisted++
		metrics.CorrelationAlerts.WithLabelValues(string(alert.AlertType)).Inc()
		s.logger.Warnw("Correlation alert",
			"alert_type", alert.AlertType,
			"severity", alert.Severity,
			"source", alert.Source,
			"description", alert.Description)
	}
	return persisted, firstErr
}
