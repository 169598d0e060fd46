package notify

import (
	"context"

	"argus/core"

	"go.uber.org/zap"
)

// LogChannel writes alerts to the application log
type LogChannel struct {
	logger *zap.SugaredLogger
}

func NewLogChannel(logger *zap.SugaredLogger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(ctx context.Context, alert *core.Alert) error {
	c.logger.Warnw("ALERT",
		"alert_id", alert.ID,
		"rule_id", alert.RuleID,
		"severity", alert.Severity,
		"hostname", alert.Hostname,
		"source_ip", alert.SourceIP,
		"description", alert.Description,
		"message", alert.Message)
	return nil
}
