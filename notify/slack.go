package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"argus/core"
)

var severityColor = map[core.Severity]string{
	core.SeverityCritical: "#d32f2f",
	core.SeverityHigh:     "#f44336",
	core.SeverityMedium:   "#ff9800",
	core.SeverityLow:      "#2196f3",
}

// SlackChannel posts alerts to a Slack incoming webhook
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

func NewSlackChannel(webhookURL string, timeout time.Duration) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		client:     newHTTPClient(timeout),
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Send(ctx context.Context, alert *core.Alert) error {
	return postJSON(ctx, c.client, c.webhookURL, nil, slackPayload(alert))
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func slackPayload(alert *core.Alert) slackMessage {
	color, ok := severityColor[alert.Severity]
	if !ok {
		color = "#757575"
	}
	return slackMessage{
		Text: fmt.Sprintf("*%s severity alert*", alert.Severity),
		Attachments: []slackAttachment{{
			Color: color,
			Title: alert.Description,
			Text:  alert.Message,
			Fields: []slackField{
				{Title: "Rule", Value: alert.RuleID, Short: true},
				{Title: "Host", Value: alert.Hostname, Short: true},
				{Title: "Source IP", Value: fmt.Sprintf("`%s`", alert.SourceIP), Short: true},
				{Title: "Alert ID", Value: fmt.Sprintf("`%s`", alert.ID), Short: true},
			},
			Footer: "argus",
			Ts:     alert.Timestamp.Unix(),
		}},
	}
}
