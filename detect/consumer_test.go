package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memEvents struct {
	events []*core.Event
	err    error
}

func (m *memEvents) InsertEvent(ctx context.Context, e *core.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

// CountRecent counts stored events by hostname and tag, ignoring the window
func (m *memEvents) CountRecent(ctx context.Context, hostname, tag string, window time.Duration) (int64, error) {
	var n int64
	for _, e := range m.events {
		if e.Hostname == hostname && e.Tag == tag {
			n++
		}
	}
	return n, nil
}

type recordedAlert struct {
	alert   *core.Alert
	actions []string
}

type memSink struct {
	recorded []recordedAlert
	err      error
}

func (m *memSink) Record(ctx context.Context, alert *core.Alert, actions []string) error {
	m.recorded = append(m.recorded, recordedAlert{alert: alert, actions: actions})
	return m.err
}

const consumerCatalog = `{"actions":["email"],"rules":[
	{"id":"ssh-fail","name":"SSH fail","condition":"Failed password","severity":"high","actions":["slack","webhook"]},
	{"id":"burst","name":"Burst","condition":"","window":60,"threshold":2}]}`

func newTestConsumer(t *testing.T, events *memEvents, sink *memSink) *Consumer {
	t.Helper()
	catalog := mustCatalog(t, consumerCatalog)
	logger := zaptest.NewLogger(t).Sugar()
	return NewConsumer(catalog, NewRuleEngine(catalog, events, logger), events, sink, logger)
}

func message(msg string) []byte {
	return []byte(`{"timestamp":"2024-03-01T10:00:00Z","hostname":"web1","tag":"sshd","message":"` + msg + `","priority":4,"source_ip":"10.0.0.5"}`)
}

func TestConsumerStoresBeforeEvaluating(t *testing.T) {
	events := &memEvents{}
	sink := &memSink{}
	c := newTestConsumer(t, events, sink)
	ctx := context.Background()

	require.NoError(t, c.HandleMessage(ctx, message("Failed password for root")))
	require.Len(t, events.events, 1)
	require.Len(t, sink.recorded, 1)
	assert.Equal(t, "ssh-fail", sink.recorded[0].alert.RuleID)
	assert.Equal(t, []string{"slack", "webhook"}, sink.recorded[0].actions)

	// Second event on the same host and tag reaches the threshold of 2 only
	// because it was stored before evaluation
	require.NoError(t, c.HandleMessage(ctx, message("session opened")))
	require.Len(t, sink.recorded, 2)
	assert.Equal(t, "burst", sink.recorded[1].alert.RuleID)
	assert.Equal(t, []string{"email"}, sink.recorded[1].actions, "rule without actions uses the global list")
}

func TestConsumerDiscardsMalformed(t *testing.T) {
	events := &memEvents{}
	sink := &memSink{}
	c := newTestConsumer(t, events, sink)

	err := c.HandleMessage(context.Background(), []byte(`{"hostname":"web1"}`))
	assert.ErrorIs(t, err, core.ErrMalformedEvent)
	assert.Empty(t, events.events, "malformed messages are never stored")
	assert.Empty(t, sink.recorded)
}

func TestConsumerDropsEventWhenStoreFails(t *testing.T) {
	events := &memEvents{err: errors.New("disk full")}
	sink := &memSink{}
	c := newTestConsumer(t, events, sink)

	err := c.HandleMessage(context.Background(), message("Failed password for root"))
	assert.Error(t, err)
	assert.Empty(t, sink.recorded, "no evaluation without a stored event")
}

func TestConsumerContinuesAfterSinkFailure(t *testing.T) {
	events := &memEvents{}
	sink := &memSink{err: errors.New("alerts table locked")}
	c := newTestConsumer(t, events, sink)
	ctx := context.Background()

	require.NoError(t, c.HandleMessage(ctx, message("noise")))
	err := c.HandleMessage(ctx, message("Failed password for root"))
	assert.Error(t, err)
	assert.Len(t, sink.recorded, 2, "both firing rules were handed to the sink")
}

func TestNewConsumerPanicsOnNilDependency(t *testing.T) {
	catalog := mustCatalog(t, consumerCatalog)
	logger := zaptest.NewLogger(t).Sugar()
	engine := NewRuleEngine(catalog, &memEvents{}, logger)

	assert.Panics(t, func() { NewConsumer(nil, engine, &memEvents{}, &memSink{}, logger) })
	assert.Panics(t, func() { NewConsumer(catalog, engine, nil, &memSink{}, logger) })
	assert.Panics(t, func() { NewConsumer(catalog, engine, &memEvents{}, nil, logger) })
}
