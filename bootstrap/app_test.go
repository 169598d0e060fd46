package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"argus/config"
	"argus/core"
	"argus/ingest"
	"argus/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const testRules = `
actions: [log]
rules:
  - id: ssh-root
    name: SSH root login attempt
    severity: high
    condition: "Failed password for root"
`

// sliceFeed delivers a fixed set of messages and then waits for cancellation
type sliceFeed struct {
	msgs [][]byte

	mu     sync.Mutex
	closed bool
}

func (f *sliceFeed) Run(ctx context.Context, h ingest.Handler) error {
	for _, m := range f.msgs {
		_ = h.HandleMessage(ctx, m)
	}
	<-ctx.Done()
	return nil
}

func (f *sliceFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(testRules), 0o644))

	cfg := &config.Config{}
	cfg.Storage.Driver = config.DriverSQLite
	cfg.SQLite.Path = filepath.Join(dir, "data", "argus.db")
	cfg.Rules.Path = rulesPath
	cfg.Rules.RegexTimeout = 100 * time.Millisecond
	cfg.Correlation.Enabled = true
	cfg.Correlation.Period = time.Hour
	cfg.Correlation.Lookback = 5 * time.Minute
	cfg.Notifications.Timeout = time.Second
	cfg.Notifications.MinSeverity = "low"
	return cfg
}

func event(t *testing.T, msg string) []byte {
	t.Helper()
	ev := core.NewEvent()
	ev.Hostname = "web01"
	ev.Tag = "sshd"
	ev.Message = msg
	ev.SourceIP = "10.0.0.5"
	data, err := core.EncodeEvent(ev)
	require.NoError(t, err)
	return data
}

func TestApp_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	logger := zaptest.NewLogger(t)

	app, err := NewApp(context.Background(), cfg, logger)
	require.NoError(t, err)

	feed := &sliceFeed{msgs: [][]byte{
		event(t, "Failed password for root from 10.0.0.5 port 22 ssh2"),
		[]byte(`{"hostname":"broken"}`),
		event(t, "Accepted password for alice from 10.0.0.5"),
	}}
	app.newFeed = func(*config.Config, *zap.SugaredLogger) (ingest.Feed, error) { return feed, nil }

	require.NoError(t, app.Start(context.Background()))

	db := app.Store.(*storage.SQLite)
	require.Eventually(t, func() bool {
		n, err := db.CountAlerts(context.Background())
		return err == nil && n == 1
	}, 3*time.Second, 20*time.Millisecond)

	events, err := db.EventsSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 2, "malformed message is not stored")

	app.Shutdown()
	assert.True(t, feed.closed)
	assert.ErrorIs(t, db.HealthCheck(context.Background()), storage.ErrDatabaseClosed)
}

func TestNewApp_InvalidCatalogIsFatal(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Rules.Path, []byte("rules:\n  - id: x\n"), 0o644))

	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule catalog")
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "postgres"
	_, err := InitStore(context.Background(), cfg, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, storage.ErrUnsupportedDriver)
}

func TestInitClickHouse_GivesUpAfterRetries(t *testing.T) {
	cfg := testConfig(t)
	cfg.ClickHouse.Addr = "127.0.0.1:1"
	cfg.ClickHouse.Database = "argus"
	cfg.ClickHouse.MaxPoolSize = 2

	_, err := initClickHouse(context.Background(), cfg, zap.NewNop().Sugar(), []time.Duration{time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestInitLogger(t *testing.T) {
	_, sugar, err := InitLogger("debug", "json")
	require.NoError(t, err)
	assert.NotNil(t, sugar)

	_, _, err = InitLogger("loud", "console")
	assert.Error(t, err)

	_, _, err = InitLogger("info", "xml")
	assert.Error(t, err)
}

func TestInitDispatcher_RegistersEnabledChannels(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifications.Slack.Enabled = true
	cfg.Notifications.Slack.WebhookURL = "http://127.0.0.1:1/hook"
	cfg.Notifications.Redis.Enabled = true
	cfg.Notifications.Redis.Addr = "127.0.0.1:1"
	cfg.Notifications.Redis.Channel = "argus.alerts"

	d, closers, err := InitDispatcher(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, []string{"log", "redis", "slack"}, d.Channels())
	assert.Len(t, closers, 1)
	for _, c := range closers {
		assert.NoError(t, c.Close())
	}
}

func TestInitDispatcher_EmailNeedsRecipients(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifications.Email.Enabled = true
	cfg.Notifications.Email.SMTPHost = "smtp.example.com"

	_, _, err := InitDispatcher(cfg, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestInitFeed_UnsupportedTransport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feed.Transport = "carrier-pigeon"
	_, err := InitFeed(cfg, zap.NewNop().Sugar())
	assert.Error(t, err)
	_, err = InitPublisher(cfg, zap.NewNop().Sugar())
	assert.Error(t, err)
}
