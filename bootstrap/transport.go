package bootstrap

import (
	"fmt"
	"io"

	"argus/config"
	"argus/core"
	"argus/ingest"
	"argus/notify"

	"go.uber.org/zap"
)

// InitDispatcher registers the log channel and every enabled notification
// channel. The returned closers release channel connections on shutdown.
func InitDispatcher(cfg *config.Config, sugar *zap.SugaredLogger) (*notify.Dispatcher, []io.Closer, error) {
	n := cfg.Notifications
	channels := []notify.Channel{notify.NewLogChannel(sugar)}
	var closers []io.Closer

	if n.Email.Enabled {
		email, err := notify.NewEmailChannel(notify.EmailConfig{
			Host:     n.Email.SMTPHost,
			Port:     n.Email.SMTPPort,
			Username: n.Email.Username,
			Password: n.Email.Password,
			From:     n.Email.From,
			To:       n.Email.To,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("email channel: %w", err)
		}
		channels = append(channels, email)
	}
	if n.Slack.Enabled {
		channels = append(channels, notify.NewSlackChannel(n.Slack.WebhookURL, n.Timeout))
	}
	if n.Webhook.Enabled {
		channels = append(channels, notify.NewWebhookChannel(n.Webhook.URL, n.Webhook.Headers, n.Timeout))
	}
	if n.Redis.Enabled {
		redisCh := notify.NewRedisChannel(n.Redis.Addr, n.Redis.Password, n.Redis.DB, n.Redis.Channel)
		channels = append(channels, redisCh)
		closers = append(closers, redisCh)
	}

	minSeverity, err := core.ParseSeverity(n.MinSeverity)
	if err != nil {
		return nil, nil, err
	}
	breaker := core.DefaultCircuitBreakerConfig()
	if n.CircuitBreaker.MaxFailures > 0 {
		breaker.MaxFailures = n.CircuitBreaker.MaxFailures
	}
	if n.CircuitBreaker.Timeout > 0 {
		breaker.Timeout = n.CircuitBreaker.Timeout
	}

	dispatcher, err := notify.NewDispatcher(notify.DispatcherConfig{
		Timeout:        n.Timeout,
		MinSeverity:    minSeverity,
		RateLimit:      n.RateLimit,
		CircuitBreaker: breaker,
	}, sugar, channels...)
	if err != nil {
		return nil, nil, err
	}
	sugar.Infow("Notification channels ready", "channels", dispatcher.Channels())
	return dispatcher, closers, nil
}

// InitFeed connects the configured event feed
func InitFeed(cfg *config.Config, sugar *zap.SugaredLogger) (ingest.Feed, error) {
	switch cfg.Feed.Transport {
	case config.TransportNATS:
		return ingest.NewNATSFeed(natsConfig(cfg), sugar)
	case config.TransportKafka:
		return ingest.NewKafkaFeed(ingest.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, sugar)
	default:
		return nil, fmt.Errorf("unsupported feed transport %q", cfg.Feed.Transport)
	}
}

// InitPublisher connects the collector to the configured feed
func InitPublisher(cfg *config.Config, sugar *zap.SugaredLogger) (ingest.Publisher, error) {
	switch cfg.Feed.Transport {
	case config.TransportNATS:
		return ingest.NewNATSPublisher(natsConfig(cfg), sugar)
	case config.TransportKafka:
		return ingest.NewKafkaPublisher(ingest.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
	default:
		return nil, fmt.Errorf("unsupported feed transport %q", cfg.Feed.Transport)
	}
}

func natsConfig(cfg *config.Config) ingest.NATSConfig {
	return ingest.NATSConfig{
		URL:           cfg.NATS.URL,
		Subject:       cfg.NATS.Subject,
		QueueGroup:    cfg.NATS.QueueGroup,
		Name:          cfg.NATS.Name,
		ReconnectWait: cfg.NATS.ReconnectWait,
	}
}
