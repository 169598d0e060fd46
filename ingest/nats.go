package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"argus/metrics"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig configures a NATS connection and subject
type NATSConfig struct {
	URL           string
	Subject       string
	QueueGroup    string
	Name          string
	ReconnectWait time.Duration
	// PendingMessages bounds the subscription channel
	PendingMessages int
}

func connectNATS(cfg NATSConfig, logger *zap.SugaredLogger) (*nats.Conn, error) {
	wait := cfg.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(wait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnw("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infow("NATS reconnected", "url", c.ConnectedUrl())
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// NATSFeed consumes event messages from a core NATS subject
type NATSFeed struct {
	nc     *nats.Conn
	cfg    NATSConfig
	logger *zap.SugaredLogger
}

// NewNATSFeed connects to the server. The subscription is made by Run.
func NewNATSFeed(cfg NATSConfig, logger *zap.SugaredLogger) (*NATSFeed, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	if cfg.PendingMessages <= 0 {
		cfg.PendingMessages = 1024
	}
	nc, err := connectNATS(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &NATSFeed{nc: nc, cfg: cfg, logger: logger}, nil
}

// Run subscribes and handles messages until ctx is cancelled
func (f *NATSFeed) Run(ctx context.Context, h Handler) error {
	if f.nc.IsClosed() {
		return ErrFeedClosed
	}

	msgs := make(chan *nats.Msg, f.cfg.PendingMessages)
	var (
		sub *nats.Subscription
		err error
	)
	if f.cfg.QueueGroup != "" {
		sub, err = f.nc.ChanQueueSubscribe(f.cfg.Subject, f.cfg.QueueGroup, msgs)
	} else {
		sub, err = f.nc.ChanSubscribe(f.cfg.Subject, msgs)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.cfg.Subject, err)
	}
	f.logger.Infow("Consuming events from NATS",
		"subject", f.cfg.Subject,
		"queue_group", f.cfg.QueueGroup)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrConnectionDraining) {
				f.logger.Warnw("Failed to unsubscribe", "subject", f.cfg.Subject, "error", err)
			}
		})
	}
	defer unsubscribe()

	consume(ctx, msgs, unsubscribe, h, f.logger)
	return nil
}

// consume hands messages to h one at a time until ctx is done. On
// cancellation it stops delivery and then handles whatever was already
// buffered in msgs before returning.
func consume(ctx context.Context, msgs <-chan *nats.Msg, unsubscribe func(), h Handler, logger *zap.SugaredLogger) {
	handleCtx := context.WithoutCancel(ctx)
	handle := func(msg *nats.Msg) {
		metrics.EventsConsumed.WithLabelValues("nats").Inc()
		if err := handleMessage(handleCtx, h, msg.Data, logger); err != nil {
			logger.Debugw("Message dropped", "subject", msg.Subject, "error", err)
		}
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(msg)
		}
	}

	unsubscribe()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(msg)
		default:
			return
		}
	}
}

// Close drains the connection
func (f *NATSFeed) Close() error {
	if f.nc.IsClosed() {
		return nil
	}
	return f.nc.Drain()
}

// NATSPublisher publishes collector output to a NATS subject
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewNATSPublisher(cfg NATSConfig, logger *zap.SugaredLogger) (*NATSPublisher, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	nc, err := connectNATS(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, subject: cfg.Subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close flushes buffered messages before closing
func (p *NATSPublisher) Close() error {
	if p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}
