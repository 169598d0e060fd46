package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"argus/metrics"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	kafkaMaxWait        = 500 * time.Millisecond
	kafkaWriteTimeout   = 10 * time.Second
	kafkaCommitAttempts = 3
)

// KafkaConfig configures a consumer group or producer
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// ParseBrokers splits a comma-separated broker list
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c KafkaConfig) validate(needGroup bool) error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic cannot be empty")
	}
	if needGroup && c.GroupID == "" {
		return fmt.Errorf("kafka group id cannot be empty")
	}
	return nil
}

// kafkaReader is the subset of *kafka.Reader used by KafkaFeed
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaFeed consumes event messages as part of a consumer group. Offsets are
// committed after the handler returns, so delivery is at-least-once.
type KafkaFeed struct {
	reader kafkaReader
	topic  string
	logger *zap.SugaredLogger
}

func NewKafkaFeed(cfg KafkaConfig, logger *zap.SugaredLogger) (*KafkaFeed, error) {
	if err := cfg.validate(true); err != nil {
		return nil, err
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     kafkaMaxWait,
		StartOffset: kafka.FirstOffset,
	})
	logger.Infow("Kafka consumer configured",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"group_id", cfg.GroupID)
	return &KafkaFeed{reader: reader, topic: cfg.Topic, logger: logger}, nil
}

// Run fetches, handles and commits messages until ctx is cancelled
func (f *KafkaFeed) Run(ctx context.Context, h Handler) error {
	handleCtx := context.WithoutCancel(ctx)
	for {
		msg, err := f.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, kafka.ErrGroupClosed) || errors.Is(err, context.Canceled) {
				return ErrFeedClosed
			}
			f.logger.Errorw("Kafka fetch failed", "topic", f.topic, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		metrics.EventsConsumed.WithLabelValues("kafka").Inc()
		if err := handleMessage(handleCtx, h, msg.Value, f.logger); err != nil {
			f.logger.Debugw("Message dropped",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err)
		}
		f.commit(handleCtx, msg)
	}
}

func (f *KafkaFeed) commit(ctx context.Context, msg kafka.Message) {
	var err error
	for attempt := 1; attempt <= kafkaCommitAttempts; attempt++ {
		commitCtx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
		err = f.reader.CommitMessages(commitCtx, msg)
		cancel()
		if err == nil {
			return
		}
	}
	f.logger.Errorw("Failed to commit offset, message may be redelivered",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", err)
}

func (f *KafkaFeed) Close() error {
	return f.reader.Close()
}

// KafkaPublisher writes collector output to a topic
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if err := cfg.validate(false); err != nil {
		return nil, err
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: kafkaWriteTimeout,
			BatchTimeout: 10 * time.Millisecond,
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, data []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Value: data})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
