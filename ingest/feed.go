// Package ingest moves events between the network and the detection pipeline.
// Feeds deliver JSON event messages from a broker to a Handler one at a time;
// the Collector accepts raw syslog lines and publishes them onto a broker.
package ingest

import (
	"context"
	"errors"

	"argus/util/goroutine"

	"go.uber.org/zap"
)

// ErrFeedClosed is returned by Run after Close
var ErrFeedClosed = errors.New("feed closed")

// Handler processes one feed message. The error is informational: a feed
// never redelivers a message because its handler failed.
type Handler interface {
	HandleMessage(ctx context.Context, data []byte) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, data []byte) error

func (f HandlerFunc) HandleMessage(ctx context.Context, data []byte) error {
	return f(ctx, data)
}

// Feed is a source of event messages. Run blocks, handing messages to h
// sequentially, until ctx is cancelled. The message in flight when ctx is
// cancelled is handled to completion with a context that is not cancelled,
// as is anything the feed had already buffered locally.
type Feed interface {
	Run(ctx context.Context, h Handler) error
	Close() error
}

// Publisher sends an encoded event to the feed
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
	Close() error
}

// handleMessage runs h on one message. A panic in the handler is logged and
// returned as an error so the feed loop keeps going.
func handleMessage(ctx context.Context, h Handler, data []byte, logger *zap.SugaredLogger) error {
	return goroutine.Guard("event handler", logger, func() error {
		return h.HandleMessage(ctx, data)
	})
}
