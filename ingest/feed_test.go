package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"argus/util/goroutine"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingHandler struct {
	mu      sync.Mutex
	got     []string
	ctxErrs []error
	block   chan struct{}
	started chan struct{}
}

func (h *recordingHandler) HandleMessage(ctx context.Context, data []byte) error {
	if h.started != nil {
		h.started <- struct{}{}
	}
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, string(data))
	h.ctxErrs = append(h.ctxErrs, ctx.Err())
	if string(data) == "bad" {
		return errors.New("malformed")
	}
	return nil
}

func (h *recordingHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.got...)
}

func TestConsume_HandlesInOrder(t *testing.T) {
	msgs := make(chan *nats.Msg, 3)
	msgs <- &nats.Msg{Subject: "syslog.raw", Data: []byte("one")}
	msgs <- &nats.Msg{Subject: "syslog.raw", Data: []byte("bad")}
	msgs <- &nats.Msg{Subject: "syslog.raw", Data: []byte("two")}
	close(msgs)

	h := &recordingHandler{}
	consume(context.Background(), msgs, func() {}, h, zaptest.NewLogger(t).Sugar())

	assert.Equal(t, []string{"one", "bad", "two"}, h.messages())
}

func TestConsume_BufferedMessagesHandledAfterCancel(t *testing.T) {
	goroutine.AssertNoLeaks(t)

	msgs := make(chan *nats.Msg, 4)
	for _, m := range []string{"m1", "m2", "m3", "m4"} {
		msgs <- &nats.Msg{Data: []byte(m)}
	}

	h := &recordingHandler{block: make(chan struct{}), started: make(chan struct{}, 4)}
	var unsubscribed atomic.Int32
	var handledAtUnsubscribe int
	unsubscribe := func() {
		unsubscribed.Add(1)
		handledAtUnsubscribe = len(h.messages())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consume(ctx, msgs, unsubscribe, h, zaptest.NewLogger(t).Sugar())
		close(done)
	}()

	<-h.started
	cancel()
	close(h.block)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not return after cancel")
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, h.messages())
	assert.Equal(t, int32(1), unsubscribed.Load())
	assert.Equal(t, 1, handledAtUnsubscribe, "delivery stops right after the in-flight message")
	for _, err := range h.ctxErrs {
		assert.NoError(t, err)
	}
}

func TestConsume_PanickingMessageDoesNotStopLoop(t *testing.T) {
	msgs := make(chan *nats.Msg, 3)
	msgs <- &nats.Msg{Data: []byte("ok1")}
	msgs <- &nats.Msg{Data: []byte("boom")}
	msgs <- &nats.Msg{Data: []byte("ok2")}
	close(msgs)

	var handled []string
	h := HandlerFunc(func(ctx context.Context, data []byte) error {
		if string(data) == "boom" {
			panic("handler exploded")
		}
		handled = append(handled, string(data))
		return nil
	})

	consume(context.Background(), msgs, func() {}, h, zaptest.NewLogger(t).Sugar())

	assert.Equal(t, []string{"ok1", "ok2"}, handled)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	order     []string
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.order = append(r.order, "fetch")
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	r.order = append(r.order, "commit")
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaFeed_CommitsAfterHandling(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte("a")},
		{Offset: 2, Value: []byte("bad")},
	}}
	feed := &KafkaFeed{reader: reader, topic: "syslog.raw", logger: zaptest.NewLogger(t).Sugar()}
	h := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, h) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 2
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"a", "bad"}, h.messages())
	assert.Equal(t, []int64{1, 2}, reader.committed)
	assert.Equal(t, []string{"fetch", "commit", "fetch", "commit"}, reader.order)
}

func TestKafkaFeed_PanickingMessageIsCommittedAndSkipped(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte("ok1")},
		{Offset: 2, Value: []byte("boom")},
		{Offset: 3, Value: []byte("ok2")},
	}}
	feed := &KafkaFeed{reader: reader, topic: "syslog.raw", logger: zaptest.NewLogger(t).Sugar()}

	var mu sync.Mutex
	var handled []string
	h := HandlerFunc(func(ctx context.Context, data []byte) error {
		if string(data) == "boom" {
			panic("handler exploded")
		}
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, string(data))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, h) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ok1", "ok2"}, handled)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestKafkaConfig_Validate(t *testing.T) {
	assert.Error(t, KafkaConfig{Topic: "t", GroupID: "g"}.validate(true))
	assert.Error(t, KafkaConfig{Brokers: []string{"b"}, GroupID: "g"}.validate(true))
	assert.Error(t, KafkaConfig{Brokers: []string{"b"}, Topic: "t"}.validate(true))
	assert.NoError(t, KafkaConfig{Brokers: []string{"b"}, Topic: "t"}.validate(false))
}

func TestHandlerFunc(t *testing.T) {
	var got []byte
	h := HandlerFunc(func(ctx context.Context, data []byte) error {
		got = data
		return nil
	})
	require.NoError(t, h.HandleMessage(context.Background(), []byte("x")))
	assert.Equal(t, []byte("x"), got)
}
