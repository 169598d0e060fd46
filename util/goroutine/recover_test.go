package goroutine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecover_NoPanic(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	func() {
		defer Recover("quiet", logger)
	}()
}

func TestRecover_LogsPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	func() {
		defer Recover("feed-consumer", logger)
		panic("test panic message")
	}()

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Goroutine panic recovered", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "feed-consumer", fields["goroutine"])
	assert.Equal(t, "test panic message", fields["panic"])
	assert.Contains(t, fields["stack"], "goroutine")
}

func TestRecover_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover("stderr", nil)
		panic("no logger")
	})
}

func TestGuard(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	assert.NoError(t, Guard("ok", logger, func() error { return nil }))

	boom := errors.New("boom")
	assert.ErrorIs(t, Guard("err", logger, func() error { return boom }), boom)
	assert.Equal(t, 0, logs.Len(), "plain errors are not logged as panics")

	err := Guard("detector", logger, func() error { panic("nil map") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector panicked: nil map")
	assert.Equal(t, 1, logs.Len())
}
