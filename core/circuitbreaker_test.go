package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	cb, err := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:         3,
		Timeout:             time.Minute,
		MaxHalfOpenRequests: 1,
	})
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(t)
	assert.Equal(t, CircuitBreakerStateClosed, cb.State())

	for i := 0; i < 2; i++ {
		_, newState := cb.RecordFailure()
		assert.Equal(t, CircuitBreakerStateClosed, newState)
	}
	oldState, newState := cb.RecordFailure()
	assert.Equal(t, CircuitBreakerStateClosed, oldState)
	assert.Equal(t, CircuitBreakerStateOpen, newState)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitBreakerOpen)
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(t)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	clock.advance(time.Minute)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitBreakerStateHalfOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrTooManyRequests)

	oldState, newState := cb.RecordSuccess()
	assert.Equal(t, CircuitBreakerStateHalfOpen, oldState)
	assert.Equal(t, CircuitBreakerStateClosed, newState)
	assert.Equal(t, uint32(0), cb.Failures())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.advance(2 * time.Minute)
	require.NoError(t, cb.Allow())

	_, newState := cb.RecordFailure()
	assert.Equal(t, CircuitBreakerStateOpen, newState)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitBreakerOpen)
}

func TestCircuitBreakerExecute(t *testing.T) {
	cb, _ := newTestBreaker(t)
	boom := errors.New("boom")

	calls := 0
	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { calls++; return boom })
		assert.ErrorIs(t, err, boom)
	}
	err := cb.Execute(func() error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, 3, calls)
}

func TestCircuitBreakerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config CircuitBreakerConfig
		valid  bool
	}{
		{"defaults", DefaultCircuitBreakerConfig(), true},
		{"zero failures", CircuitBreakerConfig{Timeout: time.Second, MaxHalfOpenRequests: 1}, false},
		{"zero timeout", CircuitBreakerConfig{MaxFailures: 1, MaxHalfOpenRequests: 1}, false},
		{"zero half-open", CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCircuitBreaker(tt.config)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidCircuitBreakerConfig)
			}
		})
	}
}
