package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	data := []byte(`{"timestamp":"2024-03-01T10:00:00Z","hostname":"web1","tag":"sshd",
		"message":"Failed password for root from 10.0.0.5","priority":0,"source_ip":"10.0.0.5"}`)

	e, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), e.Timestamp)
	assert.Equal(t, "web1", e.Hostname)
	assert.Equal(t, "sshd", e.Tag)
	assert.Equal(t, 0, e.Priority)
	assert.Equal(t, "10.0.0.5", e.SourceIP)
}

func TestDecodeEventEpochTimestamps(t *testing.T) {
	tests := []struct {
		name string
		ts   string
		want time.Time
	}{
		{"seconds", `1709287200`, time.Unix(1709287200, 0).UTC()},
		{"fractional", `1709287200.5`, time.Unix(1709287200, 500000000).UTC()},
		{"milliseconds", `1709287200000`, time.Unix(1709287200, 0).UTC()},
		{"naive iso", `"2024-03-01T10:00:00"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(`{"timestamp":` + tt.ts + `,"hostname":"h","tag":"t","message":"m","priority":1,"source_ip":"1.1.1.1"}`)
			e, err := DecodeEvent(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Timestamp)
		})
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":          `{nope`,
		"missing hostname":  `{"timestamp":"2024-03-01T10:00:00Z","tag":"t","message":"m","priority":1,"source_ip":"1.1.1.1"}`,
		"missing priority":  `{"timestamp":"2024-03-01T10:00:00Z","hostname":"h","tag":"t","message":"m","source_ip":"1.1.1.1"}`,
		"missing timestamp": `{"hostname":"h","tag":"t","message":"m","priority":1,"source_ip":"1.1.1.1"}`,
		"null timestamp":    `{"timestamp":null,"hostname":"h","tag":"t","message":"m","priority":1,"source_ip":"1.1.1.1"}`,
		"bad timestamp":     `{"timestamp":"yesterday","hostname":"h","tag":"t","message":"m","priority":1,"source_ip":"1.1.1.1"}`,
		"string priority":   `{"timestamp":"2024-03-01T10:00:00Z","hostname":"h","tag":"t","message":"m","priority":"1","source_ip":"1.1.1.1"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(data))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	e := NewEvent()
	e.Hostname = "db1"
	e.Tag = "sshd"
	e.Message = "Accepted password for alice from 5.6.7.8 port 22 ssh2"
	e.Priority = 13
	e.SourceIP = "5.6.7.8"

	data, err := EncodeEvent(e)
	require.NoError(t, err)
	got, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.True(t, e.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, e.Message, got.Message)
	assert.Equal(t, 13, got.Priority)
}
