package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, "Connection refused"},
		{"dns", errors.New("dial tcp: lookup clickhouse: no such host"), "Cannot resolve hostname"},
		{"auth", errors.New("code: 516, message: default: Authentication failed"), "Authentication failed"},
		{"other", errors.New("boom"), "Failed to connect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyConnectionError(tt.err, "localhost:9000")
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestClassifySQLiteError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("open data/argus.db: permission denied"), "Permission denied"},
		{fmt.Errorf("exec: %w", errors.New("database is locked (5) (SQLITE_BUSY)")), "locked"},
		{errors.New("write: no space left on device"), "Disk full"},
		{errors.New("database disk image is malformed"), "corrupted"},
		{errors.New("attempt to write a readonly database: read-only file system"), "read-only"},
		{errors.New("unexpected"), "Failed to initialize"},
	}
	for _, tt := range tests {
		assert.Contains(t, ClassifySQLiteError(tt.err, "data/argus.db"), tt.want)
	}
	assert.Empty(t, ClassifySQLiteError(nil, "x"))
}
