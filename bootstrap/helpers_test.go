package bootstrap

import (
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s        string
		substr   string
		expected bool
	}{
		{"Hello World", "hello", true},
		{"Hello World", "WORLD", true},
		{"Hello World", "xyz", false},
		{"", "", true},
		{"abc", "", true},
		{"", "abc", false},
		{"connection refused", "Connection Refused", true},
		{"ECONNREFUSED", "econnrefused", true},
	}

	for _, tt := range tests {
		t.Run(tt.s+"/"+tt.substr, func(t *testing.T) {
			assert.Equal(t, tt.expected, containsIgnoreCase(tt.s, tt.substr))
		})
	}
}

func TestClassifyConnectionError(t *testing.T) {
	const addr = "127.0.0.1:6379"

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{
			"refused",
			&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			"Connection refused by Redis",
		},
		{"dns", errors.New("dial tcp: lookup redis.invalid: no such host"), "Cannot resolve hostname"},
		{"auth", errors.New("WRONGPASS invalid username-password pair"), "Authentication failed"},
		{"other", errors.New("unexpected EOF"), "Failed to connect to Redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ClassifyConnectionError(tt.err, addr)
			if tt.want == "" {
				assert.Empty(t, msg)
				return
			}
			assert.Contains(t, msg, tt.want)
		})
	}
}

func TestClassifySQLiteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"locked", errors.New("database is locked (5) (SQLITE_BUSY)"), "locked by another process"},
		{"traversal", errors.New("invalid database path: path traversal not allowed (..): ../x.db"), "Rejected SQLite database path"},
		{"permission", errors.New("open data/x.db: permission denied"), "Permission denied"},
		{"corrupt", errors.New("database disk image is malformed"), "corrupted"},
		{"other", errors.New("boom"), "Failed to initialize SQLite database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := ClassifySQLiteError(tt.err, "data/x.db")
			if tt.want == "" {
				assert.Empty(t, msg)
				return
			}
			assert.Contains(t, msg, tt.want)
		})
	}
}

func TestResourceBindingError(t *testing.T) {
	cause := errors.New("dial failed")
	err := error(&ResourceBindingError{Resource: ResourceKV, Target: "127.0.0.1:6379", Err: cause})

	assert.True(t, errors.Is(err, ErrResourceBinding))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "kv")
	assert.Contains(t, err.Error(), "127.0.0.1:6379")
}
