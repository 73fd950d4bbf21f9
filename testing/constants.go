package testing

import "time"

const (
	// TestRedisDialTimeout keeps connection failures against a stopped
	// miniredis fast.
	TestRedisDialTimeout = time.Second

	// TestRedisPoolSize is small; tests never issue concurrent commands at scale
	TestRedisPoolSize = 2

	// TestShortTimeout is used for operations that should complete immediately
	TestShortTimeout = 100 * time.Millisecond

	// TestMediumTimeout allows for server start and shutdown on slow CI
	TestMediumTimeout = 5 * time.Second
)

// TestSessionKey signs session cookies in tests
var TestSessionKey = []byte("0123456789abcdef0123456789abcdef")
