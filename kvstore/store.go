// Package kvstore wraps the Redis client used for arbitrary key/value data and
// as the backing store for server-side sessions.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsportal/config"
	"newsportal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MaxValueSize bounds JSON values written through SetJSON
const MaxValueSize = 10 * 1024 * 1024 // 10MB

// Options configures the Redis connection
type Options struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// OptionsFromConfig maps the redis configuration section to client options
func OptionsFromConfig(cfg config.Redis) Options {
	return Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	}
}

// Store is the process-wide key-value store handle
type Store struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// New creates a store. No connection is made until the first command; callers
// that need to fail fast should Ping.
func New(opts Options, logger *zap.SugaredLogger) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.DialTimeout,
		WriteTimeout: opts.DialTimeout,
		// Fail on the first refused dial instead of retrying
		MaxRetries: -1,
	})

	return &Store{
		client: client,
		logger: logger,
	}
}

// Key joins a namespace and key parts with ':'
func Key(namespace string, parts ...string) string {
	return strings.Join(append([]string{namespace}, parts...), ":")
}

// Client exposes the underlying client for collaborators that need raw commands
func (s *Store) Client() *redis.Client {
	return s.client
}

// Ping tests the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	err := s.client.Ping(ctx).Err()
	observe("ping", err)
	return err
}

// Close closes the Redis connection pool
func (s *Store) Close() error {
	return s.client.Close()
}

// Get returns the value at key. found is false when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.KVOperations.WithLabelValues("get", "miss").Inc()
		return "", false, nil
	}
	if err != nil {
		s.logger.Errorf("Failed to get key %s: %v", key, err)
		metrics.KVOperations.WithLabelValues("get", "error").Inc()
		return "", false, err
	}
	metrics.KVOperations.WithLabelValues("get", "hit").Inc()
	return v, true, nil
}

// Set stores value at key. A zero ttl keeps the key until deleted.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	err := s.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		s.logger.Errorf("Failed to set key %s: %v", key, err)
	}
	observe("set", err)
	return err
}

// Expire sets a timeout on key. It reports false when the key does not exist.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	observe("expire", err)
	return ok, err
}

// Incr atomically increments the integer at key and returns the new value
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	observe("incr", err)
	return n, err
}

// Delete removes keys and returns how many existed
func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	observe("delete", err)
	return n, err
}

// TTL returns the remaining lifetime of key. Redis reports -1 for keys without
// an expiry and -2 for missing keys.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	observe("ttl", err)
	return d, err
}

// SetJSON stores value encoded as JSON
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Errorf("Failed to marshal value for key %s: %v", key, err)
		metrics.KVOperations.WithLabelValues("set", "marshal_error").Inc()
		return err
	}

	if len(data) > MaxValueSize {
		s.logger.Warnf("Value for key %s exceeds size limit (%d bytes > %d bytes), rejecting", key, len(data), MaxValueSize)
		metrics.KVOperations.WithLabelValues("set", "size_limit").Inc()
		return fmt.Errorf("value size %d bytes exceeds maximum allowed size %d bytes", len(data), MaxValueSize)
	}

	return s.Set(ctx, key, data, ttl)
}

// GetJSON decodes the JSON value at key into dest
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		s.logger.Errorf("Failed to unmarshal value for key %s: %v", key, err)
		metrics.KVOperations.WithLabelValues("get", "unmarshal_error").Inc()
		return false, err
	}
	return true, nil
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.KVOperations.WithLabelValues(op, result).Inc()
}
