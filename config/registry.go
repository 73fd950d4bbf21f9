package config

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Environment names known to the registry
const (
	Development = "development"
	Production  = "production"
	Testing     = "testing"
)

// DefaultLogPath is the log file of the reference deployment
const DefaultLogPath = "logs/log"

// ErrNotFound is matched by every NotFoundError
var ErrNotFound = errors.New("configuration not found")

// NotFoundError is returned when an environment name is not registered
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("configuration %q not found (known: %v)", e.Name, Names())
}

// Is lets errors.Is(err, ErrNotFound) match
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// registry maps environment names to constructors so every lookup gets a fresh copy
var registry = map[string]func() *Config{
	Development: developmentConfig,
	Production:  productionConfig,
	Testing:     testingConfig,
}

// Lookup returns the static configuration for the named environment
func Lookup(name string) (*Config, error) {
	build, ok := registry[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return build(), nil
}

// Names returns the registered environment names in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func baseConfig() *Config {
	return &Config{
		Log: Log{
			Level:      "info",
			Path:       DefaultLogPath,
			MaxSizeMB:  100,
			MaxBackups: 10,
		},
		Database: Database{
			Path: "data/newsportal.db",
		},
		Redis: Redis{
			Host:        "127.0.0.1",
			Port:        6379,
			PoolSize:    10,
			DialTimeout: 5 * time.Second,
		},
		Session: Session{
			CookieName: "session",
			KeyPrefix:  "session:",
			MaxAge:     86400 * 2,
			HTTPOnly:   true,
		},
		CSRF: CSRF{
			Enabled:    true,
			CookieName: "csrf_token",
			HeaderName: "X-CSRFToken",
			FieldName:  "csrf_token",
			TimeLimit:  time.Hour,
		},
		RateLimit: RateLimit{
			Enabled:    true,
			Requests:   300,
			Window:     time.Minute,
			Burst:      50,
			MaxClients: 10000,
		},
		Server: Server{
			Host:            "127.0.0.1",
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Secrets: Secrets{
			Provider: "env",
			Vault:    VaultSecrets{Path: "secret/newsportal"},
			AWS:      AWSSecrets{SecretID: "newsportal/secrets"},
		},
		Features: map[string]bool{},
	}
}

func developmentConfig() *Config {
	c := baseConfig()
	c.Name = Development
	c.Debug = true
	c.SecretKey = "development-only-secret-key-change-me"
	c.Log.Level = "debug"
	c.Log.Console = true
	return c
}

func productionConfig() *Config {
	c := baseConfig()
	c.Name = Production
	// SecretKey must come from NEWSPORTAL_SECRET_KEY or a config file
	c.Log.Level = "warn"
	c.Log.Compress = true
	c.Session.Secure = true
	c.Server.Host = "0.0.0.0"
	return c
}

func testingConfig() *Config {
	c := baseConfig()
	c.Name = Testing
	c.Debug = true
	c.SecretKey = "testing-only-secret-key-0123456789"
	c.Log.Level = "debug"
	c.Database.Path = ":memory:"
	c.Redis.DB = 1
	c.Redis.DialTimeout = time.Second
	c.CSRF.Enabled = false
	c.RateLimit.Enabled = false
	c.Server.Port = 0
	return c
}
