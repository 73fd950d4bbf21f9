package config

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Log holds the rotating log sink configuration
type Log struct {
	// Level is the global minimum level: debug, info, warn or error
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	// Path is the log file; its directory must already exist and be writable
	Path       string `mapstructure:"path" yaml:"path" validate:"required"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"min=1"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"min=0"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	// Console mirrors every log line to stdout
	Console bool `mapstructure:"console" yaml:"console"`
}

// Database holds the relational store configuration
type Database struct {
	// Path is the SQLite file path, or ":memory:"
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// Redis holds the key-value store connection parameters
type Redis struct {
	Host        string        `mapstructure:"host" yaml:"host" validate:"required"`
	Port        int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Password    string        `mapstructure:"password" yaml:"password"`
	DB          int           `mapstructure:"db" yaml:"db" validate:"min=0"`
	PoolSize    int           `mapstructure:"pool_size" yaml:"pool_size" validate:"min=1"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" validate:"gt=0"`
}

// Addr returns host:port for the redis client
func (r Redis) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Session holds server-side session storage settings
type Session struct {
	CookieName string `mapstructure:"cookie_name" yaml:"cookie_name" validate:"required"`
	// KeyPrefix namespaces session records inside the key-value store
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix" validate:"required"`
	// MaxAge is the session lifetime in seconds
	MaxAge   int  `mapstructure:"max_age" yaml:"max_age" validate:"min=1"`
	Secure   bool `mapstructure:"secure" yaml:"secure"`
	HTTPOnly bool `mapstructure:"http_only" yaml:"http_only"`
}

// CSRF holds cross-site request forgery protection settings
type CSRF struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	CookieName string        `mapstructure:"cookie_name" yaml:"cookie_name" validate:"required"`
	HeaderName string        `mapstructure:"header_name" yaml:"header_name" validate:"required"`
	FieldName  string        `mapstructure:"field_name" yaml:"field_name" validate:"required"`
	TimeLimit  time.Duration `mapstructure:"time_limit" yaml:"time_limit" validate:"gt=0"`
}

// RateLimit holds the per-client request limiter settings
type RateLimit struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Requests int           `mapstructure:"requests" yaml:"requests" validate:"min=1"`
	Window   time.Duration `mapstructure:"window" yaml:"window" validate:"gt=0"`
	Burst    int           `mapstructure:"burst" yaml:"burst" validate:"min=1"`
	// MaxClients bounds the number of tracked client addresses
	MaxClients int `mapstructure:"max_clients" yaml:"max_clients" validate:"min=1"`
}

// Secrets selects an external store for SecretKey and the Redis password
type Secrets struct {
	// Provider is env (the default, values come from config and NEWSPORTAL_*), vault or aws
	Provider string       `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=env vault aws"`
	Vault    VaultSecrets `mapstructure:"vault" yaml:"vault"`
	AWS      AWSSecrets   `mapstructure:"aws" yaml:"aws"`
}

// VaultSecrets locates the secret in HashiCorp Vault
type VaultSecrets struct {
	Address string `mapstructure:"address" yaml:"address"`
	Token   string `mapstructure:"token" yaml:"token"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// AWSSecrets locates the secret in AWS Secrets Manager
type AWSSecrets struct {
	Region    string `mapstructure:"region" yaml:"region"`
	SecretID  string `mapstructure:"secret_id" yaml:"secret_id"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	// Endpoint overrides the service endpoint, for local stacks
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Server holds the HTTP serving parameters
type Server struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns host:port the server listens on
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Config is the deployment configuration for one named environment.
// Values are built once from the registry and must not be mutated after assembly.
type Config struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Debug     bool   `mapstructure:"debug" yaml:"debug"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key" validate:"required,min=16"`

	Log       Log       `mapstructure:"log" yaml:"log"`
	Database  Database  `mapstructure:"database" yaml:"database"`
	Redis     Redis     `mapstructure:"redis" yaml:"redis"`
	Session   Session   `mapstructure:"session" yaml:"session"`
	CSRF      CSRF      `mapstructure:"csrf" yaml:"csrf"`
	RateLimit RateLimit `mapstructure:"rate_limit" yaml:"rate_limit"`
	Server    Server    `mapstructure:"server" yaml:"server"`
	Secrets   Secrets   `mapstructure:"secrets" yaml:"secrets"`

	// Features holds boolean feature flags keyed by lowercase name
	Features map[string]bool `mapstructure:"features" yaml:"features"`
}

// FeatureEnabled reports whether the named feature flag is on
func (c *Config) FeatureEnabled(name string) bool {
	return c.Features[name]
}

// DeriveKey derives an n-byte key bound to purpose from SecretKey using HKDF-SHA256.
// Different purposes yield independent keys from the same secret.
func (c *Config) DeriveKey(purpose string, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(c.SecretKey), nil, []byte("newsportal:"+purpose))
	key := make([]byte, n)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", purpose, err)
	}
	return key, nil
}

// Redacted returns a copy safe to print
func (c Config) Redacted() Config {
	const mask = "******"
	if c.SecretKey != "" {
		c.SecretKey = mask
	}
	if c.Redis.Password != "" {
		c.Redis.Password = mask
	}
	if c.Secrets.Vault.Token != "" {
		c.Secrets.Vault.Token = mask
	}
	if c.Secrets.AWS.SecretKey != "" {
		c.Secrets.AWS.SecretKey = mask
	}
	features := make(map[string]bool, len(c.Features))
	for k, v := range c.Features {
		features[k] = v
	}
	c.Features = features
	return c
}
