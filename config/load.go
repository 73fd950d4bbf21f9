package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override
const EnvPrefix = "NEWSPORTAL"

// EnvVar selects the environment name when no flag is given
const EnvVar = EnvPrefix + "_ENV"

type loadOptions struct {
	file        string
	searchPaths []string
}

// LoadOption customizes Load
type LoadOption func(*loadOptions)

// WithFile overlays an explicit YAML file; a missing file is an error
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.file = path
	}
}

// WithSearchPaths replaces the directories searched for config.<env>.yaml
func WithSearchPaths(paths ...string) LoadOption {
	return func(o *loadOptions) {
		o.searchPaths = paths
	}
}

// Load resolves the named environment, overlays an optional config file and
// NEWSPORTAL_* environment variables, then validates the result.
func Load(name string, opts ...LoadOption) (*Config, error) {
	base, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	o := loadOptions{searchPaths: []string{".", "./config"}}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// Seed viper with the static table so every key is known to AutomaticEnv
	seed, err := yaml.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s defaults: %w", name, err)
	}
	if err := v.ReadConfig(bytes.NewReader(seed)); err != nil {
		return nil, fmt.Errorf("unable to read %s defaults: %w", name, err)
	}

	if o.file != "" {
		v.SetConfigFile(o.file)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", o.file, err)
		}
	} else {
		v.SetConfigName("config." + name)
		for _, p := range o.searchPaths {
			v.AddConfigPath(p)
		}
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("unable to read config file: %w", err)
			}
			// No file, defaults and env vars only
		}
	}

	loadFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Name = name
	if cfg.Features == nil {
		cfg.Features = map[string]bool{}
	}

	if err := LoadSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("unable to load secrets for %s: %w", name, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed for %s: %w", name, err)
	}
	return &cfg, nil
}

// loadFromEnv sets up environment variable loading
func loadFromEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Shorter aliases for the values most often injected by deployments
	_ = v.BindEnv("secret_key", EnvPrefix+"_SECRET_KEY", "SECRET_KEY")
	_ = v.BindEnv("redis.host", EnvPrefix+"_REDIS_HOST", "REDIS_HOST")
	_ = v.BindEnv("redis.port", EnvPrefix+"_REDIS_PORT", "REDIS_PORT")
	_ = v.BindEnv("database.path", EnvPrefix+"_DATABASE_PATH", EnvPrefix+"_SQLITE_PATH")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints on a resolved configuration
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
