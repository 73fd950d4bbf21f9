package bootstrap

import (
	"fmt"

	"newsportal/config"
	"newsportal/logging"
)

// InitConfig resolves the named environment and applies overrides. An unknown
// name is returned as the registry's *config.NotFoundError, unwrapped.
func InitConfig(name string, loadOpts []config.LoadOption, overrides []func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(name, loadOpts...)
	if err != nil {
		return nil, err
	}

	if len(overrides) > 0 {
		for _, override := range overrides {
			override(cfg)
		}
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration after overrides: %w", err)
		}
	}
	return cfg, nil
}

// InitLogging installs the global logger. Any other assembly step may log
// only after this returns.
func InitLogging(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.Init(cfg.Log)
	if err != nil {
		printFatalBanner("Logging Initialization Failed", err.Error())
		return nil, err
	}

	logger.Sugar.Infow("Configuration resolved",
		"environment", cfg.Name,
		"debug", cfg.Debug,
		"database", cfg.Database.Path,
		"redis", cfg.Redis.Addr(),
		"csrf_enabled", cfg.CSRF.Enabled)
	return logger, nil
}
