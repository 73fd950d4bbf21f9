package bootstrap

import (
	"context"
	"fmt"
	"os"

	"newsportal/config"
	"newsportal/kvstore"
	"newsportal/storage"

	"go.uber.org/zap"
)

// InitDatabase opens SQLite, applies migrations and verifies both pools respond.
func InitDatabase(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*storage.SQLite, error) {
	db, err := storage.NewSQLite(cfg.Database.Path, sugar)
	if err != nil {
		printFatalBanner("SQLite Initialization Failed", ClassifySQLiteError(err, cfg.Database.Path))
		return nil, &ResourceBindingError{Resource: ResourceDatabase, Target: cfg.Database.Path, Err: err}
	}

	version, err := db.Migrate(ctx)
	if err != nil {
		_ = db.Close()
		printFatalBanner("SQLite Migration Failed", ClassifySQLiteError(err, cfg.Database.Path))
		return nil, &ResourceBindingError{Resource: ResourceDatabase, Target: cfg.Database.Path, Err: err}
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, &ResourceBindingError{Resource: ResourceDatabase, Target: cfg.Database.Path, Err: err}
	}

	sugar.Infow("SQLite initialized successfully", "path", cfg.Database.Path, "schema_version", version)
	return db, nil
}

// InitKV connects to Redis and fails unless a PING succeeds within the dial timeout.
func InitKV(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*kvstore.Store, error) {
	addr := cfg.Redis.Addr()
	kv := kvstore.New(kvstore.OptionsFromConfig(cfg.Redis), sugar)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
	defer cancel()

	if err := kv.Ping(pingCtx); err != nil {
		_ = kv.Close()
		printFatalBanner("Redis Connection Failed", ClassifyConnectionError(err, addr))
		return nil, &ResourceBindingError{Resource: ResourceKV, Target: addr, Err: err}
	}

	sugar.Infow("Redis initialized successfully", "addr", addr, "db", cfg.Redis.DB)
	return kv, nil
}

func printFatalBanner(title, msg string) {
	fmt.Fprintf(os.Stderr, "\n========================================\n")
	fmt.Fprintf(os.Stderr, "FATAL: %s\n", title)
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "%s\n", msg)
	fmt.Fprintf(os.Stderr, "========================================\n\n")
}
