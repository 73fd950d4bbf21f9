// Package testing provides shared fixtures for package tests: configuration,
// an isolated database, a miniredis-backed store and a fully bound resource set.
package testing

import (
	"context"
	"testing"
	"time"

	"newsportal/config"
	"newsportal/kvstore"
	"newsportal/resources"
	"newsportal/session"
	"newsportal/storage"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// SetupTestConfig returns the testing environment configuration with optional
// overrides applied.
//
// Example usage:
//
//	cfg := testinghelpers.SetupTestConfig(t, func(c *config.Config) {
//	    c.CSRF.Enabled = true
//	})
func SetupTestConfig(t testing.TB, overrides ...func(*config.Config)) *config.Config {
	t.Helper()

	cfg, err := config.Lookup(config.Testing)
	if err != nil {
		t.Fatalf("Failed to look up testing config: %v", err)
	}
	cfg.Log.Path = t.TempDir() + "/log"

	for _, override := range overrides {
		override(cfg)
	}
	return cfg
}

// SetupTestLogger returns a logger that writes through t.Log
func SetupTestLogger(t testing.TB) *zap.SugaredLogger {
	t.Helper()
	return zaptest.NewLogger(t).Sugar()
}

// SetupTestDB creates an isolated, migrated in-memory database that is closed
// when the test completes.
func SetupTestDB(t testing.TB) *storage.SQLite {
	t.Helper()

	db, err := storage.NewSQLite(storage.MemoryPath, SetupTestLogger(t))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	if _, err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// SetupTestKV starts a miniredis server and returns a store connected to it
func SetupTestKV(t testing.TB) (*kvstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	kv := kvstore.New(kvstore.Options{
		Addr:        mr.Addr(),
		PoolSize:    TestRedisPoolSize,
		DialTimeout: TestRedisDialTimeout,
	}, SetupTestLogger(t))
	t.Cleanup(func() { _ = kv.Close() })
	return kv, mr
}

// SetupTestResources returns a Set with every slot bound, ready to hand to
// routing modules.
func SetupTestResources(t testing.TB, overrides ...func(*config.Config)) (*resources.Set, *miniredis.Miniredis) {
	t.Helper()

	cfg := SetupTestConfig(t, overrides...)
	set := resources.NewSet(cfg, SetupTestLogger(t))
	kv, mr := SetupTestKV(t)

	if err := set.DBSlot.Bind(SetupTestDB(t)); err != nil {
		t.Fatalf("Failed to bind database: %v", err)
	}
	if err := set.KVSlot.Bind(kv); err != nil {
		t.Fatalf("Failed to bind kv: %v", err)
	}
	if err := set.SessionSlot.Bind(session.NewStore(kv, cfg.Session, TestSessionKey)); err != nil {
		t.Fatalf("Failed to bind sessions: %v", err)
	}
	return set, mr
}

// WaitForCondition polls condition every 10ms until it holds or timeout expires
func WaitForCondition(t testing.TB, condition func() bool, timeout time.Duration, description string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		<-ticker.C
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for condition: %s (timeout: %v)", description, timeout)
		}
	}
}
