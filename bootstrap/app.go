package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"newsportal/api"
	"newsportal/config"
	"newsportal/logging"
	"newsportal/metrics"
	"newsportal/modules"
	"newsportal/resources"
	"newsportal/session"
	"newsportal/storage"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const sessionKeySize = 32

// App is the assembled application handle. It is mutated only inside
// Assemble and is read-only once returned.
type App struct {
	Config *config.Config
	Logger *logging.Logger
	Sugar  *zap.SugaredLogger
	Router *mux.Router

	// DB is attached to the handle directly; the key-value store lives only
	// in Resources.
	DB        *storage.SQLite
	Sessions  *session.Store
	CSRF      *api.CSRF
	Resources *resources.Set
	Modules   *modules.Registry

	closeOnce sync.Once
	closeErr  error
}

// Option customizes Assemble.
type Option func(*options)

type options struct {
	modules    []modules.Module
	modulesSet bool
	loadOpts   []config.LoadOption
	overrides  []func(*config.Config)
}

// WithModules replaces the default routing modules.
func WithModules(mods ...modules.Module) Option {
	return func(o *options) {
		o.modules = mods
		o.modulesSet = true
	}
}

// WithConfigFile overlays an explicit YAML file on the named environment.
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.loadOpts = append(o.loadOpts, config.WithFile(path))
	}
}

// WithConfigSearchPaths sets the directories searched for config.<env>.yaml.
func WithConfigSearchPaths(paths ...string) Option {
	return func(o *options) {
		o.loadOpts = append(o.loadOpts, config.WithSearchPaths(paths...))
	}
}

// WithConfigOverride mutates the resolved configuration before any other step.
func WithConfigOverride(fn func(*config.Config)) Option {
	return func(o *options) {
		o.overrides = append(o.overrides, fn)
	}
}

// Assemble builds the application for the named environment. Steps run in a
// fixed order and the first failure aborts assembly, releasing everything
// bound so far; no partially assembled handle is ever returned.
func Assemble(ctx context.Context, name string, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !o.modulesSet {
		o.modules = modules.Default()
	}

	// Step 1: configuration
	start := time.Now()
	cfg, err := InitConfig(name, o.loadOpts, o.overrides)
	if err != nil {
		return nil, err
	}
	metrics.AssemblyStepDuration.WithLabelValues("config").Observe(time.Since(start).Seconds())

	// Step 2: logging, before anything else can log
	start = time.Now()
	logger, err := InitLogging(cfg)
	if err != nil {
		return nil, err
	}
	metrics.AssemblyStepDuration.WithLabelValues("logging").Observe(time.Since(start).Seconds())

	// Step 3: empty application handle
	app := &App{
		Config:    cfg,
		Logger:    logger,
		Sugar:     logger.Sugar,
		Router:    mux.NewRouter(),
		Resources: resources.NewSet(cfg, logger.Sugar),
	}
	app.Sugar.Infow("Assembly step", "step", 3, "name", "application")

	if err := app.assemble(ctx, o.modules); err != nil {
		app.Sugar.Errorw("Assembly failed", "environment", cfg.Name, "error", err)
		_ = app.Close()
		return nil, err
	}

	app.Sugar.Infow("Application assembled",
		"environment", cfg.Name,
		"modules", app.Modules.Names(),
		"routes", len(app.Routes()))
	return app, nil
}

func (a *App) assemble(ctx context.Context, mods []modules.Module) error {
	steps := []struct {
		n    int
		name string
		fn   func(context.Context) error
	}{
		{4, "database", a.bindDatabase},
		{5, "kv", a.bindKV},
		{6, "protections", a.attachProtections},
		{7, "modules", func(ctx context.Context) error { return a.registerModules(ctx, mods) }},
	}

	for _, s := range steps {
		start := time.Now()
		a.Sugar.Infow("Assembly step", "step", s.n, "name", s.name)
		err := s.fn(ctx)
		metrics.AssemblyStepDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *App) bindDatabase(ctx context.Context) error {
	db, err := InitDatabase(ctx, a.Config, a.Sugar)
	if err != nil {
		return err
	}
	a.DB = db
	if err := a.Resources.DBSlot.Bind(db); err != nil {
		return &ResourceBindingError{Resource: ResourceDatabase, Err: err}
	}
	return nil
}

func (a *App) bindKV(ctx context.Context) error {
	kv, err := InitKV(ctx, a.Config, a.Sugar)
	if err != nil {
		return err
	}
	if err := a.Resources.KVSlot.Bind(kv); err != nil {
		_ = kv.Close()
		return &ResourceBindingError{Resource: ResourceKV, Err: err}
	}
	return nil
}

func (a *App) attachProtections(_ context.Context) error {
	hashKey, err := a.Config.DeriveKey("session-hash", sessionKeySize)
	if err != nil {
		return err
	}
	blockKey, err := a.Config.DeriveKey("session-block", sessionKeySize)
	if err != nil {
		return err
	}

	a.Sessions = session.NewStore(a.Resources.KV(), a.Config.Session, hashKey, blockKey)
	if err := a.Resources.SessionSlot.Bind(a.Sessions); err != nil {
		return &ResourceBindingError{Resource: ResourceSessions, Err: err}
	}

	csrfKey, err := a.Config.DeriveKey("csrf", sessionKeySize)
	if err != nil {
		return err
	}
	a.CSRF = api.NewCSRF(a.Config.CSRF, csrfKey, a.Config.Session.Secure, a.Sugar)

	var limiter *api.RateLimiter
	if a.Config.RateLimit.Enabled {
		limiter, err = api.NewRateLimiter(a.Config.RateLimit, a.Sugar)
		if err != nil {
			return err
		}
	}
	api.Protect(a.Router, limiter, a.CSRF, a.Sugar)

	a.Sugar.Infow("Request protections attached",
		"csrf_enabled", a.Config.CSRF.Enabled,
		"rate_limit_enabled", a.Config.RateLimit.Enabled,
		"session_cookie", a.Config.Session.CookieName,
		"session_prefix", a.Config.Session.KeyPrefix)
	return nil
}

func (a *App) registerModules(ctx context.Context, mods []modules.Module) error {
	if err := a.Resources.Verify(); err != nil {
		return err
	}

	reg, err := modules.NewRegistry(mods...)
	if err != nil {
		return err
	}
	if err := reg.RegisterAll(a.Router, a.Resources); err != nil {
		return err
	}
	a.Modules = reg

	if err := a.DB.RecordBoot(ctx, a.Config.Name, reg.Names()); err != nil {
		return fmt.Errorf("failed to record boot: %w", err)
	}
	return nil
}

// Route describes one registered route.
type Route struct {
	Name    string
	Path    string
	Methods []string
}

func (r Route) String() string {
	methods := "ANY"
	if len(r.Methods) > 0 {
		methods = strings.Join(r.Methods, ",")
	}
	return fmt.Sprintf("%-12s %s", methods, r.Path)
}

// Routes lists registered routes sorted by path.
func (a *App) Routes() []Route {
	return ListRoutes(a.Router)
}

// ListRoutes walks router and returns its routes sorted by path.
func ListRoutes(router *mux.Router) []Route {
	var routes []Route
	_ = router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := route.GetMethods()
		routes = append(routes, Route{Name: route.GetName(), Path: path, Methods: methods})
		return nil
	})
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	return routes
}

// Close releases the key-value store, the database and the log sink. It is
// safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if kv := a.Resources.KV(); kv != nil {
			if err := kv.Close(); err != nil {
				errs = append(errs, fmt.Errorf("kv: %w", err))
			}
		}
		if a.DB != nil {
			if err := a.DB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database: %w", err))
			}
		}
		if a.Logger != nil {
			a.Sugar.Info("Shutdown complete")
			if err := a.Logger.Close(); err != nil {
				errs = append(errs, fmt.Errorf("log sink: %w", err))
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
