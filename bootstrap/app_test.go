package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"newsportal/config"
	"newsportal/logging"
	"newsportal/modules"
	"newsportal/modules/index"
	"newsportal/resources"
	testinghelpers "newsportal/testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mr      *miniredis.Miniredis
	logPath string
	opts    []Option
}

func newFixture(t *testing.T, overrides ...func(*config.Config)) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	f := &fixture{mr: mr, logPath: filepath.Join(t.TempDir(), "log")}
	f.opts = []Option{
		WithConfigSearchPaths(t.TempDir()),
		WithConfigOverride(func(c *config.Config) {
			c.Log.Path = f.logPath
			c.Redis.Host = mr.Host()
			c.Redis.Port = port
			c.Redis.DialTimeout = testinghelpers.TestRedisDialTimeout
		}),
	}
	for _, o := range overrides {
		f.opts = append(f.opts, WithConfigOverride(o))
	}
	return f
}

func (f *fixture) assemble(t *testing.T, name string, extra ...Option) (*App, error) {
	t.Helper()
	return Assemble(context.Background(), name, append(append([]Option{}, f.opts...), extra...)...)
}

func mustAssemble(t *testing.T, f *fixture, extra ...Option) *App {
	t.Helper()
	app, err := f.assemble(t, config.Testing, extra...)
	require.NoError(t, err)
	require.NotNil(t, app)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func readLog(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func lineIndex(lines []string, parts ...string) int {
	for i, line := range lines {
		match := true
		for _, p := range parts {
			if !strings.Contains(line, p) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func TestAssemble_EveryEnvironmentBindsHandles(t *testing.T) {
	for _, name := range config.Names() {
		t.Run(name, func(t *testing.T) {
			t.Setenv("NEWSPORTAL_SECRET_KEY", "an-environment-secret-of-enough-length")
			dbPath := filepath.Join(t.TempDir(), "portal.db")
			f := newFixture(t, func(c *config.Config) {
				c.Database.Path = dbPath
			})

			app, err := f.assemble(t, name)
			require.NoError(t, err)
			defer app.Close()

			assert.Equal(t, name, app.Config.Name)
			assert.NotNil(t, app.DB)
			assert.NotNil(t, app.Resources.Database())
			assert.NotNil(t, app.Resources.KV())
			assert.NotNil(t, app.Resources.Sessions())
			assert.NoError(t, app.Resources.Verify())
		})
	}
}

func TestAssemble_UnknownEnvironment(t *testing.T) {
	f := newFixture(t)

	app, err := f.assemble(t, "staging")
	assert.Nil(t, app)

	var nf *config.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "staging", nf.Name)

	_, statErr := os.Stat(f.logPath)
	assert.True(t, os.IsNotExist(statErr), "nothing is logged before configuration resolves")
}

func TestAssemble_LoggingPrecedesEveryStep(t *testing.T) {
	f := newFixture(t)
	app := mustAssemble(t, f)
	require.NoError(t, app.Close())

	lines := readLog(t, f.logPath)
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "INFO logging/logging.go:"), lines[0])
	assert.Contains(t, lines[0], "Logging initialized")

	prev := 0
	for _, step := range []string{"application", "database", "kv", "protections", "modules"} {
		idx := lineIndex(lines, "Assembly step", `"`+step+`"`)
		require.NotEqual(t, -1, idx, "missing step %s", step)
		assert.Greater(t, idx, prev, "step %s logged out of order", step)
		prev = idx
	}

	assert.Greater(t, lineIndex(lines, "Routing module registered", `"index"`), lineIndex(lines, "Redis initialized successfully"))
	assert.Greater(t, lineIndex(lines, "Application assembled"), prev)
}

func TestAssemble_RequestThroughIndexRoute(t *testing.T) {
	f := newFixture(t)
	app := mustAssemble(t, f)
	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/kv/headline", strings.NewReader(`{"value":"bootstrapped"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	v, err := f.mr.Get("kv:headline")
	require.NoError(t, err)
	assert.Equal(t, "bootstrapped", v)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/kv/headline", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bootstrapped")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	views, err := f.mr.Get(index.ViewsKey)
	require.NoError(t, err)
	assert.Equal(t, "1", views)

	sessionKeys := f.mr.Keys()
	assert.True(t, lineIndex(sessionKeys, app.Config.Session.KeyPrefix) >= 0, "session record stored under its prefix: %v", sessionKeys)
}

func TestAssemble_ModulesCaptureBoundStore(t *testing.T) {
	f := newFixture(t)
	idx := index.New()

	app := mustAssemble(t, f, WithModules(idx))

	require.NotNil(t, idx.Store())
	assert.Same(t, app.Resources.KV(), idx.Store())
	assert.Equal(t, []string{"index"}, app.Modules.Names())
}

func TestAssemble_UnreachableKV(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	app, err := f.assemble(t, config.Testing)
	assert.Nil(t, app)

	var rbe *ResourceBindingError
	require.True(t, errors.As(err, &rbe))
	assert.Equal(t, ResourceKV, rbe.Resource)
	assert.True(t, errors.Is(err, ErrResourceBinding))

	lines := readLog(t, f.logPath)
	assert.NotEqual(t, -1, lineIndex(lines, "ERROR", "Assembly failed"))
	assert.Equal(t, -1, lineIndex(lines, "Routing module registered"), "no module may register after a failed bind")
}

func TestAssemble_DatabaseFailure(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Database.Path = "../outside.db"
	})

	app, err := f.assemble(t, config.Testing)
	assert.Nil(t, app)

	var rbe *ResourceBindingError
	require.True(t, errors.As(err, &rbe))
	assert.Equal(t, ResourceDatabase, rbe.Resource)
}

func TestAssemble_LogSinkUnavailable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent", "log")
	f := newFixture(t)
	f.opts = append(f.opts, WithConfigOverride(func(c *config.Config) { c.Log.Path = missing }))

	app, err := f.assemble(t, config.Testing)
	assert.Nil(t, app)
	assert.True(t, errors.Is(err, logging.ErrSinkUnavailable))

	_, statErr := os.Stat(filepath.Dir(missing))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAssemble_DuplicateModules(t *testing.T) {
	f := newFixture(t)

	app, err := f.assemble(t, config.Testing, WithModules(index.New(), index.New()))
	assert.Nil(t, app)
	assert.True(t, errors.Is(err, modules.ErrDuplicateModule))
}

func TestAssemble_InvalidOverride(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Log.Level = "loud" })

	app, err := f.assemble(t, config.Testing)
	assert.Nil(t, app)
	assert.Error(t, err)
}

func TestAssemble_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  key_prefix: \"sess:\"\n"), 0o644))

	f := newFixture(t)
	app := mustAssemble(t, f, WithConfigFile(path))
	assert.Equal(t, "sess:", app.Config.Session.KeyPrefix)
}

func TestAssemble_RecordsBoot(t *testing.T) {
	f := newFixture(t)
	app := mustAssemble(t, f)

	boots, err := app.DB.LastBoots(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, boots, 1)
	assert.Equal(t, config.Testing, boots[0].Environment)
	assert.Equal(t, []string{"index", "health", "metrics"}, boots[0].Modules)
}

func TestAssemble_CSRFEnforcedWhenEnabled(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.CSRF.Enabled = true })
	app := mustAssemble(t, f)
	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/kv/k", strings.NewReader(`{"value":"v"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.CSRFToken)

	req := httptest.NewRequest(http.MethodPost, "/api/kv/k", strings.NewReader(`{"value":"v"}`))
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	req.Header.Set(app.Config.CSRF.HeaderName, body.CSRFToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// Registering a module before the key-value slot is bound leaves the module
// with an empty handle for good. Assembly prevents this by binding in step 5
// and verifying every slot before step 7.
func TestRegisteringBeforeBinding_CapturesEmptyStore(t *testing.T) {
	set := resources.NewSet(testinghelpers.SetupTestConfig(t), testinghelpers.SetupTestLogger(t))
	require.NoError(t, set.DBSlot.Bind(testinghelpers.SetupTestDB(t)))

	var lb *resources.LateBindingError
	require.True(t, errors.As(set.Verify(), &lb))
	assert.Equal(t, "kv", lb.Slot)

	// Step 7 run ahead of step 5
	idx := index.New()
	router := mux.NewRouter()
	require.NoError(t, idx.Register(router, set))

	kv, _ := testinghelpers.SetupTestKV(t)
	require.NoError(t, set.KVSlot.Bind(kv))

	assert.Nil(t, idx.Store(), "the module keeps the empty handle it read")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestApp_Routes(t *testing.T) {
	app := mustAssemble(t, newFixture(t))

	var paths []string
	for _, r := range app.Routes() {
		paths = append(paths, r.Path)
	}
	assert.Contains(t, paths, "/")
	assert.Contains(t, paths, "/api/kv/{key}")
	assert.Contains(t, paths, "/health")
	assert.Contains(t, paths, "/metrics")
}

func TestApp_ServeListener(t *testing.T) {
	app := mustAssemble(t, newFixture(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testinghelpers.TestMediumTimeout):
		t.Fatal("server did not shut down after cancellation")
	}
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	app := mustAssemble(t, newFixture(t))

	require.NoError(t, app.Close())
	assert.NoError(t, app.Close())
}

func TestAssemble_RateLimitWhenEnabled(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.Requests = 1
		c.RateLimit.Burst = 2
	})
	app := mustAssemble(t, f)
	h := app.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
