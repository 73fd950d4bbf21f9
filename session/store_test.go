package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsportal/config"
	"newsportal/kvstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	kv := kvstore.New(kvstore.Options{Addr: mr.Addr(), PoolSize: 2, DialTimeout: time.Second}, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = kv.Close() })

	cfg := config.Session{CookieName: "session", KeyPrefix: "session:", MaxAge: 3600, HTTPOnly: true}
	return NewStore(kv, cfg, []byte("0123456789abcdef0123456789abcdef")), mr
}

func cookieFrom(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestStore_RoundTrip(t *testing.T) {
	store, mr := newTestStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.Get(req, "session")
	require.NoError(t, err)
	assert.True(t, sess.IsNew)

	sess.Values["visits"] = 3
	sess.Values["user"] = "ada"
	rec := httptest.NewRecorder()
	require.NoError(t, sess.Save(req, rec))

	c := cookieFrom(t, rec, "session")
	assert.True(t, c.HttpOnly)
	assert.NotContains(t, c.Value, "ada", "values stay server side")

	key := store.RecordKey(sess.ID)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(c)
	loaded, err := store.Get(req2, "session")
	require.NoError(t, err)
	assert.False(t, loaded.IsNew)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, int64(3), loaded.Values["visits"])
	assert.Equal(t, "ada", loaded.Values["user"])
}

func TestStore_ExpiredRecordStartsNewSession(t *testing.T) {
	store, mr := newTestStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.New(req, "session")
	require.NoError(t, err)
	sess.Values["k"] = "v"
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(req, rec, sess))

	mr.FastForward(2 * time.Hour)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookieFrom(t, rec, "session"))
	loaded, err := store.New(req2, "session")
	require.NoError(t, err)
	assert.True(t, loaded.IsNew)
	assert.Empty(t, loaded.Values)
}

func TestStore_NegativeMaxAgeDeletes(t *testing.T) {
	store, mr := newTestStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.New(req, "session")
	require.NoError(t, err)
	require.NoError(t, store.Save(req, httptest.NewRecorder(), sess))
	key := store.RecordKey(sess.ID)
	require.True(t, mr.Exists(key))

	sess.Options.MaxAge = -1
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(req, rec, sess))

	assert.False(t, mr.Exists(key))
	assert.True(t, cookieFrom(t, rec, "session").MaxAge < 0)
}

func TestStore_TamperedCookie(t *testing.T) {
	store, _ := newTestStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "forged"})

	sess, err := store.New(req, "session")
	assert.Error(t, err)
	assert.True(t, sess.IsNew)
	assert.Empty(t, sess.ID)
}

func TestStore_RejectsNonStringKeys(t *testing.T) {
	store, _ := newTestStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.New(req, "session")
	require.NoError(t, err)
	sess.Values[42] = "answer"

	err = store.Save(req, httptest.NewRecorder(), sess)
	assert.True(t, errors.Is(err, ErrNonStringKey))
}

func TestStore_OptionsCopiedPerSession(t *testing.T) {
	store, _ := newTestStore(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.New(req, "session")
	require.NoError(t, err)
	sess.Options.MaxAge = 10

	assert.Equal(t, 3600, store.Options.MaxAge)
}
