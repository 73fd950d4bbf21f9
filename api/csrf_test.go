package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"newsportal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testCSRFConfig() config.CSRF {
	return config.CSRF{
		Enabled:    true,
		CookieName: "csrf_token",
		HeaderName: "X-CSRFToken",
		FieldName:  "csrf_token",
		TimeLimit:  time.Hour,
	}
}

func newTestCSRF(t *testing.T) *CSRF {
	t.Helper()
	return NewCSRF(testCSRFConfig(), []byte("0123456789abcdef0123456789abcdef"), false, zaptest.NewLogger(t).Sugar())
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Token-Seen", CSRFToken(r))
		w.WriteHeader(http.StatusOK)
	})
}

func issueCookie(t *testing.T, c *CSRF) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "csrf_token" {
			return ck
		}
	}
	t.Fatal("csrf cookie not issued")
	return nil
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestCSRF_SafeMethodIssuesToken(t *testing.T) {
	c := newTestCSRF(t)
	ck := issueCookie(t, c)

	assert.NoError(t, c.verify(ck.Value))
	assert.False(t, ck.HttpOnly)

	// An existing valid cookie is reused rather than rotated
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/", nil)
	req.AddCookie(ck)
	c.Middleware(okHandler()).ServeHTTP(rec, req)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, ck.Value, rec.Header().Get("X-Token-Seen"))
}

func TestCSRF_UnsafeMethodWithHeader(t *testing.T) {
	c := newTestCSRF(t)
	ck := issueCookie(t, c)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(ck)
	req.Header.Set("X-CSRFToken", ck.Value)
	rec := httptest.NewRecorder()
	c.Middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRF_UnsafeMethodWithFormField(t *testing.T) {
	c := newTestCSRF(t)
	ck := issueCookie(t, c)

	form := url.Values{"csrf_token": {ck.Value}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	c.Middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRF_Rejections(t *testing.T) {
	c := newTestCSRF(t)
	valid := issueCookie(t, c)
	other := issueCookie(t, c)

	tests := []struct {
		name    string
		cookie  *http.Cookie
		header  string
		message string
	}{
		{"no cookie", nil, valid.Value, csrfMissing},
		{"no submitted token", valid, "", csrfMissing},
		{"forged token", valid, "not-a-token", csrfInvalid},
		{"tampered signature", valid, valid.Value[:len(valid.Value)-2] + "xx", csrfInvalid},
		{"mismatched tokens", valid, other.Value, csrfMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			if tt.header != "" {
				req.Header.Set("X-CSRFToken", tt.header)
			}
			rec := httptest.NewRecorder()
			c.Middleware(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, errorBody(t, rec))
		})
	}
}

func TestCSRF_ExpiredToken(t *testing.T) {
	c := newTestCSRF(t)
	issuedAt := time.Now().Add(-2 * time.Hour)
	c.now = func() time.Time { return issuedAt }
	token, err := c.issue()
	require.NoError(t, err)
	c.now = time.Now

	req := httptest.NewRequest(http.MethodPut, "/", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: token})
	req.Header.Set("X-CSRFToken", token)
	rec := httptest.NewRecorder()
	c.Middleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, csrfExpired, errorBody(t, rec))
}

func TestCSRF_OtherKeyRejected(t *testing.T) {
	c := newTestCSRF(t)
	foreign := NewCSRF(testCSRFConfig(), []byte("another-key-another-key-another-"), false, zaptest.NewLogger(t).Sugar())
	token, err := foreign.issue()
	require.NoError(t, err)

	assert.ErrorIs(t, c.verify(token), errTokenSignature)
	assert.ErrorIs(t, c.verify("a.b"), errTokenMalformed)
	assert.ErrorIs(t, c.verify(strings.Repeat("z", 64)+"."+strconv.Itoa(1)+".sig"), errTokenMalformed)
}

func TestCSRF_DisabledPassesThrough(t *testing.T) {
	cfg := testCSRFConfig()
	cfg.Enabled = false
	c := NewCSRF(cfg, []byte("k"), false, zaptest.NewLogger(t).Sugar())

	rec := httptest.NewRecorder()
	c.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Token-Seen"))
	assert.Empty(t, rec.Result().Cookies())
}
