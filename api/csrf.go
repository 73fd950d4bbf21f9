package api

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsportal/config"
	"newsportal/metrics"

	"go.uber.org/zap"
)

// Rejection messages returned to clients
const (
	csrfMissing  = "The CSRF token is missing."
	csrfExpired  = "The CSRF token has expired."
	csrfInvalid  = "The CSRF token is invalid."
	csrfMismatch = "The CSRF tokens do not match."
)

var (
	errTokenMalformed = errors.New("malformed token")
	errTokenExpired   = errors.New("token expired")
	errTokenSignature = errors.New("bad signature")
)

// CSRF implements double-submit cookie protection. Tokens are
// "<nonce>.<issued-unix>.<signature>" where the signature is an HMAC-SHA256 of
// the first two fields.
type CSRF struct {
	cfg    config.CSRF
	key    []byte
	secure bool
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewCSRF returns the protection layer. key signs tokens; secure marks the
// token cookie Secure.
func NewCSRF(cfg config.CSRF, key []byte, secure bool, logger *zap.SugaredLogger) *CSRF {
	return &CSRF{
		cfg:    cfg,
		key:    key,
		secure: secure,
		logger: logger,
		now:    time.Now,
	}
}

// Middleware validates unsafe requests and issues a token cookie on safe ones
func (c *CSRF) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if isSafeMethod(r.Method) {
			token := ""
			if cookie, err := r.Cookie(c.cfg.CookieName); err == nil && c.verify(cookie.Value) == nil {
				token = cookie.Value
			} else {
				token, err = c.issue()
				if err != nil {
					WriteError(w, http.StatusInternalServerError, "Internal server error", err, c.logger)
					return
				}
				c.setCookie(w, token)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextKeyCSRFToken, token)))
			return
		}

		requestID := GetRequestIDOrDefault(r.Context())

		cookie, err := r.Cookie(c.cfg.CookieName)
		if err != nil || cookie.Value == "" {
			c.logger.Warnw("CSRF rejected: cookie missing",
				"method", r.Method, "path", r.URL.Path, "request_id", requestID)
			c.reject(w, "cookie_missing", csrfMissing)
			return
		}

		submitted := r.Header.Get(c.cfg.HeaderName)
		if submitted == "" {
			submitted = r.PostFormValue(c.cfg.FieldName)
		}
		if submitted == "" {
			c.logger.Warnw("CSRF rejected: token not submitted",
				"method", r.Method, "path", r.URL.Path, "request_id", requestID)
			c.reject(w, "token_missing", csrfMissing)
			return
		}

		if err := c.verify(submitted); err != nil {
			c.logger.Warnw("CSRF rejected: token failed verification",
				"error", err, "method", r.Method, "path", r.URL.Path, "request_id", requestID)
			if errors.Is(err, errTokenExpired) {
				c.reject(w, "expired", csrfExpired)
			} else {
				c.reject(w, "invalid", csrfInvalid)
			}
			return
		}

		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(submitted)) != 1 {
			c.logger.Warnw("CSRF rejected: token mismatch",
				"method", r.Method, "path", r.URL.Path, "request_id", requestID)
			c.reject(w, "mismatch", csrfMismatch)
			return
		}

		c.logger.Debugw("CSRF validated", "method", r.Method, "path", r.URL.Path, "request_id", requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextKeyCSRFToken, submitted)))
	})
}

// CSRFToken returns the token bound to the request, or "" when protection is off
func CSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(ContextKeyCSRFToken).(string)
	return token
}

func (c *CSRF) issue() (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	payload := hex.EncodeToString(nonce) + "." + strconv.FormatInt(c.now().Unix(), 10)
	return payload + "." + c.sign(payload), nil
}

func (c *CSRF) verify(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || len(parts[0]) != 64 {
		return errTokenMalformed
	}
	if _, err := hex.DecodeString(parts[0]); err != nil {
		return errTokenMalformed
	}
	issued, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return errTokenMalformed
	}

	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(c.sign(payload)), []byte(parts[2])) {
		return errTokenSignature
	}
	if c.now().Sub(time.Unix(issued, 0)) > c.cfg.TimeLimit {
		return errTokenExpired
	}
	return nil
}

func (c *CSRF) sign(payload string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *CSRF) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.cfg.TimeLimit / time.Second),
		Secure:   c.secure,
		HttpOnly: false, // scripts copy it into the request header
		SameSite: http.SameSiteStrictMode,
	})
}

func (c *CSRF) reject(w http.ResponseWriter, reason, message string) {
	metrics.CSRFRejections.WithLabelValues(reason).Inc()
	WriteJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
