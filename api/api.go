// Package api holds the cross-cutting request protections attached to the
// application router: CSRF validation, per-client rate limiting, panic
// recovery, request ids and the JSON response helpers shared by routing
// modules.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Protect installs the request filters on router, outermost first. A nil
// limiter or csrf skips that filter.
//
// mux runs Use middleware only for matched routes, so the JSON 404 and 405
// handlers are wrapped in the same outer filters explicitly.
func Protect(router *mux.Router, limiter *RateLimiter, csrf *CSRF, logger *zap.SugaredLogger) {
	outer := []mux.MiddlewareFunc{RequestID(logger), Recovery(logger), SecurityHeaders}
	if limiter != nil {
		outer = append(outer, limiter.Middleware)
	}

	for _, mw := range outer {
		router.Use(mw)
	}
	if csrf != nil {
		router.Use(csrf.Middleware)
	}

	router.NotFoundHandler = chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	}), outer)
	router.MethodNotAllowedHandler = chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	}), outer)
}

// chain wraps h so that middlewares[0] runs first.
func chain(h http.Handler, middlewares []mux.MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
