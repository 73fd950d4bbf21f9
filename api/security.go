package api

import (
	"fmt"
	"net/http"
	"runtime"

	"newsportal/metrics"

	"go.uber.org/zap"
)

// Recovery turns handler panics into a 500 response and logs the stack
func Recovery(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					stack := make([]byte, 4096)
					stack = stack[:runtime.Stack(stack, false)]

					logger.Errorw("PANIC RECOVERED",
						"error", fmt.Sprintf("%v", err),
						"request_id", GetRequestIDOrDefault(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"stack_trace", string(stack),
					)
					metrics.PanicsRecovered.Inc()

					WriteError(w, http.StatusInternalServerError, "Internal server error", fmt.Errorf("panic: %v", err), logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets conservative response headers for JSON endpoints
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
