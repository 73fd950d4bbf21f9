package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"newsportal/config"
	"newsportal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter applies a token bucket per client address. The set of tracked
// clients is bounded; the least recently seen client is evicted first.
type RateLimiter struct {
	cfg      config.RateLimit
	limiters *lru.Cache[string, *rate.Limiter]
	logger   *zap.SugaredLogger
}

// NewRateLimiter creates a limiter allowing cfg.Requests per cfg.Window per client
func NewRateLimiter(cfg config.RateLimit, logger *zap.SugaredLogger) (*RateLimiter, error) {
	cache, err := lru.New[string, *rate.Limiter](cfg.MaxClients)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter cache: %w", err)
	}
	return &RateLimiter{cfg: cfg, limiters: cache, logger: logger}, nil
}

// Allow reports whether one more request from key fits its bucket
func (rl *RateLimiter) Allow(key string) bool {
	limiter, ok := rl.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(rl.cfg.Requests)/rl.cfg.Window.Seconds()), rl.cfg.Burst)
		// Another request may have added the key meanwhile; keep whichever is stored
		if prev, found, _ := rl.limiters.PeekOrAdd(key, limiter); found {
			limiter = prev
		}
	}
	return limiter.Allow()
}

// Tracked returns the number of client buckets held
func (rl *RateLimiter) Tracked() int {
	return rl.limiters.Len()
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			metrics.RateLimited.Inc()
			rl.logger.Warnw("Request rate limited",
				"client", ip,
				"path", r.URL.Path,
				"request_id", GetRequestIDOrDefault(r.Context()))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Requests))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.cfg.Window/time.Second)))
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP uses the connection peer address; forwarded headers are not trusted
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
