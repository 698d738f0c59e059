package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"pricecollector/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter allows each client IP a fixed number of requests per window.
type RateLimiter struct {
	name     string
	limiters map[string]*clientLimiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
	message  string
	logger   *zap.Logger
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter spreads cfg.Requests over cfg.Window, allowing the full window's
// worth as a burst.
func NewRateLimiter(name string, cfg config.RateLimitConfig, message string, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		name:     name,
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		burst:    cfg.Requests,
		idle:     cfg.Window,
		message:  message,
		logger:   logger,
	}
}

// getLimiter returns the limiter for the given client key
func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, exists := rl.limiters[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Handler returns the rate limiting middleware handler
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)

		if !rl.getLimiter(key, time.Now()).Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("limiter", rl.name),
				zap.String("client", key),
				zap.String("path", r.URL.Path),
			)
			writeError(w, http.StatusTooManyRequests, rl.message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup drops limiters that have been idle for longer than a full window.
func (rl *RateLimiter) Cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > rl.idle {
			delete(rl.limiters, key)
		}
	}
}

// clients reports how many client limiters are tracked.
func (rl *RateLimiter) clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
