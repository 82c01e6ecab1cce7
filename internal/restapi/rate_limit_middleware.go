package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"tubeboard.app/internal/app"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/models"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleThreshold   = 10 * time.Minute
)

// rateLimitClient tracks the limiter and its last usage time so idle
// clients can be evicted without disturbing active ones.
type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // Unix nanoseconds
}

// RateLimitMiddleware limits requests per client. A client is its profile
// id when it sends one, otherwise its remote address.
type RateLimitMiddleware struct {
	limiters    map[string]*rateLimitClient
	mu          sync.RWMutex
	rateLimit   rate.Limit
	burstSize   int
	cleanupTick clock.Ticker
	stopChan    chan struct{}
	stopOnce    sync.Once
	clock       clock.Clock
}

// NewRateLimitMiddleware allows ratePerInterval requests per interval per
// client, with bursts of the same size. A rate of zero disables limiting.
func NewRateLimitMiddleware(ratePerInterval int, interval time.Duration, clk clock.Clock) *RateLimitMiddleware {
	rateLimit := rate.Inf
	if ratePerInterval > 0 {
		rateLimit = rate.Every(interval / time.Duration(ratePerInterval))
	}

	rl := &RateLimitMiddleware{
		limiters:    make(map[string]*rateLimitClient),
		rateLimit:   rateLimit,
		burstSize:   ratePerInterval,
		cleanupTick: clk.NewTicker(limiterCleanupInterval),
		stopChan:    make(chan struct{}),
		clock:       clk,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimitMiddleware) Handler() func(http.Handler) http.Handler {
	return rl.rateLimitHandler
}

// getLimiter returns the limiter for key, creating it on first use, and
// records the access.
func (rl *RateLimitMiddleware) getLimiter(key string) *rate.Limiter {
	now := rl.clock.Now().UnixNano()

	rl.mu.RLock()
	if client, exists := rl.limiters[key]; exists {
		client.lastSeen.Store(now)
		rl.mu.RUnlock()
		return client.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if client, exists := rl.limiters[key]; exists {
		client.lastSeen.Store(now)
		return client.limiter
	}

	client := &rateLimitClient{limiter: rate.NewLimiter(rl.rateLimit, rl.burstSize)}
	client.lastSeen.Store(now)
	rl.limiters[key] = client
	return client.limiter
}

func (rl *RateLimitMiddleware) rateLimitHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.rateLimit == rate.Inf {
			next.ServeHTTP(w, r)
			return
		}
		// Limiter tokens refill against the mock clock in tests.
		if !rl.getLimiter(app.ClientKey(r)).AllowN(rl.clock.Now(), 1) {
			rl.sendRateLimitExceeded(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) sendRateLimitExceeded(w http.ResponseWriter) {
	retryAfter := time.Second
	if rl.rateLimit > 0 && rl.rateLimit != rate.Inf {
		if d := time.Duration(float64(time.Second) / float64(rl.rateLimit)); d > retryAfter {
			retryAfter = d
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burstSize))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)

	response := models.NewResponse(http.StatusTooManyRequests, nil,
		"Rate limit exceeded. Please try again later.", rl.clock)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode rate limit response", "error", err)
	}
}

// cleanupOnce evicts clients idle for longer than limiterIdleThreshold.
func (rl *RateLimitMiddleware) cleanupOnce() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for key, client := range rl.limiters {
		lastSeen := client.lastSeen.Load()
		if lastSeen == 0 {
			continue
		}
		if now.Sub(time.Unix(0, lastSeen)) > limiterIdleThreshold {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimitMiddleware) clientCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

func (rl *RateLimitMiddleware) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C():
			rl.cleanupOnce()
		case <-rl.stopChan:
			return
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
		rl.cleanupTick.Stop()
	})
}
