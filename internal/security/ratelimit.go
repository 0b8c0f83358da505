package security

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrRateLimited is returned when a caller exceeds its request budget.
var ErrRateLimited = errors.New("security: rate limit exceeded")

// RateLimiter enforces a fixed-window request budget per key. The
// window resets wholesale when it expires; there is no sliding credit.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*requestWindow
	logger  *zap.Logger
}

type requestWindow struct {
	start time.Time
	count int
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock overrides the limiter's time source.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(rl *RateLimiter) { rl.now = now }
}

// NewRateLimiter allows limit requests per key in each window.
func NewRateLimiter(limit int, window time.Duration, logger *zap.Logger, opts ...RateLimiterOption) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*requestWindow),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Allow records one request for key and reports whether it fits the
// current window's budget.
func (rl *RateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.windows[key] = &requestWindow{start: now, count: 1}
		return nil
	}

	if w.count >= rl.limit {
		rl.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int("limit", rl.limit),
			zap.Duration("window", rl.window))
		return ErrRateLimited
	}
	w.count++
	return nil
}

// Remaining reports how many requests key has left in its current
// window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || rl.now().Sub(w.start) >= rl.window {
		return rl.limit
	}
	if w.count >= rl.limit {
		return 0
	}
	return rl.limit - w.count
}
