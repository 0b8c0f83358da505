package tasks

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Runner executes checks with per-name result caching.
//
// The cache is in-memory only; it does not survive a process restart,
// so checks with side effects must be idempotent.
type Runner struct {
	mu      sync.RWMutex
	results map[string]Result

	group  singleflight.Group
	logger *zap.Logger
}

// NewRunner creates an empty runner.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		results: make(map[string]Result),
		logger:  logger,
	}
}

// Run executes the check unless a passing result is already cached.
// Concurrent calls for the same name collapse into one execution.
func (r *Runner) Run(ctx context.Context, check Check) Result {
	name := check.Name()

	r.mu.RLock()
	cached, ok := r.results[name]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	v, _, _ := r.group.Do(name, func() (any, error) {
		// Re-check under the flight: a racing call may have already
		// stored a pass.
		r.mu.RLock()
		cached, ok := r.results[name]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		res := resultOf(ctx, check)
		if res.Passed {
			r.mu.Lock()
			r.results[name] = res
			r.mu.Unlock()
			r.logger.Debug("check passed", zap.String("check", name))
		} else {
			r.logger.Debug("check failed",
				zap.String("check", name),
				zap.String("message", res.Message))
		}
		return res, nil
	})

	return v.(Result)
}

// Invalidate drops the cached result for name so the next Run
// re-executes the check. Used when the user explicitly re-validates.
func (r *Runner) Invalidate(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.results, name)
}

// Reset drops every cached result.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = make(map[string]Result)
}

// Cached returns the cached result for name, if any.
func (r *Runner) Cached(name string) (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[name]
	return res, ok
}
