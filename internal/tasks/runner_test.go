package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func countingCheck(name string, calls *atomic.Int32, result func() (any, error)) Check {
	return CheckFunc(name, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return result()
	})
}

func TestRunCachesPassingResult(t *testing.T) {
	r := NewRunner(nil)
	var calls atomic.Int32
	check := countingCheck("x", &calls, func() (any, error) { return "payload", nil })

	first := r.Run(context.Background(), check)
	second := r.Run(context.Background(), check)

	assert.True(t, first.Passed)
	assert.Equal(t, "payload", first.Payload)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load(), "passing check must run at most once")
}

func TestRunRetriesFailures(t *testing.T) {
	r := NewRunner(nil)
	var calls atomic.Int32
	check := countingCheck("flaky", &calls, func() (any, error) {
		if calls.Load() == 1 {
			return nil, Failf("info_wait_for_project")
		}
		return nil, nil
	})

	first := r.Run(context.Background(), check)
	require.False(t, first.Passed)
	assert.Equal(t, "info_wait_for_project", first.Message)

	// Failures are not cached: the user fixes the environment and the
	// next render re-runs the check.
	second := r.Run(context.Background(), check)
	assert.True(t, second.Passed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidateForcesReRun(t *testing.T) {
	r := NewRunner(nil)
	var calls atomic.Int32
	check := countingCheck("x", &calls, func() (any, error) { return nil, nil })

	r.Run(context.Background(), check)
	r.Invalidate("x")
	r.Run(context.Background(), check)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResetClearsAll(t *testing.T) {
	r := NewRunner(nil)
	var calls atomic.Int32
	a := countingCheck("a", &calls, func() (any, error) { return nil, nil })
	b := countingCheck("b", &calls, func() (any, error) { return nil, nil })

	r.Run(context.Background(), a)
	r.Run(context.Background(), b)
	r.Reset()
	_, ok := r.Cached("a")
	assert.False(t, ok)
	r.Run(context.Background(), a)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNonFailureErrorReportedVerbatim(t *testing.T) {
	r := NewRunner(nil)
	check := CheckFunc("boom", func(ctx context.Context) (any, error) {
		return nil, errors.New("connection refused")
	})
	res := r.Run(context.Background(), check)
	assert.False(t, res.Passed)
	assert.Equal(t, "connection refused", res.Message)
}

func TestPanicBecomesFailure(t *testing.T) {
	r := NewRunner(nil)
	check := CheckFunc("panics", func(ctx context.Context) (any, error) {
		panic("nil map write")
	})
	res := r.Run(context.Background(), check)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "panicked")
}

func TestConcurrentRunsCollapse(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRunner(nil)
	var calls atomic.Int32
	release := make(chan struct{})
	check := CheckFunc("slow", func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.Run(context.Background(), check)
			assert.True(t, res.Passed)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent callers share one execution")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(CheckFunc("b_check", func(ctx context.Context) (any, error) { return nil, nil }))
	reg.Register(CheckFunc("a_check", func(ctx context.Context) (any, error) { return nil, nil }))

	_, ok := reg.Lookup("a_check")
	assert.True(t, ok)
	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a_check", "b_check"}, reg.Names())
}
