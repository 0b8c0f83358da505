// Package tasks runs named validation checks for tutorial steps.
//
// Checks are expensive (most hit the workbench query service), so the
// runner caches passing results per check name for the lifetime of the
// session. Failures are re-evaluated on the next call: the user is
// expected to fix something and try again.
package tasks

import (
	"context"
	"fmt"
)

// Result is the uniform outcome of one validation run.
type Result struct {
	// Passed reports whether the check succeeded.
	Passed bool
	// Message carries the failure message, usually a localization
	// key resolved against the page bundle.
	Message string
	// Payload is the value produced by a passing check, available to
	// response templates.
	Payload any
}

// Failure is the expected way for a check to not pass. Its key is
// resolved through the page's message bundle before display. A
// Failure is ordinary tutorial flow, not a system error.
type Failure struct {
	Key string
}

func (f *Failure) Error() string { return f.Key }

// Failf creates a Failure from a message key.
func Failf(key string) error { return &Failure{Key: key} }

// Check validates a single tutorial step.
type Check interface {
	// Name identifies the check; cache entries are keyed by it.
	Name() string
	// Run performs the validation, returning an optional payload.
	// A *Failure error is an expected miss; any other error is
	// reported as-is.
	Run(ctx context.Context) (any, error)
}

type funcCheck struct {
	name string
	fn   func(ctx context.Context) (any, error)
}

func (c *funcCheck) Name() string { return c.name }

func (c *funcCheck) Run(ctx context.Context) (any, error) { return c.fn(ctx) }

// CheckFunc wraps a plain function as a named Check.
func CheckFunc(name string, fn func(ctx context.Context) (any, error)) Check {
	return &funcCheck{name: name, fn: fn}
}

// resultOf converts a check's return into a Result. Panics inside a
// check must not take the session down, so they surface as failures.
func resultOf(ctx context.Context, check Check) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Passed: false, Message: fmt.Sprintf("check %s panicked: %v", check.Name(), r)}
		}
	}()

	payload, err := check.Run(ctx)
	if err != nil {
		return Result{Passed: false, Message: err.Error()}
	}
	return Result{Passed: true, Payload: payload}
}
