// Package tutorial drives page evaluation: it walks a page's declared
// tasks in order, validates them, and records completion.
package tutorial

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"labguide/internal/locale"
	"labguide/internal/state"
	"labguide/internal/tasks"
)

// Phase distinguishes tasks done once per tutorial from tasks repeated
// every session.
type Phase string

const (
	PhaseOnetime   Phase = "onetime"
	PhaseEverytime Phase = "everytime"
)

// TaskStatus is the evaluated state of one declared task.
type TaskStatus struct {
	Spec  locale.TaskSpec
	Slug  string
	Phase Phase
	// Manual is true when the task has no automated check and
	// completes by user confirmation.
	Manual bool
	Passed bool
	// Message is the resolved failure message for a pending automated
	// task.
	Message string
	// Response is the rendered success message, if the task declares
	// one.
	Response string
}

// PageReport is the result of evaluating a page. Tasks past the first
// incomplete one are not evaluated; the tutorial reveals steps one at
// a time.
type PageReport struct {
	Page      string
	Bundle    *locale.Bundle
	Tasks     []TaskStatus
	Completed int
	Total     int
}

// Done reports whether every declared task has passed.
func (r *PageReport) Done() bool { return r.Completed >= r.Total && r.Total > 0 }

// Engine evaluates tutorial pages against the progress store.
type Engine struct {
	loader   *locale.Loader
	store    state.Store
	runner   *tasks.Runner
	registry *tasks.Registry
	logger   *zap.Logger
}

// New wires an engine from its collaborators.
func New(loader *locale.Loader, store state.Store, runner *tasks.Runner, registry *tasks.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		loader:   loader,
		store:    store,
		runner:   runner,
		registry: registry,
		logger:   logger,
	}
}

// Slugify reduces a task name to a state-key-safe slug: lowercase,
// spaces to underscores, everything outside [a-z_] dropped.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ReplaceAll(strings.ToLower(name), " ", "_") {
		if (r >= 'a' && r <= 'z') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func manualKey(page, slug string) string {
	return fmt.Sprintf("%s_task_%s", page, slug)
}

// Evaluate loads the page bundle, walks its tasks in declared order,
// and persists the resulting progress. Every-time tasks only run once
// all one-time tasks have completed.
func (e *Engine) Evaluate(ctx context.Context, page string) (*PageReport, error) {
	bundle, err := e.loader.Load(page)
	if err != nil {
		return nil, err
	}

	report := &PageReport{
		Page:   page,
		Bundle: bundle,
		Total:  bundle.TaskCount(),
	}

	blocked := false
	for _, spec := range bundle.TasksOnetime {
		status := e.evalTask(ctx, page, bundle, spec, PhaseOnetime)
		report.Tasks = append(report.Tasks, status)
		if !status.Passed {
			blocked = true
			break
		}
		report.Completed++
	}

	if !blocked && report.Completed == len(bundle.TasksOnetime) {
		for _, spec := range bundle.TasksEverytime {
			status := e.evalTask(ctx, page, bundle, spec, PhaseEverytime)
			report.Tasks = append(report.Tasks, status)
			if !status.Passed {
				break
			}
			report.Completed++
		}
	}

	if err := state.SetPageProgress(e.store, page, report.Completed, report.Total); err != nil {
		return nil, err
	}
	if err := e.store.Save(); err != nil {
		return nil, err
	}

	e.logger.Debug("page evaluated",
		zap.String("page", page),
		zap.Int("completed", report.Completed),
		zap.Int("total", report.Total))
	return report, nil
}

func (e *Engine) evalTask(ctx context.Context, page string, bundle *locale.Bundle, spec locale.TaskSpec, phase Phase) TaskStatus {
	status := TaskStatus{
		Spec:  spec,
		Slug:  Slugify(spec.Name),
		Phase: phase,
	}

	var payload any
	if spec.Test != "" {
		check, ok := e.registry.Lookup(spec.Test)
		if !ok {
			status.Message = fmt.Sprintf("unknown check %q", spec.Test)
			return status
		}
		result := e.runner.Run(ctx, check)
		if !result.Passed {
			status.Message = bundle.Message(result.Message)
			return status
		}
		status.Passed = true
		payload = result.Payload
	} else {
		status.Manual = true
		if !e.manualDone(page, status.Slug) {
			return status
		}
		status.Passed = true
	}

	if spec.Response != "" {
		status.Response = renderResponse(spec.Response, payload)
	}
	return status
}

// manualDone reports whether the user has confirmed a manual task.
func (e *Engine) manualDone(page, slug string) bool {
	v, ok := e.store.Lookup(manualKey(page, slug))
	if !ok {
		return false
	}
	done, ok := v.(bool)
	return ok && done
}

// MarkDone confirms a manual task and persists it.
func (e *Engine) MarkDone(page, taskName string) error {
	e.store.Ensure(manualKey(page, Slugify(taskName)), true)
	return e.store.Save()
}

// ResetPage clears a page's recorded progress, its manual
// confirmations, and any cached check results for its tasks.
func (e *Engine) ResetPage(page string) error {
	bundle, err := e.loader.Load(page)
	if err != nil {
		return err
	}

	e.store.Delete(page + "_completed")
	e.store.Delete(page + "_total")
	for _, spec := range append(bundle.TasksOnetime, bundle.TasksEverytime...) {
		e.store.Delete(manualKey(page, Slugify(spec.Name)))
		if spec.Test != "" {
			e.runner.Invalidate(spec.Test)
		}
	}
	return e.store.Save()
}

// renderResponse expands a success message template against the check
// payload. A malformed template degrades to the raw text.
func renderResponse(tmpl string, payload any) string {
	t, err := template.New("response").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any{"Result": payload}); err != nil {
		return tmpl
	}
	return buf.String()
}
