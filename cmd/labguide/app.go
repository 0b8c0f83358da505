package main

import (
	"labguide/internal/locale"
	"labguide/internal/security"
	"labguide/internal/sidebar"
	"labguide/internal/state"
	"labguide/internal/tasks"
	"labguide/internal/tutorial"
	"labguide/internal/workbench"
)

// app bundles the wired-up collaborators every subcommand needs.
type app struct {
	store  state.Store
	file   *state.FileStore // nil when the sqlite backend is selected
	sb     *sidebar.Sidebar
	engine *tutorial.Engine
	client *workbench.Client
	audit  *security.Audit

	closeFn func() error
}

func newApp() (*app, error) {
	a := &app{
		audit:   security.NewAudit(logger),
		closeFn: func() error { return nil },
	}

	switch cfg.State.Backend {
	case "sqlite":
		s, err := state.NewSQLiteStore(cfg.State.Path, logger)
		if err != nil {
			return nil, err
		}
		a.store = s
		a.closeFn = s.Close
	default:
		fs := state.NewFileStore(cfg.State.Path, logger)
		a.store = fs
		a.file = fs
	}
	if err := a.store.Load(); err != nil {
		_ = a.closeFn()
		return nil, err
	}

	sb, err := sidebar.Load(cfg.SidebarPath(), cfg.Content.Dir)
	if err != nil {
		_ = a.closeFn()
		return nil, err
	}
	a.sb = sb

	limiter := security.NewRateLimiter(cfg.Security.RateLimitRequests, cfg.RateLimitWindow(), logger)
	a.client = workbench.New(cfg, limiter, logger)

	registry := tasks.NewRegistry()
	workbench.RegisterChecks(registry, a.client, projectName)

	loader := locale.NewLoader(cfg.Content.Dir, cfg.Content.Locale, logger)
	a.engine = tutorial.New(loader, a.store, tasks.NewRunner(logger), registry, logger)

	return a, nil
}

func (a *app) Close() error { return a.closeFn() }
