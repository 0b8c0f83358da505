package workbench

import (
	"context"

	"labguide/internal/tasks"
)

// DefaultProjectName is the project the stock tutorial content works
// against.
const DefaultProjectName = "nvidia-ai-workbench-onboarding"

// Ubuntu package the package-management exercise installs.
const ubuntuPackage = "jq"

// RegisterChecks installs the standard validation suite for one
// project. Bundle task declarations reference these by name in their
// test fields.
func RegisterChecks(reg *tasks.Registry, c *Client, projectName string) {
	if projectName == "" {
		projectName = DefaultProjectName
	}

	register := func(name string, fn func(ctx context.Context) (any, error)) {
		reg.Register(tasks.CheckFunc(name, fn))
	}

	register("project_exists", func(ctx context.Context) (any, error) {
		project, err := RequireProject(ctx, c, projectName)
		if err != nil {
			return nil, err
		}
		return project.Path, nil
	})

	register("build_ready", func(ctx context.Context) (any, error) {
		project, err := RequireProject(ctx, c, projectName)
		if err != nil {
			return nil, err
		}
		return nil, EnsureBuildState(project, NoBuild)
	})

	register("container_running", func(ctx context.Context) (any, error) {
		project, err := RequireProject(ctx, c, projectName)
		if err != nil {
			return nil, err
		}
		return nil, EnsureRunState(project, Running)
	})

	register("container_stopped", func(ctx context.Context) (any, error) {
		project, err := RequireProject(ctx, c, projectName)
		if err != nil {
			return nil, err
		}
		return nil, EnsureRunState(project, NotRunning, ContainerNotCreated)
	})

	register("jupyterlab_running", func(ctx context.Context) (any, error) {
		project, err := RequireProject(ctx, c, projectName)
		if err != nil {
			return nil, err
		}
		app, err := App(project, "jupyterlab")
		if err != nil {
			return nil, err
		}
		if err := EnsureAppState(app, AppRunning); err != nil {
			return nil, err
		}
		return app.Info.URL, nil
	})

	register("compose_running", func(ctx context.Context) (any, error) {
		project, err := RequireProject(ctx, c, projectName)
		if err != nil {
			return nil, err
		}
		return nil, EnsureComposeState(project, ComposeRunning)
	})

	register("compose_stopped", func(ctx context.Context) (any, error) {
		project, err := RequireProject(ctx, c, projectName)
		if err != nil {
			return nil, err
		}
		return nil, EnsureComposeState(project, ComposeNotRunning)
	})

	register("add_ubuntu_package", func(ctx context.Context) (any, error) {
		pkg, err := EnsurePackage(ctx, c, projectName, "apt", ubuntuPackage)
		if err != nil {
			return nil, err
		}
		return pkg.Name, nil
	})

	register("gpu_assigned", func(ctx context.Context) (any, error) {
		count, err := GPUCount(ctx, c, projectName)
		if err != nil {
			return nil, err
		}
		if count < 1 {
			return nil, tasks.Failf("info_no_gpu_assigned")
		}
		return count, nil
	})

	register("changes_discarded", func(ctx context.Context) (any, error) {
		return nil, EnsureChangesDiscarded(ctx, c, projectName)
	})
}
