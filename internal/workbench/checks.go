package workbench

import (
	"context"
	"encoding/base64"
	"fmt"

	"labguide/internal/tasks"
)

// BuildState values reported by the environment.
type BuildState string

const (
	NoBuild           BuildState = "NO_BUILD"
	FullBuild         BuildState = "FULL_BUILD"
	QuickBuild        BuildState = "QUICK_BUILD"
	Building          BuildState = "BUILDING"
	BuildError        BuildState = "BUILD_ERROR"
	ImageDoesNotExist BuildState = "IMAGE_DOES_NOT_EXIST"
)

// RunState values for the project container.
type RunState string

const (
	ContainerNotCreated RunState = "CONTAINER_NOT_CREATED"
	NotRunning          RunState = "NOT_RUNNING"
	Restarting          RunState = "RESTARTING"
	Running             RunState = "RUNNING"
	Paused              RunState = "PAUSED"
	OOMKilled           RunState = "OOM_KILLED"
	Dead                RunState = "DEAD"
)

// AppState values for project applications.
type AppState string

const (
	AppRunning    AppState = "RUNNING"
	AppNotRunning AppState = "NOT_RUNNING"
	AppStopping   AppState = "STOPPING"
	AppStarting   AppState = "STARTING"
)

// ComposeState values for docker compose.
type ComposeState string

const (
	ComposeRunning    ComposeState = "RUNNING"
	ComposeNotRunning ComposeState = "NOT_RUNNING"
	ComposeStarting   ComposeState = "STARTING"
	ComposeStopping   ComposeState = "STOPPING"
	ComposeError      ComposeState = "ERROR"
)

// The helpers below fail with localization message keys. A *tasks.Failure
// is expected tutorial flow: the page resolves the key against its
// bundle and tells the user what to do next.

// RequireProject fetches a project and fails the step when it does not
// exist yet.
func RequireProject(ctx context.Context, c *Client, projectName string) (*Project, error) {
	project, err := c.GetProject(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, tasks.Failf("info_wait_for_project")
	}
	return project, nil
}

// EnsureBuildState fails unless the environment build state matches
// target, with a message keyed to the state actually observed.
func EnsureBuildState(project *Project, target BuildState) error {
	state := BuildState(project.Environment.BuildState)
	if state == target {
		return nil
	}
	switch state {
	case NoBuild:
		return tasks.Failf("info_build_ready")
	case QuickBuild, FullBuild:
		return tasks.Failf("info_build_needed")
	case Building:
		return tasks.Failf("info_build_running")
	case BuildError, ImageDoesNotExist:
		return tasks.Failf("info_build_error")
	}
	return fmt.Errorf("unknown project build state %q", project.Environment.BuildState)
}

// EnsureRunState fails unless the container run state is one of the
// targets.
func EnsureRunState(project *Project, targets ...RunState) error {
	state := RunState(project.Environment.RunState)
	for _, target := range targets {
		if state == target {
			return nil
		}
	}
	switch state {
	case ContainerNotCreated, NotRunning, Restarting:
		return tasks.Failf("info_container_not_running")
	case Running:
		return tasks.Failf("info_container_running")
	case Paused:
		return tasks.Failf("info_container_paused")
	case OOMKilled, Dead:
		return tasks.Failf("info_container_dead")
	}
	return fmt.Errorf("unknown project run state %q", project.Environment.RunState)
}

// App finds a named application in the project.
func App(project *Project, appName string) (*Application, error) {
	for i := range project.Applications {
		if project.Applications[i].Name == appName {
			return &project.Applications[i], nil
		}
	}
	return nil, tasks.Failf("info_wait_for_app")
}

// EnsureAppState fails unless the application is at the target state.
func EnsureAppState(app *Application, target AppState) error {
	state := AppState(app.Info.RunState)
	if state == target {
		return nil
	}
	switch state {
	case AppRunning:
		return tasks.Failf("info_app_is_running")
	case AppNotRunning, AppStopping:
		return tasks.Failf("info_app_not_running")
	case AppStarting:
		return tasks.Failf("info_app_starting")
	}
	return fmt.Errorf("unknown app state %q", app.Info.RunState)
}

// EnsurePackage fails until the named package shows up under the named
// package manager.
func EnsurePackage(ctx context.Context, c *Client, projectName, packageManager, packageName string) (*Package, error) {
	managers, err := c.GetPackages(ctx, projectName)
	if err != nil {
		return nil, err
	}

	var installed []Package
	for _, manager := range managers {
		if manager.Name == packageManager {
			installed = manager.InstalledPackages
			break
		}
	}
	for i := range installed {
		if installed[i].Name == packageName {
			return &installed[i], nil
		}
	}
	return nil, tasks.Failf("info_wait_for_package")
}

// EnsureComposeState fails unless compose is at the target state. A
// project with no compose status reports NOT_RUNNING.
func EnsureComposeState(project *Project, target ComposeState) error {
	state := ComposeNotRunning
	if project.Compose != nil && project.Compose.Info != nil {
		state = ComposeState(project.Compose.Info.RunState)
	}
	if state == target {
		return nil
	}
	switch state {
	case ComposeRunning:
		return tasks.Failf("info_compose_is_running")
	case ComposeNotRunning, ComposeStopping:
		return tasks.Failf("info_compose_not_running")
	case ComposeStarting:
		return tasks.Failf("info_compose_starting")
	case ComposeError:
		return tasks.Failf("info_compose_error")
	}
	return fmt.Errorf("unknown compose state %q", state)
}

// FileContents retrieves and decodes a project file, failing until it
// exists.
func FileContents(ctx context.Context, c *Client, projectName, directory, filename string) ([]byte, error) {
	file, err := c.GetFile(ctx, projectName, directory, filename)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, tasks.Failf("info_wait_for_file")
	}
	contents, err := base64.StdEncoding.DecodeString(file.Contents)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", directory, filename, err)
	}
	return contents, nil
}

// Folder retrieves a project directory, failing until it exists and is
// actually a directory.
func Folder(ctx context.Context, c *Client, projectName, directory, folderName string) (*File, error) {
	file, err := c.GetFile(ctx, projectName, directory, folderName)
	if err != nil {
		return nil, err
	}
	if file == nil || !file.IsDirectory {
		return nil, tasks.Failf("info_wait_for_folder")
	}
	return file, nil
}

// GPUCount fails until the project reports a GPU request. Zero is a
// valid count.
func GPUCount(ctx context.Context, c *Client, projectName string) (int, error) {
	count, ok, err := c.GetGPURequest(ctx, projectName)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, tasks.Failf("info_wait_for_project")
	}
	return count, nil
}

// EnsureChangesDiscarded fails while the project has uncommitted
// changes.
func EnsureChangesDiscarded(ctx context.Context, c *Client, projectName string) error {
	project, err := c.GetProject(ctx, projectName)
	if err != nil {
		return err
	}
	if project == nil {
		return tasks.Failf("info_wait_for_project")
	}

	rs := project.RepoState
	if rs.AddedFilesCount+rs.ModifiedFilesCount+rs.DeletedFilesCount > 0 {
		return tasks.Failf("info_check_changes_discarded")
	}
	return nil
}
