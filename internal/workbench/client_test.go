package workbench

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"labguide/internal/config"
	"labguide/internal/security"
	"labguide/internal/tasks"
)

// fakeWorkbench answers the handful of query shapes the client sends.
func fakeWorkbench(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/query", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var body string
		switch {
		case strings.Contains(req.Query, "edges"):
			body = `{"data": {"projects": {"edges": [
				{"node": {"name": "tutorial", "id": "p1", "path": "/projects/tutorial"}},
				{"node": {"name": "other", "id": "p2", "path": "/projects/other"}}
			]}}}`
		case strings.Contains(req.Query, "file("):
			require.Contains(t, req.Query, `"/projects/tutorial"`)
			contents := base64.StdEncoding.EncodeToString([]byte("hello"))
			body = `{"data": {"project": {"file": {"contents": "` + contents + `", "modifiedAt": "2024-01-01", "isDirectory": false}}}}`
		case strings.Contains(req.Query, "packageManagers"):
			body = `{"data": {"project": {"environment": {"packageManagers": [
				{"name": "pip", "installedPackages": [{"name": "pandas"}, {"name": "numpy"}]}
			]}}}}`
		case strings.Contains(req.Query, "gpusRequested"):
			body = `{"data": {"project": {"resources": {"gpusRequested": 0}}}}`
		default:
			require.Contains(t, req.Query, `"/projects/tutorial"`)
			body = `{"data": {"project": {
				"name": "tutorial",
				"path": "/projects/tutorial",
				"remoteUrl": "https://github.com/example/tutorial",
				"hasCompose": true,
				"compose": {"fileLocation": "compose.yaml", "availableProfiles": ["base"], "info": {"enabledProfiles": ["base"], "runState": "RUNNING"}},
				"gitBranches": [{"name": "main"}],
				"repoState": {"commitsAhead": 0, "commitsBehind": 0, "addedFilesCount": 1, "modifiedFilesCount": 0, "deletedFilesCount": 0, "changes": [{"file": "a.txt", "fileStatus": "ADDED"}]},
				"environment": {"buildState": "NO_BUILD", "runState": "RUNNING", "id": "env1"},
				"applications": [{"name": "jupyterlab", "info": {"runState": "RUNNING", "url": "http://localhost:8888"}}]
			}}}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.Endpoint = endpoint
	return New(cfg, nil, zaptest.NewLogger(t))
}

func TestListProjects(t *testing.T) {
	srv := httptest.NewServer(fakeWorkbench(t))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))

	refs, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, ProjectRef{Name: "tutorial", ID: "p1", Path: "/projects/tutorial"}, refs[0])
}

func TestProjectPath(t *testing.T) {
	srv := httptest.NewServer(fakeWorkbench(t))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))

	path, err := c.ProjectPath(context.Background(), "tutorial")
	require.NoError(t, err)
	assert.Equal(t, "/projects/tutorial", path)

	path, err = c.ProjectPath(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "", path)
}

func TestGetProject(t *testing.T) {
	srv := httptest.NewServer(fakeWorkbench(t))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))

	project, err := c.GetProject(context.Background(), "tutorial")
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, "NO_BUILD", project.Environment.BuildState)
	assert.Equal(t, "RUNNING", project.Environment.RunState)
	assert.True(t, project.HasCompose)
	require.NotNil(t, project.Compose.Info)
	assert.Equal(t, "RUNNING", project.Compose.Info.RunState)
	assert.Equal(t, 1, project.RepoState.AddedFilesCount)

	missing, err := c.GetProject(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetFileAndPackagesAndGPU(t *testing.T) {
	srv := httptest.NewServer(fakeWorkbench(t))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))
	ctx := context.Background()

	file, err := c.GetFile(ctx, "tutorial", "data", "hello.txt")
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.False(t, file.IsDirectory)

	managers, err := c.GetPackages(ctx, "tutorial")
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, "pip", managers[0].Name)
	assert.Len(t, managers[0].InstalledPackages, 2)

	count, ok, err := c.GetGPURequest(ctx, "tutorial")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, count, "zero GPUs is a valid request")
}

func TestQueryOverUnixSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "wb.sock")
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)
	srv := &http.Server{Handler: fakeWorkbench(t)}
	go srv.Serve(ln)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.API.SocketPath = socket
	c := New(cfg, nil, zaptest.NewLogger(t))

	refs, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestQueryRateLimited(t *testing.T) {
	srv := httptest.NewServer(fakeWorkbench(t))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.API.Endpoint = strings.TrimPrefix(srv.URL, "http://")
	limiter := security.NewRateLimiter(1, time.Minute, zaptest.NewLogger(t))
	c := New(cfg, limiter, zaptest.NewLogger(t))

	_, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	_, err = c.ListProjects(context.Background())
	assert.ErrorIs(t, err, security.ErrRateLimited)
}

func TestQueryGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "field does not exist"}]}`))
	}))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field does not exist")
}

func TestQueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func failureKey(t *testing.T, err error) string {
	t.Helper()
	var failure *tasks.Failure
	require.ErrorAs(t, err, &failure)
	return failure.Key
}

func TestEnsureBuildState(t *testing.T) {
	cases := []struct {
		state  BuildState
		target BuildState
		key    string
	}{
		{NoBuild, NoBuild, ""},
		{NoBuild, Building, "info_build_ready"},
		{QuickBuild, NoBuild, "info_build_needed"},
		{FullBuild, NoBuild, "info_build_needed"},
		{Building, NoBuild, "info_build_running"},
		{BuildError, NoBuild, "info_build_error"},
		{ImageDoesNotExist, NoBuild, "info_build_error"},
	}
	for _, tc := range cases {
		project := &Project{Environment: Environment{BuildState: string(tc.state)}}
		err := EnsureBuildState(project, tc.target)
		if tc.key == "" {
			assert.NoError(t, err)
		} else {
			assert.Equal(t, tc.key, failureKey(t, err), "state %s", tc.state)
		}
	}

	err := EnsureBuildState(&Project{Environment: Environment{BuildState: "???"}}, NoBuild)
	require.Error(t, err)
	var failure *tasks.Failure
	assert.False(t, errors.As(err, &failure), "unrecognized state is a system error, not a step failure")
}

func TestEnsureRunState(t *testing.T) {
	project := func(s RunState) *Project {
		return &Project{Environment: Environment{RunState: string(s)}}
	}

	assert.NoError(t, EnsureRunState(project(Running), Running))
	assert.NoError(t, EnsureRunState(project(Paused), Running, Paused))
	assert.Equal(t, "info_container_not_running", failureKey(t, EnsureRunState(project(NotRunning), Running)))
	assert.Equal(t, "info_container_running", failureKey(t, EnsureRunState(project(Running), NotRunning)))
	assert.Equal(t, "info_container_paused", failureKey(t, EnsureRunState(project(Paused), Running)))
	assert.Equal(t, "info_container_dead", failureKey(t, EnsureRunState(project(OOMKilled), Running)))
}

func TestAppHelpers(t *testing.T) {
	project := &Project{Applications: []Application{
		{Name: "jupyterlab", Info: AppInfo{RunState: "RUNNING"}},
	}}

	app, err := App(project, "jupyterlab")
	require.NoError(t, err)
	assert.NoError(t, EnsureAppState(app, AppRunning))
	assert.Equal(t, "info_app_is_running", failureKey(t, EnsureAppState(app, AppNotRunning)))

	_, err = App(project, "missing")
	assert.Equal(t, "info_wait_for_app", failureKey(t, err))

	starting := &Application{Info: AppInfo{RunState: "STARTING"}}
	assert.Equal(t, "info_app_starting", failureKey(t, EnsureAppState(starting, AppRunning)))
}

func TestEnsureComposeState(t *testing.T) {
	withState := func(s ComposeState) *Project {
		return &Project{Compose: &Compose{Info: &ComposeInfo{RunState: string(s)}}}
	}

	assert.NoError(t, EnsureComposeState(withState(ComposeRunning), ComposeRunning))
	assert.Equal(t, "info_compose_not_running", failureKey(t, EnsureComposeState(withState(ComposeNotRunning), ComposeRunning)))
	assert.Equal(t, "info_compose_starting", failureKey(t, EnsureComposeState(withState(ComposeStarting), ComposeRunning)))
	assert.Equal(t, "info_compose_error", failureKey(t, EnsureComposeState(withState(ComposeError), ComposeRunning)))

	// No compose info at all counts as NOT_RUNNING.
	bare := &Project{}
	assert.NoError(t, EnsureComposeState(bare, ComposeNotRunning))
	assert.Equal(t, "info_compose_not_running", failureKey(t, EnsureComposeState(bare, ComposeRunning)))
}

func TestFileAndPackageChecks(t *testing.T) {
	srv := httptest.NewServer(fakeWorkbench(t))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))
	ctx := context.Background()

	contents, err := FileContents(ctx, c, "tutorial", "data", "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), contents)

	// The fake returns a plain file, so folder lookups fail.
	_, err = Folder(ctx, c, "tutorial", "data", "hello.txt")
	assert.Equal(t, "info_wait_for_folder", failureKey(t, err))

	pkg, err := EnsurePackage(ctx, c, "tutorial", "pip", "pandas")
	require.NoError(t, err)
	assert.Equal(t, "pandas", pkg.Name)

	_, err = EnsurePackage(ctx, c, "tutorial", "pip", "torch")
	assert.Equal(t, "info_wait_for_package", failureKey(t, err))

	_, err = EnsurePackage(ctx, c, "tutorial", "conda", "pandas")
	assert.Equal(t, "info_wait_for_package", failureKey(t, err))

	count, err := GPUCount(ctx, c, "tutorial")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEnsureChangesDiscarded(t *testing.T) {
	srv := httptest.NewServer(fakeWorkbench(t))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))

	// The fake project reports one added file.
	err := EnsureChangesDiscarded(context.Background(), c, "tutorial")
	assert.Equal(t, "info_check_changes_discarded", failureKey(t, err))

	err = EnsureChangesDiscarded(context.Background(), c, "missing")
	assert.Equal(t, "info_wait_for_project", failureKey(t, err))
}
