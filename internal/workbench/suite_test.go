package workbench

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labguide/internal/tasks"
)

func TestRegisterChecksSuite(t *testing.T) {
	srv := httptest.NewServer(fakeWorkbench(t))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))

	reg := tasks.NewRegistry()
	RegisterChecks(reg, c, "tutorial")

	assert.Equal(t, []string{
		"add_ubuntu_package",
		"build_ready",
		"changes_discarded",
		"compose_running",
		"compose_stopped",
		"container_running",
		"container_stopped",
		"gpu_assigned",
		"jupyterlab_running",
		"project_exists",
	}, reg.Names())

	ctx := context.Background()
	run := func(name string) (any, error) {
		check, ok := reg.Lookup(name)
		require.True(t, ok, "check %s must be registered", name)
		return check.Run(ctx)
	}

	// The fake project exists with NO_BUILD / RUNNING / compose RUNNING.
	payload, err := run("project_exists")
	require.NoError(t, err)
	assert.Equal(t, "/projects/tutorial", payload)

	_, err = run("build_ready")
	assert.NoError(t, err)

	_, err = run("container_running")
	assert.NoError(t, err)

	_, err = run("container_stopped")
	assert.Equal(t, "info_container_running", failureKey(t, err))

	payload, err = run("jupyterlab_running")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8888", payload)

	_, err = run("compose_running")
	assert.NoError(t, err)

	_, err = run("compose_stopped")
	assert.Equal(t, "info_compose_is_running", failureKey(t, err))

	// The fake reports no apt manager and zero GPUs.
	_, err = run("add_ubuntu_package")
	assert.Equal(t, "info_wait_for_package", failureKey(t, err))

	_, err = run("gpu_assigned")
	assert.Equal(t, "info_no_gpu_assigned", failureKey(t, err))

	_, err = run("changes_discarded")
	assert.Equal(t, "info_check_changes_discarded", failureKey(t, err))
}

func TestRegisterChecksAgainstMissingProject(t *testing.T) {
	srv := httptest.NewServer(fakeWorkbench(t))
	defer srv.Close()
	c := newTestClient(t, strings.TrimPrefix(srv.URL, "http://"))

	reg := tasks.NewRegistry()
	RegisterChecks(reg, c, "missing")

	check, ok := reg.Lookup("project_exists")
	require.True(t, ok)
	_, err := check.Run(context.Background())
	assert.Equal(t, "info_wait_for_project", failureKey(t, err))
}
