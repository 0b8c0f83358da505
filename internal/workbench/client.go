// Package workbench queries the AI Workbench service over its
// read-only GraphQL endpoint.
//
// The service normally listens on a unix socket inside the container;
// deployments can point NVWB_API at a plain HTTP host instead. Either
// way the wire shape is a POST of {"query": q} to /v1/query.
package workbench

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"labguide/internal/config"
	"labguide/internal/security"
)

// rateLimitKey groups all workbench traffic under one budget.
const rateLimitKey = "api_client"

// ProjectRef is a row in the project listing.
type ProjectRef struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Project is the full project snapshot used by step validation.
type Project struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	RemoteURL    string        `json:"remoteUrl"`
	HasCompose   bool          `json:"hasCompose"`
	Compose      *Compose      `json:"compose"`
	GitBranches  []GitBranch   `json:"gitBranches"`
	RepoState    RepoState     `json:"repoState"`
	Environment  Environment   `json:"environment"`
	Applications []Application `json:"applications"`
}

// Compose describes the project's docker compose configuration.
type Compose struct {
	FileLocation      string       `json:"fileLocation"`
	AvailableProfiles []string     `json:"availableProfiles"`
	Info              *ComposeInfo `json:"info"`
}

// ComposeInfo is the live compose status.
type ComposeInfo struct {
	EnabledProfiles []string `json:"enabledProfiles"`
	RunState        string   `json:"runState"`
}

// GitBranch is a branch in the project repository.
type GitBranch struct {
	Name string `json:"name"`
}

// RepoState summarizes uncommitted and unpushed work.
type RepoState struct {
	CommitsAhead       int          `json:"commitsAhead"`
	CommitsBehind      int          `json:"commitsBehind"`
	AddedFilesCount    int          `json:"addedFilesCount"`
	ModifiedFilesCount int          `json:"modifiedFilesCount"`
	DeletedFilesCount  int          `json:"deletedFilesCount"`
	Changes            []FileChange `json:"changes"`
}

// FileChange is one pending change in the repository.
type FileChange struct {
	File       string `json:"file"`
	FileStatus string `json:"fileStatus"`
}

// Environment is the project container environment.
type Environment struct {
	BuildState      string           `json:"buildState"`
	RunState        string           `json:"runState"`
	ID              string           `json:"id"`
	PackageManagers []PackageManager `json:"packageManagers"`
}

// Application is an app defined by the project.
type Application struct {
	Name string  `json:"name"`
	Info AppInfo `json:"info"`
}

// AppInfo is the live application status.
type AppInfo struct {
	RunState string `json:"runState"`
	URL      string `json:"url"`
}

// PackageManager holds the packages one manager reports installed.
type PackageManager struct {
	Name              string    `json:"name"`
	InstalledPackages []Package `json:"installedPackages"`
}

// Package is an installed package.
type Package struct {
	Name string `json:"name"`
}

// File is a file or directory inside a project.
type File struct {
	Contents    string `json:"contents"` // base64
	ModifiedAt  string `json:"modifiedAt"`
	IsDirectory bool   `json:"isDirectory"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// Client sends queries to the workbench service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *security.RateLimiter
	logger     *zap.Logger
}

// New builds a client from configuration. An HTTP endpoint takes
// precedence over the unix socket.
func New(cfg *config.Config, limiter *security.RateLimiter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		limiter: limiter,
		logger:  logger,
	}

	if cfg.API.Endpoint != "" {
		c.baseURL = "http://" + cfg.API.Endpoint
		c.httpClient = &http.Client{Timeout: cfg.QueryTimeout()}
		return c
	}

	socket := cfg.API.SocketPath
	c.baseURL = "http://workbench" // host is ignored over the socket
	c.httpClient = &http.Client{
		Timeout: cfg.QueryTimeout(),
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		},
	}
	return c
}

// Query posts a raw GraphQL query and decodes the data payload into
// out. GraphQL-level errors are returned as Go errors.
func (c *Client) Query(ctx context.Context, query string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Allow(rateLimitKey); err != nil {
			return err
		}
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return fmt.Errorf("workbench: encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("workbench: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("workbench: query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("workbench: query returned status %d", resp.StatusCode)
	}

	var envelope gqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("workbench: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("workbench: query failed: %s", strings.Join(msgs, "; "))
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("workbench: decode data: %w", err)
		}
	}
	return nil
}

// ListProjects returns the name, id, and path of every project the
// service knows about.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectRef, error) {
	const q = `query {
		projects {
			edges {
				node {
					name
					id
					path
				}
			}
		}
	}`

	var data struct {
		Projects struct {
			Edges []struct {
				Node ProjectRef `json:"node"`
			} `json:"edges"`
		} `json:"projects"`
	}
	if err := c.Query(ctx, q, &data); err != nil {
		return nil, err
	}

	refs := make([]ProjectRef, 0, len(data.Projects.Edges))
	for _, edge := range data.Projects.Edges {
		refs = append(refs, edge.Node)
	}
	return refs, nil
}

// ProjectPath resolves a project name to its filesystem path. Returns
// "" without error when the project does not exist yet.
func (c *Client) ProjectPath(ctx context.Context, projectName string) (string, error) {
	refs, err := c.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	for _, ref := range refs {
		if ref.Name == projectName {
			return ref.Path, nil
		}
	}
	return "", nil
}

// GetProject fetches the full project snapshot. Returns nil when the
// project does not exist.
func (c *Client) GetProject(ctx context.Context, projectName string) (*Project, error) {
	path, err := c.ProjectPath(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	q := fmt.Sprintf(`query {
		project(projectPath: %s) {
			name
			path
			remoteUrl
			hasCompose
			compose {
				fileLocation
				availableProfiles
				info {
					enabledProfiles
					runState
				}
			}
			gitBranches {
				name
			}
			repoState {
				commitsAhead
				commitsBehind
				addedFilesCount
				modifiedFilesCount
				deletedFilesCount
				changes {
					file
					fileStatus
				}
			}
			environment {
				buildState
				runState
				id
			}
			applications {
				name
				info {
					runState
					url
				}
			}
		}
	}`, strconv.Quote(path))

	var data struct {
		Project *Project `json:"project"`
	}
	if err := c.Query(ctx, q, &data); err != nil {
		return nil, err
	}
	return data.Project, nil
}

// GetFile looks up a file or directory inside a project. Returns nil
// when the project or file does not exist.
func (c *Client) GetFile(ctx context.Context, projectName, relativePath, filename string) (*File, error) {
	path, err := c.ProjectPath(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	q := fmt.Sprintf(`query {
		project(projectPath: %s) {
			file(relativePath: %s, fileName: %s) {
				contents
				modifiedAt
				isDirectory
			}
		}
	}`, strconv.Quote(path), strconv.Quote(relativePath), strconv.Quote(filename))

	var data struct {
		Project struct {
			File *File `json:"file"`
		} `json:"project"`
	}
	if err := c.Query(ctx, q, &data); err != nil {
		return nil, err
	}
	return data.Project.File, nil
}

// GetPackages lists the installed packages per package manager.
// Returns nil when the project does not exist.
func (c *Client) GetPackages(ctx context.Context, projectName string) ([]PackageManager, error) {
	path, err := c.ProjectPath(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	q := fmt.Sprintf(`query {
		project(projectPath: %s) {
			environment {
				packageManagers {
					name
					installedPackages {
						name
					}
				}
			}
		}
	}`, strconv.Quote(path))

	var data struct {
		Project struct {
			Environment struct {
				PackageManagers []PackageManager `json:"packageManagers"`
			} `json:"environment"`
		} `json:"project"`
	}
	if err := c.Query(ctx, q, &data); err != nil {
		return nil, err
	}
	return data.Project.Environment.PackageManagers, nil
}

// GetGPURequest returns the number of GPUs the project requests.
// The boolean is false when the project does not exist or does not
// report resources.
func (c *Client) GetGPURequest(ctx context.Context, projectName string) (int, bool, error) {
	path, err := c.ProjectPath(ctx, projectName)
	if err != nil {
		return 0, false, err
	}
	if path == "" {
		return 0, false, nil
	}

	q := fmt.Sprintf(`query {
		project(projectPath: %s) {
			resources {
				gpusRequested
			}
		}
	}`, strconv.Quote(path))

	var data struct {
		Project struct {
			Resources struct {
				GPUsRequested *int `json:"gpusRequested"`
			} `json:"resources"`
		} `json:"project"`
	}
	if err := c.Query(ctx, q, &data); err != nil {
		return 0, false, err
	}
	if data.Project.Resources.GPUsRequested == nil {
		return 0, false, nil
	}
	return *data.Project.Resources.GPUsRequested, true, nil
}
