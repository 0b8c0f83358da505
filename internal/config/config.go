// Package config loads labguide configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults mirroring the deployed tutorial environment.
const (
	DefaultSocketPath  = "/wb-svc-ro.socket"
	DefaultStatePath   = "data/scratch/tutorial_state.json"
	DefaultContentDir  = "content"
	DefaultSidebarFile = "sidebar.yaml"
	DefaultLocale      = "en_US"
)

// Config holds all labguide configuration.
type Config struct {
	// Workbench query service
	API APIConfig `yaml:"api"`

	// Progress state persistence
	State StateConfig `yaml:"state"`

	// Tutorial content (sidebar declaration + page bundles)
	Content ContentConfig `yaml:"content"`

	// Request throttling and input limits
	Security SecurityConfig `yaml:"security"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the workbench query client.
type APIConfig struct {
	// Endpoint is an HTTP host:port; when set it takes precedence
	// over the unix socket.
	Endpoint   string `yaml:"endpoint"`
	SocketPath string `yaml:"socket_path"`
	Timeout    string `yaml:"timeout"`
}

// StateConfig configures the progress store.
type StateConfig struct {
	// Backend selects "file" (default) or "sqlite".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ContentConfig configures tutorial content discovery.
type ContentConfig struct {
	Dir         string `yaml:"dir"`
	SidebarFile string `yaml:"sidebar_file"`
	Locale      string `yaml:"locale"`
	// ProxyPrefix is prepended to the home link when the app sits
	// behind a reverse proxy.
	ProxyPrefix string `yaml:"proxy_prefix"`
}

// SecurityConfig configures rate limiting and secret handling.
type SecurityConfig struct {
	RateLimitRequests int    `yaml:"rate_limit_requests"`
	RateLimitWindow   string `yaml:"rate_limit_window"`
	SecretKey         string `yaml:"secret_key"`
	// RedisURL is consumed by the companion backend service, not by
	// the engine itself. Parsed and carried so one config file can
	// serve both processes.
	RedisURL string `yaml:"redis_url"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Error represents an invalid or unloadable configuration. Fatal at
// startup.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			SocketPath: DefaultSocketPath,
			Timeout:    "5s",
		},
		State: StateConfig{
			Backend: "file",
			Path:    DefaultStatePath,
		},
		Content: ContentConfig{
			Dir:         DefaultContentDir,
			SidebarFile: DefaultSidebarFile,
			Locale:      DefaultLocale,
		},
		Security: SecurityConfig{
			RateLimitRequests: 100,
			RateLimitWindow:   "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields
// defaults; a malformed file is a fatal configuration error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, &Error{Msg: fmt.Sprintf("read %s: %v", path, err)}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("parse %s: %v", path, err)}
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("NVWB_API"); host != "" {
		c.API.Endpoint = host
	}
	if sock := os.Getenv("NVWB_SOCKET"); sock != "" {
		c.API.SocketPath = sock
	}
	if prefix := os.Getenv("PROXY_PREFIX"); prefix != "" {
		c.Content.ProxyPrefix = prefix
	}
	if path := os.Getenv("LABGUIDE_STATE"); path != "" {
		c.State.Path = path
	}
	if dir := os.Getenv("LABGUIDE_CONTENT"); dir != "" {
		c.Content.Dir = dir
	}
	if loc := os.Getenv("LABGUIDE_LOCALE"); loc != "" {
		c.Content.Locale = loc
	}
	if key := os.Getenv("SECRET_KEY"); key != "" {
		c.Security.SecretKey = key
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Security.RedisURL = url
	}
	if n := os.Getenv("RATE_LIMIT_REQUESTS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			c.Security.RateLimitRequests = v
		}
	}
	if w := os.Getenv("RATE_LIMIT_WINDOW"); w != "" {
		c.Security.RateLimitWindow = w
	}
}

// Validate checks durations and limits. Invalid values are fatal at
// startup rather than surfacing mid-session.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return &Error{Field: "api.timeout", Msg: err.Error()}
	}
	if _, err := time.ParseDuration(c.Security.RateLimitWindow); err != nil {
		return &Error{Field: "security.rate_limit_window", Msg: err.Error()}
	}
	if c.Security.RateLimitRequests <= 0 {
		return &Error{Field: "security.rate_limit_requests", Msg: "must be positive"}
	}
	switch c.State.Backend {
	case "", "file", "sqlite":
	default:
		return &Error{Field: "state.backend", Msg: fmt.Sprintf("unknown backend %q", c.State.Backend)}
	}
	return nil
}

// QueryTimeout returns the API timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// RateLimitWindow returns the rate limit window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	d, err := time.ParseDuration(c.Security.RateLimitWindow)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// SidebarPath returns the full path of the sidebar declaration.
func (c *Config) SidebarPath() string {
	return filepath.Join(c.Content.Dir, c.Content.SidebarFile)
}
