package testkit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sha1n/repoguard/internal/app"
	"github.com/sha1n/repoguard/internal/gitrepos"
	"github.com/spf13/pflag"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type testEnvContextImpl struct {
	properties map[string]any
}

func (c *testEnvContextImpl) GetProperties() map[string]any {
	return c.properties
}

func (c *testEnvContextImpl) GetProperty(name string) (any, bool) {
	val, ok := c.properties[name]
	return val, ok
}

type testEnvImpl struct {
	services []Service
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

func (e *testEnvImpl) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.GetName(), err)
		}
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

func (e *testEnvImpl) Stop() error {
	var lastErr error
	// Stop in reverse order
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnvImpl) GetContext() TestEnvContext {
	return e.context
}

// RequireGit skips the test when no git binary is installed
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not installed")
	}
}

// GitRemote is a local repository that mirrors are cloned from.
// Its property "<name>.url" holds the clone URL.
type GitRemote struct {
	name     string
	dir      string
	executor gitrepos.CommandExecutor
}

// NewGitRemote creates a remote rooted at dir. The directory is created on Start.
func NewGitRemote(name, dir string) *GitRemote {
	return &GitRemote{
		name:     name,
		dir:      dir,
		executor: &gitrepos.DefaultExecutor{},
	}
}

// GetName returns the remote name
func (r *GitRemote) GetName() string {
	return r.name
}

// URL returns the clone URL of the remote
func (r *GitRemote) URL() string {
	return r.dir
}

// Start initializes the repository with one commit
func (r *GitRemote) Start() (map[string]any, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return nil, err
	}
	if _, err := r.git("init", "--quiet"); err != nil {
		return nil, err
	}
	if _, err := r.Commit("README.md", "# "+r.name+"\n", "Initial commit"); err != nil {
		return nil, err
	}
	return map[string]any{r.name + ".url": r.URL()}, nil
}

// Stop removes the repository
func (r *GitRemote) Stop() error {
	return os.RemoveAll(r.dir)
}

// Commit writes content to file and commits it, returning the new commit hash
func (r *GitRemote) Commit(file, content, message string) (string, error) {
	path := filepath.Join(r.dir, file)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	if _, err := r.git("add", file); err != nil {
		return "", err
	}
	if _, err := r.git("-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "--quiet", "-m", message); err != nil {
		return "", err
	}
	out, err := r.git("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// MustCommit is Commit that fails the test on error
func (r *GitRemote) MustCommit(t testing.TB, file, content, message string) string {
	t.Helper()
	hash, err := r.Commit(file, content, message)
	if err != nil {
		t.Fatalf("Commit to %s failed: %v", r.name, err)
	}
	return hash
}

func (r *GitRemote) git(args ...string) ([]byte, error) {
	return r.executor.Run(context.Background(), r.dir, "git", args...)
}

// RepoFixture describes one entry of a generated repository list
type RepoFixture struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RemoteURL string `json:"remoteUrl"`
	Language  string `json:"language,omitempty"`
}

// Workspace lays out the files a scan run reads
type Workspace struct {
	Root          string
	WorkingDir    string
	RepoList      string
	StatusFile    string
	Rules         string
	Subscriptions string
	IndexDir      string
}

// NewWorkspace creates a workspace under a temp dir holding the given repository
// list, rule files (file name to content) and subscriptions
func NewWorkspace(t testing.TB, repos []RepoFixture, rules map[string]string, subscriptions string) *Workspace {
	t.Helper()
	root := t.TempDir()
	ws := &Workspace{
		Root:          root,
		WorkingDir:    filepath.Join(root, "repos"),
		RepoList:      filepath.Join(root, "repo_list.json"),
		StatusFile:    filepath.Join(root, "repo_status.json"),
		Rules:         filepath.Join(root, "rules"),
		Subscriptions: filepath.Join(root, "subscriptions.yml"),
		IndexDir:      filepath.Join(root, "findings.bleve"),
	}

	data, err := json.MarshalIndent(repos, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal repository list: %v", err)
	}
	mustWrite(t, ws.RepoList, string(data))
	for name, content := range rules {
		mustWrite(t, filepath.Join(ws.Rules, name), content)
	}
	mustWrite(t, ws.Subscriptions, subscriptions)

	return ws
}

func mustWrite(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Notifier     string // Defaults to "none"
	LogLevel     string // Defaults to "error"
	Backfill     bool
	NoSync       bool
	ExcludePaths []string // Defaults to no exclusion
}

// NewTestFlags creates a pflag.FlagSet pointing every path flag into ws
func NewTestFlags(t testing.TB, ws *Workspace, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	notifier := "none"
	logLevel := "error"
	backfill := false
	sync := true

	if opts != nil {
		if opts.Notifier != "" {
			notifier = opts.Notifier
		}
		if opts.LogLevel != "" {
			logLevel = opts.LogLevel
		}
		backfill = opts.Backfill
		sync = !opts.NoSync
	}

	_ = flags.Set("working-dir", ws.WorkingDir)
	_ = flags.Set("repo-list", ws.RepoList)
	_ = flags.Set("status-file", ws.StatusFile)
	_ = flags.Set("rules", ws.Rules)
	_ = flags.Set("subscriptions", ws.Subscriptions)
	_ = flags.Set("index-dir", ws.IndexDir)
	_ = flags.Set("notifier", notifier)
	_ = flags.Set("log-level", logLevel)
	_ = flags.Set("backfill", fmt.Sprintf("%t", backfill))
	_ = flags.Set("sync", fmt.Sprintf("%t", sync))
	if opts != nil && len(opts.ExcludePaths) > 0 {
		_ = flags.Set("exclude-paths", strings.Join(opts.ExcludePaths, ","))
	}

	return flags
}
