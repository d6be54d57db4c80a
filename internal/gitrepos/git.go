package gitrepos

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandExecutor abstracts command execution for testing.
type CommandExecutor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor executes commands using os/exec.
type DefaultExecutor struct{}

// Run executes a command and returns its standard output.
func (e *DefaultExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// GitClient runs the git operations repoguard depends on.
type GitClient struct {
	executor CommandExecutor
}

// NewGitClient creates a new GitClient with the default command executor.
func NewGitClient() *GitClient {
	return &GitClient{
		executor: &DefaultExecutor{},
	}
}

// NewGitClientWithExecutor creates a GitClient with a custom executor (for testing).
func NewGitClientWithExecutor(executor CommandExecutor) *GitClient {
	return &GitClient{
		executor: executor,
	}
}

// Clone clones the full history of a remote into destDir.
func (g *GitClient) Clone(ctx context.Context, url, destDir string) error {
	if _, err := g.executor.Run(ctx, "", "git", "clone", url, destDir); err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	return nil
}

// Pull updates the mirror in repoDir from its remote.
func (g *GitClient) Pull(ctx context.Context, repoDir string) error {
	if _, err := g.executor.Run(ctx, repoDir, "git", "pull"); err != nil {
		return fmt.Errorf("git pull failed: %w", err)
	}
	return nil
}

// RevList returns up to maxCount commit hashes reachable from the remote
// refs, newest first.
func (g *GitClient) RevList(ctx context.Context, repoDir string, maxCount int) ([]string, error) {
	output, err := g.executor.Run(ctx, repoDir, "git", "rev-list", "--remotes", "--max-count="+strconv.Itoa(maxCount))
	if err != nil {
		return nil, fmt.Errorf("git rev-list failed: %w", err)
	}

	var hashes []string
	for line := range strings.SplitSeq(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			hashes = append(hashes, line)
		}
	}
	return hashes, nil
}

// Show returns the full patch of a single commit.
func (g *GitClient) Show(ctx context.Context, repoDir, commitHash string) (string, error) {
	output, err := g.executor.Run(ctx, repoDir, "git", "show", commitHash)
	if err != nil {
		return "", fmt.Errorf("git show %s failed: %w", commitHash, err)
	}
	return string(output), nil
}
