// Package scan walks the local mirrors, asks the commit tracker for commits
// not yet checked and runs the rule set over their patches.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sha1n/repoguard/internal/domain"
	"github.com/sha1n/repoguard/internal/gitrepos"
	"github.com/sha1n/repoguard/internal/rules"
)

// DefaultMaxCommits is the fetch window used when none is configured.
const DefaultMaxCommits = 100

// Repository is the VCS surface the driver needs. *gitrepos.GitClient implements it.
type Repository interface {
	RevList(ctx context.Context, repoDir string, maxCount int) ([]string, error)
	Show(ctx context.Context, repoDir, commitHash string) (string, error)
}

// CommitTracker is the history store the driver consults and advances.
// *tracker.Store implements it.
type CommitTracker interface {
	Register(repoID string) bool
	Delta(repoID string, fresh []string) []string
	Commit(repoID string, fresh []string)
}

// Report is the outcome of one pass.
type Report struct {
	Findings []domain.Finding
	// Scanned lists the repository ids whose history was advanced.
	Scanned []string
	// Registered lists repository ids seen for the first time.
	Registered []string
	// Skipped lists working directory entries that are not mirrors.
	Skipped []string
	// Failed lists repository ids whose scan was abandoned.
	Failed []string
	// Commits is the number of commits whose patch was checked.
	Commits int
}

// Driver runs one scan pass over a working directory.
type Driver struct {
	repo       Repository
	tracker    CommitTracker
	rules      *rules.RuleSet
	workDir    string
	maxCommits int
}

// NewDriver creates a driver. A non-positive maxCommits selects DefaultMaxCommits.
func NewDriver(repo Repository, tracker CommitTracker, ruleSet *rules.RuleSet, workDir string, maxCommits int) *Driver {
	if maxCommits <= 0 {
		maxCommits = DefaultMaxCommits
	}
	return &Driver{
		repo:       repo,
		tracker:    tracker,
		rules:      ruleSet,
		workDir:    workDir,
		maxCommits: maxCommits,
	}
}

// Run scans every mirror among entries, one repository at a time and commits
// in fetch order. A repository whose git calls fail keeps its stored history
// and contributes no findings, so its commits are checked again next run.
// Run only returns an error when ctx is cancelled.
func (d *Driver) Run(ctx context.Context, entries []string) (*Report, error) {
	report := &Report{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("scan interrupted: %w", err)
		}

		_, repoID, ok := gitrepos.ParseRepoDirName(entry)
		if !ok || !d.isDir(entry) {
			slog.Info(fmt.Sprintf("skip %s (not repo directory)", entry))
			report.Skipped = append(report.Skipped, entry)
			continue
		}

		if d.tracker.Register(repoID) {
			slog.Info("Registered new repository", "repo_dir", entry, "repo_id", repoID)
			report.Registered = append(report.Registered, repoID)
		}

		findings, commits, err := d.scanRepo(ctx, entry, repoID)
		if err != nil {
			slog.Error("Failed to scan repository", "repo_dir", entry, "repo_id", repoID, "error", err)
			report.Failed = append(report.Failed, repoID)
			continue
		}

		report.Findings = append(report.Findings, findings...)
		report.Scanned = append(report.Scanned, repoID)
		report.Commits += commits
	}

	slog.Info("Scan complete",
		"repositories", len(report.Scanned),
		"commits", report.Commits,
		"findings", len(report.Findings),
		"failed", len(report.Failed))
	return report, nil
}

func (d *Driver) scanRepo(ctx context.Context, entry, repoID string) ([]domain.Finding, int, error) {
	dir := filepath.Join(d.workDir, entry)

	fresh, err := d.repo.RevList(ctx, dir, d.maxCommits)
	if err != nil {
		return nil, 0, err
	}

	delta := d.tracker.Delta(repoID, fresh)
	if len(delta) == 0 {
		slog.Debug("No new commits", "repo_dir", entry, "repo_id", repoID)
		d.tracker.Commit(repoID, fresh)
		return nil, 0, nil
	}

	slog.Info("Checking new commits", "repo_dir", entry, "repo_id", repoID, "commits", len(delta))

	var findings []domain.Finding
	for _, hash := range delta {
		patch, err := d.repo.Show(ctx, dir, hash)
		if err != nil {
			return nil, 0, err
		}
		findings = append(findings, d.rules.Check(patch, hash, entry, repoID)...)
	}

	d.tracker.Commit(repoID, fresh)
	return findings, len(delta), nil
}

func (d *Driver) isDir(entry string) bool {
	info, err := os.Stat(filepath.Join(d.workDir, entry))
	return err == nil && info.IsDir()
}
