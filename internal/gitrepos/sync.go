package gitrepos

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/sha1n/repoguard/internal/domain"
)

// StatusRecorder receives the outcome of each mirror sync.
// *tracker.Store implements it.
type StatusRecorder interface {
	Reset(repoID string)
	Touch(repoID string, syncErr error)
}

// SyncReport summarizes one Sync call by repository id.
type SyncReport struct {
	Cloned  []string
	Pulled  []string
	Skipped []string
	Failed  []string
}

// Synchronizer keeps the local mirrors under workDir up to date with their remotes.
type Synchronizer struct {
	git     *GitClient
	status  StatusRecorder
	workDir string
	skip    *SkipPolicy
}

// NewSynchronizer creates a synchronizer. A nil skip policy admits every repository.
func NewSynchronizer(git *GitClient, status StatusRecorder, workDir string, skip *SkipPolicy) *Synchronizer {
	return &Synchronizer{
		git:     git,
		status:  status,
		workDir: workDir,
		skip:    skip,
	}
}

// Sync clones repositories that have no mirror among localDirs and pulls the
// ones that do, one at a time in list order. A freshly cloned repository
// starts over with an empty commit history. Failures are recorded on the
// repository status and never stop the loop.
func (s *Synchronizer) Sync(ctx context.Context, repos []domain.RepoDescriptor, localDirs []string) SyncReport {
	var report SyncReport

	for _, repo := range repos {
		if ctx.Err() != nil {
			slog.Warn("Sync interrupted", "error", ctx.Err())
			break
		}

		if s.skip.ShouldSkip(repo) {
			slog.Debug("Skipping repository", "repo", repo.Name, "repo_id", repo.ID, "language", repo.Language)
			report.Skipped = append(report.Skipped, repo.ID)
			continue
		}

		if dir, ok := SearchRepoDir(localDirs, repo.Name, repo.ID); ok {
			err := s.pull(ctx, repo, dir)
			s.status.Touch(repo.ID, err)
			if err != nil {
				report.Failed = append(report.Failed, repo.ID)
				continue
			}
			report.Pulled = append(report.Pulled, repo.ID)
			continue
		}

		err := s.clone(ctx, repo)
		if err != nil {
			s.status.Touch(repo.ID, err)
			report.Failed = append(report.Failed, repo.ID)
			continue
		}
		s.status.Reset(repo.ID)
		s.status.Touch(repo.ID, nil)
		report.Cloned = append(report.Cloned, repo.ID)
	}

	slog.Info("Mirror sync complete",
		"cloned", len(report.Cloned),
		"pulled", len(report.Pulled),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed))
	return report
}

func (s *Synchronizer) clone(ctx context.Context, repo domain.RepoDescriptor) error {
	dest := filepath.Join(s.workDir, repo.DirName())
	slog.Info("Cloning repository", "repo", repo.Name, "repo_id", repo.ID, "url", repo.RemoteURL)
	if err := s.git.Clone(ctx, repo.RemoteURL, dest); err != nil {
		slog.Error("Failed to clone repository", "repo", repo.Name, "repo_id", repo.ID, "error", err)
		return err
	}
	return nil
}

func (s *Synchronizer) pull(ctx context.Context, repo domain.RepoDescriptor, dir string) error {
	slog.Info("Pulling repository", "repo", repo.Name, "repo_id", repo.ID)
	if err := s.git.Pull(ctx, filepath.Join(s.workDir, dir)); err != nil {
		slog.Error("Failed to pull repository", "repo", repo.Name, "repo_id", repo.ID, "error", err)
		return err
	}
	return nil
}
