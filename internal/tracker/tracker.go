// Package tracker keeps, per repository, the window of commit hashes already
// scanned and turns a fresh fetch into the list of unseen commits.
package tracker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// RepoStatus is the persisted state of one repository.
type RepoStatus struct {
	// LastCheckedHashes is the latest fetch window, newest first.
	LastCheckedHashes []string `json:"last_checked_hashes"`
	// Baselined is set by the first Commit, even when the window was empty.
	// Commits fetched afterwards are always reported.
	Baselined  bool      `json:"baselined,omitempty"`
	LastSynced time.Time `json:"last_synced,omitzero"`
	Error      string    `json:"error,omitempty"`
}

// Store owns the status of every repository for one run. It is passed to the
// components that need it rather than shared globally.
type Store struct {
	repos    map[string]*RepoStatus
	backfill bool
	mu       sync.RWMutex
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithBackfill makes Delta report every fetched hash for a repository whose
// history is still empty, instead of only establishing a baseline.
func WithBackfill(enabled bool) Option {
	return func(s *Store) {
		s.backfill = enabled
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		repos: make(map[string]*RepoStatus),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the status file, or returns an empty store if it doesn't exist.
func Load(path string, opts ...Option) (*Store, error) {
	s := NewStore(opts...)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read repo status: %w", err)
	}

	var repos map[string]*RepoStatus
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil, fmt.Errorf("failed to parse repo status: %w", err)
	}

	for id, status := range repos {
		if status == nil {
			status = &RepoStatus{}
		}
		if status.LastCheckedHashes == nil {
			status.LastCheckedHashes = []string{}
		}
		// files written before the flag existed
		if len(status.LastCheckedHashes) > 0 {
			status.Baselined = true
		}
		s.repos[id] = status
	}

	return s, nil
}

// Save writes the status file atomically (temp file + rename).
func (s *Store) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.repos, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal repo status: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create repo status directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write repo status temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename repo status file: %w", err)
	}

	return nil
}

// Has reports whether the repository is known.
func (s *Store) Has(repoID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.repos[repoID]
	return ok
}

// Register adds the repository with an empty history if it is unknown.
// It returns true when the repository was newly registered.
func (s *Store) Register(repoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked(repoID)
}

func (s *Store) registerLocked(repoID string) bool {
	if _, ok := s.repos[repoID]; ok {
		return false
	}
	s.repos[repoID] = &RepoStatus{LastCheckedHashes: []string{}}
	return true
}

// Reset empties the history of a repository, registering it if needed.
// The next fetch establishes a new baseline.
func (s *Store) Reset(repoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registerLocked(repoID) {
		status := s.repos[repoID]
		status.LastCheckedHashes = []string{}
		status.Baselined = false
	}
}

// Touch records the outcome of a mirror sync for a repository.
// A nil error clears any previously recorded error and registers an unknown
// repository. A failure is only recorded on a known repository.
func (s *Store) Touch(repoID string, syncErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if syncErr != nil {
		status, ok := s.repos[repoID]
		if !ok {
			slog.Debug("Sync failure not recorded for untracked repository", "repo_id", repoID, "error", syncErr)
			return
		}
		status.Error = syncErr.Error()
		return
	}

	s.registerLocked(repoID)
	status := s.repos[repoID]
	status.Error = ""
	status.LastSynced = s.now()
}

// Delta returns the hashes of fresh (newest first) missing from the stored
// history, in fresh order. It never modifies the stored history; an unknown
// repository is only registered with an empty history.
//
// A repository that was never committed is a bootstrap baseline: nothing is
// reported for it unless the store was created with backfill enabled.
func (s *Store) Delta(repoID string, fresh []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(repoID)

	if len(fresh) == 0 {
		return nil
	}

	status := s.repos[repoID]
	history := status.LastCheckedHashes
	if !status.Baselined && !s.backfill {
		slog.Debug("Establishing commit baseline", "repo_id", repoID, "hashes", len(fresh))
		return nil
	}

	seen := make(map[string]struct{}, len(history))
	for _, h := range history {
		seen[h] = struct{}{}
	}

	var unseen []string
	overlap := false
	for _, h := range fresh {
		if _, ok := seen[h]; ok {
			overlap = true
			continue
		}
		unseen = append(unseen, h)
	}

	// Commits that scrolled out of the window between two runs are not
	// scanned. The gap is only reported.
	if len(history) > 0 && !overlap {
		slog.Warn("Fetched window does not overlap scanned history, older commits may be skipped",
			"repo_id", repoID, "window", len(fresh))
	}

	return unseen
}

// Commit replaces the stored history of a repository with the given fetch
// window and marks its baseline as established. An empty window leaves the
// hashes unchanged.
func (s *Store) Commit(repoID string, fresh []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(repoID)

	status := s.repos[repoID]
	status.Baselined = true
	if len(fresh) > 0 {
		status.LastCheckedHashes = slices.Clone(fresh)
	}
}

// Status returns a copy of the state of one repository.
func (s *Store) Status(repoID string) (RepoStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.repos[repoID]
	if !ok {
		return RepoStatus{}, false
	}
	return copyStatus(status), true
}

// Snapshot returns a copy of the state of every repository.
func (s *Store) Snapshot() map[string]RepoStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]RepoStatus, len(s.repos))
	for id, status := range s.repos {
		result[id] = copyStatus(status)
	}
	return result
}

// RepoIDs returns the sorted ids of all known repositories.
func (s *Store) RepoIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.repos))
	for id := range s.repos {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func copyStatus(status *RepoStatus) RepoStatus {
	c := *status
	c.LastCheckedHashes = slices.Clone(status.LastCheckedHashes)
	return c
}
