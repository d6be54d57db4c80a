package gitrepos

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sha1n/repoguard/internal/domain"
)

// ErrDuplicateRepo is returned when two repository list entries share an id.
var ErrDuplicateRepo = errors.New("duplicate repository id")

// repoEntry is the on-disk shape of a repository list entry. Older lists use
// "ssh_url" or "url" for the remote and encode the id as a number.
type repoEntry struct {
	ID        json.RawMessage `json:"id"`
	Name      string          `json:"name"`
	RemoteURL string          `json:"remoteUrl"`
	SSHURL    string          `json:"ssh_url"`
	URL       string          `json:"url"`
	Language  string          `json:"language"`
}

func (e repoEntry) descriptor() (domain.RepoDescriptor, error) {
	id, err := parseRepoID(e.ID)
	if err != nil {
		return domain.RepoDescriptor{}, err
	}

	remote := e.RemoteURL
	if remote == "" {
		remote = e.SSHURL
	}
	if remote == "" {
		remote = e.URL
	}

	return domain.RepoDescriptor{
		ID:        id,
		Name:      strings.TrimSpace(e.Name),
		RemoteURL: strings.TrimSpace(remote),
		Language:  e.Language,
	}, nil
}

func parseRepoID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid id %s", raw)
	}
	return n.String(), nil
}

// LoadRepoList reads and validates the repository list file.
// Entries keep their file order.
func LoadRepoList(path string) ([]domain.RepoDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository list: %w", err)
	}
	return ParseRepoList(data)
}

// ParseRepoList decodes and validates a JSON repository list.
func ParseRepoList(data []byte) ([]domain.RepoDescriptor, error) {
	var entries []repoEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse repository list: %w", err)
	}

	validate := validator.New()
	seen := make(map[string]struct{}, len(entries))
	repos := make([]domain.RepoDescriptor, 0, len(entries))

	for i, entry := range entries {
		repo, err := entry.descriptor()
		if err != nil {
			return nil, fmt.Errorf("repository #%d: %w", i, err)
		}
		if err := validate.Struct(repo); err != nil {
			return nil, fmt.Errorf("repository #%d (%s): %w", i, repo.Name, err)
		}
		if _, dup := seen[repo.ID]; dup {
			return nil, fmt.Errorf("repository #%d: %w: %s", i, ErrDuplicateRepo, repo.ID)
		}
		seen[repo.ID] = struct{}{}
		repos = append(repos, repo)
	}

	return repos, nil
}

// SkipPolicy decides which repositories are left out of a run.
type SkipPolicy struct {
	names     map[string]struct{}
	languages map[string]struct{}
}

// NewSkipPolicy creates a policy from a name blocklist and a language
// allowlist. An empty allowlist admits every language.
func NewSkipPolicy(skipNames, languages []string) *SkipPolicy {
	p := &SkipPolicy{
		names:     make(map[string]struct{}, len(skipNames)),
		languages: make(map[string]struct{}, len(languages)),
	}
	for _, name := range skipNames {
		if name = strings.TrimSpace(name); name != "" {
			p.names[name] = struct{}{}
		}
	}
	for _, lang := range languages {
		if lang = strings.TrimSpace(lang); lang != "" {
			p.languages[strings.ToLower(lang)] = struct{}{}
		}
	}
	return p
}

// ShouldSkip reports whether repo is excluded by name or language.
func (p *SkipPolicy) ShouldSkip(repo domain.RepoDescriptor) bool {
	if p == nil {
		return false
	}
	if _, ok := p.names[repo.Name]; ok {
		return true
	}
	if len(p.languages) == 0 {
		return false
	}
	_, ok := p.languages[strings.ToLower(repo.Language)]
	return !ok
}
