package gitrepos

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sha1n/repoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRepoList = `[
  {"id": "6125572", "name": "object-library-service", "remoteUrl": "git@github.com:prezi/object-library-service.git", "language": "Python"},
  {"id": 7092651, "name": "project-startup", "ssh_url": "git@github.com:prezi/project-startup.git", "language": "python"},
  {"id": "7271766", "name": "data-research", "url": "git@github.com:prezi/data-research.git", "language": "Scala"}
]`

func writeRepoList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo_list.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testRepos(t *testing.T) []domain.RepoDescriptor {
	t.Helper()
	repos, err := ParseRepoList([]byte(testRepoList))
	require.NoError(t, err)
	return repos
}

func TestLoadRepoList(t *testing.T) {
	repos, err := LoadRepoList(writeRepoList(t, testRepoList))
	require.NoError(t, err)
	require.Len(t, repos, 3)

	assert.Equal(t, domain.RepoDescriptor{
		ID:        "6125572",
		Name:      "object-library-service",
		RemoteURL: "git@github.com:prezi/object-library-service.git",
		Language:  "Python",
	}, repos[0])
	assert.Equal(t, "7092651", repos[1].ID)
	assert.Equal(t, "git@github.com:prezi/project-startup.git", repos[1].RemoteURL)
	assert.Equal(t, "git@github.com:prezi/data-research.git", repos[2].RemoteURL)
}

func TestLoadRepoList_MissingFile(t *testing.T) {
	_, err := LoadRepoList(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestParseRepoList_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{`},
		{"missing id", `[{"name": "a", "remoteUrl": "git@x:a.git"}]`},
		{"non numeric id", `[{"id": "abc", "name": "a", "remoteUrl": "git@x:a.git"}]`},
		{"missing name", `[{"id": "1", "remoteUrl": "git@x:a.git"}]`},
		{"name with slash", `[{"id": "1", "name": "a/b", "remoteUrl": "git@x:a.git"}]`},
		{"missing remote", `[{"id": "1", "name": "a"}]`},
		{"object id", `[{"id": {}, "name": "a", "remoteUrl": "git@x:a.git"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRepoList([]byte(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestParseRepoList_DuplicateID(t *testing.T) {
	_, err := ParseRepoList([]byte(`[
	  {"id": "1", "name": "a", "remoteUrl": "git@x:a.git"},
	  {"id": 1, "name": "b", "remoteUrl": "git@x:b.git"}
	]`))
	assert.True(t, errors.Is(err, ErrDuplicateRepo), "got %v", err)
}

func TestParseRepoList_Empty(t *testing.T) {
	repos, err := ParseRepoList([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestSkipPolicy(t *testing.T) {
	repo := domain.RepoDescriptor{ID: "1", Name: "reponame", Language: "python"}

	tests := []struct {
		name      string
		skipNames []string
		languages []string
		want      bool
	}{
		{"no limits", nil, nil, false},
		{"name listed", []string{"a", "reponame", "b"}, nil, true},
		{"name not listed", []string{"notreponame"}, nil, false},
		{"language not allowed", nil, []string{"notpython"}, true},
		{"language allowed", nil, []string{"python"}, false},
		{"language case insensitive", nil, []string{"Python"}, false},
		{"name wins over language", []string{"reponame"}, []string{"python"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSkipPolicy(tt.skipNames, tt.languages)
			assert.Equal(t, tt.want, p.ShouldSkip(repo))
		})
	}
}

func TestSkipPolicy_Nil(t *testing.T) {
	var p *SkipPolicy
	assert.False(t, p.ShouldSkip(domain.RepoDescriptor{Name: "x"}))
}
