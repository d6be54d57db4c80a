package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sha1n/repoguard/internal/gitrepos"
	"github.com/sha1n/repoguard/internal/rules"
	"github.com/sha1n/repoguard/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPatch = `commit 1163bec4351413be354f7c88317647815b000000
Author: Dev <dev@example.com>

    Use today

diff --git a/app/views.py b/app/views.py
--- a/app/views.py
+++ b/app/views.py
@@ -1,3 +1,3 @@
 import datetime
-expiry = None
+expiry = datetime.date.today()
`

func testRuleSet(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.Compile(rules.Spec{
		"test::string_matches": {
			Diff: rules.DiffTagAdd,
			Line: []rules.LineSpec{{Match: `datetime\.date\.today\(\)`}},
		},
	})
	require.NoError(t, err)
	return rs
}

func workDirWith(t *testing.T, dirs ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range dirs {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0755))
	}
	return root
}

func TestRun_SkipsNonRepoEntries(t *testing.T) {
	mock := gitrepos.NewMockExecutor()
	root := workDirWith(t, "aaaa-test", "bbbb_test", ".444444_test3")
	d := NewDriver(gitrepos.NewGitClientWithExecutor(mock), tracker.NewStore(), testRuleSet(t), root, 0)

	report, err := d.Run(context.Background(), []string{"aaaa-test", "bbbb_test", ".444444_test3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"aaaa-test", "bbbb_test", ".444444_test3"}, report.Skipped)
	assert.Empty(t, mock.GetCalls())
}

func TestRun_SkipsFiles(t *testing.T) {
	mock := gitrepos.NewMockExecutor()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes_123"), []byte("x"), 0644))
	d := NewDriver(gitrepos.NewGitClientWithExecutor(mock), tracker.NewStore(), testRuleSet(t), root, 0)

	report, err := d.Run(context.Background(), []string{"notes_123"})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes_123"}, report.Skipped)
}

func TestRun_RegistersNewRepository(t *testing.T) {
	mock := gitrepos.NewMockExecutor()
	mock.AddResponse("git rev-list", []byte("c\nb\na\n"), nil)
	store := tracker.NewStore()
	root := workDirWith(t, "newrepo_123456")
	d := NewDriver(gitrepos.NewGitClientWithExecutor(mock), store, testRuleSet(t), root, 0)

	report, err := d.Run(context.Background(), []string{"newrepo_123456"})
	require.NoError(t, err)

	assert.Equal(t, []string{"123456"}, report.Registered)
	assert.Empty(t, report.Findings)
	assert.Empty(t, mock.CallsWithPrefix("git show"))

	status, ok := store.Status("123456")
	require.True(t, ok)
	assert.Equal(t, []string{"c", "b", "a"}, status.LastCheckedHashes)
}

func TestRun_ChecksUnseenCommits(t *testing.T) {
	mock := gitrepos.NewMockExecutor()
	mock.AddResponse("git rev-list", []byte("1163bec4351413be354f7c88317647815b000000\nb\na\n"), nil)
	mock.AddResponse("git show 1163bec4351413be354f7c88317647815b000000", []byte(testPatch), nil)
	store := tracker.NewStore()
	store.Commit("8742897", []string{"b", "a"})
	root := workDirWith(t, "zuisite_8742897")
	d := NewDriver(gitrepos.NewGitClientWithExecutor(mock), store, testRuleSet(t), root, 50)

	report, err := d.Run(context.Background(), []string{"zuisite_8742897"})
	require.NoError(t, err)

	revList := mock.CallsWithPrefix("git rev-list")
	require.Len(t, revList, 1)
	assert.Equal(t, []string{"rev-list", "--remotes", "--max-count=50"}, revList[0].Args)
	assert.Equal(t, filepath.Join(root, "zuisite_8742897"), revList[0].Dir)

	require.Len(t, report.Findings, 1)
	f := report.Findings[0]
	assert.Equal(t, "test::string_matches", f.RuleName)
	assert.Equal(t, "/app/views.py", f.FilePath)
	assert.Equal(t, "1163bec4351413be354f7c88317647815b000000", f.CommitHash)
	assert.Equal(t, "+expiry = datetime.date.today()", f.Line)
	assert.Equal(t, "zuisite_8742897", f.RepoDir)
	assert.Equal(t, "8742897", f.RepoID)
	assert.Equal(t, 1, report.Commits)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	mock := gitrepos.NewMockExecutor()
	mock.AddResponse("git rev-list", []byte("c\nb\na\n"), nil)
	mock.AddResponse("git show c", []byte(testPatch), nil)
	mock.AddResponse("git rev-list", []byte("c\nb\na\n"), nil)
	store := tracker.NewStore()
	store.Commit("1", []string{"b", "a"})
	root := workDirWith(t, "repo_1")
	d := NewDriver(gitrepos.NewGitClientWithExecutor(mock), store, testRuleSet(t), root, 0)

	first, err := d.Run(context.Background(), []string{"repo_1"})
	require.NoError(t, err)
	assert.Len(t, first.Findings, 1)

	second, err := d.Run(context.Background(), []string{"repo_1"})
	require.NoError(t, err)
	assert.Empty(t, second.Findings)
	assert.Len(t, mock.CallsWithPrefix("git show"), 1)
}

func TestRun_ShowFailureKeepsHistory(t *testing.T) {
	mock := gitrepos.NewMockExecutor()
	mock.AddResponse("git rev-list", []byte("d\nc\nb\na\n"), nil)
	mock.AddResponse("git show d", []byte(testPatch), nil)
	mock.AddResponse("git show c", nil, errors.New("bad object"))
	mock.AddResponse("git rev-list", []byte("x\n"), nil)
	store := tracker.NewStore()
	store.Commit("1", []string{"b", "a"})
	store.Commit("2", []string{"x"})
	root := workDirWith(t, "broken_1", "other_2")
	d := NewDriver(gitrepos.NewGitClientWithExecutor(mock), store, testRuleSet(t), root, 0)

	report, err := d.Run(context.Background(), []string{"broken_1", "other_2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"1"}, report.Failed)
	assert.Equal(t, []string{"2"}, report.Scanned)
	assert.Empty(t, report.Findings, "partial findings of a failed repository are discarded")

	status, _ := store.Status("1")
	assert.Equal(t, []string{"b", "a"}, status.LastCheckedHashes)
}

func TestRun_RevListFailure(t *testing.T) {
	mock := gitrepos.NewMockExecutor()
	mock.AddResponse("git rev-list", nil, errors.New("not a git repository"))
	store := tracker.NewStore()
	root := workDirWith(t, "repo_1")
	d := NewDriver(gitrepos.NewGitClientWithExecutor(mock), store, testRuleSet(t), root, 0)

	report, err := d.Run(context.Background(), []string{"repo_1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, report.Failed)
	assert.True(t, store.Has("1"))
}

func TestRun_Cancelled(t *testing.T) {
	mock := gitrepos.NewMockExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDriver(gitrepos.NewGitClientWithExecutor(mock), tracker.NewStore(), testRuleSet(t), t.TempDir(), 0)

	_, err := d.Run(ctx, []string{"repo_1"})
	assert.ErrorIs(t, err, context.Canceled)
}
