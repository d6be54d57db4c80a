package gitrepos

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewGitClient(t *testing.T) {
	client := NewGitClient()
	if client.executor == nil {
		t.Error("Expected executor to be set")
	}
}

func TestNewGitClientWithExecutor(t *testing.T) {
	mock := NewMockExecutor()
	client := NewGitClientWithExecutor(mock)

	if client.executor != mock {
		t.Error("Expected custom executor to be used")
	}
}

func assertArgs(t *testing.T, call ExecutorCall, expected ...string) {
	t.Helper()
	if call.Name != "git" {
		t.Errorf("Expected git command, got %s", call.Name)
	}
	if len(call.Args) != len(expected) {
		t.Fatalf("Expected %d args, got %d: %v", len(expected), len(call.Args), call.Args)
	}
	for i, arg := range expected {
		if call.Args[i] != arg {
			t.Errorf("Arg[%d] = %q, want %q", i, call.Args[i], arg)
		}
	}
}

func TestGitClient_Clone(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git clone", []byte(""), nil)

	client := NewGitClientWithExecutor(mock)
	err := client.Clone(context.Background(), "git@github.com:prezi/project-startup.git", "/work/project-startup_7092651")
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	call := mock.MustGetLastCall(t)
	if call.Dir != "" {
		t.Errorf("Expected clone to run without a working dir, got %q", call.Dir)
	}
	assertArgs(t, call, "clone", "git@github.com:prezi/project-startup.git", "/work/project-startup_7092651")
}

func TestGitClient_Clone_Error(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git clone", nil, errors.New("authentication failed"))

	client := NewGitClientWithExecutor(mock)
	err := client.Clone(context.Background(), "git@github.com:org/repo.git", "/tmp/dest")
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "git clone failed") {
		t.Errorf("Expected 'git clone failed' in error, got: %v", err)
	}
}

func TestGitClient_Pull(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git pull", []byte("Already up to date.\n"), nil)

	client := NewGitClientWithExecutor(mock)
	if err := client.Pull(context.Background(), "/work/repo_1"); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	call := mock.MustGetLastCall(t)
	if call.Dir != "/work/repo_1" {
		t.Errorf("Expected dir /work/repo_1, got %s", call.Dir)
	}
	assertArgs(t, call, "pull")
}

func TestGitClient_Pull_Error(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git pull", nil, errors.New("merge conflict"))

	client := NewGitClientWithExecutor(mock)
	err := client.Pull(context.Background(), "/work/repo_1")
	if err == nil || !strings.Contains(err.Error(), "git pull failed") {
		t.Errorf("Expected 'git pull failed' error, got: %v", err)
	}
}

func TestGitClient_RevList(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git rev-list", []byte("1163bec4351413be354f7c88317647815b000000\nAAAAbec4351413be354f7c88317647815b009999\n"), nil)

	client := NewGitClientWithExecutor(mock)
	hashes, err := client.RevList(context.Background(), "/work/reponameABCD_123123", 100)
	if err != nil {
		t.Fatalf("RevList failed: %v", err)
	}

	call := mock.MustGetLastCall(t)
	if call.Dir != "/work/reponameABCD_123123" {
		t.Errorf("Expected dir /work/reponameABCD_123123, got %s", call.Dir)
	}
	assertArgs(t, call, "rev-list", "--remotes", "--max-count=100")

	expected := []string{"1163bec4351413be354f7c88317647815b000000", "AAAAbec4351413be354f7c88317647815b009999"}
	if len(hashes) != len(expected) {
		t.Fatalf("Expected %d hashes, got %d: %v", len(expected), len(hashes), hashes)
	}
	for i := range expected {
		if hashes[i] != expected[i] {
			t.Errorf("hashes[%d] = %q, want %q", i, hashes[i], expected[i])
		}
	}
}

func TestGitClient_RevList_Empty(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git rev-list", []byte("\n"), nil)

	client := NewGitClientWithExecutor(mock)
	hashes, err := client.RevList(context.Background(), "/work/repo_1", 100)
	if err != nil {
		t.Fatalf("RevList failed: %v", err)
	}
	if len(hashes) != 0 {
		t.Errorf("Expected no hashes, got %v", hashes)
	}
}

func TestGitClient_RevList_Error(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git rev-list", nil, errors.New("not a git repository"))

	client := NewGitClientWithExecutor(mock)
	_, err := client.RevList(context.Background(), "/work/repo_1", 100)
	if err == nil || !strings.Contains(err.Error(), "git rev-list failed") {
		t.Errorf("Expected 'git rev-list failed' error, got: %v", err)
	}
}

func TestGitClient_Show(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git show abc123", []byte("--- a/x\n+++ b/x\n+y\n"), nil)

	client := NewGitClientWithExecutor(mock)
	patch, err := client.Show(context.Background(), "/work/repo_1", "abc123")
	if err != nil {
		t.Fatalf("Show failed: %v", err)
	}
	if patch != "--- a/x\n+++ b/x\n+y\n" {
		t.Errorf("Unexpected patch: %q", patch)
	}

	call := mock.MustGetLastCall(t)
	if call.Dir != "/work/repo_1" {
		t.Errorf("Expected dir /work/repo_1, got %s", call.Dir)
	}
	assertArgs(t, call, "show", "abc123")
}

func TestGitClient_Show_Error(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git show", nil, errors.New("bad object"))

	client := NewGitClientWithExecutor(mock)
	_, err := client.Show(context.Background(), "/work/repo_1", "abc123")
	if err == nil || !strings.Contains(err.Error(), "git show abc123 failed") {
		t.Errorf("Expected 'git show abc123 failed' error, got: %v", err)
	}
}

func TestDefaultExecutor_Run(t *testing.T) {
	e := &DefaultExecutor{}
	out, err := e.Run(context.Background(), t.TempDir(), "git", "--version")
	if err != nil {
		t.Skipf("git not available: %v", err)
	}
	if !strings.HasPrefix(string(out), "git version") {
		t.Errorf("Unexpected output: %q", out)
	}
}

func TestDefaultExecutor_RunError(t *testing.T) {
	e := &DefaultExecutor{}
	_, err := e.Run(context.Background(), t.TempDir(), "git", "rev-parse", "--git-dir")
	if err == nil {
		t.Skip("temp dir unexpectedly inside a git repository")
	}
}
