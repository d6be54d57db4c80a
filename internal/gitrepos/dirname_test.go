package gitrepos

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSearchRepoDir(t *testing.T) {
	dirs := []string{"test_1234", "test2_123", "test_test", "0test_123", ".test_123456", "test", "test_other_12345", "12345"}

	tests := []struct {
		name   string
		repo   string
		id     string
		want   string
		wantOK bool
	}{
		{"exact match", "test", "1234", "test_1234", true},
		{"other name", "test2", "1234", "", false},
		{"no prefix match", "test", "12345", "", false},
		{"hidden only", "test", "123456", "", false},
		{"empty name", "", "12345", "", false},
		{"name with underscore", "test_other", "12345", "test_other_12345", true},
		{"empty id", "test", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SearchRepoDir(dirs, tt.repo, tt.id)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("SearchRepoDir(%q, %q) = (%q, %v), want (%q, %v)", tt.repo, tt.id, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseRepoDirName(t *testing.T) {
	tests := []struct {
		dir      string
		wantName string
		wantID   string
		wantOK   bool
	}{
		{"newrepo_123456", "newrepo", "123456", true},
		{"test_other_12345", "test_other", "12345", true},
		{"object-library-service_6125572", "object-library-service", "6125572", true},
		{"aaaa-test", "", "", false},
		{"bbbb_test", "", "", false},
		{".444444_test3", "", "", false},
		{".hidden_123", "", "", false},
		{"_123", "", "", false},
		{"12345", "", "", false},
		{"name_", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			name, id, ok := ParseRepoDirName(tt.dir)
			if ok != tt.wantOK || name != tt.wantName || id != tt.wantID {
				t.Errorf("ParseRepoDirName(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.dir, name, id, ok, tt.wantName, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestRepoDirName(t *testing.T) {
	if got := RepoDirName("data-research", "7271766"); got != "data-research_7271766" {
		t.Errorf("RepoDirName() = %q", got)
	}
}

func TestListDirs(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"b_2", "a_1", ".git"} {
		if err := os.Mkdir(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "repo_list.json"), []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}

	dirs, err := ListDirs(root)
	if err != nil {
		t.Fatalf("ListDirs failed: %v", err)
	}

	expected := []string{".git", "a_1", "b_2"}
	if len(dirs) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, dirs)
	}
	for i := range expected {
		if dirs[i] != expected[i] {
			t.Errorf("dirs[%d] = %q, want %q", i, dirs[i], expected[i])
		}
	}
}

func TestListDirs_MissingRoot(t *testing.T) {
	dirs, err := ListDirs(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("ListDirs failed: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("Expected no dirs, got %v", dirs)
	}
}
