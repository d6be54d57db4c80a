package gitrepos

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// repoDirPattern matches mirror directory names: "<name>_<numeric id>".
// The name is matched greedily so "test_other_12345" is ("test_other", "12345").
var repoDirPattern = regexp.MustCompile(`^(.+)_([0-9]+)$`)

// RepoDirName returns the mirror directory name of a repository.
func RepoDirName(name, id string) string {
	return name + "_" + id
}

// ParseRepoDirName splits a mirror directory name into repository name and id.
// Hidden directories never qualify.
//
// Examples:
//   - newrepo_123456 -> newrepo, 123456
//   - test_other_12345 -> test_other, 12345
//   - bbbb_test, aaaa-test, .444444_test3 -> no match
func ParseRepoDirName(dir string) (name, id string, ok bool) {
	if isHidden(dir) {
		return "", "", false
	}
	matches := repoDirPattern.FindStringSubmatch(dir)
	if matches == nil {
		return "", "", false
	}
	return matches[1], matches[2], true
}

// SearchRepoDir finds the mirror of (name, id) among dirs. The match is exact:
// no prefix or substring matching, and hidden entries are ignored.
func SearchRepoDir(dirs []string, name, id string) (string, bool) {
	if name == "" || id == "" {
		return "", false
	}
	want := RepoDirName(name, id)
	for _, dir := range dirs {
		if !isHidden(dir) && dir == want {
			return dir, true
		}
	}
	return "", false
}

// ListDirs returns the sorted names of the directories directly under root.
// A missing root yields an empty list.
func ListDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list working directory: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
