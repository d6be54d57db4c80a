// Package diff classifies the lines of a unified diff as produced by `git show`.
package diff

import (
	"regexp"
	"strings"

	"github.com/sha1n/repoguard/internal/domain"
)

// fileHeaderPattern matches "--- a/path" and "+++ b/path" headers. git writes
// one- or two-letter source prefixes (a/, b/, and c/, i/, w/, o/ with
// diff.mnemonicPrefix).
var fileHeaderPattern = regexp.MustCompile(`^(?:---|\+\+\+) [a-z]{1,2}/(.+)$`)

// Parse splits a patch into classified lines, tracking the current file path.
// A header line updates the path before it is classified, so the header's own
// record already carries the new path. Malformed input is not an error: every
// line is still returned, with an empty path until a header shows up.
func Parse(raw string) []domain.DiffLine {
	if raw == "" {
		return nil
	}

	raw = strings.TrimSuffix(raw, "\n")
	rawLines := strings.Split(raw, "\n")
	lines := make([]domain.DiffLine, 0, len(rawLines))

	currentPath := ""
	for _, text := range rawLines {
		text = strings.TrimSuffix(text, "\r")

		if path, ok := headerPath(text); ok {
			currentPath = path
		}

		lines = append(lines, domain.DiffLine{
			FilePath: currentPath,
			Side:     Classify(text),
			Text:     text,
		})
	}

	return lines
}

// Classify returns the diff side of a single raw line by its first character.
func Classify(text string) domain.DiffSide {
	if text == "" {
		return domain.SideNeutral
	}
	switch text[0] {
	case '+':
		return domain.SideAdd
	case '-':
		return domain.SideRemove
	default:
		return domain.SideNeutral
	}
}

// headerPath returns the leading-slash path named by a file header line.
func headerPath(text string) (string, bool) {
	matches := fileHeaderPattern.FindStringSubmatch(text)
	if matches == nil {
		return "", false
	}

	// git terminates names containing spaces with a tab
	path, _, _ := strings.Cut(matches[1], "\t")
	return "/" + path, true
}
