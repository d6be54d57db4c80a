package diff

import (
	"os"
	"strings"
	"testing"

	"github.com/sha1n/repoguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadPatch(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/views.patch")
	require.NoError(t, err)
	return string(data)
}

func TestParse_Empty(t *testing.T) {
	assert.Empty(t, Parse(""))
}

func TestParse_PreservesEveryLineVerbatim(t *testing.T) {
	raw := loadPatch(t)
	lines := Parse(raw)

	expected := strings.Split(strings.TrimSuffix(raw, "\n"), "\n")
	require.Len(t, lines, len(expected))
	for i, line := range lines {
		assert.Equal(t, expected[i], line.Text, "line %d", i)
	}
}

func TestParse_HeaderSetsPathForFollowingLines(t *testing.T) {
	lines := Parse(loadPatch(t))

	var inViews bool
	for _, line := range lines {
		if line.Text == "--- a/zuisite/my/views.py" {
			inViews = true
		}
		if strings.HasPrefix(line.Text, "diff --git a/zuisite/my/urls.py") {
			// the next header has not been seen yet
			assert.Equal(t, "/zuisite/my/views.py", line.FilePath)
			inViews = false
		}
		if inViews {
			assert.Equal(t, "/zuisite/my/views.py", line.FilePath, "line %q", line.Text)
		}
	}

	last := lines[len(lines)-1]
	assert.Equal(t, "/zuisite/my/urls.py", last.FilePath)
}

func TestParse_HeaderLineCarriesItsOwnPath(t *testing.T) {
	raw := "--- a/pkg/mod.py\n+++ b/pkg/mod.py\n-old\n+new\n context"
	lines := Parse(raw)
	require.Len(t, lines, 5)

	for _, line := range lines {
		assert.Equal(t, "/pkg/mod.py", line.FilePath)
	}
	assert.Equal(t, domain.SideRemove, lines[0].Side)
	assert.Equal(t, domain.SideAdd, lines[1].Side)
	assert.Equal(t, domain.SideRemove, lines[2].Side)
	assert.Equal(t, domain.SideAdd, lines[3].Side)
	assert.Equal(t, domain.SideNeutral, lines[4].Side)
}

func TestParse_MetadataBeforeFirstHeaderHasNoPath(t *testing.T) {
	lines := Parse(loadPatch(t))
	require.NotEmpty(t, lines)

	assert.Equal(t, "", lines[0].FilePath)
	assert.Equal(t, domain.SideNeutral, lines[0].Side)
}

func TestParse_MalformedDiff(t *testing.T) {
	lines := Parse("+added\n-removed\nsomething else")
	require.Len(t, lines, 3)

	for _, line := range lines {
		assert.Equal(t, "", line.FilePath)
	}
	assert.Equal(t, domain.SideAdd, lines[0].Side)
	assert.Equal(t, domain.SideRemove, lines[1].Side)
	assert.Equal(t, domain.SideNeutral, lines[2].Side)
}

func TestParse_DevNullDoesNotChangePath(t *testing.T) {
	raw := "--- /dev/null\n+++ b/new/file.go\n+package file"
	lines := Parse(raw)
	require.Len(t, lines, 3)

	assert.Equal(t, "", lines[0].FilePath)
	assert.Equal(t, "/new/file.go", lines[1].FilePath)
	assert.Equal(t, "/new/file.go", lines[2].FilePath)
}

func TestParse_MnemonicPrefixAndTabTerminator(t *testing.T) {
	lines := Parse("--- i/docs/read me.md\t\n+++ w/docs/read me.md\t")
	require.Len(t, lines, 2)

	assert.Equal(t, "/docs/read me.md", lines[0].FilePath)
	assert.Equal(t, "/docs/read me.md", lines[1].FilePath)
}

func TestParse_CRLF(t *testing.T) {
	lines := Parse("--- a/x.txt\r\n+y\r\n")
	require.Len(t, lines, 2)

	assert.Equal(t, "/x.txt", lines[0].FilePath)
	assert.Equal(t, "+y", lines[1].Text)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want domain.DiffSide
	}{
		{"+added", domain.SideAdd},
		{"+++ b/file", domain.SideAdd},
		{"-removed", domain.SideRemove},
		{"--- a/file", domain.SideRemove},
		{" context", domain.SideNeutral},
		{"", domain.SideNeutral},
		{"@@ -1 +1 @@", domain.SideNeutral},
		{"diff --git a/x b/x", domain.SideNeutral},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.text), "Classify(%q)", tt.text)
	}
}
