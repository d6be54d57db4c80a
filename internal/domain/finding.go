package domain

import "strings"

// NamespaceSeparator separates a rule's namespace from its identifier ("xxe::simple").
const NamespaceSeparator = "::"

// RepoDescriptor identifies one tracked repository.
// It is immutable for the duration of a run.
type RepoDescriptor struct {
	ID        string `json:"id" validate:"required,numeric"`
	Name      string `json:"name" validate:"required,excludes=/"`
	RemoteURL string `json:"remoteUrl" validate:"required"`
	Language  string `json:"language"`
}

// DirName returns the local mirror directory name, "<name>_<id>".
func (r RepoDescriptor) DirName() string {
	return r.Name + "_" + r.ID
}

// DiffSide tells which side of a unified diff a line belongs to.
type DiffSide int

const (
	// SideNeutral covers context lines, blank lines and metadata.
	SideNeutral DiffSide = iota
	// SideAdd is a line starting with '+'.
	SideAdd
	// SideRemove is a line starting with '-'.
	SideRemove
)

func (s DiffSide) String() string {
	switch s {
	case SideAdd:
		return "add"
	case SideRemove:
		return "del"
	default:
		return "neutral"
	}
}

// DiffLine is one classified line of a commit patch.
type DiffLine struct {
	// FilePath is the path of the file the line belongs to, rooted with a
	// leading slash ("/pkg/mod.py"). Empty until the first file header.
	FilePath string
	Side     DiffSide
	// Text is the raw line including its diff marker.
	Text string
}

// Finding is one rule match against one diff line in one commit.
type Finding struct {
	RuleName   string `json:"rule"`
	FilePath   string `json:"file_path"`
	CommitHash string `json:"commit"`
	Line       string `json:"line"`
	RepoDir    string `json:"repo_dir"`
	RepoID     string `json:"repo_id"`
}

// Namespace returns the rule namespace of the finding, see RuleNamespace.
func (f Finding) Namespace() string {
	return RuleNamespace(f.RuleName)
}

// RuleNamespace returns the text before the first "::" of a rule name, or ""
// when the name has no namespace.
func RuleNamespace(ruleName string) string {
	ns, _, found := strings.Cut(ruleName, NamespaceSeparator)
	if !found {
		return ""
	}
	return ns
}
