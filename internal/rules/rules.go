// Package rules compiles diff-aware rule specifications and evaluates them
// against classified diff lines.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sha1n/repoguard/internal/diff"
	"github.com/sha1n/repoguard/internal/domain"
)

// Side restricts which diff lines a rule looks at.
type Side int

const (
	// SideAny considers every line regardless of its diff marker.
	SideAny Side = iota
	// SideAdd considers added lines only.
	SideAdd
	// SideRemove considers removed lines only.
	SideRemove
)

// Diff side tags of the rule specification format.
const (
	DiffTagAdd    = "add"
	DiffTagRemove = "del"
)

var (
	// ErrInvalidRuleName indicates a rule name that is not "namespace::identifier".
	ErrInvalidRuleName = errors.New("rule name must have the form namespace::identifier")

	// ErrInvalidPattern indicates a line matcher that does not compile.
	ErrInvalidPattern = errors.New("invalid line pattern")
)

// LineSpec is one line matcher of a rule specification.
type LineSpec struct {
	Match string `yaml:"match" json:"match" validate:"required"`
}

// RuleSpec is the loosely typed, on-disk form of a rule.
type RuleSpec struct {
	Diff        string     `yaml:"diff,omitempty" json:"diff,omitempty" validate:"omitempty,oneof=add del"`
	Line        []LineSpec `yaml:"line" json:"line" validate:"required,min=1,dive"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
}

// Spec maps rule names to their specification.
type Spec map[string]RuleSpec

// Rule is a compiled, immutable rule.
type Rule struct {
	Name        string
	Side        Side
	Description string
	matchers    []*regexp.Regexp
}

// Matches reports whether the rule fires on the given line.
// Side-restricted rules search the line body without its diff marker, so a
// "del" rule written as "^-- a/" targets the "--- a/" file header; rules with
// no side restriction search the raw line.
func (r *Rule) Matches(line domain.DiffLine) bool {
	text := line.Text
	switch r.Side {
	case SideAdd:
		if line.Side != domain.SideAdd {
			return false
		}
		text = text[1:]
	case SideRemove:
		if line.Side != domain.SideRemove {
			return false
		}
		text = text[1:]
	}

	for _, m := range r.matchers {
		if m.MatchString(text) {
			return true
		}
	}
	return false
}

// RuleSet is the compiled set of rules used for a run.
type RuleSet struct {
	rules  []*Rule
	filter *PathFilter
}

// Option configures a RuleSet.
type Option func(*RuleSet)

// WithPathFilter drops findings on files the filter excludes.
func WithPathFilter(f *PathFilter) Option {
	return func(rs *RuleSet) {
		rs.filter = f
	}
}

var validate = validator.New()

// Compile validates the specification and compiles every pattern eagerly.
// Rules are ordered by name so evaluation order is deterministic.
func Compile(spec Spec, opts ...Option) (*RuleSet, error) {
	names := make([]string, 0, len(spec))
	for name := range spec {
		names = append(names, name)
	}
	sort.Strings(names)

	rs := &RuleSet{rules: make([]*Rule, 0, len(names))}
	for _, opt := range opts {
		opt(rs)
	}

	for _, name := range names {
		rule, err := compileRule(name, spec[name])
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}
		rs.rules = append(rs.rules, rule)
	}

	return rs, nil
}

func compileRule(name string, rs RuleSpec) (*Rule, error) {
	ns, id, found := strings.Cut(name, domain.NamespaceSeparator)
	if !found || ns == "" || id == "" {
		return nil, ErrInvalidRuleName
	}

	if err := validate.Struct(rs); err != nil {
		return nil, err
	}

	rule := &Rule{
		Name:        name,
		Description: rs.Description,
		matchers:    make([]*regexp.Regexp, 0, len(rs.Line)),
	}

	switch rs.Diff {
	case DiffTagAdd:
		rule.Side = SideAdd
	case DiffTagRemove:
		rule.Side = SideRemove
	default:
		rule.Side = SideAny
	}

	for _, line := range rs.Line {
		re, err := regexp.Compile(line.Match)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, line.Match, err)
		}
		rule.matchers = append(rule.matchers, re)
	}

	return rule, nil
}

// Rules returns the compiled rules in evaluation order.
func (rs *RuleSet) Rules() []*Rule {
	return rs.rules
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Evaluate runs every rule over every line and returns the findings in line
// order. A rule fires at most once per line; several rules may fire on the
// same line.
func (rs *RuleSet) Evaluate(lines []domain.DiffLine, commitHash, repoDir, repoID string) []domain.Finding {
	var findings []domain.Finding

	for _, line := range lines {
		if rs.filter != nil && line.FilePath != "" && rs.filter.ShouldExclude(line.FilePath) {
			continue
		}

		for _, rule := range rs.rules {
			if !rule.Matches(line) {
				continue
			}
			findings = append(findings, domain.Finding{
				RuleName:   rule.Name,
				FilePath:   line.FilePath,
				CommitHash: commitHash,
				Line:       line.Text,
				RepoDir:    repoDir,
				RepoID:     repoID,
			})
		}
	}

	return findings
}

// Check parses a raw patch and evaluates it.
func (rs *RuleSet) Check(patch, commitHash, repoDir, repoID string) []domain.Finding {
	return rs.Evaluate(diff.Parse(patch), commitHash, repoDir, repoID)
}
