package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/repoguard/internal/findings"
)

// SearchFindingsArgument defines search_findings parameters.
type SearchFindingsArgument struct {
	Query      string `json:"query,omitempty" jsonschema:"Text to match against the offending line"`
	Rule       string `json:"rule,omitempty" jsonschema:"Rule name (xxe::simple) or namespace wildcard (xxe::*)"`
	Repository string `json:"repository,omitempty" jsonschema:"Mirror directory name (name_id) or repository id"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of results"`
}

// SearchFindingsHandler handles the search_findings MCP tool.
type SearchFindingsHandler struct {
	indexPath string
}

// NewSearchFindingsHandler creates a handler over the index at indexPath.
func NewSearchFindingsHandler(indexPath string) *SearchFindingsHandler {
	return &SearchFindingsHandler{indexPath: indexPath}
}

// Handle runs the search and returns formatted results. The index is opened
// read-only per call so a concurrent scan can keep writing to it between calls.
func (h *SearchFindingsHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchFindingsArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" && strings.TrimSpace(args.Rule) == "" && strings.TrimSpace(args.Repository) == "" {
		return errorResult("At least one of query, rule or repository is required"), nil, nil
	}

	if !findings.Exists(h.indexPath) {
		return textResult("No findings have been recorded yet."), nil, nil
	}

	idx, err := findings.OpenReadOnly(h.indexPath)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to access findings index: %s", err)), nil, nil
	}
	defer func() { _ = idx.Close() }()

	results, err := idx.Search(findings.Query{
		Text:  args.Query,
		Rule:  args.Rule,
		Repo:  args.Repository,
		Limit: args.Limit,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return textResult(formatFindings(results, args)), nil, nil
}

func describeQuery(args SearchFindingsArgument) string {
	var parts []string
	if args.Query != "" {
		parts = append(parts, fmt.Sprintf("query '%s'", args.Query))
	}
	if args.Rule != "" {
		parts = append(parts, fmt.Sprintf("rule '%s'", args.Rule))
	}
	if args.Repository != "" {
		parts = append(parts, fmt.Sprintf("repository '%s'", args.Repository))
	}
	return strings.Join(parts, ", ")
}

func formatFindings(results *findings.Results, args SearchFindingsArgument) string {
	if results.Total == 0 {
		return fmt.Sprintf("No findings for %s", describeQuery(args))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d findings for %s:\n\n", results.Total, describeQuery(args))

	for i, hit := range results.Hits {
		doc := hit.Document
		fmt.Fprintf(&sb, "### %d. %s in %s:%s\n", i+1, doc.Rule, doc.Repo, doc.FilePath)
		fmt.Fprintf(&sb, "**Commit**: %s\n", doc.Commit)
		if !doc.DetectedAt.IsZero() {
			fmt.Fprintf(&sb, "**Detected**: %s (run %s)\n", doc.DetectedAt.Format("2006-01-02 15:04:05 MST"), doc.RunID)
		}
		sb.WriteString("```\n")
		sb.WriteString(doc.Line)
		sb.WriteString("\n```\n\n")
	}

	if results.Total > uint64(len(results.Hits)) {
		fmt.Fprintf(&sb, "... and %d more findings\n", results.Total-uint64(len(results.Hits)))
	}

	return sb.String()
}

// RegisterSearchFindingsTool registers search_findings with an MCP server.
func RegisterSearchFindingsTool(server *mcp.Server, indexPath string) {
	handler := NewSearchFindingsHandler(indexPath)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_findings",
		Description: "Search the history of rule matches reported on commits of the tracked repositories",
	}, handler.Handle)
}
