package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/repoguard/internal/domain"
	"github.com/sha1n/repoguard/internal/tracker"
)

// RepoStatusArgument defines repo_status parameters.
type RepoStatusArgument struct {
	Repository string `json:"repository,omitempty" jsonschema:"Repository id or name; all repositories when empty"`
}

// RepoStatusHandler handles the repo_status MCP tool.
type RepoStatusHandler struct {
	statusPath string
	names      map[string]string
}

// NewRepoStatusHandler creates a handler over the status file at statusPath.
func NewRepoStatusHandler(statusPath string, repos []domain.RepoDescriptor) *RepoStatusHandler {
	names := make(map[string]string, len(repos))
	for _, r := range repos {
		names[r.ID] = r.Name
	}
	return &RepoStatusHandler{statusPath: statusPath, names: names}
}

// Handle reports the tracked state of one or all repositories.
func (h *RepoStatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args RepoStatusArgument) (*mcp.CallToolResult, any, error) {
	store, err := tracker.Load(h.statusPath)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to read repository status: %s", err)), nil, nil
	}

	ids := store.RepoIDs()
	if want := strings.TrimSpace(args.Repository); want != "" {
		ids = h.filter(ids, want)
		if len(ids) == 0 {
			return errorResult(fmt.Sprintf("Unknown repository: %s", want)), nil, nil
		}
	}

	if len(ids) == 0 {
		return textResult("No repositories are tracked yet."), nil, nil
	}

	var sb strings.Builder
	for _, id := range ids {
		status, _ := store.Status(id)
		h.writeStatus(&sb, id, status)
	}
	return textResult(sb.String()), nil, nil
}

func (h *RepoStatusHandler) filter(ids []string, want string) []string {
	var result []string
	for _, id := range ids {
		if id == want || h.names[id] == want {
			result = append(result, id)
		}
	}
	return result
}

func (h *RepoStatusHandler) writeStatus(sb *strings.Builder, id string, status tracker.RepoStatus) {
	if name := h.names[id]; name != "" {
		fmt.Fprintf(sb, "### %s (%s)\n", name, id)
	} else {
		fmt.Fprintf(sb, "### %s\n", id)
	}

	switch {
	case !status.Baselined:
		sb.WriteString("**Last checked**: none (baseline pending)\n")
	case len(status.LastCheckedHashes) == 0:
		sb.WriteString("**Last checked**: none (no commits yet)\n")
	default:
		fmt.Fprintf(sb, "**Last checked**: %s\n", status.LastCheckedHashes[0])
	}
	fmt.Fprintf(sb, "**Window**: %d commits\n", len(status.LastCheckedHashes))
	if !status.LastSynced.IsZero() {
		fmt.Fprintf(sb, "**Last synced**: %s\n", status.LastSynced.Format("2006-01-02 15:04:05 MST"))
	}
	if status.Error != "" {
		fmt.Fprintf(sb, "**Error**: %s\n", status.Error)
	}
	sb.WriteString("\n")
}

// RegisterRepoStatusTool registers repo_status with an MCP server.
func RegisterRepoStatusTool(server *mcp.Server, statusPath string, repos []domain.RepoDescriptor) {
	handler := NewRepoStatusHandler(statusPath, repos)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "repo_status",
		Description: "Show the last checked commit, window size, last sync time and sync error of tracked repositories",
	}, handler.Handle)
}
