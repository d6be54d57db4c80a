package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/repoguard/internal/domain"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	// IndexPath is the findings index. Empty disables search_findings.
	IndexPath string
	// StatusPath is the repository status file read by repo_status.
	StatusPath string
	// Repos resolves repository names for repo_status. Optional.
	Repos []domain.RepoDescriptor
}

// CreateServer creates the MCP server and registers the query tools
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.IndexPath != "" {
		RegisterSearchFindingsTool(s, cfg.IndexPath)
	}
	RegisterRepoStatusTool(s, cfg.StatusPath, cfg.Repos)

	return s
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
