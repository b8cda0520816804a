package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/jarvis/internal/storage"
	syncpkg "github.com/kalambet/jarvis/internal/sync"
)

// MCPStore is the persistence surface the MCP layer needs.
type MCPStore interface {
	SearchDocuments(userID, query string, limit int) ([]storage.Document, error)
	ListCloudConnections(userID string) ([]storage.CloudConnection, error)
}

// MCPSyncer reports sync state for a connection.
type MCPSyncer interface {
	Status(connectionID string) (syncpkg.Status, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store MCPStore
	Sync  MCPSyncer
}

// NewMCPServer creates an MCP server exposing the knowledge base and sync
// state to MCP clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"jarvis",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("jarvis — personal assistant knowledge base and cloud storage sync."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("knowledge_search",
			mcp.WithDescription("Search the user's ingested documents and return matching snippets."),
			mcp.WithString("user_id", mcp.Description("User id owning the documents"), mcp.Required()),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpKnowledgeSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("sync_status",
			mcp.WithDescription("Report the current sync state of a cloud storage connection."),
			mcp.WithString("connection_id", mcp.Description("Cloud connection id"), mcp.Required()),
		),
		mcpSyncStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("list_connections",
			mcp.WithDescription("List the user's cloud storage connections."),
			mcp.WithString("user_id", mcp.Description("User id owning the connections"), mcp.Required()),
		),
		mcpListConnections(deps),
	)

	return s
}

func mcpKnowledgeSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		docs, err := deps.Store.SearchDocuments(userID, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(docs) == 0 {
			return mcpText("[]"), nil
		}

		type docResult struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Type    string `json:"type"`
			Snippet string `json:"snippet"`
		}

		results := make([]docResult, len(docs))
		for i, d := range docs {
			results[i] = docResult{
				ID:      d.ID,
				Name:    d.OriginalName,
				Type:    d.FileType,
				Snippet: truncateRunes(d.Content, 300),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSyncStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connectionID, err := req.RequireString("connection_id")
		if err != nil {
			return mcpError("connection_id is required"), nil
		}

		status, err := deps.Sync.Status(connectionID)
		if err != nil {
			return mcpError(fmt.Sprintf("status lookup failed: %v", err)), nil
		}

		b, err := json.Marshal(syncStatusView(status))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListConnections(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		conns, err := deps.Store.ListCloudConnections(userID)
		if err != nil {
			return mcpError(fmt.Sprintf("listing connections failed: %v", err)), nil
		}

		type connResult struct {
			ID             string `json:"id"`
			Provider       string `json:"provider"`
			Name           string `json:"name"`
			SyncEnabled    bool   `json:"sync_enabled"`
			LastSyncStatus string `json:"last_sync_status,omitempty"`
			LastSyncAt     string `json:"last_sync_at,omitempty"`
		}

		results := make([]connResult, len(conns))
		for i, c := range conns {
			results[i] = connResult{
				ID:             c.ID,
				Provider:       c.Provider,
				Name:           c.Name,
				SyncEnabled:    c.SyncEnabled,
				LastSyncStatus: c.LastSyncStatus,
			}
			if !c.LastSyncAt.IsZero() {
				results[i].LastSyncAt = c.LastSyncAt.Format(time.RFC3339)
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal connections: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
