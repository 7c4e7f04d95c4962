package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sells-group/vendor-research/internal/dedupe"
	"github.com/sells-group/vendor-research/internal/pipeline"
	"github.com/sells-group/vendor-research/internal/store"
)

// MCPServer exposes research, cleanup and listing as MCP tools. Tool calls
// share the HTTP handlers' per-scope locks.
func (s *Server) MCPServer(version string) *server.MCPServer {
	deps, locks := s.deps, s.locks
	m := server.NewMCPServer(
		"vendor-research",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Researches construction vendors for a project and keeps the vendor list free of duplicates."),
		server.WithRecovery(),
	)

	m.AddTool(
		mcp.NewTool("research_vendors",
			mcp.WithDescription("Research vendors of one category for a project, extract them and insert the ones not already stored."),
			mcp.WithString("project_id", mcp.Description("Project id"), mcp.Required()),
			mcp.WithString("category_name", mcp.Description("Category name or catalog key, e.g. architects")),
			mcp.WithString("category_id", mcp.Description("Existing category id; overrides category_name")),
			mcp.WithString("location", mcp.Description("\"City, ST\"; defaults to the project location")),
			mcp.WithString("zip_code", mcp.Description("Zip code; defaults to the project zip")),
			mcp.WithString("specialization", mcp.Description("Specialization value or label")),
			mcp.WithString("custom_context", mcp.Description("Additional requirements")),
		),
		mcpResearch(deps, locks),
	)

	m.AddTool(
		mcp.NewTool("deduplicate_vendors",
			mcp.WithDescription("Find duplicate vendors in a project (optionally one category) and remove them unless dry_run is set."),
			mcp.WithString("project_id", mcp.Description("Project id"), mcp.Required()),
			mcp.WithString("category_id", mcp.Description("Category id; empty sweeps each category of the project separately")),
			mcp.WithBoolean("dry_run", mcp.Description("Report without deleting (default true)")),
		),
		mcpDeduplicate(deps, locks),
	)

	m.AddTool(
		mcp.NewTool("list_vendors",
			mcp.WithDescription("List stored vendors of a project."),
			mcp.WithString("project_id", mcp.Description("Project id"), mcp.Required()),
			mcp.WithString("category_id", mcp.Description("Category id")),
			mcp.WithString("order", mcp.Description("created_at (default) or rating")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of vendors")),
		),
		mcpListVendors(deps),
	)

	return m
}

func mcpResearch(deps Deps, locks *pipeline.ScopeLocks) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Pipeline == nil {
			return mcpError("research pipeline is not configured"), nil
		}
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}
		r := pipeline.Request{
			ProjectID:      projectID,
			CategoryID:     req.GetString("category_id", ""),
			CategoryName:   req.GetString("category_name", ""),
			Location:       req.GetString("location", ""),
			ZipCode:        req.GetString("zip_code", ""),
			Specialization: req.GetString("specialization", ""),
			CustomContext:  req.GetString("custom_context", ""),
		}

		unlock := locks.Lock(pipeline.ScopeKey(r.ProjectID, r.CategoryID, r.CategoryName))
		defer unlock()

		res, err := deps.Pipeline.Run(context.WithoutCancel(ctx), r, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("research failed: %v", err)), nil
		}
		return mcpJSON(map[string]any{
			"message":    res.Message(),
			"staging_id": res.StagingID,
			"found":      res.Found,
			"duplicates": res.Duplicates,
			"count":      res.Inserted,
			"vendors":    res.Vendors,
		})
	}
}

func mcpDeduplicate(deps Deps, locks *pipeline.ScopeLocks) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}
		categoryID := req.GetString("category_id", "")

		unlock := locks.Lock(pipeline.ScopeKey(projectID, categoryID, ""))
		defer unlock()

		res, err := dedupe.Cleanup(ctx, deps.Store, dedupe.CleanupRequest{
			ProjectID:  projectID,
			CategoryID: categoryID,
			DryRun:     req.GetBool("dry_run", true),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("deduplication failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpListVendors(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}
		order := store.VendorOrder(req.GetString("order", string(store.OrderCreated)))
		if order != store.OrderCreated && order != store.OrderRating {
			return mcpError("order must be created_at or rating"), nil
		}

		vendors, err := deps.Store.ListVendors(ctx, store.VendorFilter{
			ProjectID:  projectID,
			CategoryID: req.GetString("category_id", ""),
			Order:      order,
			Limit:      req.GetInt("limit", 0),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list vendors: %v", err)), nil
		}
		return mcpJSON(map[string]any{"count": len(vendors), "vendors": vendors})
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
