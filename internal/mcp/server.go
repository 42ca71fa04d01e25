package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gauravmishra2744/Awaaj/internal/issues"
	"github.com/gauravmishra2744/Awaaj/internal/models"
	"github.com/gauravmishra2744/Awaaj/internal/store"
)

// Server exposes the issue service as MCP tools.
type Server struct {
	svc     *issues.Service
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *issues.Service, version string) *Server {
	return &Server{svc: svc, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("awaaz", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.reportIssueTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.getIssueTool())
	srv.AddTool(s.updateStatusTool())
	srv.AddTool(s.upvoteIssueTool())
	srv.AddTool(s.overviewTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// issueOut is the compact issue view returned to MCP clients.
type issueOut struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Category      string               `json:"category"`
	Status        models.IssueStatus   `json:"status"`
	PriorityLevel models.PriorityLevel `json:"priority_level"`
	PriorityScore *int                 `json:"priority_score,omitempty"`
	SLAStatus     models.SLAStatus     `json:"sla_status"`
	Upvotes       int                  `json:"upvotes"`
	CreatedAt     string               `json:"created_at"`
}

func toIssueOut(i *models.Issue) issueOut {
	return issueOut{
		ID:            i.ID,
		Title:         i.Title,
		Category:      i.Category,
		Status:        i.Status,
		PriorityLevel: i.PriorityLevel,
		PriorityScore: i.PriorityScore,
		SLAStatus:     i.SLAStatus,
		Upvotes:       i.Upvotes,
		CreatedAt:     i.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// awaaz_report_issue
func (s *Server) reportIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("awaaz_report_issue",
		mcp.WithDescription("Report a new civic issue. The issue is classified and prioritized automatically. Returns the created issue and the enrichment steps as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short issue title")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What is wrong and where")),
		mcp.WithString("email", mcp.Required(), mcp.Description("Reporter email")),
		mcp.WithString("location", mcp.Description("Address or \"lat, lon\" pair")),
		mcp.WithString("ward", mcp.Description("Ward or locality")),
		mcp.WithString("city", mcp.Description("City")),
		mcp.WithString("postal_code", mcp.Description("Postal code")),
		mcp.WithString("phone", mcp.Description("Reporter phone number")),
		mcp.WithBoolean("notify", mcp.Description("Send email updates to the reporter (default: false)")),
	)
	return tool, s.handleReportIssue
}

func (s *Server) handleReportIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: description"), nil
	}
	email, err := request.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: email"), nil
	}

	out, err := s.svc.Submit(ctx, models.Submission{
		Title:         title,
		Description:   description,
		Email:         email,
		Location:      request.GetString("location", ""),
		Ward:          request.GetString("ward", ""),
		City:          request.GetString("city", ""),
		PostalCode:    request.GetString("postal_code", ""),
		Phone:         request.GetString("phone", ""),
		NotifyByEmail: request.GetBool("notify", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to report issue: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"issue":      toIssueOut(out.Issue),
		"enrichment": out.Enrichment.Steps,
	})
}

// awaaz_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("awaaz_list_issues",
		mcp.WithDescription("List reported issues, newest first. Returns a JSON array."),
		mcp.WithString("status", mcp.Description("Filter by status: pending, in_progress, resolved, closed, on_hold")),
		mcp.WithString("category", mcp.Description("Filter by category name")),
		mcp.WithString("priority", mcp.Description("Filter by priority level: high, medium, low")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of issues to return")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.IssueListFilter{
		Category: request.GetString("category", ""),
		Limit:    request.GetInt("limit", 0),
	}
	if v := request.GetString("status", ""); v != "" {
		st, err := models.ParseIssueStatus(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Status = st
	}
	if v := request.GetString("priority", ""); v != "" {
		lvl, err := models.ParsePriorityLevel(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.PriorityLevel = lvl
	}

	list, err := s.svc.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}
	out := make([]issueOut, len(list))
	for i, is := range list {
		out[i] = toIssueOut(is)
	}
	return jsonResult(out)
}

// awaaz_get_issue
func (s *Server) getIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("awaaz_get_issue",
		mcp.WithDescription("Get one issue with its full status history. Accepts a full ID or a unique prefix."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID or unique prefix")),
	)
	return tool, s.handleGetIssue
}

func (s *Server) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	issue, err := s.svc.Find(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(issue)
}

// awaaz_update_status
func (s *Server) updateStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("awaaz_update_status",
		mcp.WithDescription("Move an issue to a new status. Appends to the status history and notifies the reporter when they opted in."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID or unique prefix")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status: pending, in_progress, resolved, closed, on_hold")),
		mcp.WithString("changed_by", mcp.Required(), mcp.Description("Who made the change")),
		mcp.WithString("comment", mcp.Description("Optional note recorded in the history")),
	)
	return tool, s.handleUpdateStatus
}

func (s *Server) handleUpdateStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	rawStatus, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	changedBy, err := request.RequireString("changed_by")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: changed_by"), nil
	}
	status, err := models.ParseIssueStatus(rawStatus)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	found, err := s.svc.Find(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issue, err := s.svc.UpdateStatus(ctx, found.ID, status, changedBy, request.GetString("comment", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update status: %v", err)), nil
	}
	return jsonResult(toIssueOut(issue))
}

// awaaz_upvote_issue
func (s *Server) upvoteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("awaaz_upvote_issue",
		mcp.WithDescription("Record a citizen's support for an issue. Repeat votes from the same voter are ignored."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID or unique prefix")),
		mcp.WithString("voter_id", mcp.Required(), mcp.Description("Stable voter identifier")),
	)
	return tool, s.handleUpvoteIssue
}

func (s *Server) handleUpvoteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	voter, err := request.RequireString("voter_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: voter_id"), nil
	}

	found, err := s.svc.Find(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issue, added, err := s.svc.Upvote(ctx, found.ID, voter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to upvote: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"id":      issue.ID,
		"upvotes": issue.Upvotes,
		"added":   added,
	})
}

// awaaz_overview
func (s *Server) overviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("awaaz_overview",
		mcp.WithDescription("Dashboard analytics: counts by category, priority, and status, SLA metrics, and recent high-priority issues."),
	)
	return tool, s.handleOverview
}

func (s *Server) handleOverview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	o, err := s.svc.Overview(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build overview: %v", err)), nil
	}
	return jsonResult(o)
}
