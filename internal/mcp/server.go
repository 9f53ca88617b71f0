// Package mcp exposes the approval engine as MCP tools for trusted
// automation clients. Tenant and member ids are explicit tool arguments; the
// engine's own role checks still apply to every decision.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"groupdesk/backend/internal/repository"
	"groupdesk/backend/internal/services"
	"groupdesk/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	apps      *services.ApplicationService
	directory services.RoleDirectory
}

func NewServer(apps *services.ApplicationService, directory services.RoleDirectory) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Groupdesk Approvals",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		apps:      apps,
		directory: directory,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_applications",
			mcp.WithDescription("List a tenant's applications, optionally filtered by status"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("The tenant to list for")),
			mcp.WithString("status", mcp.Description("Filter: PENDING, APPROVED or REJECTED")),
		),
		s.handleListApplications,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_application",
			mcp.WithDescription("Submit a new application through a template"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("The tenant to submit in")),
			mcp.WithString("member_id", mcp.Required(), mcp.Description("The applicant member id")),
			mcp.WithString("template_id", mcp.Required(), mcp.Description("The template to submit through")),
			mcp.WithString("title", mcp.Required(), mcp.Description("The application title")),
			mcp.WithString("data", mcp.Required(), mcp.Description("The form data as a JSON object keyed by field id")),
		),
		s.handleSubmitApplication,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"decide_application",
			mcp.WithDescription("Approve or reject the current step of an application"),
			mcp.WithString("tenant_id", mcp.Required(), mcp.Description("The tenant the application belongs to")),
			mcp.WithString("member_id", mcp.Required(), mcp.Description("The acting member id")),
			mcp.WithString("application_id", mcp.Required(), mcp.Description("The application to decide on")),
			mcp.WithString("action", mcp.Required(), mcp.Description("approve or reject")),
			mcp.WithString("comment", mcp.Description("Optional decision comment")),
		),
		s.handleDecideApplication,
	)
}

func (s *Server) handleListApplications(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	tenantID, _ := args["tenant_id"].(string)
	if tenantID == "" {
		return mcp.NewToolResultError("Missing required parameter: tenant_id"), nil
	}
	status, _ := args["status"].(string)

	apps, err := s.apps.List(ctx, tenantID, repository.ApplicationFilter{
		Status: models.ApplicationStatus(status),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list applications: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(apps)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleSubmitApplication(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	tenantID, _ := args["tenant_id"].(string)
	memberID, _ := args["member_id"].(string)
	templateID, _ := args["template_id"].(string)
	title, _ := args["title"].(string)
	rawData, _ := args["data"].(string)
	if tenantID == "" || memberID == "" || templateID == "" || title == "" || rawData == "" {
		return mcp.NewToolResultError("Missing required parameters"), nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(rawData), &data); err != nil {
		return mcp.NewToolResultError("data must be a JSON object: " + err.Error()), nil
	}

	decision, err := s.apps.Submit(ctx, tenantID, templateID, memberID, title, data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to submit: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(decision)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleDecideApplication(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	tenantID, _ := args["tenant_id"].(string)
	memberID, _ := args["member_id"].(string)
	applicationID, _ := args["application_id"].(string)
	action, _ := args["action"].(string)
	comment, _ := args["comment"].(string)
	if tenantID == "" || memberID == "" || applicationID == "" || action == "" {
		return mcp.NewToolResultError("Missing required parameters"), nil
	}

	role, err := s.directory.RoleOf(ctx, tenantID, memberID)
	if err != nil {
		return mcp.NewToolResultError("Unknown member: " + memberID), nil
	}

	decision, err := s.apps.Act(ctx, tenantID, applicationID, memberID, role, services.Action(action), comment)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to decide: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(decision)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
