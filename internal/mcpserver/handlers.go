package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pulse/internal/report"
)

// handleGenerateReport handles the generate_report MCP tool.
func (s *Server) handleGenerateReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	window, ok := args["window"].(string)
	if !ok || window == "" {
		return mcp.NewToolResultError("window is required"), nil
	}

	params := map[string]any{"window": window}
	if title, ok := args["title"].(string); ok && title != "" {
		params["title"] = title
	}

	result, err := s.caller.Call(ctx, "generate_report", params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

// handleListReports handles the list_reports MCP tool.
func (s *Server) handleListReports(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	params := map[string]any{}
	if limit, ok := args["limit"].(float64); ok {
		if limit < 1 {
			return mcp.NewToolResultError("limit must be positive"), nil
		}
		params["limit"] = int(limit)
	}

	result, err := s.caller.Call(ctx, "list_reports", params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

// handleGetReport handles the get_report MCP tool. The report is rendered
// as markdown so assistants can quote it directly.
func (s *Server) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	reportID, ok := args["report_id"].(float64)
	if !ok {
		return mcp.NewToolResultError("report_id is required"), nil
	}

	result, err := s.caller.Call(ctx, "get_report", map[string]any{
		"report_id": int64(reportID),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, err := report.FromRPC(result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(report.RenderMarkdown(r)), nil
}

// handleQueryMetrics handles the query_metrics MCP tool.
func (s *Server) handleQueryMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	params := map[string]any{"query": query}
	if queryRange, ok := args["range"].(string); ok && queryRange != "" {
		params["range"] = queryRange
	}

	result, err := s.caller.Call(ctx, "query_prometheus", params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

// jsonResult encodes a normalized RPC result as a JSON text tool result.
func jsonResult(result any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
