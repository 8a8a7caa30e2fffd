// Package mcpserver exposes the pulse backend over MCP for AI assistants.
// The tool dispatcher is thin sequential glue: each tool validates its
// arguments and forwards to one backend RPC through the retrying client.
package mcpserver

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Caller issues logical RPC calls against the pulse backend.
// Satisfied by *rpc.Client.
type Caller interface {
	Call(ctx context.Context, name string, params map[string]any) (any, error)
}

// Server is the MCP stdio server wrapping the pulse RPC surface.
type Server struct {
	caller    Caller
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server and registers the pulse tools.
func NewServer(caller Caller, version string) *Server {
	mcpServer := server.NewMCPServer(
		"pulse",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s := &Server{
		caller:    caller,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s
}

// ServeStdio runs the server on stdin/stdout until the transport closes or
// the context is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers the pulse backend tools.
func (s *Server) registerTools() {
	generateTool := mcp.NewTool("generate_report",
		mcp.WithDescription("Generate an operational report over a time window"),
		mcp.WithString("window",
			mcp.Description("Report window, e.g. 24h, 7d, 30d"),
			mcp.Required(),
		),
		mcp.WithString("title",
			mcp.Description("Optional report title"),
		),
	)
	s.mcpServer.AddTool(generateTool, s.handleGenerateReport)

	listTool := mcp.NewTool("list_reports",
		mcp.WithDescription("List previously generated reports"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of reports to return"),
		),
	)
	s.mcpServer.AddTool(listTool, s.handleListReports)

	getTool := mcp.NewTool("get_report",
		mcp.WithDescription("Fetch a generated report by id, rendered as markdown"),
		mcp.WithNumber("report_id",
			mcp.Description("Report id from list_reports"),
			mcp.Required(),
		),
	)
	s.mcpServer.AddTool(getTool, s.handleGetReport)

	queryTool := mcp.NewTool("query_metrics",
		mcp.WithDescription("Run a PromQL query through the pulse backend"),
		mcp.WithString("query",
			mcp.Description("PromQL expression"),
			mcp.Required(),
		),
		mcp.WithString("range",
			mcp.Description("Optional query range, e.g. 1h, 24h"),
		),
	)
	s.mcpServer.AddTool(queryTool, s.handleQueryMetrics)
}
