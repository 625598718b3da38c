// Package mcpserver exposes the tool registry over the Model Context
// Protocol, on stdio or on a streamable HTTP endpoint.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"govukmcp/internal/models"
	"govukmcp/internal/ratelimit"
	"govukmcp/internal/tools"
	"govukmcp/internal/version"
)

const instructions = `Tools for UK government open data: postcodes, bank holidays, ` +
	`TfL line status, Companies House, food hygiene ratings, flood warnings and police data. ` +
	`Each upstream API is rate limited. A result with error_type "rate_limit_exceeded" ` +
	`carries retry_after in seconds; wait that long before calling a tool on the same API again.`

// Server adapts a tools.Registry to an MCP server.
type Server struct {
	mcp      *server.MCPServer
	registry *tools.Registry
	logger   *slog.Logger
}

// New registers every tool of reg with a new MCP server.
func New(reg *tools.Registry, ver version.Info, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp: server.NewMCPServer(ver.Name, ver.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions(instructions),
		),
		registry: reg,
		logger:   logger,
	}

	for _, tool := range reg.List() {
		s.mcp.AddTool(toMCPTool(tool), s.handler(tool.Name))
	}
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

func toMCPTool(tool tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(tool.Description),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	}
	for _, p := range tool.Params {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		switch p.Type {
		case tools.ParamNumber:
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		case tools.ParamBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}
	return mcp.NewTool(tool.Name, opts...)
}

// handler runs a registry tool. Tool failures are reported in-band as error
// results so the model can read them; only encoding failures are protocol
// errors.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := s.registry.Call(ctx, name, models.ToolArgs(req.GetArguments()))
		if err != nil {
			return s.errorResult(ctx, name, err)
		}

		body, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func (s *Server) errorResult(ctx context.Context, name string, err error) (*mcp.CallToolResult, error) {
	payload := models.PayloadFromError(err)

	// rate limit denials are logged by the limiter wrapper
	if _, exceeded := ratelimit.AsExceeded(err); !exceeded {
		s.logger.WarnContext(ctx, "Tool call failed",
			"tool", name,
			"error_type", payload.ErrorType,
			"error", err,
		)
	}

	body, mErr := json.Marshal(payload)
	if mErr != nil {
		return nil, mErr
	}
	return mcp.NewToolResultError(string(body)), nil
}

// ServeStdio serves newline-delimited JSON-RPC on in and out until ctx is
// cancelled or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.InfoContext(ctx, "Serving MCP over stdio", "tools", len(s.registry.Names()))
	return stdio.Listen(ctx, in, out)
}

// HTTPHandler returns the streamable HTTP transport. Mount it at /mcp.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}
