package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"esgdata/internal/domain"
	"esgdata/internal/logging"
	"esgdata/internal/service"
)

// ReportingReader is the read side of the reporting store.
// dbclient.MongoStore implements it.
type ReportingReader interface {
	FindByISIN(ctx context.Context, isin string) ([]domain.SustainabilityReporting, error)
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error)
}

// Server is the MCP server for esgdata.
// It exposes the interval parser, the pipeline builders and the import jobs
// as tools so agents can inspect and load reporting data.
type Server struct {
	mcp *server.MCPServer
	log *zap.Logger

	// Services (nil disables the tools that need them)
	imports   *service.ImportService
	reporting ReportingReader
}

// Deps holds the dependencies passed from the CLI to the MCP server.
type Deps struct {
	Imports   *service.ImportService
	Reporting ReportingReader
	Log       *zap.Logger
	Version   string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		log:       logging.OrNop(deps.Log).Named("mcp"),
		imports:   deps.Imports,
		reporting: deps.Reporting,
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s.mcp = server.NewMCPServer(
		"esgdata",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
	)

	// Pure helpers, always available
	s.registerIntervalTools()
	s.registerPipelineTools()

	// Store-backed tools
	if s.imports != nil {
		s.registerImportTools()
		s.registerResources()
		s.registerPrompts()
	}
	if s.reporting != nil {
		s.registerReportingTools()
	}

	return s
}

// MCP returns the underlying server, e.g. to dispatch messages in tests.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting stdio server")
	return server.ServeStdio(s.mcp, server.WithErrorLogger(zap.NewStdLog(s.log)))
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
