// Package mcpserver exposes turbogrep's search orchestrator as a single
// MCP tool, search_code, so an MCP-aware agent can call semantic search
// directly.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/turbopuffer/turbogrep/internal/project"
	"github.com/turbopuffer/turbogrep/internal/search"
	"github.com/turbopuffer/turbogrep/pkg/version"
)

// SearchCodeInput is search_code's input schema.
type SearchCodeInput struct {
	Query     string `json:"query" jsonschema:"the code search query to execute"`
	Directory string `json:"directory,omitempty" jsonschema:"project directory to search, defaults to the current directory"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 10"`
	Regex     bool   `json:"regex,omitempty" jsonschema:"treat query as a regular expression instead of a semantic query"`
}

// SearchCodeOutput is search_code's output schema: the ripgrep-style
// formatted result lines, unsplit, matching exactly what the CLI's
// search subcommand prints.
type SearchCodeOutput struct {
	Output string `json:"output" jsonschema:"ripgrep-style formatted search results, one match per line"`
}

// Server wraps an mcp.Server registering turbogrep's one tool.
type Server struct {
	mcp          *mcp.Server
	orchestrator *search.Orchestrator
	logger       *slog.Logger
}

// NewServer builds the MCP server around orchestrator and registers
// search_code.
func NewServer(orchestrator *search.Orchestrator, logger *slog.Logger) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("search orchestrator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{orchestrator: orchestrator, logger: logger}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "turbogrep",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Semantic code search across an indexed project. Finds functions, types and usages by meaning, not just keyword match. Pass regex=true to fall back to a path-scoped regex match instead.",
	}, s.handleSearchCode)
	s.logger.Debug("registered MCP tool", slog.String("name", "search_code"))
}

func (s *Server) handleSearchCode(ctx context.Context, _ *mcp.CallToolRequest, input SearchCodeInput) (*mcp.CallToolResult, SearchCodeOutput, error) {
	if input.Query == "" {
		return nil, SearchCodeOutput{}, errors.New("query parameter is required")
	}

	directory := input.Directory
	if directory == "" {
		directory = "."
	}
	topK := input.TopK
	if topK <= 0 {
		topK = 10
	}

	namespace, rootDir, err := project.NamespaceAndDir(directory, s.orchestrator.EmbedProvider)
	if err != nil {
		return nil, SearchCodeOutput{}, err
	}

	output, err := s.orchestrator.Speculate(ctx, search.Options{
		Query:     input.Query,
		Directory: directory,
		MaxCount:  topK,
		Regex:     input.Regex,
	}, rootDir, namespace)
	if err != nil {
		return nil, SearchCodeOutput{}, err
	}

	return nil, SearchCodeOutput{Output: output}, nil
}

// Serve runs the MCP server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
