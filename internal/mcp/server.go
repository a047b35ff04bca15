package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lyy0709/contextweaver/internal/index"
	"github.com/lyy0709/contextweaver/internal/wiring"
	"github.com/lyy0709/contextweaver/pkg/version"
)

// Server is the MCP server exposing ContextWeaver's two-tool surface:
// scan (crawl and index a repository) and retrieve (query its index
// for a packed context block). Grounded on the teacher's Server (one
// *mcp.Server, slog logging, a stdio-first Serve method), narrowed
// from the teacher's four-tool chat surface to spec.md §6's pair.
type Server struct {
	mcp    *mcp.Server
	logger *slog.Logger

	// openFn opens (or reuses) the wiring.Project for a repo_path.
	// A field rather than a direct wiring.Open call so tests can stub it.
	openFn func(ctx context.Context, repoPath string) (*wiring.Project, error)
}

// NewServer constructs a Server and registers its tools.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:    mcp.NewServer(&mcp.Implementation{Name: "contextweaver", Version: version.Version}, nil),
		logger: logger,
		openFn: wiring.Open,
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying SDK server, e.g. for tests that
// drive it through an in-process transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scan",
		Description: "Crawl a repository, chunk and embed its source files, and update the vector, full-text, and metadata indexes. Run this before retrieve, and again whenever the repository changes.",
	}, s.scanHandler)
	s.logger.Debug("registered tool", slog.String("name", "scan"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "retrieve",
		Description: "Search a previously scanned repository for code relevant to an information request, expand the hits with neighboring chunks of the same file, breadcrumb siblings and (when enabled) chunks of imported files, and return a packed, budget-limited block of source excerpts.",
	}, s.retrieveHandler)
	s.logger.Debug("registered tool", slog.String("name", "retrieve"))
}

func (s *Server) scanHandler(ctx context.Context, _ *mcp.CallToolRequest, input ScanInput) (
	*mcp.CallToolResult,
	ScanOutput,
	error,
) {
	if input.RepoPath == "" {
		return nil, ScanOutput{}, NewInvalidParamsError("repo_path parameter is required")
	}

	project, err := s.openFn(ctx, input.RepoPath)
	if err != nil {
		return nil, ScanOutput{}, MapError(fmt.Errorf("open project: %w", err))
	}
	defer project.Close()

	counts, err := project.Runner.Scan(ctx, index.ScanOptions{
		RepoRoot:        project.RepoRoot,
		ExcludePatterns: project.Config.Paths.Exclude,
		Force:           input.Force,
	})
	if err != nil {
		return nil, ScanOutput{}, MapError(fmt.Errorf("scan: %w", err))
	}

	return nil, ScanOutput{
		Added:     counts.Added,
		Modified:  counts.Modified,
		Unchanged: counts.Unchanged,
		Deleted:   counts.Deleted,
		Skipped:   counts.Skipped,
		Errors:    counts.Errors,
		VectorIndex: VectorIndexCounts{
			Indexed: counts.VectorIndexed,
			Deleted: counts.VectorDeleted,
			Errors:  counts.VectorErrors,
		},
	}, nil
}

func (s *Server) retrieveHandler(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (
	*mcp.CallToolResult,
	RetrieveOutput,
	error,
) {
	if input.RepoPath == "" {
		return nil, RetrieveOutput{}, NewInvalidParamsError("repo_path parameter is required")
	}
	if input.InformationRequest == "" {
		return nil, RetrieveOutput{}, NewInvalidParamsError("information_request parameter is required")
	}

	project, err := s.openFn(ctx, input.RepoPath)
	if err != nil {
		return nil, RetrieveOutput{}, MapError(fmt.Errorf("open project: %w", err))
	}
	defer project.Close()

	query := input.InformationRequest
	if input.TechnicalTerms != "" {
		query = query + " " + input.TechnicalTerms
	}

	seeds, err := project.Engine.BuildSeeds(ctx, query)
	if err != nil {
		return nil, RetrieveOutput{}, MapError(fmt.Errorf("build seeds: %w", err))
	}

	expanded, err := project.Expander.Expand(ctx, seeds)
	if err != nil {
		return nil, RetrieveOutput{}, MapError(fmt.Errorf("expand: %w", err))
	}

	contextPack := project.Packer.Build(seeds, expanded)
	return nil, RetrieveOutput{Text: FormatContextPack(contextPack)}, nil
}

// Serve runs the server on the given transport. Only stdio is
// implemented; spec.md scopes the transport surface to the MCP stdio
// protocol used by editor/agent integrations.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
