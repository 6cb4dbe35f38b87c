// Package mcpserver exposes find_affected, find_why, and rebuild_graph
// as MCP tools, mirroring the teacher's own agent-facing tool surface.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fenwicklabs/testselect/internal/affected"
	"github.com/fenwicklabs/testselect/internal/build"
	"github.com/fenwicklabs/testselect/internal/cache"
	"github.com/fenwicklabs/testselect/internal/config"
	"github.com/fenwicklabs/testselect/internal/graph"
	"github.com/fenwicklabs/testselect/internal/vcsutil"
)

// state holds the one graph this process has loaded per root, since MCP
// tool calls are stateless requests from the agent's perspective.
type state struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Graph
}

func newState() *state {
	return &state{graphs: make(map[string]*graph.Graph)}
}

func (s *state) get(root string) (*graph.Graph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[root]
	return g, ok
}

func (s *state) set(root string, g *graph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[root] = g
}

// NewServer creates an MCP server with the test-selector's tools.
func NewServer() *server.MCPServer {
	st := newState()

	s := server.NewMCPServer(
		"testselect",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(rebuildGraphTool(), rebuildGraphHandler(st))
	s.AddTool(findAffectedTool(), findAffectedHandler(st))
	s.AddTool(findWhyTool(), findWhyHandler(st))

	return s
}

func rebuildGraphTool() mcp.Tool {
	return mcp.NewTool("rebuild_graph",
		mcp.WithDescription("Crawl a JS/TS project and (re)build its import dependency graph. Call this before find_affected or find_why on a new root, or after a large set of untracked changes."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Absolute path to the project root"),
		),
	)
}

func findAffectedTool() mcp.Tool {
	return mcp.NewTool("find_affected",
		mcp.WithDescription("Given a project's dependency graph and a git base ref, return the set of tests whose transitive dependencies changed, plus every affected source file."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Absolute path to the project root (must already have a graph built via rebuild_graph)"),
		),
		mcp.WithString("base",
			mcp.Description("Git ref to diff against (default: the project's configured default base)"),
		),
	)
}

func findWhyTool() mcp.Tool {
	return mcp.NewTool("find_why",
		mcp.WithDescription("Explain why a specific test is affected: the shortest import chain from the test down to a changed file."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Absolute path to the project root"),
		),
		mcp.WithString("test",
			mcp.Required(),
			mcp.Description("Absolute path to the test file to explain"),
		),
		mcp.WithString("base",
			mcp.Description("Git ref to diff against (default: the project's configured default base)"),
		),
	)
}

func rebuildGraphHandler(st *state) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		root, err := req.RequireString("root")
		if err != nil {
			return mcp.NewToolResultError("missing required parameter: root"), nil
		}

		cfg, err := config.Load(root)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading config: %v", err)), nil
		}

		builder := build.New(root, cfg, slog.Default())
		g, err := builder.Build(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
		}
		st.set(root, g)

		if cfg.CacheEnabled {
			mgr := cache.New(root, cfg.CacheDir, cfg.CacheFile)
			if err := mgr.Save(g); err != nil {
				slog.Warn("failed to save cache after rebuild_graph", "root", root, "error", err)
			}
		}

		return mcp.NewToolResultText(fmt.Sprintf("Built graph: %d files, %d edges.", g.FileCount(), g.EdgeCount())), nil
	}
}

func findAffectedHandler(st *state) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		root, err := req.RequireString("root")
		if err != nil {
			return mcp.NewToolResultError("missing required parameter: root"), nil
		}
		g, ok := st.get(root)
		if !ok {
			return mcp.NewToolResultError("no graph built for this root yet; call rebuild_graph first"), nil
		}

		cfg, _ := config.Load(root)
		base := req.GetString("base", cfg.DefaultBase)

		changes, err := vcsutil.DetectChanges(ctx, root, base)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("detecting changes: %v", err)), nil
		}

		result := affected.New(g).FindAffected(changes)
		if len(result.Tests) == 0 && len(result.Sources) == 0 {
			return mcp.NewToolResultText("No tests affected by the current changes."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "## %d/%d tests affected\n\n", len(result.Tests), result.TotalTests)
		for _, t := range result.Tests {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		fmt.Fprintf(&b, "\n## %d/%d sources affected\n\n", len(result.Sources), result.TotalSources)
		for _, s := range result.Sources {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func findWhyHandler(st *state) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		root, err := req.RequireString("root")
		if err != nil {
			return mcp.NewToolResultError("missing required parameter: root"), nil
		}
		testPath, err := req.RequireString("test")
		if err != nil {
			return mcp.NewToolResultError("missing required parameter: test"), nil
		}
		g, ok := st.get(root)
		if !ok {
			return mcp.NewToolResultError("no graph built for this root yet; call rebuild_graph first"), nil
		}

		cfg, _ := config.Load(root)
		base := req.GetString("base", cfg.DefaultBase)

		changes, err := vcsutil.DetectChanges(ctx, root, base)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("detecting changes: %v", err)), nil
		}

		path, found := affected.New(g).FindWhy(testPath, changes)
		if !found {
			return mcp.NewToolResultText("This test does not depend on any changed file."), nil
		}
		return mcp.NewToolResultText(path.String(" -> ")), nil
	}
}
