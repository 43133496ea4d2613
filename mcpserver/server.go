// Package mcpserver exposes digest extraction, Verse generation and the
// class catalog as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/catalog"
	"github.com/teranos/verseblueprint/digest"
	"github.com/teranos/verseblueprint/graphscript"
	"github.com/teranos/verseblueprint/graphstore"
	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/version"
	"github.com/teranos/verseblueprint/versegen"
)

// ServerName is announced to MCP clients
const ServerName = "vvbe"

// MCPServer serves vvbe operations over MCP.
type MCPServer struct {
	extractor *digest.Extractor
	generator *versegen.Generator
	svc       *blueprint.Service
	store     *graphstore.Store
	catalog   *catalog.Catalog // nil disables the catalog tools
	logger    *zap.SugaredLogger
	server    *server.MCPServer
}

// New creates the server and registers its tools.
func New(ex *digest.Extractor, gen *versegen.Generator, svc *blueprint.Service, cat *catalog.Catalog, log *zap.SugaredLogger) *MCPServer {
	log = logger.OrNop(log).Named("mcp")
	s := &MCPServer{
		extractor: ex,
		generator: gen,
		svc:       svc,
		store:     graphstore.New(svc, log),
		catalog:   cat,
		logger:    log,
		server: server.NewMCPServer(
			ServerName,
			version.VersionTag,
			server.WithToolCapabilities(true),
		),
	}
	s.registerTools()
	return s
}

func (s *MCPServer) registerTools() {
	extractTool := mcp.NewTool("digest_extract",
		mcp.WithDescription("Extract classes, module functions and events from a Verse digest (.digest.verse)"),
		mcp.WithString("path",
			mcp.Description("Path to a digest file"),
		),
		mcp.WithString("text",
			mcp.Description("Digest text, used when path is empty"),
		),
		mcp.WithString("class",
			mcp.Description("Return only the class with this name"),
		),
	)
	s.server.AddTool(extractTool, s.handleExtract)

	generateTool := mcp.NewTool("verse_generate",
		mcp.WithDescription("Generate Verse device source from a graph record or a graph script"),
		mcp.WithString("graph",
			mcp.Description("Path to a graph record (.blueprint, .json, .yaml, .toml)"),
		),
		mcp.WithString("script",
			mcp.Description("Graph script applied to a new graph, used when graph is empty"),
		),
		mcp.WithString("name",
			mcp.Description("Name of the new graph built from script (default NewDevice)"),
		),
	)
	s.server.AddTool(generateTool, s.handleGenerate)

	if s.catalog == nil {
		return
	}

	searchTool := mcp.NewTool("catalog_search",
		mcp.WithDescription("Search imported digest classes by name prefix"),
		mcp.WithString("prefix",
			mcp.Description("Case-insensitive class name prefix; empty lists all"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum results (default %d)", catalog.DefaultSearchLimit)),
		),
	)
	s.server.AddTool(searchTool, s.handleSearch)

	classTool := mcp.NewTool("catalog_class",
		mcp.WithDescription("Show the properties, methods and events of an imported class"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Exact class name"),
		),
	)
	s.server.AddTool(classTool, s.handleClass)
}

func (s *MCPServer) handleExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	text := request.GetString("text", "")

	var d *digest.Digest
	switch {
	case path != "":
		var err error
		if d, err = s.extractor.ParseFile(path); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read digest: %v", err)), nil
		}
	case text != "":
		d = s.extractor.Extract(text)
	default:
		return mcp.NewToolResultError("one of path or text is required"), nil
	}

	if name := request.GetString("class", ""); name != "" {
		class := d.FindClass(name)
		if class == nil {
			return mcp.NewToolResultError(fmt.Sprintf("class %s not found in digest", name)), nil
		}
		return jsonResult(class)
	}
	return jsonResult(d)
}

func (s *MCPServer) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("graph", "")
	script := request.GetString("script", "")

	var g *blueprint.Graph
	switch {
	case path != "":
		var err error
		if g, err = s.store.LoadStrict(path); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to load graph: %v", err)), nil
		}
	case script != "":
		g = s.svc.NewGraph(request.GetString("name", blueprint.DefaultGraphName))
		if err := graphscript.NewRunner(s.svc, s.logger).ApplyString(g, script); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to apply script: %v", err)), nil
		}
	default:
		return mcp.NewToolResultError("one of graph or script is required"), nil
	}

	code := s.generator.Generate(g)
	s.logger.Debugw("Generated source", logger.FieldGraph, g.Name, logger.FieldSize, len(code))
	return mcp.NewToolResultText(code), nil
}

func (s *MCPServer) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.catalog.Search(ctx, request.GetString("prefix", ""), request.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No classes found"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d class(es):\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. %s (%s) %d properties, %d methods", i+1, e.Name, e.ModulePath, e.PropertyCount, e.MethodCount)
		if e.Description != "" {
			fmt.Fprintf(&sb, " - %s", e.Description)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *MCPServer) handleClass(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	class, err := s.catalog.Class(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(class)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Serve runs the server on stdin/stdout until the client disconnects.
func (s *MCPServer) Serve() error {
	s.logger.Infow("Serving MCP over stdio", "catalog", s.catalog != nil)
	return server.ServeStdio(s.server)
}
