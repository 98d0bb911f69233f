// Package mcp serves caller discovery over the Model Context Protocol
package mcp

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/callmap/internal/config"
	"github.com/standardbeagle/callmap/internal/debug"
	"github.com/standardbeagle/callmap/internal/discovery"
	"github.com/standardbeagle/callmap/internal/phpindex"
	"github.com/standardbeagle/callmap/internal/symbols"
	"github.com/standardbeagle/callmap/internal/version"
)

// Tool names
const (
	ToolFindCallers     = "find_callers"
	ToolExpandCaller    = "expand_caller"
	ToolRetryCaller     = "retry_caller"
	ToolCancelDiscovery = "cancel_discovery"
	ToolQueueStatus     = "queue_status"
	ToolSuggestSymbols  = "suggest_symbols"
)

const (
	defaultWaitMs       = 2000
	maxWaitMs           = 30000
	defaultSuggestLimit = 5
)

// SymbolIndex resolves user queries to declarations
type SymbolIndex interface {
	Lookup(query string) ([]symbols.Symbol, error)
	Suggest(query string, n int) []phpindex.Suggestion
}

// Server exposes one discovery engine as MCP tools
type Server struct {
	engine *discovery.Engine
	index  SymbolIndex
	cfg    *config.Config
	server *mcp.Server
}

func NewServer(engine *discovery.Engine, index SymbolIndex, cfg *config.Config) *Server {
	s := &Server{
		engine: engine,
		index:  index,
		cfg:    cfg,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "callmap",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Start serves over stdio until ctx is done or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	debug.LogMCP("starting MCP server with stdio transport")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Run serves over an arbitrary transport
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.server.Run(ctx, t)
}

func methodIDSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Node id as returned by find_callers, in the form file:name:line",
	}
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        ToolFindCallers,
		Description: "Find the callers of a PHP method or function and return the caller tree. Accepts Class::method, method, function or path/File.php:line. Callers two levels deep are discovered in the background.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"symbol": {
					Type:        "string",
					Description: "Symbol to start from, e.g. 'OrderService::place' or 'src/Order.php:42'",
				},
				"wait_ms": {
					Type:        "integer",
					Description: "How long to wait for background discovery before answering (default 2000, max 30000)",
				},
				"format": {
					Type:        "string",
					Description: "Tree format: text, json or compact",
					Enum:        []any{"text", "json", "compact"},
				},
				"depth": {
					Type:        "integer",
					Description: "Maximum tree depth to render; 0 renders everything discovered",
				},
			},
			Required: []string{"symbol"},
		},
	}, s.handleFindCallers)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolExpandCaller,
		Description: "Discover the callers of a node in an existing tree",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"method_id": methodIDSchema(),
				"priority": {
					Type:        "string",
					Description: "Queue priority: high (default), medium or low",
					Enum:        []any{"high", "medium", "low"},
				},
				"wait_ms": {
					Type:        "integer",
					Description: "How long to wait for discovery before answering (default 2000)",
				},
			},
			Required: []string{"method_id"},
		},
	}, s.handleExpandCaller)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolRetryCaller,
		Description: "Retry discovery for a node whose last search failed or timed out",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"method_id": methodIDSchema(),
			},
			Required: []string{"method_id"},
		},
	}, s.handleRetryCaller)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolCancelDiscovery,
		Description: "Cancel discovery for one node, or all running and queued discovery when method_id is omitted",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"method_id": methodIDSchema(),
			},
		},
	}, s.handleCancelDiscovery)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolQueueStatus,
		Description: "Report discovery queue counters and cache statistics",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleQueueStatus)

	s.server.AddTool(&mcp.Tool{
		Name:        ToolSuggestSymbols,
		Description: "Suggest declared methods and functions whose names resemble the query",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Partial or misspelled name",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum suggestions (default 5)",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleSuggestSymbols)
}
