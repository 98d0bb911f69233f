package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/callmap/internal/calltree"
	"github.com/standardbeagle/callmap/internal/debug"
	"github.com/standardbeagle/callmap/internal/display"
	"github.com/standardbeagle/callmap/internal/phpindex"
	"github.com/standardbeagle/callmap/internal/queue"
)

// FindCallersParams are the arguments of find_callers
type FindCallersParams struct {
	Symbol string `json:"symbol"`
	WaitMs int    `json:"wait_ms,omitempty"`
	Format string `json:"format,omitempty"`
	Depth  int    `json:"depth,omitempty"`
}

// NodeParams address one node of a discovered tree
type NodeParams struct {
	MethodID string `json:"method_id"`
	Priority string `json:"priority,omitempty"`
	WaitMs   int    `json:"wait_ms,omitempty"`
}

// SuggestParams are the arguments of suggest_symbols
type SuggestParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// TreeResponse carries a rendered tree and the queue state at render time
type TreeResponse struct {
	Success  bool              `json:"success"`
	RootID   string            `json:"root_id"`
	Complete bool              `json:"complete"`
	Nodes    int               `json:"nodes"`
	MaxDepth int               `json:"max_depth"`
	Format   string            `json:"format"`
	Tree     string            `json:"tree,omitempty"`
	View     *display.NodeView `json:"view,omitempty"`
	Status   queue.Status      `json:"status"`
	Matches  []string          `json:"other_matches,omitempty"`
}

type suggestionView struct {
	Signature string  `json:"signature"`
	File      string  `json:"file"`
	Line      int     `json:"line"`
	Score     float32 `json:"score"`
}

func (s *Server) handleFindCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params FindCallersParams
	if err := decodeParams(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolFindCallers, err)
	}
	params.Symbol = strings.TrimSpace(params.Symbol)
	if params.Symbol == "" {
		return createErrorResponse(ToolFindCallers, errors.New("symbol parameter is required"))
	}
	format, err := normalizeFormat(params.Format)
	if err != nil {
		return createErrorResponse(ToolFindCallers, err)
	}
	if params.Depth < 0 {
		return createErrorResponse(ToolFindCallers, fmt.Errorf("depth cannot be negative, got %d", params.Depth))
	}

	matches, err := s.index.Lookup(params.Symbol)
	if err != nil {
		if errors.Is(err, phpindex.ErrSymbolNotFound) {
			return createErrorResponseWithContext(ToolFindCallers, err, map[string]interface{}{
				"suggestions": s.suggestions(params.Symbol, defaultSuggestLimit),
			})
		}
		return createErrorResponse(ToolFindCallers, err)
	}

	root, err := s.engine.BuildInitialTree(matches[0])
	if err != nil {
		return createErrorResponse(ToolFindCallers, err)
	}
	debug.LogMCP("find_callers %s resolved to %s (%d matches)", params.Symbol, root.ID(), len(matches))
	s.engine.StartDiscovery(root, nil, nil)

	complete := s.await(ctx, params.WaitMs)
	resp := s.render(root, format, params.Depth, complete)
	for _, m := range matches[1:] {
		resp.Matches = append(resp.Matches, m.Signature())
	}
	return createJSONResponse(resp)
}

func (s *Server) handleExpandCaller(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params NodeParams
	if err := decodeParams(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolExpandCaller, err)
	}
	node, err := s.node(params.MethodID)
	if err != nil {
		return createErrorResponse(ToolExpandCaller, err)
	}

	priority := queue.High
	if params.Priority != "" {
		if priority, err = queue.ParsePriority(params.Priority); err != nil {
			return createErrorResponse(ToolExpandCaller, err)
		}
	}

	accepted := s.engine.Expand(node, priority, 0)
	complete := s.await(ctx, params.WaitMs)
	resp := s.render(node, display.FormatText, 0, complete)
	return createJSONResponse(map[string]interface{}{
		"success":  true,
		"accepted": accepted,
		"priority": strings.ToLower(priority.String()),
		"state":    node.State().String(),
		"tree":     resp,
	})
}

func (s *Server) handleRetryCaller(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params NodeParams
	if err := decodeParams(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolRetryCaller, err)
	}
	node, err := s.node(params.MethodID)
	if err != nil {
		return createErrorResponse(ToolRetryCaller, err)
	}

	accepted := s.engine.Retry(node)
	complete := s.await(ctx, params.WaitMs)
	return createJSONResponse(map[string]interface{}{
		"success":  true,
		"accepted": accepted,
		"state":    node.State().String(),
		"tree":     s.render(node, display.FormatText, 0, complete),
	})
}

func (s *Server) handleCancelDiscovery(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params NodeParams
	if err := decodeParams(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolCancelDiscovery, err)
	}

	if params.MethodID == "" {
		s.engine.CancelAll()
		return createJSONResponse(map[string]interface{}{
			"success":   true,
			"cancelled": "all",
			"status":    s.engine.QueueStatus(),
		})
	}

	node, err := s.node(params.MethodID)
	if err != nil {
		return createErrorResponse(ToolCancelDiscovery, err)
	}
	return createJSONResponse(map[string]interface{}{
		"success":   true,
		"cancelled": s.engine.CancelExpansion(node),
		"method_id": params.MethodID,
		"state":     node.State().String(),
	})
}

func (s *Server) handleQueueStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(map[string]interface{}{
		"success": true,
		"status":  s.engine.QueueStatus(),
		"cache":   s.engine.CacheStats(),
		"nodes":   s.engine.Registry().Len(),
	})
}

func (s *Server) handleSuggestSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SuggestParams
	if err := decodeParams(req.Params.Arguments, &params); err != nil {
		return createErrorResponse(ToolSuggestSymbols, err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return createErrorResponse(ToolSuggestSymbols, errors.New("query parameter is required"))
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	return createJSONResponse(map[string]interface{}{
		"success":     true,
		"query":       params.Query,
		"suggestions": s.suggestions(params.Query, limit),
	})
}

func (s *Server) node(id string) (*calltree.Node, error) {
	if id == "" {
		return nil, errors.New("method_id parameter is required")
	}
	node, ok := s.engine.Registry().Get(calltree.MethodID(id))
	if !ok {
		return nil, fmt.Errorf("unknown method_id %q; call find_callers first", id)
	}
	return node, nil
}

// await waits for the queue to drain, bounded by waitMs. Reports whether it did.
func (s *Server) await(ctx context.Context, waitMs int) bool {
	if waitMs <= 0 {
		waitMs = defaultWaitMs
	}
	waitMs = min(waitMs, maxWaitMs)

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(waitMs)*time.Millisecond)
	defer cancel()
	if err := s.engine.AwaitIdle(waitCtx); err != nil {
		debug.LogMCP("discovery still running after %dms: %v", waitMs, err)
		return false
	}
	return true
}

func (s *Server) render(root *calltree.Node, format string, depth int, complete bool) TreeResponse {
	tf := display.NewTreeFormatter(display.FormatterOptions{
		Format:    format,
		ShowLines: true,
		ShowState: true,
		MaxDepth:  depth,
	})
	summary := display.Summarize(root)
	resp := TreeResponse{
		Success:  true,
		RootID:   string(root.ID()),
		Complete: complete,
		Nodes:    summary.Nodes,
		MaxDepth: summary.MaxDepth,
		Format:   format,
		Status:   s.engine.QueueStatus(),
	}
	if format == display.FormatJSON {
		resp.View = tf.View(root)
	} else {
		resp.Tree = tf.Format(root)
	}
	return resp
}

func (s *Server) suggestions(query string, n int) []suggestionView {
	found := s.index.Suggest(query, n)
	out := make([]suggestionView, 0, len(found))
	for _, sg := range found {
		out = append(out, suggestionView{
			Signature: sg.Symbol.Signature(),
			File:      sg.Symbol.File,
			Line:      sg.Symbol.Line,
			Score:     sg.Score,
		})
	}
	return out
}

func normalizeFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
		return display.FormatText, nil
	case display.FormatText, display.FormatJSON, display.FormatCompact:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q, want text, json or compact", format)
	}
}
