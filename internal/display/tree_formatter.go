package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/standardbeagle/callmap/internal/calltree"
)

// Output formats accepted by FormatterOptions.Format
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatCompact = "compact"
)

const circularMarker = "... (circular reference)"

// TreeFormatter renders caller trees for display
type TreeFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls tree formatting
type FormatterOptions struct {
	Format    string // "text", "json", "compact"
	ShowLines bool   // Show file:line after each signature
	ShowState bool   // Annotate nodes that are loading, failed or unexpanded
	MaxDepth  int    // Maximum depth to display; 0 shows everything
	Indent    string // Indentation string
}

// NewTreeFormatter creates a new tree formatter
func NewTreeFormatter(options FormatterOptions) *TreeFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	return &TreeFormatter{options: options}
}

// Format renders the tree rooted at root, the method whose callers were discovered
func (tf *TreeFormatter) Format(root *calltree.Node) string {
	if root == nil {
		return "No tree data available"
	}

	switch tf.options.Format {
	case FormatJSON:
		return tf.formatJSON(root)
	case FormatCompact:
		return tf.formatCompact(root)
	default:
		return tf.formatText(root)
	}
}

// Summary counts distinct nodes and the deepest level reached
type Summary struct {
	Nodes    int
	MaxDepth int
}

// Summarize walks the tree once, stopping at repeated methods
func Summarize(root *calltree.Node) Summary {
	var s Summary
	seen := make(map[calltree.MethodID]bool)
	var walk func(n *calltree.Node, depth int)
	walk = func(n *calltree.Node, depth int) {
		if seen[n.ID()] {
			return
		}
		seen[n.ID()] = true
		s.Nodes++
		s.MaxDepth = max(s.MaxDepth, depth)
		for _, c := range n.Callers() {
			walk(c, depth+1)
		}
	}
	if root != nil {
		walk(root, 0)
	}
	return s
}

func (tf *TreeFormatter) formatText(root *calltree.Node) string {
	var sb strings.Builder

	sum := Summarize(root)
	sb.WriteString(fmt.Sprintf("Callers of '%s'\n", root.Signature()))
	sb.WriteString(fmt.Sprintf("Discovered nodes: %d, Max depth: %d\n", sum.Nodes, sum.MaxDepth))
	sb.WriteString("\n")

	tf.formatNode(&sb, root, "", true, true, 0, nil)
	return sb.String()
}

func (tf *TreeFormatter) formatNode(sb *strings.Builder, node *calltree.Node, prefix string, isLast, isRoot bool, depth int, path []calltree.MethodID) {
	var branch string
	switch {
	case isRoot:
		branch = "→ "
	case isLast:
		branch = "└─→ "
	default:
		branch = "├─→ "
	}

	sb.WriteString(prefix)
	sb.WriteString(branch)
	sb.WriteString(node.Signature())
	if tf.options.ShowLines && node.Line() > 0 {
		sb.WriteString(fmt.Sprintf(" [%s:%d]", node.File(), node.Line()))
	}

	if containsID(path, node.ID()) {
		sb.WriteString(" " + circularMarker + "\n")
		return
	}
	if tf.options.ShowState {
		sb.WriteString(stateAnnotation(node))
	}

	callers := node.Callers()
	if tf.options.MaxDepth > 0 && depth >= tf.options.MaxDepth && len(callers) > 0 {
		sb.WriteString(fmt.Sprintf(" (+%d callers not shown)\n", len(callers)))
		return
	}
	sb.WriteString("\n")

	path = append(path, node.ID())
	var childPrefix string
	switch {
	case isRoot, isLast:
		childPrefix = prefix + tf.options.Indent
	default:
		childPrefix = prefix + "│" + tf.options.Indent[1:]
	}
	for i, c := range callers {
		tf.formatNode(sb, c, childPrefix, i == len(callers)-1, false, depth+1, path)
	}
}

func stateAnnotation(node *calltree.Node) string {
	switch node.State() {
	case calltree.Loading:
		return fmt.Sprintf(" (loading %d%%)", int(node.Progress()*100))
	case calltree.Error:
		return fmt.Sprintf(" (error: %s)", node.ErrorMessage())
	case calltree.Expandable, calltree.NotLoaded:
		if node.HasMoreCallers() {
			return " (+ expandable)"
		}
	case calltree.Loaded:
		if node.CallerCount() == 0 {
			return " (no callers)"
		}
	}
	return ""
}

func containsID(path []calltree.MethodID, id calltree.MethodID) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}

// formatCompact follows the first caller at each level on a single line
func (tf *TreeFormatter) formatCompact(root *calltree.Node) string {
	var parts []string
	seen := make(map[calltree.MethodID]bool)
	depth := 0
	for n := root; n != nil; depth++ {
		if seen[n.ID()] {
			parts = append(parts, circularMarker)
			break
		}
		seen[n.ID()] = true
		parts = append(parts, n.Signature())

		callers := n.Callers()
		if len(callers) == 0 || (tf.options.MaxDepth > 0 && depth >= tf.options.MaxDepth) {
			break
		}
		if len(callers) > 1 {
			parts[len(parts)-1] += fmt.Sprintf(" (+%d more)", len(callers)-1)
		}
		n = callers[0]
	}
	return strings.Join(parts, " ← ")
}

// NodeView is the JSON shape of one tree node
type NodeView struct {
	ID             string      `json:"id"`
	Signature      string      `json:"signature"`
	File           string      `json:"file"`
	Line           int         `json:"line"`
	State          string      `json:"state"`
	Progress       float64     `json:"progress,omitempty"`
	Error          string      `json:"error,omitempty"`
	HasMoreCallers bool        `json:"has_more_callers"`
	Circular       bool        `json:"circular,omitempty"`
	Truncated      int         `json:"truncated_callers,omitempty"`
	Callers        []*NodeView `json:"callers,omitempty"`
}

// View converts the tree into NodeViews, marking repeated methods as circular
func (tf *TreeFormatter) View(root *calltree.Node) *NodeView {
	if root == nil {
		return nil
	}
	return tf.view(root, 0, nil)
}

func (tf *TreeFormatter) view(n *calltree.Node, depth int, path []calltree.MethodID) *NodeView {
	v := &NodeView{
		ID:             string(n.ID()),
		Signature:      n.Signature(),
		File:           n.File(),
		Line:           n.Line(),
		State:          n.State().String(),
		Error:          n.ErrorMessage(),
		HasMoreCallers: n.HasMoreCallers(),
	}
	if n.State() == calltree.Loading {
		v.Progress = n.Progress()
	}
	if containsID(path, n.ID()) {
		v.Circular = true
		return v
	}
	callers := n.Callers()
	if tf.options.MaxDepth > 0 && depth >= tf.options.MaxDepth {
		v.Truncated = len(callers)
		return v
	}
	path = append(path, n.ID())
	for _, c := range callers {
		v.Callers = append(v.Callers, tf.view(c, depth+1, path))
	}
	return v
}

func (tf *TreeFormatter) formatJSON(root *calltree.Node) string {
	sum := Summarize(root)
	out := struct {
		Root     string    `json:"root"`
		Nodes    int       `json:"total_nodes"`
		MaxDepth int       `json:"max_depth"`
		Tree     *NodeView `json:"tree"`
	}{root.Signature(), sum.Nodes, sum.MaxDepth, tf.View(root)}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
