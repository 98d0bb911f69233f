package phpindex

import (
	"errors"
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"github.com/standardbeagle/callmap/internal/symbols"
)

type callKind uint8

const (
	callMember callKind = iota
	callScoped
	callFunction
	callNew
)

// callSite is one call expression found in a file
type callSite struct {
	name   string
	kind   callKind
	class  string // instantiated class for callNew, scope text for callScoped
	line   int
	column int
	offset uint
}

type declaration struct {
	sym     symbols.Symbol
	endLine int
}

type parsedFile struct {
	decls []declaration
	calls []callSite
}

var errNoTree = errors.New("parser returned no tree")

func newPHPParser() (*tree_sitter.Parser, error) {
	parser := tree_sitter.NewParser()
	language := tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())
	if err := parser.SetLanguage(language); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to load PHP grammar: %w", err)
	}
	return parser, nil
}

// parsePHP extracts declarations and call sites from one PHP source file
func parsePHP(file string, content []byte) (pf *parsedFile, err error) {
	parser, err := newPHPParser()
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	defer func() {
		if r := recover(); r != nil {
			pf, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()

	// tree-sitter keeps a reference to the buffer
	buf := make([]byte, len(content))
	copy(buf, content)
	tree := parser.Parse(buf, nil)
	if tree == nil {
		return nil, errNoTree
	}
	defer tree.Close()

	w := &walker{file: file, content: buf, out: &parsedFile{}}
	w.visit(tree.RootNode(), "")
	return w.out, nil
}

type walker struct {
	file    string
	content []byte
	out     *parsedFile
}

func (w *walker) text(n *tree_sitter.Node) string {
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walker) visit(n *tree_sitter.Node, class string) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			class = w.text(name)
		}
	case "method_declaration":
		w.declare(n, class, symbols.KindMethod)
	case "function_definition":
		w.declare(n, "", symbols.KindFunction)
	case "member_call_expression", "nullsafe_member_call_expression":
		w.call(n.ChildByFieldName("name"), callMember, "")
	case "scoped_call_expression":
		scope := ""
		if s := n.ChildByFieldName("scope"); s != nil {
			scope = w.text(s)
		}
		w.call(n.ChildByFieldName("name"), callScoped, scope)
	case "function_call_expression":
		w.functionCall(n)
	case "object_creation_expression":
		w.creation(n)
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		w.visit(n.Child(i), class)
	}
}

func (w *walker) declare(n *tree_sitter.Node, class string, kind symbols.Kind) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	w.out.decls = append(w.out.decls, declaration{
		sym: symbols.Symbol{
			Name:      w.text(name),
			Class:     class,
			Kind:      kind,
			File:      w.file,
			Line:      int(n.StartPosition().Row) + 1,
			StartByte: n.StartByte(),
			EndByte:   n.EndByte(),
		},
		endLine: int(n.EndPosition().Row) + 1,
	})
}

// call records a call through a static name; dynamic names ($obj->$m()) are skipped
func (w *walker) call(name *tree_sitter.Node, kind callKind, class string) {
	if name == nil || name.Kind() != "name" {
		return
	}
	w.record(name, w.text(name), kind, class)
}

func (w *walker) functionCall(n *tree_sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	switch fn.Kind() {
	case "name", "qualified_name", "relative_name":
		w.record(fn, lastSegment(w.text(fn)), callFunction, "")
	}
}

// creation maps "new Foo(...)" onto Foo::__construct
func (w *walker) creation(n *tree_sitter.Node) {
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "name", "qualified_name", "relative_name":
			w.record(c, "__construct", callNew, lastSegment(w.text(c)))
			return
		}
	}
}

func (w *walker) record(at *tree_sitter.Node, name string, kind callKind, class string) {
	if name == "" {
		return
	}
	pos := at.StartPosition()
	w.out.calls = append(w.out.calls, callSite{
		name:   name,
		kind:   kind,
		class:  class,
		line:   int(pos.Row) + 1,
		column: int(pos.Column) + 1,
		offset: at.StartByte(),
	})
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		return name[i+1:]
	}
	return name
}
