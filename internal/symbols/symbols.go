// Package symbols declares what the caller discovery core needs from a code host:
// finding references to a declaration and resolving a reference back to the
// declaration that contains it.
package symbols

import (
	"context"
	"fmt"
	"strings"
)

// Kind distinguishes declarations that can be called
type Kind uint8

const (
	KindMethod Kind = iota
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Symbol is a named declaration in the analyzed codebase.
// File is project-relative; Line is 1-based.
type Symbol struct {
	Name      string
	Class     string
	Kind      Kind
	File      string
	Line      int
	StartByte uint
	EndByte   uint
}

// Same reports whether two symbols denote the same declaration
func (s Symbol) Same(other Symbol) bool {
	return s.File == other.File && s.Line == other.Line && strings.EqualFold(s.Name, other.Name)
}

// IsZero reports whether the symbol is unset
func (s Symbol) IsZero() bool {
	return s.Name == "" && s.File == ""
}

// Signature renders the display form "Class::name()". Functions without a class
// render as "name()".
func (s Symbol) Signature() string {
	if s.Kind == KindFunction && s.Class == "" {
		return s.Name + "()"
	}
	class := s.Class
	if class == "" {
		class = "Unknown"
	}
	return class + "::" + s.Name + "()"
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s (%s:%d)", s.Signature(), s.File, s.Line)
}

// Reference is one textual use of a symbol, usually a call site
type Reference struct {
	File   string
	Line   int
	Column int
	Offset uint
	// Callee is the name used at the call site
	Callee string
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Column)
}

// Resolver is the host capability the discovery core consumes.
// Both calls may be slow and must never run on the notification goroutine.
type Resolver interface {
	// FindReferences returns every reference to sym. Order is not guaranteed.
	FindReferences(ctx context.Context, sym Symbol) ([]Reference, error)

	// ContainingDeclaration returns the nearest named declaration enclosing ref.
	// The boolean is false for references outside any declaration.
	ContainingDeclaration(ctx context.Context, ref Reference) (Symbol, bool, error)
}

// ContextProvider is implemented by hosts that can show source around a declaration
type ContextProvider interface {
	CodeContext(sym Symbol) (string, error)
}

// NoContext is the snippet used when a host cannot supply source
const NoContext = "// Code context not available"
