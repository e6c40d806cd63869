// Package ast implements the structural pattern engine of shapescan on top
// of tree-sitter's C and C++ grammars.
//
// Patterns are written as C or C++ code. "$name" stands for any expression
// or name and must bind the same text wherever it repeats, "_" matches any
// single node, and statements in a block pattern match in order anywhere
// inside a function body.
package ast

import (
	"context"
	"errors"
	"fmt"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/JNZader/shapescan/internal/query"
)

// DefaultParseTimeout bounds a single parse.
const DefaultParseTimeout = 10 * time.Second

// ErrParse is returned when tree-sitter produces no tree.
var ErrParse = errors.New("source could not be parsed")

// Engine is the tree-sitter implementation of query.Engine.
type Engine struct {
	// ParseTimeout bounds each Parse call. Zero means DefaultParseTimeout.
	ParseTimeout time.Duration
}

// NewEngine returns an engine with default settings.
func NewEngine() *Engine {
	return &Engine{ParseTimeout: DefaultParseTimeout}
}

func language(cxx bool) *sitter.Language {
	if cxx {
		return cpp.GetLanguage()
	}
	return c.GetLanguage()
}

// NewParser implements query.Engine.
func (e *Engine) NewParser(cxx bool) (query.Parser, error) {
	return NewParser(cxx, e.ParseTimeout)
}

// Parser parses C or C++ source. It is not safe for concurrent use.
type Parser struct {
	parser  *sitter.Parser
	cxx     bool
	timeout time.Duration
}

// NewParser creates a parser for the C grammar, or the C++ grammar when
// cxx is set.
func NewParser(cxx bool, timeout time.Duration) (*Parser, error) {
	lang := language(cxx)
	if lang == nil {
		return nil, fmt.Errorf("tree-sitter grammar unavailable (cxx=%v)", cxx)
	}
	p := sitter.NewParser()
	p.SetLanguage(lang)
	if timeout <= 0 {
		timeout = DefaultParseTimeout
	}
	return &Parser{parser: p, cxx: cxx, timeout: timeout}, nil
}

// Parse implements query.Parser.
func (p *Parser) Parse(source string) (query.Tree, error) {
	return p.ParseTree(source)
}

// ParseTree parses source and returns the concrete tree.
func (p *Parser) ParseTree(source string) (*Tree, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	src := []byte(source)
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		// An abandoned parse is resumed by the next call unless reset.
		p.parser.Reset()
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if tree == nil || tree.RootNode() == nil {
		p.parser.Reset()
		return nil, ErrParse
	}
	return &Tree{tree: tree, src: src, cxx: p.cxx}, nil
}

// Tree is a parsed source file.
type Tree struct {
	tree *sitter.Tree
	src  []byte
	cxx  bool
}

// CXX implements query.Tree.
func (t *Tree) CXX() bool { return t.cxx }

// Root returns the root node.
func (t *Tree) Root() *sitter.Node { return t.tree.RootNode() }

// HasErrors reports whether tree-sitter had to recover from syntax errors.
func (t *Tree) HasErrors() bool { return t.Root().HasError() }

// Function is a function definition found in a tree.
type Function struct {
	Name      string     `json:"name"`
	Span      query.Span `json:"span"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
}

// Functions lists the function definitions of the tree in source order.
func (t *Tree) Functions() []Function {
	var out []Function
	walk(t.Root(), func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		out = append(out, Function{
			Name:      functionName(n, t.src),
			Span:      span(n),
			StartLine: int(n.StartPoint().Row) + 1,
			EndLine:   int(n.EndPoint().Row) + 1,
		})
		return true
	})
	return out
}

// walk visits n and its descendants in preorder. Returning false from
// visit skips the children of that node.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func span(n *sitter.Node) query.Span {
	return query.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

// functionName digs the declared name out of a function_definition.
func functionName(fn *sitter.Node, src []byte) string {
	d := fn.ChildByFieldName("declarator")
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "qualified_identifier",
			"destructor_name", "operator_name", "template_function":
			return d.Content(src)
		case "parenthesized_declarator":
			d = d.NamedChild(0)
		default:
			d = d.ChildByFieldName("declarator")
		}
	}
	return ""
}
