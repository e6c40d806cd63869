package ast

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/JNZader/shapescan/internal/query"
)

const (
	// varPrefix replaces the "$" sigil so patterns parse as plain C.
	varPrefix   = "__shapescan_var_"
	wrapperName = "__shapescan_pattern"
	wildcard    = "_"
)

var (
	// ErrSyntax is returned for patterns that are not valid C or C++.
	ErrSyntax = errors.New("pattern is not valid code")
	// ErrShape is returned for patterns that are not a statement block.
	ErrShape = errors.New("pattern must be a block or a list of statements")
)

var variableRe = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// pnode is an immutable pattern node.
type pnode struct {
	kind     string
	named    bool
	text     string
	variable string
	wildcard bool
	children []*pnode
}

func (p *pnode) isLeaf() bool { return len(p.children) == 0 }

func (p *pnode) namedChildren() []*pnode {
	out := make([]*pnode, 0, len(p.children))
	for _, c := range p.children {
		if c.named {
			out = append(out, c)
		}
	}
	return out
}

// Pattern is a compiled pattern. It is immutable and safe for concurrent use.
type Pattern struct {
	text        string
	root        *pnode
	cxx         bool
	regexes     query.RegexMap
	variables   []string
	identifiers []string
}

// Compile implements query.Engine.
func (e *Engine) Compile(pattern string, cxx bool, regexes query.RegexMap) (query.Pattern, error) {
	return CompilePattern(pattern, cxx, regexes)
}

// CompilePattern parses pattern with the C grammar, or the C++ grammar when
// cxx is set.
func CompilePattern(pattern string, cxx bool, regexes query.RegexMap) (*Pattern, error) {
	wrapped := wrap(variableRe.ReplaceAllString(pattern, varPrefix+"$1"))

	parser := sitter.NewParser()
	parser.SetLanguage(language(cxx))
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(wrapped))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %q", ErrSyntax, pattern)
	}
	if root.NamedChildCount() != 1 || root.NamedChild(0).Type() != "function_definition" {
		return nil, fmt.Errorf("%w: %q", ErrShape, pattern)
	}
	body := root.NamedChild(0).ChildByFieldName("body")
	if body == nil || body.Type() != "compound_statement" {
		return nil, fmt.Errorf("%w: %q", ErrShape, pattern)
	}

	p := &Pattern{
		text:    pattern,
		root:    build(body, []byte(wrapped)),
		cxx:     cxx,
		regexes: regexes,
	}
	p.collect()
	return p, nil
}

// wrap turns a pattern into a function definition.
func wrap(pattern string) string {
	p := strings.TrimSpace(pattern)
	if strings.HasPrefix(p, "{") {
		return "void " + wrapperName + "(void) " + p
	}
	if !strings.HasSuffix(p, ";") && !strings.HasSuffix(p, "}") {
		p += ";"
	}
	return "void " + wrapperName + "(void) {\n" + p + "\n}"
}

func isIdentifierKind(kind string) bool {
	switch kind {
	case "identifier", "type_identifier", "field_identifier",
		"namespace_identifier", "statement_identifier":
		return true
	}
	return false
}

// isLiteralKind lists nodes compared by their whole text.
func isLiteralKind(kind string) bool {
	switch kind {
	case "string_literal", "char_literal", "raw_string_literal",
		"concatenated_string", "number_literal", "system_lib_string":
		return true
	}
	return false
}

func build(n *sitter.Node, src []byte) *pnode {
	p := &pnode{kind: n.Type(), named: n.IsNamed()}

	if isIdentifierKind(p.kind) {
		p.text = n.Content(src)
		switch {
		case strings.HasPrefix(p.text, varPrefix):
			p.variable = query.Sigil + strings.TrimPrefix(p.text, varPrefix)
		case p.text == wildcard:
			p.wildcard = true
		}
		return p
	}
	if isLiteralKind(p.kind) || n.ChildCount() == 0 {
		p.text = n.Content(src)
		return p
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "comment" {
			continue
		}
		p.children = append(p.children, build(child, src))
	}
	return p
}

// collect records the pattern's variables and literal identifiers.
func (p *Pattern) collect() {
	vars := make(map[string]bool)
	idents := make(map[string]bool)
	var visit func(*pnode)
	visit = func(n *pnode) {
		switch {
		case n.variable != "":
			vars[n.variable] = true
		case n.wildcard:
		case isIdentifierKind(n.kind):
			idents[n.text] = true
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(p.root)

	p.variables = sortedKeys(vars)
	p.identifiers = sortedKeys(idents)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Variables implements query.Pattern.
func (p *Pattern) Variables() []string {
	return append([]string(nil), p.variables...)
}

// Identifiers implements query.Pattern.
func (p *Pattern) Identifiers() []string {
	return append([]string(nil), p.identifiers...)
}

// String returns the pattern text.
func (p *Pattern) String() string { return p.text }
