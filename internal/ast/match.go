package ast

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/JNZader/shapescan/internal/query"
)

const (
	// maxSteps bounds node comparisons per Matches call.
	maxSteps = 5_000_000
	// maxResultsPerRoot bounds the results collected from one function body.
	maxResultsPerRoot = 1024
)

// bound is one captured node. Statement captures have no name.
type bound struct {
	name    string
	start   int
	end     int
	kind    string
	compact string
}

// env is an immutable list of captures; with always copies.
type env []bound

func (e env) with(b bound) env {
	out := make(env, len(e), len(e)+1)
	copy(out, e)
	return append(out, b)
}

func (e env) lookup(name string) (bound, bool) {
	for _, b := range e {
		if b.name == name {
			return b, true
		}
	}
	return bound{}, false
}

type spanKey struct {
	start, end uint32
	kind       string
}

type matcher struct {
	src     []byte
	regexes query.RegexMap
	steps   int
	cache   map[spanKey][]*sitter.Node
}

// Matches implements query.Pattern. Trees from other engines yield no
// results.
func (p *Pattern) Matches(tree query.Tree, source string) []query.Result {
	results, _ := p.MatchesLimited(tree, source)
	return results
}

// MatchesLimited implements query.LimitedPattern. It reports truncation
// when the step budget runs out or a function yields more than
// maxResultsPerRoot results.
func (p *Pattern) MatchesLimited(tree query.Tree, _ string) ([]query.Result, bool) {
	t, ok := tree.(*Tree)
	if !ok || t == nil {
		return nil, false
	}

	m := &matcher{
		src:     t.src,
		regexes: p.regexes,
		steps:   maxSteps,
		cache:   make(map[spanKey][]*sitter.Node),
	}

	var (
		results   []query.Result
		truncated bool
	)
	for _, root := range outermostBlocks(t.Root()) {
		fn := root
		name := ""
		if parent := root.Parent(); parent != nil && parent.Type() == "function_definition" {
			fn = parent
			name = functionName(parent, t.src)
		}

		seen := make(map[string]bool)
		envs := m.block(p.root, root, nil)
		for _, e := range envs {
			k := e.key()
			if seen[k] {
				continue
			}
			if len(seen) >= maxResultsPerRoot {
				truncated = true
				break
			}
			seen[k] = true
			results = append(results, e.result(span(fn), name))
		}
		if m.steps <= 0 {
			truncated = true
			break
		}
	}
	return results, truncated
}

// outermostBlocks returns compound statements not nested in another one.
func outermostBlocks(root *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	walk(root, func(n *sitter.Node) bool {
		if n.Type() == "compound_statement" {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

func (e env) key() string {
	var sb strings.Builder
	for _, b := range e {
		sb.WriteString(b.name)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(b.start))
		sb.WriteByte('-')
		sb.WriteString(strconv.Itoa(b.end))
		sb.WriteByte(';')
	}
	return sb.String()
}

func (e env) result(fn query.Span, name string) query.Result {
	r := query.Result{
		Function:     fn,
		FunctionName: name,
		Captures:     make([]query.Capture, 0, len(e)),
		Vars:         make(map[string]int),
	}
	for _, b := range e {
		if b.name != "" {
			r.Vars[b.name] = len(r.Captures)
		}
		r.Captures = append(r.Captures, query.Capture{
			Span: query.Span{Start: b.start, End: b.end},
			Kind: b.kind,
		})
	}
	return r
}

func (m *matcher) match(p *pnode, n *sitter.Node, e env) []env {
	if n == nil || m.steps <= 0 {
		return nil
	}
	m.steps--

	switch {
	case p.wildcard:
		return []env{e}
	case p.variable != "":
		return m.bind(p.variable, n, e)
	case p.kind == "compound_statement":
		if n.Type() != "compound_statement" {
			return nil
		}
		return m.block(p, n, e)
	case p.kind == "argument_list":
		if n.Type() != "argument_list" {
			return nil
		}
		return m.arguments(p, n, e)
	case p.isLeaf():
		if m.leafEqual(p, n) {
			return []env{e}
		}
		return nil
	}

	if n.Type() != p.kind {
		return nil
	}
	children := m.children(n)
	if p.kind == "if_statement" && len(children) > len(p.children) {
		// A pattern without else still matches an if that has one.
		children = children[:len(p.children)]
	}
	return m.sequence(p.children, children, e)
}

func (m *matcher) leafEqual(p *pnode, n *sitter.Node) bool {
	kind := n.Type()
	if isIdentifierKind(p.kind) {
		return isIdentifierKind(kind) && n.Content(m.src) == p.text
	}
	if kind != p.kind || n.IsNamed() != p.named {
		return false
	}
	if !p.named {
		return true
	}
	return compact(n.Content(m.src)) == compact(p.text)
}

// bind captures n as the variable name. A repeated variable must bind
// the same text, ignoring whitespace.
func (m *matcher) bind(name string, n *sitter.Node, e env) []env {
	text := n.Content(m.src)
	c := compact(text)
	if prev, ok := e.lookup(name); ok {
		if prev.compact == c {
			return []env{e}
		}
		return nil
	}
	if !m.regexes.Allows(name, text) {
		return nil
	}
	return []env{e.with(bound{
		name:    name,
		start:   int(n.StartByte()),
		end:     int(n.EndByte()),
		kind:    n.Type(),
		compact: c,
	})}
}

// sequence matches pattern children against node children pairwise.
func (m *matcher) sequence(ps []*pnode, ns []*sitter.Node, e env) []env {
	if len(ps) != len(ns) {
		return nil
	}
	envs := []env{e}
	for i, p := range ps {
		var next []env
		for _, cur := range envs {
			next = append(next, m.match(p, ns[i], cur)...)
		}
		if len(next) == 0 {
			return nil
		}
		envs = next
	}
	return envs
}

// arguments matches pattern arguments against the leading source
// arguments. An empty pattern list matches any call.
func (m *matcher) arguments(p *pnode, n *sitter.Node, e env) []env {
	pargs := p.namedChildren()
	if len(pargs) == 0 {
		return []env{e}
	}
	args := m.namedChildren(n)
	if len(args) < len(pargs) {
		return nil
	}
	return m.sequence(pargs, args[:len(pargs)], e)
}

// block matches the statements of a block pattern, in order, against the
// descendants of the source block n.
func (m *matcher) block(p *pnode, n *sitter.Node, e env) []env {
	return m.statements(p.namedChildren(), m.descendants(n), 0, e)
}

func (m *matcher) statements(stmts []*pnode, cands []*sitter.Node, from int, e env) []env {
	if len(stmts) == 0 {
		return []env{e}
	}

	target := stmts[0]
	if target.kind == "expression_statement" {
		if exprs := target.namedChildren(); len(exprs) == 1 {
			// An expression statement matches the expression anywhere.
			target = exprs[0]
		}
	}

	var out []env
	for i := from; i < len(cands) && m.steps > 0; i++ {
		c := cands[i]
		for _, matched := range m.match(target, c, e) {
			next := matched.with(bound{
				start: int(c.StartByte()),
				end:   int(c.EndByte()),
				kind:  c.Type(),
			})
			out = append(out, m.statements(stmts[1:], cands, after(cands, i), next)...)
		}
	}
	return out
}

// after returns the index of the first candidate starting at or after the
// end of cands[i].
func after(cands []*sitter.Node, i int) int {
	end := cands[i].EndByte()
	j := i + 1
	for j < len(cands) && cands[j].StartByte() < end {
		j++
	}
	return j
}

// descendants lists the named descendants of n in preorder.
func (m *matcher) descendants(n *sitter.Node) []*sitter.Node {
	k := spanKey{n.StartByte(), n.EndByte(), n.Type()}
	if d, ok := m.cache[k]; ok {
		return d
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), func(d *sitter.Node) bool {
			if d.IsNamed() && d.Type() != "comment" {
				out = append(out, d)
			}
			return true
		})
	}
	m.cache[k] = out
	return out
}

func (m *matcher) children(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

func (m *matcher) namedChildren(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
