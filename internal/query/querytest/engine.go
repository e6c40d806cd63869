// Package querytest provides a scriptable query.Engine for tests.
//
// Patterns are registered by their exact text with the variables,
// identifiers and results they should report. Unregistered patterns
// compile to a pattern whose variables are the "$name" tokens of the text
// and whose identifiers are the remaining words.
package querytest

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/JNZader/shapescan/internal/query"
)

// Unparseable makes Parse fail for any source containing it.
const Unparseable = "#!unparseable"

// ErrParse is returned by Parse for sources containing Unparseable.
var ErrParse = errors.New("querytest: source does not parse")

// ErrCompile is returned by Compile for patterns containing "!!".
var ErrCompile = errors.New("querytest: invalid pattern")

// Pattern is a scripted pattern.
type Pattern struct {
	Vars    []string
	Idents  []string
	Results []query.Result

	// Regexes is the constraint map the pattern was compiled with.
	Regexes query.RegexMap
	// CXX is the grammar the pattern was compiled for.
	CXX bool
	// Truncated is reported by MatchesLimited.
	Truncated bool
}

// Variables implements query.Pattern.
func (p *Pattern) Variables() []string { return p.Vars }

// Identifiers implements query.Pattern.
func (p *Pattern) Identifiers() []string { return p.Idents }

// Matches implements query.Pattern and returns copies of the scripted
// results.
func (p *Pattern) Matches(_ query.Tree, _ string) []query.Result {
	out := make([]query.Result, len(p.Results))
	for i, r := range p.Results {
		out[i] = r.Clone()
	}
	return out
}

// MatchesLimited implements query.LimitedPattern.
func (p *Pattern) MatchesLimited(tree query.Tree, source string) ([]query.Result, bool) {
	return p.Matches(tree, source), p.Truncated
}

// Tree is the tree produced by Parser.
type Tree struct {
	cxx bool
}

// CXX implements query.Tree.
func (t Tree) CXX() bool { return t.cxx }

// Engine is a scriptable query.Engine. The zero value is ready to use.
type Engine struct {
	// ParserErr, when set, is returned by NewParser.
	ParserErr error

	mu       sync.Mutex
	patterns map[string]*Pattern
	parses   atomic.Int64
}

// New returns an empty engine.
func New() *Engine {
	return &Engine{}
}

// Register scripts the pattern returned for text.
func (e *Engine) Register(text string, p *Pattern) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.patterns == nil {
		e.patterns = make(map[string]*Pattern)
	}
	e.patterns[text] = p
	return e
}

// Parses returns how many times any parser created by e has run.
func (e *Engine) Parses() int {
	return int(e.parses.Load())
}

// NewParser implements query.Engine.
func (e *Engine) NewParser(cxx bool) (query.Parser, error) {
	if e.ParserErr != nil {
		return nil, e.ParserErr
	}
	return &parser{engine: e, cxx: cxx}, nil
}

var wordRe = regexp.MustCompile(`\$?[A-Za-z_][A-Za-z0-9_]*`)

// Compile implements query.Engine.
func (e *Engine) Compile(text string, cxx bool, regexes query.RegexMap) (query.Pattern, error) {
	if strings.Contains(text, "!!") {
		return nil, ErrCompile
	}

	e.mu.Lock()
	scripted, ok := e.patterns[text]
	e.mu.Unlock()
	if ok {
		p := *scripted
		p.Regexes, p.CXX = regexes, cxx
		return &p, nil
	}

	p := &Pattern{Regexes: regexes, CXX: cxx}
	seen := make(map[string]bool)
	for _, w := range wordRe.FindAllString(text, -1) {
		if w == "_" || seen[w] {
			continue
		}
		seen[w] = true
		if strings.HasPrefix(w, query.Sigil) {
			p.Vars = append(p.Vars, w)
		} else {
			p.Idents = append(p.Idents, w)
		}
	}
	return p, nil
}

type parser struct {
	engine *Engine
	cxx    bool
}

func (p *parser) Parse(source string) (query.Tree, error) {
	p.engine.parses.Add(1)
	if strings.Contains(source, Unparseable) {
		return nil, ErrParse
	}
	return Tree{cxx: p.cxx}, nil
}

// Bind builds a result anchored at start whose variables bind the given
// values. Each value is located by its first occurrence in source.
func Bind(source string, start int, vars map[string]string) query.Result {
	r := query.Result{
		Function: query.Span{Start: start, End: len(source)},
		Vars:     make(map[string]int, len(vars)),
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := vars[name]
		at := strings.Index(source, v)
		if at < 0 {
			at = 0
		}
		r.Vars[name] = len(r.Captures)
		r.Captures = append(r.Captures, query.Capture{Span: query.Span{Start: at, End: at + len(v)}})
	}
	return r
}
