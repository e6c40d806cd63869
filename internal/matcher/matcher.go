// Package matcher runs the checks of a rule set against source text.
//
// A RuleMatcher owns one parser per language variant and shares its
// RuleSet read-only. Parsers are not safe for concurrent use, so callers
// that scan in parallel give each worker its own matcher via Fork.
package matcher

import (
	"errors"
	"fmt"

	"github.com/JNZader/shapescan/internal/ast"
	"github.com/JNZader/shapescan/internal/logger"
	"github.com/JNZader/shapescan/internal/query"
	"github.com/JNZader/shapescan/internal/rules"
)

// ErrParser is returned when a parser cannot be constructed.
var ErrParser = errors.New("parser construction failed")

// Option configures a RuleMatcher.
type Option func(*RuleMatcher)

// WithEngine sets the engine used to build parsers. It must be the engine
// the rule set was compiled with.
func WithEngine(engine query.Engine) Option {
	return func(m *RuleMatcher) { m.engine = engine }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(m *RuleMatcher) { m.log = log }
}

// RuleMatcher matches a RuleSet against sources.
type RuleMatcher struct {
	rules     *rules.RuleSet
	engine    query.Engine
	log       *logger.Logger
	cParser   query.Parser
	cxxParser query.Parser
}

// Stats describes one matching call.
type Stats struct {
	// Viable is the number of checks that passed the identifier pre-filter.
	Viable int `json:"viable"`
	// Parsed is set when the source was handed to the parser.
	Parsed bool `json:"parsed"`
	// ParseFailed is set when the parser rejected the source.
	ParseFailed bool `json:"parse_failed"`
	// Matches is the number of matches returned.
	Matches int `json:"matches"`
	// Truncated is set when a check hit the engine's work bounds and
	// some of its matches were dropped.
	Truncated bool `json:"truncated,omitempty"`
}

// New creates a matcher for rs. Both parsers are built up front.
func New(rs *rules.RuleSet, opts ...Option) (*RuleMatcher, error) {
	m := &RuleMatcher{rules: rs}
	for _, opt := range opts {
		opt(m)
	}
	if m.rules == nil {
		m.rules = rules.NewRuleSet(nil)
	}
	if m.engine == nil {
		m.engine = ast.NewEngine()
	}
	if m.log == nil {
		m.log = logger.Default()
	}
	m.log = m.log.WithPrefix("MATCHER")

	var err error
	if m.cParser, err = m.engine.NewParser(false); err != nil {
		return nil, fmt.Errorf("%w: c: %w", ErrParser, err)
	}
	if m.cxxParser, err = m.engine.NewParser(true); err != nil {
		return nil, fmt.Errorf("%w: c++: %w", ErrParser, err)
	}
	return m, nil
}

// FromString builds a matcher from a single YAML rule.
func FromString(text string, opts ...Option) (*RuleMatcher, error) {
	return build(opts, func(ro []rules.Option) (*rules.RuleSet, error) {
		return rules.FromString(text, ro...)
	})
}

// FromFile builds a matcher from a YAML rule file.
func FromFile(path string, opts ...Option) (*RuleMatcher, error) {
	return build(opts, func(ro []rules.Option) (*rules.RuleSet, error) {
		return rules.FromFile(path, ro...)
	})
}

// FromDirectory builds a matcher from every rule file under root,
// skipping files that fail to load.
func FromDirectory(root string, opts ...Option) (*RuleMatcher, error) {
	return FromDirectoryWith(root, true, opts...)
}

// FromDirectoryWith builds a matcher from every rule file under root. When
// ignoreErrors is false the first invalid file aborts the load.
func FromDirectoryWith(root string, ignoreErrors bool, opts ...Option) (*RuleMatcher, error) {
	return build(opts, func(ro []rules.Option) (*rules.RuleSet, error) {
		return rules.FromDirectory(root, ignoreErrors, ro...)
	})
}

// build loads rules with the engine and logger from opts, so the rule set
// and the parsers agree on one engine.
func build(opts []Option, load func([]rules.Option) (*rules.RuleSet, error)) (*RuleMatcher, error) {
	probe := &RuleMatcher{}
	for _, opt := range opts {
		opt(probe)
	}
	if probe.engine == nil {
		probe.engine = ast.NewEngine()
		opts = append(opts, WithEngine(probe.engine))
	}
	ro := []rules.Option{rules.WithEngine(probe.engine)}
	if probe.log != nil {
		ro = append(ro, rules.WithLogger(probe.log))
	}

	rs, err := load(ro)
	if err != nil {
		return nil, err
	}
	return New(rs, opts...)
}

// Rules returns the rule set.
func (m *RuleMatcher) Rules() *rules.RuleSet { return m.rules }

// Fork returns a matcher with fresh parsers sharing the same rule set.
func (m *RuleMatcher) Fork() (*RuleMatcher, error) {
	return New(m.rules, WithEngine(m.engine), WithLogger(m.log))
}

// Matches matches source with the C++ grammar.
func (m *RuleMatcher) Matches(source string) []RuleMatch {
	return m.MatchesWith(source, true)
}

// MatchesWith matches source with the C grammar, or the C++ grammar when
// cxx is set.
func (m *RuleMatcher) MatchesWith(source string, cxx bool) []RuleMatch {
	out, _ := m.Inspect(source, cxx)
	return out
}

// Inspect matches source like MatchesWith and also reports what happened.
// Sources that fail to parse yield no matches.
func (m *RuleMatcher) Inspect(source string, cxx bool) ([]RuleMatch, Stats) {
	var stats Stats

	viable := m.rules.ViableCheckers(source)
	stats.Viable = len(viable)
	if len(viable) == 0 {
		return nil, stats
	}

	parser := m.cParser
	if cxx {
		parser = m.cxxParser
	}
	stats.Parsed = true
	tree, err := parser.Parse(source)
	if err != nil {
		stats.ParseFailed = true
		m.log.Debug("parse failed, skipping %d checks: %v", len(viable), err)
		return nil, stats
	}

	var out []RuleMatch
	for _, v := range viable {
		results, truncated := v.Checker.MatchLimited(tree, source)
		if truncated {
			stats.Truncated = true
			m.log.Debug("check %s/%s truncated after %d matches", v.Key, v.Checker.Name(), len(results))
		}
		for _, r := range results {
			out = append(out, RuleMatch{
				rule:   v.Rule,
				key:    v.Key,
				index:  v.Index,
				source: source,
				result: r,
			})
		}
	}
	stats.Matches = len(out)
	return out, stats
}
