// Package query defines the contract between the rule engine and a
// structural pattern engine.
//
// A structural engine parses C or C++ source into a Tree, compiles textual
// patterns into Patterns, and runs a Pattern over a Tree to produce Results.
// The rules and matcher packages only depend on these interfaces; the
// tree-sitter backed implementation lives in internal/ast.
package query

// Sigil prefixes every query variable name, as in "$func".
const Sigil = "$"

// Tree is a parsed source file. It is only meaningful to the Engine that
// produced it and must not outlive a single matching call.
type Tree interface {
	// CXX reports whether the tree was parsed with the C++ grammar.
	CXX() bool
}

// Parser turns source text into a Tree. A Parser is not safe for
// concurrent use.
type Parser interface {
	Parse(source string) (Tree, error)
}

// Pattern is a compiled structural query.
type Pattern interface {
	// Variables returns the sigiled names of every variable the pattern binds.
	Variables() []string
	// Identifiers returns literal identifiers that must occur in any source
	// the pattern matches.
	Identifiers() []string
	// Matches runs the pattern over tree. source must be the text tree was
	// parsed from.
	Matches(tree Tree, source string) []Result
}

// LimitedPattern is a Pattern that bounds the work of one call.
// MatchesLimited reports whether results were dropped because a bound was
// reached.
type LimitedPattern interface {
	Pattern
	MatchesLimited(tree Tree, source string) (results []Result, truncated bool)
}

// Engine compiles patterns and creates parsers.
type Engine interface {
	NewParser(cxx bool) (Parser, error)
	Compile(pattern string, cxx bool, regexes RegexMap) (Pattern, error)
}
