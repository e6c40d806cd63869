package rules

import (
	"strings"

	"github.com/JNZader/shapescan/internal/query"
)

// CheckSpec is the uncompiled form of a check.
type CheckSpec struct {
	Name     string
	Language CheckerLanguage
	Pattern  string
	Regexes  []string
	Limit    bool
	Unique   bool
}

// Checker is one compiled structural check. It is immutable once compiled
// and safe to share between goroutines.
type Checker struct {
	name        string
	language    CheckerLanguage
	source      string
	pattern     query.Pattern
	identifiers []string
	limit       bool
	unique      bool
}

// CompileChecker compiles spec with engine.
func CompileChecker(engine query.Engine, spec CheckSpec) (*Checker, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, ErrNoCheckName
	}

	regexes, err := ParseRegexConstraints(spec.Regexes)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(spec.Pattern) == "" {
		return nil, ErrNoPattern
	}
	pattern, err := engine.Compile(spec.Pattern, spec.Language.IsCXX(), regexes)
	if err != nil {
		return nil, &PatternError{Pattern: spec.Pattern, Err: err}
	}

	bound := make(map[string]bool)
	for _, v := range pattern.Variables() {
		bound[v] = true
	}
	for _, name := range regexes.Names() {
		if !bound[name] {
			return nil, &QueryVariableError{Name: name}
		}
	}

	return &Checker{
		name:        spec.Name,
		language:    spec.Language,
		source:      spec.Pattern,
		pattern:     pattern,
		identifiers: append([]string(nil), pattern.Identifiers()...),
		limit:       spec.Limit,
		unique:      spec.Unique,
	}, nil
}

// Name returns the check name.
func (c *Checker) Name() string { return c.name }

// Language returns the grammar the pattern was compiled for.
func (c *Checker) Language() CheckerLanguage { return c.language }

// Pattern returns the pattern text the checker was compiled from.
func (c *Checker) Pattern() string { return c.source }

// Identifiers returns the literals a source must contain to match.
func (c *Checker) Identifiers() []string {
	return append([]string(nil), c.identifiers...)
}

// Limit reports whether at most one match per start offset is kept.
func (c *Checker) Limit() bool { return c.limit }

// Unique reports whether matches that only repeat earlier values are dropped.
func (c *Checker) Unique() bool { return c.unique }

// CanMatch reports whether every required identifier occurs in source.
// A false result guarantees the checker has no match in source.
func (c *Checker) CanMatch(source string) bool {
	for _, ident := range c.identifiers {
		if !strings.Contains(source, ident) {
			return false
		}
	}
	return true
}

// Match runs the checker over tree and applies its unique and limit
// policies. Result order follows the engine.
func (c *Checker) Match(tree query.Tree, source string) []query.Result {
	results, _ := c.MatchLimited(tree, source)
	return results
}

// MatchLimited is Match that also reports whether the engine stopped
// early and dropped results.
func (c *Checker) MatchLimited(tree query.Tree, source string) ([]query.Result, bool) {
	var (
		results   []query.Result
		truncated bool
	)
	if lp, ok := c.pattern.(query.LimitedPattern); ok {
		results, truncated = lp.MatchesLimited(tree, source)
	} else {
		results = c.pattern.Matches(tree, source)
	}
	if !c.unique && !c.limit {
		return results, truncated
	}
	return c.filter(results, source), truncated
}

// filter drops results rejected by the unique or limit policy. State is
// local to one call and only kept results update it.
func (c *Checker) filter(results []query.Result, source string) []query.Result {
	seenValues := make(map[string]struct{})
	seenOffsets := make(map[int]struct{})

	kept := make([]query.Result, 0, len(results))
	for _, r := range results {
		values := r.Values(source)
		if c.unique && len(values) > 0 && !anyNovel(values, seenValues) {
			continue
		}
		offset := r.StartOffset()
		if c.limit {
			if _, dup := seenOffsets[offset]; dup {
				continue
			}
		}

		for _, v := range values {
			seenValues[v] = struct{}{}
		}
		seenOffsets[offset] = struct{}{}
		kept = append(kept, r)
	}
	return kept
}

func anyNovel(values []string, seen map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			return true
		}
	}
	return false
}
