package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JNZader/shapescan/internal/query"
)

// ParseRegexConstraints builds the constraint map for a check from
// "var=regex" entries.
//
// The variable side is trimmed and given the "$" sigil when it lacks one.
// A trailing "!" negates the constraint, so "func!=^str" binds $func only
// to text that does not start with "str". When two entries name the same
// variable the later entry wins.
func ParseRegexConstraints(entries []string) (query.RegexMap, error) {
	m := make(query.RegexMap, len(entries))
	for _, entry := range entries {
		name, expr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, &RegexError{Entry: entry, Err: ErrInvalidFormat}
		}

		name = strings.TrimSpace(name)
		expr = strings.TrimSpace(expr)
		if !strings.HasPrefix(name, query.Sigil) {
			name = query.Sigil + name
		}
		negate := false
		if strings.HasSuffix(name, "!") {
			name = strings.TrimSpace(strings.TrimSuffix(name, "!"))
			negate = true
		}
		if name == query.Sigil {
			return nil, &RegexError{Entry: entry, Err: ErrInvalidFormat}
		}

		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, &RegexError{Entry: entry, Err: fmt.Errorf("%w: %w", ErrInvalidRegex, err)}
		}
		m[name] = query.RegexConstraint{Negate: negate, Regex: re}
	}
	return m, nil
}
