package query

import (
	"regexp"
	"sort"
)

// RegexConstraint restricts the text a variable may bind to.
type RegexConstraint struct {
	Negate bool
	Regex  *regexp.Regexp
}

// Allows reports whether value satisfies the constraint.
func (c RegexConstraint) Allows(value string) bool {
	return c.Regex.MatchString(value) != c.Negate
}

// RegexMap maps sigiled variable names to their constraint.
type RegexMap map[string]RegexConstraint

// Allows reports whether name may bind value. Unconstrained names allow
// any value.
func (m RegexMap) Allows(name, value string) bool {
	c, ok := m[name]
	if !ok {
		return true
	}
	return c.Allows(value)
}

// Names returns the constrained variable names in sorted order.
func (m RegexMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
