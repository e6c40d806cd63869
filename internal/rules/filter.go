package rules

import (
	"strings"
)

// Filter selects rules by severity and tags.
type Filter struct {
	// MinSeverity drops rules below this severity.
	MinSeverity Severity
	// Tags, when non-empty, keeps only rules carrying at least one of them.
	Tags []string
	// ExcludeTags drops rules carrying any of them.
	ExcludeTags []string
	// IDs, when non-empty, keeps only rules with one of these ids.
	IDs []string
}

// IsZero reports whether the filter keeps every rule.
func (f Filter) IsZero() bool {
	return f.MinSeverity == SeverityNone && len(f.Tags) == 0 && len(f.ExcludeTags) == 0 && len(f.IDs) == 0
}

// Allows reports whether rule passes the filter.
func (f Filter) Allows(rule *Rule) bool {
	if rule.severity < f.MinSeverity {
		return false
	}
	if len(f.IDs) > 0 && !containsString(f.IDs, rule.id) {
		return false
	}
	for _, t := range f.ExcludeTags {
		if rule.HasTag(t) {
			return false
		}
	}
	if len(f.Tags) == 0 {
		return true
	}
	for _, t := range f.Tags {
		if rule.HasTag(t) {
			return true
		}
	}
	return false
}

// Filter returns the rules of rs that pass f, under their original keys.
func (rs *RuleSet) Filter(f Filter) *RuleSet {
	if f.IsZero() {
		return rs
	}
	kept := make(map[string]*Rule)
	for _, k := range rs.keys {
		if f.Allows(rs.rules[k]) {
			kept[k] = rs.rules[k]
		}
	}
	return NewRuleSet(kept)
}

// BySeverity returns the rules at or above minSeverity, in key order.
func (rs *RuleSet) BySeverity(minSeverity Severity) []*Rule {
	var out []*Rule
	for _, r := range rs.Rules() {
		if r.severity >= minSeverity {
			out = append(out, r)
		}
	}
	return out
}

func containsString(slice []string, s string) bool {
	for _, item := range slice {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
