// Package rules provides the rule model of shapescan.
//
// A rule is one YAML document naming a finding (id, severity, tags) and
// one or more checks. Each check is a structural pattern compiled by a
// query.Engine, optionally constrained by "var=regex" entries, plus the
// unique and limit post-match policies. Rules are gathered into a RuleSet
// keyed by where they were loaded from.
package rules
