package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/JNZader/shapescan/internal/query"
)

// DefaultCheckName names a check that does not declare one.
const DefaultCheckName = "default"

// Rule is a named bundle of checks loaded from one YAML document.
type Rule struct {
	id          string
	author      string
	description string
	severity    Severity
	tags        []string
	checks      []*Checker
	digest      uint64
}

// ID returns the rule identifier.
func (r *Rule) ID() string { return r.id }

// Author returns the rule author, if any.
func (r *Rule) Author() string { return r.author }

// Description returns the rule description, if any.
func (r *Rule) Description() string { return r.description }

// Severity returns the rule severity.
func (r *Rule) Severity() Severity { return r.severity }

// Tags returns the rule tags sorted and without duplicates.
func (r *Rule) Tags() []string {
	return append([]string(nil), r.tags...)
}

// HasTag reports whether the rule carries tag, ignoring case.
func (r *Rule) HasTag(tag string) bool {
	for _, t := range r.tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Checks returns the rule's checks in declaration order.
func (r *Rule) Checks() []*Checker {
	return append([]*Checker(nil), r.checks...)
}

// Check returns the check at index i, or nil when out of range.
func (r *Rule) Check(i int) *Checker {
	if i < 0 || i >= len(r.checks) {
		return nil
	}
	return r.checks[i]
}

// ruleDocument is the YAML form of a rule. The checks may be given under
// any of four equivalent keys.
type ruleDocument struct {
	ID          string     `yaml:"id"`
	Author      string     `yaml:"author"`
	Description string     `yaml:"description"`
	Severity    Severity   `yaml:"severity"`
	Tags        stringList `yaml:"tags"`

	CheckPatterns       checkList `yaml:"check patterns"`
	CheckPatternsDashed checkList `yaml:"check-patterns"`
	CheckPattern        checkList `yaml:"check pattern"`
	CheckPatternDashed  checkList `yaml:"check-pattern"`
}

type checkDocument struct {
	Name     *string         `yaml:"name"`
	Language CheckerLanguage `yaml:"language"`
	Pattern  string          `yaml:"pattern"`
	Regex    stringList      `yaml:"regex"`
	Regexes  stringList      `yaml:"regexes"`
	Limit    bool            `yaml:"limit"`
	Unique   bool            `yaml:"unique"`
}

// checkList accepts a single check mapping or a sequence of them.
type checkList struct {
	set    bool
	checks []checkDocument
}

func (l *checkList) UnmarshalYAML(node *yaml.Node) error {
	l.set = true
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&l.checks)
	case yaml.MappingNode:
		var c checkDocument
		if err := node.Decode(&c); err != nil {
			return err
		}
		l.checks = []checkDocument{c}
		return nil
	default:
		return fmt.Errorf("line %d: expected a check or a list of checks", node.Line)
	}
}

// stringList accepts a scalar or a sequence of scalars.
type stringList struct {
	set    bool
	values []string
}

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	l.set = true
	switch node.Kind {
	case yaml.ScalarNode:
		l.values = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		return node.Decode(&l.values)
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// ParseRule decodes and compiles a single YAML rule document.
func ParseRule(data []byte, engine query.Engine) (*Rule, error) {
	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		return nil, ErrNoID
	}

	checks, err := doc.checkDocuments()
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(checks))
	specs := make([]CheckSpec, 0, len(checks))
	for _, c := range checks {
		spec, err := c.spec()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(spec.Name) == "" {
			return nil, &CheckError{Check: spec.Name, Err: ErrNoCheckName}
		}
		if len(checks) > 1 {
			if names[spec.Name] {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateCheckName, spec.Name)
			}
			names[spec.Name] = true
		}
		specs = append(specs, spec)
	}

	rule := &Rule{
		id:          id,
		author:      doc.Author,
		description: doc.Description,
		severity:    doc.Severity,
		tags:        normalizeTags(doc.Tags.values),
		digest:      xxhash.Sum64(data),
	}
	for _, spec := range specs {
		checker, err := CompileChecker(engine, spec)
		if err != nil {
			return nil, &CheckError{Check: spec.Name, Err: err}
		}
		rule.checks = append(rule.checks, checker)
	}
	return rule, nil
}

func (d *ruleDocument) checkDocuments() ([]checkDocument, error) {
	var found *checkList
	for _, l := range []*checkList{&d.CheckPatterns, &d.CheckPatternsDashed, &d.CheckPattern, &d.CheckPatternDashed} {
		if !l.set {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: checks are given under more than one key", ErrParse)
		}
		found = l
	}
	if found == nil || len(found.checks) == 0 {
		return nil, ErrNoChecks
	}
	return found.checks, nil
}

func (c *checkDocument) spec() (CheckSpec, error) {
	name := DefaultCheckName
	if c.Name != nil {
		name = *c.Name
	}
	if c.Regex.set && c.Regexes.set {
		return CheckSpec{}, &CheckError{Check: name, Err: fmt.Errorf("%w: both regex and regexes are given", ErrParse)}
	}
	regexes := c.Regex.values
	if c.Regexes.set {
		regexes = c.Regexes.values
	}
	return CheckSpec{
		Name:     name,
		Language: c.Language,
		Pattern:  c.Pattern,
		Regexes:  regexes,
		Limit:    c.Limit,
		Unique:   c.Unique,
	}, nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
