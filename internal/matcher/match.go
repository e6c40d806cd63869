package matcher

import (
	"fmt"

	"github.com/JNZader/shapescan/internal/query"
	"github.com/JNZader/shapescan/internal/rules"
)

// RuleMatch is one check firing once against one source.
type RuleMatch struct {
	rule   *rules.Rule
	key    string
	index  int
	source string
	result query.Result
}

// Rule returns the rule that fired.
func (m RuleMatch) Rule() *rules.Rule { return m.rule }

// RuleKey returns the key the rule was loaded under.
func (m RuleMatch) RuleKey() string { return m.key }

// CheckerIndex returns the position of the firing check within its rule.
func (m RuleMatch) CheckerIndex() int { return m.index }

// Checker returns the firing check.
func (m RuleMatch) Checker() *rules.Checker { return m.rule.Check(m.index) }

// Source returns the scanned text.
func (m RuleMatch) Source() string { return m.source }

// Result returns the structural match.
func (m RuleMatch) Result() query.Result { return m.result }

// Value returns the text bound to the variable name.
func (m RuleMatch) Value(name string) (string, bool) {
	return m.result.Value(name, m.source)
}

// Display renders an excerpt of the source around the match.
func (m RuleMatch) Display(before, after int, lineNumbers bool) string {
	return m.result.Display(m.source, before, after, lineNumbers)
}

// Report projects the match into a serializable record.
func (m RuleMatch) Report() RuleMatchReport {
	return NewReport(m)
}

func (m RuleMatch) String() string {
	return fmt.Sprintf("%s/%s@%d", m.rule.ID(), m.Checker().Name(), m.result.StartOffset())
}
