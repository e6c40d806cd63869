package matcher

import (
	"github.com/JNZader/shapescan/internal/query"
	"github.com/JNZader/shapescan/internal/rules"
)

// RuleMatchReport is the serialized form of a RuleMatch.
type RuleMatchReport struct {
	Rule        string         `json:"rule"`
	Checker     string         `json:"checker"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Severity    rules.Severity `json:"severity"`
	Source      string         `json:"source"`
	Match       query.Result   `json:"match"`
}

// NewReport flattens m.
func NewReport(m RuleMatch) RuleMatchReport {
	return RuleMatchReport{
		Rule:        m.rule.ID(),
		Checker:     m.Checker().Name(),
		Description: m.rule.Description(),
		Tags:        m.rule.Tags(),
		Severity:    m.rule.Severity(),
		Source:      m.source,
		Match:       m.result.Clone(),
	}
}

// Clone returns a copy that shares no mutable state with r.
func (r RuleMatchReport) Clone() RuleMatchReport {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	out.Match = r.Match.Clone()
	return out
}

// Display renders an excerpt of the source around the match.
func (r RuleMatchReport) Display(before, after int, lineNumbers bool) string {
	return r.Match.Display(r.Source, before, after, lineNumbers)
}
