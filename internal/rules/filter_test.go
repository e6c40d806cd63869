package rules

import (
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/JNZader/shapescan/internal/query/querytest"
)

func filterFixture(t *testing.T) *RuleSet {
	t.Helper()
	fsys := fstest.MapFS{
		"r1.yaml": {Data: []byte("id: R1\nseverity: low\ntags: [style]\ncheck-pattern:\n  pattern: a();\n")},
		"r2.yaml": {Data: []byte("id: R2\nseverity: medium\ntags: [memory]\ncheck-pattern:\n  pattern: b();\n")},
		"r3.yaml": {Data: []byte("id: R3\nseverity: high\ntags: [memory, experimental]\ncheck-pattern:\n  pattern: c();\n")},
		"r4.yaml": {Data: []byte("id: R4\nseverity: critical\ncheck-pattern:\n  pattern: d();\n")},
	}
	rs, err := FromFS(fsys, ".", false, WithEngine(querytest.New()))
	if err != nil {
		t.Fatalf("FromFS() error = %v", err)
	}
	return rs
}

func ids(rs []*Rule) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID())
	}
	return out
}

func TestRuleSetFilter(t *testing.T) {
	rs := filterFixture(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"zero filter keeps all", Filter{}, []string{"R1", "R2", "R3", "R4"}},
		{"min severity", Filter{MinSeverity: SeverityHigh}, []string{"R3", "R4"}},
		{"tags", Filter{Tags: []string{"MEMORY"}}, []string{"R2", "R3"}},
		{"exclude tags", Filter{ExcludeTags: []string{"experimental"}}, []string{"R1", "R2", "R4"}},
		{"ids", Filter{IDs: []string{"r1", "R4"}}, []string{"R1", "R4"}},
		{
			"combined",
			Filter{MinSeverity: SeverityMedium, Tags: []string{"memory"}, ExcludeTags: []string{"experimental"}},
			[]string{"R2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(rs.Filter(tt.filter).Rules())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRuleSetFilterKeepsKeys(t *testing.T) {
	rs := filterFixture(t)
	got := rs.Filter(Filter{MinSeverity: SeverityCritical}).Keys()
	if diff := cmp.Diff([]string{"r4.yaml"}, got); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestBySeverity(t *testing.T) {
	rs := filterFixture(t)

	tests := []struct {
		min  Severity
		want int
	}{
		{SeverityNone, 4},
		{SeverityLow, 4},
		{SeverityMedium, 3},
		{SeverityHigh, 2},
		{SeverityCritical, 1},
	}
	for _, tt := range tests {
		if got := len(rs.BySeverity(tt.min)); got != tt.want {
			t.Errorf("BySeverity(%v) = %d rules, want %d", tt.min, got, tt.want)
		}
	}
}

func TestContainsString(t *testing.T) {
	tests := []struct {
		slice []string
		s     string
		want  bool
	}{
		{[]string{"a", "b", "c"}, "b", true},
		{[]string{"a", "b", "c"}, "B", true},
		{[]string{"a", "b", "c"}, "d", false},
		{[]string{}, "a", false},
		{nil, "a", false},
	}
	for _, tt := range tests {
		if got := containsString(tt.slice, tt.s); got != tt.want {
			t.Errorf("containsString(%v, %q) = %v, want %v", tt.slice, tt.s, got, tt.want)
		}
	}
}
