package rules

import (
	"fmt"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/JNZader/shapescan/internal/query/querytest"
)

// createTestRuleSet builds count rules whose checks require distinct identifiers.
func createTestRuleSet(b *testing.B, count int) *RuleSet {
	b.Helper()
	fsys := fstest.MapFS{}
	for i := 0; i < count; i++ {
		doc := fmt.Sprintf("id: rule-%03d\nseverity: %s\ntags: [t%d]\ncheck-pattern:\n  pattern: func_%03d($x);\n",
			i, Severities()[i%5], i%7, i)
		fsys[fmt.Sprintf("rule-%03d.yaml", i)] = &fstest.MapFile{Data: []byte(doc)}
	}
	rs, err := FromFS(fsys, ".", false, WithEngine(querytest.New()))
	if err != nil {
		b.Fatalf("FromFS() error = %v", err)
	}
	return rs
}

func createTestSource(lines int) string {
	var sb strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&sb, "  v%d = func_%03d(v%d);\n", i, i%20, i)
	}
	return sb.String()
}

func BenchmarkViableCheckers_Small(b *testing.B) {
	rs := createTestRuleSet(b, 10)
	src := createTestSource(100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rs.ViableCheckers(src)
	}
}

func BenchmarkViableCheckers_Large(b *testing.B) {
	rs := createTestRuleSet(b, 500)
	src := createTestSource(5000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rs.ViableCheckers(src)
	}
}

func BenchmarkViableCheckers_Allocs(b *testing.B) {
	rs := createTestRuleSet(b, 100)
	src := createTestSource(1000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rs.ViableCheckers(src)
	}
}

func BenchmarkFilter(b *testing.B) {
	rs := createTestRuleSet(b, 500)
	f := Filter{MinSeverity: SeverityMedium, Tags: []string{"t1", "t3"}, ExcludeTags: []string{"t2"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rs.Filter(f)
	}
}

func BenchmarkParseRegexConstraints(b *testing.B) {
	entries := []string{"func=^(strcpy|strcat|stpcpy)$", "fmt!=^\"", "size!=^[0-9]+$"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParseRegexConstraints(entries)
	}
}

func BenchmarkFingerprint(b *testing.B) {
	rs := createTestRuleSet(b, 500)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rs.Fingerprint()
	}
}
