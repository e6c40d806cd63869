package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNZader/shapescan/internal/matcher"
	"github.com/JNZader/shapescan/internal/query"
	"github.com/JNZader/shapescan/internal/rules"
	"github.com/JNZader/shapescan/internal/scan"
)

const getsSource = `int main(void)
{
    char line[64];
    gets(line);
    return 0;
}
`

func getsFinding() matcher.RuleMatchReport {
	at := strings.Index(getsSource, "gets(line)")
	return matcher.RuleMatchReport{
		Rule:        "gets-usage",
		Checker:     "gets",
		Description: "Use of gets",
		Tags:        []string{"memory"},
		Severity:    rules.SeverityHigh,
		Source:      getsSource,
		Match: query.Result{
			Function:     query.Span{Start: 0, End: len(getsSource)},
			FunctionName: "main",
			Captures: []query.Capture{
				{Span: query.Span{Start: at, End: at + len("gets(line)")}},
				{Span: query.Span{Start: at + 5, End: at + 9}},
			},
			Vars: map[string]int{"$buf": 1},
		},
	}
}

func sampleResult() *scan.Result {
	return &scan.Result{
		ID:       "scan-1",
		Started:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
		Rules:    2,
		Files: []scan.FileResult{
			{Path: "src/main.c", Language: scan.LanguageC, Matches: []matcher.RuleMatchReport{getsFinding()}},
			{Path: "src/clean.c", Language: scan.LanguageC},
			{Path: "src/gone.c", Language: scan.LanguageC, Error: "permission denied"},
		},
		Skipped: []scan.Skipped{{Path: "src/blob.c", Reason: scan.SkipBinary}},
		Totals: scan.Totals{
			Files: 3, Skipped: 1, Errors: 1, Matches: 1,
			BySeverity: map[string]int{"high": 1},
		},
	}
}

func TestNewReporter(t *testing.T) {
	for _, format := range AvailableFormats() {
		r, err := NewReporter(format, Options{})
		require.NoError(t, err, format)
		assert.Equal(t, format, r.Format())
	}

	r, err := NewReporter("md", Options{})
	require.NoError(t, err)
	assert.Equal(t, "markdown", r.Format())

	_, err = NewReporter("html", Options{})
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]string{
		"out.json":       "json",
		"out.SARIF":      "sarif",
		"report.md":      "markdown",
		"report.txt":     "text",
		"report":         "",
		"dir/report.xml": "",
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectFormat(path), path)
	}
}

func TestLocate(t *testing.T) {
	loc := Locate(getsFinding())
	assert.Equal(t, Location{Line: 4, Column: 5, EndLine: 4, EndColumn: 15}, loc)

	noCaptures := getsFinding()
	noCaptures.Match.Captures = nil
	noCaptures.Match.Vars = nil
	assert.Equal(t, 1, Locate(noCaptures).Line)
}

func TestFunctionNameDemangles(t *testing.T) {
	m := getsFinding()
	assert.Equal(t, "main", functionName(m))

	m.Match.FunctionName = "_ZN3foo3barEv"
	assert.Equal(t, "foo::bar()", functionName(m))
}

func TestJSONReporter(t *testing.T) {
	r := &JSONReporter{Indent: true, Options: Options{Before: 0, After: 0}}
	out, err := r.Generate(sampleResult())
	require.NoError(t, err)

	var doc struct {
		ID    string `json:"id"`
		Files []struct {
			Path     string           `json:"path"`
			Error    string           `json:"error"`
			Findings []map[string]any `json:"findings"`
		} `json:"files"`
		Skipped []scan.Skipped `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "scan-1", doc.ID)
	require.Len(t, doc.Files, 3)
	assert.Equal(t, "permission denied", doc.Files[2].Error)
	assert.Empty(t, doc.Files[1].Findings)
	require.Len(t, doc.Files[0].Findings, 1)
	assert.Len(t, doc.Skipped, 1)

	f := doc.Files[0].Findings[0]
	assert.Equal(t, "gets-usage", f["rule"])
	assert.Equal(t, "high", f["severity"])
	assert.Equal(t, "main", f["function"])
	assert.Equal(t, map[string]any{"$buf": "line"}, f["values"])
	assert.Equal(t, float64(4), f["location"].(map[string]any)["line"])
	assert.Contains(t, f["excerpt"], "gets(line);")
	assert.NotContains(t, f, "source")

	var buf bytes.Buffer
	require.NoError(t, r.Write(sampleResult(), &buf))
	assert.JSONEq(t, out, buf.String())
}

func TestSARIFReporter(t *testing.T) {
	r := &SARIFReporter{Version: "1.2.3"}
	out, err := r.Generate(sampleResult())
	require.NoError(t, err)

	var doc sarifReport
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]
	assert.Equal(t, "shapescan", run.Tool.Driver.Name)
	assert.Equal(t, "1.2.3", run.Tool.Driver.Version)

	require.Len(t, run.Tool.Driver.Rules, 1)
	assert.Equal(t, "gets-usage", run.Tool.Driver.Rules[0].ID)
	assert.Equal(t, "Use of gets", run.Tool.Driver.Rules[0].ShortDescription.Text)
	assert.Equal(t, "error", run.Tool.Driver.Rules[0].DefaultConfiguration.Level)

	require.Len(t, run.Results, 1)
	res := run.Results[0]
	assert.Equal(t, "gets-usage", res.RuleID)
	assert.Equal(t, "error", res.Level)
	assert.Equal(t, "Use of gets in main ($buf=line)", res.Message.Text)
	require.Len(t, res.Locations, 1)
	assert.Equal(t, "src/main.c", res.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, 4, res.Locations[0].PhysicalLocation.Region.StartLine)
	assert.Equal(t, "main", res.Locations[0].LogicalLocations[0].Name)

	require.Len(t, run.Invocations, 1)
	require.Len(t, run.Invocations[0].Notifications, 1)
	assert.Equal(t, "permission denied", run.Invocations[0].Notifications[0].Message.Text)
}

func TestSARIFLevels(t *testing.T) {
	r := &SARIFReporter{}
	assert.Equal(t, "error", r.mapLevel(rules.SeverityCritical))
	assert.Equal(t, "warning", r.mapLevel(rules.SeverityMedium))
	assert.Equal(t, "note", r.mapLevel(rules.SeverityLow))
	assert.Equal(t, "note", r.mapLevel(rules.SeverityNone))
}

func TestMarkdownReporter(t *testing.T) {
	r := &MarkdownReporter{Options: Options{LineNumbers: true}}
	out, err := r.Generate(sampleResult())
	require.NoError(t, err)

	assert.Contains(t, out, "# Scan Report")
	assert.Contains(t, out, "- **Findings:** 1")
	assert.Contains(t, out, "| high | 1 |")
	assert.Contains(t, out, "### src/main.c")
	assert.Contains(t, out, "#### [HIGH] `gets-usage` Use of gets")
	assert.Contains(t, out, "**Location:** Line 4 in `main`")
	assert.Contains(t, out, "**Bindings:** `$buf=line`")
	assert.Contains(t, out, "```c\n")
	assert.Contains(t, out, "4:     gets(line);")
	assert.Contains(t, out, "Error: permission denied")
	assert.NotContains(t, out, "src/clean.c")
}

func TestMarkdownReporterNoFindings(t *testing.T) {
	out, err := (&MarkdownReporter{}).Generate(&scan.Result{Totals: scan.Totals{Files: 2}})
	require.NoError(t, err)
	assert.Contains(t, out, "No findings.")
}

func TestTextReporter(t *testing.T) {
	r := &TextReporter{Options: Options{Before: 1, After: 1, LineNumbers: true}}
	out, err := r.Generate(sampleResult())
	require.NoError(t, err)

	assert.Contains(t, out, "src/main.c:4:5: [high] Use of gets in main ($buf=line)\n")
	assert.Contains(t, out, "  rule gets-usage, check gets\n")
	assert.Contains(t, out, "    3:     char line[64];\n")
	assert.Contains(t, out, "    4:     gets(line);\n")
	assert.Contains(t, out, "src/gone.c: error: permission denied\n")
	assert.Contains(t, out, "1 findings in 3 files (1 skipped, 1 errors) in 1.5s\n")
	assert.NotContains(t, out, "\x1b[")
}

func TestTextReporterColor(t *testing.T) {
	r := &TextReporter{Options: Options{Color: true}}
	out, err := r.Generate(sampleResult())
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[")
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "1 findings in 3 files", Summary(sampleResult()))
}
