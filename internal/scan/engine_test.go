package scan

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNZader/shapescan/internal/cache"
	"github.com/JNZader/shapescan/internal/logger"
	"github.com/JNZader/shapescan/internal/matcher"
	"github.com/JNZader/shapescan/internal/metrics"
	"github.com/JNZader/shapescan/internal/query"
	"github.com/JNZader/shapescan/internal/query/querytest"
	"github.com/JNZader/shapescan/internal/rules"
)

const getsRule = `id: gets-usage
severity: high
check-pattern:
  name: gets
  pattern: gets($buf);
`

const getsSource = `int main(void)
{
    char line[64];
    gets(line);
    return 0;
}
`

type fixture struct {
	dir     string
	engine  *querytest.Engine
	metrics *metrics.Collector
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	qe := querytest.New().Register("gets($buf);", &querytest.Pattern{
		Vars:    []string{"$buf"},
		Idents:  []string{"gets"},
		Results: []query.Result{querytest.Bind(getsSource, 0, map[string]string{"$buf": "line"})},
	})
	return &fixture{dir: dir, engine: qe, metrics: metrics.NewCollector()}
}

func (f *fixture) scanner(t *testing.T, opts Options, extra ...Option) *Engine {
	t.Helper()
	rs, err := rules.FromString(getsRule, rules.WithEngine(f.engine))
	require.NoError(t, err)

	options := append([]Option{
		WithMetrics(f.metrics),
		WithLogger(logger.New(logger.LevelError, io.Discard)),
		WithMatcherOptions(matcher.WithEngine(f.engine)),
	}, extra...)
	e, err := NewEngine(rs, opts, options...)
	require.NoError(t, err)
	return e
}

func TestRunFindsMatchesInOrder(t *testing.T) {
	f := newFixture(t, map[string]string{
		"b.c":         getsSource,
		"a.c":         getsSource,
		"clean.c":     "int main(void) { return 0; }\n",
		"sub/deep.cc": getsSource,
		"notes.txt":   getsSource,
	})

	res, err := f.scanner(t, Options{Workers: 3, Filter: mustFilter(t, nil, nil, []string{".c", ".cc"})}).
		Run(context.Background(), []string{f.dir})
	require.NoError(t, err)

	require.Len(t, res.Files, 4)
	assert.Equal(t, filepath.Join(f.dir, "a.c"), res.Files[0].Path)
	assert.Equal(t, filepath.Join(f.dir, "b.c"), res.Files[1].Path)
	assert.Equal(t, filepath.Join(f.dir, "clean.c"), res.Files[2].Path)
	assert.Equal(t, filepath.Join(f.dir, "sub", "deep.cc"), res.Files[3].Path)

	assert.Equal(t, LanguageC, res.Files[0].Language)
	assert.Equal(t, LanguageCXX, res.Files[3].Language)
	assert.Empty(t, res.Files[2].Matches)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 1, res.Rules)
	assert.Equal(t, 4, res.Totals.Files)
	assert.Equal(t, 3, res.Totals.Matches)
	assert.Equal(t, map[string]int{"high": 3}, res.Totals.BySeverity)
	assert.Equal(t, 3, res.CountAtLeast(rules.SeverityHigh))
	assert.Zero(t, res.CountAtLeast(rules.SeverityCritical))

	findings := res.Findings()
	require.Len(t, findings, 3)
	assert.Equal(t, "gets-usage", findings[0].Report.Rule)
	assert.Equal(t, getsSource, findings[0].Report.Source)

	// The clean file never reaches the parser.
	assert.Equal(t, 3, f.engine.Parses())
	n, err := testutil.GatherAndCount(f.metrics.Registry(), metrics.MetricFilesScanned)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per language")
}

func TestRunReportsSkippedFiles(t *testing.T) {
	f := newFixture(t, map[string]string{
		"main.c":            getsSource,
		"big.c":             getsSource + "/* padding padding padding */\n",
		"vendor/lib.c":      getsSource,
		"blob.c":            "int x;\x00\x01",
		"ignored/readme.md": "text",
	})
	filter, err := NewPathFilter(nil, []string{"**/vendor/**"}, []string{".c"}, int64(len(getsSource)+10))
	require.NoError(t, err)

	res, err := f.scanner(t, Options{Workers: 2, Filter: filter}).Run(context.Background(), []string{f.dir})
	require.NoError(t, err)

	require.Len(t, res.Files, 1)
	assert.Equal(t, filepath.Join(f.dir, "main.c"), res.Files[0].Path)

	reasons := map[string]string{}
	for _, s := range res.Skipped {
		reasons[filepath.Base(s.Path)] = s.Reason
	}
	assert.Equal(t, map[string]string{"big.c": SkipSize, "blob.c": SkipBinary}, reasons)
	assert.Equal(t, 2, res.Totals.Skipped)
}

func TestRunUsesCache(t *testing.T) {
	f := newFixture(t, map[string]string{"main.c": getsSource})
	c := cache.NewLRUCache(10, 0)

	first, err := f.scanner(t, Options{}, WithCache(c)).Run(context.Background(), []string{f.dir})
	require.NoError(t, err)
	require.Len(t, first.Files, 1)
	assert.False(t, first.Files[0].Cached)

	second, err := f.scanner(t, Options{}, WithCache(c)).Run(context.Background(), []string{f.dir})
	require.NoError(t, err)
	require.Len(t, second.Files, 1)
	assert.True(t, second.Files[0].Cached)
	assert.Equal(t, 1, second.Totals.CacheHits)
	assert.Equal(t, 1, f.engine.Parses())

	require.Len(t, second.Files[0].Matches, 1)
	assert.Equal(t, getsSource, second.Files[0].Matches[0].Source)
	assert.Equal(t, first.Files[0].Matches, second.Files[0].Matches)
}

func TestRunCountsParseFailures(t *testing.T) {
	f := newFixture(t, map[string]string{"broken.c": getsSource + querytest.Unparseable})

	res, err := f.scanner(t, Options{}).Run(context.Background(), []string{f.dir})
	require.NoError(t, err)

	require.Len(t, res.Files, 1)
	assert.True(t, res.Files[0].Stats.ParseFailed)
	assert.Empty(t, res.Files[0].Matches)
	assert.Equal(t, 1, res.Totals.ParseFailures)
}

func TestRunCountsTruncatedFiles(t *testing.T) {
	f := newFixture(t, map[string]string{"a.c": getsSource, "b.c": getsSource})
	f.engine.Register("gets($buf);", &querytest.Pattern{
		Vars:      []string{"$buf"},
		Idents:    []string{"gets"},
		Results:   []query.Result{querytest.Bind(getsSource, 0, map[string]string{"$buf": "line"})},
		Truncated: true,
	})

	res, err := f.scanner(t, Options{}).Run(context.Background(), []string{f.dir})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Totals.Truncated)
	assert.True(t, res.Files[0].Stats.Truncated)
	assert.Equal(t, 2, res.Totals.Matches)
}

func TestRunForcedLanguage(t *testing.T) {
	f := newFixture(t, map[string]string{"main.c": getsSource})

	res, err := f.scanner(t, Options{Language: "cpp"}).Run(context.Background(), []string{f.dir})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, LanguageCXX, res.Files[0].Language)
}

func TestResultRetain(t *testing.T) {
	f := newFixture(t, map[string]string{"a.c": getsSource, "b.c": getsSource})

	res, err := f.scanner(t, Options{}).Run(context.Background(), []string{f.dir})
	require.NoError(t, err)
	require.Equal(t, 2, res.Totals.Matches)

	keep := filepath.Join(f.dir, "b.c")
	res.Retain(func(path string, m matcher.RuleMatchReport) bool { return path == keep })

	assert.Nil(t, res.Files[0].Matches)
	assert.Len(t, res.Files[1].Matches, 1)
	assert.Equal(t, 1, res.Totals.Matches)
	assert.Equal(t, map[string]int{"high": 1}, res.Totals.BySeverity)
}

func TestRunProgress(t *testing.T) {
	f := newFixture(t, map[string]string{"a.c": getsSource, "b.c": getsSource, "c.c": getsSource})

	var calls []int
	res, err := f.scanner(t, Options{
		Workers: 2,
		Progress: func(done, total int, path string) {
			assert.Equal(t, 3, total)
			assert.NotEmpty(t, path)
			calls = append(calls, done)
		},
	}).Run(context.Background(), []string{f.dir})
	require.NoError(t, err)
	assert.Len(t, res.Files, 3)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestRunNoFiles(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.scanner(t, Options{}).Run(context.Background(), []string{f.dir})
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Zero(t, res.Totals.Matches)
}

func TestRunMissingRoot(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.scanner(t, Options{}).Run(context.Background(), []string{filepath.Join(f.dir, "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, map[string]string{"a.c": getsSource})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.scanner(t, Options{}).Run(ctx, []string{f.dir})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngineRejectsUnknownLanguage(t *testing.T) {
	_, err := NewEngine(rules.NewRuleSet(nil), Options{Language: "rust"})
	assert.Error(t, err)
}

func mustFilter(t *testing.T, include, exclude, extensions []string) *PathFilter {
	t.Helper()
	f, err := NewPathFilter(include, exclude, extensions, 0)
	require.NoError(t, err)
	return f
}
