// Package scan runs a rule set over files on disk using a pool of
// matchers, one per worker.
package scan

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/JNZader/shapescan/internal/cache"
	"github.com/JNZader/shapescan/internal/logger"
	"github.com/JNZader/shapescan/internal/matcher"
	"github.com/JNZader/shapescan/internal/metrics"
	"github.com/JNZader/shapescan/internal/rules"
	"github.com/JNZader/shapescan/internal/worker"
)

// Options configures a scan.
type Options struct {
	// Language is "auto", "c" or "c++".
	Language string
	// Workers is the number of parallel matchers; 0 uses GOMAXPROCS.
	Workers int
	// Filter selects files; nil scans every file named or found.
	Filter *PathFilter
	// Progress, when set, is called after each file from a single
	// goroutine.
	Progress func(done, total int, path string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache reuses findings of unchanged files.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics records scan metrics in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMatcherOptions passes options to every matcher the engine builds.
func WithMatcherOptions(opts ...matcher.Option) Option {
	return func(e *Engine) { e.matcherOpts = append(e.matcherOpts, opts...) }
}

// Engine orchestrates a scan.
type Engine struct {
	rules       *rules.RuleSet
	opts        Options
	matcherOpts []matcher.Option
	cache       cache.Cache
	metrics     *metrics.Collector
	log         *logger.Logger
}

// NewEngine creates a scan engine for rs.
func NewEngine(rs *rules.RuleSet, opts Options, options ...Option) (*Engine, error) {
	lang, err := ParseLanguage(opts.Language)
	if err != nil {
		return nil, err
	}
	opts.Language = lang
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Filter == nil {
		opts.Filter, _ = NewPathFilter(nil, nil, nil, 0)
	}

	e := &Engine{rules: rs, opts: opts}
	for _, o := range options {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.Global()
	}
	if e.log == nil {
		e.log = logger.Default()
	}
	e.log = e.log.WithPrefix("SCAN")
	return e, nil
}

// Result contains the findings of one scan.
type Result struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Rules    int           `json:"rules"`
	Files    []FileResult  `json:"files"`
	Skipped  []Skipped     `json:"skipped,omitempty"`
	Totals   Totals        `json:"totals"`
}

// FileResult contains the findings for a single file.
type FileResult struct {
	Path     string                    `json:"path"`
	Language string                    `json:"language"`
	Matches  []matcher.RuleMatchReport `json:"matches,omitempty"`
	Stats    matcher.Stats             `json:"stats"`
	Cached   bool                      `json:"cached"`
	Error    string                    `json:"error,omitempty"`
}

// Totals summarizes a scan.
type Totals struct {
	Files         int            `json:"files"`
	Skipped       int            `json:"skipped"`
	Errors        int            `json:"errors"`
	ParseFailures int            `json:"parse_failures"`
	Truncated     int            `json:"truncated"`
	CacheHits     int            `json:"cache_hits"`
	Matches       int            `json:"matches"`
	BySeverity    map[string]int `json:"by_severity,omitempty"`
}

// Finding pairs a report with the file it was found in.
type Finding struct {
	Path   string
	Report matcher.RuleMatchReport
}

// Findings returns every finding in file order.
func (r *Result) Findings() []Finding {
	var out []Finding
	for _, f := range r.Files {
		for _, m := range f.Matches {
			out = append(out, Finding{Path: f.Path, Report: m})
		}
	}
	return out
}

// CountAtLeast returns the number of findings at or above sev.
func (r *Result) CountAtLeast(sev rules.Severity) int {
	n := 0
	for _, f := range r.Files {
		for _, m := range f.Matches {
			if m.Severity >= sev {
				n++
			}
		}
	}
	return n
}

// Retain drops the findings keep rejects and recomputes the totals.
func (r *Result) Retain(keep func(path string, m matcher.RuleMatchReport) bool) {
	for i := range r.Files {
		f := &r.Files[i]
		kept := f.Matches[:0]
		for _, m := range f.Matches {
			if keep(f.Path, m) {
				kept = append(kept, m)
			}
		}
		f.Matches = kept
		f.Stats.Matches = len(kept)
		if len(kept) == 0 {
			f.Matches = nil
		}
	}
	r.summarize()
}

// scanTask implements worker.Task for one file. Its result slot is only
// read after the pool reports the task done.
type scanTask struct {
	target Target
	engine *Engine
	result *FileResult
}

func (t *scanTask) ID() string { return t.target.Path }

func (t *scanTask) Execute(ctx context.Context, m *matcher.RuleMatcher) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	*t.result = t.engine.scanFile(m, t.target)
	return nil
}

// Run scans the files under paths.
func (e *Engine) Run(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	e.metrics.SetRulesLoaded(e.rules.Len())

	targets, skipped, err := Discover(ctx, paths, e.opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	for _, s := range skipped {
		e.metrics.FileSkipped(s.Reason)
	}

	result := &Result{
		ID:      uuid.NewString(),
		Started: start,
		Rules:   e.rules.Len(),
		Skipped: skipped,
	}
	if len(targets) == 0 {
		e.log.Info("No files to scan")
		result.Duration = time.Since(start)
		result.summarize()
		return result, nil
	}

	files, err := e.runPool(ctx, targets)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Error != SkipBinary {
			result.Files = append(result.Files, f)
			continue
		}
		result.Skipped = append(result.Skipped, Skipped{Path: f.Path, Reason: SkipBinary})
	}
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i].Path < result.Skipped[j].Path })

	result.Duration = time.Since(start)
	result.summarize()

	e.log.Info("Scan %s completed: %d files, %d findings, %d errors in %v",
		result.ID, result.Totals.Files, result.Totals.Matches, result.Totals.Errors, result.Duration)
	return result, nil
}

// runPool scans targets with one matcher per worker and returns the file
// results in target order.
func (e *Engine) runPool(ctx context.Context, targets []Target) ([]FileResult, error) {
	workers := min(e.opts.Workers, len(targets))
	base, err := matcher.New(e.rules, append([]matcher.Option{matcher.WithLogger(e.log)}, e.matcherOpts...)...)
	if err != nil {
		return nil, err
	}

	pool := worker.NewPool(worker.Config{Workers: workers, QueueSize: len(targets)},
		func(i int) (*matcher.RuleMatcher, error) {
			if i == 0 {
				return base, nil
			}
			return base.Fork()
		})
	if err := pool.Start(); err != nil {
		return nil, err
	}
	e.log.Debug("Scanning %d files with %d workers", len(targets), workers)

	files := make([]FileResult, len(targets))
	for i, t := range targets {
		task := &scanTask{target: t, engine: e, result: &files[i]}
		if err := pool.Submit(task); err != nil {
			pool.Stop()
			return nil, err
		}
	}

	for done := 0; done < len(targets); {
		select {
		case r := <-pool.Results():
			done++
			if e.opts.Progress != nil {
				e.opts.Progress(done, len(targets), r.TaskID)
			}
		case <-ctx.Done():
			e.log.Warn("Scan cancelled: %v", ctx.Err())
			pool.Stop()
			return nil, ctx.Err()
		}
	}
	pool.StopWait()
	return files, nil
}

func (e *Engine) scanFile(m *matcher.RuleMatcher, t Target) FileResult {
	cxx := DetectCXX(t.Path, e.opts.Language)
	fr := FileResult{Path: t.Path, Language: languageName(cxx)}

	data, err := os.ReadFile(t.Path)
	if err != nil {
		e.log.Warn("Cannot read %s: %v", t.Path, err)
		e.metrics.FileSkipped(SkipUnreadable)
		fr.Error = err.Error()
		return fr
	}
	if isBinary(data) {
		e.metrics.FileSkipped(SkipBinary)
		fr.Error = SkipBinary
		return fr
	}
	source := string(data)

	var key string
	if e.cache != nil {
		key = cache.ComputeKey(e.rules.Fingerprint(), cxx, source)
		if cached, found, err := e.cache.Get(key); err == nil && found {
			e.metrics.CacheHit()
			e.log.Debug("Cache hit for %s", t.Path)
			for i := range cached {
				cached[i].Source = source
			}
			fr.Matches, fr.Cached = cached, true
			fr.Stats.Matches = len(cached)
			e.record(fr)
			return fr
		}
		e.metrics.CacheMiss()
	}

	timer := e.metrics.StartTimer()
	matches, stats := m.Inspect(source, cxx)
	timer.ObserveDuration()

	fr.Stats = stats
	if len(matches) > 0 {
		fr.Matches = make([]matcher.RuleMatchReport, len(matches))
		for i, match := range matches {
			fr.Matches[i] = match.Report()
		}
	}
	switch {
	case stats.Viable == 0:
		e.metrics.PrefilterRejected()
	case stats.ParseFailed:
		e.metrics.ParseFailed()
		e.log.Debug("Parse failed for %s", t.Path)
	}
	if stats.Truncated {
		e.log.Warn("Matching stopped early in %s, some findings may be missing", t.Path)
	}

	if e.cache != nil {
		if err := e.cache.Set(key, fr.Matches); err != nil {
			e.log.Warn("Cache write failed for %s: %v", t.Path, err)
		}
	}
	e.record(fr)
	return fr
}

func (e *Engine) record(fr FileResult) {
	e.metrics.FileScanned(fr.Language)
	for _, m := range fr.Matches {
		e.metrics.Match(m.Rule, m.Severity.String())
	}
}

func (r *Result) summarize() {
	t := Totals{Skipped: len(r.Skipped), BySeverity: make(map[string]int)}
	for _, f := range r.Files {
		t.Files++
		if f.Error != "" {
			t.Errors++
		}
		if f.Stats.ParseFailed {
			t.ParseFailures++
		}
		if f.Stats.Truncated {
			t.Truncated++
		}
		if f.Cached {
			t.CacheHits++
		}
		t.Matches += len(f.Matches)
		for _, m := range f.Matches {
			t.BySeverity[m.Severity.String()]++
		}
	}
	r.Totals = t
}
