package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"
)

// Skip reasons reported for files that are not scanned.
const (
	SkipExcluded   = "excluded"
	SkipExtension  = "extension"
	SkipSize       = "size"
	SkipBinary     = "binary"
	SkipUnreadable = "unreadable"
)

// Target is a file selected for scanning.
type Target struct {
	Path string
	Size int64
}

// Skipped is a file that discovery or reading rejected.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// PathFilter decides which paths are scanned.
type PathFilter struct {
	include    []glob.Glob
	exclude    []glob.Glob
	extensions map[string]bool
	maxSize    int64
}

// NewPathFilter compiles include and exclude globs. Globs match slash
// separated paths as given on the command line; "**" crosses directories.
// A zero maxSize disables the size limit.
func NewPathFilter(include, exclude, extensions []string, maxSize int64) (*PathFilter, error) {
	f := &PathFilter{extensions: make(map[string]bool), maxSize: maxSize}
	var err error
	if f.include, err = compileGlobs(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compileGlobs(exclude); err != nil {
		return nil, err
	}
	for _, ext := range extensions {
		f.extensions[strings.ToLower(ext)] = true
	}
	return f, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// pruneDir reports whether a directory is excluded as a whole.
func (f *PathFilter) pruneDir(path string) bool {
	return matchAny(f.exclude, filepath.ToSlash(path)+"/")
}

// check returns the reason path is rejected, or "" when it is accepted.
// Explicitly named files skip the extension check.
func (f *PathFilter) check(path string, size int64, explicit bool) string {
	p := filepath.ToSlash(path)
	if matchAny(f.exclude, p) {
		return SkipExcluded
	}
	if len(f.include) > 0 && !matchAny(f.include, p) {
		return SkipExcluded
	}
	if !explicit && len(f.extensions) > 0 && !f.extensions[strings.ToLower(filepath.Ext(p))] {
		return SkipExtension
	}
	if f.maxSize > 0 && size > f.maxSize {
		return SkipSize
	}
	return ""
}

// Accepts reports whether path would be scanned if found in a directory,
// ignoring its size.
func (f *PathFilter) Accepts(path string) bool {
	return f.check(path, 0, false) == ""
}

// Discover walks roots concurrently and returns the files to scan sorted
// by path. Files named directly are always considered; directories are
// walked recursively. Extension mismatches are not reported as skipped.
func Discover(ctx context.Context, roots []string, filter *PathFilter) ([]Target, []Skipped, error) {
	var (
		mu      sync.Mutex
		seen    = make(map[string]bool)
		targets []Target
		skipped []Skipped
	)
	add := func(path string, size int64, explicit bool) {
		reason := filter.check(path, size, explicit)
		mu.Lock()
		defer mu.Unlock()
		if seen[path] {
			return
		}
		seen[path] = true
		switch reason {
		case "":
			targets = append(targets, Target{Path: path, Size: size})
		case SkipExtension:
		default:
			skipped = append(skipped, Skipped{Path: path, Reason: reason})
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		g.Go(func() error {
			info, err := os.Stat(root)
			if err != nil {
				return fmt.Errorf("scan root: %w", err)
			}
			if !info.IsDir() {
				add(filepath.Clean(root), info.Size(), true)
				return nil
			}
			return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					if errors.Is(err, fs.ErrPermission) {
						return nil
					}
					return err
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if d.IsDir() {
					if path != root && filter.pruneDir(path) {
						return filepath.SkipDir
					}
					return nil
				}
				if !d.Type().IsRegular() {
					return nil
				}
				info, err := d.Info()
				if err != nil {
					return nil
				}
				add(path, info.Size(), false)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Path < targets[j].Path })
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Path < skipped[j].Path })
	return targets, skipped, nil
}

// isBinary reports whether data looks like a binary file.
func isBinary(data []byte) bool {
	const sniff = 8000
	if len(data) > sniff {
		data = data[:sniff]
	}
	return bytes.IndexByte(data, 0) >= 0
}
