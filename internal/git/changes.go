package git

import (
	"context"
	"path/filepath"
	"sort"
)

// Changes maps the files changed in a diff to their added lines.
// Paths are absolute.
type Changes struct {
	files map[string]map[int]bool
}

// NewChanges collects the added lines of d. Paths in d are relative to
// root. Deleted and binary files are left out.
func NewChanges(root string, d *Diff) *Changes {
	c := &Changes{files: make(map[string]map[int]bool)}
	for i := range d.Files {
		f := &d.Files[i]
		if f.Status == FileDeleted || f.IsBinary || f.Path == "" {
			continue
		}
		lines := make(map[int]bool)
		for _, n := range f.AddedLines() {
			lines[n] = true
		}
		c.files[filepath.Join(root, filepath.FromSlash(f.Path))] = lines
	}
	return c
}

// Load reads the staged changes of repo, or its changes since base when
// base is not empty.
func Load(ctx context.Context, repo Repository, base string) (*Changes, error) {
	root, err := repo.Root(ctx)
	if err != nil {
		return nil, err
	}
	var d *Diff
	if base == "" {
		d, err = repo.StagedDiff(ctx)
	} else {
		d, err = repo.BaseDiff(ctx, base)
	}
	if err != nil {
		return nil, err
	}
	return NewChanges(root, d), nil
}

// Paths returns the changed files that keep accepts, sorted.
func (c *Changes) Paths(keep func(path string) bool) []string {
	out := make([]string, 0, len(c.files))
	for p := range c.files {
		if keep == nil || keep(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Touches reports whether any line in [start, end] of path was added.
func (c *Changes) Touches(path string, start, end int) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	lines := c.files[abs]
	for n := start; n <= end; n++ {
		if lines[n] {
			return true
		}
	}
	return false
}
