package git

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type fakeRepo struct {
	root   string
	staged string
	base   map[string]string
}

func (f *fakeRepo) Root(context.Context) (string, error) { return f.root, nil }

func (f *fakeRepo) StagedDiff(context.Context) (*Diff, error) { return ParseDiff(f.staged) }

func (f *fakeRepo) BaseDiff(_ context.Context, base string) (*Diff, error) {
	text, ok := f.base[base]
	if !ok {
		return nil, errors.New("unknown revision")
	}
	return ParseDiff(text)
}

func TestLoadStaged(t *testing.T) {
	root := t.TempDir()
	repo := &fakeRepo{root: root, staged: modifiedDiff + `diff --git a/old.c b/old.c
deleted file mode 100644
--- a/old.c
+++ /dev/null
@@ -1 +0,0 @@
-int x;
diff --git a/README.md b/README.md
--- a/README.md
+++ b/README.md
@@ -1 +1 @@
-a
+b
`}

	changes, err := Load(context.Background(), repo, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	src := filepath.Join(root, "src", "io.c")
	paths := changes.Paths(nil)
	if len(paths) != 2 || paths[0] != filepath.Join(root, "README.md") || paths[1] != src {
		t.Errorf("Paths(nil) = %v", paths)
	}
	sources := changes.Paths(func(p string) bool { return filepath.Ext(p) == ".c" })
	if len(sources) != 1 || sources[0] != src {
		t.Errorf("Paths(.c) = %v, want [%s]", sources, src)
	}

	tests := []struct {
		start, end int
		want       bool
	}{
		{4, 4, true},
		{5, 5, true},
		{1, 3, false},
		{6, 11, false},
		{10, 12, true},
		{13, 20, false},
	}
	for _, tt := range tests {
		if got := changes.Touches(src, tt.start, tt.end); got != tt.want {
			t.Errorf("Touches(%d, %d) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
	if changes.Touches(filepath.Join(root, "old.c"), 1, 1) {
		t.Error("deleted file reported as touched")
	}
}

func TestLoadBase(t *testing.T) {
	repo := &fakeRepo{root: t.TempDir(), base: map[string]string{"main": modifiedDiff}}

	changes, err := Load(context.Background(), repo, "main")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(changes.Paths(nil)) != 1 {
		t.Errorf("Paths() = %v, want one file", changes.Paths(nil))
	}

	if _, err := Load(context.Background(), repo, "missing"); err == nil {
		t.Error("expected error for unknown base")
	}
}

func TestNewRepoOutsideRepository(t *testing.T) {
	if _, err := NewRepo(context.Background(), filepath.Join(t.TempDir(), "nowhere")); err == nil {
		t.Error("expected error outside a repository")
	}
}
