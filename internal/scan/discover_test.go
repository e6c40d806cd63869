package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func targetNames(dir string, targets []Target) []string {
	out := make([]string, len(targets))
	for i, tg := range targets {
		rel, _ := filepath.Rel(dir, tg.Path)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestDiscover(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.c":             "int main;",
		"util/str.cpp":       "void f();",
		"util/str.hpp":       "void f();",
		"README.md":          "docs",
		".git/objects/x.c":   "int x;",
		"build/gen/parser.c": "int y;",
	})
	filter, err := NewPathFilter(nil, []string{"**/.git/**", "**/build/**"}, []string{".c", ".cpp", ".hpp"}, 0)
	if err != nil {
		t.Fatal(err)
	}

	targets, skipped, err := Discover(context.Background(), []string{dir}, filter)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	got := targetNames(dir, targets)
	want := []string{"main.c", "util/str.cpp", "util/str.hpp"}
	if len(got) != len(want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("targets[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(skipped) != 0 {
		t.Errorf("skipped = %v, want none", skipped)
	}
}

func TestDiscoverExplicitFile(t *testing.T) {
	dir := writeTree(t, map[string]string{"snippet.inc": "gets(b);"})
	path := filepath.Join(dir, "snippet.inc")
	filter, _ := NewPathFilter(nil, nil, []string{".c"}, 0)

	targets, _, err := Discover(context.Background(), []string{path, path}, filter)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(targets) != 1 || targets[0].Path != path {
		t.Errorf("targets = %v, want only %s", targets, path)
	}
}

func TestDiscoverIncludeAndSize(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/a.c":   "int a;",
		"src/big.c": "int big_enough_to_skip;",
		"test/b.c":  "int b;",
	})
	filter, err := NewPathFilter([]string{"**/src/**"}, nil, []string{".c"}, 10)
	if err != nil {
		t.Fatal(err)
	}

	targets, skipped, err := Discover(context.Background(), []string{dir}, filter)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if got := targetNames(dir, targets); len(got) != 1 || got[0] != "src/a.c" {
		t.Errorf("targets = %v, want [src/a.c]", got)
	}

	reasons := make(map[string]string)
	for _, s := range skipped {
		rel, _ := filepath.Rel(dir, s.Path)
		reasons[filepath.ToSlash(rel)] = s.Reason
	}
	if reasons["src/big.c"] != SkipSize {
		t.Errorf("src/big.c reason = %q, want %q", reasons["src/big.c"], SkipSize)
	}
	if reasons["test/b.c"] != SkipExcluded {
		t.Errorf("test/b.c reason = %q, want %q", reasons["test/b.c"], SkipExcluded)
	}
}

func TestPathFilterAccepts(t *testing.T) {
	filter, err := NewPathFilter(nil, []string{"**/third_party/**"}, []string{".c", ".h"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]bool{
		"src/main.c":          true,
		"src/main.H":          true,
		"README.md":           false,
		"lib/third_party/z.c": false,
	}
	for path, want := range tests {
		if got := filter.Accepts(path); got != want {
			t.Errorf("Accepts(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNewPathFilterInvalidGlob(t *testing.T) {
	if _, err := NewPathFilter([]string{"[unclosed"}, nil, nil, 0); err == nil {
		t.Error("expected error for invalid glob")
	}
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"text", []byte("int main(void) { return 0; }"), false},
		{"empty", nil, false},
		{"nul", []byte("int\x00main"), true},
		{"nul after sniff window", append(make([]byte, 0, 9000), append(repeat('a', 8500), 0)...), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBinary(tt.data); got != tt.want {
				t.Errorf("isBinary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
