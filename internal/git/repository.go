package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Only changed lines are needed, so diffs carry no context.
const noContextFlag = "--unified=0"

// Repository is the subset of git a diff-limited scan needs.
type Repository interface {
	// Root returns the top-level directory of the work tree.
	Root(ctx context.Context) (string, error)

	// StagedDiff returns the changes in the index.
	StagedDiff(ctx context.Context) (*Diff, error)

	// BaseDiff returns the changes between the merge base of base and
	// HEAD and the work tree.
	BaseDiff(ctx context.Context, base string) (*Diff, error)
}

// Repo implements Repository with the git binary.
type Repo struct {
	path string
}

// NewRepo opens the repository containing path.
func NewRepo(ctx context.Context, path string) (*Repo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	repo := &Repo{path: absPath}
	if _, err := repo.Root(ctx); err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	return repo, nil
}

func (r *Repo) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), nil
}

func (r *Repo) Root(ctx context.Context) (string, error) {
	out, err := r.runGit(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(strings.TrimSpace(out)), nil
}

func (r *Repo) StagedDiff(ctx context.Context) (*Diff, error) {
	out, err := r.runGit(ctx, "diff", "--cached", "--no-color", "--no-ext-diff", noContextFlag)
	if err != nil {
		return nil, err
	}
	return ParseDiff(out)
}

func (r *Repo) BaseDiff(ctx context.Context, base string) (*Diff, error) {
	mergeBase, err := r.runGit(ctx, "merge-base", base, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to find merge base: %w", err)
	}
	out, err := r.runGit(ctx, "diff", "--no-color", "--no-ext-diff", noContextFlag, strings.TrimSpace(mergeBase))
	if err != nil {
		return nil, err
	}
	return ParseDiff(out)
}
