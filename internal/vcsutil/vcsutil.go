// Package vcsutil detects changed files against a git base reference so
// the affected package can turn them into an affected-test query.
package vcsutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fenwicklabs/testselect/internal/affected"
)

// ErrNotARepo is returned when root is not inside a git working tree.
var ErrNotARepo = errors.New("vcsutil: not a git repository")

// ErrInvalidRef is returned when baseRef cannot be resolved.
type ErrInvalidRef struct {
	Ref string
}

func (e *ErrInvalidRef) Error() string {
	return fmt.Sprintf("vcsutil: invalid base reference %q", e.Ref)
}

// DefaultBase returns "main" if it resolves in root, otherwise "master".
func DefaultBase(ctx context.Context, root string) string {
	if refExists(ctx, root, "main") {
		return "main"
	}
	return "master"
}

// DetectChanges runs `git diff --name-status` between baseRef and the
// working tree and returns the resulting changeset. Paths are returned
// absolute, joined against root.
func DetectChanges(ctx context.Context, root, baseRef string) (affected.ChangeSet, error) {
	if !isGitRepo(ctx, root) {
		return affected.ChangeSet{}, ErrNotARepo
	}
	if !refExists(ctx, root, baseRef) {
		return affected.ChangeSet{}, &ErrInvalidRef{Ref: baseRef}
	}

	cmd := exec.CommandContext(ctx, "git", "diff", "--name-status", baseRef)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return affected.ChangeSet{}, fmt.Errorf("git diff --name-status %s: %w", baseRef, err)
	}

	return parseNameStatus(root, string(out)), nil
}

// CheckThreshold reports whether the number of files in changes exceeds
// maxFiles. A non-positive maxFiles disables the check.
func CheckThreshold(changes affected.ChangeSet, maxFiles int) bool {
	if maxFiles <= 0 {
		return false
	}
	total := len(changes.Modified) + len(changes.Added) + len(changes.Deleted) + len(changes.Renamed)
	if total > maxFiles {
		slog.Warn("change threshold exceeded", "changedFiles", total, "threshold", maxFiles)
		return true
	}
	return false
}

func isGitRepo(ctx context.Context, root string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = root
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func refExists(ctx context.Context, root, ref string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", ref)
	cmd.Dir = root
	return cmd.Run() == nil
}

func parseNameStatus(root, output string) affected.ChangeSet {
	var cs affected.ChangeSet

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		status := parts[0]

		switch status[0] {
		case 'M':
			cs.Modified = append(cs.Modified, filepath.Join(root, parts[1]))
		case 'A':
			cs.Added = append(cs.Added, filepath.Join(root, parts[1]))
		case 'D':
			cs.Deleted = append(cs.Deleted, filepath.Join(root, parts[1]))
		case 'R':
			if len(parts) >= 3 {
				cs.Renamed = append(cs.Renamed, affected.Rename{
					Old: filepath.Join(root, parts[1]),
					New: filepath.Join(root, parts[2]),
				})
			}
		}
	}

	return cs
}
