package gitlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// CheckpointResult describes the outcome of a checkpoint attempt. A
// checkpoint that could not be taken for an expected reason is not an
// error: Created is false and Skipped says why.
type CheckpointResult struct {
	Created bool   `json:"created"`
	Commit  string `json:"commit,omitempty"`
	Skipped string `json:"skipped,omitempty"`
}

// Checkpoint stages paths and commits only them with message. Paths that do
// not exist are ignored. "nothing to commit" and "not a git repository" are
// reported through Skipped; any other failure is returned as an error.
func (g *Git) Checkpoint(ctx context.Context, message string, paths ...string) (CheckpointResult, error) {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return CheckpointResult{Skipped: "no paths to checkpoint"}, nil
	}

	if !g.IsRepo(ctx) {
		return CheckpointResult{Skipped: ErrNotRepository.Error()}, nil
	}

	args := append([]string{"add", "--"}, existing...)
	if _, err := g.run(ctx, args...); err != nil {
		return CheckpointResult{}, fmt.Errorf("staging checkpoint: %w", err)
	}

	staged, err := g.stagedFiles(ctx, existing)
	if err != nil {
		return CheckpointResult{}, fmt.Errorf("listing staged checkpoint files: %w", err)
	}
	if len(staged) == 0 {
		return CheckpointResult{Skipped: "nothing to commit"}, nil
	}

	// The pathspec keeps anything else the user staged out of the commit.
	args = []string{"commit", "-q", "-m", message, "--"}
	for _, f := range staged {
		args = append(args, ":(top,literal)"+f)
	}
	if _, err := g.run(ctx, args...); err != nil {
		if errors.Is(err, ErrNotRepository) {
			return CheckpointResult{Skipped: ErrNotRepository.Error()}, nil
		}
		return CheckpointResult{}, fmt.Errorf("committing checkpoint: %w", err)
	}

	head, err := g.Head(ctx)
	if err != nil {
		return CheckpointResult{Created: true}, nil
	}
	return CheckpointResult{Created: true, Commit: head}, nil
}

// stagedFiles lists the files under paths whose index entry differs from
// HEAD, relative to the top of the work tree.
func (g *Git) stagedFiles(ctx context.Context, paths []string) ([]string, error) {
	args := append([]string{"diff", "--cached", "--name-only", "-z", "--"}, paths...)
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range strings.Split(out, "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}
