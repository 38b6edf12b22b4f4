// Package gitlog is the engine's only window onto version control. It shells
// out to the git binary for read-only history queries and for the
// checkpoint commit taken before a change request starts propagating.
//
// Every invocation is bounded by its own timeout. Callers decide whether a
// failure is fatal; most treat it as "unknown" and move on.
package gitlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout bounds a single git invocation.
const DefaultTimeout = 5 * time.Second

// EmptyTree is the well-known hash of git's empty tree. Diffing against it
// lists every file in HEAD.
const EmptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// ErrNotRepository is returned when the root is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// refPattern restricts caller-supplied refs to a safe character set.
var refPattern = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,100}$`)

// ValidateRef rejects refs that could be mistaken for options or that
// contain characters outside the safe set.
func ValidateRef(ref string) error {
	if !refPattern.MatchString(ref) || strings.HasPrefix(ref, "-") || strings.Contains(ref, "..") {
		return fmt.Errorf("invalid git ref %q", ref)
	}
	return nil
}

// Git runs git commands against one repository root.
type Git struct {
	root    string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Git.
type Option func(*Git)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(g *Git) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger used for debug traces.
func WithLogger(l *slog.Logger) Option {
	return func(g *Git) {
		if l != nil {
			g.logger = l
		}
	}
}

// New returns a Git rooted at root.
func New(root string, opts ...Option) *Git {
	g := &Git{root: root, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Root returns the directory commands run in.
func (g *Git) Root() string { return g.root }

// run executes git with its own timeout and returns trimmed stdout.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	g.logger.Debug("git", "args", args, "elapsed", time.Since(start), "error", err)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %s: %w", args[0], ctx.Err())
		}
		out := strings.TrimSpace(stderr.String() + "\n" + stdout.String())
		if strings.Contains(strings.ToLower(out), "not a git repository") {
			return "", fmt.Errorf("git %s: %w", args[0], ErrNotRepository)
		}
		return "", fmt.Errorf("git %s failed: %w: %s", args[0], err, out)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether the root is inside a git work tree.
func (g *Git) IsRepo(ctx context.Context) bool {
	out, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// TopLevel returns the absolute path of the work tree root.
func (g *Git) TopLevel(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--show-toplevel")
}

// LastModified returns the author date of the last commit touching path.
// The boolean is false when no commit touches it.
func (g *Git) LastModified(ctx context.Context, path string) (time.Time, bool, error) {
	out, err := g.run(ctx, "log", "-1", "--format=%aI", "--", path)
	if err != nil {
		return time.Time{}, false, err
	}
	if out == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, out)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing commit date %q: %w", out, err)
	}
	return t, true, nil
}

// LatestTag returns the most recent tag reachable from HEAD.
func (g *Git) LatestTag(ctx context.Context) (string, bool) {
	out, err := g.run(ctx, "describe", "--tags", "--abbrev=0")
	if err != nil || out == "" {
		return "", false
	}
	return out, true
}

// RevisionBefore returns the last commit on HEAD made before t, or
// EmptyTree when there is none.
func (g *Git) RevisionBefore(ctx context.Context, t time.Time) (string, error) {
	out, err := g.run(ctx, "rev-list", "-1", "--before="+t.UTC().Format(time.RFC3339), "HEAD")
	if err != nil {
		return "", err
	}
	if out == "" {
		return EmptyTree, nil
	}
	return out, nil
}

// ChangedFiles lists repository-relative paths changed between base and HEAD.
func (g *Git) ChangedFiles(ctx context.Context, base string) ([]string, error) {
	if base != EmptyTree {
		if err := ValidateRef(base); err != nil {
			return nil, err
		}
	}
	out, err := g.run(ctx, "diff", "--name-only", "--no-renames", base, "HEAD")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Head returns the abbreviated hash of HEAD.
func (g *Git) Head(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--short", "HEAD")
}
