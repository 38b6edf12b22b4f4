package gitlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// FileStat counts changed lines in one file.
type FileStat struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Deleted int    `json:"deleted"`
}

// Lines returns added plus deleted lines.
func (s FileStat) Lines() int { return s.Added + s.Deleted }

// DiffStat returns per-file line counts between base and HEAD, keyed by
// repository-relative path.
func (g *Git) DiffStat(ctx context.Context, base string) (map[string]FileStat, error) {
	if base != EmptyTree {
		if err := ValidateRef(base); err != nil {
			return nil, err
		}
	}
	out, err := g.run(ctx, "diff", "--no-color", "--no-ext-diff", "--no-renames", "-U0", base, "HEAD")
	if err != nil {
		return nil, err
	}
	return ParseDiffStat(out)
}

// ParseDiffStat counts added and deleted lines per file in a unified diff.
func ParseDiffStat(unified string) (map[string]FileStat, error) {
	stats := make(map[string]FileStat)
	if strings.TrimSpace(unified) == "" {
		return stats, nil
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(unified + "\n")).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	for _, fd := range fileDiffs {
		path := diffPath(fd)
		if path == "" {
			continue
		}
		st := stats[path]
		st.Path = path
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+"):
					st.Added++
				case strings.HasPrefix(line, "-"):
					st.Deleted++
				}
			}
		}
		stats[path] = st
	}
	return stats, nil
}

// diffPath picks the surviving name of a file diff with its a/ or b/
// prefix removed.
func diffPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	if name == "/dev/null" {
		return ""
	}
	for _, p := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, p) {
			return name[len(p):]
		}
	}
	return name
}
