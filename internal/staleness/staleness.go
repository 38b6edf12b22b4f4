// Package staleness measures drift between chain documents and between
// documentation and code, using commit timestamps only.
//
// Two modes are provided:
// - ChainWarnings flags downstream documents older than their upstream
// - Score rates each configured feature 0-100 against recent code churn
//
// History lookups degrade to "unknown" on failure; a single unreachable
// query never fails a whole report.
package staleness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/gitlog"
)

// DefaultConcurrency bounds the number of git processes in flight.
const DefaultConcurrency = 8

// History is the subset of version-control queries the detector needs.
// *gitlog.Git satisfies it.
type History interface {
	IsRepo(ctx context.Context) bool
	LastModified(ctx context.Context, path string) (time.Time, bool, error)
	LatestTag(ctx context.Context) (string, bool)
	RevisionBefore(ctx context.Context, t time.Time) (string, error)
	ChangedFiles(ctx context.Context, base string) ([]string, error)
	DiffStat(ctx context.Context, base string) (map[string]gitlog.FileStat, error)
}

// Opener returns the History for a repository root.
type Opener func(root string) History

// GitOpener opens real repositories through the git binary.
func GitOpener(timeout time.Duration, logger *slog.Logger) Opener {
	return func(root string) History {
		return gitlog.New(root, gitlog.WithTimeout(timeout), gitlog.WithLogger(logger))
	}
}

// Detector computes staleness warnings and scores.
type Detector struct {
	open        Opener
	logger      *slog.Logger
	concurrency int
}

// NewDetector creates a Detector. A nil logger falls back to slog.Default.
func NewDetector(open Opener, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{open: open, logger: logger, concurrency: DefaultConcurrency}
}

// Warning reports a downstream document older than its upstream.
type Warning struct {
	Upstream           string    `json:"upstream"`
	Downstream         string    `json:"downstream"`
	UpstreamModified   time.Time `json:"upstream_modified"`
	DownstreamModified time.Time `json:"downstream_modified"`
	Message            string    `json:"message"`
}

// ChainWarnings compares, for every configured pair, the latest commit
// touching the upstream document with the latest touching the downstream.
// A split document is as recent as its most recent part. Pairs with an
// unknown date on either side are skipped.
func (d *Detector) ChainWarnings(ctx context.Context, cfg *config.Config) []Warning {
	h := d.open(cfg.Dir())
	if !h.IsRepo(ctx) {
		d.logger.Debug("staleness: not a git repository, skipping chain check", "root", cfg.Dir())
		return nil
	}

	dates := d.documentDates(ctx, h, cfg, cfg.Order())

	var warnings []Warning
	for _, p := range cfg.Pairs() {
		up, okUp := dates[p.Upstream]
		down, okDown := dates[p.Downstream]
		if !okUp || !okDown {
			continue
		}
		if up.After(down) {
			warnings = append(warnings, Warning{
				Upstream:           p.Upstream,
				Downstream:         p.Downstream,
				UpstreamModified:   up,
				DownstreamModified: down,
				Message: fmt.Sprintf("%s (%s) is newer than %s (%s)",
					p.Upstream, up.Format(time.RFC3339), p.Downstream, down.Format(time.RFC3339)),
			})
		}
	}
	return warnings
}

// documentDates returns the latest known commit time per document type.
// Every path query runs concurrently; results land in per-query slots and
// are folded only after all queries finish.
func (d *Detector) documentDates(ctx context.Context, h History, cfg *config.Config, docTypes []string) map[string]time.Time {
	type query struct {
		docType string
		path    string
		at      time.Time
		known   bool
	}

	var queries []*query
	for _, docType := range docTypes {
		for _, p := range cfg.DocumentPaths(docType) {
			queries = append(queries, &query{docType: docType, path: p})
		}
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, q := range queries {
		g.Go(func() error {
			at, ok, err := h.LastModified(ctx, q.path)
			if err != nil {
				d.logger.Warn("staleness: history query failed, treating as unknown",
					"doc_type", q.docType, "path", q.path, "error", err)
				return nil
			}
			q.at, q.known = at, ok
			return nil
		})
	}
	_ = g.Wait()

	dates := make(map[string]time.Time)
	for _, q := range queries {
		if !q.known {
			continue
		}
		if cur, ok := dates[q.docType]; !ok || q.at.After(cur) {
			dates[q.docType] = q.at
		}
	}
	return dates
}
