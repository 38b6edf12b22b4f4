package staleness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/gitlog"
	"github.com/HendryAvila/specchain/internal/ids"
)

const (
	// DefaultThreshold is the score at or above which a feature is stale.
	DefaultThreshold = 50
	// DefaultWindowDays is the look-back window when there is no tag.
	DefaultWindowDays = 30
	// UnknownDocAgeDays stands in for a document that was never committed
	// or whose history could not be read.
	UnknownDocAgeDays = 90
	// MinLines is the trivial-change cutoff: fewer changed lines score 0.
	MinLines = 5
)

// ErrInvalidSince marks a since value that is neither a window, a date
// nor a well-formed ref.
var ErrInvalidSince = errors.New("invalid since")

var (
	windowPattern = regexp.MustCompile(`^(\d{1,4})d$`)
	datePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// nonSource filters out changes that do not reflect documented behavior.
var nonSource = []*regexp.Regexp{
	regexp.MustCompile(`_test\.go$`),
	regexp.MustCompile(`\.(test|spec)\.[jt]sx?$`),
	regexp.MustCompile(`(^|/)__tests__/`),
	regexp.MustCompile(`(^|/)tests?/`),
	regexp.MustCompile(`(^|/)testdata/`),
	regexp.MustCompile(`\.config\.[jt]s$`),
	regexp.MustCompile(`(^|/)\.env`),
	regexp.MustCompile(`(^|/)(package-lock\.json|yarn\.lock|pnpm-lock\.yaml|go\.sum|Cargo\.lock)$`),
}

// affectedDocTypes maps a feature id prefix to the documents that describe it.
var affectedDocTypes = map[string][]string{
	"F":   {"functions-list", "basic-design"},
	"REQ": {"requirements", "basic-design"},
	"SCR": {"basic-design", "detail-design"},
	"TBL": {"basic-design", "detail-design"},
	"API": {"basic-design", "detail-design"},
	"CLS": {"detail-design"},
	"UT":  {"ut-spec"},
	"IT":  {"it-spec"},
	"ST":  {"st-spec"},
	"UAT": {"uat-spec"},
}

// AffectedDocTypes returns the document types describing a feature id.
func AffectedDocTypes(featureID string) []string {
	if dts, ok := affectedDocTypes[ids.PrefixOf(featureID)]; ok {
		return append([]string(nil), dts...)
	}
	return []string{"requirements", "basic-design", "detail-design"}
}

// Options tunes a scoring run.
type Options struct {
	// Since is "Nd", a git ref, a YYYY-MM-DD date, or empty for the
	// latest tag (falling back to a 30-day window).
	Since string
	// Threshold defaults to DefaultThreshold when not positive.
	Threshold int
}

// FeatureScore is one feature's staleness.
type FeatureScore struct {
	FeatureID          string   `json:"feature_id"`
	Label              string   `json:"label"`
	Score              int      `json:"score"`
	Stale              bool     `json:"stale"`
	ChangedFiles       []string `json:"changed_files"`
	LinesChanged       int      `json:"lines_changed"`
	LastDocUpdate      string   `json:"last_doc_update,omitempty"`
	DaysSinceDocUpdate int      `json:"days_since_doc_update"`
	AffectedDocTypes   []string `json:"affected_doc_types"`
}

// Report is the result of a scoring run.
type Report struct {
	RepoRoot     string         `json:"repo_root"`
	SinceRef     string         `json:"since_ref"`
	ScanDate     string         `json:"scan_date"`
	Threshold    int            `json:"threshold"`
	Features     []FeatureScore `json:"features"`
	OverallScore int            `json:"overall_score"`
	StaleCount   int            `json:"stale_count"`
	Summary      string         `json:"summary"`
}

// Score combines doc age, changed file count and changed lines into 0-100.
func Score(daysSinceDoc, files, lines int) int {
	if lines < MinLines || files == 0 {
		return 0
	}
	v := 40*clamp(float64(daysSinceDoc)/90) +
		30*clamp(float64(files)/10) +
		30*clamp(float64(lines)/500)
	return int(math.Round(v))
}

func clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// Score rates every feature in cfg's feature_file_map.
func (d *Detector) Score(ctx context.Context, cfg *config.Config, opts Options) (*Report, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	now := timeNow().UTC()
	report := &Report{
		RepoRoot:  cfg.Dir(),
		ScanDate:  now.Format(time.RFC3339),
		Threshold: threshold,
		Features:  []FeatureScore{},
	}

	if len(cfg.FeatureFileMap) == 0 {
		report.SinceRef = "N/A"
		report.Summary = "No features configured for staleness tracking."
		return report, nil
	}

	h := d.open(cfg.Dir())
	if !h.IsRepo(ctx) {
		return nil, fmt.Errorf("scoring staleness in %s: %w", cfg.Dir(), gitlog.ErrNotRepository)
	}

	base, display, err := d.resolveSince(ctx, h, opts.Since, now)
	if err != nil {
		return nil, err
	}
	report.SinceRef = display

	changed, err := h.ChangedFiles(ctx, base)
	if err != nil {
		d.logger.Warn("staleness: listing changed files failed, treating as empty", "since", display, "error", err)
		changed = nil
	}
	changed = filterSource(changed)

	stats, err := h.DiffStat(ctx, base)
	if err != nil {
		d.logger.Warn("staleness: diff stat failed, counting no lines", "since", display, "error", err)
		stats = nil
	}

	featureIDs := cfg.FeatureIDs()
	scores := make([]FeatureScore, len(featureIDs))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, id := range featureIDs {
		g.Go(func() error {
			scores[i] = d.scoreFeature(ctx, h, cfg, id, changed, stats, now, threshold)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, s := range scores {
		total += s.Score
		if s.Stale {
			report.StaleCount++
		}
	}
	report.Features = scores
	report.OverallScore = int(math.Round(float64(total) / float64(len(scores))))
	report.Summary = fmt.Sprintf("%d/%d features stale (threshold: %d, overall score: %d/100)",
		report.StaleCount, len(scores), threshold, report.OverallScore)
	return report, nil
}

func (d *Detector) scoreFeature(ctx context.Context, h History, cfg *config.Config, id string,
	changed []string, stats map[string]gitlog.FileStat, now time.Time, threshold int) FeatureScore {

	feature := cfg.FeatureFileMap[id]
	fs := FeatureScore{
		FeatureID:        id,
		Label:            feature.Label,
		ChangedFiles:     matchFiles(changed, feature.Files),
		AffectedDocTypes: AffectedDocTypes(id),
	}
	for _, f := range fs.ChangedFiles {
		fs.LinesChanged += stats[f].Lines()
	}
	if len(fs.ChangedFiles) == 0 {
		return fs
	}

	fs.DaysSinceDocUpdate = UnknownDocAgeDays
	if last, ok := d.lastDocUpdate(ctx, h, cfg, fs.AffectedDocTypes); ok {
		fs.LastDocUpdate = last.UTC().Format(time.RFC3339)
		fs.DaysSinceDocUpdate = int(math.Round(now.Sub(last).Hours() / 24))
	}

	fs.Score = Score(fs.DaysSinceDocUpdate, len(fs.ChangedFiles), fs.LinesChanged)
	fs.Stale = fs.Score >= threshold
	return fs
}

// lastDocUpdate is the most recent commit across the configured documents
// among docTypes.
func (d *Detector) lastDocUpdate(ctx context.Context, h History, cfg *config.Config, docTypes []string) (time.Time, bool) {
	var configured []string
	for _, dt := range docTypes {
		if cfg.HasDocument(dt) {
			configured = append(configured, dt)
		}
	}
	var latest time.Time
	found := false
	for _, at := range d.documentDates(ctx, h, cfg, configured) {
		if !found || at.After(latest) {
			latest, found = at, true
		}
	}
	return latest, found
}

// resolveSince turns the user-facing since value into a diff base and a
// display label.
func (d *Detector) resolveSince(ctx context.Context, h History, since string, now time.Time) (string, string, error) {
	since = strings.TrimSpace(since)

	window := func(days int) (string, string, error) {
		rev, err := h.RevisionBefore(ctx, now.AddDate(0, 0, -days))
		if err != nil {
			return "", "", fmt.Errorf("resolving %d-day window: %w", days, err)
		}
		return rev, fmt.Sprintf("%d days ago", days), nil
	}

	switch {
	case since == "":
		if tag, ok := h.LatestTag(ctx); ok {
			return tag, tag, nil
		}
		return window(DefaultWindowDays)
	case windowPattern.MatchString(since):
		days, _ := strconv.Atoi(windowPattern.FindStringSubmatch(since)[1])
		return window(days)
	case datePattern.MatchString(since):
		at, err := time.Parse("2006-01-02", since)
		if err != nil {
			return "", "", fmt.Errorf("%w: date %q: %v", ErrInvalidSince, since, err)
		}
		rev, err := h.RevisionBefore(ctx, at)
		if err != nil {
			return "", "", fmt.Errorf("resolving since date %s: %w", since, err)
		}
		return rev, since, nil
	default:
		if err := gitlog.ValidateRef(since); err != nil {
			return "", "", fmt.Errorf("%w: ref format %q", ErrInvalidSince, since)
		}
		return since, since, nil
	}
}

func filterSource(files []string) []string {
	var out []string
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		skip := false
		for _, re := range nonSource {
			if re.MatchString(f) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, f)
		}
	}
	return out
}

// matchFiles returns the files matched by any glob, sorted. A glob without
// wildcards also matches everything below it as a directory.
func matchFiles(files, globs []string) []string {
	matched := []string{}
	for _, f := range files {
		for _, pattern := range globs {
			pattern = strings.TrimPrefix(pattern, "./")
			ok, err := doublestar.Match(pattern, f)
			if err == nil && !ok && !strings.ContainsAny(pattern, "*?[{") {
				ok = strings.HasPrefix(f, strings.TrimSuffix(pattern, "/")+"/")
			}
			if ok {
				matched = append(matched, f)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}
