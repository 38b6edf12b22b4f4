// Package chain links the documents of a specification chain through the
// identifiers they define and cite.
//
// For every upstream → downstream pair it reports identifiers the
// downstream forgot (orphaned) and identifiers the downstream invented
// (missing), and it builds a traceability matrix naming, per identifier,
// the document that defines it and every document that cites it.
//
// Analyze is the pure core; Linker adds document loading and staleness.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/ids"
	"github.com/HendryAvila/specchain/internal/staleness"
)

// Link is the result for one upstream → downstream pair.
type Link struct {
	Upstream             string   `json:"upstream"`
	Downstream           string   `json:"downstream"`
	UpstreamDefined      []string `json:"upstream_defined"`
	DownstreamReferenced []string `json:"downstream_referenced"`
	OrphanedIDs          []string `json:"orphaned_ids"`
	MissingIDs           []string `json:"missing_ids"`
}

// OrphanedID is defined upstream but never cited downstream.
type OrphanedID struct {
	ID         string `json:"id"`
	DefinedIn  string `json:"defined_in"`
	ExpectedIn string `json:"expected_in"`
}

// MissingID is cited downstream but never defined upstream.
type MissingID struct {
	ID           string `json:"id"`
	ReferencedIn string `json:"referenced_in"`
	ExpectedFrom string `json:"expected_from"`
}

// TraceabilityEntry names the defining document of an identifier and the
// other documents that mention it.
type TraceabilityEntry struct {
	ID             string   `json:"id"`
	DocType        string   `json:"doc_type"`
	DownstreamRefs []string `json:"downstream_refs"`
}

// Report is the result of a chain validation.
type Report struct {
	Links              []Link              `json:"links"`
	OrphanedIDs        []OrphanedID        `json:"orphaned_ids"`
	MissingIDs         []MissingID         `json:"missing_ids"`
	Suggestions        []string            `json:"suggestions"`
	TraceabilityMatrix []TraceabilityEntry `json:"traceability_matrix"`
	StalenessWarnings  []staleness.Warning `json:"staleness_warnings"`
	Documents          []string            `json:"documents"`
}

// Issues counts orphaned plus missing identifiers.
func (r *Report) Issues() int {
	return len(r.OrphanedIDs) + len(r.MissingIDs)
}

// Analyze validates already-loaded documents against cfg's chain.
func Analyze(cfg *config.Config, docs Documents) *Report {
	order := cfg.Order()

	classified := make(map[string]ids.Classification, len(docs))
	for docType, text := range docs {
		classified[docType] = ids.Classify(text)
	}

	owners := newOwnerResolver(cfg, order, classified)

	report := &Report{
		Links:              []Link{},
		OrphanedIDs:        []OrphanedID{},
		MissingIDs:         []MissingID{},
		Suggestions:        []string{},
		TraceabilityMatrix: []TraceabilityEntry{},
		StalenessWarnings:  []staleness.Warning{},
		Documents:          []string{},
	}
	for _, docType := range order {
		if docs.Has(docType) {
			report.Documents = append(report.Documents, docType)
		}
	}

	for _, p := range cfg.Pairs() {
		up, okUp := classified[p.Upstream]
		down, okDown := classified[p.Downstream]
		if !okUp || !okDown {
			continue
		}
		link := linkPair(p, up, down, owners)
		report.Links = append(report.Links, link)

		for _, id := range link.OrphanedIDs {
			report.OrphanedIDs = append(report.OrphanedIDs, OrphanedID{ID: id, DefinedIn: p.Upstream, ExpectedIn: p.Downstream})
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("%s defined in %s but not referenced in %s", id, p.Upstream, p.Downstream))
		}
		for _, id := range link.MissingIDs {
			report.MissingIDs = append(report.MissingIDs, MissingID{ID: id, ReferencedIn: p.Downstream, ExpectedFrom: p.Upstream})
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("%s referenced in %s but not defined in %s", id, p.Downstream, p.Upstream))
		}
	}

	report.TraceabilityMatrix = traceability(order, classified)
	return report
}

// linkPair computes orphaned and missing identifiers for one pair. Only
// identifiers whose prefix is owned by the upstream document take part.
func linkPair(p config.Pair, up, down ids.Classification, owners *ownerResolver) Link {
	downMentioned := down.Mentioned()

	link := Link{
		Upstream:             p.Upstream,
		Downstream:           p.Downstream,
		UpstreamDefined:      []string{},
		DownstreamReferenced: downMentioned.All(),
		OrphanedIDs:          []string{},
		MissingIDs:           []string{},
	}

	for _, id := range up.Defined.All() {
		if owners.owner(ids.PrefixOf(id)) != p.Upstream {
			continue
		}
		link.UpstreamDefined = append(link.UpstreamDefined, id)
		if !downMentioned.Contains(id) {
			link.OrphanedIDs = append(link.OrphanedIDs, id)
		}
	}

	for _, id := range link.DownstreamReferenced {
		if owners.owner(ids.PrefixOf(id)) != p.Upstream {
			continue
		}
		if !up.Defined.Contains(id) {
			link.MissingIDs = append(link.MissingIDs, id)
		}
	}
	return link
}

// traceability assigns each identifier to the first document in chain
// order that defines it, then lists every other document mentioning it.
func traceability(order []string, classified map[string]ids.Classification) []TraceabilityEntry {
	var entries []TraceabilityEntry
	seen := make(map[string]bool)

	for _, docType := range order {
		c, ok := classified[docType]
		if !ok {
			continue
		}
		for _, id := range c.Defined.All() {
			if seen[id] {
				continue
			}
			seen[id] = true

			refs := []string{}
			for _, other := range order {
				if other == docType {
					continue
				}
				if oc, ok := classified[other]; ok && oc.Mentioned().Contains(id) {
					refs = append(refs, other)
				}
			}
			entries = append(entries, TraceabilityEntry{ID: id, DocType: docType, DownstreamRefs: refs})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	if entries == nil {
		entries = []TraceabilityEntry{}
	}
	return entries
}

// ownerResolver answers "which document owns this prefix". Configured and
// built-in owners come first; otherwise the first document in chain order
// defining an identifier with the prefix owns it.
type ownerResolver struct {
	cfg      *config.Config
	inferred map[string]string
}

func newOwnerResolver(cfg *config.Config, order []string, classified map[string]ids.Classification) *ownerResolver {
	inferred := make(map[string]string)
	for _, docType := range order {
		c, ok := classified[docType]
		if !ok {
			continue
		}
		for _, id := range c.Defined.All() {
			prefix := ids.PrefixOf(id)
			if _, done := inferred[prefix]; !done {
				inferred[prefix] = docType
			}
		}
	}
	return &ownerResolver{cfg: cfg, inferred: inferred}
}

func (o *ownerResolver) owner(prefix string) string {
	if owner := o.cfg.Owner(prefix); owner != "" {
		return owner
	}
	return o.inferred[prefix]
}

// StalenessChecker produces chain staleness warnings.
type StalenessChecker interface {
	ChainWarnings(ctx context.Context, cfg *config.Config) []staleness.Warning
}

// Linker loads documents and validates the chain.
type Linker struct {
	staleness StalenessChecker
	logger    *slog.Logger
}

// NewLinker creates a Linker. checker may be nil to skip staleness.
func NewLinker(checker StalenessChecker, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{staleness: checker, logger: logger}
}

// Validate loads the chain documents of cfg and analyzes them, folding in
// staleness warnings.
func (l *Linker) Validate(ctx context.Context, cfg *config.Config) (*Report, error) {
	docs, err := LoadDocuments(cfg)
	if err != nil {
		return nil, err
	}
	report := Analyze(cfg, docs)
	if l.staleness != nil {
		if warnings := l.staleness.ChainWarnings(ctx, cfg); len(warnings) > 0 {
			report.StalenessWarnings = warnings
		}
	}
	l.logger.Debug("chain validated",
		"documents", len(report.Documents),
		"links", len(report.Links),
		"issues", report.Issues(),
		"stale_pairs", len(report.StalenessWarnings))
	return report, nil
}
