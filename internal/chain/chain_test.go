package chain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/staleness"
)

const twoDocYAML = `
chain:
  order: [requirements, basic-design]
  documents:
    requirements: {output: docs/requirements.md}
    basic-design: {output: docs/basic-design.md}
`

func parse(t *testing.T, yml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yml), "/p")
	require.NoError(t, err)
	return cfg
}

func TestAnalyze_Orphaned(t *testing.T) {
	cfg := parse(t, twoDocYAML)
	docs := Documents{
		"requirements": "## REQ-001 Login\n## REQ-002 Logout\n",
		"basic-design": "## SCR-001 Login screen\nImplements REQ-001.\n",
	}

	r := Analyze(cfg, docs)
	require.Len(t, r.Links, 1)
	assert.Equal(t, []string{"REQ-002"}, r.Links[0].OrphanedIDs)
	assert.Empty(t, r.Links[0].MissingIDs)
	assert.Equal(t, []OrphanedID{{ID: "REQ-002", DefinedIn: "requirements", ExpectedIn: "basic-design"}}, r.OrphanedIDs)
	assert.Empty(t, r.MissingIDs)
	assert.Equal(t, []string{"REQ-002 defined in requirements but not referenced in basic-design"}, r.Suggestions)
	assert.Equal(t, 1, r.Issues())
}

func TestAnalyze_Missing(t *testing.T) {
	cfg := parse(t, twoDocYAML)
	docs := Documents{
		"requirements": "## REQ-001 Login\n",
		"basic-design": "Implements REQ-001 and REQ-999.\n",
	}

	r := Analyze(cfg, docs)
	require.Len(t, r.Links, 1)
	assert.Empty(t, r.Links[0].OrphanedIDs)
	assert.Equal(t, []string{"REQ-999"}, r.Links[0].MissingIDs)
	assert.Equal(t, []MissingID{{ID: "REQ-999", ReferencedIn: "basic-design", ExpectedFrom: "requirements"}}, r.MissingIDs)
	assert.Contains(t, r.Suggestions, "REQ-999 referenced in basic-design but not defined in requirements")
}

func TestAnalyze_IgnoresIdsOwnedElsewhere(t *testing.T) {
	cfg := parse(t, twoDocYAML)
	docs := Documents{
		// F-001 is owned by functions-list (not configured, inferred from
		// nobody defining it), so it never counts against this pair.
		"requirements": "## REQ-001 Login\nFrom F-001.\n",
		"basic-design": "## SCR-001 Screen\nREQ-001, TBL-004, F-001\n",
	}
	r := Analyze(cfg, docs)
	assert.Zero(t, r.Issues(), "suggestions: %v", r.Suggestions)
}

func TestAnalyze_SkipsAbsentDocuments(t *testing.T) {
	cfg := parse(t, twoDocYAML)
	r := Analyze(cfg, Documents{"requirements": "## REQ-001\n"})
	assert.Empty(t, r.Links)
	assert.Equal(t, []string{"requirements"}, r.Documents)
	assert.Zero(t, r.Issues())
}

func TestAnalyze_InferredOwnerForCustomPrefix(t *testing.T) {
	cfg := parse(t, `
chain:
  order: [sales, design]
  documents:
    sales: {output: s.md}
    design: {output: d.md}
`)
	docs := Documents{
		"sales":  "## SAL-001 Quote\n## SAL-002 Order\n",
		"design": "Covers SAL-001 and SAL-003.\n",
	}
	r := Analyze(cfg, docs)
	require.Len(t, r.Links, 1)
	assert.Equal(t, []string{"SAL-002"}, r.Links[0].OrphanedIDs)
	assert.Equal(t, []string{"SAL-003"}, r.Links[0].MissingIDs)
}

func TestAnalyze_TraceabilityOneEntryPerID(t *testing.T) {
	cfg := parse(t, `
chain:
  order: [functions-list, requirements, basic-design]
  documents:
    functions-list: {output: f.md}
    requirements: {output: r.md}
    basic-design: {output: b.md}
`)
	docs := Documents{
		"functions-list": "| F-001 | Login |\n",
		"requirements":   "## REQ-001 Login (F-001)\n| F-001 | again as a key |\n",
		"basic-design":   "## SCR-001\nREQ-001 F-001\n",
	}
	r := Analyze(cfg, docs)

	byID := make(map[string]TraceabilityEntry)
	for _, e := range r.TraceabilityMatrix {
		_, dup := byID[e.ID]
		require.False(t, dup, "duplicate traceability entry for %s", e.ID)
		byID[e.ID] = e
	}
	require.Len(t, byID, 3)

	assert.Equal(t, "functions-list", byID["F-001"].DocType, "first defining doc in chain order")
	assert.Equal(t, []string{"requirements", "basic-design"}, byID["F-001"].DownstreamRefs)
	assert.Equal(t, "requirements", byID["REQ-001"].DocType)
	assert.Equal(t, []string{"basic-design"}, byID["REQ-001"].DownstreamRefs)
	assert.Equal(t, "basic-design", byID["SCR-001"].DocType)
	assert.Empty(t, byID["SCR-001"].DownstreamRefs)

	ids := make([]string, 0, len(r.TraceabilityMatrix))
	for _, e := range r.TraceabilityMatrix {
		ids = append(ids, e.ID)
	}
	assert.IsNonDecreasing(t, ids)
}

// --- Loading ---

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDocuments_SplitAndMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs/req.md"), "## REQ-001\n")
	writeFile(t, filepath.Join(dir, "docs/bd/system/b.md"), "SYSTEM-B")
	writeFile(t, filepath.Join(dir, "docs/bd/system/a.md"), "SYSTEM-A")
	writeFile(t, filepath.Join(dir, "docs/bd/features/x/feat.md"), "FEATURE")
	writeFile(t, filepath.Join(dir, "docs/bd/features/notes.txt"), "IGNORED")
	writeFile(t, filepath.Join(dir, "docs/big.md"), strings.Repeat("x", MaxFileSize+1))

	cfg, err := config.Parse([]byte(`
chain:
  documents:
    requirements: {output: docs/req.md}
    basic-design: {system_output: docs/bd/system, features_output: docs/bd/features}
    detail-design: {output: docs/missing.md}
    test-spec: {output: docs/big.md}
`), dir)
	require.NoError(t, err)

	docs, err := LoadDocuments(cfg)
	require.NoError(t, err)

	assert.Equal(t, "## REQ-001\n", docs["requirements"])
	assert.Equal(t, "SYSTEM-A\nSYSTEM-B\nFEATURE", docs["basic-design"])
	assert.False(t, docs.Has("detail-design"), "missing file is skipped")
	assert.False(t, docs.Has("test-spec"), "oversized file is skipped")
}

type fakeChecker struct{ warnings []staleness.Warning }

func (f fakeChecker) ChainWarnings(context.Context, *config.Config) []staleness.Warning {
	return f.warnings
}

func TestLinkerValidate_FoldsStaleness(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs/requirements.md"), "## REQ-001\n## REQ-002\n")
	writeFile(t, filepath.Join(dir, "docs/basic-design.md"), "REQ-001\n")
	cfg, err := config.Parse([]byte(twoDocYAML), dir)
	require.NoError(t, err)

	warning := staleness.Warning{
		Upstream: "requirements", Downstream: "basic-design",
		UpstreamModified: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), DownstreamModified: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	l := NewLinker(fakeChecker{warnings: []staleness.Warning{warning}}, nil)

	r, err := l.Validate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Issues())
	require.Len(t, r.StalenessWarnings, 1)

	md := RenderMarkdown(r)
	assert.Contains(t, md, "# Chain Validation Report")
	assert.Contains(t, md, "REQ-002 defined in requirements but not referenced in basic-design")
	assert.Contains(t, md, "requirements → basic-design")
	assert.Contains(t, md, "| REQ-001 | requirements | basic-design |")
}

func TestLinkerValidate_NilCheckerKeepsEmptyWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs/requirements.md"), "## REQ-001\n")
	cfg, err := config.Parse([]byte(twoDocYAML), dir)
	require.NoError(t, err)

	r, err := NewLinker(nil, nil).Validate(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, r.StalenessWarnings)
	assert.Empty(t, r.StalenessWarnings)
}

func TestRenderMarkdown_NoDocuments(t *testing.T) {
	cfg := parse(t, twoDocYAML)
	md := RenderMarkdown(Analyze(cfg, Documents{}))
	assert.Contains(t, md, "No chain documents found")
}
