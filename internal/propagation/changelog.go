package propagation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/specchain/internal/changes"
)

// ChangelogFile is the workspace-wide changelog, under workspace-docs/.
const ChangelogFile = "CHANGELOG.md"

const changelogHeader = `# Changelog

| Date | Document | Changes | CR |
|------|----------|---------|----|`

// ChangelogEntry is one row of the changelog table.
type ChangelogEntry struct {
	Date    string
	DocType string
	Changes string
	CRID    string
}

// ChangelogPath returns <root>/workspace-docs/CHANGELOG.md.
func ChangelogPath(workspaceRoot string) string {
	return filepath.Join(changes.WorkspaceDocsPath(workspaceRoot), ChangelogFile)
}

// AppendChangelog adds e as the last row of the changelog, creating the
// file with its header when absent.
func AppendChangelog(workspaceRoot string, e ChangelogEntry) error {
	path := ChangelogPath(workspaceRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating changelog directory: %w", err)
	}

	content := changelogHeader
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		content = string(data)
	case !os.IsNotExist(err):
		return fmt.Errorf("reading changelog: %w", err)
	}

	updated := strings.TrimRight(content, " \t\r\n") + "\n" + e.row() + "\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing changelog: %w", err)
	}
	return nil
}

func (e ChangelogEntry) row() string {
	return fmt.Sprintf("| %s | %s | %s | %s |",
		cell(e.Date), cell(e.DocType), cell(e.Changes), cell(e.CRID))
}

// cell keeps a value on one table row.
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
