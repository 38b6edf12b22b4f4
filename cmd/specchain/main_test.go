package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
)

const projectYAML = `
chain:
  documents:
    requirements: {output: docs/requirements.md}
    basic-design: {output: docs/basic-design.md}
`

// project writes a two-document workspace and returns its root.
func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "specchain.yaml"), []byte(projectYAML), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "requirements.md"), []byte("## REQ-001 Login\n\n## REQ-002 Logout\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "basic-design.md"), []byte("## SCR-001 Login\nImplements REQ-001 and REQ-002.\n"), 0o644))
	return root
}

// run executes the CLI against root with an isolated ledger.
func run(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	base := []string{"--workspace", root, "--ledger-dir", filepath.Join(root, ".ledger"), "--no-checkpoint"}
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "specchain dev")
}

func TestValidate(t *testing.T) {
	root := project(t)

	out, err := run(t, root, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "# Chain Validation Report")
	assert.Contains(t, out, "**Issues:** 0")

	out, err = run(t, root, "validate", "--json")
	require.NoError(t, err)
	var report chain.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []string{"requirements", "basic-design"}, report.Documents)
}

func TestValidate_StrictFailsOnIssues(t *testing.T) {
	root := project(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "basic-design.md"), []byte("Implements REQ-001.\n"), 0o644))

	out, err := run(t, root, "validate")
	require.NoError(t, err, "issues alone do not fail without --strict")
	assert.Contains(t, out, "REQ-002")

	_, err = run(t, root, "validate", "--strict")
	require.ErrorIs(t, err, errIssues)
	assert.Equal(t, 2, exitCode(err))
}

func TestValidate_MissingConfig(t *testing.T) {
	_, err := run(t, t.TempDir(), "validate")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestImpact(t *testing.T) {
	root := project(t)

	out, err := run(t, root, "impact", "--ids", "REQ-001", "--origin", "requirements")
	require.NoError(t, err)
	assert.Contains(t, out, "Impact Simulation (dry run)")
	assert.Contains(t, out, "basic-design (downstream)")

	_, err = os.Stat(changes.ChangeRequestsPath(root))
	assert.True(t, os.IsNotExist(err), "impact must not write")
}

func TestImpact_FromFiles(t *testing.T) {
	root := project(t)
	oldFile := filepath.Join(root, "old.md")
	require.NoError(t, os.WriteFile(oldFile, []byte("## REQ-001 Login\n\n## REQ-002 Logout\n"), 0o644))
	newFile := filepath.Join(root, "new.md")
	require.NoError(t, os.WriteFile(newFile, []byte("## REQ-001 Login\n\n## REQ-002 Logout everywhere\n"), 0o644))

	out, err := run(t, root, "impact", "--old", oldFile, "--new", newFile)
	require.NoError(t, err)
	assert.Contains(t, out, "**Changed IDs:** REQ-002")
}

func TestCR_LifecycleAndHistory(t *testing.T) {
	root := project(t)

	_, err := run(t, root, "cr", "create", "--origin", "requirements", "--description", "Add MFA", "--ids", "REQ-001")
	require.NoError(t, err)
	list, err := changes.NewFileStore().List(root)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	for _, action := range []string{"analyze", "approve", "propagate_next", "validate", "complete"} {
		_, err := run(t, root, "cr", action, id)
		require.NoError(t, err, "cr %s", action)
	}

	out, err := run(t, root, "cr", "status", id)
	require.NoError(t, err)
	assert.Contains(t, out, "**Status:** COMPLETED")

	out, err = run(t, root, "cr", "list", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, root, "history", "--cr", id)
	require.NoError(t, err)
	assert.Contains(t, out, "IMPACT_ANALYZED")
	assert.Contains(t, out, "change request completed")

	out, err = run(t, root, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "ORPHANED")
}

func TestCR_Errors(t *testing.T) {
	root := project(t)

	_, err := run(t, root, "cr", "rollback")
	assert.Error(t, err)

	_, err = run(t, root, "cr", "approve", "CR-260101-001")
	assert.ErrorIs(t, err, changes.ErrNotFound)
}

func TestHistory_NoLedger(t *testing.T) {
	_, err := run(t, project(t), "history", "--no-ledger")
	assert.Error(t, err)
}

func TestSettings_FromEnvironment(t *testing.T) {
	root := project(t)
	t.Setenv("SPECCHAIN_LOG_LEVEL", "verbose")

	_, err := run(t, root, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log level "verbose"`)
}

func TestSettings_JSONFromEnvironment(t *testing.T) {
	root := project(t)
	t.Setenv("SPECCHAIN_JSON", "true")

	out, err := run(t, root, "cr", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "got %q", out)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
